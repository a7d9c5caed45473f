// Package mocks holds hand-authored gomock doubles for hub's narrow
// internal interfaces, in the shape mockgen would generate (this repo
// has no go:generate wiring to invoke it, so the output is written
// directly), mirroring the teacher's snmp/mocks package.
package mocks

import (
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/filerelay/filerelay/wire"
)

// MockSender is a mock of the hub package's unexported `sender`
// interface (Send(wire.Message) error).
type MockSender struct {
	ctrl     *gomock.Controller
	recorder *MockSenderMockRecorder
}

// MockSenderMockRecorder is the recorder for MockSender's expectations.
type MockSenderMockRecorder struct {
	mock *MockSender
}

// NewMockSender constructs a MockSender registered with ctrl.
func NewMockSender(ctrl *gomock.Controller) *MockSender {
	mock := &MockSender{ctrl: ctrl}
	mock.recorder = &MockSenderMockRecorder{mock}
	return mock
}

// EXPECT returns the recorder used to set up expectations.
func (m *MockSender) EXPECT() *MockSenderMockRecorder {
	return m.recorder
}

// Send mocks the sender.Send method.
func (m *MockSender) Send(msg wire.Message) error {
	ret := m.ctrl.Call(m, "Send", msg)
	ret0, _ := ret[0].(error)
	return ret0
}

// Send indicates an expected call of Send.
func (mr *MockSenderMockRecorder) Send(msg interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*MockSender)(nil).Send), msg)
}
