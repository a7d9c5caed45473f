package hub

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/filerelay/filerelay/config"
	"github.com/filerelay/filerelay/events"
	"github.com/filerelay/filerelay/hub/mocks"
	"github.com/filerelay/filerelay/wire"
)

func newTestHubNoListener() *Hub {
	return New(config.New(), events.NewBus())
}

func TestBroadcastSkipsSenderAndToleratesOneFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newTestHubNoListener()

	senderMock := mocks.NewMockSender(ctrl)
	okMock := mocks.NewMockSender(ctrl)
	failMock := mocks.NewMockSender(ctrl)

	senderMock.EXPECT().Send(gomock.Any()).Times(0)
	okMock.EXPECT().Send(gomock.Any()).Return(nil).Times(1)
	failMock.EXPECT().Send(gomock.Any()).Return(errSendFailed).Times(1)

	h.peers["sender"] = &peer{id: "sender", ep: senderMock}
	h.peers["ok"] = &peer{id: "ok", ep: okMock}
	h.peers["fail"] = &peer{id: "fail", ep: failMock}

	err := h.broadcast("sender", &wire.Chat{Content: "hi"})
	require.Error(t, err)
}

var errSendFailed = &sendError{"boom"}

type sendError struct{ msg string }

func (e *sendError) Error() string { return e.msg }

func TestForwardToUnknownTargetReturnsError(t *testing.T) {
	h := newTestHubNoListener()
	err := h.forwardTo("nobody", &wire.Chat{Content: "hi"})
	require.Error(t, err)
}

func TestForwardToDeliversToExactPeer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newTestHubNoListener()
	m := mocks.NewMockSender(ctrl)
	var captured wire.Message
	m.EXPECT().Send(gomock.Any()).DoAndReturn(func(msg wire.Message) error {
		captured = msg
		return nil
	})
	h.peers["target"] = &peer{id: "target", ep: m}

	require.NoError(t, h.forwardTo("target", &wire.Chat{Content: "direct"}))
	chat, ok := captured.(*wire.Chat)
	require.True(t, ok)
	require.Equal(t, "direct", chat.Content)
}
