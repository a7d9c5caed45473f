package hub

import (
	"github.com/hashicorp/go-multierror"

	"github.com/filerelay/filerelay/events"
	"github.com/filerelay/filerelay/transfer"
	"github.com/filerelay/filerelay/wire"
)

// dispatch routes one inbound message from the peer identified by
// senderID, implementing the routing table of SPEC_FULL.md §4.4. The hub
// always rewrites the Sender field of what it forwards to the id it
// assigned the connection, regardless of what the client put on the
// wire, so peers can never spoof each other.
func (h *Hub) dispatch(senderID string, m wire.Message) {
	var err error
	var targetID string

	switch msg := m.(type) {
	case *wire.Chat:
		targetID = msg.Target
		err = h.dispatchChat(senderID, msg)
	case *wire.FileStart:
		targetID = msg.Target
		err = h.dispatchFileStart(senderID, msg)
	case *wire.FileData:
		targetID = msg.Target
		err = h.dispatchFileData(senderID, msg)
	case *wire.FileEnd:
		targetID = msg.Target
		err = h.dispatchFileEnd(senderID, msg)
	case *wire.DownloadAccept:
		err = h.dispatchDownloadAccept(senderID, msg)
	case *wire.DownloadReject:
		err = h.dispatchDownloadReject(senderID, msg)
	case *wire.Ack:
		targetID = msg.Target
		msg.Sender = senderID
		err = h.forwardTo(msg.Target, msg)
	case *wire.Error:
		targetID = msg.Target
		msg.Sender = senderID
		err = h.forwardTo(msg.Target, msg)
	case *wire.ClientConnect:
		err = h.dispatchClientConnect(senderID, msg)
	case *wire.ClientDisconnect:
		h.removePeer(senderID)
	default:
		// Unknown-but-decodable message shapes are dropped silently; the
		// codec already rejects anything outside the closed Kind set.
	}

	h.trace.Dispatch(m.Kind(), senderID, targetID, err)
}

func (h *Hub) dispatchChat(senderID string, msg *wire.Chat) error {
	msg.Sender = senderID
	if msg.Target == "" {
		return h.broadcast(senderID, msg)
	}
	return h.forwardTo(msg.Target, msg)
}

// broadcast fans a message out to every peer except the sender. Failures
// to individual peers are aggregated and do not stop delivery to others.
func (h *Hub) broadcast(senderID string, m wire.Message) error {
	var agg error
	for _, p := range h.snapshotPeers() {
		if p.id == senderID {
			continue
		}
		if err := p.ep.Send(m); err != nil {
			agg = multierror.Append(agg, err)
		}
	}
	return agg
}

func (h *Hub) forwardTo(targetID string, m wire.Message) error {
	p, ok := h.getPeer(targetID)
	if !ok {
		return errUnknownTarget(targetID)
	}
	return p.ep.Send(m)
}

type errUnknownTarget string

func (e errUnknownTarget) Error() string { return "hub: unknown target peer " + string(e) }

func (h *Hub) dispatchFileStart(senderID string, msg *wire.FileStart) error {
	msg.Sender = senderID
	t, err := h.registry.Open(msg)
	if err != nil {
		h.sendError(senderID, "upload rejected: "+err.Error())
		return err
	}
	h.bus.Publish(events.Event{Kind: events.TransferStarted, TransferID: t.ID, PeerID: senderID})
	if err := h.forwardTo(msg.Target, msg); err != nil {
		h.sendError(senderID, "recipient unavailable: "+err.Error())
		return err
	}
	return nil
}

func (h *Hub) dispatchDownloadAccept(senderID string, msg *wire.DownloadAccept) error {
	t, err := h.registry.Accept(msg.TransferID)
	if err != nil {
		h.sendError(senderID, "accept failed: "+err.Error())
		return err
	}
	return h.forwardTo(t.SenderID, &wire.UploadConfirmed{
		Sender:     wire.ServerSenderID,
		TransferID: t.ID,
	})
}

func (h *Hub) dispatchDownloadReject(senderID string, msg *wire.DownloadReject) error {
	t, err := h.registry.Reject(msg.TransferID)
	if err != nil {
		h.sendError(senderID, "reject failed: "+err.Error())
		return err
	}
	return h.forwardTo(t.SenderID, &wire.FileEnd{
		Sender:       wire.ServerSenderID,
		Target:       t.SenderID,
		TransferID:   t.ID,
		Success:      false,
		ErrorMessage: "recipient declined the transfer",
	})
}

func (h *Hub) dispatchFileData(senderID string, msg *wire.FileData) error {
	msg.Sender = senderID
	result, t, err := h.registry.ObserveChunk(msg.TransferID, msg.Seq, len(msg.Data))
	if err != nil {
		h.sendError(senderID, "chunk rejected: "+err.Error())
		return err
	}

	if fwdErr := h.forwardTo(msg.Target, msg); fwdErr != nil {
		return fwdErr
	}

	_ = h.forwardTo(senderID, &wire.Ack{
		Sender:     wire.ServerSenderID,
		Target:     senderID,
		TransferID: msg.TransferID,
		Seq:        msg.Seq,
	})

	if result == transfer.ChunkComplete {
		h.bus.Publish(events.Event{Kind: events.TransferEnded, TransferID: t.ID, PeerID: senderID})
	}
	return nil
}

func (h *Hub) dispatchFileEnd(senderID string, msg *wire.FileEnd) error {
	msg.Sender = senderID
	if _, err := h.registry.Close(msg.TransferID, msg.Success); err != nil {
		// The transfer may already have been removed by a sweep or a
		// prior FILE_END; forward the frame regardless so the recipient
		// still learns the outcome.
		h.trace.Dispatch(msg.Kind(), senderID, msg.Target, err)
	}
	return h.forwardTo(msg.Target, msg)
}

func (h *Hub) dispatchClientConnect(senderID string, msg *wire.ClientConnect) error {
	h.peersMu.Lock()
	if p, ok := h.peers[senderID]; ok {
		p.displayName = msg.ClientName
	}
	h.peersMu.Unlock()
	return h.forwardTo(senderID, &wire.ClientIDResponse{Sender: wire.ServerSenderID, ClientID: senderID})
}

func (h *Hub) sendError(targetID string, description string) {
	_ = h.forwardTo(targetID, &wire.Error{
		Sender:      wire.ServerSenderID,
		Target:      targetID,
		Description: description,
	})
}
