package peerclient

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/filerelay/filerelay/fsnaming"
	"github.com/filerelay/filerelay/integrity"
	"github.com/filerelay/filerelay/wire"
)

type activeDownload struct {
	offer    DownloadOffer
	path     string
	f        *os.File
	hasher   *integrity.Hasher
	nextSeq  int32
	resultCh chan downloadResult
}

type downloadResult struct {
	success bool
	message string
	path    string
	digest  string
}

// downloadTracker holds pending offers awaiting a user decision and
// active (accepted) downloads awaiting their final chunk.
type downloadTracker struct {
	mu      sync.Mutex
	pending map[string]*DownloadOffer
	ordinal int
	active  map[string]*activeDownload
}

func newDownloadTracker() *downloadTracker {
	return &downloadTracker{
		pending: make(map[string]*DownloadOffer),
		active:  make(map[string]*activeDownload),
	}
}

func (c *Client) handleFileStart(msg *wire.FileStart) {
	c.downloads.mu.Lock()
	c.downloads.ordinal++
	offer := &DownloadOffer{
		TransferID: msg.TransferID,
		FileName:   msg.FileName,
		FileSize:   msg.FileSize,
		SenderID:   msg.Sender,
		Ordinal:    c.downloads.ordinal,
		offeredAt:  time.Now(),
	}
	c.downloads.pending[msg.TransferID] = offer
	c.downloads.mu.Unlock()

	c.trace.DownloadOffered(*offer)

	go c.expirePendingOffer(msg.TransferID, c.cfg.PendingDownloadTimeout)
}

func (c *Client) expirePendingOffer(transferID string, after time.Duration) {
	time.Sleep(after)
	c.downloads.mu.Lock()
	_, stillPending := c.downloads.pending[transferID]
	if stillPending {
		delete(c.downloads.pending, transferID)
	}
	c.downloads.mu.Unlock()
	if stillPending {
		c.trace.DownloadExpired(transferID)
	}
}

// PendingDownloads returns a snapshot of transfers awaiting an
// accept/reject decision.
func (c *Client) PendingDownloads() []DownloadOffer {
	c.downloads.mu.Lock()
	defer c.downloads.mu.Unlock()
	out := make([]DownloadOffer, 0, len(c.downloads.pending))
	for _, o := range c.downloads.pending {
		out = append(out, *o)
	}
	return out
}

// AcceptDownload accepts a pending transfer and arranges for its bytes
// to be written under the client's configured storage directory,
// returning the path they will be written to.
func (c *Client) AcceptDownload(transferID string) (string, error) {
	c.downloads.mu.Lock()
	offer, ok := c.downloads.pending[transferID]
	if ok {
		delete(c.downloads.pending, transferID)
	}
	c.downloads.mu.Unlock()
	if !ok {
		return "", errors.Errorf("peerclient: no pending download %s", transferID)
	}

	path, err := fsnaming.Resolve(c.cfg.StorageDir, offer.FileName)
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "peerclient: create download file")
	}

	c.downloads.mu.Lock()
	c.downloads.active[transferID] = &activeDownload{
		offer:    *offer,
		path:     path,
		f:        f,
		hasher:   integrity.NewHasher(),
		resultCh: make(chan downloadResult, 1),
	}
	c.downloads.mu.Unlock()

	if err := c.ep.Send(&wire.DownloadAccept{TransferID: transferID}); err != nil {
		c.abandonActiveDownload(transferID)
		return "", errors.Wrap(err, "peerclient: send DOWNLOAD_ACCEPT")
	}
	return path, nil
}

// RejectDownload declines a pending transfer.
func (c *Client) RejectDownload(transferID string) error {
	c.downloads.mu.Lock()
	_, ok := c.downloads.pending[transferID]
	if ok {
		delete(c.downloads.pending, transferID)
	}
	c.downloads.mu.Unlock()
	if !ok {
		return errors.Errorf("peerclient: no pending download %s", transferID)
	}
	return c.ep.Send(&wire.DownloadReject{TransferID: transferID})
}

func (c *Client) handleFileData(msg *wire.FileData) {
	c.downloads.mu.Lock()
	ad, ok := c.downloads.active[msg.TransferID]
	c.downloads.mu.Unlock()
	if !ok {
		return
	}

	if msg.Seq != ad.nextSeq {
		// Out-of-order delivery shouldn't happen over one TCP stream, but
		// don't abort the transfer over it: log and keep writing in the
		// order frames actually arrived.
		c.trace.ChunkOutOfOrder(msg.TransferID, ad.nextSeq, msg.Seq)
	}
	ad.nextSeq = msg.Seq + 1

	if _, err := ad.f.Write(msg.Data); err != nil {
		c.trace.DownloadWriteError(msg.TransferID, err)
		return
	}
	ad.hasher.Write(msg.Data)
}

func (c *Client) abandonActiveDownload(transferID string) {
	c.downloads.mu.Lock()
	ad, ok := c.downloads.active[transferID]
	if ok {
		delete(c.downloads.active, transferID)
	}
	c.downloads.mu.Unlock()
	if !ok {
		return
	}
	ad.f.Close()
	os.Remove(ad.path)
}

func (t *downloadTracker) complete(transferID string, success bool, message string) {
	t.mu.Lock()
	ad, ok := t.active[transferID]
	if ok {
		delete(t.active, transferID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	digest := ad.hasher.Sum()
	ad.f.Close()
	if !success {
		os.Remove(ad.path)
	}
	select {
	case ad.resultCh <- downloadResult{success: success, message: message, path: ad.path, digest: digest}:
	default:
	}
}
