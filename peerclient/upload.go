package peerclient

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/filerelay/filerelay/integrity"
	"github.com/filerelay/filerelay/transfer"
	"github.com/filerelay/filerelay/wire"
)

// uploadTracker holds the confirmation channel for every FILE_START this
// client has sent but which the hub has not yet confirmed or terminated,
// keyed by transfer id.
type uploadTracker struct {
	mu sync.Mutex
	m  map[string]chan uploadSignal
}

type uploadSignal struct {
	confirmed bool
	err       error
}

func newUploadTracker() *uploadTracker { return &uploadTracker{m: make(map[string]chan uploadSignal)} }

func (t *uploadTracker) register(id string) chan uploadSignal {
	ch := make(chan uploadSignal, 1)
	t.mu.Lock()
	t.m[id] = ch
	t.mu.Unlock()
	return ch
}

func (t *uploadTracker) deliver(id string, sig uploadSignal) {
	t.mu.Lock()
	ch, ok := t.m[id]
	if ok {
		delete(t.m, id)
	}
	t.mu.Unlock()
	if ok {
		ch <- sig
	}
}

func (t *uploadTracker) forget(id string) {
	t.mu.Lock()
	delete(t.m, id)
	t.mu.Unlock()
}

func (c *Client) handleUploadConfirmed(msg *wire.UploadConfirmed) {
	c.uploads.deliver(msg.TransferID, uploadSignal{confirmed: true})
}

func (c *Client) handleAck(msg *wire.Ack) {
	// Acks carry no flow-control obligation for the sender (§9); present
	// for trace/diagnostic visibility only.
	c.trace.ChunkAcked(msg.TransferID, msg.Seq)
}

// Upload proposes filePath as a transfer to target and, once the hub
// confirms the recipient accepted, streams its contents as a sequence of
// FILE_DATA frames. It blocks until the transfer completes, is rejected,
// or PendingUploadTimeout elapses waiting for UPLOAD_CONFIRMED.
func (c *Client) Upload(ctx context.Context, target, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return errors.Wrap(err, "peerclient: open upload source")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "peerclient: stat upload source")
	}
	if info.Size() > c.cfg.MaxFileSize {
		return errors.Errorf("peerclient: %s exceeds the configured max file size of %d bytes", filePath, c.cfg.MaxFileSize)
	}
	if policy := c.cfg.UploadPolicy; policy != nil {
		if err := policy(filepath.Base(filePath), info.Size()); err != nil {
			return errors.Wrap(err, "peerclient: upload refused by policy")
		}
	}

	var source io.ReadSeeker = f
	sendSize := info.Size()
	if info.Size() >= c.cfg.CompressionThreshold {
		compressed, n, cerr := compressToTemp(f)
		if cerr == nil {
			defer os.Remove(compressed.Name())
			defer compressed.Close()
			source = compressed
			sendSize = n
			c.trace.Compressed(filePath, info.Size(), n)
		} else {
			c.trace.CompressionSkipped(filePath, cerr)
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return errors.Wrap(err, "peerclient: rewind upload source")
			}
		}
	}

	transferID := transfer.NewTransferID()
	confirmCh := c.uploads.register(transferID)

	if err := c.ep.Send(&wire.FileStart{
		Target:     target,
		TransferID: transferID,
		FileName:   filepath.Base(filePath),
		FileSize:   sendSize,
	}); err != nil {
		c.uploads.forget(transferID)
		return errors.Wrap(err, "peerclient: send FILE_START")
	}

	select {
	case sig := <-confirmCh:
		if !sig.confirmed {
			return sig.err
		}
	case <-time.After(c.cfg.PendingUploadTimeout):
		c.uploads.forget(transferID)
		return errors.Errorf("peerclient: transfer %s timed out waiting for confirmation", transferID)
	case <-ctx.Done():
		c.uploads.forget(transferID)
		return ctx.Err()
	}

	return c.streamChunks(ctx, target, transferID, source)
}

func (c *Client) streamChunks(ctx context.Context, target, transferID string, r io.Reader) error {
	buf := make([]byte, wire.ChunkSize)
	br := bufio.NewReaderSize(r, wire.ChunkSize)
	hasher := integrity.NewHasher()

	var seq int32
	for {
		if err := ctx.Err(); err != nil {
			c.abortUpload(target, transferID, err)
			return err
		}

		n, err := io.ReadFull(br, buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if sendErr := c.ep.Send(&wire.FileData{
				Target:     target,
				TransferID: transferID,
				Seq:        seq,
				Data:       append([]byte(nil), buf[:n]...),
			}); sendErr != nil {
				return errors.Wrap(sendErr, "peerclient: send FILE_DATA")
			}
			seq++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			c.abortUpload(target, transferID, err)
			return errors.Wrap(err, "peerclient: read upload chunk")
		}
	}

	return c.ep.Send(&wire.FileEnd{Target: target, TransferID: transferID, Success: true})
}

func (c *Client) abortUpload(target, transferID string, cause error) {
	_ = c.ep.Send(&wire.FileEnd{Target: target, TransferID: transferID, Success: false, ErrorMessage: cause.Error()})
}

func (c *Client) handleFileEnd(msg *wire.FileEnd) {
	c.downloads.complete(msg.TransferID, msg.Success, msg.ErrorMessage)
	c.uploads.deliver(msg.TransferID, uploadSignal{confirmed: false, err: errors.New(msg.ErrorMessage)})
}

// compressToTemp writes a zstd-compressed copy of r to a temp file and
// returns it positioned at the start, plus its compressed size.
func compressToTemp(r io.Reader) (*os.File, int64, error) {
	tmp, err := os.CreateTemp("", "filerelay-upload-*.zst")
	if err != nil {
		return nil, 0, err
	}

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, 0, err
	}
	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, 0, err
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, 0, err
	}

	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, 0, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, 0, err
	}
	return tmp, info.Size(), nil
}
