// Package render drives a complete title render on top of the command
// dispatcher: it fills the transfer buffer, dispatches each load and reads
// the composed frame back.
package render

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/driver"
	"github.com/emergingrobotics/go-title/pkg/payload"
	"github.com/emergingrobotics/go-title/pkg/stream"
)

// Session loads payloads into the title IP through one dispatcher and its
// transfer buffer
type Session struct {
	dispatcher *control.Dispatcher
	buffer     *stream.TransferBuffer
	log        *slog.Logger
	mu         sync.Mutex
	closed     bool

	// held by Render for a whole job so concurrent jobs do not interleave
	jobMu sync.Mutex
}

// NewSession creates a session. A nil log selects slog.Default().
func NewSession(d *control.Dispatcher, buf *stream.TransferBuffer, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{dispatcher: d, buffer: buf, log: log}
}

// Reset resets the title IP
func (s *Session) Reset(ctx context.Context) error {
	return s.send(ctx, control.NewCommand(control.Reset, 0), nil)
}

// LoadLetterData loads the glyph table
func (s *Session) LoadLetterData(ctx context.Context, b []byte) error {
	return s.send(ctx, control.NewCommand(control.LoadLetterData, 0), b)
}

// LoadLetterMatrix loads the letter matrix for preset
func (s *Session) LoadLetterMatrix(ctx context.Context, preset control.Preset, b []byte) error {
	return s.send(ctx, control.NewCommand(control.LoadLetterMatrix, preset), b)
}

// LoadText loads s as UTF-16 text
func (s *Session) LoadText(ctx context.Context, text string) error {
	b, n, err := payload.EncodeText(text)
	if err != nil {
		return err
	}
	return s.send(ctx, control.NewTextCommand(n), b)
}

// LoadPosition loads the glyph position table
func (s *Session) LoadPosition(ctx context.Context, b []byte) error {
	return s.send(ctx, control.NewCommand(control.LoadPosition, 0), b)
}

// LoadPhoto scales img to preset and loads it as the background
func (s *Session) LoadPhoto(ctx context.Context, img image.Image, preset control.Preset) error {
	b, err := payload.EncodePhoto(img, preset)
	if err != nil {
		return err
	}
	return s.LoadPhotoBytes(ctx, b, preset)
}

// LoadPhotoBytes loads an already packed photo
func (s *Session) LoadPhotoBytes(ctx context.Context, b []byte, preset control.Preset) error {
	return s.send(ctx, control.NewCommand(control.LoadPhoto, preset), b)
}

// Process composes the loaded inputs into a frame
func (s *Session) Process(ctx context.Context, preset control.Preset) error {
	return s.send(ctx, control.NewCommand(control.Process, preset), nil)
}

// SetParameter writes the parameter register
func (s *Session) SetParameter(ctx context.Context, v uint32) error {
	return s.send(ctx, control.NewParameter(v), nil)
}

// ReadFrameBytes streams the composed frame back and returns a copy of it
func (s *Session) ReadFrameBytes(ctx context.Context, preset control.Preset) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dispatchLocked(ctx, control.NewCommand(control.SendFromBram, preset), nil); err != nil {
		return nil, err
	}
	// Dispatch only returns after command-done, so the S2MM data is in place
	view, err := s.buffer.Expose(preset.FrameBytes())
	if err != nil {
		return nil, err
	}
	frame := make([]byte, len(view))
	copy(frame, view)
	s.log.Debug("frame read", "preset", int(preset), "bytes", len(frame), "crc8", payload.Checksum(frame))
	return frame, nil
}

// ReadFrame streams the composed frame back and decodes it
func (s *Session) ReadFrame(ctx context.Context, preset control.Preset) (*image.NRGBA64, error) {
	b, err := s.ReadFrameBytes(ctx, preset)
	if err != nil {
		return nil, err
	}
	return payload.DecodeFrame(b, preset)
}

// Send dispatches req with data copied into the transfer buffer first
func (s *Session) Send(ctx context.Context, req control.Request, data []byte) error {
	return s.send(ctx, req, data)
}

// Status returns the frame-done status line
func (s *Session) Status() string {
	return s.dispatcher.Status()
}

// Close ends the session. The dispatcher and buffer stay with their owner.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) send(ctx context.Context, req control.Request, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(ctx, req, data)
}

func (s *Session) dispatchLocked(ctx context.Context, req control.Request, data []byte) error {
	if s.closed {
		return ErrSessionClosed
	}

	if err := checkPayload(req, data); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := s.buffer.WriteAt(data, 0); err != nil {
			return err
		}
		s.log.Debug("payload staged", "request", req.String(), "bytes", len(data), "crc8", payload.Checksum(data))
	}
	return s.dispatcher.Dispatch(ctx, req)
}

// checkPayload verifies data matches the transfer req will start. Requests
// the dispatcher would reject are refused here so nothing is staged for them.
func checkPayload(req control.Request, data []byte) error {
	if req.Target != control.TargetCommand {
		if len(data) > 0 {
			return driver.NewError(driver.StatusInvalidArgument,
				fmt.Sprintf("%s request carries a %d byte payload", req.Target, len(data)))
		}
		return nil
	}
	kind, err := control.ParseCommandKind(req.Code)
	if err != nil {
		return err
	}
	xfer, err := control.SizeFor(kind, req.Preset, req.Side)
	if err != nil {
		return err
	}
	if xfer.Direction != driver.DmaToDevice {
		return nil
	}
	if len(data) != xfer.Length {
		return driver.NewError(driver.StatusInvalidArgument,
			fmt.Sprintf("%s payload is %d bytes, expected %d", kind, len(data), xfer.Length))
	}
	return nil
}
