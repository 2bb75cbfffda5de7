// Package titlefs exposes the title IP as a FUSE filesystem with two files.
//
// Writing "code,arg,target" lines to title-ip dispatches requests; reading
// it returns the frame-done status. dma is the transfer buffer: reads return
// all of it, writes stage a payload at offset 0.
package titlefs

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"time"

	"rsc.io/rsc/fuse"

	"github.com/emergingrobotics/go-title/pkg/control"
	"github.com/emergingrobotics/go-title/pkg/driver"
)

// File names in the filesystem root
const (
	CommandFileName = "title-ip"
	BufferFileName  = "dma"
)

// Dispatcher executes requests and reports the frame status
type Dispatcher interface {
	Dispatch(ctx context.Context, req control.Request) error
	Status() string
}

// Buffer is the transfer buffer
type Buffer interface {
	Expose(n int) ([]byte, error)
	WriteAt(p []byte, off int64) (int, error)
	Cap() int
}

// FS implements the file system and the root dir Node.
type FS struct {
	dispatcher Dispatcher
	buffer     Buffer
	log        *slog.Logger
	mtime      time.Time
}

// New returns a filesystem serving d and buf
func New(d Dispatcher, buf Buffer, log *slog.Logger) *FS {
	if log == nil {
		log = slog.Default()
	}
	return &FS{dispatcher: d, buffer: buf, log: log, mtime: time.Now()}
}

func (f *FS) Root() (fuse.Node, fuse.Error) {
	return f, nil
}

func (f *FS) Attr() fuse.Attr {
	return fuse.Attr{
		Mode:  os.ModeDir | 0555,
		Mtime: f.mtime,
	}
}

func (f *FS) Lookup(name string, intr fuse.Intr) (fuse.Node, fuse.Error) {
	switch name {
	case CommandFileName:
		return &commandFile{f}, nil
	case BufferFileName:
		return &bufferFile{f}, nil
	default:
		return nil, fuse.ENOENT
	}
}

func (f *FS) ReadDir(intr fuse.Intr) ([]fuse.Dirent, fuse.Error) {
	return []fuse.Dirent{
		{Name: CommandFileName},
		{Name: BufferFileName},
	}, nil
}

// WriteCommands dispatches every non-empty line of data in order and stops
// at the first failure
func (f *FS) WriteCommands(ctx context.Context, data []byte) error {
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(bytes.TrimRight(line, "\x00"))
		if len(line) == 0 {
			continue
		}
		req, err := control.ParseRequest(string(line))
		if err != nil {
			return err
		}
		if err := f.dispatcher.Dispatch(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// ReadStatus returns the frame-done status line
func (f *FS) ReadStatus() []byte {
	return []byte(f.dispatcher.Status())
}

// ReadBuffer returns a copy of the whole transfer buffer
func (f *FS) ReadBuffer() ([]byte, error) {
	view, err := f.buffer.Expose(0)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(view), nil
}

// WriteBuffer stages data at the start of the transfer buffer. Data larger
// than the buffer is rejected whole.
func (f *FS) WriteBuffer(data []byte) error {
	if len(data) > f.buffer.Cap() {
		return driver.NewError(driver.StatusTransferOverrun, "staging payload")
	}
	_, err := f.buffer.WriteAt(data, 0)
	return err
}

// commandFile is the title-ip file
type commandFile struct {
	fs *FS
}

func (c *commandFile) Attr() fuse.Attr {
	return fuse.Attr{
		Mode:  0666,
		Mtime: c.fs.mtime,
		Size:  uint64(len(c.fs.ReadStatus())),
	}
}

func (c *commandFile) ReadAll(intr fuse.Intr) ([]byte, fuse.Error) {
	return c.fs.ReadStatus(), nil
}

func (c *commandFile) WriteAll(data []byte, intr fuse.Intr) fuse.Error {
	ctx, cancel := intrContext(intr)
	defer cancel()

	if err := c.fs.WriteCommands(ctx, data); err != nil {
		c.fs.log.Warn("command write failed", "err", err)
		return fuse.EIO
	}
	return nil
}

func (c *commandFile) Fsync(req *fuse.FsyncRequest, intr fuse.Intr) fuse.Error {
	return nil
}

// bufferFile is the dma file
type bufferFile struct {
	fs *FS
}

func (b *bufferFile) Attr() fuse.Attr {
	return fuse.Attr{
		Mode:  0666,
		Mtime: b.fs.mtime,
		Size:  uint64(b.fs.buffer.Cap()),
	}
}

func (b *bufferFile) ReadAll(intr fuse.Intr) ([]byte, fuse.Error) {
	data, err := b.fs.ReadBuffer()
	if err != nil {
		return nil, fuse.EIO
	}
	return data, nil
}

func (b *bufferFile) WriteAll(data []byte, intr fuse.Intr) fuse.Error {
	if err := b.fs.WriteBuffer(data); err != nil {
		b.fs.log.Warn("buffer write failed", "bytes", len(data), "err", err)
		return fuse.EIO
	}
	return nil
}

func (b *bufferFile) Fsync(req *fuse.FsyncRequest, intr fuse.Intr) fuse.Error {
	return nil
}

// intrContext returns a context cancelled when the kernel interrupts the
// request
func intrContext(intr fuse.Intr) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-intr:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
