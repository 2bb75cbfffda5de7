package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/emergingrobotics/go-title/pkg/driver"
)

// TitleIP simulates the title accelerator.
//
// Command register writes are executed in order on a worker goroutine. Each
// load command stores the last stream received from the DMA engine in the
// BRAM slot for that command. Process composes the frame, SendFromBram
// streams it back through the DMA engine. Every command except Reset raises
// the command line when it finishes; Process also raises the frame line.
type TitleIP struct {
	Regs        *RegisterFile
	CommandLine *Line
	FrameLine   *Line

	delay       atomic.Int64
	dropCommand atomic.Bool
	dropFrame   atomic.Bool

	ops       chan func()
	closeOnce sync.Once
	done      chan struct{}

	mu       sync.Mutex
	inbox    []byte
	bram     map[uint32][]byte
	frame    []byte
	commands []uint32
	params   []uint32
	sender   func([]byte)
}

// NewTitleIP returns a running simulated title IP. Close stops it.
func NewTitleIP() *TitleIP {
	t := &TitleIP{
		Regs:        NewRegisterFile(),
		CommandLine: NewLine("title-command"),
		FrameLine:   NewLine("title-frame"),
		ops:         make(chan func(), 64),
		done:        make(chan struct{}),
		bram:        make(map[uint32][]byte),
	}
	t.Regs.SetHook(t.onWrite)
	go t.run()
	return t
}

// SetDelay sets how long each command takes
func (t *TitleIP) SetDelay(d time.Duration) {
	t.delay.Store(int64(d))
}

// DropCommandIRQ makes the IP stop raising the command line
func (t *TitleIP) DropCommandIRQ(drop bool) {
	t.dropCommand.Store(drop)
}

// DropFrameIRQ makes the IP stop raising the frame line
func (t *TitleIP) DropFrameIRQ(drop bool) {
	t.dropFrame.Store(drop)
}

// Close stops the worker
func (t *TitleIP) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

// Commands returns the command codes written so far
func (t *TitleIP) Commands() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uint32(nil), t.commands...)
}

// Parameters returns the parameter register writes so far
func (t *TitleIP) Parameters() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uint32(nil), t.params...)
}

// Bram returns a copy of the data loaded by the command with code
func (t *TitleIP) Bram(code uint32) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.bram[code]...)
}

// Frame returns a copy of the last composed frame
func (t *TitleIP) Frame() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.frame...)
}

// Receive queues a stream arriving from the DMA engine
func (t *TitleIP) Receive(data []byte) {
	t.enqueue(func() {
		t.mu.Lock()
		t.inbox = data
		t.mu.Unlock()
	})
}

func (t *TitleIP) connect(send func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sender = send
}

func (t *TitleIP) onWrite(offset, _, value uint32) uint32 {
	switch offset {
	case driver.TitleCommandRegister:
		t.mu.Lock()
		t.commands = append(t.commands, value)
		t.mu.Unlock()
		t.enqueue(func() { t.execute(value) })
	case driver.TitleParameterRegister:
		t.mu.Lock()
		t.params = append(t.params, value)
		t.mu.Unlock()
	}
	return value
}

func (t *TitleIP) enqueue(op func()) {
	select {
	case t.ops <- op:
	case <-t.done:
	}
}

func (t *TitleIP) run() {
	for {
		select {
		case op := <-t.ops:
			op()
		case <-t.done:
			return
		}
	}
}

func (t *TitleIP) execute(code uint32) {
	if d := time.Duration(t.delay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-t.done:
			return
		}
	}

	var out []byte
	t.mu.Lock()
	switch code {
	case driver.CmdReset:
		t.inbox = nil
		t.frame = nil
		clear(t.bram)
		t.mu.Unlock()
		return
	case driver.CmdProcessing:
		t.frame = t.compose()
	case driver.CmdSendFromBram:
		out = append([]byte(nil), t.frame...)
	case driver.CmdLoadLetterData, driver.CmdLoadLetterMatrix, driver.CmdLoadText,
		driver.CmdLoadPosition, driver.CmdLoadPhoto:
		t.bram[code] = t.inbox
		t.inbox = nil
	default:
		// unknown codes are ignored by the hardware
		t.mu.Unlock()
		return
	}
	send := t.sender
	t.mu.Unlock()

	if code == driver.CmdSendFromBram && send != nil {
		send(out)
	}
	if !t.dropCommand.Load() {
		t.CommandLine.Fire()
	}
	if code == driver.CmdProcessing && !t.dropFrame.Load() {
		t.FrameLine.Fire()
	}
}

// compose builds the output frame: the loaded photo with every byte of the
// letter matrix area inverted where a glyph word is set. Callers hold mu.
func (t *TitleIP) compose() []byte {
	photo := t.bram[driver.CmdLoadPhoto]
	frame := append([]byte(nil), photo...)
	matrix := t.bram[driver.CmdLoadLetterMatrix]
	for i := 0; i+1 < len(matrix) && i+1 < len(frame); i += 2 {
		if matrix[i] != 0 || matrix[i+1] != 0 {
			frame[i] = ^frame[i]
			frame[i+1] = ^frame[i+1]
		}
	}
	return frame
}
