package control

// Handler services one interrupt. Handlers run on the interrupt service
// goroutine: they do O(1) work, never block, never allocate and never start
// a transfer.
type Handler func()

// Acknowledger clears a DMA channel's interrupt status
type Acknowledger interface {
	Acknowledge() uint32
}

// CommandDoneHandler returns the handler for the title IP command-done line
func (d *Dispatcher) CommandDoneHandler() Handler {
	return d.command.Signal
}

// FrameDoneHandler returns the handler for the title IP frame-done line
func (d *Dispatcher) FrameDoneHandler() Handler {
	return d.frame.Signal
}

// DmaHandler returns the completion/error handler of one DMA channel. It
// only acknowledges the channel: the dispatcher waits on the title IP's own
// completion lines, not on the DMA engine.
func DmaHandler(ch Acknowledger) Handler {
	return func() {
		ch.Acknowledge()
	}
}
