package render

import (
	"context"
	"image"
	"sync"
)

// AsyncCallback is called when an async render completes
type AsyncCallback func(frame *image.NRGBA64, err error)

// AsyncRequest represents an async render request
type AsyncRequest struct {
	ID       uint64
	Job      Job
	Callback AsyncCallback
	Done     chan struct{}
}

// AsyncSession queues renders on a Session. The title IP renders one job at
// a time; queued jobs wait for a worker slot and then for the session.
type AsyncSession struct {
	session    *Session
	ctx        context.Context
	pending    map[uint64]*AsyncRequest
	nextID     uint64
	mu         sync.Mutex
	workerPool chan struct{}
	closed     bool
}

// NewAsyncSession creates an async session with numWorkers queue slots
func NewAsyncSession(ctx context.Context, session *Session, numWorkers int) *AsyncSession {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &AsyncSession{
		session:    session,
		ctx:        ctx,
		pending:    make(map[uint64]*AsyncRequest),
		workerPool: make(chan struct{}, numWorkers),
	}
}

// RenderAsync submits a render request
func (as *AsyncSession) RenderAsync(job Job, callback AsyncCallback) uint64 {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.closed {
		callback(nil, ErrSessionClosed)
		return 0
	}

	as.nextID++
	id := as.nextID

	req := &AsyncRequest{
		ID:       id,
		Job:      job,
		Callback: callback,
		Done:     make(chan struct{}),
	}
	as.pending[id] = req

	go as.processRequest(req)

	return id
}

func (as *AsyncSession) processRequest(req *AsyncRequest) {
	as.workerPool <- struct{}{}
	defer func() { <-as.workerPool }()

	frame, err := as.session.Render(as.ctx, req.Job)
	req.Callback(frame, err)

	as.mu.Lock()
	delete(as.pending, req.ID)
	as.mu.Unlock()

	close(req.Done)
}

// Wait waits for a specific request to complete
func (as *AsyncSession) Wait(id uint64) {
	as.mu.Lock()
	req, ok := as.pending[id]
	as.mu.Unlock()

	if !ok {
		return
	}
	<-req.Done
}

// WaitAll waits for all pending requests to complete
func (as *AsyncSession) WaitAll() {
	as.mu.Lock()
	pending := make([]*AsyncRequest, 0, len(as.pending))
	for _, req := range as.pending {
		pending = append(pending, req)
	}
	as.mu.Unlock()

	for _, req := range pending {
		<-req.Done
	}
}

// Close stops accepting requests and waits for the queued ones
func (as *AsyncSession) Close() error {
	as.mu.Lock()
	as.closed = true
	as.mu.Unlock()

	as.WaitAll()
	return nil
}

// PendingCount returns the number of pending requests
func (as *AsyncSession) PendingCount() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return len(as.pending)
}
