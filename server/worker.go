package server

import (
	"fmt"
	"sync"
)

// request is a unit of work to run on the workspace goroutine.
type request struct {
	fn   func(*Workspace) any
	done chan result
}

type result struct {
	value any
	err   error
}

// Worker serializes all workspace access through a single goroutine.
// Tries and the heap are not safe for concurrent use, and the LSP
// handlers run on the connection's goroutines, so every handler must go
// through the worker.
type Worker struct {
	ws       *Workspace
	requests chan request
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(ws *Workspace) *Worker {
	w := &Worker{
		ws:       ws,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.stopped)
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			if err := w.ws.Close(); err != nil {
				log.Warningf("closing workspace: %s", err)
			}
			return
		}
	}
}

// execute runs fn on the workspace, recovering from panics.
func (w *Worker) execute(fn func(*Workspace) any) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("%v", r)
		}
	}()
	res.value = fn(w.ws)
	return res
}

// Do submits fn for execution on the workspace goroutine and blocks until
// it completes. A panic in fn is returned as an error.
func (w *Worker) Do(fn func(*Workspace) any) (any, error) {
	req := request{
		fn:   fn,
		done: make(chan result, 1),
	}
	select {
	case w.requests <- req:
	case <-w.stopped:
		return nil, ErrStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.stopped:
		return nil, ErrStopped
	}
}

// Stop shuts down the worker goroutine and closes the workspace. It waits
// for the goroutine to exit and may be called more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.stopped
}
