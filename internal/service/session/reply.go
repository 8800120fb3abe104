package session

import (
	"context"
	"sync"
)

// Response is the single payload delivered to a waiting caller.
type Response struct {
	Code int
	Body any
}

// Reply is a one-shot response sink. Only the first Send is delivered.
type Reply interface {
	Send(code int, body any) bool
	Sent() bool
}

// PendingReply is a Reply a request handler can wait on.
type PendingReply struct {
	mu   sync.Mutex
	sent bool
	ch   chan Response
}

// NewReply creates an unsent PendingReply.
func NewReply() *PendingReply {
	return &PendingReply{ch: make(chan Response, 1)}
}

// Send delivers the response unless one was already sent or the waiter
// gave up. It reports whether the response was accepted.
func (r *PendingReply) Send(code int, body any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return false
	}
	r.sent = true
	r.ch <- Response{Code: code, Body: body}
	return true
}

// Sent reports whether the reply can no longer be delivered.
func (r *PendingReply) Sent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// Wait blocks until a response is sent or ctx ends. When ctx ends first
// the reply is marked sent so later deliveries are refused.
func (r *PendingReply) Wait(ctx context.Context) (Response, bool) {
	select {
	case resp := <-r.ch:
		return resp, true
	case <-ctx.Done():
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.sent {
			select {
			case resp := <-r.ch:
				return resp, true
			default:
			}
		}
		r.sent = true
		return Response{}, false
	}
}
