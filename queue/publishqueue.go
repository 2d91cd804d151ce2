// Package queue implements PublishQueue: the FIFO of pending Publish
// service requests a SubscriptionManager holds for its session's
// Subscriptions to claim from.
package queue

import (
	"context"
	"sync"

	"github.com/project-nan/opcua-subs/servicereq"
)

// PublishQueue is a FIFO of outstanding Publish requests. A Subscription's
// publishing-timer tick claims requests through Poll (via its Owner) without
// blocking; Wait blocks until a request arrives, for callers that want that.
type PublishQueue interface {
	// AddRequest appends req and wakes any goroutine blocked in Wait.
	AddRequest(req servicereq.ServiceRequest)
	// Poll non-blockingly dequeues the oldest request, if any.
	Poll() (servicereq.ServiceRequest, bool)
	// IsNotEmpty reports whether a Poll would currently succeed.
	IsNotEmpty() bool
	// Wait blocks until either a request is available or ctxt is done,
	// returning false in the latter case.
	Wait(ctxt context.Context) bool
	// Len reports the current queue length, for diagnostics.
	Len() int
}

// New constructs an empty PublishQueue.
func New() PublishQueue {
	return &publishQueueImpl{wake: make(chan struct{}, 1)}
}

// publishQueueImpl protects entries with a mutex for the FIFO operations
// (Poll/Len/IsNotEmpty need index access a channel alone can't give), and
// layers a single buffered "wake" channel on top for Wait, following the
// same select-driven wait/notify shape as common.IntervalTimer and
// dispatch.MessageDispatch's drain-with-select loops rather than a
// sync.Cond.
type publishQueueImpl struct {
	lock    sync.Mutex
	entries []servicereq.ServiceRequest
	wake    chan struct{}
}

func (q *publishQueueImpl) AddRequest(req servicereq.ServiceRequest) {
	q.lock.Lock()
	q.entries = append(q.entries, req)
	q.lock.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
		// a wakeup is already pending; the next Wait loop will re-check
		// IsNotEmpty regardless, so a dropped signal here is harmless.
	}
}

func (q *publishQueueImpl) Poll() (servicereq.ServiceRequest, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.entries) == 0 {
		return nil, false
	}
	req := q.entries[0]
	q.entries = q.entries[1:]
	return req, true
}

func (q *publishQueueImpl) IsNotEmpty() bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.entries) > 0
}

func (q *publishQueueImpl) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.entries)
}

// Wait blocks until AddRequest wakes it or ctxt is done. It re-checks
// IsNotEmpty after every wakeup rather than trusting the signal alone,
// since a wakeup can be consumed by a different Wait call than the one it
// was meant for.
func (q *publishQueueImpl) Wait(ctxt context.Context) bool {
	for {
		if q.IsNotEmpty() {
			return true
		}
		select {
		case <-q.wake:
		case <-ctxt.Done():
			return false
		}
	}
}
