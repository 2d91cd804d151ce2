package common

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
)

// TimeoutHandler handler callback on timeout
type TimeoutHandler func() error

// IntervalTimer support class for triggering events at specific intervals
type IntervalTimer interface {
	Start(interval time.Duration, handler TimeoutHandler, oneShort bool) error
	// Reset changes the running loop's interval in place, without tearing
	// down and re-standing the timer goroutine. ModifySubscription revises a
	// Subscription's publishing interval this way. The next tick fires one
	// full new interval after the reset; time elapsed since the last tick is
	// not carried over.
	Reset(interval time.Duration) error
	Stop() error
}

// intervalTimerImpl implements IntervalTimer
type intervalTimerImpl struct {
	Component
	rootContext      context.Context
	operationContext context.Context
	contextCancel    context.CancelFunc
	wg               *sync.WaitGroup
	resetInterval    chan time.Duration
}

// GetIntervalTimerInstance create new interval timer instance
func GetIntervalTimerInstance(
	name string, rootCtxt context.Context, wg *sync.WaitGroup,
) (IntervalTimer, error) {
	logTags := log.Fields{
		"module": "common", "component": "interval-timer", "instance": name,
	}
	return &intervalTimerImpl{
		Component:        Component{LogTags: logTags},
		rootContext:      rootCtxt,
		operationContext: nil,
		contextCancel:    nil,
		wg:               wg,
		resetInterval:    make(chan time.Duration, 1),
	}, nil
}

// Start start the interval timer
func (t *intervalTimerImpl) Start(
	interval time.Duration, handler TimeoutHandler, oneShot bool,
) error {
	log.WithFields(t.LogTags).Infof("Starting with int %s", interval)
	t.wg.Add(1)
	ctxt, cancel := context.WithCancel(t.rootContext)
	t.operationContext = ctxt
	t.contextCancel = cancel
	go func() {
		defer t.wg.Done()
		defer log.WithFields(t.LogTags).Info("Timer loop exiting")

		current := interval
		clock := time.NewTimer(current)
		defer clock.Stop()

		finished := false
		for !finished {
			select {
			case <-t.operationContext.Done():
				finished = true

			case next := <-t.resetInterval:
				current = next
				if !clock.Stop() {
					<-clock.C
				}
				clock.Reset(current)
				log.WithFields(t.LogTags).Debugf("Interval changed to %s", current)

			case <-clock.C:
				log.WithFields(t.LogTags).Debug("Calling handler")
				if err := handler(); err != nil {
					log.WithError(err).WithFields(t.LogTags).Error("Handler failed")
				}
				if oneShot {
					return
				}
				clock.Reset(current)
			}
		}
	}()
	return nil
}

// Reset changes the interval of an already-running timer loop.
func (t *intervalTimerImpl) Reset(interval time.Duration) error {
	if t.contextCancel == nil {
		return fmt.Errorf("timer '%s' has not been started", t.LogTags["instance"])
	}
	select {
	case t.resetInterval <- interval:
	default:
		// drop a still-unconsumed reset in favor of the newest requested value
		select {
		case <-t.resetInterval:
		default:
		}
		t.resetInterval <- interval
	}
	return nil
}

// Stop stop the interval timer
func (t *intervalTimerImpl) Stop() error {
	if t.contextCancel != nil {
		log.WithFields(t.LogTags).Info("Stopping timer loop")
		t.contextCancel()
	}
	return nil
}
