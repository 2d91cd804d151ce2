// Package manager implements SubscriptionManager: the per-session registry
// that dispatches every subscription-related service request, owns the
// session's PublishQueue, and bridges to the server-wide ServerRegistry and
// the Namespace collaborator.
package manager

import (
	"context"
	"reflect"
	"sync"

	"github.com/apex/log"
	"github.com/project-nan/opcua-subs/common"
	"github.com/project-nan/opcua-subs/namespace"
	"github.com/project-nan/opcua-subs/queue"
	"github.com/project-nan/opcua-subs/registry"
	"github.com/project-nan/opcua-subs/servicereq"
	"github.com/project-nan/opcua-subs/subscription"
	"github.com/project-nan/opcua-subs/uatypes"
)

// Manager is one session's SubscriptionManager. It implements
// subscription.Owner (each owned Subscription calls back into it) and
// registry.SessionOwner (ServerRegistry calls back into it on Transfer).
type Manager struct {
	common.Component

	sessionID string
	rootCtxt  context.Context
	wg        *sync.WaitGroup

	limits common.SubscriptionLimits
	ns     namespace.Namespace
	reg    registry.ServerRegistry

	lock          sync.RWMutex
	subscriptions map[uint32]*subscription.Subscription
	transferred   []*subscription.Subscription
	ackResults    map[uint32][]uatypes.StatusCode

	publishQueue queue.PublishQueue

	// revisionFanIn serializes Namespace sampling-revision-future completions
	// (arriving on whatever goroutine the Namespace chooses) back onto a
	// single mailbox goroutine, so per-call completion counting needs no
	// extra locking beyond what the mailbox already gives it.
	revisionFanIn common.TaskProcessor
	// bucketNotifier runs the onDataItemsCreated/Modified/Deleted and
	// onEventItems* lifecycle notifications on a worker pool, one task per
	// item kind (Data, Event) per call. Items are not split by namespace
	// index: each call carries items of every namespace index together.
	bucketNotifier common.TaskProcessor
}

// mailboxTask is the single task-param type both of the Manager's
// TaskProcessors execute: it carries an arbitrary closure to run on the
// mailbox goroutine, rather than keying dispatch off the task param's own
// type the way the teacher's dispatch package does for NATS messages.
type mailboxTask struct {
	run func()
}

func (m *Manager) runOnMailbox(tp common.TaskProcessor, fn func()) error {
	return tp.Submit(mailboxTask{run: fn}, m.rootCtxt)
}

func mailboxExecutionMap() map[reflect.Type]common.TaskHandler {
	return map[reflect.Type]common.TaskHandler{
		reflect.TypeOf(mailboxTask{}): func(param interface{}) error {
			param.(mailboxTask).run()
			return nil
		},
	}
}

// Start launches the Manager's two background mailboxes. It must be called
// once before any CreateMonitoredItems/ModifyMonitoredItems request is
// dispatched to this Manager.
func (m *Manager) Start() error {
	if err := m.revisionFanIn.SetTaskExecutionMap(mailboxExecutionMap()); err != nil {
		return err
	}
	if err := m.bucketNotifier.SetTaskExecutionMap(mailboxExecutionMap()); err != nil {
		return err
	}
	if err := m.revisionFanIn.StartEventLoop(m.wg); err != nil {
		return err
	}
	return m.bucketNotifier.StartEventLoop(m.wg)
}

// Stop halts the Manager's background mailboxes.
func (m *Manager) Stop() {
	_ = m.revisionFanIn.StopEventLoop()
	_ = m.bucketNotifier.StopEventLoop()
}

// New constructs a Manager for one session. ns and reg must be non-nil; a
// nil registry.ServerRegistry is a programming error, not an optional dependency
// (unlike the registry's own optional NATS publisher).
func New(
	sessionID string, limits common.SubscriptionLimits,
	ns namespace.Namespace, reg registry.ServerRegistry,
	rootCtxt context.Context, wg *sync.WaitGroup,
) (*Manager, error) {
	revisionFanIn, err := common.GetNewTaskProcessorInstance(
		"manager."+sessionID+".revisions", 64, rootCtxt,
	)
	if err != nil {
		return nil, err
	}
	bucketNotifier, err := common.GetNewTaskDemuxProcessorInstance(
		"manager."+sessionID+".notify", 64, 4, rootCtxt,
	)
	if err != nil {
		return nil, err
	}
	return &Manager{
		Component: common.Component{LogTags: log.Fields{
			"module": "manager", "component": "SubscriptionManager", "session-id": sessionID,
		}},
		sessionID:      sessionID,
		rootCtxt:       rootCtxt,
		wg:             wg,
		limits:         limits,
		ns:             ns,
		reg:            reg,
		subscriptions:  make(map[uint32]*subscription.Subscription),
		ackResults:     make(map[uint32][]uatypes.StatusCode),
		publishQueue:   queue.New(),
		revisionFanIn:  revisionFanIn,
		bucketNotifier: bucketNotifier,
	}, nil
}

// ==========================================================================
// subscription.Owner

// ClaimPublishRequest implements subscription.Owner.
func (m *Manager) ClaimPublishRequest() (servicereq.ServiceRequest, bool) {
	return m.publishQueue.Poll()
}

// AcknowledgeResultsFor implements subscription.Owner.
func (m *Manager) AcknowledgeResultsFor(requestHandle uint32) []uatypes.StatusCode {
	m.lock.Lock()
	defer m.lock.Unlock()
	results := m.ackResults[requestHandle]
	delete(m.ackResults, requestHandle)
	return results
}

// NotifyStatusChange implements subscription.Owner by delegating to the
// public sendStatusChangeNotification contract.
func (m *Manager) NotifyStatusChange(sub *subscription.Subscription, n uatypes.StatusChangeNotification) {
	m.sendStatusChangeNotification(sub, n)
}

// ==========================================================================
// registry.SessionOwner

// AdoptTransferredSubscription implements registry.SessionOwner.
func (m *Manager) AdoptTransferredSubscription(sub *subscription.Subscription) {
	m.lock.Lock()
	m.subscriptions[sub.ID()] = sub
	m.lock.Unlock()
	m.sendStatusChangeNotification(sub, uatypes.StatusChangeNotification{
		Status: uatypes.GoodSubscriptionTransferred,
	})
}

// sendStatusChangeNotification delivers a StatusChangeNotification through
// the next available Publish request, parking it in `transferred` if none
// is available, per §4.4.
func (m *Manager) sendStatusChangeNotification(sub *subscription.Subscription, n uatypes.StatusChangeNotification) {
	req, ok := m.publishQueue.Poll()
	m.reg.BroadcastStatusChange(sub.ID(), n)
	if !ok {
		m.lock.Lock()
		m.transferred = append(m.transferred, sub)
		m.lock.Unlock()
		return
	}
	req.SetResponse(uatypes.PublishResponse{
		SubscriptionID: sub.ID(),
		NotificationMessage: uatypes.NotificationMessage{
			NotificationData: []uatypes.NotificationData{{StatusChange: &n}},
		},
	})
}

// SessionClosed removes each of this session's subscriptions from its own
// map; if deleteSubscriptions, they are also closed and removed from the
// server-wide registry (otherwise they remain discoverable for Transfer).
// The subscriptions' close listeners are not detached.
func (m *Manager) SessionClosed(deleteSubscriptions bool) {
	m.lock.Lock()
	ids := make([]uint32, 0, len(m.subscriptions))
	for id := range m.subscriptions {
		ids = append(ids, id)
	}
	m.subscriptions = make(map[uint32]*subscription.Subscription)
	m.lock.Unlock()

	for _, id := range ids {
		if deleteSubscriptions {
			if sub, ok := m.reg.Lookup(id); ok {
				sub.Close(uatypes.Good)
			}
			m.reg.Unregister(id)
		}
	}
}

func (m *Manager) logNamespaceError(callback string, err error) {
	log.WithError(err).WithFields(m.LogTags).WithField("callback", callback).
		Error("Namespace lifecycle callback failed")
}

func clampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
