// Package subscription implements Subscription: the OPC UA Part 4 §5.13
// publishing state machine, its MonitoredItems, notification assembly, and
// the availableMessages retransmission cache.
package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/project-nan/opcua-subs/common"
	"github.com/project-nan/opcua-subs/item"
	"github.com/project-nan/opcua-subs/servicereq"
	"github.com/project-nan/opcua-subs/uatypes"
)

// State is one of the five states of the Part 4 Table 87 state machine.
type State int

const (
	Closed State = iota
	Creating
	Normal
	Late
	KeepAlive
)

// String names a State for logging.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Creating:
		return "Creating"
	case Normal:
		return "Normal"
	case Late:
		return "Late"
	case KeepAlive:
		return "KeepAlive"
	default:
		return "Unknown"
	}
}

// Owner is the SubscriptionManager-side contract a Subscription calls back
// into. It is a stable interface handle, not an owning pointer, per the
// back-reference design: the Subscription never reaches into manager
// internals directly.
type Owner interface {
	// ClaimPublishRequest pops the oldest queued Publish request for this
	// subscription's session, if any.
	ClaimPublishRequest() (servicereq.ServiceRequest, bool)
	// AcknowledgeResultsFor returns and clears the per-ack StatusCodes
	// recorded against a Publish's requestHandle.
	AcknowledgeResultsFor(requestHandle uint32) []uatypes.StatusCode
	// NotifyStatusChange delivers an out-of-band StatusChangeNotification,
	// either immediately via a queued Publish or parked for later delivery.
	NotifyStatusChange(sub *Subscription, notification uatypes.StatusChangeNotification)
}

// CreateParams are the (already clamped-to-limits) parameters used to
// construct a Subscription.
type CreateParams struct {
	PublishingInterval         float64
	MaxKeepAliveCount          uint32
	LifetimeCount              uint32
	MaxNotificationsPerPublish uint32
	PublishingEnabled          bool
	Priority                   uint8
	RetentionCap               int
}

// Subscription is guarded by a single mutex: publishing ticks and
// service-request handlers (both invoked by the owning SubscriptionManager)
// serialize through it, satisfying the "per-subscription lock or actor
// mailbox" requirement via the lock option.
type Subscription struct {
	common.Component

	lock sync.Mutex

	id    uint32
	owner Owner

	publishingInterval         float64
	maxKeepAliveCount          uint32
	lifetimeCount              uint32
	maxNotificationsPerPublish uint32
	publishingEnabled          bool
	priority                   uint8

	state            State
	keepAliveCounter uint32
	lifetimeCounter  uint32
	sequenceNumber   uint32
	late             bool
	lateKeepAlive    bool

	items      map[uint32]*item.MonitoredItem
	nextItemID uint32

	messages *messageCache

	lastServedAt time.Time
	rrCursor     int

	timer   common.IntervalTimer
	onClose func(*Subscription)

	ctxt   context.Context
	cancel context.CancelFunc
}

// New constructs a Subscription in state Creating. The caller must call
// Start to begin the publishing timer. rootCtxt is the parent of the
// Subscription's own lifecycle context (returned by Context), which is
// cancelled the moment this Subscription closes -- CreateMonitoredItems/
// ModifyMonitoredItems derive their per-item Namespace futures from it so a
// future still in flight when the Subscription is deleted resolves against
// a cancelled context instead of silently installing an orphaned item.
func New(id uint32, params CreateParams, owner Owner, timer common.IntervalTimer, rootCtxt context.Context) *Subscription {
	lifetimeCount := params.LifetimeCount
	minLifetime := 3 * params.MaxKeepAliveCount
	if lifetimeCount < minLifetime {
		lifetimeCount = minLifetime
	}
	cap := params.RetentionCap
	if cap <= 0 {
		cap = 1024
	}
	ctxt, cancel := context.WithCancel(rootCtxt)
	return &Subscription{
		Component: common.Component{LogTags: log.Fields{
			"module": "subscription", "component": "Subscription", "subscription-id": id,
		}},
		id:                         id,
		owner:                      owner,
		publishingInterval:         params.PublishingInterval,
		maxKeepAliveCount:          params.MaxKeepAliveCount,
		lifetimeCount:              lifetimeCount,
		maxNotificationsPerPublish: params.MaxNotificationsPerPublish,
		publishingEnabled:          params.PublishingEnabled,
		priority:                   params.Priority,
		state:                      Creating,
		keepAliveCounter:           params.MaxKeepAliveCount,
		lifetimeCounter:            lifetimeCount,
		items:                      make(map[uint32]*item.MonitoredItem),
		messages:                   newMessageCache(cap),
		timer:                      timer,
		ctxt:                       ctxt,
		cancel:                     cancel,
	}
}

// Context returns this Subscription's lifecycle context, cancelled once it
// closes. CreateMonitoredItems/ModifyMonitoredItems watch it to abandon a
// still-in-flight Namespace future rather than install its result once the
// Subscription is gone.
func (s *Subscription) Context() context.Context {
	return s.ctxt
}

// ID returns the subscription's process-wide identifier.
func (s *Subscription) ID() uint32 { return s.id }

// State returns the subscription's current lifecycle state.
func (s *Subscription) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// PublishingInterval returns the subscription's current publishing interval,
// in milliseconds; used as the "inherit from publishing interval" sentinel
// value for MonitoredItems created with a negative requested sampling interval.
func (s *Subscription) PublishingInterval() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.publishingInterval
}

// ResetLifetimeCounter resets the lifetime and keep-alive counters to their
// configured maximums. ModifyMonitoredItems calls it after a successful
// modify, deferring expiry the same way consuming a Publish response does.
func (s *Subscription) ResetLifetimeCounter() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.lifetimeCounter = s.lifetimeCount
	s.keepAliveCounter = s.maxKeepAliveCount
}

// Priority returns the subscription's priority, for cross-subscription tie-breaking.
func (s *Subscription) Priority() uint8 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.priority
}

// LastServedAt returns when this subscription last consumed a Publish
// request, used as the round-robin tie-break among equal-priority siblings.
func (s *Subscription) LastServedAt() time.Time {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastServedAt
}

// SetOwner reassigns the Owner this subscription calls back into, used by
// ServerRegistry.Transfer to move a Subscription between sessions without
// reconstructing it.
func (s *Subscription) SetOwner(owner Owner) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.owner = owner
}

// SetCloseListener installs a callback invoked exactly once when the
// subscription transitions to Closed, whether from an explicit delete or
// from internal lifetime expiry.
func (s *Subscription) SetCloseListener(cb func(*Subscription)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.onClose = cb
}

// Start begins the publishing-interval timer.
func (s *Subscription) Start() error {
	return s.timer.Start(
		time.Duration(s.publishingInterval*float64(time.Millisecond)), s.tick, false,
	)
}

// AllocateItemID returns a fresh, subscription-scoped MonitoredItem id.
func (s *Subscription) AllocateItemID() uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.nextItemID++
	return s.nextItemID
}

// Snapshot is a point-in-time, read-only view of a Subscription's counters,
// for diagnostics reporting; it never exposes MonitoredItem contents.
type Snapshot struct {
	ID                 uint32
	State              string
	PublishingInterval float64
	MaxKeepAliveCount  uint32
	LifetimeCount      uint32
	KeepAliveCounter   uint32
	LifetimeCounter    uint32
	ItemCount          int
	PublishingEnabled  bool
	Priority           uint8
}

// Snapshot captures the subscription's current counters under its lock.
func (s *Subscription) Snapshot() Snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()
	return Snapshot{
		ID:                 s.id,
		State:              s.state.String(),
		PublishingInterval: s.publishingInterval,
		MaxKeepAliveCount:  s.maxKeepAliveCount,
		LifetimeCount:      s.lifetimeCount,
		KeepAliveCounter:   s.keepAliveCounter,
		LifetimeCounter:    s.lifetimeCounter,
		ItemCount:          len(s.items),
		PublishingEnabled:  s.publishingEnabled,
		Priority:           s.priority,
	}
}

// ModifyResult carries the revised publishing parameters after ModifySubscription.
type ModifyResult struct {
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

// Modify atomically updates timing/count parameters and restarts the
// publishing timer without discarding availableMessages or queued item data.
func (s *Subscription) Modify(params CreateParams) ModifyResult {
	s.lock.Lock()
	lifetimeCount := params.LifetimeCount
	minLifetime := 3 * params.MaxKeepAliveCount
	if lifetimeCount < minLifetime {
		lifetimeCount = minLifetime
	}
	s.publishingInterval = params.PublishingInterval
	s.maxKeepAliveCount = params.MaxKeepAliveCount
	s.lifetimeCount = lifetimeCount
	s.maxNotificationsPerPublish = params.MaxNotificationsPerPublish
	s.publishingEnabled = params.PublishingEnabled
	s.priority = params.Priority
	s.keepAliveCounter = params.MaxKeepAliveCount
	s.lifetimeCounter = lifetimeCount
	interval := s.publishingInterval
	s.lock.Unlock()

	_ = s.timer.Reset(time.Duration(interval * float64(time.Millisecond)))

	return ModifyResult{
		RevisedPublishingInterval: interval,
		RevisedLifetimeCount:      lifetimeCount,
		RevisedMaxKeepAliveCount:  params.MaxKeepAliveCount,
	}
}

// SetPublishingMode toggles whether this subscription emits data notifications.
func (s *Subscription) SetPublishingMode(enabled bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.publishingEnabled = enabled
}

// closeLocked transitions to Closed, stops the timer, and invokes the close
// listener. A non-Good reason (lifetime expiry's Bad_Timeout) is also reported
// to the owner as a StatusChangeNotification; an explicit Close(Good) is not.
// Must be called with s.lock held; it releases and reacquires the
// lock around the listener call since listeners may re-enter the manager.
func (s *Subscription) closeLocked(reason uatypes.StatusCode) {
	if s.state == Closed {
		return
	}
	s.state = Closed
	listener := s.onClose
	s.lock.Unlock()

	s.cancel()
	_ = s.timer.Stop()
	if reason != uatypes.Good {
		s.owner.NotifyStatusChange(s, uatypes.StatusChangeNotification{Status: reason})
	}
	if listener != nil {
		listener(s)
	}

	s.lock.Lock()
}

// Close transitions the subscription to Closed from outside the tick path
// (explicit DeleteSubscription, session close, or Transfer-away).
func (s *Subscription) Close(reason uatypes.StatusCode) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closeLocked(reason)
}
