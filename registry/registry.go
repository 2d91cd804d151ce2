// Package registry implements ServerRegistry: the server-wide index of
// Subscriptions (independent of which session currently owns each one) and
// the Transfer bookkeeping that lets a Subscription outlive the session
// that created it.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/nats-io/nats.go"
	"github.com/project-nan/opcua-subs/common"
	"github.com/project-nan/opcua-subs/namespace"
	"github.com/project-nan/opcua-subs/subscription"
	"github.com/project-nan/opcua-subs/uatypes"
)

// SessionOwner is the SubscriptionManager-side contract ServerRegistry
// calls into on Transfer. It is satisfied structurally by *manager.Manager
// without registry importing the manager package, avoiding an import cycle.
type SessionOwner interface {
	subscription.Owner
	// AdoptTransferredSubscription installs sub as owned by this session
	// and drives delivery of Good_SubscriptionTransferred via
	// sendStatusChangeNotification.
	AdoptTransferredSubscription(sub *subscription.Subscription)
}

// ServerRegistry is the cross-session index every SubscriptionManager
// registers its Subscriptions into and allocates subscription ids from.
type ServerRegistry interface {
	// NextSubscriptionID returns a fresh, process-wide unique subscription id.
	NextSubscriptionID() uint32
	// Register records sub as owned by owner.
	Register(sub *subscription.Subscription, owner SessionOwner)
	// Unregister removes sub's id from the index entirely (used when a
	// subscription is deleted with intent never to be transferred again).
	Unregister(id uint32)
	// Lookup finds a registered Subscription by id, regardless of owner.
	Lookup(id uint32) (*subscription.Subscription, bool)
	// Transfer reassigns ownership of subscription id to newOwner.
	Transfer(id uint32, newOwner SessionOwner) error
	// BroadcastStatusChange optionally publishes a StatusChangeNotification
	// to the configured NATS subject for diagnostics observers; a nil
	// publisher (EventBusConfig.Enabled=false) makes this a no-op.
	BroadcastStatusChange(subscriptionID uint32, notification uatypes.StatusChangeNotification)
	// Snapshot returns a point-in-time counters view of every registered
	// Subscription, regardless of owning session, for read-only diagnostics
	// reporting.
	Snapshot() []subscription.Snapshot
}

type entry struct {
	sub   *subscription.Subscription
	owner SessionOwner
}

type serverRegistryImpl struct {
	common.Component

	counter uint32

	lock    sync.RWMutex
	entries map[uint32]entry

	publisher *nats.Conn
	subject   string
}

// New constructs a ServerRegistry. publisher may be nil, in which case
// BroadcastStatusChange is a no-op; this keeps the core's Namespace/
// ServiceRequest boundary intact without requiring a running NATS server.
func New(publisher *nats.Conn, subject string) ServerRegistry {
	return &serverRegistryImpl{
		Component: common.Component{LogTags: log.Fields{
			"module": "registry", "component": "ServerRegistry",
		}},
		entries:   make(map[uint32]entry),
		publisher: publisher,
		subject:   subject,
	}
}

func (r *serverRegistryImpl) NextSubscriptionID() uint32 {
	return atomic.AddUint32(&r.counter, 1)
}

func (r *serverRegistryImpl) Register(sub *subscription.Subscription, owner SessionOwner) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.entries[sub.ID()] = entry{sub: sub, owner: owner}
}

func (r *serverRegistryImpl) Unregister(id uint32) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.entries, id)
}

func (r *serverRegistryImpl) Lookup(id uint32) (*subscription.Subscription, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.sub, true
}

func (r *serverRegistryImpl) Transfer(id uint32, newOwner SessionOwner) error {
	r.lock.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.lock.Unlock()
		return namespace.ErrStatusCode(uatypes.BadSubscriptionIDInvalid)
	}
	e.owner = newOwner
	r.entries[id] = e
	r.lock.Unlock()

	e.sub.SetOwner(newOwner)
	newOwner.AdoptTransferredSubscription(e.sub)
	return nil
}

func (r *serverRegistryImpl) Snapshot() []subscription.Snapshot {
	r.lock.RLock()
	defer r.lock.RUnlock()
	out := make([]subscription.Snapshot, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.sub.Snapshot())
	}
	return out
}

func (r *serverRegistryImpl) BroadcastStatusChange(
	subscriptionID uint32, notification uatypes.StatusChangeNotification,
) {
	if r.publisher == nil {
		return
	}
	payload := []byte(notification.Status.String())
	if err := r.publisher.Publish(r.subject, payload); err != nil {
		log.WithError(err).WithFields(r.LogTags).Error("Failed to broadcast status change")
	}
}
