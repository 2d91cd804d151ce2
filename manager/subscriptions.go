package manager

import (
	"fmt"

	"github.com/project-nan/opcua-subs/common"
	"github.com/project-nan/opcua-subs/servicereq"
	"github.com/project-nan/opcua-subs/subscription"
	"github.com/project-nan/opcua-subs/uatypes"
)

func (m *Manager) effectiveLifetimeCount(requested, maxKeepAlive uint32) uint32 {
	minLifetime := m.limits.KeepAliveLifetime.MinLifetimeToKeepAliveRatio * maxKeepAlive
	if requested < minLifetime {
		return minLifetime
	}
	return requested
}

func (m *Manager) effectiveMaxKeepAlive(requested uint32) uint32 {
	if requested == 0 {
		return m.limits.KeepAliveLifetime.DefaultMaxKeepAliveCount
	}
	return requested
}

// CreateSubscription implements the createSubscription service: clamp
// intervals/counts to server limits, construct the Subscription, register
// it in both the per-session and server-wide maps, install a close-listener
// that de-registers it, and start its publishing timer.
func (m *Manager) CreateSubscription(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.CreateSubscriptionRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}

	if m.limits.MaxSubscriptionsPerSession > 0 {
		m.lock.RLock()
		count := len(m.subscriptions)
		m.lock.RUnlock()
		if count >= m.limits.MaxSubscriptionsPerSession {
			req.SetServiceFault(uatypes.BadInternalError)
			return
		}
	}

	publishingInterval := clampFloat(
		body.RequestedPublishingInterval,
		m.limits.PublishingInterval.MinMillis, m.limits.PublishingInterval.MaxMillis,
	)
	maxKeepAlive := m.effectiveMaxKeepAlive(body.RequestedMaxKeepAliveCount)
	lifetimeCount := m.effectiveLifetimeCount(body.RequestedLifetimeCount, maxKeepAlive)

	id := m.reg.NextSubscriptionID()
	timer, err := common.GetIntervalTimerInstance(fmt.Sprintf("subscription-%d", id), m.rootCtxt, m.wg)
	if err != nil {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}

	sub := subscription.New(id, subscription.CreateParams{
		PublishingInterval:         publishingInterval,
		MaxKeepAliveCount:          maxKeepAlive,
		LifetimeCount:              lifetimeCount,
		MaxNotificationsPerPublish: body.MaxNotificationsPerPublish,
		PublishingEnabled:          body.PublishingEnabled,
		Priority:                   body.Priority,
		RetentionCap:               m.limits.AvailableMessagesRetentionCap,
	}, m, timer, m.rootCtxt)

	sub.SetCloseListener(func(closed *subscription.Subscription) {
		m.lock.Lock()
		delete(m.subscriptions, closed.ID())
		m.lock.Unlock()
		m.reg.Unregister(closed.ID())
	})

	m.lock.Lock()
	m.subscriptions[id] = sub
	m.lock.Unlock()
	m.reg.Register(sub, m)

	if err := sub.Start(); err != nil {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}

	req.SetResponse(uatypes.CreateSubscriptionResponse{
		SubscriptionID:            id,
		RevisedPublishingInterval: publishingInterval,
		RevisedLifetimeCount:      lifetimeCount,
		RevisedMaxKeepAliveCount:  maxKeepAlive,
	})
}

func (m *Manager) lookupOwned(id uint32) (*subscription.Subscription, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	sub, ok := m.subscriptions[id]
	return sub, ok
}

// ModifySubscription implements the modifySubscription service.
func (m *Manager) ModifySubscription(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.ModifySubscriptionRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}

	sub, ok := m.lookupOwned(body.SubscriptionID)
	if !ok {
		req.SetServiceFault(uatypes.BadSubscriptionIDInvalid)
		return
	}

	publishingInterval := clampFloat(
		body.RequestedPublishingInterval,
		m.limits.PublishingInterval.MinMillis, m.limits.PublishingInterval.MaxMillis,
	)
	maxKeepAlive := m.effectiveMaxKeepAlive(body.RequestedMaxKeepAliveCount)
	lifetimeCount := m.effectiveLifetimeCount(body.RequestedLifetimeCount, maxKeepAlive)

	revised := sub.Modify(subscription.CreateParams{
		PublishingInterval:         publishingInterval,
		MaxKeepAliveCount:          maxKeepAlive,
		LifetimeCount:              lifetimeCount,
		MaxNotificationsPerPublish: body.MaxNotificationsPerPublish,
		PublishingEnabled:          true,
		Priority:                   body.Priority,
		RetentionCap:               m.limits.AvailableMessagesRetentionCap,
	})

	req.SetResponse(uatypes.ModifySubscriptionResponse{
		RevisedPublishingInterval: revised.RevisedPublishingInterval,
		RevisedLifetimeCount:      revised.RevisedLifetimeCount,
		RevisedMaxKeepAliveCount:  revised.RevisedMaxKeepAliveCount,
	})
}

// DeleteSubscription implements the deleteSubscription service.
func (m *Manager) DeleteSubscription(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.DeleteSubscriptionsRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}
	if len(body.SubscriptionIDs) == 0 {
		req.SetServiceFault(uatypes.BadNothingToDo)
		return
	}

	results := make([]uatypes.StatusCode, len(body.SubscriptionIDs))
	for i, id := range body.SubscriptionIDs {
		sub, ok := m.lookupOwned(id)
		if !ok {
			results[i] = uatypes.BadSubscriptionIDInvalid
			continue
		}

		deleted := sub.AllItemDescriptors()
		m.notifyDeletedItems(req.Context(), deleted)

		sub.Close(uatypes.Good)
		m.reg.Unregister(id)
		results[i] = uatypes.Good
	}

	m.lock.RLock()
	remaining := len(m.subscriptions)
	m.lock.RUnlock()
	if remaining == 0 {
		m.failQueuedPublishes(uatypes.BadNoSubscription)
	}

	req.SetResponse(uatypes.DeleteSubscriptionsResponse{Results: results})
}

// failQueuedPublishes drains the PublishQueue, faulting every outstanding
// request with code, per the "zero subscriptions left" rule.
func (m *Manager) failQueuedPublishes(code uatypes.StatusCode) {
	for {
		req, ok := m.publishQueue.Poll()
		if !ok {
			return
		}
		req.SetServiceFault(code)
	}
}
