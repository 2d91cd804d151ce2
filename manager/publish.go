package manager

import (
	"sort"

	"github.com/project-nan/opcua-subs/servicereq"
	"github.com/project-nan/opcua-subs/subscription"
	"github.com/project-nan/opcua-subs/uatypes"
)

// snapshotSubscriptions returns this session's subscriptions ordered by the
// cross-subscription tie-break of §4.3: highest priority first, ties broken
// by longest time since last served (a subscription that has never been
// served sorts first among equal priorities).
func (m *Manager) snapshotSubscriptions() []*subscription.Subscription {
	m.lock.RLock()
	out := make([]*subscription.Subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		out = append(out, sub)
	}
	m.lock.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Priority(), out[j].Priority()
		if pi != pj {
			return pi > pj
		}
		return out[i].LastServedAt().Before(out[j].LastServedAt())
	})
	return out
}

// Publish implements the publish service: record this request's
// acknowledgement results, deliver any parked Transfer status-change
// notification immediately, fail outright if the session owns no
// subscriptions, and otherwise park the request on the PublishQueue and give
// any currently-Late subscription first chance to claim it immediately
// rather than waiting for its next timer tick.
func (m *Manager) Publish(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.PublishRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}

	ackResults := make([]uatypes.StatusCode, len(body.SubscriptionAcknowledgements))
	for i, ack := range body.SubscriptionAcknowledgements {
		sub, ok := m.lookupOwned(ack.SubscriptionID)
		if !ok {
			ackResults[i] = uatypes.BadSubscriptionIDInvalid
			continue
		}
		ackResults[i] = sub.Acknowledge(ack.SequenceNumber)
	}
	m.lock.Lock()
	m.ackResults[req.Header().RequestHandle] = ackResults
	m.lock.Unlock()

	m.lock.Lock()
	if len(m.transferred) > 0 {
		sub := m.transferred[0]
		m.transferred = m.transferred[1:]
		m.lock.Unlock()

		results := m.AcknowledgeResultsFor(req.Header().RequestHandle)
		req.SetResponse(uatypes.PublishResponse{
			SubscriptionID: sub.ID(),
			NotificationMessage: uatypes.NotificationMessage{
				NotificationData: []uatypes.NotificationData{{
					StatusChange: &uatypes.StatusChangeNotification{Status: uatypes.GoodSubscriptionTransferred},
				}},
			},
			Results: results,
		})
		return
	}
	subscriptionCount := len(m.subscriptions)
	m.lock.Unlock()

	if subscriptionCount == 0 {
		req.SetServiceFault(uatypes.BadNoSubscription)
		return
	}

	m.publishQueue.AddRequest(req)

	for _, sub := range m.snapshotSubscriptions() {
		if sub.TryDeliver() {
			break
		}
	}
}

// Republish implements the republish service.
func (m *Manager) Republish(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.RepublishRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}
	sub, ok := m.lookupOwned(body.SubscriptionID)
	if !ok {
		req.SetServiceFault(uatypes.BadSubscriptionIDInvalid)
		return
	}
	msg, code := sub.Republish(body.RetransmitSequenceNumber)
	if !code.IsGood() {
		req.SetServiceFault(code)
		return
	}
	req.SetResponse(uatypes.RepublishResponse{NotificationMessage: msg})
}
