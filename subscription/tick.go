package subscription

import (
	"math"
	"sort"
	"time"

	"github.com/project-nan/opcua-subs/item"
	"github.com/project-nan/opcua-subs/uatypes"
)

func nextSequenceNumber(current uint32) uint32 {
	next := current + 1
	if next == 0 {
		next = 1
	}
	return next
}

// tick is the publishing-interval timer's handler; it implements the four
// ordered steps of §4.3.
func (s *Subscription) tick() error {
	s.lock.Lock()

	if s.state == Closed {
		s.lock.Unlock()
		return nil
	}

	// Step 1: lifetime.
	s.lifetimeCounter--
	if s.lifetimeCounter == 0 {
		s.closeLocked(uatypes.BadTimeout)
		s.lock.Unlock()
		return nil
	}

	hasNotifications := s.publishingEnabled && s.anyItemHasPendingDataLocked()

	// Step 2: nothing to send, or disabled -- keep-alive path.
	if !hasNotifications {
		s.keepAliveCounter--
		if s.keepAliveCounter > 0 {
			s.lock.Unlock()
			return nil
		}
		if !s.attemptPublishLocked(true) {
			s.state = Late
			s.late = true
			s.lateKeepAlive = true
		} else {
			s.state = KeepAlive
		}
		s.lock.Unlock()
		return nil
	}

	// Step 3/4: assemble and deliver a real notification.
	if !s.attemptPublishLocked(false) {
		s.state = Late
		s.late = true
		s.lateKeepAlive = false
	}
	s.lock.Unlock()
	return nil
}

// TryDeliver is invoked by the owning SubscriptionManager when a new
// Publish request is enqueued while this subscription is Late, so the
// request is satisfied immediately rather than waiting for the next tick.
func (s *Subscription) TryDeliver() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.late {
		return false
	}
	wasKeepAlive := s.lateKeepAlive
	if s.attemptPublishLocked(wasKeepAlive) {
		s.late = false
		if wasKeepAlive {
			s.state = KeepAlive
		}
		return true
	}
	return false
}

// attemptPublishLocked claims a Publish request and resolves it with either
// a keep-alive or an assembled notification. Returns false (state left
// unchanged) if no request was available to claim. Must be called with
// s.lock held.
func (s *Subscription) attemptPublishLocked(keepAlive bool) bool {
	req, ok := s.owner.ClaimPublishRequest()
	if !ok {
		return false
	}

	var msg uatypes.NotificationMessage
	more := false
	if keepAlive {
		msg = uatypes.NotificationMessage{PublishTime: s.now(), SequenceNumber: s.sequenceNumber}
	} else {
		msg, more = s.assembleNotificationLocked()
		s.sequenceNumber = nextSequenceNumber(s.sequenceNumber)
		msg.SequenceNumber = s.sequenceNumber
		s.messages.retain(msg)
	}

	results := s.owner.AcknowledgeResultsFor(req.Header().RequestHandle)
	req.SetResponse(uatypes.PublishResponse{
		SubscriptionID:           s.id,
		AvailableSequenceNumbers: s.messages.availableSequenceNumbers(),
		MoreNotifications:        more,
		NotificationMessage:      msg,
		Results:                  results,
	})

	s.keepAliveCounter = s.maxKeepAliveCount
	s.lifetimeCounter = s.lifetimeCount
	s.state = Normal
	s.lastServedAt = s.now()
	return true
}

func (s *Subscription) now() time.Time { return time.Now() }

func (s *Subscription) anyItemHasPendingDataLocked() bool {
	for _, it := range s.items {
		if it.MonitoringMode() == uatypes.MonitoringModeReporting && it.HasPendingData() {
			return true
		}
	}
	return false
}

func (s *Subscription) sortedItemIDsLocked() []uint32 {
	ids := make([]uint32, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// assembleNotificationLocked pulls round-robin from Reporting items (plus
// triggered Sampling-mode siblings) up to maxNotificationsPerPublish,
// advancing rrCursor for fairness across ticks. Must be called with s.lock held.
func (s *Subscription) assembleNotificationLocked() (uatypes.NotificationMessage, bool) {
	ids := s.sortedItemIDsLocked()
	n := len(ids)

	budget := int(s.maxNotificationsPerPublish)
	if budget <= 0 {
		budget = math.MaxInt32
	}

	var dataNotifs []uatypes.MonitoredItemNotification
	var eventNotifs []uatypes.EventFieldList
	served := 0

	drainItem := func(it *item.MonitoredItem, remaining int) int {
		switch it.Kind() {
		case item.DataKind:
			notifs, _ := it.DrainData(remaining)
			dataNotifs = append(dataNotifs, notifs...)
			return len(notifs)
		case item.EventKind:
			events, _, _ := it.DrainEvents(remaining)
			eventNotifs = append(eventNotifs, events...)
			return len(events)
		}
		return 0
	}

	// drainTriggeredSibling flushes a Sampling-mode item's accumulated queue
	// into the triggering item's own NotificationMessage; a Sampling item
	// never reports on its own tick, so this is its only path to delivery.
	drainTriggeredSibling := func(it *item.MonitoredItem, remaining int) int {
		switch it.Kind() {
		case item.DataKind:
			notifs, _ := it.DrainTriggeredData(remaining)
			dataNotifs = append(dataNotifs, notifs...)
			return len(notifs)
		case item.EventKind:
			events, _, _ := it.DrainTriggeredEvents(remaining)
			eventNotifs = append(eventNotifs, events...)
			return len(events)
		}
		return 0
	}

	for i := 0; i < n && budget > 0; i++ {
		idx := 0
		if n > 0 {
			idx = (s.rrCursor + i) % n
		}
		it := s.items[ids[idx]]
		if it.MonitoringMode() != uatypes.MonitoringModeReporting {
			continue
		}
		got := drainItem(it, budget)
		if got == 0 {
			continue
		}
		budget -= got
		served++

		for _, siblingID := range it.TriggeredItemIDs() {
			if budget <= 0 {
				break
			}
			sibling, ok := s.items[siblingID]
			if !ok || sibling.MonitoringMode() != uatypes.MonitoringModeSampling {
				continue
			}
			gotSib := drainTriggeredSibling(sibling, budget)
			budget -= gotSib
		}
	}

	if n > 0 {
		s.rrCursor = (s.rrCursor + 1) % n
	}

	var notificationData []uatypes.NotificationData
	if len(dataNotifs) > 0 {
		notificationData = append(notificationData, uatypes.NotificationData{
			DataChange: &uatypes.DataChangeNotification{MonitoredItems: dataNotifs},
		})
	}
	if len(eventNotifs) > 0 {
		notificationData = append(notificationData, uatypes.NotificationData{
			Event: &uatypes.EventNotificationList{Events: eventNotifs},
		})
	}

	moreRemaining := s.anyItemHasPendingDataLocked()
	return uatypes.NotificationMessage{
		PublishTime:      s.now(),
		NotificationData: notificationData,
	}, moreRemaining
}
