package item

import (
	"github.com/project-nan/opcua-subs/namespace"
	"github.com/project-nan/opcua-subs/uatypes"
)

// EnqueueEvent offers one event occurrence's already-selected field values
// to an EventKind item (where-clause evaluation is an address-space concern
// and happens before this call; the core only queues what the Namespace
// decided already passed the filter). Overflow handling mirrors DataItem's.
func (m *MonitoredItem) EnqueueEvent(fields []interface{}) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.kind != EventKind {
		return false
	}
	if m.monitoringMode == uatypes.MonitoringModeDisabled {
		return false
	}

	if m.queueSize <= 1 {
		m.eventQueue = [][]interface{}{fields}
		m.eventOverflowed = false
		return true
	}

	if uint32(len(m.eventQueue)) < m.queueSize {
		m.eventQueue = append(m.eventQueue, fields)
		return true
	}

	if m.discardOldest {
		m.eventQueue = append(m.eventQueue[1:], fields)
	}
	m.eventOverflowed = true
	return true
}

// DrainEvents dequeues up to maxN queued event occurrences in FIFO order,
// returning the EventFieldLists to include in a NotificationMessage, whether
// the queue has overflowed, and whether more remain. No overflow event or
// status is synthesized into the returned list. maxN <= 0 means unbounded. Only valid for a Reporting item; a
// Sampling item's queue is flushed via DrainTriggeredEvents instead.
func (m *MonitoredItem) DrainEvents(maxN int) ([]uatypes.EventFieldList, bool, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.kind != EventKind || m.monitoringMode != uatypes.MonitoringModeReporting {
		return nil, false, false
	}
	return m.drainEventsLocked(maxN)
}

// DrainTriggeredEvents dequeues a Sampling-mode item's queued events when it
// is flushed as a triggered sibling of a Reporting item's notification, per
// the triggering rule in §4.2.
func (m *MonitoredItem) DrainTriggeredEvents(maxN int) ([]uatypes.EventFieldList, bool, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.kind != EventKind || m.monitoringMode != uatypes.MonitoringModeSampling {
		return nil, false, false
	}
	return m.drainEventsLocked(maxN)
}

// drainEventsLocked does the actual dequeue. Must be called with m.lock held.
func (m *MonitoredItem) drainEventsLocked(maxN int) ([]uatypes.EventFieldList, bool, bool) {
	n := len(m.eventQueue)
	if maxN > 0 && maxN < n {
		n = maxN
	}
	out := make([]uatypes.EventFieldList, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, uatypes.EventFieldList{
			ClientHandle: m.clientHandle,
			EventFields:  m.eventQueue[i],
		})
	}
	overflowed := m.eventOverflowed
	m.eventQueue = m.eventQueue[n:]
	m.eventOverflowed = false
	return out, overflowed, len(m.eventQueue) > 0
}

// ModifyEventParams are the mutable fields of an Event MonitoredItem
// accepted by ModifyMonitoredItems.
type ModifyEventParams struct {
	ClientHandle     uint32
	SamplingInterval float64
	Filter           *uatypes.EventFilter
	QueueSize        uint32
	DiscardOldest    bool
}

// ModifyEvent applies a revised set of parameters, truncating the queue per
// discard policy if queueSize decreased.
func (m *MonitoredItem) ModifyEvent(params ModifyEventParams) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.kind != EventKind {
		return namespace.ErrStatusCode(uatypes.BadInternalError)
	}
	m.eventFilter = params.Filter
	m.clientHandle = params.ClientHandle
	m.samplingInterval = params.SamplingInterval
	m.discardOldest = params.DiscardOldest
	m.queueSize = params.QueueSize

	if uint32(len(m.eventQueue)) > m.queueSize {
		if m.discardOldest {
			m.eventQueue = m.eventQueue[uint32(len(m.eventQueue))-m.queueSize:]
		} else {
			m.eventQueue = m.eventQueue[:m.queueSize]
		}
		m.eventOverflowed = true
	}
	return nil
}
