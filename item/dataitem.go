package item

import (
	"github.com/project-nan/opcua-subs/namespace"
	"github.com/project-nan/opcua-subs/uatypes"
)

// setDataFilter validates and installs filter, resetting last-reported
// state (per spec: "on filter change, reset filter state... no notification
// is synthesized from the change itself"). A PercentDeadband filter whose
// node has no EURange is rejected with Bad_DeadbandFilterInvalid.
func (m *MonitoredItem) setDataFilter(filter *uatypes.DataChangeFilter) error {
	if filter != nil && filter.DeadbandType == uatypes.DeadbandPercent {
		if m.euLookup == nil {
			return namespace.ErrStatusCode(uatypes.BadDeadbandFilterInvalid)
		}
		if _, ok := m.euLookup(m.readValueID.NodeID); !ok {
			return namespace.ErrStatusCode(uatypes.BadDeadbandFilterInvalid)
		}
	}
	m.dataFilter = filter
	m.lastReported = nil
	return nil
}

// EnqueueData offers a freshly sampled value to a DataKind item. It applies
// the DataChangeFilter (if any); a filtered-out sample is dropped without
// affecting the queue, overflow state, or lastReported. A reported sample
// is pushed with overflow handling and returns true.
func (m *MonitoredItem) EnqueueData(value uatypes.DataValue) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.kind != DataKind {
		return false
	}
	if m.monitoringMode == uatypes.MonitoringModeDisabled {
		return false
	}
	if !m.shouldReportLocked(value) {
		return false
	}
	m.lastReported = &value

	if m.monitoringMode == uatypes.MonitoringModeSampling {
		// Sampling-only items accumulate for triggering flush but don't
		// independently report; the queue push below is shared.
	}

	m.pushDataLocked(value)
	return true
}

func (m *MonitoredItem) pushDataLocked(value uatypes.DataValue) {
	if m.queueSize <= 1 {
		// queueSize==1 (or misconfigured 0, treated as 1): overwrite, no
		// overflow bit, per spec.
		m.dataQueue = []uatypes.DataValue{value}
		return
	}

	if uint32(len(m.dataQueue)) < m.queueSize {
		m.dataQueue = append(m.dataQueue, value)
		return
	}

	// Full queue: drop one per discard policy, then mark the retained
	// next-to-be-delivered (head) element with Overflow.
	if m.discardOldest {
		m.dataQueue = append(m.dataQueue[1:], value)
	} else {
		// Drop the incoming newest value instead of making room for it.
		// The queue contents are otherwise unchanged.
	}
	if len(m.dataQueue) > 0 {
		m.dataQueue[0].StatusCode = m.dataQueue[0].StatusCode.WithOverflow()
	}
}

// shouldReportLocked evaluates the DataChangeFilter's trigger+deadband
// policy against the last reported value. Must be called with m.lock held.
func (m *MonitoredItem) shouldReportLocked(value uatypes.DataValue) bool {
	if m.dataFilter == nil || m.lastReported == nil {
		return true
	}
	last := m.lastReported

	statusChanged := value.StatusCode != last.StatusCode
	timestampChanged := !value.SourceTimestamp.Equal(last.SourceTimestamp)
	valueChanged := m.exceedsDeadbandLocked(value.Value, last.Value)

	switch m.dataFilter.Trigger {
	case uatypes.TriggerStatus:
		return statusChanged
	case uatypes.TriggerStatusValue:
		return statusChanged || valueChanged
	case uatypes.TriggerStatusValueTimestamp:
		return statusChanged || valueChanged || timestampChanged
	default:
		return statusChanged || valueChanged
	}
}

func (m *MonitoredItem) exceedsDeadbandLocked(newValue, oldValue interface{}) bool {
	newF, okNew := toFloat(newValue)
	oldF, okOld := toFloat(oldValue)
	if !okNew || !okOld {
		// Non-numeric values: any inequality counts as a change.
		return newValue != oldValue
	}
	diff := newF - oldF
	if diff < 0 {
		diff = -diff
	}

	switch m.dataFilter.DeadbandType {
	case uatypes.DeadbandNone:
		return diff > 0
	case uatypes.DeadbandAbsolute:
		return diff > m.dataFilter.DeadbandValue
	case uatypes.DeadbandPercent:
		eu, ok := m.euLookup(m.readValueID.NodeID)
		if !ok {
			// Filter installation already rejected this case; treat as
			// always-report rather than silently drop samples.
			return diff > 0
		}
		span := eu.High - eu.Low
		if span < 0 {
			span = -span
		}
		return diff > (m.dataFilter.DeadbandValue/100.0)*span
	default:
		return diff > 0
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// DrainData dequeues up to maxN queued samples in FIFO order, returning the
// MonitoredItemNotifications to include in a NotificationMessage and whether
// more remain. maxN <= 0 means unbounded. Only valid for a Reporting item;
// a Sampling item's queue is flushed via DrainTriggeredData instead.
func (m *MonitoredItem) DrainData(maxN int) ([]uatypes.MonitoredItemNotification, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.kind != DataKind || m.monitoringMode != uatypes.MonitoringModeReporting {
		return nil, false
	}
	return m.drainDataLocked(maxN)
}

// DrainTriggeredData dequeues a Sampling-mode item's queued samples when it
// is flushed as a triggered sibling of a Reporting item's notification, per
// the triggering rule in §4.2: a Sampling item never reports on its own tick,
// but its accumulated queue rides along in the triggering item's message.
func (m *MonitoredItem) DrainTriggeredData(maxN int) ([]uatypes.MonitoredItemNotification, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.kind != DataKind || m.monitoringMode != uatypes.MonitoringModeSampling {
		return nil, false
	}
	return m.drainDataLocked(maxN)
}

func (m *MonitoredItem) drainDataLocked(maxN int) ([]uatypes.MonitoredItemNotification, bool) {
	n := len(m.dataQueue)
	if maxN > 0 && maxN < n {
		n = maxN
	}
	out := make([]uatypes.MonitoredItemNotification, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, uatypes.MonitoredItemNotification{
			ClientHandle: m.clientHandle,
			Value:        m.dataQueue[i],
		})
	}
	m.dataQueue = m.dataQueue[n:]
	return out, len(m.dataQueue) > 0
}

// ModifyDataParams are the mutable fields of a Data MonitoredItem accepted
// by ModifyMonitoredItems.
type ModifyDataParams struct {
	ClientHandle     uint32
	SamplingInterval float64
	Filter           *uatypes.DataChangeFilter
	QueueSize        uint32
	DiscardOldest    bool
}

// ModifyData applies a revised set of parameters, per spec §4.2's modify
// contract: queueSize decrease truncates per discard policy, filter change
// resets filter state without synthesizing a notification.
func (m *MonitoredItem) ModifyData(params ModifyDataParams) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.kind != DataKind {
		return namespace.ErrStatusCode(uatypes.BadInternalError)
	}
	if err := m.setDataFilter(params.Filter); err != nil {
		return err
	}
	m.clientHandle = params.ClientHandle
	m.samplingInterval = params.SamplingInterval
	m.discardOldest = params.DiscardOldest
	m.queueSize = params.QueueSize

	if uint32(len(m.dataQueue)) > m.queueSize {
		if m.discardOldest {
			m.dataQueue = m.dataQueue[uint32(len(m.dataQueue))-m.queueSize:]
		} else {
			m.dataQueue = m.dataQueue[:m.queueSize]
		}
		if len(m.dataQueue) > 0 {
			m.dataQueue[0].StatusCode = m.dataQueue[0].StatusCode.WithOverflow()
		}
	}
	return nil
}
