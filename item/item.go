// Package item implements MonitoredItem: the per-node sampling or eventing
// endpoint owned by a Subscription. Data and Event variants are modeled as
// a tagged union on a single struct rather than as separate types behind an
// interface, since the two variants share nearly all of their lifecycle and
// differ only in what they queue and how they filter it.
package item

import (
	"sync"

	"github.com/project-nan/opcua-subs/uatypes"
)

// Kind distinguishes the two MonitoredItem variants.
type Kind int

const (
	// DataKind monitors an attribute's value (DataChangeFilter applies).
	DataKind Kind = iota
	// EventKind monitors event occurrences (EventFilter applies).
	EventKind
)

// EURangeLookup resolves the engineering-unit range of a node, used only
// when a DataChangeFilter requests PercentDeadband. Backed by the Namespace
// collaborator; a lookup returning ok=false means the node has no EURange.
type EURangeLookup func(id uatypes.NodeID) (eu *uatypes.EURange, ok bool)

// MonitoredItem is a single per-node sampling/eventing endpoint within a
// Subscription. All mutation goes through its methods, which take the
// item's own lock; the owning Subscription additionally serializes access
// via its own mutex, so the lock here exists for the narrower case of
// concurrent Namespace ingress calls (sampling) racing subscription-side
// drains.
type MonitoredItem struct {
	lock sync.Mutex

	kind Kind

	id               uint32
	readValueID      uatypes.ReadValueID
	monitoringMode   uatypes.MonitoringMode
	clientHandle     uint32
	samplingInterval float64
	queueSize        uint32
	discardOldest    bool

	// triggeredItems is a set of sibling MonitoredItem ids; resolution to
	// actual items happens in the owning Subscription under its lock, per
	// the no-owning-pointers design rule.
	triggeredItems map[uint32]struct{}

	// Data variant state.
	dataFilter   *uatypes.DataChangeFilter
	dataQueue    []uatypes.DataValue
	lastReported *uatypes.DataValue
	euLookup     EURangeLookup

	// Event variant state.
	eventFilter      *uatypes.EventFilter
	eventQueue       [][]interface{}
	eventOverflowed  bool
}

// NewDataItem constructs a DataKind MonitoredItem. filter may be nil (no
// filtering: every sample reports). euLookup is consulted only if filter
// requests PercentDeadband.
func NewDataItem(
	id uint32, readValueID uatypes.ReadValueID, clientHandle uint32,
	samplingInterval float64, queueSize uint32, discardOldest bool,
	filter *uatypes.DataChangeFilter, euLookup EURangeLookup,
) (*MonitoredItem, error) {
	item := &MonitoredItem{
		kind:             DataKind,
		id:               id,
		readValueID:      readValueID,
		monitoringMode:   uatypes.MonitoringModeReporting,
		clientHandle:     clientHandle,
		samplingInterval: samplingInterval,
		queueSize:        queueSize,
		discardOldest:    discardOldest,
		triggeredItems:   make(map[uint32]struct{}),
		euLookup:         euLookup,
	}
	if err := item.setDataFilter(filter); err != nil {
		return nil, err
	}
	return item, nil
}

// NewEventItem constructs an EventKind MonitoredItem.
func NewEventItem(
	id uint32, readValueID uatypes.ReadValueID, clientHandle uint32,
	samplingInterval float64, queueSize uint32, discardOldest bool,
	filter *uatypes.EventFilter,
) *MonitoredItem {
	return &MonitoredItem{
		kind:             EventKind,
		id:               id,
		readValueID:      readValueID,
		monitoringMode:   uatypes.MonitoringModeReporting,
		clientHandle:     clientHandle,
		samplingInterval: samplingInterval,
		queueSize:        queueSize,
		discardOldest:    discardOldest,
		triggeredItems:   make(map[uint32]struct{}),
		eventFilter:      filter,
	}
}

// ID returns the item's subscription-scoped identifier.
func (m *MonitoredItem) ID() uint32 { return m.id }

// Kind returns the item's variant tag.
func (m *MonitoredItem) Kind() Kind { return m.kind }

// ClientHandle returns the client-assigned handle echoed in notifications.
func (m *MonitoredItem) ClientHandle() uint32 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.clientHandle
}

// MonitoringMode returns the item's current mode.
func (m *MonitoredItem) MonitoringMode() uatypes.MonitoringMode {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.monitoringMode
}

// SamplingInterval returns the item's current (revised) sampling interval.
func (m *MonitoredItem) SamplingInterval() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.samplingInterval
}

// ReadValueID returns the node/attribute/range/encoding this item monitors.
func (m *MonitoredItem) ReadValueID() uatypes.ReadValueID {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.readValueID
}

// HasPendingData reports whether the item has anything queued to drain.
func (m *MonitoredItem) HasPendingData() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.kind == DataKind {
		return len(m.dataQueue) > 0
	}
	return len(m.eventQueue) > 0
}

// SetMonitoringMode transitions the item's mode. Per spec: Disabled clears
// the queue; Sampling/Reporting never synthesize or discard queued data on
// transition into them.
func (m *MonitoredItem) SetMonitoringMode(mode uatypes.MonitoringMode) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.monitoringMode = mode
	if mode == uatypes.MonitoringModeDisabled {
		m.dataQueue = nil
		m.eventQueue = nil
		m.eventOverflowed = false
	}
}

// AddTriggeredItem links a sibling item id so that, when this item reports,
// the sibling (if in Sampling mode) flushes into the same NotificationMessage.
func (m *MonitoredItem) AddTriggeredItem(siblingID uint32) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.triggeredItems[siblingID] = struct{}{}
}

// RemoveTriggeredItem unlinks a sibling id; returns whether it was present.
func (m *MonitoredItem) RemoveTriggeredItem(siblingID uint32) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	_, existed := m.triggeredItems[siblingID]
	delete(m.triggeredItems, siblingID)
	return existed
}

// TriggeredItemIDs returns a snapshot of linked sibling item ids.
func (m *MonitoredItem) TriggeredItemIDs() []uint32 {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := make([]uint32, 0, len(m.triggeredItems))
	for id := range m.triggeredItems {
		out = append(out, id)
	}
	return out
}
