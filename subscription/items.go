package subscription

import (
	"github.com/project-nan/opcua-subs/item"
	"github.com/project-nan/opcua-subs/namespace"
	"github.com/project-nan/opcua-subs/uatypes"
)

// CreateDataItemParams are the already-revised parameters for one DataItem
// being added; validation and Namespace sampling-interval revision have
// already happened by the time this is called (see manager's async fan-in).
type CreateDataItemParams struct {
	ItemID           uint32
	ReadValueID      uatypes.ReadValueID
	ClientHandle     uint32
	SamplingInterval float64
	QueueSize        uint32
	DiscardOldest    bool
	Filter           *uatypes.DataChangeFilter
	MonitoringMode   uatypes.MonitoringMode
	EURangeLookup    item.EURangeLookup
}

// AddDataItem installs a new DataItem. Adding is always synchronous and
// atomic from the caller's perspective: by the time this is called, the
// Namespace has already revised the sampling interval.
func (s *Subscription) AddDataItem(params CreateDataItemParams) error {
	newItem, err := item.NewDataItem(
		params.ItemID, params.ReadValueID, params.ClientHandle, params.SamplingInterval,
		params.QueueSize, params.DiscardOldest, params.Filter, params.EURangeLookup,
	)
	if err != nil {
		return err
	}
	newItem.SetMonitoringMode(params.MonitoringMode)

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state == Closed {
		return namespace.ErrStatusCode(uatypes.BadSubscriptionIDInvalid)
	}
	s.items[params.ItemID] = newItem
	return nil
}

// CreateEventItemParams are the analogous parameters for an EventItem.
type CreateEventItemParams struct {
	ItemID           uint32
	ReadValueID      uatypes.ReadValueID
	ClientHandle     uint32
	SamplingInterval float64
	QueueSize        uint32
	DiscardOldest    bool
	Filter           *uatypes.EventFilter
	MonitoringMode   uatypes.MonitoringMode
}

// AddEventItem installs a new EventItem. Like AddDataItem, it refuses to
// install into a Subscription that has already closed.
func (s *Subscription) AddEventItem(params CreateEventItemParams) error {
	newItem := item.NewEventItem(
		params.ItemID, params.ReadValueID, params.ClientHandle, params.SamplingInterval,
		params.QueueSize, params.DiscardOldest, params.Filter,
	)
	newItem.SetMonitoringMode(params.MonitoringMode)

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state == Closed {
		return namespace.ErrStatusCode(uatypes.BadSubscriptionIDInvalid)
	}
	s.items[params.ItemID] = newItem
	return nil
}

// DeletedItemInfo names a removed item for the caller's Namespace bucketing.
type DeletedItemInfo struct {
	ItemID      uint32
	ReadValueID uatypes.ReadValueID
	Kind        item.Kind
}

// DeleteItems removes the given item ids under a single critical section,
// returning per-id StatusCodes and the descriptors of items actually removed
// (for Namespace onDataItemsDeleted/onEventItemsDeleted bucketing).
func (s *Subscription) DeleteItems(itemIDs []uint32) ([]uatypes.StatusCode, []DeletedItemInfo) {
	s.lock.Lock()
	defer s.lock.Unlock()

	results := make([]uatypes.StatusCode, len(itemIDs))
	var deleted []DeletedItemInfo
	for i, id := range itemIDs {
		it, ok := s.items[id]
		if !ok {
			results[i] = uatypes.BadMonitoredItemIDInvalid
			continue
		}
		deleted = append(deleted, DeletedItemInfo{ItemID: id, ReadValueID: it.ReadValueID(), Kind: it.Kind()})
		delete(s.items, id)
		for _, other := range s.items {
			other.RemoveTriggeredItem(id)
		}
		results[i] = uatypes.Good
	}
	return results, deleted
}

// AllItemDescriptors returns every currently held item's descriptor, used
// when the whole subscription is torn down (containing-Subscription deletion).
func (s *Subscription) AllItemDescriptors() []DeletedItemInfo {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]DeletedItemInfo, 0, len(s.items))
	for id, it := range s.items {
		out = append(out, DeletedItemInfo{ItemID: id, ReadValueID: it.ReadValueID(), Kind: it.Kind()})
	}
	return out
}

// SetMonitoringMode applies mode to each id, returning per-id StatusCodes.
func (s *Subscription) SetMonitoringMode(itemIDs []uint32, mode uatypes.MonitoringMode) []uatypes.StatusCode {
	s.lock.Lock()
	defer s.lock.Unlock()

	results := make([]uatypes.StatusCode, len(itemIDs))
	for i, id := range itemIDs {
		it, ok := s.items[id]
		if !ok {
			results[i] = uatypes.BadMonitoredItemIDInvalid
			continue
		}
		it.SetMonitoringMode(mode)
		results[i] = uatypes.Good
	}
	return results
}

// SetTriggering validates the triggering item exists, then applies
// linksToRemove before linksToAdd, per §4.4.
func (s *Subscription) SetTriggering(
	triggeringItemID uint32, linksToAdd, linksToRemove []uint32,
) (addResults, removeResults []uatypes.StatusCode, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	triggering, ok := s.items[triggeringItemID]
	if !ok {
		return nil, nil, namespace.ErrStatusCode(uatypes.BadMonitoredItemIDInvalid)
	}

	removeResults = make([]uatypes.StatusCode, len(linksToRemove))
	for i, id := range linksToRemove {
		if triggering.RemoveTriggeredItem(id) {
			removeResults[i] = uatypes.Good
		} else {
			removeResults[i] = uatypes.BadMonitoredItemIDInvalid
		}
	}

	addResults = make([]uatypes.StatusCode, len(linksToAdd))
	for i, id := range linksToAdd {
		if id == triggeringItemID {
			addResults[i] = uatypes.BadMonitoredItemIDInvalid
			continue
		}
		if _, exists := s.items[id]; !exists {
			addResults[i] = uatypes.BadMonitoredItemIDInvalid
			continue
		}
		triggering.AddTriggeredItem(id)
		addResults[i] = uatypes.Good
	}
	return addResults, removeResults, nil
}

// IngestDataValue routes a freshly sampled value from the Namespace into the
// named DataItem, if it exists and is not Disabled.
func (s *Subscription) IngestDataValue(itemID uint32, value uatypes.DataValue) bool {
	s.lock.Lock()
	it, ok := s.items[itemID]
	s.lock.Unlock()
	if !ok {
		return false
	}
	return it.EnqueueData(value)
}

// IngestEvent routes a freshly occurred event into the named EventItem.
func (s *Subscription) IngestEvent(itemID uint32, fields []interface{}) bool {
	s.lock.Lock()
	it, ok := s.items[itemID]
	s.lock.Unlock()
	if !ok {
		return false
	}
	return it.EnqueueEvent(fields)
}

// NodeIDOf returns the NodeID a MonitoredItem was created against, used by
// ModifyMonitoredItems to re-resolve a node for the Namespace without the
// caller having to track it separately.
func (s *Subscription) NodeIDOf(itemID uint32) (uatypes.NodeID, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	it, ok := s.items[itemID]
	if !ok {
		return uatypes.NodeID{}, false
	}
	return it.ReadValueID().NodeID, true
}

// ModifyDataItem re-installs a DataItem's filter/queue parameters, returning
// its AttributeID for the caller's Namespace bucketing.
func (s *Subscription) ModifyDataItem(itemID uint32, params item.ModifyDataParams) (uatypes.AttributeID, error) {
	s.lock.Lock()
	it, ok := s.items[itemID]
	s.lock.Unlock()
	if !ok {
		return 0, namespace.ErrStatusCode(uatypes.BadMonitoredItemIDInvalid)
	}
	if err := it.ModifyData(params); err != nil {
		return 0, err
	}
	return it.ReadValueID().AttributeID, nil
}

// ModifyEventItem re-installs an EventItem's filter/queue parameters,
// returning its AttributeID for the caller's Namespace bucketing.
func (s *Subscription) ModifyEventItem(itemID uint32, params item.ModifyEventParams) (uatypes.AttributeID, error) {
	s.lock.Lock()
	it, ok := s.items[itemID]
	s.lock.Unlock()
	if !ok {
		return 0, namespace.ErrStatusCode(uatypes.BadMonitoredItemIDInvalid)
	}
	if err := it.ModifyEvent(params); err != nil {
		return 0, err
	}
	return it.ReadValueID().AttributeID, nil
}

// ItemCount returns the number of MonitoredItems currently held.
func (s *Subscription) ItemCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.items)
}
