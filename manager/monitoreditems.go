package manager

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/project-nan/opcua-subs/item"
	"github.com/project-nan/opcua-subs/namespace"
	"github.com/project-nan/opcua-subs/servicereq"
	"github.com/project-nan/opcua-subs/subscription"
	"github.com/project-nan/opcua-subs/uatypes"
)

// itemOutcome is how completeCreateItem/completeModifyItem (running on the
// revisionFanIn mailbox) hand their per-item namespace bucketing decision
// back to the request handler once every future has resolved.
type itemOutcome struct {
	ok         bool
	isEvent    bool
	descriptor namespace.ItemDescriptor
}

// validateIndexRange accepts the empty string (whole value) or a
// "low[:high]" numeric range; anything else fails with Bad_IndexRangeInvalid.
func validateIndexRange(indexRange string) error {
	if indexRange == "" {
		return nil
	}
	parts := strings.SplitN(indexRange, ":", 2)
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 32); err != nil {
			return namespace.ErrStatusCode(uatypes.BadIndexRangeInvalid)
		}
	}
	return nil
}

// validateDataEncoding accepts the null QualifiedName, or DefaultBinary/
// DefaultXML when attributeID is the Value attribute; a non-null encoding on
// any other attribute is Bad_DataEncodingInvalid.
func validateDataEncoding(attributeID uatypes.AttributeID, encoding uatypes.QualifiedName) error {
	if encoding.IsNull() {
		return nil
	}
	if attributeID != uatypes.AttributeIDValue {
		return namespace.ErrStatusCode(uatypes.BadDataEncodingInvalid)
	}
	if encoding == uatypes.DataEncodingDefaultBinary || encoding == uatypes.DataEncodingDefaultXML {
		return nil
	}
	return namespace.ErrStatusCode(uatypes.BadDataEncodingUnsupported)
}

// effectiveSamplingInterval resolves the "inherit from publishing interval"
// sentinel (a negative requested value) and clamps everything else into the
// server's sampling-interval limits.
func (m *Manager) effectiveSamplingInterval(requested, publishingInterval float64) float64 {
	if requested < 0 {
		return publishingInterval
	}
	return clampFloat(requested, m.limits.SamplingInterval.MinMillis, m.limits.SamplingInterval.MaxMillis)
}

// CreateMonitoredItems implements the createMonitoredItems service: validate
// each item, fan the sampling-interval revision out to the Namespace, wait
// for every future to resolve (or the request's own context to expire), then
// notify the Namespace of the items actually created, bucketed by kind and
// dispatched across the worker pool.
func (m *Manager) CreateMonitoredItems(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.CreateMonitoredItemsRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}
	sub, ok := m.lookupOwned(body.SubscriptionID)
	if !ok {
		req.SetServiceFault(uatypes.BadSubscriptionIDInvalid)
		return
	}
	if !body.TimestampsToReturn.IsValid() {
		req.SetServiceFault(uatypes.BadTimestampsToReturnInvalid)
		return
	}
	if len(body.ItemsToCreate) == 0 {
		req.SetServiceFault(uatypes.BadNothingToDo)
		return
	}

	itemCap := m.limits.MaxMonitoredItemsPerSubscription
	startCount := sub.ItemCount()

	n := len(body.ItemsToCreate)
	results := make([]uatypes.MonitoredItemCreateResult, n)
	outcomes := make([]itemOutcome, n)
	pending := int32(n)
	done := make(chan struct{})

	for i := range body.ItemsToCreate {
		i := i
		itemReq := body.ItemsToCreate[i]

		if itemCap > 0 && startCount+i >= itemCap {
			results[i] = uatypes.MonitoredItemCreateResult{StatusCode: uatypes.BadTooManyMonitoredItems}
			if atomic.AddInt32(&pending, -1) == 0 {
				close(done)
			}
			continue
		}

		if err := validateCreateItem(itemReq); err != nil {
			results[i] = uatypes.MonitoredItemCreateResult{StatusCode: namespace.StatusCodeOf(err)}
			if atomic.AddInt32(&pending, -1) == 0 {
				close(done)
			}
			continue
		}

		itemID := sub.AllocateItemID()
		itemCtxt, cancelItemCtxt := watchEither(req.Context(), sub.Context())
		future := namespace.NewSamplingRevisionFuture(itemCtxt, func(revised float64, err error) {
			_ = m.runOnMailbox(m.revisionFanIn, func() {
				defer cancelItemCtxt()
				m.completeCreateItem(sub, itemID, itemReq, revised, err, &results[i], &outcomes[i])
				if atomic.AddInt32(&pending, -1) == 0 {
					close(done)
				}
			})
		})
		m.ns.OnCreateMonitoredItem(
			req.Context(), itemReq.ItemToMonitor.NodeID, itemReq.ItemToMonitor.AttributeID,
			m.effectiveSamplingInterval(itemReq.SamplingInterval, sub.PublishingInterval()), future,
		)
	}

	select {
	case <-done:
	case <-req.Context().Done():
		req.SetServiceFault(uatypes.BadTimeout)
		return
	}

	m.notifyBucketed(req.Context(), outcomes, m.ns.OnDataItemsCreated, m.ns.OnEventItemsCreated)
	req.SetResponse(uatypes.CreateMonitoredItemsResponse{Results: results})
}

func validateCreateItem(req uatypes.MonitoredItemCreateRequest) error {
	if err := validateDataEncoding(req.ItemToMonitor.AttributeID, req.ItemToMonitor.DataEncoding); err != nil {
		return err
	}
	return validateIndexRange(req.ItemToMonitor.IndexRange)
}

// completeCreateItem runs on the revisionFanIn mailbox goroutine: it resolves
// one item's Namespace future into either an installed MonitoredItem or a
// failed per-item result.
func (m *Manager) completeCreateItem(
	sub *subscription.Subscription, itemID uint32, req uatypes.MonitoredItemCreateRequest,
	revisedInterval float64, nsErr error, result *uatypes.MonitoredItemCreateResult, outcome *itemOutcome,
) {
	if nsErr != nil {
		*result = uatypes.MonitoredItemCreateResult{StatusCode: namespace.StatusCodeOf(nsErr)}
		return
	}

	descriptor := namespace.ItemDescriptor{
		MonitoredItemID: itemID, NodeID: req.ItemToMonitor.NodeID,
		AttributeID: req.ItemToMonitor.AttributeID, MonitoringMode: req.MonitoringMode,
	}

	if eventFilter, ok := req.Filter.(*uatypes.EventFilter); ok {
		if err := sub.AddEventItem(subscription.CreateEventItemParams{
			ItemID: itemID, ReadValueID: req.ItemToMonitor, ClientHandle: req.ClientHandle,
			SamplingInterval: revisedInterval, QueueSize: req.QueueSize, DiscardOldest: req.DiscardOldest,
			Filter: eventFilter, MonitoringMode: req.MonitoringMode,
		}); err != nil {
			*result = uatypes.MonitoredItemCreateResult{StatusCode: namespace.StatusCodeOf(err)}
			return
		}
		*result = uatypes.MonitoredItemCreateResult{
			StatusCode: uatypes.Good, MonitoredItemID: itemID,
			RevisedSamplingInterval: revisedInterval, RevisedQueueSize: req.QueueSize,
		}
		*outcome = itemOutcome{ok: true, isEvent: true, descriptor: descriptor}
		return
	}

	dataFilter, _ := req.Filter.(*uatypes.DataChangeFilter)
	err := sub.AddDataItem(subscription.CreateDataItemParams{
		ItemID: itemID, ReadValueID: req.ItemToMonitor, ClientHandle: req.ClientHandle,
		SamplingInterval: revisedInterval, QueueSize: req.QueueSize, DiscardOldest: req.DiscardOldest,
		Filter: dataFilter, MonitoringMode: req.MonitoringMode,
		EURangeLookup: func(id uatypes.NodeID) (*uatypes.EURange, bool) { return m.ns.EURangeOf(id) },
	})
	if err != nil {
		*result = uatypes.MonitoredItemCreateResult{StatusCode: namespace.StatusCodeOf(err)}
		return
	}
	*result = uatypes.MonitoredItemCreateResult{
		StatusCode: uatypes.Good, MonitoredItemID: itemID,
		RevisedSamplingInterval: revisedInterval, RevisedQueueSize: req.QueueSize,
	}
	*outcome = itemOutcome{ok: true, isEvent: false, descriptor: descriptor}
}

// ModifyMonitoredItems implements the modifyMonitoredItems service: the same
// fan-out/fan-in shape as CreateMonitoredItems, but against existing items,
// and it resets the owning subscription's lifetime counter on success.
func (m *Manager) ModifyMonitoredItems(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.ModifyMonitoredItemsRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}
	sub, ok := m.lookupOwned(body.SubscriptionID)
	if !ok {
		req.SetServiceFault(uatypes.BadSubscriptionIDInvalid)
		return
	}
	if !body.TimestampsToReturn.IsValid() {
		req.SetServiceFault(uatypes.BadTimestampsToReturnInvalid)
		return
	}
	if len(body.ItemsToModify) == 0 {
		req.SetServiceFault(uatypes.BadNothingToDo)
		return
	}

	n := len(body.ItemsToModify)
	results := make([]uatypes.MonitoredItemModifyResult, n)
	outcomes := make([]itemOutcome, n)
	pending := int32(n)
	done := make(chan struct{})

	for i := range body.ItemsToModify {
		i := i
		itemReq := body.ItemsToModify[i]

		nodeID, ok := sub.NodeIDOf(itemReq.MonitoredItemID)
		if !ok {
			results[i] = uatypes.MonitoredItemModifyResult{StatusCode: uatypes.BadMonitoredItemIDInvalid}
			if atomic.AddInt32(&pending, -1) == 0 {
				close(done)
			}
			continue
		}

		itemCtxt, cancelItemCtxt := watchEither(req.Context(), sub.Context())
		future := namespace.NewSamplingRevisionFuture(itemCtxt, func(revised float64, err error) {
			_ = m.runOnMailbox(m.revisionFanIn, func() {
				defer cancelItemCtxt()
				m.completeModifyItem(sub, itemReq, nodeID, revised, err, &results[i], &outcomes[i])
				if atomic.AddInt32(&pending, -1) == 0 {
					close(done)
				}
			})
		})
		m.ns.OnModifyMonitoredItem(
			req.Context(), nodeID,
			m.effectiveSamplingInterval(itemReq.SamplingInterval, sub.PublishingInterval()), future,
		)
	}

	select {
	case <-done:
	case <-req.Context().Done():
		req.SetServiceFault(uatypes.BadTimeout)
		return
	}

	anyGood := false
	for _, r := range results {
		if r.StatusCode.IsGood() {
			anyGood = true
			break
		}
	}
	if anyGood {
		sub.ResetLifetimeCounter()
	}

	m.notifyBucketed(req.Context(), outcomes, m.ns.OnDataItemsModified, m.ns.OnEventItemsModified)
	req.SetResponse(uatypes.ModifyMonitoredItemsResponse{Results: results})
}

func (m *Manager) completeModifyItem(
	sub *subscription.Subscription, req uatypes.MonitoredItemModifyRequest, nodeID uatypes.NodeID,
	revisedInterval float64, nsErr error, result *uatypes.MonitoredItemModifyResult, outcome *itemOutcome,
) {
	if nsErr != nil {
		*result = uatypes.MonitoredItemModifyResult{StatusCode: namespace.StatusCodeOf(nsErr)}
		return
	}

	var err error
	var attributeID uatypes.AttributeID
	isEvent := false
	if eventFilter, ok := req.Filter.(*uatypes.EventFilter); ok {
		isEvent = true
		attributeID, err = sub.ModifyEventItem(req.MonitoredItemID, item.ModifyEventParams{
			ClientHandle: req.ClientHandle, SamplingInterval: revisedInterval,
			Filter: eventFilter, QueueSize: req.QueueSize, DiscardOldest: req.DiscardOldest,
		})
	} else {
		dataFilter, _ := req.Filter.(*uatypes.DataChangeFilter)
		attributeID, err = sub.ModifyDataItem(req.MonitoredItemID, item.ModifyDataParams{
			ClientHandle: req.ClientHandle, SamplingInterval: revisedInterval,
			Filter: dataFilter, QueueSize: req.QueueSize, DiscardOldest: req.DiscardOldest,
		})
	}
	if err != nil {
		*result = uatypes.MonitoredItemModifyResult{StatusCode: namespace.StatusCodeOf(err)}
		return
	}
	*result = uatypes.MonitoredItemModifyResult{
		StatusCode: uatypes.Good, RevisedSamplingInterval: revisedInterval, RevisedQueueSize: req.QueueSize,
	}
	*outcome = itemOutcome{
		ok: true, isEvent: isEvent,
		descriptor: namespace.ItemDescriptor{MonitoredItemID: req.MonitoredItemID, NodeID: nodeID, AttributeID: attributeID},
	}
}

// DeleteMonitoredItems implements the deleteMonitoredItems service.
func (m *Manager) DeleteMonitoredItems(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.DeleteMonitoredItemsRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}
	sub, ok := m.lookupOwned(body.SubscriptionID)
	if !ok {
		req.SetServiceFault(uatypes.BadSubscriptionIDInvalid)
		return
	}
	if len(body.MonitoredItemIDs) == 0 {
		req.SetServiceFault(uatypes.BadNothingToDo)
		return
	}

	results, deleted := sub.DeleteItems(body.MonitoredItemIDs)
	m.notifyDeletedItems(req.Context(), deleted)
	req.SetResponse(uatypes.DeleteMonitoredItemsResponse{Results: results})
}

func (m *Manager) notifyDeletedItems(ctxt context.Context, deleted []subscription.DeletedItemInfo) {
	outcomes := make([]itemOutcome, len(deleted))
	for i, d := range deleted {
		outcomes[i] = itemOutcome{
			ok:      true,
			isEvent: d.Kind == item.EventKind,
			descriptor: namespace.ItemDescriptor{
				MonitoredItemID: d.ItemID, NodeID: d.ReadValueID.NodeID, AttributeID: d.ReadValueID.AttributeID,
			},
		}
	}
	m.notifyBucketed(ctxt, outcomes, m.ns.OnDataItemsDeleted, m.ns.OnEventItemsDeleted)
}

// notifyBucketed splits outcomes into Data/Event buckets and dispatches each
// non-empty bucket onto the bucketNotifier worker pool, one task per bucket,
// following the teacher's demux-processor pattern for spreading independent
// units of work across a fixed worker pool.
func (m *Manager) notifyBucketed(
	ctxt context.Context, outcomes []itemOutcome,
	onData, onEvent func(ctxt context.Context, items []namespace.ItemDescriptor) error,
) {
	var dataItems, eventItems []namespace.ItemDescriptor
	for _, o := range outcomes {
		if !o.ok {
			continue
		}
		if o.isEvent {
			eventItems = append(eventItems, o.descriptor)
		} else {
			dataItems = append(dataItems, o.descriptor)
		}
	}

	if len(dataItems) > 0 {
		_ = m.runOnMailbox(m.bucketNotifier, func() {
			if err := onData(ctxt, dataItems); err != nil {
				m.logNamespaceError("onDataItems", err)
			}
		})
	}
	if len(eventItems) > 0 {
		_ = m.runOnMailbox(m.bucketNotifier, func() {
			if err := onEvent(ctxt, eventItems); err != nil {
				m.logNamespaceError("onEventItems", err)
			}
		})
	}
}

// SetPublishingMode implements the setPublishingMode service, applying it to
// every named subscription in this session.
func (m *Manager) SetPublishingMode(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.SetPublishingModeRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}
	results := make([]uatypes.StatusCode, len(body.SubscriptionIDs))
	for i, id := range body.SubscriptionIDs {
		sub, ok := m.lookupOwned(id)
		if !ok {
			results[i] = uatypes.BadSubscriptionIDInvalid
			continue
		}
		sub.SetPublishingMode(body.PublishingEnabled)
		results[i] = uatypes.Good
	}
	req.SetResponse(uatypes.SetPublishingModeResponse{Results: results})
}

// SetMonitoringMode implements the setMonitoringMode service.
func (m *Manager) SetMonitoringMode(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.SetMonitoringModeRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}
	sub, ok := m.lookupOwned(body.SubscriptionID)
	if !ok {
		req.SetServiceFault(uatypes.BadSubscriptionIDInvalid)
		return
	}
	if len(body.MonitoredItemIDs) == 0 {
		req.SetServiceFault(uatypes.BadNothingToDo)
		return
	}
	results := sub.SetMonitoringMode(body.MonitoredItemIDs, body.MonitoringMode)
	req.SetResponse(uatypes.SetMonitoringModeResponse{Results: results})
}

// SetTriggering implements the setTriggering service.
func (m *Manager) SetTriggering(req servicereq.ServiceRequest) {
	body, ok := req.Body().(*uatypes.SetTriggeringRequest)
	if !ok {
		req.SetServiceFault(uatypes.BadInternalError)
		return
	}
	sub, ok := m.lookupOwned(body.SubscriptionID)
	if !ok {
		req.SetServiceFault(uatypes.BadSubscriptionIDInvalid)
		return
	}
	if len(body.LinksToAdd) == 0 && len(body.LinksToRemove) == 0 {
		req.SetServiceFault(uatypes.BadNothingToDo)
		return
	}
	addResults, removeResults, err := sub.SetTriggering(body.TriggeringItemID, body.LinksToAdd, body.LinksToRemove)
	if err != nil {
		req.SetServiceFault(namespace.StatusCodeOf(err))
		return
	}
	req.SetResponse(uatypes.SetTriggeringResponse{AddResults: addResults, RemoveResults: removeResults})
}
