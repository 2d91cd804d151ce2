// Package namespace defines the boundary between the subscription core and
// the address-space / attribute-read layer. The core never resolves a
// NodeID or samples a value itself; it calls out through this interface and
// reacts to the results.
package namespace

import (
	"context"
	"sync"

	"github.com/project-nan/opcua-subs/uatypes"
)

// ItemDescriptor names a single MonitoredItem for the bucketed
// onXxxCreated/Modified/Deleted/onMonitoringModeChanged callbacks.
type ItemDescriptor struct {
	MonitoredItemID uint32              `validate:"required"`
	NodeID          uatypes.NodeID      `validate:"required"`
	AttributeID     uatypes.AttributeID `validate:"required"`
	MonitoringMode  uatypes.MonitoringMode
}

// SamplingRevisionFuture is completed exactly once by the Namespace in
// response to onCreateMonitoredItem/onModifyMonitoredItem, either with a
// revised sampling interval or with an error StatusCode. It carries the
// context under which it was registered; a Namespace implementation that
// wants to honor cancellation should select on Context().Done() alongside
// whatever async work it dispatches.
type SamplingRevisionFuture interface {
	// Complete resolves the future. Only the first call has any effect.
	Complete(revisedSamplingInterval float64, err error)
	// Context is the operation context the future was registered under;
	// it is cancelled if the owning Subscription is deleted mid-flight.
	Context() context.Context
}

// NewSamplingRevisionFuture constructs a future that invokes resultCB
// exactly once, either from an explicit Complete call or, if ctxt is
// cancelled first, with a Bad_SubscriptionIdInvalid completion on the
// caller's behalf via watchCancellation.
func NewSamplingRevisionFuture(
	ctxt context.Context, resultCB func(revisedSamplingInterval float64, err error),
) SamplingRevisionFuture {
	f := &samplingRevisionFutureImpl{ctxt: ctxt, resultCB: resultCB}
	go f.watchCancellation()
	return f
}

type samplingRevisionFutureImpl struct {
	ctxt     context.Context
	resultCB func(revisedSamplingInterval float64, err error)
	once     sync.Once
}

func (f *samplingRevisionFutureImpl) Complete(revisedSamplingInterval float64, err error) {
	f.once.Do(func() {
		f.resultCB(revisedSamplingInterval, err)
	})
}

// watchCancellation resolves the future with Bad_SubscriptionIdInvalid if
// ctxt is cancelled before the Namespace ever calls Complete, closing the
// window a Namespace could otherwise leave the caller waiting forever on a
// future whose owning Subscription (or connection) is already gone.
func (f *samplingRevisionFutureImpl) watchCancellation() {
	<-f.ctxt.Done()
	f.Complete(0, ErrStatusCode(uatypes.BadSubscriptionIDInvalid))
}

func (f *samplingRevisionFutureImpl) Context() context.Context {
	return f.ctxt
}

// Namespace is the address-space collaborator the subscription core drives.
// Implementations own node resolution, attribute sampling, and delivering
// DataValues/events to MonitoredItems through whatever ingress mechanism
// fits their storage; that ingress is not specified here.
type Namespace interface {
	// OnCreateMonitoredItem is called once per newly requested MonitoredItem.
	// The Namespace must eventually call future.Complete, either with the
	// revised sampling interval it will actually honor, or with a non-nil
	// error carrying a StatusCode (via AsStatusCoder) to fail that item.
	OnCreateMonitoredItem(
		ctxt context.Context, nodeID uatypes.NodeID, attributeID uatypes.AttributeID,
		requestedSamplingInterval float64, future SamplingRevisionFuture,
	)

	// OnModifyMonitoredItem is called once per item being re-sampled.
	OnModifyMonitoredItem(
		ctxt context.Context, nodeID uatypes.NodeID,
		requestedSamplingInterval float64, future SamplingRevisionFuture,
	)

	// OnDataItemsCreated/Modified/Deleted report DataItem lifecycle, once per
	// call site with all affected items; the items are not grouped by
	// namespace index.
	OnDataItemsCreated(ctxt context.Context, items []ItemDescriptor) error
	OnDataItemsModified(ctxt context.Context, items []ItemDescriptor) error
	OnDataItemsDeleted(ctxt context.Context, items []ItemDescriptor) error

	// OnEventItemsCreated/Modified/Deleted are the EventItem analogues.
	OnEventItemsCreated(ctxt context.Context, items []ItemDescriptor) error
	OnEventItemsModified(ctxt context.Context, items []ItemDescriptor) error
	OnEventItemsDeleted(ctxt context.Context, items []ItemDescriptor) error

	// OnMonitoringModeChanged reports a MonitoringMode transition for items
	// across both DataItem and EventItem kinds.
	OnMonitoringModeChanged(ctxt context.Context, items []ItemDescriptor) error

	// EURangeOf returns the engineering-unit range of a Value-attribute node,
	// consulted only when a DataChangeFilter requests PercentDeadband; ok is
	// false when the node has no EURange.
	EURangeOf(nodeID uatypes.NodeID) (eu *uatypes.EURange, ok bool)
}

// StatusCoder is implemented by errors that carry a specific OPC UA
// StatusCode; ErrStatusCode below is the core's own implementation, but a
// Namespace may return any error satisfying this interface.
type StatusCoder interface {
	error
	StatusCode() uatypes.StatusCode
}

// ErrStatusCode wraps a StatusCode as an error, used by Namespace
// implementations (and the core itself) to fail a future with a specific code.
type ErrStatusCode uatypes.StatusCode

func (e ErrStatusCode) Error() string {
	return uatypes.StatusCode(e).String()
}

func (e ErrStatusCode) StatusCode() uatypes.StatusCode {
	return uatypes.StatusCode(e)
}

// StatusCodeOf extracts the StatusCode from err, defaulting to a generic Bad
// when err does not implement StatusCoder, per the error handling design's
// "Namespace errors" rule.
func StatusCodeOf(err error) uatypes.StatusCode {
	if err == nil {
		return uatypes.Good
	}
	if sc, ok := err.(StatusCoder); ok {
		return sc.StatusCode()
	}
	return uatypes.BadInternalError
}
