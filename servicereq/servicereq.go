// Package servicereq defines the boundary between the subscription core and
// the stack layer that actually decodes/encodes OPC UA service requests off
// the wire. The core never builds or parses a wire message; it receives a
// ServiceRequest, reads its typed body, and resolves it exactly once.
package servicereq

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/project-nan/opcua-subs/uatypes"
)

// RequestHeader is the subset of the standard OPC UA RequestHeader the core
// cares about: the request's correlation handle and the session it arrived
// on. Authentication/timestamps/audit fields live at the stack layer.
type RequestHeader struct {
	// RequestHandle is the client-assigned correlation handle, echoed back
	// in the ResponseHeader and used to key a Publish request's acknowledge
	// results until that Publish completes.
	RequestHandle uint32
	// SessionID names which session's SubscriptionManager should handle this.
	SessionID string
}

// ResponseHeader is returned alongside a successful service response.
type ResponseHeader struct {
	Timestamp     time.Time
	RequestHandle uint32
	ServiceResult uatypes.StatusCode
}

// ServiceRequest carries one decoded OPC UA service request body through the
// core to its terminal resolution. It must be resolved exactly once, via
// either SetResponse or SetServiceFault; a second call is a no-op.
type ServiceRequest interface {
	// Header returns the request's correlation/session info.
	Header() RequestHeader
	// Body returns the typed request body (e.g. *uatypes.MonitoredItemCreateRequest
	// or a service-specific request struct); callers type-assert it.
	Body() interface{}
	// Context is cancelled if the underlying connection/session goes away
	// before the core resolves the request.
	Context() context.Context
	// SetResponse resolves the request successfully with the given response body.
	SetResponse(body interface{})
	// SetServiceFault resolves the request with a service-level fault, used
	// when the whole request (not a single per-item result) cannot proceed.
	SetServiceFault(code uatypes.StatusCode)
	// CorrelationID is a per-request identifier threaded through logging,
	// independent of the wire-level RequestHandle.
	CorrelationID() string
}

// New constructs a ServiceRequest wrapping body, resolved exactly once
// through either onResponse (with the response body) or onFault (with the
// fault StatusCode). Either callback may be nil if the caller does not need it.
func New(
	ctxt context.Context, header RequestHeader, body interface{},
	onResponse func(body interface{}), onFault func(code uatypes.StatusCode),
) ServiceRequest {
	return &defaultServiceRequest{
		ctxt:       ctxt,
		header:     header,
		body:       body,
		onResponse: onResponse,
		onFault:    onFault,
		corrID:     uuid.New().String(),
	}
}

type defaultServiceRequest struct {
	ctxt       context.Context
	header     RequestHeader
	body       interface{}
	onResponse func(body interface{})
	onFault    func(code uatypes.StatusCode)
	corrID     string
	once       sync.Once
}

func (r *defaultServiceRequest) Header() RequestHeader { return r.header }

func (r *defaultServiceRequest) Body() interface{} { return r.body }

func (r *defaultServiceRequest) Context() context.Context { return r.ctxt }

func (r *defaultServiceRequest) CorrelationID() string { return r.corrID }

func (r *defaultServiceRequest) SetResponse(body interface{}) {
	r.once.Do(func() {
		if r.onResponse != nil {
			r.onResponse(body)
		}
	})
}

func (r *defaultServiceRequest) SetServiceFault(code uatypes.StatusCode) {
	r.once.Do(func() {
		if r.onFault != nil {
			r.onFault(code)
		}
	})
}
