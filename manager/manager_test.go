package manager

import (
	"context"
	"sync"
	"testing"

	"github.com/project-nan/opcua-subs/common"
	"github.com/project-nan/opcua-subs/namespace"
	"github.com/project-nan/opcua-subs/registry"
	"github.com/project-nan/opcua-subs/servicereq"
	"github.com/project-nan/opcua-subs/uatypes"
	"github.com/stretchr/testify/assert"
)

func testLimits() common.SubscriptionLimits {
	return common.SubscriptionLimits{
		PublishingInterval: common.PublishingIntervalLimits{MinMillis: 50, MaxMillis: 60000},
		SamplingInterval:   common.SamplingIntervalLimits{MinMillis: 0, MaxMillis: 60000},
		KeepAliveLifetime: common.KeepAliveLifetimeDefaults{
			DefaultMaxKeepAliveCount: 3, MinLifetimeToKeepAliveRatio: 3,
		},
		AvailableMessagesRetentionCap: 16,
	}
}

// newTestManager builds a Manager wired against a real InMemory Namespace
// and ServerRegistry, with both mailboxes started; callers must call the
// returned cancel func (and Stop) once done.
func newTestManager(t *testing.T) (*Manager, *namespace.InMemory, func()) {
	ns := namespace.NewInMemory()
	reg := registry.New(nil, "")
	ctxt, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	m, err := New("session-1", testLimits(), ns, reg, ctxt, wg)
	assert.Nil(t, err)
	assert.Nil(t, m.Start())

	return m, ns, func() {
		m.Stop()
		cancel()
		wg.Wait()
	}
}

// capturingRequest is a servicereq.ServiceRequest that records whatever the
// manager resolves it with, for test assertions.
type capturingRequest struct {
	ctxt   context.Context
	header servicereq.RequestHeader
	body   interface{}

	lock     sync.Mutex
	response interface{}
	fault    *uatypes.StatusCode
	resolved chan struct{}
}

func newCapturingRequest(ctxt context.Context, body interface{}) *capturingRequest {
	return &capturingRequest{ctxt: ctxt, body: body, resolved: make(chan struct{})}
}

func (r *capturingRequest) Header() servicereq.RequestHeader { return r.header }
func (r *capturingRequest) Body() interface{}                { return r.body }
func (r *capturingRequest) Context() context.Context         { return r.ctxt }
func (r *capturingRequest) CorrelationID() string             { return "test" }

func (r *capturingRequest) SetResponse(body interface{}) {
	r.lock.Lock()
	defer r.lock.Unlock()
	select {
	case <-r.resolved:
		return
	default:
	}
	r.response = body
	close(r.resolved)
}

func (r *capturingRequest) SetServiceFault(code uatypes.StatusCode) {
	r.lock.Lock()
	defer r.lock.Unlock()
	select {
	case <-r.resolved:
		return
	default:
	}
	r.fault = &code
	close(r.resolved)
}
