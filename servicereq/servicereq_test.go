package servicereq

import (
	"context"
	"testing"

	"github.com/apex/log"
	"github.com/project-nan/opcua-subs/uatypes"
	"github.com/stretchr/testify/assert"
)

func TestServiceRequestResolvesOnce(t *testing.T) {
	assert := assert.New(t)

	// Case 0: SetResponse fires onResponse exactly once
	{
		responses := 0
		faults := 0
		uut := New(
			context.Background(), RequestHeader{RequestHandle: 42, SessionID: "sess-1"}, "body",
			func(body interface{}) { responses++ },
			func(code uatypes.StatusCode) { faults++ },
		)
		uut.SetResponse("ok")
		uut.SetResponse("ok-again")
		uut.SetServiceFault(uatypes.BadInternalError)
		assert.Equal(1, responses)
		assert.Equal(0, faults)
	}

	// Case 1: SetServiceFault fires onFault exactly once, and blocks a later SetResponse
	{
		responses := 0
		faults := 0
		uut := New(
			context.Background(), RequestHeader{}, nil,
			func(body interface{}) { responses++ },
			func(code uatypes.StatusCode) { faults++ },
		)
		uut.SetServiceFault(uatypes.BadNothingToDo)
		uut.SetResponse("too-late")
		assert.Equal(0, responses)
		assert.Equal(1, faults)
	}

	// Case 2: CorrelationID is non-empty and stable across calls
	{
		uut := New(context.Background(), RequestHeader{}, nil, nil, nil)
		id1 := uut.CorrelationID()
		id2 := uut.CorrelationID()
		assert.NotEmpty(id1)
		assert.Equal(id1, id2)
	}
}

func TestLogTagsFor(t *testing.T) {
	assert := assert.New(t)
	uut := New(context.Background(), RequestHeader{RequestHandle: 7, SessionID: "s1"}, nil, nil, nil)
	tags := LogTagsFor(log.Fields{"module": "manager"}, uut)
	assert.Equal("manager", tags["module"])
	assert.Equal("s1", tags["session-id"])
	assert.Equal(uint32(7), tags["request-handle"])
	assert.Equal(uut.CorrelationID(), tags["request-id"])
}
