package namespace

import (
	"context"
	"testing"

	"github.com/project-nan/opcua-subs/uatypes"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryOnCreateMonitoredItem(t *testing.T) {
	assert := assert.New(t)
	uut := NewInMemory()

	node := uatypes.NodeID{NamespaceIndex: 2, Identifier: "temperature"}
	uut.RegisterNode(node, NodeInfo{MinSamplingInterval: 100})

	// Case 0: unknown node fails with Bad_InternalError
	{
		unknown := uatypes.NodeID{NamespaceIndex: 2, Identifier: "unknown"}
		var gotErr error
		var gotVal float64
		uut.OnCreateMonitoredItem(
			context.Background(), unknown, uatypes.AttributeIDValue, 50,
			NewSamplingRevisionFuture(context.Background(), func(v float64, e error) {
				gotVal, gotErr = v, e
			}),
		)
		assert.Equal(uatypes.BadInternalError, StatusCodeOf(gotErr))
		assert.Equal(float64(0), gotVal)
	}

	// Case 1: requested interval below node minimum is revised up
	{
		var gotVal float64
		var gotErr error
		uut.OnCreateMonitoredItem(
			context.Background(), node, uatypes.AttributeIDValue, 20,
			NewSamplingRevisionFuture(context.Background(), func(v float64, e error) {
				gotVal, gotErr = v, e
			}),
		)
		assert.Nil(gotErr)
		assert.Equal(float64(100), gotVal)
	}

	// Case 2: negative "inherit" sentinel passes through unchanged
	{
		var gotVal float64
		uut.OnCreateMonitoredItem(
			context.Background(), node, uatypes.AttributeIDValue, -1,
			NewSamplingRevisionFuture(context.Background(), func(v float64, e error) {
				gotVal = v
			}),
		)
		assert.Equal(float64(-1), gotVal)
	}

	// Case 3: lifecycle callbacks accumulate and are visible via Snapshot
	{
		item := ItemDescriptor{MonitoredItemID: 7, NodeID: node, AttributeID: uatypes.AttributeIDValue}
		assert.Nil(uut.OnDataItemsCreated(context.Background(), []ItemDescriptor{item}))
		dataC, _, _, _, _, _, _ := uut.Snapshot()
		assert.Equal(1, len(dataC))
		assert.Equal(uint32(7), dataC[0].MonitoredItemID)
	}
}

func TestSamplingRevisionFutureCompletesOnce(t *testing.T) {
	assert := assert.New(t)
	calls := 0
	future := NewSamplingRevisionFuture(context.Background(), func(v float64, e error) {
		calls++
	})
	future.Complete(1, nil)
	future.Complete(2, nil)
	assert.Equal(1, calls)
}
