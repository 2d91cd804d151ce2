package item

import (
	"testing"
	"time"

	"github.com/project-nan/opcua-subs/uatypes"
	"github.com/stretchr/testify/assert"
)

func sample(v float64, status uatypes.StatusCode, ts time.Time) uatypes.DataValue {
	return uatypes.DataValue{Value: v, StatusCode: status, SourceTimestamp: ts}
}

func TestDataItemQueueSizeOneOverwrites(t *testing.T) {
	assert := assert.New(t)
	uut, err := NewDataItem(1, uatypes.ReadValueID{}, 10, 0, 1, false, nil, nil)
	assert.Nil(err)

	now := time.Now()
	assert.True(uut.EnqueueData(sample(1, uatypes.Good, now)))
	assert.True(uut.EnqueueData(sample(2, uatypes.Good, now.Add(time.Millisecond))))

	out, more := uut.DrainData(0)
	assert.False(more)
	assert.Equal(1, len(out))
	assert.Equal(float64(2), out[0].Value.Value)
	assert.False(out[0].Value.StatusCode.HasOverflow())
}

func TestDataItemDiscardOldestSetsOverflowOnHead(t *testing.T) {
	assert := assert.New(t)
	uut, err := NewDataItem(1, uatypes.ReadValueID{}, 10, 0, 2, true, nil, nil)
	assert.Nil(err)

	now := time.Now()
	for i := 0; i < 5; i++ {
		assert.True(uut.EnqueueData(sample(float64(i), uatypes.Good, now.Add(time.Duration(i)*time.Millisecond))))
	}

	out, more := uut.DrainData(0)
	assert.False(more)
	assert.Equal(2, len(out))
	// oldest 3 of 5 dropped; retained are values 3 and 4, head carries Overflow
	assert.Equal(float64(3), out[0].Value.Value)
	assert.Equal(float64(4), out[1].Value.Value)
	assert.True(out[0].Value.StatusCode.HasOverflow())
	assert.False(out[1].Value.StatusCode.HasOverflow())
}

func TestDataItemDiscardNewestDropsIncoming(t *testing.T) {
	assert := assert.New(t)
	uut, err := NewDataItem(1, uatypes.ReadValueID{}, 10, 0, 2, false, nil, nil)
	assert.Nil(err)

	now := time.Now()
	for i := 0; i < 4; i++ {
		assert.True(uut.EnqueueData(sample(float64(i), uatypes.Good, now.Add(time.Duration(i)*time.Millisecond))))
	}

	out, _ := uut.DrainData(0)
	assert.Equal(2, len(out))
	assert.Equal(float64(0), out[0].Value.Value)
	assert.Equal(float64(1), out[1].Value.Value)
	assert.True(out[0].Value.StatusCode.HasOverflow())
}

func TestDataItemPercentDeadbandRequiresEURange(t *testing.T) {
	assert := assert.New(t)
	filter := &uatypes.DataChangeFilter{
		Trigger: uatypes.TriggerStatusValue, DeadbandType: uatypes.DeadbandPercent, DeadbandValue: 10,
	}

	// Case 0: no euLookup at all -> Bad_DeadbandFilterInvalid
	{
		_, err := NewDataItem(1, uatypes.ReadValueID{}, 10, 0, 2, true, filter, nil)
		assert.NotNil(err)
	}

	// Case 1: euLookup present but returns not-found -> Bad_DeadbandFilterInvalid
	{
		_, err := NewDataItem(1, uatypes.ReadValueID{}, 10, 0, 2, true, filter, func(uatypes.NodeID) (*uatypes.EURange, bool) {
			return nil, false
		})
		assert.NotNil(err)
	}

	// Case 2: euLookup returns a range -> accepted, and percent deadband applied
	{
		eu := &uatypes.EURange{Low: 0, High: 100}
		uut, err := NewDataItem(1, uatypes.ReadValueID{}, 10, 0, 2, true, filter, func(uatypes.NodeID) (*uatypes.EURange, bool) {
			return eu, true
		})
		assert.Nil(err)

		now := time.Now()
		assert.True(uut.EnqueueData(sample(0, uatypes.Good, now)))
		// change of 5 within a 100-wide range at 10% deadband (threshold 10) should NOT report
		assert.False(uut.EnqueueData(sample(5, uatypes.Good, now.Add(time.Millisecond))))
		// change of 15 should report
		assert.True(uut.EnqueueData(sample(15, uatypes.Good, now.Add(2*time.Millisecond))))
	}
}

func TestDataItemTriggerStatusOnlyIgnoresValueChange(t *testing.T) {
	assert := assert.New(t)
	filter := &uatypes.DataChangeFilter{Trigger: uatypes.TriggerStatus, DeadbandType: uatypes.DeadbandNone}
	uut, err := NewDataItem(1, uatypes.ReadValueID{}, 10, 0, 4, true, filter, nil)
	assert.Nil(err)

	now := time.Now()
	assert.True(uut.EnqueueData(sample(1, uatypes.Good, now)))
	assert.False(uut.EnqueueData(sample(999, uatypes.Good, now.Add(time.Millisecond))))
	assert.True(uut.EnqueueData(sample(999, uatypes.BadTimeout, now.Add(2*time.Millisecond))))
}

func TestDataItemDisabledModeDropsSamplesAndClearsQueue(t *testing.T) {
	assert := assert.New(t)
	uut, err := NewDataItem(1, uatypes.ReadValueID{}, 10, 0, 4, true, nil, nil)
	assert.Nil(err)

	now := time.Now()
	assert.True(uut.EnqueueData(sample(1, uatypes.Good, now)))
	uut.SetMonitoringMode(uatypes.MonitoringModeDisabled)
	assert.False(uut.HasPendingData())
	assert.False(uut.EnqueueData(sample(2, uatypes.Good, now.Add(time.Millisecond))))
}

func TestDataItemModifyTruncatesOnQueueSizeDecrease(t *testing.T) {
	assert := assert.New(t)
	uut, err := NewDataItem(1, uatypes.ReadValueID{}, 10, 0, 4, true, nil, nil)
	assert.Nil(err)

	now := time.Now()
	for i := 0; i < 4; i++ {
		assert.True(uut.EnqueueData(sample(float64(i), uatypes.Good, now.Add(time.Duration(i)*time.Millisecond))))
	}

	assert.Nil(uut.ModifyData(ModifyDataParams{
		ClientHandle: 10, SamplingInterval: 0, QueueSize: 2, DiscardOldest: true,
	}))

	out, more := uut.DrainData(0)
	assert.False(more)
	assert.Equal(2, len(out))
	assert.True(out[0].Value.StatusCode.HasOverflow())
}

func TestDataItemDrainTriggeredDataOnlyAllowsSamplingMode(t *testing.T) {
	assert := assert.New(t)
	uut, err := NewDataItem(1, uatypes.ReadValueID{}, 10, 0, 4, true, nil, nil)
	assert.Nil(err)

	now := time.Now()
	assert.True(uut.EnqueueData(sample(1, uatypes.Good, now)))

	// A Reporting item's queue is not reachable through DrainTriggeredData.
	out, more := uut.DrainTriggeredData(0)
	assert.Nil(out)
	assert.False(more)

	// Nor is a Sampling item's queue reachable through the plain DrainData.
	uut.SetMonitoringMode(uatypes.MonitoringModeSampling)
	assert.True(uut.EnqueueData(sample(2, uatypes.Good, now.Add(time.Millisecond))))
	out, more = uut.DrainData(0)
	assert.Nil(out)
	assert.False(more)

	out, more = uut.DrainTriggeredData(0)
	assert.False(more)
	assert.Equal(2, len(out))
	assert.Equal(float64(1), out[0].Value.Value)
	assert.Equal(float64(2), out[1].Value.Value)
}
