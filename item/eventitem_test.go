package item

import (
	"testing"

	"github.com/project-nan/opcua-subs/uatypes"
	"github.com/stretchr/testify/assert"
)

func TestEventItemDiscardOldestMarksOverflow(t *testing.T) {
	assert := assert.New(t)
	uut := NewEventItem(1, uatypes.ReadValueID{}, 5, 0, 2, true, nil)

	for i := 0; i < 4; i++ {
		assert.True(uut.EnqueueEvent([]interface{}{i}))
	}

	out, overflowed, more := uut.DrainEvents(0)
	assert.False(more)
	assert.True(overflowed)
	assert.Equal(2, len(out))
	assert.Equal(2, out[0].EventFields[0])
	assert.Equal(3, out[1].EventFields[0])
}

func TestEventItemQueueSizeOneOverwrites(t *testing.T) {
	assert := assert.New(t)
	uut := NewEventItem(1, uatypes.ReadValueID{}, 5, 0, 1, false, nil)

	assert.True(uut.EnqueueEvent([]interface{}{"a"}))
	assert.True(uut.EnqueueEvent([]interface{}{"b"}))

	out, overflowed, _ := uut.DrainEvents(0)
	assert.False(overflowed)
	assert.Equal(1, len(out))
	assert.Equal("b", out[0].EventFields[0])
}

func TestEventItemModifyTruncates(t *testing.T) {
	assert := assert.New(t)
	uut := NewEventItem(1, uatypes.ReadValueID{}, 5, 0, 4, true, nil)

	for i := 0; i < 3; i++ {
		assert.True(uut.EnqueueEvent([]interface{}{i}))
	}
	assert.Nil(uut.ModifyEvent(ModifyEventParams{ClientHandle: 5, QueueSize: 1, DiscardOldest: true}))

	out, overflowed, more := uut.DrainEvents(0)
	assert.False(more)
	assert.True(overflowed)
	assert.Equal(1, len(out))
	assert.Equal(2, out[0].EventFields[0])
}

func TestEventItemDrainTriggeredEventsOnlyAllowsSamplingMode(t *testing.T) {
	assert := assert.New(t)
	uut := NewEventItem(1, uatypes.ReadValueID{}, 5, 0, 4, true, nil)

	assert.True(uut.EnqueueEvent([]interface{}{1}))

	// A Reporting item's queue is not reachable through DrainTriggeredEvents.
	out, overflowed, more := uut.DrainTriggeredEvents(0)
	assert.Nil(out)
	assert.False(overflowed)
	assert.False(more)

	// Nor is a Sampling item's queue reachable through the plain DrainEvents.
	uut.SetMonitoringMode(uatypes.MonitoringModeSampling)
	assert.True(uut.EnqueueEvent([]interface{}{2}))
	out, _, _ = uut.DrainEvents(0)
	assert.Nil(out)

	out, overflowed, more = uut.DrainTriggeredEvents(0)
	assert.False(overflowed)
	assert.False(more)
	assert.Equal(2, len(out))
	assert.Equal(1, out[0].EventFields[0])
	assert.Equal(2, out[1].EventFields[0])
}

func TestEventItemTriggeringLinks(t *testing.T) {
	assert := assert.New(t)
	uut := NewEventItem(1, uatypes.ReadValueID{}, 5, 0, 4, true, nil)

	uut.AddTriggeredItem(2)
	uut.AddTriggeredItem(3)
	ids := uut.TriggeredItemIDs()
	assert.ElementsMatch([]uint32{2, 3}, ids)

	assert.True(uut.RemoveTriggeredItem(2))
	assert.False(uut.RemoveTriggeredItem(2))
	assert.ElementsMatch([]uint32{3}, uut.TriggeredItemIDs())
}
