package queue

import (
	"context"
	"testing"
	"time"

	"github.com/project-nan/opcua-subs/servicereq"
	"github.com/stretchr/testify/assert"
)

func TestPublishQueueFIFOOrder(t *testing.T) {
	assert := assert.New(t)
	uut := New()

	assert.False(uut.IsNotEmpty())
	req1 := servicereq.New(context.Background(), servicereq.RequestHeader{RequestHandle: 1}, nil, nil, nil)
	req2 := servicereq.New(context.Background(), servicereq.RequestHeader{RequestHandle: 2}, nil, nil, nil)
	uut.AddRequest(req1)
	uut.AddRequest(req2)
	assert.Equal(2, uut.Len())

	got1, ok := uut.Poll()
	assert.True(ok)
	assert.Equal(uint32(1), got1.Header().RequestHandle)

	got2, ok := uut.Poll()
	assert.True(ok)
	assert.Equal(uint32(2), got2.Header().RequestHandle)

	_, ok = uut.Poll()
	assert.False(ok)
}

func TestPublishQueueWaitWakesOnAddRequest(t *testing.T) {
	assert := assert.New(t)
	uut := New()

	done := make(chan bool, 1)
	go func() {
		ctxt, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- uut.Wait(ctxt)
	}()

	time.Sleep(20 * time.Millisecond)
	uut.AddRequest(servicereq.New(context.Background(), servicereq.RequestHeader{}, nil, nil, nil))

	select {
	case result := <-done:
		assert.True(result)
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake up on AddRequest")
	}
}

func TestPublishQueueWaitUnblocksOnContextCancel(t *testing.T) {
	assert := assert.New(t)
	uut := New()

	ctxt, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(uut.Wait(ctxt))
}
