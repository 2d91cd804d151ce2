package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/project-nan/opcua-subs/common"
	"github.com/project-nan/opcua-subs/servicereq"
	"github.com/project-nan/opcua-subs/subscription"
	"github.com/project-nan/opcua-subs/uatypes"
	"github.com/stretchr/testify/assert"
)

type fakeSessionOwner struct {
	adopted *subscription.Subscription
}

func (f *fakeSessionOwner) ClaimPublishRequest() (servicereq.ServiceRequest, bool) { return nil, false }
func (f *fakeSessionOwner) AcknowledgeResultsFor(uint32) []uatypes.StatusCode      { return nil }
func (f *fakeSessionOwner) NotifyStatusChange(*subscription.Subscription, uatypes.StatusChangeNotification) {
}
func (f *fakeSessionOwner) AdoptTransferredSubscription(sub *subscription.Subscription) {
	f.adopted = sub
}

func newTimer(t *testing.T) common.IntervalTimer {
	wg := &sync.WaitGroup{}
	timer, err := common.GetIntervalTimerInstance("test", context.Background(), wg)
	assert.Nil(t, err)
	return timer
}

func TestNextSubscriptionIDIsMonotonicAndUnique(t *testing.T) {
	assert := assert.New(t)
	uut := New(nil, "")
	seen := map[uint32]bool{}
	for i := 0; i < 100; i++ {
		id := uut.NextSubscriptionID()
		assert.False(seen[id])
		seen[id] = true
	}
}

func TestRegisterLookupUnregister(t *testing.T) {
	assert := assert.New(t)
	uut := New(nil, "")
	owner := &fakeSessionOwner{}
	sub := subscription.New(1, subscription.CreateParams{
		PublishingInterval: 100, MaxKeepAliveCount: 3, LifetimeCount: 9, PublishingEnabled: true,
	}, owner, newTimer(t), context.Background())

	_, ok := uut.Lookup(1)
	assert.False(ok)

	uut.Register(sub, owner)
	got, ok := uut.Lookup(1)
	assert.True(ok)
	assert.Equal(sub, got)

	uut.Unregister(1)
	_, ok = uut.Lookup(1)
	assert.False(ok)
}

func TestTransferReassignsOwnerAndNotifiesNewOwner(t *testing.T) {
	assert := assert.New(t)
	uut := New(nil, "")
	oldOwner := &fakeSessionOwner{}
	newOwner := &fakeSessionOwner{}
	sub := subscription.New(1, subscription.CreateParams{
		PublishingInterval: 100, MaxKeepAliveCount: 3, LifetimeCount: 9, PublishingEnabled: true,
	}, oldOwner, newTimer(t), context.Background())
	uut.Register(sub, oldOwner)

	assert.Nil(uut.Transfer(1, newOwner))
	assert.Equal(sub, newOwner.adopted)

	assert.NotNil(uut.Transfer(999, newOwner))
}

func TestBroadcastStatusChangeNoopsWithNilPublisher(t *testing.T) {
	uut := New(nil, "some.subject")
	uut.BroadcastStatusChange(1, uatypes.StatusChangeNotification{Status: uatypes.BadTimeout})
}
