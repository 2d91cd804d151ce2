package manager

import (
	"context"
	"testing"

	"github.com/project-nan/opcua-subs/uatypes"
	"github.com/stretchr/testify/assert"
)

func TestCreateSubscriptionClampsPublishingIntervalAndAppliesDefaults(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	req := newCapturingRequest(context.Background(), &uatypes.CreateSubscriptionRequest{
		RequestedPublishingInterval: 1, // below the 50ms floor
		RequestedLifetimeCount:      0, // below 3x the default keep-alive
		RequestedMaxKeepAliveCount:  0, // zero means "use server default"
		PublishingEnabled:           true,
	})

	m.CreateSubscription(req)

	<-req.resolved
	assert.Nil(req.fault)
	resp, ok := req.response.(uatypes.CreateSubscriptionResponse)
	assert.True(ok)
	assert.Equal(float64(50), resp.RevisedPublishingInterval)
	assert.Equal(uint32(3), resp.RevisedMaxKeepAliveCount)
	assert.Equal(uint32(9), resp.RevisedLifetimeCount)

	sub, ok := m.lookupOwned(resp.SubscriptionID)
	assert.True(ok)
	assert.Equal(resp.SubscriptionID, sub.ID())
}

func TestModifySubscriptionRevisesExistingSubscription(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	createReq := newCapturingRequest(context.Background(), &uatypes.CreateSubscriptionRequest{
		RequestedPublishingInterval: 100, RequestedMaxKeepAliveCount: 3, RequestedLifetimeCount: 9,
		PublishingEnabled: true,
	})
	m.CreateSubscription(createReq)
	<-createReq.resolved
	id := createReq.response.(uatypes.CreateSubscriptionResponse).SubscriptionID

	modifyReq := newCapturingRequest(context.Background(), &uatypes.ModifySubscriptionRequest{
		SubscriptionID: id, RequestedPublishingInterval: 200,
		RequestedMaxKeepAliveCount: 4, RequestedLifetimeCount: 12,
	})
	m.ModifySubscription(modifyReq)
	<-modifyReq.resolved

	assert.Nil(modifyReq.fault)
	resp := modifyReq.response.(uatypes.ModifySubscriptionResponse)
	assert.Equal(float64(200), resp.RevisedPublishingInterval)
	assert.Equal(uint32(4), resp.RevisedMaxKeepAliveCount)
	assert.Equal(uint32(12), resp.RevisedLifetimeCount)
}

func TestModifySubscriptionUnknownIDFaults(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	req := newCapturingRequest(context.Background(), &uatypes.ModifySubscriptionRequest{SubscriptionID: 999})
	m.ModifySubscription(req)
	<-req.resolved
	assert.NotNil(req.fault)
	assert.Equal(uatypes.BadSubscriptionIDInvalid, *req.fault)
}

func TestDeleteSubscriptionDrainsPublishQueueWhenNoneRemain(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	createReq := newCapturingRequest(context.Background(), &uatypes.CreateSubscriptionRequest{
		RequestedPublishingInterval: 100, RequestedMaxKeepAliveCount: 3, RequestedLifetimeCount: 9,
		PublishingEnabled: true,
	})
	m.CreateSubscription(createReq)
	<-createReq.resolved
	id := createReq.response.(uatypes.CreateSubscriptionResponse).SubscriptionID

	parkedPublish := newCapturingRequest(context.Background(), &uatypes.PublishRequest{})
	m.Publish(parkedPublish)
	assert.Nil(parkedPublish.fault)
	assert.Nil(parkedPublish.response)

	deleteReq := newCapturingRequest(context.Background(), &uatypes.DeleteSubscriptionsRequest{
		SubscriptionIDs: []uint32{id},
	})
	m.DeleteSubscription(deleteReq)
	<-deleteReq.resolved

	resp := deleteReq.response.(uatypes.DeleteSubscriptionsResponse)
	assert.Equal([]uatypes.StatusCode{uatypes.Good}, resp.Results)

	<-parkedPublish.resolved
	assert.NotNil(parkedPublish.fault)
	assert.Equal(uatypes.BadNoSubscription, *parkedPublish.fault)
}

func TestDeleteSubscriptionEmptyListFaultsNothingToDo(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	req := newCapturingRequest(context.Background(), &uatypes.DeleteSubscriptionsRequest{SubscriptionIDs: nil})
	m.DeleteSubscription(req)
	<-req.resolved
	assert.NotNil(req.fault)
	assert.Equal(uatypes.BadNothingToDo, *req.fault)
}
