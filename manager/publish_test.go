package manager

import (
	"context"
	"testing"

	"github.com/project-nan/opcua-subs/uatypes"
	"github.com/stretchr/testify/assert"
)

func TestPublishFaultsOutrightWithNoSubscriptions(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	req := newCapturingRequest(context.Background(), &uatypes.PublishRequest{})
	m.Publish(req)
	<-req.resolved
	assert.NotNil(req.fault)
	assert.Equal(uatypes.BadNoSubscription, *req.fault)
}

func TestPublishRecordsAckResultsAndParksWhenNoSubscriptionIsLate(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	subID := createTestSubscription(t, m)

	req := newCapturingRequest(context.Background(), &uatypes.PublishRequest{
		SubscriptionAcknowledgements: []uatypes.SubscriptionAcknowledgement{
			{SubscriptionID: subID, SequenceNumber: 1},
			{SubscriptionID: 999, SequenceNumber: 1},
		},
	})
	req.header.RequestHandle = 42

	m.Publish(req)

	// Neither resolved nor faulted: parked on the PublishQueue awaiting a tick.
	select {
	case <-req.resolved:
		t.Fatal("expected Publish request to remain parked")
	default:
	}

	results := m.AcknowledgeResultsFor(42)
	assert.Len(results, 2)
	assert.Equal(uatypes.BadSubscriptionIDInvalid, results[1])
}

func TestPublishDeliversParkedTransferNotificationImmediately(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	subID := createTestSubscription(t, m)
	sub, _ := m.lookupOwned(subID)
	m.AdoptTransferredSubscription(sub)

	req := newCapturingRequest(context.Background(), &uatypes.PublishRequest{})
	m.Publish(req)
	<-req.resolved

	assert.Nil(req.fault)
	resp := req.response.(uatypes.PublishResponse)
	assert.Equal(subID, resp.SubscriptionID)
	assert.NotNil(resp.NotificationMessage.NotificationData[0].StatusChange)
	assert.Equal(
		uatypes.GoodSubscriptionTransferred,
		resp.NotificationMessage.NotificationData[0].StatusChange.Status,
	)
}

func TestRepublishUnknownSubscriptionFaults(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	req := newCapturingRequest(context.Background(), &uatypes.RepublishRequest{
		SubscriptionID: 999, RetransmitSequenceNumber: 1,
	})
	m.Republish(req)
	<-req.resolved
	assert.NotNil(req.fault)
	assert.Equal(uatypes.BadSubscriptionIDInvalid, *req.fault)
}

func TestSnapshotSubscriptionsOrdersByPriorityThenLastServedAt(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	lowID := createTestSubscription(t, m)
	highReq := newCapturingRequest(context.Background(), &uatypes.CreateSubscriptionRequest{
		RequestedPublishingInterval: 100, RequestedMaxKeepAliveCount: 3, RequestedLifetimeCount: 9,
		PublishingEnabled: true, Priority: 5,
	})
	m.CreateSubscription(highReq)
	<-highReq.resolved
	highID := highReq.response.(uatypes.CreateSubscriptionResponse).SubscriptionID

	ordered := m.snapshotSubscriptions()
	assert.Len(ordered, 2)
	assert.Equal(highID, ordered[0].ID())
	assert.Equal(lowID, ordered[1].ID())
}

func TestRepublishUnknownSequenceNumberFaults(t *testing.T) {
	assert := assert.New(t)
	m, _, done := newTestManager(t)
	defer done()

	subID := createTestSubscription(t, m)

	req := newCapturingRequest(context.Background(), &uatypes.RepublishRequest{
		SubscriptionID: subID, RetransmitSequenceNumber: 12345,
	})
	m.Republish(req)
	<-req.resolved
	assert.NotNil(req.fault)
}
