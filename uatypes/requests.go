package uatypes

// This file carries the per-service request/response wire struct layouts
// the subscription core dispatches on. Field names follow Part 4's service
// definitions; this is not a wire codec (see the package doc comment).

type CreateSubscriptionRequest struct {
	RequestedPublishingInterval float64 `json:"requested_publishing_interval"`
	RequestedLifetimeCount      uint32  `json:"requested_lifetime_count"`
	RequestedMaxKeepAliveCount  uint32  `json:"requested_max_keep_alive_count"`
	MaxNotificationsPerPublish  uint32  `json:"max_notifications_per_publish"`
	PublishingEnabled           bool    `json:"publishing_enabled"`
	Priority                    uint8   `json:"priority"`
}

type CreateSubscriptionResponse struct {
	SubscriptionID             uint32  `json:"subscription_id"`
	RevisedPublishingInterval  float64 `json:"revised_publishing_interval"`
	RevisedLifetimeCount       uint32  `json:"revised_lifetime_count"`
	RevisedMaxKeepAliveCount   uint32  `json:"revised_max_keep_alive_count"`
}

type ModifySubscriptionRequest struct {
	SubscriptionID               uint32  `json:"subscription_id"`
	RequestedPublishingInterval  float64 `json:"requested_publishing_interval"`
	RequestedLifetimeCount       uint32  `json:"requested_lifetime_count"`
	RequestedMaxKeepAliveCount   uint32  `json:"requested_max_keep_alive_count"`
	MaxNotificationsPerPublish   uint32  `json:"max_notifications_per_publish"`
	Priority                     uint8   `json:"priority"`
}

type ModifySubscriptionResponse struct {
	RevisedPublishingInterval float64 `json:"revised_publishing_interval"`
	RevisedLifetimeCount      uint32  `json:"revised_lifetime_count"`
	RevisedMaxKeepAliveCount  uint32  `json:"revised_max_keep_alive_count"`
}

type DeleteSubscriptionsRequest struct {
	SubscriptionIDs []uint32 `json:"subscription_ids" validate:"required,min=1"`
}

type DeleteSubscriptionsResponse struct {
	Results []StatusCode `json:"results"`
}

type CreateMonitoredItemsRequest struct {
	SubscriptionID      uint32                       `json:"subscription_id"`
	TimestampsToReturn  TimestampsToReturn            `json:"timestamps_to_return"`
	ItemsToCreate       []MonitoredItemCreateRequest  `json:"items_to_create"`
}

type CreateMonitoredItemsResponse struct {
	Results []MonitoredItemCreateResult `json:"results"`
}

type ModifyMonitoredItemsRequest struct {
	SubscriptionID     uint32                       `json:"subscription_id"`
	TimestampsToReturn TimestampsToReturn           `json:"timestamps_to_return"`
	ItemsToModify      []MonitoredItemModifyRequest `json:"items_to_modify"`
}

type ModifyMonitoredItemsResponse struct {
	Results []MonitoredItemModifyResult `json:"results"`
}

type DeleteMonitoredItemsRequest struct {
	SubscriptionID   uint32   `json:"subscription_id"`
	MonitoredItemIDs []uint32 `json:"monitored_item_ids" validate:"required,min=1"`
}

type DeleteMonitoredItemsResponse struct {
	Results []StatusCode `json:"results"`
}

type SetPublishingModeRequest struct {
	PublishingEnabled bool     `json:"publishing_enabled"`
	SubscriptionIDs   []uint32 `json:"subscription_ids" validate:"required,min=1"`
}

type SetPublishingModeResponse struct {
	Results []StatusCode `json:"results"`
}

type SetMonitoringModeRequest struct {
	SubscriptionID   uint32         `json:"subscription_id"`
	MonitoringMode   MonitoringMode `json:"monitoring_mode"`
	MonitoredItemIDs []uint32       `json:"monitored_item_ids" validate:"required,min=1"`
}

type SetMonitoringModeResponse struct {
	Results []StatusCode `json:"results"`
}

type SetTriggeringRequest struct {
	SubscriptionID   uint32   `json:"subscription_id"`
	TriggeringItemID uint32   `json:"triggering_item_id"`
	LinksToAdd       []uint32 `json:"links_to_add"`
	LinksToRemove    []uint32 `json:"links_to_remove"`
}

type SetTriggeringResponse struct {
	AddResults    []StatusCode `json:"add_results"`
	RemoveResults []StatusCode `json:"remove_results"`
}

// SubscriptionAcknowledgement is one ack within a PublishRequest.
type SubscriptionAcknowledgement struct {
	SubscriptionID uint32 `json:"subscription_id"`
	SequenceNumber uint32 `json:"sequence_number"`
}

type PublishRequest struct {
	SubscriptionAcknowledgements []SubscriptionAcknowledgement `json:"subscription_acknowledgements"`
}

type RepublishRequest struct {
	SubscriptionID uint32 `json:"subscription_id"`
	RetransmitSequenceNumber uint32 `json:"retransmit_sequence_number"`
}

type RepublishResponse struct {
	NotificationMessage NotificationMessage `json:"notification_message"`
}
