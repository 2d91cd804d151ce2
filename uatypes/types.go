package uatypes

import "time"

// NodeID identifies a node in the address space. Identifier may hold a
// string, uint32, or []byte depending on the node's IdentifierType; the core
// never interprets it, only threads it through to the Namespace collaborator.
type NodeID struct {
	NamespaceIndex uint16      `json:"namespace_index"`
	Identifier     interface{} `json:"identifier" validate:"required"`
}

// QualifiedName is a namespace-scoped name, used for DataEncoding selection.
type QualifiedName struct {
	NamespaceIndex uint16 `json:"namespace_index"`
	Name           string `json:"name"`
}

// IsNull reports whether this is the null QualifiedName (ns=0, "").
func (q QualifiedName) IsNull() bool {
	return q.NamespaceIndex == 0 && q.Name == ""
}

// Well-known DataEncoding names; only these two (plus null) are accepted for
// CreateMonitoredItems (§6).
var (
	DataEncodingDefaultBinary = QualifiedName{NamespaceIndex: 0, Name: "DefaultBinary"}
	DataEncodingDefaultXML    = QualifiedName{NamespaceIndex: 0, Name: "DefaultXML"}
)

// AttributeID identifies which attribute of a node is being monitored/read.
type AttributeID uint32

// AttributeIDValue is the only attribute for which a non-null DataEncoding is accepted.
const AttributeIDValue AttributeID = 13

// TimestampsToReturn selects which timestamps a Read/MonitoredItem response carries.
type TimestampsToReturn uint32

const (
	TimestampsSource TimestampsToReturn = iota
	TimestampsServer
	TimestampsBoth
	TimestampsNeither
)

// IsValid reports whether t is one of the four defined enumerators.
func (t TimestampsToReturn) IsValid() bool {
	return t <= TimestampsNeither
}

// ReadValueID names exactly what is being monitored or read: a node, an
// attribute of it, an optional sub-range of an array/string value, and an
// optional non-default encoding.
type ReadValueID struct {
	NodeID       NodeID        `json:"node_id" validate:"required"`
	AttributeID  AttributeID   `json:"attribute_id" validate:"required"`
	IndexRange   string        `json:"index_range,omitempty"`
	DataEncoding QualifiedName `json:"data_encoding"`
}

// DataValue is a single sampled value with quality and timestamps.
type DataValue struct {
	Value            interface{} `json:"value"`
	StatusCode       StatusCode  `json:"status_code"`
	SourceTimestamp  time.Time   `json:"source_timestamp"`
	ServerTimestamp  time.Time   `json:"server_timestamp"`
}

// EURange is the engineering-unit range of a Value-attribute node, supplied by
// the Namespace when a PercentDeadband filter needs it.
type EURange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ========================================================================================
// Filters

// DataChangeTrigger selects which parts of a DataValue must change to report.
type DataChangeTrigger uint32

const (
	TriggerStatus DataChangeTrigger = iota
	TriggerStatusValue
	TriggerStatusValueTimestamp
)

// DeadbandType selects how DeadbandValue is interpreted.
type DeadbandType uint32

const (
	DeadbandNone DeadbandType = iota
	DeadbandAbsolute
	DeadbandPercent
)

// DataChangeFilter controls when a DataItem reports a newly sampled value.
type DataChangeFilter struct {
	Trigger       DataChangeTrigger `json:"trigger"`
	DeadbandType  DeadbandType      `json:"deadband_type"`
	DeadbandValue float64           `json:"deadband_value"`
}

// EventFilter selects and filters the fields of Event notifications.
type EventFilter struct {
	SelectClauses []SimpleAttributeOperand `json:"select_clauses"`
	WhereClauses  []ContentFilterElement   `json:"where_clauses"`
}

// SimpleAttributeOperand names a single event field to report.
type SimpleAttributeOperand struct {
	TypeID      NodeID      `json:"type_id"`
	BrowsePath  []string    `json:"browse_path"`
	AttributeID AttributeID `json:"attribute_id"`
}

// ContentFilterElement is one operator+operands node of an EventFilter's
// where-clause expression tree. The core does not evaluate where-clauses
// itself (that is an address-space concern delegated to the Namespace); it
// only threads the filter through unevaluated.
type ContentFilterElement struct {
	Operator string        `json:"operator"`
	Operands []interface{} `json:"operands"`
}

// ========================================================================================
// Monitored item service structs

// MonitoringMode controls whether/how a MonitoredItem reports.
type MonitoringMode uint32

const (
	MonitoringModeDisabled MonitoringMode = iota
	MonitoringModeSampling
	MonitoringModeReporting
)

// MonitoredItemCreateRequest is a single per-item request within CreateMonitoredItems.
type MonitoredItemCreateRequest struct {
	ItemToMonitor   ReadValueID    `json:"item_to_monitor" validate:"required"`
	MonitoringMode  MonitoringMode `json:"monitoring_mode"`
	ClientHandle    uint32         `json:"client_handle"`
	SamplingInterval float64       `json:"sampling_interval"`
	Filter          interface{}    `json:"filter,omitempty"`
	QueueSize       uint32         `json:"queue_size"`
	DiscardOldest   bool           `json:"discard_oldest"`
}

// MonitoredItemCreateResult is the per-item result within CreateMonitoredItemsResponse.
type MonitoredItemCreateResult struct {
	StatusCode                     StatusCode `json:"status_code"`
	MonitoredItemID                uint32     `json:"monitored_item_id"`
	RevisedSamplingInterval        float64    `json:"revised_sampling_interval"`
	RevisedQueueSize               uint32     `json:"revised_queue_size"`
	FilterResult                   interface{} `json:"filter_result,omitempty"`
}

// MonitoredItemModifyRequest is a single per-item request within ModifyMonitoredItems.
type MonitoredItemModifyRequest struct {
	MonitoredItemID  uint32      `json:"monitored_item_id" validate:"required"`
	ClientHandle     uint32      `json:"client_handle"`
	SamplingInterval float64     `json:"sampling_interval"`
	Filter           interface{} `json:"filter,omitempty"`
	QueueSize        uint32      `json:"queue_size"`
	DiscardOldest    bool        `json:"discard_oldest"`
}

// MonitoredItemModifyResult is the per-item result within ModifyMonitoredItemsResponse.
type MonitoredItemModifyResult struct {
	StatusCode               StatusCode  `json:"status_code"`
	RevisedSamplingInterval  float64     `json:"revised_sampling_interval"`
	RevisedQueueSize         uint32      `json:"revised_queue_size"`
	FilterResult             interface{} `json:"filter_result,omitempty"`
}

// TriggeringLinkRequest names one add/remove pair in SetTriggering.
type TriggeringLinkRequest struct {
	TriggeringItemID uint32
	LinksToAdd       []uint32
	LinksToRemove    []uint32
}

// ========================================================================================
// Notification payloads

// MonitoredItemNotification is a single DataItem's reported sample.
type MonitoredItemNotification struct {
	ClientHandle uint32    `json:"client_handle"`
	Value        DataValue `json:"value"`
}

// DataChangeNotification carries every DataItem's queued samples for one publish.
type DataChangeNotification struct {
	MonitoredItems []MonitoredItemNotification `json:"monitored_items"`
}

// EventFieldList is a single EventItem's reported field values for one event occurrence.
type EventFieldList struct {
	ClientHandle uint32        `json:"client_handle"`
	EventFields  []interface{} `json:"event_fields"`
}

// EventNotificationList carries every EventItem's queued occurrences for one publish.
type EventNotificationList struct {
	Events []EventFieldList `json:"events"`
}

// StatusChangeNotification reports an out-of-band Subscription lifecycle event
// (lifetime expiry, transfer) that doesn't fit the Data/Event notification shape.
type StatusChangeNotification struct {
	Status StatusCode `json:"status"`
}

// NotificationData is a tagged union over the three notification payload
// shapes a NotificationMessage may carry. Exactly one field is non-nil.
type NotificationData struct {
	DataChange   *DataChangeNotification   `json:"data_change,omitempty"`
	Event        *EventNotificationList    `json:"event,omitempty"`
	StatusChange *StatusChangeNotification `json:"status_change,omitempty"`
}

// NotificationMessage is what a Publish response delivers: a strictly
// increasing sequence number (except for keep-alives, which repeat the prior
// number) plus zero or more NotificationData payloads.
type NotificationMessage struct {
	SequenceNumber   uint32             `json:"sequence_number"`
	PublishTime      time.Time          `json:"publish_time"`
	NotificationData []NotificationData `json:"notification_data"`
}

// IsKeepAlive reports whether this message carries no notification data.
func (m NotificationMessage) IsKeepAlive() bool {
	return len(m.NotificationData) == 0
}

// PublishResponse is the body returned for a claimed Publish request: the
// subscription that produced it, the notification itself, the sequence
// numbers still available for Republish, the caller's own acknowledge
// results, and whether more notifications are already queued.
type PublishResponse struct {
	SubscriptionID          uint32             `json:"subscription_id"`
	AvailableSequenceNumbers []uint32          `json:"available_sequence_numbers"`
	MoreNotifications       bool               `json:"more_notifications"`
	NotificationMessage     NotificationMessage `json:"notification_message"`
	Results                 []StatusCode       `json:"results"`
}
