// Package apis exposes a read-only HTTP diagnostics surface over the
// subscription core: the current set of registered Subscriptions and their
// counters. It never accepts a write; CreateSubscription/Publish/etc. all
// travel over the ServiceRequest boundary, not HTTP.
package apis

import (
	"net/http"

	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/project-nan/opcua-subs/common"
	"github.com/project-nan/opcua-subs/registry"
	"github.com/project-nan/opcua-subs/subscription"
)

// SubscriptionSummary is the wire shape of one Subscription's diagnostics.
type SubscriptionSummary struct {
	// ID is the subscription's process-wide identifier
	ID uint32 `json:"id"`
	// State is the Part 4 Table 87 state machine's current state name
	State string `json:"state"`
	// PublishingInterval is the current publishing interval, in milliseconds
	PublishingInterval float64 `json:"publishing_interval_ms"`
	// MaxKeepAliveCount is the configured keep-alive threshold
	MaxKeepAliveCount uint32 `json:"max_keep_alive_count"`
	// LifetimeCount is the configured lifetime threshold
	LifetimeCount uint32 `json:"lifetime_count"`
	// KeepAliveCounter is the remaining keep-alive ticks before a keep-alive is due
	KeepAliveCounter uint32 `json:"keep_alive_counter"`
	// LifetimeCounter is the remaining ticks before the subscription expires
	LifetimeCounter uint32 `json:"lifetime_counter"`
	// ItemCount is the number of MonitoredItems currently installed
	ItemCount int `json:"monitored_item_count"`
	// PublishingEnabled reports whether data notifications are currently emitted
	PublishingEnabled bool `json:"publishing_enabled"`
	// Priority is the subscription's Publish-contention priority
	Priority uint8 `json:"priority"`
}

func convertSnapshot(s subscription.Snapshot) SubscriptionSummary {
	return SubscriptionSummary{
		ID:                 s.ID,
		State:              s.State,
		PublishingInterval: s.PublishingInterval,
		MaxKeepAliveCount:  s.MaxKeepAliveCount,
		LifetimeCount:      s.LifetimeCount,
		KeepAliveCounter:   s.KeepAliveCounter,
		LifetimeCounter:    s.LifetimeCounter,
		ItemCount:          s.ItemCount,
		PublishingEnabled:  s.PublishingEnabled,
		Priority:           s.Priority,
	}
}

// DiagnosticsHandler is the REST handler fronting the subscription registry.
type DiagnosticsHandler struct {
	goutils.RestAPIHandler
	registry registry.ServerRegistry
}

// GetDiagnosticsHandler defines a DiagnosticsHandler over registry.
func GetDiagnosticsHandler(
	reg registry.ServerRegistry, httpConfig *common.HTTPRequestLogging,
) (DiagnosticsHandler, error) {
	logTags := log.Fields{
		"module": "apis", "component": "diagnostics",
	}
	doNotLog := make(map[string]bool)
	for _, header := range httpConfig.DoNotLogHeaders {
		doNotLog[header] = true
	}
	return DiagnosticsHandler{
		RestAPIHandler: goutils.RestAPIHandler{
			Component: goutils.Component{
				LogTags: logTags,
				LogTagModifiers: []goutils.LogMetadataModifier{
					goutils.ModifyLogMetadataByRestRequestParam,
				},
			},
			CallRequestIDHeaderField: &httpConfig.RequestIDHeader,
			DoNotLogHeaders:          doNotLog,
		}, registry: reg,
	}, nil
}

// RespSubscriptionList is the response body for GetAllSubscriptions.
type RespSubscriptionList struct {
	goutils.RestAPIBaseResponse
	// Subscriptions lists every Subscription currently registered, regardless
	// of which session owns it
	Subscriptions []SubscriptionSummary `json:"subscriptions"`
}

// GetAllSubscriptions godoc
// @Summary List all registered subscriptions
// @Description Query for the diagnostics summary of every registered subscription
// @tags Diagnostics
// @Produce json
// @Success 200 {object} RespSubscriptionList "success"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/subscriptions [get]
func (h DiagnosticsHandler) GetAllSubscriptions(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	snapshots := h.registry.Snapshot()
	summaries := make([]SubscriptionSummary, 0, len(snapshots))
	for _, s := range snapshots {
		summaries = append(summaries, convertSnapshot(s))
	}
	resp := RespSubscriptionList{
		RestAPIBaseResponse: goutils.RestAPIBaseResponse{
			Success: true, RequestID: h.ReadRequestIDFromContext(r.Context()),
		}, Subscriptions: summaries,
	}
	if err := h.WriteRESTResponse(w, http.StatusOK, resp, nil); err != nil {
		log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
	}
}

// GetAllSubscriptionsHandler wraps GetAllSubscriptions.
func (h DiagnosticsHandler) GetAllSubscriptionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.GetAllSubscriptions(w, r)
	}
}

// RespOneSubscription is the response body for GetSubscription.
type RespOneSubscription struct {
	goutils.RestAPIBaseResponse
	// Subscription is the requested subscription's diagnostics summary
	Subscription SubscriptionSummary `json:"subscription"`
}

// GetSubscription godoc
// @Summary Query for one subscription's diagnostics summary
// @Description Query for the diagnostics summary of one registered subscription by id
// @tags Diagnostics
// @Produce json
// @Param subscriptionID path int true "Subscription ID"
// @Success 200 {object} RespOneSubscription "success"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/subscriptions/{subscriptionID} [get]
func (h DiagnosticsHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	id, ok := parseSubscriptionID(r)
	if !ok {
		msg := "Invalid or missing subscriptionID"
		log.WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	for _, s := range h.registry.Snapshot() {
		if s.ID == id {
			respCode = http.StatusOK
			respBody = RespOneSubscription{
				RestAPIBaseResponse: goutils.RestAPIBaseResponse{
					Success: true, RequestID: h.ReadRequestIDFromContext(r.Context()),
				}, Subscription: convertSnapshot(s),
			}
			return
		}
	}

	msg := "No subscription with that id"
	respCode = http.StatusNotFound
	respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusNotFound, msg, msg)
}

// GetSubscriptionHandler wraps GetSubscription.
func (h DiagnosticsHandler) GetSubscriptionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.GetSubscription(w, r)
	}
}

// Alive godoc
// @Summary Liveness probe
// @Description Always returns success once the process is serving HTTP
// @tags Diagnostics
// @Produce json
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Router /v1/alive [get]
func (h DiagnosticsHandler) Alive(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	if err := h.WriteRESTResponse(
		w, http.StatusOK, h.GetStdRESTSuccessMsg(r.Context()), nil,
	); err != nil {
		log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
	}
}

// AliveHandler wraps Alive.
func (h DiagnosticsHandler) AliveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Alive(w, r)
	}
}
