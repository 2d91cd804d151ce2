package servicereq

import "github.com/apex/log"

// LogTagsFor decorates a component's base log tags with a request's
// correlation ID and session, the same way goutils.RestAPIHandler decorates
// request-scoped loggers with a request ID header value.
func LogTagsFor(base log.Fields, req ServiceRequest) log.Fields {
	tags := log.Fields{}
	for k, v := range base {
		tags[k] = v
	}
	tags["request-id"] = req.CorrelationID()
	tags["session-id"] = req.Header().SessionID
	tags["request-handle"] = req.Header().RequestHandle
	return tags
}
