package manager

import (
	"github.com/project-nan/opcua-subs/servicereq"
	"github.com/project-nan/opcua-subs/uatypes"
)

// Dispatch routes req to the handler matching its body type. It is the
// single entry point a stack layer needs to call; everything else on
// Manager is reachable through here.
func (m *Manager) Dispatch(req servicereq.ServiceRequest) {
	switch req.Body().(type) {
	case *uatypes.CreateSubscriptionRequest:
		m.CreateSubscription(req)
	case *uatypes.ModifySubscriptionRequest:
		m.ModifySubscription(req)
	case *uatypes.DeleteSubscriptionsRequest:
		m.DeleteSubscription(req)
	case *uatypes.CreateMonitoredItemsRequest:
		m.CreateMonitoredItems(req)
	case *uatypes.ModifyMonitoredItemsRequest:
		m.ModifyMonitoredItems(req)
	case *uatypes.DeleteMonitoredItemsRequest:
		m.DeleteMonitoredItems(req)
	case *uatypes.SetPublishingModeRequest:
		m.SetPublishingMode(req)
	case *uatypes.SetMonitoringModeRequest:
		m.SetMonitoringMode(req)
	case *uatypes.SetTriggeringRequest:
		m.SetTriggering(req)
	case *uatypes.PublishRequest:
		m.Publish(req)
	case *uatypes.RepublishRequest:
		m.Republish(req)
	default:
		req.SetServiceFault(uatypes.BadInternalError)
	}
}
