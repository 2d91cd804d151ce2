package namespace

import (
	"context"
	"fmt"
	"sync"

	"github.com/apex/log"
	"github.com/project-nan/opcua-subs/common"
	"github.com/project-nan/opcua-subs/uatypes"
)

// NodeInfo is the per-node metadata the in-memory Namespace needs to answer
// OnCreateMonitoredItem/OnModifyMonitoredItem and serve EURange for percent
// deadband filters.
type NodeInfo struct {
	// MinSamplingInterval is the fastest rate this node can be sampled at, in
	// milliseconds; a requested interval faster than this is revised up to it.
	MinSamplingInterval float64
	// EURange is the engineering-unit range, used for PercentDeadband
	// filters. A node with no EURange leaves this nil.
	EURange *uatypes.EURange
}

// InMemory is a reference Namespace implementation suitable for tests and
// the demo server binary: it resolves sampling intervals synchronously
// against a fixed registry of NodeInfo and records lifecycle callbacks for
// inspection, without touching any real address space.
type InMemory struct {
	common.Component

	lock  sync.Mutex
	nodes map[string]NodeInfo

	dataCreated  []ItemDescriptor
	dataModified []ItemDescriptor
	dataDeleted  []ItemDescriptor

	eventCreated  []ItemDescriptor
	eventModified []ItemDescriptor
	eventDeleted  []ItemDescriptor

	modeChanged []ItemDescriptor
}

// NewInMemory constructs an InMemory Namespace with no registered nodes;
// use RegisterNode to describe how a node should be sampled.
func NewInMemory() *InMemory {
	return &InMemory{
		Component: common.Component{LogTags: log.Fields{
			"module": "namespace", "component": "InMemory",
		}},
		nodes: make(map[string]NodeInfo),
	}
}

func nodeKey(id uatypes.NodeID) string {
	return fmt.Sprintf("%d:%v", id.NamespaceIndex, id.Identifier)
}

// RegisterNode describes a node's sampling/EURange behavior for later
// OnCreateMonitoredItem/OnModifyMonitoredItem calls. A node never registered
// is treated as unknown and fails the future with Bad_InternalError.
func (n *InMemory) RegisterNode(id uatypes.NodeID, info NodeInfo) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.nodes[nodeKey(id)] = info
}

// EURangeOf returns the registered EURange for id, if any.
func (n *InMemory) EURangeOf(id uatypes.NodeID) (*uatypes.EURange, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	info, ok := n.nodes[nodeKey(id)]
	if !ok || info.EURange == nil {
		return nil, false
	}
	return info.EURange, true
}

func (n *InMemory) revise(id uatypes.NodeID, requested float64) (float64, error) {
	n.lock.Lock()
	info, ok := n.nodes[nodeKey(id)]
	n.lock.Unlock()
	if !ok {
		return 0, ErrStatusCode(uatypes.BadInternalError)
	}
	if requested < 0 {
		// Caller hasn't resolved "inherit publishing interval" yet; the
		// Namespace has nothing useful to revise it to, so it passes it
		// through unchanged for the core to resolve against the
		// Subscription's publishing interval.
		return requested, nil
	}
	if requested < info.MinSamplingInterval {
		return info.MinSamplingInterval, nil
	}
	return requested, nil
}

// OnCreateMonitoredItem resolves synchronously against the registered node
// table, still going through the future to keep callers honest about the
// interface's asynchronous contract.
func (n *InMemory) OnCreateMonitoredItem(
	ctxt context.Context, nodeID uatypes.NodeID, attributeID uatypes.AttributeID,
	requestedSamplingInterval float64, future SamplingRevisionFuture,
) {
	revised, err := n.revise(nodeID, requestedSamplingInterval)
	future.Complete(revised, err)
}

// OnModifyMonitoredItem is the modify-path analogue of OnCreateMonitoredItem.
func (n *InMemory) OnModifyMonitoredItem(
	ctxt context.Context, nodeID uatypes.NodeID,
	requestedSamplingInterval float64, future SamplingRevisionFuture,
) {
	revised, err := n.revise(nodeID, requestedSamplingInterval)
	future.Complete(revised, err)
}

func (n *InMemory) OnDataItemsCreated(ctxt context.Context, items []ItemDescriptor) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.dataCreated = append(n.dataCreated, items...)
	return nil
}

func (n *InMemory) OnDataItemsModified(ctxt context.Context, items []ItemDescriptor) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.dataModified = append(n.dataModified, items...)
	return nil
}

func (n *InMemory) OnDataItemsDeleted(ctxt context.Context, items []ItemDescriptor) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.dataDeleted = append(n.dataDeleted, items...)
	return nil
}

func (n *InMemory) OnEventItemsCreated(ctxt context.Context, items []ItemDescriptor) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.eventCreated = append(n.eventCreated, items...)
	return nil
}

func (n *InMemory) OnEventItemsModified(ctxt context.Context, items []ItemDescriptor) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.eventModified = append(n.eventModified, items...)
	return nil
}

func (n *InMemory) OnEventItemsDeleted(ctxt context.Context, items []ItemDescriptor) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.eventDeleted = append(n.eventDeleted, items...)
	return nil
}

func (n *InMemory) OnMonitoringModeChanged(ctxt context.Context, items []ItemDescriptor) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.modeChanged = append(n.modeChanged, items...)
	return nil
}

// Snapshot returns copies of every recorded lifecycle callback, for test assertions.
func (n *InMemory) Snapshot() (dataC, dataM, dataD, eventC, eventM, eventD, modeC []ItemDescriptor) {
	n.lock.Lock()
	defer n.lock.Unlock()
	cp := func(s []ItemDescriptor) []ItemDescriptor {
		out := make([]ItemDescriptor, len(s))
		copy(out, s)
		return out
	}
	return cp(n.dataCreated), cp(n.dataModified), cp(n.dataDeleted),
		cp(n.eventCreated), cp(n.eventModified), cp(n.eventDeleted), cp(n.modeChanged)
}
