package subscription

import "github.com/project-nan/opcua-subs/uatypes"

// messageCache is the bounded, FIFO-evicting availableMessages retention
// cache keyed by sequenceNumber, used to serve Republish and report
// AvailableSequenceNumbers.
type messageCache struct {
	cap      int
	order    []uint32
	byNumber map[uint32]uatypes.NotificationMessage
}

func newMessageCache(cap int) *messageCache {
	return &messageCache{cap: cap, byNumber: make(map[uint32]uatypes.NotificationMessage)}
}

// retain adds msg, evicting the oldest retained message if the cap is exceeded.
func (c *messageCache) retain(msg uatypes.NotificationMessage) {
	c.order = append(c.order, msg.SequenceNumber)
	c.byNumber[msg.SequenceNumber] = msg
	for len(c.order) > c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.byNumber, oldest)
	}
}

// republish returns the exact retained message for seq, or
// Bad_MessageNotAvailable if it was never retained or has been evicted/acknowledged.
func (c *messageCache) republish(seq uint32) (uatypes.NotificationMessage, uatypes.StatusCode) {
	msg, ok := c.byNumber[seq]
	if !ok {
		return uatypes.NotificationMessage{}, uatypes.BadMessageNotAvailable
	}
	return msg, uatypes.Good
}

// acknowledge removes seq from the cache; Good if present, Bad_SequenceNumberUnknown otherwise.
func (c *messageCache) acknowledge(seq uint32) uatypes.StatusCode {
	if _, ok := c.byNumber[seq]; !ok {
		return uatypes.BadSequenceNumberUnknown
	}
	delete(c.byNumber, seq)
	for i, s := range c.order {
		if s == seq {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return uatypes.Good
}

// availableSequenceNumbers returns the currently retained sequence numbers
// in retention order (oldest first).
func (c *messageCache) availableSequenceNumbers() []uint32 {
	out := make([]uint32, len(c.order))
	copy(out, c.order)
	return out
}

// Republish exposes messageCache.republish under the subscription lock.
func (s *Subscription) Republish(seq uint32) (uatypes.NotificationMessage, uatypes.StatusCode) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.messages.republish(seq)
}

// Acknowledge exposes messageCache.acknowledge under the subscription lock.
func (s *Subscription) Acknowledge(seq uint32) uatypes.StatusCode {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.messages.acknowledge(seq)
}

// AvailableSequenceNumbers returns the currently retained sequence numbers.
func (s *Subscription) AvailableSequenceNumbers() []uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.messages.availableSequenceNumbers()
}
