package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages on the specified topic filter.
//
// The first handler on a filter subscribes at the broker; later handlers
// share that subscription (and its QoS). Subscriptions are restored after a
// reconnect.
//
// Parameters:
//   - topic: Topic filter, may contain + and # wildcards
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback invoked for each message
//
// Returns:
//   - HandlerID: Pass to Unsubscribe to remove this handler
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) (HandlerID, error) {
	if topic == "" {
		return 0, ErrInvalidTopic
	}
	if qos > maxQoS {
		return 0, ErrInvalidQoS
	}
	if handler == nil {
		return 0, fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return 0, ErrNotConnected
	}

	c.subMu.Lock()
	c.nextHandler++
	id := c.nextHandler
	if sub, ok := c.subscriptions[topic]; ok {
		sub.handlers[id] = handler
		c.subMu.Unlock()
		return c.join(sub, id)
	}
	sub := &subscription{
		qos:      qos,
		handlers: map[HandlerID]MessageHandler{id: handler},
		ready:    make(chan struct{}),
	}
	c.subscriptions[topic] = sub
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.dispatch(topic))
	switch {
	case !token.WaitTimeout(defaultPublishTimeout):
		sub.err = fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	case token.Error() != nil:
		sub.err = fmt.Errorf("%w: %w", ErrSubscribeFailed, token.Error())
	}
	if sub.err != nil {
		c.forget(topic, sub)
	}
	close(sub.ready)

	if sub.err != nil {
		return 0, sub.err
	}
	return id, nil
}

// join waits for the broker answer to a subscription another caller
// started and shares its outcome.
func (c *Client) join(sub *subscription, id HandlerID) (HandlerID, error) {
	<-sub.ready
	if sub.err != nil {
		return 0, sub.err
	}
	return id, nil
}

// forget drops the registration for topic if it is still sub.
func (c *Client) forget(topic string, sub *subscription) {
	c.subMu.Lock()
	if c.subscriptions[topic] == sub {
		delete(c.subscriptions, topic)
	}
	c.subMu.Unlock()
}

// Unsubscribe removes one handler. When it was the last handler on the
// topic the broker subscription is dropped too. Messages already in flight
// may still reach other handlers.
//
// Unknown topics or IDs are ignored. While disconnected only the local
// registration is removed; the clean session drops the broker side.
func (c *Client) Unsubscribe(topic string, id HandlerID) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	c.subMu.Lock()
	sub, ok := c.subscriptions[topic]
	if !ok {
		c.subMu.Unlock()
		return nil
	}
	delete(sub.handlers, id)
	last := len(sub.handlers) == 0
	if last {
		delete(c.subscriptions, topic)
	}
	c.subMu.Unlock()

	if !last || !c.IsConnected() {
		return nil
	}

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}

// SubscriptionCount returns the number of topic filters subscribed at the broker.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks if the exact topic filter is subscribed.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}
