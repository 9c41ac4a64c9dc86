package mqttbinding

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// Handler serves every MQTT operation on one form.
type Handler struct {
	env      binding.Env
	endpoint Endpoint
}

// NewHandler binds a handler to form. The session is opened on first use.
func NewHandler(env binding.Env, form thing.Form) (*Handler, error) {
	ep, err := ParseEndpoint(form.Href)
	if err != nil {
		return nil, err
	}
	return &Handler{env: env, endpoint: ep}, nil
}

// Endpoint returns the broker and topic the handler is bound to.
func (h *Handler) Endpoint() Endpoint {
	return h.endpoint
}

func (h *Handler) publish(ctx context.Context, v any) error {
	client, err := session(ctx, h.env, h.endpoint.Broker)
	if err != nil {
		return err
	}
	if err := client.PublishJSON(h.endpoint.Topic, v, false); err != nil {
		return fmt.Errorf("%w: %w", binding.ErrTransport, err)
	}
	return nil
}

// WriteProperty publishes value. MQTT has no acknowledgement payload, so the
// written value is returned as acknowledged.
func (h *Handler) WriteProperty(ctx context.Context, value any) (any, error) {
	if err := h.publish(ctx, value); err != nil {
		return nil, err
	}
	return value, nil
}

// InvokeAction publishes input. uriVariables are not used by this transport.
func (h *Handler) InvokeAction(ctx context.Context, input any, _ map[string]string) (binding.Invocation, error) {
	if err := h.publish(ctx, input); err != nil {
		return binding.Invocation{}, err
	}
	return binding.Invocation{}, nil
}

// ObserveProperty delivers every message on the topic as a property value.
func (h *Handler) ObserveProperty(ctx context.Context, deliver binding.DeliverFunc) (*binding.Subscription, error) {
	return h.subscribe(ctx, deliver)
}

// SubscribeEvent delivers every message on the topic as an event payload.
func (h *Handler) SubscribeEvent(ctx context.Context, deliver binding.DeliverFunc) (*binding.Subscription, error) {
	return h.subscribe(ctx, deliver)
}

// subscribe registers a topic handler. Messages that are not JSON are
// dropped. Cancel removes the handler; the broker subscription goes with
// the last one.
func (h *Handler) subscribe(ctx context.Context, deliver binding.DeliverFunc) (*binding.Subscription, error) {
	client, err := session(ctx, h.env, h.endpoint.Broker)
	if err != nil {
		return nil, err
	}

	log := h.env.Log()
	topic := h.endpoint.Topic
	sub := binding.NewSubscription(ctx, deliver)

	id, err := client.Subscribe(topic, qos, func(_ string, payload []byte) error {
		v, err := decode(payload)
		if err != nil {
			log.Warn("dropping malformed MQTT message", "topic", topic, "error", err)
			return nil
		}
		sub.Deliver(v)
		return nil
	})
	if err != nil {
		sub.Cancel()
		return nil, fmt.Errorf("%w: subscribing %s: %w", binding.ErrTransport, topic, err)
	}

	sub.OnCancel(func() {
		if err := client.Unsubscribe(topic, id); err != nil {
			log.Warn("MQTT unsubscribe failed", "topic", topic, "error", err)
		}
	})
	return sub, nil
}
