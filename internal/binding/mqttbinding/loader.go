package mqttbinding

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
)

// Load fetches a description published on an MQTT topic. It waits for the
// first message after subscribing; retained descriptions arrive at once.
// ctx bounds the wait.
//
// The session is returned in Fetched.Conns keyed by broker so the device
// built from the document reuses it.
func Load(ctx context.Context, env binding.Env, u *url.URL) (*binding.Fetched, error) {
	ep, err := endpointOf(u)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", binding.ErrUnsupportedScheme, err)
	}

	dialCtx := ctx
	if env.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, env.ConnectTimeout)
		defer cancel()
	}
	client, err := dial(dialCtx, env, ep.Broker)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", binding.ErrConnectionEstablish, ep.Broker, err)
	}

	first := make(chan []byte, 1)
	id, err := client.Subscribe(ep.Topic, qos, func(_ string, payload []byte) error {
		select {
		case first <- append([]byte(nil), payload...):
		default:
		}
		return nil
	})
	if err != nil {
		client.Close() //nolint:errcheck // load failed
		return nil, fmt.Errorf("%w: subscribing %s: %w", binding.ErrTransport, ep.Topic, err)
	}

	var raw []byte
	select {
	case raw = <-first:
	case <-ctx.Done():
		client.Close() //nolint:errcheck // load failed
		return nil, fmt.Errorf("%w: waiting for description on %s: %w", binding.ErrTransport, ep.Topic, ctx.Err())
	}

	if err := client.Unsubscribe(ep.Topic, id); err != nil {
		env.Log().Warn("MQTT unsubscribe failed", "topic", ep.Topic, "error", err)
	}

	return &binding.Fetched{
		Raw:   raw,
		Conns: map[string]binding.Connection{ep.Broker: client},
	}, nil
}
