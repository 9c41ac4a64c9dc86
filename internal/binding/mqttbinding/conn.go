package mqttbinding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/infrastructure/mqtt"
)

// qos is used for every publish and subscription to a Thing's broker.
const qos byte = 0

const defaultClientPrefix = "graylogic-wot"

// dial opens a new session to broker. Client IDs are unique per session.
func dial(ctx context.Context, env binding.Env, broker string) (*mqtt.Client, error) {
	prefix := env.ClientID
	if prefix == "" {
		prefix = defaultClientPrefix
	}
	client, err := mqtt.Connect(ctx, mqtt.Options{
		BrokerURL:      broker,
		ClientID:       prefix + "-" + uuid.NewString()[:8],
		QoS:            qos,
		ConnectTimeout: env.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	client.SetLogger(env.Log())
	return client, nil
}

// session returns the pooled client for broker.
func session(ctx context.Context, env binding.Env, broker string) (*mqtt.Client, error) {
	if env.Conns == nil {
		return nil, fmt.Errorf("%w: no connection pool", binding.ErrConnectionEstablish)
	}
	conn, err := env.Conns.GetOrCreate(ctx, broker, func(ctx context.Context) (binding.Connection, error) {
		return dial(ctx, env, broker)
	})
	if err != nil {
		return nil, err
	}
	client, ok := conn.(*mqtt.Client)
	if !ok {
		return nil, fmt.Errorf("%w: pooled session for %s is %T", binding.ErrConnectionEstablish, broker, conn)
	}
	return client, nil
}

func decode(payload []byte) (any, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", binding.ErrParse, err)
	}
	return v, nil
}
