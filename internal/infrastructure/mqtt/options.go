package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-wot/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// Options describes one broker session.
//
// The Gray Logic bus is built from config with OptionsFromConfig; sessions to
// brokers named in Thing forms are built directly by the MQTT binding.
type Options struct {
	// BrokerURL in paho form: tcp://host:port or ssl://host:port.
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// QoS is the default level used by PublishRetained.
	QoS byte

	// ConnectTimeout bounds Connect. Zero means 10s.
	ConnectTimeout time.Duration

	// ConnectRetry keeps retrying the initial connection until ConnectTimeout
	// instead of failing on the first refused attempt.
	ConnectRetry bool

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	// StatusTopic, when set, receives a retained online/offline status and is
	// registered as the Last Will topic.
	StatusTopic string
}

// OptionsFromConfig builds the options for the Gray Logic internal bus.
func OptionsFromConfig(cfg config.MQTTConfig) Options {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return Options{
		BrokerURL:        fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port),
		ClientID:         cfg.Broker.ClientID,
		Username:         cfg.Auth.Username,
		Password:         cfg.Auth.Password,
		QoS:              byte(cfg.QoS), // #nosec G115 -- validated 0..2
		ConnectRetry:     true,
		ReconnectInitial: time.Duration(cfg.Reconnect.InitialDelay) * time.Second,
		ReconnectMax:     time.Duration(cfg.Reconnect.MaxDelay) * time.Second,
		StatusTopic:      Topics{}.SystemStatus(),
	}
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return o.ConnectTimeout
}

// secure reports whether the broker URL asks for TLS.
func (o Options) secure() bool {
	u, err := url.Parse(o.BrokerURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "ssl", "tls", "mqtts", "wss", "tcps":
		return true
	}
	return false
}

// buildClientOptions creates paho MQTT options.
//
// Sessions are clean (no persistent broker session) and reconnect
// automatically with exponential backoff.
func buildClientOptions(o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(o.BrokerURL)
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(o.ConnectRetry)
	if o.ReconnectInitial > 0 {
		opts.SetConnectRetryInterval(o.ReconnectInitial)
	}
	if o.ReconnectMax > 0 {
		opts.SetMaxReconnectInterval(o.ReconnectMax)
	}

	opts.SetConnectTimeout(o.connectTimeout())
	opts.SetKeepAlive(defaultKeepAlive)

	if o.secure() {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	if o.StatusTopic != "" {
		opts.SetWill(o.StatusTopic, statusPayload(o.ClientID, "offline", "unexpected_disconnect"), 1, true)
	}

	return opts
}

// statusPayload builds the JSON status document published on StatusTopic.
func statusPayload(clientID, status, reason string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	if reason == "" {
		return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`, status, clientID, ts)
	}
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"reason":%q,"timestamp":%q}`, status, clientID, reason, ts)
}
