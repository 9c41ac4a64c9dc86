package mqttbinding

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Default broker ports by scheme.
const (
	defaultPort       = "1883"
	defaultSecurePort = "8883"
)

// Endpoint is a broker plus the topic a form addresses.
type Endpoint struct {
	// Broker is the paho broker URL (tcp://host:port or ssl://host:port) and
	// the connection pool key.
	Broker string
	Topic  string
}

// ParseEndpoint splits an mqtt:// or mqtts:// URL into broker and topic.
// The topic is the URL path without its leading slash.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parsing %q: %w", raw, err)
	}
	return endpointOf(u)
}

func endpointOf(u *url.URL) (Endpoint, error) {
	var scheme, port string
	switch strings.ToLower(u.Scheme) {
	case "mqtt", "tcp":
		scheme, port = "tcp", defaultPort
	case "mqtts", "ssl", "tls":
		scheme, port = "ssl", defaultSecurePort
	default:
		return Endpoint{}, fmt.Errorf("scheme %q is not mqtt", u.Scheme)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("%q has no broker host", u.String())
	}
	if p := u.Port(); p != "" {
		port = p
	}

	topic := strings.TrimPrefix(u.Path, "/")
	if topic == "" {
		return Endpoint{}, fmt.Errorf("%q has no topic", u.String())
	}

	return Endpoint{
		Broker: scheme + "://" + net.JoinHostPort(u.Hostname(), port),
		Topic:  topic,
	}, nil
}

func isMQTTURL(u *url.URL) bool {
	s := strings.ToLower(u.Scheme)
	return s == "mqtt" || s == "mqtts"
}
