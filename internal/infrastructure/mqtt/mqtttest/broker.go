// Package mqtttest runs an in-process MQTT broker for tests.
package mqtttest

import (
	"net"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Broker is a running embedded broker bound to a loopback port.
type Broker struct {
	// URL is the broker address in paho form, e.g. tcp://127.0.0.1:41234.
	URL string
	// Addr is host:port.
	Addr string

	server *mochi.Server

	mu       sync.Mutex
	received []Message
	nextSub  int
}

// Message is a publish seen by the broker's inline client.
type Message struct {
	Topic   string
	Payload []byte
}

// Start starts a broker on a free loopback port and stops it when the test ends.
func Start(t testing.TB) *Broker {
	t.Helper()

	addr := freeAddr(t)
	server := mochi.New(&mochi.Options{InlineClient: true})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("adding allow hook: %v", err)
	}
	tcp := listeners.NewTCP(listeners.Config{ID: "test", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("adding listener: %v", err)
	}

	go func() {
		_ = server.Serve() //nolint:errcheck // Serve returns once listeners are up
	}()

	b := &Broker{
		URL:    "tcp://" + addr,
		Addr:   addr,
		server: server,
	}
	waitListening(t, addr)
	t.Cleanup(func() { server.Close() })
	return b
}

// Publish sends a message from the broker's inline client.
func (b *Broker) Publish(topic string, payload []byte, retain bool) error {
	return b.server.Publish(topic, payload, retain, 0)
}

// Record captures every message matching filter; see Messages.
func (b *Broker) Record(filter string) error {
	b.mu.Lock()
	b.nextSub++
	id := b.nextSub
	b.mu.Unlock()

	return b.server.Subscribe(filter, id, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.received = append(b.received, Message{Topic: pk.TopicName, Payload: append([]byte(nil), pk.Payload...)})
	})
}

// Messages returns the messages recorded so far.
func (b *Broker) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.received...)
}

// WaitFor polls Messages until one on topic arrives or the timeout elapses.
func (b *Broker) WaitFor(t testing.TB, topic string, timeout time.Duration) Message {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, m := range b.Messages() {
			if m.Topic == topic {
				return m
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no message on %q within %v (got %d messages)", topic, timeout, len(b.Messages()))
	return Message{}
}

func freeAddr(t testing.TB) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	defer l.Close()
	return l.Addr().String()
}

func waitListening(t testing.TB, addr string) {
	t.Helper()
	for i := 0; i < 100; i++ {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("broker at %s did not start", addr)
}
