package wot

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/binding/protocols"
)

// recordingNotifier captures notifications in arrival order.
type recordingNotifier struct {
	mu     sync.Mutex
	calls  []string
	values map[string]any
	events []EventRecord
	status []ActionRecord
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{values: make(map[string]any)}
}

func (n *recordingNotifier) PropertyChanged(deviceID, property string, value any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values[deviceID+"/"+property] = value
}

func (n *recordingNotifier) EventOccurred(deviceID string, event EventRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) ActionStatus(deviceID string, action ActionRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = append(n.status, action)
}

func (n *recordingNotifier) DeviceAdded(info DeviceInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, "added:"+info.ID)
}

func (n *recordingNotifier) DeviceRemoved(deviceID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, "removed:"+deviceID)
}

func (n *recordingNotifier) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

func (n *recordingNotifier) Value(key string) (any, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.values[key]
	return v, ok
}

func (n *recordingNotifier) Statuses() []ActionStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ActionStatus, len(n.status))
	for i, r := range n.status {
		out[i] = r.Status
	}
	return out
}

func (n *recordingNotifier) Events() []EventRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]EventRecord(nil), n.events...)
}

// lamp is an HTTP Thing with one level property.
type lamp struct {
	mu    sync.Mutex
	level string
	reads atomic.Int32
	srv   *httptest.Server
}

func newLamp(t *testing.T) *lamp {
	t.Helper()
	l := &lamp{level: "5"}
	mux := http.NewServeMux()
	mux.HandleFunc("/properties/level", func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		defer l.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			l.reads.Add(1)
			io.WriteString(w, l.level) //nolint:errcheck
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			l.level = strings.TrimSpace(string(body))
			io.WriteString(w, l.level) //nolint:errcheck
		}
	})
	mux.HandleFunc("/td", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, l.description()) //nolint:errcheck
	})
	l.srv = httptest.NewServer(mux)
	t.Cleanup(l.srv.Close)
	return l
}

func (l *lamp) description() string {
	return `{"title":"Lamp","properties":{"level":{"type":"integer","value":5,"forms":[` +
		`{"href":"` + l.srv.URL + `/properties/level","op":["readproperty","writeproperty"]}]}}}`
}

func (l *lamp) set(level string) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func testEnv() binding.Env {
	return binding.Env{
		HTTP:      &http.Client{Timeout: 5 * time.Second},
		Streaming: &http.Client{},
		Retry:     binding.RetryPolicy{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond},
	}
}

func defaultRegistry() *binding.Registry {
	return protocols.Default()
}

// eventually polls cond until it holds or the timeout elapses.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

