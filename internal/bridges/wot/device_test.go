package wot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// robot is an HTTP Thing with actions and a long-poll event.
type robot struct {
	srv      *httptest.Server
	mu       sync.Mutex
	paths    []string
	deleted  []string
	failMove bool
}

func newRobot(t *testing.T) *robot {
	t.Helper()
	r := &robot{}
	mux := http.NewServeMux()
	mux.HandleFunc("/actions/move/", func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.paths = append(r.paths, req.URL.Path)
		fail := r.failMove
		r.mu.Unlock()
		if fail {
			http.Error(w, "stuck", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"moved":true}`) //nolint:errcheck
	})
	mux.HandleFunc("/actions/dance", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Location", "/actions/dance/1")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/actions/dance/1", func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodDelete {
			r.mu.Lock()
			r.deleted = append(r.deleted, req.URL.Path)
			r.mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	})
	var bumps atomic.Int32
	mux.HandleFunc("/events/bumped", func(w http.ResponseWriter, req *http.Request) {
		if bumps.Add(1) == 1 {
			io.WriteString(w, `{"side":"left"}`) //nolint:errcheck
			return
		}
		<-req.Context().Done()
	})
	r.srv = httptest.NewServer(mux)
	t.Cleanup(r.srv.Close)
	return r
}

func (r *robot) description() string {
	return `{
		"title": "Robot",
		"actions": {
			"move": {"uriVariables": {"distance": {"type": "integer"}},
			         "forms": [{"href": "` + r.srv.URL + `/actions/move/{distance}"}]},
			"dance": {"forms": [{"href": "` + r.srv.URL + `/actions/dance"}]},
			"fly": {"forms": [{"href": "coap://robot/fly"}]}
		},
		"events": {
			"bumped": {"forms": [{"href": "` + r.srv.URL + `/events/bumped", "subprotocol": "longpoll"}]}
		}
	}`
}

func newRobotDevice(t *testing.T, r *robot, n Notifier) *Device {
	t.Helper()
	desc := parseThing(t, r.description(), r.srv.URL+"/td")
	d := NewDevice(desc, DeviceOptions{
		Origin:   r.srv.URL + "/td",
		Registry: defaultRegistry(),
		Env:      testEnv(),
		Notifier: n,
	})
	t.Cleanup(func() { d.Close() })
	return d
}

// ==================== Actions ====================

func TestDevice_PerformAction_URITemplate(t *testing.T) {
	r := newRobot(t)
	n := newRecordingNotifier()
	d := newRobotDevice(t, r, n)

	rec, err := d.PerformAction(context.Background(), "move", map[string]any{"distance": float64(42)})
	if err != nil {
		t.Fatalf("PerformAction() error = %v", err)
	}
	if rec.Status != ActionCompleted {
		t.Errorf("Status = %s, want completed", rec.Status)
	}
	if rec.ID == "" || rec.TimeCompleted == nil {
		t.Errorf("record = %+v", rec)
	}

	r.mu.Lock()
	paths := append([]string(nil), r.paths...)
	r.mu.Unlock()
	if len(paths) != 1 || paths[0] != "/actions/move/42" {
		t.Errorf("dispatched to %v, want /actions/move/42", paths)
	}

	statuses := n.Statuses()
	if len(statuses) != 2 || statuses[0] != ActionPending || statuses[1] != ActionCompleted {
		t.Errorf("notified statuses = %v, want [pending completed]", statuses)
	}

	if got, ok := d.Action(rec.ID); !ok || got.Status != ActionCompleted {
		t.Errorf("Action(%s) = %+v, %v", rec.ID, got, ok)
	}
}

func TestDevice_PerformAction_TransportFailure(t *testing.T) {
	r := newRobot(t)
	r.failMove = true
	n := newRecordingNotifier()
	d := newRobotDevice(t, r, n)

	rec, err := d.PerformAction(context.Background(), "move", map[string]any{"distance": float64(1)})
	if !errors.Is(err, binding.ErrTransport) {
		t.Fatalf("PerformAction() error = %v, want ErrTransport", err)
	}
	if rec.Status != ActionError || rec.Error == "" {
		t.Errorf("record = %+v, want error status", rec)
	}
	statuses := n.Statuses()
	if statuses[len(statuses)-1] != ActionError {
		t.Errorf("last notified status = %s, want error", statuses[len(statuses)-1])
	}
	if len(d.Actions()) != 0 {
		t.Errorf("failed action stored: %v", d.Actions())
	}
}

func TestDevice_PerformAction_Unavailable(t *testing.T) {
	r := newRobot(t)
	d := newRobotDevice(t, r, nil)

	if _, err := d.PerformAction(context.Background(), "teleport", nil); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("unknown action error = %v, want ErrActionNotFound", err)
	}

	rec, err := d.PerformAction(context.Background(), "fly", nil)
	if !errors.Is(err, binding.ErrNoApplicableHandler) {
		t.Errorf("unbound action error = %v, want ErrNoApplicableHandler", err)
	}
	if rec.Status != ActionError {
		t.Errorf("Status = %s, want error", rec.Status)
	}
}

func TestDevice_CancelAction(t *testing.T) {
	r := newRobot(t)
	n := newRecordingNotifier()
	d := newRobotDevice(t, r, n)

	rec, err := d.PerformAction(context.Background(), "dance", nil)
	if err != nil {
		t.Fatalf("PerformAction() error = %v", err)
	}
	if rec.Status != ActionPending || rec.ID != r.srv.URL+"/actions/dance/1" {
		t.Fatalf("record = %+v, want pending under the Location reference", rec)
	}

	if err := d.CancelAction(context.Background(), rec.ID); err != nil {
		t.Fatalf("CancelAction() error = %v", err)
	}
	r.mu.Lock()
	deleted := append([]string(nil), r.deleted...)
	r.mu.Unlock()
	if len(deleted) != 1 {
		t.Errorf("DELETE requests = %v, want 1", deleted)
	}
	if _, ok := d.Action(rec.ID); ok {
		t.Error("cancelled action still in table")
	}
	statuses := n.Statuses()
	if statuses[len(statuses)-1] != ActionCancelled {
		t.Errorf("last notified status = %s, want cancelled", statuses[len(statuses)-1])
	}

	if err := d.CancelAction(context.Background(), "nope"); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("CancelAction(unknown) error = %v, want ErrActionNotFound", err)
	}
}

type publishOnlyInvoker struct{}

func (publishOnlyInvoker) InvokeAction(context.Context, any, map[string]string) (binding.Invocation, error) {
	return binding.Invocation{Ref: "topic-ref"}, nil
}

func TestDevice_CancelAction_Unsupported(t *testing.T) {
	desc := &thing.Description{
		URL:     "mqtt://broker/robot",
		Actions: map[string]*thing.Action{"wave": {Forms: []thing.Form{{Href: "mqtt://broker/robot/wave"}}}},
	}
	reg := &binding.Registry{Invokers: []binding.Impl[binding.ActionInvoker]{{
		Name:    "publish-only",
		Applies: func(thing.Form) bool { return true },
		Build:   func(binding.Env, thing.Form) (binding.ActionInvoker, error) { return publishOnlyInvoker{}, nil },
	}}}
	d := NewDevice(desc, DeviceOptions{Registry: reg})
	defer d.Close()

	rec, err := d.PerformAction(context.Background(), "wave", nil)
	if err != nil {
		t.Fatalf("PerformAction() error = %v", err)
	}
	if err := d.CancelAction(context.Background(), rec.ID); !errors.Is(err, binding.ErrCancelUnsupported) {
		t.Errorf("CancelAction() error = %v, want ErrCancelUnsupported", err)
	}
	if got, ok := d.Action(rec.ID); !ok || got.Status != ActionPending {
		t.Errorf("record after failed cancel = %+v, %v", got, ok)
	}
}

func TestUriVariables(t *testing.T) {
	got := uriVariables(map[string]any{
		"distance": float64(42),
		"speed":    1.5,
		"name":     "left",
		"fast":     true,
		"skip":     nil,
		"path":     []any{"a", "b"},
	})
	want := map[string]string{
		"distance": "42",
		"speed":    "1.5",
		"name":     "left",
		"fast":     "true",
		"path":     `["a","b"]`,
	}
	if len(got) != len(want) {
		t.Fatalf("uriVariables() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("uriVariables()[%q] = %q, want %q", k, got[k], v)
		}
	}

	if uriVariables("scalar") != nil || uriVariables(nil) != nil {
		t.Error("non-object input produced variables")
	}
}

// ==================== Events ====================

func TestDevice_EventsNotify(t *testing.T) {
	r := newRobot(t)
	n := newRecordingNotifier()
	d := newRobotDevice(t, r, n)

	d.Start(context.Background())

	eventually(t, 3*time.Second, func() bool { return len(n.Events()) == 1 }, "event not notified")
	ev := n.Events()[0]
	if ev.Name != "bumped" || ev.Timestamp.IsZero() {
		t.Errorf("event = %+v", ev)
	}
	data, _ := json.Marshal(ev.Data)
	if string(data) != `{"side":"left"}` {
		t.Errorf("event data = %s", data)
	}
}

// ==================== Polling & teardown ====================

func TestDevice_PollTaskAndClose(t *testing.T) {
	l := newLamp(t)
	reads := &l.reads

	desc := parseThing(t, l.description(), l.srv.URL+"/td")
	n := newRecordingNotifier()
	d := NewDevice(desc, DeviceOptions{
		Origin:       l.srv.URL + "/td",
		Registry:     defaultRegistry(),
		Env:          testEnv(),
		PollInterval: func() time.Duration { return 10 * time.Millisecond },
		Notifier:     n,
	})

	l.set("8")
	d.Start(context.Background())
	eventually(t, 3*time.Second, func() bool { return reads.Load() >= 3 }, "poll task did not repeat")

	v, _ := n.Value(d.ID() + "/level")
	if v != float64(8) {
		t.Errorf("notified level = %v, want 8", v)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if !d.Closed() {
		t.Error("Closed() = false after Close")
	}

	after := reads.Load()
	time.Sleep(50 * time.Millisecond)
	if reads.Load() != after {
		t.Errorf("polls continued after Close: %d -> %d", after, reads.Load())
	}
	if err := d.Poll(context.Background()); err != nil || reads.Load() != after {
		t.Errorf("Poll() after Close read the device (err = %v)", err)
	}
}

type fakeConn struct{ closed atomic.Int32 }

func (c *fakeConn) Close() error {
	c.closed.Add(1)
	return nil
}

func TestDevice_CloseReleasesAdoptedSessions(t *testing.T) {
	conn := &fakeConn{}
	desc := &thing.Description{URL: "mqtt://broker/lamp"}
	d := NewDevice(desc, DeviceOptions{Conns: map[string]binding.Connection{"tcp://broker:1883": conn}})

	d.Close()
	d.Close()
	if n := conn.closed.Load(); n != 1 {
		t.Errorf("session closed %d times, want 1", n)
	}
}

func TestDevice_Info(t *testing.T) {
	r := newRobot(t)
	d := newRobotDevice(t, r, nil)

	info := d.Info()
	if info.ID != thing.DeviceID(r.srv.URL+"/td") {
		t.Errorf("ID = %q", info.ID)
	}
	if info.Title != "Robot" || len(info.Actions) != 3 || len(info.Events) != 1 {
		t.Errorf("Info() = %+v", info)
	}
}
