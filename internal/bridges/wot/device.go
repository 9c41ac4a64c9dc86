package wot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// maxConcurrentPolls bounds the property reads one device poll runs at once.
const maxConcurrentPolls = 8

// Device is the runtime of one remote Thing.
//
// It owns the Thing's property bindings, event subscriptions, action
// invokers and transport sessions. Sessions are released on Close.
type Device struct {
	id     string
	origin string
	desc   *thing.Description

	properties map[string]*PropertyBinding
	invokers   map[string]binding.ActionInvoker

	events   map[string]*binding.Subscription
	eventsMu sync.Mutex

	actions   map[string]*ActionRecord
	actionsMu sync.Mutex

	conns        *binding.ConnectionPool
	env          binding.Env
	registry     *binding.Registry
	notifier     Notifier
	pollInterval func() time.Duration
	log          Logger

	ctx       context.Context
	cancel    context.CancelFunc
	task      *repeatingTask
	taskMu    sync.Mutex
	closing   atomic.Bool
	closeOnce sync.Once
}

// DeviceOptions configures a Device.
type DeviceOptions struct {
	// Origin is the URL the description was loaded from.
	Origin string

	Registry *binding.Registry

	// Env is the handler environment. Its Conns is replaced by the device's
	// own pool.
	Env binding.Env

	// Conns are sessions opened while loading the description; the device
	// takes ownership of them.
	Conns map[string]binding.Connection

	// PollInterval returns the delay between polls. Read before every wait.
	PollInterval func() time.Duration

	Notifier Notifier
	Logger   Logger
}

// NewDevice builds the runtime for desc. Handlers are bound immediately;
// nothing is polled or subscribed until Start.
func NewDevice(desc *thing.Description, opts DeviceOptions) *Device {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = &binding.Registry{}
	}
	interval := opts.PollInterval
	if interval == nil {
		interval = func() time.Duration { return defaultPollInterval }
	}

	id := desc.DeviceID()
	logger = withDevice(logger, id)

	conns := binding.NewConnectionPool(opts.Env.ConnectTimeout)
	for key, c := range opts.Conns {
		conns.Adopt(key, c)
	}
	env := opts.Env
	env.Conns = conns
	env.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	d := &Device{
		id:           id,
		origin:       opts.Origin,
		desc:         desc,
		properties:   make(map[string]*PropertyBinding, len(desc.Properties)),
		invokers:     make(map[string]binding.ActionInvoker, len(desc.Actions)),
		events:       make(map[string]*binding.Subscription, len(desc.Events)),
		actions:      make(map[string]*ActionRecord),
		conns:        conns,
		env:          env,
		registry:     registry,
		notifier:     notifier,
		pollInterval: interval,
		log:          logger,
		ctx:          ctx,
		cancel:       cancel,
	}

	for name, prop := range desc.Properties {
		if prop == nil {
			continue
		}
		d.properties[name] = NewPropertyBinding(name, prop, registry, env, d.propertyChanged)
	}
	for name, action := range desc.Actions {
		if action == nil {
			continue
		}
		if h := bindOne(registry.Invokers, env, action.FormsFor(thing.OpInvokeAction), logger, name, thing.OpInvokeAction); h != nil {
			d.invokers[name] = h
		}
	}
	return d
}

// withDevice tags every log record with the device id.
func withDevice(l Logger, id string) Logger {
	return taggedLogger{l: l, tags: []any{"device_id", id}}
}

type taggedLogger struct {
	l    Logger
	tags []any
}

func (t taggedLogger) args(args []any) []any {
	return append(append(make([]any, 0, len(t.tags)+len(args)), t.tags...), args...)
}

func (t taggedLogger) Debug(msg string, args ...any) { t.l.Debug(msg, t.args(args)...) }
func (t taggedLogger) Info(msg string, args ...any)  { t.l.Info(msg, t.args(args)...) }
func (t taggedLogger) Warn(msg string, args ...any)  { t.l.Warn(msg, t.args(args)...) }
func (t taggedLogger) Error(msg string, args ...any) { t.l.Error(msg, t.args(args)...) }

// ID returns the device identity derived from the Thing URL.
func (d *Device) ID() string { return d.id }

// Origin returns the URL the description was loaded from.
func (d *Device) Origin() string { return d.origin }

// URL returns the Thing's own URL.
func (d *Device) URL() string { return d.desc.ThingURL() }

// Title returns the Thing title.
func (d *Device) Title() string { return d.desc.Title }

// Description returns the parsed description.
func (d *Device) Description() *thing.Description { return d.desc }

// Info summarises the device for notifications.
func (d *Device) Info() DeviceInfo {
	return DeviceInfo{
		ID:         d.id,
		Title:      d.desc.Title,
		URL:        d.URL(),
		Origin:     d.origin,
		Properties: d.desc.PropertyNames(),
		Actions:    d.desc.ActionNames(),
		Events:     d.desc.EventNames(),
	}
}

// Property returns the binding for name.
func (d *Device) Property(name string) (*PropertyBinding, bool) {
	p, ok := d.properties[name]
	return p, ok
}

// Values returns a snapshot of every cached property value.
func (d *Device) Values() map[string]any {
	out := make(map[string]any, len(d.properties))
	for name, p := range d.properties {
		out[name] = p.Value()
	}
	return out
}

func (d *Device) propertyChanged(name string, value any) {
	if d.closing.Load() {
		return
	}
	d.notifier.PropertyChanged(d.id, name, value)
}

// Start announces the advertised property values, opens observe and event
// subscriptions and starts the poll task. Subscription failures are logged;
// the interactions concerned stay at their last known state.
func (d *Device) Start(ctx context.Context) {
	if d.closing.Load() {
		return
	}

	for _, name := range d.desc.PropertyNames() {
		p, ok := d.properties[name]
		if !ok {
			continue
		}
		if v := p.Value(); v != nil {
			d.propertyChanged(name, v)
		}
		if err := p.Start(ctx); err != nil {
			d.log.Warn("property observe failed", "property", name, "error", err)
		}
	}

	d.subscribeEvents(ctx)

	d.taskMu.Lock()
	defer d.taskMu.Unlock()
	if d.task != nil || d.closing.Load() {
		return
	}
	d.task = startRepeating(d.ctx, d.pollInterval, func(ctx context.Context) {
		if err := d.Poll(ctx); err != nil {
			d.log.Debug("poll incomplete", "error", err)
		}
	})
}

func (d *Device) subscribeEvents(ctx context.Context) {
	for _, name := range d.desc.EventNames() {
		event := d.desc.Events[name]
		if event == nil {
			continue
		}
		h := bindOne(d.registry.Subscribers, d.env, event.FormsFor(thing.OpSubscribeEvent), d.log, name, thing.OpSubscribeEvent)
		if h == nil {
			continue
		}

		eventName := name
		sub, err := h.SubscribeEvent(ctx, func(data any) {
			d.notifier.EventOccurred(d.id, EventRecord{
				Name:      eventName,
				Data:      data,
				Timestamp: time.Now().UTC(),
			})
		})
		if err != nil {
			d.log.Warn("event subscribe failed", "event", name, "error", err)
			continue
		}

		d.eventsMu.Lock()
		if d.closing.Load() {
			d.eventsMu.Unlock()
			sub.Cancel()
			return
		}
		if old := d.events[name]; old != nil {
			old.Cancel()
		}
		d.events[name] = sub
		d.eventsMu.Unlock()
	}
}

// Poll reads every readable property once, concurrently. It does nothing
// once the device is closing. Failed reads keep their cached values and are
// returned joined.
func (d *Device) Poll(ctx context.Context) error {
	if d.closing.Load() {
		return nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(maxConcurrentPolls)
	for _, p := range d.properties {
		if !p.Readable() {
			continue
		}
		g.Go(func() error {
			if err := p.Poll(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines collect into errs
	return errors.Join(errs...)
}

// SetProperty writes a property through its binding.
func (d *Device) SetProperty(ctx context.Context, name string, value any) (any, error) {
	p, ok := d.properties[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
	}
	return p.SetValue(ctx, value)
}

// PerformAction invokes an action. input is sent as the request payload;
// when it is an object its members also fill URI template variables.
//
// On failure the record is marked error, reported, and returned with the
// error. On success the record is kept in the action table under the
// transport's reference (or a generated id) so it can be queried and
// canceled.
//
// Returns:
//   - ActionRecord: The invocation record
//   - error: ErrActionNotFound, binding.ErrNoApplicableHandler, or the
//     transport error
func (d *Device) PerformAction(ctx context.Context, name string, input any) (ActionRecord, error) {
	if _, declared := d.desc.Actions[name]; !declared {
		return ActionRecord{}, fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}

	rec := &ActionRecord{
		ID:            uuid.NewString(),
		Name:          name,
		Input:         input,
		Status:        ActionCreated,
		TimeRequested: time.Now().UTC(),
	}

	invoker, ok := d.invokers[name]
	if !ok {
		err := fmt.Errorf("%w: action %s", binding.ErrNoApplicableHandler, name)
		return d.failAction(rec, err), err
	}

	rec.Status = ActionPending
	d.notifier.ActionStatus(d.id, *rec)

	inv, err := invoker.InvokeAction(ctx, input, uriVariables(input))
	if err != nil {
		d.log.Warn("action failed", "action", name, "error", err)
		return d.failAction(rec, err), err
	}

	rec.Output = inv.Output
	if inv.Ref != "" {
		rec.ID = inv.Ref
		rec.Ref = inv.Ref
	} else {
		rec.finish(ActionCompleted, time.Now().UTC())
	}

	d.storeAction(rec)
	d.notifier.ActionStatus(d.id, *rec)
	return *rec, nil
}

func (d *Device) failAction(rec *ActionRecord, err error) ActionRecord {
	rec.Error = err.Error()
	rec.finish(ActionError, time.Now().UTC())
	d.notifier.ActionStatus(d.id, *rec)
	return *rec
}

func (d *Device) storeAction(rec *ActionRecord) {
	d.actionsMu.Lock()
	defer d.actionsMu.Unlock()

	d.actions[rec.ID] = rec
	if len(d.actions) <= maxActionRecords {
		return
	}

	var oldest *ActionRecord
	for _, r := range d.actions {
		if r.finished() && (oldest == nil || r.TimeRequested.Before(oldest.TimeRequested)) {
			oldest = r
		}
	}
	if oldest != nil {
		delete(d.actions, oldest.ID)
	}
}

// Action returns a copy of the record with id.
func (d *Device) Action(id string) (ActionRecord, bool) {
	d.actionsMu.Lock()
	defer d.actionsMu.Unlock()
	rec, ok := d.actions[id]
	if !ok {
		return ActionRecord{}, false
	}
	return *rec, true
}

// Actions returns copies of every record, oldest first.
func (d *Device) Actions() []ActionRecord {
	d.actionsMu.Lock()
	out := make([]ActionRecord, 0, len(d.actions))
	for _, rec := range d.actions {
		out = append(out, *rec)
	}
	d.actionsMu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TimeRequested.Before(out[j].TimeRequested) })
	return out
}

// CancelAction cancels a pending invocation through its transport.
// Transports that cannot cancel fail with binding.ErrCancelUnsupported and
// the record is left unchanged.
func (d *Device) CancelAction(ctx context.Context, id string) error {
	d.actionsMu.Lock()
	rec, ok := d.actions[id]
	var snapshot ActionRecord
	if ok {
		snapshot = *rec
	}
	d.actionsMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrActionNotFound, id)
	}

	canceller, ok := d.invokers[snapshot.Name].(binding.ActionCanceller)
	if !ok {
		return fmt.Errorf("%w: action %s", binding.ErrCancelUnsupported, snapshot.Name)
	}
	if err := canceller.CancelAction(ctx, snapshot.Ref); err != nil {
		return fmt.Errorf("canceling %s: %w", snapshot.Name, err)
	}

	d.actionsMu.Lock()
	rec, ok = d.actions[id]
	if ok {
		delete(d.actions, id)
		rec.finish(ActionCancelled, time.Now().UTC())
		snapshot = *rec
	}
	d.actionsMu.Unlock()

	if ok {
		d.notifier.ActionStatus(d.id, snapshot)
	}
	return nil
}

// CancelSubscriptions cancels every property and event subscription.
func (d *Device) CancelSubscriptions() {
	for _, p := range d.properties {
		p.CancelSubscriptions()
	}

	d.eventsMu.Lock()
	events := d.events
	d.events = make(map[string]*binding.Subscription)
	d.eventsMu.Unlock()

	for _, sub := range events {
		sub.Cancel()
	}
}

// Close tears the device down: it stops the poll task, cancels every
// subscription and releases every session. Safe to call more than once and
// while polls or deliveries are in flight.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.closing.Store(true)

		d.taskMu.Lock()
		task := d.task
		d.taskMu.Unlock()
		d.cancel()
		if task != nil {
			task.Stop()
		}

		d.CancelSubscriptions()
		err = d.conns.Close()
	})
	return err
}

// Closed reports whether Close has been called.
func (d *Device) Closed() bool {
	return d.closing.Load()
}
