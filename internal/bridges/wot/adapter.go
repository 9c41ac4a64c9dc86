package wot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// Adapter defaults.
const (
	defaultPollInterval   = 5 * time.Second
	defaultLoadRetryDelay = 2 * time.Second
	defaultFetchTimeout   = 10 * time.Second
)

// Options configures an Adapter.
type Options struct {
	// Registry selects handlers and description loaders. Required.
	Registry *binding.Registry

	// Notifier receives model changes. Optional.
	Notifier Notifier

	// Store persists the poll interval and manually added URLs. Optional.
	Store ConfigStore

	// URLs are loaded on Start in addition to the stored ones.
	URLs []string

	// HTTPClient serves request/response operations and description fetches.
	HTTPClient *http.Client

	// StreamingClient serves long-poll requests. It must not set a total
	// request timeout.
	StreamingClient *http.Client

	PollInterval time.Duration

	// LoadCooldown suppresses repeated fetches of one URL. Zero disables it.
	LoadCooldown time.Duration

	// LoadRetryDelay and LoadMaxRetries pace re-fetches after a failed load.
	// Zero LoadMaxRetries makes a single attempt.
	LoadRetryDelay time.Duration
	LoadMaxRetries int

	FetchTimeout   time.Duration
	ConnectTimeout time.Duration
	LongPoll       binding.RetryPolicy

	// ClientID prefixes MQTT client ids presented to Thing brokers.
	ClientID string

	Logger Logger
}

// knownURL is the load state of one description URL.
type knownURL struct {
	digest    string
	lastFetch time.Time
}

// Adapter loads Thing descriptions and reconciles the set of devices.
//
// Thread Safety: All methods are safe for concurrent use.
type Adapter struct {
	opts     Options
	registry *binding.Registry
	notifier Notifier
	store    ConfigStore
	log      Logger

	pollInterval atomic.Int64

	devices map[string]*Device
	known   map[string]*knownURL
	closed  bool
	mu      sync.Mutex

	// reconcileMu serialises remove-then-add so two loads of one Thing never
	// interleave.
	reconcileMu sync.Mutex

	// ctx bounds background loads and is canceled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// NewAdapter creates an adapter. Zero PollInterval, LoadRetryDelay and
// FetchTimeout select the defaults (5s, 2s, 10s).
func NewAdapter(opts Options) (*Adapter, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.LoadRetryDelay <= 0 {
		opts.LoadRetryDelay = defaultLoadRetryDelay
	}
	opts.LoadMaxRetries = max(opts.LoadMaxRetries, 0)
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		ctx:      ctx,
		cancel:   cancel,
		opts:     opts,
		registry: opts.Registry,
		notifier: opts.Notifier,
		store:    opts.Store,
		log:      opts.Logger,
		devices:  make(map[string]*Device),
		known:    make(map[string]*knownURL),
		now:      time.Now,
	}
	if a.notifier == nil {
		a.notifier = noopNotifier{}
	}
	if a.log == nil {
		a.log = noopLogger{}
	}
	a.pollInterval.Store(int64(opts.PollInterval))
	return a, nil
}

// Start reads the stored settings and loads every stored and configured URL
// in the background. A store failure is returned; load failures are logged.
// Background loads run until they finish or Close is called.
func (a *Adapter) Start(ctx context.Context) error {
	urls := slices.Clone(a.opts.URLs)

	if a.store != nil {
		s, err := a.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading adapter settings: %w", err)
		}
		if s.PollInterval > 0 {
			a.SetPollInterval(s.PollInterval)
		}
		urls = append(urls, s.URLs...)
	}

	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		u = normalizeURL(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		a.loadAsync(u)
	}

	a.log.Info("wot adapter started", "urls", len(seen), "poll_interval", a.PollInterval())
	return nil
}

// loadAsync runs LoadThing on a tracked goroutine, logging failures.
func (a *Adapter) loadAsync(url string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.LoadThing(a.ctx, url); err != nil && !errors.Is(err, ErrAdapterClosed) {
			a.log.Warn("unable to load thing", "url", url, "error", err)
		}
	}()
}

// PollInterval returns the current device poll interval.
func (a *Adapter) PollInterval() time.Duration {
	return time.Duration(a.pollInterval.Load())
}

// SetPollInterval changes the poll interval. Running devices pick it up
// after their current wait. Non-positive values are ignored.
func (a *Adapter) SetPollInterval(d time.Duration) {
	if d > 0 {
		a.pollInterval.Store(int64(d))
	}
}

func normalizeURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}

// LoadThing fetches the description at rawURL and adds, replaces or keeps
// the devices it describes.
//
// A call within the cooldown window after the previous fetch of the same
// URL does nothing. Fetch and parse failures are retried with a fixed delay
// a bounded number of times; an oversized document is not. An unchanged document (same MD5) leaves known
// devices untouched; a changed one replaces them, tearing the old runtime
// down before the new one is added.
//
// Returns:
//   - error: ErrAdapterClosed, binding.ErrUnsupportedScheme,
//     binding.ErrBodyTooLarge, or the last fetch or parse failure
func (a *Adapter) LoadThing(ctx context.Context, rawURL string) error {
	url := normalizeURL(rawURL)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAdapterClosed
	}
	k, ok := a.known[url]
	if !ok {
		k = &knownURL{}
		a.known[url] = k
	}
	now := a.now()
	if !k.lastFetch.IsZero() && now.Sub(k.lastFetch) < a.opts.LoadCooldown {
		a.mu.Unlock()
		a.log.Debug("thing load suppressed by cooldown", "url", url)
		return nil
	}
	k.lastFetch = now
	previous := k.digest
	a.mu.Unlock()

	fetched, doc, err := a.fetch(ctx, url)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if k, ok := a.known[url]; ok {
		k.digest = doc.Digest
	}
	a.mu.Unlock()

	return a.reconcile(ctx, url, fetched, doc, previous == doc.Digest)
}

// fetch loads and parses url, retrying failures.
func (a *Adapter) fetch(ctx context.Context, url string) (*binding.Fetched, *thing.Document, error) {
	env := a.env()

	var (
		fetched *binding.Fetched
		doc     *thing.Document
		attempt int
	)
	operation := func() error {
		attempt++
		fctx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
		defer cancel()

		f, err := a.registry.Load(fctx, env, url)
		if err != nil {
			if errors.Is(err, binding.ErrUnsupportedScheme) || errors.Is(err, binding.ErrBodyTooLarge) {
				return backoff.Permanent(err)
			}
			a.log.Debug("thing fetch failed", "url", url, "attempt", attempt, "error", err)
			return err
		}
		d, err := thing.Parse(f.Raw, url)
		if err != nil {
			f.Close()
			a.log.Debug("thing parse failed", "url", url, "attempt", attempt, "error", err)
			return err
		}
		fetched, doc = f, d
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.opts.LoadRetryDelay), uint64(a.opts.LoadMaxRetries)), // #nosec G115 -- non-negative
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, nil, fmt.Errorf("loading %s after %d attempts: %w", url, attempt, err)
	}
	return fetched, doc, nil
}

// reconcile applies a fetched document. When it changed, devices from url
// that it no longer describes are removed first. Sessions in fetched go to
// the first device added; unused ones are closed.
func (a *Adapter) reconcile(ctx context.Context, url string, fetched *binding.Fetched, doc *thing.Document, unchanged bool) error {
	a.reconcileMu.Lock()
	defer a.reconcileMu.Unlock()

	conns := fetched.Conns
	defer func() {
		for _, c := range conns {
			c.Close() //nolint:errcheck // unused load session
		}
	}()

	var errs []error
	if !unchanged {
		described := make(map[string]bool, len(doc.Things))
		for _, desc := range doc.Things {
			described[desc.DeviceID()] = true
		}
		for _, id := range a.devicesFrom(url) {
			if described[id] {
				continue
			}
			a.log.Info("thing no longer described, removing device", "url", url, "device_id", id)
			if err := a.removeDevice(id); err != nil && !errors.Is(err, ErrDeviceNotFound) {
				errs = append(errs, err)
			}
		}
	}

	for _, desc := range doc.Things {
		id := desc.DeviceID()

		if _, exists := a.Device(id); exists {
			if unchanged {
				a.log.Debug("thing unchanged", "url", url, "device_id", id)
				continue
			}
			a.log.Info("thing description changed, replacing device", "url", url, "device_id", id)
			if err := a.removeDevice(id); err != nil && !errors.Is(err, ErrDeviceNotFound) {
				errs = append(errs, err)
			}
		}

		if _, err := a.AddDevice(ctx, url, desc, conns); err != nil {
			errs = append(errs, err)
			continue
		}
		conns = nil
	}
	return errors.Join(errs...)
}

func (a *Adapter) env() binding.Env {
	return binding.Env{
		HTTP:           a.opts.HTTPClient,
		Streaming:      a.opts.StreamingClient,
		Retry:          a.opts.LongPoll,
		ConnectTimeout: a.opts.ConnectTimeout,
		ClientID:       a.opts.ClientID,
		Logger:         a.log,
	}
}

// AddDevice builds, registers and starts a device for desc. conns are
// sessions opened while loading; the device takes ownership of them only
// on success.
//
// Returns:
//   - *Device: The started device
//   - error: ErrDuplicateDevice (nothing changed) or ErrAdapterClosed
func (a *Adapter) AddDevice(ctx context.Context, origin string, desc *thing.Description, conns map[string]binding.Connection) (*Device, error) {
	id := desc.DeviceID()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrAdapterClosed
	}
	if _, exists := a.devices[id]; exists {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDevice, id)
	}
	d := NewDevice(desc, DeviceOptions{
		Origin:       origin,
		Registry:     a.registry,
		Env:          a.env(),
		Conns:        conns,
		PollInterval: a.PollInterval,
		Notifier:     a.notifier,
		Logger:       a.log,
	})
	a.devices[id] = d
	a.mu.Unlock()

	a.notifier.DeviceAdded(d.Info())
	d.Start(ctx)

	a.log.Info("thing added", "device_id", id, "url", d.URL(), "properties", len(desc.Properties))
	return d, nil
}

// removeDevice unregisters and tears down one device.
func (a *Adapter) removeDevice(id string) error {
	a.mu.Lock()
	d, ok := a.devices[id]
	if ok {
		delete(a.devices, id)
	}
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if err := d.Close(); err != nil {
		a.log.Warn("device teardown incomplete", "device_id", id, "error", err)
	}
	a.notifier.DeviceRemoved(id)
	return nil
}

// RemoveDevice removes a device at the user's request. If the device's URL
// was added manually it is also removed from the stored settings and
// forgotten, so it is not loaded again.
func (a *Adapter) RemoveDevice(ctx context.Context, id string) error {
	d, ok := a.Device(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if err := a.removeDevice(id); err != nil {
		return err
	}
	a.removeFromConfig(ctx, d)
	return nil
}

func (a *Adapter) removeFromConfig(ctx context.Context, d *Device) {
	if a.store == nil {
		return
	}

	s, err := a.store.Load(ctx)
	if err != nil {
		a.log.Error("failed to load settings", "device_id", d.ID(), "error", err)
		return
	}

	candidates := []string{normalizeURL(d.Origin()), normalizeURL(d.URL())}
	kept := s.URLs[:0:0]
	removed := ""
	for _, u := range s.URLs {
		if removed == "" && slices.Contains(candidates, normalizeURL(u)) {
			removed = normalizeURL(u)
			continue
		}
		kept = append(kept, u)
	}
	if removed == "" {
		return
	}

	s.URLs = kept
	if err := a.store.Save(ctx, s); err != nil {
		a.log.Error("failed to remove device from settings", "device_id", d.ID(), "error", err)
		return
	}

	a.mu.Lock()
	delete(a.known, removed)
	a.mu.Unlock()
}

// UnloadThing tears down every device loaded from rawURL and forgets the
// URL's digest.
func (a *Adapter) UnloadThing(rawURL string) {
	url := normalizeURL(rawURL)

	ids := a.devicesFrom(url)
	a.mu.Lock()
	delete(a.known, url)
	a.mu.Unlock()

	for _, id := range ids {
		if err := a.removeDevice(id); err != nil && !errors.Is(err, ErrDeviceNotFound) {
			a.log.Warn("unload failed", "device_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		a.log.Info("thing unloaded", "url", url, "devices", len(ids))
	}
}

// devicesFrom returns the ids of devices loaded from url.
func (a *Adapter) devicesFrom(url string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var ids []string
	for id, d := range a.devices {
		if d.Origin() == url {
			ids = append(ids, id)
		}
	}
	return ids
}

// StartPairing reloads every known URL in the background. Loads still in
// their cooldown window are skipped.
func (a *Adapter) StartPairing() {
	a.mu.Lock()
	urls := make([]string, 0, len(a.known))
	for u := range a.known {
		urls = append(urls, u)
	}
	a.mu.Unlock()

	for _, u := range urls {
		a.loadAsync(u)
	}
}

// Device returns the device with id.
func (a *Adapter) Device(id string) (*Device, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.devices[id]
	return d, ok
}

// Devices returns every device ordered by id.
func (a *Adapter) Devices() []*Device {
	a.mu.Lock()
	out := make([]*Device, 0, len(a.devices))
	for _, d := range a.devices {
		out = append(out, d)
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// KnownURLs returns every URL loaded or being loaded, sorted.
func (a *Adapter) KnownURLs() []string {
	a.mu.Lock()
	out := make([]string, 0, len(a.known))
	for u := range a.known {
		out = append(out, u)
	}
	a.mu.Unlock()

	sort.Strings(out)
	return out
}

// Close stops accepting loads, waits for background loads and tears down
// every device. Safe to call more than once.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()

	a.mu.Lock()
	devices := a.devices
	a.devices = make(map[string]*Device)
	a.mu.Unlock()

	for id, d := range devices {
		if err := d.Close(); err != nil {
			a.log.Warn("device teardown incomplete", "device_id", id, "error", err)
		}
	}
	a.log.Info("wot adapter stopped", "devices", len(devices))
}
