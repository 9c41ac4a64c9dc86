package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// Browsed service types.
const (
	ServiceWebThing        = "_webthing._tcp"
	ServiceHTTPWebThingSub = "_http._tcp,_webthing"
	ServiceHTTP            = "_http._tcp"

	// DefaultDomain is the mDNS browse domain.
	DefaultDomain = "local."
)

// Sink receives discovered URLs. Satisfied by *wot.Adapter.
type Sink interface {
	LoadThing(ctx context.Context, url string) error
	UnloadThing(url string)
}

// Logger is the logging interface used by the service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// BrowseFunc browses one service type until ctx is done, sending entries
// that appear on entries and entries that leave on removed.
type BrowseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry) error

// Config configures a Service.
type Config struct {
	// Domain defaults to DefaultDomain.
	Domain string

	// Interface restricts browsing to one network interface. Empty means all.
	Interface string

	// Browse replaces the zeroconf browser, for tests.
	Browse BrowseFunc

	Logger Logger
}

// browser pairs a service type with the rule turning its entries into URLs.
type browser struct {
	service string
	urlOf   func(*zeroconf.ServiceEntry) (string, bool)
}

var browsers = []browser{
	{service: ServiceWebThing, urlOf: webThingURL},
	{service: ServiceHTTPWebThingSub, urlOf: txtURL},
	{service: ServiceHTTP, urlOf: webThingTxtURL},
}

// Service runs the mDNS browsers.
//
// Thread Safety: Start and Stop may be called from any goroutine.
type Service struct {
	sink   Sink
	domain string
	browse BrowseFunc
	log    Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a discovery service feeding sink.
func New(sink Sink, cfg Config) *Service {
	s := &Service{
		sink:   sink,
		domain: cfg.Domain,
		browse: cfg.Browse,
		log:    cfg.Logger,
	}
	if s.domain == "" {
		s.domain = DefaultDomain
	}
	if s.log == nil {
		s.log = noopLogger{}
	}
	if s.browse == nil {
		s.browse = zeroconfBrowse(cfg.Interface)
	}
	return s
}

// Start begins browsing. It returns immediately; browsing stops when ctx is
// done or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("discovery: already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, b := range browsers {
		entries := make(chan *zeroconf.ServiceEntry)
		removed := make(chan *zeroconf.ServiceEntry)

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			if err := s.browse(ctx, b.service, s.domain, entries, removed); err != nil && ctx.Err() == nil {
				s.log.Warn("mdns browse failed", "service", b.service, "error", err)
			}
		}()
		go func() {
			defer s.wg.Done()
			s.consume(ctx, b, entries, removed)
		}()
	}

	s.log.Info("mdns discovery started", "domain", s.domain)
	return nil
}

// consume turns browse results into loads and unloads until ctx is done
// or both channels are closed.
func (s *Service) consume(ctx context.Context, b browser, entries, removed <-chan *zeroconf.ServiceEntry) {
	for entries != nil || removed != nil {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			u, ok := b.urlOf(e)
			if !ok {
				continue
			}
			s.log.Debug("thing discovered", "service", b.service, "instance", e.Instance, "url", u)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				if err := s.sink.LoadThing(ctx, u); err != nil && ctx.Err() == nil {
					s.log.Warn("discovered thing not loaded", "url", u, "error", err)
				}
			}()
		case e, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			if u, ok := b.urlOf(e); ok {
				s.log.Debug("thing gone", "service", b.service, "instance", e.Instance, "url", u)
				s.sink.UnloadThing(u)
			}
		}
	}
}

// Stop cancels browsing and waits for browsers and in-flight loads to
// return. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info("mdns discovery stopped")
}

func zeroconfBrowse(iface string) BrowseFunc {
	return func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry) error {
		var opts []zeroconf.ClientOption
		if iface != "" {
			ni, err := net.InterfaceByName(iface)
			if err != nil {
				return fmt.Errorf("interface %s: %w", iface, err)
			}
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*ni}))
		}
		return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
	}
}

// webThingURL builds http://{host}:{port}{path} from a _webthing entry.
func webThingURL(e *zeroconf.ServiceEntry) (string, bool) {
	host := strings.TrimSuffix(e.HostName, ".")
	if host == "" || e.Port == 0 {
		return "", false
	}
	path, _ := txtValue(e.Text, "path")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(e.Port)) + path, true
}

// txtURL returns the url TXT record.
func txtURL(e *zeroconf.ServiceEntry) (string, bool) {
	u, ok := txtValue(e.Text, "url")
	return u, ok && u != ""
}

// webThingTxtURL returns the url TXT record of entries carrying a webthing key.
func webThingTxtURL(e *zeroconf.ServiceEntry) (string, bool) {
	if _, ok := txtValue(e.Text, "webthing"); !ok {
		return "", false
	}
	return txtURL(e)
}

// txtValue looks up key in key=value TXT records. A bare key is present
// with an empty value.
func txtValue(records []string, key string) (string, bool) {
	for _, r := range records {
		k, v, _ := strings.Cut(r, "=")
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
