package monitor

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/dhcpleasemon/internal/lease"
	"github.com/dmdmdm-nz/dhcpleasemon/internal/route"
	"github.com/dmdmdm-nz/dhcpleasemon/internal/runtime"
)

// TriggerRunner executes the per-interface trigger scripts.
// Satisfied by *trigger.Runner.
type TriggerRunner interface {
	Run(p lease.Params)
	Run6(p lease.Params6)
}

// Config carries the settings the monitor needs. The CLI layer
// populates it fully before Start.
type Config struct {
	Interval   time.Duration
	Interfaces []string
	LeaseDir   string
	Lease6Dir  string
	IPv6       bool
}

// Service polls per-interface lease files and runs the trigger script
// whenever a lease's effective parameters change. All lease state is
// owned by the service goroutine; nothing persists across restarts.
type Service struct {
	cfg      Config
	resolver route.Resolver
	runner   TriggerRunner
	watcher  Watcher

	tracker *modTracker
	kick    chan string

	paramsMu sync.RWMutex
	params   map[string]lease.Params
	params6  map[string]lease.Params6

	subsMu           sync.Mutex
	subs             map[int]*runtime.SubQueue[Event]
	nextSubscriberID int
	closed           bool
}

func NewService(cfg Config, resolver route.Resolver, runner TriggerRunner) *Service {
	return &Service{
		cfg:      cfg,
		resolver: resolver,
		runner:   runner,
		tracker:  newModTracker(),
		kick:     make(chan string, 64),
		params:   make(map[string]lease.Params),
		params6:  make(map[string]lease.Params6),
		subs:     make(map[int]*runtime.SubQueue[Event]),
	}
}

// AttachWatcher wires an optional lease-directory watcher. Watcher
// events only reorder work onto the service goroutine; the check logic
// is the same as the poll's.
func (s *Service) AttachWatcher(w Watcher) {
	s.watcher = w
}

// Subscribe returns a channel of lease-change events. The currently
// cached parameter sets are delivered first as a snapshot, then live
// changes follow.
func (s *Service) Subscribe() (<-chan Event, func()) {
	// Take a snapshot.
	s.paramsMu.RLock()
	snapshot := make([]Event, 0, len(s.params)+len(s.params6))
	for _, p := range s.params {
		snapshot = append(snapshot, Event{Type: LeaseChanged, Params: p})
	}
	for _, p := range s.params6 {
		snapshot = append(snapshot, Event{Type: Lease6Changed, Params6: p})
	}
	s.paramsMu.RUnlock()

	// Create sub with buffer big enough for the snapshot.
	outBuf := len(snapshot) + 8
	sub := runtime.NewSubQueue[Event](outBuf)

	// Register subscriber in paused mode (live events will enqueue).
	s.subsMu.Lock()
	id := s.nextSubscriberID
	s.nextSubscriberID++
	s.subs[id] = sub
	s.subsMu.Unlock()

	// Emit snapshot directly to the subscriber channel.
	for _, ev := range snapshot {
		sub.OutOfBandSnapshotSend(ev)
	}

	// Transition to live: flush queued live events, then unpause.
	sub.SetPaused(false)

	// Unsubscribe closure.
	unsub := func() {
		s.subsMu.Lock()
		if q, ok := s.subs[id]; ok {
			delete(s.subs, id)
			q.Close()
		}
		s.subsMu.Unlock()
	}
	return sub.Chan(), unsub
}

// Start runs monitoring cycles until ctx is cancelled or a lease file
// becomes unstattable, which is fatal for the monitor.
func (s *Service) Start(ctx context.Context) error {
	log.Info("Starting DHCP lease monitoring service")
	defer log.Info("Stopping DHCP lease monitoring service")

	if s.watcher != nil {
		go func() {
			err := s.watcher.Start(ctx, func(path string) {
				select {
				case s.kick <- path:
				default:
					// Poll reconciles anything dropped here.
				}
			})
			if err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("Lease watcher failed, continuing with polling only")
			}
		}()
	}

	if err := s.runCycle(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.runCycle(); err != nil {
				return err
			}
		case path := <-s.kick:
			if err := s.checkPath(path); err != nil {
				return err
			}
		}
	}
}

func (s *Service) Close() error {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, q := range s.subs {
		q.Close()
		delete(s.subs, id)
	}
	return nil
}

// runCycle checks every configured interface in order, IPv4 before
// IPv6 per interface.
func (s *Service) runCycle() error {
	for _, iface := range s.cfg.Interfaces {
		if err := s.checkLease(iface); err != nil {
			return err
		}
		if s.cfg.IPv6 {
			if err := s.checkLease6(iface); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkPath maps a watcher-reported file path back to the interface
// and family it belongs to and runs that single check.
func (s *Service) checkPath(path string) error {
	iface := filepath.Base(path)
	if !s.monitored(iface) {
		return nil
	}

	switch filepath.Dir(path) {
	case filepath.Clean(s.cfg.LeaseDir):
		return s.checkLease(iface)
	case filepath.Clean(s.cfg.Lease6Dir):
		if s.cfg.IPv6 {
			return s.checkLease6(iface)
		}
	}
	return nil
}

func (s *Service) monitored(iface string) bool {
	for _, name := range s.cfg.Interfaces {
		if name == iface {
			return true
		}
	}
	return false
}

func (s *Service) leaseFilePath(iface string) string {
	return filepath.Join(s.cfg.LeaseDir, iface)
}

func (s *Service) lease6FilePath(iface string) string {
	return filepath.Join(s.cfg.Lease6Dir, iface)
}

func (s *Service) checkLease(iface string) error {
	log.WithField("interface", iface).Trace("Checking IPv4 lease")

	path := s.leaseFilePath(iface)
	modified, err := s.tracker.wasModified(path)
	if err != nil {
		return err
	}
	if !modified {
		log.WithField("interface", iface).Trace("Lease file not modified")
		return nil
	}

	params := lease.Params{
		Interface: iface,
		Addr:      lease.ReadAddr(path),
		Route:     s.resolver.DefaultRoute(iface, lease.FamilyInet),
	}

	s.paramsMu.RLock()
	current, ok := s.params[iface]
	s.paramsMu.RUnlock()
	if ok && current == params {
		log.WithField("interface", iface).Debug("Lease params unchanged")
		return nil
	}

	log.WithFields(log.Fields{
		"interface": iface,
		"addr":      params.Addr,
		"route":     params.Route,
	}).Info("Lease changed, running trigger")

	// The cache records the firing decision, not the script outcome: a
	// failing script is not retried until the lease changes again.
	s.runner.Run(params)
	s.paramsMu.Lock()
	s.params[iface] = params
	s.paramsMu.Unlock()

	s.broadcast(Event{Type: LeaseChanged, Params: params})
	return nil
}

func (s *Service) checkLease6(iface string) error {
	log.WithField("interface", iface).Trace("Checking IPv6 lease")

	path := s.lease6FilePath(iface)
	modified, err := s.tracker.wasModified(path)
	if err != nil {
		return err
	}
	if !modified {
		log.WithField("interface", iface).Trace("Lease file not modified")
		return nil
	}

	prefix, prefixLen := lease.ReadPrefix(path)
	params := lease.Params6{
		Interface: iface,
		Prefix:    prefix,
		PrefixLen: prefixLen,
		Route:     s.resolver.DefaultRoute(iface, lease.FamilyInet6),
	}

	s.paramsMu.RLock()
	current, ok := s.params6[iface]
	s.paramsMu.RUnlock()
	if ok && current == params {
		log.WithField("interface", iface).Debug("Lease params unchanged")
		return nil
	}

	log.WithFields(log.Fields{
		"interface":  iface,
		"prefix":     params.Prefix,
		"prefix_len": params.PrefixLen,
		"route":      params.Route,
	}).Info("Lease changed, running trigger")

	s.runner.Run6(params)
	s.paramsMu.Lock()
	s.params6[iface] = params
	s.paramsMu.Unlock()

	s.broadcast(Event{Type: Lease6Changed, Params6: params})
	return nil
}

func (s *Service) broadcast(ev Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, sub := range s.subs {
		sub.Enqueue(ev)
	}
}
