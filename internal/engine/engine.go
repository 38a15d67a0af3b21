// Package engine hosts the Manager: the owner of backend lifecycle and the
// public surface of locator resolution, actions, waits and cost reporting.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/capability"
	"github.com/xkilldash9x/webprobe/internal/cost"
	"github.com/xkilldash9x/webprobe/internal/dispatch"
	"github.com/xkilldash9x/webprobe/internal/resolver"
	"github.com/xkilldash9x/webprobe/internal/snapshot"
)

// CostLedger persists tracked vision calls.
type CostLedger interface {
	Append(ctx context.Context, sessionID string, entries []schemas.CostEntry) (int64, error)
}

// Options configure a Manager. Mode is fixed for the Manager's lifetime.
type Options struct {
	Mode               schemas.Mode
	WaitTimeout        time.Duration
	WaitInterval       time.Duration
	VerifyBeforeAction bool
	Snapshot           schemas.SnapshotOptions
	VisionBudgetUSD    float64
	Pricing            map[string]schemas.Pricing
	// Platform selects the select-all chord; empty means the host OS.
	Platform string
	// Ledger, when set, receives the tracked costs on Disconnect.
	Ledger CostLedger
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Mode:               schemas.ModeHybrid,
		WaitTimeout:        10 * time.Second,
		WaitInterval:       100 * time.Millisecond,
		VerifyBeforeAction: true,
		Snapshot:           schemas.SnapshotOptions{InteractiveOnly: true, MaxDepth: -1, WithBoxes: true},
	}
}

// Manager composes the resolver, dispatcher, snapshot cache and cost tracker
// over one set of backends. Operations on one Manager run one at a time, in
// the order they are issued; separate Managers share nothing.
type Manager struct {
	mu    sync.Mutex
	id    string
	opts  Options
	state schemas.ConnectionState

	registry   *capability.Registry
	cache      *snapshot.Cache
	tracker    *cost.Tracker
	resolver   *resolver.Engine
	dispatcher *dispatch.Dispatcher

	// persisted counts tracker entries already written to the ledger.
	persisted int
	logger    *zap.Logger
}

// New wires a Manager over backends. Nil backends are simply not configured.
func New(backends capability.Backends, opts Options, logger *zap.Logger) *Manager {
	if opts.Mode == "" {
		opts.Mode = schemas.ModeHybrid
	}
	def := DefaultOptions()
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = def.WaitTimeout
	}
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = def.WaitInterval
	}

	id := uuid.NewString()
	logger = logger.Named("engine").With(zap.String("session_id", id))

	registry := capability.NewRegistry(backends)
	cache := snapshot.NewCache(registry, opts.Mode, opts.Snapshot, logger)
	tracker := cost.NewTracker(opts.Pricing, logger)
	var visual *resolver.Visual
	if opts.Mode != schemas.ModeDeterministic {
		visual = resolver.NewVisual(registry, tracker, opts.VisionBudgetUSD, logger)
	}
	engine := resolver.NewEngine(opts.Mode, resolver.NewDeterministic(cache, registry), visual, logger)

	return &Manager{
		id:       id,
		opts:     opts,
		state:    schemas.StateDisconnected,
		registry: registry,
		cache:    cache,
		tracker:  tracker,
		resolver: engine,
		dispatcher: dispatch.New(engine, registry, tracker, dispatch.Options{
			VerifyBeforeAction: opts.VerifyBeforeAction,
			Platform:           opts.Platform,
		}, logger),
		logger: logger,
	}
}

// SessionID identifies this Manager in logs and in the cost ledger.
func (m *Manager) SessionID() string { return m.id }

// Mode returns the fixed resolution mode.
func (m *Manager) Mode() schemas.Mode { return m.opts.Mode }

// State returns the lifecycle state.
func (m *Manager) State() schemas.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Capabilities reports every backend kind and whether it is connected.
func (m *Manager) Capabilities() []capability.Status {
	return m.registry.Statuses()
}

// Connect brings up the backends. The structural backend is required; the
// OS bridge, native input and vision are optional and only logged on failure.
// Native input is tried only when the bridge did not come up, and vision only
// outside deterministic mode. Connecting a connected Manager does nothing.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == schemas.StateConnected {
		return nil
	}
	m.state = schemas.StateConnecting

	structural := m.registry.Lifecycle(schemas.BackendStructural)
	if structural == nil {
		m.state = schemas.StateDisconnected
		return schemas.Unavailable(schemas.BackendStructural, "not configured")
	}
	if err := structural.Connect(ctx); err != nil {
		m.state = schemas.StateDisconnected
		return schemas.NewBackendError(schemas.BackendStructural, "connect", err)
	}
	m.registry.MarkAvailable(schemas.BackendStructural)

	m.connectOptional(ctx, schemas.BackendOSBridge)
	if !m.registry.Available(schemas.BackendOSBridge) {
		m.connectOptional(ctx, schemas.BackendNative)
	}
	if m.opts.Mode != schemas.ModeDeterministic {
		m.connectOptional(ctx, schemas.BackendVision)
	}

	m.state = schemas.StateConnected
	fields := []zap.Field{zap.Stringer("mode", m.opts.Mode)}
	for _, st := range m.registry.Statuses() {
		fields = append(fields, zap.Bool(string(st.Kind), st.Available))
	}
	m.logger.Info("Connected.", fields...)
	return nil
}

func (m *Manager) connectOptional(ctx context.Context, kind schemas.BackendKind) {
	lc := m.registry.Lifecycle(kind)
	if lc == nil {
		return
	}
	if err := lc.Connect(ctx); err != nil {
		m.logger.Warn("Optional backend unavailable.", zap.Stringer("backend", kind), zap.Error(err))
		return
	}
	m.registry.MarkAvailable(kind)
}

// Disconnect tears backends down in reverse connect order and drops the
// snapshot. Tracked costs are written to the ledger when one is configured,
// and cleared only when resetCosts is true. Disconnecting a disconnected
// Manager does nothing.
func (m *Manager) Disconnect(ctx context.Context, resetCosts bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == schemas.StateDisconnected {
		return nil
	}

	var errs []error
	if err := m.persistCosts(ctx); err != nil {
		m.logger.Warn("Failed to persist vision costs.", zap.Error(err))
		errs = append(errs, err)
	}
	for _, kind := range m.registry.TeardownOrder() {
		if lc := m.registry.Lifecycle(kind); lc != nil {
			if err := lc.Disconnect(ctx); err != nil {
				errs = append(errs, schemas.NewBackendError(kind, "disconnect", err))
			}
		}
		m.registry.MarkUnavailable(kind)
	}
	m.cache.Invalidate()
	if resetCosts {
		m.tracker.Reset()
		m.persisted = 0
	}
	m.state = schemas.StateDisconnected
	m.logger.Info("Disconnected.", zap.Bool("reset_costs", resetCosts))
	return errors.Join(errs...)
}

func (m *Manager) persistCosts(ctx context.Context) error {
	if m.opts.Ledger == nil {
		return nil
	}
	entries := m.tracker.Entries()
	if m.persisted >= len(entries) {
		return nil
	}
	n, err := m.opts.Ledger.Append(ctx, m.id, entries[m.persisted:])
	if err != nil {
		return fmt.Errorf("cost ledger: %w", err)
	}
	m.persisted = len(entries)
	m.logger.Debug("Persisted vision costs.", zap.Int64("rows", n))
	return nil
}

var errNotConnected = errors.New("manager is not connected")

func (m *Manager) requireConnected() error {
	if m.state != schemas.StateConnected {
		return errNotConnected
	}
	return nil
}
