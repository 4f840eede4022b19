package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/StoryEngine/internal/events"
	"github.com/AaronLay10/StoryEngine/internal/observe"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

// DefaultTickInterval is how often an instance's runtime is ticked.
const DefaultTickInterval = 20 * time.Millisecond

var (
	ErrUnknownInstance = errors.New("unknown instance")
	ErrManagerClosed   = errors.New("manager closed")
)

// SinkFactory returns the transport sink for one instance's effects.
type SinkFactory func(instanceID string) story.EffectSink

// ManagerConfig wires a Manager. Every field is optional.
type ManagerConfig struct {
	Logger          *slog.Logger
	Bus             *events.Bus
	Metrics         *observe.Metrics
	Store           SaveStore
	Sinks           SinkFactory
	TickInterval    time.Duration
	MaxStepsPerTick int
}

// Manager runs story instances concurrently. Each instance owns a goroutine
// that ticks its Runtime; commands are executed on that goroutine so a
// Runtime is never touched by two goroutines.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu        sync.Mutex
	instances map[string]*instance
	closed    bool
	wg        sync.WaitGroup
}

type instance struct {
	rt     *Runtime
	cmds   chan command
	cancel context.CancelFunc
	done   chan struct{}
}

type command struct {
	fn    func(*Runtime) error
	reply chan error
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	return &Manager{
		cfg:       cfg,
		logger:    cfg.Logger,
		instances: make(map[string]*instance),
	}
}

func (m *Manager) newRuntime(id string) *Runtime {
	opts := []Option{
		WithID(id),
		WithLogger(m.logger),
		WithMaxStepsPerTick(m.cfg.MaxStepsPerTick),
	}
	var sinks MultiSink
	if m.cfg.Bus != nil {
		opts = append(opts, WithListener(BusListener{Bus: m.cfg.Bus}))
		sinks = append(sinks, BusSink{Bus: m.cfg.Bus, InstanceID: id})
	}
	if m.cfg.Metrics != nil {
		opts = append(opts, WithListener(MetricsListener{Metrics: m.cfg.Metrics}))
		sinks = append(sinks, MetricsSink{Metrics: m.cfg.Metrics})
	}
	if m.cfg.Sinks != nil {
		if s := m.cfg.Sinks(id); s != nil {
			sinks = append(sinks, s)
		}
	}
	if len(sinks) > 0 {
		opts = append(opts, WithSink(sinks))
	}
	return NewRuntime(opts...)
}

// ensure returns the instance for id, starting it if needed.
func (m *Manager) ensure(id string) (*instance, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrManagerClosed
	}
	if inst, ok := m.instances[id]; ok {
		return inst, false, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	inst := &instance{
		rt:     m.newRuntime(id),
		cmds:   make(chan command),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.instances[id] = inst
	m.wg.Add(1)
	go m.loop(ctx, inst)
	return inst, true, nil
}

func (m *Manager) loop(ctx context.Context, inst *instance) {
	defer m.wg.Done()
	defer close(inst.done)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-inst.cmds:
			c.reply <- m.exec(inst.rt, c.fn)
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			start := time.Now()
			m.tick(inst.rt, dt)
			if m.cfg.Metrics != nil {
				m.cfg.Metrics.TickDuration.Record(ctx, time.Since(start).Seconds())
			}
		}
	}
}

func (m *Manager) tick(rt *Runtime, dt time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("tick panicked", "instance_id", rt.ID(), "panic", p)
		}
	}()
	rt.Tick(dt)
}

func (m *Manager) exec(rt *Runtime, fn func(*Runtime) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("command panicked: %v", p)
		}
	}()
	return fn(rt)
}

// Do runs fn on the instance goroutine and returns its error.
func (m *Manager) Do(ctx context.Context, id string, fn func(*Runtime) error) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	return inst.do(ctx, fn)
}

func (inst *instance) do(ctx context.Context, fn func(*Runtime) error) error {
	c := command{fn: fn, reply: make(chan error, 1)}
	select {
	case inst.cmds <- c:
	case <-inst.done:
		return ErrManagerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.reply:
		return err
	case <-inst.done:
		return ErrManagerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Command runs fn like Do, then records it as operator.<name> with its
// outcome. extra fields are added to the event.
func (m *Manager) Command(ctx context.Context, id, name string, extra map[string]any, fn func(*Runtime) error) error {
	err := m.Do(ctx, id, fn)
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.RecordCommand(ctx, name, err)
	}
	if m.cfg.Bus != nil {
		fields := map[string]any{"instance_id": id, "ok": err == nil}
		for k, v := range extra {
			fields[k] = v
		}
		level := "info"
		if err != nil {
			fields["error"] = err.Error()
			level = "warn"
		}
		if _, eerr := m.cfg.Bus.Emit(level, "operator."+name, name, fields); eerr != nil {
			m.logger.Warn("operator event rejected", "command", name, "err", eerr)
		}
	}
	return err
}

// Launch plays g on instance id, creating the instance if needed. An empty
// id is replaced by a generated one, which is returned.
func (m *Manager) Launch(ctx context.Context, id string, g *story.Graph, startNodeID string) (string, error) {
	if g == nil {
		return "", ErrNoGraph
	}
	if id == "" {
		id = uuid.NewString()
	}
	inst, created, err := m.ensure(id)
	if err != nil {
		return "", err
	}
	if created {
		m.emit("instance.launched", id, map[string]any{"graph_id": g.ID})
	}
	err = inst.do(ctx, func(rt *Runtime) error { return rt.Play(g, startNodeID) })
	return id, err
}

// Get returns the status of instance id.
func (m *Manager) Get(ctx context.Context, id string) (Status, error) {
	var s Status
	err := m.Do(ctx, id, func(rt *Runtime) error {
		s = rt.Status()
		return nil
	})
	return s, err
}

// IDs returns the instance IDs in sorted order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove stops and discards instance id.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}

	err := inst.do(ctx, func(rt *Runtime) error {
		if rt.State().Active() {
			return rt.Stop()
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.instances, id)
	m.mu.Unlock()
	inst.cancel()
	<-inst.done
	m.emit("instance.removed", id, nil)
	return nil
}

// Save writes the state of instance id to the SaveStore.
func (m *Manager) Save(ctx context.Context, id string) (SaveState, error) {
	var s SaveState
	err := m.Do(ctx, id, func(rt *Runtime) error {
		var err error
		s, err = rt.SaveState()
		return err
	})
	if err != nil {
		return SaveState{}, err
	}
	if err := m.cfg.Store.Save(ctx, s); err != nil {
		return SaveState{}, fmt.Errorf("save instance %s: %w", id, err)
	}
	return s, nil
}

// Restore loads the saved state of instance id and resumes it on g,
// creating the instance if needed.
func (m *Manager) Restore(ctx context.Context, id string, g *story.Graph) error {
	if g == nil {
		return ErrNoGraph
	}
	s, err := m.cfg.Store.Load(ctx, id)
	if err != nil {
		return err
	}
	inst, created, err := m.ensure(id)
	if err != nil {
		return err
	}
	if created {
		m.emit("instance.launched", id, map[string]any{"graph_id": g.ID, "restored": true})
	}
	return inst.do(ctx, func(rt *Runtime) error { return rt.LoadState(s, g) })
}

// SavedGraphID returns the graph a saved instance was running.
func (m *Manager) SavedGraphID(ctx context.Context, id string) (string, error) {
	s, err := m.cfg.Store.Load(ctx, id)
	if err != nil {
		return "", err
	}
	return s.GraphID, nil
}

// Close stops every instance goroutine. Runs are not stopped, so their
// listeners see no StoryEnd.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for id, inst := range m.instances {
		inst.cancel()
		delete(m.instances, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) emit(name, id string, fields map[string]any) {
	if m.cfg.Bus == nil {
		return
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["instance_id"] = id
	if _, err := m.cfg.Bus.Emit("info", name, id, fields); err != nil {
		m.logger.Warn("event rejected", "event", name, "err", err)
	}
}
