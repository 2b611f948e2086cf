package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tickbridge/tickbridge/bridge"
	"github.com/tickbridge/tickbridge/internal/adminapi"
	"github.com/tickbridge/tickbridge/internal/stage"
	"github.com/tickbridge/tickbridge/runner"
	"github.com/tickbridge/tickbridge/scriptstore"
)

const recentTickCap = 32

// service is the bridgectl daemon: one world, one script store, one invoker,
// a tick loop, and the admin API view over all of it. The tick loop owns the
// world; the admin handlers read only the mutex-guarded copies below.
type service struct {
	cfg serviceConfig

	world  *stage.World
	store  *scriptstore.Store
	bridge *bridge.Bridge

	interval  time.Duration
	startedAt time.Time

	mu       sync.Mutex
	frame    uint64
	elapsed  float64
	ended    bool
	restarts int
	recent   []adminapi.TickSummary
	rows     map[string]*adminapi.ControllerStatus
	order    []string
}

func newService(cfg serviceConfig) *service {
	return &service{cfg: cfg, rows: map[string]*adminapi.ControllerStatus{}}
}

// Run blocks until signal shutdown or the world ends.
func (s *service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.bootstrap(); err != nil {
		return err
	}
	defer s.teardown()
	return s.serve(ctx)
}

func (s *service) bootstrap() error {
	world, err := stage.Load(s.cfg.WorldPath)
	if err != nil {
		return err
	}
	store, err := scriptstore.Open(s.cfg.ScriptsDir)
	if err != nil {
		return err
	}

	invoker, err := buildInvoker(s.cfg)
	if err != nil {
		_ = store.Close()
		return err
	}
	br, err := bridge.New(bridge.Config{Model: world, Invoker: invoker, Input: world})
	if err != nil {
		_ = invoker.Close()
		_ = store.Close()
		return err
	}

	s.world = world
	s.store = store
	s.bridge = br
	s.interval = tickInterval(s.cfg.TickRate, world.Engine().FrameRate)
	s.startedAt = time.Now()

	for _, name := range world.ControllerNames() {
		info, _ := world.Controller(name)
		s.order = append(s.order, name)
		s.rows[name] = &adminapi.ControllerStatus{
			Name:   info.Name,
			Kind:   info.Kind,
			Owner:  info.Owner,
			Active: info.Active,
		}
	}

	log.Info().
		Str("id", s.cfg.ID).
		Str("world", s.cfg.WorldPath).
		Str("mode", s.cfg.Mode).
		Dur("tick_interval", s.interval).
		Int("controllers", len(s.order)).
		Int("scripts", len(s.store.Names())).
		Msg("bridge ready")
	return nil
}

func (s *service) teardown() {
	if s.bridge != nil {
		if err := s.bridge.Close(); err != nil {
			log.Warn().Err(err).Msg("invoker close failed")
		}
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *service) serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	adminErr := make(chan error, 1)
	if s.cfg.AdminAddr != "" {
		admin := adminapi.New(s.cfg.ID, s.cfg.AdminAddr, s.cfg.CorsOrigins, s)
		go func() { adminErr <- admin.Serve() }()
		log.Info().Str("addr", s.cfg.AdminAddr).Msg("admin api listening")
	}

	var updates <-chan string
	if s.cfg.WatchScripts {
		ch, err := s.store.Watch()
		if err != nil {
			return err
		}
		updates = ch
		log.Info().Str("dir", s.store.Dir()).Msg("watching controller scripts")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("bridge shutdown")
			return nil
		case err := <-adminErr:
			if err != nil {
				return fmt.Errorf("admin api: %w", err)
			}
		case name, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			// The store already rehashed; the next tick sends the new
			// script_id and the worker recompiles.
			log.Info().Str("script", name).Msg("controller script changed")
		case <-ticker.C:
			s.tick(ctx)
			if s.world.Ended() {
				log.Info().
					Uint64("frame", s.world.Engine().CurrentFrame).
					Msg("world ended, stopping")
				return nil
			}
		}
	}
}

// tick runs every controller in world order, then advances the engine
// clock. Failed executions are logged by the bridge and recorded here; they
// never stop the loop.
func (s *service) tick(ctx context.Context) {
	for _, name := range s.world.ControllerNames() {
		script, ok := s.store.Script(name)
		if !ok {
			continue
		}
		rep := s.bridge.RunTick(ctx, bridge.TickInput{
			Controller: name,
			Script:     script.Source,
			ScriptID:   script.ID,
		})
		s.record(script, rep)
		if s.world.Ended() {
			break
		}
	}
	if !s.world.Ended() {
		s.world.Advance(s.interval.Seconds())
	}
	s.publish()
}

func (s *service) record(script scriptstore.Script, rep bridge.TickReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[rep.Controller]; ok {
		row.Script = script.Name
		row.ScriptID = script.ID
		row.LastOutcome = rep.Outcome
		row.Ticks++
	}

	s.recent = append(s.recent, adminapi.TickSummary{
		Controller: rep.Controller,
		Outcome:    rep.Outcome,
		Commands:   rep.Commands,
		Applied:    rep.Applied,
		Skipped:    len(rep.Skips),
		Duration:   rep.Duration.String(),
		At:         time.Now(),
	})
	if len(s.recent) > recentTickCap {
		s.recent = s.recent[len(s.recent)-recentTickCap:]
	}
}

// publish copies the world counters the admin view reads. Only the tick
// loop touches the world itself.
func (s *service) publish() {
	engine := s.world.Engine()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = engine.CurrentFrame
	s.elapsed = engine.TimeSinceStart
	s.ended = s.world.Ended()
	s.restarts = s.world.Restarts()
}

func (s *service) Status() adminapi.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	recent := make([]adminapi.TickSummary, len(s.recent))
	copy(recent, s.recent)
	return adminapi.Status{
		ID:        s.cfg.ID,
		World:     s.cfg.WorldPath,
		Mode:      s.cfg.Mode,
		TickRate:  1 / s.interval.Seconds(),
		Frame:     s.frame,
		Elapsed:   s.elapsed,
		Ended:     s.ended,
		Restarts:  s.restarts,
		Recent:    recent,
		StartedAt: s.startedAt,
	}
}

func (s *service) Controllers() []adminapi.ControllerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]adminapi.ControllerStatus, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.rows[name])
	}
	return out
}

func buildInvoker(cfg serviceConfig) (runner.Invoker, error) {
	rcfg := runner.Config{
		NodePath: cfg.NodePath,
		SDKRoot:  cfg.SDKRoot,
		Timeout:  cfg.Timeout,
	}
	switch cfg.Mode {
	case modeEphemeral:
		return runner.NewEphemeral(rcfg)
	default:
		return runner.NewWorker(rcfg)
	}
}

// tickInterval prefers the configured rate and falls back to the world's
// frame rate.
func tickInterval(configured, frameRate float64) time.Duration {
	rate := configured
	if rate <= 0 {
		rate = frameRate
	}
	if rate <= 0 {
		rate = 60
	}
	return time.Duration(float64(time.Second) / rate)
}
