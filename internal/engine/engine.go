package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
	"github.com/jmylchreest/tvarr-recorder/internal/config"
	"github.com/jmylchreest/tvarr-recorder/internal/configstore"
	"github.com/jmylchreest/tvarr-recorder/internal/writer"
	"golang.org/x/sync/errgroup"
)

// Engine orchestrates recorders: it owns the map of active recorders
// and composes the Registry, catalog.Store, configstore.Store, and
// writer.Factory collaborators.
type Engine struct {
	mu        sync.Mutex
	recorders map[string]*Recorder

	registry      *Registry
	configStore   *configstore.Store
	catalogStore  *catalog.Store
	writerFactory writer.Factory
	sourceFactory SourceFactory
	storageRoot   string
	recorderCfg   config.RecorderConfig
	logger        *slog.Logger

	shuttingDown atomic.Bool
}

// NewEngine constructs the orchestrator. storageRoot is the recordings
// root from config.StorageConfig.RecordingsPath.
func NewEngine(registry *Registry, configStore *configstore.Store, catalogStore *catalog.Store, wf writer.Factory, sf SourceFactory, storageRoot string, recorderCfg config.RecorderConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		recorders:     make(map[string]*Recorder),
		registry:      registry,
		configStore:   configStore,
		catalogStore:  catalogStore,
		writerFactory: wf,
		sourceFactory: sf,
		storageRoot:   storageRoot,
		recorderCfg:   recorderCfg,
		logger:        logger,
	}
}

// Start begins recording a configured stream using its stored URL.
func (e *Engine) Start(ctx context.Context, name string) error {
	return e.StartWithURL(ctx, name, "")
}

// StartWithURL begins recording, overriding the stream's configured
// URL so an upstream relay can hand the recorder a local endpoint.
func (e *Engine) StartWithURL(ctx context.Context, name, urlOverride string) error {
	if e.shuttingDown.Load() {
		return ErrShuttingDown
	}

	cfg, err := e.configStore.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("loading stream config for %s: %w", name, err)
	}

	url := cfg.URL
	if urlOverride != "" {
		url = urlOverride
	}

	e.mu.Lock()
	if _, exists := e.recorders[name]; exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	rec := newRecorder(name, *cfg, url, e.storageRoot, e.writerFactory, e.sourceFactory, e.registry, e.catalogStore, e.recorderCfg, e.logger)
	e.recorders[name] = rec
	e.mu.Unlock()

	rec.start(ctx)
	return nil
}

// Stop halts the named recorder. Idempotent: stopping an unknown
// stream is a no-op success.
func (e *Engine) Stop(name string) error {
	e.mu.Lock()
	rec, ok := e.recorders[name]
	if ok {
		delete(e.recorders, name)
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}
	rec.Stop()
	return nil
}

// Recorders reports the states of every currently tracked recorder,
// keyed by stream name.
func (e *Engine) Recorders() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.recorders))
	for name, rec := range e.recorders {
		out[name] = rec.State()
	}
	return out
}

// Shutdown stops every known recorder concurrently, then calls
// Registry.CloseAll as the safety net for any writer whose recorder
// never reached its own exit path. ctx bounds the wait for the stops:
// once it is done, Shutdown stops waiting, calls CloseAll, and
// returns ctx.Err().
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shuttingDown.Store(true)

	e.mu.Lock()
	recorders := make([]*Recorder, 0, len(e.recorders))
	for name, rec := range e.recorders {
		recorders = append(recorders, rec)
		delete(e.recorders, name)
	}
	e.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, rec := range recorders {
		rec := rec
		g.Go(func() error {
			rec.Stop()
			return nil
		})
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	e.registry.CloseAll(ctx)
	return err
}
