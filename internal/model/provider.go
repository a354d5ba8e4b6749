package model

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"rainbowcast/internal/types"
)

// reloadDebounce coalesces the bursts of filesystem events editors and
// atomic-rename deployments produce into a single reload.
const reloadDebounce = 250 * time.Millisecond

// Provider serves the current model bundle to inference calls and replaces it
// wholesale when the artifact on disk changes. Readers either see the old or
// the new bundle, never a partially updated one: the swap is a single atomic
// pointer store.
type Provider struct {
	// DefaultThreshold is the decision threshold applied when the artifact on
	// disk does not carry one. Zero means the package default. Set before the
	// first Load; not safe to change while a watch is running.
	DefaultThreshold float64

	path    string
	logger  *slog.Logger
	current atomic.Pointer[Bundle]
}

// NewProvider creates a Provider for the artifact at path. No model is loaded
// until Load is called; Current fails with a model_not_loaded error until then.
func NewProvider(path string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		path:   path,
		logger: logger,
	}
}

// Load reads the artifact from disk and atomically swaps it in. On failure
// the previously loaded bundle, if any, stays in service.
func (p *Provider) Load() error {
	fallback := p.DefaultThreshold
	if fallback == 0 {
		fallback = DefaultThreshold
	}
	bundle, err := LoadBundleWithDefault(p.path, fallback)
	if err != nil {
		return err
	}

	p.current.Store(bundle)
	p.logger.Info("model bundle loaded",
		"model", bundle.ID(),
		"features", len(bundle.FeatureNames),
		"threshold", bundle.Threshold,
	)
	return nil
}

// Swap installs a pre-built bundle directly. Used by tests and by callers
// that construct bundles in memory.
func (p *Provider) Swap(bundle *Bundle) {
	p.current.Store(bundle)
}

// Current returns the bundle in service, or a model_not_loaded error when no
// trained model has been loaded yet. This is a hard precondition of every
// inference call and is never retried.
func (p *Provider) Current() (*Bundle, error) {
	bundle := p.current.Load()
	if bundle == nil {
		return nil, types.NewAppError(
			types.ErrCodeModelNotLoaded,
			"no trained model available",
			nil,
		)
	}
	return bundle, nil
}

// Loaded reports whether a bundle is currently in service.
func (p *Provider) Loaded() bool {
	return p.current.Load() != nil
}

// Watch reloads the bundle whenever the artifact file changes, until ctx is
// cancelled. The watch is placed on the artifact's directory rather than the
// file itself so atomic rename-into-place deployments are observed.
//
// Reload failures are logged and leave the current bundle in service; a bad
// artifact push never takes down inference.
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	go p.watchLoop(ctx, watcher)
	return nil
}

func (p *Provider) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() { _ = watcher.Close() }()

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)

	target := filepath.Clean(p.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
			} else {
				debounce.Reset(reloadDebounce)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			if err := p.Load(); err != nil {
				p.logger.Error("model hot reload failed, keeping previous bundle",
					"path", p.path,
					"error", err,
				)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("model watcher error", "error", err)
		}
	}
}
