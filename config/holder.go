package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/artpar/datagate/domain/policy"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// PolicyHolder provides thread-safe access to the access-control policy
// with hot reload support. Reload swaps a whole immutable snapshot;
// readers never see a half-applied rule set, and dispatched calls pin the
// snapshot they started with.
type PolicyHolder struct {
	mu       sync.RWMutex
	current  *policy.Policy
	path     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*policy.Policy)
	onError  []func(error)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPolicyHolder creates a new policy holder and loads the initial
// policy. An unreadable or malformed file is an error: the process must
// not come up granting or denying on a policy it could not read.
func NewPolicyHolder(path string, logger zerolog.Logger) (*PolicyHolder, error) {
	p, err := LoadPolicy(path)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	return &PolicyHolder{
		current: p,
		path:    absPath,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Get returns the current policy snapshot (thread-safe).
func (h *PolicyHolder) Get() *policy.Policy {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload reloads the policy from disk.
// Returns error if loading fails (keeps old policy).
func (h *PolicyHolder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading policy")

	newPolicy, err := LoadPolicy(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("policy reload failed, keeping old policy")
		for _, fn := range h.onError {
			fn(err)
		}
		return fmt.Errorf("reload policy: %w", err)
	}

	h.mu.Lock()
	h.current = newPolicy
	h.mu.Unlock()

	// Notify listeners outside the lock; the dispatcher swaps its own
	// atomic pointer in response.
	for _, fn := range h.onChange {
		fn(newPolicy)
	}

	h.logger.Info().
		Int("classes", len(newPolicy.Classes())).
		Msg("policy reloaded successfully")
	return nil
}

// OnChange registers a callback to be called when the policy changes.
func (h *PolicyHolder) OnChange(fn func(*policy.Policy)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// OnError registers a callback to be called when a reload attempt fails.
func (h *PolicyHolder) OnError(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = append(h.onError, fn)
}

// WatchFile starts watching the policy file for changes.
// Changes trigger automatic reload.
func (h *PolicyHolder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch the directory (more reliable for editors that do atomic saves)
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Msg("watching policy file for changes")
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *PolicyHolder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading policy")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info().Msg("listening for SIGHUP to reload policy")
}

// Stop stops watching for file changes and signals.
func (h *PolicyHolder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *PolicyHolder) watchLoop() {
	filename := filepath.Base(h.path)

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// Only react to our policy file
			if filepath.Base(event.Name) != filename {
				continue
			}

			// React to write or create (atomic save = create)
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("policy file changed")

				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}
