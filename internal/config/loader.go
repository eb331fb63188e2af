package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader loads, merges, and optionally hot-reloads the policy file on top of
// DefaultConfig. Mirrors the teacher's internal/policy.Loader watch
// mechanism, but owns the whole Config rather than just compiled policies.
type Loader struct {
	mu       sync.RWMutex
	cfg      Config
	filePath string
	logger   *slog.Logger

	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

// NewLoader creates a Loader pre-populated with DefaultConfig. Get returns
// the defaults until Load is called.
func NewLoader() *Loader {
	return &Loader{
		cfg:    *DefaultConfig(),
		logger: slog.Default().With("component", "config.Loader"),
	}
}

// Load reads the YAML file at path, substitutes environment variables, and
// merges the result on top of DefaultConfig (file values win field-by-field
// via yaml.Unmarshal into the default struct). Subsequent calls to Get
// reflect the newly loaded config.
func (l *Loader) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(raw))

	cfg := *DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.filePath = path
	l.mu.Unlock()

	l.logger.Info("loaded policy config", "path", path)
	return nil
}

// Get returns a snapshot of the current config.
func (l *Loader) Get() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// FilePath returns the path most recently passed to Load, or "" if Load has
// never succeeded.
func (l *Loader) FilePath() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filePath
}

// Reload re-reads the file previously passed to Load. It returns an error
// if Load has not yet been called successfully.
func (l *Loader) Reload() error {
	l.mu.RLock()
	path := l.filePath
	l.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("reload: no config file loaded yet")
	}
	return l.Load(path)
}

// WatchConfig starts an fsnotify watcher on the loaded file's directory and
// calls onReload whenever it changes. Watching the directory rather than
// the file catches editor rename-and-replace save patterns (vim, nano).
func (l *Loader) WatchConfig(onReload func(path string)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.filePath == "" {
		return fmt.Errorf("watch config: no config file loaded yet")
	}
	if l.watcher != nil {
		l.stopWatchLocked()
	}

	absPath, err := filepath.Abs(l.filePath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	l.watcher = w
	l.watchDone = make(chan struct{})

	go l.watchLoop(absPath, onReload)

	l.logger.Info("watching config for changes", "path", absPath)
	return nil
}

func (l *Loader) watchLoop(targetPath string, onReload func(string)) {
	defer close(l.watchDone)

	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			absEvent, _ := filepath.Abs(event.Name)
			if absEvent != targetPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				l.logger.Info("config file changed, triggering reload", "path", targetPath)
				if err := l.Reload(); err != nil {
					l.logger.Error("reload after fsnotify event failed", "error", err)
					continue
				}
				onReload(targetPath)
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error("fsnotify error", "error", err)
		}
	}
}

// StopWatch stops the config file watcher, if running.
func (l *Loader) StopWatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopWatchLocked()
}

func (l *Loader) stopWatchLocked() {
	if l.watcher != nil {
		_ = l.watcher.Close()
		if l.watchDone != nil {
			<-l.watchDone
		}
		l.watcher = nil
		l.watchDone = nil
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// substituteEnvVars expands ${VAR} and ${VAR:-default} references against
// the process environment. An undefined variable with no default expands to
// the empty string rather than failing the load.
func substituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[3]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return def
	})
}

// GenerateDefault writes DefaultConfig as YAML to path, used by `icg init`
// to scaffold a starting policy file an operator can then edit.
func GenerateDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config %s: %w", path, err)
	}
	return nil
}
