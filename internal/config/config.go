// Package config loads the swarm application config: a YAML file merged
// over defaults, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-swarm/pkg/engine"
	"github.com/teslashibe/go-swarm/pkg/persist"
)

// Environment variables that override the file.
const (
	EnvDataDir  = "SWARM_DATA_DIR"
	EnvLogLevel = "SWARM_LOG_LEVEL"
	EnvListen   = "SWARM_LISTEN"
	EnvRobotURL = "ROBOT_URL"
)

// Defaults.
const (
	DefaultDataDir      = "data"
	DefaultListen       = ":8080"
	DefaultFrameTimeout = 150 * time.Millisecond
	KnowledgeBaseFile   = "knowledge_base.json"
)

// ErrInvalid wraps every config validation failure.
var ErrInvalid = errors.New("config: invalid")

// Storage selects where learning state is kept.
type Storage struct {
	Backend string `yaml:"backend"` // json or sqlite
}

// Robot configures the robot link. With URL set the engine dials the
// controller; otherwise robots connect to /ws/robot on Listen.
type Robot struct {
	URL string `yaml:"url"`
}

// App is the root config file structure.
type App struct {
	LogLevel      string        `yaml:"log_level"`
	DataDir       string        `yaml:"data_dir"`
	KnowledgeBase string        `yaml:"knowledge_base"`
	Storage       Storage       `yaml:"storage"`
	Robot         Robot         `yaml:"robot"`
	Listen        string        `yaml:"listen"`
	Dashboard     bool          `yaml:"dashboard"`
	StaticDir     string        `yaml:"static_dir"`
	FrameTimeout  time.Duration `yaml:"frame_timeout"`

	// Preset picks the base engine tuning (default, cautious, explorer);
	// the engine block is applied on top of it.
	Preset string        `yaml:"preset"`
	Engine engine.Config `yaml:"engine"`
}

// Default returns the built-in configuration.
func Default() App {
	return App{
		LogLevel:     "info",
		DataDir:      DefaultDataDir,
		Storage:      Storage{Backend: persist.BackendJSON},
		Listen:       DefaultListen,
		Dashboard:    true,
		FrameTimeout: DefaultFrameTimeout,
		Preset:       "default",
		Engine:       engine.DefaultConfig(),
	}
}

// Presets maps preset names to engine configs.
var Presets = map[string]func() engine.Config{
	"default":  engine.DefaultConfig,
	"cautious": engine.CautiousConfig,
	"explorer": engine.ExplorerConfig,
}

// Load reads path (empty means no file), merges it over defaults and
// applies environment overrides. A missing file is not an error.
func Load(path string) (App, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := cfg.merge(data); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// merge decodes data twice: once to learn the preset, then over the
// preset so unset engine fields keep the preset's values.
func (a *App) merge(data []byte) error {
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.Preset != "" {
		preset, ok := Presets[head.Preset]
		if !ok {
			return fmt.Errorf("%w: unknown preset %q", ErrInvalid, head.Preset)
		}
		a.Preset = head.Preset
		a.Engine = preset()
	}
	return yaml.Unmarshal(data, a)
}

func (a *App) applyEnv() {
	a.DataDir = envOr(EnvDataDir, a.DataDir)
	a.LogLevel = envOr(EnvLogLevel, a.LogLevel)
	a.Listen = envOr(EnvListen, a.Listen)
	a.Robot.URL = envOr(EnvRobotURL, a.Robot.URL)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate checks the application fields and the engine block.
func (a App) Validate() error {
	var errs []error
	switch strings.ToLower(a.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: log_level %q", ErrInvalid, a.LogLevel))
	}
	if a.DataDir == "" {
		errs = append(errs, fmt.Errorf("%w: data_dir is empty", ErrInvalid))
	}
	switch a.Storage.Backend {
	case persist.BackendJSON, persist.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("%w: storage.backend %q", ErrInvalid, a.Storage.Backend))
	}
	if a.FrameTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: frame_timeout must be positive", ErrInvalid))
	}
	if a.Robot.URL == "" && a.Listen == "" {
		errs = append(errs, fmt.Errorf("%w: need robot.url or listen", ErrInvalid))
	}
	if err := a.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// KnowledgePath returns the static knowledge base file. Relative paths
// resolve against the data directory.
func (a App) KnowledgePath() string {
	kb := a.KnowledgeBase
	if kb == "" {
		kb = KnowledgeBaseFile
	}
	if filepath.IsAbs(kb) {
		return kb
	}
	return filepath.Join(a.DataDir, kb)
}
