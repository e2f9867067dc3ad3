package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/railboard/railctl/internal/logger"
	"github.com/railboard/railctl/internal/registry"
)

// FileConfig represents the top-level TOML structure of railctl.toml.
// All sections are optional; the built-in service table is used when no
// [[services]] entries are present.
type FileConfig struct {
	Project      string             `toml:"project" mapstructure:"project"`
	ComposeFile  string             `toml:"compose_file" mapstructure:"compose_file"`
	Env          []string           `toml:"env" mapstructure:"env"`
	GracePeriod  time.Duration      `toml:"grace_period" mapstructure:"grace_period"`
	ProbeTimeout time.Duration      `toml:"probe_timeout" mapstructure:"probe_timeout"`
	JournalPath  string             `toml:"journal_path" mapstructure:"journal_path"`
	Log          *logger.Config     `toml:"log" mapstructure:"log"`
	Services     []registry.Service `toml:"services" mapstructure:"services"`
}

const (
	defaultProject      = "railboard"
	defaultGracePeriod  = 5 * time.Second
	defaultProbeTimeout = 750 * time.Millisecond
)

// Load reads path, applies defaults, and returns the parsed config. An
// empty path returns the defaults without touching the filesystem; a named
// path that does not exist is an error.
func Load(path string) (*FileConfig, error) {
	fc := &FileConfig{
		Project:      defaultProject,
		GracePeriod:  defaultGracePeriod,
		ProbeTimeout: defaultProbeTimeout,
	}
	if path == "" {
		fc.JournalPath = defaultJournalPath()
		return fc, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.Project == "" {
		fc.Project = defaultProject
	}
	if fc.GracePeriod <= 0 {
		fc.GracePeriod = defaultGracePeriod
	}
	if fc.ProbeTimeout <= 0 {
		fc.ProbeTimeout = defaultProbeTimeout
	}
	if fc.JournalPath == "" {
		fc.JournalPath = defaultJournalPath()
	}
	return fc, nil
}

// Registry builds the service registry: the file's [[services]] table when
// present, otherwise the built-in one.
func (fc *FileConfig) Registry(withMonitoring bool) (*registry.Registry, error) {
	if len(fc.Services) == 0 {
		return registry.Default(withMonitoring), nil
	}
	svcs := fc.Services
	if !withMonitoring {
		kept := make([]registry.Service, 0, len(svcs))
		for _, s := range svcs {
			if !s.Monitoring {
				kept = append(kept, s)
			}
		}
		svcs = kept
	}
	return registry.New(svcs)
}

// LogConfig returns the log section, filled with defaults when absent.
func (fc *FileConfig) LogConfig() logger.Config {
	if fc.Log != nil {
		return *fc.Log
	}
	return logger.Config{Dir: filepath.Join(stateDir(), "logs")}
}

func defaultJournalPath() string {
	return filepath.Join(stateDir(), "railctl.db")
}

func stateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "railctl")
	}
	return filepath.Join(os.TempDir(), "railctl")
}
