package commands

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xidis/fabdeploy/pkg/engine"
)

// Settings are operator tunables, separate from the fabric document:
// the fabric config says what to build, settings say how this
// operator's runs behave.
type Settings struct {
	State struct {
		// Backend is "file" or "sqlite".
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"state"`

	Engine struct {
		MaxParallel int    `yaml:"max_parallel"`
		RetryLimit  int    `yaml:"retry_limit"`
		Timeout     string `yaml:"timeout"`
		BackoffBase string `yaml:"backoff_base"`
		BackoffMax  string `yaml:"backoff_max"`
	} `yaml:"engine"`

	SSH struct {
		User           string `yaml:"user"`
		PrivateKeyPath string `yaml:"private_key_path"`
		Port           string `yaml:"port"`
	} `yaml:"ssh"`

	Metrics struct {
		// Listen exposes /metrics on this address for the run. Empty
		// disables the listener.
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`

	Log struct {
		JSON bool `yaml:"json"`
	} `yaml:"log"`
}

func defaultSettings() Settings {
	var s Settings
	s.State.Backend = "file"
	s.State.Path = "fabdeploy-state.json"
	return s
}

// loadSettings reads the settings file, layering it over defaults.
// A missing --settings flag means pure defaults.
func loadSettings(path string) (Settings, error) {
	s := defaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	if s.State.Backend != "file" && s.State.Backend != "sqlite" {
		return s, fmt.Errorf("unknown state backend %q", s.State.Backend)
	}
	return s, nil
}

// loadedSettings is the lenient variant used for logger setup before
// command execution; parse failures fall back to defaults and the
// command proper reports them.
func loadedSettings() Settings {
	s, err := loadSettings(settingsPath)
	if err != nil {
		return defaultSettings()
	}
	return s
}

// engineOptions translates settings into pipeline options. Zero
// values defer to the engine's defaults.
func (s Settings) engineOptions(dryRun bool) (engine.Options, error) {
	opts := engine.Options{
		MaxParallel: s.Engine.MaxParallel,
		RetryLimit:  s.Engine.RetryLimit,
		DryRun:      dryRun,
	}

	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{s.Engine.Timeout, "timeout", &opts.Timeout},
		{s.Engine.BackoffBase, "backoff_base", &opts.BackoffBase},
		{s.Engine.BackoffMax, "backoff_max", &opts.BackoffMax},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return opts, fmt.Errorf("settings engine.%s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return opts, nil
}

// resolvedStatePath applies the --state override.
func (s Settings) resolvedStatePath() string {
	if statePath != "" {
		return statePath
	}
	return s.State.Path
}
