package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const FileName = ".dosguard.yaml"

type IgnoreRule struct {
	Rule   string `yaml:"rule"`
	Path   string `yaml:"path"`
	Reason string `yaml:"reason"`
}

type Config struct {
	SeverityThreshold string `yaml:"severity_threshold"`
	// Workers bounds phase-2 parallelism; 0 means one worker per CPU.
	Workers  int    `yaml:"workers"`
	SolcPath string `yaml:"solc_path"`
	// TrustedAddresses are hex addresses whose calls classify as internal
	// (known libraries, own deployments).
	TrustedAddresses []string     `yaml:"trusted_addresses"`
	Rules            []string     `yaml:"rules"`
	Ignore           []IgnoreRule `yaml:"ignore"`
}

func Default() Config {
	return Config{
		SeverityThreshold: "low",
		SolcPath:          "solc",
	}
}

// Load searches upwards from startDir for a config file, like the usual
// repo-root discovery. Missing file is not an error; the default applies.
func Load(startDir string) (Config, string, error) {
	cfg := Default()
	dir := startDir
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			b, err := os.ReadFile(candidate)
			if err != nil {
				return cfg, candidate, err
			}
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, candidate, fmt.Errorf("parse %s: %w", candidate, err)
			}
			return cfg, candidate, cfg.Validate()
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cfg, "", nil
}

// LoadFile reads an explicit config path.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	for _, a := range c.TrustedAddresses {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("trusted_addresses: %q is not a hex address", a)
		}
	}
	return nil
}

// Write serializes the config to dir/.dosguard.yaml.
func (c Config) Write(dir string) (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	return path, os.WriteFile(path, b, 0o644)
}
