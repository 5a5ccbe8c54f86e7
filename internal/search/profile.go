// Package search drives adversarial evaluation runs: it generates candidate
// sequences under a named profile, evaluates each against the reference
// model, shrinks failures, and captures exemplars.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Profile is a named search budget. Built-in profiles cover the common
// tiers; user profiles in ~/.trustprobe/profiles/ extend them.
type Profile struct {
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	MaxSequences       int    `yaml:"max_sequences"`
	MaxEvents          int    `yaml:"max_events"`
	Seed               int64  `yaml:"seed"`
	Workers            int    `yaml:"workers"`
	ReportWindow       int    `yaml:"report_window"`
	InfluenceThreshold int    `yaml:"influence_threshold"`
	Capture            bool   `yaml:"capture"`
	CaptureDir         string `yaml:"capture_dir"`
}

// Load loads a profile by name. Checks built-in profiles first,
// then falls back to ~/.trustprobe/profiles/<name>.yaml.
func Load(name string) (*Profile, error) {
	if data, ok := builtinProfiles[name]; ok {
		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse built-in profile %q: %w", name, err)
		}
		return &p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("profile %q not found (no built-in, cannot determine home dir)", name)
	}

	path := filepath.Join(home, ".trustprobe", "profiles", name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile %q not found", name)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}
	return &p, nil
}

// List returns sorted names of all available profiles (built-in + user).
func List() []string {
	seen := make(map[string]bool)
	for name := range builtinProfiles {
		seen[name] = true
	}

	home, err := os.UserHomeDir()
	if err == nil {
		dir := filepath.Join(home, ".trustprobe", "profiles")
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				name := e.Name()
				if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
					seen[name[:len(name)-len(ext)]] = true
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
