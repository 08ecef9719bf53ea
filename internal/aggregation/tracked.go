package aggregation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulse-lab/project-pulse/internal/core/interval"
)

// TrackedInterval enables one granularity for aggregation and carries its
// closure policy. Grace is how long past a window's end the scheduler waits
// before finalizing it — slack for late-but-in-window events; the recovery
// sweep covers anything that still slips through.
type TrackedInterval struct {
	Granularity interval.Granularity
	Grace       time.Duration
}

// rawTracked is the on-disk YAML shape. Each file declares exactly one
// granularity at the top level.
type rawTracked struct {
	Granularity string `yaml:"granularity"`
	Enabled     *bool  `yaml:"enabled"`
	Grace       string `yaml:"grace"` // optional; Go duration syntax
}

const defaultGrace = 30 * time.Second

// DefaultTrackedIntervals is the set used when no config directory is
// present: the granularities most deployments chart against.
func DefaultTrackedIntervals() []TrackedInterval {
	return []TrackedInterval{
		{Granularity: interval.Minute, Grace: defaultGrace},
		{Granularity: interval.Hour, Grace: defaultGrace},
		{Granularity: interval.Day, Grace: defaultGrace},
	}
}

// LoadTrackedIntervals reads *.yaml files from dir, one tracked granularity
// per file. Files with enabled: false are skipped. A missing directory is
// not an error — the defaults apply. Loaded once at startup; no hot reload.
func LoadTrackedIntervals(dir string) ([]TrackedInterval, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return DefaultTrackedIntervals(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("tracked interval dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tracked interval path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("tracked interval dir: %w", err)
	}

	seen := make(map[interval.Granularity]string)
	var tracked []TrackedInterval
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("tracked interval %s: %w", entry.Name(), err)
		}

		var rt rawTracked
		if err := yaml.Unmarshal(raw, &rt); err != nil {
			return nil, fmt.Errorf("tracked interval %s: %w", entry.Name(), err)
		}

		if rt.Enabled != nil && !*rt.Enabled {
			continue
		}

		g, err := interval.ParseGranularity(rt.Granularity)
		if err != nil {
			return nil, fmt.Errorf("tracked interval %s: %w", entry.Name(), err)
		}
		if prior, dup := seen[g]; dup {
			return nil, fmt.Errorf("tracked interval %s: granularity %q already declared in %s", entry.Name(), g, prior)
		}
		seen[g] = entry.Name()

		grace := defaultGrace
		if rt.Grace != "" {
			grace, err = time.ParseDuration(rt.Grace)
			if err != nil {
				return nil, fmt.Errorf("tracked interval %s: invalid grace %q: %w", entry.Name(), rt.Grace, err)
			}
			if grace < 0 {
				return nil, fmt.Errorf("tracked interval %s: grace must not be negative", entry.Name())
			}
		}

		tracked = append(tracked, TrackedInterval{Granularity: g, Grace: grace})
	}

	if len(tracked) == 0 {
		return DefaultTrackedIntervals(), nil
	}
	return tracked, nil
}
