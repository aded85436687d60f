// Package config exposes the recompilation driver's tuning surface via
// viper: a fresh viper.New() per Load call reading a config file plus
// environment overrides, rather than flags or raw env parsing.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Keys for the viper-backed tuning knobs spec.md §4.F/§6 names directly.
const (
	KeyEnableRecompilation       = "recompile.enable_recompilation"
	KeyLoadThreshold             = "recompile.load_threshold"
	KeyDelaySeconds              = "recompile.delay_seconds"
	KeyForceRecompilation        = "recompile.force_recompilation"
	KeyRecordOnlyTopCompilations = "archive.record_only_top_compilations"
)

// Driver holds the resolved recompilation tuning values. It is a plain
// snapshot, not a live view — call Load again to pick up a changed file.
type Driver struct {
	EnableRecompilation       bool
	LoadThreshold             float64
	DelaySeconds              int
	ForceRecompilation        bool
	RecordOnlyTopCompilations bool
}

// defaults mirror the original runtime's defaults for these flags
// (recovered detail, since spec.md §6 names the knobs without values).
func defaults(v *viper.Viper) {
	v.SetDefault(KeyEnableRecompilation, true)
	v.SetDefault(KeyLoadThreshold, 1.0)
	v.SetDefault(KeyDelaySeconds, 300)
	v.SetDefault(KeyForceRecompilation, false)
	v.SetDefault(KeyRecordOnlyTopCompilations, true)
}

// Load reads the recompilation tuning surface from path (if non-empty) and
// environment variables prefixed JITCORE_, e.g. JITCORE_RECOMPILE_LOAD_THRESHOLD.
func Load(path string) (*Driver, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("jitcore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	return &Driver{
		EnableRecompilation:       v.GetBool(KeyEnableRecompilation),
		LoadThreshold:             v.GetFloat64(KeyLoadThreshold),
		DelaySeconds:              v.GetInt(KeyDelaySeconds),
		ForceRecompilation:        v.GetBool(KeyForceRecompilation),
		RecordOnlyTopCompilations: v.GetBool(KeyRecordOnlyTopCompilations),
	}, nil
}
