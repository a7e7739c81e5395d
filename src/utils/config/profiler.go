package config

import (
	"github.com/spf13/viper"
)

type Profiler struct {
	// Are profiling endpoints registered on the monitoring server
	Enabled bool

	// Passed to runtime.SetBlockProfileRate when profiling is enabled
	BlockProfileRate int
}

func setProfilerDefaults(v *viper.Viper) {
	v.SetDefault("Profiler.Enabled", "false")
	v.SetDefault("Profiler.BlockProfileRate", "50")
}
