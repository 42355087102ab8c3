package config

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	be.Equal(t, cfg.DialectName, "Pa")
	be.True(t, cfg.IsFeatureEnabled(FeatComments))
	be.True(t, cfg.IsFeatureEnabled(FeatBoundsCheck))
	be.True(t, !cfg.IsFeatureEnabled(FeatAddresses))
	be.True(t, cfg.IsWarningEnabled(WarnUnusedVar))
	be.True(t, !cfg.IsWarningEnabled(WarnShadow))
	be.Equal(t, len(cfg.FeatureMap), int(FeatCount))
	be.Equal(t, len(cfg.WarningMap), int(WarnCount))
}

func TestProcessFlags(t *testing.T) {
	cfg := NewConfig()
	cfg.ProcessFlags([]string{"-Wno-shadow", "-Wall", "-Fno-bounds-check", "-Faddresses", "-Wbogus"})
	be.True(t, !cfg.IsWarningEnabled(WarnShadow))
	be.True(t, cfg.IsWarningEnabled(WarnUnusedFunc))
	be.True(t, !cfg.IsWarningEnabled(WarnPedantic))
	be.True(t, !cfg.IsFeatureEnabled(FeatBoundsCheck))
	be.True(t, cfg.IsFeatureEnabled(FeatAddresses))

	cfg.ProcessFlags([]string{"-Wunused-var", "-Wno-all"})
	be.True(t, cfg.IsWarningEnabled(WarnUnusedVar))
	be.True(t, !cfg.IsWarningEnabled(WarnExtra))
}

func TestApplyDialect(t *testing.T) {
	cfg := NewConfig()
	cfg.SetWarning(WarnPedantic, true)
	be.Err(t, cfg.ApplyDialect("P"), nil)
	be.Equal(t, cfg.DialectName, "P")
	be.True(t, !cfg.IsFeatureEnabled(FeatComments))
	be.True(t, !cfg.IsFeatureEnabled(FeatSemicolons))
	be.True(t, cfg.IsWarningEnabled(WarnShadow))
	be.True(t, cfg.IsWarningEnabled(WarnUnusedFunc))

	be.Err(t, cfg.ApplyDialect("Pa"), nil)
	be.True(t, cfg.IsFeatureEnabled(FeatComments))

	be.Err(t, cfg.ApplyDialect("UCSD"))
	be.Equal(t, cfg.DialectName, "Pa")
}

func TestPedanticFlag(t *testing.T) {
	tests := []struct {
		name       string
		dialect    string
		flags      []string
		shadow     bool
		unusedFunc bool
	}{
		{"strict dialect", "P", []string{"-Wpedantic"}, true, true},
		{"individual override", "P", []string{"-Wno-shadow", "-Wpedantic"}, false, true},
		{"annotated dialect", "Pa", []string{"-Wpedantic"}, false, false},
		{"not requested", "P", []string{"-Wextra"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			be.Err(t, cfg.ApplyDialect(tt.dialect), nil)
			cfg.ProcessFlags(tt.flags)
			be.Equal(t, cfg.IsWarningEnabled(WarnShadow), tt.shadow)
			be.Equal(t, cfg.IsWarningEnabled(WarnUnusedFunc), tt.unusedFunc)
		})
	}
}
