package config

import (
	"fmt"
	"strings"
)

type Feature int

const (
	FeatComments Feature = iota
	FeatSemicolons
	FeatAddresses
	FeatBoundsCheck
	FeatStackExtent
	FeatCount
)

type Warning int

const (
	WarnShadow Warning = iota
	WarnUnusedVar
	WarnUnusedFunc
	WarnPedantic
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features    map[Feature]Info
	Warnings    map[Warning]Info
	FeatureMap  map[string]Feature
	WarningMap  map[string]Warning
	DialectName string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
	}

	features := map[Feature]Info{
		FeatComments:    {"comments", true, "Annotate the instruction stream with '{ ... }' comments."},
		FeatSemicolons:  {"semicolons", true, "Terminate every instruction with ';'."},
		FeatAddresses:   {"addresses", false, "Prefix every instruction with its code address."},
		FeatBoundsCheck: {"bounds-check", true, "Emit 'chk' before every array subscript."},
		FeatStackExtent: {"stack-extent", true, "Emit 'sep' with the computed expression stack extent of each frame."},
	}

	warnings := map[Warning]Info{
		WarnShadow:     {"shadow", false, "Warn when a declaration hides an outer binding."},
		WarnUnusedVar:  {"unused-var", true, "Warn about variables that are never referenced."},
		WarnUnusedFunc: {"unused-func", false, "Warn about functions that are never called."},
		WarnPedantic:   {"pedantic", false, "Issue all warnings demanded by the strict dialect."},
		WarnExtra:      {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	cfg.DialectName = "Pa"

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyDialect selects the output flavour of the instruction stream.
// "P" is the bare machine listing; "Pa" is the annotated listing.
func (c *Config) ApplyDialect(name string) error {
	type dialectSettings struct {
		feature Feature
		pValue  bool
		paValue bool
	}

	settings := []dialectSettings{
		{FeatComments, false, true},
		{FeatSemicolons, false, true},
		{FeatAddresses, false, false},
	}

	switch name {
	case "P":
		for _, s := range settings {
			c.SetFeature(s.feature, s.pValue)
		}
	case "Pa":
		for _, s := range settings {
			c.SetFeature(s.feature, s.paValue)
		}
	default:
		return fmt.Errorf("unsupported dialect '%s'. Supported: 'P', 'Pa'", name)
	}
	c.DialectName = name
	c.applyPedantic()
	return nil
}

// applyPedantic turns on the warnings the strict P dialect demands
func (c *Config) applyPedantic() {
	if c.DialectName == "P" && c.IsWarningEnabled(WarnPedantic) {
		c.SetWarning(WarnShadow, true)
		c.SetWarning(WarnUnusedFunc, true)
	}
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enable)
			}
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ProcessFlags applies -W/-F style flags. -Wall, -Wno-all and -Wpedantic go
// first so that individual flags can override them.
func (c *Config) ProcessFlags(flags []string) {
	first := func(f string) bool { return f == "-Wall" || f == "-Wno-all" || f == "-Wpedantic" }
	pedantic := false
	for _, f := range flags {
		if first(f) {
			c.applyFlag(f)
			pedantic = pedantic || f == "-Wpedantic"
		}
	}
	if pedantic {
		c.applyPedantic()
	}
	for _, f := range flags {
		if !first(f) {
			c.applyFlag(f)
		}
	}
}
