package config

import (
	"fmt"
	"maps"
	"math"
	"strings"

	"github.com/badgermind/scriptc/pkg/cli"
)

type Feature int

const (
	FeatOptimize Feature = iota
	FeatDegrees
	FeatBinaryLiterals
	FeatCComments
	FeatNoDirectives
	FeatCount
)

type Warning int

const (
	WarnZeroOffset Warning = iota
	WarnIntRange
	WarnOddBinary
	WarnDuplicateParam
	WarnUnrecognizedEscape
	WarnPedantic
	WarnExtra
	WarnCount
)

// Degrees is the scale applied to numeric literals carrying a 'deg' suffix.
const Degrees = math.Pi / 180.0

const (
	FormatBinary = "binary"
	FormatHTML   = "html"
	FormatTree   = "tree"
)

const (
	CompressNone = "none"
	CompressGzip = "gzip"
	CompressZstd = "zstd"
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	// PointerSize is the width of an emitted pointer field in bytes and
	// PointerAlign the matching alignment mask.
	PointerSize  int
	PointerAlign uint64

	Format    string
	Compress  string
	HTMLTitle string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Format:     FormatBinary,
		Compress:   CompressNone,
		HTMLTitle:  "Script",
	}

	features := map[Feature]Info{
		FeatOptimize:       {"optimize", true, "Merge identical expressions before emitting."},
		FeatDegrees:        {"degrees", true, "Accept the 'deg' suffix on numeric literals."},
		FeatBinaryLiterals: {"binary-literals", true, "Accept '#' hex binary literals."},
		FeatCComments:      {"c-comments", false, "Recognize C-style '//' line comments."},
		FeatNoDirectives:   {"no-directives", false, "Disable '; [script]:' directives."},
	}

	warnings := map[Warning]Info{
		WarnZeroOffset:         {"zero-offset", true, "Warn when a pointer field refers to a node without an offset."},
		WarnIntRange:           {"int-range", true, "Warn when an integer literal is too large for U32 encoding and is emitted as a float."},
		WarnOddBinary:          {"odd-binary", true, "Warn when a binary literal has an odd number of hex digits."},
		WarnDuplicateParam:     {"duplicate-param", true, "Warn when a statement names the same parameter twice."},
		WarnUnrecognizedEscape: {"u-esc", true, "Warn on unrecognized string escape sequences."},
		WarnPedantic:           {"pedantic", false, "Issue all warnings, including stylistic ones."},
		WarnExtra:              {"extra", false, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	cfg.SetPointerWidth(32)
	return cfg
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Features = maps.Clone(c.Features)
	clone.Warnings = maps.Clone(c.Warnings)
	clone.FeatureMap = maps.Clone(c.FeatureMap)
	clone.WarningMap = maps.Clone(c.WarningMap)
	return &clone
}

// SetPointerWidth selects 32- or 64-bit pointer fields for the binary format.
func (c *Config) SetPointerWidth(bits int) error {
	switch bits {
	case 32:
		c.PointerSize, c.PointerAlign = 4, 3
	case 64:
		c.PointerSize, c.PointerAlign = 8, 7
	default:
		return fmt.Errorf("unsupported pointer width %d. Supported: 32, 64", bits)
	}
	return nil
}

func (c *Config) PointerBits() int { return c.PointerSize * 8 }

func (c *Config) SetFormat(format string) error {
	switch format {
	case FormatBinary, FormatHTML, FormatTree:
		c.Format = format
		return nil
	}
	return fmt.Errorf("unknown format '%s'. Supported: '%s', '%s', '%s'", format, FormatBinary, FormatHTML, FormatTree)
}

func (c *Config) SetCompress(method string) error {
	switch method {
	case "":
		c.Compress = CompressNone
		return nil
	case CompressNone, CompressGzip, CompressZstd:
		c.Compress = method
		return nil
	}
	return fmt.Errorf("unknown compression '%s'. Supported: '%s', '%s', '%s'", method, CompressNone, CompressGzip, CompressZstd)
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

func (c *Config) IsWarningEnabled(wt Warning) bool {
	if c.Warnings[WarnPedantic].Enabled {
		return true
	}
	return c.Warnings[wt].Enabled
}

// ApplyFlag applies a single -W/-F style flag. Unknown names are reported.
func (c *Config) ApplyFlag(flag string) error {
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
		return nil
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
			return nil
		}
		return fmt.Errorf("unknown warning '%s'", name)
	}
	if f, ok := c.FeatureMap[name]; ok {
		c.SetFeature(f, enable)
		return nil
	}
	return fmt.Errorf("unknown feature '%s'", name)
}

// ProcessDirectiveFlags applies the flags of an in-source directive.
func (c *Config) ProcessDirectiveFlags(flagStr string) error {
	for _, flag := range strings.Fields(flagStr) {
		if err := c.ApplyFlag(flag); err != nil {
			return err
		}
	}
	return nil
}

// SetupFlagGroups registers -W and -F flag groups on fs. The returned entries
// are indexed by Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
			Default:  info.Enabled,
		}
	}
	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "F",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
			Default:  info.Enabled,
		}
	}
	fs.AddFlagGroup("Warning Flags", "Diagnostics emitted while compiling.", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Language and pipeline features.", "feature", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies the parsed state of the flag groups into c.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
