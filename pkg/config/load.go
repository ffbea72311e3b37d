package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no --config is given.
const DefaultFile = "scriptc.yaml"

type fileConfig struct {
	PointerWidth int             `yaml:"pointer_width"`
	Format       string          `yaml:"format"`
	Compress     string          `yaml:"compress"`
	HTMLTitle    string          `yaml:"html_title"`
	Features     map[string]bool `yaml:"features"`
	Warnings     map[string]bool `yaml:"warnings"`
}

// LoadFile applies the YAML configuration at path. When path is empty the
// default file is used if it exists; a missing default file is not an error.
func (c *Config) LoadFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := c.Load(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load applies a YAML configuration document.
func (c *Config) Load(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if fc.PointerWidth != 0 {
		if err := c.SetPointerWidth(fc.PointerWidth); err != nil {
			return err
		}
	}
	if fc.Format != "" {
		if err := c.SetFormat(fc.Format); err != nil {
			return err
		}
	}
	if fc.Compress != "" {
		if err := c.SetCompress(fc.Compress); err != nil {
			return err
		}
	}
	if fc.HTMLTitle != "" {
		c.HTMLTitle = fc.HTMLTitle
	}

	for _, name := range sortedKeys(fc.Features) {
		ft, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("unknown feature '%s'", name)
		}
		c.SetFeature(ft, fc.Features[name])
	}
	for _, name := range sortedKeys(fc.Warnings) {
		wt, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(wt, fc.Warnings[name])
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
