package config

import (
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/worldofchami/ucpchat/pkg/commerce"
)

type profilesFile struct {
	Profiles map[string]commerce.Limits `yaml:"profiles"`
}

// Profiles returns the built-in rate limit profiles merged with those
// defined in the YAML file at path. File entries override built-ins of the
// same name. An empty path yields only the built-ins.
func Profiles(path string) (map[string]commerce.Limits, error) {
	out := maps.Clone(commerce.Profiles)
	if path == "" {
		return out, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	var f profilesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", path, err)
	}
	for name, limits := range f.Profiles {
		if err := validate.Struct(limits); err != nil {
			return nil, ValidationError{Field: "profiles." + name, Message: err.Error()}
		}
		out[name] = limits
	}
	return out, nil
}
