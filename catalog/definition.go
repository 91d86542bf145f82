package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/types"
)

// LoadDefinitionFile reads a schema definition from a .toml, .yaml or .yml file
func LoadDefinitionFile(path string) (types.Definition, error) {
	var def types.Definition

	data, err := os.ReadFile(path)
	if err != nil {
		return def, errors.Wrapf(err, "failed to read definition file %s", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &def); err != nil {
			return def, errors.Mark(errors.Wrapf(err, "failed to parse TOML definition %s", path), errors.ErrValidation)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return def, errors.Mark(errors.Wrapf(err, "failed to parse YAML definition %s", path), errors.ErrValidation)
		}
	default:
		err := errors.NewValidationError("unsupported definition format %q", ext)
		return def, errors.WithHint(err, "use a .toml, .yaml or .yml file")
	}

	return def, nil
}
