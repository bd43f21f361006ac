package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

// DefaultSource names the embedded profile in errors.
const DefaultSource = "<embedded default profile>"

//go:embed default.yaml
var defaultProfile []byte

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Load reads, decodes and validates a profile. An empty path selects the
// embedded default profile.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Parse(defaultProfile, DefaultSource)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dperrors.NewParseError(path, 0, err)
	}
	return Parse(data, path)
}

// Default returns the embedded profile.
func Default() (*Profile, error) {
	return Parse(defaultProfile, DefaultSource)
}

// Parse decodes and validates profile bytes. Unknown keys are rejected so a
// typo never silently falls back to a default.
func Parse(data []byte, source string) (*Profile, error) {
	var p Profile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, dperrors.NewParseError(source, extractLine(err), err)
	}

	p.applyDefaults()
	if err := Validate(&p); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &p, nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
