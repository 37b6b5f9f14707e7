// Package definitions reads campaign templates, rule sets, data rows and
// campaign state from YAML files.
package definitions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/generator"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
)

var ErrEmptyFile = errors.New("definitions file is empty")

// Bundle is one definitions file. Every section is optional.
type Bundle struct {
	Template *generator.CampaignTemplate `yaml:"template"`
	Rules    []rules.Rule                `yaml:"rules"`
	Rows     []model.Row                 `yaml:"rows"`
}

// State holds both sides of a diff.
type State struct {
	Local    []model.LocalCampaign    `json:"local"`
	Platform []model.PlatformCampaign `json:"platform"`
}

func Load(path string) (Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	b, err := Decode(f)
	if err != nil {
		return Bundle{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Decode reads a bundle and validates its rules and template platform.
func Decode(r io.Reader) (Bundle, error) {
	var b Bundle
	if err := decodeYAML(r, &b); err != nil {
		return Bundle{}, err
	}
	for _, rl := range b.Rules {
		if err := rl.Validate(); err != nil {
			return Bundle{}, err
		}
	}
	if b.Template != nil && b.Template.Platform != "" && !b.Template.Platform.IsValid() {
		return Bundle{}, fmt.Errorf("template %q: unknown platform %q", b.Template.ID, b.Template.Platform)
	}
	return b, nil
}

// LoadState reads local and platform campaigns. Entity fields use the same
// snake_case names as the JSON API.
func LoadState(path string) (State, error) {
	f, err := os.Open(path)
	if err != nil {
		return State{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var raw any
	if err := decodeYAML(f, &raw); err != nil {
		return State{}, fmt.Errorf("%s: %w", path, err)
	}
	// The entity types carry json tags only; route through JSON so one set
	// of names applies to both formats.
	j, err := json.Marshal(raw)
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", path, err)
	}
	var s State
	if err := json.Unmarshal(j, &s); err != nil {
		return State{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func decodeYAML(r io.Reader, out any) error {
	if err := yaml.NewDecoder(r).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyFile
		}
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}
