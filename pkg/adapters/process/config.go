package process

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// paramEnvPrefix marks the variables derived from kind params.
const paramEnvPrefix = "TELEMETRY_PARAM_"

// CommandConfig is one allow-listed external generator.
type CommandConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// Validate checks that the command can be executed as configured.
func (c CommandConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("command %q: executable is required", c.Name)
	}
	for i, arg := range c.Args {
		if arg == "" {
			return fmt.Errorf("command %q: args[%d] is empty", c.Name, i)
		}
	}
	for k := range c.Environment {
		switch {
		case k == "" || strings.ContainsAny(k, "= \t"):
			return fmt.Errorf("command %q: invalid env name %q", c.Name, k)
		case strings.HasPrefix(strings.ToUpper(k), paramEnvPrefix):
			return fmt.Errorf("command %q: env %q clashes with kind params", c.Name, k)
		}
	}
	return nil
}

type commandsFile struct {
	Commands []CommandConfig `yaml:"commands" json:"commands"`
}

// LoadCommands reads the allow-list from a YAML or JSON file, chosen by
// extension. A missing file means no commands. Unknown fields, duplicate
// names and entries that fail Validate are rejected; every problem is
// reported at once.
func LoadCommands(path string) (map[string]CommandConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]CommandConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read commands config: %w", err)
	}

	var file commandsFile
	if err := decodeCommands(path, data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	commands := make(map[string]CommandConfig, len(file.Commands))
	var errs []error
	for i, c := range file.Commands {
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("commands[%d]: %w", i, err))
			continue
		}
		if _, dup := commands[c.Name]; dup {
			errs = append(errs, fmt.Errorf("commands[%d]: duplicate name %q", i, c.Name))
			continue
		}
		commands[c.Name] = c
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid commands config %s: %w", path, err)
	}
	return commands, nil
}

func decodeCommands(path string, data []byte, file *commandsFile) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(file)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(file); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
