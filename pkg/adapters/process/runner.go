// Package process runs external commands as generators.
//
// A process kind names an allow-listed command in its params. The command
// receives a JSON request on stdin holding the dataset, the kind and every
// prerequisite value, and must print one JSON array ({"shape": [...],
// "data": [...]}) on stdout. Kind params are also exported as
// TELEMETRY_PARAM_<NAME> environment variables.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/aretw0/telemetry/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// Runner holds the allow-list of commands. Only registered commands run;
// kind params never choose the executable.
type Runner struct {
	registry map[string]CommandConfig
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(commands map[string]CommandConfig) RunnerOption {
	return func(r *Runner) {
		for name, c := range commands {
			c.Name = name
			r.registry[name] = c
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{registry: make(map[string]CommandConfig)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name, command string, args ...string) {
	r.registry[name] = CommandConfig{Name: name, Command: command, Args: args}
}

// Params selects the command of a process kind.
type Params struct {
	Command string `mapstructure:"command"`
}

// Factory builds generators for VariantProcess kinds.
func (r *Runner) Factory() registry.GeneratorFactory {
	return func(kind domain.Kind) (ports.Generator, error) {
		var p Params
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &p, WeaklyTypedInput: true})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(kind.Params); err != nil {
			return nil, fmt.Errorf("invalid params for process kind %q: %w", kind.Key, err)
		}
		c, ok := r.registry[p.Command]
		if !ok {
			return nil, fmt.Errorf("process command not registered: %q", p.Command)
		}
		return &generator{cmd: c, dir: r.baseDir}, nil
	}
}

// RegisterWith binds the runner to VariantProcess.
func (r *Runner) RegisterWith(g *registry.Generators) {
	g.Register(domain.VariantProcess, r.Factory())
}

// Request is what a command reads on stdin.
type Request struct {
	Dataset domain.Dataset          `json:"dataset"`
	Kind    domain.Kind             `json:"kind"`
	Inputs  map[string]domain.Array `json:"inputs"`
}

type generator struct {
	cmd CommandConfig
	dir string
}

func (g *generator) Generate(ctx context.Context, in ports.Inputs) (domain.Array, error) {
	// 1. Gather inputs
	req := Request{Dataset: in.Dataset(), Kind: in.Kind(), Inputs: make(map[string]domain.Array)}
	for _, key := range in.Prerequisites() {
		v, err := in.Read(ctx, key)
		if err != nil {
			return domain.Array{}, err
		}
		req.Inputs[key] = v
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.Array{}, fmt.Errorf("failed to encode request: %w", err)
	}

	// 2. Run
	cmd := exec.CommandContext(ctx, g.cmd.Command, g.cmd.Args...)
	cmd.Dir = g.dir
	cmd.Env = append(cmd.Environ(), environ(g.cmd.Environment, req.Kind.Params)...)
	cmd.Stdin = bytes.NewReader(body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return domain.Array{}, fmt.Errorf("command %q failed: %w: %s", g.cmd.Name, err, strings.TrimSpace(stderr.String()))
	}

	// 3. Decode
	var out domain.Array
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &out); err != nil {
		return domain.Array{}, fmt.Errorf("command %q printed invalid output: %w", g.cmd.Name, err)
	}
	return out, nil
}

// environ flattens the configured environment and the kind params.
// Complex param values are passed as JSON.
func environ(static map[string]string, params map[string]any) []string {
	var env []string
	for k, v := range static {
		env = append(env, k+"="+v)
	}
	for k, v := range params {
		var val string
		switch v.(type) {
		case string, int, int64, float64, bool:
			val = fmt.Sprintf("%v", v)
		case nil:
		default:
			if raw, err := json.Marshal(v); err == nil {
				val = string(raw)
			} else {
				val = fmt.Sprintf("%v", v)
			}
		}
		env = append(env, fmt.Sprintf("TELEMETRY_PARAM_%s=%s", strings.ToUpper(k), val))
	}
	sort.Strings(env)
	return env
}
