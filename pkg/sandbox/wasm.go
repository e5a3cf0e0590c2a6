// Package sandbox's execution half: a deny-by-default wazero runtime
// for running an intelligence module's compiled WASM binary and
// decoding its sole permitted output shape, a Proposal.
//
// Adapted from the teacher's runtime/sandbox/wasi_sandbox.go: same
// wazero + wasi_snapshot_preview1 construction, same "do not call
// WithFSConfig/WithSysNanotime/WithRandSource" deny-by-default stance.
// What changes is the output contract — the teacher's sandbox returns
// arbitrary stdout bytes for its pack system; this one requires stdout
// to decode into exactly a Proposal, because a Proposal (spec §4.11)
// is the only thing this boundary is allowed to produce.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Proposal is opaque, inert data: the only thing an intelligence
// module may produce (spec §4.11). Nothing in the kernel grants it
// authority, admission credit, or execution privilege — a Proposal is
// not a Context, not a Grant, not an Intent, and is never silently
// promoted into one.
type Proposal struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Assumptions     []string `json:"assumptions"`
	ConfidenceRange [2]float64 `json:"confidence_range"`
	KnownUnknowns   []string `json:"known_unknowns"`
	SymbolicActions []string `json:"symbolic_actions"`
}

// RuntimeConfig bounds one execution: a memory ceiling and a wall-clock
// deadline, mirroring the teacher's SandboxConfig fields.
type RuntimeConfig struct {
	MemoryLimitBytes uint64
	CPUTimeLimit     time.Duration
}

// Runtime wraps a wazero runtime instantiated with WASI but with no
// filesystem, network, clock, or randomness wired in.
type Runtime struct {
	runtime wazero.Runtime
	cfg     RuntimeConfig
}

// NewRuntime constructs a deny-by-default wazero runtime.
func NewRuntime(ctx context.Context, cfg RuntimeConfig) (*Runtime, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitBytes > 0 {
		pages := uint32(cfg.MemoryLimitBytes / (64 * 1024))
		if pages == 0 {
			pages = 1
		}
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(pages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return nil, fmt.Errorf("sandbox: wasi instantiation failed: %w", err)
	}

	return &Runtime{runtime: r, cfg: cfg}, nil
}

// RunProposal executes a compiled intelligence module against input,
// decodes its stdout as a single JSON Proposal, and returns it. Any
// stderr output or non-Proposal stdout is treated as a failed run, not
// as a Proposal with unexpected content — there is no lenient fallback
// that promotes malformed output into a trusted shape.
func (r *Runtime) RunProposal(ctx context.Context, wasmBytes []byte, input []byte) (*Proposal, error) {
	if r.cfg.CPUTimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CPUTimeLimit)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName("mek-intelligence-boundary").
		WithStartFunctions("_start").
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr)
	// Deliberately absent: WithFSConfig, WithSysNanotime, WithRandSource,
	// WithEnv. A Proposal must be producible from pure computation over
	// its input alone.

	compiled, err := r.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("sandbox: module compilation failed: %w", err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	mod, err := r.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sandbox: execution timed out after %v", r.cfg.CPUTimeLimit)
		}
		return nil, fmt.Errorf("sandbox: instantiation failed: %w", err)
	}
	defer func() { _ = mod.Close(ctx) }()

	if stderr.Len() > 0 {
		return nil, fmt.Errorf("sandbox: intelligence module wrote to stderr: %s", stderr.String())
	}

	var p Proposal
	if err := json.Unmarshal(stdout.Bytes(), &p); err != nil {
		return nil, fmt.Errorf("sandbox: stdout did not decode as a Proposal: %w", err)
	}
	return &p, nil
}

// Close shuts down the wazero runtime, freeing all resources.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}
