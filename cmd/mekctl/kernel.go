package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/mek-labs/kernel/pkg/authority"
	"github.com/mek-labs/kernel/pkg/evidence"
	"github.com/mek-labs/kernel/pkg/friction"
	"github.com/mek-labs/kernel/pkg/guard"
	"github.com/mek-labs/kernel/pkg/kernelconfig"
	"github.com/mek-labs/kernel/pkg/observer"
	"github.com/mek-labs/kernel/pkg/primitives"
	"github.com/mek-labs/kernel/pkg/scope"
	"github.com/mek-labs/kernel/pkg/snapshotstore"
)

// kernel bundles one fully wired instance of every MEK-0..6 component.
// main constructs exactly one of these per process invocation — per
// Design Notes §9's "global singletons → explicit handles", there is
// no package-level kernel anywhere in this tree.
type kernel struct {
	Clock     primitives.Clock
	Authority *authority.Store
	Snapshots *snapshotstore.Store
	Hub       *observer.Hub
	Guard     *guard.Guard
	Evidence  *evidence.Log
}

func newKernel() (*kernel, error) {
	clock := primitives.WallClock{}

	logger := observer.NewFanoutLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	hub := observer.New(logger)

	cfg := kernelconfig.Default()

	authStore := authority.New(clock)
	snapStore := snapshotstore.New()
	frictionEngine := friction.New(cfg.FrictionTable(), friction.RealSleeper{})

	scopeEval, err := scope.NewCELEvaluator()
	if err != nil {
		return nil, err
	}

	evidenceLog := evidence.NewLog()

	g := guard.New(guard.Config{
		Authority: authStore,
		Snapshots: snapStore,
		Hub:       hub,
		Friction:  frictionEngine,
		Scope:     scopeEval,
		Clock:     clock,
		Threshold: cfg.Threshold,
		Evidence:  evidenceLog,
	})

	return &kernel{
		Clock:     clock,
		Authority: authStore,
		Snapshots: snapStore,
		Hub:       hub,
		Guard:     g,
		Evidence:  evidenceLog,
	}, nil
}

func fileReadContract() (*primitives.CapabilityContract, error) {
	return primitives.NewCapabilityContract(primitives.CapabilityContractParams{
		Name:                  "file.read",
		ConsequenceLevel:      primitives.ConsequenceMedium,
		RequiredContextFields: []string{"path"},
		Version:               "1.0.0",
	})
}

func fsWriteContract() (*primitives.CapabilityContract, error) {
	return primitives.NewCapabilityContract(primitives.CapabilityContractParams{
		Name:                  "fs.write",
		ConsequenceLevel:      primitives.ConsequenceHigh,
		RequiredContextFields: []string{"path", "content"},
		Version:               "1.0.0",
	})
}

func issueGrant(k *kernel, principal primitives.PrincipalID, capability, scopeExpr string, maxUses *int64, ttl time.Duration) (*primitives.Grant, error) {
	now := k.Clock.Now()
	g := primitives.NewGrant("grant-"+capability+"-"+string(principal), principal, capability, scopeExpr, now, now.Add(ttl), maxUses, true)
	if err := k.Authority.Admit(g); err != nil {
		return nil, err
	}
	return g, nil
}
