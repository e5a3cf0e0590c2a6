// Command mekctl is a small scripted walkthrough of the admission
// pipeline end to end: register a capability, issue a grant, run an
// admission, and inspect the result. It exists as a runnable
// demonstration of S1-style scenarios from the specification's test
// suite, not as a production control plane — there is no persistence,
// no network listener, and no multi-process coordination here.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mek-labs/kernel/pkg/composition"
	"github.com/mek-labs/kernel/pkg/evidence"
	"github.com/mek-labs/kernel/pkg/primitives"
)

func main() {
	root := &cobra.Command{
		Use:   "mekctl",
		Short: "Run a scripted walkthrough of the MEK admission pipeline",
	}
	root.AddCommand(demoCmd())
	root.AddCommand(compositionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Register file.read, issue a grant, and run one admission (the S1 happy path)",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := newKernel()
			if err != nil {
				return err
			}

			contract, err := fileReadContract()
			if err != nil {
				return err
			}
			if err := k.Guard.Register(contract, func(ctx primitives.Context) (any, error) {
				path, _ := ctx.Field("path")
				return map[string]any{"path": path, "bytes_read": 0}, nil
			}); err != nil {
				return err
			}

			maxUses := int64(1)
			grant, err := issueGrant(k, "alice", "file.read", `fields.path.startsWith("/tmp/")`, &maxUses, 60_000_000_000)
			if err != nil {
				return err
			}
			fmt.Printf("issued grant %s to alice for file.read, max_uses=1\n", grant.GrantID)

			confidence := 0.9
			ctx, err := primitives.NewContext(primitives.ContextParams{
				Confidence:  &confidence,
				IntentName:  "file.read",
				Fields:      map[string]any{"path": "/tmp/x"},
				PrincipalID: "alice",
			}, k.Clock)
			if err != nil {
				return err
			}

			fmt.Println("admitting... (friction wait for MEDIUM is ~3s)")
			result := k.Guard.Execute("file.read", ctx)
			if result.OK() {
				fmt.Printf("admitted: %+v\n", result.Data())
				fmt.Printf("grant remaining_uses=%d\n", grant.RemainingUses())
			} else {
				fmt.Printf("refused: %+v\n", result.Failure().Events())
			}

			// Every halted admission offers an Evidence Bundle to the
			// kernel's evidence Log; round-trip it through export/verify to
			// show the S1-style outcome this walkthrough is named for.
			bundle := k.Evidence.Last()
			if bundle == nil {
				return fmt.Errorf("mekctl: expected an evidence bundle to be captured for this admission")
			}
			exported, err := evidence.Export(bundle)
			if err != nil {
				return err
			}
			verification, err := evidence.Verify(exported)
			if err != nil {
				return err
			}
			fmt.Printf("evidence bundle %s: hash_chain_root=%s verify.ok=%v\n", bundle.BundleID, bundle.HashChainRoot, verification.OK())
			return nil
		},
	}
}

func compositionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "composition",
		Short: "Run the S4 STRICT-halt composition walkthrough",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := newKernel()
			if err != nil {
				return err
			}

			readContract, err := fileReadContract()
			if err != nil {
				return err
			}
			if err := k.Guard.Register(readContract, func(ctx primitives.Context) (any, error) {
				return "read ok", nil
			}); err != nil {
				return err
			}
			writeContract, err := fsWriteContract()
			if err != nil {
				return err
			}
			if err := k.Guard.Register(writeContract, func(ctx primitives.Context) (any, error) {
				return "write ok", nil
			}); err != nil {
				return err
			}

			maxUses := int64(5)
			if _, err := issueGrant(k, "alice", "file.read", "", &maxUses, 60_000_000_000); err != nil {
				return err
			}
			// Deliberately no grant for fs.write: step s1 below must be
			// refused with MISSING_GRANT, and s2 must not be attempted.

			confidence := 0.9
			readCtx := func() primitives.Context {
				c, _ := primitives.NewContext(primitives.ContextParams{
					Confidence:  &confidence,
					IntentName:  "file.read",
					Fields:      map[string]any{"path": "/tmp/x"},
					PrincipalID: "alice",
				}, k.Clock)
				return c
			}
			writeCtx, _ := primitives.NewContext(primitives.ContextParams{
				Confidence:  &confidence,
				IntentName:  "fs.write",
				Fields:      map[string]any{"path": "/tmp/x", "content": "hi"},
				PrincipalID: "alice",
			}, k.Clock)

			comp, err := composition.New([]composition.Step{
				{Order: 0, CapabilityName: "file.read", Context: readCtx()},
				{Order: 1, CapabilityName: "fs.write", Context: writeCtx},
				{Order: 2, CapabilityName: "file.read", Context: readCtx()},
			}, composition.PolicyStrict)
			if err != nil {
				return err
			}

			result := composition.Run(k.Guard, comp)
			if result.OK {
				fmt.Printf("composition succeeded: %d steps, results=%v\n", len(result.Results), result.Results)
				return nil
			}
			events := result.Failure.Events()
			fmt.Printf("composition halted after %d failure event(s); last: %s\n", len(events), events[len(events)-1].FailureKind)
			return nil
		},
	}
}
