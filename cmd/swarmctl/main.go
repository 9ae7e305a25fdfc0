// Command swarmctl is the CLI entrypoint for the sub-agent orchestration
// engine: it submits a prompt for decomposition and supervised execution,
// printing the resulting subtask statuses and synthesized answer.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ranganaths/swarmctl/config"
	"github.com/ranganaths/swarmctl/core/orchestrator"
	"github.com/ranganaths/swarmctl/observability"
	"github.com/ranganaths/swarmctl/runtime"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "swarmctl",
		Short: "Sub-agent orchestration engine",
	}
	root.AddCommand(newSubmitCmd())
	return root
}

func newSubmitCmd() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "submit [prompt]",
		Short: "Decompose a prompt into sub-tasks, execute them, and synthesize a result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), args[0], model)
		},
	}
	cmd.Flags().StringVar(&model, "model", "sonnet", "commander model (opus, sonnet, haiku)")
	return cmd
}

func runSubmit(ctx context.Context, prompt, modelFlag string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	stack, err := observability.New(cfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer stack.Close(ctx)

	resolver := runtime.NewBinaryResolver(cfg.CLI.OpusBinary, cfg.CLI.SonnetBinary, cfg.CLI.HaikuBinary)
	rt := runtime.NewProcessRuntime(resolver, cfg.CLI.Env, stack.Logger)

	var queue orchestrator.QueueMirror
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		queue = orchestrator.NewRedisQueueMirror(client)
	}

	orch := orchestrator.New(rt, queue, stack, orchestrator.Options{
		Workspace:                    cfg.Orchestrator.Workspace,
		MaxSubtasks:                  cfg.Orchestrator.MaxSubtasks,
		FallbackRoleCount:            cfg.Orchestrator.FallbackRoleCount,
		ShouldDecomposeMinWords:      cfg.Orchestrator.ShouldDecomposeMin,
		DependencyContextPrefixChars: cfg.Orchestrator.DependencyPrefix,
		SynthesisResultPrefixChars:   cfg.Orchestrator.SynthesisPrefix,
		PlannerModel:                 runtime.Model(cfg.Orchestrator.PlannerModel),
		MaxPoolSize:                  cfg.Pool.MaxPoolSize,
		TransitionLogCap:             cfg.Pool.TransitionLogCap,
		TransitionLogEvictPct:        cfg.Pool.TransitionLogEvictPct,
		SnapshotInterval:             cfg.Pool.SnapshotInterval,
		SnapshotRingSize:             cfg.Pool.SnapshotRingSize,
		AlertDedupWindow:             cfg.Pool.AlertDedupWindow,
		IdleCriticalSeconds:          cfg.Pool.IdleCriticalSeconds,
		CleanupWarningCount:          cfg.Pool.CleanupWarningCount,
		DedupWindow:                  cfg.Orchestrator.DedupWindow,
		IntroDelay:                   cfg.Orchestrator.IntroDelay,
	})

	commander := orchestrator.NewCommander(orchestrator.Model(modelFlag))
	result, err := orch.Submit(ctx, commander, prompt)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	fmt.Printf("phase: %s\n\n", result.Phase)
	for _, st := range result.Subtasks {
		fmt.Printf("[%d] %s (%s)\n", st.Index, st.Title, st.Status)
	}
	fmt.Printf("\n%s\n", result.Synthesis)
	return nil
}
