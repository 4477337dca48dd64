package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/event"
	"github.com/sofmeright/slipway/src/output"
	"github.com/sofmeright/slipway/src/pipeline"
	"github.com/sofmeright/slipway/src/runner"
	"github.com/sofmeright/slipway/src/stages"
)

var (
	runTrigger     triggerFlags
	runMaxParallel int
	runDryRun      bool
	runJUnit       string
	runNoScan      bool
)

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Run the pipeline for the current event",
	Long: `Run the pipeline for the current event.

Detects the trigger (push or release) from the CI environment, resolves
credentials, then executes the stage graph. Stages whose dependencies
failed or whose gate does not hold are skipped. Exits non-zero only when a
dispatched stage failed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func init() {
	runTrigger.register(runCmd)
	runCmd.Flags().IntVar(&runMaxParallel, "max-parallel", -1, "bound concurrently running stages (0 = unbounded; default: config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "show the plan without executing")
	runCmd.Flags().StringVar(&runJUnit, "junit", "", "write a JUnit stage report into this directory")
	runCmd.Flags().BoolVar(&runNoScan, "no-secret-scan", false, "only redact registered credentials")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	rootDir, err := rootDirFromArgs(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color := output.UseColor()

	trigger, err := runTrigger.detect(rootDir)
	if err != nil {
		return err
	}
	if !trigger.Handled() {
		fmt.Fprintf(cmd.OutOrStdout(), "release action %q does not start a pipeline; nothing to do\n", trigger.Action)
		return nil
	}

	env, err := resolveEnvironment(ctx)
	if err != nil {
		return err
	}

	redactor, err := output.NewRedactor(!runNoScan)
	if err != nil {
		return fmt.Errorf("initializing redaction: %w", err)
	}
	redactor.Add(env.Credentials()...)
	w := redactor.Writer(cmd.OutOrStdout())
	defer w.Flush()

	deps := newDeps(ctx, rootDir, env, w)
	graph, err := stages.Build(deps)
	if err != nil {
		return err
	}
	run := stages.NewRun(trigger, event.Matcher{TagPrefix: cfg.TagPrefix}, env)

	output.RunContext(w, run)

	if runDryRun {
		printPlan(w, graph, run, deps, color)
		return nil
	}

	if !runner.Available("docker") {
		return errors.New("docker not found on PATH; test and image stages run through it")
	}
	for _, warning := range stages.DockerfileWarnings(deps) {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	if deps.Cache != nil {
		if bx, ok := deps.Builder.(*build.Buildx); ok {
			if err := bx.EnsureBuilder(ctx); err != nil {
				fmt.Fprintf(w, "warning: buildx cache export unavailable, building without cache: %v\n", err)
				deps.Cache = nil
				if graph, err = stages.Build(deps); err != nil {
					return err
				}
			}
		}
	}

	console := output.NewConsole(w, color, redactor)
	engine := &pipeline.Engine{MaxParallel: cfg.MaxParallel, Observer: console}
	if runMaxParallel >= 0 {
		engine.MaxParallel = runMaxParallel
	}

	report := engine.Execute(ctx, run, graph)
	console.Summary(report)

	if runJUnit != "" {
		if err := output.WriteStageJUnit(runJUnit, report, redactor.Redact); err != nil {
			fmt.Fprintf(w, "warning: junit report: %v\n", err)
		}
	}

	if report.Failed() {
		return fmt.Errorf("%d stage(s) failed: %w", report.Counts().Failure, report.Err())
	}
	return nil
}
