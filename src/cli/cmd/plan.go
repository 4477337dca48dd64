package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/event"
	"github.com/sofmeright/slipway/src/output"
	"github.com/sofmeright/slipway/src/pipeline"
	"github.com/sofmeright/slipway/src/stages"
)

var planTrigger triggerFlags

var planCmd = &cobra.Command{
	Use:   "plan [dir]",
	Short: "Show what a run would do for the current event",
	Long: `Show what a run would do for the current event.

Evaluates every stage gate against the detected trigger, assuming all
dispatched stages succeed, and prints the image tags that would be pushed
and the package version that would be published. Nothing is executed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planTrigger.register(planCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	rootDir, err := rootDirFromArgs(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	trigger, err := planTrigger.detect(rootDir)
	if err != nil {
		return err
	}
	env, err := resolveEnvironment(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	deps := newDeps(ctx, rootDir, env, io.Discard)
	graph, err := stages.Build(deps)
	if err != nil {
		return err
	}
	run := stages.NewRun(trigger, event.Matcher{TagPrefix: cfg.TagPrefix}, env)

	output.RunContext(w, run)
	if !trigger.Handled() {
		fmt.Fprintf(w, "\n    release action %q does not start a pipeline\n", trigger.Action)
		return nil
	}
	printPlan(w, graph, run, deps, output.UseColor())
	return nil
}

// printPlan renders the predicted stage outcomes and publish decisions.
func printPlan(w io.Writer, g *pipeline.Graph, run *pipeline.Run, deps stages.Deps, color bool) {
	sec := output.NewSection(w, "Plan", 0, color)
	for _, p := range g.Plan(run) {
		if !p.Run {
			sec.Row("%-16s%s  skipped: %s", p.Name, output.StatusIcon(output.StatusSkipped, color), p.Reason)
			continue
		}
		detail := strings.Join(p.Steps, " → ")
		if len(p.Gated) > 0 {
			detail += output.Dimmed(" (not applicable: "+strings.Join(p.Gated, ", ")+")", color)
		}
		sec.Row("%-16s%s  %s", p.Name, output.StatusIcon(output.StatusSuccess, color), detail)
	}
	sec.Separator()

	publishable := run.Meta.Publishable()
	repo := stages.Repository(deps.Config, deps.Env)
	for _, v := range deps.Config.Images.Variants {
		tags := build.ResolveTags(repo, run.Token(), v.Suffix)
		action := "build only"
		if publishable {
			action = "push"
		}
		sec.Row("%-16s%s %s  base %s", "image "+v.Name, action, strings.Join(tags, ", "), stages.BaseImage(v, deps.Env))
	}

	if run.Meta.IsRelease {
		version := event.PackageVersion(run.Token())
		if event.IsPrerelease(run.Token()) {
			version += " (prerelease)"
		}
		sec.Row("%-16spublish %s to %s", "package", version, stages.IndexURL(deps.Config, deps.Env))
		if !deps.Env.IndexToken.IsSet() {
			sec.Row("%-16s%s  %s is not set; the package stage will fail", "", output.StatusIcon(output.StatusWarning, color), deps.Config.Env.IndexToken)
		}
	} else {
		sec.Row("%-16snot a release; nothing is published", "package")
	}

	if publishable && (!deps.Env.RegistryUser.IsSet() || !deps.Env.RegistryPassword.IsSet()) {
		sec.Row("%-16s%s  registry credentials missing; login will fail", "", output.StatusIcon(output.StatusWarning, color))
	}
	for _, w := range stages.DockerfileWarnings(deps) {
		sec.Row("%-16s%s  %s", "", output.StatusIcon(output.StatusWarning, color), w)
	}
	sec.Close()
}
