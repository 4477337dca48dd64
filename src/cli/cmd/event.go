package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sofmeright/slipway/src/event"
	"github.com/sofmeright/slipway/src/stages"
)

var (
	eventTrigger triggerFlags
	eventFormat  string
)

var eventCmd = &cobra.Command{
	Use:   "event [dir]",
	Short: "Print the version token and gate flags for the current event",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEvent,
}

func init() {
	eventTrigger.register(eventCmd)
	eventCmd.Flags().StringVar(&eventFormat, "format", "text", "output format: text or env")
	rootCmd.AddCommand(eventCmd)
}

func runEvent(cmd *cobra.Command, args []string) error {
	rootDir, err := rootDirFromArgs(args)
	if err != nil {
		return err
	}
	trigger, err := eventTrigger.detect(rootDir)
	if err != nil {
		return err
	}
	env, err := resolveEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	run := stages.NewRun(trigger, event.Matcher{TagPrefix: cfg.TagPrefix}, env)

	fields := []struct{ key, value string }{
		{"EVENT", string(run.Event)},
		{"REF", run.Ref},
		{"COMMIT", run.Commit},
		{"VERSION_TOKEN", run.Token()},
		{"PACKAGE_VERSION", event.PackageVersion(run.Token())},
		{"IS_RELEASE", strconv.FormatBool(run.Meta.IsRelease)},
		{"IS_TAG_PUSH", strconv.FormatBool(run.Meta.IsTagPush)},
		{"HANDLED", strconv.FormatBool(trigger.Handled())},
	}

	w := cmd.OutOrStdout()
	switch eventFormat {
	case "env":
		for _, f := range fields {
			fmt.Fprintf(w, "SLIPWAY_%s=%s\n", f.key, f.value)
		}
	case "text":
		for _, f := range fields {
			fmt.Fprintf(w, "%-16s %s\n", f.key, f.value)
		}
	default:
		return fmt.Errorf("unknown format %q (valid: text, env)", eventFormat)
	}
	return nil
}
