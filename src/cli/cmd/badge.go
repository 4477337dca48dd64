package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/slipway/src/badge"
	"github.com/sofmeright/slipway/src/coverage"
)

var (
	badgeReport string
	badgeOut    string
)

var badgeCmd = &cobra.Command{
	Use:   "badge",
	Short: "Generate SVG badges",
}

var badgeCoverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Render a coverage badge from a Cobertura report",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := coverage.ReadCobertura(badgeReport)
		if err != nil {
			return err
		}
		out := badgeOut
		if out == "" {
			out = cfg.Badges.Coverage
		}
		if out == "" {
			out = ".badges/coverage.svg"
		}

		metrics, err := badge.Load(cfg.Badges.FontFile, cfg.Badges.FontSize)
		if err != nil {
			return err
		}
		if err := badge.New(metrics).WriteFile(out, badge.Coverage(report.Percent())); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "coverage %.1f%% → %s\n", report.Percent(), out)
		return nil
	},
}

func init() {
	badgeCoverageCmd.Flags().StringVar(&badgeReport, "report", "coverage.xml", "Cobertura XML report")
	badgeCoverageCmd.Flags().StringVar(&badgeOut, "out", "", "output path (default: badges.coverage or .badges/coverage.svg)")
	badgeCmd.AddCommand(badgeCoverageCmd)
	rootCmd.AddCommand(badgeCmd)
}
