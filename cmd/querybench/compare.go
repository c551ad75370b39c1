package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/perflab/querybench/pkg/bench"
	"github.com/perflab/querybench/pkg/report"
)

var (
	compareBase   string
	compareTarget string
	compareFormat string
)

var compareCmd = &cobra.Command{
	Use:   "compare <test>",
	Short: "Compare two execution paths for a test",
	Long: `Relate the mean latencies of two paths from the most recent run that
exercised both of them successfully.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringVar(&compareBase, "base", "direct",
		"Baseline execution path")
	compareCmd.Flags().StringVar(&compareTarget, "target", "mediated",
		"Target execution path")
	compareCmd.Flags().StringVar(&compareFormat, "format", "table",
		"Output format (table, md, json)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	base, err := bench.ParsePath(compareBase)
	if err != nil {
		return err
	}

	target, err := bench.ParsePath(compareTarget)
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("opening results store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Store stop error")
		}
	}()

	c, err := st.Compare(cmd.Context(), args[0], base, target)
	if err != nil {
		return err
	}

	return report.RenderComparison(cmd.OutOrStdout(), c, compareFormat)
}
