package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/perflab/querybench/pkg/report"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered benchmark tests",
	RunE:  runList,
}

var (
	historyFormat string

	historyCmd = &cobra.Command{
		Use:   "history <test>",
		Short: "Show persisted runs for a test",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyFormat, "format", "table",
		"Output format (table, json)")
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Description", "Paths", "Timeout"})

	for _, def := range cat.List() {
		paths := "all"
		if len(def.Paths) > 0 {
			paths = fmt.Sprintf("%v", def.Paths)
		}

		timeout := "-"
		if def.Timeout > 0 {
			timeout = def.Timeout.String()
		}

		t.AppendRow(table.Row{def.Name, def.Description, paths, timeout})
	}

	t.Render()

	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
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

	runs, err := st.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	return report.RenderHistory(cmd.OutOrStdout(), runs, historyFormat)
}
