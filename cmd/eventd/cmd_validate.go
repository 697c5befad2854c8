package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a config file and print its sinks",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tTECHNICAL\tENABLED\tPATH")
	for _, s := range cfg.Sinks {
		name := s.Name
		if name == "" {
			name = "-"
		}
		path := s.Path
		if path == "" {
			path = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n", s.Type, name, s.IsTechnical(), !s.Disabled, path)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "config ok (addr %s, %d sinks)\n", cfg.Addr, len(cfg.Sinks))
	return nil
}
