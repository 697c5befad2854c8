package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// buildRootCmd constructs the command tree. Persistent flags are read by
// loadConfig in each subcommand.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "eventd",
		Short:         "Fan analytics and technical events out to configured sinks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", os.Getenv("EVENTD_CONFIG"), "Config file (.yaml, .yml, .json, .toml); empty uses a single console sink")
	pf.String("log-level", "", "Log level override (trace, debug, info, warn, error)")
	pf.String("log-format", "", "Log format override (json or console)")

	root.AddCommand(newServeCmd(), newSendCmd(), newValidateCmd())
	return root
}

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "eventd: %v\n", err)
		os.Exit(1)
	}
}

// splitCSV splits a comma-separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
