package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/menuflow/internal/compiler"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flow]",
	Short: "Check a flow definition",
	Long: `Parses the flow and reports dangling o_connection references, case lists
without a default case and input nodes without a variable. Unreachable nodes
are reported as warnings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := flowPath(cmd, args)
		if err != nil {
			return err
		}
		menu, err := parseFlow(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, id := range menu.Unreachable() {
			fmt.Fprintf(out, "warning: node %q is unreachable from %q\n", id, menu.EntryNodeID())
		}
		if err := menu.Validate(); err != nil {
			var joined interface{ Unwrap() []error }
			if errors.As(err, &joined) {
				for _, e := range joined.Unwrap() {
					fmt.Fprintf(out, "error: %v\n", e)
				}
			} else {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			return fmt.Errorf("flow %s is invalid", path)
		}
		fmt.Fprintf(out, "flow %s is valid (%d nodes)\n", path, len(menu.Nodes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// flowPath prefers the positional argument, then the configuration.
func flowPath(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return cfg.Flow.Path, nil
}

// parseFlow parses without resolving references, so tooling can report them.
func parseFlow(path string) (*domain.Menu, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow: %w", err)
	}
	menu, err := compiler.NewParser().Parse(data)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", path, err)
	}
	return menu, nil
}
