package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streampref/streampref/config"
	"github.com/streampref/streampref/engine"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and compile the queries without running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			// Compiling the queries catches what structural validation
			// cannot, like rules referencing undeclared attributes.
			logger := setupLogger("error", flagLogFormat)
			eng, err := engine.NewEngine(cfg, logger, nil)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: %d queries\n", len(eng.Queries()))
			for _, name := range eng.Queries() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s\n", name, cfg.ResultSubject(name))
			}
			return nil
		},
	}
}
