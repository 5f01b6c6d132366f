package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/audiencesim/internal/config"
	"github.com/tjfontaine/audiencesim/internal/personas"
)

func newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List platforms with a persona corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(cfgFile)
			if err != nil {
				return err
			}

			loader := personas.NewLoader(cfg.Personas.Dir, personas.WithLogger(newLogger()))
			platforms, err := loader.Platforms(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range platforms {
				n, err := loader.Count(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d personas\n", p, n)
			}
			return nil
		},
	}
}
