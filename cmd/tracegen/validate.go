package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/iot-tracegen/core"
)

func newValidateCmd() *cobra.Command {
	var (
		scenario string
		config   string
		strict   bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a scenario without generating traces",
		Long: `validate loads a scenario and runs the same checks generate does.
With --strict, clamped values are errors and broker areas may not even touch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, warnings, err := loadScenario(scenario, config)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, warning := range warnings {
				fmt.Fprintf(w, "warning: %s\n", warning)
			}
			if strict {
				if len(warnings) > 0 {
					return fmt.Errorf("%w: %s", core.ErrInvalidConfig, strings.Join(warnings, "; "))
				}
				if err := core.ValidateDisjoint(cfg.Areas()); err != nil {
					return err
				}
			}
			total, subscribers, publishers := cfg.ClientCounts()
			fmt.Fprintf(w, "scenario %q is valid: %d brokers, %d clients (%d subscribing, %d publishing)\n",
				cfg.Name, len(cfg.Brokers), total, subscribers, publishers)
			return nil
		},
	}
	cmd.Flags().StringVarP(&scenario, "scenario", "s", "", "built-in scenario name")
	cmd.Flags().StringVarP(&config, "config", "c", "", "path to a scenario JSON file")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors and require disjoint broker areas")
	return cmd
}
