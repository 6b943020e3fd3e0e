package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/iot-tracegen/core"
)

func newScenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Inspect built-in scenarios",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tBROKERS\tCLIENTS\tRUNTIME\tDESCRIPTION")
			for _, cfg := range core.Presets() {
				if _, err := cfg.Validate(); err != nil {
					return fmt.Errorf("scenario %s: %w", cfg.Name, err)
				}
				total, _, _ := cfg.ClientCounts()
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", cfg.Name, len(cfg.Brokers), total, cfg.Runtime, cfg.Description)
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Print a built-in scenario as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := core.Preset(args[0])
			if err != nil {
				return err
			}
			if _, err := cfg.Validate(); err != nil {
				return err
			}
			data, err := core.MarshalScenario(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
