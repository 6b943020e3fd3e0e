package main

import (
	"errors"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/iot-tracegen/core"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracegen",
		Short: "Synthetic client trace generator for geo-distributed pub/sub brokers",
		Long: `tracegen produces ping, subscribe and publish traces for simulated IoT
clients moving inside broker jurisdictions. Traces are written one file
per client, ready to be replayed against a geo-aware pub/sub service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCmd(), newScenariosCmd(), newValidateCmd())
	return root
}

// loadScenario resolves either a built-in preset or a JSON file.
func loadScenario(preset, path string) (*core.ScenarioConfig, []string, error) {
	switch {
	case preset != "" && path != "":
		return nil, nil, errors.New("use either --scenario or --config, not both")
	case preset != "":
		cfg, err := core.Preset(preset)
		if err != nil {
			return nil, nil, err
		}
		warnings, err := cfg.Validate()
		return cfg, warnings, err
	case path != "":
		return core.LoadScenarioFile(path)
	default:
		return nil, nil, errors.New("one of --scenario or --config is required")
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
