package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-swarm/pkg/engine"
	"github.com/teslashibe/go-swarm/pkg/maneuver"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

var (
	decideFront, decideLeft, decideRight float64
	decideBattery                        float64
	decideJSON                           bool
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Print the decision for one sensor frame",
	Long: `Run a single cycle on a fresh engine and print the decision.

Uses the configured knowledge base and tuning but no learned state, so the
result is reproducible. Chaos is disabled.`,
	Example: `  swarm decide --front 200 --left 50 --right 300`,
	RunE:    runDecide,
}

func init() {
	decideCmd.Flags().Float64Var(&decideFront, "front", sensor.MaxDistance, "Front distance (mm)")
	decideCmd.Flags().Float64Var(&decideLeft, "left", sensor.MaxDistance, "Left distance (mm)")
	decideCmd.Flags().Float64Var(&decideRight, "right", sensor.MaxDistance, "Right distance (mm)")
	decideCmd.Flags().Float64Var(&decideBattery, "battery", sensor.DefaultBatteryVoltage, "Battery voltage")
	decideCmd.Flags().BoolVar(&decideJSON, "json", false, "Print the decision as JSON")
}

func runDecide(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg := app.Engine
	cfg.Chaos.Enabled = false

	eng, err := engine.New(context.Background(), cfg, loadStatic(), nil)
	if err != nil {
		return err
	}

	d, err := eng.Decide(sensor.Frame{
		Front:          decideFront,
		Left:           decideLeft,
		Right:          decideRight,
		BatteryVoltage: decideBattery,
		BatteryPercent: -1,
		SpeedLeft:      sensor.DefaultSpeed,
		SpeedRight:     sensor.DefaultSpeed,
	})
	if err != nil {
		return err
	}

	if decideJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	fmt.Fprintln(out, d.String())
	if st := eng.Status(); st.Maneuver.Kind != maneuver.Idle {
		fmt.Fprintf(out, "maneuver: %s\n", st.Maneuver.Kind)
	}
	return nil
}
