package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-swarm/pkg/persist"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget all learned weights and concepts",
	Long: `Overwrite the learned state with an empty snapshot. The static
knowledge base is not touched.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Confirm the reset")
}

func runReset(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if !resetYes {
		return errors.New("refusing to reset learned state without --yes")
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Save(context.Background(), persist.NewSnapshot(nil, nil)); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	fmt.Fprintf(out, "Learned state in %s cleared\n", app.DataDir)
	return nil
}
