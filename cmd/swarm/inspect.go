package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	inspectJSON  bool
	inspectLimit int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show learned weights and concepts",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the raw snapshot as JSON")
	inspectCmd.Flags().IntVarP(&inspectLimit, "limit", "n", 20, "Show at most this many concepts (0 for all)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load(context.Background())
	if err != nil {
		return err
	}

	if inspectJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	if snap.Empty() {
		fmt.Fprintf(out, "No learned state in %s (%s)\n", app.DataDir, app.Storage.Backend)
		return nil
	}
	if !snap.SavedAt.IsZero() {
		fmt.Fprintf(out, "Snapshot %s saved %s\n\n", snap.ID, snap.SavedAt.Format("2006-01-02 15:04:05"))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tWEIGHT")
	names := make([]string, 0, len(snap.Weights))
	for name := range snap.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.3f\n", name, snap.Weights[name])
	}
	w.Flush()

	learned := snap.Learned
	sort.SliceStable(learned, func(i, j int) bool {
		return learned[i].Vector.Norm() > learned[j].Vector.Norm()
	})
	fmt.Fprintf(out, "\n%d learned concepts\n", len(learned))
	if inspectLimit > 0 && len(learned) > inspectLimit {
		learned = learned[:inspectLimit]
	}

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tCATEGORY\tSTRENGTH\tHITS")
	for _, e := range learned {
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%d\n", e.Label, e.Category, e.Vector.Norm(), e.Hits)
	}
	return w.Flush()
}
