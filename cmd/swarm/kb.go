package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/knowledge"
)

var (
	kbOut   string
	kbForce bool
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the static knowledge base",
	Long: `Manage the static knowledge base.

Subcommands:
  seed  - Write the built-in prototype concepts
  show  - Summarize the knowledge base by category`,
}

var kbSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the built-in prototype concepts",
	RunE:  runKBSeed,
}

var kbShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize the knowledge base by category",
	RunE:  runKBShow,
}

func init() {
	kbSeedCmd.Flags().StringVarP(&kbOut, "out", "o", "", "Output file (default: configured knowledge base)")
	kbSeedCmd.Flags().BoolVarP(&kbForce, "force", "f", false, "Overwrite an existing file")

	kbCmd.AddCommand(kbSeedCmd)
	kbCmd.AddCommand(kbShowCmd)
}

func runKBSeed(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := kbOut
	if path == "" {
		path = app.KnowledgePath()
	}
	if _, err := os.Stat(path); err == nil && !kbForce {
		return fmt.Errorf("%s exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	concepts := knowledge.Prototypes()
	if err := knowledge.WriteStatic(path, concepts); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %d concepts to %s\n", len(concepts), path)
	return nil
}

func runKBShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := app.KnowledgePath()
	concepts, err := knowledge.LoadStatic(path)
	if err != nil {
		return err
	}

	counts := make(map[action.Category]int)
	for _, c := range concepts {
		counts[c.Category]++
	}

	fmt.Fprintf(out, "%s: %d concepts\n\n", path, len(concepts))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tCONCEPTS\tACTION")
	for _, cat := range action.Categories() {
		if counts[cat] == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", cat, counts[cat], action.BehaviorOf(cat).Action)
	}
	return w.Flush()
}
