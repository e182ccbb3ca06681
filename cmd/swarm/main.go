// Command swarm drives a wheeled robot with the swarm decision engine and
// manages its learned state.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-swarm/internal/config"
	"github.com/teslashibe/go-swarm/internal/log"
	"github.com/teslashibe/go-swarm/pkg/engine"
	"github.com/teslashibe/go-swarm/pkg/knowledge"
	"github.com/teslashibe/go-swarm/pkg/persist"
)

var (
	cfgPath  string
	logLevel string
	dataDir  string

	app config.App
)

var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Autonomous navigation engine for a wheeled robot",
	Long: `swarm turns distance-sensor frames into wheel commands and learns
which situations call for which moves.

Safety reflexes and maneuvers always run; the knowledge base and learned
state only steer the robot when nothing is close.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		app, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			app.LogLevel = logLevel
		}
		if dataDir != "" {
			app.DataDir = dataDir
		}
		log.Init(app.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "swarm.yaml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for learned state and the knowledge base")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(kbCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadStatic reads the knowledge base. A missing or unreadable file
// leaves the engine in degraded mode rather than failing.
func loadStatic() []knowledge.Concept {
	path := app.KnowledgePath()
	static, err := knowledge.LoadStatic(path)
	if err != nil {
		log.Warn("knowledge base unavailable", "path", path, "error", err)
		return nil
	}
	return static
}

func openStore() (persist.Store, error) {
	if err := os.MkdirAll(app.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := persist.Open(app.Storage.Backend, app.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", app.Storage.Backend, err)
	}
	return store, nil
}

// openEngine builds an engine over the configured knowledge base and store.
// The caller closes the engine before the store.
func openEngine(ctx context.Context) (*engine.Engine, persist.Store, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(ctx, app.Engine, loadStatic(), store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return eng, store, nil
}
