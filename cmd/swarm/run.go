package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-swarm/internal/log"
	"github.com/teslashibe/go-swarm/pkg/cloud"
	"github.com/teslashibe/go-swarm/pkg/control"
	"github.com/teslashibe/go-swarm/pkg/transport"
	"github.com/teslashibe/go-swarm/pkg/web"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision loop against a robot",
	Long: `Run the decision loop.

With robot.url set (or ROBOT_URL), swarm dials the robot controller.
Otherwise it listens on the configured address and the robot connects to
/ws/robot. The dashboard, when enabled, shares that listener.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, store, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := eng.Close(closeCtx); err != nil {
			log.Error("failed to save learning state", "error", err)
		}
	}()

	var server *web.Server
	if app.Dashboard || app.Robot.URL == "" {
		server = web.NewServer(app.Listen, app.StaticDir)
	}

	var link control.Link
	if app.Robot.URL != "" {
		client, err := transport.Dial(ctx, app.Robot.URL, transport.DefaultOptions())
		if err != nil {
			return err
		}
		defer client.Close()
		link = client
	} else {
		robots := cloud.NewHub(4)
		robots.RegisterRoutes(server.App())
		robots.RegisterAPIRoutes(server.API())
		link = robots
		log.Info("waiting for robot", "url", fmt.Sprintf("ws://%s/ws/robot", app.Listen))
	}

	opts := control.DefaultOptions()
	opts.FrameTimeout = app.FrameTimeout
	if server != nil {
		opts.Publish = server.Publish
	}
	loop := control.New(eng, link, opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	if server != nil {
		g.Go(func() error { return server.Run(gctx) })
	}

	err = g.Wait()
	st := eng.Stats()
	log.Info("session finished",
		"cycles", st.Cycles,
		"feedback", st.Feedback,
		"success_rate", fmt.Sprintf("%.1f%%", st.SuccessRate*100),
		"learned", st.LearnedConcepts,
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
