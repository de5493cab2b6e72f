package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ivlev/marketreel/internal/config"
	"github.com/ivlev/marketreel/internal/logging"
	"github.com/ivlev/marketreel/internal/system"
)

// set by -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	root := &cobra.Command{
		Use:           "marketreel",
		Short:         "marketreel - slide-deck market videos",
		Long:          "Renders declarative market-update slide decks into MP4 videos with narration and music.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(verbose)
			system.InitResourceLimits(log.Logger)

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg.BuildVersion = version

			cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./marketreel.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newListCmd(),
		newPlanCmd(),
		newStillCmd(),
		newRenderCmd(),
		newWatchCmd(),
		newProbeCmd(),
		newConfigCmd(),
	)
	return root
}
