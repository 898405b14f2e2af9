package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gregLibert/travel-card/internal/config"
	"github.com/gregLibert/travel-card/internal/logging"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var logCloser interface{ Close() error }

	root := &cobra.Command{
		Use:           "travelcard",
		Short:         "Read and decode contactless travel cards",
		Long:          "travelcard reads DESFire travel cards through a PC/SC reader and decodes balance, season tickets, history and profile.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			closer, err := logging.Setup(logrus.StandardLogger(), cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			logCloser = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}
	cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newReadCmd(cfg),
		newWatchCmd(cfg),
		newDumpCmd(cfg),
		newDecodeCmd(cfg),
		newSampleCmd(),
	)
	return root
}
