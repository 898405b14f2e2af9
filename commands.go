package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gregLibert/travel-card/internal/config"
	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/desfire"
	"github.com/gregLibert/travel-card/pkg/hsl"
	"github.com/gregLibert/travel-card/pkg/nysse"
	"github.com/gregLibert/travel-card/pkg/pcsc"
	"github.com/gregLibert/travel-card/pkg/session"
	"github.com/gregLibert/travel-card/pkg/tlv"
	"github.com/gregLibert/travel-card/pkg/transport"
)

func newReader(cfg *config.Config, types []card.Type) *session.Reader {
	return &session.Reader{
		Types:      types,
		RetryLimit: cfg.RetryLimit,
		RetryDelay: cfg.RetryDelay,
		Log:        logrus.StandardLogger(),
	}
}

// withCard connects to the card on the configured reader and runs fn over an
// open transport adapter.
func withCard(ctx context.Context, cfg *config.Config, fn func(*transport.Adapter) error) error {
	pc, err := pcsc.Establish(logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer func() {
		if err := pc.Release(); err != nil {
			logrus.WithError(err).Warn("failed to release context")
		}
	}()

	reader, err := pc.Reader(cfg.Reader)
	if err != nil {
		return err
	}
	logrus.WithField("reader", reader).Info("using reader")

	link, err := pc.Tag(reader).Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if c, ok := link.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				logrus.WithError(err).Warn("failed to disconnect card")
			}
		}
	}()

	a := transport.NewAdapter(link, transport.WithTimeout(cfg.ExchangeTimeout))
	a.Open()
	defer a.Close()
	return fn(a)
}

func newReadCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Read the card currently on the reader",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := card.Resolve(cfg.CardTypes)
			if err != nil {
				return err
			}
			return withCard(cmd.Context(), cfg, func(a *transport.Adapter) error {
				snap, err := newReader(cfg, types).Read(cmd.Context(), a)
				if err != nil {
					return fmt.Errorf("%s: %w", card.StatusOf(err), err)
				}
				return writeReport(cmd.OutOrStdout(), snap)
			})
		},
	}
}

func newWatchCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Wait for cards and read each one presented",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			types, err := card.Resolve(cfg.CardTypes)
			if err != nil {
				return err
			}

			pc, err := pcsc.Establish(logrus.StandardLogger())
			if err != nil {
				return err
			}
			defer pc.Release()

			reader, err := pc.Reader(cfg.Reader)
			if err != nil {
				return err
			}

			events := make(chan session.Event)
			updates := make(chan session.Update)
			m := session.New(pc,
				session.WithTypes(types...),
				session.WithRetry(cfg.RetryLimit, cfg.RetryDelay),
				session.WithExchangeTimeout(cfg.ExchangeTimeout),
				session.WithUpdates(updates),
			)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			watchErr := make(chan error, 1)
			go func() {
				watchErr <- pc.Watch(ctx, reader, cfg.PollInterval, events)
				cancel()
			}()
			go func() {
				for u := range updates {
					printUpdate(cmd, u)
				}
			}()

			logrus.WithField("reader", reader).Info("waiting for cards (Ctrl+C to exit)")
			err = m.Run(ctx, events)
			close(updates)

			if werr := <-watchErr; werr != nil && !errors.Is(werr, context.Canceled) {
				return werr
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func printUpdate(cmd *cobra.Command, u session.Update) {
	out := cmd.OutOrStdout()
	switch u.Status {
	case card.StatusReady:
		if err := writeReport(out, u.Snapshot); err != nil {
			logrus.WithError(err).Error("failed to write report")
		}
	case card.StatusReading:
		if u.State == session.Detecting {
			fmt.Fprintln(out, ">> Card detected, reading...")
		}
	default:
		fmt.Fprintf(out, ">> %s\n", u.Status)
	}
}

func newDumpCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "dump FILE",
		Short: "Record the card application into a BER-TLV dump file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := card.Resolve(cfg.CardTypes)
			if err != nil {
				return err
			}
			return withCard(cmd.Context(), cfg, func(a *transport.Adapter) error {
				sel := desfire.NewSelector(a, logrus.StandardLogger())
				for _, t := range types {
					app, err := desfire.Capture(cmd.Context(), sel, t)
					if errors.Is(err, card.ErrUnsupportedCard) {
						continue
					}
					if err != nil {
						return err
					}
					return writeDump(cmd, args[0], app)
				}
				return fmt.Errorf("%w: no known application", card.ErrUnsupportedCard)
			})
		},
	}
}

func writeDump(cmd *cobra.Command, path string, app desfire.Application) error {
	d := app.Dump()
	raw, err := tlv.EncodeDump(d)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tlv.DescribeDump(d))
	logrus.WithFields(logrus.Fields{"file": path, "bytes": len(raw)}).Info("dump written")
	return nil
}

func newDecodeCmd(cfg *config.Config) *cobra.Command {
	var describe bool
	cmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Decode a recorded card dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			snap, d, err := decodeDump(cmd.Context(), cfg, raw)
			if d != nil && describe {
				fmt.Fprintln(cmd.OutOrStdout(), tlv.DescribeDump(d))
			}
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().BoolVar(&describe, "describe", false, "print the raw dump content before the report")
	return cmd
}

// decodeDump replays a dump through the regular read sequence.
func decodeDump(ctx context.Context, cfg *config.Config, raw []byte) (*card.Snapshot, *tlv.Dump, error) {
	d, err := tlv.DecodeDump(raw)
	if err != nil {
		return nil, nil, err
	}
	app, err := desfire.FromDump(d)
	if err != nil {
		return nil, d, err
	}

	names := cfg.CardTypes
	if len(names) == 0 && app.CardType != "" {
		names = []string{strings.TrimSpace(app.CardType)}
	}
	types, err := card.Resolve(names)
	if err != nil {
		return nil, d, err
	}

	a := transport.NewAdapter(desfire.NewEmulator(app), transport.WithTimeout(cfg.ExchangeTimeout))
	a.Open()
	defer a.Close()

	snap, err := newReader(cfg, types).Read(ctx, a)
	if err != nil {
		return nil, d, fmt.Errorf("%s: %w", card.StatusOf(err), err)
	}
	return snap, d, nil
}

func newSampleCmd() *cobra.Command {
	var cardType string
	cmd := &cobra.Command{
		Use:   "sample FILE",
		Short: "Write a dump of a sample card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				app desfire.Application
				err error
			)
			switch cardType {
			case hsl.Name:
				app, err = hsl.NewImage(sampleCard())
			case nysse.Name:
				app, err = nysse.NewImage(sampleNysseCard())
			default:
				return fmt.Errorf("no sample for card type %q", cardType)
			}
			if err != nil {
				return err
			}
			return writeDump(cmd, args[0], app)
		},
	}
	cmd.Flags().StringVar(&cardType, "card", hsl.Name, "card type of the sample (hsl or nysse)")
	return cmd
}
