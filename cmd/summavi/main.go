// Command summavi analyzes fitness-device recordings: it extracts channel
// time series from FIT files, runs sliding-window aggregations over them
// and computes power-duration curves.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/summavi/summavi/internal/config"
	"github.com/summavi/summavi/internal/settings"
	"github.com/summavi/summavi/pkg/api"
	"github.com/summavi/summavi/pkg/fitfile"
	"github.com/summavi/summavi/pkg/pdc"
	"github.com/summavi/summavi/pkg/storage"
	"github.com/summavi/summavi/pkg/window"
)

const version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var settingsFile string

	root := &cobra.Command{
		Use:           "summavi",
		Short:         "Sliding-window analysis of fitness-device recordings",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&settingsFile, "settings", "",
		"YAML settings file (default: built-in settings)")

	root.AddCommand(
		newPDCCommand(&settingsFile),
		newWindowCommand(),
		newChannelsCommand(),
		newServeCommand(&settingsFile),
	)
	return root
}

// curveConfig resolves the curve parameters from the given settings file,
// or from the embedded defaults when none is given.
func curveConfig(settingsFile string) (pdc.Config, error) {
	var (
		doc settings.Document
		err error
	)
	if settingsFile == "" {
		doc, err = settings.Default()
	} else {
		doc, err = settings.NewStore().LoadAll(settingsFile)
	}
	if err != nil {
		return pdc.Config{}, err
	}

	group, err := doc.Group(pdc.SettingsGroup)
	if err != nil {
		return pdc.Config{}, err
	}
	return pdc.ConfigFromGroup(group)
}

// openProvider opens the extraction cache and wires the caching provider
// over it. The caller must Close the returned store.
func openProvider() (*storage.SeriesStore, *storage.CachingProvider, error) {
	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.Open(cfg.ToStorageConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open extraction cache: %w", err)
	}
	return store, storage.NewCachingProvider(store, fitfile.Extract), nil
}

func newPDCCommand(settingsFile *string) *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "pdc <recording.fit>",
		Short: "Compute the power-duration curve of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := curveConfig(*settingsFile)
			if err != nil {
				return err
			}

			ch, err := fitfile.ParseChannel(channel)
			if err != nil {
				return err
			}

			store, provider, err := openProvider()
			if err != nil {
				return err
			}
			defer store.Close()

			series, err := provider.Series(cmd.Context(), args[0], ch)
			if err != nil {
				return err
			}

			curve, err := pdc.Compute(series, cfg)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DURATION [s]\tBEST MEAN [W]")
			for _, p := range curve {
				fmt.Fprintf(tw, "%.0f\t%.1f\n", p.Duration, p.Power)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&channel, "channel", string(fitfile.ChannelPower), "channel to aggregate")
	return cmd
}

func newWindowCommand() *cobra.Command {
	var (
		channel    string
		length     float64
		step       float64
		origin     float64
		originSet  bool
		aggregator string
	)

	cmd := &cobra.Command{
		Use:   "window <recording.fit>",
		Short: "Run one sliding-window sweep over a recording channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			originSet = cmd.Flags().Changed("origin")

			fn, err := pdc.Aggregator(aggregator)
			if err != nil {
				return err
			}

			ch, err := fitfile.ParseChannel(channel)
			if err != nil {
				return err
			}

			store, provider, err := openProvider()
			if err != nil {
				return err
			}
			defer store.Close()

			series, err := provider.Series(cmd.Context(), args[0], ch)
			if err != nil {
				return err
			}

			spec := window.Spec{Length: length, Step: step}
			if originSet {
				spec.Origin = &origin
			}

			it, err := window.AdvanceValues(series, spec, fn)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BEGIN [s]\tEND [s]\tFIRST\tLAST\tRESULT")
			for it.Next() {
				w := it.Window()
				if w.Result.Failed() {
					fmt.Fprintf(tw, "%.1f\t%.1f\t%d\t%d\tfailed: %v\n",
						w.BeginTime, w.EndTime, w.BeginIndex, w.EndIndex, w.Result.Err)
					continue
				}
				fmt.Fprintf(tw, "%.1f\t%.1f\t%d\t%d\t%.2f\n",
					w.BeginTime, w.EndTime, w.BeginIndex, w.EndIndex, w.Result.Value)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&channel, "channel", string(fitfile.ChannelPower), "channel to aggregate")
	cmd.Flags().Float64Var(&length, "length", 30, "window length [s]")
	cmd.Flags().Float64Var(&step, "step", 1, "window step [s]")
	cmd.Flags().Float64Var(&origin, "origin", 0, "start time of the first window [s] (default: first sample)")
	cmd.Flags().StringVar(&aggregator, "agg", "mean", "aggregator: mean, sum, max, min, median")
	return cmd
}

func newChannelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "channels <recording.fit>",
		Short: "List the channels present in a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CHANNEL\tSAMPLES\tSPAN [s]")
			for _, ch := range fitfile.Channels() {
				series, err := fitfile.Extract(args[0], ch)
				if err != nil {
					fmt.Fprintf(tw, "%s\t-\t-\n", ch)
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%.0f\n", ch, series.Len(), series.Span())
			}
			return tw.Flush()
		},
	}
}

func newServeCommand(settingsFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve window runs and curve computations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()
			log := logger.Sugar()

			cfg := config.DefaultConfig()
			if *settingsFile != "" {
				cfg.Settings.File = *settingsFile
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			curveCfg, err := curveConfig(cfg.Settings.File)
			if err != nil {
				return err
			}

			store, err := storage.Open(cfg.ToStorageConfig())
			if err != nil {
				return fmt.Errorf("failed to open extraction cache: %w", err)
			}
			defer store.Close()

			provider := storage.NewCachingProvider(store, fitfile.Extract)
			server := api.NewServer(cfg.Server.ListenAddr, provider, curveCfg, logger)

			go func() {
				if err := server.Start(); err != nil {
					log.Warnw("server stopped", "err", err)
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan

			log.Info("shutdown signal received, stopping server")

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
			defer cancel()
			return server.Stop(ctx)
		},
	}
}
