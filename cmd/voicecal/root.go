package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voicecal/internal/config"
	appLog "voicecal/internal/log"
)

// flagConfig holds CLI flag values that override the config file.
type flagConfig struct {
	configPath string
	listen     string
	headless   bool
}

func newRootCmd() *cobra.Command {
	var flags flagConfig

	root := &cobra.Command{
		Use:   "voicecal",
		Short: "Turn spoken scheduling requests into calendar events",
		Long: `voicecal parses a spoken Chinese scheduling request, checks the remote
calendar for overlapping entries and, when the slot is free, creates the
event through the calendar's web UI.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "voicecal version %s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "./voicecal.yaml", "Path to config file")
	pf.StringVar(&flags.listen, "listen", "", "HTTP listen address (overrides config if set)")
	pf.BoolVar(&flags.headless, "headless", true, "Run the browser headless (overrides config if set)")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		return loadConfig(cmd, &flags)
	}

	root.AddCommand(
		newServeCmd(load),
		newParseCmd(load),
		newScheduleCmd(load),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file, applies flag overrides and sets the log
// level.
func loadConfig(cmd *cobra.Command, flags *flagConfig) (*config.Config, error) {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return nil, err
	}

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if cmd.Flags().Changed("headless") {
		conf.Browser.Headless = flags.headless
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Debug("effective config",
		"listen", conf.Listen,
		"artifact_dir", conf.ArtifactDir,
		"base_url", conf.Calendar.BaseURL,
		"headless", conf.Browser.Headless,
		"ics_feed", conf.ICSFeedURL != "",
		"basic_auth", conf.BasicAuth != nil,
	)
	return conf, nil
}

// signalContext is canceled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "voicecal version %s\n", version)
		},
	}
}
