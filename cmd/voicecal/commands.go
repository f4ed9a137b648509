package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voicecal/internal/config"
	appLog "voicecal/internal/log"
	"voicecal/internal/model"
	"voicecal/internal/timeparse"
	"voicecal/internal/web"
)

type configLoader func(cmd *cobra.Command) (*config.Config, error)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Requests are queued and run one at a time against a
single browser session that keeps the calendar login in its profile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			p, err := newPipeline(ctx, conf)
			if err != nil {
				appLog.Error("failed to start browser", err)
				return err
			}
			defer p.Close()

			appLog.Info("voicecal starting", "version", version, "listen", conf.Listen)
			srv := web.NewServer(conf, p.orchestrator, p.metrics)
			if err := srv.ListenAndServe(ctx, conf.Timeouts.Request); err != nil {
				appLog.Error("HTTP server stopped", err)
				return err
			}
			appLog.Info("voicecal exiting")
			return nil
		},
	}
}

func newParseCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text>",
		Short: "Show how a request would be understood, without touching the calendar",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := load(cmd)
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			p := timeparse.NewParser(conf.DefaultDuration)

			out := struct {
				Date     string          `json:"date"`
				Title    string          `json:"title"`
				Interval *model.Interval `json:"interval,omitempty"`
				Missing  []string        `json:"missing,omitempty"`
				Prompt   string          `json:"prompt,omitempty"`
			}{
				Date:  p.ParseDate(text).Format("2006-01-02"),
				Title: timeparse.ExtractTitle(text),
			}

			sr, err := p.Parse(text)
			var inc *timeparse.IncompleteError
			switch {
			case errors.As(err, &inc):
				for _, f := range inc.Missing {
					out.Missing = append(out.Missing, string(f))
				}
				out.Prompt = inc.Prompt
			case err != nil:
				return err
			default:
				iv := sr.Interval()
				out.Interval = &iv
				out.Title = sr.Title
			}
			return printJSON(cmd, out)
		},
	}
}

func newScheduleCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <text>",
		Short: "Run one request through the full pipeline and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			p, err := newPipeline(ctx, conf)
			if err != nil {
				appLog.Error("failed to start browser", err)
				return err
			}
			defer p.Close()

			resp := p.orchestrator.Handle(ctx, model.ScheduleVoiceRequest{RawText: strings.Join(args, " ")})
			if err := printJSON(cmd, resp); err != nil {
				return err
			}
			if resp.Status == model.StatusError {
				return fmt.Errorf("schedule failed: %s", resp.Message)
			}
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
