package main

import (
	"context"
	"net/http"

	"voicecal/internal/calendar"
	"voicecal/internal/config"
	"voicecal/internal/conflict"
	"voicecal/internal/ics"
	"voicecal/internal/metrics"
	"voicecal/internal/scheduler"
	"voicecal/internal/timeparse"
	"voicecal/internal/view"
)

// pipeline is the wired scheduling stack. Close releases the browser.
type pipeline struct {
	orchestrator *scheduler.Orchestrator
	metrics      *metrics.Metrics
	chrome       *view.Chrome
}

func (p *pipeline) Close() {
	if p.chrome != nil {
		p.chrome.Close()
	}
}

// startChrome is swapped in tests.
var startChrome = view.NewChrome

// newPipeline wires the stack. The browser is not bound to ctx so in-flight
// requests can drain during shutdown; Close tears it down.
func newPipeline(ctx context.Context, conf *config.Config) (*pipeline, error) {
	m := metrics.New()

	chrome, err := startChrome(context.WithoutCancel(ctx), view.ChromeOptions{
		BaseURL:       conf.Calendar.BaseURL,
		ReadySelector: conf.Calendar.ReadySelector,
		UserDataDir:   conf.Browser.UserDataDir,
		ExecPath:      conf.Browser.ExecPath,
		UserAgent:     conf.Browser.UserAgent,
		Headless:      conf.Browser.Headless,
		Width:         conf.Browser.Width,
		Height:        conf.Browser.Height,
		LoadTimeout:   conf.Timeouts.ViewLoad,
	})
	if err != nil {
		return nil, err
	}

	detectorOpts := conflict.Options{
		EventSelector:   conf.Calendar.EventSelector,
		DayViewKey:      conf.Calendar.DayViewKey,
		Settle:          conf.Timeouts.Settle,
		DefaultDuration: conf.DefaultDuration,
		Metrics:         m,
	}
	if conf.ICSFeedURL != "" {
		client := &http.Client{Timeout: conf.Timeouts.ViewLoad}
		detectorOpts.Feed = ics.NewFeed(ics.NewFetcher(conf.ICSFeedURL, client))
	}

	controller := calendar.NewController(calendar.Options{
		HourRowSelector: conf.Calendar.HourRowSelector,
		HourRows:        conf.Calendar.HourRows,
		DialogSelector:  conf.Calendar.DialogSelector,
		DayViewKey:      conf.Calendar.DayViewKey,
		TitleLabels:     conf.Calendar.TitleLabels,
		StartLabels:     conf.Calendar.StartLabels,
		EndLabels:       conf.Calendar.EndLabels,
		SaveLabels:      conf.Calendar.SaveLabels,
		Settle:          conf.Timeouts.Settle,
		DialogVisible:   conf.Timeouts.DialogVisible,
		DialogDetach:    conf.Timeouts.DialogDetach,
		ArtifactDir:     conf.ArtifactDir,
		Metrics:         m,
	})

	orch := scheduler.New(scheduler.Options{
		Parser:         timeparse.NewParser(conf.DefaultDuration),
		Session:        chrome,
		Checker:        conflict.NewDetector(detectorOpts),
		Creator:        controller,
		RequestTimeout: conf.Timeouts.Request,
		Metrics:        m,
	})

	return &pipeline{orchestrator: orch, metrics: m, chrome: chrome}, nil
}
