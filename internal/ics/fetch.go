package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "voicecal/internal/log"
)

// maxBody caps a feed download.
const maxBody = 16 << 20

// Fetcher downloads an ICS export. Nothing is cached: a conflict check must
// see the calendar as it is now.
type Fetcher struct {
	client *http.Client
	url    string
}

// NewFetcher creates a Fetcher for rawURL. A nil client gets a 15s timeout.
func NewFetcher(rawURL string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, url: rawURL}
}

// Fetch returns the feed body. Any non-200 status is an error.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	if f.url == "" {
		return nil, errors.New("ics: feed URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics: fetch %s: %w", redactURL(f.url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics: fetch %s: %s", redactURL(f.url), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("ics: read %s: %w", redactURL(f.url), err)
	}

	appLog.Debug("ics fetched", "url", redactURL(f.url), "bytes", len(body), "took", time.Since(start))
	return body, nil
}

// redactURL keeps only scheme and host; private feed URLs carry their secret
// in the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
