// Package prober implements the background health check that keeps a
// listing's status current: a non-purged listing transitions between
// "live" and "dead" based on whether its URL answers.
package prober

import (
	"context"
	"net/http"
	"time"

	"github.com/satring/gateway/internal/store"
)

const probeTimeout = 10 * time.Second

// Prober probes listing URLs and records the outcome. It never touches the
// L402 gate or edit-token state; it only moves a listing between live and
// dead.
type Prober struct {
	listings   *store.ListingRepository
	httpClient *http.Client
}

func New(listings *store.ListingRepository) *Prober {
	return &Prober{
		listings: listings,
		httpClient: &http.Client{
			Timeout: probeTimeout,
		},
	}
}

// ProbeOne checks a single listing's URL and records the result. A
// successful HEAD (or GET, for servers that reject HEAD) marks it live; any
// transport failure or non-2xx/3xx response marks it dead and stamps
// dead_since the first time it transitions away from live.
func (p *Prober) ProbeOne(ctx context.Context, l *store.Listing) error {
	now := time.Now().UTC()

	alive := p.reaches(ctx, l.URL)

	status := store.StatusDead
	var deadSince *time.Time
	if alive {
		status = store.StatusLive
	} else if l.DeadSince != nil {
		deadSince = l.DeadSince
	} else {
		deadSince = &now
	}

	return p.listings.SetHealth(ctx, l.ID, status, now, deadSince)
}

// Sweep probes every non-purged listing in turn. Used by the worker's
// periodic tick as a backstop for listings that never got an opportunistic
// probe_listing message (e.g. after a worker outage).
func (p *Prober) Sweep(ctx context.Context) error {
	all, err := p.listings.ListAllNonPurged(ctx)
	if err != nil {
		return err
	}
	for _, l := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = p.ProbeOne(ctx, l)
	}
	return nil
}

func (p *Prober) reaches(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed {
		return p.reachesWithGet(ctx, rawURL)
	}
	return resp.StatusCode < 400
}

func (p *Prober) reachesWithGet(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 400
}
