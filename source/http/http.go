// Package http implements mirrorcache.Source by polling an HTTP(S)
// endpoint with conditional GET, supporting both ETag/If-None-Match and
// Last-Modified/If-Modified-Since, with transport-level retry via
// github.com/hashicorp/go-retryablehttp.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	mirrorcache "github.com/hkolbeck/mirror-cache"
)

// Version is the conditional-GET revision token: whichever of ETag and
// Last-Modified the server sent back with the most recent 200 response.
// Servers that send neither always report Updated.
type Version struct {
	ETag         string
	LastModified string
}

// Source polls a single URL with conditional GET.
type Source struct {
	URL string

	// Client is the retryable HTTP client used to issue requests. If nil,
	// a default client (retryablehttp.NewClient with logging disabled) is
	// built lazily and reused.
	Client *retryablehttp.Client

	// Headers are added to every request, e.g. for authentication.
	Headers map[string]string
}

var _ mirrorcache.Source[Version] = (*Source)(nil)

// New returns a Source polling url with a default retryable client.
func New(url string) *Source {
	return &Source{URL: url}
}

func (s *Source) client() *retryablehttp.Client {
	if s.Client != nil {
		return s.Client
	}
	c := retryablehttp.NewClient()
	c.Logger = nil
	s.Client = c
	return c
}

// Fetch implements mirrorcache.Source[Version].
func (s *Source) Fetch(ctx context.Context, previous *Version) (mirrorcache.Outcome[Version], error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return mirrorcache.Outcome[Version]{}, fmt.Errorf("http source: build request: %w", err)
	}
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}
	if previous != nil {
		if previous.ETag != "" {
			req.Header.Set("If-None-Match", previous.ETag)
		}
		if previous.LastModified != "" {
			req.Header.Set("If-Modified-Since", previous.LastModified)
		}
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return mirrorcache.Outcome[Version]{}, fmt.Errorf("http source: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return mirrorcache.UnchangedOutcome[Version](), nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return mirrorcache.Outcome[Version]{}, fmt.Errorf("http source: read body: %w", err)
		}
		version := Version{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		return mirrorcache.UpdatedOutcome(version, body), nil
	default:
		return mirrorcache.Outcome[Version]{}, fmt.Errorf("http source: unexpected status %s", resp.Status)
	}
}
