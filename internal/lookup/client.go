// Package lookup resolves a fingerprint against the AcoustID web service to
// fetch canonical tags and release identifiers. Lookups are best effort: any
// failure leaves the local record untagged rather than failing the scan.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/franz/music-dedup/internal/util"
)

const (
	// DefaultBaseURL is the AcoustID API endpoint
	DefaultBaseURL = "https://api.acoustid.org/v2"

	// UserAgent identifies this application to AcoustID
	UserAgent = "mdd-MusicDedup/1.0.0 (https://github.com/franz/music-dedup)"

	// RateLimit is the minimum spacing between requests (AcoustID asks for
	// no more than 3 req/sec; one per 350ms keeps a margin)
	RateLimit = 350 * time.Millisecond

	// MinScore is the lowest AcoustID match confidence worth using
	MinScore = 0.9
)

// Tags holds the canonical metadata resolved for a fingerprint
type Tags struct {
	RecordingID string
	Title       string
	Artist      string
	Album       string
	ReleaseID   string
	Year        int
}

// Client handles AcoustID API requests with rate limiting
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	userAgent   string
	rateLimiter *time.Ticker
	retryCfg    *util.RetryConfig
}

// NewClient creates a new AcoustID client. The API key comes from the
// application config; an empty key disables lookups at the call site.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
		userAgent:   UserAgent,
		rateLimiter: time.NewTicker(RateLimit),
		retryCfg:    util.DefaultRetryConfig(),
	}
}

// SetBaseURL overrides the API endpoint, mainly for tests
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// Close releases resources used by the client
func (c *Client) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
}

// lookupResponse mirrors the AcoustID lookup JSON
type lookupResponse struct {
	Status  string   `json:"status"`
	Error   *apiErr  `json:"error"`
	Results []result `json:"results"`
}

type apiErr struct {
	Message string `json:"message"`
}

type result struct {
	ID         string      `json:"id"`
	Score      float64     `json:"score"`
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Artists  []artist  `json:"artists"`
	Releases []release `json:"releases"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type release struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  *date  `json:"date"`
}

type date struct {
	Year int `json:"year"`
}

// Lookup queries AcoustID for the fingerprint and returns the best match.
// Returns (nil, nil) when no result clears the confidence bar.
func (c *Client) Lookup(ctx context.Context, fingerprint string, durationSec int) (*Tags, error) {
	if fingerprint == "" {
		return nil, fmt.Errorf("fingerprint cannot be empty")
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("acoustid api key not configured: %w", util.ErrInvalidConfig)
	}

	<-c.rateLimiter.C

	params := url.Values{}
	params.Set("client", c.apiKey)
	params.Set("meta", "recordings+releases")
	params.Set("duration", strconv.Itoa(durationSec))
	params.Set("fingerprint", fingerprint)
	urlStr := fmt.Sprintf("%s/lookup?%s", c.baseURL, params.Encode())

	util.DebugLog("AcoustID API: looking up fingerprint (duration %ds)", durationSec)

	parsed, err := util.RetryWithBackoff(c.retryCfg, func() (*lookupResponse, error) {
		return c.doLookup(ctx, urlStr)
	}, "acoustid lookup")
	if err != nil {
		return nil, err
	}

	if parsed.Status != "ok" {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("acoustid error: %s", msg)
	}

	return bestTags(parsed.Results), nil
}

func (c *Client) doLookup(ctx context.Context, urlStr string) (*lookupResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("acoustid service unavailable (%d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var parsed lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &parsed, nil
}

// bestTags picks the highest-scoring result with a recording attached
func bestTags(results []result) *Tags {
	var best *result
	for i := range results {
		r := &results[i]
		if r.Score < MinScore || len(r.Recordings) == 0 {
			continue
		}
		if best == nil || r.Score > best.Score {
			best = r
		}
	}
	if best == nil {
		util.DebugLog("AcoustID: no result above confidence %.2f", MinScore)
		return nil
	}

	rec := best.Recordings[0]
	tags := &Tags{
		RecordingID: rec.ID,
		Title:       rec.Title,
	}
	if len(rec.Artists) > 0 {
		tags.Artist = rec.Artists[0].Name
	}
	if len(rec.Releases) > 0 {
		rel := rec.Releases[0]
		tags.Album = rel.Title
		tags.ReleaseID = rel.ID
		if rel.Date != nil {
			tags.Year = rel.Date.Year
		}
	}

	util.DebugLog("AcoustID: matched '%s - %s' (release %s, score %.3f)",
		tags.Artist, tags.Title, tags.ReleaseID, best.Score)
	return tags
}
