// Package tmdb is a minimal client for the TMDB multi search endpoint.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"watch-history/pkg/domain"
	"watch-history/pkg/httpclient"
)

const (
	DefaultBaseURL = "https://api.themoviedb.org/3"

	// ImageBaseURL is prefixed to relative poster/backdrop paths.
	ImageBaseURL = "https://image.tmdb.org/t/p/w500"
)

var (
	ErrMissingAPIKey = errors.New("tmdb api key is not configured")
	ErrUnauthorized  = errors.New("tmdb rejected the api key")
)

// StatusError is returned for any non-200 answer from TMDB.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tmdb: unexpected status code %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tmdb: unexpected status code %d", e.StatusCode)
}

// SearchResult is one entry of a multi search response. Movies carry
// title/release_date, shows carry name/first_air_date.
type SearchResult struct {
	ID               int64    `json:"id"`
	Adult            bool     `json:"adult"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"original_name"`
	Title            string   `json:"title"`
	OriginalTitle    string   `json:"original_title"`
	Overview         string   `json:"overview"`
	MediaType        string   `json:"media_type"`
	PosterPath       *string  `json:"poster_path"`
	BackdropPath     *string  `json:"backdrop_path"`
	OriginalLanguage *string  `json:"original_language"`
	GenreIDs         []int    `json:"genre_ids"`
	Popularity       float64  `json:"popularity"`
	VoteCount        int64    `json:"vote_count"`
	VoteAverage      float64  `json:"vote_average"`
	FirstAirDate     *string  `json:"first_air_date"`
	ReleaseDate      *string  `json:"release_date"`
	OriginCountry    []string `json:"origin_country"`
}

// SearchResponse is the body of GET /search/multi.
type SearchResponse struct {
	Page         int            `json:"page"`
	Results      []SearchResult `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// Client calls the TMDB v3 API.
type Client struct {
	apiKey  string
	baseURL string
	http    *httpclient.HTTPClient
}

// NewClient creates a TMDB client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.NewClient(httpclient.JSONClient, timeout),
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

// SearchMulti runs one multi search for query. Results keep TMDB ranking.
func (c *Client) SearchMulti(ctx context.Context, query string) (*SearchResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", query)
	endpoint := c.baseURL + "/search/multi?" + params.Encode()

	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("tmdb search %q: %w", query, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: readStatusMessage(resp.Body)}
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tmdb search response: %w", err)
	}
	return &out, nil
}

// ToMetadata converts a search result into a MetadataResult with absolute
// image URLs.
func (r SearchResult) ToMetadata() *domain.MetadataResult {
	return &domain.MetadataResult{
		ID:               r.ID,
		Adult:            r.Adult,
		Name:             r.Name,
		OriginalName:     r.OriginalName,
		Title:            r.Title,
		OriginalTitle:    r.OriginalTitle,
		Overview:         r.Overview,
		MediaType:        domain.MediaType(r.MediaType),
		PosterURL:        ImageURL(r.PosterPath),
		BackdropURL:      ImageURL(r.BackdropPath),
		OriginalLanguage: r.OriginalLanguage,
		GenreIDs:         r.GenreIDs,
		Popularity:       r.Popularity,
		VoteCount:        r.VoteCount,
		VoteAverage:      r.VoteAverage,
		FirstAirDate:     r.FirstAirDate,
		ReleaseDate:      r.ReleaseDate,
		OriginCountry:    r.OriginCountry,
	}
}

// ImageURL turns a relative TMDB image path into an absolute URL.
// nil and blank paths yield nil; already absolute URLs are kept.
func ImageURL(path *string) *string {
	if path == nil {
		return nil
	}
	p := strings.TrimSpace(*path)
	if p == "" {
		return nil
	}
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return &p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	abs := ImageBaseURL + p
	return &abs
}

// readStatusMessage pulls status_message out of a TMDB error body.
func readStatusMessage(body io.Reader) string {
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&payload); err != nil {
		return ""
	}
	return payload.StatusMessage
}

func drainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
