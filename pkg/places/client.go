// Package places provides a client for the Google Geocoding and Places Web
// Service APIs: geocoding a free-text location, paginated nearby search, and
// per-place detail lookup.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api"

	// DefaultRadiusMeters is the proximity search radius used when the
	// request does not set one.
	DefaultRadiusMeters = 5000

	// defaultPageDelay is how long a next_page_token needs before it becomes
	// valid on the provider side.
	defaultPageDelay = 2 * time.Second

	// detailFields is the fixed field set requested for every place detail
	// lookup.
	detailFields = "name,website,formatted_phone_number,formatted_address,url,review,user_ratings_total,types,geometry,photos,editorial_summary"
)

// Client performs Google Geocoding and Places API operations.
type Client interface {
	// Geocode resolves a free-text location into coordinates. A provider
	// status other than OK (or an empty result list) yields a *StatusError.
	Geocode(ctx context.Context, address string) (*LatLng, error)

	// NearbySearch enumerates places around a point, following pagination
	// tokens until MaxResults places are collected or no further page exists.
	// MaxResults <= 0 means no cap: every page the provider issues a token
	// for is fetched.
	NearbySearch(ctx context.Context, req NearbySearchRequest) ([]Place, error)

	// Details fetches the detail record for one place ID. Missing fields in
	// the provider response map to zero values, never an error.
	Details(ctx context.Context, placeID string) (*PlaceDetail, error)
}

// LatLng is a geographic coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is one result from a nearby search page.
type Place struct {
	Name     string `json:"name"`
	PlaceID  string `json:"place_id"`
	Vicinity string `json:"vicinity"`
}

// PlaceDetail is the normalized detail record for one place.
type PlaceDetail struct {
	Name                 string           `json:"name"`
	Website              string           `json:"website"`
	FormattedPhoneNumber string           `json:"formatted_phone_number"`
	FormattedAddress     string           `json:"formatted_address"`
	URL                  string           `json:"url"`
	UserRatingsTotal     int              `json:"user_ratings_total"`
	Types                []string         `json:"types"`
	EditorialSummary     EditorialSummary `json:"editorial_summary"`
}

// EditorialSummary holds the provider's short editorial description.
type EditorialSummary struct {
	Overview string `json:"overview"`
}

// NearbySearchRequest parameterizes a proximity search.
type NearbySearchRequest struct {
	Location     LatLng
	RadiusMeters int    // defaults to DefaultRadiusMeters
	Type         string // optional place type filter
	MaxResults   int    // <= 0 fetches all pages
}

// StatusError reports a non-OK geocoding status from the provider, carrying
// the provider's status code and error message.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("places: geocode status %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("places: geocode status %s", e.Status)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithPageDelay overrides the wait before fetching a token-bearing page.
func WithPageDelay(d time.Duration) Option {
	return func(c *httpClient) {
		c.pageDelay = d
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	pageDelay time.Duration
}

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:   rate.NewLimiter(10, 10),
		pageDelay: defaultPageDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location LatLng `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *httpClient) Geocode(ctx context.Context, address string) (*LatLng, error) {
	params := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}

	var resp geocodeResponse
	if err := c.getJSON(ctx, "/geocode/json", params, &resp); err != nil {
		return nil, eris.Wrap(err, "places: geocode request")
	}

	if resp.Status != "OK" || len(resp.Results) == 0 {
		return nil, &StatusError{Status: resp.Status, Message: resp.ErrorMessage}
	}

	loc := resp.Results[0].Geometry.Location
	return &loc, nil
}

type nearbyResponse struct {
	Results       []Place `json:"results"`
	NextPageToken string  `json:"next_page_token"`
}

func (c *httpClient) NearbySearch(ctx context.Context, req NearbySearchRequest) ([]Place, error) {
	radius := req.RadiusMeters
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}

	var places []Place
	pageToken := ""
	for req.MaxResults <= 0 || len(places) < req.MaxResults {
		params := url.Values{
			"location": {formatLatLng(req.Location)},
			"radius":   {strconv.Itoa(radius)},
			"key":      {c.apiKey},
		}
		if req.Type != "" {
			params.Set("type", req.Type)
		}
		if pageToken != "" {
			// The provider needs a short delay before a page token activates.
			if err := sleepCtx(ctx, c.pageDelay); err != nil {
				return places, err
			}
			params.Set("pagetoken", pageToken)
		}

		var resp nearbyResponse
		if err := c.getJSON(ctx, "/place/nearbysearch/json", params, &resp); err != nil {
			return nil, eris.Wrap(err, "places: nearby search request")
		}

		places = append(places, resp.Results...)
		zap.L().Debug("places: nearby search page",
			zap.Int("page_results", len(resp.Results)),
			zap.Int("accumulated", len(places)),
			zap.Bool("has_next_page", resp.NextPageToken != ""),
		)

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if req.MaxResults > 0 && len(places) > req.MaxResults {
		places = places[:req.MaxResults]
	}
	return places, nil
}

type detailsResponse struct {
	Result PlaceDetail `json:"result"`
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*PlaceDetail, error) {
	params := url.Values{
		"place_id": {placeID},
		"fields":   {detailFields},
		"key":      {c.apiKey},
	}

	var resp detailsResponse
	if err := c.getJSON(ctx, "/place/details/json", params, &resp); err != nil {
		return nil, eris.Wrap(err, "places: details request")
	}

	return &resp.Result, nil
}

// getJSON performs a rate-limited GET and unmarshals the JSON body into out.
func (c *httpClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "places: rate limit")
	}

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "places: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "places: unmarshal response")
	}

	return nil
}

func formatLatLng(p LatLng) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
