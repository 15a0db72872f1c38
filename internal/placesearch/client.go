// Package placesearch queries the Google Places text search API.
package placesearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"planahead/internal/place"
)

const (
	DefaultEndpoint = "https://places.googleapis.com/v1/places:searchText"

	fieldMask      = "places.id,places.displayName.text,places.location,places.formattedAddress"
	maxResultCount = 3
	biasRadius     = 500.0
)

var ErrEmptyQuery = errors.New("empty query")

// APIError is a non-2xx answer from the Places API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("places api: status %d: %s", e.Status, e.Body)
}

type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Query struct {
	Text    string
	Referer string
	// Bias biases results towards a 500m circle around it when set.
	Bias *LatLng
}

type Result struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	Location         LatLng `json:"location"`
	FormattedAddress string `json:"formattedAddress"`
}

func (r Result) Candidate() place.Candidate {
	return place.Candidate{
		ExternalID: r.ID,
		Name:       r.DisplayName.Text,
		Address:    r.FormattedAddress,
		Latitude:   r.Location.Latitude,
		Longitude:  r.Location.Longitude,
	}
}

type Client struct {
	APIKey   string
	Endpoint string
	HTTP     *http.Client
	Logger   *zap.Logger

	cache *cache.Cache
}

func NewClient(apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		APIKey:   apiKey,
		Endpoint: DefaultEndpoint,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		Logger:   logger,
		cache:    cache.New(5*time.Minute, 10*time.Minute),
	}
}

type searchRequest struct {
	TextQuery      string        `json:"textQuery"`
	MaxResultCount int           `json:"maxResultCount"`
	LocationBias   *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type searchResponse struct {
	Places []Result `json:"places"`
}

func (c *Client) SearchText(ctx context.Context, q Query) ([]Result, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}

	key := cacheKey(q)
	if v, ok := c.cache.Get(key); ok {
		c.Logger.Debug("place search cache hit", zap.String("query", q.Text))
		return v.([]Result), nil
	}

	body := searchRequest{TextQuery: q.Text, MaxResultCount: maxResultCount}
	if q.Bias != nil {
		body.LocationBias = &locationBias{Circle: circle{Center: *q.Bias, Radius: biasRadius}}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.APIKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)
	if q.Referer != "" {
		req.Header.Set("Referer", q.Referer)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		c.Logger.Warn("place search failed", zap.Int("status", resp.StatusCode), zap.String("query", q.Text))
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("places api: decode: %w", err)
	}
	if out.Places == nil {
		out.Places = []Result{}
	}

	c.cache.Set(key, out.Places, cache.DefaultExpiration)
	return out.Places, nil
}

func cacheKey(q Query) string {
	k := strings.ToLower(q.Text)
	if q.Bias != nil {
		k += fmt.Sprintf("|%.5f,%.5f", q.Bias.Latitude, q.Bias.Longitude)
	}
	return k
}
