package nws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/adapter/fetch"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

const (
	acceptGeoJSON = "application/geo+json"

	// nearTermPeriods is how many forecast periods feed the probability.
	nearTermPeriods = 3
)

// Client talks to the api.weather.gov points and forecast endpoints.
type Client struct {
	baseURL string
	http    *fetch.Client
	logger  *slog.Logger
}

// NewClient creates an NWS client. The API rejects requests without a
// descriptive User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    fetch.New(timeout, userAgent),
		logger:  logger,
	}
}

// ForecastURL resolves the gridpoint forecast URL for a station location.
func (c *Client) ForecastURL(ctx context.Context, st radar.Station) (string, error) {
	u := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, st.Lat, st.Lon)
	body, err := c.http.Get(ctx, u, acceptGeoJSON)
	if err != nil {
		return "", err
	}

	var resp pointsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode points response: %w", err)
	}
	if resp.Properties.Forecast == "" {
		return "", errors.New("points response has no forecast URL")
	}
	return resp.Properties.Forecast, nil
}

// Probability returns the highest precipitation probability (percent) over
// the near-term forecast periods. ok is false when no period carries one.
func (c *Client) Probability(ctx context.Context, forecastURL string) (float64, bool, error) {
	body, err := c.http.Get(ctx, forecastURL, acceptGeoJSON)
	if err != nil {
		return 0, false, err
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, false, fmt.Errorf("decode forecast response: %w", err)
	}

	periods := resp.Properties.Periods
	if len(periods) > nearTermPeriods {
		periods = periods[:nearTermPeriods]
	}
	var best float64
	found := false
	for _, p := range periods {
		v := p.ProbabilityOfPrecipitation.Value
		if v == nil {
			continue
		}
		if !found || *v > best {
			best = *v
			found = true
		}
	}
	c.logger.Debug("forecast read", "url", forecastURL, "periods", len(periods), "probability", best, "found", found)
	return best, found, nil
}

// NWS API response types.

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []period `json:"periods"`
	} `json:"properties"`
}

type period struct {
	Name                       string `json:"name"`
	ProbabilityOfPrecipitation struct {
		Value *float64 `json:"value"`
	} `json:"probabilityOfPrecipitation"`
}
