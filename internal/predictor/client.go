// Package predictor provides the client for the remote watering scoring
// service. It builds an observation payload from the latest sensor snapshot,
// posts it to the service's /predict endpoint, and extracts the boolean
// watering recommendation from the response.
//
// Every failure is classified into a sentinel error with a short diagnostic
// message; nothing in this package is ever fatal. The client performs no
// retries: the scheduling loop owns the cadence, and the next cycle is the
// retry.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/udare/waterctl/internal/models"
)

// Failure classification. The engine only needs to know that an attempt
// failed; the distinction lives in the diagnostic message and in metrics.
var (
	// ErrLinkDown means no network association exists at call time.
	ErrLinkDown = errors.New("network link down")
	// ErrNoTemperature means the primary feature is unavailable and no
	// request was sent.
	ErrNoTemperature = errors.New("temperature unavailable")
	// ErrStatus means the service answered with a non-success status.
	ErrStatus = errors.New("non-success response status")
	// ErrBadResponse means the response body lacks a usable decision.
	ErrBadResponse = errors.New("malformed prediction response")
)

// LinkChecker reports whether a usable network association exists. The
// default implementation dials the scoring host; tests substitute their own.
type LinkChecker interface {
	LinkUp() bool
}

// Client talks to the remote scoring service.
type Client struct {
	baseURL     string
	lightOffset int
	httpClient  *http.Client
	link        LinkChecker
}

// Option configures optional client behavior.
type Option func(*Client)

// WithLinkChecker replaces the default TCP-dial link probe.
func WithLinkChecker(lc LinkChecker) Option {
	return func(c *Client) { c.link = lc }
}

// NewClient creates a new scoring service client. The timeout applies to the
// whole request; no shorter cancellation is layered on top.
func NewClient(baseURL string, timeout time.Duration, lightOffset int, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		lightOffset: lightOffset,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.link == nil {
		c.link = &dialChecker{target: baseURL, timeout: timeout}
	}
	return c
}

// observation is the request payload for /predict. AirHumidity is a pointer
// so an unavailable reading is carried as an explicit JSON null, never as a
// numeric placeholder.
type observation struct {
	Temperature  float64  `json:"temperature"`
	AirHumidity  *float64 `json:"air_humidity"`
	Luminosity   int      `json:"luminosity"`
	SoilMoisture int      `json:"soil_moisture"`
}

// Predict sends the snapshot to the scoring service and returns the watering
// decision. On success msg is "OK"; on failure the returned error classifies
// the cause and msg carries the operator-facing diagnostic.
func (c *Client) Predict(ctx context.Context, snap models.Snapshot) (bool, string, error) {
	if !c.link.LinkUp() {
		return false, "network disconnected", ErrLinkDown
	}
	if !snap.TemperatureOK {
		return false, "temperature unavailable", ErrNoTemperature
	}

	obs := observation{
		// One decimal place, matching what the scoring model was trained on.
		Temperature:  roundTenth(snap.Temperature),
		Luminosity:   snap.Light - c.lightOffset,
		SoilMoisture: snap.SoilPercent,
	}
	if snap.HumidityOK {
		hum := snap.Humidity
		obs.AirHumidity = &hum
	}

	body, err := json.Marshal(obs)
	if err != nil {
		return false, "encode failed", fmt.Errorf("failed to encode observation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return false, "request build failed", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, "request failed", fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("HTTP %d from predictor", resp.StatusCode),
			fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return false, "unparseable response body", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	raw, ok := fields["should_water"]
	if !ok {
		return false, "response missing should_water", ErrBadResponse
	}
	decision, err := decodeBool(raw)
	if err != nil {
		return false, "response missing should_water", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	return decision, "OK", nil
}

// Health probes the service's /health endpoint. Used for a boot-time log
// line only; a failing health check never blocks startup.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return nil
}

// decodeBool accepts the decision as a JSON boolean or as the numeric
// encodings 1/0 that older scoring builds emit.
func decodeBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		switch n {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, fmt.Errorf("numeric decision %v is not 0 or 1", n)
	}
	return false, fmt.Errorf("decision %s is neither boolean nor 0/1", string(raw))
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// dialChecker treats the scoring host being reachable over TCP as the link
// signal. On a single-board controller this is the closest analogue to the
// firmware's association check.
type dialChecker struct {
	target  string
	timeout time.Duration
}

func (d *dialChecker) LinkUp() bool {
	u, err := url.Parse(d.target)
	if err != nil {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host = net.JoinHostPort(u.Hostname(), "443")
		default:
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}
	timeout := d.timeout
	if timeout <= 0 || timeout > 3*time.Second {
		timeout = 3 * time.Second
	}
	conn, err := net.DialTimeout("tcp", host, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
