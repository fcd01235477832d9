// Package detector talks to the face-analysis service that turns camera
// frames into emotion labels.
package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// Client handles communication with the face-analysis backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds detector client configuration.
type Config struct {
	BaseURL string        // face-analysis API URL (default: http://localhost:5005)
	Timeout time.Duration // request timeout (default: 5s)
}

// DefaultConfig returns defaults for a local face-analysis service.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:5005",
		Timeout: 5 * time.Second,
	}
}

// NewClient creates a new detector client.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Analysis is the service's verdict on one frame. Emotion scores are
// percentages.
type Analysis struct {
	FacesDetected int                `json:"faces_detected"`
	Emotion       string             `json:"emotion"`
	Emotions      map[string]float64 `json:"emotions"`
	FaceLocations [][4]int           `json:"face_locations,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// HasFace reports whether the frame contained at least one face.
func (a Analysis) HasFace() bool {
	return a.FacesDetected > 0
}

// Confidence returns the dominant emotion's score.
func (a Analysis) Confidence() float64 {
	return a.Emotions[a.Emotion]
}

// Status wraps the most recent cached analysis.
type Status struct {
	Status    string    `json:"status"`
	Timestamp float64   `json:"timestamp"`
	Result    *Analysis `json:"result,omitempty"`
}

// HasResult reports whether the service has analysed any frame yet.
func (s Status) HasResult() bool {
	return s.Status == "success" && s.Result != nil
}

// Time converts the service's unix-seconds timestamp.
func (s Status) Time() time.Time {
	return unixSeconds(s.Timestamp)
}

func unixSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// SystemInfo describes the backend.
type SystemInfo struct {
	OpenCVVersion     string  `json:"opencv_version"`
	DeepFaceAvailable bool    `json:"deepface_available"`
	Status            string  `json:"status"`
	Timestamp         float64 `json:"timestamp"`
}

// detectRequest is the request format for /api/detect-face.
type detectRequest struct {
	Image string `json:"image"`
	Sync  bool   `json:"sync"`
}

// Analyze sends a JPEG frame and waits for its analysis.
func (c *Client) Analyze(ctx context.Context, jpeg []byte) (Analysis, error) {
	reqBody := detectRequest{
		Image: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
		Sync:  true,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Analysis{}, fmt.Errorf("marshaling request: %w", err)
	}

	var result Analysis
	if err := c.do(ctx, http.MethodPost, "/api/detect-face", bytes.NewReader(body), &result); err != nil {
		return Analysis{}, err
	}
	if result.Error != "" {
		return result, fmt.Errorf("analysis failed: %s", result.Error)
	}
	return result, nil
}

// Latest returns the service's most recent cached analysis.
func (c *Client) Latest(ctx context.Context) (Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/api/emotion-status", nil, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// SystemInfo checks the backend is up and reports its capabilities.
func (c *Client) SystemInfo(ctx context.Context) (SystemInfo, error) {
	var info SystemInfo
	if err := c.do(ctx, http.MethodGet, "/api/system-info", nil, &info); err != nil {
		return SystemInfo{}, err
	}
	return info, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
