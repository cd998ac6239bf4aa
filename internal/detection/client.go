package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"time"

	"moodcam/internal/emotion"
)

// MinCropSide is the smallest face crop side length (pixels) worth sending
// to the classifier. Smaller crops fail client-side.
const MinCropSide = 20

// healthCacheTTL bounds how often the health endpoint is polled.
const healthCacheTTL = 30 * time.Second

// healthProbeTimeout caps a single health poll. IsHealthy runs on request
// paths, so a down service must answer "unhealthy" quickly instead of
// holding the caller for the full client timeout.
const healthProbeTimeout = 2 * time.Second

// Client talks to the face recognition service over HTTP. It implements
// both FaceLocator and EmotionClassifier.
type Client struct {
	endpoint   string
	client     *http.Client
	enabled    bool
	mu         sync.RWMutex
	healthy    bool
	lastHealth time.Time
}

// ClientConfig holds configuration for the recognition service client.
type ClientConfig struct {
	Enabled  bool
	Endpoint string
	Timeout  time.Duration
}

// faceDetectResponse mirrors the service's /detect JSON payload.
type faceDetectResponse struct {
	Faces           []faceEntry `json:"faces"`
	Count           int         `json:"count"`
	InferenceTimeMs float32     `json:"inference_time_ms"`
	Device          string      `json:"device"`
}

type faceEntry struct {
	BBox       []int   `json:"bbox"` // [x, y, w, h]
	Confidence float32 `json:"confidence"`
}

// classifyResponse mirrors the service's /classify JSON payload.
type classifyResponse struct {
	Emotion         string             `json:"emotion"`
	Confidence      float32            `json:"confidence"`
	Predictions     map[string]float32 `json:"predictions"`
	InferenceTimeMs float32            `json:"inference_time_ms"`
	Device          string             `json:"device"`
}

// healthResponse mirrors the service's /health JSON payload.
type healthResponse struct {
	Status      string `json:"status"`
	Device      string `json:"device"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewClient creates a recognition service client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint: config.Endpoint,
		enabled:  config.Enabled,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsEnabled returns whether the client is enabled.
func (c *Client) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled enables or disables the client.
func (c *Client) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// IsHealthy reports the last known health of the service, re-checking at
// most once per healthCacheTTL.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	fresh := time.Since(c.lastHealth) < healthCacheTTL
	healthy := c.healthy
	c.mu.RUnlock()

	if fresh {
		return healthy
	}
	return c.CheckHealth() == nil
}

// CheckHealth polls the service health endpoint and records the result.
func (c *Client) CheckHealth() error {
	if !c.IsEnabled() {
		return ErrServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.endpoint), nil)
	if err != nil {
		c.setHealthy(false)
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.setHealthy(false)
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setHealthy(false)
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		c.setHealthy(false)
		return fmt.Errorf("failed to decode health response: %w", err)
	}

	ok := health.Status == "healthy" && health.ModelLoaded
	c.setHealthy(ok)
	if !ok {
		return fmt.Errorf("service unhealthy: status=%s, model_loaded=%v", health.Status, health.ModelLoaded)
	}
	return nil
}

func (c *Client) setHealthy(healthy bool) {
	c.mu.Lock()
	c.healthy = healthy
	c.lastHealth = time.Now()
	c.mu.Unlock()
}

// LocateFaces sends an encoded image to the /detect endpoint and returns
// the reported bounding boxes.
func (c *Client) LocateFaces(ctx context.Context, image []byte) ([]Box, error) {
	if !c.IsEnabled() {
		return nil, ErrServiceUnavailable
	}

	body, err := c.sendImage(ctx, fmt.Sprintf("%s/detect", c.endpoint), image)
	if err != nil {
		return nil, err
	}

	var result faceDetectResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode detect response: %w", err)
	}

	boxes := make([]Box, 0, len(result.Faces))
	for _, f := range result.Faces {
		if len(f.BBox) < 4 {
			continue
		}
		boxes = append(boxes, Box{X: f.BBox[0], Y: f.BBox[1], Width: f.BBox[2], Height: f.BBox[3]})
	}
	return boxes, nil
}

// Classify sends a cropped face to the /classify endpoint and returns the
// predicted emotion label.
func (c *Client) Classify(ctx context.Context, faceCrop []byte) (emotion.Label, error) {
	if !c.IsEnabled() {
		return "", ErrServiceUnavailable
	}

	body, err := c.sendImage(ctx, fmt.Sprintf("%s/classify", c.endpoint), faceCrop)
	if err != nil {
		return "", err
	}

	var result classifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode classify response: %w", err)
	}

	label, err := emotion.Parse(result.Emotion)
	if err != nil {
		return "", fmt.Errorf("classify returned invalid label: %w", err)
	}
	return label, nil
}

// sendImage posts an image as a multipart form file and returns the
// response body.
func (c *Client) sendImage(ctx context.Context, url string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

var (
	_ FaceLocator       = (*Client)(nil)
	_ EmotionClassifier = (*Client)(nil)
)
