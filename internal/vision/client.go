package vision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/errors"
	"github.com/tallycam/tallycam-go/internal/frame"
	"github.com/tallycam/tallycam-go/internal/observability/metrics"
)

// Request kinds, used as metric labels and in logs.
const (
	kindDetect   = "detect"
	kindBackfill = "backfill"
)

// Client talks to the remote multimodal vision endpoint. It is safe for
// concurrent use, although the pipeline's throttle normally keeps at most
// one detection call in flight.
type Client struct {
	config     conf.VisionSettings
	httpClient *http.Client
	metrics    *metrics.VisionMetrics
}

// NewClient creates a vision client from settings. The API key is required;
// everything else falls back to defaults.
func NewClient(config conf.VisionSettings, m *metrics.VisionMetrics) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.Newf("vision API key is required").
			Component("vision").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.BackfillTimeout == 0 {
		config.BackfillTimeout = 15 * time.Second
	}
	if config.MaxImageWidth == 0 {
		config.MaxImageWidth = 640
	}
	if config.JPEGQuality == 0 {
		config.JPEGQuality = 70
	}
	if config.MaxOutputTokens == 0 {
		config.MaxOutputTokens = 400
	}

	return &Client{
		config: config,
		// Per-request timeouts come from context deadlines; the client
		// timeout is a backstop only.
		httpClient: &http.Client{Timeout: config.BackfillTimeout + 5*time.Second},
		metrics:    m,
	}, nil
}

// Detect runs the combined name+geometry detection prompt against a frame.
// Transport, protocol and parse failures all surface as an error with
// category metadata; callers treat any error as "no detections this round".
func (c *Client) Detect(ctx context.Context, f *frame.Frame) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	text, err := c.generate(ctx, kindDetect, detectPrompt, f.Data)
	if err != nil {
		return nil, err
	}
	return DecodeDetections(text, c.metrics), nil
}

// BackfillBoxes runs the geometry-only prompt for a list of already-named
// detections against their source frame.
func (c *Client) BackfillBoxes(ctx context.Context, f *frame.Frame, names []string) ([]NamedBox, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.BackfillTimeout)
	defer cancel()

	text, err := c.generate(ctx, kindBackfill, backfillPrompt(names), f.Data)
	if err != nil {
		return nil, err
	}
	return DecodeNamedBoxes(text, c.metrics), nil
}

// generate performs one request/response round trip and returns the raw
// model text.
func (c *Client) generate(ctx context.Context, kind, prompt string, imageData []byte) (string, error) {
	start := time.Now()
	c.metrics.IncrementAPICall(kind)

	imageB64, err := prepareImage(imageData, c.config.MaxImageWidth, c.config.JPEGQuality)
	if err != nil {
		c.metrics.IncrementAPIError(kind, string(errors.CategoryImage))
		return "", errors.New(err).
			Component("vision").
			Category(errors.CategoryImage).
			Context("kind", kind).
			Build()
	}

	body, err := buildRequestBody(prompt, imageB64, c.config.MaxOutputTokens)
	if err != nil {
		c.metrics.IncrementAPIError(kind, string(errors.CategoryParsing))
		return "", errors.New(err).
			Component("vision").
			Category(errors.CategoryParsing).
			Context("kind", kind).
			Build()
	}

	endpoint, err := c.requestURL()
	if err != nil {
		c.metrics.IncrementAPIError(kind, string(errors.CategoryConfiguration))
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		c.metrics.IncrementAPIError(kind, string(errors.CategoryNetwork))
		return "", errors.New(err).
			Component("vision").
			Category(errors.CategoryNetwork).
			Context("kind", kind).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		category := errors.CategoryNetwork
		if ctx.Err() == context.DeadlineExceeded {
			category = errors.CategoryTimeout
		}
		c.metrics.IncrementAPIError(kind, string(category))
		logger.Warn("vision request failed",
			"kind", kind,
			"category", string(category),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err)
		return "", errors.New(err).
			Component("vision").
			Category(category).
			Timing(kind, time.Since(start)).
			Build()
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.metrics.IncrementAPIError(kind, string(errors.CategoryNetwork))
		return "", errors.New(err).
			Component("vision").
			Category(errors.CategoryNetwork).
			Context("kind", kind).
			Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		c.metrics.IncrementAPIError(kind, class)
		logger.Warn("vision endpoint returned error status",
			"kind", kind,
			"status", resp.StatusCode,
			"class", class,
			"body", truncate(string(respBody), 300))
		return "", errors.Newf("vision endpoint status %d: %s", resp.StatusCode, truncate(string(respBody), 300)).
			Component("vision").
			Category(errors.CategoryHTTP).
			Context("kind", kind).
			Context("status", resp.StatusCode).
			Context("class", class).
			Build()
	}

	c.metrics.ObserveRequestDuration(time.Since(start).Seconds())

	text, ok := extractResponseText(respBody)
	if !ok {
		// Missing envelope fields downgrade to an empty result upstream
		logger.Debug("vision response had no text candidate", "kind", kind)
		return "", errors.Newf("vision response missing candidates text").
			Component("vision").
			Category(errors.CategoryParsing).
			Context("kind", kind).
			Build()
	}

	logger.Debug("vision response received",
		"kind", kind,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"text_len", len(text))
	return text, nil
}

// requestURL joins the endpoint, model and API key into the generateContent
// call URL.
func (c *Client) requestURL() (string, error) {
	raw := fmt.Sprintf("%s/%s:generateContent", c.config.Endpoint, c.config.Model)
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.New(err).
			Component("vision").
			Category(errors.CategoryConfiguration).
			Context("endpoint", c.config.Endpoint).
			Build()
	}
	q := u.Query()
	q.Set("key", c.config.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// classifyStatus maps an HTTP status code onto an actionable diagnostic
// class. All classes are handled uniformly as "no detections this round".
func classifyStatus(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "bad-request"
	case status == http.StatusUnauthorized:
		return "auth"
	case status == http.StatusForbidden:
		return "forbidden-or-expired-key"
	case status == http.StatusTooManyRequests:
		return "rate-limited"
	case status >= 500:
		return "server-error"
	default:
		return "unexpected"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
