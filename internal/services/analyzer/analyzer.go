package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
)

var (
	// ErrAnalyzerUnavailable means no call was attempted: the client is not
	// configured or its breaker is open.
	ErrAnalyzerUnavailable = errors.New("analyzer unavailable")
	// ErrAnalyzerFailed wraps every failed call that reached the analyzer.
	ErrAnalyzerFailed = errors.New("analyzer failed")
)

// StatusError is a non-2xx answer from the analyzer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("analyzer status %d", e.Code)
	}
	return fmt.Sprintf("analyzer status %d: %s", e.Code, e.Body)
}

// Analysis is the raw output of the segmentation model.
type Analysis struct {
	Mask       [][]float64 `json:"mask"`
	DiseaseKey string      `json:"disease_key"`
	Confidence float64     `json:"confidence"`
}

// InfectionLevel is the share of mask cells above 0.5, as a percentage
// rounded to two decimals. An empty mask means no infection.
func InfectionLevel(mask [][]float64) float64 {
	var total, diseased int
	for _, row := range mask {
		for _, v := range row {
			total++
			if v > 0.5 {
				diseased++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return math.Round(float64(diseased)/float64(total)*100*100) / 100
}

// Assessment turns the analysis into domain input. Unknown disease keys
// resolve to healthy; confidence is clamped to [0,1].
func (a Analysis) Assessment() entities.DiseaseAssessment {
	key, _ := entities.ParseDiseaseKey(a.DiseaseKey)
	conf := a.Confidence
	switch {
	case math.IsNaN(conf) || conf < 0:
		conf = 0
	case conf > 1:
		conf = 1
	}
	return entities.DiseaseAssessment{
		Disease:        key,
		Confidence:     conf,
		InfectionLevel: InfectionLevel(a.Mask),
	}
}

// Analyzer is what the sprayer needs from image analysis.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (Analysis, error)
}

// Config of the HTTP client.
type Config struct {
	BaseURL    string
	Path       string // default /predict
	Timeout    time.Duration
	MaxRetries int // extra attempts on transient failures
	RetryDelay time.Duration
	Breaker    *gobreaker.CircuitBreaker
	Logger     *log.Logger
}

// Client calls the analyzer over HTTP behind a circuit breaker.
type Client struct {
	base    string
	path    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	retries int
	delay   time.Duration
	logger  *log.Logger
}

var _ Analyzer = (*Client)(nil)

// NewBreaker trips after fails consecutive failures and stays open for openMs.
func NewBreaker(name string, fails, openMs, intervalMs int) *gobreaker.CircuitBreaker {
	if fails < 1 {
		fails = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: time.Duration(intervalMs) * time.Millisecond,
		Timeout:  time.Duration(openMs) * time.Millisecond,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		// a rejected image is the caller's problem, not an outage
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.Code < 500)
		},
	})
}

// New returns nil when BaseURL is empty; a nil *Client answers
// ErrAnalyzerUnavailable.
func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil
	}
	path := cfg.Path
	if path == "" {
		path = "/predict"
	}
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = NewBreaker("analyzer", 3, 15000, 60000)
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		base:    base,
		path:    path,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		retries: cfg.MaxRetries,
		delay:   delay,
		logger:  logger,
	}
}

// BreakerState reports the breaker state, "disabled" without a client.
func (c *Client) BreakerState() string {
	if c == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Analyze posts the raw image and decodes the model output. Server errors
// and transport failures are retried; 4xx answers are not.
func (c *Client) Analyze(ctx context.Context, image []byte) (Analysis, error) {
	if c == nil {
		return Analysis{}, fmt.Errorf("%w: no analyzer configured", ErrAnalyzerUnavailable)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.delay
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(max(c.retries, 0))), ctx)

	var out Analysis
	err := backoff.Retry(func() error {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.post(ctx, image)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%w: %v", ErrAnalyzerUnavailable, err))
			}
			var se *StatusError
			if errors.As(err, &se) && se.Code < 500 {
				return backoff.Permanent(err)
			}
			c.logger.Printf("analyzer: attempt failed: %v", err)
			return err
		}
		out = res.(Analysis)
		return nil
	}, policy)
	if err != nil {
		if errors.Is(err, ErrAnalyzerUnavailable) {
			return Analysis{}, err
		}
		return Analysis{}, fmt.Errorf("%w: %w", ErrAnalyzerFailed, err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, image []byte) (Analysis, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+c.path, bytes.NewReader(image))
	if err != nil {
		return Analysis{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Analysis{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var a Analysis
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return Analysis{}, fmt.Errorf("decode error: %w", err)
	}
	return a, nil
}
