package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bestsellers-etl/models"
	"bestsellers-etl/utils"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	apiKeyParam        = "api-key"
	publishedDateParam = "published_date"
	redactedValue      = "REDACTED"
	maxResponseBytes   = 32 << 20

	DefaultRateLimitDelay = 15 * time.Second
)

var errRateLimited = errors.New("rate limited")

// Extractor fetches the bestseller snapshot published on one date.
type Extractor interface {
	Extract(ctx context.Context, date time.Time) (*RawResponse, error)
}

// RequestRecorder persists a trace of every upstream call.
type RequestRecorder interface {
	RecordRequest(ctx context.Context, request *models.ApiRequest)
}

// RawResponse is the decoded body of a successful API call.
type RawResponse struct {
	Status     string      `json:"status"`
	NumResults int         `json:"num_results"`
	Results    *RawResults `json:"results"`
}

type RawResults struct {
	BestsellersDate       string    `json:"bestsellers_date"`
	PublishedDate         string    `json:"published_date"`
	PreviousPublishedDate string    `json:"previous_published_date"`
	NextPublishedDate     string    `json:"next_published_date"`
	Lists                 []RawList `json:"lists"`
}

// Empty reports whether r is absent or carries no dates and no lists.
func (r *RawResults) Empty() bool {
	if r == nil {
		return true
	}
	return strings.TrimSpace(r.BestsellersDate) == "" &&
		strings.TrimSpace(r.PublishedDate) == "" &&
		strings.TrimSpace(r.PreviousPublishedDate) == "" &&
		strings.TrimSpace(r.NextPublishedDate) == "" &&
		len(r.Lists) == 0
}

type RawList struct {
	ListID      flexString `json:"list_id"`
	ListName    string     `json:"list_name"`
	DisplayName string     `json:"display_name"`
	Updated     string     `json:"updated"`
	ListImage   string     `json:"list_image"`
	Books       []RawBook  `json:"books"`
}

// RawBook keeps the ranking fields undecoded; the transformer checks their types.
type RawBook struct {
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	Contributor     string          `json:"contributor"`
	ContributorNote string          `json:"contributor_note"`
	AgeGroup        string          `json:"age_group"`
	Publisher       string          `json:"publisher"`
	PrimaryISBN13   flexString      `json:"primary_isbn13"`
	PrimaryISBN10   flexString      `json:"primary_isbn10"`
	Description     string          `json:"description"`
	CreatedDate     string          `json:"created_date"`
	UpdatedDate     string          `json:"updated_date"`
	Rank            json.RawMessage `json:"rank"`
	RankLastWeek    json.RawMessage `json:"rank_last_week"`
	WeeksOnList     json.RawMessage `json:"weeks_on_list"`
	Price           json.RawMessage `json:"price"`
}

// flexString accepts both JSON strings and numbers, e.g. numeric list ids.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*s = flexString(num.String())
	return nil
}

func (s flexString) String() string { return string(s) }

// ExtractorConfig configures a BestsellersExtractor.
type ExtractorConfig struct {
	BaseURL        string
	APIKey         string
	RateLimitDelay time.Duration
	// BreakerFailures consecutive hard failures open the circuit for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// BestsellersExtractor calls the bestsellers API once per Extract call,
// waiting out rate-limit responses.
type BestsellersExtractor struct {
	cfg      ExtractorConfig
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	recorder RequestRecorder
	metrics  *Metrics
	logger   *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewBestsellersExtractor constructs a BestsellersExtractor.
func NewBestsellersExtractor(cfg ExtractorConfig, client *http.Client, recorder RequestRecorder, metrics *Metrics, logger *zap.Logger) *BestsellersExtractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = DefaultRateLimitDelay
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}

	e := &BestsellersExtractor{
		cfg:      cfg,
		client:   client,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		sleep:    sleepContext,
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "bestsellers-api",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRateLimited)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return e
}

// Extract fetches the snapshot for date. Rate-limit responses are retried
// after the configured delay for as long as ctx allows; every other failure
// is returned immediately.
func (e *BestsellersExtractor) Extract(ctx context.Context, date time.Time) (*RawResponse, error) {
	day := utils.FormatDate(date)
	e.logger.Info("extracting bestsellers", zap.String("published_date", day))

	for {
		raw, err := e.fetch(ctx, date)
		if !errors.Is(err, errRateLimited) {
			if err != nil {
				e.logger.Error("extraction failed", zap.String("published_date", day), zap.Error(err))
				return nil, err
			}
			e.logger.Info("extraction succeeded", zap.String("published_date", day))
			return raw, nil
		}

		e.logger.Warn("rate limit hit, waiting before retrying",
			zap.String("published_date", day),
			zap.Duration("delay", e.cfg.RateLimitDelay))
		if err := e.sleep(ctx, e.cfg.RateLimitDelay); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, day, err)
		}
	}
}

type httpResult struct {
	status int
	body   []byte
}

func (e *BestsellersExtractor) fetch(ctx context.Context, date time.Time) (*RawResponse, error) {
	day := utils.FormatDate(date)

	reqURL, err := url.Parse(e.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base url: %v", ErrExtraction, err)
	}
	query := reqURL.Query()
	query.Set(publishedDateParam, day)
	query.Set(apiKeyParam, e.cfg.APIKey)
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	out, callErr := e.breaker.Execute(func() (interface{}, error) {
		resp, err := e.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		res := &httpResult{status: resp.StatusCode, body: body}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return res, errRateLimited
		case resp.StatusCode != http.StatusOK:
			snippet := body
			if len(snippet) > 4096 {
				snippet = snippet[:4096]
			}
			return res, fmt.Errorf("api error: status %d body %s", resp.StatusCode, string(snippet))
		}
		return res, nil
	})
	duration := time.Since(started)

	statusCode := 0
	if res, ok := out.(*httpResult); ok && res != nil {
		statusCode = res.status
	}
	e.recordRequest(ctx, req, date, statusCode, duration, callErr)

	switch {
	case errors.Is(callErr, errRateLimited):
		e.metrics.observeAttempt("rate_limited")
		return nil, callErr
	case callErr != nil:
		e.metrics.observeAttempt("error")
		return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, day, callErr)
	}
	e.metrics.observeAttempt("ok")

	res := out.(*httpResult)
	var raw RawResponse
	if err := json.Unmarshal(res.body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response for %s: %v", ErrExtraction, day, err)
	}
	if raw.Results.Empty() {
		return nil, fmt.Errorf("%w: missing 'results' in api response for %s", ErrValidation, day)
	}
	return &raw, nil
}

func (e *BestsellersExtractor) recordRequest(ctx context.Context, req *http.Request, date time.Time, statusCode int, duration time.Duration, callErr error) {
	if e.recorder == nil || req == nil {
		return
	}

	params := req.URL.Query()
	if params.Has(apiKeyParam) {
		params.Set(apiKeyParam, redactedValue)
	}
	paramsJSON, _ := json.Marshal(params)

	request := &models.ApiRequest{
		RequestedDate:  utils.TruncateDay(date),
		HTTPMethod:     req.Method,
		Endpoint:       req.URL.Path,
		QueryParams:    paramsJSON,
		ResponseTimeMs: intPtr(int(duration / time.Millisecond)),
	}
	if statusCode != 0 {
		request.ResponseStatus = intPtr(statusCode)
	}
	if callErr != nil {
		request.ErrorMessage = stringPtr(truncateMessage(callErr.Error()))
	}
	if runID, ok := RunIDFromContext(ctx); ok {
		request.RunUUID = &runID
	}

	e.recorder.RecordRequest(persistentContext(ctx), request)
}
