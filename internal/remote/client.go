// Package remote is the HTTP client for the workout diary record API. It
// implements query.Source for exercises and exercise records.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/internal/submit"
	"github.com/thebtf/workoutdiary/pkg/models"
)

const (
	exerciseSearchPath = "api/v1/exercise/search"
	recordSearchPath   = "api/v1/exerciseRecord/search"
	recordAddPath      = "api/v1/exerciseRecord/add"
	muscleGroupsPath   = "api/v1/muscleGroup/getAll"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// ErrBadResponse is returned when the API answers with an unreadable body.
var ErrBadResponse = errors.New("bad response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Message string
	Path    string
	Code    int
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Path, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Path, e.Code, e.Message)
}

// Config configures a Client.
type Config struct {
	HTTPClient *http.Client
	BaseURL    string
	Username   string
	Timeout    time.Duration
	// RateLimit caps requests per second; <= 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// Client talks to the record API.
type Client struct {
	http     *http.Client
	limiter  *rate.Limiter
	base     *url.URL
	username string
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse base url: %q is not absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{http: hc, base: base, username: cfg.Username}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// envelope is the response wrapper every endpoint uses.
type envelope[T any] struct {
	Data        T      `json:"data"`
	Message     string `json:"message"`
	HasNextPage bool   `json:"hasNextPage"`
}

// Exercises returns the exercise search as a query source.
func (c *Client) Exercises() query.Source[models.Exercise] {
	return query.SourceFunc[models.Exercise](c.SearchExercises)
}

// Records returns the record search as a query source.
func (c *Client) Records() query.Source[models.Record] {
	return query.SourceFunc[models.Record](c.SearchRecords)
}

// SearchExercises fetches one page of exercises matching q.Text as a
// substring (exact name when q.Strict) and any of q.Filters as muscle groups.
func (c *Client) SearchExercises(ctx context.Context, q models.Query, page int) (models.Page[models.Exercise], error) {
	params := pageParams(q, page)
	if q.Text != "" {
		params.Set("substring", q.Text)
	}
	for _, f := range q.Filters {
		params.Add("muscleGroups", f)
	}

	var env envelope[[]models.Exercise]
	if err := c.do(ctx, http.MethodGet, exerciseSearchPath, params, nil, &env); err != nil {
		return models.Page[models.Exercise]{}, err
	}
	return models.Page[models.Exercise]{Items: env.Data, HasNext: env.HasNextPage}, nil
}

// SearchRecords fetches one page of the user's records of the exercise
// named by q.Text, newest first.
func (c *Client) SearchRecords(ctx context.Context, q models.Query, page int) (models.Page[models.Record], error) {
	params := pageParams(q, page)
	params.Set("exerciseNames", q.Text)
	params.Set("username", c.username)

	var env envelope[[]wireRecord]
	if err := c.do(ctx, http.MethodGet, recordSearchPath, params, nil, &env); err != nil {
		return models.Page[models.Record]{}, err
	}

	items := make([]models.Record, 0, len(env.Data))
	for _, w := range env.Data {
		r, err := w.record()
		if err != nil {
			return models.Page[models.Record]{}, fmt.Errorf("%w: record %s: %w", ErrBadResponse, w.ID, err)
		}
		items = append(items, r)
	}
	return models.Page[models.Record]{Items: items, HasNext: env.HasNextPage}, nil
}

type addBody struct {
	ExerciseName string      `json:"exerciseName"`
	Location     string      `json:"location"`
	Note         string      `json:"note"`
	Sets         [][]float64 `json:"sets"`
}

// AddRecord stores a submission under the configured username.
func (c *Client) AddRecord(ctx context.Context, sub submit.Submission) (models.Record, error) {
	params := url.Values{}
	params.Set("username", c.username)
	params.Set("datetime", sub.DateTime())

	body := addBody{
		ExerciseName: sub.ExerciseName,
		Sets:         sub.SetMatrix(),
		Location:     "1,1",
		Note:         sub.Note,
	}

	var env envelope[wireRecord]
	if err := c.do(ctx, http.MethodPost, recordAddPath, params, body, &env); err != nil {
		return models.Record{}, err
	}
	r, err := env.Data.record()
	if err != nil {
		return models.Record{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return r, nil
}

// MuscleGroups fetches every muscle group known to the API.
func (c *Client) MuscleGroups(ctx context.Context) ([]models.MuscleGroup, error) {
	var env envelope[[]models.MuscleGroup]
	if err := c.do(ctx, http.MethodGet, muscleGroupsPath, nil, nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Ping checks the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.MuscleGroups(ctx)
	return err
}

func pageParams(q models.Query, page int) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(q.PageSize))
	params.Set("strict", strconv.FormatBool(q.Strict))
	return params
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Remote call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadResponse, path, err)
	}
	return nil
}

func statusError(resp *http.Response, path string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{Code: resp.StatusCode, Path: path}

	var env envelope[json.RawMessage]
	if json.Unmarshal(data, &env) == nil && env.Message != "" {
		se.Message = env.Message
	} else {
		se.Message = strings.TrimSpace(string(data))
	}
	return se
}
