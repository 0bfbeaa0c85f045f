package dockertags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/fmriflow/internal/tlsutil"
	"github.com/BaSui01/fmriflow/types"
)

// DefaultBaseURL is the Docker Hub API root.
const DefaultBaseURL = "https://hub.docker.com"

// DefaultImages maps neuroimaging libraries to their Docker Hub images.
var DefaultImages = map[string]string{
	"FSL":                  "brainlife/fsl",
	"AFNI":                 "brainlife/afni",
	"ANTs":                 "antsx/ants",
	"FreeSurfer":           "freesurfer/freesurfer",
	"MRtrix3":              "mrtrix3/mrtrix3",
	"fMRIPrep":             "nipreps/fmriprep",
	"MRIQC":                "nipreps/mriqc",
	"Connectome Workbench": "khanlab/connectome-workbench",
	"AMICO":                "cookpa/amico-noddi",
}

// ErrInvalidImage is returned for image names Docker Hub cannot serve.
var ErrInvalidImage = errors.New("invalid image name")

var imagePattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*(?:/[a-z0-9]+(?:[._-][a-z0-9]+)*)?$`)

// Config configures a Client.
type Config struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	MaxTags           int           `yaml:"max_tags" json:"max_tags"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	CacheTTL          time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// DefaultConfig returns the Docker Hub defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		MaxTags:           MaxTags,
		RequestsPerSecond: 5,
		Timeout:           15 * time.Second,
		CacheTTL:          6 * time.Hour,
	}
}

// Cache stores tag lists between requests. internal/cache.Manager satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Recorder observes tag fetches. status is "hit", "ok" or "error".
type Recorder interface {
	RecordTagFetch(image, status string, duration time.Duration)
}

// Client fetches image tags from Docker Hub.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	cache    Cache
	recorder Recorder
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithCache enables caching of fetched tag lists.
func WithCache(c Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithRecorder sets the fetch observer.
func WithRecorder(r Recorder) Option {
	return func(cl *Client) { cl.recorder = r }
}

// NewClient creates a Docker Hub client. Zero config fields take defaults.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.MaxTags <= 0 {
		cfg.MaxTags = defaults.MaxTags
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg:     cfg,
		http:    tlsutil.SecureHTTPClient(cfg.Timeout),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With(zap.String("component", "dockertags")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type hubTag struct {
	Name string `json:"name"`
}

type hubPage struct {
	// Results is nil when Docker Hub answers with an error body.
	Results *[]hubTag `json:"results"`
	Message string    `json:"message"`
}

// Fetch returns the filtered tags of image, newest first, "latest" leading.
func (c *Client) Fetch(ctx context.Context, image string) ([]string, error) {
	if !imagePattern.MatchString(image) {
		return nil, types.WrapError(fmt.Errorf("%w: %q", ErrInvalidImage, image), types.ErrInvalidRequest, "invalid image name").
			WithHTTPStatus(http.StatusBadRequest)
	}
	start := time.Now()
	key := "docker_tags:" + image

	if c.cache != nil {
		var cached []string
		if err := c.cache.GetJSON(ctx, key, &cached); err == nil && len(cached) > 0 {
			c.record(image, "hit", start)
			return cached, nil
		}
	}

	tags, err := c.fetch(ctx, image)
	if err != nil {
		c.record(image, "error", start)
		c.logger.Warn("tag fetch failed", zap.String("image", image), zap.Error(err))
		return nil, err
	}
	c.record(image, "ok", start)

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, key, tags, c.cfg.CacheTTL); err != nil {
			c.logger.Debug("tag cache write failed", zap.String("image", image), zap.Error(err))
		}
	}
	return tags, nil
}

func (c *Client) fetch(ctx context.Context, image string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, types.WrapError(err, types.ErrUpstreamTimeout, "rate limiter wait cancelled").
			WithHTTPStatus(http.StatusGatewayTimeout)
	}

	endpoint := fmt.Sprintf("%s/v2/repositories/%s/tags?%s", c.cfg.BaseURL, image, url.Values{
		"page_size": {"100"},
		"ordering":  {"last_updated"},
	}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, types.WrapError(err, types.ErrUpstreamError, "docker hub request failed").
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var page hubPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, types.WrapError(err, types.ErrUpstreamError,
			fmt.Sprintf("failed to parse response for %s", image)).
			WithHTTPStatus(http.StatusBadGateway)
	}
	if page.Results == nil {
		msg := page.Message
		if msg == "" {
			msg = "Unknown error"
		}
		status := http.StatusBadGateway
		if resp.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		return nil, types.NewError(types.ErrUpstreamError, fmt.Sprintf("no results for %s: %s", image, msg)).
			WithHTTPStatus(status).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	names := make([]string, 0, len(*page.Results))
	for _, t := range *page.Results {
		names = append(names, t.Name)
	}
	return Filter(names, c.cfg.MaxTags), nil
}

func (c *Client) record(image, status string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordTagFetch(image, status, time.Since(start))
	}
}

// Result holds FetchAll output keyed by library name.
type Result struct {
	Tags   map[string][]string `json:"tags"`
	Errors map[string]string   `json:"errors,omitempty"`
}

// Libraries returns the libraries that were fetched successfully, sorted.
func (r *Result) Libraries() []string {
	libs := make([]string, 0, len(r.Tags))
	for lib := range r.Tags {
		libs = append(libs, lib)
	}
	sort.Strings(libs)
	return libs
}

// FetchAll fetches every image concurrently. A failing library is reported in
// Result.Errors and does not stop the others. The returned error is non-nil
// only when ctx ends first.
func (c *Client) FetchAll(ctx context.Context, images map[string]string) (*Result, error) {
	res := &Result{
		Tags:   make(map[string][]string, len(images)),
		Errors: make(map[string]string),
	}
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for library, image := range images {
		eg.Go(func() error {
			tags, err := c.Fetch(egCtx, image)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors[library] = err.Error()
				return nil
			}
			res.Tags[library] = tags
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
