package hydro

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"floodwatch/internal/external"
	"floodwatch/internal/types"
)

// maxResponseSize caps upstream response bodies (4 MB). Ensemble documents
// are large but bounded; anything bigger is a broken upstream.
const maxResponseSize = 4 << 20

// ForecastProduct selects the forecast horizon requested from the upstream
// API. The returned document may still contain additional horizons; the
// extractor considers everything present.
type ForecastProduct string

// ProductShortRange is the only product the sweep requests today; upstream
// responses frequently bundle the medium-range horizon alongside it.
const ProductShortRange ForecastProduct = "short_range"

// ClientConfig holds the configuration for creating a hydro Client.
type ClientConfig struct {
	BaseURL     string
	CallTimeout time.Duration // per-read budget; zero means no extra deadline
	Logger      *slog.Logger
}

// Client issues the three upstream reads needed to evaluate one reach:
// streamflow forecast, return-period thresholds, and the reach display name.
// Each read is independently fallible and carries its own timeout; a failure
// in one never prevents the others from being used.
type Client struct {
	base        *external.BaseClient
	baseURL     string
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewClient creates a hydro Client. The httpClient timeout should match
// UpstreamConfig.CallTimeout.
func NewClient(httpClient *http.Client, cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := external.NewBaseClient(
		httpClient,
		"hydro-api",
		external.DefaultRetryPolicy(),
		"Floodwatch/1.0",
	)

	return &Client{
		base:        base,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}
}

// NewClientWithBase creates a Client with a pre-configured BaseClient.
// Used by tests to control retry behavior.
func NewClientWithBase(base *external.BaseClient, cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:        base,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}
}

// PlaceholderName is the deterministic display name used when the reach
// metadata read fails or carries no name.
func PlaceholderName(reachID string) string {
	return "Location " + reachID
}

// ReachConditions bundles everything the evaluator needs for one reach.
// Missing data is represented by empty fields, never by partial nils:
// DisplayName always holds a usable value and Thresholds is always non-nil.
type ReachConditions struct {
	ReachID     string
	Series      []types.FlowSeries
	Thresholds  types.ReturnPeriodSet
	DisplayName string

	// FetchErr is the first transport error among the forecast and
	// threshold reads, nil when both succeeded (a "not found" outcome is
	// success). Name lookup failures only degrade to the placeholder and
	// are not recorded here.
	FetchErr error
}

// FetchReachConditions issues the three upstream reads concurrently and joins
// them. It never returns an error: degraded aspects are reflected in the
// returned struct, and FetchErr carries the first data-read failure for the
// caller's accounting.
func (c *Client) FetchReachConditions(ctx context.Context, reachID string) *ReachConditions {
	rc := &ReachConditions{
		ReachID:     reachID,
		Thresholds:  types.ReturnPeriodSet{},
		DisplayName: PlaceholderName(reachID),
	}

	var forecastErr, thresholdErr error
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		raw, err := c.StreamflowForecast(gctx, reachID, ProductShortRange)
		if err != nil {
			forecastErr = err
			return nil
		}
		rc.Series = ExtractSeriesSet(raw)
		return nil
	})

	g.Go(func() error {
		set, err := c.ReturnPeriods(gctx, reachID)
		if err != nil {
			thresholdErr = err
			return nil
		}
		rc.Thresholds = set
		return nil
	})

	g.Go(func() error {
		name, err := c.ReachName(gctx, reachID)
		if err != nil {
			c.logger.WarnContext(gctx, "reach name lookup failed, using placeholder",
				"reach_id", reachID,
				"error", err,
			)
			return nil
		}
		if name != "" {
			rc.DisplayName = name
		}
		return nil
	})

	// Workers only record failures, they never return them.
	_ = g.Wait()

	if forecastErr != nil {
		c.logger.WarnContext(ctx, "forecast read degraded",
			"reach_id", reachID,
			"error", forecastErr,
		)
		rc.FetchErr = forecastErr
	}
	if thresholdErr != nil {
		c.logger.WarnContext(ctx, "return-period read degraded",
			"reach_id", reachID,
			"error", thresholdErr,
		)
		if rc.FetchErr == nil {
			rc.FetchErr = thresholdErr
		}
	}

	return rc
}

// StreamflowForecast fetches the raw forecast document for a reach. A 404
// means the reach has no forecast and yields (nil, nil); transport failures
// and non-2xx statuses are errors.
func (c *Client) StreamflowForecast(ctx context.Context, reachID string, product ForecastProduct) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/api/reaches/%s/streamflow?series=%s", c.baseURL, reachID, product)

	body, found, err := c.get(ctx, url)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "streamflow forecast read failed", err)
	}
	if !found {
		c.logger.DebugContext(ctx, "no forecast for reach",
			"reach_id", reachID,
		)
		return nil, nil
	}
	return body, nil
}

// ReturnPeriods fetches and parses the flood-frequency thresholds for a
// reach. A 404 or empty response yields an empty set with a nil error.
func (c *Client) ReturnPeriods(ctx context.Context, reachID string) (types.ReturnPeriodSet, error) {
	url := fmt.Sprintf("%s/api/return-periods?reachId=%s", c.baseURL, reachID)

	body, found, err := c.get(ctx, url)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "return-period read failed", err)
	}
	if !found {
		c.logger.DebugContext(ctx, "no return periods for reach",
			"reach_id", reachID,
		)
		return types.ReturnPeriodSet{}, nil
	}
	return ParseReturnPeriods(body), nil
}

// reachMetadata is the subset of the reach document the client reads.
type reachMetadata struct {
	Name string `json:"name"`
}

// ReachName fetches the display name for a reach. Returns "" with a nil
// error when the reach has no recorded name.
func (c *Client) ReachName(ctx context.Context, reachID string) (string, error) {
	url := fmt.Sprintf("%s/api/reaches/%s", c.baseURL, reachID)

	body, found, err := c.get(ctx, url)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamUnavailable, "reach metadata read failed", err)
	}
	if !found {
		return "", nil
	}

	var meta reachMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", nil
	}
	return meta.Name, nil
}

// get performs one GET with the per-call timeout applied. found=false
// indicates a 404, which callers treat as valid missing data.
func (c *Client) get(ctx context.Context, url string) (body []byte, found bool, err error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}
