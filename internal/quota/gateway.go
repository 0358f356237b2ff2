// Package quota meters outbound calls to paid third-party APIs against a
// calendar-month budget recorded in the api_usage table.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/repository"
	apperrors "github.com/utafrali/revu/pkg/errors"
	"github.com/utafrali/revu/pkg/httpclient"
	"github.com/utafrali/revu/pkg/tracing"
)

const tracerName = "github.com/utafrali/revu/internal/quota"

// SafetyBuffer is the number of monthly calls held back from every budget.
// Usage counting and the call itself are not atomic, so concurrent callers
// can overshoot by a few calls; the buffer absorbs that.
const SafetyBuffer = 10

const maxResponseBytes = 10 << 20

// ErrDeclined is returned when the monthly budget is exhausted and no call
// was made. Adapters treat it as an empty result, not a failure.
var ErrDeclined = errors.New("monthly api quota reached")

// Config describes one metered API.
type Config struct {
	// API is the name recorded in api_usage, e.g. "serpapi".
	API          string
	BaseURL      string
	APIKey       string
	APIKeyParam  string
	MonthlyLimit int
	Timeout      time.Duration
}

// Call is a single GET request through the gateway.
type Call struct {
	// Endpoint labels the call in usage records and metrics.
	Endpoint  string
	Path      string
	Params    url.Values
	ProductID *string
}

// Gateway performs metered GET requests and returns their raw JSON body.
type Gateway struct {
	cfg    Config
	client httpclient.Doer
	usage  repository.UsageRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewGateway creates a gateway for the API described by cfg.
func NewGateway(cfg Config, client httpclient.Doer, usage repository.UsageRepository, logger *slog.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		client: client,
		usage:  usage,
		logger: logger,
		now:    time.Now,
	}
}

// API returns the metered API's name.
func (g *Gateway) API() string { return g.cfg.API }

// Configured reports whether an API key is set.
func (g *Gateway) Configured() bool { return g.cfg.APIKey != "" }

// Request performs call unless this month's budget is spent. A missing API key
// is a configuration error, an exhausted budget returns ErrDeclined without
// touching the network, and transport or non-2xx failures are returned as
// upstream errors. Exactly one usage record is written per successful call.
func (g *Gateway) Request(ctx context.Context, call Call) (body json.RawMessage, err error) {
	ctx, end := tracing.StartSpan(ctx, tracerName, g.cfg.API+"."+call.Endpoint, trace.SpanKindClient,
		attribute.String("api.name", g.cfg.API),
		attribute.String("api.endpoint", call.Endpoint),
	)
	defer func() {
		if errors.Is(err, ErrDeclined) {
			end(nil)
			return
		}
		end(err)
	}()

	if !g.Configured() {
		return nil, apperrors.NotConfigured(g.cfg.API)
	}

	used, err := g.used(ctx)
	if err != nil {
		return nil, err
	}
	if used >= g.cfg.MonthlyLimit-SafetyBuffer {
		declinedTotal.WithLabelValues(g.cfg.API).Inc()
		g.logger.WarnContext(ctx, "external api call declined, monthly quota reached",
			slog.String("api", g.cfg.API),
			slog.String("endpoint", call.Endpoint),
			slog.Int("used", used),
			slog.Int("limit", g.cfg.MonthlyLimit),
		)
		return nil, ErrDeclined
	}

	body, err = g.do(ctx, call)
	if err != nil {
		return nil, err
	}

	if err := g.usage.Create(ctx, &domain.APIUsage{
		APIName:   g.cfg.API,
		Endpoint:  call.Endpoint,
		ProductID: call.ProductID,
		CalledAt:  g.now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("record %s usage: %w", g.cfg.API, err)
	}
	callsTotal.WithLabelValues(g.cfg.API, call.Endpoint).Inc()

	return body, nil
}

// UsageStats returns this month's consumption.
func (g *Gateway) UsageStats(ctx context.Context) (domain.UsageStats, error) {
	used, err := g.used(ctx)
	if err != nil {
		return domain.UsageStats{}, err
	}
	return domain.NewUsageStats(used, g.cfg.MonthlyLimit), nil
}

func (g *Gateway) used(ctx context.Context) (int, error) {
	used, err := g.usage.CountSince(ctx, g.cfg.API, domain.MonthStart(g.now()))
	if err != nil {
		return 0, fmt.Errorf("count %s usage: %w", g.cfg.API, err)
	}
	return used, nil
}

func (g *Gateway) do(ctx context.Context, call Call) (json.RawMessage, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	params := url.Values{}
	for k, v := range call.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set(g.cfg.APIKeyParam, g.cfg.APIKey)

	target := strings.TrimRight(g.cfg.BaseURL, "/")
	if call.Path != "" {
		target += "/" + strings.TrimLeft(call.Path, "/")
	}
	target += "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", g.cfg.API, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Upstream(g.cfg.API, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, g.cfg.API)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.Upstream(g.cfg.API, fmt.Errorf("read body: %w", err))
	}
	if !json.Valid(body) {
		return nil, apperrors.Upstream(g.cfg.API, errors.New("response is not valid JSON"))
	}

	return body, nil
}
