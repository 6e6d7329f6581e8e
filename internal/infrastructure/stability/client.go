package stability

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"stability-mcp/internal/domain/generation"
	"stability-mcp/internal/domain/model"
	"stability-mcp/internal/infrastructure/metrics"
	"stability-mcp/utils/platformerrors"
)

const (
	defaultBaseURL = "https://api.stability.ai"

	coreUltraEndpointPrefix = "/v2beta/stable-image/generate/"
	sd35Endpoint            = "/v2beta/stable-image/generate/sd3"

	finishReasonHeader = "finish-reason"
	seedHeader         = "seed"
)

// ClientConfig captures the knobs exposed to operators for the Stability client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls the Stability image generation endpoints. One synchronous
// attempt per request, no retry.
type Client struct {
	http *resty.Client
}

var _ generation.Client = (*Client)(nil)

// NewClient wires the resty HTTP client for the Stability API.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "image/*").
		SetAuthToken(cfg.APIKey)

	return &Client{http: httpClient}
}

// Endpoint resolves the request path from the model family. Core/Ultra models
// each have their own path; SD3.5 models share one and select the model via a
// form field.
func Endpoint(desc model.Descriptor) string {
	switch desc.Family {
	case model.FamilySD35:
		return sd35Endpoint
	default:
		return coreUltraEndpointPrefix + strings.TrimPrefix(desc.ID, "stable-image-")
	}
}

// Execute performs the generation call and maps the outcome per the error
// taxonomy. Content-filtered results are returned as a success with the
// finish reason set; the caller decides policy.
func (c *Client) Execute(ctx context.Context, req generation.Request) (generation.Result, error) {
	endpoint := Endpoint(req.Descriptor)
	fields := formFields(req)

	r := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(fields)

	if req.Mode == generation.ModeImageToImage {
		name := filepath.Base(req.InputImagePath)
		if name == "" || name == "." {
			name = "input"
		}
		r.SetFileReader("image", name, bytes.NewReader(req.InputImage))
	}

	log.Info().
		Str("endpoint", endpoint).
		Str("model", req.Descriptor.ID).
		Str("mode", string(req.Mode)).
		Msg("calling Stability API")

	start := time.Now()
	resp, err := r.Post(endpoint)
	metrics.RecordUpstreamLatency(endpoint, time.Since(start).Seconds())
	if err != nil {
		return generation.Result{}, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeNetwork,
			fmt.Sprintf("Stability API unreachable: %v", err), err, "")
	}

	if mapped := mapStatus(ctx, resp); mapped != nil {
		return generation.Result{}, mapped
	}

	finishReason := generation.FinishReason(strings.ToUpper(resp.Header().Get(finishReasonHeader)))
	if finishReason == "" {
		finishReason = generation.FinishSuccess
	}

	seed := req.Seed
	if raw := resp.Header().Get(seedHeader); raw != "" {
		if parsed, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			seed = parsed
		}
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "image/" + req.OutputFormat
	}

	return generation.Result{
		Image:        resp.Body(),
		ContentType:  contentType,
		Seed:         seed,
		FinishReason: finishReason,
	}, nil
}

// formFields builds the multipart fields for the request. The encoding mode
// was fixed at build time; this only translates it to wire fields.
func formFields(req generation.Request) map[string]string {
	fields := map[string]string{
		"prompt":        req.Prompt,
		"seed":          strconv.FormatInt(req.Seed, 10),
		"output_format": req.OutputFormat,
	}

	if req.Mode == generation.ModeTextToImage {
		fields["aspect_ratio"] = req.AspectRatio
	} else {
		fields["strength"] = strconv.FormatFloat(req.Strength, 'f', -1, 64)
	}

	if req.Descriptor.Family == model.FamilySD35 {
		fields["model"] = req.Descriptor.ID
		fields["mode"] = string(req.Mode)
	}

	if req.NegativePrompt != "" {
		fields["negative_prompt"] = req.NegativePrompt
	}

	return fields
}

func mapStatus(ctx context.Context, resp *resty.Response) *platformerrors.PlatformError {
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeAuth,
			"Stability API key missing or invalid", nil, "")
	case status == http.StatusPaymentRequired:
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeInsufficientCredits,
			"insufficient Stability AI credits", nil, "")
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeUpstreamRejected,
			fmt.Sprintf("Stability API rejected the request: %s", body), nil, "",
			map[string]any{"status": status})
	default:
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeUpstream,
			fmt.Sprintf("Stability API returned status %d: %s", status, body), nil, "",
			map[string]any{"status": status})
	}
}
