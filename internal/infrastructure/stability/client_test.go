package stability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stability-mcp/internal/domain/generation"
	"stability-mcp/internal/domain/model"
	"stability-mcp/utils/platformerrors"
)

func TestEndpoint(t *testing.T) {
	tests := []struct {
		id     string
		family model.Family
		want   string
	}{
		{"stable-image-core", model.FamilyCoreUltra, "/v2beta/stable-image/generate/core"},
		{"stable-image-ultra", model.FamilyCoreUltra, "/v2beta/stable-image/generate/ultra"},
		{"sd3.5-large", model.FamilySD35, "/v2beta/stable-image/generate/sd3"},
		{"sd3.5-large-turbo", model.FamilySD35, "/v2beta/stable-image/generate/sd3"},
		{"sd3.5-medium", model.FamilySD35, "/v2beta/stable-image/generate/sd3"},
		{"sd3.5-flash", model.FamilySD35, "/v2beta/stable-image/generate/sd3"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got := Endpoint(model.Descriptor{ID: tt.id, Family: tt.family})
			assert.Equal(t, tt.want, got)
		})
	}
}

// capturedRequest records what the fake upstream received.
type capturedRequest struct {
	path       string
	authHeader string
	form       map[string]string
	imageBytes []byte
}

func newFakeUpstream(t *testing.T, handler func(w http.ResponseWriter)) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.authHeader = r.Header.Get("Authorization")

		require.NoError(t, r.ParseMultipartForm(32<<20))
		captured.form = map[string]string{}
		for key, values := range r.MultipartForm.Value {
			captured.form[key] = values[0]
		}
		if files := r.MultipartForm.File["image"]; len(files) > 0 {
			f, err := files[0].Open()
			require.NoError(t, err)
			defer f.Close()
			captured.imageBytes, err = io.ReadAll(f)
			require.NoError(t, err)
		}

		handler(w)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func testClient(srv *httptest.Server) *Client {
	return NewClient(ClientConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})
}

func coreRequest() generation.Request {
	return generation.Request{
		Descriptor: model.Descriptor{
			ID:     "stable-image-core",
			Family: model.FamilyCoreUltra,
		},
		Mode:         generation.ModeTextToImage,
		Prompt:       "a red fox in snow",
		AspectRatio:  "16:9",
		Seed:         7,
		OutputFormat: generation.FormatPNG,
	}
}

func TestExecuteSuccess(t *testing.T) {
	srv, captured := newFakeUpstream(t, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("finish-reason", "SUCCESS")
		w.Header().Set("seed", "987654")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("png bytes"))
	})

	result, err := testClient(srv).Execute(context.Background(), coreRequest())
	require.NoError(t, err)

	assert.Equal(t, []byte("png bytes"), result.Image)
	assert.Equal(t, "image/png", result.ContentType)
	assert.Equal(t, int64(987654), result.Seed)
	assert.Equal(t, generation.FinishSuccess, result.FinishReason)

	assert.Equal(t, "/v2beta/stable-image/generate/core", captured.path)
	assert.Equal(t, "Bearer sk-test", captured.authHeader)
	assert.Equal(t, "a red fox in snow", captured.form["prompt"])
	assert.Equal(t, "16:9", captured.form["aspect_ratio"])
	assert.Equal(t, "7", captured.form["seed"])
	assert.Equal(t, "png", captured.form["output_format"])
	assert.NotContains(t, captured.form, "model")
	assert.NotContains(t, captured.form, "strength")
	assert.NotContains(t, captured.form, "negative_prompt")
}

func TestExecuteSD35ImageToImage(t *testing.T) {
	srv, captured := newFakeUpstream(t, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("img"))
	})

	req := generation.Request{
		Descriptor: model.Descriptor{
			ID:     "sd3.5-large",
			Family: model.FamilySD35,
		},
		Mode:           generation.ModeImageToImage,
		Prompt:         "make it night",
		Seed:           0,
		OutputFormat:   generation.FormatJPEG,
		NegativePrompt: "blurry",
		InputImage:     []byte("source image"),
		InputImagePath: "/tmp/source.png",
		Strength:       0.35,
	}

	_, err := testClient(srv).Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "/v2beta/stable-image/generate/sd3", captured.path)
	assert.Equal(t, "sd3.5-large", captured.form["model"])
	assert.Equal(t, "image-to-image", captured.form["mode"])
	assert.Equal(t, "0.35", captured.form["strength"])
	assert.Equal(t, "blurry", captured.form["negative_prompt"])
	assert.NotContains(t, captured.form, "aspect_ratio")
	assert.Equal(t, []byte("source image"), captured.imageBytes)
}

func TestExecuteContentFilteredIsSuccess(t *testing.T) {
	srv, _ := newFakeUpstream(t, func(w http.ResponseWriter) {
		w.Header().Set("finish-reason", "CONTENT_FILTERED")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("replacement image"))
	})

	result, err := testClient(srv).Execute(context.Background(), coreRequest())
	require.NoError(t, err)
	assert.True(t, result.ContentFiltered())
	assert.NotEmpty(t, result.Image)
}

func TestExecuteStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType platformerrors.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, platformerrors.ErrorTypeAuth},
		{"forbidden", http.StatusForbidden, platformerrors.ErrorTypeAuth},
		{"payment required", http.StatusPaymentRequired, platformerrors.ErrorTypeInsufficientCredits},
		{"bad request", http.StatusBadRequest, platformerrors.ErrorTypeUpstreamRejected},
		{"unprocessable", http.StatusUnprocessableEntity, platformerrors.ErrorTypeUpstreamRejected},
		{"server error", http.StatusInternalServerError, platformerrors.ErrorTypeUpstream},
		{"rate limited", http.StatusTooManyRequests, platformerrors.ErrorTypeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newFakeUpstream(t, func(w http.ResponseWriter) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"errors":["nope"]}`))
			})

			_, err := testClient(srv).Execute(context.Background(), coreRequest())
			require.Error(t, err)
			assert.True(t, platformerrors.IsErrorType(err, tt.wantType),
				"status %d mapped to %v", tt.status, err)
		})
	}
}

func TestExecuteNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := testClient(srv).Execute(context.Background(), coreRequest())
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNetwork))
}

func TestExecuteMissingFinishReasonDefaultsToSuccess(t *testing.T) {
	srv, _ := newFakeUpstream(t, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("img"))
	})

	result, err := testClient(srv).Execute(context.Background(), coreRequest())
	require.NoError(t, err)
	assert.Equal(t, generation.FinishSuccess, result.FinishReason)
	// No seed header: the requested seed is echoed back.
	assert.Equal(t, int64(7), result.Seed)
}
