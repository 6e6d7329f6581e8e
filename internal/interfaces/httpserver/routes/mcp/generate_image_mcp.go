package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"stability-mcp/internal/domain/generation"
	"stability-mcp/internal/domain/model"
	"stability-mcp/internal/infrastructure/metrics"
	"stability-mcp/utils/platformerrors"
)

// GenerateImageArgs defines the arguments for the generate_image tool
type GenerateImageArgs struct {
	Prompt         string   `json:"prompt"`
	Model          *string  `json:"model,omitempty"`
	AspectRatio    *string  `json:"aspect_ratio,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	OutputFormat   *string  `json:"output_format,omitempty"`
	NegativePrompt *string  `json:"negative_prompt,omitempty"`
	ImagePath      *string  `json:"image_path,omitempty"`
	Strength       *float64 `json:"strength,omitempty"`
}

type GenerateImageMCP struct {
	service      *generation.Service
	inlineImages bool
}

// NewGenerateImageMCP creates a new image generation MCP handler.
func NewGenerateImageMCP(service *generation.Service, inlineImages bool) *GenerateImageMCP {
	return &GenerateImageMCP{
		service:      service,
		inlineImages: inlineImages,
	}
}

// RegisterTools registers the generate_image tool with the MCP server.
func (g *GenerateImageMCP) RegisterTools(server *mcp.Server) {
	if g == nil {
		return
	}

	modelIDs := make([]string, 0, len(g.service.ListModels()))
	for _, desc := range g.service.ListModels() {
		modelIDs = append(modelIDs, desc.ID)
	}

	inputSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "Text description of the desired image. Core/Ultra models favor natural language; SD3.5 models favor detailed technical descriptions.",
			},
			"model": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Model to use for generation",
				"enum":        modelIDs,
				"default":     model.DefaultModelID,
			},
			"aspect_ratio": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Image aspect ratio (ignored for image-to-image)",
				"default":     "1:1",
			},
			"seed": map[string]any{
				"type":        []string{"integer", "null"},
				"description": "Random seed for reproducible results, 0 means random",
				"minimum":     0,
				"maximum":     model.MaxSeed,
				"default":     0,
			},
			"output_format": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Output image format",
				"enum":        []string{generation.FormatPNG, generation.FormatJPEG},
				"default":     generation.DefaultOutputFormat,
			},
			"negative_prompt": map[string]any{
				"type":        []string{"string", "null"},
				"description": "What to avoid in the image. Not supported by all models.",
			},
			"image_path": map[string]any{
				"type":        []string{"string", "null"},
				"description": "Path to an input image for image-to-image generation",
			},
			"strength": map[string]any{
				"type":        []string{"number", "null"},
				"description": "How much to transform the input image (0.0-1.0). Only used for image-to-image.",
				"minimum":     0.0,
				"maximum":     1.0,
				"default":     generation.DefaultStrength,
			},
		},
		"required": []string{"prompt"},
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_image",
		Description: "Generate images using Stability AI models. Supports text-to-image and image-to-image generation; results are saved locally with a metadata record.",
		InputSchema: inputSchema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input GenerateImageArgs) (*mcp.CallToolResult, map[string]any, error) {
		startTime := time.Now()

		log.Info().
			Str("tool", "generate_image").
			Str("model", strValue(input.Model)).
			Msg("MCP tool call received")

		params := generation.Params{
			Prompt:         input.Prompt,
			Model:          strValue(input.Model),
			AspectRatio:    strValue(input.AspectRatio),
			NegativePrompt: strValue(input.NegativePrompt),
			ImagePath:      strValue(input.ImagePath),
			Strength:       input.Strength,
		}
		if input.Seed != nil {
			params.Seed = *input.Seed
		}
		if input.OutputFormat != nil {
			params.OutputFormat = *input.OutputFormat
		}

		outcome, err := g.service.Generate(ctx, params)
		if err != nil {
			metrics.RecordToolCall("generate_image", "error", time.Since(startTime).Seconds())
			return nil, nil, toolError(err)
		}

		metrics.RecordToolCall("generate_image", "success", time.Since(startTime).Seconds())

		structured := map[string]any{
			"model":         outcome.Request.Descriptor.ID,
			"mode":          string(outcome.Request.Mode),
			"seed":          outcome.Result.Seed,
			"output_format": outcome.Request.OutputFormat,
			"finish_reason": string(outcome.Result.FinishReason),
			"file_path":     outcome.Artifact.FilePath,
			"metadata_path": outcome.Artifact.MetadataPath,
			"size_bytes":    outcome.Artifact.SizeBytes,
		}

		content := []mcp.Content{
			&mcp.TextContent{Text: successText(outcome)},
		}
		if g.inlineImages {
			content = append(content, &mcp.ImageContent{
				Data:     outcome.Result.Image,
				MIMEType: outcome.Result.ContentType,
			})
		}

		return &mcp.CallToolResult{Content: content}, structured, nil
	})

	log.Info().Msg("Registered generate_image MCP tool")
}

func successText(outcome generation.Outcome) string {
	var b strings.Builder
	b.WriteString("Image generated successfully.\n\n")
	fmt.Fprintf(&b, "Model: %s\n", outcome.Request.Descriptor.ID)
	fmt.Fprintf(&b, "Type: %s\n", outcome.Request.Mode)
	fmt.Fprintf(&b, "Seed: %d\n", outcome.Result.Seed)
	fmt.Fprintf(&b, "Format: %s\n", outcome.Request.OutputFormat)
	fmt.Fprintf(&b, "File: %s\n", outcome.Artifact.FilePath)
	fmt.Fprintf(&b, "Metadata: %s\n", outcome.Artifact.MetadataPath)

	if outcome.Result.ContentFiltered() {
		b.WriteString("\nNote: the upstream NSFW filter flagged this result. ")
		b.WriteString("Try a different prompt or add negative prompts to avoid restricted content.\n")
	}
	return b.String()
}

// toolError flattens a platform error into the message surfaced to the MCP
// host, keeping the taxonomy visible without leaking stack detail.
func toolError(err error) error {
	var platformErr *platformerrors.PlatformError
	if platformerrors.IsStorageError(err) {
		// The image may exist upstream even though persistence failed; the
		// distinct message lets the caller tell the two apart.
		return fmt.Errorf("image generated but not durably saved: %w", err)
	}
	if errors.As(err, &platformErr) {
		return fmt.Errorf("%s: %s", platformErr.Type, platformErr.Message)
	}
	return err
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
