package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"stability-mcp/internal/domain/generation"
	"stability-mcp/internal/domain/model"
	"stability-mcp/internal/infrastructure/metrics"
)

// RegistryMCP serves the read-only tools: list_models and get_storage_info.
type RegistryMCP struct {
	service *generation.Service
}

// NewRegistryMCP creates the read-only tool handler.
func NewRegistryMCP(service *generation.Service) *RegistryMCP {
	return &RegistryMCP{service: service}
}

var emptyInputSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{},
	"required":   []string{},
}

// RegisterTools registers list_models and get_storage_info with the MCP server.
func (r *RegistryMCP) RegisterTools(server *mcp.Server) {
	if r == nil {
		return
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_models",
		Description: "Get information about available Stability AI models and their capabilities.",
		InputSchema: emptyInputSchema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, map[string]any, error) {
		startTime := time.Now()

		descriptors := r.service.ListModels()
		structured := make(map[string]any, len(descriptors))
		for _, desc := range descriptors {
			structured[desc.ID] = map[string]any{
				"name":                     desc.Name,
				"family":                   string(desc.Family),
				"tier":                     string(desc.Tier),
				"supports_negative_prompt": desc.SupportsNegativePrompt,
				"supports_image_to_image":  desc.SupportsImageToImage,
				"default_aspect_ratio":     desc.DefaultAspectRatio,
			}
		}

		metrics.RecordToolCall("list_models", "success", time.Since(startTime).Seconds())
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: formatModelList(descriptors)}},
		}, structured, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_storage_info",
		Description: "Get information about the image storage directory and its contents.",
		InputSchema: emptyInputSchema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, map[string]any, error) {
		startTime := time.Now()

		info, err := r.service.StorageInfo(ctx)
		if err != nil {
			metrics.RecordToolCall("get_storage_info", "error", time.Since(startTime).Seconds())
			return nil, nil, toolError(err)
		}

		structured := map[string]any{
			"storage_path":     info.Directory,
			"exists":           info.Exists,
			"writable":         info.Writable,
			"total_files":      info.TotalFiles,
			"image_files":      info.ImageFiles,
			"metadata_files":   info.MetadataFiles,
			"total_size_bytes": info.TotalBytes,
			"total_size_mb":    info.TotalMB(),
		}

		metrics.RecordToolCall("get_storage_info", "success", time.Since(startTime).Seconds())
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: formatStorageInfo(info)}},
		}, structured, nil
	})

	log.Info().Msg("Registered list_models and get_storage_info MCP tools")
}

// formatModelList groups models the way operators think about them:
// Core/Ultra first, then the SD3.5 family.
func formatModelList(descriptors []model.Descriptor) string {
	var coreUltra, sd35 []model.Descriptor
	for _, desc := range descriptors {
		if desc.Family == model.FamilyCoreUltra {
			coreUltra = append(coreUltra, desc)
		} else {
			sd35 = append(sd35, desc)
		}
	}

	var b strings.Builder
	b.WriteString("Available Stability AI models:\n")

	if len(coreUltra) > 0 {
		b.WriteString("\nCore/Ultra models (recommended):\n")
		writeModelLines(&b, coreUltra)
	}
	if len(sd35) > 0 {
		b.WriteString("\nSD3.5 family models:\n")
		writeModelLines(&b, sd35)
	}

	b.WriteString("\nUsage tips:\n")
	b.WriteString("- Core/Ultra models work best with natural language prompts\n")
	b.WriteString("- SD3.5 models offer more technical control\n")
	b.WriteString("- Use stable-image-core for fast, cost-effective generation\n")
	b.WriteString("- Use stable-image-ultra for highest quality results\n")
	b.WriteString("- Use sd3.5-flash for rapid iteration and previews\n")
	return b.String()
}

func writeModelLines(b *strings.Builder, descriptors []model.Descriptor) {
	for _, desc := range descriptors {
		defaultMarker := ""
		if desc.ID == model.DefaultModelID {
			defaultMarker = " (default)"
		}
		capabilities := []string{"image-to-image"}
		if !desc.SupportsImageToImage {
			capabilities = capabilities[:0]
		}
		if desc.SupportsNegativePrompt {
			capabilities = append(capabilities, "negative prompts")
		}
		fmt.Fprintf(b, "- %s%s: %s", desc.ID, defaultMarker, desc.Description)
		if len(capabilities) > 0 {
			fmt.Fprintf(b, " Supports: %s.", strings.Join(capabilities, ", "))
		}
		b.WriteString("\n")
	}
}

func formatStorageInfo(info generation.StorageInfo) string {
	var b strings.Builder
	b.WriteString("Image storage information:\n\n")
	fmt.Fprintf(&b, "Storage path: %s\n", info.Directory)
	fmt.Fprintf(&b, "Exists: %t, writable: %t\n", info.Exists, info.Writable)
	fmt.Fprintf(&b, "Total files: %d\n", info.TotalFiles)
	fmt.Fprintf(&b, "Image files: %d\n", info.ImageFiles)
	fmt.Fprintf(&b, "Metadata files: %d\n", info.MetadataFiles)
	fmt.Fprintf(&b, "Total size: %.2f MB\n", info.TotalMB())
	return b.String()
}
