package mcp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"stability-mcp/internal/interfaces/httpserver/responses"
	"stability-mcp/utils/platformerrors"
)

var allowedMCPMethods = map[string]bool{
	// Initialization / handshake
	"initialize":                true,
	"notifications/initialized": true,
	"ping":                      true,

	// Tools
	"tools/list": true,
	"tools/call": true,

	// Prompts
	"prompts/list": true,

	// Resources
	"resources/list":           true,
	"resources/templates/list": true,
	"resources/read":           true,
}

type MCPRoute struct {
	generateMCP *GenerateImageMCP
	registryMCP *RegistryMCP
	mcpServer   *mcp.Server
	httpHandler http.Handler
}

func NewMCPRoute(generateMCP *GenerateImageMCP, registryMCP *RegistryMCP) *MCPRoute {
	impl := &mcp.Implementation{
		Name:    "stability-ai",
		Version: "1.0.0",
	}
	server := mcp.NewServer(impl, nil)

	generateMCP.RegisterTools(server)
	registryMCP.RegisterTools(server)

	return &MCPRoute{
		generateMCP: generateMCP,
		registryMCP: registryMCP,
		mcpServer:   server,
		httpHandler: mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
			return server
		}, &mcp.StreamableHTTPOptions{Stateless: true}),
	}
}

func (route *MCPRoute) RegisterRouter(router *gin.RouterGroup) {
	router.POST("/mcp",
		MCPMethodGuard(allowedMCPMethods),
		route.serveMCP,
	)
}

// serveMCP streams Model Context Protocol responses using the underlying MCP server.
//
// Available tools:
//   - generate_image: text-to-image and image-to-image generation via the
//     Stability AI API, with local persistence of the image + metadata pair.
//   - list_models: model identifiers, families, and capability flags.
//   - get_storage_info: storage directory, file counts, and aggregate size.
func (route *MCPRoute) serveMCP(reqCtx *gin.Context) {
	// Force acceptable content types for go-sdk streamable handler even if client omits Accept.
	reqCtx.Request.Header.Set("Accept", "application/json, text/event-stream")
	route.httpHandler.ServeHTTP(reqCtx.Writer, reqCtx.Request)
}

func MCPMethodGuard(allowedMethods map[string]bool) gin.HandlerFunc {
	return func(reqCtx *gin.Context) {
		bodyBytes, err := io.ReadAll(reqCtx.Request.Body)
		if err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeInternal, "failed to read MCP request body", "5f2ab0c4-8a0e-4a27-9a64-32d21dc8d11b")
			return
		}
		_ = reqCtx.Request.Body.Close()

		if len(bodyBytes) == 0 {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "empty MCP request body", "9d44f6de-4f5e-40f2-8f64-0f1f7a3f2a6c")
			return
		}

		reqCtx.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var payload struct {
			Method string `json:"method"`
		}

		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid MCP request payload", "b61c2d6a-6a5a-4a3d-8f0e-d8cf53ba9a71")
			return
		}

		if payload.Method == "" {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "missing method field in MCP request", "2c8df9d4-3f70-4f2d-b9cf-676a1df9b0e4")
			return
		}

		if !allowedMethods[payload.Method] {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "unsupported MCP method: "+payload.Method, "e3a2b59f-0a4c-4d16-a0bf-5b6f9f1f34d2")
			return
		}

		reqCtx.Next()
	}
}
