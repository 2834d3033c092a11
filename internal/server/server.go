// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/mochibot/kokoro/internal/config"
	"github.com/mochibot/kokoro/internal/tools"
)

// MCPServer wraps the mcp-go server with our configuration
type MCPServer struct {
	mcpServer *server.MCPServer
	config    *config.Config
	toolCtx   *tools.ToolContext
}

// NewMCPServer creates a new MCP server instance with all tools registered
func NewMCPServer(cfg *config.Config, version string, toolCtx *tools.ToolContext) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Kokoro",
		version,
		server.WithToolCapabilities(true),
	)

	srv := &MCPServer{
		mcpServer: mcpServer,
		config:    cfg,
		toolCtx:   toolCtx,
	}
	srv.registerTools()
	return srv
}

// registerTools registers all MCP tools
func (s *MCPServer) registerTools() {
	// kokoro_report_event: the ingestion surface - "this just happened"
	s.mcpServer.AddTool(tools.NewReportEventTool(), tools.ReportEventHandler(s.toolCtx))

	// kokoro_get_emotion: read a companion's emotion state
	s.mcpServer.AddTool(tools.NewGetEmotionTool(), tools.GetEmotionHandler(s.toolCtx))

	// kokoro_list_diaries: browse one day's entries and quota
	s.mcpServer.AddTool(tools.NewListDiariesTool(), tools.ListDiariesHandler(s.toolCtx))

	// kokoro_add_contact: pair principals for synchronization
	s.mcpServer.AddTool(tools.NewAddContactTool(), tools.AddContactHandler(s.toolCtx))

	// kokoro_provider_status: LLM registry health in failover order
	s.mcpServer.AddTool(tools.NewProviderStatusTool(), tools.ProviderStatusHandler(s.toolCtx))
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin/stdout
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP serves MCP over streamable HTTP on the given address
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(addr)
}
