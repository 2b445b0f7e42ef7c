package mcp

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/agentberlin/trailhead"
	"github.com/agentberlin/trailhead/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ServerName    = "trailhead"
	ServerVersion = "1.0.0"
)

// MCPServer wraps a live crawler and its run history and exposes them via MCP protocol
type MCPServer struct {
	server  *mcp.Server
	crawler *trailhead.Crawler
	store   *store.Store
	ctx     context.Context
	started time.Time
	logger  *log.Logger
}

// NewMCPServer creates a new MCP server instance. The store may be nil when
// persistence is disabled; the run history tools report that to the caller.
func NewMCPServer(ctx context.Context, crawler *trailhead.Crawler, st *store.Store) *MCPServer {
	logger := log.New(os.Stderr, "[Trailhead MCP] ", log.LstdFlags)

	// Create MCP server
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)

	s := &MCPServer{
		server:  mcpServer,
		crawler: crawler,
		store:   st,
		ctx:     ctx,
		started: time.Now(),
		logger:  logger,
	}

	// Register all tools
	s.registerTools()

	logger.Printf("MCP server initialized successfully")
	return s
}

// GetServer returns the internal MCP server instance
func (s *MCPServer) GetServer() *mcp.Server {
	return s.server
}

// Run starts the MCP server on stdio transport and blocks until the client
// disconnects or the context is cancelled
func (s *MCPServer) Run() error {
	s.logger.Printf("Starting MCP server on stdio...")
	return s.server.Run(s.ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server with HTTP transport using StreamableHTTPHandler
func (s *MCPServer) RunHTTP(addr string) (*http.Server, error) {
	s.logger.Printf("Starting MCP HTTP server on %s...", addr)

	// Create StreamableHTTPHandler
	handler := mcp.NewStreamableHTTPHandler(
		func(req *http.Request) *mcp.Server {
			return s.server
		},
		nil, // Use default StreamableHTTPOptions
	)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start server in goroutine
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("HTTP server error: %v", err)
		}
	}()

	s.logger.Printf("MCP HTTP server started successfully on %s", addr)
	return httpServer, nil
}

// Close performs cleanup
func (s *MCPServer) Close() error {
	s.logger.Printf("Shutting down MCP server...")
	// The crawler and store are owned by the caller and outlive this server
	return nil
}
