// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentberlin/trailhead"
	"github.com/agentberlin/trailhead/internal/mcp"
	"github.com/agentberlin/trailhead/internal/server"
	"github.com/agentberlin/trailhead/internal/store"
	"github.com/agentberlin/trailhead/internal/version"
)

// serveFlags holds all the flags for the serve command
type serveFlags struct {
	// Listen
	host    string
	port    int
	mcpPort int
	stdio   bool

	// Scheduling
	strategy             string
	maxDepth             int
	domains              string
	disableDupFilter     bool
	disableOffsiteFilter bool

	// Persistence
	noStore bool
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	var flags serveFlags

	// Listen
	fs.StringVar(&flags.host, "host", "0.0.0.0", "Host to bind the HTTP server to")
	fs.IntVar(&flags.port, "port", 8080, "Port for the HTTP control API")
	fs.IntVar(&flags.mcpPort, "mcp-port", 0, "Port for the MCP server over HTTP (0 = disabled)")
	fs.BoolVar(&flags.stdio, "stdio", false, "Serve MCP over stdio instead of HTTP")

	// Scheduling
	fs.StringVar(&flags.strategy, "strategy", string(trailhead.BreadthFirst), "Dequeue ordering: breadth-first, depth-first")
	fs.IntVar(&flags.maxDepth, "max-depth", 0, "Maximum link depth from the seeds (0 = unlimited)")
	fs.StringVar(&flags.domains, "domains", "", "Comma-separated allowed domains (default: the seed domains)")
	fs.BoolVar(&flags.disableDupFilter, "disable-duplicate-filter", false, "Allow the same URL to be queued more than once")
	fs.BoolVar(&flags.disableOffsiteFilter, "disable-offsite-filter", false, "Admit links outside the allowed domains")

	// Persistence
	fs.BoolVar(&flags.noStore, "no-store", false, "Run without the run database")

	fs.Usage = func() {
		fmt.Println(`Usage: trailhead serve [url...] [flags]

Run the HTTP control API around a crawl frontier. Seed URLs are optional;
candidates can also be fed through POST /api/v1/feed.

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  # Control API on port 8080
  trailhead serve https://example.com

  # Control API plus MCP over HTTP
  trailhead serve https://example.com --mcp-port 8081

  # MCP over stdio for desktop agents
  trailhead serve --stdio`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.strategy != string(trailhead.BreadthFirst) && flags.strategy != string(trailhead.DepthFirst) {
		return fmt.Errorf("invalid strategy: %s (must be breadth-first or depth-first)", flags.strategy)
	}

	var seeds []trailhead.Request
	if fs.NArg() > 0 {
		var err error
		seeds, err = parseSeeds(fs.Args())
		if err != nil {
			return err
		}
	}
	conf, err := buildFrontierConfig(flags.strategy, flags.maxDepth, flags.domains,
		flags.disableDupFilter, flags.disableOffsiteFilter, seeds)
	if err != nil {
		return err
	}

	crawler, err := trailhead.NewCrawler(&trailhead.CrawlerConfig{Frontier: conf})
	if err != nil {
		return err
	}
	defer crawler.Close()

	var st *store.Store
	if !flags.noStore {
		st, err = store.NewStore()
		if err != nil {
			return fmt.Errorf("failed to initialize database: %v", err)
		}
	}

	// Stdio mode serves only the MCP transport; logs go to stderr so
	// stdout stays clean for the protocol
	if flags.stdio {
		mcpServer := mcp.NewMCPServer(context.Background(), crawler, st)
		defer mcpServer.Close()
		return mcpServer.Run()
	}

	srv := server.NewServer(crawler, st)

	addr := fmt.Sprintf("%s:%d", flags.host, flags.port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Trailhead control API %s starting on %s", version.CurrentVersion, addr)
		log.Printf("Health check: http://%s/api/v1/health", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	var mcpHTTP *http.Server
	if flags.mcpPort > 0 {
		mcpServer := mcp.NewMCPServer(context.Background(), crawler, st)
		defer mcpServer.Close()
		mcpHTTP, err = mcpServer.RunHTTP(fmt.Sprintf("%s:%d", flags.host, flags.mcpPort))
		if err != nil {
			return fmt.Errorf("failed to start MCP server: %v", err)
		}
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if mcpHTTP != nil {
		if err := mcpHTTP.Shutdown(ctx); err != nil {
			log.Printf("MCP server forced to shutdown: %v", err)
		}
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
	return nil
}
