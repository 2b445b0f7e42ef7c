package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerTools registers all MCP tools with the server
func (s *MCPServer) registerTools() {
	s.logger.Printf("Registering MCP tools...")

	// Live crawl inspection tools
	s.registerGetCrawlStatisticsTool()
	s.registerGetFrontierStatusTool()

	// Run history tools
	s.registerListRunsTool()
	s.registerGetRunTool()

	s.logger.Printf("All MCP tools registered successfully")
}

// GetCrawlStatisticsResult defines the output schema for get_crawl_statistics tool
type GetCrawlStatisticsResult struct {
	Successful            int64   `json:"successful"`
	Timeouts              int64   `json:"timeouts"`
	Redirects             int64   `json:"redirects"`
	ContentTypeMismatches int64   `json:"contentTypeMismatches"`
	ResponseErrors        int64   `json:"responseErrors"`
	NetworkErrors         int64   `json:"networkErrors"`
	Processed             int64   `json:"processed"`
	Duplicates            int64   `json:"duplicates"`
	Offsite               int64   `json:"offsite"`
	DepthLimited          int64   `json:"depthLimited"`
	Remaining             int64   `json:"remaining"`
	RatePerMinute         float64 `json:"ratePerMinute"`
	EstimatedMinutes      *int64  `json:"estimatedMinutes,omitempty"`
}

// registerGetCrawlStatisticsTool registers the get_crawl_statistics tool
func (s *MCPServer) registerGetCrawlStatisticsTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_crawl_statistics",
		Description: "Gets live statistics for the running crawl (outcome counters, processing rate, completion estimate)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
		s.logger.Printf("Tool called: get_crawl_statistics")

		stats := s.crawler.Stats()
		snap := stats.Snapshot()
		elapsed := time.Since(s.started)

		result := GetCrawlStatisticsResult{
			Successful:            snap.Successful,
			Timeouts:              snap.Timeouts,
			Redirects:             snap.Redirects,
			ContentTypeMismatches: snap.ContentTypeMismatches,
			ResponseErrors:        snap.ResponseErrors,
			NetworkErrors:         snap.NetworkErrors,
			Processed:             snap.Processed,
			Duplicates:            snap.Duplicates,
			Offsite:               snap.Offsite,
			DepthLimited:          snap.DepthLimited,
			Remaining:             snap.Remaining,
			RatePerMinute:         snap.Rate(elapsed),
		}
		if eta, ok := snap.RemainingDuration(elapsed); ok {
			minutes := int64(eta / time.Minute)
			result.EstimatedMinutes = &minutes
		}

		resultJSON, _ := json.MarshalIndent(result, "", "  ")
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: fmt.Sprintf("Crawl statistics:\n%s", string(resultJSON)),
				},
			},
		}, result, nil
	})
}

// GetFrontierStatusResult defines the output schema for get_frontier_status tool
type GetFrontierStatusResult struct {
	Strategy  string `json:"strategy"`
	Remaining int    `json:"remaining"`
	HasNext   bool   `json:"hasNext"`
}

// registerGetFrontierStatusTool registers the get_frontier_status tool
func (s *MCPServer) registerGetFrontierStatusTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_frontier_status",
		Description: "Gets the current frontier state (ordering strategy, queued candidate count)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
		s.logger.Printf("Tool called: get_frontier_status")

		frontier := s.crawler.Frontier()
		result := GetFrontierStatusResult{
			Strategy:  string(frontier.Strategy()),
			Remaining: frontier.Remaining(),
			HasNext:   frontier.HasNext(),
		}

		resultJSON, _ := json.MarshalIndent(result, "", "  ")
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: fmt.Sprintf("Frontier status:\n%s", string(resultJSON)),
				},
			},
		}, result, nil
	})
}

// registerListRunsTool registers the list_runs tool
func (s *MCPServer) registerListRunsTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_runs",
		Description: "Lists all recorded crawl runs with their state and progress counters",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
		s.logger.Printf("Tool called: list_runs")

		if s.store == nil {
			return nil, nil, fmt.Errorf("run history is unavailable: persistence is disabled")
		}

		runs, err := s.store.ListRuns()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list runs: %w", err)
		}

		summaries := make([]map[string]interface{}, 0, len(runs))
		for _, run := range runs {
			summaries = append(summaries, map[string]interface{}{
				"id":         run.ID,
				"domain":     run.Domain,
				"state":      run.State,
				"strategy":   run.Strategy,
				"startedAt":  run.StartedAt,
				"duration":   run.Duration,
				"processed":  run.Processed,
				"successful": run.Successful,
				"remaining":  run.Remaining,
			})
		}

		result := map[string]interface{}{
			"runs": summaries,
		}

		runsJSON, _ := json.MarshalIndent(result, "", "  ")
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: fmt.Sprintf("Found %d runs:\n%s", len(runs), string(runsJSON)),
				},
			},
		}, result, nil
	})
}

// GetRunArgs defines the input schema for get_run tool
type GetRunArgs struct {
	RunID uint `json:"runId"`
}

// registerGetRunTool registers the get_run tool
func (s *MCPServer) registerGetRunTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_run",
		Description: "Gets a single crawl run with its counters and saved frontier size",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetRunArgs) (*mcp.CallToolResult, any, error) {
		s.logger.Printf("Tool called: get_run for run ID: %d", args.RunID)

		if s.store == nil {
			return nil, nil, fmt.Errorf("run history is unavailable: persistence is disabled")
		}

		run, err := s.store.GetRunByID(args.RunID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get run: %w", err)
		}

		queueStats, err := s.store.GetQueueStats(args.RunID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get queue stats: %w", err)
		}

		result := map[string]interface{}{
			"id":           run.ID,
			"domain":       run.Domain,
			"state":        run.State,
			"strategy":     run.Strategy,
			"startedAt":    run.StartedAt,
			"duration":     run.Duration,
			"maxDepth":     run.MaxDepth,
			"processed":    run.Processed,
			"successful":   run.Successful,
			"remaining":    run.Remaining,
			"pending":      queueStats.Pending,
			"fingerprints": queueStats.Fingerprints,
		}

		resultJSON, _ := json.MarshalIndent(result, "", "  ")
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: fmt.Sprintf("Run %d:\n%s", args.RunID, string(resultJSON)),
				},
			},
		}, result, nil
	})
}
