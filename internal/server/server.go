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

package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agentberlin/trailhead"
	"github.com/agentberlin/trailhead/internal/store"
	"github.com/agentberlin/trailhead/internal/types"
	"github.com/agentberlin/trailhead/internal/version"
)

// Server represents the HTTP control server for a running crawl
type Server struct {
	crawler *trailhead.Crawler
	store   *store.Store
	started time.Time
	mux     *http.ServeMux

	// mu serializes frontier access across handler goroutines. The
	// frontier expects a single driver and does no locking of its own.
	mu sync.Mutex
}

// NewServer creates a new HTTP control server. The store may be nil, in
// which case the run endpoints respond 404.
func NewServer(crawler *trailhead.Crawler, st *store.Store) *Server {
	s := &Server{
		crawler: crawler,
		store:   st,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}

	// Register routes
	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS middleware
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	// Handle preflight
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Logging middleware
	log.Printf("%s %s", r.Method, r.URL.Path)

	// Serve request
	s.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/version", s.handleGetVersion)
	s.mux.HandleFunc("/api/v1/stats", s.handleStats)
	s.mux.HandleFunc("/api/v1/frontier", s.handleFrontier)
	s.mux.HandleFunc("/api/v1/feed", s.handleFeed)
	s.mux.HandleFunc("/api/v1/reset", s.handleReset)
	s.mux.HandleFunc("/api/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/api/v1/runs/", s.handleRunsWithID)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// handleGetVersion returns the application version
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"version": version.CurrentVersion,
	})
}

// handleStats handles GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.crawler.Stats().Snapshot()
	elapsed := time.Since(s.started)

	resp := types.StatsResponse{
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
		ElapsedMs:             elapsed.Milliseconds(),
		Rate:                  snap.Rate(elapsed),
	}
	if eta, ok := snap.RemainingDuration(elapsed); ok {
		minutes := int64(eta / time.Minute)
		resp.EstimatedMinutes = &minutes
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleFrontier handles GET /api/v1/frontier
func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frontier := s.crawler.Frontier()
	s.mu.Lock()
	status := types.FrontierStatus{
		Strategy:  string(frontier.Strategy()),
		Remaining: frontier.Remaining(),
		HasNext:   frontier.HasNext(),
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleFeed handles POST /api/v1/feed
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		URLs []string `json:"urls"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.URLs) == 0 {
		http.Error(w, "At least one URL required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.crawler.FeedDiscovered(req.URLs...)
	s.mu.Unlock()

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "URLs offered to the frontier",
		"offered": len(req.URLs),
	})
}

// handleReset handles POST /api/v1/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	s.crawler.Frontier().Reset()
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Frontier reset",
	})
}

// handleRuns handles GET /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "No store configured", http.StatusNotFound)
		return
	}

	runs, err := s.store.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]types.RunInfo, 0, len(runs))
	for i := range runs {
		infos = append(infos, runInfo(&runs[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// handleRunsWithID handles /api/v1/runs/{id}
func (s *Server) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "No store configured", http.StatusNotFound)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	runID, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		http.Error(w, "Invalid run ID", http.StatusBadRequest)
		return
	}

	// GET /api/v1/runs/{id}
	if len(parts) == 1 && r.Method == "GET" {
		run, err := s.store.GetRunByID(uint(runID))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		queueStats, err := s.store.GetQueueStats(uint(runID))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		detail := types.RunDetail{
			RunInfo:      runInfo(run),
			Pending:      queueStats.Pending,
			Fingerprints: queueStats.Fingerprints,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(detail)
		return
	}

	// DELETE /api/v1/runs/{id}
	if len(parts) == 1 && r.Method == "DELETE" {
		if err := s.store.DeleteRun(uint(runID)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	http.Error(w, "Not found", http.StatusNotFound)
}

func runInfo(run *store.Run) types.RunInfo {
	return types.RunInfo{
		ID:         run.ID,
		Domain:     run.Domain,
		State:      run.State,
		Strategy:   run.Strategy,
		StartedAt:  run.StartedAt,
		Duration:   run.Duration,
		Processed:  run.Processed,
		Successful: run.Successful,
		Remaining:  run.Remaining,
	}
}
