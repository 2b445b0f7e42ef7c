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

package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agentberlin/trailhead"
)

// CreateRun creates a new run for a domain, capturing the frontier
// configuration the crawl was started with. A nil config stores the
// defaults.
func (s *Store) CreateRun(domain string, conf *trailhead.Config) (*Run, error) {
	if conf == nil {
		conf = trailhead.NewDefaultConfig()
	}

	strategy := string(conf.Strategy)
	if strategy == "" {
		strategy = string(trailhead.BreadthFirst)
	}

	run := Run{
		Domain:                 domain,
		State:                  RunStateInProgress,
		StartedAt:              time.Now().UnixMilli(),
		Strategy:               strategy,
		MaxDepth:               conf.MaxDepth,
		DisableDuplicateFilter: conf.DisableDuplicateFilter,
		DisableOffsiteFilter:   conf.DisableOffsiteFilter,
	}

	seeds := make([]string, 0, len(conf.Seeds))
	for _, seed := range conf.Seeds {
		seeds = append(seeds, seed.URL)
	}
	if err := run.SetSeedsArray(seeds); err != nil {
		return nil, fmt.Errorf("failed to serialize seeds: %v", err)
	}

	domains := make([]string, 0, len(conf.AllowedDomains))
	for _, d := range conf.AllowedDomains {
		domains = append(domains, d.Name())
	}
	if err := run.SetAllowedDomainsArray(domains); err != nil {
		return nil, fmt.Errorf("failed to serialize allowed domains: %v", err)
	}

	if err := s.db.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to create run: %v", err)
	}

	return &run, nil
}

// FrontierConfig rebuilds the frontier configuration this run was started
// with. Restoring a saved state requires the original config so the
// rebuilt queue reproduces the saved dequeue order.
func (r *Run) FrontierConfig() (*trailhead.Config, error) {
	conf := trailhead.NewDefaultConfig()
	conf.Strategy = trailhead.Strategy(r.Strategy)
	conf.MaxDepth = r.MaxDepth
	conf.DisableDuplicateFilter = r.DisableDuplicateFilter
	conf.DisableOffsiteFilter = r.DisableOffsiteFilter

	for _, rawURL := range r.GetSeedsArray() {
		req, err := trailhead.NewRequest(rawURL)
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild seed %q: %v", rawURL, err)
		}
		conf.Seeds = append(conf.Seeds, req)
	}

	for _, name := range r.GetAllowedDomainsArray() {
		domain, err := trailhead.NewDomain(name)
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild allowed domain %q: %v", name, err)
		}
		conf.AllowedDomains = append(conf.AllowedDomains, domain)
	}

	return conf, nil
}

// UpdateRunStats mirrors a stats snapshot into the run's counter columns.
// Duration is the accumulated crawl time in milliseconds.
func (s *Store) UpdateRunStats(runID uint, duration int64, snap trailhead.Snapshot) error {
	return s.db.Model(&Run{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"duration":                duration,
		"processed":               snap.Processed,
		"successful":              snap.Successful,
		"timeouts":                snap.Timeouts,
		"redirects":               snap.Redirects,
		"content_type_mismatches": snap.ContentTypeMismatches,
		"response_errors":         snap.ResponseErrors,
		"network_errors":          snap.NetworkErrors,
		"duplicates":              snap.Duplicates,
		"offsite":                 snap.Offsite,
		"depth_limited":           snap.DepthLimited,
		"remaining":               snap.Remaining,
	}).Error
}

// UpdateRunState updates the lifecycle state of a run
func (s *Store) UpdateRunState(runID uint, state string) error {
	return s.db.Model(&Run{}).Where("id = ?", runID).Update("state", state).Error
}

// GetRunByID gets a run by ID
func (s *Store) GetRunByID(id uint) (*Run, error) {
	var run Run
	result := s.db.First(&run, id)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get run: %v", result.Error)
	}
	return &run, nil
}

// ListRuns returns all runs ordered by start time, newest first
func (s *Store) ListRuns() ([]Run, error) {
	var runs []Run
	result := s.db.Order("started_at DESC, id DESC").Find(&runs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list runs: %v", result.Error)
	}
	return runs, nil
}

// GetLatestRun gets the most recent run for a domain.
// Returns nil when the domain has no runs.
func (s *Store) GetLatestRun(domain string) (*Run, error) {
	var run Run
	result := s.db.Where("domain = ?", domain).Order("started_at DESC, id DESC").First(&run)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest run: %v", result.Error)
	}
	return &run, nil
}

// GetResumableRun returns the most recent in-progress or paused run for a
// domain. Returns nil when there is nothing to resume.
func (s *Store) GetResumableRun(domain string) (*Run, error) {
	var run Run
	result := s.db.Where("domain = ? AND state IN ?", domain, []string{RunStateInProgress, RunStatePaused}).
		Order("started_at DESC, id DESC").First(&run)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resumable run: %v", result.Error)
	}
	return &run, nil
}

// DeleteRun deletes a run and its saved state
func (s *Store) DeleteRun(runID uint) error {
	if err := s.ClearState(runID); err != nil {
		return err
	}
	result := s.db.Delete(&Run{}, runID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run with ID %d not found", runID)
	}
	return nil
}
