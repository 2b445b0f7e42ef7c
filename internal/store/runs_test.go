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
	"path/filepath"
	"testing"

	"github.com/agentberlin/trailhead"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := newStoreWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func testConfig(t *testing.T, seedURLs ...string) *trailhead.Config {
	t.Helper()

	conf := trailhead.NewDefaultConfig()
	for _, rawURL := range seedURLs {
		req, err := trailhead.NewRequest(rawURL)
		if err != nil {
			t.Fatalf("NewRequest(%q) failed: %v", rawURL, err)
		}
		conf.Seeds = append(conf.Seeds, req)
	}
	return conf
}

func TestCreateRun(t *testing.T) {
	store := newTestStore(t)

	conf := testConfig(t, "https://example.com/")
	conf.MaxDepth = 3
	domain, err := trailhead.NewDomain("example.com")
	if err != nil {
		t.Fatalf("NewDomain() failed: %v", err)
	}
	conf.AllowedDomains = []trailhead.CrawlDomain{domain}

	run, err := store.CreateRun("example.com", conf)
	if err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}

	if run.ID == 0 {
		t.Error("Expected run ID to be non-zero")
	}
	if run.Domain != "example.com" {
		t.Errorf("Expected Domain = %q, got %q", "example.com", run.Domain)
	}
	if run.State != RunStateInProgress {
		t.Errorf("Expected State = %q, got %q", RunStateInProgress, run.State)
	}
	if run.Strategy != string(trailhead.BreadthFirst) {
		t.Errorf("Expected Strategy = %q, got %q", trailhead.BreadthFirst, run.Strategy)
	}
	if run.StartedAt == 0 {
		t.Error("Expected StartedAt to be set")
	}

	t.Run("FrontierConfig_RoundTrips", func(t *testing.T) {
		loaded, err := store.GetRunByID(run.ID)
		if err != nil {
			t.Fatalf("GetRunByID() failed: %v", err)
		}

		got, err := loaded.FrontierConfig()
		if err != nil {
			t.Fatalf("FrontierConfig() failed: %v", err)
		}

		if got.Strategy != conf.Strategy {
			t.Errorf("Expected strategy %q, got %q", conf.Strategy, got.Strategy)
		}
		if got.MaxDepth != conf.MaxDepth {
			t.Errorf("Expected max depth %d, got %d", conf.MaxDepth, got.MaxDepth)
		}
		if len(got.Seeds) != 1 || got.Seeds[0].URL != conf.Seeds[0].URL {
			t.Errorf("Expected seeds %v, got %v", conf.Seeds, got.Seeds)
		}
		if len(got.AllowedDomains) != 1 || got.AllowedDomains[0].Name() != "example.com" {
			t.Errorf("Expected allowed domain example.com, got %v", got.AllowedDomains)
		}
	})

	t.Run("NilConfig_StoresDefaults", func(t *testing.T) {
		run, err := store.CreateRun("defaults.example", nil)
		if err != nil {
			t.Fatalf("CreateRun() failed: %v", err)
		}
		if run.Strategy != string(trailhead.BreadthFirst) {
			t.Errorf("Expected default strategy, got %q", run.Strategy)
		}
		if run.Seeds != "" {
			t.Errorf("Expected empty seeds, got %q", run.Seeds)
		}
	})
}

func TestRunStateManagement(t *testing.T) {
	store := newTestStore(t)

	t.Run("UpdateRunState_Works", func(t *testing.T) {
		run, err := store.CreateRun("state-test.example", nil)
		if err != nil {
			t.Fatalf("CreateRun() failed: %v", err)
		}

		// Update to paused
		err = store.UpdateRunState(run.ID, RunStatePaused)
		if err != nil {
			t.Fatalf("UpdateRunState() failed: %v", err)
		}

		// Verify
		updated, err := store.GetRunByID(run.ID)
		if err != nil {
			t.Fatalf("GetRunByID() failed: %v", err)
		}

		if updated.State != RunStatePaused {
			t.Errorf("Expected state = %q, got %q", RunStatePaused, updated.State)
		}
	})

	t.Run("GetResumableRun_ReturnsPausedRun", func(t *testing.T) {
		run, _ := store.CreateRun("paused-run.example", nil)
		store.UpdateRunState(run.ID, RunStatePaused)

		resumable, err := store.GetResumableRun("paused-run.example")
		if err != nil {
			t.Fatalf("GetResumableRun() failed: %v", err)
		}

		if resumable == nil {
			t.Fatal("Expected to find paused run, got nil")
		}
		if resumable.ID != run.ID {
			t.Errorf("Expected run ID %d, got %d", run.ID, resumable.ID)
		}
	})

	t.Run("GetResumableRun_ReturnsInProgressRun", func(t *testing.T) {
		run, _ := store.CreateRun("active-run.example", nil)

		resumable, err := store.GetResumableRun("active-run.example")
		if err != nil {
			t.Fatalf("GetResumableRun() failed: %v", err)
		}

		if resumable == nil {
			t.Fatal("Expected to find in-progress run, got nil")
		}
		if resumable.ID != run.ID {
			t.Errorf("Expected run ID %d, got %d", run.ID, resumable.ID)
		}
	})

	t.Run("GetResumableRun_ReturnsNilForCompletedRun", func(t *testing.T) {
		run, _ := store.CreateRun("completed-run.example", nil)
		store.UpdateRunState(run.ID, RunStateCompleted)

		resumable, err := store.GetResumableRun("completed-run.example")
		if err != nil {
			t.Fatalf("GetResumableRun() failed: %v", err)
		}
		if resumable != nil {
			t.Errorf("Expected nil for completed run, got run ID %d", resumable.ID)
		}
	})

	t.Run("GetResumableRun_ReturnsNilForUnknownDomain", func(t *testing.T) {
		resumable, err := store.GetResumableRun("never-crawled.example")
		if err != nil {
			t.Fatalf("GetResumableRun() failed: %v", err)
		}
		if resumable != nil {
			t.Errorf("Expected nil, got run ID %d", resumable.ID)
		}
	})
}

func TestUpdateRunStats(t *testing.T) {
	store := newTestStore(t)

	run, err := store.CreateRun("stats-test.example", nil)
	if err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}

	// Distinct values per counter to catch column mix-ups
	snap := trailhead.Snapshot{
		Successful:            1,
		Timeouts:              2,
		Redirects:             3,
		ContentTypeMismatches: 4,
		ResponseErrors:        5,
		NetworkErrors:         6,
		Processed:             21,
		Duplicates:            7,
		Offsite:               8,
		DepthLimited:          9,
		Remaining:             10,
	}

	if err := store.UpdateRunStats(run.ID, 90000, snap); err != nil {
		t.Fatalf("UpdateRunStats() failed: %v", err)
	}

	updated, err := store.GetRunByID(run.ID)
	if err != nil {
		t.Fatalf("GetRunByID() failed: %v", err)
	}

	if updated.Duration != 90000 {
		t.Errorf("Expected duration 90000, got %d", updated.Duration)
	}
	if got := updated.Snapshot(); got != snap {
		t.Errorf("Expected snapshot %+v, got %+v", snap, got)
	}
}

func TestListRuns(t *testing.T) {
	store := newTestStore(t)

	run1, err := store.CreateRun("list-one.example", nil)
	if err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
	run2, err := store.CreateRun("list-two.example", nil)
	if err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}

	runs, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}

	foundRun1, foundRun2 := false, false
	for _, r := range runs {
		if r.ID == run1.ID {
			foundRun1 = true
		}
		if r.ID == run2.ID {
			foundRun2 = true
		}
	}
	if !foundRun1 || !foundRun2 {
		t.Error("Not all runs found in ListRuns result")
	}
}

func TestGetLatestRun(t *testing.T) {
	store := newTestStore(t)

	t.Run("ReturnsNewestRun", func(t *testing.T) {
		store.CreateRun("latest-test.example", nil)
		newest, err := store.CreateRun("latest-test.example", nil)
		if err != nil {
			t.Fatalf("CreateRun() failed: %v", err)
		}

		latest, err := store.GetLatestRun("latest-test.example")
		if err != nil {
			t.Fatalf("GetLatestRun() failed: %v", err)
		}

		if latest == nil {
			t.Fatal("Expected a run, got nil")
		}
		if latest.ID != newest.ID {
			t.Errorf("Expected run ID %d, got %d", newest.ID, latest.ID)
		}
	})

	t.Run("ReturnsNilForUnknownDomain", func(t *testing.T) {
		latest, err := store.GetLatestRun("unknown.example")
		if err != nil {
			t.Fatalf("GetLatestRun() failed: %v", err)
		}
		if latest != nil {
			t.Errorf("Expected nil, got run ID %d", latest.ID)
		}
	})
}

func TestDeleteRun(t *testing.T) {
	store := newTestStore(t)

	run, err := store.CreateRun("delete-test.example", nil)
	if err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}

	// Give the run some saved state so the delete has children to remove
	frontier, err := trailhead.New(testConfig(t, "https://delete-test.example/"), nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := store.SaveState(run.ID, frontier.State()); err != nil {
		t.Fatalf("SaveState() failed: %v", err)
	}

	if err := store.DeleteRun(run.ID); err != nil {
		t.Fatalf("DeleteRun() failed: %v", err)
	}

	if _, err := store.GetRunByID(run.ID); err == nil {
		t.Error("Expected GetRunByID to fail after delete")
	}

	stats, err := store.GetQueueStats(run.ID)
	if err != nil {
		t.Fatalf("GetQueueStats() failed: %v", err)
	}
	if stats.Pending != 0 || stats.Fingerprints != 0 {
		t.Errorf("Expected empty state after delete, got %+v", stats)
	}

	t.Run("UnknownRun_ReturnsError", func(t *testing.T) {
		if err := store.DeleteRun(99999); err == nil {
			t.Error("Expected error for unknown run ID")
		}
	})
}
