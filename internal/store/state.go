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

	"github.com/cespare/xxhash/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentberlin/trailhead"
)

// positionCurrent marks the dequeued, in-flight candidate in the
// position column. Queued candidates use their queue array index.
const positionCurrent = -1

// urlHash returns the xxhash of a URL as int64, matching the QueueItem
// column type. SQLite has no unsigned 64-bit integer.
func urlHash(url string) int64 {
	return int64(xxhash.Sum64String(url))
}

// SaveState persists a captured frontier state for later resume. Any
// previously saved state for the run is replaced.
func (s *Store) SaveState(runID uint, state trailhead.State) error {
	if err := s.ClearState(runID); err != nil {
		return fmt.Errorf("failed to clear previous state: %v", err)
	}

	fingerprints := make([]Fingerprint, 0, len(state.Fingerprints))
	for _, hash := range state.Fingerprints {
		fingerprints = append(fingerprints, Fingerprint{RunID: runID, Hash: hash})
	}
	if err := s.createFingerprints(fingerprints); err != nil {
		return fmt.Errorf("failed to save fingerprints: %v", err)
	}

	items := make([]QueueItem, 0, len(state.Queue)+1)
	for i, cand := range state.Queue {
		item, err := newQueueItem(runID, i, cand)
		if err != nil {
			return fmt.Errorf("failed to serialize candidate %q: %v", cand.URL, err)
		}
		items = append(items, item)
	}
	if state.Current != nil {
		item, err := newQueueItem(runID, positionCurrent, *state.Current)
		if err != nil {
			return fmt.Errorf("failed to serialize current candidate %q: %v", state.Current.URL, err)
		}
		items = append(items, item)
	}
	if err := s.createQueueItems(items); err != nil {
		return fmt.Errorf("failed to save queue: %v", err)
	}

	return nil
}

// LoadState loads the saved frontier state for a run. A run with no saved
// state yields an empty state.
func (s *Store) LoadState(runID uint) (trailhead.State, error) {
	var state trailhead.State

	if err := s.db.Model(&Fingerprint{}).
		Where("run_id = ?", runID).
		Order("hash ASC").
		Pluck("hash", &state.Fingerprints).Error; err != nil {
		return trailhead.State{}, fmt.Errorf("failed to load fingerprints: %v", err)
	}

	var items []QueueItem
	if err := s.db.Where("run_id = ?", runID).
		Order("position ASC").
		Find(&items).Error; err != nil {
		return trailhead.State{}, fmt.Errorf("failed to load queue: %v", err)
	}

	for i := range items {
		cand, err := items[i].candidate()
		if err != nil {
			return trailhead.State{}, err
		}
		if items[i].Position == positionCurrent {
			current := cand
			state.Current = &current
			continue
		}
		state.Queue = append(state.Queue, cand)
	}

	return state, nil
}

// ClearState removes the saved frontier state for a run
func (s *Store) ClearState(runID uint) error {
	if err := s.db.Where("run_id = ?", runID).Delete(&QueueItem{}).Error; err != nil {
		return err
	}
	return s.db.Where("run_id = ?", runID).Delete(&Fingerprint{}).Error
}

func newQueueItem(runID uint, position int, cand trailhead.Candidate) (QueueItem, error) {
	item := QueueItem{
		RunID:    runID,
		Position: position,
		URL:      cand.URL,
		URLHash:  urlHash(cand.URL),
		Domain:   cand.Domain.Name(),
		Referer:  cand.Referer,
		Depth:    cand.Depth,
		Priority: cand.Priority,
	}
	if err := item.SetMetadataMap(cand.Metadata); err != nil {
		return QueueItem{}, err
	}
	return item, nil
}

// candidate converts a saved row back into a frontier candidate.
func (q *QueueItem) candidate() (trailhead.Candidate, error) {
	domain, err := trailhead.NewDomain(q.Domain)
	if err != nil {
		return trailhead.Candidate{}, fmt.Errorf("failed to rebuild domain %q: %v", q.Domain, err)
	}
	return trailhead.Candidate{
		URL:      q.URL,
		Domain:   domain,
		Priority: q.Priority,
		Metadata: q.GetMetadataMap(),
		Referer:  q.Referer,
		Depth:    q.Depth,
	}, nil
}

func (s *Store) createFingerprints(fingerprints []Fingerprint) error {
	if len(fingerprints) == 0 {
		return nil
	}

	// SQLite has a limit on SQL variables (typically 999).
	// Fingerprint has 4 columns, so batch size of 100 is safe.
	const batchSize = 100

	for i := 0; i < len(fingerprints); i += batchSize {
		end := i + batchSize
		if end > len(fingerprints) {
			end = len(fingerprints)
		}
		batch := fingerprints[i:end]

		if err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "hash"}},
			DoNothing: true,
		}).Create(&batch).Error; err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) createQueueItems(items []QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	// SQLite has a limit on SQL variables (typically 999).
	// QueueItem has ~11 columns, so batch size of 80 is safe.
	const batchSize = 80

	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[i:end]

		if err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "position"}},
			DoNothing: true,
		}).Create(&batch).Error; err != nil {
			return err
		}
	}

	return nil
}

// QueueStats contains statistics about a saved frontier state.
type QueueStats struct {
	Pending      int64 // Candidates waiting in the saved queue
	Fingerprints int64 // Distinct URLs the run has admitted
}

// GetQueueStats returns statistics about the saved state for a run.
func (s *Store) GetQueueStats(runID uint) (*QueueStats, error) {
	var pending, fingerprints int64

	// Count queued candidates, excluding the in-flight one
	if err := s.db.Model(&QueueItem{}).
		Where("run_id = ? AND position >= 0", runID).
		Count(&pending).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&Fingerprint{}).
		Where("run_id = ?", runID).
		Count(&fingerprints).Error; err != nil {
		return nil, err
	}

	return &QueueStats{
		Pending:      pending,
		Fingerprints: fingerprints,
	}, nil
}

// HasSavedState checks if the run has any saved queue candidates.
func (s *Store) HasSavedState(runID uint) (bool, error) {
	var count int64
	if err := s.db.Model(&QueueItem{}).
		Where("run_id = ?", runID).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetQueueItemByURL retrieves a saved candidate by its URL. The indexed
// hash narrows the lookup; the URL equality check guards against
// collisions.
func (s *Store) GetQueueItemByURL(runID uint, url string) (*QueueItem, error) {
	var item QueueItem
	if err := s.db.Where("run_id = ? AND url_hash = ? AND url = ?", runID, urlHash(url), url).
		First(&item).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}
