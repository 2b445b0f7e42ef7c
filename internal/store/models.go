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
	"encoding/json"

	"github.com/agentberlin/trailhead"
)

// Run state constants
const (
	RunStateInProgress = "in_progress" // The crawl is currently running
	RunStatePaused     = "paused"      // Interrupted with pending candidates, resumable
	RunStateCompleted  = "completed"   // Frontier drained or manually completed
	RunStateFailed     = "failed"      // Aborted by an unrecoverable error
)

// Run represents one crawl run: the frontier configuration it was started
// with, its lifecycle state, and a mirror of the in-memory counters taken
// at the last save.
type Run struct {
	ID        uint   `gorm:"primaryKey"`
	Domain    string `gorm:"not null;index"` // Primary crawl domain, for listing and lookup
	State     string `gorm:"not null;default:'in_progress'"` // in_progress, paused, completed, failed
	StartedAt int64  `gorm:"not null"`            // Unix milliseconds
	Duration  int64  `gorm:"not null;default:0"`  // Accumulated crawl time in milliseconds

	// Frontier configuration, serialized so a resume can rebuild the
	// exact config the run was started with
	Strategy               string `gorm:"not null;default:'breadth-first'"`
	Seeds                  string `gorm:"type:text"` // JSON array of seed URLs
	AllowedDomains         string `gorm:"type:text"` // JSON array of domain names
	MaxDepth               int    `gorm:"not null;default:0"`
	DisableDuplicateFilter bool   `gorm:"not null;default:false"`
	DisableOffsiteFilter   bool   `gorm:"not null;default:false"`

	// Counter columns mirroring the stats snapshot at the last save
	Processed             int64 `gorm:"not null;default:0"`
	Successful            int64 `gorm:"not null;default:0"`
	Timeouts              int64 `gorm:"not null;default:0"`
	Redirects             int64 `gorm:"not null;default:0"`
	ContentTypeMismatches int64 `gorm:"not null;default:0"`
	ResponseErrors        int64 `gorm:"not null;default:0"`
	NetworkErrors         int64 `gorm:"not null;default:0"`
	Duplicates            int64 `gorm:"not null;default:0"`
	Offsite               int64 `gorm:"not null;default:0"`
	DepthLimited          int64 `gorm:"not null;default:0"`
	Remaining             int64 `gorm:"not null;default:0"`

	QueueItems   []QueueItem   `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	Fingerprints []Fingerprint `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	CreatedAt    int64         `gorm:"autoCreateTime"`
	UpdatedAt    int64         `gorm:"autoUpdateTime"`
}

// GetSeedsArray deserializes the Seeds JSON to []string
func (r *Run) GetSeedsArray() []string {
	if r.Seeds == "" {
		return nil
	}
	var seeds []string
	if err := json.Unmarshal([]byte(r.Seeds), &seeds); err != nil {
		return nil
	}
	return seeds
}

// SetSeedsArray serializes []string to JSON for Seeds
func (r *Run) SetSeedsArray(seeds []string) error {
	if len(seeds) == 0 {
		r.Seeds = ""
		return nil
	}
	data, err := json.Marshal(seeds)
	if err != nil {
		return err
	}
	r.Seeds = string(data)
	return nil
}

// GetAllowedDomainsArray deserializes the AllowedDomains JSON to []string
func (r *Run) GetAllowedDomainsArray() []string {
	if r.AllowedDomains == "" {
		return nil
	}
	var domains []string
	if err := json.Unmarshal([]byte(r.AllowedDomains), &domains); err != nil {
		return nil
	}
	return domains
}

// SetAllowedDomainsArray serializes []string to JSON for AllowedDomains
func (r *Run) SetAllowedDomainsArray(domains []string) error {
	if len(domains) == 0 {
		r.AllowedDomains = ""
		return nil
	}
	data, err := json.Marshal(domains)
	if err != nil {
		return err
	}
	r.AllowedDomains = string(data)
	return nil
}

// Snapshot converts the run's counter columns back into a stats snapshot.
func (r *Run) Snapshot() trailhead.Snapshot {
	return trailhead.Snapshot{
		Successful:            r.Successful,
		Timeouts:              r.Timeouts,
		Redirects:             r.Redirects,
		ContentTypeMismatches: r.ContentTypeMismatches,
		ResponseErrors:        r.ResponseErrors,
		NetworkErrors:         r.NetworkErrors,
		Processed:             r.Processed,
		Duplicates:            r.Duplicates,
		Offsite:               r.Offsite,
		DepthLimited:          r.DepthLimited,
		Remaining:             r.Remaining,
	}
}

// QueueItem stores one saved frontier candidate. Position is the
// candidate's index in the queue array at save time; -1 marks the
// in-flight candidate that had been dequeued but not finished.
type QueueItem struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    uint   `gorm:"not null;index:idx_queue_run"`
	Position int    `gorm:"not null"`
	URL      string `gorm:"not null"`
	URLHash  int64  `gorm:"not null;index:idx_queue_hash"` // Stored as int64 for SQLite compatibility
	Domain   string `gorm:"not null"`                      // The candidate's domain under public-suffix rules
	Referer  string `gorm:"type:text"`
	Depth    int    `gorm:"not null;default:0"`
	Priority int    `gorm:"not null;default:0"`
	Metadata string `gorm:"type:text"` // JSON object, empty when the candidate carries none
	Run      *Run   `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`

	CreatedAt int64 `gorm:"autoCreateTime"`
}

// TableName returns the table name for QueueItem
func (QueueItem) TableName() string {
	return "queue_items"
}

// GetMetadataMap deserializes the Metadata JSON to map[string]string.
// Returns nil when the candidate carried no metadata.
func (q *QueueItem) GetMetadataMap() map[string]string {
	if q.Metadata == "" {
		return nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(q.Metadata), &metadata); err != nil {
		return nil
	}
	return metadata
}

// SetMetadataMap serializes map[string]string to JSON for Metadata
func (q *QueueItem) SetMetadataMap(metadata map[string]string) error {
	if len(metadata) == 0 {
		q.Metadata = ""
		return nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	q.Metadata = string(data)
	return nil
}

// Fingerprint stores one visited-URL fingerprint from a saved frontier.
type Fingerprint struct {
	ID    uint   `gorm:"primaryKey"`
	RunID uint   `gorm:"not null;index:idx_fingerprint_run"`
	Hash  string `gorm:"not null"` // Hex SHA-256 of the canonicalized URL
	Run   *Run   `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`

	CreatedAt int64 `gorm:"autoCreateTime"`
}

// TableName returns the table name for Fingerprint
func (Fingerprint) TableName() string {
	return "fingerprints"
}
