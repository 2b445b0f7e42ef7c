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

package types

// StatsResponse represents a point-in-time view of the crawl counters,
// including the derived rate and completion estimate
type StatsResponse struct {
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
	ElapsedMs             int64   `json:"elapsedMs"`
	Rate                  float64 `json:"rate"`                       // Processed candidates per minute
	EstimatedMinutes      *int64  `json:"estimatedMinutes,omitempty"` // Minutes until the frontier drains; omitted when no estimate exists
}

// FrontierStatus represents the live state of the frontier
type FrontierStatus struct {
	Strategy  string `json:"strategy"`
	Remaining int    `json:"remaining"`
	HasNext   bool   `json:"hasNext"`
}

// RunInfo represents run information for the control API
type RunInfo struct {
	ID         uint   `json:"id"`
	Domain     string `json:"domain"`
	State      string `json:"state"`
	Strategy   string `json:"strategy"`
	StartedAt  int64  `json:"startedAt"`
	Duration   int64  `json:"duration"`
	Processed  int64  `json:"processed"`
	Successful int64  `json:"successful"`
	Remaining  int64  `json:"remaining"`
}

// RunDetail represents a run with its saved frontier summary
type RunDetail struct {
	RunInfo      RunInfo `json:"runInfo"`
	Pending      int64   `json:"pending"`
	Fingerprints int64   `json:"fingerprints"`
}
