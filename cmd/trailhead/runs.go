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
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentberlin/trailhead/internal/store"
)

func runRuns(args []string) error {
	if len(args) < 1 {
		printRunsUsage()
		return fmt.Errorf("subcommand required: list, show or delete")
	}

	subcommand := args[0]

	switch subcommand {
	case "list":
		return runRunsList(args[1:])
	case "show":
		return runRunsShow(args[1:])
	case "delete":
		return runRunsDelete(args[1:])
	case "help", "-h", "--help":
		printRunsUsage()
		return nil
	default:
		printRunsUsage()
		return fmt.Errorf("unknown subcommand: %s", subcommand)
	}
}

func printRunsUsage() {
	fmt.Println(`Usage: trailhead runs <subcommand> [flags]

Subcommands:
  list      List all saved runs
  show      Show one run in detail
  delete    Delete a run and its saved state

Examples:
  # List all runs
  trailhead runs list

  # Show a run
  trailhead runs show 3

  # Delete a run
  trailhead runs delete 3`)
}

func runRunsList(args []string) error {
	fs := flag.NewFlagSet("runs list", flag.ExitOnError)

	var jsonOutput bool
	fs.BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	fs.Usage = func() {
		fmt.Println(`Usage: trailhead runs list [flags]

List all saved runs, newest first.

Flags:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := store.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	runs, err := st.ListRuns()
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	// Print header
	fmt.Printf("%-6s %-30s %-12s %-14s %-17s %-10s %-10s %-10s\n",
		"ID", "Domain", "State", "Strategy", "Started", "Duration", "Processed", "Remaining")
	fmt.Println("--------------------------------------------------------------------------------------------------------------")

	for _, r := range runs {
		started := time.UnixMilli(r.StartedAt).Format("2006-01-02 15:04")
		fmt.Printf("%-6d %-30s %-12s %-14s %-17s %-10s %-10d %-10d\n",
			r.ID, truncate(r.Domain, 30), r.State, r.Strategy, started,
			formatDuration(r.Duration), r.Processed, r.Remaining)
	}

	return nil
}

func runRunsShow(args []string) error {
	runID, err := parseRunID(args)
	if err != nil {
		return err
	}

	st, err := store.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	run, err := st.GetRunByID(runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %d\n", run.ID)
	fmt.Printf("  Domain: %s\n", run.Domain)
	fmt.Printf("  State: %s\n", run.State)
	fmt.Printf("  Strategy: %s\n", run.Strategy)
	fmt.Printf("  Started: %s\n", time.UnixMilli(run.StartedAt).Format("2006-01-02 15:04:05"))
	fmt.Printf("  Duration: %s\n", formatDuration(run.Duration))
	if run.MaxDepth > 0 {
		fmt.Printf("  Max depth: %d\n", run.MaxDepth)
	} else {
		fmt.Printf("  Max depth: unlimited\n")
	}
	fmt.Printf("  Seeds: %s\n", strings.Join(run.GetSeedsArray(), ", "))
	if domains := run.GetAllowedDomainsArray(); len(domains) > 0 {
		fmt.Printf("  Allowed domains: %s\n", strings.Join(domains, ", "))
	}
	fmt.Printf("  Processed: %d (%d successful, %d redirects, %d errors)\n",
		run.Processed, run.Successful, run.Redirects,
		run.Timeouts+run.ContentTypeMismatches+run.ResponseErrors+run.NetworkErrors)
	fmt.Printf("  Filtered: %d duplicate, %d offsite, %d over depth\n",
		run.Duplicates, run.Offsite, run.DepthLimited)
	fmt.Printf("  Remaining: %d\n", run.Remaining)

	has, err := st.HasSavedState(run.ID)
	if err != nil {
		return err
	}
	if has {
		queueStats, err := st.GetQueueStats(run.ID)
		if err != nil {
			return err
		}
		fmt.Printf("  Saved state: %d pending, %d fingerprints\n",
			queueStats.Pending, queueStats.Fingerprints)
	}

	return nil
}

func runRunsDelete(args []string) error {
	runID, err := parseRunID(args)
	if err != nil {
		return err
	}

	st, err := store.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	if err := st.DeleteRun(runID); err != nil {
		return err
	}
	fmt.Printf("Run %d deleted.\n", runID)
	return nil
}

func parseRunID(args []string) (uint, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("run ID argument is required")
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid run ID: %s", args[0])
	}
	return uint(id), nil
}

// truncate truncates a string to the specified length
func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

// formatDuration formats a duration in milliseconds to a human-readable string
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := ms / 1000
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	remainingSeconds := seconds % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, remainingSeconds)
	}
	hours := minutes / 60
	remainingMinutes := minutes % 60
	return fmt.Sprintf("%dh %dm", hours, remainingMinutes)
}
