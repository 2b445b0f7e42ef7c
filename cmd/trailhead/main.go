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

// Trailhead CLI
//
// Command-line interface for the Trailhead crawl frontier. Drives crawls
// from the terminal, manages saved runs, and serves the HTTP control API.
//
// Usage:
//
//	trailhead <command> [flags]
//
// Commands:
//
//	crawl     Start a new crawl (or resume with --resume)
//	serve     Run the HTTP control API and MCP server
//	runs      List, inspect or delete saved runs
//	version   Show version information
package main

import (
	"fmt"
	"os"

	"github.com/agentberlin/trailhead/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "crawl":
		if err := runCrawl(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "runs":
		if err := runRuns(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "-v", "--version":
		fmt.Printf("Trailhead CLI %s\n", version.CurrentVersion)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Trailhead CLI - Crawl frontier and scheduler

Usage:
  trailhead <command> [flags]

Commands:
  crawl     Start a new crawl (or resume with --resume)
  serve     Run the HTTP control API and MCP server
  runs      List, inspect or delete saved runs
  version   Show version information
  help      Show this help message

Examples:
  # Crawl a website
  trailhead crawl https://example.com

  # Crawl depth-first with a URL budget (pauses when reached)
  trailhead crawl https://example.com --strategy depth-first --max-urls 100

  # Resume the interrupted crawl for a domain
  trailhead crawl --resume example.com

  # Resume a specific run by ID
  trailhead crawl --resume --run-id 3

  # List saved runs
  trailhead runs list

  # Serve the HTTP control API on port 8080
  trailhead serve https://example.com --port 8080

Use "trailhead <command> --help" for more information about a command.`)
}
