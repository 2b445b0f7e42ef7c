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
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kennygrant/sanitize"

	"github.com/agentberlin/trailhead"
	"github.com/agentberlin/trailhead/internal/store"
)

const defaultUserAgent = "trailhead/1.0 (+https://github.com/agentberlin/trailhead)"

// crawlFlags holds all the flags for the crawl command
type crawlFlags struct {
	// Scheduling
	strategy             string
	maxDepth             int
	maxURLs              int
	domains              string
	disableDupFilter     bool
	disableOffsiteFilter bool

	// Fetching
	userAgent         string
	timeout           int
	classifierWorkers int

	// Pacing
	delay       int
	randomDelay int
	adaptive    bool
	maxDelay    int

	// JS rendering
	render      bool
	initialWait int
	scrollWait  int
	finalWait   int

	// Discovery
	sitemap    bool
	sitemapURL string

	// Persistence
	noStore   bool
	resume    bool
	runID     uint
	stateFile string

	// Output
	quiet bool
}

func runCrawl(args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)

	var flags crawlFlags

	// Scheduling
	fs.StringVar(&flags.strategy, "strategy", string(trailhead.BreadthFirst), "Dequeue ordering: breadth-first, depth-first")
	fs.StringVar(&flags.strategy, "s", string(trailhead.BreadthFirst), "Dequeue ordering (shorthand)")
	fs.IntVar(&flags.maxDepth, "max-depth", 0, "Maximum link depth from the seeds (0 = unlimited)")
	fs.IntVar(&flags.maxURLs, "max-urls", 0, "Maximum URLs to process before pausing (0 = unlimited)")
	fs.StringVar(&flags.domains, "domains", "", "Comma-separated allowed domains (default: the seed domains)")
	fs.BoolVar(&flags.disableDupFilter, "disable-duplicate-filter", false, "Allow the same URL to be queued more than once")
	fs.BoolVar(&flags.disableOffsiteFilter, "disable-offsite-filter", false, "Follow links outside the allowed domains")

	// Fetching
	fs.StringVar(&flags.userAgent, "user-agent", defaultUserAgent, "Custom User-Agent string")
	fs.StringVar(&flags.userAgent, "A", defaultUserAgent, "Custom User-Agent string (shorthand)")
	fs.IntVar(&flags.timeout, "timeout", 20, "Request timeout in seconds")
	fs.IntVar(&flags.classifierWorkers, "classifier-workers", 0, "HEAD pre-classifier workers (0 = disabled)")

	// Pacing
	fs.IntVar(&flags.delay, "delay", 0, "Delay between requests in milliseconds")
	fs.IntVar(&flags.randomDelay, "random-delay", 0, "Extra random jitter on top of --delay in milliseconds")
	fs.BoolVar(&flags.adaptive, "adaptive", false, "Pace requests off observed page load times")
	fs.IntVar(&flags.maxDelay, "max-delay", 5000, "Upper bound for --adaptive pacing in milliseconds")

	// JS rendering
	fs.BoolVar(&flags.render, "render", false, "Fetch pages through headless Chrome")
	fs.BoolVar(&flags.render, "r", false, "Fetch pages through headless Chrome (shorthand)")
	fs.IntVar(&flags.initialWait, "initial-wait", 1500, "Initial wait after page load in milliseconds")
	fs.IntVar(&flags.scrollWait, "scroll-wait", 2000, "Wait after scrolling for lazy-loaded content in milliseconds")
	fs.IntVar(&flags.finalWait, "final-wait", 1000, "Final wait before capturing HTML in milliseconds")

	// Discovery
	fs.BoolVar(&flags.sitemap, "sitemap", false, "Seed from /sitemap.xml and /sitemap_index.xml")
	fs.StringVar(&flags.sitemapURL, "sitemap-url", "", "Seed from a specific sitemap URL")

	// Persistence
	fs.BoolVar(&flags.noStore, "no-store", false, "Run without the run database")
	fs.BoolVar(&flags.resume, "resume", false, "Resume an interrupted run")
	fs.UintVar(&flags.runID, "run-id", 0, "Run to resume (default: latest resumable run for the domain)")
	fs.StringVar(&flags.stateFile, "state-file", "", "Frontier state file to write on interrupt (and read with --resume)")

	// Output
	fs.BoolVar(&flags.quiet, "quiet", false, "Suppress progress output")
	fs.BoolVar(&flags.quiet, "q", false, "Suppress progress output (shorthand)")

	fs.Usage = func() {
		fmt.Println(`Usage: trailhead crawl <url> [url...] [flags]

Start a new crawl seeded with the given URLs.

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  # Basic crawl
  trailhead crawl https://example.com

  # Depth-first with a depth limit
  trailhead crawl https://example.com --strategy depth-first --max-depth 3

  # Pause after 100 URLs, resume later
  trailhead crawl https://example.com --max-urls 100
  trailhead crawl --resume example.com

  # Paced crawl seeded from the sitemap
  trailhead crawl https://example.com --sitemap --delay 500 --random-delay 500

  # Headless Chrome rendering with adaptive pacing
  trailhead crawl https://example.com --render --adaptive`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Validate strategy
	if flags.strategy != string(trailhead.BreadthFirst) && flags.strategy != string(trailhead.DepthFirst) {
		return fmt.Errorf("invalid strategy: %s (must be breadth-first or depth-first)", flags.strategy)
	}

	// Validate pacing
	if flags.delay < 0 {
		return fmt.Errorf("invalid delay: %d (must be >= 0)", flags.delay)
	}
	if flags.adaptive && flags.randomDelay > 0 {
		return fmt.Errorf("cannot combine --adaptive with --random-delay")
	}

	crawlerConf, err := buildCrawlerConfig(flags)
	if err != nil {
		return err
	}

	// Open the run database unless persistence is off
	var st *store.Store
	if !flags.noStore {
		st, err = store.NewStore()
		if err != nil {
			return fmt.Errorf("failed to initialize database: %v", err)
		}
	}

	var (
		crawler      *trailhead.Crawler
		run          *store.Run
		domain       string
		baseDuration int64
	)

	switch {
	case flags.resume && flags.stateFile != "":
		crawler, domain, err = resumeFromFile(fs, flags, crawlerConf)
		if err != nil {
			return err
		}
		// The resumed leg gets a fresh run record; the state file carries
		// no run identity to attach to.
		if st != nil {
			run, err = st.CreateRun(domain, crawlerConf.Frontier)
			if err != nil {
				crawler.Close()
				return err
			}
		}

	case flags.resume:
		crawler, run, err = resumeFromStore(fs, flags, st, crawlerConf)
		if err != nil {
			return err
		}
		domain = run.Domain
		baseDuration = run.Duration

	default:
		var conf *trailhead.Config
		crawler, conf, domain, err = startFresh(fs, flags, crawlerConf)
		if err != nil {
			return err
		}
		if st != nil {
			run, err = st.CreateRun(domain, conf)
			if err != nil {
				crawler.Close()
				return err
			}
		}
	}
	defer crawler.Close()

	// Adaptive pacing needs the crawler as its timing source, so the
	// policy is attached after construction
	if flags.adaptive {
		policy, err := trailhead.NewAdaptiveDelay(crawler,
			time.Duration(flags.delay)*time.Millisecond,
			time.Duration(flags.maxDelay)*time.Millisecond)
		if err != nil {
			return fmt.Errorf("invalid adaptive delay: %v", err)
		}
		crawler.SetDelayPolicy(policy)
	}

	return executeCrawl(crawler, st, run, domain, baseDuration, flags)
}

// startFresh builds a seeded crawler from the flags and positional URLs.
func startFresh(fs *flag.FlagSet, flags crawlFlags, crawlerConf *trailhead.CrawlerConfig) (*trailhead.Crawler, *trailhead.Config, string, error) {
	if fs.NArg() < 1 {
		fs.Usage()
		return nil, nil, "", fmt.Errorf("URL argument is required")
	}
	seeds, err := parseSeeds(fs.Args())
	if err != nil {
		return nil, nil, "", err
	}
	conf, err := buildFrontierConfig(flags.strategy, flags.maxDepth, flags.domains,
		flags.disableDupFilter, flags.disableOffsiteFilter, seeds)
	if err != nil {
		return nil, nil, "", err
	}

	crawlerConf.Frontier = conf
	crawler, err := trailhead.NewCrawler(crawlerConf)
	if err != nil {
		return nil, nil, "", err
	}
	if err := seedFromSitemaps(crawler, flags, seeds[0].URL); err != nil {
		crawler.Close()
		return nil, nil, "", err
	}
	return crawler, conf, seeds[0].Domain.Name(), nil
}

// resumeFromStore rebuilds a crawler from the saved state of an earlier
// run. The run keeps its identity: counters and duration accumulate
// across the resumed legs.
func resumeFromStore(fs *flag.FlagSet, flags crawlFlags, st *store.Store, crawlerConf *trailhead.CrawlerConfig) (*trailhead.Crawler, *store.Run, error) {
	if st == nil {
		return nil, nil, fmt.Errorf("--resume needs the run database (drop --no-store or pass --state-file)")
	}

	var run *store.Run
	var err error
	if flags.runID > 0 {
		run, err = st.GetRunByID(flags.runID)
		if err != nil {
			return nil, nil, err
		}
	} else {
		if fs.NArg() < 1 {
			fs.Usage()
			return nil, nil, fmt.Errorf("domain argument is required to resume (or pass --run-id)")
		}
		domain, derr := domainFromArg(fs.Arg(0))
		if derr != nil {
			return nil, nil, derr
		}
		run, err = st.GetResumableRun(domain)
		if err != nil {
			return nil, nil, err
		}
		if run == nil {
			return nil, nil, fmt.Errorf("no resumable run found for %s", domain)
		}
	}

	if run.State != store.RunStateInProgress && run.State != store.RunStatePaused {
		return nil, nil, fmt.Errorf("run %d is %s and cannot be resumed", run.ID, run.State)
	}
	has, err := st.HasSavedState(run.ID)
	if err != nil {
		return nil, nil, err
	}
	if !has {
		return nil, nil, fmt.Errorf("run %d has no saved frontier state", run.ID)
	}

	conf, err := run.FrontierConfig()
	if err != nil {
		return nil, nil, err
	}
	state, err := st.LoadState(run.ID)
	if err != nil {
		return nil, nil, err
	}

	crawlerConf.Frontier = conf
	crawler, err := trailhead.NewCrawlerFromState(crawlerConf, state)
	if err != nil {
		return nil, nil, err
	}
	crawler.Stats().RestoreSnapshot(run.Snapshot())

	if err := st.UpdateRunState(run.ID, store.RunStateInProgress); err != nil {
		crawler.Close()
		return nil, nil, err
	}
	return crawler, run, nil
}

// resumeFromFile rebuilds a crawler from an exported state file. The
// frontier configuration comes from the flags, so the caller must pass
// the same seeds and scope the saving run used.
func resumeFromFile(fs *flag.FlagSet, flags crawlFlags, crawlerConf *trailhead.CrawlerConfig) (*trailhead.Crawler, string, error) {
	if fs.NArg() < 1 {
		fs.Usage()
		return nil, "", fmt.Errorf("URL argument is required to resume from a state file")
	}
	seeds, err := parseSeeds(fs.Args())
	if err != nil {
		return nil, "", err
	}
	conf, err := buildFrontierConfig(flags.strategy, flags.maxDepth, flags.domains,
		flags.disableDupFilter, flags.disableOffsiteFilter, seeds)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(flags.stateFile)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read state file: %v", err)
	}
	var state trailhead.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, "", fmt.Errorf("failed to parse state file: %v", err)
	}

	crawlerConf.Frontier = conf
	crawler, err := trailhead.NewCrawlerFromState(crawlerConf, state)
	if err != nil {
		return nil, "", err
	}
	// The file carries no counters; seed the gauge so progress and the
	// completion estimate line up with the restored queue.
	crawler.Stats().RestoreSnapshot(trailhead.Snapshot{Remaining: int64(len(state.Queue))})

	return crawler, seeds[0].Domain.Name(), nil
}

// executeCrawl drives the crawl loop with progress output and signal
// handling, then persists the outcome.
func executeCrawl(crawler *trailhead.Crawler, st *store.Store, run *store.Run, domain string, baseDuration int64, flags crawlFlags) error {
	if !flags.quiet {
		queued := crawler.Frontier().Remaining()
		if run != nil {
			fmt.Printf("Starting crawl for %s (run %d, %d queued)...\n\n", domain, run.ID, queued)
		} else {
			fmt.Printf("Starting crawl for %s (%d queued)...\n\n", domain, queued)
		}
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- crawler.Run(ctx)
	}()

	// Progress display; also enforces the URL budget
	stopProgress := make(chan struct{})
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopProgress:
				return
			case <-ticker.C:
				snap := crawler.Stats().Snapshot()
				if !flags.quiet {
					line := fmt.Sprintf("\rProcessed: %d | Successful: %d | Errors: %d | Remaining: %d",
						snap.Processed, snap.Successful, errorTotal(snap), snap.Remaining)
					if eta, ok := snap.RemainingDuration(time.Since(start)); ok {
						line += fmt.Sprintf(" | ETA: %s", eta)
					}
					fmt.Print(line)
				}
				if flags.maxURLs > 0 && snap.Processed >= int64(flags.maxURLs) {
					cancel()
				}
			}
		}
	}()

	var runErr error
	select {
	case runErr = <-done:
	case sig := <-sigChan:
		if !flags.quiet {
			fmt.Printf("\nReceived %v, stopping crawl...\n", sig)
		}
		cancel()
		runErr = <-done
	}
	close(stopProgress)

	elapsed := time.Since(start)
	snap := crawler.Stats().Snapshot()
	paused := crawler.Frontier().HasNext()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		if st != nil && run != nil {
			if err := st.UpdateRunState(run.ID, store.RunStateFailed); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to update run state: %v\n", err)
			}
		}
		return fmt.Errorf("crawl failed: %v", runErr)
	}

	if st != nil && run != nil {
		if err := st.UpdateRunStats(run.ID, baseDuration+elapsed.Milliseconds(), snap); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save run stats: %v\n", err)
		}
		if paused {
			if err := st.SaveState(run.ID, crawler.Frontier().State()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save frontier state: %v\n", err)
			}
			if err := st.UpdateRunState(run.ID, store.RunStatePaused); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to update run state: %v\n", err)
			}
		} else {
			if err := st.ClearState(run.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to clear saved state: %v\n", err)
			}
			if err := st.UpdateRunState(run.ID, store.RunStateCompleted); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to update run state: %v\n", err)
			}
		}
	}

	// Export the frontier state so a storeless run stays resumable
	var statePath string
	if paused {
		path := flags.stateFile
		if path == "" && st == nil {
			path = defaultStatePath(domain)
		}
		if path != "" {
			if err := writeStateFile(path, crawler.Frontier().State()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to write state file: %v\n", err)
			} else {
				statePath = path
			}
		}
	}

	if !flags.quiet {
		printCrawlSummary(snap, elapsed, paused)
		if statePath != "" {
			fmt.Printf("\nFrontier state written to %s\n", statePath)
			if run == nil {
				fmt.Printf("Resume with: trailhead crawl --resume --state-file %s %s\n", statePath, domain)
			}
		}
		if paused && run != nil {
			fmt.Printf("\nResume with: trailhead crawl --resume %s\n", domain)
		}
	}

	return nil
}

func printCrawlSummary(snap trailhead.Snapshot, elapsed time.Duration, paused bool) {
	if paused {
		fmt.Printf("\n\nCrawl paused with %d candidates remaining.\n", snap.Remaining)
	} else {
		fmt.Printf("\n\nCrawl completed!\n")
	}
	fmt.Printf("  Processed: %d\n", snap.Processed)
	fmt.Printf("  Successful: %d\n", snap.Successful)
	fmt.Printf("  Redirects: %d\n", snap.Redirects)
	fmt.Printf("  Timeouts: %d\n", snap.Timeouts)
	fmt.Printf("  Response errors: %d\n", snap.ResponseErrors)
	fmt.Printf("  Network errors: %d\n", snap.NetworkErrors)
	fmt.Printf("  Content type mismatches: %d\n", snap.ContentTypeMismatches)
	fmt.Printf("  Filtered: %d duplicate, %d offsite, %d over depth\n",
		snap.Duplicates, snap.Offsite, snap.DepthLimited)
	fmt.Printf("  Duration: %s\n", formatDuration(elapsed.Milliseconds()))
}

// errorTotal sums the non-success outcomes for the progress line.
// Redirects are not errors.
func errorTotal(snap trailhead.Snapshot) int64 {
	return snap.Timeouts + snap.ContentTypeMismatches + snap.ResponseErrors + snap.NetworkErrors
}

// buildCrawlerConfig maps flags onto the crawler configuration. The
// frontier config is attached later, per start mode.
func buildCrawlerConfig(flags crawlFlags) (*trailhead.CrawlerConfig, error) {
	conf := trailhead.NewDefaultCrawlerConfig()
	conf.UserAgent = flags.userAgent
	conf.RequestTimeout = time.Duration(flags.timeout) * time.Second
	conf.ClassifierWorkers = flags.classifierWorkers
	if flags.render {
		conf.EnableRendering = true
		conf.Rendering = &trailhead.RenderingConfig{
			InitialWaitMs: flags.initialWait,
			ScrollWaitMs:  flags.scrollWait,
			FinalWaitMs:   flags.finalWait,
		}
	}
	if !flags.adaptive {
		policy, err := buildDelayPolicy(flags)
		if err != nil {
			return nil, fmt.Errorf("invalid delay: %v", err)
		}
		conf.Delay = policy
	}
	return conf, nil
}

func buildDelayPolicy(flags crawlFlags) (trailhead.DelayPolicy, error) {
	delay := time.Duration(flags.delay) * time.Millisecond
	if flags.randomDelay > 0 {
		jitter := time.Duration(flags.randomDelay) * time.Millisecond
		return trailhead.NewRandomDelay(delay, delay+jitter)
	}
	if flags.delay > 0 {
		return trailhead.NewFixedDelay(delay)
	}
	return nil, nil
}

// buildFrontierConfig builds the scheduling configuration. Without an
// explicit domain list the crawl is scoped to the seed domains.
func buildFrontierConfig(strategy string, maxDepth int, domainList string, disableDup, disableOffsite bool, seeds []trailhead.Request) (*trailhead.Config, error) {
	conf := trailhead.NewDefaultConfig()
	conf.Seeds = seeds
	conf.Strategy = trailhead.Strategy(strategy)
	conf.MaxDepth = maxDepth
	conf.DisableDuplicateFilter = disableDup
	conf.DisableOffsiteFilter = disableOffsite

	if domainList != "" {
		domains, err := parseAllowedDomains(domainList)
		if err != nil {
			return nil, err
		}
		conf.AllowedDomains = domains
		return conf, nil
	}

	seen := make(map[string]bool)
	for _, seed := range seeds {
		if !seen[seed.Domain.Name()] {
			seen[seed.Domain.Name()] = true
			conf.AllowedDomains = append(conf.AllowedDomains, seed.Domain)
		}
	}
	return conf, nil
}

// parseAllowedDomains parses a comma-separated domain list.
func parseAllowedDomains(list string) ([]trailhead.CrawlDomain, error) {
	var domains []trailhead.CrawlDomain
	for _, name := range strings.Split(list, ",") {
		domain, err := trailhead.NewDomain(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("invalid domain %q: %v", name, err)
		}
		domains = append(domains, domain)
	}
	return domains, nil
}

// seedFromSitemaps feeds sitemap URLs into the frontier as seeds before
// the crawl starts, so they count toward the initial backlog.
func seedFromSitemaps(crawler *trailhead.Crawler, flags crawlFlags, baseURL string) error {
	if flags.sitemapURL != "" {
		n, err := crawler.SeedFromSitemap(flags.sitemapURL)
		if err != nil {
			return fmt.Errorf("failed to seed from sitemap: %v", err)
		}
		if !flags.quiet {
			fmt.Printf("Seeded %d URLs from %s\n", n, flags.sitemapURL)
		}
	}
	if flags.sitemap {
		urls := crawler.TryDefaultSitemaps(baseURL)
		for _, rawURL := range urls {
			req, err := trailhead.NewRequest(rawURL)
			if err != nil {
				continue
			}
			crawler.Frontier().Feed(req, true)
		}
		if !flags.quiet && len(urls) > 0 {
			fmt.Printf("Seeded %d URLs from default sitemap locations\n", len(urls))
		}
	}
	return nil
}

// parseSeeds builds seed requests from the positional arguments. Bare
// domains get an https:// prefix.
func parseSeeds(args []string) ([]trailhead.Request, error) {
	seeds := make([]trailhead.Request, 0, len(args))
	for _, arg := range args {
		urlStr := arg
		if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
			urlStr = "https://" + urlStr
		}
		req, err := trailhead.NewRequest(urlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid seed URL %q: %v", arg, err)
		}
		seeds = append(seeds, req)
	}
	return seeds, nil
}

// domainFromArg extracts the crawl domain from a URL or bare domain
// argument.
func domainFromArg(arg string) (string, error) {
	seeds, err := parseSeeds([]string{arg})
	if err != nil {
		return "", err
	}
	return seeds[0].Domain.Name(), nil
}

// defaultStatePath derives a state file name from the crawl domain, e.g.
// example.com becomes example_com_state.json.
func defaultStatePath(domain string) string {
	name := strings.ReplaceAll(sanitize.BaseName(domain), "-", "_")
	return name + "_state.json"
}

func writeStateFile(path string, state trailhead.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
