package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/prediction.report/internal/config"
	"github.com/banshee-data/prediction.report/internal/db"
	"github.com/banshee-data/prediction.report/internal/perception"
	"github.com/banshee-data/prediction.report/internal/perception/monitor"
	"github.com/banshee-data/prediction.report/internal/perception/storage/sqlite"
	"github.com/banshee-data/prediction.report/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to an evaluator config JSON file (built-in defaults when empty)")
	dbFile      = flag.String("db", "prediction_report.db", "Path to the SQLite metrics database (empty disables persistence)")
	replayFile  = flag.String("replay", "", "Replay a detection batch log instead of listening on UDP")
	udpAddr     = flag.String("udp-addr", ":9048", "UDP address to listen on for detection batches")
	listen      = flag.String("listen", ":8082", "HTTP listen address for the monitor")
	logInterval = flag.Duration("log-interval", 0, "Progress log cadence (0 uses the configured cycle log interval)")
	devMode     = flag.Bool("dev", false, "Load database migrations from local files instead of the embedded copies")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("prediction-report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	db.DevMode = *devMode

	// Migration subcommand: prediction-report [-db file] migrate <action>
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], *dbFile)
		return
	}

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}

	log.Printf("prediction-report %s starting", version.Version)

	// Evaluator parameters
	cfg := config.EmptyEvaluatorConfig()
	if *configFile != "" {
		loaded, err := config.LoadEvaluatorConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load evaluator config: %v", err)
		}
		cfg = loaded
		log.Printf("Loaded evaluator config from %s", *configFile)
	}
	params := cfg.Params()

	calc, err := perception.NewCalculator(params, perception.NewHistoryStore())
	if err != nil {
		log.Fatalf("Failed to configure metrics calculator: %v", err)
	}

	// Metrics persistence
	var archive perception.Archive
	var store *sqlite.MetricsStore
	if *dbFile != "" {
		database, err := db.OpenDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to metrics database: %v", err)
		}
		defer database.Close()
		if err := database.EnsureLatestSchema(); err != nil {
			log.Fatalf("Failed to migrate metrics database: %v", err)
		}
		store = sqlite.NewMetricsStore(database.DB)
		archive = store
	} else {
		log.Println("Metrics persistence disabled (use -db to enable)")
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Batch source: a replay log or live UDP datagrams
	var source perception.BatchSource
	var sourceDesc string
	if *replayFile != "" {
		reader, err := perception.OpenLog(*replayFile)
		if err != nil {
			log.Fatalf("Failed to open replay log: %v", err)
		}
		defer reader.Close()
		source = reader
		sourceDesc = "replay " + *replayFile
		log.Printf("Replaying detection batches from %s", *replayFile)
	} else {
		udp, err := perception.ListenUDP(ctx, *udpAddr)
		if err != nil {
			log.Fatalf("Failed to listen for detection batches: %v", err)
		}
		defer udp.Close()
		source = udp
		sourceDesc = fmt.Sprintf("udp %s", udp.LocalAddr())
		log.Printf("Listening for detection batches on %s", udp.LocalAddr())
	}

	interval := cfg.GetCycleLogInterval()
	if *logInterval > 0 {
		interval = *logInterval
	}

	stats := perception.NewCycleStats()
	runner, err := perception.NewRunner(calc, perception.RunnerConfig{
		Source:   source,
		Archive:  archive,
		Stats:    stats,
		LogEvery: interval,
	})
	if err != nil {
		log.Fatalf("Failed to build evaluation runner: %v", err)
	}

	webServer := monitor.NewWebServer(monitor.WebServerConfig{
		Address: *listen,
		Runner:  runner,
		Stats:   stats,
		Store:   store,
		Source:  sourceDesc,
	})

	// Monitor web server routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := webServer.Start(ctx); err != nil {
			log.Printf("web server error: %v", err)
		}
		log.Print("web server routine terminated")
	}()

	// Evaluation loop routine. A replay that runs out of batches ends
	// the loop cleanly; the monitor keeps serving its results until the
	// process is interrupted.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("evaluation runner error: %v", err)
		}
		printFinalSummary(runner, stats)
		log.Print("evaluation runner terminated")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// printFinalSummary logs the last cycle's metric results and the run
// counters once the batch source is exhausted.
func printFinalSummary(runner *perception.Runner, stats *perception.CycleStats) {
	snap := stats.Snapshot()
	log.Printf("Processed %d cycles (%d object snapshots, %d skipped by class, %d evicted, %d purged)",
		snap.Cycles, snap.Objects, snap.SkippedByClass, snap.Evicted, snap.Purged)

	stamp, latest, ok := runner.Latest()
	if !ok {
		log.Print("No metric results were produced; the history never spanned the evaluation delay")
		return
	}

	names := make([]string, 0, len(latest))
	for name := range latest {
		names = append(names, name)
	}
	sort.Strings(names)

	log.Printf("Final results at %s:", time.Unix(0, stamp).UTC().Format(time.RFC3339Nano))
	for _, name := range names {
		stat := latest[name]
		log.Printf("  %-34s count=%-4d mean=%.4f min=%.4f max=%.4f",
			name, stat.Count(), stat.Mean(), stat.Min(), stat.Max())
	}
}
