package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/banshee-data/prediction.report/internal/config"
	"github.com/banshee-data/prediction.report/internal/db"
	"github.com/banshee-data/prediction.report/internal/perception"
	"github.com/banshee-data/prediction.report/internal/perception/monitor"
	"github.com/banshee-data/prediction.report/internal/perception/storage/sqlite"
)

func main() {
	logPath := flag.String("log", "", "Replay log to score (required)")
	configFile := flag.String("config", "", "Evaluator config JSON (built-in defaults when empty)")
	dbFile := flag.String("db", "", "Archive per-cycle results into this SQLite database and print percentile summaries")
	plots := flag.Bool("plots", false, "Write a trajectory PNG per tracked object")
	plotsDir := flag.String("plots-dir", "plots", "Base directory for trajectory plots")
	flag.Parse()

	if *logPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.EmptyEvaluatorConfig()
	if *configFile != "" {
		loaded, err := config.LoadEvaluatorConfig(*configFile)
		if err != nil {
			log.Fatalf("load evaluator config: %v", err)
		}
		cfg = loaded
	}

	calc, err := perception.NewCalculator(cfg.Params(), perception.NewHistoryStore())
	if err != nil {
		log.Fatalf("configure calculator: %v", err)
	}

	reader, err := perception.OpenLog(*logPath)
	if err != nil {
		log.Fatalf("open replay log: %v", err)
	}
	defer reader.Close()

	var store *sqlite.MetricsStore
	if *dbFile != "" {
		database, err := db.OpenDB(*dbFile)
		if err != nil {
			log.Fatalf("open metrics database: %v", err)
		}
		defer database.Close()
		if err := database.EnsureLatestSchema(); err != nil {
			log.Fatalf("migrate metrics database: %v", err)
		}
		store = sqlite.NewMetricsStore(database.DB)
	}

	stats := perception.NewCycleStats()
	runnerCfg := perception.RunnerConfig{Source: reader, Stats: stats}
	if store != nil {
		runnerCfg.Archive = store
	}
	runner, err := perception.NewRunner(calc, runnerCfg)
	if err != nil {
		log.Fatalf("build runner: %v", err)
	}

	if err := runner.Run(context.Background()); err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	snap := stats.Snapshot()
	fmt.Printf("replayed %d cycles, %d object snapshots (%d skipped by class, %d evicted)\n",
		snap.Cycles, snap.Objects, snap.SkippedByClass, snap.Evicted)

	stamp, latest, ok := runner.Latest()
	if !ok {
		fmt.Println("no metric results: the log never spanned the evaluation delay")
		return
	}

	fmt.Printf("\nfinal cycle %s\n", time.Unix(0, stamp).UTC().Format(time.RFC3339Nano))
	fmt.Printf("%-36s %6s %10s %10s %10s\n", "metric", "count", "mean", "min", "max")
	names := make([]string, 0, len(latest))
	for name := range latest {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := latest[name]
		fmt.Printf("%-36s %6d %10.4f %10.4f %10.4f\n", name, st.Count(), st.Mean(), st.Min(), st.Max())
	}

	if store != nil {
		printPercentiles(store)
	}

	if *plots {
		outputDir := monitor.MakePlotOutputDir(*plotsDir, *logPath)
		count, err := monitor.SaveTrajectoryPlots(calc, outputDir)
		if err != nil {
			log.Fatalf("write trajectory plots: %v", err)
		}
		fmt.Printf("\nwrote %d trajectory plots to %s\n", count, outputDir)
	}
}

// printPercentiles summarizes the archived per-cycle means of every
// metric family.
func printPercentiles(store *sqlite.MetricsStore) {
	names, err := store.Metrics()
	if err != nil {
		log.Fatalf("list metrics: %v", err)
	}

	fmt.Printf("\nper-cycle mean percentiles\n")
	fmt.Printf("%-36s %6s %10s %10s %10s %10s %10s\n", "metric", "cycles", "mean", "p50", "p85", "p95", "max")
	for _, name := range names {
		summary, err := store.SummarizeMeans(name)
		if err != nil {
			log.Fatalf("summarize %s: %v", name, err)
		}
		fmt.Printf("%-36s %6d %10.4f %10.4f %10.4f %10.4f %10.4f\n",
			name, summary.Cycles, summary.Mean, summary.P50, summary.P85, summary.P95, summary.Max)
	}
}
