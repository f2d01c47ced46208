// Command audit runs one end-to-end LLM-orchestrated security audit
// against a project tree: discover units, dispatch them through the LLM
// Manager under the Orchestrator's bounded worker pool, and print the
// resulting findings. Grounded on the teacher's cmd/tarsy/main.go
// wiring shape (flag parsing, godotenv, config.Initialize, component
// construction), kept far smaller since no HTTP/WebSocket server or
// database is in scope here.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/aicodeaudit/auditor/internal/aggregator"
	"github.com/aicodeaudit/auditor/internal/circuitbreaker"
	"github.com/aicodeaudit/auditor/internal/concurrency"
	"github.com/aicodeaudit/auditor/internal/confidence"
	"github.com/aicodeaudit/auditor/internal/config"
	"github.com/aicodeaudit/auditor/internal/coverage"
	"github.com/aicodeaudit/auditor/internal/crossfile"
	"github.com/aicodeaudit/auditor/internal/discovery"
	"github.com/aicodeaudit/auditor/internal/filter"
	"github.com/aicodeaudit/auditor/internal/llmmanager"
	"github.com/aicodeaudit/auditor/internal/llmprovider"
	"github.com/aicodeaudit/auditor/internal/model"
	"github.com/aicodeaudit/auditor/internal/orchestrator"
	"github.com/aicodeaudit/auditor/internal/ratelimiter"
	"github.com/aicodeaudit/auditor/internal/recursion"
	"github.com/aicodeaudit/auditor/internal/taskmatrix"
	"github.com/aicodeaudit/auditor/internal/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	projectPath := flag.String("project", ".", "Path to the project tree to audit")
	outputPath := flag.String("output", "", "Write the JSON report to this path instead of stdout")
	modelOverride := flag.String("model", "", "Override the configured default_model")
	workers := flag.Int("workers", 0, "Override the orchestrator's worker count (0 = default)")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	defaultModel := cfg.DefaultModel
	if *modelOverride != "" {
		defaultModel = *modelOverride
	}

	absProject, err := filepath.Abs(*projectPath)
	if err != nil {
		log.Fatalf("Failed to resolve project path: %v", err)
	}

	allPaths, err := walkProjectFiles(absProject)
	if err != nil {
		log.Fatalf("Failed to walk project tree: %v", err)
	}

	fileFilter := filter.New(absProject, cfg.FileFiltering)
	filteredPaths, filterStats := fileFilter.Apply(allPaths)
	log.Printf("file filter: %d of %d paths kept", len(filteredPaths), len(allPaths))
	for reason, count := range filterStats.Counts {
		if reason != filter.ExitIncluded {
			log.Printf("  excluded %d via %s", count, reason)
		}
	}

	units, err := discovery.Discover(absProject, filteredPaths)
	if err != nil {
		log.Fatalf("Failed to discover code units: %v", err)
	}
	if len(units) == 0 {
		log.Fatalf("No analyzable units discovered under %s", absProject)
	}

	fileProvider := &fsFileProvider{paths: filteredPaths}
	manager, providers := buildManager(cfg, fileProvider)
	defer func() {
		for _, p := range providers {
			_ = p.Close()
		}
	}()

	tracker := coverage.New()
	tracker.AddUnits(units)

	matrix := taskmatrix.New()
	for _, u := range units {
		matrix.Add(model.AnalysisTask{
			ID:         u.ID + "-task",
			UnitID:     u.ID,
			TaskType:   taskTypeFor(u.UnitType),
			Model:      defaultModel,
			Priority:   u.Priority,
			MaxRetries: model.DefaultMaxRetries,
			CreatedAt:  time.Now(),
			Metrics:    taskMetricsFor(u),
		})
	}

	orchCfg := orchestrator.Config{DefaultModel: defaultModel}
	if *workers > 0 {
		orchCfg.WorkerCount = *workers
	}

	o := orchestrator.New(orchCfg, matrix, tracker, manager.manager, manager.agg, func(p model.Progress) {
		slog.Info("progress", "analyzed", p.AnalyzedFiles, "failed", p.FailedFiles, "total", p.TotalFiles, "current_file", p.CurrentFile)
	})

	if err := o.Run(ctx, absProject, len(units)); err != nil {
		log.Fatalf("Audit run failed: %v", err)
	}

	out := auditReport{
		ToolVersion: version.Full(),
		Session:     o.Session(),
		Coverage:    tracker.GenerateCoverageReport(),
		Findings:    manager.agg.Findings(),
		Stats:       manager.agg.Stats(),
	}

	writeReport(out, *outputPath)

	if out.Stats.BySeverity[model.SeverityCritical] > 0 || out.Stats.BySeverity[model.SeverityHigh] > 0 {
		os.Exit(1)
	}
}

// auditReport is the JSON document this CLI emits.
type auditReport struct {
	ToolVersion string                `json:"tool_version"`
	Session     model.Session         `json:"session"`
	Coverage    coverage.Report       `json:"coverage"`
	Findings    []model.Finding       `json:"findings"`
	Stats       aggregator.Statistics `json:"stats"`
}

func writeReport(report auditReport, outputPath string) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal report: %v", err)
	}
	if outputPath == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Fatalf("Failed to write report to %s: %v", outputPath, err)
	}
	log.Printf("Report written to %s", outputPath)
}

// fsFileProvider adapts the local filesystem to crossfile.FileProvider,
// scoped to one project's already-filtered path list.
type fsFileProvider struct {
	paths []string
}

func (p *fsFileProvider) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (p *fsFileProvider) ListFiles() []string                  { return p.paths }

func walkProjectFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

func taskTypeFor(ut model.UnitType) model.TaskType {
	switch ut {
	case model.UnitFunction:
		return model.TaskFunction
	case model.UnitClass:
		return model.TaskClass
	default:
		return model.TaskFile
	}
}

func taskMetricsFor(u model.CodeUnit) model.TaskMetrics {
	impact := 0.5
	switch u.Priority {
	case model.PriorityCritical:
		impact = 1.0
	case model.PriorityHigh:
		impact = 0.8
	case model.PriorityMedium:
		impact = 0.5
	case model.PriorityLow:
		impact = 0.2
	}
	return model.TaskMetrics{
		SecurityImpact:       impact,
		BusinessCriticality:  impact,
		Complexity:           0.5,
		EstimatedDurationSec: 30,
	}
}

// managerRef breaks the construction cycle between the Cross-File
// Analyzer (which needs a Reanalyzer to re-invoke analyze_code) and the
// LLM Manager (which needs the Aggregator, which needs the analyzer).
// It's built empty, handed to crossfile.New, then pointed at the real
// Manager once that's constructed.
type managerRef struct {
	m *llmmanager.Manager
}

func (r *managerRef) AnalyzeCode(ctx context.Context, req llmmanager.AnalyzeCodeRequest) (*llmmanager.AnalyzeCodeResult, error) {
	return r.m.AnalyzeCode(ctx, req)
}

// wiredManager bundles the llmmanager.Manager with the concrete
// Aggregator it was built with, so main can read findings/stats back
// after the run without the Manager itself exposing aggregation state.
type wiredManager struct {
	manager *llmmanager.Manager
	agg     *aggregator.Aggregator
}

// buildManager wires rate limiters, circuit breakers, providers, the
// concurrency controller, the cross-file analyzer, and the aggregator
// into one llmmanager.Manager, matching spec §4.E/§4.P's dependency
// wiring order.
func buildManager(cfg *config.Config, fileProvider *fsFileProvider) (*wiredManager, []*llmprovider.Provider) {
	httpClient := &http.Client{Timeout: 2 * time.Minute}

	controller := concurrency.New(concurrency.Config{
		Initial:            cfg.Concurrency.Initial,
		Min:                cfg.Concurrency.Min,
		Max:                cfg.Concurrency.Max,
		AdjustmentInterval: cfg.Concurrency.AdjustmentInterval,
	})

	ref := &managerRef{}
	crossAn := crossfile.New(fileProvider, ref, recursion.New(recursion.DefaultCrossFileMaxDepth))
	agg := aggregator.New(confidence.Context{}, crossAn, cfg.SecurityRules, cfg.CrossFile.ConfidenceFloor)

	strategy := llmmanager.Strategy(cfg.Strategy)
	manager := llmmanager.New(strategy, controller, agg)
	ref.m = manager

	var providers []*llmprovider.Provider
	for name, pcfg := range cfg.LLMProviders {
		if !pcfg.Enabled {
			continue
		}
		rlCfg := ratelimiter.Config{RPM: pcfg.MaxRequestsPerMinute, TPM: 1_000_000, WindowSeconds: 60}
		if rl, ok := cfg.RateLimiters[name]; ok {
			rlCfg = ratelimiter.Config{RPM: rl.RPM, TPM: rl.TPM, WindowSeconds: rl.WindowSeconds}
		}
		limiter := ratelimiter.NewAdaptive(rlCfg)
		breaker := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			RecoveryTimeout:  cfg.CircuitBreaker.RecoveryTimeout,
			SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		})
		provider := llmprovider.New(llmprovider.Config{
			Name:             name,
			BaseURL:          pcfg.BaseURL,
			APIKey:           pcfg.APIKey,
			SupportedModels:  pcfg.SupportedModels,
			MaxContextTokens: pcfg.MaxContextTokens,
			MaxRetries:       3,
		}, limiter, httpClient)

		manager.AddProvider(name, provider, breaker, llmmanager.ProviderConfig{
			Enabled:           true,
			Priority:          pcfg.Priority,
			CostWeight:        pcfg.CostWeight,
			PerformanceWeight: pcfg.PerformanceWeight,
		})
		providers = append(providers, provider)
	}

	return &wiredManager{manager: manager, agg: agg}, providers
}
