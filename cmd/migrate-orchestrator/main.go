package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mirajehossain/tenantmigrator/internal/callback"
	"github.com/mirajehossain/tenantmigrator/internal/config"
	"github.com/mirajehossain/tenantmigrator/internal/executor"
	"github.com/mirajehossain/tenantmigrator/internal/httpapi"
	"github.com/mirajehossain/tenantmigrator/internal/job"
	"github.com/mirajehossain/tenantmigrator/internal/logger"
	"github.com/mirajehossain/tenantmigrator/internal/notify"
	"github.com/mirajehossain/tenantmigrator/internal/orcherr"
	"github.com/mirajehossain/tenantmigrator/internal/orchestrator"
	"github.com/mirajehossain/tenantmigrator/internal/query"
	"github.com/mirajehossain/tenantmigrator/internal/store"
	"github.com/mirajehossain/tenantmigrator/internal/tenantdb"
)

const (
	exitOK              = 0
	exitValidationError = 1
	exitStartupFailed   = 2
	exitPartial         = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		usage()
		return exitOK
	}
	cmd := os.Args[1]

	global := flag.NewFlagSet(cmd, flag.ContinueOnError)
	conf := global.String("config", "", "Optional YAML config path")
	jsonOut := global.Bool("json", false, "JSON logs")
	dir := global.String("dir", "./migrations", "Migrations directory")
	tenantsFile := global.String("tenants", "", "Path to a JSON array of tenant specs")
	mode := global.String("mode", "dry_run", "dry_run | apply | validate_only")
	sequential := global.Bool("sequential", false, "Run tenants sequentially instead of in parallel")
	jobName := global.String("job-name", "", "Optional human-readable job name")
	if err := global.Parse(os.Args[2:]); err != nil {
		return exitStartupFailed
	}

	cfg, _ := config.LoadYAML(*conf)
	cfg = config.MergeEnv(cfg)
	cfg.JSON = *jsonOut

	log := logger.New(cfg.JSON)

	switch cmd {
	case "serve":
		return serve(cfg, log)
	case "run":
		return runJob(cfg, log, *dir, *tenantsFile, *mode, !*sequential, *jobName)
	default:
		usage()
		return exitOK
	}
}

func buildOrchestrator(cfg *config.Config, log *logger.Logger) (*orchestrator.Orchestrator, store.StateStore, error) {
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	st := store.NewRedis(client)

	registry := callback.NewRegistry()
	if cfg.CallbackFile != "" {
		if err := callback.LoadFromFile(registry, cfg.CallbackFile); err != nil {
			log.Warn("failed to load callback plugin", map[string]any{"file": cfg.CallbackFile, "error": err.Error()})
		}
	}

	orch := orchestrator.New(registry, st, func() executor.ScriptExecutor { return executor.NewMySQL() },
		log, cfg.SoftTimeout(), cfg.HardTimeout())
	return orch, st, nil
}

func serve(cfg *config.Config, log *logger.Logger) int {
	orch, st, err := buildOrchestrator(cfg, log)
	if err != nil {
		log.Error("startup failed", map[string]any{"error": err.Error()})
		return exitStartupFailed
	}

	q := query.New(st)
	hub := notify.NewHub(log)
	srv := httpapi.NewServer(orch, q, hub, log)

	log.Info("listening", map[string]any{"addr": cfg.HTTPAddr})
	if err := http.ListenAndServe(cfg.HTTPAddr, srv.Router()); err != nil {
		log.Error("server stopped", map[string]any{"error": err.Error()})
		return exitStartupFailed
	}
	return exitOK
}

func runJob(cfg *config.Config, log *logger.Logger, dir, tenantsFile, mode string, parallel bool, jobName string) int {
	if tenantsFile == "" {
		fmt.Fprintln(os.Stderr, "run requires --tenants <path to JSON tenant array>")
		return exitStartupFailed
	}
	raw, err := os.ReadFile(tenantsFile)
	if err != nil {
		log.Error("failed to read tenants file", map[string]any{"error": err.Error()})
		return exitStartupFailed
	}
	var tenants []tenantdb.Spec
	if err := json.Unmarshal(raw, &tenants); err != nil {
		log.Error("failed to parse tenants file", map[string]any{"error": err.Error()})
		return exitStartupFailed
	}

	orch, st, err := buildOrchestrator(cfg, log)
	if err != nil {
		log.Error("startup failed", map[string]any{"error": err.Error()})
		return exitStartupFailed
	}

	result, err := orch.StartJob(context.Background(), orchestrator.StartRequest{
		Tenants:       tenants,
		MigrationsDir: dir,
		Mode:          orchestrator.Mode(mode),
		Parallel:      parallel,
		JobName:       jobName,
	})
	if err != nil {
		var ve *orcherr.ValidationError
		if errors.As(err, &ve) {
			log.Error("validation failed", map[string]any{"error": err.Error()})
			return exitValidationError
		}
		log.Error("failed to start job", map[string]any{"error": err.Error()})
		return exitStartupFailed
	}

	if result.Mode == orchestrator.ModeValidateOnly {
		log.Info("validation passed", map[string]any{"scripts_found": result.ScriptsFound, "warnings": result.Warnings})
		return exitOK
	}

	log.Info("job started", map[string]any{"job_id": result.JobID, "tenant_count": result.TenantCount})

	j := waitForTerminal(st, result.JobID)
	if j == nil {
		log.Error("job did not reach a terminal status", map[string]any{"job_id": result.JobID})
		return exitStartupFailed
	}

	log.Info("job finished", map[string]any{
		"job_id": j.JobID, "status": string(j.Status), "successful": j.Successful, "failed": j.Failed,
	})

	switch j.Status {
	case job.StatusSuccess:
		return exitOK
	case job.StatusPartial:
		return exitPartial
	default:
		return exitValidationError
	}
}

func waitForTerminal(st store.StateStore, jobID string) *job.Job {
	deadline := time.Now().Add(2 * time.Hour)
	for time.Now().Before(deadline) {
		j, err := st.GetJob(context.Background(), jobID)
		if err == nil && j.Status.Terminal() {
			return j
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil
}

func usage() {
	fmt.Println(`migrate-orchestrator - tenant migration job orchestrator

USAGE:
  migrate-orchestrator <command> [--flags]

COMMANDS:
  serve   Run the HTTP API server
  run     Start a migration job and block until it reaches a terminal status

GLOBAL FLAGS:
  --config <path>      Optional YAML config path
  --json               JSON logs

RUN FLAGS:
  --dir <path>          Migrations directory (default ./migrations)
  --tenants <path>      Path to a JSON array of tenant specs
  --mode <mode>         dry_run | apply | validate_only (default dry_run)
  --sequential          Run tenants sequentially instead of in parallel
  --job-name <name>     Optional human-readable job name

EXIT CODES:
  0  success
  1  validation failed
  2  startup failed
  3  partial

EXAMPLES:
  migrate-orchestrator serve --config ./config.yaml
  migrate-orchestrator run --dir ./migrations --tenants ./tenants.json --mode apply`)
}
