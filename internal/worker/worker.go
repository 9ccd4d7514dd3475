// Package worker implements the Tenant Worker state machine: it
// applies one ScriptSet to one tenant, running the before/after hooks
// around each script and flushing a TenantResult to the State Store on
// every exit path, including a soft-deadline timeout.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/mirajehossain/tenantmigrator/internal/callback"
	"github.com/mirajehossain/tenantmigrator/internal/executor"
	"github.com/mirajehossain/tenantmigrator/internal/job"
	"github.com/mirajehossain/tenantmigrator/internal/logger"
	"github.com/mirajehossain/tenantmigrator/internal/orcherr"
	"github.com/mirajehossain/tenantmigrator/internal/scriptset"
	"github.com/mirajehossain/tenantmigrator/internal/store"
	"github.com/mirajehossain/tenantmigrator/internal/tenantdb"
)

// ProgressFunc receives a best-effort progress event; implementations
// must not block (see dispatch.Dispatcher.Emit).
type ProgressFunc func(scriptsComplete, totalScripts int)

// TenantWorker runs one tenant's migration.
type TenantWorker struct {
	Registry *callback.Registry
	Store    store.StateStore
	Executor executor.ScriptExecutor
	Log      *logger.Logger
}

func New(registry *callback.Registry, st store.StateStore, exec executor.ScriptExecutor, log *logger.Logger) *TenantWorker {
	return &TenantWorker{Registry: registry, Store: st, Executor: exec, Log: log}
}

func scriptMap(s scriptset.Script) map[string]any {
	return map[string]any{
		"filename":    s.Filename,
		"version":     s.Version,
		"description": s.Description,
		"kind":        string(s.Kind),
		"content":     s.Content,
		"checksum":    s.Checksum,
	}
}

func allScriptMaps(set scriptset.ScriptSet) []map[string]any {
	out := make([]map[string]any, len(set.Scripts))
	for i, s := range set.Scripts {
		out[i] = scriptMap(s)
	}
	return out
}

// Run executes the state machine described in §4.4 for one tenant and
// returns the flushed TenantResult. ctx carries the soft/hard deadlines
// applied by the Dispatcher; Run never returns an error to the caller —
// every failure path is captured into the result per the propagation
// policy (§7), so the group/chain the caller is part of always proceeds.
func (w *TenantWorker) Run(ctx context.Context, jobID string, spec tenantdb.Spec, set scriptset.ScriptSet, dryRun bool, progress ProgressFunc) job.TenantResult {
	startedAt := time.Now().UTC()
	result := job.TenantResult{
		TenantID:       spec.TenantID,
		Status:         job.StatusRunning,
		ScriptsApplied: []string{},
		ScriptsSkipped: []string{},
		StartedAt:      startedAt,
	}

	tenantMetadata := map[string]any{}
	allScripts := allScriptMaps(set)

	tenantCtx := &callback.Context{
		JobID:              jobID,
		TenantID:           spec.TenantID,
		CurrentScriptIndex: -1,
		Scripts:            allScripts,
		Metadata:           map[string]any{},
	}
	if out := w.Registry.RunHook(callback.BeforeTenant, tenantCtx); out.Failed() {
		return w.fail(ctx, jobID, result, out.Message)
	}
	mergeInto(tenantMetadata, tenantCtx.Metadata)

	if dryRun {
		for _, s := range set.Scripts {
			result.ScriptsApplied = append(result.ScriptsApplied, s.Filename)
		}
		result.Status = job.StatusSuccess
		return w.finish(ctx, jobID, result)
	}

	for i, s := range set.Scripts {
		select {
		case <-ctx.Done():
			return w.timeout(ctx, jobID, result, spec.TenantID)
		default:
		}

		scriptCtx := &callback.Context{
			JobID:              jobID,
			TenantID:           spec.TenantID,
			CurrentScriptIndex: i,
			Script:             scriptMap(s),
			Scripts:            allScripts,
			Metadata:           copyMetadata(tenantMetadata),
		}

		if out := w.Registry.RunHook(callback.BeforeScript, scriptCtx); out.Failed() {
			return w.fail(ctx, jobID, result, out.Message)
		} else if out.Skipped() {
			result.ScriptsSkipped = append(result.ScriptsSkipped, s.Filename)
			continue
		}

		if err := w.Executor.Execute(ctx, spec, s.Content); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
				return w.timeout(ctx, jobID, result, spec.TenantID)
			}
			execErr := orcherr.NewExecutionError(s.Filename, err)
			return w.fail(ctx, jobID, result, execErr.Error())
		}
		result.ScriptsApplied = append(result.ScriptsApplied, s.Filename)

		if out := w.Registry.RunHook(callback.AfterScript, scriptCtx); out.Failed() {
			return w.fail(ctx, jobID, result, out.Message)
		}
		mergeInto(tenantMetadata, scriptCtx.Metadata)

		if progress != nil {
			safeProgress(progress, len(result.ScriptsApplied)+len(result.ScriptsSkipped), len(set.Scripts))
		}
	}

	afterCtx := &callback.Context{
		JobID:              jobID,
		TenantID:           spec.TenantID,
		CurrentScriptIndex: len(set.Scripts),
		Scripts:            allScripts,
		Metadata:           copyMetadata(tenantMetadata),
	}
	if out := w.Registry.RunHook(callback.AfterTenant, afterCtx); out.Failed() {
		w.Log.With(map[string]any{"job_id": jobID, "tenant_id": spec.TenantID}).
			Warn("after_tenant hook failed, tenant still reports success", map[string]any{"error": out.Message})
	}

	result.Status = job.StatusSuccess
	result.CallbackMetadata = tenantMetadata
	return w.finish(ctx, jobID, result)
}

func (w *TenantWorker) fail(ctx context.Context, jobID string, result job.TenantResult, message string) job.TenantResult {
	result.Status = job.StatusFailed
	result.ErrorMessage = message

	errCtx := &callback.Context{
		JobID:    jobID,
		TenantID: result.TenantID,
		Metadata: map[string]any{"error": message},
	}
	w.Registry.RunHook(callback.OnError, errCtx) // failure swallowed per spec

	return w.finish(ctx, jobID, result)
}

func (w *TenantWorker) timeout(ctx context.Context, jobID string, result job.TenantResult, tenantID string) job.TenantResult {
	result.Status = job.StatusFailed
	result.ErrorMessage = "Migration exceeded time limit"

	errCtx := &callback.Context{
		JobID:    jobID,
		TenantID: tenantID,
		Metadata: map[string]any{"error": result.ErrorMessage},
	}
	w.Registry.RunHook(callback.OnError, errCtx)

	return w.finish(context.Background(), jobID, result)
}

func (w *TenantWorker) finish(ctx context.Context, jobID string, result job.TenantResult) job.TenantResult {
	completedAt := time.Now().UTC()
	result.CompletedAt = &completedAt
	duration := completedAt.Sub(result.StartedAt).Seconds()
	result.DurationSeconds = &duration

	storeCtx := ctx
	if storeCtx.Err() != nil {
		storeCtx = context.Background()
	}
	if _, err := w.Store.UpdateTenantResult(storeCtx, jobID, result); err != nil {
		w.Log.With(map[string]any{"job_id": jobID, "tenant_id": result.TenantID}).
			Error("failed to flush tenant result", map[string]any{"error": err.Error()})
	}
	return result
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func copyMetadata(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	mergeInto(out, src)
	return out
}

func safeProgress(fn ProgressFunc, completed, total int) {
	defer func() { _ = recover() }()
	fn(completed, total)
}
