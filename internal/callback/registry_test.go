package callback

import "testing"

func newCtx() *Context {
	return &Context{Metadata: map[string]any{}}
}

func TestRunHook_EmptyChainProceeds(t *testing.T) {
	r := NewRegistry()
	out := r.RunHook(BeforeTenant, newCtx())
	if out.Failed() || out.Skipped() {
		t.Fatalf("expected proceed, got %+v", out)
	}
}

func TestRunHook_MetadataMerges(t *testing.T) {
	r := NewRegistry()
	r.Register(BeforeTenant, FromMetadata("tag", func(ctx *Context) map[string]any {
		return map[string]any{"tagged": true}
	}))
	ctx := newCtx()
	out := r.RunHook(BeforeTenant, ctx)
	if out.Failed() {
		t.Fatalf("unexpected failure: %s", out.Message)
	}
	if ctx.Metadata["tagged"] != true {
		t.Fatalf("expected metadata merged, got %+v", ctx.Metadata)
	}
}

func TestRunHook_FailureShortCircuits(t *testing.T) {
	r := NewRegistry()
	var secondRan bool
	r.Register(BeforeScript, Handler{Name: "first", Func: func(ctx *Context) Outcome {
		return Fail("boom")
	}})
	r.Register(BeforeScript, Handler{Name: "second", Func: func(ctx *Context) Outcome {
		secondRan = true
		return Proceed(nil)
	}})

	out := r.RunHook(BeforeScript, newCtx())
	if !out.Failed() {
		t.Fatal("expected failure")
	}
	if secondRan {
		t.Fatal("expected chain to short-circuit before the second handler")
	}
}

func TestRunHook_SkipShortCircuits(t *testing.T) {
	r := NewRegistry()
	var secondRan bool
	r.Register(BeforeScript, Handler{Name: "first", Func: func(ctx *Context) Outcome {
		return Skip("not today")
	}})
	r.Register(BeforeScript, Handler{Name: "second", Func: func(ctx *Context) Outcome {
		secondRan = true
		return Proceed(nil)
	}})

	out := r.RunHook(BeforeScript, newCtx())
	if !out.Skipped() {
		t.Fatal("expected skip")
	}
	if secondRan {
		t.Fatal("expected chain to short-circuit before the second handler")
	}
}

func TestRunHook_BoolFalseFails(t *testing.T) {
	r := NewRegistry()
	r.Register(AfterScript, FromBool("checker", func(ctx *Context) bool { return false }))
	out := r.RunHook(AfterScript, newCtx())
	if !out.Failed() {
		t.Fatal("expected bool-false handler to fail the chain")
	}
}

func TestRunHook_ResultSkipScriptSkips(t *testing.T) {
	r := NewRegistry()
	r.Register(BeforeScript, FromResult("gate", func(ctx *Context) Result {
		return Result{Success: true, SkipScript: true, Message: "already applied"}
	}))
	out := r.RunHook(BeforeScript, newCtx())
	if !out.Skipped() {
		t.Fatal("expected skip_script result to skip the chain")
	}
}

func TestRunHook_ResultFailureFails(t *testing.T) {
	r := NewRegistry()
	r.Register(BeforeScript, FromResult("gate", func(ctx *Context) Result {
		return Result{Success: false, Message: "nope"}
	}))
	out := r.RunHook(BeforeScript, newCtx())
	if !out.Failed() {
		t.Fatal("expected success=false result to fail the chain")
	}
}

func TestRunHook_PanicBecomesFailure(t *testing.T) {
	r := NewRegistry()
	r.Register(OnError, Handler{Name: "panicker", Func: func(ctx *Context) Outcome {
		panic("boom")
	}})
	out := r.RunHook(OnError, newCtx())
	if !out.Failed() {
		t.Fatal("expected panic to be captured as failure")
	}
}

func TestRegisterHooks_OrdersByHookMethod(t *testing.T) {
	r := NewRegistry()
	var order []string
	h := recordingHooks{order: &order}
	RegisterHooks(r, "recorder", h)

	r.RunHook(BeforeJob, newCtx())
	r.RunHook(BeforeTenant, newCtx())

	if len(order) != 2 || order[0] != "before_job" || order[1] != "before_tenant" {
		t.Fatalf("unexpected call order: %v", order)
	}
}

type recordingHooks struct {
	order *[]string
}

func (h recordingHooks) BeforeJob(ctx *Context) Outcome {
	*h.order = append(*h.order, "before_job")
	return Proceed(nil)
}
func (h recordingHooks) AfterJob(ctx *Context) Outcome     { return Proceed(nil) }
func (h recordingHooks) BeforeTenant(ctx *Context) Outcome {
	*h.order = append(*h.order, "before_tenant")
	return Proceed(nil)
}
func (h recordingHooks) AfterTenant(ctx *Context) Outcome  { return Proceed(nil) }
func (h recordingHooks) BeforeScript(ctx *Context) Outcome { return Proceed(nil) }
func (h recordingHooks) AfterScript(ctx *Context) Outcome  { return Proceed(nil) }
func (h recordingHooks) OnError(ctx *Context) Outcome      { return Proceed(nil) }
