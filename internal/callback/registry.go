package callback

import "github.com/mirajehossain/tenantmigrator/internal/orcherr"

// Registry holds the ordered handler chains for the seven lifecycle
// hooks. It does not catch handler failures silently — RunHook returns
// a failed Outcome the caller decides whether to treat as fatal.
type Registry struct {
	handlers map[Point][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Point][]Handler)}
}

func (r *Registry) Register(point Point, h Handler) {
	r.handlers[point] = append(r.handlers[point], h)
}

// Hooks is the capability interface a compiled-in or plugin-loaded
// callback implementation satisfies: one method per lifecycle point.
// RegisterHooks registers each method as a single named handler on its
// corresponding point, in the order points are listed here.
type Hooks interface {
	BeforeJob(ctx *Context) Outcome
	AfterJob(ctx *Context) Outcome
	BeforeTenant(ctx *Context) Outcome
	AfterTenant(ctx *Context) Outcome
	BeforeScript(ctx *Context) Outcome
	AfterScript(ctx *Context) Outcome
	OnError(ctx *Context) Outcome
}

// RegisterHooks wires a Hooks implementation's methods into the
// registry's seven chains, appending after any handlers already
// registered (e.g. from a prior RegisterHooks or in-process Register
// call), so load order determines invocation order.
func RegisterHooks(r *Registry, name string, h Hooks) {
	r.Register(BeforeJob, Handler{Name: name, Func: h.BeforeJob})
	r.Register(AfterJob, Handler{Name: name, Func: h.AfterJob})
	r.Register(BeforeTenant, Handler{Name: name, Func: h.BeforeTenant})
	r.Register(AfterTenant, Handler{Name: name, Func: h.AfterTenant})
	r.Register(BeforeScript, Handler{Name: name, Func: h.BeforeScript})
	r.Register(AfterScript, Handler{Name: name, Func: h.AfterScript})
	r.Register(OnError, Handler{Name: name, Func: h.OnError})
}

// Outcome of running a full hook chain.
type ChainResult struct {
	Outcome  Outcome
	Metadata map[string]any
}

// RunHook invokes every handler registered for point, in registration
// order, against ctx. A handler that panics is treated as a failure
// with the recovered value as the message, matching the "raise ->
// failure" branch of the original callback contract. Later handlers do
// not run once one has failed or requested a skip.
func (r *Registry) RunHook(point Point, ctx *Context) (out Outcome) {
	for _, h := range r.handlers[point] {
		result := invokeSafely(h, ctx)
		switch {
		case result.Failed():
			return Fail(errHookMessage(string(point), h.Name, result.Message))
		case result.Skipped():
			return result
		default:
			if result.Metadata != nil {
				for k, v := range result.Metadata {
					ctx.Metadata[k] = v
				}
			}
		}
	}
	return Proceed(nil)
}

func errHookMessage(point, handler, message string) string {
	herr := orcherr.NewHookError(point, handler, message)
	return herr.Error()
}

func invokeSafely(h Handler, ctx *Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Fail(panicMessage(r))
		}
	}()
	return h.Func(ctx)
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic: " + anyToString(r)
}

func anyToString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic value"
}
