// Package callback implements the hook registry (C2): seven lifecycle
// points, ordered handler chains, and a uniform outcome type that
// normalizes the five ways a handler can report success, failure, or a
// skip directive.
package callback

// Context is passed to every handler invocation.
type Context struct {
	JobID              string
	TenantID           string
	Script             map[string]any // filename/version/description/content of the current script, if any
	Scripts            []map[string]any
	CurrentScriptIndex int
	Metadata           map[string]any
}

// Point names one of the seven lifecycle hooks.
type Point string

const (
	BeforeJob    Point = "before_job"
	AfterJob     Point = "after_job"
	BeforeTenant Point = "before_tenant"
	AfterTenant  Point = "after_tenant"
	BeforeScript Point = "before_script"
	AfterScript  Point = "after_script"
	OnError      Point = "on_error"
)

// Outcome is the tagged result of running one handler: Proceed carries
// metadata to merge into the context, Skip short-circuits the hook chain
// with a skip directive (meaningful only for before_script), and Fail
// short-circuits with a failure message.
type Outcome struct {
	kind     outcomeKind
	Metadata map[string]any
	Message  string
}

type outcomeKind int

const (
	kindProceed outcomeKind = iota
	kindSkip
	kindFail
)

func (o Outcome) Failed() bool  { return o.kind == kindFail }
func (o Outcome) Skipped() bool { return o.kind == kindSkip }

func Proceed(metadata map[string]any) Outcome {
	return Outcome{kind: kindProceed, Metadata: metadata}
}

func Skip(message string) Outcome {
	return Outcome{kind: kindSkip, Message: message}
}

func Fail(message string) Outcome {
	return Outcome{kind: kindFail, Message: message}
}

// Handler is a single registered callback. Name is used in HookError
// messages and in registry loading diagnostics.
type Handler struct {
	Name string
	Func func(*Context) Outcome
}

// FromError adapts a function that returns an error into a Handler: a
// non-nil error fails the chain, nil proceeds with no metadata.
func FromError(name string, fn func(*Context) error) Handler {
	return Handler{Name: name, Func: func(ctx *Context) Outcome {
		if err := fn(ctx); err != nil {
			return Fail(err.Error())
		}
		return Proceed(nil)
	}}
}

// FromBool adapts a function returning a boolean into a Handler: false
// fails the chain with a synthetic message, true proceeds.
func FromBool(name string, fn func(*Context) bool) Handler {
	return Handler{Name: name, Func: func(ctx *Context) Outcome {
		if !fn(ctx) {
			return Fail("callback " + name + " returned false")
		}
		return Proceed(nil)
	}}
}

// FromMetadata adapts a function returning a metadata map into a
// Handler: the map is always merged and the chain proceeds.
func FromMetadata(name string, fn func(*Context) map[string]any) Handler {
	return Handler{Name: name, Func: func(ctx *Context) Outcome {
		return Proceed(fn(ctx))
	}}
}

// Result is the dict-shaped handler return: {success, message?, data?,
// skip_script?}, one of five original callback return shapes.
type Result struct {
	Success    bool
	Message    string
	Data       map[string]any
	SkipScript bool
}

// FromResult adapts a function returning a Result into a Handler:
// Success=false fails the chain, SkipScript=true requests a skip,
// otherwise Data is merged and the chain proceeds.
func FromResult(name string, fn func(*Context) Result) Handler {
	return Handler{Name: name, Func: func(ctx *Context) Outcome {
		res := fn(ctx)
		if !res.Success {
			return Fail(res.Message)
		}
		if res.SkipScript {
			return Skip(res.Message)
		}
		return Proceed(res.Data)
	}}
}
