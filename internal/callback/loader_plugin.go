package callback

import (
	"fmt"
	"plugin"
)

// LoadFromFile loads callback handlers from a compiled Go plugin (a
// shared object built with `go build -buildmode=plugin`) and registers
// them into r. The plugin must export a symbol named "Hooks" that is
// either a Hooks value or a func() Hooks constructor; this is the Go
// analogue of reflecting on a user-supplied module and scanning for
// tagged functions, without reaching for dynamic import. A path that
// cannot be opened (including an empty or missing one) is returned as an
// error and nothing is registered; when SIMPLY_MIGRATE_CALLBACK_FILE is
// unset, callers skip LoadFromFile and the registry stays empty.
func LoadFromFile(r *Registry, path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("callback: open plugin %s: %w", path, err)
	}
	sym, err := p.Lookup("Hooks")
	if err != nil {
		return fmt.Errorf("callback: plugin %s has no Hooks symbol: %w", path, err)
	}

	switch v := sym.(type) {
	case Hooks:
		RegisterHooks(r, path, v)
		return nil
	case func() Hooks:
		RegisterHooks(r, path, v())
		return nil
	default:
		return fmt.Errorf("callback: plugin %s Hooks symbol has unexpected type %T", path, sym)
	}
}
