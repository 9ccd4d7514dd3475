// Package scriptset loads and validates a directory of SQL migration
// scripts into an ordered, conflict-free ScriptSet.
package scriptset

// Kind classifies a Script by the leading letter of its filename.
type Kind string

const (
	KindMigration Kind = "MIGRATION"
	KindRollback  Kind = "ROLLBACK"
	KindSeed      Kind = "SEED"
)

// Script is one parsed, content-loaded SQL file.
type Script struct {
	Filename    string
	Version     string // opaque key, compared lexically, never numerically
	Description string
	Kind        Kind
	Content     string
	Checksum    string // sha256 of Content, exposed for callback-side dedupe
}

func (s Script) key() string {
	return string(s.Kind) + ":" + s.Version
}

// ScriptSet is an ordered sequence of Scripts sorted lexicographically by
// filename, with the invariant that no two entries share (Kind, Version).
type ScriptSet struct {
	Scripts []Script
}

// Filenames returns the filenames in set order.
func (s ScriptSet) Filenames() []string {
	out := make([]string, len(s.Scripts))
	for i, sc := range s.Scripts {
		out[i] = sc.Filename
	}
	return out
}

func (s ScriptSet) Len() int { return len(s.Scripts) }
