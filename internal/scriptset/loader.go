package scriptset

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mirajehossain/tenantmigrator/internal/checksum"
)

// filenameRe matches V/R/S<version>__<description>.sql, where version is
// \d*\.?\d* (digits with at most one dot, e.g. "001" or "1.2"; an opaque
// key, never compared numerically) and description is any non-empty run
// of characters.
var filenameRe = regexp.MustCompile(`^([VRS])(\d*\.?\d*)__(.+)\.sql$`)

var dangerousOps = []string{"drop table", "drop database", "truncate"}

// Result is the outcome of loading a directory: a usable ScriptSet plus
// accumulated errors and warnings. The set is only usable when Errors is
// empty.
type Result struct {
	Set      ScriptSet
	Errors   []string
	Warnings []string
}

func (r Result) Usable() bool { return len(r.Errors) == 0 }

// Load enumerates *.sql files in dir, parses filenames against the three
// script patterns, reads and validates content, and detects (kind,
// version) conflicts.
func Load(dir string) (Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, fmt.Errorf("scriptset: read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	res := Result{}
	seen := map[string]string{} // (kind:version) -> filename

	for _, name := range names {
		m := filenameRe.FindStringSubmatch(name)
		if m == nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"%s: filename doesn't match expected pattern (V##__desc.sql, R##__desc.sql, or S##__desc.sql)", name))
			continue
		}

		kind := kindOf(m[1])
		version := m[2]
		description := strings.ReplaceAll(m[3], "_", " ")

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: failed to read file: %v", name, err))
			continue
		}
		content := string(raw)

		script := Script{
			Filename:    name,
			Version:     version,
			Description: description,
			Kind:        kind,
			Content:     content,
			Checksum:    checksum.SHA256(raw),
		}

		validateContent(script, &res)

		key := script.key()
		if prior, ok := seen[key]; ok {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"version conflict: %s and %s both use version %s", name, prior, version))
			continue
		}
		seen[key] = name

		res.Set.Scripts = append(res.Set.Scripts, script)
	}

	return res, nil
}

func kindOf(letter string) Kind {
	switch letter {
	case "V":
		return KindMigration
	case "R":
		return KindRollback
	case "S":
		return KindSeed
	}
	return ""
}

func validateContent(s Script, res *Result) {
	trimmed := strings.TrimSpace(s.Content)
	if trimmed == "" {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: script is empty", s.Filename))
		return
	}

	if !strings.HasSuffix(trimmed, ";") {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: missing semicolon at end of script", s.Filename))
	}

	lower := strings.ToLower(s.Content)
	for _, op := range dangerousOps {
		if strings.Contains(lower, op) {
			if !strings.Contains(lower, "begin") || !strings.Contains(lower, "commit") {
				res.Warnings = append(res.Warnings, fmt.Sprintf(
					"%s: dangerous operation without explicit transaction", s.Filename))
			}
			break
		}
	}
}
