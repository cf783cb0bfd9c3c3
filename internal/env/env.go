package env

import (
	"os"
	"strings"
)

// Table composes the environment handed to launched applications: the OS
// environment as base, launcher-wide overrides on top, and per-launch
// variables (such as PORT) last.
type Table struct {
	overrides map[string]string
	base      map[string]string // cached OS environment
}

func New() *Table {
	return &Table{overrides: make(map[string]string)}
}

// FromOS caches the current process environment as the base. Merge calls it
// lazily when no base has been cached yet.
func (t *Table) FromOS() {
	base := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k, v := kv[:i], kv[i+1:]
			if k == "" {
				continue
			}
			base[k] = v
		}
	}
	t.base = base
}

// Set records a launcher-wide override K=V.
func (t *Table) Set(k, v string) {
	if t.overrides == nil {
		t.overrides = make(map[string]string)
	}
	t.overrides[k] = v
}

// Unset drops a launcher-wide override.
func (t *Table) Unset(k string) {
	if t.overrides != nil {
		delete(t.overrides, k)
	}
}

// SetAll records every entry of m as a launcher-wide override.
func (t *Table) SetAll(m map[string]string) {
	for k, v := range m {
		if k == "" {
			continue
		}
		t.Set(k, v)
	}
}

// Merge builds the child environment in "K=V" form: OS base, then overrides,
// then perLaunch entries, last writer winning. Malformed perLaunch entries
// (no '=' or empty key) are skipped. Values containing ${VAR} are expanded
// against the composed map in a single pass, no recursion.
func (t *Table) Merge(perLaunch []string) []string {
	if t.base == nil {
		t.FromOS()
	}
	m := make(map[string]string, len(t.base)+len(t.overrides)+len(perLaunch))
	for k, v := range t.base {
		m[k] = v
	}
	for k, v := range t.overrides {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for _, kv := range perLaunch {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k, v := kv[:i], kv[i+1:]
			if k == "" {
				continue
			}
			m[k] = v
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	return out
}

func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
