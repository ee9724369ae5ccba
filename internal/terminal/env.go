package terminal

import (
	"os"
	"runtime"
	"sort"
	"strings"
)

// EnvOptions controls the environment a shell is started with.
type EnvOptions struct {
	TermType  string
	ColorTerm string
	// Locale overrides the locale fallback chain when set.
	Locale string
	// Extra variables are applied last and win over everything else.
	Extra map[string]string
}

// ResolveLocale picks the LANG for a new shell: the explicit override, then
// LC_ALL, then LANG from lookup, then a platform UTF-8 default. Values that
// are empty or not UTF-8 locales are skipped so a shell never starts in a
// broken locale.
func ResolveLocale(override string, lookup func(string) (string, bool), goos string) string {
	candidates := []string{override}
	for _, key := range []string{"LC_ALL", "LANG"} {
		if value, ok := lookup(key); ok {
			candidates = append(candidates, value)
		}
	}
	for _, candidate := range candidates {
		if isUTF8Locale(candidate) {
			return candidate
		}
	}
	return defaultLocale(goos)
}

func defaultLocale(goos string) string {
	if goos == "darwin" {
		return "en_US.UTF-8"
	}
	return "C.UTF-8"
}

func isUTF8Locale(locale string) bool {
	lower := strings.ToLower(locale)
	return strings.Contains(lower, "utf-8") || strings.Contains(lower, "utf8")
}

// BuildEnv derives a shell environment from base (usually os.Environ()).
// TERM, COLORTERM and LANG are always set; an inherited LC_ALL that is not
// UTF-8 is dropped because it would override LANG.
func BuildEnv(base []string, opts EnvOptions) []string {
	lookup := func(key string) (string, bool) {
		for i := len(base) - 1; i >= 0; i-- {
			if k, v, ok := strings.Cut(base[i], "="); ok && k == key {
				return v, true
			}
		}
		return "", false
	}
	locale := ResolveLocale(opts.Locale, lookup, runtime.GOOS)

	override := map[string]bool{"TERM": true, "COLORTERM": true, "LANG": true}
	for key := range opts.Extra {
		override[key] = true
	}

	env := make([]string, 0, len(base)+3+len(opts.Extra))
	for _, kv := range base {
		key, value, _ := strings.Cut(kv, "=")
		if override[key] {
			continue
		}
		if key == "LC_ALL" && !isUTF8Locale(value) {
			continue
		}
		env = append(env, kv)
	}

	set := func(key, value string) {
		if _, ok := opts.Extra[key]; !ok && value != "" {
			env = append(env, key+"="+value)
		}
	}
	termType := opts.TermType
	if termType == "" {
		termType = "xterm-256color"
	}
	set("TERM", termType)
	set("COLORTERM", opts.ColorTerm)
	set("LANG", locale)

	keys := make([]string, 0, len(opts.Extra))
	for key := range opts.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+opts.Extra[key])
	}
	return env
}

// HomeDir returns the invoking user's home directory, falling back to the
// system temp directory when it cannot be determined.
func HomeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return os.TempDir()
}
