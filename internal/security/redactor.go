package security

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// sensitiveKey matches configuration keys whose values are always hidden.
var sensitiveKey = regexp.MustCompile(`(?i)(secret|token|password|key|credential)`)

// Redactor hides secrets in log lines, audit entries and printed config.
// Known credential formats are matched by pattern; values loaded at
// runtime are matched literally. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
	replacer *strings.Replacer
}

// NewRedactor returns a Redactor loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern registers an extra credential format.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	r.patterns = append(r.patterns, pattern)
	r.mu.Unlock()
}

// AddLiteral registers a secret value. Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLiterals(append(slices.Clone(r.literals), secret))
}

// SyncCredentials replaces the literal set with the credential store's
// current values.
func (r *Redactor) SyncCredentials(store *CredentialStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLiterals(store.Values())
}

// Track keeps the literal set in step with store from now on.
func (r *Redactor) Track(store *CredentialStore) {
	store.Watch(func() { r.SyncCredentials(store) })
	r.SyncCredentials(store)
}

// setLiterals rebuilds the replacer. Longer values go first so a secret
// that contains another one is hidden whole. Caller holds mu.
func (r *Redactor) setLiterals(values []string) {
	values = slices.DeleteFunc(values, func(v string) bool { return v == "" })
	slices.SortFunc(values, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	values = slices.Compact(values)
	r.literals = values
	if len(values) == 0 {
		r.replacer = nil
		return
	}
	pairs := make([]string, 0, 2*len(values))
	for _, v := range values {
		pairs = append(pairs, v, RedactPlaceholder)
	}
	r.replacer = strings.NewReplacer(pairs...)
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	r.mu.RLock()
	patterns, replacer := r.patterns, r.replacer
	r.mu.RUnlock()

	if replacer != nil {
		s = replacer.Replace(s)
	}
	for _, p := range patterns {
		s = p.ReplaceAllLiteralString(s, RedactPlaceholder)
	}
	return s
}

// RedactMap hides secrets in a decoded YAML or JSON document in place.
// Non-empty strings under sensitive keys are replaced outright; every
// other string goes through Redact.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if s, ok := v.(string); ok && s != "" && sensitiveKey.MatchString(k) {
			m[k] = RedactPlaceholder
			continue
		}
		m[k] = r.redactValue(v)
	}
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.Redact(val)
	case map[string]any:
		r.RedactMap(val)
	case []any:
		for i, item := range val {
			val[i] = r.redactValue(item)
		}
	}
	return v
}

// DefaultPatterns returns the credential formats this service handles.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Concentrate gateway keys.
		regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{20,}`),
		// TMDB v3 query parameter.
		regexp.MustCompile(`(?i)api_key=[^&\s"']+`),
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]{16,}`),
		// TMDB v4 read access tokens are JWTs.
		regexp.MustCompile(`eyJ[a-zA-Z0-9_\-]{8,}\.[a-zA-Z0-9_\-]{8,}\.[a-zA-Z0-9_\-]{8,}`),
	}
}
