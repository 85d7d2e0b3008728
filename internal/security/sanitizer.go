package security

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxStripPasses bounds the strip/decode loop on nested entity encodings.
const maxStripPasses = 8

const pollutionReason = "Prototype pollution attempt detected"

// Outcome is the result of sanitizing one text value.
type Outcome struct {
	Clean    string
	Modified bool
	Blocked  bool
	Reason   string
}

// ObjectOutcome is the result of sanitizing a structured value.
type ObjectOutcome struct {
	Clean    Value
	Modified bool
	Blocked  bool
	Reason   string
}

// Sanitizer strips markup and blocks injection attempts in free text.
type Sanitizer struct {
	table  *PatternTable
	policy *bluemonday.Policy
}

func NewSanitizer(table *PatternTable) *Sanitizer {
	return &Sanitizer{
		table:  table,
		policy: bluemonday.StrictPolicy(),
	}
}

// Table returns the pattern table in use.
func (s *Sanitizer) Table() *PatternTable {
	return s.table
}

// Sanitize runs text through the pipeline for field: control characters are
// stripped, any injection pattern blocks the whole input, markup is removed,
// the field length limit is applied and surrounding whitespace is trimmed.
// An empty field name applies no length limit.
func (s *Sanitizer) Sanitize(text, field string) Outcome {
	clean := stripControlChars(text)

	if category := s.table.Detect(clean); category != "" {
		return blocked(category)
	}

	clean, decoded := s.stripMarkup(clean)
	// Entity-encoded payloads only surface once decoded.
	if decoded {
		if category := s.table.Detect(clean); category != "" {
			return blocked(category)
		}
	}

	if limit, ok := s.table.MaxLength(field); ok {
		clean = truncateRunes(clean, limit)
	}
	clean = strings.TrimSpace(clean)

	return Outcome{Clean: clean, Modified: clean != text}
}

// Detect reports the injection category matched by text, or "".
func (s *Sanitizer) Detect(text string) string {
	return s.table.Detect(stripControlChars(text))
}

func blocked(category string) Outcome {
	return Outcome{
		Modified: true,
		Blocked:  true,
		Reason:   fmt.Sprintf("Blocked: %s pattern detected", category),
	}
}

// stripMarkup removes tags and decodes entities until the text is stable.
// decoded reports whether any pass found an entity in its input.
func (s *Sanitizer) stripMarkup(text string) (clean string, decoded bool) {
	for i := 0; i < maxStripPasses; i++ {
		if html.UnescapeString(text) != text {
			decoded = true
		}
		next := stripControlChars(html.UnescapeString(s.policy.Sanitize(text)))
		if next == text {
			break
		}
		text = next
	}
	return text, decoded
}

func stripControlChars(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20 || r == 0x7F:
			return -1
		default:
			return r
		}
	}, text)
}

func truncateRunes(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// HasDangerousKey reports whether v contains a dangerous key at any depth.
func (s *Sanitizer) HasDangerousKey(v Value) bool {
	switch v.Kind() {
	case KindMap:
		for _, m := range v.Members() {
			if s.table.IsDangerousKey(m.Key) || s.HasDangerousKey(m.Value) {
				return true
			}
		}
	case KindList:
		for _, item := range v.Items() {
			if s.HasDangerousKey(item) {
				return true
			}
		}
	}
	return false
}

// SkipField as an alias target leaves strings under that key untouched.
// Credentials use it so that a password is never rewritten.
const SkipField = "-"

// SanitizeObject blocks v outright if it contains a dangerous key, then
// sanitizes every string it holds. Strings under a map key use that key's
// field rule, or the rule named by aliases[key] when present. The first
// blocked string aborts the whole object.
func (s *Sanitizer) SanitizeObject(v Value, aliases map[string]string) ObjectOutcome {
	if s.HasDangerousKey(v) {
		return ObjectOutcome{Clean: Null(), Modified: true, Blocked: true, Reason: pollutionReason}
	}

	w := objectWalker{s: s, aliases: aliases}
	clean, err := w.walk(v, "")
	if err != nil {
		return ObjectOutcome{Clean: Null(), Modified: true, Blocked: true, Reason: err.Error()}
	}
	return ObjectOutcome{Clean: clean, Modified: w.modified}
}

type fieldBlockedError struct {
	key    string
	reason string
}

func (e *fieldBlockedError) Error() string {
	if e.key == "" {
		return e.reason
	}
	return fmt.Sprintf("Field %q: %s", e.key, e.reason)
}

type objectWalker struct {
	s        *Sanitizer
	aliases  map[string]string
	modified bool
}

func (w *objectWalker) walk(v Value, key string) (Value, error) {
	switch v.Kind() {
	case KindString:
		field := key
		if alias, ok := w.aliases[key]; ok {
			if alias == SkipField {
				return v, nil
			}
			field = alias
		}
		out := w.s.Sanitize(v.Str(), field)
		if out.Blocked {
			return Value{}, &fieldBlockedError{key: key, reason: out.Reason}
		}
		if out.Modified {
			w.modified = true
		}
		return String(out.Clean), nil

	case KindList:
		items := make([]Value, 0, len(v.Items()))
		for _, item := range v.Items() {
			clean, err := w.walk(item, key)
			if err != nil {
				return Value{}, err
			}
			items = append(items, clean)
		}
		return List(items...), nil

	case KindMap:
		members := make([]Member, 0, len(v.Members()))
		for _, m := range v.Members() {
			clean, err := w.walk(m.Value, m.Key)
			if err != nil {
				return Value{}, err
			}
			members = append(members, Member{Key: m.Key, Value: clean})
		}
		return Map(members...), nil

	default:
		return v, nil
	}
}
