package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSanitizer(t *testing.T) *Sanitizer {
	t.Helper()
	return NewSanitizer(defaultTable(t))
}

func TestSanitize_ScriptBlocked(t *testing.T) {
	s := newTestSanitizer(t)

	out := s.Sanitize("<script>alert(1)</script>", "bio")

	assert.True(t, out.Blocked)
	assert.Equal(t, "", out.Clean)
	assert.Equal(t, "Blocked: xss pattern detected", out.Reason)
}

func TestSanitize_StripsMarkupAndControlChars(t *testing.T) {
	s := newTestSanitizer(t)

	out := s.Sanitize("  Hi <i>there</i>\x00\x07 friend\tagain  ", "bio")

	assert.False(t, out.Blocked)
	assert.True(t, out.Modified)
	assert.Equal(t, "Hi there friend\tagain", out.Clean)
}

func TestSanitize_Unmodified(t *testing.T) {
	s := newTestSanitizer(t)

	out := s.Sanitize("Loves hiking, cooking and travel!", "bio")

	assert.False(t, out.Blocked)
	assert.False(t, out.Modified)
	assert.Equal(t, "Loves hiking, cooking and travel!", out.Clean)
}

func TestSanitize_Idempotent(t *testing.T) {
	s := newTestSanitizer(t)

	inputs := []string{
		"<b>Hello</b> world",
		"  padded text  ",
		"1 < 2 > 0",
		"quote \"marks\" and 'apostrophes'",
		strings.Repeat("ab ", 30),
		"line one\nline two",
		"Rock&😀roll",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first := s.Sanitize(in, "firstName")
			require.False(t, first.Blocked, first.Reason)

			second := s.Sanitize(first.Clean, "firstName")
			assert.False(t, second.Blocked)
			assert.False(t, second.Modified)
			assert.Equal(t, first.Clean, second.Clean)
		})
	}
}

func TestSanitize_Truncates(t *testing.T) {
	s := newTestSanitizer(t)

	in := strings.Repeat("ab ", 30)
	out := s.Sanitize(in, "firstName")
	assert.Equal(t, strings.TrimSpace(in[:50]), out.Clean)

	out = s.Sanitize(strings.Repeat("é", 60), "firstName")
	assert.Equal(t, strings.Repeat("é", 50), out.Clean)

	// Unknown fields are not truncated.
	out = s.Sanitize(in, "")
	assert.Equal(t, strings.TrimSpace(in), out.Clean)
}

func TestSanitize_BlockWinsOverTruncation(t *testing.T) {
	s := newTestSanitizer(t)

	in := strings.Repeat("x y ", 200) + "<script>alert(1)</script>"
	out := s.Sanitize(in, "bio")

	assert.True(t, out.Blocked)
	assert.Equal(t, "", out.Clean)
}

func TestSanitize_TruncationNeverBlocks(t *testing.T) {
	s := newTestSanitizer(t)

	// The cut leaves a trailing "--" that would read as a SQL comment.
	in := strings.Repeat("a", 47) + " --zzz"
	out := s.Sanitize(in, "firstName")

	assert.False(t, out.Blocked, out.Reason)
	assert.Equal(t, strings.Repeat("a", 47)+" --", out.Clean)
}

func TestSanitize_MarkupRemovalNeverBlocks(t *testing.T) {
	s := newTestSanitizer(t)

	out := s.Sanitize("hello --<br>", "bio")

	assert.False(t, out.Blocked, out.Reason)
	assert.Equal(t, "hello --", out.Clean)
}

func TestSanitize_EntityEncodedPayloadBlocked(t *testing.T) {
	s := newTestSanitizer(t)

	out := s.Sanitize("&lt;script&gt;alert(1)&lt;/script&gt;", "bio")
	assert.True(t, out.Blocked)
	assert.Equal(t, "", out.Clean)
}

func TestSanitizeObject(t *testing.T) {
	s := newTestSanitizer(t)

	v := Map(
		Member{Key: "firstName", Value: String("<b>Ann</b>")},
		Member{Key: "hobbies", Value: List(String(" chess "), String("go"))},
		Member{Key: "age", Value: Number("30")},
		Member{Key: "prefs", Value: Map(Member{Key: "search", Value: String(strings.Repeat("q ", 80))})},
	)

	out := s.SanitizeObject(v, map[string]string{"hobbies": "hobby"})
	require.False(t, out.Blocked, out.Reason)
	assert.True(t, out.Modified)

	first, _ := out.Clean.Get("firstName")
	assert.Equal(t, "Ann", first.Str())

	hobbies, _ := out.Clean.Get("hobbies")
	require.Len(t, hobbies.Items(), 2)
	assert.Equal(t, "chess", hobbies.Items()[0].Str())

	age, _ := out.Clean.Get("age")
	assert.Equal(t, "30", age.NumberValue())

	prefs, _ := out.Clean.Get("prefs")
	search, _ := prefs.Get("search")
	assert.LessOrEqual(t, len(search.Str()), 100)
}

func TestSanitizeObject_PrototypePollution(t *testing.T) {
	s := newTestSanitizer(t)

	tests := map[string]Value{
		"top level": Map(Member{Key: "__proto__", Value: Map()}),
		"nested": Map(Member{Key: "profile", Value: Map(
			Member{Key: "prototype", Value: Map(Member{Key: "isAdmin", Value: Bool(true)})},
		)}),
		"inside list": Map(Member{Key: "items", Value: List(Map(Member{Key: "constructor", Value: Null()}))}),
	}

	for name, v := range tests {
		t.Run(name, func(t *testing.T) {
			out := s.SanitizeObject(v, nil)
			assert.True(t, out.Blocked)
			assert.Equal(t, "Prototype pollution attempt detected", out.Reason)
		})
	}
}

func TestSanitizeObject_FirstBlockedFieldAborts(t *testing.T) {
	s := newTestSanitizer(t)

	v := Map(
		Member{Key: "firstName", Value: String("Ann")},
		Member{Key: "bio", Value: String("<script>alert(1)</script>")},
		Member{Key: "lastName", Value: String("{{7*7}}")},
	)

	out := s.SanitizeObject(v, nil)
	assert.True(t, out.Blocked)
	assert.Equal(t, `Field "bio": Blocked: xss pattern detected`, out.Reason)
	assert.Equal(t, KindNull, out.Clean.Kind())
}

func TestSanitizeObject_Alias(t *testing.T) {
	s := newTestSanitizer(t)

	v := Map(Member{Key: "message", Value: String(strings.Repeat("hi ", 1000))})
	out := s.SanitizeObject(v, map[string]string{"message": "chatMessage"})
	require.False(t, out.Blocked)

	msg, _ := out.Clean.Get("message")
	assert.LessOrEqual(t, len([]rune(msg.Str())), 2000)
}

func TestSanitizeObject_SkipField(t *testing.T) {
	s := newTestSanitizer(t)

	v := Map(
		Member{Key: "email", Value: String("a@example.com")},
		Member{Key: "password", Value: String("S3cure&Pass|word$")},
	)
	out := s.SanitizeObject(v, map[string]string{"password": SkipField})
	require.False(t, out.Blocked)

	pw, _ := out.Clean.Get("password")
	assert.Equal(t, "S3cure&Pass|word$", pw.Str())
	assert.False(t, out.Modified)
}

func TestSanitizeObject_SkipFieldStillChecksPollution(t *testing.T) {
	s := newTestSanitizer(t)

	v := Map(Member{Key: "password", Value: Map(Member{Key: "__proto__", Value: Bool(true)})})
	out := s.SanitizeObject(v, map[string]string{"password": SkipField})

	assert.True(t, out.Blocked)
}
