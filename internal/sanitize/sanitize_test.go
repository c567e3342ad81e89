package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Game Designer", "Game Designer"},
		{"newline and tab", "line one\nline\ttwo", "line onelinetwo"},
		{"bell and escape", "a\x07b\x1bc", "abc"},
		{"zero width space", "a\u200bb", "ab"},
		{"non-breaking space", "a\u00a0b", "ab"},
		{"unicode letters kept", "Ingénieur 工程师", "Ingénieur 工程师"},
		{"invalid utf8", "ok\xffok", "okok"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Text(tc.in))
		})
	}
}

func TestTextIdempotentAndNeverLonger(t *testing.T) {
	inputs := []string{
		"",
		"simple",
		"tabs\tand\nnewlines\r\n",
		"\x00\x01\x02 mixed   separators  ",
		"emoji 🦊 and marks é",
		"\xfe\xff broken",
	}
	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "input %q", in)
		assert.LessOrEqual(t, len(once), len(in), "input %q", in)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Project Manager", "project_manager"},
		{"Python  Developer", "python__developer"},
		{"QA\tLead", "qalead"},
		{"already_slugged", "already_slugged"},
		{"ÉDITEUR Web", "éditeur_web"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got := Slug(tc.in)
			assert.Equal(t, tc.want, got)
			assert.NotContains(t, got, " ")
		})
	}
}

func TestTexts(t *testing.T) {
	assert.Equal(t, []string{}, Texts(nil))
	assert.Equal(t, []string{"ab", "c"}, Texts([]string{"a\nb", "c"}))
}

func TestFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Project Manager", "project_manager"},
		{"UI/UX Designer", "ui_ux_designer"},
		{`Back\Slash`, "back_slash"},
		{"../../../escaped", "_.._.._escaped"},
		{".hidden", "hidden"},
		{"...", "unnamed"},
		{"", "unnamed"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got := FileName(tc.in)
			assert.Equal(t, tc.want, got)
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, `\`)
		})
	}
}
