//go:build test

package testutils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingT struct {
	errors []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestTextAsserter(t *testing.T) {
	t.Run("normalises trailing whitespace and color codes", func(t *testing.T) {
		rt := &recordingT{}
		ok := NewTextAsserter(rt).Assert("\x1b[31m21.50\x1b[0m  \nrow 2\t\n\n", "21.50\nrow 2")
		assert.True(t, ok, "normalised texts MUST match")
		assert.Empty(t, rt.errors)
	})

	t.Run("reports a unified diff on mismatch", func(t *testing.T) {
		rt := &recordingT{}
		ok := NewTextAsserter(rt).Assert("temperature 21.50", "temperature 22.50")
		assert.False(t, ok)
		if assert.Len(t, rt.errors, 1) {
			assert.Contains(t, rt.errors[0], "-temperature 22.50")
			assert.Contains(t, rt.errors[0], "+temperature 21.50")
		}
	})

	t.Run("keeps blank lines unless asked", func(t *testing.T) {
		ta := NewTextAsserter(t, WithIgnoreEmptyLines(true))
		ta.Assert("a\n\nb", "a\nb")
		assert.NotEmpty(t, NewTextAsserter(t).Diff("a\n\nb", "a\nb"))
	})
}

func TestJSONAsserter(t *testing.T) {
	t.Run("matches objects regardless of key order", func(t *testing.T) {
		NewJSONAsserter(t).Assert(`{"b":2,"a":1}`, `{"a":1,"b":2}`)
	})

	t.Run("presence placeholder accepts any value", func(t *testing.T) {
		NewJSONAsserter(t).Assert(`[{"time":"2024-03-15T10:00:00Z","humidity":45.67}]`,
			`[{"time":"<<PRESENCE>>","humidity":45.67}]`)
	})

	t.Run("ignored fields and extra keys", func(t *testing.T) {
		NewJSONAsserter(t, WithIgnoredFields("index"), WithIgnoreExtraKeys(true)).
			Assert(`{"index":3,"pressure":1013.25,"extra":true}`, `{"index":0,"pressure":1013.25}`)
	})

	t.Run("reports mismatching values", func(t *testing.T) {
		rt := &recordingT{}
		ok := NewJSONAsserter(rt).Assert(`{"temperature":30.5}`, `{"temperature":31.5}`)
		assert.False(t, ok)
		assert.Len(t, rt.errors, 1)
	})

	t.Run("reports invalid JSON", func(t *testing.T) {
		assert.Contains(t, NewJSONAsserter(t).Diff(`{`, `{}`), "invalid actual JSON")
	})
}
