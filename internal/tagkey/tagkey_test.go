package tagkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, Key("Language/German", true), Key("language/GERMAN", true))
	assert.NotEqual(t, Key("Language/German", false), Key("language/GERMAN", false))
	assert.Equal(t, Fold("Éclair"), Fold("éCLAIR"))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare("ABC", "abc"))
	assert.Negative(t, Compare("apple", "Banana"))
	assert.Positive(t, Compare("cherry", "Banana"))
}

func TestSet(t *testing.T) {
	s := NewSet(true, "Language", "leech")
	assert.True(t, s.Has("language"))
	assert.False(t, s.Add("LEECH"))
	assert.True(t, s.Add("Verbs"))
	assert.Equal(t, 3, s.Len())

	strict := NewSet(false, "Language")
	assert.False(t, strict.Has("language"))
	assert.True(t, strict.Add("language"))
	assert.Equal(t, 2, strict.Len())
}
