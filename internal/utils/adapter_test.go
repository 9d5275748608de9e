package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringToUint(t *testing.T) {
	v, err := StringToUint("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), v)

	_, err = StringToUint("")
	assert.Error(t, err)

	_, err = StringToUint("-1")
	assert.Error(t, err)
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, 3, ParsePage("3"))
	assert.Equal(t, 1, ParsePage(""))
	assert.Equal(t, 1, ParsePage("abc"))
	assert.Equal(t, 999, ParsePage("999"))
	assert.Equal(t, -2, ParsePage("-2"))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/polls/3", SafeNext("/polls/3", "/polls/"))
	assert.Equal(t, "/polls/", SafeNext("", "/polls/"))
	assert.Equal(t, "/polls/", SafeNext("https://evil.example", "/polls/"))
	assert.Equal(t, "/polls/", SafeNext("//evil.example", "/polls/"))
}
