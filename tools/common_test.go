package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DUR", "15s")
	assert.Equal(t, 15*time.Second, GetEnvDuration("X_DUR", time.Second))

	t.Setenv("X_DUR", "250")
	assert.Equal(t, 250*time.Millisecond, GetEnvDuration("X_DUR", time.Second))

	t.Setenv("X_DUR", "nope")
	assert.Equal(t, time.Second, GetEnvDuration("X_DUR", time.Second))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("X_LIST", " a, ,b ,")
	assert.Equal(t, []string{"a", "b"}, GetEnvList("X_LIST", nil))

	t.Setenv("X_LIST", " , ")
	assert.Equal(t, []string{"d"}, GetEnvList("X_LIST", []string{"d"}))
}

func TestGetEnvScalars(t *testing.T) {
	t.Setenv("X_INT", "7")
	t.Setenv("X_BOOL", "yes")
	assert.Equal(t, 7, GetEnvInt("X_INT", 1))
	assert.True(t, GetEnvBool("X_BOOL", false))
	assert.Equal(t, "def", GetEnv("X_UNSET_FOR_TEST", "def"))
}

func TestParseHdr(t *testing.T) {
	assert.Nil(t, ParseHdr(""))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, ParseHdr("a=1, b=2,bad"))
}
