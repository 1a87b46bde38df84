package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, ParseDuration("90s", time.Minute))
	assert.Equal(t, 45*time.Second, ParseDuration("45", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
}

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool("yes", false))
	assert.True(t, ParseBool(" ON ", false))
	assert.False(t, ParseBool("0", true))
	assert.True(t, ParseBool("maybe", true))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"BEACH", "HOSPITAL", "park"}, SplitList("BEACH, HOSPITAL;\tpark,,"))
}

func TestGetters(t *testing.T) {
	t.Setenv("POI_TEST_INT", "42")
	t.Setenv("POI_TEST_FLOAT", "1.5")
	t.Setenv("POI_TEST_BAD", "x")
	assert.Equal(t, 42, GetInt("POI_TEST_INT", 1))
	assert.Equal(t, 1, GetInt("POI_TEST_BAD", 1))
	assert.Equal(t, 1.5, GetFloat("POI_TEST_FLOAT", 0))
	assert.Equal(t, "fallback", Get("POI_TEST_MISSING", "fallback"))
}
