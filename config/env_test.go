package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveMissingOsEnvDuration(t *testing.T) {
	actual, err := ResolveOsEnvDuration("missing_duration")
	assert.Nil(t, actual)
	assert.Nil(t, err)

	t.Setenv("empty_duration", "")
	actual, err = ResolveOsEnvDuration("empty_duration")
	assert.Nil(t, actual)
	assert.Nil(t, err)
}

func TestResolveInvalidOsEnvDuration(t *testing.T) {
	t.Setenv("invalid_duration", "deux heures")
	actual, err := ResolveOsEnvDuration("invalid_duration")
	assert.Equal(t, time.Duration(0), *actual)
	assert.NotNil(t, err)
}

func TestResolveValidOsEnvDuration(t *testing.T) {
	t.Setenv("valid_duration_seconds", "8s")
	actual, err := ResolveOsEnvDuration("valid_duration_seconds")
	assert.Equal(t, 8*time.Second, *actual)
	assert.Nil(t, err)
}

func TestResolveOsEnvInt(t *testing.T) {
	got, err := ResolveOsEnvInt("missing_int", 7)
	assert.NoError(t, err)
	assert.Equal(t, 7, got)

	t.Setenv("present_int", "42")
	got, err = ResolveOsEnvInt("present_int", 7)
	assert.NoError(t, err)
	assert.Equal(t, 42, got)
}
