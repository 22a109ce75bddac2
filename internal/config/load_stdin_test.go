package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSingleStdinFileSource_AllowsZeroOrOneStdinSource(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		v := viper.New()
		v.Set("database.dsn_file", "/tmp/dsn")
		v.Set("database.password_file", "/tmp/password")
		v.Set("auth.jwt_secret_file", "/tmp/jwt")

		require.NoError(t, validateSingleStdinFileSource(v))
	})

	t.Run("one", func(t *testing.T) {
		v := viper.New()
		v.Set("database.dsn_file", "")
		v.Set("auth.jwt_secret_file", "@-")

		require.NoError(t, validateSingleStdinFileSource(v))
	})
}

func TestValidateSingleStdinFileSource_RejectsMultipleStdinSources(t *testing.T) {
	v := viper.New()
	v.Set("database.dsn_file", "@-")
	v.Set("database.password_file", "/tmp/password")
	v.Set("auth.jwt_secret_file", " @- ")
	v.Set("server.metrics_token_file", "@-")

	err := validateSingleStdinFileSource(v)
	require.Error(t, err)

	msg := err.Error()
	for _, key := range []string{"database.dsn_file", "auth.jwt_secret_file", "server.metrics_token_file"} {
		assert.True(t, strings.Contains(msg, key), "error message missing %s: %s", key, msg)
	}
	assert.NotContains(t, msg, "database.password_file")
}
