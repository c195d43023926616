package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/composer/internal/config"
)

const validYAML = `
cache:
  db_path: .composition.db
  llm_ttl: 720h
render:
  max_concurrency: 8
  image_quality: 85
providers:
  default: bedrock
  providers:
    bedrock:
      kind: bedrock
      model_id: anthropic.claude-3-haiku-20240307-v1:0
      region: us-east-1
loader:
  gitignore_gate: true
  remote_timeout: 30s
`

func TestLoadFromBytesValidConfig(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)
	assert.Equal(t, ".composition.db", cfg.Cache.DBPath)
	assert.Equal(t, "bedrock", cfg.Providers.Default)
	assert.True(t, cfg.Loader.GitignoreGate)
}

func TestLoadFromBytesMissingDBPathErrors(t *testing.T) {
	_, err := config.LoadFromBytes([]byte(`
render:
  image_quality: 85
providers:
  default: bedrock
  providers:
    bedrock: { kind: bedrock }
loader:
  remote_timeout: 30s
`))
	assert.Error(t, err)
}

func TestLoadFromBytesUnknownDefaultProviderErrors(t *testing.T) {
	_, err := config.LoadFromBytes([]byte(`
cache:
  db_path: x.db
  llm_ttl: 1h
render:
  image_quality: 85
providers:
  default: missing
  providers:
    bedrock: { kind: bedrock }
loader:
  remote_timeout: 30s
`))
	assert.Error(t, err)
}

func TestExpandEnvWithDefaultsUsesEnvOverDefault(t *testing.T) {
	os.Setenv("COMPOSER_TEST_VAR", "from-env")
	defer os.Unsetenv("COMPOSER_TEST_VAR")
	out := config.ExpandEnvWithDefaults("${COMPOSER_TEST_VAR:-fallback}")
	assert.Equal(t, "from-env", out)
}

func TestExpandEnvWithDefaultsFallsBackWhenUnset(t *testing.T) {
	os.Unsetenv("COMPOSER_TEST_VAR_UNSET")
	out := config.ExpandEnvWithDefaults("${COMPOSER_TEST_VAR_UNSET:-fallback}")
	assert.Equal(t, "fallback", out)
}
