package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Empty(t, cfg.Accounts)
	assert.Empty(t, cfg.Targets)
	assert.Empty(t, cfg.DefaultTargets)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
accounts:
  work:
    service: github
    token_env: WORK_TOKEN
  home:
    service: github
    hostname: github.example.com
    token: literal-secret

targets:
  work:
    directory: /tmp/todos/work
    profiles:
      default:
        account: work
        labels: [bug]
        repos: ["myorg/**"]
  home:
    directory: /tmp/todos/home
    profiles:
      default:
        account: home

default_targets: [work]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "WORK_TOKEN", cfg.Accounts["work"].TokenEnv)
	assert.Equal(t, "github.example.com", cfg.Accounts["home"].Hostname)
	assert.Equal(t, []string{"myorg/**"}, cfg.Targets["work"].Profiles["default"].Repos)
	assert.Equal(t, []string{"work"}, cfg.DefaultTargets)
}

func TestLoad_DefaultTargetsFallBackToAll(t *testing.T) {
	path := writeConfig(t, `
accounts:
  work:
    service: github
    token_env: WORK_TOKEN
targets:
  work:
    directory: /tmp/todos/work
    profiles:
      default:
        account: work
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, cfg.DefaultTargets)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "accounts: [not: a: map\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config file")
}

func TestAccount_ResolveToken(t *testing.T) {
	acct := Account{Token: "literal"}
	token, err := acct.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "literal", token)

	t.Setenv("DEVTODO_TEST_TOKEN", "from-env")
	acct = Account{TokenEnv: "DEVTODO_TEST_TOKEN"}
	token, err = acct.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)

	acct = Account{TokenEnv: "DEVTODO_TEST_TOKEN_UNSET"}
	_, err = acct.ResolveToken()
	assert.ErrorContains(t, err, "DEVTODO_TEST_TOKEN_UNSET")

	_, err = Account{}.ResolveToken()
	assert.ErrorContains(t, err, "neither token nor token_env")
}
