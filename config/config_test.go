package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/oraclesync/config"
	"github.com/alejandrodnm/oraclesync/internal/domain"
)

const minimalYAML = `
network: testnet
networks:
  testnet:
    factory_address: EQfactory
    veto_master_address: EQmaster
    staking_address: EQstaking
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	net := cfg.Network()
	assert.Equal(t, domain.NetworkTestnet, net.Network)
	assert.Equal(t, "https://testnet.toncenter.com/api/v2", net.APIBase)
	assert.Equal(t, "EQfactory", net.FactoryAddress)
	assert.False(t, net.HasAPIKey())

	assert.Equal(t, time.Minute, cfg.ReconcileInterval())
	assert.Equal(t, 3, cfg.Reconciler.Public.Size)
	assert.Equal(t, 1500*time.Millisecond, cfg.Reconciler.Public.Delay())
	assert.Equal(t, 10, cfg.Reconciler.Keyed.Size)
	assert.Equal(t, 4, cfg.Reconciler.Retry.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.CallTimeout())
	assert.Equal(t, 2*time.Minute, cfg.OptimisticTTL())
	assert.Equal(t, "oraclesync.db", cfg.Cache.DSN)
	assert.Equal(t, "sqlite", cfg.Votes.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, domain.DefaultProtocol(), cfg.ProtocolValues())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ORACLE_API_KEY", "secret")
	t.Setenv("ORACLE_CACHE_DSN", ":memory:")
	t.Setenv("ORACLE_REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.True(t, cfg.Network().HasAPIKey())
	assert.Equal(t, ":memory:", cfg.Cache.DSN)
	assert.Equal(t, "redis", cfg.Votes.Backend)
	assert.Equal(t, "localhost:6379", cfg.Votes.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ProtocolOverrides(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalYAML+`
protocol:
  minimum_bond: 500
  challenge_period_seconds: 60
`))
	require.NoError(t, err)

	p := cfg.ProtocolValues()
	assert.Equal(t, int64(500), p.MinimumBond)
	assert.Equal(t, time.Minute, p.ChallengePeriod)
	assert.Equal(t, domain.DefaultProtocol().VotePeriod, p.VotePeriod)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown network", "network: devnet\nnetworks:\n  devnet:\n    factory_address: EQf\n"},
		{"missing section", "network: mainnet\n"},
		{"missing factory", "network: testnet\nnetworks:\n  testnet:\n    staking_address: EQs\n"},
		{"unknown votes backend", minimalYAML + "votes:\n  backend: etcd\n"},
		{"bad log level", minimalYAML + "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
