package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdpower/ccledger/internal/calculator"
	"github.com/sdpower/ccledger/internal/types"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	lines := []string{
		`{"timestamp":"2024-01-01T10:00:00Z","message":{"usage":{"input_tokens":1000,"output_tokens":2000}},"costUSD":0.15}`,
		`{"timestamp":"2024-01-01T11:00:00Z","message":{"usage":{"input_tokens":500,"output_tokens":500}},"costUSD":0.05}`,
	}
	path := filepath.Join(root, "-Users-alice-src-ledger", "s1.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return root
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestDailyJSON(t *testing.T) {
	data := writeFixture(t)
	out, stderr, err := execute(t, "daily", "--data-path", data, "--no-cache", "-f", "json", "-z", "UTC")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	var report dailyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Daily, 1)
	assert.Equal(t, "2024-01-01", report.Daily[0].Date)
	assert.Equal(t, int64(4000), report.Totals.TotalTokens)
	assert.InDelta(t, 0.2, report.Totals.TotalCost, 1e-9)
	assert.Equal(t, 1, report.Diagnostics.FilesScanned)
}

func TestDailyTableOutput(t *testing.T) {
	data := writeFixture(t)
	out, _, err := execute(t, "daily", "--data-path", data, "--no-cache", "-z", "UTC")
	require.NoError(t, err)
	assert.Contains(t, out, "4,000")
	assert.Contains(t, out, "$0.20")
	assert.NotContains(t, out, "\033[")
}

func TestDailySinceFilter(t *testing.T) {
	data := writeFixture(t)
	out, _, err := execute(t, "daily", "--data-path", data, "--no-cache", "-f", "json", "-z", "UTC", "--since", "20240102")
	require.NoError(t, err)

	var report dailyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Empty(t, report.Daily)
	assert.Zero(t, report.Totals.TotalTokens)
}

func TestMonthlyAndSessionJSON(t *testing.T) {
	data := writeFixture(t)

	out, _, err := execute(t, "monthly", "--data-path", data, "--no-cache", "-f", "json", "-z", "UTC")
	require.NoError(t, err)
	var monthly monthlyReport
	require.NoError(t, json.Unmarshal([]byte(out), &monthly))
	require.Len(t, monthly.Monthly, 1)
	assert.Equal(t, "2024-01", monthly.Monthly[0].Key())
	assert.Equal(t, 1, monthly.Monthly[0].ActiveDays)

	out, _, err = execute(t, "session", "--data-path", data, "--no-cache", "-f", "json")
	require.NoError(t, err)
	var session sessionReport
	require.NoError(t, json.Unmarshal([]byte(out), &session))
	require.Len(t, session.Sessions, 1)
	assert.Equal(t, int64(4000), session.Sessions[0].TotalTokens)
}

func TestBlocksJSON(t *testing.T) {
	data := writeFixture(t)
	out, _, err := execute(t, "blocks", "--data-path", data, "--no-cache", "-f", "json")
	require.NoError(t, err)

	var report blocksReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Blocks.Blocks, 1)
	block := report.Blocks.Blocks[0]
	assert.Equal(t, 2, block.Index)
	assert.Equal(t, int64(4000), block.TotalTokens)
	assert.Equal(t, 1, block.SessionCount)
	assert.Nil(t, report.Active)
}

func TestBlocksTokenLimit(t *testing.T) {
	data := writeFixture(t)
	out, _, err := execute(t, "blocks", "--data-path", data, "--no-cache", "-t", "8000")
	require.NoError(t, err)
	assert.Contains(t, out, "50.0%")

	_, _, err = execute(t, "blocks", "--data-path", data, "--no-cache", "-t", "lots")
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestParseBlockTokenLimit(t *testing.T) {
	n, err := parseBlockTokenLimit("", calculator.BlockReport{})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = parseBlockTokenLimit("MAX", calculator.BlockReport{})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = parseBlockTokenLimit("1200", calculator.BlockReport{})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), n)

	_, err = parseBlockTokenLimit("-1", calculator.BlockReport{})
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestBurnRateJSON(t *testing.T) {
	data := writeFixture(t)
	out, _, err := execute(t, "burnrate", "--data-path", data, "--no-cache", "-f", "json", "--cost-limit", "50")
	require.NoError(t, err)

	var report burnRateReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Snapshots, 2)
	for _, s := range report.Snapshots {
		assert.True(t, s.NoData)
		assert.Equal(t, types.LimitNotConfigured, s.TokenLimit.Status)
	}
}

func TestInvalidFlagValues(t *testing.T) {
	data := writeFixture(t)

	_, _, err := execute(t, "burnrate", "--data-path", data, "--no-cache", "--active-hours", "30")
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, _, err = execute(t, "daily", "--data-path", data, "--no-cache", "-f", "csv")
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, _, err = execute(t, "daily", "--data-path", data, "--no-cache", "-z", "Mars/Olympus")
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestMissingDataPath(t *testing.T) {
	_, _, err := execute(t, "daily", "--data-path", filepath.Join(t.TempDir(), "missing"), "--no-cache")
	require.ErrorIs(t, err, types.ErrFatalConfig)
	assert.Contains(t, err.Error(), "failed to load usage data")
}

func TestConfigFileOverriddenByFlags(t *testing.T) {
	data := writeFixture(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("data_path: /nonexistent\ntimezone: UTC\n"), 0o600))

	_, _, err := execute(t, "daily", "--config", cfg, "--no-cache")
	require.ErrorIs(t, err, types.ErrFatalConfig)

	_, _, err = execute(t, "daily", "--config", cfg, "--data-path", data, "--no-cache")
	require.NoError(t, err)
}

func TestMonitorOnce(t *testing.T) {
	data := writeFixture(t)
	out, _, err := execute(t, "monitor", "--data-path", data, "--no-cache", "--continuous=false")
	require.NoError(t, err)
	assert.Contains(t, out, "LIVE TOKEN USAGE MONITOR")
	assert.Contains(t, out, "No active billing block")
}

func TestMonitorContinuousNeedsTerminal(t *testing.T) {
	data := writeFixture(t)
	_, _, err := execute(t, "monitor", "--data-path", data, "--no-cache")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interactive terminal")
}

func TestPricingCacheLifecycle(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "pricing_cache.json")

	out, _, err := execute(t, "pricing", "status", "--cache-path", cache, "-f", "json")
	require.NoError(t, err)
	var status pricingStatusReport
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.False(t, status.Cache.Exists)
	assert.Equal(t, "builtin", string(status.ActiveSource))

	out, _, err = execute(t, "pricing", "refresh", "--cache-path", cache)
	require.NoError(t, err)
	assert.Contains(t, out, "Pricing cache refreshed from builtin")
	assert.FileExists(t, cache)

	out, _, err = execute(t, "pricing", "status", "--cache-path", cache, "-f", "json")
	require.NoError(t, err)
	status = pricingStatusReport{}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Cache.Valid)
	assert.Positive(t, status.Cache.Entries)
	assert.Equal(t, "cache", string(status.ActiveSource))

	out, _, err = execute(t, "pricing", "clear", "--cache-path", cache)
	require.NoError(t, err)
	assert.Contains(t, out, "Pricing cache cleared")
	assert.NoFileExists(t, cache)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccledger", "config.yaml")

	out, _, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Config written to")
	assert.FileExists(t, path)

	_, _, err = execute(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)

	out, _, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "workers: 10")
	assert.Contains(t, out, "active_hours_per_day: 9")
}

func TestCacheTTLFromConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("cache_ttl: never\n"), 0o600))

	_, _, err := execute(t, "pricing", "status", "--config", cfg, "--cache-path", filepath.Join(t.TempDir(), "c.json"))
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}
