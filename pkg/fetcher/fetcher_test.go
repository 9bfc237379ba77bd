package fetcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshopcast/pkg/config"
	errs "workshopcast/pkg/errors"
	"workshopcast/pkg/logger"
)

type run struct {
	lines []string
	code  int
}

// scriptedRunner replays one scripted run per invocation and records the
// arguments it was called with.
type scriptedRunner struct {
	runs  []run
	calls [][]string
	// onCall runs before output is replayed, with the 1-based call number
	onCall func(n int)
}

func (r *scriptedRunner) Run(ctx context.Context, dir, name string, args []string, onLine func(string)) (int, error) {
	r.calls = append(r.calls, append([]string(nil), args...))
	n := len(r.calls)
	if r.onCall != nil {
		r.onCall(n)
	}
	if n > len(r.runs) {
		return 0, errors.New("unexpected invocation")
	}
	for _, line := range r.runs[n-1].lines {
		onLine(line)
	}
	return r.runs[n-1].code, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Paths.ToolDir = t.TempDir()
	cfg.Tools.SteamCmd = filepath.Join(cfg.Paths.ToolDir, "steamcmd")
	require.NoError(t, os.WriteFile(cfg.Tools.SteamCmd, []byte("#!/bin/sh\n"), 0755))
	return cfg
}

func hasValidate(args []string) bool {
	return slices.Contains(args, "validate")
}

const (
	timeoutLine = "ERROR! Timeout downloading item 2893712123"
	successLine = "Success. Downloaded item 2893712123 to \"steamapps/workshop/content/311210/2893712123\""
	failureLine = "ERROR! Download item 2893712123 failed (Failure)."
)

func TestClassify(t *testing.T) {
	f := New(config.DefaultConfig(), nil, nil, nil)

	assert.Equal(t, OutcomeTimeout, f.Classify(timeoutLine))
	assert.Equal(t, OutcomeFailure, f.Classify(failureLine))
	assert.Equal(t, OutcomeSuccess, f.Classify(successLine))
	assert.Equal(t, OutcomeNone, f.Classify("Loading Steam API...OK"))
}

func TestArgs(t *testing.T) {
	f := New(config.DefaultConfig(), nil, nil, nil)

	assert.Equal(t,
		[]string{"+login", "anonymous", "+workshop_download_item", "311210", "2893712123", "+quit"},
		f.Args("2893712123", false))
	assert.Equal(t,
		[]string{"+login", "anonymous", "+workshop_download_item", "311210", "2893712123", "validate", "+quit"},
		f.Args("2893712123", true))
}

func TestFetchTwoTimeoutsThenSuccess(t *testing.T) {
	cfg := testConfig(t)
	marker := filepath.Join(cfg.Paths.ToolDir, "appcache")
	require.NoError(t, os.Mkdir(marker, 0755))

	runner := &scriptedRunner{runs: []run{
		{lines: []string{"Loading...", timeoutLine}},
		{lines: []string{timeoutLine}},
		{lines: []string{successLine}},
	}}
	var out bytes.Buffer
	f := New(cfg, runner, logger.NewTestLogger(), &out)

	res, err := f.Fetch(context.Background(), "2893712123")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2, res.Timeouts)
	assert.Equal(t, 0, res.Resets, "two timeouts stay below the reset threshold")
	require.Len(t, runner.calls, 3)
	assert.False(t, hasValidate(runner.calls[0]))
	assert.True(t, hasValidate(runner.calls[1]))
	assert.True(t, hasValidate(runner.calls[2]))
	assert.DirExists(t, marker)
	assert.Contains(t, out.String(), "Loading...")
}

func TestFetchValidateOnlyAfterTimeoutRun(t *testing.T) {
	cfg := testConfig(t)
	runner := &scriptedRunner{runs: []run{
		{lines: []string{timeoutLine}},
		{lines: []string{"nothing useful"}},
		{lines: []string{successLine}},
	}}
	f := New(cfg, runner, nil, nil)

	_, err := f.Fetch(context.Background(), "2893712123")
	require.NoError(t, err)

	require.Len(t, runner.calls, 3)
	assert.True(t, hasValidate(runner.calls[1]))
	assert.False(t, hasValidate(runner.calls[2]))
}

func TestFetchResetsAfterThreshold(t *testing.T) {
	cfg := testConfig(t)
	stale := filepath.Join(cfg.Paths.ToolDir, "steamapps")
	keep := filepath.Join(cfg.Paths.ToolDir, "telegramcache")

	runner := &scriptedRunner{
		runs: []run{
			{lines: []string{timeoutLine}},
			{lines: []string{timeoutLine}},
			{lines: []string{timeoutLine}},
			{lines: []string{successLine}},
		},
		onCall: func(n int) {
			// stale state reappears before every run
			require.NoError(t, os.MkdirAll(stale, 0755))
		},
	}
	require.NoError(t, os.Mkdir(keep, 0755))

	f := New(cfg, runner, nil, nil)
	res, err := f.Fetch(context.Background(), "2893712123")
	require.NoError(t, err)

	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 1, res.Resets)
	assert.DirExists(t, keep)
	assert.FileExists(t, cfg.Tools.SteamCmd)
}

func TestFetchFailureTriggersReset(t *testing.T) {
	cfg := testConfig(t)
	stale := filepath.Join(cfg.Paths.ToolDir, "depotcache")
	require.NoError(t, os.Mkdir(stale, 0755))

	runner := &scriptedRunner{runs: []run{
		{lines: []string{failureLine}},
		{lines: []string{successLine}},
	}}
	f := New(cfg, runner, nil, nil)

	res, err := f.Fetch(context.Background(), "2893712123")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Resets)
	assert.NoDirExists(t, stale)
	assert.False(t, hasValidate(runner.calls[1]))
}

func TestFetchExitCodeCheckedOnlyOnSuccess(t *testing.T) {
	cfg := testConfig(t)

	runner := &scriptedRunner{runs: []run{
		{lines: []string{timeoutLine}, code: 8},
		{lines: []string{successLine}, code: 0},
	}}
	_, err := New(cfg, runner, nil, nil).Fetch(context.Background(), "2893712123")
	require.NoError(t, err)

	runner = &scriptedRunner{runs: []run{
		{lines: []string{successLine}, code: 6},
	}}
	_, err = New(cfg, runner, nil, nil).Fetch(context.Background(), "2893712123")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeTool))
}

func TestFetchMaxAttempts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.MaxAttempts = 2

	runner := &scriptedRunner{runs: []run{
		{lines: []string{"no marker"}},
		{lines: []string{"no marker"}},
	}}
	res, err := New(cfg, runner, nil, nil).Fetch(context.Background(), "2893712123")

	assert.ErrorIs(t, err, ErrMaxAttempts)
	assert.Equal(t, 2, res.Attempts)
}

func TestFetchCancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	runner := &scriptedRunner{
		runs:   []run{{lines: []string{"no marker"}}, {}},
		onCall: func(n int) { cancel() },
	}
	_, err := New(cfg, runner, nil, nil).Fetch(ctx, "2893712123")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, runner.calls, 1)
}

func TestResetSkippedWithoutBinary(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.ToolDir = t.TempDir()
	cfg.Tools.SteamCmd = filepath.Join(cfg.Paths.ToolDir, "steamcmd")
	other := filepath.Join(cfg.Paths.ToolDir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))

	reset, err := New(cfg, nil, nil, nil).Reset()
	require.NoError(t, err)
	assert.False(t, reset)
	assert.FileExists(t, other)
}

func TestResetHonoursAllowList(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.ResetAllowList = []string{"keep.txt"}

	keep := filepath.Join(cfg.Paths.ToolDir, "keep.txt")
	drop := filepath.Join(cfg.Paths.ToolDir, "logs", "stderr.txt")
	require.NoError(t, os.WriteFile(keep, nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(drop), 0755))
	require.NoError(t, os.WriteFile(drop, nil, 0644))

	reset, err := New(cfg, nil, nil, nil).Reset()
	require.NoError(t, err)
	assert.True(t, reset)
	assert.FileExists(t, keep)
	assert.FileExists(t, cfg.Tools.SteamCmd)
	assert.NoDirExists(t, filepath.Dir(drop))
}

func TestResetKeepsCacheRootAndLogFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.ResetAllowList = nil
	cfg.Paths.CacheRoot = filepath.Join(cfg.Paths.ToolDir, "cache")
	cfg.Logging.File = filepath.Join(cfg.Paths.ToolDir, "logs", "workshopcast.log")

	sidecar := filepath.Join(cfg.Paths.CacheRoot, "1234567890", "1234567890.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(sidecar), 0755))
	require.NoError(t, os.WriteFile(sidecar, []byte("{}"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755))
	require.NoError(t, os.WriteFile(cfg.Logging.File, nil, 0644))
	drop := filepath.Join(cfg.Paths.ToolDir, "package", "steam_cmd_linux")
	require.NoError(t, os.MkdirAll(filepath.Dir(drop), 0755))
	require.NoError(t, os.WriteFile(drop, nil, 0644))

	reset, err := New(cfg, nil, nil, nil).Reset()
	require.NoError(t, err)
	assert.True(t, reset)
	assert.FileExists(t, sidecar)
	assert.FileExists(t, cfg.Logging.File)
	assert.NoDirExists(t, filepath.Dir(drop))
}

func TestResetSkippedWhenCacheIsToolDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.CacheRoot = cfg.Paths.ToolDir

	sidecar := filepath.Join(cfg.Paths.ToolDir, "1234567890", "1234567890.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(sidecar), 0755))
	require.NoError(t, os.WriteFile(sidecar, []byte("{}"), 0644))

	reset, err := New(cfg, nil, nil, nil).Reset()
	require.NoError(t, err)
	assert.False(t, reset)
	assert.FileExists(t, sidecar)
}
