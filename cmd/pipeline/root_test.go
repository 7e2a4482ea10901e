package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunStages(t *testing.T) {
	dir := t.TempDir()

	require.Equal(t, exitCodeError, Run([]string{"risk", "--data-dir", dir}))

	require.Equal(t, exitCodeSuccess, Run([]string{"generate", "--data-dir", dir, "--drivers", "40", "--seed", "3"}))
	_, err := os.Stat(filepath.Join(dir, "driver_data.csv"))
	require.NoError(t, err)

	require.Equal(t, exitCodeSuccess, Run([]string{"risk", "--data-dir", dir, "--seed", "3"}))
	require.Equal(t, exitCodeSuccess, Run([]string{"premiums", "--data-dir", dir}))
	_, err = os.Stat(filepath.Join(dir, "premium_calculations.csv"))
	require.NoError(t, err)
}

func TestRunRejectsDriverCount(t *testing.T) {
	for _, n := range []string{"-1", "0", "900000"} {
		dir := t.TempDir()
		require.Equal(t, exitCodeError, Run([]string{"generate", "--data-dir", dir, "--drivers=" + n}), "drivers=%s", n)
		_, err := os.Stat(filepath.Join(dir, "driver_data.csv"))
		require.True(t, os.IsNotExist(err))
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	require.Equal(t, exitCodeError, Run([]string{"bogus"}))
}
