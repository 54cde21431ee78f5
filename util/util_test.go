package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAndAppend(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "dir", "out.txt")
	require.NoError(t, WriteToFile(file, "a", "b"))
	require.NoError(t, AppendToFile(file, "", "c"))

	bs, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Equal(t, "a\nb\nc\n", string(bs))

	require.NoError(t, WriteToFile(file))
	bs, err = os.ReadFile(file)
	require.NoError(t, err)
	require.Empty(t, bs)
}

func TestSaveJson(t *testing.T) {
	file := filepath.Join(t.TempDir(), "stats", "run.json")
	require.NoError(t, SaveJson(file, map[string]int{"episodes": 3}))
	bs, err := os.ReadFile(file)
	require.NoError(t, err)
	require.JSONEq(t, `{"episodes": 3}`, string(bs))

	require.Error(t, SaveJson(file, make(chan int)))
}

func TestEnsureDir(t *testing.T) {
	require.NoError(t, EnsureDir(""))
	require.NoError(t, EnsureDir("."))

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

type testConfig struct {
	Episodes int     `json:"episodes" mapstructure:"episodes"`
	Alpha    float64 `json:"alpha" mapstructure:"alpha"`
	SavePath string  `json:"save_path" mapstructure:"save_path"`
}

func TestLoadConfigDefaults(t *testing.T) {
	out := &testConfig{Episodes: 10, Alpha: 0.1, SavePath: "results"}
	require.NoError(t, LoadConfig(t.TempDir(), "cab", out))
	require.Equal(t, testConfig{Episodes: 10, Alpha: 0.1, SavePath: "results"}, *out)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteToFile(filepath.Join(dir, "cab.yaml"), "episodes: 50", "alpha: 0.5"))
	t.Setenv("CAB_SAVE_PATH", "elsewhere")

	out := &testConfig{Episodes: 10, Alpha: 0.1, SavePath: "results"}
	require.NoError(t, LoadConfig(dir, "cab", out))
	require.Equal(t, 50, out.Episodes)
	require.Equal(t, 0.5, out.Alpha)
	require.Equal(t, "elsewhere", out.SavePath)
}

func TestLoadConfigInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteToFile(filepath.Join(dir, "cab.yaml"), "episodes: [1, 2"))
	require.Error(t, LoadConfig(dir, "cab", &testConfig{}))
}
