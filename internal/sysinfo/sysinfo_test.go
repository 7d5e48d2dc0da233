package sysinfo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUs(t *testing.T) {
	assert.GreaterOrEqual(t, CPUs(), 1)
}

func TestWorkers(t *testing.T) {
	tests := []struct {
		name       string
		want, jobs int
		expect     int
	}{
		{"explicit below jobs", 2, 3, 2},
		{"explicit above jobs", 8, 3, 3},
		{"single job", 4, 1, 1},
		{"no jobs keeps one", 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Workers(tt.want, tt.jobs))
		})
	}

	auto := Workers(0, 3)
	assert.GreaterOrEqual(t, auto, 1)
	assert.LessOrEqual(t, auto, 3)
}

func TestNearestExisting(t *testing.T) {
	dir := t.TempDir()
	got, err := nearestExisting(filepath.Join(dir, "a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "a"), 0755))
	got, err = nearestExisting(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a"), got)
}

func TestFreeBytes(t *testing.T) {
	free, err := FreeBytes(context.Background(), filepath.Join(t.TempDir(), "not", "yet"))
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}

func TestDescribe(t *testing.T) {
	h := Describe(context.Background())
	assert.GreaterOrEqual(t, h.LogicalCPUs, 1)
}
