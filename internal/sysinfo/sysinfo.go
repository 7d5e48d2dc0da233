// Package sysinfo reports host capacity: logical CPUs for worker sizing,
// memory for diagnostics, and free disk space for the pre-flight check.
package sysinfo

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// CPUs returns the logical CPU count, falling back to runtime.NumCPU when
// the host cannot be queried.
func CPUs() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// Workers sizes a worker pool: want if positive, otherwise the CPU count,
// never more than jobs and never less than one.
func Workers(want, jobs int) int {
	n := want
	if n <= 0 {
		n = CPUs()
	}
	if jobs > 0 && n > jobs {
		n = jobs
	}
	if n < 1 {
		n = 1
	}
	return n
}

// FreeBytes returns the space available to unprivileged users on the
// filesystem holding path. path need not exist yet; its nearest existing
// ancestor is measured instead.
func FreeBytes(ctx context.Context, path string) (uint64, error) {
	dir, err := nearestExisting(path)
	if err != nil {
		return 0, err
	}
	u, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

func nearestExisting(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p, nil
		}
		p = parent
	}
}

// Host is a point-in-time summary printed by the --check diagnostics.
type Host struct {
	LogicalCPUs  int
	PhysicalCPUs int
	ModelName    string
	MemTotal     uint64
	MemAvailable uint64
}

// Describe gathers a Host summary. Fields the platform cannot report are
// left zero.
func Describe(ctx context.Context) Host {
	h := Host{LogicalCPUs: CPUs()}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		h.PhysicalCPUs = n
	}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		h.ModelName = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		h.MemTotal = vm.Total
		h.MemAvailable = vm.Available
	}
	return h
}
