// Package sysinfo samples host CPU, memory and disk usage for the resource
// monitor. Any probe that fails is left out of the result.
package sysinfo

import (
	"context"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/kamiai/kamiai/internal/logger"
)

const (
	gib            = 1 << 30
	cpuSampleDelay = 200 * time.Millisecond
)

// Details carries absolute sizes in whole GiB.
type Details struct {
	TotalMem  *int64  `json:"totalMem,omitempty"`
	UsedMem   *int64  `json:"usedMem,omitempty"`
	TotalDisk *int64  `json:"totalDisk,omitempty"`
	UsedDisk  *int64  `json:"usedDisk,omitempty"`
	Mount     string  `json:"mount,omitempty"`
	Hostname  string  `json:"hostname,omitempty"`
	Platform  string  `json:"platform,omitempty"`
	UptimeSec *uint64 `json:"uptimeSec,omitempty"`
}

// Metrics are rounded usage percentages.
type Metrics struct {
	CPU     *int    `json:"cpu,omitempty"`
	Memory  *int    `json:"memory,omitempty"`
	Disk    *int    `json:"disk,omitempty"`
	Details Details `json:"details"`
}

// probes are swapped in tests.
type probes struct {
	cpuPercent func(ctx context.Context) (float64, error)
	memory     func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	partitions func(ctx context.Context) ([]disk.PartitionStat, error)
	usage      func(ctx context.Context, path string) (*disk.UsageStat, error)
	host       func(ctx context.Context) (*host.InfoStat, error)
}

// Collector samples host metrics.
type Collector struct {
	p   probes
	log logger.Logger
}

// NewCollector returns a collector backed by gopsutil.
func NewCollector() *Collector {
	return &Collector{
		p: probes{
			cpuPercent: func(ctx context.Context) (float64, error) {
				v, err := cpu.PercentWithContext(ctx, cpuSampleDelay, false)
				if err != nil || len(v) == 0 {
					return 0, err
				}
				return v[0], nil
			},
			memory: mem.VirtualMemoryWithContext,
			partitions: func(ctx context.Context) ([]disk.PartitionStat, error) {
				return disk.PartitionsWithContext(ctx, false)
			},
			usage: disk.UsageWithContext,
			host:  host.InfoWithContext,
		},
		log: logger.Global().Module("sysinfo"),
	}
}

// Collect samples every probe. It never fails; unavailable values are nil.
func (c *Collector) Collect(ctx context.Context) Metrics {
	var m Metrics

	if v, err := c.p.cpuPercent(ctx); err == nil {
		m.CPU = ptr(round(v))
	} else {
		c.log.Debug("cpu usage unavailable", logger.Error(err))
	}

	if vm, err := c.p.memory(ctx); err == nil && vm.Total > 0 {
		used := vm.Active
		if used == 0 {
			used = vm.Used
		}
		m.Memory = ptr(round(float64(used) / float64(vm.Total) * 100))
		m.Details.TotalMem = ptr(int64(round(float64(vm.Total) / gib)))
		m.Details.UsedMem = ptr(int64(round(float64(used) / gib)))
	} else if err != nil {
		c.log.Debug("memory usage unavailable", logger.Error(err))
	}

	if u, err := c.mainDisk(ctx); err == nil {
		m.Disk = ptr(round(u.UsedPercent))
		m.Details.TotalDisk = ptr(int64(round(float64(u.Total) / gib)))
		m.Details.UsedDisk = ptr(int64(round(float64(u.Used) / gib)))
		m.Details.Mount = u.Path
	} else {
		c.log.Debug("disk usage unavailable", logger.Error(err))
	}

	if h, err := c.p.host(ctx); err == nil {
		m.Details.Hostname = h.Hostname
		m.Details.Platform = h.Platform
		if h.PlatformVersion != "" {
			m.Details.Platform += " " + h.PlatformVersion
		}
		m.Details.UptimeSec = ptr(h.Uptime)
	} else {
		c.log.Debug("host info unavailable", logger.Error(err))
	}

	return m
}

// mainDisk picks "/" or "/home", otherwise the first partition.
func (c *Collector) mainDisk(ctx context.Context) (*disk.UsageStat, error) {
	mount := "/"
	if parts, err := c.p.partitions(ctx); err == nil && len(parts) > 0 {
		mount = parts[0].Mountpoint
		for _, p := range parts {
			if p.Mountpoint == "/" || p.Mountpoint == "/home" {
				mount = p.Mountpoint
				break
			}
		}
	}
	return c.p.usage(ctx, mount)
}

func round(v float64) int { return int(math.Round(v)) }

func ptr[T any](v T) *T { return &v }
