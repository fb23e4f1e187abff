package repositories

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
)

const (
	unknownOS  = "Unknown OS"
	unknownCPU = "Unknown CPU"
)

// HostInfo is a best-effort snapshot; lookups that fail keep the Unknown
// placeholders and a zero core count.
type HostInfo struct {
	OS    string
	CPU   string
	Cores int
}

type SysRepo interface {
	HostInfo(ctx context.Context) HostInfo
}

type gopsutilSysRepo struct{}

func NewSysRepo() SysRepo {
	return gopsutilSysRepo{}
}

func (gopsutilSysRepo) HostInfo(ctx context.Context) HostInfo {
	info := HostInfo{OS: unknownOS, CPU: unknownCPU}

	if h, err := host.InfoWithContext(ctx); err == nil && h != nil {
		name := strings.TrimSpace(strings.Join([]string{h.OS, h.Platform, h.PlatformVersion}, " "))
		if name != "" {
			info.OS = name
		}
	}
	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		if model := strings.TrimSpace(cpus[0].ModelName); model != "" {
			info.CPU = model
		}
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.Cores = n
	}
	return info
}
