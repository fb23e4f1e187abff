package services

import (
	"context"
	"runtime"
	"time"

	"pharmaguard/core/dtos"
	"pharmaguard/core/repositories"
)

type SysSvc interface {
	FetchInfo(ctx context.Context) dtos.SysInfoRes
}

type sysSvcImpl struct {
	repo      repositories.SysRepo
	started   time.Time
	drugCount int
}

func NewSysSvc(r repositories.SysRepo, drugCount int) SysSvc {
	return &sysSvcImpl{repo: r, started: time.Now(), drugCount: drugCount}
}

func (s *sysSvcImpl) FetchInfo(ctx context.Context) dtos.SysInfoRes {
	host := s.repo.HostInfo(ctx)

	return dtos.SysInfoRes{
		DeviceName:     host.CPU + " (" + host.OS + ")",
		CPUCores:       host.Cores,
		GoVersion:      runtime.Version(),
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		SupportedDrugs: s.drugCount,
	}
}
