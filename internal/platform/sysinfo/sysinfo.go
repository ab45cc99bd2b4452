package sysinfo

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"xiaozhi-vision-go/internal/platform/logging"
)

// Snapshot 主机运行环境摘要
type Snapshot struct {
	OS          string
	Platform    string
	CPUCores    int
	CPUModel    string
	TotalMemMB  uint64
	UsedPercent float64
}

// Collect 采集一次主机信息，采集失败的字段留空而非报错
func Collect() Snapshot {
	snap := Snapshot{
		OS:       runtime.GOOS,
		CPUCores: runtime.NumCPU(),
	}

	if info, err := host.Info(); err == nil {
		snap.Platform = info.Platform + " " + info.PlatformVersion
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		snap.CPUModel = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.TotalMemMB = vm.Total / 1024 / 1024
		snap.UsedPercent = vm.UsedPercent
	}

	return snap
}

// Log 启动时输出一次主机诊断信息
func Log(logger *logging.Logger) {
	snap := Collect()
	logger.InfoTag("引导", "主机环境: os=%s platform=%s cpu=%s cores=%d mem=%dMB used=%.1f%%",
		snap.OS, snap.Platform, snap.CPUModel, snap.CPUCores, snap.TotalMemMB, snap.UsedPercent)
}
