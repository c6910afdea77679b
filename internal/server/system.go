package server

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var processStart = time.Now()

// handleSystem reports host and process health for the operator dashboard.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"goroutines": runtime.NumGoroutine(),
		"uptimeSec":  int(time.Since(processStart).Seconds()),
		"wsClients":  s.hub.Clients(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		resp["cpuPct"] = round3(percents[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp["memUsedPct"] = round3(vm.UsedPercent)
	}
	if du, err := disk.Usage(s.deps.DataDir); err == nil {
		resp["dataDiskUsedPct"] = round3(du.UsedPercent)
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfo(); err == nil && rss != nil {
			resp["rssBytes"] = rss.RSS
		}
		if pc, err := proc.CPUPercent(); err == nil {
			resp["processCpuPct"] = round3(pc)
		}
	}
	writeJSON(w, resp)
}
