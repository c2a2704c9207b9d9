package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// SystemCollector periodically samples process-host CPU and memory usage
// into a Registry, so operators get resource gauges alongside shell-level
// counters without standing up a separate host-metrics agent.
type SystemCollector struct {
	reg      *Registry
	interval time.Duration
}

// NewSystemCollector creates a collector that samples every interval.
func NewSystemCollector(reg *Registry, interval time.Duration) *SystemCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &SystemCollector{reg: reg, interval: interval}
}

// Run samples host metrics until ctx is canceled. Intended to run in its
// own goroutine on the cooperative I/O task pool described in spec.md §5.
func (s *SystemCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sampleOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *SystemCollector) sampleOnce() {
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.reg.Gauge("host_cpu_percent_x100").Set(int64(pct[0] * 100))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.reg.Gauge("host_mem_used_bytes").Set(int64(vm.Used))
		s.reg.Gauge("host_mem_total_bytes").Set(int64(vm.Total))
	}
}
