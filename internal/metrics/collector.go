package metrics

import (
	"context"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// SystemMetrics holds one sample of host, process and pipeline gauges
type SystemMetrics struct {
	CPUPercent        float64 // System-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // Can exceed 100% on multi-core
	IOWaitPercent     float64
	ProcessRSSGB      float64
	MemoryUsedGB      float64
	MemoryTotalGB     float64
	MemoryPercent     float64
	DiskReadMBps      float64
	DiskWriteMBps     float64
	Gauges            map[string]int64
	Timestamp         time.Time
}

// GaugeFunc reports the current value of a pipeline gauge. It is called
// from the collector goroutine and must be safe for concurrent use.
type GaugeFunc func() int64

// Collector periodically samples system metrics and registered gauges and logs them
type Collector struct {
	interval      time.Duration
	logger        *zap.Logger
	proc          *process.Process
	lastDiskStats map[string]disk.IOCountersStat
	lastDiskTime  time.Time
	lastCPUTimes  cpu.TimesStat
	hasCPUTimes   bool

	mu          sync.RWMutex
	gauges      map[string]GaugeFunc
	lastMetrics *SystemMetrics
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
		gauges:   make(map[string]GaugeFunc),
	}
}

// Register adds a named gauge to every sample. Registering a name again
// replaces the previous function.
func (c *Collector) Register(name string, fn GaugeFunc) {
	c.mu.Lock()
	c.gauges[name] = fn
	c.mu.Unlock()
}

// Unregister removes a gauge
func (c *Collector) Unregister(name string) {
	c.mu.Lock()
	delete(c.gauges, name)
	c.mu.Unlock()
}

// Start begins periodic metrics collection. Returns when context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// first sample initializes the cpu and disk baselines
	c.collect()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.logSample(c.collect())
		}
	}
}

// GetMetrics returns the last collected metrics
func (c *Collector) GetMetrics() *SystemMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

// Sample collects one snapshot without logging it
func (c *Collector) Sample() *SystemMetrics {
	return c.collect()
}

func (c *Collector) collect() *SystemMetrics {
	metrics := &SystemMetrics{
		Timestamp: time.Now(),
		Gauges:    c.readGauges(),
	}

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		metrics.CPUPercent = cpuPercent[0]
	}

	if c.proc != nil {
		if procCPU, err := c.proc.Percent(0); err == nil {
			metrics.ProcessCPUPercent = procCPU
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			metrics.ProcessRSSGB = float64(info.RSS) / (1024 * 1024 * 1024)
		}
	}

	metrics.IOWaitPercent = c.calculateIOWait()

	if vmem, err := mem.VirtualMemory(); err == nil {
		metrics.MemoryPercent = vmem.UsedPercent
		metrics.MemoryUsedGB = float64(vmem.Used) / (1024 * 1024 * 1024)
		metrics.MemoryTotalGB = float64(vmem.Total) / (1024 * 1024 * 1024)
	}

	metrics.DiskReadMBps, metrics.DiskWriteMBps = c.calculateDiskRates()

	c.mu.Lock()
	c.lastMetrics = metrics
	c.mu.Unlock()
	return metrics
}

func (c *Collector) readGauges() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.gauges) == 0 {
		return nil
	}
	out := make(map[string]int64, len(c.gauges))
	for name, fn := range c.gauges {
		out[name] = fn()
	}
	return out
}

func (c *Collector) logSample(m *SystemMetrics) {
	fields := []zap.Field{
		zap.Float64("sys_cpu", m.CPUPercent),
		zap.Float64("proc_cpu", m.ProcessCPUPercent),
		zap.Float64("iowait", m.IOWaitPercent),
		zap.String("rss", formatGB(m.ProcessRSSGB)),
		zap.Float64("mem_pct", m.MemoryPercent),
		zap.String("disk_r", formatMBps(m.DiskReadMBps)),
		zap.String("disk_w", formatMBps(m.DiskWriteMBps)),
	}
	names := make([]string, 0, len(m.Gauges))
	for name := range m.Gauges {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fields = append(fields, zap.Int64(name, m.Gauges[name]))
	}
	c.logger.Info("System metrics", fields...)
}

// calculateIOWait calculates the I/O wait percentage from CPU times
func (c *Collector) calculateIOWait() float64 {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return 0
	}
	current := times[0]

	if !c.hasCPUTimes {
		c.lastCPUTimes = current
		c.hasCPUTimes = true
		return 0
	}

	last := c.lastCPUTimes
	totalDelta := (current.User - last.User) +
		(current.System - last.System) +
		(current.Idle - last.Idle) +
		(current.Iowait - last.Iowait) +
		(current.Irq - last.Irq) +
		(current.Softirq - last.Softirq) +
		(current.Steal - last.Steal)
	iowaitDelta := current.Iowait - last.Iowait
	c.lastCPUTimes = current

	if totalDelta <= 0 {
		return 0
	}
	return (iowaitDelta / totalDelta) * 100
}

// calculateDiskRates returns read and write MB/s since the previous sample
func (c *Collector) calculateDiskRates() (readMBps, writeMBps float64) {
	counters, err := disk.IOCounters()
	if err != nil {
		return 0, 0
	}
	now := time.Now()
	last, lastTime := c.lastDiskStats, c.lastDiskTime
	c.lastDiskStats, c.lastDiskTime = counters, now

	if last == nil {
		return 0, 0
	}
	elapsed := now.Sub(lastTime).Seconds()
	if elapsed < 0.1 {
		return 0, 0
	}

	var readDelta, writeDelta uint64
	for name, counter := range counters {
		prev, ok := last[name]
		if !ok {
			continue
		}
		// counters can wrap
		if counter.ReadBytes >= prev.ReadBytes {
			readDelta += counter.ReadBytes - prev.ReadBytes
		}
		if counter.WriteBytes >= prev.WriteBytes {
			writeDelta += counter.WriteBytes - prev.WriteBytes
		}
	}
	return float64(readDelta) / elapsed / (1024 * 1024), float64(writeDelta) / elapsed / (1024 * 1024)
}

func formatGB(gb float64) string {
	return formatFloat(gb) + " GB"
}

func formatMBps(mbps float64) string {
	return formatFloat(mbps) + " MB/s"
}

func formatFloat(f float64) string {
	if f < 0.05 {
		return "0.0"
	}
	return strconv.FormatFloat(f, 'f', 1, 64)
}
