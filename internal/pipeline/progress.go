package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// passNames describes what each shard pass reads
var passNames = map[int32]string{
	1: "nodes+relations",
	2: "ways",
}

// ProgressTracker estimates how far one shard is through one pass. A shard
// reads its input twice, so a new tracker is started when the pass changes.
type ProgressTracker struct {
	input      string
	pass       int32
	totalBytes int64
	startTime  time.Time
}

// NewProgressTracker starts tracking pass over an input of totalBytes
func NewProgressTracker(input string, pass int32, totalBytes int64) *ProgressTracker {
	return &ProgressTracker{
		input:      input,
		pass:       pass,
		totalBytes: totalBytes,
		startTime:  time.Now(),
	}
}

// Pass returns the pass being tracked
func (p *ProgressTracker) Pass() int32 {
	return p.pass
}

// Progress is a snapshot of one shard pass
type Progress struct {
	Input      string
	Pass       int32
	Objects    int64
	Scanned    int64
	Total      int64
	Percentage float64
	Elapsed    time.Duration
	ETA        time.Duration
	Throughput float64 // objects per second
}

// Calculate returns progress from the objects handed to the resolver and the
// bytes the reader has consumed. Percentage and ETA follow bytes since
// object counts differ between passes.
func (p *ProgressTracker) Calculate(objects, scanned int64) Progress {
	elapsed := time.Since(p.startTime)

	var percentage float64
	var eta time.Duration
	if p.totalBytes > 0 && scanned > 0 {
		percentage = min(float64(scanned)/float64(p.totalBytes)*100, 100)
		if percentage < 100 {
			bytesPerSecond := float64(scanned) / elapsed.Seconds()
			if bytesPerSecond > 0 {
				eta = time.Duration(float64(p.totalBytes-scanned)/bytesPerSecond) * time.Second
			}
		}
	}

	var throughput float64
	if elapsed.Seconds() > 0 {
		throughput = float64(objects) / elapsed.Seconds()
	}

	return Progress{
		Input:      p.input,
		Pass:       p.pass,
		Objects:    objects,
		Scanned:    scanned,
		Total:      p.totalBytes,
		Percentage: percentage,
		Elapsed:    elapsed.Round(time.Second),
		ETA:        eta.Round(time.Second),
		Throughput: throughput,
	}
}

// Fields renders the snapshot for a progress log line
func (p Progress) Fields() []zap.Field {
	return []zap.Field{
		zap.String("input", p.Input),
		zap.String("pass", fmt.Sprintf("%d (%s)", p.Pass, passNames[p.Pass])),
		zap.String("progress", fmt.Sprintf("%.1f%%", p.Percentage)),
		zap.String("read", FormatBytes(p.Scanned)),
		zap.String("rate", FormatThroughput(p.Throughput)),
		zap.String("eta", FormatETA(p.ETA)),
	}
}

// tick calls fn every interval until ctx is done. The coordinator uses it
// to poll running shards.
func tick(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// FormatETA formats a remaining duration, or "calculating..." before the
// first bytes of a pass are scanned
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "calculating..."
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatThroughput formats objects per second
func FormatThroughput(itemsPerSec float64) string {
	if itemsPerSec >= 1_000_000 {
		return fmt.Sprintf("%.1fM/s", itemsPerSec/1_000_000)
	}
	if itemsPerSec >= 1_000 {
		return fmt.Sprintf("%.1fK/s", itemsPerSec/1_000)
	}
	return fmt.Sprintf("%.0f/s", itemsPerSec)
}

// FormatBytes formats byte counts for scanned input and resolver memory estimates
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
