package benchmark

import (
	"runtime"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/nvr-ai/go-detect/inference"
)

// PerformanceMetrics summarises one scenario run.
type PerformanceMetrics struct {
	Scenario  Scenario  `json:"scenario"`
	Timestamp time.Time `json:"timestamp"`
	Frames    int       `json:"frames"`
	// WallDuration is the elapsed time of the measured iterations.
	WallDuration time.Duration `json:"wall_duration"`
	// Per-stage means over successful frames.
	PreprocessDuration  time.Duration `json:"preprocess_duration"`
	InferenceDuration   time.Duration `json:"inference_duration"`
	PostProcessDuration time.Duration `json:"post_process_duration"`
	// Latency percentiles of the total per-frame time.
	LatencyP50      time.Duration `json:"latency_p50"`
	LatencyP95      time.Duration `json:"latency_p95"`
	LatencyMax      time.Duration `json:"latency_max"`
	FramesPerSecond float64       `json:"frames_per_second"`
	DetectionCount  int           `json:"detection_count"`
	ErrorRate       float64       `json:"error_rate"`
	MemoryStats     MemoryMetrics `json:"memory_stats"`
}

// MemoryMetrics captures memory usage across a run.
type MemoryMetrics struct {
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	Mallocs         uint64 `json:"mallocs"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

func memoryDelta(before, after *runtime.MemStats) MemoryMetrics {
	return MemoryMetrics{
		TotalAllocBytes: after.TotalAlloc - before.TotalAlloc,
		Mallocs:         after.Mallocs - before.Mallocs,
		NumGC:           after.NumGC - before.NumGC,
		HeapAllocBytes:  after.HeapAlloc,
	}
}

// summarize fills the timing fields from the per-frame results of the measured iterations.
func summarize(m *PerformanceMetrics, results []inference.FrameResult, wall time.Duration) {
	m.Frames = len(results)
	m.WallDuration = wall
	if wall > 0 {
		m.FramesPerSecond = float64(len(results)) / wall.Seconds()
	}

	var pre, inf, post, total stats.Float64Data
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		t := r.Result.Timings
		pre = append(pre, float64(t.Preprocess))
		inf = append(inf, float64(t.Inference))
		post = append(post, float64(t.Postprocess))
		total = append(total, float64(t.Total))
		m.DetectionCount += len(r.Result.Detections)
	}
	if len(results) > 0 {
		m.ErrorRate = float64(failed) / float64(len(results))
	}
	if len(total) == 0 {
		return
	}

	m.PreprocessDuration = duration(pre.Mean())
	m.InferenceDuration = duration(inf.Mean())
	m.PostProcessDuration = duration(post.Mean())
	m.LatencyP50 = duration(total.Percentile(50))
	m.LatencyP95 = duration(total.Percentile(95))
	m.LatencyMax = duration(total.Max())
}

// duration converts a stats result, treating errors as zero.
func duration(v float64, err error) time.Duration {
	if err != nil {
		return 0
	}
	return time.Duration(v)
}
