package processor

import (
	"runtime"
	"time"
)

// Profile is the measured cost of one transform.
type Profile struct {
	WallTime time.Duration
	CPUTime  time.Duration
	// MemoryUsage is the number of heap bytes allocated while the transform ran.
	MemoryUsage int64
}

func measure(fn func() error) (Profile, error) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	cpuStart := cpuTime()
	start := time.Now()

	err := fn()

	wall := time.Since(start)
	cpu := cpuTime() - cpuStart
	runtime.ReadMemStats(&after)

	return Profile{
		WallTime:    wall,
		CPUTime:     cpu,
		MemoryUsage: int64(after.TotalAlloc - before.TotalAlloc),
	}, err
}
