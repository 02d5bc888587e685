package accesslog

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Clock reads wall-clock time. Elapsed time is computed from the monotonic
// reading carried by time.Time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock is the Clock backed by time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// CPUClock reads the CPU time consumed so far.
type CPUClock interface {
	CPUTime() (time.Duration, error)
}

// CPUClockFunc adapts a function to CPUClock.
type CPUClockFunc func() (time.Duration, error)

// CPUTime calls f.
func (f CPUClockFunc) CPUTime() (time.Duration, error) {
	return f()
}

type processCPU struct {
	pid int32
}

// ProcessCPUClock returns a CPUClock reporting user plus system time of the
// current process. Goroutines migrate between threads, so per-thread time
// would not follow a request.
func ProcessCPUClock() CPUClock {
	return processCPU{pid: int32(os.Getpid())}
}

func (p processCPU) CPUTime() (time.Duration, error) {
	times, err := (&process.Process{Pid: p.pid}).Times()
	if err != nil {
		return 0, fmt.Errorf("read cpu times of pid %d: %w", p.pid, err)
	}
	return time.Duration((times.User + times.System) * float64(time.Second)), nil
}
