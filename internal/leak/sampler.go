// Package leak runs long fixed-minibatch training loops while sampling
// resident memory, and applies a two-threshold heuristic to the collected
// trace to flag potential leaks.
package leak

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// Sampler reads the resident set size of the current process.
type Sampler struct {
	proc *process.Process
}

// NewSampler attaches to the current process.
func NewSampler() (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attach to process %d: %w", os.Getpid(), err)
	}
	return &Sampler{proc: proc}, nil
}

// RSS returns the non-swapped physical memory the process is using, in bytes.
func (s *Sampler) RSS() (uint64, error) {
	mi, err := s.proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("memory info: %w", err)
	}
	return mi.RSS, nil
}
