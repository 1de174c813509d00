//go:build linux

package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// cpuWindow is how long Sample waits between the two /proc/stat reads.
const cpuWindow = 100 * time.Millisecond

// LinuxSampler reads /proc and /sys under Root ("/" when empty).
type LinuxSampler struct {
	Root   string
	Window time.Duration
}

func NewSampler() Sampler { return &LinuxSampler{Root: "/", Window: cpuWindow} }

func (s *LinuxSampler) path(p string) string {
	root := s.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(root, p)
}

func (s *LinuxSampler) Sample(ctx context.Context) (Snapshot, error) {
	out := Default
	read := 0

	if u, ok, err := s.sampleCPU(ctx); err != nil {
		return out, err
	} else if ok {
		out.CPU = u
		read++
	}

	if f, err := os.Open(s.path("proc/meminfo")); err == nil {
		if m, ok := parseMeminfo(f); ok {
			out.Mem = m
			read++
		}
		f.Close()
	}

	if f, err := os.Open(s.path("proc/loadavg")); err == nil {
		if l, p, ok := parseLoadavg(f, runtime.NumCPU()); ok {
			out.Load1, out.Proc = l, p
			read++
		}
		f.Close()
	}

	if f, err := os.Open(s.path("sys/class/thermal/thermal_zone0/temp")); err == nil {
		if t, ok := parseThermal(f); ok {
			out.Temp = t
			read++
		}
		f.Close()
	}

	if read == 0 {
		return out, errors.New("metrics: no host figures readable")
	}
	return out, nil
}

func (s *LinuxSampler) sampleCPU(ctx context.Context) (float64, bool, error) {
	first, ok := s.readStat()
	if !ok {
		return 0, false, nil
	}
	if s.Window > 0 {
		t := time.NewTimer(s.Window)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-t.C:
		}
	}
	second, ok := s.readStat()
	if !ok {
		return 0, false, nil
	}
	u, ok := cpuUtil(first, second)
	return u, ok, nil
}

func (s *LinuxSampler) readStat() (cpuTimes, bool) {
	f, err := os.Open(s.path("proc/stat"))
	if err != nil {
		return cpuTimes{}, false
	}
	defer f.Close()
	return parseProcStat(f)
}
