// Package metrics samples a handful of host load figures, each normalized
// into [0,1], that feed the scan prompt and the entropy score.
package metrics

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
)

// Snapshot is one sample. Every field is in [0,1].
type Snapshot struct {
	CPU   float64 `json:"cpu"`
	Mem   float64 `json:"mem"`
	Load1 float64 `json:"load1"`
	Temp  float64 `json:"temp"`
	Proc  float64 `json:"proc"`
}

// Default is used for any figure the host cannot provide.
var Default = Snapshot{CPU: 0.3, Mem: 0.4, Load1: 0.2, Temp: 0.5, Proc: 0.1}

// Sampler produces snapshots. Implementations fill unavailable fields from
// Default and only return an error when nothing could be read at all.
type Sampler interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// Static always returns the same snapshot.
type Static Snapshot

func (s Static) Sample(context.Context) (Snapshot, error) { return Snapshot(s), nil }

// RGB is a colour triple in [0,1].
type RGB struct {
	R, G, B float64
}

// ToRGB weights cpu, mem and temp and scales the result down so no channel
// exceeds 1.
func (s Snapshot) ToRGB() RGB {
	r := s.CPU * 2.2
	g := s.Mem * 1.9
	b := s.Temp * 1.5
	mx := max(r, g, b, 1.0)
	return RGB{R: r / mx, G: g / mx, B: b / mx}
}

// Line renders the snapshot the way it appears in the scan prompt.
func (s Snapshot) Line() string {
	return "sys_metrics: cpu=" + f3(s.CPU) +
		" mem=" + f3(s.Mem) +
		" load=" + f3(s.Load1) +
		" temp=" + f3(s.Temp) +
		" proc=" + f3(s.Proc)
}

func f3(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}

// ── /proc parsers ───────────────────────────────────────────────────────────

// cpuTimes is the aggregate "cpu" line of /proc/stat.
type cpuTimes struct {
	total, idle uint64
}

func parseProcStat(r io.Reader) (cpuTimes, bool) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var t cpuTimes
		for i, f := range fields[1:] {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return cpuTimes{}, false
			}
			t.total += v
			// idle + iowait
			if i == 3 || i == 4 {
				t.idle += v
			}
		}
		return t, true
	}
	return cpuTimes{}, false
}

func cpuUtil(prev, cur cpuTimes) (float64, bool) {
	if cur.total <= prev.total {
		return 0, false
	}
	dt := cur.total - prev.total
	di := cur.idle - prev.idle
	return clamp01(1 - float64(di)/float64(dt)), true
}

// parseMeminfo returns the used fraction: 1 - MemAvailable/MemTotal.
func parseMeminfo(r io.Reader) (float64, bool) {
	var total, avail uint64
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			total = parseKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			avail = parseKB(line)
		}
	}
	if total == 0 {
		return 0, false
	}
	return clamp01(1 - float64(avail)/float64(total)), true
}

func parseKB(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, _ := strconv.ParseUint(fields[1], 10, 64)
	return v
}

// maxProcs is the process count that maps to Proc = 1.
const maxProcs = 1000

// parseLoadavg returns load1 divided by cpus and the total process count
// scaled by maxProcs.
func parseLoadavg(r io.Reader, cpus int) (load1, proc float64, ok bool) {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return 0, 0, false
	}
	fields := strings.Fields(string(b))
	if len(fields) < 4 {
		return 0, 0, false
	}
	l, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, false
	}
	if cpus < 1 {
		cpus = 1
	}
	load1 = clamp01(l / float64(cpus))

	proc = Default.Proc
	if _, total, found := strings.Cut(fields[3], "/"); found {
		if n, err := strconv.Atoi(total); err == nil {
			proc = clamp01(float64(n) / maxProcs)
		}
	}
	return load1, proc, true
}

// parseThermal reads a thermal_zone temp file (millidegrees C) and maps
// 0..100 °C onto [0,1].
func parseThermal(r io.Reader) (float64, bool) {
	b, err := io.ReadAll(io.LimitReader(r, 64))
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, false
	}
	return clamp01(v / 1000 / 100), true
}
