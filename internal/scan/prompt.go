package scan

import (
	"fmt"

	"github.com/qrs-ai/roadscan/internal/metrics"
)

// Fix is a GPS position in decimal degrees.
type Fix struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DefaultFix is the simulated desktop position.
var DefaultFix = Fix{Lat: 40.7128, Lon: -74.0060}

// Valid reports whether the fix is within WGS84 bounds.
func (f Fix) Valid() bool {
	return f.Lat >= -90 && f.Lat <= 90 && f.Lon >= -180 && f.Lon <= 180
}

const roadScannerTemplate = `You are a Hypertime Nanobot specialized Road Risk Classification AI trained to evaluate real-world driving scenes.
Analyze and Triple Check for validating accuracy the environmental and sensor data and determine the overall road risk level.
Your reply must be only one word: Low, Medium, or High.

[tuning]
Scene details:
Location: GPS coordinates %.6f, %.6f
Road type: unknown (inferred from quantum resonance)
Weather: unknown (inferred from entropic field)
Traffic: unknown (inferred from system load)
Obstacles: unknown (inferred from hazard resonance)
Sensor notes: quantum-entangled device state
%s
Quantum State: %s
[/tuning]

Follow these strict rules when forming your decision:
- Think through all scene factors internally but do not show reasoning.
- Evaluate surface, visibility, weather, traffic, and obstacles holistically.
- Optionally use the system entropic signal to bias your internal confidence slightly.
- Choose only one risk level that best fits the entire situation.
- Output exactly one word, with no punctuation or labels.
- The valid outputs are only: Low, Medium, High.

[action]
1) Normalize sensor inputs to comparable scales.
2) Map environmental risk cues -> discrete label using conservative thresholds.
3) If sensor integrity anomalies are detected, bias toward higher risk.
4) PUNKD: detect key tokens and locally adjust attention/temperature slightly to focus decisions.
5) Do not output internal reasoning or diagnostics; only return the single-word label.
[/action]

[replytemplate]
Low | Medium | High
[/replytemplate]`

// BuildRoadScannerPrompt renders the classification prompt for one fix.
func BuildRoadScannerPrompt(fix Fix, m metrics.Snapshot, entropyText string) string {
	return fmt.Sprintf(roadScannerTemplate, fix.Lat, fix.Lon, m.Line(), entropyText)
}
