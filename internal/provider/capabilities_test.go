package provider

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var controllerStops = []string{"Low", "Medium", "High", "\n", "\r"}

func TestPolicyFor_Stops(t *testing.T) {
	tests := []struct {
		provider string
		want     []string
	}{
		{"openai", []string{"Low", "Medium", "High", "\n"}},
		{"anthropic", []string{"Low", "Medium", "High"}},
		{"gemini", []string{"Low", "Medium", "High", "\n", "\r"}},
		{"llamacpp", []string{"Low", "Medium", "High", "\n", "\r"}},
		{" OpenAI ", []string{"Low", "Medium", "High", "\n"}},
	}
	for _, tt := range tests {
		got := PolicyFor(tt.provider).Stops(controllerStops)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("PolicyFor(%q).Stops mismatch (-want +got):\n%s", tt.provider, diff)
		}
	}
}

func TestStopPolicy_DropsEmpty(t *testing.T) {
	got := StopPolicy{AllowWhitespace: true}.Stops([]string{"", "a", ""})
	if diff := cmp.Diff([]string{"a"}, got); diff != "" {
		t.Errorf("Stops mismatch (-want +got):\n%s", diff)
	}
	if got := (StopPolicy{}).Stops(nil); got != nil {
		t.Errorf("Stops(nil) = %v, want nil", got)
	}
}

func TestStopPolicy_Temperature(t *testing.T) {
	tests := []struct {
		provider string
		in, want float64
	}{
		{"anthropic", 1.8, 1.0},
		{"anthropic", 0.18, 0.18},
		{"openai", 2.0, 2.0},
		{"llamacpp", 3.5, 3.5},
		{"openai", -1, 0},
	}
	for _, tt := range tests {
		if got := PolicyFor(tt.provider).Temperature(tt.in); got != tt.want {
			t.Errorf("PolicyFor(%q).Temperature(%v) = %v, want %v", tt.provider, tt.in, got, tt.want)
		}
	}
}
