package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/RyanBlaney/ionome/algorithms/baseline"
	"github.com/RyanBlaney/ionome/chromatogram"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	doc := `{
		"baseline": {"method": "snip", "snip": {"window": 2}},
		"windowing": {"buffer": 25},
		"deconvolution": {"integration_window": [1, 4], "workers": 4},
		"targets": {"mz": {"glutamine": 147.0764}}
	}`
	cfg, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Baseline.Method != baseline.MethodSNIP || cfg.Baseline.SNIP.Window != 2 {
		t.Errorf("baseline = %+v", cfg.Baseline)
	}
	if cfg.Baseline.SNIP.Precision != 9 || !cfg.Baseline.SNIP.ClipNegatives {
		t.Errorf("snip defaults lost: %+v", cfg.Baseline.SNIP)
	}
	if cfg.Windowing.Buffer != 25 || cfg.Windowing.RelHeight != DefaultWindowConfig().RelHeight {
		t.Errorf("windowing = %+v", cfg.Windowing)
	}
	if cfg.Deconvolution.MaxIterations != 5000 || cfg.Deconvolution.Workers != 4 {
		t.Errorf("deconvolution = %+v", cfg.Deconvolution)
	}
	if cfg.Targets.Tolerance != 0.005 || cfg.Targets.MZ["glutamine"] != 147.0764 {
		t.Errorf("targets = %+v", cfg.Targets)
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Windowing != DefaultWindowConfig() {
		t.Errorf("windowing = %+v, want defaults", cfg.Windowing)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", `{"windowing": {"prominance": 0.1}}`},
		{"malformed", `{"windowing": `},
		{"rel height", `{"windowing": {"rel_height": 2}}`},
		{"negative buffer", `{"windowing": {"buffer": -1}}`},
		{"integration window shape", `{"deconvolution": {"integration_window": [1, 2, 3]}}`},
		{"integration window order", `{"deconvolution": {"integration_window": [4, 1]}}`},
		{"zero iterations", `{"deconvolution": {"max_iterations": 0}}`},
		{"asls p", `{"baseline": {"asls": {"p": 1.5}}}`},
		{"quick factor", `{"quick": {"height_factor": -3}}`},
		{"target tolerance", `{"targets": {"tol": -0.1}}`},
		{"target mz", `{"targets": {"mz": {"x": -5}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			if !errors.Is(err, chromatogram.ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}
