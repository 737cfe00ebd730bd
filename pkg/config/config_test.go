package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/pipeline"
)

const sampleTOML = `
[extract]
response = "RSP"
responder_levels = ["CR", "PR"]
biomarkers = ["BMRKR1", "BMRKR2"]
conf_level = 0.9
workers = 2

[[subgroups]]
var = "SEX"
label = "Sex"

[[subgroups]]
var = "AGEGRP"
levels = [
  { label = "<65", values = ["<50", "50-64"] },
  { label = ">=65", values = [">=65"] },
]

[labels]
BMRKR1 = "Biomarker 1"

[table]
vars = ["n_tot", "est_ci"]
pvalue_digits = 3

[[table.spans]]
label = "Effect"
from = "est_ci"
to = "est_ci"

[layout]
xlim = [0.1, 10]
forest_header = ["Treatment better", "Control better"]
width_forest = 300

[render]
formats = ["svg", "txt"]
style = "journal"
`

const sampleYAML = `
extract:
  time: AVAL
  event: EVENT
  biomarkers: [BMRKR1]
  strata: [STRATA1]
subgroups:
  - var: SEX
layout:
  linear_x: true
  no_vline: true
render:
  title: Overall survival
`

func TestParseTOML(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML), ".toml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Extract.Response == nil || *cfg.Extract.Response != "RSP" {
		t.Errorf("Response = %v, want RSP", cfg.Extract.Response)
	}
	if len(cfg.Subgroups) != 2 || len(cfg.Subgroups[1].Levels) != 2 {
		t.Fatalf("Subgroups = %+v", cfg.Subgroups)
	}
	if got := cfg.Subgroups[1].Levels[0].Values; len(got) != 2 || got[1] != "50-64" {
		t.Errorf("merged level values = %v", got)
	}
	if len(cfg.Table.Spans) != 1 || cfg.Table.Spans[0].From != "est_ci" {
		t.Errorf("Spans = %+v", cfg.Table.Spans)
	}
}

func TestParseYAML(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML), ".yml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Extract.Time == nil || *cfg.Extract.Time != "AVAL" {
		t.Errorf("Time = %v, want AVAL", cfg.Extract.Time)
	}
	if len(cfg.Subgroups) != 1 || cfg.Subgroups[0].Var != "SEX" {
		t.Errorf("Subgroups = %+v", cfg.Subgroups)
	}
	if cfg.Layout.NoVLine == nil || !*cfg.Layout.NoVLine {
		t.Error("no_vline should be set")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
		code errors.Code
	}{
		{"bad toml", "[extract\n", ".toml", errors.ErrCodeInvalidFormat},
		{"unknown key", "[extract]\nrespones = \"RSP\"\n", ".toml", errors.ErrCodeInvalidInput},
		{"bad yaml", "extract: [", ".yaml", errors.ErrCodeInvalidFormat},
		{"extension", "{}", ".json", errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.ext)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestApply(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML), ".toml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	opts := pipeline.Options{Title: "kept", Labels: map[string]string{"SEX": "Sex"}}
	cfg.Apply(&opts)

	if opts.Variables.Response != "RSP" || len(opts.Variables.Biomarkers) != 2 {
		t.Errorf("Variables = %+v", opts.Variables)
	}
	if opts.ConfLevel != 0.9 || opts.Workers != 2 {
		t.Errorf("ConfLevel, Workers = %v, %d", opts.ConfLevel, opts.Workers)
	}
	if opts.Labels["BMRKR1"] != "Biomarker 1" || opts.Labels["SEX"] != "Sex" {
		t.Errorf("Labels = %v, want merged", opts.Labels)
	}
	if opts.Format == nil || opts.Format.PValueDigits != 3 || opts.Format.EstimateDigits != 2 {
		t.Errorf("Format = %+v, want defaults with pvalue_digits 3", opts.Format)
	}
	if opts.WidthForest == nil || *opts.WidthForest != 300 {
		t.Errorf("WidthForest = %v, want 300", opts.WidthForest)
	}
	if opts.Style != "journal" || len(opts.Formats) != 2 {
		t.Errorf("Style, Formats = %q, %v", opts.Style, opts.Formats)
	}
	if opts.Title != "kept" {
		t.Errorf("Title = %q, unset keys must not overwrite", opts.Title)
	}
	if opts.VLine != nil {
		t.Errorf("VLine = %v, want nil", *opts.VLine)
	}

	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("applied options should validate: %v", err)
	}
}

func TestApplyPointerIsCopied(t *testing.T) {
	w := 120.0
	cfg := FileConfig{Layout: LayoutConfig{WidthRowNames: &w}}
	var opts pipeline.Options
	cfg.Apply(&opts)
	w = 1
	if *opts.WidthRowNames != 120 {
		t.Errorf("WidthRowNames = %v, want 120", *opts.WidthRowNames)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Errorf("missing file should not be an error: %v", err)
	}
	if cfg.Extract.Response != nil {
		t.Error("missing file should give an empty config")
	}

	path := filepath.Join(dir, "forest.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Render.Title == nil || *cfg.Render.Title != "Overall survival" {
		t.Errorf("Title = %v", cfg.Render.Title)
	}

	if _, err := Load(""); !errors.IsConfiguration(err) {
		t.Errorf("empty path error = %v, want CONFIGURATION", err)
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/cache")
	t.Setenv("XDG_DATA_HOME", "/tmp/data")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/config")

	tests := []struct{ got, want string }{
		{DefaultCacheDir(), "/tmp/cache/forestplot"},
		{DefaultDBPath(), "/tmp/data/forestplot/runs.db"},
		{DefaultConfigPath(), "/tmp/config/forestplot/config.toml"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("path = %s, want %s", tt.got, tt.want)
		}
	}
}
