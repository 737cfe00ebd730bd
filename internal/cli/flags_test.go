package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/pipeline"
)

func TestParseSubgroup(t *testing.T) {
	tests := []struct {
		in        string
		wantVar   string
		wantLabel string
		wantErr   bool
	}{
		{"SEX", "SEX", "", false},
		{"SEX:Sex", "SEX", "Sex", false},
		{" AGE : Age group ", "AGE", "Age group", false},
		{":Label", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		got, err := parseSubgroup(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSubgroup(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got.Var != tt.wantVar || got.Label != tt.wantLabel {
			t.Errorf("parseSubgroup(%q) = %+v, want %s/%s", tt.in, got, tt.wantVar, tt.wantLabel)
		}
	}
}

func TestParseSpan(t *testing.T) {
	sp, err := parseSpan("Response=n_tot:prop")
	if err != nil {
		t.Fatal(err)
	}
	if sp.Label != "Response" || sp.From != "n_tot" || sp.To != "prop" {
		t.Errorf("parseSpan = %+v", sp)
	}
	for _, bad := range []string{"Response", "Response=n_tot", "=:", "R=:prop"} {
		if _, err := parseSpan(bad); err == nil {
			t.Errorf("parseSpan(%q) should fail", bad)
		}
	}
}

func TestFlagsOnlyOverrideWhatWasSet(t *testing.T) {
	var (
		ef extractFlags
		pf plotFlags
	)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	ef.register(fs)
	pf.register(fs)

	err := fs.Parse([]string{
		"-b", "B1,B2",
		"-s", "SEX:Sex",
		"-s", "AGE",
		"--label", "B1=Biomarker 1",
		"--xlim", "0.1,10",
		"--vline", "0.5",
		"-f", "svg,txt",
		"--span", "Counts=n_tot:n_event",
	})
	if err != nil {
		t.Fatal(err)
	}

	opts := pipeline.Options{
		Variables: effect.Variables{Response: "RSP"},
		Style:     "journal",
		Labels:    map[string]string{"SEX": "Sex at birth"},
	}
	if err := ef.apply(fs, &opts); err != nil {
		t.Fatal(err)
	}
	if err := pf.apply(fs, &opts); err != nil {
		t.Fatal(err)
	}

	if opts.Variables.Response != "RSP" {
		t.Errorf("Response = %q, want untouched RSP", opts.Variables.Response)
	}
	if got := opts.Variables.Biomarkers; len(got) != 2 || got[1] != "B2" {
		t.Errorf("Biomarkers = %v", got)
	}
	if len(opts.Subgroups) != 2 || opts.Subgroups[0].Label != "Sex" || opts.Subgroups[1].Var != "AGE" {
		t.Errorf("Subgroups = %+v", opts.Subgroups)
	}
	if opts.Labels["B1"] != "Biomarker 1" || opts.Labels["SEX"] != "Sex at birth" {
		t.Errorf("Labels = %v, want merged", opts.Labels)
	}
	if len(opts.XLim) != 2 || opts.XLim[1] != 10 {
		t.Errorf("XLim = %v", opts.XLim)
	}
	if opts.VLine == nil || *opts.VLine != 0.5 {
		t.Errorf("VLine = %v, want 0.5", opts.VLine)
	}
	if opts.Style != "journal" {
		t.Errorf("Style = %q, want untouched journal", opts.Style)
	}
	if opts.WidthForest != nil {
		t.Error("WidthForest should stay unset")
	}
	if len(opts.Spans) != 1 || opts.Spans[0].To != "n_event" {
		t.Errorf("Spans = %+v", opts.Spans)
	}
}

func TestPlotFlagsRejectUnknownFormat(t *testing.T) {
	var pf plotFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	pf.register(fs)
	if err := fs.Parse([]string{"-f", "gif"}); err != nil {
		t.Fatal(err)
	}
	var opts pipeline.Options
	err := pf.apply(fs, &opts)
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("apply error = %v, want INVALID_FORMAT", err)
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, input, want string
	}{
		{"", "data/trial.csv", "data/trial"},
		{"", "data/trial.rows.json", "data/trial"},
		{"out/plot.svg", "trial.csv", "out/plot"},
		{"out/plot", "trial.csv", "out/plot"},
		{"out/plot.v2", "trial.csv", "out/plot.v2"},
	}
	for _, tt := range tests {
		if got := basePath(tt.output, tt.input); got != tt.want {
			t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
		}
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	artifacts := map[string][]byte{"svg": []byte("<svg/>"), "txt": []byte("plot")}

	paths, err := writeArtifacts(artifacts, filepath.Join(dir, "sub", "plot"), "trial.csv")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "sub", "plot.svg"), filepath.Join(dir, "sub", "plot.txt")}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("paths = %v, want %v", paths, want)
	}

	single := filepath.Join(dir, "exact.name")
	if _, err := writeArtifacts(map[string][]byte{"svg": []byte("<svg/>")}, single, "trial.csv"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(single); err != nil {
		t.Error("single format should be written to the exact output path")
	}
}
