package cli

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/forestplot/pkg/dataset"
	"github.com/matzehuels/forestplot/pkg/effect"
	fpio "github.com/matzehuels/forestplot/pkg/io"
	"github.com/matzehuels/forestplot/pkg/stats"
	"github.com/matzehuels/forestplot/pkg/store"
)

// isolate points every XDG directory into a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

// writeTrial writes 80 subjects with a binary response that rises with the
// biomarker but is not separated by it.
func writeTrial(t *testing.T, dir string) string {
	t.Helper()
	const n = 80
	rsp := make([]float64, n)
	bm := make([]float64, n)
	sex := make([]string, n)
	for i := range n {
		bm[i] = float64(i % 10)
		if (i*37)%11 < 3+i%10/3 {
			rsp[i] = 1
		}
		sex[i] = "F"
		if i%2 == 1 {
			sex[i] = "M"
		}
	}
	ds := dataset.MustNew(
		dataset.NumericColumn("RSP", rsp),
		dataset.NumericColumn("BMRKR1", bm),
		dataset.CategoricalColumn("SEX", sex),
	)
	path := filepath.Join(dir, "trial.csv")
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, ds); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := New(io.Discard, LogInfo)
	c.Out = &out
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExtractThenRender(t *testing.T) {
	dir := isolate(t)
	data := writeTrial(t, dir)
	rowsPath := filepath.Join(dir, "out", "trial.rows.json")

	if _, err := execute(t, "extract", data, "--response", "RSP", "-b", "BMRKR1", "-s", "SEX:Sex", "-o", rowsPath); err != nil {
		t.Fatalf("extract: %v", err)
	}
	rows, err := fpio.ImportRows(rowsPath)
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1].VarLabel != "Sex" {
		t.Errorf("VarLabel = %q, want Sex", rows[1].VarLabel)
	}

	if _, err := execute(t, "render", rowsPath, "-f", "svg,json"); err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, ext := range []string{".svg", ".json"} {
		path := filepath.Join(dir, "out", "trial"+ext)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing output %s", path)
		}
	}
}

func TestRenderShow(t *testing.T) {
	dir := isolate(t)
	rowsPath := filepath.Join(dir, "r.json")
	if err := fpio.ExportRows(sampleRows(), rowsPath); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "render", rowsPath, "--show", "-o", filepath.Join(dir, "plot.svg"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "All patients") {
		t.Errorf("terminal plot missing row label:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "plot.svg")); err != nil {
		t.Error("explicit output path not written")
	}
}

func TestRenderOverlay(t *testing.T) {
	dir := isolate(t)
	a, b := filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")
	for _, p := range []string{a, b} {
		if err := fpio.ExportRows(sampleRows(), p); err != nil {
			t.Fatal(err)
		}
	}
	out := filepath.Join(dir, "both.svg")
	if _, err := execute(t, "render", a, b, "--overlay", "-o", out); err != nil {
		t.Fatalf("render --overlay: %v", err)
	}
	svg, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(svg), "<svg") != 1 {
		t.Error("overlay should be a single SVG document")
	}
}

func TestPlotArchivesRun(t *testing.T) {
	dir := isolate(t)
	data := writeTrial(t, dir)

	if _, err := execute(t, "plot", data, "--response", "RSP", "-b", "BMRKR1", "-s", "SEX", "-f", "txt", "--title", "Trial"); err != nil {
		t.Fatalf("plot: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "trial.txt")); err != nil {
		t.Error("txt output missing")
	}
	if _, err := os.Stat(filepath.Join(dir, "trial.svg")); err == nil {
		t.Error("svg added for the archive should not be written")
	}

	st, err := store.OpenSQLite(filepath.Join(dir, "data", appName, "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	runs, err := st.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Title != "Trial" || runs[0].Rows != 3 {
		t.Fatalf("runs = %+v, want one archived run", runs)
	}
	run, err := st.Get(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.SVG) == 0 {
		t.Error("archived run should keep the svg")
	}

	out, err := execute(t, "runs", "list")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(out, runs[0].ID) {
		t.Errorf("runs list output missing id:\n%s", out)
	}

	svgPath := filepath.Join(dir, "archived.svg")
	if _, err := execute(t, "runs", "show", runs[0].ID, "-o", svgPath); err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if _, err := os.Stat(svgPath); err != nil {
		t.Error("runs show -o should write the svg")
	}
}

func TestPlotConfigurationError(t *testing.T) {
	dir := isolate(t)
	data := writeTrial(t, dir)
	_, err := execute(t, "plot", data, "--response", "RSP", "-b", "BMRKR1", "--no-vline",
		"--forest-header", "A", "--forest-header", "B", "--no-save")
	if err == nil {
		t.Fatal("forest header without a reference line should fail")
	}
}

func TestConfigFile(t *testing.T) {
	dir := isolate(t)
	data := writeTrial(t, dir)
	cfg := filepath.Join(dir, "forest.toml")
	err := os.WriteFile(cfg, []byte(`
[extract]
response = "RSP"
biomarkers = ["BMRKR1"]

[render]
formats = ["json"]
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", cfg, "plot", data, "--no-save"); err != nil {
		t.Fatalf("plot with config: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "trial.json")); err != nil {
		t.Error("config formats not applied")
	}

	if _, err := execute(t, "--config", filepath.Join(dir, "missing.toml"), "cache", "path"); err == nil {
		t.Error("explicit missing config should fail")
	}
}

func TestCacheCommands(t *testing.T) {
	dir := isolate(t)
	out, err := execute(t, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "cache", appName)
	if strings.TrimSpace(out) != want {
		t.Errorf("cache path = %q, want %q", strings.TrimSpace(out), want)
	}

	data := writeTrial(t, dir)
	if _, err := execute(t, "extract", data, "--response", "RSP", "-b", "BMRKR1"); err != nil {
		t.Fatal(err)
	}
	if countFiles(t, want) == 0 {
		t.Fatal("extract should populate the cache")
	}
	if _, err := execute(t, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if n := countFiles(t, want); n != 0 {
		t.Errorf("cache entries after clear = %d, want 0", n)
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestCompletion(t *testing.T) {
	out, err := execute(t, "completion", "fish")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, appName) {
		t.Error("completion script should mention the command")
	}
	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("unknown shell should fail")
	}
}

func sampleRows() []effect.Row {
	return []effect.Row{
		{
			Biomarker: "B", Label: "All patients", Kind: effect.KindAnalysis,
			NTotal: 100, NEvent: 40, Proportion: 0.4, Median: stats.NA(),
			Estimate: 1.4, Lower: 0.9, Upper: 2.2, ConfLevel: 0.95, PValue: 0.12,
			Status: effect.StatusOK,
		},
		{
			Biomarker: "B", Var: "SEX", VarLabel: "Sex", Label: "F", Kind: effect.KindAnalysis,
			NTotal: 4, NEvent: 4, Proportion: 1, Median: stats.NA(),
			Estimate: stats.NA(), Lower: stats.NA(), Upper: stats.NA(), ConfLevel: 0.95, PValue: stats.NA(),
			Status: effect.StatusFitDegeneracy, Detail: "complete separation",
		},
	}
}

func TestViewModel(t *testing.T) {
	m := newViewModel(sampleRows(), "plot preview")
	view := m.View()
	if !strings.Contains(view, "All patients") {
		t.Error("view should list the overall row")
	}
	if strings.Contains(view, "plot preview") {
		t.Error("plot should be hidden initially")
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if !strings.Contains(next.View(), "plot preview") {
		t.Error("p should show the plot")
	}

	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyDown})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(next.View(), "complete separation") {
		t.Error("enter on a degenerate row should show its detail")
	}

	_, cmd := next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("q should quit")
	}
}

func TestPlotPreview(t *testing.T) {
	c := New(io.Discard, LogInfo)
	plot, err := c.plotPreview(context.Background(), sampleRows())
	if err != nil {
		t.Fatalf("plotPreview: %v", err)
	}
	if !strings.Contains(plot, "All patients") || !strings.ContainsRune(plot, '●') {
		t.Errorf("preview should show the label and a point:\n%s", plot)
	}
}
