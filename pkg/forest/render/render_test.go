package render

import (
	"errors"
	"testing"

	fperrors "github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/forest/layout"
	"github.com/matzehuels/forestplot/pkg/stats"
	"github.com/matzehuels/forestplot/pkg/table"
)

func ptr[T any](v T) *T { return &v }

func sampleTable(t *testing.T) table.Table {
	t.Helper()
	h := table.Header{
		Columns: []table.Column{{ID: "n", Label: "n"}, {ID: "est", Label: "OR"}, {ID: "ci", Label: "95% CI"}},
		Spans:   []table.Span{{Label: "Effect", From: 1, To: 2}},
	}
	row := func(kind table.Kind, label string, est, lo, hi float64) table.Row {
		return table.Row{Kind: kind, Label: label, Indent: 1, Cells: []table.Cell{
			{Values: []stats.Num{10}, Text: "10"},
			{Values: []stats.Num{stats.Num(est)}, Text: "est"},
			{Values: []stats.Num{stats.Num(lo), stats.Num(hi)}, Text: "ci"},
		}}
	}
	tbl, err := table.NewGeneric(h, []table.Row{
		{Kind: table.KindHeader, Label: "Sex", Cells: make([]table.Cell, 3)},
		row(table.KindAnalysis, "F", 1.0, 0.8, 1.2),
		row(table.KindAnalysis, "M", 1.2, 1.1, 1.4),
	})
	if err != nil {
		t.Fatalf("NewGeneric: %v", err)
	}
	return tbl
}

func TestComposePrimitives(t *testing.T) {
	tbl := sampleTable(t)
	g, err := layout.Compute(tbl, layout.Config{
		ColX: 1, ColCI: 2,
		XLim:         []float64{0.9, 1.3},
		VLine:        ptr(1.0),
		ForestHeader: []string{"Favors A", "Favors B"},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	d, err := Compose(tbl, g)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if len(d.Markers) != 2 {
		t.Errorf("markers = %d, want 2", len(d.Markers))
	}
	var whiskers, vlines int
	for _, l := range d.Lines {
		switch l.Role {
		case RoleWhisker:
			whiskers++
		case RoleVLine:
			vlines++
		}
	}
	if whiskers != 2 || vlines != 1 {
		t.Errorf("whiskers, vlines = %d, %d, want 2, 1", whiskers, vlines)
	}
	if len(d.Arrows) != 2 {
		t.Fatalf("arrows = %d, want 2", len(d.Arrows))
	}
	if d.Arrows[0].Dir != Left || d.Arrows[0].Row != 1 || d.Arrows[1].Dir != Right || d.Arrows[1].Row != 2 {
		t.Errorf("arrows = %+v", d.Arrows)
	}

	roles := map[Role]int{}
	for _, tx := range d.Texts {
		roles[tx.Role]++
	}
	if roles[RoleForestHeader] != 2 || roles[RoleSpan] != 1 || roles[RoleColumnHeader] != 3 || roles[RoleRowLabel] != 3 {
		t.Errorf("text roles = %v", roles)
	}
	if d.Width != g.Width || d.Height != g.Height {
		t.Errorf("size = %vx%v, want %vx%v", d.Width, d.Height, g.Width, g.Height)
	}
}

func TestForestHeaderClampedToPanel(t *testing.T) {
	tbl := sampleTable(t)
	g, err := layout.Compute(tbl, layout.Config{
		ColX: 1, ColCI: 2,
		XLim:         []float64{0.9, 1.3},
		VLine:        ptr(2.0),
		ForestHeader: []string{"Favors A", "Favors B"},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	d, err := Compose(tbl, g)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	for _, l := range d.Lines {
		if l.Role == RoleVLine {
			t.Errorf("vline drawn at %v outside the domain", l.X1)
		}
	}
	edge := g.ToPixel(g.Domain.Hi)
	var xs []float64
	for _, tx := range d.Texts {
		if tx.Role == RoleForestHeader {
			xs = append(xs, tx.X)
		}
	}
	if len(xs) != 2 || xs[0] != edge-g.Padding || xs[1] != edge+g.Padding {
		t.Errorf("forest header x = %v, want [%v %v]", xs, edge-g.Padding, edge+g.Padding)
	}
}

func TestComposeRejectsMismatchedGeometry(t *testing.T) {
	tbl := sampleTable(t)
	g, err := layout.Compute(tbl, layout.Config{ColX: 1, ColCI: 2})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	g.Rows = g.Rows[:1]
	if _, err := Compose(tbl, g); !fperrors.IsConfiguration(err) {
		t.Errorf("err = %v, want CONFIGURATION", err)
	}
}

type recordingDevice struct {
	calls []string
	err   error
}

func (r *recordingDevice) NewPage() error        { r.calls = append(r.calls, "newpage"); return nil }
func (r *recordingDevice) Draw(d *Drawing) error { r.calls = append(r.calls, "draw"); return r.err }

func TestRenderDrawModes(t *testing.T) {
	tbl := sampleTable(t)
	g, err := layout.Compute(tbl, layout.Config{ColX: 1, ColCI: 2})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	tests := []struct {
		name string
		opts func(*recordingDevice) Options
		want []string
	}{
		{"layout only", func(dev *recordingDevice) Options { return Options{Draw: false, NewPage: true, Device: dev} }, nil},
		{"draw new page", func(dev *recordingDevice) Options { return DefaultOptions(dev) }, []string{"newpage", "draw"}},
		{"draw same page", func(dev *recordingDevice) Options { return Options{Draw: true, Device: dev} }, []string{"draw"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &recordingDevice{}
			d, err := Render(tbl, g, tt.opts(dev))
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if d == nil {
				t.Fatal("Render returned no drawing")
			}
			if len(dev.calls) != len(tt.want) {
				t.Fatalf("calls = %v, want %v", dev.calls, tt.want)
			}
			for i := range tt.want {
				if dev.calls[i] != tt.want[i] {
					t.Errorf("calls = %v, want %v", dev.calls, tt.want)
				}
			}
		})
	}
}

func TestRenderErrors(t *testing.T) {
	tbl := sampleTable(t)
	g, err := layout.Compute(tbl, layout.Config{ColX: 1, ColCI: 2})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if _, err := Render(tbl, g, Options{Draw: true}); !fperrors.IsConfiguration(err) {
		t.Errorf("no device: err = %v, want CONFIGURATION", err)
	}
	boom := errors.New("boom")
	if _, err := Render(tbl, g, DefaultOptions(&recordingDevice{err: boom})); !errors.Is(err, boom) {
		t.Errorf("device error = %v, want wrapped boom", err)
	}
}

func TestRenderDoesNotMutateTable(t *testing.T) {
	tbl := sampleTable(t)
	before := table.Rows(tbl)
	g, err := layout.Compute(tbl, layout.Config{ColX: 1, ColCI: 2})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if _, err := Render(tbl, g, Options{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	after := table.Rows(tbl)
	for i := range before {
		if before[i].Label != after[i].Label || before[i].Cells[1].Text != after[i].Cells[1].Text {
			t.Errorf("row %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}
