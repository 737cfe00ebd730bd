package styles

import (
	"bytes"
	"strings"
	"testing"

	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/forest/render"
)

func TestByName(t *testing.T) {
	for _, name := range Names {
		s, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("ByName(%q).Name() = %q", name, s.Name())
		}
	}
	if _, err := ByName("neon"); !errors.Is(err, errors.ErrCodeInvalidStyle) {
		t.Errorf("err = %v, want INVALID_STYLE", err)
	}
}

func TestRenderTextEscapes(t *testing.T) {
	var buf bytes.Buffer
	Simple{}.RenderText(&buf, render.Text{X: 1, Y: 2, Content: "<65 & older", Anchor: render.AnchorEnd, Role: render.RoleRowLabel})
	got := buf.String()
	if !strings.Contains(got, "&lt;65 &amp; older") {
		t.Errorf("text not escaped: %s", got)
	}
	if !strings.Contains(got, `text-anchor="end"`) {
		t.Errorf("anchor missing: %s", got)
	}
}

func TestMarkersDifferByStyle(t *testing.T) {
	m := render.Marker{X: 10, Y: 10, Size: 3}
	var simple, journal bytes.Buffer
	Simple{}.RenderMarker(&simple, m)
	Journal{}.RenderMarker(&journal, m)
	if !strings.Contains(simple.String(), "<circle") {
		t.Errorf("simple marker = %s, want circle", simple.String())
	}
	if !strings.Contains(journal.String(), "<rect") {
		t.Errorf("journal marker = %s, want rect", journal.String())
	}
}

func TestArrowPointsOutward(t *testing.T) {
	left := arrowPath(render.Arrow{X: 10, Y: 5, Dir: render.Left, Size: 2})
	right := arrowPath(render.Arrow{X: 10, Y: 5, Dir: render.Right, Size: 2})
	if !strings.HasPrefix(left, "M10.00,5.00 L13.00") {
		t.Errorf("left arrow = %s", left)
	}
	if !strings.HasPrefix(right, "M10.00,5.00 L7.00") {
		t.Errorf("right arrow = %s", right)
	}
}
