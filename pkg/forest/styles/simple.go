package styles

import (
	"bytes"
	"fmt"

	"github.com/matzehuels/forestplot/pkg/forest/render"
)

// Simple is a clean sans-serif style with round markers.
type Simple struct{}

func (Simple) Name() string { return "simple" }

func (Simple) RenderDefs(buf *bytes.Buffer) {
	buf.WriteString(`  <style>
    text { font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; fill: #222; }
    .tick-label { fill: #555; }
    .forest-header { font-style: italic; }
  </style>
`)
}

func (Simple) RenderText(buf *bytes.Buffer, t render.Text) {
	writeText(buf, t, string(t.Role))
}

func (Simple) RenderLine(buf *bytes.Buffer, l render.Line) {
	switch l.Role {
	case render.RoleVLine:
		writeLine(buf, l, "#888", 1)
	case render.RoleWhisker:
		writeLine(buf, l, "#222", 1.5)
	default:
		writeLine(buf, l, "#444", 1)
	}
}

func (Simple) RenderMarker(buf *bytes.Buffer, m render.Marker) {
	fmt.Fprintf(buf, `  <circle class="marker" cx="%.2f" cy="%.2f" r="%.2f" fill="#1f4e79"/>`+"\n", m.X, m.Y, m.Size)
}

func (Simple) RenderArrow(buf *bytes.Buffer, a render.Arrow) {
	fmt.Fprintf(buf, `  <path class="arrow" d="%s" fill="#222"/>`+"\n", arrowPath(a))
}
