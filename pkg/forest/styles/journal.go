package styles

import (
	"bytes"
	"fmt"

	"github.com/matzehuels/forestplot/pkg/forest/render"
)

// Journal is a black and white serif style with square markers.
type Journal struct{}

func (Journal) Name() string { return "journal" }

func (Journal) RenderDefs(buf *bytes.Buffer) {
	buf.WriteString(`  <style>
    text { font-family: "Times New Roman", Times, serif; fill: #000; }
  </style>
`)
}

func (Journal) RenderText(buf *bytes.Buffer, t render.Text) {
	writeText(buf, t, string(t.Role))
}

func (Journal) RenderLine(buf *bytes.Buffer, l render.Line) {
	switch l.Role {
	case render.RoleWhisker:
		writeLine(buf, l, "#666", 1)
	case render.RoleRule:
		writeLine(buf, l, "#000", 0.75)
	default:
		writeLine(buf, l, "#000", 1)
	}
}

func (Journal) RenderMarker(buf *bytes.Buffer, m render.Marker) {
	fmt.Fprintf(buf, `  <rect class="marker" x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="#000"/>`+"\n",
		m.X-m.Size, m.Y-m.Size, 2*m.Size, 2*m.Size)
}

func (Journal) RenderArrow(buf *bytes.Buffer, a render.Arrow) {
	fmt.Fprintf(buf, `  <path class="arrow" d="%s" fill="#000"/>`+"\n", arrowPath(a))
}
