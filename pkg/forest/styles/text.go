package styles

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/matzehuels/forestplot/pkg/forest/render"
)

// EscapeXML escapes s for use in SVG text and attributes.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// writeText writes t with the given CSS class. The baseline is shifted so
// the text is vertically centered on t.Y.
func writeText(buf *bytes.Buffer, t render.Text, class string) {
	weight := ""
	if t.Bold {
		weight = ` font-weight="bold"`
	}
	fmt.Fprintf(buf, `  <text class="%s" x="%.2f" y="%.2f" text-anchor="%s" dominant-baseline="central"%s>%s</text>`+"\n",
		class, t.X, t.Y, t.Anchor, weight, EscapeXML(t.Content))
}

func writeLine(buf *bytes.Buffer, l render.Line, stroke string, width float64) {
	dash := ""
	if l.Dashed {
		dash = ` stroke-dasharray="4 3"`
	}
	fmt.Fprintf(buf, `  <line class="%s" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%.2f"%s/>`+"\n",
		l.Role, l.X1, l.Y1, l.X2, l.Y2, stroke, width, dash)
}

// arrowPath returns a filled triangle pointing in a.Dir with its tip at
// (a.X, a.Y).
func arrowPath(a render.Arrow) string {
	back := a.X - a.Size*1.5
	if a.Dir == render.Left {
		back = a.X + a.Size*1.5
	}
	return fmt.Sprintf("M%.2f,%.2f L%.2f,%.2f L%.2f,%.2f Z", a.X, a.Y, back, a.Y-a.Size, back, a.Y+a.Size)
}
