package sink

import (
	"bytes"
	"fmt"

	"github.com/matzehuels/forestplot/pkg/forest/render"
	"github.com/matzehuels/forestplot/pkg/forest/styles"
)

// SVGOption configures SVG rendering via [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	style      styles.Style
	title      string
	background string
	margin     float64
}

func WithStyle(s styles.Style) SVGOption { return func(r *svgRenderer) { r.style = s } }
func WithTitle(t string) SVGOption       { return func(r *svgRenderer) { r.title = t } }
func WithBackground(color string) SVGOption {
	return func(r *svgRenderer) { r.background = color }
}
func WithMargin(m float64) SVGOption { return func(r *svgRenderer) { r.margin = m } }

// RenderSVG writes the drawings as one SVG document, later drawings on top.
func RenderSVG(d *render.Drawing, opts ...SVGOption) []byte {
	return renderSVG([]*render.Drawing{d}, opts...)
}

func renderSVG(page []*render.Drawing, opts ...SVGOption) []byte {
	r := svgRenderer{style: styles.Simple{}, background: "#fff", margin: 10}
	for _, opt := range opts {
		opt(&r)
	}

	var w, h, fontSize float64
	for _, d := range page {
		w, h = max(w, d.Width), max(h, d.Height)
		fontSize = max(fontSize, d.FontSize)
	}
	fw, fh := w+2*r.margin, h+2*r.margin

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f" font-size="%.1f">`+"\n",
		fw, fh, fw, fh, fontSize)
	if r.title != "" {
		fmt.Fprintf(&buf, "  <title>%s</title>\n", styles.EscapeXML(r.title))
	}
	r.style.RenderDefs(&buf)
	if r.background != "" {
		fmt.Fprintf(&buf, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", styles.EscapeXML(r.background))
	}

	fmt.Fprintf(&buf, `  <g transform="translate(%.1f %.1f)">`+"\n", r.margin, r.margin)
	for _, d := range page {
		renderContent(&buf, r.style, d)
	}
	buf.WriteString("  </g>\n")
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func renderContent(buf *bytes.Buffer, s styles.Style, d *render.Drawing) {
	for _, l := range d.Lines {
		s.RenderLine(buf, l)
	}
	for _, a := range d.Arrows {
		s.RenderArrow(buf, a)
	}
	for _, m := range d.Markers {
		s.RenderMarker(buf, m)
	}
	for _, t := range d.Texts {
		s.RenderText(buf, t)
	}
}
