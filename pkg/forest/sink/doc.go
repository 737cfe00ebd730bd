// Package sink provides output format renderers for forest plots.
//
// # Overview
//
// A "sink" turns a composed [render.Drawing], or the table and geometry
// behind it, into a final output format:
//
//   - SVG: vector output with pluggable styles
//   - PDF: print-ready output (requires rsvg-convert)
//   - PNG: raster output (requires rsvg-convert)
//   - JSON: table and geometry for external tools
//   - Text: a terminal rendition with character whiskers
//
// Basic usage:
//
//	d, _ := render.Compose(tbl, geom)
//	svg := sink.RenderSVG(d, sink.WithStyle(styles.Journal{}))
//
// # Devices
//
// [SVGDevice] and [TextDevice] implement [render.Device] so a plot can be
// drawn with [render.Render]. A device keeps drawing onto the current page
// until NewPage is called.
//
// # PDF and PNG Output
//
// [RenderPDF] and [RenderPNG] first generate SVG and then convert it via
// [render.ToPDF] and [render.ToPNG]. These require librsvg:
//   - macOS: brew install librsvg
//   - Linux: apt install librsvg2-bin
package sink
