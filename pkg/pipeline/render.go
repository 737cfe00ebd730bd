package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/forestplot/pkg/forest/layout"
	"github.com/matzehuels/forestplot/pkg/forest/render"
	"github.com/matzehuels/forestplot/pkg/forest/sink"
	"github.com/matzehuels/forestplot/pkg/forest/styles"
	"github.com/matzehuels/forestplot/pkg/table"
)

// Render composes the plot and generates every requested format.
func Render(ctx context.Context, t table.Table, g *layout.Geometry, opts Options) (map[string][]byte, *render.Drawing, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, nil, err
	}
	d, err := render.Render(t, g, render.Options{})
	if err != nil {
		return nil, nil, err
	}

	svgOpts, err := SVGOptions(opts)
	if err != nil {
		return nil, nil, err
	}
	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		var data []byte
		switch format {
		case FormatSVG:
			data = sink.RenderSVG(d, svgOpts...)
		case FormatPNG:
			data, err = sink.RenderPNG(ctx, d, sink.WithPNGSVGOptions(svgOpts...))
		case FormatPDF:
			data, err = sink.RenderPDF(ctx, d, sink.WithPDFSVGOptions(svgOpts...))
		case FormatJSON:
			data, err = sink.RenderJSON(t, g, sink.WithJSONStyle(opts.Style))
		case FormatText:
			data = []byte(sink.RenderText(t, g, opts.TextWidth))
		default:
			return nil, nil, fmt.Errorf("unsupported format: %s", format)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, d, nil
}

// SVGOptions returns the SVG sink options for the style and title in opts.
func SVGOptions(opts Options) ([]sink.SVGOption, error) {
	style, err := styles.ByName(opts.Style)
	if err != nil {
		return nil, err
	}
	svgOpts := []sink.SVGOption{sink.WithStyle(style)}
	if opts.Title != "" {
		svgOpts = append(svgOpts, sink.WithTitle(opts.Title))
	}
	return svgOpts, nil
}
