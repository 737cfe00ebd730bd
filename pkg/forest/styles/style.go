// Package styles defines the visual appearance of SVG forest plots.
//
// A [Style] writes each drawing primitive as SVG. [Simple] is the default
// sans-serif look with round markers; [Journal] uses a serif face, square
// markers and grey whiskers as common in clinical publications.
package styles

import (
	"bytes"

	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/forest/render"
)

// Style defines how forest plot primitives are drawn.
type Style interface {
	// Name identifies the style in options and JSON output.
	Name() string
	// RenderDefs writes SVG <defs> and <style> content.
	RenderDefs(buf *bytes.Buffer)
	RenderText(buf *bytes.Buffer, t render.Text)
	RenderLine(buf *bytes.Buffer, l render.Line)
	RenderMarker(buf *bytes.Buffer, m render.Marker)
	RenderArrow(buf *bytes.Buffer, a render.Arrow)
}

// Names lists the built-in styles.
var Names = []string{"simple", "journal"}

// ByName returns a built-in style.
func ByName(name string) (Style, error) {
	switch name {
	case "", "simple":
		return Simple{}, nil
	case "journal":
		return Journal{}, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidStyle, "unknown style %q (want one of %v)", name, Names)
}
