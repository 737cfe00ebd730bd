// Package render composes a forest plot from a table and its layout.
//
// [Compose] turns a [table.Table] and a [layout.Geometry] into a
// [Drawing]: a flat, device-independent list of text, line, marker and
// arrow primitives in output units. [Render] additionally hands the
// drawing to a [Device] when drawing is requested.
//
// Sinks in the sibling sink package turn drawings into SVG, PNG, PDF or
// terminal text. [ToPDF] and [ToPNG] convert SVG with rsvg-convert.
package render

// Anchor is the horizontal text alignment relative to X.
type Anchor int

const (
	AnchorStart Anchor = iota
	AnchorMiddle
	AnchorEnd
)

// String returns the SVG text-anchor value.
func (a Anchor) String() string {
	switch a {
	case AnchorMiddle:
		return "middle"
	case AnchorEnd:
		return "end"
	}
	return "start"
}

// Role tags a primitive with the plot element it belongs to so styles can
// treat them differently.
type Role string

const (
	RoleSpan         Role = "span"
	RoleColumnHeader Role = "column-header"
	RoleForestHeader Role = "forest-header"
	RoleRowLabel     Role = "row-label"
	RoleCell         Role = "cell"
	RoleTickLabel    Role = "tick-label"
	RoleRule         Role = "rule"
	RoleAxis         Role = "axis"
	RoleTick         Role = "tick"
	RoleVLine        Role = "vline"
	RoleWhisker      Role = "whisker"
)

// Text is a single line of text with its baseline centered on Y.
type Text struct {
	X, Y    float64
	Content string
	Anchor  Anchor
	Bold    bool
	Role    Role
	Row     int // table row, -1 for header and axis text
}

// Line is a straight segment.
type Line struct {
	X1, Y1, X2, Y2 float64
	Role           Role
	Dashed         bool
	Row            int
}

// Marker is the point estimate symbol.
type Marker struct {
	X, Y float64
	Size float64 // half-width
	Row  int
}

// Direction is the way an arrow points.
type Direction int

const (
	Left Direction = iota
	Right
)

// Arrow marks a whisker end clipped at the domain boundary.
type Arrow struct {
	X, Y float64 // tip
	Dir  Direction
	Size float64
	Row  int
}

// Drawing is a composed forest plot.
type Drawing struct {
	Width, Height float64
	FontSize      float64
	RowHeight     float64
	Texts         []Text
	Lines         []Line
	Markers       []Marker
	Arrows        []Arrow
}

// Device is a display surface.
type Device interface {
	NewPage() error
	Draw(d *Drawing) error
}
