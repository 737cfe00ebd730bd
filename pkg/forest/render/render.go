package render

import (
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/forest/layout"
	"github.com/matzehuels/forestplot/pkg/table"
)

// Options controls Render.
type Options struct {
	// Draw sends the drawing to Device. When false the drawing is only
	// returned.
	Draw bool
	// NewPage clears the device before drawing. Ignored unless Draw.
	NewPage bool
	Device  Device
	Compose []Option
}

// DefaultOptions draws on a fresh page of dev.
func DefaultOptions(dev Device) Options {
	return Options{Draw: true, NewPage: true, Device: dev}
}

// Render composes the plot and, when opts.Draw is set, draws it on
// opts.Device. The composed drawing is returned either way. The table is
// not modified.
func Render(t table.Table, g *layout.Geometry, opts Options) (*Drawing, error) {
	if opts.Draw && opts.Device == nil {
		return nil, errors.Configuration("draw requested without a device")
	}
	d, err := Compose(t, g, opts.Compose...)
	if err != nil {
		return nil, err
	}
	if !opts.Draw {
		return d, nil
	}
	if opts.NewPage {
		if err := opts.Device.NewPage(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "new page")
		}
	}
	if err := opts.Device.Draw(d); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "draw")
	}
	return d, nil
}
