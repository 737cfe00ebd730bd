package layout

import (
	"math"
	"strconv"

	"github.com/matzehuels/forestplot/pkg/errors"
)

// Transform maps original x values onto the plotting axis.
type Transform int

const (
	Identity Transform = iota
	Log10
)

// String returns "identity" or "log10".
func (t Transform) String() string {
	if t == Log10 {
		return "log10"
	}
	return "identity"
}

// MarshalText implements encoding.TextMarshaler.
func (t Transform) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Transform) UnmarshalText(b []byte) error {
	switch string(b) {
	case "identity", "":
		*t = Identity
	case "log10":
		*t = Log10
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unknown transform %q", b)
	}
	return nil
}

// Apply transforms an original value.
func (t Transform) Apply(x float64) float64 {
	if t == Log10 {
		return math.Log10(x)
	}
	return x
}

// Invert maps a transformed value back to the original unit.
func (t Transform) Invert(x float64) float64 {
	if t == Log10 {
		return math.Pow(10, x)
	}
	return x
}

// Domain is the plotted x-range in transformed units.
type Domain struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Contains reports whether x lies inside the domain.
func (d Domain) Contains(x float64) bool { return x >= d.Lo && x <= d.Hi }

// Clamp limits x to the domain.
func (d Domain) Clamp(x float64) float64 { return math.Max(d.Lo, math.Min(d.Hi, x)) }

// Span returns Hi - Lo.
func (d Domain) Span() float64 { return d.Hi - d.Lo }

// Tick is one axis tick. Value is in the original unit, X in transformed
// units.
type Tick struct {
	Value float64 `json:"value"`
	X     float64 `json:"x"`
	Label string  `json:"label"`
}

// autoDomain returns the smallest range covering values, padded by margin
// times its span on each side.
func autoDomain(values []float64, tr Transform, margin float64) Domain {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		if tr == Log10 {
			return Domain{Lo: -1, Hi: 1}
		}
		return Domain{Lo: 0, Hi: 1}
	}
	if hi-lo == 0 {
		half := 0.5
		if tr == Identity && lo != 0 {
			half = math.Abs(lo) / 2
		}
		return Domain{Lo: lo - half, Hi: hi + half}
	}
	pad := (hi - lo) * margin
	return Domain{Lo: lo - pad, Hi: hi + pad}
}

// autoTicks chooses round tick values inside d.
func autoTicks(d Domain, tr Transform) []Tick {
	if tr == Log10 {
		if ticks := logTicks(d); len(ticks) >= 2 {
			return ticks
		}
		lo, hi := math.Pow(10, d.Lo), math.Pow(10, d.Hi)
		var out []Tick
		for _, t := range linearTicks(lo, hi, 5) {
			if t.Value > 0 {
				t.X = math.Log10(t.Value)
				out = append(out, t)
			}
		}
		return out
	}
	return linearTicks(d.Lo, d.Hi, 5)
}

// linearTicks places ticks on a 1-2-5 step covering [lo, hi].
func linearTicks(lo, hi float64, target int) []Tick {
	step := niceStep(hi-lo, target)
	digits := max(0, -int(math.Floor(math.Log10(step))))
	var out []Tick
	for k := math.Ceil(lo/step - 1e-9); k*step <= hi+step*1e-9; k++ {
		v := roundTo(k*step, digits)
		out = append(out, Tick{Value: v, X: v, Label: strconv.FormatFloat(v, 'f', digits, 64)})
	}
	return out
}

// logTicks places ticks at decades, or at 1-2-5 multiples of decades when
// the domain spans fewer than three decades.
func logTicks(d Domain) []Tick {
	var decades []Tick
	for k := math.Ceil(d.Lo - 1e-9); k <= d.Hi+1e-9; k++ {
		decades = append(decades, logTick(math.Pow(10, k)))
	}
	if len(decades) >= 3 {
		return decades
	}

	var out []Tick
	for k := math.Floor(d.Lo); k <= math.Ceil(d.Hi); k++ {
		for _, m := range []float64{1, 2, 5} {
			t := logTick(m * math.Pow(10, k))
			if t.X >= d.Lo-1e-9 && t.X <= d.Hi+1e-9 {
				out = append(out, t)
			}
		}
	}
	return out
}

func logTick(v float64) Tick {
	digits := max(0, -int(math.Floor(math.Log10(v)+1e-9)))
	v = roundTo(v, digits)
	return Tick{Value: v, X: math.Log10(v), Label: strconv.FormatFloat(v, 'f', digits, 64)}
}

// niceStep returns a 1, 2 or 5 times power of ten step giving about
// target intervals over span.
func niceStep(span float64, target int) float64 {
	raw := span / float64(target)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / mag; {
	case f <= 1:
		return mag
	case f <= 2:
		return 2 * mag
	case f <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// fixedTicks converts caller-supplied tick values.
func fixedTicks(at []float64, tr Transform) []Tick {
	out := make([]Tick, len(at))
	for i, v := range at {
		out[i] = Tick{Value: v, X: tr.Apply(v), Label: strconv.FormatFloat(v, 'g', -1, 64)}
	}
	return out
}
