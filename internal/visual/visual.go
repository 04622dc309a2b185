// Package visual renders treatment-effect comparison figures.
package visual

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/KaramelBytes/surveyate/internal/effect"
)

// Interval is one point estimate with its confidence interval.
type Interval struct {
	Coef float64
	Low  float64
	High float64
}

// Figure is the input of one comparison figure: the unadjusted and adjusted
// estimates on a fixed horizontal range.
type Figure struct {
	Label      string
	XMin, XMax float64
	Unadjusted Interval
	Adjusted   Interval
}

// FromPair builds a figure from a fitted pair.
func FromPair(label string, xmin, xmax float64, p effect.Pair) Figure {
	return Figure{
		Label:      label,
		XMin:       xmin,
		XMax:       xmax,
		Unadjusted: Interval{Coef: p.Unadjusted.Coef, Low: p.Unadjusted.CILow, High: p.Unadjusted.CIHigh},
		Adjusted:   Interval{Coef: p.Adjusted.Coef, Low: p.Adjusted.CILow, High: p.Adjusted.CIHigh},
	}
}

func (f Figure) validate() error {
	if f.Label == "" {
		return fmt.Errorf("figure without a label")
	}
	if !(f.XMin < f.XMax) {
		return fmt.Errorf("figure %q: empty axis [%v, %v]", f.Label, f.XMin, f.XMax)
	}
	return nil
}

// Renderer draws figures in one image format.
type Renderer interface {
	Render(w io.Writer, f Figure) error
	Format() string
}

// FileName is the artifact name for a figure label: the label itself with
// path separators and control characters replaced.
func FileName(label, format string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(label))
	if clean == "" {
		clean = "figure"
	}
	return clean + "." + format
}
