package visual

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Formats lists the image formats the plot renderer writes.
var Formats = []string{"png", "svg"}

var (
	black     = color.Black
	lightGray = color.RGBA{R: 211, G: 211, B: 211, A: 255}
	red       = color.RGBA{R: 255, A: 255}
)

// Row positions of the two estimates.
const (
	unadjustedY = 2
	adjustedY   = 1
)

// Plot renders figures with gonum/plot.
type Plot struct {
	format string
	width  vg.Length
	height vg.Length
}

// NewPlot returns a renderer for format ("png" or "svg") at the given size
// in inches. Non-positive sizes fall back to 6.4x4.8.
func NewPlot(format string, widthIn, heightIn float64) (*Plot, error) {
	ok := false
	for _, f := range Formats {
		if f == format {
			ok = true
		}
	}
	if !ok {
		return nil, fmt.Errorf("unsupported figure format %q", format)
	}
	if widthIn <= 0 {
		widthIn = 6.4
	}
	if heightIn <= 0 {
		heightIn = 4.8
	}
	return &Plot{format: format, width: vg.Length(widthIn) * vg.Inch, height: vg.Length(heightIn) * vg.Inch}, nil
}

func (r *Plot) Format() string { return r.format }

// Render draws the two estimates at fixed heights with horizontal interval
// bars, a dashed reference line at zero and a legend. Bars are clipped to
// the axis range; a point estimate outside it is not drawn.
func (r *Plot) Render(w io.Writer, f Figure) error {
	if err := f.validate(); err != nil {
		return err
	}
	p := plot.New()
	p.Title.Text = f.Label
	p.Y.Label.Text = "ATE"

	rows := []struct {
		name  string
		iv    Interval
		y     float64
		shape draw.GlyphDrawer
		col   color.Color
	}{
		{"Without Covariates", f.Unadjusted, unadjustedY, draw.CircleGlyph{}, black},
		{"With Covariates", f.Adjusted, adjustedY, draw.BoxGlyph{}, lightGray},
	}
	for _, row := range rows {
		lo, hi := clip(row.iv.Low, f.XMin, f.XMax), clip(row.iv.High, f.XMin, f.XMax)
		if lo < hi {
			bar, err := plotter.NewLine(plotter.XYs{{X: lo, Y: row.y}, {X: hi, Y: row.y}})
			if err != nil {
				return fmt.Errorf("interval %s: %w", row.name, err)
			}
			bar.LineStyle.Color = row.col
			bar.LineStyle.Width = vg.Points(1.5)
			p.Add(bar)
		}
		pt := plotter.XYs{{X: row.iv.Coef, Y: row.y}}
		if row.iv.Coef < f.XMin || row.iv.Coef > f.XMax || math.IsNaN(row.iv.Coef) {
			pt = plotter.XYs{}
		}
		sc, err := plotter.NewScatter(pt)
		if err != nil {
			return fmt.Errorf("estimate %s: %w", row.name, err)
		}
		sc.GlyphStyle.Shape = row.shape
		sc.GlyphStyle.Color = row.col
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add(row.name, sc)
	}

	zero, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 0, Y: 3}})
	if err != nil {
		return fmt.Errorf("reference line: %w", err)
	}
	zero.LineStyle.Color = red
	zero.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	if f.XMin <= 0 && f.XMax >= 0 {
		p.Add(zero)
	}

	p.X.Min, p.X.Max = f.XMin, f.XMax
	p.Y.Min, p.Y.Max = 0, 3
	p.HideY()
	p.Legend.Left = false
	p.Legend.Top = false

	wt, err := p.WriterTo(r.width, r.height, r.format)
	if err != nil {
		return fmt.Errorf("render %q: %w", f.Label, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write %q: %w", f.Label, err)
	}
	return nil
}

func clip(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
