package trainer

import (
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

// savePredictionPlot renders predicted against actual values with the
// identity line and writes it to path. The format follows the extension.
func savePredictionPlot(path string, actual, predicted mat.Vector) error {
	n := actual.Len()
	if predicted.Len() != n {
		return errors.NewDimensionError("savePredictionPlot", n, predicted.Len(), 0)
	}

	pts := make(plotter.XYs, n)
	for i := range pts {
		pts[i].X = actual.AtVec(i)
		pts[i].Y = predicted.AtVec(i)
	}

	p := plot.New()
	p.Title.Text = "Predicted vs actual (test split)"
	p.X.Label.Text = "Actual PRICE ($100,000)"
	p.Y.Label.Text = "Predicted PRICE ($100,000)"
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "build scatter")
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 160}

	identity := plotter.NewFunction(func(x float64) float64 { return x })
	identity.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	identity.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(scatter, identity)
	p.Legend.Add("prediction", scatter)
	p.Legend.Add("y = x", identity)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
