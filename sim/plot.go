package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	slam "github.com/milosgajdos/go-slam"
)

// New2DPlot creates a new plot of a SLAM run from three path data sources
// and the estimated landmark map:
// truth:    ground truth robot path
// odom:     dead reckoning odometry path
// filtered: SLAM filter path
// Each path matrix stores one (x, y) point per row.
// It returns error if either of the supplied path matrices is nil, has
// fewer than 2 columns, or the gonum plot fails to be created.
func New2DPlot(truth, odom, filtered *mat.Dense, landmarks []slam.Landmark) (*plot.Plot, error) {
	if truth == nil || odom == nil || filtered == nil {
		return nil, fmt.Errorf("invalid path data supplied")
	}

	for _, m := range []*mat.Dense{truth, odom, filtered} {
		if _, c := m.Dims(); c < 2 {
			return nil, fmt.Errorf("invalid path data dimensions")
		}
	}

	p := plot.New()

	p.Title.Text = "SLAM"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	truthLine, err := plotter.NewLine(makePoints(truth))
	if err != nil {
		return nil, err
	}
	truthLine.Color = color.RGBA{R: 255, A: 255}

	p.Add(truthLine)
	p.Legend.Add("truth", truthLine)

	odomLine, err := plotter.NewLine(makePoints(odom))
	if err != nil {
		return nil, err
	}
	odomLine.Color = color.RGBA{B: 255, A: 255}

	p.Add(odomLine)
	p.Legend.Add("odometry", odomLine)

	filteredLine, err := plotter.NewLine(makePoints(filtered))
	if err != nil {
		return nil, fmt.Errorf("failed to create line: %v", err)
	}
	filteredLine.Color = color.RGBA{G: 180, A: 255}

	p.Add(filteredLine)
	p.Legend.Add("slam", filteredLine)

	lmData := make(plotter.XYs, len(landmarks))
	for i, lm := range landmarks {
		lmData[i].X = lm.X
		lmData[i].Y = lm.Y
	}
	lmScatter, err := plotter.NewScatter(lmData)
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %v", err)
	}
	lmScatter.GlyphStyle.Color = color.RGBA{R: 169, G: 169, B: 169, A: 255}
	lmScatter.Shape = draw.CircleGlyph{}
	lmScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(lmScatter)
	p.Legend.Add("map", lmScatter)

	return p, nil
}

func makePoints(m *mat.Dense) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = m.At(i, 0)
		pts[i].Y = m.At(i, 1)
	}

	return pts
}
