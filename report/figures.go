package report

import (
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/readmit/inspection"
	"github.com/YuminosukeSato/readmit/metrics"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/pipeline"
)

// Sequential ColorBrewer palettes used for the confusion-matrix heat maps.
const (
	PaletteBlues = "Blues"
	PaletteReds  = "Reds"
)

const paletteSize = 9

// PaletteFor returns the heat map palette of a model kind.
func PaletteFor(kind pipeline.ModelKind) string {
	if kind == pipeline.BoostedTrees {
		return PaletteBlues
	}
	return PaletteReds
}

// confusionGrid adapts a confusion matrix to plotter.GridXYZ. Grid row 0 is
// drawn at the bottom, so rows are flipped to put the first label on top.
type confusionGrid struct {
	cm  [][]int
	max float64
}

func newConfusionGrid(cm [][]int) confusionGrid {
	m := 1
	for _, row := range cm {
		for _, v := range row {
			m = max(m, v)
		}
	}
	return confusionGrid{cm: cm, max: float64(m)}
}

func (g confusionGrid) Dims() (c, r int)   { return len(g.cm), len(g.cm) }
func (g confusionGrid) Z(c, r int) float64 { return float64(g.cm[len(g.cm)-1-r][c]) }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }
func (g confusionGrid) Min() float64       { return 0 }
func (g confusionGrid) Max() float64       { return g.max }

// SaveConfusionMatrix draws rep's confusion matrix as an annotated heat map
// (x = predicted, y = true) and saves it to path. The image format follows
// the file extension.
func SaveConfusionMatrix(path, title string, rep *metrics.Report, paletteName string) error {
	n := len(rep.Labels)
	if n == 0 {
		return perrors.NewValidationError("confusion_matrix", "must have at least one label", n)
	}
	pal, err := brewer.GetPalette(brewer.TypeSequential, paletteName, paletteSize)
	if err != nil {
		return perrors.Wrapf(err, "palette %q", paletteName)
	}

	grid := newConfusionGrid(rep.ConfusionMatrix)
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s\nACC: %.2f%%  F1: %.2f%%", title, rep.Accuracy*100, rep.WeightedF1*100)
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "True"
	p.Add(plotter.NewHeatMap(grid, pal))

	counts, err := countLabels(grid)
	if err != nil {
		return err
	}
	p.Add(counts)

	names := make([]string, n)
	for i, l := range rep.Labels {
		names[i] = rep.Classification.LabelName(l)
	}
	p.NominalX(names...)
	flipped := make([]string, n)
	for i := range names {
		flipped[i] = names[n-1-i]
	}
	p.NominalY(flipped...)

	if err := p.Save(4*vg.Inch, 4*vg.Inch, path); err != nil {
		return perrors.Wrapf(err, "save %s", path)
	}
	return nil
}

// countLabels annotates every cell with its count, in white on the darker
// half of the color range.
func countLabels(g confusionGrid) (*plotter.Labels, error) {
	c, r := g.Dims()
	xyl := plotter.XYLabels{
		XYs:    make(plotter.XYs, 0, c*r),
		Labels: make([]string, 0, c*r),
	}
	for j := 0; j < r; j++ {
		for i := 0; i < c; i++ {
			xyl.XYs = append(xyl.XYs, plotter.XY{X: g.X(i), Y: g.Y(j)})
			xyl.Labels = append(xyl.Labels, strconv.Itoa(int(g.Z(i, j))))
		}
	}
	labels, err := plotter.NewLabels(xyl)
	if err != nil {
		return nil, perrors.Wrap(err, "confusion matrix labels")
	}
	for k := range labels.TextStyle {
		labels.TextStyle[k].XAlign = text.XCenter
		labels.TextStyle[k].YAlign = text.YCenter
		labels.TextStyle[k].Color = color.Black
		if g.Z(k%c, k/c) > g.max/2 {
			labels.TextStyle[k].Color = color.White
		}
	}
	return labels, nil
}

// SaveImportanceChart draws ranking as a horizontal bar chart. ranking is
// expected in ascending order so the most important feature ends up on top.
func SaveImportanceChart(path, title string, ranking []inspection.FeatureScore) error {
	if len(ranking) == 0 {
		return perrors.NewValidationError("ranking", "must not be empty", 0)
	}
	values := make(plotter.Values, len(ranking))
	names := make([]string, len(ranking))
	for i, fs := range ranking {
		values[i] = fs.Score
		names[i] = fs.Name
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Importance"
	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return perrors.Wrap(err, "importance bars")
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 31, G: 119, B: 180, A: 204}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(names...)

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return perrors.Wrapf(err, "save %s", path)
	}
	return nil
}
