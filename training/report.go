package training

import (
	"io"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/tabpipe/metrics"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// ChartFormat is the image format of the metrics chart.
const ChartFormat = "png"

// WriteChart renders a bar chart of per-class F1 scores to w. The x axis is
// the encoded class label; the title carries accuracy and weighted F1.
func WriteChart(w io.Writer, report *metrics.Report) error {
	if len(report.Classes) == 0 {
		return errors.NewValueError("WriteChart", "report has no classes")
	}

	values := make(plotter.Values, len(report.Classes))
	names := make([]string, len(report.Classes))
	for i, cs := range report.Classes {
		values[i] = cs.F1
		names[i] = strconv.Itoa(cs.Label)
	}

	p := plot.New()
	p.Title.Text = "accuracy " + strconv.FormatFloat(report.Accuracy, 'f', 3, 64) +
		", weighted F1 " + strconv.FormatFloat(report.F1, 'f', 3, 64)
	p.X.Label.Text = "class"
	p.Y.Label.Text = "F1"
	p.Y.Min = 0
	p.Y.Max = 1

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return errors.Wrap(err, "build bar chart")
	}
	p.Add(bars)
	p.NominalX(names...)

	wt, err := p.WriterTo(5*vg.Inch, 3*vg.Inch, ChartFormat)
	if err != nil {
		return errors.Wrap(err, "render chart")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "write chart")
}
