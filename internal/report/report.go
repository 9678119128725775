// Package report renders plots of synthesized trajectories and finished
// tracking sessions: static PNGs via gonum/plot for the trajectory previews,
// and an interactive HTML chart via go-echarts for session pointing error.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sattrack/internal/track"
	"github.com/banshee-data/sattrack/internal/trajectory"
	"github.com/banshee-data/sattrack/internal/units"
)

var (
	azColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	altColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// sampleHz is the plot sampling rate along the trajectory domain.
const sampleHz = 10

// TrajectoryPlots writes three PNGs under outputDir for one synthesized
// trajectory: the sky track (altitude against azimuth), per-axis position
// over time, and per-axis commanded rate over time. The rate plot is the one
// worth checking before a pass: it shows where the mount runs closest to its
// slew limit.
func TrajectoryPlots(traj *trajectory.Trajectory, satellite, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	n := int((traj.End()-traj.Start())*sampleHz) + 1
	skyPts := make(plotter.XYs, 0, n)
	azPos := make(plotter.XYs, 0, n)
	altPos := make(plotter.XYs, 0, n)
	azRate := make(plotter.XYs, 0, n)
	altRate := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		rt := traj.Start() + float64(i)/sampleHz
		st := traj.At(rt)
		skyPts = append(skyPts, plotter.XY{X: st.Azimuth.Position, Y: st.Altitude.Position})
		azPos = append(azPos, plotter.XY{X: rt, Y: st.Azimuth.Position})
		altPos = append(altPos, plotter.XY{X: rt, Y: st.Altitude.Position})
		azRate = append(azRate, plotter.XY{X: rt, Y: units.DegreesToArcsec(st.Azimuth.Velocity)})
		altRate = append(altRate, plotter.XY{X: rt, Y: units.DegreesToArcsec(st.Altitude.Velocity)})
	}

	pSky := plot.New()
	pSky.Title.Text = fmt.Sprintf("%s - Sky Track", satellite)
	pSky.X.Label.Text = "Azimuth (deg, unwrapped)"
	pSky.Y.Label.Text = "Altitude (deg)"
	skyLine, err := plotter.NewLine(skyPts)
	if err != nil {
		return err
	}
	skyLine.Color = azColor
	skyLine.Width = vg.Points(1.5)
	pSky.Add(skyLine)

	pPos := plot.New()
	pPos.Title.Text = fmt.Sprintf("%s - Axis Position", satellite)
	pPos.X.Label.Text = "Trajectory Time (s)"
	pPos.Y.Label.Text = "Position (deg)"

	pRate := plot.New()
	pRate.Title.Text = fmt.Sprintf("%s - Axis Rate", satellite)
	pRate.X.Label.Text = "Trajectory Time (s)"
	pRate.Y.Label.Text = "Rate (arcsec/s)"

	for _, series := range []struct {
		name      string
		pos, rate plotter.XYs
		lineColor color.Color
	}{
		{"azimuth", azPos, azRate, azColor},
		{"altitude", altPos, altRate, altColor},
	} {
		posLine, err := plotter.NewLine(series.pos)
		if err != nil {
			return err
		}
		posLine.Color = series.lineColor
		posLine.Width = vg.Points(1)
		pPos.Add(posLine)
		pPos.Legend.Add(series.name, posLine)

		rateLine, err := plotter.NewLine(series.rate)
		if err != nil {
			return err
		}
		rateLine.Color = series.lineColor
		rateLine.Width = vg.Points(1)
		pRate.Add(rateLine)
		pRate.Legend.Add(series.name, rateLine)
	}

	pPos.Legend.Top = true
	pRate.Legend.Top = true

	if err := pSky.Save(8*vg.Inch, 8*vg.Inch, filepath.Join(outputDir, "sky_track.png")); err != nil {
		return fmt.Errorf("save sky track plot: %w", err)
	}
	if err := pPos.Save(10*vg.Inch, 5*vg.Inch, filepath.Join(outputDir, "axis_position.png")); err != nil {
		return fmt.Errorf("save position plot: %w", err)
	}
	if err := pRate.Save(10*vg.Inch, 5*vg.Inch, filepath.Join(outputDir, "axis_rate.png")); err != nil {
		return fmt.Errorf("save rate plot: %w", err)
	}
	return nil
}

// SessionChart writes an interactive HTML chart of a session's pointing
// error against trajectory time.
func SessionChart(s *track.Session, path string) error {
	x := make([]string, 0, len(s.Errors))
	azData := make([]opts.LineData, 0, len(s.Errors))
	altData := make([]opts.LineData, 0, len(s.Errors))
	for _, e := range s.Errors {
		x = append(x, fmt.Sprintf("%.1f", e.RelTime))
		azData = append(azData, opts.LineData{Value: e.AzError})
		altData = append(altData, opts.LineData{Value: e.AltError})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracking Session " + s.ID.String(), Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s - Pointing Error", s.Satellite),
			Subtitle: fmt.Sprintf("session=%s started=%s loops=%d overruns=%d", s.ID, s.StartedAt.Format(time.RFC3339), s.Loops, s.Overruns),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Trajectory Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Error (deg)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x).
		AddSeries("azimuth", azData).
		AddSeries("altitude", altData)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create session chart: %w", err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return fmt.Errorf("render session chart: %w", err)
	}
	return nil
}
