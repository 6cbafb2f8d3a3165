package swing

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Location is a latitude/longitude pair.
type Location struct {
	Lat float64
	Lon float64
}

// Dashboard is the home screen summary.
type Dashboard struct {
	Stats   *UserStats
	Recent  []*Analysis
	Weather *Weather
	Tip     string
}

const recentOnDashboard = 3

// Dashboard loads stats, recent analyses and weather concurrently. Weather is
// optional: a nil location skips it and a failing lookup leaves it nil.
func (l *Library) Dashboard(ctx context.Context, loc *Location) (*Dashboard, error) {
	d := &Dashboard{Tip: l.DailyTip()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := l.Stats(gctx)
		if err != nil {
			return err
		}
		d.Stats = s
		return nil
	})
	g.Go(func() error {
		list, err := l.ListAnalyses(gctx, recentOnDashboard)
		if err != nil {
			return err
		}
		d.Recent = list
		return nil
	})
	if loc != nil {
		g.Go(func() error {
			w, err := l.Weather(gctx, loc.Lat, loc.Lon)
			if err != nil {
				l.logger.Warn("weather unavailable", "error", err)
				return nil
			}
			d.Weather = w
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
