package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"

	"myswing/internal/swing"
)

// FakeRecords is an in-memory backend for analyses, profiles and stats.
// Each call is counted so tests can observe cache hits.
type FakeRecords struct {
	mu       sync.Mutex
	analyses []*swing.Analysis
	profiles map[string]*swing.Profile
	stats    map[string]*swing.UserStats
	calls    map[string]int

	// StatsErr, when set, is returned by GetUserStats.
	StatsErr error
}

func NewFakeRecords() *FakeRecords {
	return &FakeRecords{
		profiles: make(map[string]*swing.Profile),
		stats:    make(map[string]*swing.UserStats),
		calls:    make(map[string]int),
	}
}

// AddAnalysis stores a. Analyses are listed in insertion order, newest last.
func (f *FakeRecords) AddAnalysis(a *swing.Analysis) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses = append(f.analyses, a)
}

func (f *FakeRecords) SetProfile(p *swing.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.ID] = p
}

func (f *FakeRecords) SetStats(userID string, s *swing.UserStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[userID] = s
}

// Calls returns how many times the named method was called.
func (f *FakeRecords) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeRecords) ListAnalyses(ctx context.Context, userID string, limit int) ([]*swing.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListAnalyses"]++
	var out []*swing.Analysis
	for _, a := range slices.Backward(f.analyses) {
		if a.UserID != userID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *FakeRecords) GetAnalysis(ctx context.Context, id string) (*swing.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetAnalysis"]++
	for _, a := range f.analyses {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (f *FakeRecords) DeleteAnalysis(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteAnalysis"]++
	f.analyses = slices.DeleteFunc(f.analyses, func(a *swing.Analysis) bool { return a.ID == id })
	return nil
}

func (f *FakeRecords) GetProfile(ctx context.Context, userID string) (*swing.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetProfile"]++
	return f.profiles[userID], nil
}

func (f *FakeRecords) UpdateProfile(ctx context.Context, userID string, update *swing.ProfileUpdate) (*swing.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateProfile"]++
	p, ok := f.profiles[userID]
	if !ok {
		p = &swing.Profile{ID: userID}
		f.profiles[userID] = p
	}
	if update.DisplayName != nil {
		p.DisplayName = *update.DisplayName
	}
	if update.Handicap != nil {
		p.Handicap = update.Handicap
	}
	if update.DominantHand != nil {
		p.DominantHand = *update.DominantHand
	}
	cp := *p
	return &cp, nil
}

func (f *FakeRecords) GetUserStats(ctx context.Context, userID string) (*swing.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetUserStats"]++
	if f.StatsErr != nil {
		return nil, f.StatsErr
	}
	s, ok := f.stats[userID]
	if !ok {
		return &swing.UserStats{}, nil
	}
	return s, nil
}

var (
	_ swing.AnalysisRepository = (*FakeRecords)(nil)
	_ swing.ProfileRepository  = (*FakeRecords)(nil)
	_ swing.StatsService       = (*FakeRecords)(nil)
)

// FakeWeather returns fixed conditions, or Err.
type FakeWeather struct {
	W   *swing.Weather
	Err error

	mu    sync.Mutex
	calls int
}

func (f *FakeWeather) CurrentWeather(ctx context.Context, lat, lon float64) (*swing.Weather, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	if f.W == nil {
		return nil, errors.New("no weather configured")
	}
	return f.W, nil
}

func (f *FakeWeather) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var _ swing.WeatherService = (*FakeWeather)(nil)
