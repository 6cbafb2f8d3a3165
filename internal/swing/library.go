package swing

import (
	"context"
	"fmt"
	"time"
)

const (
	// listPageSize is how many analyses one list read fetches and caches.
	listPageSize = 50

	// DefaultPlaybackURLExpiry bounds signed playback URLs.
	DefaultPlaybackURLExpiry = time.Hour
)

// LibraryDeps groups the collaborators of a Library. Cache may be nil.
type LibraryDeps struct {
	Analyses AnalysisRepository
	Profiles ProfileRepository
	Stats    StatsService
	Weather  WeatherService
	Storage  Storage
	Sessions SessionSource
	Cache    *Cache
	Clock    Clock
	Logger   Logger
}

// Library serves the signed-in user's reads and edits of analyses, profile,
// stats and conditions, going through the cache where a TTL applies.
type Library struct {
	analyses  AnalysisRepository
	profiles  ProfileRepository
	stats     StatsService
	weather   WeatherService
	storage   Storage
	sessions  SessionSource
	cache     *Cache
	clock     Clock
	logger    Logger
	urlExpiry time.Duration
}

// NewLibrary creates a Library.
func NewLibrary(deps LibraryDeps) *Library {
	logger := deps.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Library{
		analyses:  deps.Analyses,
		profiles:  deps.Profiles,
		stats:     deps.Stats,
		weather:   deps.Weather,
		storage:   deps.Storage,
		sessions:  deps.Sessions,
		cache:     deps.Cache,
		clock:     deps.Clock,
		logger:    logger,
		urlExpiry: DefaultPlaybackURLExpiry,
	}
}

// SetPlaybackURLExpiry overrides DefaultPlaybackURLExpiry.
func (l *Library) SetPlaybackURLExpiry(d time.Duration) {
	if d > 0 {
		l.urlExpiry = d
	}
}

func (l *Library) userID() (string, error) {
	if l.sessions == nil {
		return "", NewError(KindPermissionDenied, "not signed in")
	}
	s := l.sessions.Session()
	if s == nil {
		return "", NewError(KindPermissionDenied, "not signed in")
	}
	return s.User.ID, nil
}

// ListAnalyses returns up to limit of the user's analyses, newest first.
func (l *Library) ListAnalyses(ctx context.Context, limit int) ([]*Analysis, error) {
	uid, err := l.userID()
	if err != nil {
		return nil, err
	}
	list, err := ReadThrough(l.cache, CacheAnalyses, uid, func() ([]*Analysis, error) {
		return l.analyses.ListAnalyses(ctx, uid, listPageSize)
	})
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// GetAnalysis returns the analysis, or a KindFileNotFound error if it does
// not exist or belongs to someone else.
func (l *Library) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	uid, err := l.userID()
	if err != nil {
		return nil, err
	}
	a, err := l.analyses.GetAnalysis(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting analysis %s: %w", id, err)
	}
	if a == nil || a.UserID != uid {
		return nil, NewError(KindFileNotFound, "analysis %s not found", id)
	}
	return a, nil
}

// DeleteAnalysis removes the stored video first, then the analysis row,
// then the user's cached data.
func (l *Library) DeleteAnalysis(ctx context.Context, id string) error {
	a, err := l.GetAnalysis(ctx, id)
	if err != nil {
		return err
	}

	if a.VideoPath != "" {
		if err := l.storage.Delete(ctx, a.VideoPath); err != nil {
			return fmt.Errorf("deleting video %s: %w", a.VideoPath, err)
		}
	}
	if err := l.analyses.DeleteAnalysis(ctx, id); err != nil {
		return fmt.Errorf("deleting analysis %s: %w", id, err)
	}
	if l.cache != nil {
		if err := l.cache.OnAnalysisDeleted(a.UserID); err != nil {
			l.logger.Warn("cache invalidation failed", "error", err)
		}
	}
	l.logger.Info("analysis deleted", "analysis_id", id)
	return nil
}

// PlaybackURL returns a fresh signed URL for the analysis video. URLs are
// never cached.
func (l *Library) PlaybackURL(ctx context.Context, id string) (string, error) {
	a, err := l.GetAnalysis(ctx, id)
	if err != nil {
		return "", err
	}
	if a.VideoPath == "" {
		return "", NewError(KindFileNotFound, "analysis %s has no video", id)
	}
	url, err := l.storage.SignedURL(ctx, a.VideoPath, l.urlExpiry)
	if err != nil {
		return "", fmt.Errorf("signing playback url: %w", err)
	}
	return url, nil
}

// Profile returns the user's profile, or nil if none exists yet.
func (l *Library) Profile(ctx context.Context) (*Profile, error) {
	uid, err := l.userID()
	if err != nil {
		return nil, err
	}
	p, err := ReadThrough(l.cache, CacheProfile, uid, func() (*Profile, error) {
		return l.profiles.GetProfile(ctx, uid)
	})
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

// UpdateProfile applies update and invalidates the user's cached data.
func (l *Library) UpdateProfile(ctx context.Context, update *ProfileUpdate) (*Profile, error) {
	uid, err := l.userID()
	if err != nil {
		return nil, err
	}
	p, err := l.profiles.UpdateProfile(ctx, uid, update)
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	if l.cache != nil {
		if err := l.cache.OnProfileUpdated(uid); err != nil {
			l.logger.Warn("cache invalidation failed", "error", err)
		}
	}
	return p, nil
}

// Stats returns the user's aggregate stats.
func (l *Library) Stats(ctx context.Context) (*UserStats, error) {
	uid, err := l.userID()
	if err != nil {
		return nil, err
	}
	s, err := ReadThrough(l.cache, CacheUserStats, uid, func() (*UserStats, error) {
		return l.stats.GetUserStats(ctx, uid)
	})
	if err != nil {
		return nil, fmt.Errorf("getting user stats: %w", err)
	}
	return s, nil
}

// Weather returns current conditions at lat/lon. Entries are scoped to the
// location rounded to two decimals.
func (l *Library) Weather(ctx context.Context, lat, lon float64) (*Weather, error) {
	scope := fmt.Sprintf("%.2f,%.2f", lat, lon)
	w, err := ReadThrough(l.cache, CacheWeather, scope, func() (*Weather, error) {
		return l.weather.CurrentWeather(ctx, lat, lon)
	})
	if err != nil {
		return nil, fmt.Errorf("getting weather: %w", err)
	}
	return w, nil
}

// DailyTip returns today's coaching tip.
func (l *Library) DailyTip() string {
	now := l.clock.Now()
	today := now.Format(time.DateOnly)

	if l.cache != nil {
		var cached dailyTip
		if ok, err := l.cache.Get(CacheDailyTip, "", &cached); err != nil {
			l.logger.Warn("cache read failed", "kind", string(CacheDailyTip), "error", err)
		} else if ok && cached.Date == today {
			return cached.Tip
		}
	}

	tip := TipFor(now)
	if l.cache != nil {
		if err := l.cache.Set(CacheDailyTip, "", dailyTip{Date: today, Tip: tip}); err != nil {
			l.logger.Warn("cache write failed", "kind", string(CacheDailyTip), "error", err)
		}
	}
	return tip
}

type dailyTip struct {
	Date string `json:"date"`
	Tip  string `json:"tip"`
}
