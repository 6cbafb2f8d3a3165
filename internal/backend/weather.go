package backend

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"myswing/internal/swing"
)

// WeatherClient reads current conditions from an Open-Meteo compatible API.
type WeatherClient struct {
	http *resty.Client
	url  string
}

// NewWeatherClient creates a WeatherClient for the forecast endpoint url.
func NewWeatherClient(url string) *WeatherClient {
	return &WeatherClient{
		http: resty.New().
			SetHeader("User-Agent", "myswing/1.0").
			SetTimeout(10 * time.Second),
		url: url,
	}
}

type forecastResponse struct {
	Current struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// CurrentWeather returns the current conditions at lat/lon.
func (w *WeatherClient) CurrentWeather(ctx context.Context, lat, lon float64) (*swing.Weather, error) {
	var out forecastResponse
	resp, err := w.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":  strconv.FormatFloat(lat, 'f', 4, 64),
			"longitude": strconv.FormatFloat(lon, 'f', 4, 64),
			"current":   "temperature_2m,wind_speed_10m,weather_code",
			"timezone":  "UTC",
		}).
		SetResult(&out).
		Get(w.url)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("weather: status %d: %s", resp.StatusCode(), errorMessage(resp.Body()))
	}

	observed, err := time.Parse("2006-01-02T15:04", out.Current.Time)
	if err != nil {
		observed = time.Time{}
	}
	return &swing.Weather{
		TemperatureC: out.Current.Temperature,
		WindSpeedKmh: out.Current.WindSpeed,
		WeatherCode:  out.Current.WeatherCode,
		ObservedAt:   observed,
	}, nil
}

var _ swing.WeatherService = (*WeatherClient)(nil)
