package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kestrelhq/kestrel/internal/config"
)

const openWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// forecastEntries is how many 3-hour forecast slots make up the 24-hour
// outlook.
const forecastEntries = 8

// weatherTool fetches current conditions and the short-range forecast
// from OpenWeatherMap. It is stateless; each execution performs two
// sequential API calls sharing the same location parameters.
type weatherTool struct {
	apiKey    string
	location  string
	latitude  *float64
	longitude *float64
	units     string
	language  string

	baseURL string
	client  *http.Client
}

func newWeatherTool(cfg config.ToolConfig) (*weatherTool, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("weather tool requires api_key")
	}
	hasCoords := cfg.Latitude != nil && cfg.Longitude != nil
	if cfg.Location == "" && !hasCoords {
		return nil, errors.New("weather tool requires either location or both latitude and longitude")
	}
	if cfg.Location != "" && hasCoords {
		return nil, errors.New("weather tool accepts location or latitude/longitude, not both")
	}

	units := cfg.Units
	if units == "" {
		units = "imperial"
	}
	language := cfg.Language
	if language == "" {
		language = "en"
	}

	return &weatherTool{
		apiKey:    cfg.APIKey,
		location:  cfg.Location,
		latitude:  cfg.Latitude,
		longitude: cfg.Longitude,
		units:     units,
		language:  language,
		baseURL:   openWeatherBaseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (t *weatherTool) Name() string {
	return "Weather"
}

// Execute fetches and formats the weather report. Transport failures are
// converted to a readable error string so enrichment degrades instead of
// blocking the request.
func (t *weatherTool) Execute(ctx context.Context, _ Context) (string, error) {
	current, err := t.fetchCurrent(ctx)
	if err != nil {
		return fmt.Sprintf("Error: Could not fetch weather data - %v", err), nil
	}
	forecast, err := t.fetchForecast(ctx)
	if err != nil {
		return fmt.Sprintf("Error: Could not fetch weather data - %v", err), nil
	}
	return t.formatReport(current, forecast), nil
}

type currentConditions struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type forecastData struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

func (t *weatherTool) fetchCurrent(ctx context.Context) (*currentConditions, error) {
	var current currentConditions
	if err := t.get(ctx, "/weather", &current); err != nil {
		return nil, err
	}
	return &current, nil
}

func (t *weatherTool) fetchForecast(ctx context.Context) (*forecastData, error) {
	var forecast forecastData
	if err := t.get(ctx, "/forecast", &forecast); err != nil {
		return nil, err
	}
	return &forecast, nil
}

func (t *weatherTool) get(ctx context.Context, path string, out any) error {
	params, err := t.locationParams()
	if err != nil {
		return err
	}
	params.Set("appid", t.apiKey)
	params.Set("units", t.units)
	params.Set("lang", t.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openweathermap returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// locationParams rebuilds the location query each call, re-checking the
// invariant that exactly one location form is configured.
func (t *weatherTool) locationParams() (url.Values, error) {
	params := url.Values{}
	switch {
	case t.latitude != nil && t.longitude != nil:
		params.Set("lat", strconv.FormatFloat(*t.latitude, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(*t.longitude, 'f', -1, 64))
	case t.location != "":
		params.Set("q", t.location)
	default:
		return nil, errors.New("no location configured")
	}
	return params, nil
}

func (t *weatherTool) formatReport(current *currentConditions, forecast *forecastData) string {
	tempUnit, speedUnit := "°C", "m/s"
	if t.units == "imperial" {
		tempUnit, speedUnit = "°F", "mph"
	}

	condition := ""
	if len(current.Weather) > 0 {
		condition = current.Weather[0].Description
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT WEATHER for %s:\n", current.Name)
	fmt.Fprintf(&b, "- Temperature: %.1f%s (feels like %.1f%s)\n",
		current.Main.Temp, tempUnit, current.Main.FeelsLike, tempUnit)
	fmt.Fprintf(&b, "- Conditions: %s\n", condition)
	fmt.Fprintf(&b, "- Humidity: %d%%\n", current.Main.Humidity)
	fmt.Fprintf(&b, "- Wind Speed: %.1f %s\n", current.Wind.Speed, speedUnit)

	b.WriteString("\nFORECAST (Next 24 hours):\n")
	entries := forecast.List
	if len(entries) > forecastEntries {
		entries = entries[:forecastEntries]
	}
	for _, entry := range entries {
		desc := ""
		if len(entry.Weather) > 0 {
			desc = entry.Weather[0].Description
		}
		local := time.Unix(entry.Dt, 0).Format("03:04 PM")
		fmt.Fprintf(&b, "- %s: %.1f%s, %s\n", local, entry.Main.Temp, tempUnit, desc)
	}
	return b.String()
}
