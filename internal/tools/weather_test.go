package tools

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kestrelhq/kestrel/internal/config"
)

func newTestWeatherTool(t *testing.T, cfg config.ToolConfig, server *httptest.Server) *weatherTool {
	t.Helper()
	tool, err := newWeatherTool(cfg)
	if err != nil {
		t.Fatalf("newWeatherTool() error = %v", err)
	}
	tool.baseURL = server.URL
	tool.client = server.Client()
	return tool
}

func TestWeatherToolConstruction(t *testing.T) {
	lat, lon := 42.36, -71.06

	tests := []struct {
		name    string
		cfg     config.ToolConfig
		wantErr bool
	}{
		{
			name: "location form",
			cfg:  config.ToolConfig{Type: config.ToolWeather, APIKey: "k", Location: "Boston,US"},
		},
		{
			name: "coordinate form",
			cfg:  config.ToolConfig{Type: config.ToolWeather, APIKey: "k", Latitude: &lat, Longitude: &lon},
		},
		{
			name:    "missing api key",
			cfg:     config.ToolConfig{Type: config.ToolWeather, Location: "Boston,US"},
			wantErr: true,
		},
		{
			name:    "no location form",
			cfg:     config.ToolConfig{Type: config.ToolWeather, APIKey: "k"},
			wantErr: true,
		},
		{
			name:    "both location forms",
			cfg:     config.ToolConfig{Type: config.ToolWeather, APIKey: "k", Location: "Boston,US", Latitude: &lat, Longitude: &lon},
			wantErr: true,
		},
		{
			name:    "latitude without longitude",
			cfg:     config.ToolConfig{Type: config.ToolWeather, APIKey: "k", Latitude: &lat},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newWeatherTool(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("newWeatherTool() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWeatherToolExecute(t *testing.T) {
	var gotQueries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQueries = append(gotQueries, r.URL.RawQuery)
		switch r.URL.Path {
		case "/weather":
			fmt.Fprint(w, `{
				"name": "Boston",
				"main": {"temp": 72.5, "feels_like": 70.1, "humidity": 55},
				"weather": [{"description": "scattered clouds"}],
				"wind": {"speed": 8.3}
			}`)
		case "/forecast":
			fmt.Fprint(w, `{"list": [
				{"dt": 1700000000, "main": {"temp": 68.0}, "weather": [{"description": "light rain"}]},
				{"dt": 1700010800, "main": {"temp": 65.5}, "weather": [{"description": "clear sky"}]}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tool := newTestWeatherTool(t, config.ToolConfig{
		Type:     config.ToolWeather,
		APIKey:   "owm-key",
		Location: "Boston,US",
		Units:    "imperial",
	}, server)

	out, err := tool.Execute(t.Context(), Context{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	wantLines := []string{
		"CURRENT WEATHER for Boston:",
		"- Temperature: 72.5°F (feels like 70.1°F)",
		"- Conditions: scattered clouds",
		"- Humidity: 55%",
		"- Wind Speed: 8.3 mph",
		"FORECAST (Next 24 hours):",
		fmt.Sprintf("- %s: 68.0°F, light rain", time.Unix(1700000000, 0).Format("03:04 PM")),
	}
	for _, want := range wantLines {
		if !strings.Contains(out, want) {
			t.Errorf("Execute() output missing %q\ngot:\n%s", want, out)
		}
	}

	if len(gotQueries) != 2 {
		t.Fatalf("got %d API calls, want 2", len(gotQueries))
	}
	for _, q := range gotQueries {
		for _, want := range []string{"appid=owm-key", "q=Boston%2CUS", "units=imperial", "lang=en"} {
			if !strings.Contains(q, want) {
				t.Errorf("query %q missing %q", q, want)
			}
		}
	}
}

func TestWeatherToolMetricUnits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/weather":
			fmt.Fprint(w, `{"name": "Berlin", "main": {"temp": 18.2, "feels_like": 17.0, "humidity": 60}, "weather": [{"description": "overcast"}], "wind": {"speed": 3.1}}`)
		default:
			fmt.Fprint(w, `{"list": []}`)
		}
	}))
	defer server.Close()

	tool := newTestWeatherTool(t, config.ToolConfig{
		Type:     config.ToolWeather,
		APIKey:   "k",
		Location: "Berlin,DE",
		Units:    "metric",
	}, server)

	out, err := tool.Execute(t.Context(), Context{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "18.2°C") {
		t.Errorf("output missing celsius temperature:\n%s", out)
	}
	if !strings.Contains(out, "3.1 m/s") {
		t.Errorf("output missing m/s wind speed:\n%s", out)
	}
}

func TestWeatherToolForecastCap(t *testing.T) {
	var entries []string
	for i := 0; i < 12; i++ {
		entries = append(entries, fmt.Sprintf(`{"dt": %d, "main": {"temp": 60.0}, "weather": [{"description": "clear"}]}`, 1700000000+i*10800))
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/weather":
			fmt.Fprint(w, `{"name": "X", "main": {}, "weather": [], "wind": {}}`)
		default:
			fmt.Fprintf(w, `{"list": [%s]}`, strings.Join(entries, ","))
		}
	}))
	defer server.Close()

	tool := newTestWeatherTool(t, config.ToolConfig{
		Type: config.ToolWeather, APIKey: "k", Location: "X",
	}, server)

	out, err := tool.Execute(t.Context(), Context{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.Count(out, "clear"); got != forecastEntries {
		t.Errorf("forecast entries = %d, want %d", got, forecastEntries)
	}
}

func TestWeatherToolFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	tool := newTestWeatherTool(t, config.ToolConfig{
		Type: config.ToolWeather, APIKey: "bad", Location: "X",
	}, server)

	out, err := tool.Execute(t.Context(), Context{})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil (degraded output)", err)
	}
	if !strings.HasPrefix(out, "Error: Could not fetch weather data - ") {
		t.Errorf("Execute() = %q, want degraded error text", out)
	}
	if !strings.Contains(out, "401") {
		t.Errorf("Execute() = %q, want HTTP status in error text", out)
	}
}
