package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/adapters/primary/rest"
	"github.com/sean-rowe/city-weather-service/internal/adapters/secondary/openweather"
	"github.com/sean-rowe/city-weather-service/internal/app"
	"github.com/sean-rowe/city-weather-service/internal/core/services"
	"github.com/sean-rowe/city-weather-service/internal/infrastructure/database"
	"github.com/sean-rowe/city-weather-service/internal/resilience"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{".."},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

// fakeProvider imitates the OpenWeather current weather endpoint.
type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	failures []int
	celsius  float64
	offset   int
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++

	if len(p.failures) > 0 {
		status := p.failures[0]
		p.failures = p.failures[1:]
		w.WriteHeader(status)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{
		"weather": [{"main": "Clouds", "description": "scattered clouds"}],
		"main": {"temp": %g, "humidity": 60},
		"wind": {"speed": 2.5},
		"sys": {"sunrise": 1714554000, "sunset": 1714595000},
		"timezone": %d
	}`, p.celsius, p.offset)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls
}

type testContext struct {
	provider *fakeProvider
	upstream *httptest.Server
	server   *httptest.Server
	retries  int

	response     *http.Response
	responseBody map[string]interface{}
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &testContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*tc = testContext{
			provider: &fakeProvider{celsius: 20},
		}

		return ctx, nil
	})

	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if tc.server != nil {
			tc.server.Close()
		}

		if tc.upstream != nil {
			tc.upstream.Close()
		}

		return ctx, nil
	})

	ctx.Step(`^the weather service is running$`, tc.theWeatherServiceIsRunning)
	ctx.Step(`^the provider allows (\d+) retries$`, tc.theProviderAllowsRetries)
	ctx.Step(`^the provider reports (-?\d+) degrees Celsius$`, tc.theProviderReportsCelsius)
	ctx.Step(`^the provider reports a UTC offset of (-?\d+) hours$`, tc.theProviderReportsOffset)
	ctx.Step(`^the provider fails (\d+) times with status (\d+)$`, tc.theProviderFails)

	ctx.Step(`^I request weather for latitude ([\-\d.]+) and longitude ([\-\d.]+)$`, tc.iRequestWeatherForCoordinates)
	ctx.Step(`^I request weather without coordinates$`, tc.iRequestWeatherWithoutCoordinates)
	ctx.Step(`^I look up the city "([^"]*)"$`, tc.iLookUpTheCity)
	ctx.Step(`^I request the weather for the city "([^"]*)"$`, tc.iRequestTheWeatherForTheCity)

	ctx.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the response should contain a forecast$`, tc.theResponseShouldContainForecast)
	ctx.Step(`^the temperature category should be "([^"]*)"$`, tc.theTemperatureCategoryShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, tc.theErrorCodeShouldBe)
	ctx.Step(`^the error message should contain "([^"]*)"$`, tc.theErrorMessageShouldContain)
	ctx.Step(`^the city name should be "([^"]*)"$`, tc.theCityNameShouldBe)
	ctx.Step(`^the city name in the weather report should be "([^"]*)"$`, tc.theReportCityShouldBe)
	ctx.Step(`^the UTC offset should be "([^"]*)"$`, tc.theUTCOffsetShouldBe)
	ctx.Step(`^the provider should have been called (\d+) times$`, tc.theProviderShouldHaveBeenCalled)
}

func (tc *testContext) theWeatherServiceIsRunning() error {
	tc.upstream = httptest.NewServer(tc.provider)
	return nil
}

func (tc *testContext) theProviderAllowsRetries(retries int) error {
	tc.retries = retries
	return nil
}

func (tc *testContext) theProviderReportsCelsius(celsius int) error {
	tc.provider.celsius = float64(celsius)
	return nil
}

func (tc *testContext) theProviderReportsOffset(hours int) error {
	tc.provider.offset = hours * 3600
	return nil
}

func (tc *testContext) theProviderFails(times, status int) error {
	for i := 0; i < times; i++ {
		tc.provider.failures = append(tc.provider.failures, status)
	}

	return nil
}

// ensureServer builds the service stack once the scenario's Given steps
// have configured it.
func (tc *testContext) ensureServer() error {
	if tc.server != nil {
		return nil
	}

	logger := zap.NewNop()

	invoker, err := resilience.NewInvoker(
		resilience.Policy{MaxAttempts: tc.retries, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		logger,
	)
	if err != nil {
		return err
	}

	client := openweather.NewClient(tc.upstream.URL, "test-key", tc.upstream.Client(), invoker, nil, logger)
	cities := services.NewCityService(
		app.NewCityRepositoryAdapter(database.NewMemoryCityStore(database.SeedCities)),
		logger,
	)
	weather := services.NewWeatherService(client, cities, nil, nil, logger)

	weatherHandler := rest.NewWeatherHandler(weather, logger)
	cityHandler := rest.NewCityHandler(cities, weather, logger)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/weather", weatherHandler.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/cities/{name}", cityHandler.GetCity).Methods(http.MethodGet)
	api.HandleFunc("/cities/{name}/weather", cityHandler.GetCityWeather).Methods(http.MethodGet)

	tc.server = httptest.NewServer(router)

	return nil
}

func (tc *testContext) get(path string) error {
	if err := tc.ensureServer(); err != nil {
		return err
	}

	resp, err := http.Get(tc.server.URL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.response = resp
	tc.responseBody = map[string]interface{}{}

	return json.NewDecoder(resp.Body).Decode(&tc.responseBody)
}

func (tc *testContext) iRequestWeatherForCoordinates(lat, lon string) error {
	return tc.get(fmt.Sprintf("/api/v1/weather?lat=%s&lon=%s", lat, lon))
}

func (tc *testContext) iRequestWeatherWithoutCoordinates() error {
	return tc.get("/api/v1/weather")
}

func (tc *testContext) iLookUpTheCity(name string) error {
	return tc.get("/api/v1/cities/" + url.PathEscape(name))
}

func (tc *testContext) iRequestTheWeatherForTheCity(name string) error {
	return tc.get("/api/v1/cities/" + url.PathEscape(name) + "/weather")
}

func (tc *testContext) theResponseStatusShouldBe(status int) error {
	if tc.response.StatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %v", status, tc.response.StatusCode, tc.responseBody)
	}

	return nil
}

func (tc *testContext) theResponseShouldContainForecast() error {
	if forecast, _ := tc.responseBody["forecast"].(string); forecast == "" {
		return fmt.Errorf("response does not contain a forecast: %v", tc.responseBody)
	}

	return nil
}

func (tc *testContext) stringField(path ...string) (string, error) {
	var current interface{} = tc.responseBody

	for _, key := range path {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("%s not found in response: %v", strings.Join(path, "."), tc.responseBody)
		}

		current = obj[key]
	}

	value, ok := current.(string)
	if !ok {
		return "", fmt.Errorf("%s is not a string in response: %v", strings.Join(path, "."), tc.responseBody)
	}

	return value, nil
}

func (tc *testContext) expectField(expected string, path ...string) error {
	actual, err := tc.stringField(path...)
	if err != nil {
		return err
	}

	if actual != expected {
		return fmt.Errorf("expected %s %q, got %q", strings.Join(path, "."), expected, actual)
	}

	return nil
}

func (tc *testContext) theTemperatureCategoryShouldBe(expected string) error {
	return tc.expectField(expected, "category")
}

func (tc *testContext) theErrorCodeShouldBe(expected string) error {
	return tc.expectField(expected, "error")
}

func (tc *testContext) theCityNameShouldBe(expected string) error {
	return tc.expectField(expected, "name")
}

func (tc *testContext) theReportCityShouldBe(expected string) error {
	return tc.expectField(expected, "city", "name")
}

func (tc *testContext) theUTCOffsetShouldBe(expected string) error {
	return tc.expectField(expected, "weather", "utcOffset")
}

func (tc *testContext) theErrorMessageShouldContain(substring string) error {
	message, err := tc.stringField("message")
	if err != nil {
		return err
	}

	if !strings.Contains(strings.ToLower(message), strings.ToLower(substring)) {
		return fmt.Errorf("error message %q does not contain %q", message, substring)
	}

	return nil
}

func (tc *testContext) theProviderShouldHaveBeenCalled(times int) error {
	if calls := tc.provider.callCount(); calls != times {
		return fmt.Errorf("expected %d provider calls, got %d", times, calls)
	}

	return nil
}
