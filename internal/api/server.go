package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"bikeshare-dashboard/config"
	"bikeshare-dashboard/internal/loader"
	"bikeshare-dashboard/internal/rentals"
	"bikeshare-dashboard/internal/weather"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

const weatherCacheTTL = 10 * time.Minute

// Dataset is the cached table the handlers read from.
type Dataset interface {
	Table() rentals.Table
	Reload(ctx context.Context) error
	LoadedAt() time.Time
	IsLoaded() bool
}

// Broker reports whether the MQTT publisher is connected.
type Broker interface {
	IsConnected() bool
}

type Server struct {
	router  *gin.Engine
	server  *http.Server
	dataset Dataset
	broker  Broker
	port    int

	weatherMu   sync.Mutex
	weather     weather.Provider
	weatherData *weather.Data
	weatherAt   time.Time
}

type ServerConfig struct {
	Port    int
	Dataset Dataset
	Broker  Broker
	Weather config.WeatherConfig
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		dataset: cfg.Dataset,
		broker:  cfg.Broker,
		port:    cfg.Port,
		weather: newWeatherProvider(cfg.Weather),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	tmpl := template.Must(template.ParseFS(templatesFS, "templates/*.html"))
	s.router.SetHTMLTemplate(tmpl)

	// Dashboard routes
	s.router.GET("/", s.dashboardHandler)
	s.router.GET("/dashboard", s.dashboardHandler)
	s.router.HEAD("/", s.dashboardHandler)
	s.router.HEAD("/dashboard", s.dashboardHandler)

	// Health check
	s.router.GET("/health", s.healthHandler)

	// API routes
	api := s.router.Group("/api/v1")
	{
		api.GET("/bounds", s.boundsHandler)
		api.GET("/rentals", s.rentalsHandler)
		api.GET("/summary", s.summaryHandler)
		api.GET("/series", s.seriesHandler)
		api.GET("/trends/:predictor", s.trendHandler)
		api.GET("/dashboard", s.dashboardDataHandler)
		api.GET("/forecast", s.forecastHandler)
		api.POST("/dataset/reload", s.reloadHandler)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("API server starting on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) dashboardHandler(c *gin.Context) {
	predictors := make([]gin.H, 0, len(rentals.Predictors))
	for _, p := range rentals.Predictors {
		predictors = append(predictors, gin.H{"ID": string(p), "Label": p.Label()})
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"title":      "BikeSharing Dashboard",
		"predictors": predictors,
		"forecast":   s.weather != nil,
	})
}

func (s *Server) healthHandler(c *gin.Context) {
	loaded := s.dataset.IsLoaded()
	status := "healthy"
	if !loaded {
		status = "loading"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"rows":           len(s.dataset.Table()),
		"loaded_at":      s.dataset.LoadedAt(),
		"mqtt_connected": s.broker != nil && s.broker.IsConnected(),
		"timestamp":      time.Now(),
	})
}

func (s *Server) boundsHandler(c *gin.Context) {
	table, ok := s.loadedTable(c)
	if !ok {
		return
	}

	bounds, ok := table.Bounds()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset is empty"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"start": bounds.Start.Format(rentals.DateLayout),
		"end":   bounds.End.Format(rentals.DateLayout),
		"rows":  len(table),
	})
}

func (s *Server) rentalsHandler(c *gin.Context) {
	table, r, ok := s.filterRequest(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, rentals.Filter(table, r))
}

func (s *Server) summaryHandler(c *gin.Context) {
	table, r, ok := s.filterRequest(c)
	if !ok {
		return
	}

	rows := rentals.Filter(table, r)
	totals := rentals.Sum(rows)

	c.JSON(http.StatusOK, gin.H{
		"start":         r.Start.Format(rentals.DateLayout),
		"end":           r.End.Format(rentals.DateLayout),
		"days":          len(rows),
		"total_rentals": totals.Total,
		"categories":    totals.CategoryMap(),
	})
}

func (s *Server) seriesHandler(c *gin.Context) {
	table, r, ok := s.filterRequest(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, rentals.NewSeries(rentals.Filter(table, r)))
}

func (s *Server) trendHandler(c *gin.Context) {
	predictor, err := rentals.ParsePredictor(c.Param("predictor"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	table, r, ok := s.filterRequest(c)
	if !ok {
		return
	}

	trend, err := rentals.NewTrend(rentals.Filter(table, r), predictor)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
			"trend": trend,
		})
		return
	}

	c.JSON(http.StatusOK, trend)
}

func (s *Server) dashboardDataHandler(c *gin.Context) {
	table, r, ok := s.filterRequest(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, rentals.Build(table, r))
}

func (s *Server) reloadHandler(c *gin.Context) {
	if err := s.dataset.Reload(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, loader.ErrMalformedInput) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Dataset reloaded",
		"rows":      len(s.dataset.Table()),
		"loaded_at": s.dataset.LoadedAt(),
	})
}

// rangeQuery is the date filter shared by the chart endpoints. Missing ends
// default to the dataset bounds.
type rangeQuery struct {
	Start time.Time `form:"start" time_format:"2006-01-02" time_utc:"1"`
	End   time.Time `form:"end" time_format:"2006-01-02" time_utc:"1"`
}

func (s *Server) loadedTable(c *gin.Context) (rentals.Table, bool) {
	if !s.dataset.IsLoaded() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Dataset not loaded yet"})
		return nil, false
	}
	return s.dataset.Table(), true
}

func (s *Server) filterRequest(c *gin.Context) (rentals.Table, rentals.DateRange, bool) {
	table, ok := s.loadedTable(c)
	if !ok {
		return nil, rentals.DateRange{}, false
	}

	var q rangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format, expected YYYY-MM-DD"})
		return nil, rentals.DateRange{}, false
	}

	return table, table.Resolve(q.Start, q.End), true
}

type forecastTrend struct {
	Predictor rentals.Predictor `json:"predictor"`
	Input     float64           `json:"input_c"`
	Expected  *float64          `json:"expected_rentals,omitempty"`
	Fit       *rentals.Fit      `json:"fit,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (s *Server) forecastHandler(c *gin.Context) {
	table, ok := s.loadedTable(c)
	if !ok {
		return
	}

	data := s.getWeather(c.Request.Context(), time.Now())
	if data == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Weather data not available"})
		return
	}

	trends := make([]forecastTrend, 0, len(rentals.Predictors))
	for _, p := range rentals.Predictors {
		input := data.Temperature
		if p == rentals.PredictorFeelsLike {
			input = data.FeelsLike
		}

		ft := forecastTrend{Predictor: p, Input: input}
		fit, err := rentals.Regress(p.Values(table), rentals.TotalCounts(table))
		if err != nil {
			ft.Error = err.Error()
		} else {
			expected := fit.Predict(input)
			if expected < 0 {
				expected = 0
			}
			ft.Fit = &fit
			ft.Expected = &expected
		}
		trends = append(trends, ft)
	}

	c.JSON(http.StatusOK, gin.H{
		"weather":   data,
		"trends":    trends,
		"timestamp": time.Now(),
	})
}

func newWeatherProvider(cfg config.WeatherConfig) weather.Provider {
	if !cfg.Enabled {
		return nil
	}

	switch strings.ToLower(cfg.Provider) {
	case "openweather":
		return weather.NewOpenWeatherClient(
			cfg.APIKey,
			cfg.City,
			cfg.Country,
			cfg.Latitude,
			cfg.Longitude,
			cfg.Units,
		)
	case "openmeteo", "open-meteo", "open_meteo":
		return weather.NewOpenMeteoClient(
			cfg.City,
			cfg.Country,
			cfg.Latitude,
			cfg.Longitude,
		)
	default:
		log.Printf("Weather provider not supported: %s", cfg.Provider)
		return nil
	}
}

func (s *Server) getWeather(ctx context.Context, now time.Time) *weather.Data {
	s.weatherMu.Lock()
	defer s.weatherMu.Unlock()

	if s.weather == nil {
		return nil
	}

	if s.weatherData != nil && now.Sub(s.weatherAt) < weatherCacheTTL {
		return s.weatherData
	}

	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	data, err := s.weather.Get(ctx)
	if err != nil {
		log.Printf("Weather fetch failed: %v", err)
		return s.weatherData
	}

	s.weatherData = data
	s.weatherAt = now
	return data
}
