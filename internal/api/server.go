package api

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fundsync/fundsync/internal/ai"
	"github.com/fundsync/fundsync/internal/config"
	"github.com/fundsync/fundsync/internal/db"
	syncpkg "github.com/fundsync/fundsync/internal/sync"
)

// Server wires the HTTP surface: public read endpoints for opportunities
// plus the admin-only sync triggers.
type Server struct {
	echo     *echo.Echo
	store    *db.Store
	cfg      config.Config
	registry *syncpkg.Registry
	oracle   *ai.OllamaClient
}

func NewServer(cfg config.Config, store *db.Store) (*Server, error) {
	registry, err := syncpkg.LoadRegistry()
	if err != nil {
		return nil, err
	}

	s := &Server{
		echo:     echo.New(),
		store:    store,
		cfg:      cfg,
		registry: registry,
		oracle:   ai.NewOllamaClient(cfg.OracleHost, cfg.OracleEmbedModel, cfg.OracleGenModel),
	}

	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.Logger())
	if cfg.CORSOrigins != "" {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: strings.Split(cfg.CORSOrigins, ","),
		}))
	}

	s.echo.GET("/health", s.health)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/opportunities", s.listOpportunities)
	v1.GET("/opportunities/:id", s.getOpportunity)
	v1.GET("/stats", s.stats)

	admin := v1.Group("/admin", s.requireAdminSecret)
	admin.POST("/sync", s.syncAll)
	admin.POST("/sync/:source", s.syncSource)

	return s, nil
}

func (s *Server) Start() error {
	return s.echo.Start(":" + s.cfg.Port)
}

// requireAdminSecret gates the trigger endpoints behind X-Admin-Secret.
// With no secret configured the endpoints are disabled outright rather
// than left open.
func (s *Server) requireAdminSecret(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.cfg.AdminSecret == "" {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "admin endpoints disabled: ADMIN_SECRET not set"})
		}
		provided := c.Request().Header.Get("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.AdminSecret)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid admin secret"})
		}
		return next(c)
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listOpportunities(c echo.Context) error {
	p := db.ListParams{
		Query:  c.QueryParam("q"),
		Source: c.QueryParam("source"),
	}
	p.MinAmount, _ = strconv.ParseFloat(c.QueryParam("min_amount"), 64)
	p.MaxAmount, _ = strconv.ParseFloat(c.QueryParam("max_amount"), 64)
	p.DeadlineDays, _ = strconv.Atoi(c.QueryParam("deadline_days"))
	p.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	p.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	p.SmallBusiness = boolParam(c, "small_business")
	p.WomanOwned = boolParam(c, "woman_owned")
	p.Minority = boolParam(c, "minority")
	p.Veteran = boolParam(c, "veteran")

	// Semantic ranking when the oracle is reachable; plain ILIKE otherwise.
	if p.Query != "" && c.QueryParam("semantic") != "false" {
		if vec, err := s.oracle.GenerateEmbedding(c.Request().Context(), p.Query); err == nil {
			p.QueryEmbedding = vec
		} else {
			log.Printf("[API] query embedding unavailable, falling back to text search: %v", err)
		}
	}

	result, err := s.store.ListOpportunities(c.Request().Context(), p)
	if err != nil {
		log.Printf("[API] list opportunities: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list opportunities"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) getOpportunity(c echo.Context) error {
	opp, err := s.store.GetOpportunity(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "opportunity not found"})
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) stats(c echo.Context) error {
	stats, err := s.store.GetStats(c.Request().Context())
	if err != nil {
		log.Printf("[API] stats: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to compute stats"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sources": stats})
}

// syncSource triggers a run for one provider. ?automated=true marks
// scheduler-initiated runs; ?max_configs caps the generated plan.
func (s *Server) syncSource(c echo.Context) error {
	source := c.Param("source")
	providerCfg, ok := s.registry.Get(source)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown provider: " + source})
	}

	automated := c.QueryParam("automated") == "true"
	maxConfigs, _ := strconv.Atoi(c.QueryParam("max_configs"))

	report, err := s.runSync(c, providerCfg, automated, maxConfigs)
	if err != nil {
		return s.syncErrorResponse(c, providerCfg, err)
	}
	return c.JSON(http.StatusOK, report)
}

// syncAll runs every registered provider in sequence. A provider failing
// does not stop the others; each gets its own entry in the response.
func (s *Server) syncAll(c echo.Context) error {
	automated := c.QueryParam("automated") == "true"
	maxConfigs, _ := strconv.Atoi(c.QueryParam("max_configs"))

	results := make(map[string]interface{})
	for _, providerCfg := range s.registry.Providers {
		report, err := s.runSync(c, providerCfg, automated, maxConfigs)
		if err != nil {
			results[providerCfg.ID] = map[string]interface{}{"success": false, "error": err.Error()}
			continue
		}
		results[providerCfg.ID] = report
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) runSync(c echo.Context, providerCfg syncpkg.ProviderConfig, automated bool, maxConfigs int) (*syncpkg.RunReport, error) {
	ctx := c.Request().Context()

	adapter, err := syncpkg.NewAdapter(providerCfg)
	if err != nil {
		return nil, err
	}

	profiles, err := s.store.ListProjectProfiles(ctx)
	if err != nil {
		log.Printf("[API] project profiles unavailable, using rule-based tier only: %v", err)
		profiles = nil
	}

	gen := &syncpkg.Generator{Oracle: s.oracle, PageSize: providerCfg.PageSize}
	configs := gen.Generate(ctx, profiles)
	if maxConfigs > 0 && len(configs) > maxConfigs {
		configs = configs[:maxConfigs]
	}

	runID, err := s.store.CreateSyncRun(ctx, adapter.Source(), automated, len(configs))
	if err != nil {
		log.Printf("[API] could not record sync run: %v", err)
	}

	orch := &syncpkg.Orchestrator{
		Adapter:        adapter,
		Client:         &http.Client{Timeout: s.cfg.RequestTimeout},
		Store:          s.store,
		Quota:          syncpkg.NewQuotaTracker(s.store, adapter.Source(), adapter.DailyLimit()),
		Limiter:        syncpkg.NewRateLimiter(s.cfg.BaseDelay, s.cfg.MaxBackoff),
		Embedder:       s.oracle,
		RequestTimeout: s.cfg.RequestTimeout,
	}

	start := time.Now()
	report, runErr := orch.Run(ctx, configs)

	if runID != uuid.Nil {
		status := "completed"
		if runErr != nil {
			status = "failed"
		}
		errCount := 0
		for _, r := range report.Results {
			if r.Status == "error" {
				errCount++
			}
		}
		if err := s.store.FinishSyncRun(ctx, runID, status, report.Summary.TotalFetched, report.Imported, errCount, time.Since(start).Milliseconds()); err != nil {
			log.Printf("[API] could not finish sync run record: %v", err)
		}
	}

	if runErr != nil {
		return nil, runErr
	}
	return report, nil
}

// syncErrorResponse maps run failures onto HTTP statuses. Quota exhaustion
// is a 429 carrying today's usage and the next reset time.
func (s *Server) syncErrorResponse(c echo.Context, providerCfg syncpkg.ProviderConfig, err error) error {
	if errors.Is(err, syncpkg.ErrQuotaExceeded) {
		usage, usageErr := s.store.Usage(c.Request().Context(), providerCfg.ID)
		if usageErr != nil {
			usage = providerCfg.DailyLimit
		}
		return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
			"success":       false,
			"message":       "daily request quota exceeded for " + providerCfg.ID,
			"dailyUsage":    usage,
			"dailyLimit":    providerCfg.DailyLimit,
			"nextResetTime": nextMidnightUTC(time.Now()),
		})
	}
	log.Printf("[API] sync %s failed: %v", providerCfg.ID, err)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"success": false,
		"message": "sync failed: " + err.Error(),
	})
}

// nextMidnightUTC is when daily quotas reset.
func nextMidnightUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

func boolParam(c echo.Context, name string) *bool {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	v := raw == "true" || raw == "1"
	return &v
}
