package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/visitops/backend/internal/db"
	"github.com/visitops/backend/internal/metrics"
	"github.com/visitops/backend/internal/models"
	"github.com/visitops/backend/internal/planner"
	"github.com/visitops/backend/internal/routing"
	"github.com/visitops/backend/internal/solver"
)

type Handler struct {
	Store            *db.Store
	Solver           solver.Adapter
	Optimizer        routing.Optimizer
	Validator        *validator.Validate
	Logger           zerolog.Logger
	AdminKey         string
	EmergencyReserve float64
	SolveTimeout     time.Duration
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type TechnicianPayload struct {
	ID            string  `json:"id" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	Lat           float64 `json:"lat" validate:"min=-90,max=90"`
	Lon           float64 `json:"lon" validate:"min=-180,max=180"`
	DailyCapacity int     `json:"daily_capacity" validate:"min=0"`
}

type ClientPayload struct {
	ID             string  `json:"id" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Lat            float64 `json:"lat" validate:"min=-90,max=90"`
	Lon            float64 `json:"lon" validate:"min=-180,max=180"`
	MonthlyVisits  int     `json:"monthly_visits" validate:"min=0"`
	Priority       int     `json:"priority" validate:"min=0,max=10"`
	OpeningHour    string  `json:"opening_hour"`
	ClosingHour    string  `json:"closing_hour"`
	ServiceMinutes int     `json:"service_minutes" validate:"min=0"`
}

// @Summary Replace the technician roster
// @Tags roster
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/technicians [post]
func (h *Handler) TechniciansImport(c *gin.Context) {
	var payload []TechnicianPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	for _, p := range payload {
		if err := h.Validator.Struct(p); err != nil {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
			return
		}
	}

	now := time.Now().UTC()
	technicians := make([]models.Technician, len(payload))
	for i, p := range payload {
		technicians[i] = models.Technician{
			ID: p.ID, Name: p.Name, Lat: p.Lat, Lon: p.Lon,
			DailyCapacity: p.DailyCapacity, UpdatedAt: now,
		}
	}

	ctx := c.Request.Context()
	if err := h.Store.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `TRUNCATE technicians CASCADE`)
		return err
	}); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reset technicians", err.Error())
		return
	}
	inserted, err := h.Store.InsertTechnicians(ctx, technicians)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert technicians", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": inserted})
}

// @Summary Replace the client portfolio
// @Tags roster
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/clients [post]
func (h *Handler) ClientsImport(c *gin.Context) {
	var payload []ClientPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	for _, p := range payload {
		if err := h.Validator.Struct(p); err != nil {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
			return
		}
	}

	now := time.Now().UTC()
	clients := make([]models.Client, len(payload))
	for i, p := range payload {
		clients[i] = models.Client{
			ID: p.ID, Name: p.Name, Lat: p.Lat, Lon: p.Lon,
			MonthlyVisits: p.MonthlyVisits, Priority: p.Priority,
			OpeningHour: p.OpeningHour, ClosingHour: p.ClosingHour,
			ServiceMinutes: p.ServiceMinutes, UpdatedAt: now,
		}
	}

	ctx := c.Request.Context()
	if err := h.Store.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `TRUNCATE clients CASCADE`)
		return err
	}); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reset clients", err.Error())
		return
	}
	inserted, err := h.Store.InsertClients(ctx, clients)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert clients", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": inserted})
}

func (h *Handler) TechniciansList(c *gin.Context) {
	out, err := h.Store.ListTechnicians(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list technicians", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *Handler) ClientsList(c *gin.Context) {
	out, err := h.Store.ListClients(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list clients", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

type GenerateRequest struct {
	Month string `json:"month" validate:"required,len=7"`
	// WorkingDates overrides the derived Monday-Friday horizon when set.
	WorkingDates     []string         `json:"working_dates" validate:"omitempty,dive,datetime=2006-01-02"`
	EmergencyReserve *float64         `json:"emergency_reserve" validate:"omitempty,gte=0,lt=1"`
	Unavailability   map[string][]int `json:"unavailability"`
}

// @Summary Generate the monthly visit plan
// @Description Assigns technicians to clients over the month's working days and stores the resulting visits
// @Tags agenda
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/agenda/generate [post]
func (h *Handler) AgendaGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	dates := req.WorkingDates
	if len(dates) == 0 {
		var err error
		dates, err = planner.WorkingDates(req.Month)
		if err != nil {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "month must be YYYY-MM", err.Error())
			return
		}
	}

	ctx := c.Request.Context()
	technicians, err := h.Store.ListTechnicians(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list technicians", err.Error())
		return
	}
	clients, err := h.Store.ListClients(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list clients", err.Error())
		return
	}

	runID, err := h.Store.CreatePlanRun(ctx, req.Month)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create plan run", err.Error())
		return
	}

	opts := planner.Options{
		EmergencyReserve: h.EmergencyReserve,
		Unavailability:   req.Unavailability,
		SolveTimeout:     h.SolveTimeout,
	}
	if req.EmergencyReserve != nil {
		opts.EmergencyReserve = *req.EmergencyReserve
	}

	p := planner.Planner{Solver: h.Solver, Logger: h.Logger}
	result, err := p.Plan(ctx, planner.Input{
		Technicians:  technicians,
		Clients:      clients,
		WorkingDates: dates,
	}, opts)
	if err != nil {
		_ = h.Store.FinishPlanRun(ctx, runID, "ERROR", nil)
		writeError(c, http.StatusInternalServerError, "PLANNING_ERROR", "Plan generation failed", err.Error())
		return
	}

	metrics.PlanRuns.WithLabelValues(result.Statistics.Status).Inc()
	metrics.SolveDuration.Observe(result.Statistics.SolveTime.Seconds())
	metrics.UnmetClients.Observe(float64(len(result.UnmetClients)))

	now := time.Now().UTC()
	var visits []models.Visit
	for day, assignments := range result.ByDay {
		date := dates[day-1]
		for _, a := range assignments {
			for _, clientID := range a.ClientIDs {
				visits = append(visits, models.Visit{
					ClientID:     clientID,
					TechnicianID: a.TechnicianID,
					Date:         date,
					Status:       "PENDING",
					CreatedAt:    now,
				})
			}
		}
	}
	inserted, err := h.Store.ReplaceMonthPlan(ctx, req.Month, visits)
	if err != nil {
		_ = h.Store.FinishPlanRun(ctx, runID, "ERROR", nil)
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to store visits", err.Error())
		return
	}

	summary, _ := json.Marshal(result)
	if err := h.Store.FinishPlanRun(ctx, runID, result.Statistics.Status, summary); err != nil {
		h.Logger.Error().Err(err).Str("run_id", runID).Msg("failed to finish plan run")
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":         runID,
		"month":          req.Month,
		"working_days":   len(dates),
		"visits_created": inserted,
		"plan":           result,
	})
}

type RoutesRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// @Summary Sequence one day's visits into routes
// @Tags agenda
// @Accept json
// @Produce json
// @Success 200 {object} routing.DayRoutes
// @Failure 400 {object} map[string]any
// @Router /api/agenda/routes [post]
func (h *Handler) RoutesBuild(c *gin.Context) {
	var req RoutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD", err.Error())
		return
	}

	ctx := c.Request.Context()
	visits, err := h.Store.ListDayVisits(ctx, req.Date)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list visits", err.Error())
		return
	}
	if len(visits) == 0 {
		c.JSON(http.StatusOK, routing.DayRoutes{Date: req.Date, Routes: []models.Route{}, FullyOptimized: true})
		return
	}

	technicians, err := h.Store.ListTechnicians(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list technicians", err.Error())
		return
	}
	techByID := make(map[string]models.Technician, len(technicians))
	for _, t := range technicians {
		techByID[t.ID] = t
	}

	clientIDs := make([]string, 0, len(visits))
	for _, v := range visits {
		clientIDs = append(clientIDs, v.ClientID)
	}
	clientByID, err := h.Store.GetClientsByID(ctx, clientIDs)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load clients", err.Error())
		return
	}

	// visits arrive ordered by technician, so grouping preserves plan order
	var days []routing.TechnicianDay
	byTech := make(map[string]int)
	for _, v := range visits {
		tech, ok := techByID[v.TechnicianID]
		if !ok {
			h.Logger.Warn().Str("technician_id", v.TechnicianID).Msg("visit references unknown technician, skipped")
			continue
		}
		client, ok := clientByID[v.ClientID]
		if !ok {
			h.Logger.Warn().Str("client_id", v.ClientID).Msg("visit references unknown client, skipped")
			continue
		}
		idx, ok := byTech[v.TechnicianID]
		if !ok {
			idx = len(days)
			byTech[v.TechnicianID] = idx
			days = append(days, routing.TechnicianDay{Technician: tech})
		}
		days[idx].Clients = append(days[idx].Clients, client)
	}

	seq := routing.Sequencer{Optimizer: h.Optimizer, Logger: h.Logger}
	out := seq.BuildDay(ctx, req.Date, days)

	if err := h.Store.ReplaceDayRoutes(ctx, req.Date, out.Routes); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to store routes", err.Error())
		return
	}

	c.JSON(http.StatusOK, out)
}

func (h *Handler) RoutesList(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date is required", nil)
		return
	}
	routes, err := h.Store.ListDayRoutes(c.Request.Context(), date)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list routes", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "routes": routes})
}

func (h *Handler) VisitsList(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date is required", nil)
		return
	}
	visits, err := h.Store.ListDayVisits(c.Request.Context(), date)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list visits", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "items": visits})
}

func (h *Handler) RunsLatest(c *gin.Context) {
	run, err := h.Store.LatestPlanRun(c.Request.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "No plan runs found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load plan run", err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
