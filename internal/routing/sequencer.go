package routing

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/visitops/backend/internal/metrics"
	"github.com/visitops/backend/internal/models"
)

// TechnicianDay is one technician's workload for a single date, in the order
// the visits were planned.
type TechnicianDay struct {
	Technician models.Technician
	Clients    []models.Client
}

// DayRoutes is the sequencing outcome for one date. Errors holds one message
// per technician whose optimized route had to be replaced by the fallback;
// FullyOptimized is true when no route was downgraded by a failure.
type DayRoutes struct {
	Date           string         `json:"date"`
	Routes         []models.Route `json:"routes"`
	Errors         []string       `json:"errors,omitempty"`
	FullyOptimized bool           `json:"fully_optimized"`
}

// Sequencer builds one route per technician, calling the optimizer for each
// technician concurrently. A nil Optimizer sequences every route with the
// deterministic fallback.
type Sequencer struct {
	Optimizer Optimizer
	Logger    zerolog.Logger
}

// BuildDay sequences the given workloads for one date. Failures are isolated
// per technician: an optimizer error downgrades only that technician's route
// to the fallback and is reported in Errors. Technicians with no clients get
// no route; a single-client day skips the optimizer entirely.
func (s *Sequencer) BuildDay(ctx context.Context, date string, days []TechnicianDay) DayRoutes {
	routes := make([]*models.Route, len(days))
	failures := make([]string, len(days))

	var wg sync.WaitGroup
	for i := range days {
		d := days[i]
		if len(d.Clients) == 0 {
			continue
		}
		wg.Add(1)
		go func(i int, d TechnicianDay) {
			defer wg.Done()

			if s.Optimizer == nil || len(d.Clients) == 1 {
				reason := "no_optimizer"
				if s.Optimizer != nil {
					reason = "single_stop"
				}
				metrics.RouteFallbacks.WithLabelValues(reason).Inc()
				r := BuildFallbackRoute(date, d.Technician, d.Clients)
				routes[i] = &r
				return
			}

			r, err := s.Optimizer.OptimizeTour(ctx, date, d.Technician, d.Clients)
			if err != nil {
				s.Logger.Warn().
					Err(err).
					Str("technician_id", d.Technician.ID).
					Str("date", date).
					Msg("route optimization failed, using fallback sequence")
				failures[i] = fmt.Sprintf("technician %s: %v", d.Technician.ID, err)
				metrics.RouteFallbacks.WithLabelValues("optimizer_error").Inc()
				r = BuildFallbackRoute(date, d.Technician, d.Clients)
			}
			routes[i] = &r
		}(i, d)
	}
	wg.Wait()

	out := DayRoutes{Date: date, FullyOptimized: true}
	for i, r := range routes {
		if r == nil {
			continue
		}
		out.Routes = append(out.Routes, *r)
		if failures[i] != "" {
			out.Errors = append(out.Errors, failures[i])
			out.FullyOptimized = false
		}
	}

	s.Logger.Info().
		Str("date", date).
		Int("routes", len(out.Routes)).
		Int("failures", len(out.Errors)).
		Bool("fully_optimized", out.FullyOptimized).
		Msg("daily routes sequenced")

	return out
}
