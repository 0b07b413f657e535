package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visitops/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) InsertTechnicians(ctx context.Context, technicians []models.Technician) (int64, error) {
	rows := make([][]any, 0, len(technicians))
	for _, t := range technicians {
		rows = append(rows, []any{t.ID, t.Name, t.Lat, t.Lon, t.DailyCapacity, t.UpdatedAt})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"technicians"}, []string{"id", "name", "lat", "lon", "daily_capacity", "updated_at"}, pgx.CopyFromRows(rows))
}

func (s *Store) InsertClients(ctx context.Context, clients []models.Client) (int64, error) {
	rows := make([][]any, 0, len(clients))
	for _, c := range clients {
		rows = append(rows, []any{c.ID, c.Name, c.Lat, c.Lon, c.MonthlyVisits, c.Priority, c.OpeningHour, c.ClosingHour, c.ServiceMinutes, c.UpdatedAt})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"clients"}, []string{"id", "name", "lat", "lon", "monthly_visits", "priority", "opening_hour", "closing_hour", "service_minutes", "updated_at"}, pgx.CopyFromRows(rows))
}

func (s *Store) ListTechnicians(ctx context.Context) ([]models.Technician, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, lat, lon, daily_capacity, updated_at FROM technicians ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Technician
	for rows.Next() {
		var t models.Technician
		if err := rows.Scan(&t.ID, &t.Name, &t.Lat, &t.Lon, &t.DailyCapacity, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, lat, lon, monthly_visits, priority, opening_hour, closing_hour, service_minutes, updated_at FROM clients ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Lat, &c.Lon, &c.MonthlyVisits, &c.Priority, &c.OpeningHour, &c.ClosingHour, &c.ServiceMinutes, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetClientsByID(ctx context.Context, ids []string) (map[string]models.Client, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, lat, lon, monthly_visits, priority, opening_hour, closing_hour, service_minutes, updated_at FROM clients WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]models.Client, len(ids))
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Lat, &c.Lon, &c.MonthlyVisits, &c.Priority, &c.OpeningHour, &c.ClosingHour, &c.ServiceMinutes, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// ReplaceMonthPlan atomically swaps the month's pending visits for a freshly
// generated plan. Visits already marked done are left untouched.
func (s *Store) ReplaceMonthPlan(ctx context.Context, month string, visits []models.Visit) (int64, error) {
	var count int64
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM visits WHERE to_char(date, 'YYYY-MM') = $1 AND status = 'PENDING'`, month); err != nil {
			return err
		}
		rows := make([][]any, 0, len(visits))
		for _, v := range visits {
			id := v.ID
			if id == "" {
				id = uuid.NewString()
			}
			rows = append(rows, []any{id, v.ClientID, v.TechnicianID, v.Date, v.Status, v.StopOrder, v.ETA, v.CreatedAt})
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"visits"}, []string{"id", "client_id", "technician_id", "date", "status", "stop_order", "eta", "created_at"}, pgx.CopyFromRows(rows))
		count = n
		return err
	})
	return count, err
}

func (s *Store) ListDayVisits(ctx context.Context, date string) ([]models.Visit, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, client_id, technician_id, date, status, stop_order, eta, created_at
		FROM visits
		WHERE date = $1 AND status = 'PENDING'
		ORDER BY technician_id ASC, created_at ASC, id ASC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Visit
	for rows.Next() {
		var v models.Visit
		if err := rows.Scan(&v.ID, &v.ClientID, &v.TechnicianID, &v.Date, &v.Status, &v.StopOrder, &v.ETA, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ReplaceDayRoutes swaps the date's stored routes for the given ones and
// stamps each pending visit with its stop order and ETA.
func (s *Store) ReplaceDayRoutes(ctx context.Context, date string, routes []models.Route) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM routes WHERE date = $1`, date); err != nil {
			return err
		}
		for _, r := range routes {
			id := r.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO routes (id, technician_id, date, total_km, total_minutes, optimized, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,NOW())
			`, id, r.TechnicianID, r.Date, r.TotalKm, r.TotalMinutes, r.Optimized); err != nil {
				return err
			}

			stops := make([][]any, 0, len(r.Stops))
			for _, st := range r.Stops {
				stops = append(stops, []any{id, st.ClientID, st.StopOrder, st.ETA, st.LegKm, st.LegMinutes})
			}
			if _, err := tx.CopyFrom(ctx, pgx.Identifier{"route_stops"}, []string{"route_id", "client_id", "stop_order", "eta", "leg_km", "leg_minutes"}, pgx.CopyFromRows(stops)); err != nil {
				return err
			}

			for _, st := range r.Stops {
				if _, err := tx.Exec(ctx, `
					UPDATE visits SET stop_order = $1, eta = $2
					WHERE date = $3 AND client_id = $4 AND technician_id = $5 AND status = 'PENDING'
				`, st.StopOrder, st.ETA, date, st.ClientID, r.TechnicianID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Store) ListDayRoutes(ctx context.Context, date string) ([]models.Route, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, technician_id, date, total_km, total_minutes, optimized, created_at
		FROM routes WHERE date = $1 ORDER BY technician_id ASC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Route
	for rows.Next() {
		var r models.Route
		if err := rows.Scan(&r.ID, &r.TechnicianID, &r.Date, &r.TotalKm, &r.TotalMinutes, &r.Optimized, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		stops, err := s.listRouteStops(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Stops = stops
	}
	return out, nil
}

func (s *Store) listRouteStops(ctx context.Context, routeID string) ([]models.RouteStop, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT client_id, stop_order, eta, leg_km, leg_minutes
		FROM route_stops WHERE route_id = $1 ORDER BY stop_order ASC
	`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RouteStop
	for rows.Next() {
		var st models.RouteStop
		if err := rows.Scan(&st.ClientID, &st.StopOrder, &st.ETA, &st.LegKm, &st.LegMinutes); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) CreatePlanRun(ctx context.Context, month string) (string, error) {
	id := uuid.NewString()
	_, err := s.Pool.Exec(ctx, `INSERT INTO plan_runs (id, month, status, started_at) VALUES ($1, $2, 'RUNNING', NOW())`, id, month)
	return id, err
}

func (s *Store) FinishPlanRun(ctx context.Context, runID string, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `UPDATE plan_runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3`, status, summary, runID)
	return err
}

func (s *Store) LatestPlanRun(ctx context.Context) (models.PlanRun, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, month, started_at, finished_at, status, summary FROM plan_runs ORDER BY started_at DESC LIMIT 1`)
	var r models.PlanRun
	var finished *time.Time
	if err := row.Scan(&r.ID, &r.Month, &r.StartedAt, &finished, &r.Status, &r.Summary); err != nil {
		return models.PlanRun{}, err
	}
	r.FinishedAt = finished
	return r, nil
}
