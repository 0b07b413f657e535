package models

import "time"

type Technician struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	DailyCapacity int       `json:"daily_capacity"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Client struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	MonthlyVisits  int       `json:"monthly_visits"`
	Priority       int       `json:"priority"`
	OpeningHour    string    `json:"opening_hour,omitempty"`
	ClosingHour    string    `json:"closing_hour,omitempty"`
	ServiceMinutes int       `json:"service_minutes"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Visit struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	TechnicianID string     `json:"technician_id"`
	Date         string     `json:"date"`
	Status       string     `json:"status"`
	StopOrder    *int       `json:"stop_order,omitempty"`
	ETA          *time.Time `json:"eta,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type RouteStop struct {
	ClientID   string    `json:"client_id"`
	StopOrder  int       `json:"stop_order"`
	ETA        time.Time `json:"eta"`
	LegKm      float64   `json:"leg_km"`
	LegMinutes int       `json:"leg_minutes"`
}

type Route struct {
	ID           string      `json:"id"`
	TechnicianID string      `json:"technician_id"`
	Date         string      `json:"date"`
	TotalKm      float64     `json:"total_km"`
	TotalMinutes int         `json:"total_minutes"`
	Optimized    bool        `json:"optimized"`
	Stops        []RouteStop `json:"stops"`
	CreatedAt    time.Time   `json:"created_at"`
}

type PlanRun struct {
	ID         string     `json:"id"`
	Month      string     `json:"month"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Status     string     `json:"status"`
	Summary    []byte     `json:"summary"`
}
