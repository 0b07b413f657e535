package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/visitops/backend/internal/geo"
	"github.com/visitops/backend/internal/models"
)

// Optimizer orders one technician's visits for a day. Implementations talk
// to an external route-optimization service; any failure makes the caller
// fall back to the deterministic route for that technician only.
type Optimizer interface {
	OptimizeTour(ctx context.Context, date string, tech models.Technician, clients []models.Client) (models.Route, error)
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type timeWindow struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type delivery struct {
	ArrivalLocation latLng       `json:"arrivalLocation"`
	Duration        string       `json:"duration"`
	TimeWindows     []timeWindow `json:"timeWindows,omitempty"`
}

type shipment struct {
	Deliveries []delivery `json:"deliveries"`
	Label      string     `json:"label,omitempty"`
}

type vehicle struct {
	StartLocation latLng `json:"startLocation"`
	Label         string `json:"label,omitempty"`
	TravelMode    string `json:"travelMode,omitempty"`
}

type tourModel struct {
	Shipments       []shipment `json:"shipments"`
	Vehicles        []vehicle  `json:"vehicles"`
	GlobalStartTime string     `json:"globalStartTime"`
	GlobalEndTime   string     `json:"globalEndTime"`
}

type optimizeToursRequest struct {
	Parent string    `json:"parent"`
	Model  tourModel `json:"model"`
}

type tourVisit struct {
	ShipmentIndex *int   `json:"shipmentIndex,omitempty"`
	ShipmentLabel string `json:"shipmentLabel,omitempty"`
	StartTime     string `json:"startTime"`
}

type tourRouteMetrics struct {
	TravelDuration       string  `json:"travelDuration,omitempty"`
	TravelDistanceMeters float64 `json:"travelDistanceMeters,omitempty"`
}

type tourRoute struct {
	VehicleIndex int               `json:"vehicleIndex"`
	Visits       []tourVisit       `json:"visits"`
	Metrics      *tourRouteMetrics `json:"metrics,omitempty"`
}

type optimizeToursResponse struct {
	Routes []tourRoute `json:"routes"`
}

// FleetAPI is the HTTP client for the route-optimization collaborator. One
// vehicle per technician starting at home, one shipment per client, bounded
// by the fixed 08:00-18:00 working window on the route's date.
type FleetAPI struct {
	BaseURL string
	// Parent is the tenant/project identifier required by the service.
	Parent string
	Token  string
	Client *http.Client
	Logger zerolog.Logger
}

func (f *FleetAPI) OptimizeTour(ctx context.Context, date string, tech models.Technician, clients []models.Client) (models.Route, error) {
	if f.Client == nil {
		f.Client = &http.Client{Timeout: 30 * time.Second}
	}

	request := f.buildRequest(date, tech, clients)
	b, _ := json.Marshal(request)

	url := fmt.Sprintf("%s/v1/%s:optimizeTours", f.BaseURL, request.Parent)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(b))
	if err != nil {
		return models.Route{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return models.Route{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Route{}, fmt.Errorf("route optimization service error: %s", resp.Status)
	}

	var r optimizeToursResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return models.Route{}, err
	}

	return f.parseResponse(date, tech, clients, r)
}

func (f *FleetAPI) buildRequest(date string, tech models.Technician, clients []models.Client) optimizeToursRequest {
	shipments := make([]shipment, 0, len(clients))
	for _, c := range clients {
		d := delivery{
			ArrivalLocation: latLng{Latitude: c.Lat, Longitude: c.Lon},
			Duration:        fmt.Sprintf("%ds", c.ServiceMinutes*60),
		}
		if c.OpeningHour != "" && c.ClosingHour != "" {
			open, okOpen := NormalizeClock(c.OpeningHour)
			closing, okClose := NormalizeClock(c.ClosingHour)
			if !okOpen || !okClose {
				f.Logger.Warn().
					Str("client_id", c.ID).
					Str("opening", c.OpeningHour).
					Str("closing", c.ClosingHour).
					Msg("malformed client hours, using defaults")
			}
			d.TimeWindows = []timeWindow{{
				StartTime: fmt.Sprintf("%sT%sZ", date, open),
				EndTime:   fmt.Sprintf("%sT%sZ", date, closing),
			}}
		}
		shipments = append(shipments, shipment{Deliveries: []delivery{d}, Label: c.ID})
	}

	return optimizeToursRequest{
		Parent: f.Parent,
		Model: tourModel{
			Shipments: shipments,
			Vehicles: []vehicle{{
				StartLocation: latLng{Latitude: tech.Lat, Longitude: tech.Lon},
				Label:         tech.ID,
				TravelMode:    "DRIVING",
			}},
			GlobalStartTime: date + "T" + workDayStart + "Z",
			GlobalEndTime:   date + "T" + workDayEnd + "Z",
		},
	}
}

// parseResponse resolves each returned visit to a known client by shipment
// index or by label, drops the unresolvable ones, and renumbers the rest into
// a contiguous order.
func (f *FleetAPI) parseResponse(date string, tech models.Technician, clients []models.Client, r optimizeToursResponse) (models.Route, error) {
	if len(r.Routes) == 0 || len(r.Routes[0].Visits) == 0 {
		return models.Route{}, errors.New("route optimization service returned no visits")
	}
	route := r.Routes[0]

	byID := make(map[string]models.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}

	var ordered []models.Client
	var etas []time.Time
	for _, v := range route.Visits {
		var client models.Client
		found := false
		if v.ShipmentIndex != nil && *v.ShipmentIndex >= 0 && *v.ShipmentIndex < len(clients) {
			client = clients[*v.ShipmentIndex]
			found = true
		} else if v.ShipmentLabel != "" {
			client, found = byID[v.ShipmentLabel]
		}
		if !found {
			f.Logger.Warn().
				Str("technician_id", tech.ID).
				Str("shipment_label", v.ShipmentLabel).
				Msg("unresolved visit dropped from optimized route")
			continue
		}
		eta, err := time.Parse(time.RFC3339, v.StartTime)
		if err != nil {
			f.Logger.Warn().
				Str("client_id", client.ID).
				Str("start_time", v.StartTime).
				Msg("unparseable visit start time, visit dropped")
			continue
		}
		ordered = append(ordered, client)
		etas = append(etas, eta)
	}
	if len(ordered) == 0 {
		return models.Route{}, errors.New("no resolvable visits in optimized route")
	}

	stops := make([]models.RouteStop, len(ordered))
	prev := geo.Point{Lat: tech.Lat, Lon: tech.Lon}
	for i, c := range ordered {
		legKm := geo.DistanceKm(prev, geo.Point{Lat: c.Lat, Lon: c.Lon})
		stops[i] = models.RouteStop{
			ClientID:   c.ID,
			StopOrder:  i + 1,
			ETA:        etas[i],
			LegKm:      round2(legKm),
			LegMinutes: int(math.Round(legKm / averageSpeedKmh * 60)),
		}
		prev = geo.Point{Lat: c.Lat, Lon: c.Lon}
	}

	totalKm := 0.0
	totalMinutes := 0
	if route.Metrics != nil {
		totalKm = route.Metrics.TravelDistanceMeters / 1000
		if secs, err := strconv.Atoi(strings.TrimSuffix(route.Metrics.TravelDuration, "s")); err == nil {
			totalMinutes = secs / 60
		}
	}

	return models.Route{
		TechnicianID: tech.ID,
		Date:         date,
		TotalKm:      round2(totalKm),
		TotalMinutes: totalMinutes,
		Optimized:    true,
		Stops:        stops,
	}, nil
}

var (
	clockFull  = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
	clockShort = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

// NormalizeClock coerces "8:00" / "08:00" / "08:00:00" into HH:MM:SS. The
// second return value is false when the input was malformed and the default
// opening time was substituted.
func NormalizeClock(s string) (string, bool) {
	h := strings.TrimSpace(s)
	if clockFull.MatchString(h) {
		return h, true
	}
	if clockShort.MatchString(h) {
		parts := strings.SplitN(h, ":", 2)
		if len(parts[0]) == 1 {
			parts[0] = "0" + parts[0]
		}
		return parts[0] + ":" + parts[1] + ":00", true
	}
	return workDayStart, false
}
