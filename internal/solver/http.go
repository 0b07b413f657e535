package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/visitops/backend/internal/milp"
)

// HTTPSolver submits the serialized LP model to an external solver service.
// The service accepts the plain-text model and returns a status string plus
// per-variable primal values, the minimal contract any MILP backend can
// implement.
type HTTPSolver struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSolver returns a solver client with a shared default HTTP client.
func NewHTTPSolver(baseURL string) HTTPSolver {
	return HTTPSolver{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type solveRequest struct {
	Model       string `json:"model"`
	TimeLimitMs int64  `json:"time_limit_ms,omitempty"`
}

type solveResponse struct {
	Status  string `json:"status"`
	Columns map[string]struct {
		Primal float64 `json:"primal"`
	} `json:"columns"`
}

func (h HTTPSolver) Solve(ctx context.Context, m *milp.Model) (Result, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	payload := solveRequest{Model: m.LP()}
	if deadline, ok := ctx.Deadline(); ok {
		payload.TimeLimitMs = time.Until(deadline).Milliseconds()
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/solve", bytes.NewBuffer(b))
	if err != nil {
		return Result{Status: StatusError}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Result{Status: StatusError}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Status: StatusError}, fmt.Errorf("solver service error: %s", resp.Status)
	}

	var r solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Result{Status: StatusError}, err
	}
	if r.Status == "" {
		return Result{Status: StatusError}, errors.New("solver service returned no status")
	}

	columns := make(map[string]float64, len(r.Columns))
	for name, col := range r.Columns {
		columns[name] = col.Primal
	}

	return Result{Status: NormalizeStatus(r.Status), Columns: columns}, nil
}
