package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/otherjamesbrown/gendercode/pkg/coding"
	"github.com/otherjamesbrown/gendercode/pkg/db"
	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
	"github.com/otherjamesbrown/gendercode/pkg/names"
)

// BatchRequest is the body of POST /batch. Exactly one of Names and Inputs
// must be set.
type BatchRequest struct {
	Names  []string       `json:"names,omitempty"`
	Inputs []coding.Input `json:"inputs,omitempty"`
}

// BatchResponse carries results in submission order plus per-gender counts.
type BatchResponse struct {
	BatchSize int              `json:"batch_size"`
	Counts    map[string]int   `json:"counts"`
	Results   []*coding.Result `json:"results"`
}

// StatsResponse is the body of GET /dictionary/stats.
type StatsResponse struct {
	Tables []names.TierStats `json:"tables"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status     string          `json:"status"`
	Dictionary DictionaryState `json:"dictionary"`
	Database   *DatabaseState  `json:"database,omitempty"`
}

// DictionaryState summarises the loaded snapshot.
type DictionaryState struct {
	Indexed int  `json:"indexed"`
	Empty   bool `json:"empty"`
}

// DatabaseState summarises the postgres dictionary source.
type DatabaseState struct {
	Reachable bool  `json:"reachable"`
	LatencyMs int64 `json:"latency_ms"`
	// Table is set once the names table exists.
	Table      *NamesTableState `json:"table,omitempty"`
	OpenConns  int32            `json:"open_conns"`
	InUseConns int32            `json:"in_use_conns"`
	Error      string           `json:"error,omitempty"`
}

// NamesTableState counts the stored dictionary rows.
type NamesTableState struct {
	Name   string           `json:"name"`
	Rows   int64            `json:"rows"`
	ByTier map[string]int64 `json:"by_tier"`
}

// Classify handles GET /classify?name=A&name=B.
func (h *Handlers) Classify(w http.ResponseWriter, r *http.Request) {
	firstNames := r.URL.Query()["name"]
	if len(firstNames) == 0 {
		writeError(w, r, gcerrors.CodeValidation, "name query parameter is required")
		return
	}
	if err := h.checkSize(len(firstNames)); err != nil {
		writeErr(w, r, err)
		return
	}

	results, err := h.processor.ClassifyBatch(r.Context(), firstNames)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse(results))
}

// Batch handles POST /batch.
func (h *Handlers) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, gcerrors.CodeBatchTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, r, gcerrors.CodeValidation, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	switch {
	case len(req.Names) > 0 && len(req.Inputs) > 0:
		writeError(w, r, gcerrors.CodeValidation, "set either names or inputs, not both")
		return
	case len(req.Names) == 0 && len(req.Inputs) == 0:
		writeError(w, r, gcerrors.CodeValidation, "names or inputs is required")
		return
	}

	size := len(req.Names) + len(req.Inputs)
	if err := h.checkSize(size); err != nil {
		writeErr(w, r, err)
		return
	}

	var (
		results []*coding.Result
		err     error
	)
	if len(req.Inputs) > 0 {
		results, err = h.processor.ClassifyInputs(r.Context(), req.Inputs)
	} else {
		results, err = h.processor.ClassifyBatch(r.Context(), req.Names)
	}
	if err != nil {
		h.logger.WithContext(r.Context()).Warn("Batch request aborted",
			logging.F("batch_size", size), logging.Err(err))
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse(results))
}

// DictionaryStats handles GET /dictionary/stats.
func (h *Handlers) DictionaryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{Tables: h.processor.Dictionary().Stats()})
}

// Explain handles GET /dictionary/explain?name=A.
func (h *Handlers) Explain(w http.ResponseWriter, r *http.Request) {
	firstNames := r.URL.Query()["name"]
	if len(firstNames) == 0 {
		writeError(w, r, gcerrors.CodeValidation, "name query parameter is required")
		return
	}
	dict := h.processor.Dictionary()
	matches := make([]names.Match, len(firstNames))
	for i, name := range firstNames {
		matches[i] = dict.Explain(name)
	}
	writeJSON(w, http.StatusOK, matches)
}

// Healthz handles GET /healthz. An empty dictionary or an unreachable
// database reports 503.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	dict := h.processor.Dictionary()
	resp := HealthResponse{
		Status:     "ok",
		Dictionary: DictionaryState{Empty: dict.Empty()},
	}
	for _, st := range dict.Stats() {
		if st.Tier != names.TierAll {
			resp.Dictionary.Indexed += st.Indexed
		}
	}
	if resp.Dictionary.Empty {
		resp.Status = "degraded"
	}

	if h.pool != nil {
		resp.Database = databaseState(db.CheckDictionary(r.Context(), h.pool))
		if resp.Database.Error != "" {
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func databaseState(hs *db.DictionaryHealth) *DatabaseState {
	st := &DatabaseState{
		Reachable:  hs.Reachable,
		LatencyMs:  hs.Latency.Milliseconds(),
		OpenConns:  hs.OpenConns,
		InUseConns: hs.InUseConns,
	}
	if hs.RowsByTier != nil {
		st.Table = &NamesTableState{Name: db.NamesTable, Rows: hs.Rows(), ByTier: hs.RowsByTier}
	}
	if hs.Err != nil {
		st.Error = hs.Err.Error()
	}
	return st
}

func (h *Handlers) checkSize(n int) error {
	if n > h.maxBatch {
		return fmt.Errorf("%w: %d names exceeds the limit of %d", gcerrors.ErrBatchTooLarge, n, h.maxBatch)
	}
	return nil
}

func newBatchResponse(results []*coding.Result) BatchResponse {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Gender.String()]++
	}
	return BatchResponse{
		BatchSize: len(results),
		Counts:    counts,
		Results:   results,
	}
}
