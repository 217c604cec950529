package itp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"raritp-backend/lib/timezone"

	"github.com/gorilla/mux"
)

type recordResponse struct {
	VIN            string `json:"vin"`
	Status         string `json:"status"`
	ExpirationDate string `json:"expiration_date"`
	LastChecked    string `json:"last_checked"`
	DaysLeft       *int   `json:"days_left"`
}

func toResponse(record Record) recordResponse {
	res := recordResponse{
		VIN:            record.VIN,
		Status:         record.Status,
		ExpirationDate: record.ExpirationDate,
		LastChecked:    record.LastChecked.Format("2006-01-02 15:04:05"),
	}
	if days, ok := DaysUntil(record.ExpirationDate, timezone.Now()); ok {
		res.DaysLeft = &days
	}
	return res
}

// Routes exposes the stored records read-only, plus an on-demand
// refresh trigger per vehicle.
func (s *Service) Routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/vehicles", s.handleListRecords).Methods(http.MethodGet)
	router.HandleFunc("/vehicles/{vin}", s.handleGetRecord).Methods(http.MethodGet)
	router.HandleFunc("/vehicles/{vin}/refresh", s.handleRefresh).Methods(http.MethodPost)
	return router
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJson(w, status, map[string]string{"error": message})
}

func (s *Service) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list records", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	out := make([]recordResponse, len(records))
	for i, record := range records {
		out[i] = toResponse(record)
	}
	writeJson(w, http.StatusOK, out)
}

func (s *Service) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	vin := mux.Vars(r)["vin"]

	record, err := s.store.Get(r.Context(), vin)
	if errors.Is(err, ErrNoRecord) {
		writeError(w, http.StatusNotFound, "no record for this vin")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read record", "vin", vin, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read record")
		return
	}
	writeJson(w, http.StatusOK, toResponse(record))
}

func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	vin := mux.Vars(r)["vin"]

	record, err := s.CheckVehicle(r.Context(), vin)
	if err != nil {
		slog.ErrorContext(r.Context(), "on-demand refresh failed", "vin", vin, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJson(w, http.StatusOK, toResponse(record))
}
