package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
)

func listLocationsHandler(catalog appointment.CatalogRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locations, err := catalog.ListActiveLocations(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]LocationResponse, 0, len(locations))
		for _, l := range locations {
			resp = append(resp, locationResponse(l))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSpecialtiesHandler(catalog appointment.CatalogRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location_id", "id must be a valid UUID")
			return
		}

		if _, err := catalog.GetLocationByID(r.Context(), id); err != nil {
			if errors.Is(err, appointment.ErrLocationNotFound) {
				writeError(w, http.StatusNotFound, "location_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		specialties, err := catalog.ListSpecialtiesAtLocation(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]SpecialtyResponse, 0, len(specialties))
		for _, s := range specialties {
			resp = append(resp, specialtyResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func checkAvailabilityHandler(checker AvailabilityChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		at, err := appointment.ParseTimeOfDay(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return
		}

		check, err := checker.CheckAvailability(r.Context(), doctorID, date, at)
		if err != nil {
			if errors.Is(err, appointment.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, check)
	}
}
