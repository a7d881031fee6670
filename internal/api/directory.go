package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medbook/clinic-scheduling/internal/scheduling"
)

// Directory handlers talk to the repositories directly; registration and
// listing carry no business rules beyond the soft-delete active flag.

func createPractitionerHandler(dir scheduling.PractitionerDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePractitionerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Name == "" || req.Specialty == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "name and specialty are required")
			return
		}

		p, err := dir.CreatePractitioner(r.Context(), &scheduling.Practitioner{
			Name:      req.Name,
			Email:     req.Email,
			Specialty: req.Specialty,
		})
		if err != nil {
			handleDirectoryError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, practitionerResponse(p))
	}
}

func getPractitionerHandler(dir scheduling.PractitionerDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		p, err := dir.GetPractitionerByID(r.Context(), id)
		if err != nil {
			handleDirectoryError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, practitionerResponse(p))
	}
}

func updatePractitionerHandler(dir scheduling.PractitionerDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req UpdateDirectoryEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		p, err := dir.UpdatePractitioner(r.Context(), id, req.Name, req.Email)
		if err != nil {
			handleDirectoryError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, practitionerResponse(p))
	}
}

func deactivatePractitionerHandler(dir scheduling.PractitionerDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		if err := dir.DeactivatePractitioner(r.Context(), id); err != nil {
			handleDirectoryError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listPractitionersHandler(dir scheduling.PractitionerDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := parsePage(r)

		practitioners, err := dir.ListActivePractitioners(r.Context(), limit, offset)
		if err != nil {
			handleDirectoryError(w, err)
			return
		}

		resp := make([]PractitionerResponse, 0, len(practitioners))
		for i := range practitioners {
			resp = append(resp, practitionerResponse(&practitioners[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createPatientHandler(dir scheduling.PatientDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
			return
		}

		p, err := dir.CreatePatient(r.Context(), &scheduling.Patient{
			Name:  req.Name,
			Email: req.Email,
		})
		if err != nil {
			handleDirectoryError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, patientResponse(p))
	}
}

func getPatientHandler(dir scheduling.PatientDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		p, err := dir.GetPatientByID(r.Context(), id)
		if err != nil {
			handleDirectoryError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, patientResponse(p))
	}
}

func updatePatientHandler(dir scheduling.PatientDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req UpdateDirectoryEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		p, err := dir.UpdatePatient(r.Context(), id, req.Name, req.Email)
		if err != nil {
			handleDirectoryError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, patientResponse(p))
	}
}

func deactivatePatientHandler(dir scheduling.PatientDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		if err := dir.DeactivatePatient(r.Context(), id); err != nil {
			handleDirectoryError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listPatientsHandler(dir scheduling.PatientDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := parsePage(r)

		patients, err := dir.ListActivePatients(r.Context(), limit, offset)
		if err != nil {
			handleDirectoryError(w, err)
			return
		}

		resp := make([]PatientResponse, 0, len(patients))
		for i := range patients {
			resp = append(resp, patientResponse(&patients[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePage(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func handleDirectoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrPractitionerNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
