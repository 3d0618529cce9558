package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	apperrors "github.com/terrachain/registry/internal/platform/errors"
	"github.com/terrachain/registry/internal/registry/domain/property"
	"github.com/terrachain/registry/internal/registry/domain/transfer"
	"github.com/terrachain/registry/internal/registry/storage"
)

const defaultPageLimit = 50

type registerPropertyRequest struct {
	Location     string  `json:"location"`
	Coordinates  string  `json:"coordinates"`
	Area         float64 `json:"area"`
	Value        float64 `json:"value"`
	DocumentRef  string  `json:"documentRef"`
	PropertyType string  `json:"propertyType"`
	YearBuilt    int     `json:"yearBuilt"`
	Zoning       string  `json:"zoning"`
}

type initiateTransferRequest struct {
	To    string  `json:"to"`
	Price float64 `json:"price"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRegisterProperty(w http.ResponseWriter, r *http.Request) {
	account, err := s.auth.account(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req registerPropertyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := s.engine.RegisterProperty(r.Context(), account, property.RegistrationInput{
		Location:    req.Location,
		Coordinates: req.Coordinates,
		Area:        req.Area,
		Value:       req.Value,
		DocumentRef: req.DocumentRef,
		Metadata: property.Metadata{
			PropertyType: req.PropertyType,
			YearBuilt:    req.YearBuilt,
			Zoning:       req.Zoning,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPropertyView(p))
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.engine.GetProperty(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPropertyView(p))
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := storage.PropertyFilter{
		Owner:            query.Get("owner"),
		LocationContains: query.Get("location"),
	}
	if raw := query.Get("status"); raw != "" {
		status, err := property.StatusFromLabel(raw)
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.CodeValidation, "invalid status filter", err))
			return
		}
		filter.Status = status
	}
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	properties, err := s.engine.ListProperties(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]propertyView, 0, len(properties))
	for _, p := range properties {
		views = append(views, toPropertyView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": views})
}

func (s *Server) handleVerifyProperty(w http.ResponseWriter, r *http.Request) {
	account, err := s.auth.account(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.engine.VerifyProperty(r.Context(), account, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPropertyView(p))
}

func (s *Server) handleInitiateTransfer(w http.ResponseWriter, r *http.Request) {
	account, err := s.auth.account(r)
	if err != nil {
		writeError(w, err)
		return
	}
	propertyID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req initiateTransferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	request, err := s.engine.InitiateTransfer(r.Context(), account, propertyID, req.To, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransferView(request))
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	request, err := s.engine.GetTransfer(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferView(request))
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := storage.TransferFilter{
		Participant: query.Get("participant"),
	}
	if raw := query.Get("propertyId"); raw != "" {
		propertyID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.CodeValidation, "invalid propertyId filter", err))
			return
		}
		filter.PropertyID = propertyID
	}
	if raw := query.Get("status"); raw != "" {
		status, err := transfer.StatusFromLabel(raw)
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.CodeValidation, "invalid status filter", err))
			return
		}
		filter.Status = status
	}
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	requests, err := s.engine.ListTransfers(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]transferView, 0, len(requests))
	for _, request := range requests {
		views = append(views, toTransferView(request))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transfers": views})
}

func (s *Server) handleApproveTransfer(w http.ResponseWriter, r *http.Request) {
	s.transferCommand(w, r, func(account string, id uint64) (transfer.Request, error) {
		return s.engine.ApproveTransfer(r.Context(), account, id)
	})
}

func (s *Server) handleRejectTransfer(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.transferCommand(w, r, func(account string, id uint64) (transfer.Request, error) {
		return s.engine.RejectTransfer(r.Context(), account, id, req.Reason)
	})
}

func (s *Server) handleExecuteTransfer(w http.ResponseWriter, r *http.Request) {
	s.transferCommand(w, r, func(account string, id uint64) (transfer.Request, error) {
		return s.engine.ExecuteTransfer(r.Context(), account, id)
	})
}

func (s *Server) handleCancelTransfer(w http.ResponseWriter, r *http.Request) {
	s.transferCommand(w, r, func(account string, id uint64) (transfer.Request, error) {
		return s.engine.CancelTransfer(r.Context(), account, id)
	})
}

func (s *Server) handleRaiseDispute(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.transferCommand(w, r, func(account string, id uint64) (transfer.Request, error) {
		return s.engine.RaiseDispute(r.Context(), account, id, req.Reason)
	})
}

func (s *Server) handleReplayParked(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.account(r); err != nil {
		writeError(w, err)
		return
	}
	replayed, err := s.engine.ReplayParked(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"replayed": replayed})
}

func (s *Server) transferCommand(w http.ResponseWriter, r *http.Request, command func(account string, id uint64) (transfer.Request, error)) {
	account, err := s.auth.account(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	request, err := command(account, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferView(request))
}

func decodeBody(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, "invalid request body", err)
	}
	return nil
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.New(apperrors.CodeValidation, "invalid id path parameter")
	}
	return id, nil
}

func pageFromQuery(r *http.Request) (storage.Page, error) {
	page := storage.Page{Limit: defaultPageLimit}
	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return storage.Page{}, apperrors.New(apperrors.CodeValidation, "limit must be a positive integer")
		}
		page.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return storage.Page{}, apperrors.New(apperrors.CodeValidation, "offset must be a non-negative integer")
		}
		page.Offset = offset
	}
	return page, nil
}
