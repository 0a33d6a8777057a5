package http

import (
	"net/http"

	"famledger/internal/core"
	"famledger/internal/log"
)

func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := s.deps.Families.ListFamilies(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, families)
}

func (s *Server) handleGetFamily(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Families.GetFamily(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleAddFamily(w http.ResponseWriter, r *http.Request) {
	var payload core.FamilyPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		badRequest(w, err.Error())
		return
	}
	payload.Normalize()

	f, err := s.deps.Families.AddFamily(r.Context(), payload)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	w.Header().Set("Location", "/families/"+f.ID)
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUpdateFamily(w http.ResponseWriter, r *http.Request) {
	var payload core.FamilyPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		badRequest(w, err.Error())
		return
	}
	payload.Normalize()

	f, err := s.deps.Families.UpdateFamily(r.Context(), r.PathValue("id"), payload)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFamily(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Families.DeleteFamily(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
