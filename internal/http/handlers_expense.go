package http

import (
	"net/http"

	"famledger/internal/core"
	"famledger/internal/log"
)

func (s *Server) handleListFamilyExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.deps.Ledger.ListFamilyExpenses(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleSummarizeFamilyExpenses(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Ledger.SummarizeFamilyExpenses(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpSummarize, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAddFamilyExpense(w http.ResponseWriter, r *http.Request) {
	var payload core.FamilyExpensePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		badRequest(w, err.Error())
		return
	}

	e, err := s.deps.Ledger.AddFamilyExpense(r.Context(), payload)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteFamilyExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Ledger.DeleteFamilyExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
