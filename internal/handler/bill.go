package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/roomsync-dev/roomsync/internal/auth"
	"github.com/roomsync-dev/roomsync/internal/billsplit"
	"github.com/roomsync-dev/roomsync/internal/model"
	"github.com/roomsync-dev/roomsync/internal/store"
)

type BillHandler struct {
	bills      *store.BillStore
	households *store.HouseholdStore
	logger     *slog.Logger
}

func NewBillHandler(bills *store.BillStore, households *store.HouseholdStore, logger *slog.Logger) *BillHandler {
	return &BillHandler{bills: bills, households: households, logger: logger}
}

type billResponse struct {
	model.Bill
	Split []billsplit.Share `json:"split"`
}

func (h *BillHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		AmountCents int64  `json:"amountCents"`
		PaidBy      int64  `json:"paidBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		writeMessage(w, http.StatusBadRequest, "Description is required")
		return
	}
	if req.AmountCents <= 0 {
		writeMessage(w, http.StatusBadRequest, "Amount must be positive")
		return
	}

	householdID := auth.HouseholdID(r.Context())

	// paidBy must be a member of the caller's household.
	member, err := h.households.GetMember(householdID, req.PaidBy)
	if err != nil {
		h.logger.Error("check payer membership", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while creating bill.")
		return
	}
	if member == nil {
		writeMessage(w, http.StatusBadRequest, "Payer is not a member of this household")
		return
	}

	bill, err := h.bills.Create(householdID, req.Description, req.AmountCents, req.PaidBy)
	if err != nil {
		h.logger.Error("create bill", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while creating bill.")
		return
	}

	members, err := h.households.ListMemberUsers(householdID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while creating bill.")
		return
	}

	writeJSON(w, http.StatusCreated, billResponse{
		Bill:  *bill,
		Split: billsplit.Split(bill.AmountCents, members),
	})
}

func (h *BillHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	bills, err := h.bills.ListByHousehold(householdID)
	if err != nil {
		h.logger.Error("list bills", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while fetching bills.")
		return
	}

	members, err := h.households.ListMemberUsers(householdID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while fetching bills.")
		return
	}

	resp := make([]billResponse, 0, len(bills))
	for _, b := range bills {
		resp = append(resp, billResponse{
			Bill:  b,
			Split: billsplit.Split(b.AmountCents, members),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BillHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid bill id")
		return
	}

	bill, err := h.bills.GetByID(id)
	if err != nil {
		h.logger.Error("get bill", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while deleting bill.")
		return
	}
	if bill == nil || bill.HouseholdID != auth.HouseholdID(r.Context()) {
		writeMessage(w, http.StatusNotFound, "Bill not found.")
		return
	}

	if err := h.bills.Delete(id); err != nil {
		h.logger.Error("delete bill", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error while deleting bill.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
