package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/report"
	"github.com/mmeshcher/wonderland/internal/service"
	"github.com/mmeshcher/wonderland/internal/validation"
)

type pointsRequest struct {
	UserID      string           `json:"userId"`
	Type        model.PointsKind `json:"type"`
	Points      int64            `json:"points"`
	OrderAmount int64            `json:"orderAmount"`
	OrderID     string           `json:"orderId"`
	Description string           `json:"description"`
}

type pointsResponse struct {
	*model.PointsLedger
	RedemptionValue int64 `json:"redemptionValue"`
}

func ledgerResponse(l *model.PointsLedger) pointsResponse {
	return pointsResponse{PointsLedger: l, RedemptionValue: service.RedemptionValue(l.TotalPoints)}
}

// pointsOwner возвращает счёт из параметра userId, по умолчанию счёт текущего пользователя.
func pointsOwner(a service.Actor, userID string) (string, error) {
	if userID == "" {
		userID = a.UserID
	}
	if !a.Owns(userID) {
		return "", service.ErrForbidden
	}
	return userID, nil
}

// GetPoints возвращает баланс и историю операций с баллами.
func (h *Handler) GetPoints(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	userID, err := pointsOwner(a, r.URL.Query().Get("userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	l, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerResponse(l))
}

// PostPoints начисляет, списывает или сжигает баллы. Начисление и сгорание
// доступны только администратору.
func (h *Handler) PostPoints(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	var req pointsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	userID, err := pointsOwner(a, req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var l *model.PointsLedger
	switch req.Type {
	case model.PointsEarned:
		if !a.Admin {
			h.fail(w, r, service.ErrForbidden)
			return
		}
		l, err = h.service.EarnPoints(r.Context(), userID, req.OrderAmount, req.OrderID)
	case model.PointsRedeemed:
		l, err = h.service.RedeemPoints(r.Context(), userID, req.Points, req.Description)
	case model.PointsExpired:
		if !a.Admin {
			h.fail(w, r, service.ErrForbidden)
			return
		}
		l, err = h.service.ExpirePoints(r.Context(), userID, req.Points, req.Description)
	default:
		err = validation.New("missing or invalid fields", "type")
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerResponse(l))
}

// ExportPoints выгружает журнал операций с баллами в CSV.
func (h *Handler) ExportPoints(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	userID, err := pointsOwner(a, r.URL.Query().Get("userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	l, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=points.csv")
	if err := report.WritePointsCSV(w, l); err != nil {
		h.logger.Error("export points", zap.String("user_id", userID), zap.Error(err))
	}
}
