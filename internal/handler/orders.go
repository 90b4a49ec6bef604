package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/report"
	"github.com/mmeshcher/wonderland/internal/service"
	"github.com/mmeshcher/wonderland/internal/validation"
)

// CreateOrder оформляет заказ текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	var req service.CreateOrderInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.UserID == "" || !a.Admin {
		req.UserID = a.UserID
	}

	order, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// UpdateOrder меняет статус заказа и/или статус оплаты.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateStatusInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// DeleteOrder удаляет заказ по параметру id.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrder(r.Context(), r.URL.Query().Get("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// GetOrder возвращает заказ владельцу или администратору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	order, err := h.service.GetOrder(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// orderFilter читает фильтр заказов из параметров запроса. isAdmin=true
// у администратора снимает фильтр по владельцу.
func orderFilter(r *http.Request, a service.Actor) model.OrderFilter {
	q := r.URL.Query()
	f := model.OrderFilter{
		UserID: q.Get("userId"),
		Status: model.OrderStatus(q.Get("status")),
	}
	if f.UserID == "" {
		if all, _ := strconv.ParseBool(q.Get("isAdmin")); !all || !a.Admin {
			f.UserID = a.UserID
		}
	}
	return f
}

// ListOrders возвращает заказы пользователя или, для администратора, все заказы.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	res, err := h.service.ListOrders(r.Context(), a, orderFilter(r, a))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExportOrders выгружает заказы в CSV или XLSX.
func (h *Handler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.OrderFilter{UserID: q.Get("userId"), Status: model.OrderStatus(q.Get("status"))}

	format := q.Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		h.fail(w, r, validation.New("missing or invalid fields", "format"))
		return
	}

	orders, err := h.service.ExportOrders(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	filename := fmt.Sprintf("orders.%s", format)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	if format == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = report.WriteOrdersXLSX(w, orders)
	} else {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = report.WriteOrdersCSV(w, orders)
	}
	if err != nil {
		h.logger.Error("export orders", zap.String("format", format), zap.Error(err))
	}
}
