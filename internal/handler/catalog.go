package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/wonderland/internal/service"
)

// ListReviews возвращает отзывы о товаре.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.ListReviews(r.Context(), r.URL.Query().Get("productId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

// AddReview сохраняет отзыв текущего пользователя.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	var req service.AddReviewInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.UserID = a.UserID
	if req.UserName == "" {
		req.UserName = a.Name
	}

	rv, err := h.service.AddReview(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

// DeleteReview удаляет отзыв. Администратор может удалить любой отзыв.
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	requester := a.UserID
	if a.Admin {
		requester = ""
	}
	if err := h.service.DeleteReview(r.Context(), r.URL.Query().Get("id"), requester); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// ListProducts возвращает товары каталога.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProduct возвращает товар.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateProduct добавляет товар в каталог.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProductInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListCoupons возвращает все купоны.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.service.ListCoupons(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, coupons)
}

// CreateCoupon создаёт купон.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCouponInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.service.CreateCoupon(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ValidateCoupon рассчитывает скидку купона для корзины.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req service.ValidateCouponInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	q, err := h.service.ValidateCoupon(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
