package handler

import (
	"net/http"
	"strconv"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/service"
	"github.com/mmeshcher/wonderland/internal/validation"
)

// recipient возвращает адресата уведомлений: admin при isAdmin=true, иначе
// userId или текущий пользователь.
func recipient(a service.Actor, userID string, isAdmin bool) string {
	if isAdmin {
		return model.AdminRecipient
	}
	if userID == "" {
		return a.UserID
	}
	return userID
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// ListNotifications возвращает уведомления и количество непрочитанных.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	to := recipient(a, r.URL.Query().Get("userId"), queryBool(r, "isAdmin"))

	res, err := h.service.ListNotifications(r.Context(), a, to, queryBool(r, "unreadOnly"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateNotification создаёт уведомление от имени администратора.
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req service.NotifyInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	n, err := h.service.Notify(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

type markReadRequest struct {
	NotificationID string `json:"notificationId"`
	MarkAll        bool   `json:"markAll"`
	UserID         string `json:"userId"`
	IsAdmin        bool   `json:"isAdmin"`
}

// MarkNotifications отмечает прочитанным одно уведомление или все уведомления адресата.
func (h *Handler) MarkNotifications(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if req.MarkAll {
		n, err := h.service.MarkAllNotificationsRead(r.Context(), a, recipient(a, req.UserID, req.IsAdmin))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
		return
	}

	if req.NotificationID == "" {
		h.fail(w, r, validation.New("missing or invalid fields", "notificationId"))
		return
	}
	if err := h.service.MarkNotificationRead(r.Context(), a, req.NotificationID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": 1})
}

// DeleteNotification удаляет уведомление по параметру id.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	if err := h.service.DeleteNotification(r.Context(), a, r.URL.Query().Get("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// StreamNotifications переключает соединение на websocket и передаёт новые уведомления.
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeMessage(w, http.StatusServiceUnavailable, "notification stream is disabled")
		return
	}
	a, _ := actor(r)
	h.stream.ServeWS(w, r, a.UserID, a.Admin)
}

// pushSubscriptionRequest повторяет формат PushSubscription.toJSON() браузера.
type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe сохраняет push-подписку браузера.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)

	var req pushSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	sub := model.PushSubscription{Endpoint: req.Endpoint, P256dh: req.Keys.P256dh, Auth: req.Keys.Auth}
	if err := h.service.SubscribePush(r.Context(), a, sub); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// Unsubscribe удаляет push-подписку.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		var req pushSubscriptionRequest
		if err := decodeJSON(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		endpoint = req.Endpoint
	}

	if err := h.service.UnsubscribePush(r.Context(), endpoint); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
