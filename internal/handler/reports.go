package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/report"
	"github.com/mmeshcher/wonderland/internal/validation"
)

const dateLayout = "2006-01-02"

// parseDay разбирает дату YYYY-MM-DD. Для границы to возвращается начало следующего дня.
func parseDay(value string, inclusiveEnd bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return nil, err
	}
	if inclusiveEnd {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// SalesReport возвращает продажи по дням за период from..to включительно.
func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseDay(q.Get("from"), false)
	if err != nil {
		h.fail(w, r, validation.New("missing or invalid fields", "from"))
		return
	}
	to, err := parseDay(q.Get("to"), true)
	if err != nil {
		h.fail(w, r, validation.New("missing or invalid fields", "to"))
		return
	}

	sales, err := h.service.SalesReport(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if q.Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=sales.csv")
		if err := report.WriteSalesCSV(w, sales); err != nil {
			h.logger.Error("export sales", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, sales)
}
