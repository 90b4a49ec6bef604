// Package report строит отчёты и выгрузки по заказам и баллам.
package report

import (
	"sort"
	"time"

	"github.com/mmeshcher/wonderland/internal/model"
)

const dateLayout = "2006-01-02"

// DailySales содержит продажи за один день.
type DailySales struct {
	Date    string `json:"date"`
	Orders  int    `json:"orders"`
	Revenue int64  `json:"revenue"`
}

// Sales содержит отчёт о продажах за период.
type Sales struct {
	From         *time.Time         `json:"from,omitempty"`
	To           *time.Time         `json:"to,omitempty"`
	Days         []DailySales       `json:"days"`
	TotalOrders  int                `json:"totalOrders"`
	TotalRevenue int64              `json:"totalRevenue"`
	StatusCounts model.StatusCounts `json:"statusCounts"`
}

// BuildSales группирует заказы по дням в часовом поясе loc. Отменённые заказы
// учитываются только в количестве по статусам.
func BuildSales(orders []model.Order, loc *time.Location) *Sales {
	if loc == nil {
		loc = time.UTC
	}

	res := &Sales{
		Days:         []DailySales{},
		StatusCounts: make(model.StatusCounts, len(model.OrderStatuses)),
	}
	for _, s := range model.OrderStatuses {
		res.StatusCounts[s] = 0
	}

	byDay := make(map[string]*DailySales)
	for _, o := range orders {
		res.StatusCounts[o.Status]++
		if o.Status == model.OrderStatusCancelled {
			continue
		}

		day := o.CreatedAt.In(loc).Format(dateLayout)
		d, ok := byDay[day]
		if !ok {
			d = &DailySales{Date: day}
			byDay[day] = d
		}
		d.Orders++
		d.Revenue += o.Total

		res.TotalOrders++
		res.TotalRevenue += o.Total
	}

	for _, d := range byDay {
		res.Days = append(res.Days, *d)
	}
	sort.Slice(res.Days, func(i, j int) bool { return res.Days[i].Date < res.Days[j].Date })

	return res
}
