package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tealeg/xlsx"

	"github.com/mmeshcher/wonderland/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

var orderHeaders = []string{
	"Order number", "Date", "Customer", "Phone", "Email",
	"Status", "Payment status", "Payment method",
	"Subtotal", "Discount", "Coupon", "Coupon discount", "Shipping", "Total", "Items",
}

func itemCount(o model.Order) int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func orderRecord(o model.Order) []string {
	return []string{
		o.Number,
		o.CreatedAt.Format(timeLayout),
		o.Customer.Name,
		o.Customer.Phone,
		o.Customer.Email,
		string(o.Status),
		string(o.PaymentStatus),
		string(o.PaymentMethod),
		strconv.FormatInt(o.Subtotal, 10),
		strconv.FormatInt(o.Discount, 10),
		o.CouponCode,
		strconv.FormatInt(o.CouponDiscount, 10),
		strconv.FormatInt(o.ShippingCost, 10),
		strconv.FormatInt(o.Total, 10),
		strconv.Itoa(itemCount(o)),
	}
}

// WriteOrdersCSV выгружает заказы в CSV, по строке на заказ.
func WriteOrdersCSV(w io.Writer, orders []model.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(orderHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range orders {
		if err := cw.Write(orderRecord(o)); err != nil {
			return fmt.Errorf("write order %s: %w", o.Number, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOrdersXLSX выгружает заказы в книгу Excel с одним листом.
func WriteOrdersXLSX(w io.Writer, orders []model.Order) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range orderHeaders {
		header.AddCell().SetValue(h)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.Number)
		row.AddCell().SetValue(o.CreatedAt.Format(timeLayout))
		row.AddCell().SetValue(o.Customer.Name)
		row.AddCell().SetValue(o.Customer.Phone)
		row.AddCell().SetValue(o.Customer.Email)
		row.AddCell().SetValue(string(o.Status))
		row.AddCell().SetValue(string(o.PaymentStatus))
		row.AddCell().SetValue(string(o.PaymentMethod))
		row.AddCell().SetValue(o.Subtotal)
		row.AddCell().SetValue(o.Discount)
		row.AddCell().SetValue(o.CouponCode)
		row.AddCell().SetValue(o.CouponDiscount)
		row.AddCell().SetValue(o.ShippingCost)
		row.AddCell().SetValue(o.Total)
		row.AddCell().SetValue(itemCount(o))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// WriteSalesCSV выгружает продажи по дням и итоговую строку.
func WriteSalesCSV(w io.Writer, s *Sales) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Orders", "Revenue"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, d := range s.Days {
		if err := cw.Write([]string{d.Date, strconv.Itoa(d.Orders), strconv.FormatInt(d.Revenue, 10)}); err != nil {
			return fmt.Errorf("write day %s: %w", d.Date, err)
		}
	}
	if err := cw.Write([]string{"Total", strconv.Itoa(s.TotalOrders), strconv.FormatInt(s.TotalRevenue, 10)}); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// WritePointsCSV выгружает журнал операций с баллами.
func WritePointsCSV(w io.Writer, l *model.PointsLedger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Type", "Points", "Description", "Order"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range l.Transactions {
		rec := []string{
			t.CreatedAt.Format(timeLayout),
			string(t.Kind),
			strconv.FormatInt(t.Points, 10),
			t.Description,
			t.OrderID,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write transaction %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
