// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Error описывает некорректные или отсутствующие поля запроса.
type Error struct {
	Reason string
	Fields []string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

// New создаёт ошибку валидации с причиной и списком полей.
func New(reason string, fields ...string) *Error {
	return &Error{Reason: reason, Fields: fields}
}

// IsError сообщает, является ли err ошибкой валидации.
func IsError(err error) bool {
	var vErr *Error
	return errors.As(err, &vErr)
}

// Checker накапливает отсутствующие поля, чтобы отклонить запрос целиком.
type Checker struct {
	missing []string
}

// Require отмечает поле как отсутствующее, если значение пустое.
func (c *Checker) Require(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.missing = append(c.missing, field)
	}
}

// Check отмечает поле как некорректное, если условие не выполнено.
func (c *Checker) Check(field string, ok bool) {
	if !ok {
		c.missing = append(c.missing, field)
	}
}

// Err возвращает накопленную ошибку или nil.
func (c *Checker) Err() error {
	if len(c.missing) == 0 {
		return nil
	}
	return New("missing or invalid fields", c.missing...)
}

// IsValidOrderNumber проверяет формат номера заказа: WL, шесть цифр даты и четыре цифры суффикса.
func IsValidOrderNumber(number string) bool {
	if len(number) != 12 || !strings.HasPrefix(number, "WL") {
		return false
	}
	for _, ch := range number[2:] {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// IsValidRating проверяет, что оценка лежит в диапазоне от 1 до 5.
func IsValidRating(rating int) bool {
	return rating >= 1 && rating <= 5
}

// NormalizeCouponCode приводит код купона к каноническому виду.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeEmail приводит адрес почты к каноническому виду.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
