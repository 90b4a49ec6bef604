package model

import "time"

const (
	// PointsEarnDivisor задаёт сумму заказа, за которую начисляется один балл.
	PointsEarnDivisor = 1000
	// PointValue задаёт стоимость одного балла при списании.
	PointValue = 100
)

// PointsKind описывает тип операции с баллами.
type PointsKind string

const (
	PointsEarned   PointsKind = "earned"
	PointsRedeemed PointsKind = "redeemed"
	PointsExpired  PointsKind = "expired"
)

// PointsTransaction описывает запись журнала операций с баллами.
type PointsTransaction struct {
	ID          string     `json:"id"`
	Kind        PointsKind `json:"type"`
	Points      int64      `json:"points"`
	Description string     `json:"description"`
	OrderID     string     `json:"orderId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// PointsLedger содержит баланс баллов пользователя и история операций.
type PointsLedger struct {
	UserID         string              `json:"userId"`
	TotalPoints    int64               `json:"totalPoints"`
	LifetimePoints int64               `json:"lifetimePoints"`
	Transactions   []PointsTransaction `json:"transactions"`
}
