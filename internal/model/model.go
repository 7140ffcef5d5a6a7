package model

import "time"

// Продажи (карточные ключи)

type SaleRecord struct {
	OrderID string
	Data    SaleRecordData
}
type SaleRecordData struct {
	CardKey     string
	ProductName string
	Status      string
	PaidAt      *time.Time
	DeliveredAt *time.Time
}

const (
	SaleStatusPending   = "pending"
	SaleStatusPaid      = "paid"
	SaleStatusDelivered = "delivered"
	SaleStatusRefunded  = "refunded"
	SaleStatusCancelled = "cancelled"
)

// Статусы, при которых продажа считается завершённой
var SaleStatusesEligible = []string{SaleStatusPaid, SaleStatusDelivered}

func SaleStatusEligible(status string) bool {
	for _, eligible := range SaleStatusesEligible {
		if status == eligible {
			return true
		}
	}
	return false
}

// SoldAt: время оплаты, если нет - время доставки
func (sale SaleRecord) SoldAt() *time.Time {
	if sale.Data.PaidAt != nil {
		return sale.Data.PaidAt
	}
	return sale.Data.DeliveredAt
}

// Результат проверки

type VerificationResult struct {
	Valid       bool
	OrderID     string
	ProductName string
	SoldAt      *time.Time
}
