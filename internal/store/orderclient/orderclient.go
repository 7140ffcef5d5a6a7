package orderclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/cardverify/internal/model"
	"github.com/iurnickita/cardverify/internal/store"
	"github.com/iurnickita/cardverify/internal/store/config"
)

const (
	pathSales = "/api/sales"
	pathPing  = "/ping"
)

// JSON ответ сервиса заказов
type SaleAnswer struct {
	OrderID     string     `json:"orderId"`
	CardKey     string     `json:"cardKey"`
	ProductName string     `json:"productName"`
	Status      string     `json:"status"`
	PaidAt      *time.Time `json:"paidAt"`
	DeliveredAt *time.Time `json:"deliveredAt"`
}

type orderClient struct {
	client *resty.Client
}

// NewOrderClient - хранилище поверх HTTP API системы выдачи заказов.
func NewOrderClient(cfg config.Config) (store.Store, error) {
	if cfg.OrderServiceAddr == "" {
		return nil, fmt.Errorf("order service address is empty")
	}
	client := resty.New().
		SetBaseURL(cfg.OrderServiceAddr).
		SetTimeout(cfg.OrderTimeout).
		SetHeader("Accept", "application/json")
	return &orderClient{client: client}, nil
}

func (c *orderClient) SaleGetEligible(ctx context.Context, cardKey string, statuses []string) (model.SaleRecord, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("cardKey", cardKey).
		SetQueryParamsFromValues(url.Values{"status": statuses}).
		Get(pathSales)
	if err != nil {
		return model.SaleRecord{}, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return model.SaleRecord{}, store.ErrNoRows
	default:
		return model.SaleRecord{}, fmt.Errorf("order service status: %d", resp.StatusCode())
	}

	var answer SaleAnswer
	if err = json.Unmarshal(resp.Body(), &answer); err != nil {
		return model.SaleRecord{}, fmt.Errorf("order service answer: %w", err)
	}

	// фильтр сервиса не проверяем на слово
	if answer.CardKey != "" && answer.CardKey != cardKey {
		return model.SaleRecord{}, store.ErrNoRows
	}
	if answer.Status != "" && !statusIn(answer.Status, statuses) {
		return model.SaleRecord{}, store.ErrNoRows
	}

	return model.SaleRecord{
		OrderID: answer.OrderID,
		Data: model.SaleRecordData{
			CardKey:     cardKey,
			ProductName: answer.ProductName,
			Status:      answer.Status,
			PaidAt:      answer.PaidAt,
			DeliveredAt: answer.DeliveredAt,
		},
	}, nil
}

func (c *orderClient) Ping(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get(pathPing)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("order service status: %d", resp.StatusCode())
	}
	return nil
}

func (c *orderClient) Close() error {
	return nil
}

func statusIn(status string, statuses []string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
