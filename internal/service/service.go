package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iurnickita/cardverify/internal/model"
	"github.com/iurnickita/cardverify/internal/store"
)

type Service interface {
	// VerifyCard отвечает, продан ли ключ. Отсутствие продажи - не ошибка, а Valid: false.
	VerifyCard(ctx context.Context, cardKey string) (model.VerificationResult, error)
}

var (
	ErrMissingCardKey    = errors.New("Missing or invalid cardKey parameter")
	ErrMissingQueryParam = errors.New("Missing cardKey query parameter")
	ErrEmptyCardKey      = errors.New("Card key cannot be empty")
)

var tracer = otel.Tracer("github.com/iurnickita/cardverify/internal/service")

type service struct {
	store  store.Store
	zaplog *zap.Logger
}

func NewService(store store.Store, zaplog *zap.Logger) Service {
	return &service{
		store:  store,
		zaplog: zaplog,
	}
}

// NormalizeCardKey обрезает пробелы по краям. Регистр и набор символов не меняются.
func NormalizeCardKey(raw string) (string, error) {
	cardKey := strings.TrimSpace(raw)
	if cardKey == "" {
		return "", ErrEmptyCardKey
	}
	return cardKey, nil
}

func (service *service) VerifyCard(ctx context.Context, cardKey string) (model.VerificationResult, error) {
	ctx, span := tracer.Start(ctx, "service.VerifyCard", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	cardKey, err := NormalizeCardKey(cardKey)
	if err != nil {
		return model.VerificationResult{}, err
	}

	sale, err := service.store.SaleGetEligible(ctx, cardKey, model.SaleStatusesEligible)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			span.SetAttributes(attribute.Bool("verify.valid", false))
			return model.VerificationResult{Valid: false}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "order store lookup failed")
		return model.VerificationResult{}, fmt.Errorf("sale lookup: %w", err)
	}

	// хранилище могло вернуть статус вне допустимых - такую продажу не раскрываем
	if sale.Data.Status != "" && !model.SaleStatusEligible(sale.Data.Status) {
		service.zaplog.Warn("order store returned ineligible sale",
			zap.String("order_id", sale.OrderID),
			zap.String("status", sale.Data.Status))
		span.SetAttributes(attribute.Bool("verify.valid", false))
		return model.VerificationResult{Valid: false}, nil
	}

	span.SetAttributes(attribute.Bool("verify.valid", true))
	return model.VerificationResult{
		Valid:       true,
		OrderID:     sale.OrderID,
		ProductName: sale.Data.ProductName,
		SoldAt:      sale.SoldAt(),
	}, nil
}
