package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/cardverify/internal/model"
	"github.com/iurnickita/cardverify/internal/store/config"
)

//go:generate mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks Store

// Store - хранилище заказов. Только чтение: продажи ведёт внешняя система.
type Store interface {
	// SaleGetEligible возвращает первую продажу с ключом cardKey и статусом из statuses.
	// Если такой нет - ErrNoRows.
	SaleGetEligible(ctx context.Context, cardKey string, statuses []string) (model.SaleRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNoRows = errors.New("no rows")
)

const pingTimeout = 5 * time.Second

type store struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	if cfg.DBDsn == "" {
		return nil, errors.New("database DSN is empty")
	}
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Схемой владеет внешняя система; проверяем только доступность базы
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &store{
		database: db,
	}, nil
}

func (store *store) SaleGetEligible(ctx context.Context, cardKey string, statuses []string) (model.SaleRecord, error) {
	// Порядок не задан: при нескольких подходящих продажах берётся первая попавшаяся
	row := store.database.QueryRowContext(ctx,
		"SELECT order_id, product_name, paid_at, delivered_at"+
			" FROM sale_order"+
			" WHERE card_key = $1"+
			"   AND status = ANY($2)"+
			" LIMIT 1",
		cardKey,
		statuses)

	var (
		sale        model.SaleRecord
		paidAt      sql.NullTime
		deliveredAt sql.NullTime
	)
	err := row.Scan(&sale.OrderID,
		&sale.Data.ProductName,
		&paidAt,
		&deliveredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SaleRecord{}, ErrNoRows
		}
		return model.SaleRecord{}, err
	}

	sale.Data.CardKey = cardKey
	sale.Data.PaidAt = nullTime(paidAt)
	sale.Data.DeliveredAt = nullTime(deliveredAt)
	return sale, nil
}

func (store *store) Ping(ctx context.Context) error {
	return store.database.PingContext(ctx)
}

func (store *store) Close() error {
	return store.database.Close()
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
