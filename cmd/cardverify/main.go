package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/iurnickita/cardverify/internal/auth"
	"github.com/iurnickita/cardverify/internal/config"
	"github.com/iurnickita/cardverify/internal/handler"
	"github.com/iurnickita/cardverify/internal/logger"
	"github.com/iurnickita/cardverify/internal/metrics"
	"github.com/iurnickita/cardverify/internal/service"
	"github.com/iurnickita/cardverify/internal/store"
	storeConfig "github.com/iurnickita/cardverify/internal/store/config"
	"github.com/iurnickita/cardverify/internal/store/memstore"
	"github.com/iurnickita/cardverify/internal/store/orderclient"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	store, err := newStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	zaplog.Info("order store selected", zap.String("kind", cfg.Store.Kind))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mtr := metrics.New(reg)

	auth := auth.NewAuth(cfg.Auth, mtr, zaplog)
	service := service.NewService(store, zaplog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = handler.Serve(ctx, cfg.Handler, auth, service, store, mtr, reg, zaplog)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func newStore(cfg storeConfig.Config) (store.Store, error) {
	switch cfg.Kind {
	case storeConfig.KindRemote:
		return orderclient.NewOrderClient(cfg)
	case storeConfig.KindMemory:
		return memstore.NewMemStore(), nil
	default:
		return store.NewStore(cfg)
	}
}
