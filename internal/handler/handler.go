package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iurnickita/cardverify/internal/auth"
	"github.com/iurnickita/cardverify/internal/handler/config"
	"github.com/iurnickita/cardverify/internal/logger"
	"github.com/iurnickita/cardverify/internal/metrics"
	"github.com/iurnickita/cardverify/internal/model"
	"github.com/iurnickita/cardverify/internal/service"
)

const (
	queryCardKey   = "cardKey"
	maxRequestBody = 10 * 1024

	MsgInternalError = "Internal server error"

	// формат toISOString: UTC, миллисекунды
	soldAtLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Pinger проверяет доступность хранилища заказов.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, pinger Pinger,
	mtr *metrics.Metrics, gatherer prometheus.Gatherer, zaplog *zap.Logger) error {
	h := newHandler(auth, service, pinger, mtr, zaplog)
	router := h.newRouter(gatherer)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zaplog.Info("starting HTTP server", zap.String("addr", cfg.ServerAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zaplog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type handler struct {
	auth    auth.Auth
	service service.Service
	pinger  Pinger
	metrics *metrics.Metrics
	zaplog  *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, pinger Pinger, mtr *metrics.Metrics, zaplog *zap.Logger) *handler {
	return &handler{
		auth:    auth,
		service: service,
		pinger:  pinger,
		metrics: mtr,
		zaplog:  zaplog,
	}
}

func (h *handler) newRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	// проверка доступа на каждом входе отдельно
	r.Post("/verify-card", h.instrument("verify-card", logger.RequestLogMdlw(h.auth.Middleware(h.PostVerifyCard), h.zaplog)))
	r.Get("/verify-card", h.instrument("verify-card", logger.RequestLogMdlw(h.auth.Middleware(h.GetVerifyCard), h.zaplog)))
	r.Get("/ping", h.instrument("ping", h.Ping))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

type VerifyCardJSONRequest struct {
	CardKey json.RawMessage `json:"cardKey"`
}

type VerifyCardJSONResponse struct {
	Valid       bool    `json:"valid"`
	OrderID     string  `json:"orderId"`
	ProductName string  `json:"productName"`
	SoldAt      *string `json:"soldAt"`
}

type NotSoldJSONResponse struct {
	Valid bool `json:"valid"`
}

type ErrorJSONResponse struct {
	Error string `json:"error"`
}

// PostVerifyCard - ключ в теле запроса
func (h *handler) PostVerifyCard(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		h.badRequest(w, r, service.ErrMissingCardKey)
		return
	}

	var request VerifyCardJSONRequest
	if err = json.Unmarshal(body, &request); err != nil || request.CardKey == nil {
		h.badRequest(w, r, service.ErrMissingCardKey)
		return
	}
	// только строка; null, числа и объекты отклоняются
	var cardKey string
	if err = json.Unmarshal(request.CardKey, &cardKey); err != nil || string(request.CardKey) == "null" {
		h.badRequest(w, r, service.ErrMissingCardKey)
		return
	}

	h.verifyCard(w, r, cardKey)
}

// GetVerifyCard - ключ в параметре запроса, дальше как POST
func (h *handler) GetVerifyCard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has(queryCardKey) {
		h.badRequest(w, r, service.ErrMissingQueryParam)
		return
	}

	h.verifyCard(w, r, query.Get(queryCardKey))
}

func (h *handler) verifyCard(w http.ResponseWriter, r *http.Request, cardKey string) {
	result, err := h.service.VerifyCard(r.Context(), cardKey)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCardKey):
			h.badRequest(w, r, err)
		default:
			h.metrics.Verifications.WithLabelValues(r.Method, metrics.OutcomeError).Inc()
			h.zaplog.Error("card verification failed",
				zap.String("request_id", logger.RequestID(r.Context())),
				zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorJSONResponse{Error: MsgInternalError})
		}
		return
	}

	if !result.Valid {
		h.metrics.Verifications.WithLabelValues(r.Method, metrics.OutcomeNotSold).Inc()
		writeJSON(w, http.StatusOK, NotSoldJSONResponse{Valid: false})
		return
	}

	h.metrics.Verifications.WithLabelValues(r.Method, metrics.OutcomeValid).Inc()
	writeJSON(w, http.StatusOK, verifyCardResponse(result))
}

func (h *handler) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.zaplog.Error("order store is unavailable", zap.Error(err))
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.metrics.Verifications.WithLabelValues(r.Method, metrics.OutcomeBadRequest).Inc()
	writeJSON(w, http.StatusBadRequest, ErrorJSONResponse{Error: err.Error()})
}

// instrument пишет длительность обработки в метрики
func (h *handler) instrument(endpoint string, hf http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hf(w, r)
		h.metrics.EndpointLatency.WithLabelValues(endpoint, r.Method).Observe(time.Since(start).Seconds())
	}
}

func verifyCardResponse(result model.VerificationResult) VerifyCardJSONResponse {
	response := VerifyCardJSONResponse{
		Valid:       true,
		OrderID:     result.OrderID,
		ProductName: result.ProductName,
	}
	if result.SoldAt != nil {
		soldAt := result.SoldAt.UTC().Format(soldAtLayout)
		response.SoldAt = &soldAt
	}
	return response
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, MsgInternalError, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(responseJSON)
}
