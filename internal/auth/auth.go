package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/iurnickita/cardverify/internal/auth/config"
	"github.com/iurnickita/cardverify/internal/logger"
	"github.com/iurnickita/cardverify/internal/metrics"
)

type Auth interface {
	Authorize(credential string) bool
	Middleware(h http.HandlerFunc) http.HandlerFunc
}

const (
	HeaderAuthorization = "Authorization"
	bearerPrefix        = "Bearer "

	MsgUnauthorized = "Unauthorized: Invalid or missing API key"
)

type auth struct {
	apiKey  []byte
	metrics *metrics.Metrics
	zaplog  *zap.Logger
}

// NewAuth создаёт проверку доступа по общему секрету.
// Без секрета проверка отклоняет все запросы.
func NewAuth(cfg config.Config, mtr *metrics.Metrics, zaplog *zap.Logger) Auth {
	if cfg.APIKey == "" {
		zaplog.Error("API key is not configured, all verification requests will be rejected")
	}
	return &auth{
		apiKey:  []byte(cfg.APIKey),
		metrics: mtr,
		zaplog:  zaplog,
	}
}

// ExtractToken снимает префикс "Bearer ", если он есть.
func ExtractToken(header string) string {
	return strings.TrimPrefix(header, bearerPrefix)
}

func (a *auth) Authorize(credential string) bool {
	if len(a.apiKey) == 0 {
		return false
	}
	token := ExtractToken(credential)
	return subtle.ConstantTimeCompare([]byte(token), a.apiKey) == 1
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.Authorize(r.Header.Get(HeaderAuthorization)) {
			a.metrics.AuthFailures.Inc()
			a.metrics.Verifications.WithLabelValues(r.Method, metrics.OutcomeUnauthorized).Inc()
			if len(a.apiKey) == 0 {
				// ошибка конфигурации, а не клиента
				a.zaplog.Error("request rejected: API key is not configured",
					zap.String("request_id", logger.RequestID(r.Context())))
			} else {
				a.zaplog.Info("request rejected: invalid credential",
					zap.String("request_id", logger.RequestID(r.Context())),
					zap.Bool("credential_provided", r.Header.Get(HeaderAuthorization) != ""))
			}
			writeUnauthorized(w)
			return
		}

		h.ServeHTTP(w, r)
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": MsgUnauthorized})
}
