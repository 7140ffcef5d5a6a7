package handler

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/iurnickita/cardverify/internal/auth"
	authConfig "github.com/iurnickita/cardverify/internal/auth/config"
	"github.com/iurnickita/cardverify/internal/metrics"
	"github.com/iurnickita/cardverify/internal/model"
	"github.com/iurnickita/cardverify/internal/service"
	"github.com/iurnickita/cardverify/internal/store/memstore"
)

const testAPIKey = "test-secret"

var (
	paidAt      = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	deliveredAt = time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
)

type HandlerSuite struct {
	suite.Suite
	store   *memstore.MemStore
	metrics *metrics.Metrics
	router  http.Handler
}

func (s *HandlerSuite) SetupTest() {
	s.store = memstore.NewMemStore(
		model.SaleRecord{OrderID: "order-1", Data: model.SaleRecordData{
			CardKey: "ABC-123", ProductName: "Game Key", Status: model.SaleStatusPaid,
			PaidAt: &paidAt, DeliveredAt: &deliveredAt}},
		model.SaleRecord{OrderID: "order-2", Data: model.SaleRecordData{
			CardKey: "DEF-456", ProductName: "DLC Key", Status: model.SaleStatusDelivered,
			DeliveredAt: &deliveredAt}},
		model.SaleRecord{OrderID: "order-3", Data: model.SaleRecordData{
			CardKey: "PEN-789", ProductName: "Pending Key", Status: model.SaleStatusPending}},
		model.SaleRecord{OrderID: "order-4", Data: model.SaleRecordData{
			CardKey: "NIL-000", ProductName: "Legacy Key", Status: model.SaleStatusPaid}},
	)
	s.router = s.newRouter(testAPIKey)
}

func (s *HandlerSuite) newRouter(apiKey string) http.Handler {
	reg := prometheus.NewRegistry()
	s.metrics = metrics.New(reg)
	zaplog := zap.NewNop()

	a := auth.NewAuth(authConfig.Config{APIKey: apiKey}, s.metrics, zaplog)
	svc := service.NewService(s.store, zaplog)
	return newHandler(a, svc, s.store, s.metrics, zaplog).newRouter(reg)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) post(body, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/verify-card", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set(auth.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) get(rawQuery, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/verify-card?"+rawQuery, nil)
	if authHeader != "" {
		req.Header.Set(auth.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestUnauthorizedBeforeValidation() {
	bodies := []string{`{"cardKey":"ABC-123"}`, `{"cardKey":"   "}`, `{}`, `not json`}
	for _, header := range []string{"", "Bearer wrong", "wrong"} {
		for _, body := range bodies {
			rec := s.post(body, header)
			s.Equal(http.StatusUnauthorized, rec.Code, "header %q body %q", header, body)
			s.JSONEq(`{"error":"Unauthorized: Invalid or missing API key"}`, rec.Body.String())
		}
		rec := s.get("", header)
		s.Equal(http.StatusUnauthorized, rec.Code)
	}
}

func (s *HandlerSuite) TestUnauthorizedWithoutConfiguredKey() {
	router := s.newRouter("")

	for _, header := range []string{"", "Bearer ", "Bearer anything"} {
		req := httptest.NewRequest(http.MethodPost, "/verify-card", strings.NewReader(`{"cardKey":"ABC-123"}`))
		if header != "" {
			req.Header.Set(auth.HeaderAuthorization, header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	}
}

func (s *HandlerSuite) TestPostValid() {
	for _, header := range []string{"Bearer " + testAPIKey, testAPIKey} {
		for _, key := range []string{"ABC-123", " ABC-123 ", "\tABC-123\n"} {
			rec := s.post(`{"cardKey":`+quote(key)+`}`, header)
			s.Equal(http.StatusOK, rec.Code)
			s.Equal("application/json", rec.Header().Get("Content-Type"))
			s.JSONEq(`{"valid":true,"orderId":"order-1","productName":"Game Key","soldAt":"2024-03-01T10:30:00.000Z"}`,
				rec.Body.String())
		}
	}
	s.Equal(6.0, testutil.ToFloat64(s.metrics.Verifications.WithLabelValues(http.MethodPost, metrics.OutcomeValid)))
}

func (s *HandlerSuite) TestPostSoldAtFallsBackToDelivery() {
	rec := s.post(`{"cardKey":"DEF-456"}`, "Bearer "+testAPIKey)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"valid":true,"orderId":"order-2","productName":"DLC Key","soldAt":"2024-03-02T08:00:00.000Z"}`,
		rec.Body.String())
}

func (s *HandlerSuite) TestPostSoldAtNull() {
	rec := s.post(`{"cardKey":"NIL-000"}`, "Bearer "+testAPIKey)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"valid":true,"orderId":"order-4","productName":"Legacy Key","soldAt":null}`, rec.Body.String())
}

func (s *HandlerSuite) TestPostNotSold() {
	// pending не раскрывается, неизвестный ключ и другой регистр - тоже
	for _, key := range []string{"PEN-789", "UNKNOWN", "abc-123"} {
		rec := s.post(`{"cardKey":`+quote(key)+`}`, "Bearer "+testAPIKey)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(`{"valid":false}`, rec.Body.String())
	}
}

func (s *HandlerSuite) TestPostBadRequest() {
	tests := []struct {
		body string
		want string
	}{
		{`{}`, `{"error":"Missing or invalid cardKey parameter"}`},
		{`{"cardKey":null}`, `{"error":"Missing or invalid cardKey parameter"}`},
		{`{"cardKey":123}`, `{"error":"Missing or invalid cardKey parameter"}`},
		{`{"cardKey":["ABC-123"]}`, `{"error":"Missing or invalid cardKey parameter"}`},
		{`{"card_key":"ABC-123"}`, `{"error":"Missing or invalid cardKey parameter"}`},
		{`not json`, `{"error":"Missing or invalid cardKey parameter"}`},
		{``, `{"error":"Missing or invalid cardKey parameter"}`},
		{`{"cardKey":""}`, `{"error":"Card key cannot be empty"}`},
		{`{"cardKey":"   "}`, `{"error":"Card key cannot be empty"}`},
		{`{"cardKey":"\t\n"}`, `{"error":"Card key cannot be empty"}`},
	}
	for _, tt := range tests {
		rec := s.post(tt.body, "Bearer "+testAPIKey)
		s.Equal(http.StatusBadRequest, rec.Code, tt.body)
		s.JSONEq(tt.want, rec.Body.String(), tt.body)
	}
}

func (s *HandlerSuite) TestGetMatchesPost() {
	for _, key := range []string{"ABC-123", " ABC-123 ", "DEF-456", "PEN-789", "UNKNOWN", "   "} {
		postRec := s.post(`{"cardKey":`+quote(key)+`}`, "Bearer "+testAPIKey)
		getRec := s.get("cardKey="+url.QueryEscape(key), "Bearer "+testAPIKey)

		s.Equal(postRec.Code, getRec.Code, key)
		s.Equal(postRec.Body.Bytes(), getRec.Body.Bytes(), key)
	}
}

func (s *HandlerSuite) TestGetMissingQueryParam() {
	rec := s.get("", "Bearer "+testAPIKey)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.JSONEq(`{"error":"Missing cardKey query parameter"}`, rec.Body.String())

	rec = s.get("card_key=ABC-123", "Bearer "+testAPIKey)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.JSONEq(`{"error":"Missing cardKey query parameter"}`, rec.Body.String())
}

func (s *HandlerSuite) TestStoreFailureIsOpaque() {
	s.store.WithError(errors.New(`pq: relation "sale_order" does not exist`))

	for _, rec := range []*httptest.ResponseRecorder{
		s.post(`{"cardKey":"ABC-123"}`, "Bearer "+testAPIKey),
		s.get("cardKey=ABC-123", "Bearer "+testAPIKey),
	} {
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.JSONEq(`{"error":"Internal server error"}`, rec.Body.String())
		s.NotContains(rec.Body.String(), "sale_order")
	}
}

func (s *HandlerSuite) TestIdempotent() {
	first := s.post(`{"cardKey":"ABC-123"}`, "Bearer "+testAPIKey)
	for i := 0; i < 5; i++ {
		rec := s.post(`{"cardKey":"ABC-123"}`, "Bearer "+testAPIKey)
		s.Equal(first.Code, rec.Code)
		s.Equal(first.Body.String(), rec.Body.String())
	}
}

func (s *HandlerSuite) TestMethodNotAllowed() {
	req := httptest.NewRequest(http.MethodDelete, "/verify-card", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func (s *HandlerSuite) TestPing() {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)

	s.store.WithError(errors.New("down"))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusInternalServerError, rec.Code)
}

func (s *HandlerSuite) TestMetricsEndpoint() {
	s.post(`{"cardKey":"ABC-123"}`, "Bearer "+testAPIKey)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	s.Require().NoError(err)
	s.Contains(string(body), "cardverify_verifications_total")
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\t", `\t`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
