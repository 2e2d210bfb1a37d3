package http

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Symbol   string   `json:"symbol" validate:"required"`
	Side     string   `json:"side" validate:"required,oneof=BUY SELL"`
	Quantity float64  `json:"quantity" validate:"gt=0,finite"`
	Price    *float64 `json:"price" validate:"omitempty,gt=0,finite"`
	Type     string   `json:"order_type" default:"MARKET"`
}

func newContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	c, _ := newContext(`{"symbol":"GARAN","side":"BUY","quantity":10}`)
	var req sampleRequest
	require.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, "MARKET", req.Type)
}

func TestReadAndValidateRequestReportsFields(t *testing.T) {
	c, _ := newContext(`{"side":"HOLD","quantity":0}`)
	var req sampleRequest
	errs, ok := ReadAndValidateRequest(c, &req).([]ValidationError)
	require.True(t, ok)

	fields := map[string]string{}
	for _, e := range errs {
		fields[e.Field] = e.Code
	}
	assert.Equal(t, "ERR_REQUIRED", fields["symbol"])
	assert.Equal(t, "ERR_ONEOF", fields["side"])
	assert.Equal(t, "ERR_GT", fields["quantity"])
}

func TestReadAndValidateRequestBadJSON(t *testing.T) {
	c, _ := newContext(`{"symbol":`)
	var req sampleRequest
	errs, ok := ReadAndValidateRequest(c, &req).([]ValidationError)
	require.True(t, ok)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}

func TestFiniteRejectsNaNAndInf(t *testing.T) {
	inf := math.Inf(1)
	assert.NotNil(t, ValidateStruct(sampleRequest{Symbol: "X", Side: "BUY", Quantity: math.NaN()}))
	assert.NotNil(t, ValidateStruct(sampleRequest{Symbol: "X", Side: "BUY", Quantity: 1, Price: &inf}))
	assert.Nil(t, ValidateStruct(sampleRequest{Symbol: "X", Side: "BUY", Quantity: 1}))
}

func TestAppErrorResponseUsesStatus(t *testing.T) {
	c, rec := newContext("")
	require.NoError(t, AppErrorResponse(c, ConflictErrorf("trade %s is not open", "abc")))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusConflict, body.Status)

	c, rec = newContext("")
	require.NoError(t, AppErrorResponse(c, errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
}

func TestServerRoutesAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(nil, pingHandler{}, WithRegistry(reg, reg))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fusion_http_requests_total")
}
