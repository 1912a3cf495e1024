package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"quiz-deck/internal/domain"
	"quiz-deck/internal/dto"
	"quiz-deck/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestApp(handler fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(RequestID())
	app.Use(RequestLogger())
	app.Get("/", handler)
	return app
}

func decodeError(t *testing.T, resp *http.Response) dto.ErrorResponse {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestErrorHandler_MapsCodes(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{domain.NewInvalidIdentifierError("x"), http.StatusBadRequest},
		{domain.NewInvalidUploadError("missing file", nil), http.StatusBadRequest},
		{domain.NewUnsupportedFormatError("not a PDF document", nil), http.StatusBadRequest},
		{domain.NewNotFoundError("01HZX3W8V3K6N0M9Q2R4T6Y8B1"), http.StatusNotFound},
		{domain.NewNoStructuredPayloadError("nothing"), http.StatusInternalServerError},
		{domain.NewMalformedPayloadError("{", errors.New("eof")), http.StatusInternalServerError},
		{domain.NewGenerationTimeoutError(nil), http.StatusInternalServerError},
		{domain.NewGenerationUnavailableError(3, nil), http.StatusInternalServerError},
		{domain.NewGenerationRejectedError(nil), http.StatusInternalServerError},
		{domain.NewStorageUnavailableError("down", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		domainErr := tt.err.(*domain.DomainError)
		t.Run(string(domainErr.Code), func(t *testing.T) {
			app := newTestApp(func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, string(domainErr.Code), body.Code)
			assert.Equal(t, tt.wantStatus, body.Status)
		})
	}
}

func TestErrorHandler_SchemaViolationDetails(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		return domain.NewSchemaViolationError("data[3].answer", "integer between 0 and 4", "raw").
			WithContext("stage", "validating")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	body := decodeError(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "data[3].answer", body.Details["field"])
	assert.Equal(t, "integer between 0 and 4", body.Details["expected"])
	assert.Equal(t, "validating", body.Details["stage"])
	assert.NotContains(t, body.Details, "raw")
}

func TestErrorHandler_FiberAndUnknownErrors(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error { return errors.New("kaboom") })
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp).Code)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "HTTP_ERROR", decodeError(t, resp).Code)
}

func TestErrorHandler_OversizedBodyIsInvalidUpload(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error { return fiber.ErrRequestEntityTooLarge })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, string(domain.CodeInvalidUpload), body.Code)
	assert.Equal(t, http.StatusBadRequest, body.Status)
}

func TestRequestID_EchoesOrMints(t *testing.T) {
	var seen string
	app := newTestApp(func(c *fiber.Ctx) error {
		seen = logger.RequestID(c.UserContext())
		return c.SendStatus(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "caller-id", resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "caller-id", seen)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(RequestIDHeader), 36)
	assert.Equal(t, resp.Header.Get(RequestIDHeader), seen)
}

func TestRequestLogger_LogsFinalStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	defer logger.Replace(zap.New(core))()

	app := newTestApp(func(c *fiber.Ctx) error { return domain.NewNotFoundError("01HZX3W8V3K6N0M9Q2R4T6Y8B1") })
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.Equal(t, "GET", fields["method"])
	assert.NotEmpty(t, fields["request_id"])
}
