package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/assetflow/internal/modules/dividends"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCalendar struct {
	events []dividends.Event
	err    error
}

func (s stubCalendar) Calendar(context.Context) ([]dividends.Event, error) {
	return s.events, s.err
}

func get(source CalendarSource) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	NewHandler(source, zerolog.Nop()).RegisterRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/calendar", nil))
	return rec
}

func TestHandleCalendar(t *testing.T) {
	rec := get(stubCalendar{events: []dividends.Event{
		{Symbol: "HGLG11", Date: "2024-05-31", ValuePerShare: 1.1, Quantity: 20, Total: 22, Status: dividends.StatusAnnounced},
	}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "HGLG11", body[0]["symbol"])
	assert.Equal(t, 22.0, body[0]["total"])
	assert.Equal(t, "announced", body[0]["status"])
}

func TestHandleCalendar_Empty(t *testing.T) {
	rec := get(stubCalendar{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleCalendar_Error(t *testing.T) {
	rec := get(stubCalendar{err: errors.New("portfolio.db locked")})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "portfolio.db locked")
}
