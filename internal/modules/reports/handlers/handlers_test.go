package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/aristath/assetflow/internal/modules/portfolio"
	"github.com/aristath/assetflow/internal/modules/reports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDashboards struct {
	err error
}

func (s stubDashboards) Dashboard(context.Context, bool) (portfolio.Dashboard, error) {
	return portfolio.Dashboard{Total: 100}, s.err
}

func serve(t *testing.T, source reports.DashboardSource) *httptest.ResponseRecorder {
	t.Helper()
	svc := reports.NewService(source, reports.NewXLSXGenerator(domain.CurrencyBRL, zerolog.Nop()), zerolog.Nop())

	router := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/reports/dashboard.xlsx", nil))
	return rec
}

func TestHandleDashboardXLSX(t *testing.T) {
	rec := serve(t, stubDashboards{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "assetflow_")
	assert.Equal(t, "PK", string(rec.Body.Bytes()[:2]), "xlsx is a zip archive")
}

func TestHandleDashboardXLSX_Error(t *testing.T) {
	rec := serve(t, stubDashboards{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}
