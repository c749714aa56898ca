package metricsvc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/reminder"
)

func TestMetrics_Middleware(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/students/:id", func(ctx echo.Context) error {
		if ctx.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "student not found")
		}
		return ctx.NoContent(http.StatusOK)
	})

	tests := []struct {
		path string
		code int
	}{
		{"/students/1", http.StatusOK},
		{"/students/2", http.StatusOK},
		{"/students/missing", http.StatusNotFound},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		require.Equal(t, tc.code, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/students/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/students/:id", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestMetrics_Observers(t *testing.T) {
	m := New()
	m.PaymentRecorded(payment.Payment{PaymentType: payment.TypeMonthlyTuition, PaymentMethod: payment.MethodCash, Amount: decimal.NewFromInt(50000)})
	m.PaymentRecorded(payment.Payment{PaymentType: payment.TypeMonthlyTuition, PaymentMethod: payment.MethodCash, Amount: decimal.NewFromInt(25000)})
	m.ReminderDispatched(reminder.ChannelEmail, reminder.StatusSent)
	m.ReminderDispatched(reminder.ChannelSMS, reminder.StatusFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.payments.WithLabelValues(payment.TypeMonthlyTuition, payment.MethodCash)))
	assert.Equal(t, 75000.0, testutil.ToFloat64(m.paymentsAmount.WithLabelValues(payment.TypeMonthlyTuition)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remindersByStat.WithLabelValues(reminder.ChannelSMS, reminder.StatusFailed)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "edugest_reminders_dispatched_total"))
}
