package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandler_ExposesCollectors(t *testing.T) {
	Init()
	assert.NotPanics(t, Init)

	RAGFallbacks.Inc()
	TestsLogged.WithLabelValues("baseline", "true").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "halluc_rag_fallback_total")
	assert.Contains(t, string(body), `halluc_tests_logged_total{hallucination="true",strategy="baseline"}`)
}
