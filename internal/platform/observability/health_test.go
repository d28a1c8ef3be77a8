package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestServer_Readyz(t *testing.T) {
	logger := zerolog.Nop()
	s := NewServer(0, &logger)

	get := func(path string) (int, string) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec.Code, rec.Body.String()
	}

	code, body := get("/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "OK", body)

	code, _ = get("/readyz")
	require.Equal(t, http.StatusOK, code)

	s.AddCheck("store", func(context.Context) error { return nil })
	s.AddCheck("transport", func(context.Context) error { return errors.New("not authorized") })

	code, body = get("/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "transport: not authorized", body)
}
