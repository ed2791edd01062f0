package middleware

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestBufferRequestBodyRestoresPayload(t *testing.T) {
	payload := `{"tenantKey": "abc123"}`
	r := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(payload))

	body, err := bufferRequestBody(r, 1<<20)
	require.NoError(t, err)
	require.Equal(t, payload, string(body))

	replayed, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.Equal(t, payload, string(replayed))
}

func TestBufferRequestBodyForwardsOversizeBodyIntact(t *testing.T) {
	payload := `{"tenantKey": "abc123", "padding": "` + strings.Repeat("x", 64) + `"}`
	r := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(payload))

	_, err := bufferRequestBody(r, 16)
	require.Error(t, err)

	// The handler still reads every byte the client sent, not a prefix.
	replayed, readErr := io.ReadAll(r.Body)
	require.NoError(t, readErr)
	require.Equal(t, payload, string(replayed))
}

func TestBufferRequestBodyRestoresPrefixOnReadError(t *testing.T) {
	boom := errors.New("connection reset")
	stream := io.MultiReader(strings.NewReader(`{"tenant`), iotest.ErrReader(boom))
	r := httptest.NewRequest("POST", "/api/auth/login", io.NopCloser(stream))

	_, err := bufferRequestBody(r, 1<<20)
	require.ErrorIs(t, err, boom)

	// Downstream sees the same prefix followed by the same failure.
	prefix := make([]byte, 8)
	n, readErr := io.ReadFull(r.Body, prefix)
	require.NoError(t, readErr)
	require.Equal(t, 8, n)
	require.Equal(t, `{"tenant`, string(prefix))

	_, readErr = io.ReadAll(r.Body)
	require.ErrorIs(t, readErr, boom)
}
