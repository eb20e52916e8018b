package httpx

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sbp-ops/sbp-ops/internal/shared"
)

func TestDecodeJSON(t *testing.T) {
	var payload struct {
		Nama string `json:"nama"`
	}
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"nama":"Budi"}`))
	require.NoError(t, DecodeJSON(r, &payload))
	require.Equal(t, "Budi", payload.Nama)
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	big := `{"nama":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	r := httptest.NewRequest("POST", "/", strings.NewReader(big))

	var payload struct {
		Nama string `json:"nama"`
	}
	require.Error(t, DecodeJSON(r, &payload))
}

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{shared.NotFoundf("Stok tidak ditemukan"), 404},
		{shared.Conflictf("melebihi saldo"), 409},
		{shared.Validationf("nominal harus > 0"), 400},
		{shared.ErrInvalidCredentials, 401},
		{shared.Infraf("pool closed"), 500},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.code, rec.Code)
	}
}
