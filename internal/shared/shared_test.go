package shared

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateRoundTrip(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-15"`), &d))
	require.Equal(t, "2026-03-15", d.Format("2006-01-02"))

	out, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"2026-03-15"`, string(out))
}

func TestDateAcceptsRFC3339AndNull(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-15T17:45:00Z"`), &d))
	require.Equal(t, "2026-03-15", d.Format("2006-01-02"))

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	require.True(t, d.IsZero())

	out, err := json.Marshal(Date{})
	require.NoError(t, err)
	require.Equal(t, "null", string(out))

	require.Error(t, json.Unmarshal([]byte(`"15/03/2026"`), &d))
}

func TestDateScanTruncatesToDay(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2026, 3, 15, 17, 45, 3, 0, time.UTC)))
	require.Equal(t, "2026-03-15", d.Format("2006-01-02"))
	require.Zero(t, d.Hour())

	require.NoError(t, d.Scan(nil))
	require.True(t, d.IsZero())

	require.Error(t, d.Scan(42))
}

func TestFormatRupiah(t *testing.T) {
	require.Equal(t, "Rp1.250.000", FormatRupiah(1_250_000))
	require.Equal(t, "Rp0", FormatRupiah(0))
	require.Equal(t, "Rp750.000", FormatRupiah(750_000))
}

func TestPaginationMath(t *testing.T) {
	p := NewPagination(3, 20, 45)
	require.Equal(t, int64(3), p.TotalPages)
	require.Equal(t, 40, p.Offset())

	empty := NewPagination(0, 0, 0)
	require.Equal(t, 1, empty.Page)
	require.Equal(t, 10, empty.PerPage)
	require.Equal(t, int64(1), empty.TotalPages)
}

func TestSafeFieldAndOrder(t *testing.T) {
	allowed := []string{"nomor_surat", "tujuan"}
	require.Equal(t, "tujuan", SafeField("tujuan", "nomor_surat", allowed))
	require.Equal(t, "nomor_surat", SafeField("id; DROP TABLE surat_jalan", "nomor_surat", allowed))
	require.Equal(t, "ASC", SafeOrder("asc"))
	require.Equal(t, "DESC", SafeOrder("sideways"))
}
