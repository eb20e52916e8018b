package invoice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sbp-ops/sbp-ops/internal/events"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// memInvoiceRepo serializes WithTx with a mutex, mirroring the row lock the
// real repository takes with SELECT FOR UPDATE.
type memInvoiceRepo struct {
	mu         sync.Mutex
	invoices   map[uuid.UUID]*Invoice
	pembayaran []Pembayaran
	failInsert error
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{invoices: map[uuid.UUID]*Invoice{}}
}

func (m *memInvoiceRepo) seed(inv Invoice) uuid.UUID {
	if inv.InvoiceID == uuid.Nil {
		inv.InvoiceID = uuid.New()
	}
	m.invoices[inv.InvoiceID] = &inv
	return inv.InvoiceID
}

func (m *memInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[uuid.UUID]*Invoice, len(m.invoices))
	for id, inv := range m.invoices {
		clone := *inv
		snapshot[id] = &clone
	}
	pembayaranLen := len(m.pembayaran)

	if err := fn(ctx, (*memInvoiceTx)(m)); err != nil {
		m.invoices = snapshot
		m.pembayaran = m.pembayaran[:pembayaranLen]
		return err
	}
	return nil
}

type memInvoiceTx memInvoiceRepo

func (m *memInvoiceTx) GetForUpdate(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *inv
	return &clone, nil
}

func (m *memInvoiceTx) InsertPembayaran(_ context.Context, p Pembayaran) (*Pembayaran, error) {
	if m.failInsert != nil {
		return nil, m.failInsert
	}
	p.CreatedAt = time.Now()
	m.pembayaran = append(m.pembayaran, p)
	return &p, nil
}

func (m *memInvoiceTx) UpdatePaid(_ context.Context, id uuid.UUID, jumlahDibayar int64, status string) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	inv.JumlahDibayar = jumlahDibayar
	inv.Status = status
	inv.UpdatedAt = time.Now()
	clone := *inv
	return &clone, nil
}

func (m *memInvoiceRepo) Get(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *inv
	return &clone, nil
}

func (m *memInvoiceRepo) List(_ context.Context, _ ListQuery) ([]Invoice, error) {
	out := make([]Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, *inv)
	}
	return out, nil
}

func (m *memInvoiceRepo) Create(_ context.Context, inv Invoice) (*Invoice, error) {
	for _, existing := range m.invoices {
		if existing.NomorInvoice == inv.NomorInvoice {
			return nil, errDuplicateNomor
		}
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	m.invoices[inv.InvoiceID] = &inv
	clone := inv
	return &clone, nil
}

func (m *memInvoiceRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	if _, ok := m.invoices[id]; !ok {
		return false, nil
	}
	delete(m.invoices, id)
	return true, nil
}

func (m *memInvoiceRepo) ListPembayaran(_ context.Context, id uuid.UUID, _, _ int64) ([]Pembayaran, error) {
	var out []Pembayaran
	for _, p := range m.pembayaran {
		if p.InvoiceID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memInvoiceRepo) CountByNomorPrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	for _, inv := range m.invoices {
		if strings.HasPrefix(inv.NomorInvoice, prefix) {
			n++
		}
	}
	return n, nil
}

func (m *memInvoiceRepo) Stats(_ context.Context) (*Stats, error) {
	var stats Stats
	for _, inv := range m.invoices {
		switch inv.Status {
		case StatusLunas:
			stats.CountLunas++
		case StatusSebagian:
			stats.CountSebagian++
		case StatusTerlambat:
			stats.CountTerlambat++
			stats.CountBelum++
		case StatusBelumBayar:
			stats.CountBelum++
		}
	}
	return &stats, nil
}

func (m *memInvoiceRepo) DueForReminder(_ context.Context, day shared.Date) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if !inv.ReminderAktif {
			continue
		}
		if inv.Status == StatusLunas || inv.Status == StatusBatal {
			continue
		}
		due := inv.JatuhTempo
		if inv.ReminderBerikutnya != nil {
			due = *inv.ReminderBerikutnya
		}
		if !due.After(day.Time) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

var errDuplicateNomor = errors.New("duplicate nomor")

type captureEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureEvents) Publish(evt events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEvents) all() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.events...)
}

func newInvoiceService(repo *memInvoiceRepo, pub events.Publisher) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, pub)
}

func openInvoice(jumlah, dibayar int64, status string) Invoice {
	return Invoice{
		NomorInvoice:  "INV-2026-001",
		JenisTagihan:  "listrik",
		NamaPemilik:   "Gudang Utama",
		Frekuensi:     "bulanan",
		Jumlah:        jumlah,
		JumlahDibayar: dibayar,
		TanggalDibuat: shared.Today(),
		JatuhTempo:    shared.Today(),
		Status:        status,
	}
}

func TestPayPartialMarksSebagian(t *testing.T) {
	repo := newMemInvoiceRepo()
	id := repo.seed(openInvoice(1_000_000, 0, StatusBelumBayar))
	pub := &captureEvents{}
	svc := newInvoiceService(repo, pub)

	result, err := svc.Pay(context.Background(), id, PayRequest{Nominal: 400_000})
	require.NoError(t, err)

	require.Equal(t, int64(400_000), result.Pembayaran.Nominal)
	require.Equal(t, int64(600_000), result.Pembayaran.SisaSetelahBayar)
	require.Equal(t, "tunai", result.Pembayaran.MetodeBayar)
	require.Equal(t, StatusSebagian, result.Invoice.Status)
	require.Equal(t, int64(400_000), result.Invoice.JumlahDibayar)

	evts := pub.all()
	require.Len(t, evts, 2)
	require.Equal(t, "invoice_pembayaran", evts[0].Tipe)
	require.Equal(t, events.ActionCreated, evts[0].Event)
	require.Equal(t, "invoice", evts[1].Tipe)
	require.Equal(t, events.ActionUpdated, evts[1].Event)
}

func TestPayClampsToRemainder(t *testing.T) {
	repo := newMemInvoiceRepo()
	id := repo.seed(openInvoice(1_000_000, 700_000, StatusSebagian))
	svc := newInvoiceService(repo, &captureEvents{})

	result, err := svc.Pay(context.Background(), id, PayRequest{Nominal: 999_999_999})
	require.NoError(t, err)

	require.Equal(t, int64(300_000), result.Pembayaran.Nominal)
	require.Equal(t, int64(0), result.Pembayaran.SisaSetelahBayar)
	require.Equal(t, StatusLunas, result.Invoice.Status)
	require.Equal(t, int64(1_000_000), result.Invoice.JumlahDibayar)
}

func TestPayExactRemainderSettles(t *testing.T) {
	repo := newMemInvoiceRepo()
	id := repo.seed(openInvoice(500_000, 200_000, StatusSebagian))
	svc := newInvoiceService(repo, &captureEvents{})

	result, err := svc.Pay(context.Background(), id, PayRequest{Nominal: 300_000})
	require.NoError(t, err)
	require.Equal(t, StatusLunas, result.Invoice.Status)
	require.Equal(t, int64(0), result.Invoice.Sisa())
}

func TestPayRejectsSettledInvoice(t *testing.T) {
	repo := newMemInvoiceRepo()
	id := repo.seed(openInvoice(500_000, 500_000, StatusLunas))
	svc := newInvoiceService(repo, &captureEvents{})

	_, err := svc.Pay(context.Background(), id, PayRequest{Nominal: 1})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Contains(t, err.Error(), "sudah lunas")
	require.Empty(t, repo.pembayaran)
}

func TestPayRejectsCancelledInvoice(t *testing.T) {
	repo := newMemInvoiceRepo()
	id := repo.seed(openInvoice(500_000, 0, StatusBatal))
	svc := newInvoiceService(repo, &captureEvents{})

	_, err := svc.Pay(context.Background(), id, PayRequest{Nominal: 100_000})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Contains(t, err.Error(), "dibatalkan")
}

func TestPayRejectsBadInput(t *testing.T) {
	repo := newMemInvoiceRepo()
	id := repo.seed(openInvoice(500_000, 0, StatusBelumBayar))
	svc := newInvoiceService(repo, &captureEvents{})

	_, err := svc.Pay(context.Background(), id, PayRequest{Nominal: 0})
	require.ErrorIs(t, err, shared.ErrValidation)

	metode := "barter"
	_, err = svc.Pay(context.Background(), id, PayRequest{Nominal: 1000, MetodeBayar: &metode})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPayUnknownInvoice(t *testing.T) {
	svc := newInvoiceService(newMemInvoiceRepo(), &captureEvents{})

	_, err := svc.Pay(context.Background(), uuid.New(), PayRequest{Nominal: 1000})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPayRollsBackOnInsertFailure(t *testing.T) {
	repo := newMemInvoiceRepo()
	repo.failInsert = errors.New("disk full")
	id := repo.seed(openInvoice(500_000, 100_000, StatusSebagian))
	pub := &captureEvents{}
	svc := newInvoiceService(repo, pub)

	_, err := svc.Pay(context.Background(), id, PayRequest{Nominal: 50_000})
	require.ErrorIs(t, err, shared.ErrInfrastructure)

	inv, getErr := repo.Get(context.Background(), id)
	require.NoError(t, getErr)
	require.Equal(t, int64(100_000), inv.JumlahDibayar)
	require.Empty(t, repo.pembayaran)
	require.Empty(t, pub.all())
}

func TestConcurrentPaymentsNeverOverpay(t *testing.T) {
	repo := newMemInvoiceRepo()
	id := repo.seed(openInvoice(100_000, 0, StatusBelumBayar))
	svc := newInvoiceService(repo, &captureEvents{})

	var wg sync.WaitGroup
	results := make([]*PayResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := svc.Pay(context.Background(), id, PayRequest{Nominal: 80_000})
			if err == nil {
				results[i] = r
			}
		}(i)
	}
	wg.Wait()

	inv, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, int64(100_000), inv.JumlahDibayar)
	require.Equal(t, StatusLunas, inv.Status)

	var total int64
	for _, p := range repo.pembayaran {
		total += p.Nominal
	}
	require.Equal(t, int64(100_000), total)
}

func TestCreateGeneratesSequentialNomor(t *testing.T) {
	repo := newMemInvoiceRepo()
	svc := newInvoiceService(repo, &captureEvents{})

	first, err := svc.Create(context.Background(), CreateRequest{
		JenisTagihan: "air",
		NamaPemilik:  "Kantor",
		Frekuensi:    "bulanan",
		Jumlah:       250_000,
		JatuhTempo:   shared.Today(),
	})
	require.NoError(t, err)
	year := time.Now().UTC().Format("2006")
	require.Equal(t, "INV-"+year+"-001", first.NomorInvoice)
	require.Equal(t, StatusBelumBayar, first.Status)

	second, err := svc.Create(context.Background(), CreateRequest{
		JenisTagihan: "air",
		NamaPemilik:  "Kantor",
		Frekuensi:    "bulanan",
		Jumlah:       250_000,
		JatuhTempo:   shared.Today(),
	})
	require.NoError(t, err)
	require.Equal(t, "INV-"+year+"-002", second.NomorInvoice)
}

func TestCreateRejectsBadEnums(t *testing.T) {
	svc := newInvoiceService(newMemInvoiceRepo(), &captureEvents{})

	_, err := svc.Create(context.Background(), CreateRequest{
		JenisTagihan: "air",
		NamaPemilik:  "Kantor",
		Frekuensi:    "kadang-kadang",
		Jumlah:       1000,
		JatuhTempo:   shared.Today(),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	bad := "telepati"
	_, err = svc.Create(context.Background(), CreateRequest{
		JenisTagihan:   "air",
		NamaPemilik:    "Kantor",
		Frekuensi:      "bulanan",
		Jumlah:         1000,
		JatuhTempo:     shared.Today(),
		ReminderMetode: &bad,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestScanRemindersPublishesDueOnly(t *testing.T) {
	repo := newMemInvoiceRepo()
	due := openInvoice(750_000, 0, StatusBelumBayar)
	due.ReminderAktif = true
	repo.seed(due)

	settled := openInvoice(100_000, 100_000, StatusLunas)
	settled.NomorInvoice = "INV-2026-002"
	settled.ReminderAktif = true
	repo.seed(settled)

	silent := openInvoice(200_000, 0, StatusBelumBayar)
	silent.NomorInvoice = "INV-2026-003"
	repo.seed(silent)

	pub := &captureEvents{}
	svc := newInvoiceService(repo, pub)

	n, err := svc.ScanReminders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	evts := pub.all()
	require.Len(t, evts, 1)
	require.Equal(t, "invoice", evts[0].Tipe)
	require.Equal(t, "reminder", evts[0].Event)
	payload, ok := evts[0].Payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "INV-2026-001", payload["nomor_invoice"])
	require.Equal(t, "Rp750.000", payload["sisa_format"])
}
