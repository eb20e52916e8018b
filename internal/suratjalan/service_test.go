package suratjalan

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/sbp-ops/sbp-ops/internal/events"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

type stockState struct {
	ID       int64
	Sisa     int64
	Keluar   int64
	SatuanID int64
}

type memRepo struct {
	mu        sync.Mutex
	nextID    int64
	stocks    map[string]*stockState
	headers   map[int64]SuratJalan
	details   map[int64][]Detail
	movements int
}

func newMemRepo() *memRepo {
	return &memRepo{
		nextID:  1,
		stocks:  map[string]*stockState{},
		headers: map[int64]SuratJalan{},
		details: map[int64][]Detail{},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stocks := make(map[string]*stockState, len(m.stocks))
	for k, v := range m.stocks {
		clone := *v
		stocks[k] = &clone
	}
	headers := make(map[int64]SuratJalan, len(m.headers))
	for k, v := range m.headers {
		headers[k] = v
	}
	details := make(map[int64][]Detail, len(m.details))
	for k, v := range m.details {
		details[k] = append([]Detail(nil), v...)
	}
	movements := m.movements
	nextID := m.nextID

	if err := fn(ctx, (*memTx)(m)); err != nil {
		m.stocks = stocks
		m.headers = headers
		m.details = details
		m.movements = movements
		m.nextID = nextID
		return err
	}
	return nil
}

type memTx memRepo

func (m *memTx) InsertHeader(_ context.Context, h SuratJalan) (int64, error) {
	for _, existing := range m.headers {
		if existing.NomorSurat == h.NomorSurat {
			return 0, &pgconn.PgError{Code: "23505", ConstraintName: "surat_jalan_nomor_surat_key"}
		}
	}
	h.ID = m.nextID
	m.nextID++
	m.headers[h.ID] = h
	return h.ID, nil
}

func (m *memTx) InsertDetail(_ context.Context, d Detail) error {
	d.ID = m.nextID
	m.nextID++
	m.details[d.SuratJalanID] = append(m.details[d.SuratJalanID], d)
	return nil
}

func (m *memTx) GetStockForUpdate(_ context.Context, kode string) (*StockRef, error) {
	s, ok := m.stocks[kode]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &StockRef{ID: s.ID, StokSisa: s.Sisa, StokKeluar: s.Keluar, SatuanID: s.SatuanID}, nil
}

func (m *memTx) ApplyStockOut(_ context.Context, stokID, keluar, sisa int64, _ shared.Date) error {
	for _, s := range m.stocks {
		if s.ID == stokID {
			s.Keluar = keluar
			s.Sisa = sisa
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memTx) InsertMovement(_ context.Context, _, _, _ int64, _, _ string) error {
	m.movements++
	return nil
}

func (m *memTx) HeaderExists(_ context.Context, id int64) (bool, error) {
	_, ok := m.headers[id]
	return ok, nil
}

func (m *memTx) DetailsForRestore(_ context.Context, id int64) ([]RestoreLine, error) {
	var out []RestoreLine
	for _, d := range m.details[id] {
		out = append(out, RestoreLine{KodeBarang: d.KodeBarang, Quantity: d.Quantity})
	}
	return out, nil
}

func (m *memTx) RestoreStock(_ context.Context, kode string, qty int64) error {
	s, ok := m.stocks[kode]
	if !ok {
		return shared.ErrNotFound
	}
	s.Keluar -= qty
	s.Sisa += qty
	return nil
}

func (m *memTx) DeleteDetails(_ context.Context, id int64) error {
	delete(m.details, id)
	return nil
}

func (m *memTx) DeleteHeader(_ context.Context, id int64) error {
	delete(m.headers, id)
	return nil
}

func (m *memRepo) List(_ context.Context, q ListQuery) ([]ListRow, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ListRow
	for _, h := range m.headers {
		out = append(out, ListRow{SuratJalan: h, JumlahBarang: int64(len(m.details[h.ID]))})
	}
	return out, int64(len(out)), nil
}

func (m *memRepo) GetHeader(_ context.Context, id int64) (*SuratJalan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.headers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &h, nil
}

func (m *memRepo) GetDetails(_ context.Context, id int64) ([]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Detail(nil), m.details[id]...), nil
}

func (m *memRepo) seedStock(kode string, sisa int64) {
	id := m.nextID
	m.nextID++
	m.stocks[kode] = &stockState{ID: id, Sisa: sisa, SatuanID: 1}
}

type recordPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func newTestService(repo *memRepo, pub *recordPublisher) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, pub, nil)
}

func validRequest() CreateRequest {
	return CreateRequest{
		Tujuan:     "Proyek Tol Cikampek",
		NomorSurat: "SJ-2026-001",
		Barang: []BarangRequest{
			{Kode: "PRD001", Nama: "Semen 50kg", Jumlah: 20, Satuan: "sak"},
			{Kode: "PRD002", Nama: "Besi Beton 12mm", Jumlah: 10, Satuan: "batang"},
		},
	}
}

func TestCreateDecrementsEveryLine(t *testing.T) {
	repo := newMemRepo()
	pub := &recordPublisher{}
	svc := newTestService(repo, pub)
	repo.seedStock("PRD001", 100)
	repo.seedStock("PRD002", 30)

	id, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotZero(t, id)

	require.Equal(t, int64(80), repo.stocks["PRD001"].Sisa)
	require.Equal(t, int64(20), repo.stocks["PRD001"].Keluar)
	require.Equal(t, int64(20), repo.stocks["PRD002"].Sisa)
	require.Len(t, repo.details[id], 2)
	require.Equal(t, int32(1), repo.details[id][0].NoUrut)
	require.Equal(t, int32(2), repo.details[id][1].NoUrut)
	require.Equal(t, 2, repo.movements)

	evs := pub.all()
	require.Len(t, evs, 3)
	require.Equal(t, "surat_jalan", evs[0].Tipe)
	require.Equal(t, events.ActionCreated, evs[0].Event)
	require.Equal(t, "stok", evs[1].Tipe)
	require.Equal(t, "movement_created", evs[1].Event)
}

func TestCreateAllOrNothingOnUnknownStock(t *testing.T) {
	repo := newMemRepo()
	pub := &recordPublisher{}
	svc := newTestService(repo, pub)
	repo.seedStock("PRD001", 100)
	// PRD002 is never seeded.

	_, err := svc.Create(context.Background(), validRequest())
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorContains(t, err, "PRD002")

	require.Equal(t, int64(100), repo.stocks["PRD001"].Sisa)
	require.Empty(t, repo.headers)
	require.Empty(t, repo.details)
	require.Zero(t, repo.movements)
	require.Empty(t, pub.all())
}

func TestCreateRejectsShortage(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &recordPublisher{})
	repo.seedStock("PRD001", 100)
	repo.seedStock("PRD002", 5)

	_, err := svc.Create(context.Background(), validRequest())
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorContains(t, err, "PRD002")
	require.Equal(t, int64(100), repo.stocks["PRD001"].Sisa)
	require.Equal(t, int64(5), repo.stocks["PRD002"].Sisa)
}

func TestCreateRejectsDuplicateNomor(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &recordPublisher{})
	repo.seedStock("PRD001", 100)
	repo.seedStock("PRD002", 30)

	_, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validRequest())
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorContains(t, err, "Nomor Surat sudah digunakan")
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemRepo(), &recordPublisher{})

	req := validRequest()
	req.Tujuan = "  "
	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = validRequest()
	req.NomorSurat = ""
	_, err = svc.Create(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = validRequest()
	req.Barang = nil
	_, err = svc.Create(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = validRequest()
	req.Barang[1].Jumlah = 0
	_, err = svc.Create(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteRestoresStock(t *testing.T) {
	repo := newMemRepo()
	pub := &recordPublisher{}
	svc := newTestService(repo, pub)
	repo.seedStock("PRD001", 100)
	repo.seedStock("PRD002", 30)

	id, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), id)
	require.NoError(t, err)

	require.Equal(t, int64(100), repo.stocks["PRD001"].Sisa)
	require.Equal(t, int64(0), repo.stocks["PRD001"].Keluar)
	require.Equal(t, int64(30), repo.stocks["PRD002"].Sisa)
	require.Empty(t, repo.headers)
	require.Empty(t, repo.details)

	evs := pub.all()
	last := evs[len(evs)-1]
	require.Equal(t, "surat_jalan", last.Tipe)
	require.Equal(t, events.ActionDeleted, last.Event)
}

func TestDeleteUnknownNote(t *testing.T) {
	svc := newTestService(newMemRepo(), &recordPublisher{})
	err := svc.Delete(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetReturnsHeaderWithLines(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &recordPublisher{})
	repo.seedStock("PRD001", 100)
	repo.seedStock("PRD002", 30)

	id, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	doc, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "SJ-2026-001", doc.Header.NomorSurat)
	require.Len(t, doc.Items, 2)
	require.Equal(t, "PRD001", doc.Items[0].KodeBarang)
}

type memAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (m *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func TestCreateAndDeleteLeaveAuditTrail(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, &recordPublisher{}, audit)
	repo.seedStock("PRD001", 100)
	repo.seedStock("PRD002", 30)

	id, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), id))

	require.Len(t, audit.logs, 2)
	require.Equal(t, "create", audit.logs[0].Action)
	require.Equal(t, "surat_jalan", audit.logs[0].Entity)
	require.Equal(t, "SJ-2026-001", audit.logs[0].Meta["nomor_surat"])
	require.Equal(t, "delete", audit.logs[1].Action)
	require.Equal(t, audit.logs[0].EntityID, audit.logs[1].EntityID)
}
