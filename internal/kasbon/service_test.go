package kasbon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sbp-ops/sbp-ops/internal/events"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// memRepo serializes WithTx with a mutex, mirroring the row lock the real
// repository takes with SELECT FOR UPDATE.
type memRepo struct {
	mu         sync.Mutex
	kasbon     map[uuid.UUID]*Kasbon
	mutasi     []Mutasi
	failInsert error
}

func newMemRepo() *memRepo {
	return &memRepo{kasbon: map[uuid.UUID]*Kasbon{}}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[uuid.UUID]*Kasbon, len(m.kasbon))
	for id, k := range m.kasbon {
		clone := *k
		snapshot[id] = &clone
	}
	mutasiLen := len(m.mutasi)

	if err := fn(ctx, (*memTx)(m)); err != nil {
		m.kasbon = snapshot
		m.mutasi = m.mutasi[:mutasiLen]
		return err
	}
	return nil
}

type memTx memRepo

func (m *memTx) GetForUpdate(_ context.Context, id uuid.UUID) (*Kasbon, error) {
	k, ok := m.kasbon[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *k
	return &clone, nil
}

func (m *memTx) Get(ctx context.Context, id uuid.UUID) (*Kasbon, error) {
	return m.GetForUpdate(ctx, id)
}

func (m *memTx) InsertMutasi(_ context.Context, row Mutasi) (*Mutasi, error) {
	if m.failInsert != nil {
		return nil, m.failInsert
	}
	row.CreatedAt = time.Now()
	m.mutasi = append(m.mutasi, row)
	return &row, nil
}

func (m *memTx) UpdateSaldo(_ context.Context, id uuid.UUID, saldo int64, status string) error {
	k, ok := m.kasbon[id]
	if !ok {
		return shared.ErrNotFound
	}
	k.SaldoKasbon = saldo
	k.StatusKasbon = status
	k.UpdatedAt = time.Now()
	return nil
}

func (m *memRepo) Get(ctx context.Context, id uuid.UUID) (*Kasbon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m).GetForUpdate(ctx, id)
}

func (m *memRepo) List(_ context.Context, _ ListQuery) ([]Kasbon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Kasbon
	for _, k := range m.kasbon {
		out = append(out, *k)
	}
	return out, nil
}

func (m *memRepo) Create(_ context.Context, k Kasbon) (*Kasbon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k.CreatedAt = time.Now()
	k.UpdatedAt = k.CreatedAt
	m.kasbon[k.KasbonID] = &k
	clone := k
	return &clone, nil
}

func (m *memRepo) Update(_ context.Context, k Kasbon) (*Kasbon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kasbon[k.KasbonID]; !ok {
		return nil, shared.ErrNotFound
	}
	k.UpdatedAt = time.Now()
	m.kasbon[k.KasbonID] = &k
	clone := k
	return &clone, nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) (*Kasbon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.kasbon[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	delete(m.kasbon, id)
	return k, nil
}

func (m *memRepo) ListMutasi(_ context.Context, id uuid.UUID) ([]Mutasi, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Mutasi
	for i := len(m.mutasi) - 1; i >= 0; i-- {
		if m.mutasi[i].KasbonID == id {
			out = append(out, m.mutasi[i])
		}
	}
	return out, nil
}

func (m *memRepo) seed(saldo int64, status string) uuid.UUID {
	id := uuid.New()
	m.kasbon[id] = &Kasbon{
		KasbonID:         id,
		PegawaiID:        uuid.New(),
		TanggalPengajuan: shared.Today(),
		NominalPengajuan: saldo,
		StatusKasbon:     status,
		MetodePotong:     TipePotongGaji,
		SaldoKasbon:      saldo,
	}
	return id
}

type memPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *memPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *memPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func newTestService(repo *memRepo, pub *memPublisher) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, pub)
}

func TestApplyMutationDecrementsSaldo(t *testing.T) {
	repo := newMemRepo()
	pub := &memPublisher{}
	svc := newTestService(repo, pub)
	id := repo.seed(500_000, StatusDicairkan)

	m, err := svc.ApplyMutation(context.Background(), id, MutasiRequest{
		TipeMutasi:    TipeCicilanManual,
		NominalMutasi: 200_000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(500_000), m.SaldoSebelum)
	require.Equal(t, int64(300_000), m.SaldoSesudah)

	k, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, int64(300_000), k.SaldoKasbon)
	require.Equal(t, StatusDicairkan, k.StatusKasbon)
}

func TestApplyMutationSettlesAtZero(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})
	id := repo.seed(150_000, StatusDicairkan)

	m, err := svc.ApplyMutation(context.Background(), id, MutasiRequest{
		TipeMutasi:    TipePotongGaji,
		NominalMutasi: 150_000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), m.SaldoSesudah)

	k, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, StatusLunas, k.StatusKasbon)
}

func TestApplyMutationRejectsSettledKasbon(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})
	id := repo.seed(0, StatusLunas)

	_, err := svc.ApplyMutation(context.Background(), id, MutasiRequest{
		TipeMutasi:    TipeCicilanManual,
		NominalMutasi: 1,
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestApplyMutationRejectsOverdraw(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})
	id := repo.seed(100_000, StatusDicairkan)

	_, err := svc.ApplyMutation(context.Background(), id, MutasiRequest{
		TipeMutasi:    TipeCicilanManual,
		NominalMutasi: 100_001,
	})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorContains(t, err, "melebihi saldo")

	k, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, int64(100_000), k.SaldoKasbon)
}

func TestApplyMutationRejectsBadInput(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})
	id := repo.seed(100_000, StatusDicairkan)

	_, err := svc.ApplyMutation(context.Background(), id, MutasiRequest{
		TipeMutasi:    "hadiah",
		NominalMutasi: 10,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ApplyMutation(context.Background(), id, MutasiRequest{
		TipeMutasi:    TipePenyesuaian,
		NominalMutasi: 0,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestApplyMutationUnknownKasbon(t *testing.T) {
	svc := newTestService(newMemRepo(), &memPublisher{})

	_, err := svc.ApplyMutation(context.Background(), uuid.New(), MutasiRequest{
		TipeMutasi:    TipeCicilanManual,
		NominalMutasi: 10,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyMutationLedgerChains(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})
	id := repo.seed(1_000_000, StatusDicairkan)

	for _, nominal := range []int64{400_000, 350_000, 250_000} {
		_, err := svc.ApplyMutation(context.Background(), id, MutasiRequest{
			TipeMutasi:    TipeCicilanManual,
			NominalMutasi: nominal,
		})
		require.NoError(t, err)
	}

	rows, err := svc.ListMutasi(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Newest first; each row's saldo_sebelum must equal the next older
	// row's saldo_sesudah.
	for i := 0; i < len(rows)-1; i++ {
		require.Equal(t, rows[i+1].SaldoSesudah, rows[i].SaldoSebelum)
	}
	require.Equal(t, int64(0), rows[0].SaldoSesudah)

	k, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, StatusLunas, k.StatusKasbon)
}

func TestConcurrentMutationsSerialize(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})
	id := repo.seed(100_000, StatusDicairkan)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyMutation(context.Background(), id, MutasiRequest{
				TipeMutasi:    TipeCicilanManual,
				NominalMutasi: 60_000,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var conflicts, oks int
	for err := range errs {
		if err == nil {
			oks++
		} else {
			require.ErrorIs(t, err, shared.ErrConflict)
			conflicts++
		}
	}
	require.Equal(t, 1, oks)
	require.Equal(t, 1, conflicts)

	k, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, int64(40_000), k.SaldoKasbon)
}

func TestApplyMutationRollsBackOnFailure(t *testing.T) {
	repo := newMemRepo()
	pub := &memPublisher{}
	svc := newTestService(repo, pub)
	id := repo.seed(100_000, StatusDicairkan)
	repo.failInsert = errors.New("disk full")

	_, err := svc.ApplyMutation(context.Background(), id, MutasiRequest{
		TipeMutasi:    TipeCicilanManual,
		NominalMutasi: 50_000,
	})
	require.ErrorIs(t, err, shared.ErrInfrastructure)

	k, getErr := svc.Get(context.Background(), id)
	require.NoError(t, getErr)
	require.Equal(t, int64(100_000), k.SaldoKasbon)

	rows, listErr := svc.ListMutasi(context.Background(), id)
	require.NoError(t, listErr)
	require.Empty(t, rows)
	require.Empty(t, pub.all())
}

func TestApplyMutationPublishesAfterCommit(t *testing.T) {
	repo := newMemRepo()
	pub := &memPublisher{}
	svc := newTestService(repo, pub)
	id := repo.seed(100_000, StatusDicairkan)

	_, err := svc.ApplyMutation(context.Background(), id, MutasiRequest{
		TipeMutasi:    TipePenyesuaian,
		NominalMutasi: 25_000,
	})
	require.NoError(t, err)

	evs := pub.all()
	require.Len(t, evs, 1)
	require.Equal(t, "kasbon", evs[0].Tipe)
	require.Equal(t, events.ActionUpdated, evs[0].Event)
	payload, ok := evs[0].Payload.(*Kasbon)
	require.True(t, ok)
	require.Equal(t, int64(75_000), payload.SaldoKasbon)
}

func TestCreateDefaultsOpeningBalance(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &memPublisher{})

	approved := int64(750_000)
	created, err := svc.Create(context.Background(), CreateRequest{
		PegawaiID:        uuid.New(),
		NominalPengajuan: 1_000_000,
		NominalDisetujui: &approved,
		StatusKasbon:     StatusDicairkan,
		MetodePotong:     TipePotongGaji,
	})
	require.NoError(t, err)
	require.Equal(t, approved, created.SaldoKasbon)

	pending, err := svc.Create(context.Background(), CreateRequest{
		PegawaiID:        uuid.New(),
		NominalPengajuan: 2_000_000,
		StatusKasbon:     StatusDiajukan,
		MetodePotong:     TipePotongGaji,
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), pending.SaldoKasbon)
}
