package kasbon

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sbp-ops/sbp-ops/internal/events"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, kasbonID uuid.UUID) (*Kasbon, error)
	List(ctx context.Context, q ListQuery) ([]Kasbon, error)
	Create(ctx context.Context, k Kasbon) (*Kasbon, error)
	Update(ctx context.Context, k Kasbon) (*Kasbon, error)
	Delete(ctx context.Context, kasbonID uuid.UUID) (*Kasbon, error)
	ListMutasi(ctx context.Context, kasbonID uuid.UUID) ([]Mutasi, error)
}

// Service coordinates kasbon operations and owns the repayment rules.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	pub    events.Publisher
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, pub events.Publisher) *Service {
	return &Service{logger: logger, repo: repo, pub: pub}
}

func (s *Service) publish(action string, payload any) {
	if s.pub != nil {
		s.pub.Publish(events.Event{Tipe: "kasbon", Event: action, Payload: payload})
	}
}

// ApplyMutation records one repayment against a kasbon. The whole read,
// insert and balance update happens under a row lock so concurrent
// repayments serialize and the ledger snapshots stay consistent.
func (s *Service) ApplyMutation(ctx context.Context, kasbonID uuid.UUID, req MutasiRequest) (*Mutasi, error) {
	if !isValidTipeMutasi(req.TipeMutasi) {
		return nil, shared.Validationf("tipe_mutasi tidak valid. Allowed: %s", strings.Join(validTipeMutasi, ", "))
	}
	if req.NominalMutasi <= 0 {
		return nil, shared.Validationf("nominal_mutasi harus > 0")
	}

	tanggal := shared.Today()
	if req.TanggalMutasi != nil {
		tanggal = *req.TanggalMutasi
	}

	var (
		mutasi  *Mutasi
		updated *Kasbon
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		k, err := tx.GetForUpdate(ctx, kasbonID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NotFoundf("Kasbon %s tidak ditemukan", kasbonID)
			}
			return shared.Infraf("baca kasbon: %v", err)
		}
		if k.StatusKasbon == StatusLunas {
			return shared.Conflictf("Kasbon sudah lunas, tidak bisa dimutasi lagi.")
		}
		if req.NominalMutasi > k.SaldoKasbon {
			return shared.Conflictf("Nominal mutasi (%d) melebihi saldo kasbon (%d)", req.NominalMutasi, k.SaldoKasbon)
		}

		saldoSebelum := k.SaldoKasbon
		saldoSesudah := saldoSebelum - req.NominalMutasi
		if saldoSesudah < 0 {
			saldoSesudah = 0
		}

		mutasi, err = tx.InsertMutasi(ctx, Mutasi{
			MutasiID:      uuid.New(),
			KasbonID:      kasbonID,
			PenggajianID:  req.PenggajianID,
			TipeMutasi:    req.TipeMutasi,
			NominalMutasi: req.NominalMutasi,
			SaldoSebelum:  saldoSebelum,
			SaldoSesudah:  saldoSesudah,
			TanggalMutasi: tanggal,
			Catatan:       req.Catatan,
		})
		if err != nil {
			return shared.Infraf("insert mutasi: %v", err)
		}

		status := StatusDicairkan
		if saldoSesudah == 0 {
			status = StatusLunas
		}
		if err := tx.UpdateSaldo(ctx, kasbonID, saldoSesudah, status); err != nil {
			return shared.Infraf("update saldo kasbon: %v", err)
		}

		updated, err = tx.Get(ctx, kasbonID)
		if err != nil {
			return shared.Infraf("reload kasbon: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Subscribers only hear about changes that actually committed.
	s.publish(events.ActionUpdated, updated)
	return mutasi, nil
}

// ListMutasi returns the repayment history for one kasbon, newest first.
func (s *Service) ListMutasi(ctx context.Context, kasbonID uuid.UUID) ([]Mutasi, error) {
	rows, err := s.repo.ListMutasi(ctx, kasbonID)
	if err != nil {
		return nil, shared.Infraf("list mutasi: %v", err)
	}
	return rows, nil
}

// Create registers a new kasbon. When the kasbon is created already
// disbursed and no opening balance is given, the balance defaults to the
// approved (or requested) amount.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Kasbon, error) {
	if !isValidStatus(req.StatusKasbon) {
		return nil, shared.Validationf("status_kasbon tidak valid. Allowed: %s", strings.Join(validStatus, ", "))
	}
	if req.MetodePotong != TipePotongGaji && req.MetodePotong != "cicilan" {
		return nil, shared.Validationf("metode_potong tidak valid. Allowed: potong_gaji, cicilan")
	}
	if req.MetodePencairan != nil {
		mp := *req.MetodePencairan
		if mp != "tunai" && mp != "transfer" {
			return nil, shared.Validationf("metode_pencairan tidak valid. Allowed: tunai, transfer")
		}
	}
	if req.NominalDisetujui != nil && *req.NominalDisetujui <= 0 {
		return nil, shared.Validationf("nominal_disetujui harus > 0")
	}

	saldo := int64(0)
	switch {
	case req.SaldoKasbon != nil:
		saldo = *req.SaldoKasbon
	case req.StatusKasbon == StatusDicairkan:
		if req.NominalDisetujui != nil {
			saldo = *req.NominalDisetujui
		} else {
			saldo = req.NominalPengajuan
		}
	}

	id := req.KasbonID
	if id == uuid.Nil {
		id = uuid.New()
	}
	tanggal := req.TanggalPengajuan
	if tanggal.IsZero() {
		tanggal = shared.Today()
	}

	created, err := s.repo.Create(ctx, Kasbon{
		KasbonID:          id,
		PegawaiID:         req.PegawaiID,
		KontrakID:         req.KontrakID,
		TanggalPengajuan:  tanggal,
		NominalPengajuan:  req.NominalPengajuan,
		Alasan:            req.Alasan,
		StatusKasbon:      strings.TrimSpace(req.StatusKasbon),
		DisetujuiOleh:     req.DisetujuiOleh,
		TanggalPersetujuan: req.TanggalPersetujuan,
		NominalDisetujui:  req.NominalDisetujui,
		TanggalCair:       req.TanggalCair,
		MetodePencairan:   req.MetodePencairan,
		BuktiPencairanURL: req.BuktiPencairanURL,
		MetodePotong:      req.MetodePotong,
		JumlahCicilan:     req.JumlahCicilan,
		SaldoKasbon:       saldo,
		Catatan:           req.Catatan,
	})
	if err != nil {
		return nil, shared.Infraf("insert kasbon: %v", err)
	}
	s.publish(events.ActionCreated, created)
	return created, nil
}

// Get returns one kasbon.
func (s *Service) Get(ctx context.Context, kasbonID uuid.UUID) (*Kasbon, error) {
	k, err := s.repo.Get(ctx, kasbonID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("Kasbon %s tidak ditemukan", kasbonID)
		}
		return nil, shared.Infraf("baca kasbon: %v", err)
	}
	return k, nil
}

// List returns kasbon rows for the given filter.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Kasbon, error) {
	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, shared.Infraf("list kasbon: %v", err)
	}
	return rows, nil
}

// Update applies a partial update to a kasbon header. It never touches the
// repayment ledger; balance corrections outside a repayment go through the
// saldo_kasbon field explicitly.
func (s *Service) Update(ctx context.Context, kasbonID uuid.UUID, req UpdateRequest) (*Kasbon, error) {
	row, err := s.Get(ctx, kasbonID)
	if err != nil {
		return nil, err
	}

	if req.PegawaiID != nil {
		row.PegawaiID = *req.PegawaiID
	}
	if req.KontrakID != nil {
		row.KontrakID = req.KontrakID
	}
	if req.TanggalPengajuan != nil {
		row.TanggalPengajuan = *req.TanggalPengajuan
	}
	if req.NominalPengajuan != nil {
		row.NominalPengajuan = *req.NominalPengajuan
	}
	if req.Alasan != nil {
		row.Alasan = req.Alasan
	}
	if req.StatusKasbon != nil {
		row.StatusKasbon = strings.TrimSpace(*req.StatusKasbon)
	}
	if req.DisetujuiOleh != nil {
		row.DisetujuiOleh = req.DisetujuiOleh
	}
	if req.TanggalPersetujuan != nil {
		row.TanggalPersetujuan = req.TanggalPersetujuan
	}
	if req.NominalDisetujui != nil {
		row.NominalDisetujui = req.NominalDisetujui
	}
	if req.TanggalCair != nil {
		row.TanggalCair = req.TanggalCair
	}
	if req.MetodePencairan != nil {
		row.MetodePencairan = req.MetodePencairan
	}
	if req.BuktiPencairanURL != nil {
		row.BuktiPencairanURL = req.BuktiPencairanURL
	}
	if req.MetodePotong != nil {
		row.MetodePotong = *req.MetodePotong
	}
	if req.JumlahCicilan != nil {
		row.JumlahCicilan = *req.JumlahCicilan
	}
	if req.SaldoKasbon != nil {
		row.SaldoKasbon = *req.SaldoKasbon
	}
	if req.Catatan != nil {
		row.Catatan = req.Catatan
	}

	if !isValidStatus(row.StatusKasbon) {
		return nil, shared.Validationf("status_kasbon tidak valid. Allowed: %s", strings.Join(validStatus, ", "))
	}
	if row.MetodePotong != TipePotongGaji && row.MetodePotong != "cicilan" {
		return nil, shared.Validationf("metode_potong tidak valid. Allowed: potong_gaji, cicilan")
	}
	if row.MetodePencairan != nil {
		mp := *row.MetodePencairan
		if mp != "tunai" && mp != "transfer" {
			return nil, shared.Validationf("metode_pencairan tidak valid. Allowed: tunai, transfer")
		}
	}

	updated, err := s.repo.Update(ctx, *row)
	if err != nil {
		return nil, shared.Infraf("update kasbon: %v", err)
	}
	s.publish(events.ActionUpdated, updated)
	return updated, nil
}

// Delete removes a kasbon and its ledger (cascaded by the schema).
func (s *Service) Delete(ctx context.Context, kasbonID uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, kasbonID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFoundf("Kasbon %s tidak ditemukan", kasbonID)
		}
		return shared.Infraf("delete kasbon: %v", err)
	}
	s.publish(events.ActionDeleted, map[string]any{"kasbon_id": deleted.KasbonID})
	return nil
}
