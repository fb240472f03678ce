package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
	"demo-trader/internal/security"
	"demo-trader/internal/store"
	"demo-trader/internal/stream"
)

// applyEntry adjusts the entry's segment balance by its signed amount and
// returns the new balance.
func applyEntry(ctx context.Context, tx *store.Tx, e models.LedgerEntry) (decimal.Decimal, error) {
	funds, err := tx.GetFunds(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	balance := funds.Balance(e.Segment).Add(e.Amount)
	if err := tx.SetBalance(ctx, e.Segment, balance, e.Timestamp); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Funds returns the current balance of every segment.
func (s *Service) Funds(ctx context.Context) (models.Funds, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var funds models.Funds
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		funds, err = tx.GetFunds(ctx)
		return err
	})
	if err != nil {
		return models.Funds{}, apperrors.Wrap(err, "get funds")
	}
	return funds, nil
}

// Seed initializes the account with the configured starting cash. It runs
// once per database; later calls report false and change nothing.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	seeded := false
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		_, ok, err := tx.GetFlag(ctx, store.FlagFundsSeeded)
		if err != nil || ok {
			return err
		}
		for _, seg := range models.Segments() {
			seed := decimal.Zero
			if seg == models.SegmentCash {
				seed = s.cfg.SeedCash
			}
			if err := tx.SetSeed(ctx, seg, seed, now); err != nil {
				return err
			}
			if err := tx.SetBalance(ctx, seg, seed, now); err != nil {
				return err
			}
		}
		seeded = true
		return tx.SetFlag(ctx, store.FlagFundsSeeded, now.UTC().Format(time.RFC3339))
	})
	if err != nil {
		return false, apperrors.Wrap(err, "seed funds")
	}

	if seeded {
		s.logger.Info().Str("seed_cash", s.cfg.SeedCash.String()).Msg("Demo account seeded")
		s.audit.LogFunds(ctx, security.AuditFundsSeeded, map[string]interface{}{
			"segment": string(models.SegmentCash),
			"amount":  s.cfg.SeedCash.String(),
		}, nil)
		s.metrics.SetBalance(string(models.SegmentCash), s.cfg.SeedCash)
	}
	return seeded, nil
}

// AdjustmentKind is the direction of a manual funds adjustment.
type AdjustmentKind string

const (
	AdjustCredit AdjustmentKind = "CREDIT"
	AdjustDebit  AdjustmentKind = "DEBIT"
	// AdjustSigned applies a signed amount as-is and may drive a balance
	// negative.
	AdjustSigned AdjustmentKind = "ADJUSTMENT"
)

// FundsAdjustment is a manual change to one segment.
type FundsAdjustment struct {
	Segment string          `json:"segment" validate:"required,oneof=cash equity fno"`
	Kind    AdjustmentKind  `json:"kind" validate:"required,oneof=CREDIT DEBIT ADJUSTMENT"`
	Amount  decimal.Decimal `json:"amount"`
	Remarks string          `json:"remarks" validate:"max=256"`
}

func (a FundsAdjustment) normalize() FundsAdjustment {
	a.Segment = strings.ToLower(strings.TrimSpace(a.Segment))
	if a.Segment == "" {
		a.Segment = string(models.SegmentCash)
	}
	a.Kind = AdjustmentKind(strings.ToUpper(strings.TrimSpace(string(a.Kind))))
	return a
}

func (a FundsAdjustment) entry() models.LedgerEntry {
	e := models.LedgerEntry{
		Segment: models.Segment(a.Segment),
		Remarks: a.Remarks,
	}
	switch a.Kind {
	case AdjustCredit:
		e.Type = models.TxnManualCredit
		e.Amount = a.Amount
	case AdjustDebit:
		e.Type = models.TxnManualDebit
		e.Amount = a.Amount.Neg()
	default:
		e.Type = models.TxnManualAdjustment
		e.Amount = a.Amount
	}
	if e.Remarks == "" {
		e.Remarks = fmt.Sprintf("Manual %s of %s in %s", strings.ToLower(string(a.Kind)), a.Amount.Abs().String(), a.Segment)
	}
	return e
}

// AdjustFunds records a manual credit, debit or signed adjustment and
// returns the resulting ledger entry. A debit may not overdraw the segment.
func (s *Service) AdjustFunds(ctx context.Context, adj FundsAdjustment) (*models.LedgerEntry, error) {
	entry, err := s.adjustFunds(ctx, adj)
	s.audit.LogFunds(ctx, security.AuditFundsAdjusted, map[string]interface{}{
		"segment": adj.Segment,
		"kind":    string(adj.Kind),
		"amount":  adj.Amount.String(),
	}, err)
	if err != nil {
		s.metrics.Rejected(apperrors.Kind(err))
		return nil, err
	}
	return entry, nil
}

func (s *Service) adjustFunds(ctx context.Context, adj FundsAdjustment) (*models.LedgerEntry, error) {
	if err := s.access.CheckPermission(ctx, security.OpAdjustFunds); err != nil {
		return nil, err
	}
	adj = adj.normalize()
	if err := s.validateStruct(adj); err != nil {
		return nil, err
	}
	if adj.Amount.IsZero() || (adj.Kind != AdjustSigned && adj.Amount.IsNegative()) {
		return nil, apperrors.NewValidationError("amount", adj.Amount.String(), "must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := adj.entry()
	var fx effects
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if adj.Kind == AdjustDebit {
			funds, err := tx.GetFunds(ctx)
			if err != nil {
				return err
			}
			if err := checkFunds(entry.Segment, funds, adj.Amount); err != nil {
				return err
			}
		}
		balance, err := post(ctx, tx, &entry, now)
		if err != nil {
			return err
		}
		fx.posted(entry, balance)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.commit(fx)
	return &entry, nil
}

// TransferFunds moves amount from one segment to another as a pair of
// adjustment entries in a single transaction.
func (s *Service) TransferFunds(ctx context.Context, from, to string, amount decimal.Decimal) (models.Funds, error) {
	funds, err := s.transferFunds(ctx, from, to, amount)
	s.audit.LogFunds(ctx, security.AuditFundsTransferred, map[string]interface{}{
		"from":   from,
		"to":     to,
		"amount": amount.String(),
	}, err)
	if err != nil {
		s.metrics.Rejected(apperrors.Kind(err))
		return models.Funds{}, err
	}
	return funds, nil
}

func (s *Service) transferFunds(ctx context.Context, from, to string, amount decimal.Decimal) (models.Funds, error) {
	if err := s.access.CheckPermission(ctx, security.OpTransferFunds); err != nil {
		return models.Funds{}, err
	}
	src, dst := models.ParseSegment(from), models.ParseSegment(to)
	switch {
	case !src.Valid():
		return models.Funds{}, apperrors.NewValidationError("from", from, "unknown segment")
	case !dst.Valid():
		return models.Funds{}, apperrors.NewValidationError("to", to, "unknown segment")
	case src == dst:
		return models.Funds{}, apperrors.NewValidationError("to", to, "must differ from source segment")
	case !amount.IsPositive():
		return models.Funds{}, apperrors.NewValidationError("amount", amount.String(), "must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	base := newID("TRANSFER", now)
	remarks := fmt.Sprintf("Transfer %s from %s to %s", amount.String(), src, dst)
	entries := []models.LedgerEntry{
		{TransactionID: base + "_OUT", Type: models.TxnManualAdjustment, Segment: src, Amount: amount.Neg(), Remarks: remarks},
		{TransactionID: base + "_IN", Type: models.TxnManualAdjustment, Segment: dst, Amount: amount, Remarks: remarks},
	}

	var fx effects
	var funds models.Funds
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		current, err := tx.GetFunds(ctx)
		if err != nil {
			return err
		}
		if err := checkFunds(src, current, amount); err != nil {
			return err
		}
		for i := range entries {
			balance, err := post(ctx, tx, &entries[i], now)
			if err != nil {
				return err
			}
			fx.posted(entries[i], balance)
		}
		funds, err = tx.GetFunds(ctx)
		return err
	})
	if err != nil {
		return models.Funds{}, err
	}
	s.commit(fx)
	return funds, nil
}

func checkFunds(seg models.Segment, funds models.Funds, required decimal.Decimal) error {
	available := funds.Balance(seg)
	if required.GreaterThan(available) {
		return &apperrors.FundsError{
			Segment:   string(seg),
			Required:  required.StringFixed(2),
			Available: available.StringFixed(2),
			Err:       apperrors.ErrInsufficientFunds,
		}
	}
	return nil
}

// SegmentDrift compares a stored balance with the ledger-derived one.
type SegmentDrift struct {
	Segment  models.Segment  `json:"segment"`
	Seed     decimal.Decimal `json:"seed"`
	Ledger   decimal.Decimal `json:"ledger_total"`
	Stored   decimal.Decimal `json:"stored_balance"`
	Expected decimal.Decimal `json:"expected_balance"`
	Drift    decimal.Decimal `json:"drift"`
}

// ReconcileReport is the outcome of Reconcile.
type ReconcileReport struct {
	Segments        []SegmentDrift `json:"segments"`
	Repaired        bool           `json:"repaired"`
	HoldingsBefore  int            `json:"holdings_before"`
	HoldingsRebuilt int            `json:"holdings_rebuilt"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Balanced reports whether every segment matched its ledger before repair.
func (r ReconcileReport) Balanced() bool {
	for _, d := range r.Segments {
		if !d.Drift.IsZero() {
			return false
		}
	}
	return true
}

// Reconcile recomputes every balance as seed plus the signed ledger total,
// repairs any drift and rebuilds holdings by replaying executions in ledger
// sequence.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	if err := s.access.CheckPermission(ctx, security.OpReconcile); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	report := &ReconcileReport{Timestamp: now}
	var fx effects
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		funds, err := tx.GetFunds(ctx)
		if err != nil {
			return err
		}
		seeds, err := tx.GetSeeds(ctx)
		if err != nil {
			return err
		}
		totals, err := tx.LedgerTotals(ctx)
		if err != nil {
			return err
		}
		for _, seg := range models.Segments() {
			d := SegmentDrift{
				Segment: seg,
				Seed:    seeds[seg],
				Ledger:  totals[seg],
				Stored:  funds.Balance(seg),
			}
			d.Expected = d.Seed.Add(d.Ledger)
			d.Drift = d.Stored.Sub(d.Expected)
			if !d.Drift.IsZero() {
				if err := tx.SetBalance(ctx, seg, d.Expected, now); err != nil {
					return err
				}
				report.Repaired = true
				fx.balance(seg, d.Expected)
			}
			report.Segments = append(report.Segments, d)
		}

		current, err := tx.ListHoldings(ctx)
		if err != nil {
			return err
		}
		report.HoldingsBefore = len(current)

		executions, err := tx.ListLedger(ctx, store.LedgerFilter{Type: models.TxnOrderExecuted})
		if err != nil {
			return err
		}
		rebuilt, err := ReplayLedger(executions, s.cfg.AllowShort)
		if err != nil {
			return err
		}
		report.HoldingsRebuilt = len(rebuilt)
		return tx.ReplaceHoldings(ctx, rebuilt)
	})

	s.audit.LogFunds(ctx, security.AuditReconciled, map[string]interface{}{
		"repaired": report.Repaired,
		"holdings": report.HoldingsRebuilt,
	}, err)
	if err != nil {
		return nil, apperrors.Wrap(err, "reconcile")
	}

	if !report.Balanced() {
		s.logger.Warn().Msg("Segment balances drifted from ledger and were repaired")
	}
	s.metrics.SetHoldings(report.HoldingsRebuilt)
	s.commit(fx)
	s.publish(stream.Event{Type: stream.EventFundsUpdated, Topic: string(models.SegmentCash), Payload: report})
	return report, nil
}
