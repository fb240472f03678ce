package demo

import (
	"context"
	"strings"
	"time"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
	"demo-trader/internal/security"
	"demo-trader/internal/store"
	"demo-trader/internal/stream"
)

// seedWatchList adds DefaultWatchList to an empty watch list once. A list
// that already has entries is marked seeded without changes.
func (s *Service) seedWatchList(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		_, ok, err := tx.GetFlag(ctx, store.FlagWatchlistSeeded)
		if err != nil || ok {
			return err
		}
		items, err := tx.ListWatch(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			for i, w := range DefaultWatchList {
				// distinct timestamps keep the default order stable
				if err := tx.AddToWatch(ctx, w.Exchange, w.Symbol, now.Add(time.Duration(i)*time.Millisecond)); err != nil {
					return err
				}
			}
			s.logger.Info().Int("symbols", len(DefaultWatchList)).Msg("Initialized default market watch")
		}
		return tx.SetFlag(ctx, store.FlagWatchlistSeeded, now.UTC().Format(time.RFC3339))
	})
}

// WatchList returns the market watch list in the order symbols were added.
func (s *Service) WatchList(ctx context.Context) ([]models.WatchItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []models.WatchItem
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		items, err = tx.ListWatch(ctx)
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list market watch")
	}
	return items, nil
}

func (s *Service) watchKey(exchange, symbol string) (models.Exchange, string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", "", apperrors.NewValidationError("symbol", symbol, "is required")
	}
	ex := models.Exchange(strings.ToUpper(strings.TrimSpace(exchange)))
	if ex == "" {
		ex = s.cfg.DefaultExchange
	}
	return ex, symbol, nil
}

// AddToWatch adds a symbol to the watch list. Adding a symbol twice is a
// no-op.
func (s *Service) AddToWatch(ctx context.Context, exchange, symbol string) error {
	if err := s.access.CheckPermission(ctx, security.OpModifyWatch); err != nil {
		return err
	}
	ex, sym, err := s.watchKey(exchange, symbol)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.AddToWatch(ctx, ex, sym, s.now())
	})
	s.mu.Unlock()
	if err != nil {
		return apperrors.Wrap(err, "add to market watch")
	}

	s.watchChanged(ctx, "add", ex, sym)
	return nil
}

// RemoveFromWatch removes a symbol and reports whether it was listed.
func (s *Service) RemoveFromWatch(ctx context.Context, exchange, symbol string) (bool, error) {
	if err := s.access.CheckPermission(ctx, security.OpModifyWatch); err != nil {
		return false, err
	}
	ex, sym, err := s.watchKey(exchange, symbol)
	if err != nil {
		return false, err
	}

	var removed bool
	s.mu.Lock()
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		removed, err = tx.RemoveFromWatch(ctx, ex, sym)
		return err
	})
	s.mu.Unlock()
	if err != nil {
		return false, apperrors.Wrap(err, "remove from market watch")
	}

	if removed {
		s.watchChanged(ctx, "remove", ex, sym)
	}
	return removed, nil
}

func (s *Service) watchChanged(ctx context.Context, op string, ex models.Exchange, sym string) {
	s.logger.Info().Str("op", op).Str("symbol", sym).Str("exchange", string(ex)).Msg("Market watch updated")
	s.audit.Log(ctx, security.AuditEvent{
		EventType: security.AuditWatchChanged,
		Symbol:    sym,
		Action:    op,
		Details:   map[string]interface{}{"exchange": string(ex)},
		Success:   true,
	})
	s.publish(stream.Event{
		Type:    stream.EventWatchChanged,
		Topic:   sym,
		Payload: map[string]string{"op": op, "symbol": sym, "exchange": string(ex)},
	})
}
