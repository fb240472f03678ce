package broker

import (
	"context"
	"strings"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
)

// StaticInstruments resolves instruments without a broker connection.
// Cash products trade in lots of one unless a lot size is configured;
// derivatives need a configured lot size.
type StaticInstruments struct {
	lotSizes map[string]int
}

// NewStaticInstruments creates a lookup from EXCHANGE:SYMBOL or SYMBOL keyed lot sizes.
func NewStaticInstruments(lotSizes map[string]int) *StaticInstruments {
	s := &StaticInstruments{lotSizes: make(map[string]int, len(lotSizes))}
	for k, v := range lotSizes {
		s.lotSizes[strings.ToUpper(k)] = v
	}
	return s
}

// Lookup returns the instrument for q.
func (s *StaticInstruments) Lookup(ctx context.Context, q InstrumentQuery) (*models.Instrument, error) {
	symbol := strings.ToUpper(strings.TrimSpace(q.Symbol))
	if symbol == "" {
		return nil, apperrors.Wrap(apperrors.ErrInstrumentNotFound, "empty symbol")
	}

	lot, ok := s.lotSizes[Key(q.Exchange, symbol)]
	if !ok {
		lot, ok = s.lotSizes[symbol]
	}
	if !ok {
		if q.Product.IsDerivative() {
			return nil, apperrors.Wrapf(apperrors.ErrInstrumentNotFound, "no lot size for %s", Key(q.Exchange, symbol))
		}
		lot = 1
	}

	inst := &models.Instrument{
		Symbol:     symbol,
		Name:       symbol,
		Exchange:   q.Exchange,
		LotSize:    lot,
		OptionType: q.OptionType,
		InstrType:  instrumentType(q),
	}
	if q.Expiry != nil {
		inst.Expiry = *q.Expiry
	}
	if q.Strike != nil {
		inst.Strike = q.Strike.InexactFloat64()
	}
	return inst, nil
}

func instrumentType(q InstrumentQuery) string {
	switch q.Product {
	case models.ProductFutures:
		return "FUT"
	case models.ProductOptions:
		return strings.ToUpper(q.OptionType)
	}
	return "EQ"
}

// InstrumentChain tries each lookup in order and returns the first match.
type InstrumentChain []InstrumentLookup

// Lookup returns the first instrument found.
func (c InstrumentChain) Lookup(ctx context.Context, q InstrumentQuery) (*models.Instrument, error) {
	lastErr := apperrors.Wrapf(apperrors.ErrInstrumentNotFound, "%s", Key(q.Exchange, q.Symbol))
	for _, l := range c {
		if l == nil {
			continue
		}
		inst, err := l.Lookup(ctx, q)
		if err == nil && inst != nil {
			return inst, nil
		}
		if err != nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
