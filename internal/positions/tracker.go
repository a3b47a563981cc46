// Package positions turns an accepted fill into a position update: average
// into an existing same-side position, net down or flip on an opposing
// fill, and delete the row once size reaches zero. This closes this
// project's "positions are not updated by the order manager" open question;
// the netting rules themselves are a straightforward inventory-accounting
// extension of the (market_id, token_id)-keyed Position shape the teacher's
// types.Position already carries (EntryPrice/Size), since no single example
// file in this project's reference corpus implements position netting.
package positions

import "github.com/stuartoffabean/polymarket-bot/internal/domain"

// Store is the subset of the persistence layer ApplyFill needs.
type Store interface {
	GetPositions() ([]domain.Position, error)
	UpsertPosition(domain.Position) error
	DeletePosition(marketID, tokenID string) error
}

// ApplyFill updates the (MarketID, TokenID) position for an accepted order's
// fill. On the same side as any existing position it averages in; on the
// opposite side it nets down, flips, or flattens (deleting the row) per the
// invariant that a position's size is never persisted at zero.
func ApplyFill(store Store, marketID, tokenID string, side domain.Side, price, size float64) error {
	existing, found, err := find(store, marketID, tokenID)
	if err != nil {
		return err
	}

	if !found {
		return store.UpsertPosition(domain.Position{
			MarketID: marketID, TokenID: tokenID, Side: side,
			Size: size, AvgPrice: price, CurrentPrice: price,
		})
	}

	if existing.Side == side {
		newSize := existing.Size + size
		newAvgPrice := (existing.Size*existing.AvgPrice + size*price) / newSize
		return store.UpsertPosition(domain.Position{
			MarketID: marketID, TokenID: tokenID, Side: side,
			Size: newSize, AvgPrice: newAvgPrice, CurrentPrice: price, PnL: existing.PnL,
		})
	}

	// Opposing-side fill: unwind against the existing position first.
	remaining := existing.Size - size
	closed := size
	if closed > existing.Size {
		closed = existing.Size
	}
	realized := closed * (price - existing.AvgPrice)
	if existing.Side == domain.Sell {
		realized = -realized
	}

	switch {
	case remaining > 0:
		return store.UpsertPosition(domain.Position{
			MarketID: marketID, TokenID: tokenID, Side: existing.Side,
			Size: remaining, AvgPrice: existing.AvgPrice, CurrentPrice: price,
			PnL: existing.PnL + realized,
		})
	case remaining == 0:
		return store.DeletePosition(marketID, tokenID)
	default:
		// The fill overshoots the existing position: it flattens it and
		// opens a new one on the fill's side for the remainder.
		return store.UpsertPosition(domain.Position{
			MarketID: marketID, TokenID: tokenID, Side: side,
			Size: -remaining, AvgPrice: price, CurrentPrice: price,
			PnL: existing.PnL + realized,
		})
	}
}

func find(store Store, marketID, tokenID string) (domain.Position, bool, error) {
	all, err := store.GetPositions()
	if err != nil {
		return domain.Position{}, false, err
	}
	for _, p := range all {
		if p.MarketID == marketID && p.TokenID == tokenID {
			return p, true, nil
		}
	}
	return domain.Position{}, false, nil
}
