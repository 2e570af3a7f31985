package manager

import (
	"context"
	"fmt"

	"bridge/internal/auction"
	"bridge/internal/chain"
)

// PlaceBid accepts the current price of an active auction, then re-fetches
// that auction and patches it into the book.
func (m *Manager) PlaceBid(ctx context.Context, network string, id uint64) (*BidResult, error) {
	c, err := m.chain(network)
	if err != nil {
		return nil, err
	}
	if m.UsingMock() {
		return nil, ErrMockAuction
	}

	a, err := m.Auction(network, id)
	if err != nil {
		return nil, err
	}
	if !a.CanBid(m.now()) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotBiddable, a.Key(), a.Status(m.now()))
	}

	receipt, err := c.PlaceBid(ctx, id)
	if err != nil {
		m.logger.Error().Err(err).Str("auction", a.Key()).Msg("bid failed")
		return nil, chain.Classify(chain.OpBid, err)
	}

	m.logger.Info().
		Str("auction", a.Key()).
		Str("tx_hash", receipt.TxHash.Hex()).
		Msg("bid placed")

	if m.journal != nil {
		if err := m.journal.RecordBid(ctx, network, id, receipt); err != nil {
			m.logger.Error().Err(err).Str("auction", a.Key()).Msg("failed to journal bid")
		}
	}

	result := &BidResult{Receipt: receipt}
	updated, err := m.patch(ctx, c, id)
	if err != nil {
		m.logger.Warn().Err(err).Str("auction", a.Key()).Msg("failed to refresh auction after bid")
		return result, nil
	}
	result.Auction = updated
	return result, nil
}

// patch re-reads one auction and replaces its book entry.
func (m *Manager) patch(ctx context.Context, c Chain, id uint64) (*auction.Auction, error) {
	a, err := c.FetchAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, auction.Key(c.Network().ID, id))
	}
	if err := m.setAuction(a); err != nil {
		return nil, err
	}
	m.broadcastAuction(a)
	return a.Clone(), nil
}
