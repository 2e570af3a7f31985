package manager

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"bridge/internal/auction"

	"golang.org/x/sync/errgroup"
)

// Run refreshes the whole book once, then keeps two independent timers: a
// price refresh of live auctions and a full refresh. Results of the two land
// last-write-wins. Run returns when ctx is done.
func (m *Manager) Run(ctx context.Context) {
	m.refreshAndLog(ctx)

	priceTicker := time.NewTicker(m.opts.PriceInterval)
	defer priceTicker.Stop()
	fullTicker := time.NewTicker(m.opts.RefreshInterval)
	defer fullTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-priceTicker.C:
			m.RefreshPrices(ctx)
		case <-fullTicker.C:
			m.refreshAndLog(ctx)
		case <-m.refreshReq:
			m.refreshAndLog(ctx)
		}
	}
}

// RequestRefresh asks a running poller for a full refresh. Requests made
// while one is pending are merged.
func (m *Manager) RequestRefresh() {
	select {
	case m.refreshReq <- struct{}{}:
	default:
	}
}

func (m *Manager) refreshAndLog(ctx context.Context) {
	if _, err := m.Refresh(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("auction refresh failed")
	}
}

// Refresh fetches every auction of every network concurrently. A network
// that fails is logged and keeps its previous entries until they expire.
// When every network fails the book is replaced by sample auctions and
// ErrAllNetworks is returned alongside the result.
func (m *Manager) Refresh(ctx context.Context) (RefreshResult, error) {
	return m.refresh(ctx, m.network)
}

// RefreshNetwork refreshes a single network.
func (m *Manager) RefreshNetwork(ctx context.Context, network string) (RefreshResult, error) {
	if _, err := m.chain(network); err != nil {
		return RefreshResult{}, err
	}
	return m.refresh(ctx, []string{network})
}

func (m *Manager) refresh(ctx context.Context, networks []string) (RefreshResult, error) {
	start := m.now()
	result := RefreshResult{
		Fetched: make(map[string]int, len(networks)),
		Failed:  make(map[string]string),
		At:      start,
	}

	var mu sync.Mutex
	fetched := make(map[string][]*auction.Auction, len(networks))

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range networks {
		id := id
		c := m.chains[id]
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, m.opts.FetchTimeout)
			defer cancel()

			auctions, err := m.fetchNetwork(fctx, c)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Error().Err(err).Str("network", id).Msg("failed to fetch auctions")
				result.Failed[id] = err.Error()
				return nil
			}
			fetched[id] = auctions
			result.Fetched[id] = len(auctions)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if len(fetched) == 0 && len(networks) > 0 {
		if len(networks) < len(m.network) {
			failed := make([]string, 0, len(result.Failed))
			for id, msg := range result.Failed {
				failed = append(failed, id+": "+msg)
			}
			sort.Strings(failed)
			return result, fmt.Errorf("%w: %s", ErrNetworkDown, strings.Join(failed, "; "))
		}
		m.installMock()
		result.Mock = true
		result.Duration = m.now().Sub(start)
		m.recordRefresh(result)
		return result, ErrAllNetworks
	}

	m.clearMock()
	for id, auctions := range fetched {
		m.replaceNetwork(id, auctions)
	}

	result.Duration = m.now().Sub(start)
	m.recordRefresh(result)
	m.broadcastRefresh(result)

	m.logger.Info().
		Interface("fetched", result.Fetched).
		Int("failed", len(result.Failed)).
		Dur("took", result.Duration).
		Msg("auction book refreshed")

	return result, nil
}

// fetchNetwork reads auctions 0..nextAuctionId-1. Individual auctions that
// fail to load are skipped; only a failing nextAuctionId fails the network.
func (m *Manager) fetchNetwork(ctx context.Context, c Chain) ([]*auction.Auction, error) {
	next, err := c.NextAuctionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("nextAuctionId: %w", err)
	}

	first := uint64(0)
	if next > MaxAuctionsPerNetwork {
		first = next - MaxAuctionsPerNetwork
		m.logger.Warn().Str("network", c.Network().ID).Uint64("next_auction_id", next).
			Msg("too many auctions, reading only the most recent")
	}

	slots := make([]*auction.Auction, next-first)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.FetchConcurrency)
	for i := first; i < next; i++ {
		i := i
		g.Go(func() error {
			a, err := c.FetchAuction(gctx, i)
			if err != nil {
				m.logger.Warn().Err(err).Str("network", c.Network().ID).Uint64("auction_id", i).Msg("skipping auction")
				return nil
			}
			slots[i-first] = a
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*auction.Auction, 0, len(slots))
	for _, a := range slots {
		if a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

// replaceNetwork writes the fetched auctions of network and drops the ones
// that are no longer reported.
func (m *Manager) replaceNetwork(network string, auctions []*auction.Auction) {
	keep := make(map[string]struct{}, len(auctions))
	for _, a := range auctions {
		keep[a.Key()] = struct{}{}
		if err := m.setAuction(a); err != nil {
			m.logger.Error().Err(err).Msg("failed to update book")
			continue
		}
		m.broadcastAuction(a)
	}

	prefix := network + "/"
	for _, k := range m.snapshotKeys() {
		if _, ok := keep[k]; !ok && strings.HasPrefix(k, prefix) {
			m.deleteAuction(k)
		}
	}
}

// RefreshPrices re-reads the contract price of every biddable auction.
// Failed reads keep the previous value.
func (m *Manager) RefreshPrices(ctx context.Context) int {
	if m.UsingMock() {
		return 0
	}

	now := m.now()
	var live []*auction.Auction
	for _, a := range m.Auctions() {
		if a.Biddable(now) {
			live = append(live, a)
		}
	}

	var mu sync.Mutex
	updates := make(map[string]*big.Int, len(live))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.FetchConcurrency)
	for _, a := range live {
		a := a
		c, ok := m.chains[a.Network]
		if !ok {
			continue
		}
		g.Go(func() error {
			price, err := c.CurrentPrice(gctx, a.ID)
			if err != nil {
				m.logger.Warn().Err(err).Str("auction", a.Key()).Msg("failed to update price")
				return nil
			}
			mu.Lock()
			updates[a.Key()] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	updated := 0
	for key, price := range updates {
		a, ok := m.getAuction(key)
		if !ok {
			continue
		}
		patched := a.Clone()
		patched.CurrentPrice = price
		if err := m.setAuction(patched); err != nil {
			m.logger.Error().Err(err).Msg("failed to update price")
			continue
		}
		updated++
	}

	m.stateMu.Lock()
	m.lastPrices = now
	m.stateMu.Unlock()

	if updated > 0 {
		m.broadcastPrices(updates)
	}
	return updated
}

func (m *Manager) recordRefresh(result RefreshResult) {
	m.stateMu.Lock()
	m.lastRefresh = result
	m.stateMu.Unlock()
}
