package manager

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"bridge/internal/auction"
	"bridge/internal/common"

	"github.com/imkira/go-ttlmap"
	"github.com/rs/zerolog"
)

// Manager owns the auction book: every auction of every configured network,
// keyed by network and id, refreshed by the poller and patched after bids.
type Manager struct {
	*common.Broadcaster

	chains  map[string]Chain
	network []string
	opts    Options
	journal BidJournal
	logger  zerolog.Logger

	book *ttlmap.Map
	// ttlmap has no iteration, keys tracks what may be in book. Never call
	// into book while holding keysMu.
	keysMu sync.Mutex
	keys   map[string]struct{}

	stateMu     sync.RWMutex
	mock        bool
	lastRefresh RefreshResult
	lastPrices  time.Time

	refreshReq chan struct{}
	now        func() time.Time
}

func NewManager(chains []Chain, broadcaster *common.Broadcaster, opts Options, logger zerolog.Logger) *Manager {
	m := &Manager{
		Broadcaster: broadcaster,
		chains:      make(map[string]Chain, len(chains)),
		opts:        opts.withDefaults(),
		logger:      logger.With().Str("component", "manager").Logger(),
		keys:        make(map[string]struct{}),
		refreshReq:  make(chan struct{}, 1),
		now:         time.Now,
	}
	for _, c := range chains {
		id := c.Network().ID
		m.chains[id] = c
		m.network = append(m.network, id)
	}

	m.book = ttlmap.New(&ttlmap.Options{
		InitialCapacity: 64,
		OnWillExpire: func(key string, item ttlmap.Item) {
			m.logger.Debug().Str("auction", key).Msg("book entry expired")
			m.broadcastExpired(key)
		},
		OnWillEvict: func(key string, item ttlmap.Item) {
			m.logger.Debug().Str("auction", key).Msg("book entry evicted")
		},
	})

	return m
}

// WithJournal records every successful bid in j.
func (m *Manager) WithJournal(j BidJournal) *Manager {
	m.journal = j
	return m
}

// Networks lists the ids of the polled networks in configuration order.
func (m *Manager) Networks() []string {
	out := make([]string, len(m.network))
	copy(out, m.network)
	return out
}

func (m *Manager) chain(network string) (Chain, error) {
	c, ok := m.chains[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, network)
	}
	return c, nil
}

func (m *Manager) setAuction(a *auction.Auction) error {
	key := a.Key()
	if err := m.book.Set(key, ttlmap.NewItem(a, ttlmap.WithTTL(m.opts.TTL)), nil); err != nil {
		return fmt.Errorf("failed to store auction %s: %w", key, err)
	}

	m.keysMu.Lock()
	m.keys[key] = struct{}{}
	m.keysMu.Unlock()
	return nil
}

func (m *Manager) getAuction(key string) (*auction.Auction, bool) {
	item, err := m.book.Get(key)
	if err != nil {
		return nil, false
	}
	a, ok := item.Value().(*auction.Auction)
	return a, ok && a != nil
}

func (m *Manager) deleteAuction(key string) {
	m.book.Delete(key)

	m.keysMu.Lock()
	delete(m.keys, key)
	m.keysMu.Unlock()
}

func (m *Manager) snapshotKeys() []string {
	m.keysMu.Lock()
	defer m.keysMu.Unlock()

	out := make([]string, 0, len(m.keys))
	for k := range m.keys {
		out = append(out, k)
	}
	return out
}

// Auctions returns copies of every auction in the book, ordered by network
// then id. Keys whose entries expired are pruned on the way.
func (m *Manager) Auctions() []*auction.Auction {
	keys := m.snapshotKeys()
	out := make([]*auction.Auction, 0, len(keys))
	var stale []string
	for _, k := range keys {
		a, ok := m.getAuction(k)
		if !ok {
			stale = append(stale, k)
			continue
		}
		out = append(out, a.Clone())
	}

	if len(stale) > 0 {
		m.keysMu.Lock()
		for _, k := range stale {
			delete(m.keys, k)
		}
		m.keysMu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Network != out[j].Network {
			return out[i].Network < out[j].Network
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Auction returns a copy of one auction.
func (m *Manager) Auction(network string, id uint64) (*auction.Auction, error) {
	a, ok := m.getAuction(auction.Key(network, id))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, auction.Key(network, id))
	}
	return a.Clone(), nil
}

// Query filters, sorts and paginates the book.
func (m *Manager) Query(q auction.Query) auction.Page {
	return q.Apply(m.Auctions(), m.now())
}

// Stats counts auctions per polled network plus the "all" total.
func (m *Manager) Stats() map[string]int {
	return auction.Stats(m.Auctions(), m.network)
}

func (m *Manager) UsingMock() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.mock
}

func (m *Manager) LastRefresh() RefreshResult {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.lastRefresh
}

func (m *Manager) LastPriceRefresh() time.Time {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.lastPrices
}

// Close stops the ttl map and disconnects every subscriber.
func (m *Manager) Close() {
	m.book.Drain()
	m.Broadcaster.Close()
}
