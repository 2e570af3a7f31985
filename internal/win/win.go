// Package win drives the solver through a won auction: fill the order on the
// settler, then settle it. Each won auction gets a session that moves
// through Congratulations, FillOrder, SettleOrder and Complete.
package win

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"bridge/internal/auction"
	"bridge/internal/chain"
	"bridge/internal/hash"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// DefaultSettler receives fill and settle calls.
	DefaultSettler = ethcommon.HexToAddress("0x94AA7d7A4e249ca9A12A834CeC057e91F886B92a")
	// DefaultFillToken is approved to the settler before fill.
	DefaultFillToken = ethcommon.HexToAddress("0xd0A9c6e7FF012F22Ba52038F9727b50e16466176")
)

var (
	ErrWalletNotConnected = errors.New("Wallet not connected. Please connect your wallet first.")
	ErrAuctionMissing     = errors.New("Auction data is missing. Please try again.")
	ErrInvalidOriginData  = errors.New("Invalid origin data format. The hex data must have an even number of characters.")
	ErrSettleUnavailable  = errors.New("Wallet not connected or auction data missing.")

	ErrSessionNotFound = errors.New("session not found")
	ErrWrongStep       = errors.New("session is not at the required step")
	ErrBusy            = errors.New("a transaction for this session is in flight")
	ErrInvalidOrderID  = errors.New("order id must be 32 bytes of hex")
)

// Chain is the signing access the wizard needs. *chain.Client implements it.
type Chain interface {
	From() ethcommon.Address
	Approve(ctx context.Context, token, spender ethcommon.Address, amount *big.Int) (*chain.Receipt, error)
	Fill(ctx context.Context, settler ethcommon.Address, orderID [32]byte, originData, fillerData []byte) (*chain.Receipt, error)
	Settle(ctx context.Context, settler ethcommon.Address, orderIDs [][32]byte) (*chain.Receipt, error)
}

// Auctions looks up the auction a session belongs to. *manager.Manager
// implements it.
type Auctions interface {
	Auction(network string, id uint64) (*auction.Auction, error)
}

// Journal persists sessions so an interrupted flow can be resumed. It is
// optional.
type Journal interface {
	SaveSession(ctx context.Context, s Session) error
	LoadSessions(ctx context.Context) ([]Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

type Session struct {
	ID         uuid.UUID `json:"id"`
	Network    string    `json:"network"`
	AuctionID  uint64    `json:"auctionId"`
	OrderID    string    `json:"orderId"`
	OriginData string    `json:"originData"`
	Step       Step      `json:"step"`
	FillTx     string    `json:"fillTx,omitempty"`
	SettleTx   string    `json:"settleTx,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	busy bool
}

// NeedsConfirmation reports whether closing the session would abandon a flow
// that is under way.
func (s Session) NeedsConfirmation() bool {
	return s.Step != StepCongratulations && s.Step != StepComplete && s.Error == ""
}

type Config struct {
	Settler   ethcommon.Address
	FillToken ethcommon.Address
}

type Service struct {
	chains    map[string]Chain
	auctions  Auctions
	settler   ethcommon.Address
	fillToken ethcommon.Address
	journal   Journal
	onSuccess func(Session)
	logger    zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	now func() time.Time
}

func NewService(chains map[string]Chain, auctions Auctions, cfg Config, logger zerolog.Logger) *Service {
	if cfg.Settler == (ethcommon.Address{}) {
		cfg.Settler = DefaultSettler
	}
	if cfg.FillToken == (ethcommon.Address{}) {
		cfg.FillToken = DefaultFillToken
	}
	return &Service{
		chains:    chains,
		auctions:  auctions,
		settler:   cfg.Settler,
		fillToken: cfg.FillToken,
		logger:    logger.With().Str("component", "win").Logger(),
		sessions:  make(map[uuid.UUID]*Session),
		now:       time.Now,
	}
}

func (s *Service) WithJournal(j Journal) *Service {
	s.journal = j
	return s
}

// OnSuccess registers fn to run after a session settles.
func (s *Service) OnSuccess(fn func(Session)) *Service {
	s.onSuccess = fn
	return s
}

// Start opens a session for a won auction at the Congratulations step.
func (s *Service) Start(ctx context.Context, network string, auctionID uint64, orderID, originData string) (*Session, error) {
	if _, err := hash.HexToBytes32Strict(orderID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrderID, err)
	}

	now := s.now().UTC()
	sess := &Session{
		ID:         uuid.New(),
		Network:    network,
		AuctionID:  auctionID,
		OrderID:    orderID,
		OriginData: originData,
		Step:       StepCongratulations,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	out := *sess
	s.mu.Unlock()

	s.logger.Info().
		Str("session", sess.ID.String()).
		Str("auction", auction.Key(network, auctionID)).
		Str("order_id", orderID).
		Msg("win session started")
	s.save(ctx, out)
	return &out, nil
}

func (s *Service) Get(id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *sess
	return &out, nil
}

// Sessions returns every open session, oldest first.
func (s *Service) Sessions() []Session {
	s.mu.Lock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Continue moves a session from Congratulations to FillOrder.
func (s *Service) Continue(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.move(ctx, id, StepCongratulations, StepFillOrder)
}

// Back steps a session back one screen. Only FillOrder and SettleOrder have
// a previous step.
func (s *Service) Back(ctx context.Context, id uuid.UUID) (*Session, error) {
	cur, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	switch cur.Step {
	case StepFillOrder:
		return s.move(ctx, id, StepFillOrder, StepCongratulations)
	case StepSettleOrder:
		return s.move(ctx, id, StepSettleOrder, StepFillOrder)
	}
	return nil, fmt.Errorf("%w: %s has no previous step", ErrWrongStep, cur.Step)
}

func (s *Service) move(ctx context.Context, id uuid.UUID, from, to Step) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if sess.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if sess.Step != from {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: at %s, want %s", ErrWrongStep, sess.Step, from)
	}
	sess.Step = to
	sess.Error = ""
	sess.UpdatedAt = s.now().UTC()
	out := *sess
	s.mu.Unlock()

	s.save(ctx, out)
	return &out, nil
}

// ConfirmClose reports whether closing the session needs the user's
// confirmation.
func (s *Service) ConfirmClose(id uuid.UUID) (bool, error) {
	sess, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return sess.NeedsConfirmation(), nil
}

// Close abandons a session and removes it from the journal, so it is not
// resumed after a restart.
func (s *Service) Close(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.DeleteSession(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("session", id.String()).Msg("failed to remove session from journal")
		}
	}
	return nil
}

// Resume reloads unfinished sessions from the journal.
func (s *Service) Resume(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, nil
	}
	saved, err := s.journal.LoadSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load win sessions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range saved {
		if saved[i].Step == StepComplete {
			continue
		}
		sess := saved[i]
		sess.busy = false
		s.sessions[sess.ID] = &sess
		n++
	}
	return n, nil
}

// begin marks the session busy if it is at step. The returned copy is the
// state the transaction works from.
func (s *Service) begin(id uuid.UUID, step Step) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if sess.busy {
		return Session{}, ErrBusy
	}
	if sess.Step != step {
		return Session{}, fmt.Errorf("%w: at %s, want %s", ErrWrongStep, sess.Step, step)
	}
	sess.busy = true
	sess.Error = ""
	return *sess, nil
}

// finish applies update to the session and clears its busy flag.
func (s *Service) finish(ctx context.Context, id uuid.UUID, update func(*Session)) Session {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return Session{}
	}
	update(sess)
	sess.busy = false
	sess.UpdatedAt = s.now().UTC()
	out := *sess
	s.mu.Unlock()

	s.save(ctx, out)
	return out
}

// fail records err on the session without moving it, so the step can be
// retried.
func (s *Service) fail(ctx context.Context, id uuid.UUID, err error) error {
	s.finish(ctx, id, func(sess *Session) { sess.Error = err.Error() })
	return err
}

// Fill approves the fill token to the settler and fills the order. On
// success the session moves to SettleOrder.
func (s *Service) Fill(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.begin(id, StepFillOrder)
	if err != nil {
		return nil, err
	}

	c, ok := s.chains[sess.Network]
	if !ok || c.From() == (ethcommon.Address{}) {
		return nil, s.fail(ctx, id, ErrWalletNotConnected)
	}
	if _, err := s.auctions.Auction(sess.Network, sess.AuctionID); err != nil {
		return nil, s.fail(ctx, id, ErrAuctionMissing)
	}
	originData, err := hash.ParseOriginData(sess.OriginData)
	if err != nil {
		s.logger.Error().Err(err).Str("session", id.String()).Msg("invalid origin data")
		return nil, s.fail(ctx, id, ErrInvalidOriginData)
	}
	orderID, err := hash.HexToBytes32Strict(sess.OrderID)
	if err != nil {
		return nil, s.fail(ctx, id, fmt.Errorf("%w: %v", ErrInvalidOrderID, err))
	}
	fillerData, err := hash.FillerData(c.From())
	if err != nil {
		return nil, s.fail(ctx, id, err)
	}

	if _, err := c.Approve(ctx, s.fillToken, s.settler, chain.MaxUint256); err != nil {
		s.logger.Error().Err(err).Str("session", id.String()).Msg("fill token approval failed")
		return nil, s.fail(ctx, id, chain.Classify(chain.OpFill, err))
	}

	receipt, err := c.Fill(ctx, s.settler, orderID, originData, fillerData)
	if err != nil {
		s.logger.Error().Err(err).Str("session", id.String()).Str("order_id", sess.OrderID).Msg("fill failed")
		return nil, s.fail(ctx, id, chain.Classify(chain.OpFill, err))
	}

	s.logger.Info().
		Str("session", id.String()).
		Str("order_id", sess.OrderID).
		Str("tx_hash", receipt.TxHash.Hex()).
		Msg("order filled")

	out := s.finish(ctx, id, func(sess *Session) {
		sess.FillTx = receipt.TxHash.Hex()
		sess.Step = StepSettleOrder
	})
	return &out, nil
}

// Settle settles the filled order. On success the session moves to Complete
// and the success callback runs.
func (s *Service) Settle(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.begin(id, StepSettleOrder)
	if err != nil {
		return nil, err
	}

	c, ok := s.chains[sess.Network]
	if !ok || c.From() == (ethcommon.Address{}) {
		return nil, s.fail(ctx, id, ErrSettleUnavailable)
	}
	if _, err := s.auctions.Auction(sess.Network, sess.AuctionID); err != nil {
		return nil, s.fail(ctx, id, ErrSettleUnavailable)
	}
	orderID, err := hash.HexToBytes32Strict(sess.OrderID)
	if err != nil {
		return nil, s.fail(ctx, id, fmt.Errorf("%w: %v", ErrInvalidOrderID, err))
	}

	receipt, err := c.Settle(ctx, s.settler, [][32]byte{orderID})
	if err != nil {
		s.logger.Error().Err(err).Str("session", id.String()).Str("order_id", sess.OrderID).Msg("settle failed")
		return nil, s.fail(ctx, id, chain.Classify(chain.OpSettle, err))
	}

	s.logger.Info().
		Str("session", id.String()).
		Str("order_id", sess.OrderID).
		Str("tx_hash", receipt.TxHash.Hex()).
		Msg("order settled")

	out := s.finish(ctx, id, func(sess *Session) {
		sess.SettleTx = receipt.TxHash.Hex()
		sess.Step = StepComplete
	})
	if s.onSuccess != nil {
		s.onSuccess(out)
	}
	return &out, nil
}

func (s *Service) save(ctx context.Context, sess Session) {
	if s.journal == nil {
		return
	}
	if err := s.journal.SaveSession(ctx, sess); err != nil {
		s.logger.Error().Err(err).Str("session", sess.ID.String()).Msg("failed to journal win session")
	}
}
