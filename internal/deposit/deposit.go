// Package deposit opens bridge orders on the escrow of the source network:
// input validation, order construction, token approval and escrow open.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"bridge/internal/auction"
	"bridge/internal/chain"
	"bridge/internal/common"
	"bridge/internal/hash"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// FillWindow is how long solvers have to fill an opened order.
const FillWindow = 24 * time.Hour

// DefaultSettler is the destination settler written into every order.
var DefaultSettler = ethcommon.HexToAddress("0xbF59f5a5931B9013A6d3724d0D3A2a0abafe3Afc")

var (
	ErrMissingNetworks = errors.New("Please select both source and destination")
	ErrMissingAmount   = errors.New("Please enter a deposit amount")
	ErrMinTooHigh      = errors.New("Minimum expected amount must be less than deposit amount")
	ErrSameNetwork     = errors.New("Source and destination networks must differ")
	ErrNoSigner        = errors.New("Please connect your wallet first")
)

var minRatio = decimal.RequireFromString("0.9")

// Chain is the source-network access a deposit needs. *chain.Client
// implements it.
type Chain interface {
	From() ethcommon.Address
	BalanceOf(ctx context.Context, token, account ethcommon.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender ethcommon.Address, amount *big.Int) (*chain.Receipt, error)
	Open(ctx context.Context, escrow ethcommon.Address, order hash.OnchainCrossChainOrder) (*chain.Receipt, error)
}

// Journal records opened orders. It is optional.
type Journal interface {
	RecordDeposit(ctx context.Context, rec Record) error
}

type Request struct {
	SourceNetwork string `json:"sourceNetwork"`
	DestNetwork   string `json:"destNetwork"`
	SourceToken   string `json:"sourceToken"`
	// DestToken defaults to SourceToken.
	DestToken string `json:"destToken,omitempty"`
	Amount    string `json:"amount"`
	// MinAmount defaults to DefaultMinAmount(Amount).
	MinAmount string `json:"minAmount,omitempty"`
}

// Plan is a validated deposit ready to be submitted.
type Plan struct {
	Source      common.Network              `json:"source"`
	Dest        common.Network              `json:"dest"`
	SourceToken common.Token                `json:"sourceToken"`
	DestToken   common.Token                `json:"destToken"`
	InputToken  ethcommon.Address           `json:"inputToken"`
	OutputToken ethcommon.Address           `json:"outputToken"`
	Escrow      ethcommon.Address           `json:"escrow"`
	Amount      string                      `json:"amount"`
	MinAmount   string                      `json:"minAmount"`
	Order       hash.OrderData              `json:"order"`
	OrderID     ethcommon.Hash              `json:"orderId"`
	Onchain     hash.OnchainCrossChainOrder `json:"onchainOrder"`
}

type Result struct {
	Plan    *Plan          `json:"plan"`
	Approve *chain.Receipt `json:"approve"`
	Open    *chain.Receipt `json:"open"`
}

// Record is the journal entry of an opened order.
type Record struct {
	OrderID       string    `json:"orderId"`
	SourceNetwork string    `json:"sourceNetwork"`
	DestNetwork   string    `json:"destNetwork"`
	Sender        string    `json:"sender"`
	InputToken    string    `json:"inputToken"`
	OutputToken   string    `json:"outputToken"`
	AmountIn      string    `json:"amountIn"`
	AmountOut     string    `json:"amountOut"`
	TxHash        string    `json:"txHash"`
	FillDeadline  uint32    `json:"fillDeadline"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Service struct {
	registry *common.Registry
	chains   map[string]Chain
	settler  ethcommon.Address
	journal  Journal
	logger   zerolog.Logger

	now   func() time.Time
	nonce func() (uint32, error)
}

// NewService builds a deposit service over the signing clients of the
// source networks, keyed by network id.
func NewService(registry *common.Registry, chains map[string]Chain, settler ethcommon.Address, logger zerolog.Logger) *Service {
	if settler == (ethcommon.Address{}) {
		settler = DefaultSettler
	}
	return &Service{
		registry: registry,
		chains:   chains,
		settler:  settler,
		logger:   logger.With().Str("component", "deposit").Logger(),
		now:      time.Now,
		nonce:    hash.RandomNonce,
	}
}

func (s *Service) WithJournal(j Journal) *Service {
	s.journal = j
	return s
}

// DefaultMinAmount is 90% of amount with two decimals, "" for an unparsable
// amount.
func DefaultMinAmount(amount string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return ""
	}
	return d.Mul(minRatio).StringFixed(2)
}

// Prepare validates req and builds the order for the signer of the source
// network.
func (s *Service) Prepare(req Request) (*Plan, error) {
	if req.SourceNetwork == "" || req.DestNetwork == "" || req.SourceToken == "" {
		return nil, ErrMissingNetworks
	}
	if req.SourceNetwork == req.DestNetwork {
		return nil, ErrSameNetwork
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, ErrMissingAmount
	}
	if req.DestToken == "" {
		req.DestToken = req.SourceToken
	}

	source, err := s.registry.NetworkByID(req.SourceNetwork)
	if err != nil {
		return nil, err
	}
	dest, err := s.registry.NetworkByID(req.DestNetwork)
	if err != nil {
		return nil, err
	}
	sourceToken, err := s.registry.TokenByID(req.SourceToken)
	if err != nil {
		return nil, err
	}
	destToken, err := s.registry.TokenByID(req.DestToken)
	if err != nil {
		return nil, err
	}
	inputToken, err := s.registry.TokenAddress(sourceToken.ID, source.ID)
	if err != nil {
		return nil, err
	}
	outputToken, err := s.registry.TokenAddress(destToken.ID, dest.ID)
	if err != nil {
		return nil, err
	}

	amountIn, err := auction.ParseUnits(req.Amount, sourceToken.Decimals)
	if err != nil {
		return nil, err
	}
	if amountIn.Sign() == 0 {
		return nil, ErrMissingAmount
	}

	minAmount := req.MinAmount
	if strings.TrimSpace(minAmount) == "" {
		minAmount = DefaultMinAmount(req.Amount)
	}
	amountOut, err := auction.ParseUnits(minAmount, destToken.Decimals)
	if err != nil {
		return nil, err
	}
	if minAmountNotBelow(minAmount, req.Amount) {
		return nil, ErrMinTooHigh
	}

	c, ok := s.chains[source.ID]
	if !ok {
		return nil, fmt.Errorf("%w: no signer for %s", ErrNoSigner, source.ID)
	}
	sender := c.From()
	if sender == (ethcommon.Address{}) {
		return nil, ErrNoSigner
	}

	nonce, err := s.nonce()
	if err != nil {
		return nil, err
	}

	order := hash.OrderData{
		Sender:             hash.AddressToBytes32(sender),
		Recipient:          hash.AddressToBytes32(sender),
		InputToken:         hash.AddressToBytes32(inputToken),
		OutputToken:        hash.AddressToBytes32(outputToken),
		AmountIn:           amountIn,
		AmountOut:          amountOut,
		SenderNonce:        nonce,
		OriginDomain:       uint32(source.ChainID),
		DestinationDomain:  uint32(dest.ChainID),
		DestinationSettler: hash.AddressToBytes32(s.settler),
		FillDeadline:       uint32(s.now().Add(FillWindow).Unix()),
		Data:               []byte{},
	}

	onchain, err := hash.NewOnchainOrder(order)
	if err != nil {
		return nil, err
	}
	orderID, err := hash.ID(order)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Source:      source,
		Dest:        dest,
		SourceToken: sourceToken,
		DestToken:   destToken,
		InputToken:  inputToken,
		OutputToken: outputToken,
		Escrow:      ethcommon.HexToAddress(source.Escrow),
		Amount:      strings.TrimSpace(req.Amount),
		MinAmount:   minAmount,
		Order:       order,
		OrderID:     orderID,
		Onchain:     onchain,
	}, nil
}

// minAmountNotBelow compares the two human amounts as decimals, so that
// tokens with different decimals on each side compare by value.
func minAmountNotBelow(minAmount, amount string) bool {
	lhs, err := decimal.NewFromString(strings.TrimSpace(minAmount))
	if err != nil {
		return true
	}
	rhs, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return true
	}
	return lhs.GreaterThanOrEqual(rhs)
}

// Deposit approves the escrow for the input token and opens the order.
func (s *Service) Deposit(ctx context.Context, req Request) (*Result, error) {
	plan, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}
	c := s.chains[plan.Source.ID]

	approve, err := c.Approve(ctx, plan.InputToken, plan.Escrow, chain.MaxUint256)
	if err != nil {
		s.logger.Error().Err(err).Str("token", plan.InputToken.Hex()).Msg("token approval failed")
		return nil, chain.Classify(chain.OpApprove, err)
	}

	open, err := c.Open(ctx, plan.Escrow, plan.Onchain)
	if err != nil {
		s.logger.Error().Err(err).Str("network", plan.Source.ID).Msg("deposit failed")
		return nil, chain.Classify(chain.OpDeposit, err)
	}

	s.logger.Info().
		Str("order_id", plan.OrderID.Hex()).
		Str("source", plan.Source.ID).
		Str("dest", plan.Dest.ID).
		Str("amount", plan.Amount).
		Str("min_amount", plan.MinAmount).
		Str("tx_hash", open.TxHash.Hex()).
		Msg("order opened")

	if s.journal != nil {
		rec := Record{
			OrderID:       plan.OrderID.Hex(),
			SourceNetwork: plan.Source.ID,
			DestNetwork:   plan.Dest.ID,
			Sender:        c.From().Hex(),
			InputToken:    plan.InputToken.Hex(),
			OutputToken:   plan.OutputToken.Hex(),
			AmountIn:      plan.Order.AmountIn.String(),
			AmountOut:     plan.Order.AmountOut.String(),
			TxHash:        open.TxHash.Hex(),
			FillDeadline:  plan.Order.FillDeadline,
			CreatedAt:     s.now().UTC(),
		}
		if err := s.journal.RecordDeposit(ctx, rec); err != nil {
			s.logger.Error().Err(err).Str("order_id", rec.OrderID).Msg("failed to journal deposit")
		}
	}

	return &Result{Plan: plan, Approve: approve, Open: open}, nil
}

type Balance struct {
	Network string   `json:"network"`
	Token   string   `json:"token"`
	Account string   `json:"account"`
	Raw     *big.Int `json:"raw"`
	// Formatted is the balance rounded down to two decimals, also the
	// amount the "max" helper fills in.
	Formatted string `json:"formatted"`
	// MinAmount is DefaultMinAmount of Formatted.
	MinAmount string `json:"minAmount"`
}

// Balance reads the signer's balance of token on network.
func (s *Service) Balance(ctx context.Context, network, token string) (*Balance, error) {
	c, ok := s.chains[network]
	if !ok {
		return nil, fmt.Errorf("%w: no signer for %s", ErrNoSigner, network)
	}
	tok, err := s.registry.TokenByID(token)
	if err != nil {
		return nil, err
	}
	addr, err := s.registry.TokenAddress(token, network)
	if err != nil {
		return nil, err
	}

	account := c.From()
	raw, err := c.BalanceOf(ctx, addr, account)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	formatted := decimal.NewFromBigInt(raw, -int32(tok.Decimals)).Truncate(2).StringFixed(2)
	return &Balance{
		Network:   network,
		Token:     token,
		Account:   account.Hex(),
		Raw:       raw,
		Formatted: formatted,
		MinAmount: DefaultMinAmount(formatted),
	}, nil
}
