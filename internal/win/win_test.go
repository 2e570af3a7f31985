package win

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"bridge/internal/auction"
	"bridge/internal/chain"
	"bridge/internal/hash"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOrderID    = "0x00000000000000000000000000000000000000000000000000000000000000ab"
	testOriginData = "0xdeadbeef"
)

var solver = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

type approval struct {
	token, spender ethcommon.Address
}

type fakeChain struct {
	from       ethcommon.Address
	approveErr error
	fillErr    error
	settleErr  error

	approvals  []approval
	fills      [][32]byte
	fillerData [][]byte
	origin     [][]byte
	settles    [][][32]byte
}

func (f *fakeChain) From() ethcommon.Address { return f.from }

func (f *fakeChain) Approve(_ context.Context, token, spender ethcommon.Address, _ *big.Int) (*chain.Receipt, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	f.approvals = append(f.approvals, approval{token, spender})
	return &chain.Receipt{TxHash: ethcommon.HexToHash("0xa1")}, nil
}

func (f *fakeChain) Fill(_ context.Context, _ ethcommon.Address, orderID [32]byte, originData, fillerData []byte) (*chain.Receipt, error) {
	if f.fillErr != nil {
		return nil, f.fillErr
	}
	f.fills = append(f.fills, orderID)
	f.origin = append(f.origin, originData)
	f.fillerData = append(f.fillerData, fillerData)
	return &chain.Receipt{TxHash: ethcommon.HexToHash("0xf1")}, nil
}

func (f *fakeChain) Settle(_ context.Context, _ ethcommon.Address, orderIDs [][32]byte) (*chain.Receipt, error) {
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	f.settles = append(f.settles, orderIDs)
	return &chain.Receipt{TxHash: ethcommon.HexToHash("0x5e")}, nil
}

type fakeAuctions struct {
	missing bool
}

func (f *fakeAuctions) Auction(network string, id uint64) (*auction.Auction, error) {
	if f.missing {
		return nil, errors.New("auction not found")
	}
	return &auction.Auction{Network: network, ID: id}, nil
}

type memoryJournal struct {
	saved map[uuid.UUID]Session
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{saved: make(map[uuid.UUID]Session)}
}

func (j *memoryJournal) SaveSession(_ context.Context, s Session) error {
	j.saved[s.ID] = s
	return nil
}

func (j *memoryJournal) DeleteSession(_ context.Context, id uuid.UUID) error {
	delete(j.saved, id)
	return nil
}

func (j *memoryJournal) LoadSessions(context.Context) ([]Session, error) {
	out := make([]Session, 0, len(j.saved))
	for _, s := range j.saved {
		out = append(out, s)
	}
	return out, nil
}

func newTestService(c *fakeChain, auctions *fakeAuctions) *Service {
	s := NewService(map[string]Chain{"ethereum": c}, auctions, Config{}, zerolog.Nop())
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return s
}

func startAtFill(t *testing.T, s *Service, originData string) *Session {
	t.Helper()
	sess, err := s.Start(context.Background(), "ethereum", 3, testOrderID, originData)
	require.NoError(t, err)
	sess, err = s.Continue(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, StepFillOrder, sess.Step)
	return sess
}

func TestHappyPath(t *testing.T) {
	c := &fakeChain{from: solver}
	var settled []Session
	s := newTestService(c, &fakeAuctions{}).OnSuccess(func(sess Session) {
		settled = append(settled, sess)
	})

	sess, err := s.Start(context.Background(), "ethereum", 3, testOrderID, testOriginData)
	require.NoError(t, err)
	assert.Equal(t, StepCongratulations, sess.Step)
	assert.False(t, sess.NeedsConfirmation())

	sess = startAtFill(t, s, testOriginData)
	assert.True(t, sess.NeedsConfirmation())

	sess, err = s.Fill(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepSettleOrder, sess.Step)
	assert.Equal(t, ethcommon.HexToHash("0xf1").Hex(), sess.FillTx)

	require.Len(t, c.approvals, 1)
	assert.Equal(t, approval{DefaultFillToken, DefaultSettler}, c.approvals[0])
	orderID, _ := hash.HexToBytes32Strict(testOrderID)
	assert.Equal(t, [][32]byte{orderID}, c.fills)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, c.origin[0])
	wantFiller, _ := hash.FillerData(solver)
	assert.Equal(t, wantFiller, c.fillerData[0])

	sess, err = s.Settle(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepComplete, sess.Step)
	assert.Equal(t, ethcommon.HexToHash("0x5e").Hex(), sess.SettleTx)
	assert.Equal(t, [][][32]byte{{orderID}}, c.settles)
	assert.False(t, sess.NeedsConfirmation())

	require.Len(t, settled, 1)
	assert.Equal(t, sess.ID, settled[0].ID)
}

func TestStartRejectsBadOrderID(t *testing.T) {
	s := newTestService(&fakeChain{from: solver}, &fakeAuctions{})
	_, err := s.Start(context.Background(), "ethereum", 1, "0x1234", testOriginData)
	assert.ErrorIs(t, err, ErrInvalidOrderID)
}

func TestFillValidation(t *testing.T) {
	tests := []struct {
		name     string
		chain    *fakeChain
		auctions *fakeAuctions
		origin   string
		want     error
	}{
		{"no signer", &fakeChain{}, &fakeAuctions{}, testOriginData, ErrWalletNotConnected},
		{"no auction", &fakeChain{from: solver}, &fakeAuctions{missing: true}, testOriginData, ErrAuctionMissing},
		{"no prefix", &fakeChain{from: solver}, &fakeAuctions{}, "deadbeef", ErrInvalidOriginData},
		{"odd length", &fakeChain{from: solver}, &fakeAuctions{}, "0xdeadbee", ErrInvalidOriginData},
		{"empty", &fakeChain{from: solver}, &fakeAuctions{}, "", ErrInvalidOriginData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(tt.chain, tt.auctions)
			sess := startAtFill(t, s, tt.origin)

			_, err := s.Fill(context.Background(), sess.ID)
			require.ErrorIs(t, err, tt.want)

			got, err := s.Get(sess.ID)
			require.NoError(t, err)
			assert.Equal(t, StepFillOrder, got.Step)
			assert.Equal(t, tt.want.Error(), got.Error)
			assert.False(t, got.NeedsConfirmation(), "an errored session closes without confirmation")
			assert.Empty(t, tt.chain.fills)
		})
	}
}

func TestFillErrorIsRetryable(t *testing.T) {
	c := &fakeChain{from: solver, fillErr: errors.New("execution reverted: bad order")}
	s := newTestService(c, &fakeAuctions{})
	sess := startAtFill(t, s, testOriginData)

	_, err := s.Fill(context.Background(), sess.ID)
	require.Error(t, err)
	assert.Equal(t, "Contract execution failed. This could be due to an invalid order ID or data format.", err.Error())

	got, _ := s.Get(sess.ID)
	assert.Equal(t, StepFillOrder, got.Step)
	assert.Equal(t, err.Error(), got.Error)

	c.fillErr = nil
	got, err = s.Fill(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepSettleOrder, got.Step)
	assert.Empty(t, got.Error)
}

func TestFillApproveError(t *testing.T) {
	c := &fakeChain{from: solver, approveErr: errors.New("user rejected transaction")}
	s := newTestService(c, &fakeAuctions{})
	sess := startAtFill(t, s, testOriginData)

	_, err := s.Fill(context.Background(), sess.ID)
	require.Error(t, err)
	assert.Equal(t, "Transaction was rejected. Please try again.", err.Error())
	assert.Empty(t, c.fills)
}

func TestSettleErrors(t *testing.T) {
	c := &fakeChain{from: solver}
	auctions := &fakeAuctions{}
	s := newTestService(c, auctions)
	sess := startAtFill(t, s, testOriginData)
	_, err := s.Fill(context.Background(), sess.ID)
	require.NoError(t, err)

	auctions.missing = true
	_, err = s.Settle(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrSettleUnavailable)

	auctions.missing = false
	c.settleErr = errors.New("insufficient funds for gas * price + value")
	_, err = s.Settle(context.Background(), sess.ID)
	require.Error(t, err)
	assert.Equal(t, "Insufficient funds to complete the transaction. Please check your wallet balance.", err.Error())

	got, _ := s.Get(sess.ID)
	assert.Equal(t, StepSettleOrder, got.Step)
}

func TestStepGuards(t *testing.T) {
	s := newTestService(&fakeChain{from: solver}, &fakeAuctions{})
	sess, err := s.Start(context.Background(), "ethereum", 3, testOrderID, testOriginData)
	require.NoError(t, err)

	_, err = s.Fill(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrWrongStep)
	_, err = s.Settle(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrWrongStep)
	_, err = s.Back(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrWrongStep)

	_, err = s.Fill(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBack(t *testing.T) {
	s := newTestService(&fakeChain{from: solver}, &fakeAuctions{})
	sess := startAtFill(t, s, testOriginData)

	_, err := s.Fill(context.Background(), sess.ID)
	require.NoError(t, err)

	got, err := s.Back(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepFillOrder, got.Step)

	got, err = s.Back(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepCongratulations, got.Step)
}

func TestConfirmCloseAndClose(t *testing.T) {
	s := newTestService(&fakeChain{from: solver}, &fakeAuctions{})
	sess := startAtFill(t, s, testOriginData)

	confirm, err := s.ConfirmClose(sess.ID)
	require.NoError(t, err)
	assert.True(t, confirm)

	require.NoError(t, s.Close(context.Background(), sess.ID))
	_, err = s.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.Close(context.Background(), sess.ID), ErrSessionNotFound)
}

func TestClosedSessionIsNotResumed(t *testing.T) {
	journal := newMemoryJournal()
	s := newTestService(&fakeChain{from: solver}, &fakeAuctions{}).WithJournal(journal)
	closed := startAtFill(t, s, testOriginData)
	kept := startAtFill(t, s, testOriginData)

	require.NoError(t, s.Close(context.Background(), closed.ID))
	assert.NotContains(t, journal.saved, closed.ID)

	restarted := newTestService(&fakeChain{from: solver}, &fakeAuctions{}).WithJournal(journal)
	n, err := restarted.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = restarted.Get(closed.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = restarted.Get(kept.ID)
	assert.NoError(t, err)
}

func TestJournalResume(t *testing.T) {
	journal := newMemoryJournal()
	s := newTestService(&fakeChain{from: solver}, &fakeAuctions{}).WithJournal(journal)

	open := startAtFill(t, s, testOriginData)
	done := startAtFill(t, s, testOriginData)
	_, err := s.Fill(context.Background(), done.ID)
	require.NoError(t, err)
	_, err = s.Settle(context.Background(), done.ID)
	require.NoError(t, err)

	assert.Equal(t, StepComplete, journal.saved[done.ID].Step)

	restarted := newTestService(&fakeChain{from: solver}, &fakeAuctions{}).WithJournal(journal)
	n, err := restarted.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := restarted.Get(open.ID)
	require.NoError(t, err)
	assert.Equal(t, StepFillOrder, got.Step)

	_, err = restarted.Fill(context.Background(), open.ID)
	require.NoError(t, err)
}

func TestStepText(t *testing.T) {
	b, err := json.Marshal(Session{Step: StepSettleOrder})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"step":"settle_order"`)

	var decoded Session
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, StepSettleOrder, decoded.Step)

	_, err = ParseStep("done")
	assert.Error(t, err)
	assert.Equal(t, "step(9)", Step(9).String())
}
