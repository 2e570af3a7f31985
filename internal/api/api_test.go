package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bridge/internal/auction"
	"bridge/internal/chain"
	"bridge/internal/common"
	"bridge/internal/deposit"
	"bridge/internal/hash"
	"bridge/internal/manager"
	"bridge/internal/store"
	"bridge/internal/win"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrderID = "0x00000000000000000000000000000000000000000000000000000000000000ab"

var solver = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeChain serves every chain-facing interface of the daemon from memory.
type fakeChain struct {
	mu       sync.Mutex
	id       string
	auctions []*auction.Auction
	bidErr   error
}

func (f *fakeChain) Network() common.Network { return common.Network{ID: f.id} }

func (f *fakeChain) NextAuctionID(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.auctions)), nil
}

func (f *fakeChain) FetchAuction(_ context.Context, id uint64) (*auction.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id >= uint64(len(f.auctions)) {
		return nil, errors.New("execution reverted")
	}
	return f.auctions[id].Clone(), nil
}

func (f *fakeChain) CurrentPrice(_ context.Context, id uint64) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auctions[id].StartPrice, nil
}

func (f *fakeChain) PlaceBid(_ context.Context, id uint64) (*chain.Receipt, error) {
	if f.bidErr != nil {
		return nil, f.bidErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auctions[id].Winner = solver
	f.auctions[id].WinningBid = big.NewInt(950)
	return &chain.Receipt{TxHash: ethcommon.HexToHash("0xb1d")}, nil
}

func (f *fakeChain) From() ethcommon.Address { return solver }

func (f *fakeChain) BalanceOf(context.Context, ethcommon.Address, ethcommon.Address) (*big.Int, error) {
	raw, _ := new(big.Int).SetString("250500000000000000000", 10)
	return raw, nil
}

func (f *fakeChain) Approve(context.Context, ethcommon.Address, ethcommon.Address, *big.Int) (*chain.Receipt, error) {
	return &chain.Receipt{TxHash: ethcommon.HexToHash("0xa1")}, nil
}

func (f *fakeChain) Open(context.Context, ethcommon.Address, hash.OnchainCrossChainOrder) (*chain.Receipt, error) {
	return &chain.Receipt{TxHash: ethcommon.HexToHash("0x0be")}, nil
}

func (f *fakeChain) Fill(context.Context, ethcommon.Address, [32]byte, []byte, []byte) (*chain.Receipt, error) {
	return &chain.Receipt{TxHash: ethcommon.HexToHash("0xf1")}, nil
}

func (f *fakeChain) Settle(context.Context, ethcommon.Address, [][32]byte) (*chain.Receipt, error) {
	return &chain.Receipt{TxHash: ethcommon.HexToHash("0x5e")}, nil
}

func testAuction(id uint64, start, end time.Time) *auction.Auction {
	unit, _ := new(big.Int).SetString("1000000000000000000", 10)
	return &auction.Auction{
		ID:             id,
		Network:        common.NetworkEthereum,
		SourceSymbol:   "USDT",
		DestSymbol:     "USDT",
		SourceDecimals: 18,
		DestDecimals:   18,
		SourceAmount:   new(big.Int).Mul(unit, big.NewInt(100)),
		MinDestAmount:  new(big.Int).Mul(unit, big.NewInt(90)),
		StartPrice:     new(big.Int).Mul(unit, big.NewInt(100)),
		EndPrice:       new(big.Int).Mul(unit, big.NewInt(90)),
		StartTime:      start.Unix(),
		EndTime:        end.Unix(),
		User:           solver,
	}
}

type testEnv struct {
	server  *APIServer
	handler http.Handler
	chain   *fakeChain
	manager *manager.Manager
	store   *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := time.Now()
	fc := &fakeChain{
		id: common.NetworkEthereum,
		auctions: []*auction.Auction{
			testAuction(0, now.Add(-time.Minute), now.Add(time.Hour)),
			testAuction(1, now.Add(time.Hour), now.Add(2*time.Hour)),
		},
	}

	m := manager.NewManager([]manager.Chain{fc}, common.NewBroadcaster(), manager.Options{TTL: time.Hour}, zerolog.Nop())
	t.Cleanup(m.Close)
	_, err := m.Refresh(context.Background())
	require.NoError(t, err)

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m.WithJournal(st)

	registry := common.DefaultRegistry()
	deposits := deposit.NewService(registry, map[string]deposit.Chain{common.NetworkEthereum: fc}, ethcommon.Address{}, zerolog.Nop()).WithJournal(st)
	wins := win.NewService(map[string]win.Chain{common.NetworkEthereum: fc}, m, win.Config{}, zerolog.Nop()).WithJournal(st)

	s := newAPIServer(0, Services{
		Registry: registry,
		Manager:  m,
		Deposits: deposits,
		Wins:     wins,
		History:  st,
	}, zerolog.Nop())
	return &testEnv{server: s, handler: s.RegisterRoutes(), chain: fc, manager: m, store: st}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodOptions, "/auctions", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListNetworks(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/networks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Networks []networkView `json:"networks"`
		Total    int           `json:"total"`
		Mock     bool          `json:"mock"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Networks, 3)
	assert.Equal(t, 2, resp.Total)
	assert.False(t, resp.Mock)
	for _, n := range resp.Networks {
		assert.Equal(t, n.ID == common.NetworkEthereum, n.Polled, n.ID)
	}
}

func TestSupportedNetwork(t *testing.T) {
	e := newTestEnv(t)

	body := decode(t, e.do(t, http.MethodGet, "/networks/supported?chainId=5115", nil))
	assert.Equal(t, true, body["supported"])

	body = decode(t, e.do(t, http.MethodGet, "/networks/supported?chainId=1", nil))
	assert.Equal(t, false, body["supported"])

	rec := e.do(t, http.MethodGet, "/networks/supported", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTokens(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/tokens?network=citrea", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tokens []common.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	assert.Len(t, tokens, 3)

	rec = e.do(t, http.MethodGet, "/tokens?network=base", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAuctions(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/auctions?status=active&network=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Items []map[string]interface{} `json:"items"`
		Total int                      `json:"total"`
		Stats map[string]int           `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 2, page.Stats[auction.AllNetworks])

	item := page.Items[0]
	assert.Equal(t, "Active", item["status"])
	assert.Equal(t, true, item["canBid"])
	assert.Equal(t, "100 USDT", item["sourceAmountFormatted"])
	assert.NotEqual(t, "N/A", item["currentPriceFormatted"])

	rec = e.do(t, http.MethodGet, "/auctions?status=upcoming", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "N/A", page.Items[0]["currentPriceFormatted"])

	rec = e.do(t, http.MethodGet, "/auctions?page=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAuction(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/auctions/ethereum/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Upcoming", decode(t, rec)["status"])

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/auctions/ethereum/9", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/auctions/ethereum/x", nil).Code)
}

func TestPlaceBid(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/auctions/ethereum/0/bid", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Contains(t, body, "receipt")
	updated := body["auction"].(map[string]interface{})
	assert.Equal(t, "Bid Placed", updated["status"])
	assert.Equal(t, "0.00000000000000095 USDT", updated["winningBidFormatted"])

	bids, err := e.store.Bids(context.Background(), common.NetworkEthereum)
	require.NoError(t, err)
	assert.Len(t, bids, 1)

	rec = e.do(t, http.MethodPost, "/auctions/ethereum/1/bid", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/auctions/base/0/bid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBidChainError(t *testing.T) {
	e := newTestEnv(t)
	e.chain.bidErr = errors.New("user rejected transaction")

	rec := e.do(t, http.MethodPost, "/auctions/ethereum/0/bid", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "user rejected transaction", decode(t, rec)["error"])
}

func TestRefreshAuctions(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/auctions/refresh?network=ethereum", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result manager.RefreshResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Fetched[common.NetworkEthereum])

	rec = e.do(t, http.MethodPost, "/auctions/refresh?network=citrea", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func depositBody() map[string]string {
	return map[string]string{
		"sourceNetwork": common.NetworkEthereum,
		"destNetwork":   common.NetworkCitrea,
		"sourceToken":   "usdt",
		"amount":        "100",
	}
}

func TestPlanDeposit(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/deposits/plan", depositBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "90.00", body["minAmount"])
	assert.NotEmpty(t, body["orderId"])

	bad := depositBody()
	bad["minAmount"] = "150"
	rec = e.do(t, http.MethodPost, "/deposits/plan", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, deposit.ErrMinTooHigh.Error(), decode(t, rec)["error"])

	bad = depositBody()
	bad["destNetwork"] = ""
	rec = e.do(t, http.MethodPost, "/deposits/plan", bad)
	assert.Equal(t, deposit.ErrMissingNetworks.Error(), decode(t, rec)["error"])
}

func TestSubmitDeposit(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/deposits", depositBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	open := decode(t, rec)["open"].(map[string]interface{})
	assert.Equal(t, ethcommon.HexToHash("0x0be").Hex(), open["txHash"])

	rec = e.do(t, http.MethodGet, "/journal/deposits", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []deposit.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, common.NetworkCitrea, records[0].DestNetwork)
}

func TestGetBalance(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/deposits/balance?network=ethereum&token=usdt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "250.50", body["formatted"])
	assert.Equal(t, "225.45", body["minAmount"])

	rec = e.do(t, http.MethodGet, "/deposits/balance?network=ethereum", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEncodeDecodeOrder(t *testing.T) {
	e := newTestEnv(t)

	order := map[string]interface{}{
		"sender":             solver.Hex(),
		"recipient":          solver.Hex(),
		"inputToken":         "0x30E9b6B0d161cBd5Ff8cf904Ff4FA43Ce66AC346",
		"outputToken":        "0xb6E3F86a5CE9ac318F54C9C7Bcd6eff368DF0296",
		"amountIn":           "100000000000000000000",
		"amountOut":          "90000000000000000000",
		"senderNonce":        42,
		"originDomain":       11155111,
		"destinationDomain":  5115,
		"destinationSettler": deposit.DefaultSettler.Hex(),
		"fillDeadline":       1700086400,
		"data":               "0x",
	}
	rec := e.do(t, http.MethodPost, "/orders/encode", order)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	encoded := decode(t, rec)
	assert.Equal(t, hash.OrderDataTypeHash.Hex(), encoded["orderDataType"])

	rec = e.do(t, http.MethodPost, "/orders/decode", map[string]interface{}{"orderData": encoded["orderData"]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decoded := decode(t, rec)
	assert.Equal(t, encoded["orderId"], decoded["orderId"])

	order["amountIn"] = "-1"
	rec = e.do(t, http.MethodPost, "/orders/encode", order)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/orders/decode", map[string]interface{}{"orderData": "0x1234"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWinFlow(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/wins", map[string]interface{}{
		"network":    common.NetworkEthereum,
		"auctionId":  0,
		"orderId":    testOrderID,
		"originData": "0xdeadbeef",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	id := body["id"].(string)
	assert.Equal(t, "congratulations", body["step"])
	assert.Equal(t, false, body["needsConfirmation"])

	rec = e.do(t, http.MethodPost, "/wins/"+id+"/fill", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/wins/"+id+"/continue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["needsConfirmation"])

	rec = e.do(t, http.MethodDelete, "/wins/"+id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, closeConfirmation, decode(t, rec)["error"])

	rec = e.do(t, http.MethodPost, "/wins/"+id+"/fill", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "settle_order", decode(t, rec)["step"])

	rec = e.do(t, http.MethodPost, "/wins/"+id+"/settle", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, "complete", body["step"])
	assert.Equal(t, ethcommon.HexToHash("0x5e").Hex(), body["settleTx"])

	rec = e.do(t, http.MethodGet, "/wins", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)

	rec = e.do(t, http.MethodDelete, "/wins/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/wins/"+id, nil).Code)
}

func TestWinErrors(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/wins", map[string]interface{}{
		"network": common.NetworkEthereum, "orderId": "0x12", "originData": "0x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/wins/not-a-uuid", nil).Code)

	rec = e.do(t, http.MethodPost, "/wins", map[string]interface{}{
		"network": common.NetworkEthereum, "auctionId": 0, "orderId": testOrderID, "originData": "0xabc",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["id"].(string)
	e.do(t, http.MethodPost, "/wins/"+id+"/continue", nil)

	rec = e.do(t, http.MethodPost, "/wins/"+id+"/fill", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, win.ErrInvalidOriginData.Error(), decode(t, rec)["error"])

	rec = e.do(t, http.MethodDelete, "/wins/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "an errored session closes without confirmation")
}

func TestJournalDisabled(t *testing.T) {
	e := newTestEnv(t)
	e.server.history = nil
	handler := e.server.RegisterRoutes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journal/bids", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	body := decode(t, e.do(t, http.MethodGet, "/health", nil))
	assert.Equal(t, false, body["mock"])
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusOf(chain.Classify(chain.OpBid, context.DeadlineExceeded)))
	assert.Equal(t, http.StatusNotFound, statusOf(manager.ErrNotFound))
	assert.Equal(t, http.StatusBadGateway, statusOf(fmt.Errorf("%w: citrea: timeout", manager.ErrNetworkDown)))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
}
