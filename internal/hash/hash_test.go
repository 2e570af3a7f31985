package hash

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	user    = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	usdt    = ethcommon.HexToAddress("0x30E9b6B0d161cBd5Ff8cf904Ff4FA43Ce66AC346")
	usdtT1  = ethcommon.HexToAddress("0xb6E3F86a5CE9ac318F54C9C7Bcd6eff368DF0296")
	settler = ethcommon.HexToAddress("0xbF59f5a5931B9013A6d3724d0D3A2a0abafe3Afc")
)

func sampleOrder() OrderData {
	return OrderData{
		Sender:             AddressToBytes32(user),
		Recipient:          AddressToBytes32(user),
		InputToken:         AddressToBytes32(usdt),
		OutputToken:        AddressToBytes32(usdtT1),
		AmountIn:           big.NewInt(1_000_000_000_000_000_000),
		AmountOut:          big.NewInt(900_000_000_000_000_000),
		SenderNonce:        4242,
		OriginDomain:       11155111,
		DestinationDomain:  5115,
		DestinationSettler: AddressToBytes32(settler),
		FillDeadline:       1_760_000_000,
		Data:               []byte{},
	}
}

func TestOrderDataTypeHash(t *testing.T) {
	assert.Equal(t, crypto.Keccak256Hash([]byte(OrderDataType)), OrderDataTypeHash)
	assert.Contains(t, OrderDataType, "uint32 fillDeadline,bytes data)")
}

func TestEncodeDecode(t *testing.T) {
	order := sampleOrder()

	encoded, err := Encode(order)
	require.NoError(t, err)

	// dynamic tuple: leading offset word, 12 head words, bytes length word
	require.Len(t, encoded, 32*(1+12+1))
	assert.Equal(t, big.NewInt(32), new(big.Int).SetBytes(encoded[:32]))

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, order.Sender, decoded.Sender)
	assert.Equal(t, order.OutputToken, decoded.OutputToken)
	assert.Equal(t, 0, order.AmountIn.Cmp(decoded.AmountIn))
	assert.Equal(t, 0, order.AmountOut.Cmp(decoded.AmountOut))
	assert.Equal(t, order.SenderNonce, decoded.SenderNonce)
	assert.Equal(t, order.DestinationDomain, decoded.DestinationDomain)
	assert.Equal(t, order.FillDeadline, decoded.FillDeadline)
	assert.Empty(t, decoded.Data)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestIDIsDeterministic(t *testing.T) {
	a, err := ID(sampleOrder())
	require.NoError(t, err)
	b, err := ID(sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, ethcommon.Hash{}, a)
}

func TestIDMatchesPreimage(t *testing.T) {
	order := sampleOrder()
	id, err := ID(order)
	require.NoError(t, err)

	fields, err := orderFieldArgs.Pack(
		order.Sender, order.Recipient, order.InputToken, order.OutputToken,
		order.AmountIn, order.AmountOut, order.SenderNonce, order.OriginDomain,
		order.DestinationDomain, order.DestinationSettler, order.FillDeadline, order.Data,
	)
	require.NoError(t, err)

	preimage := append(OrderDataTypeHash.Bytes(), fields...)
	assert.Equal(t, crypto.Keccak256Hash(preimage), id)
}

func TestIDChangesWithEveryField(t *testing.T) {
	base, err := ID(sampleOrder())
	require.NoError(t, err)

	other := ethcommon.HexToAddress("0x2222222222222222222222222222222222222222")
	mutations := map[string]func(o *OrderData){
		"sender":             func(o *OrderData) { o.Sender = AddressToBytes32(other) },
		"recipient":          func(o *OrderData) { o.Recipient = AddressToBytes32(other) },
		"inputToken":         func(o *OrderData) { o.InputToken = AddressToBytes32(other) },
		"outputToken":        func(o *OrderData) { o.OutputToken = AddressToBytes32(other) },
		"amountIn":           func(o *OrderData) { o.AmountIn = big.NewInt(1) },
		"amountOut":          func(o *OrderData) { o.AmountOut = big.NewInt(1) },
		"senderNonce":        func(o *OrderData) { o.SenderNonce++ },
		"originDomain":       func(o *OrderData) { o.OriginDomain = 31 },
		"destinationDomain":  func(o *OrderData) { o.DestinationDomain = 31 },
		"destinationSettler": func(o *OrderData) { o.DestinationSettler = AddressToBytes32(other) },
		"fillDeadline":       func(o *OrderData) { o.FillDeadline++ },
		"data":               func(o *OrderData) { o.Data = []byte{0xde, 0xad} },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			o := sampleOrder()
			mutate(&o)
			id, err := ID(o)
			require.NoError(t, err)
			assert.NotEqual(t, base, id)
		})
	}
}

func TestIDRejectsMissingAmounts(t *testing.T) {
	o := sampleOrder()
	o.AmountOut = nil
	_, err := ID(o)
	assert.Error(t, err)

	o = sampleOrder()
	o.AmountIn = big.NewInt(-1)
	_, err = Encode(o)
	assert.Error(t, err)
}

func TestNewOnchainOrder(t *testing.T) {
	order := sampleOrder()
	onchain, err := NewOnchainOrder(order)
	require.NoError(t, err)

	assert.Equal(t, order.FillDeadline, onchain.FillDeadline)
	assert.Equal(t, [32]byte(OrderDataTypeHash), onchain.OrderDataType)

	encoded, err := Encode(order)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(encoded, onchain.OrderData))
}

func TestFillerData(t *testing.T) {
	data, err := FillerData(user)
	require.NoError(t, err)
	require.Len(t, data, 32)
	assert.Equal(t, user, ethcommon.BytesToAddress(data))
	assert.Equal(t, make([]byte, 12), data[:12])
}

func TestBytes32RoundTrip(t *testing.T) {
	assert.Equal(t, settler, Bytes32ToAddress(AddressToBytes32(settler)))
}

func TestParseOriginData(t *testing.T) {
	b, err := ParseOriginData("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)

	for _, bad := range []string{"deadbeef", "0xabc", "0xzz"} {
		_, err := ParseOriginData(bad)
		assert.ErrorIs(t, err, ErrInvalidOriginData, bad)
	}
}

func TestHexToBytes32Strict(t *testing.T) {
	h, err := HexToBytes32Strict(OrderDataTypeHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, [32]byte(OrderDataTypeHash), h)

	_, err = HexToBytes32Strict("0x1234")
	assert.Error(t, err)
	_, err = HexToBytes32Strict("0x123")
	assert.Error(t, err)
}

func TestRandomNonce(t *testing.T) {
	for i := 0; i < 50; i++ {
		n, err := RandomNonce()
		require.NoError(t, err)
		assert.Less(t, n, uint32(NonceModulus))
	}
}

func TestOrderDataJSON(t *testing.T) {
	raw, err := json.Marshal(sampleOrder())
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, ethcommon.Hash(AddressToBytes32(user)).Hex(), got["sender"])
	assert.Equal(t, "1000000000000000000", got["amountIn"])
	assert.Equal(t, "0x", got["data"])
	assert.Equal(t, float64(5115), got["destinationDomain"])
}
