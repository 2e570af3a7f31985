package hash

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// OrderDataType is the canonical type string whose keccak256 prefixes the
// order identifier preimage.
const OrderDataType = "OrderData(" +
	"bytes32 sender," +
	"bytes32 recipient," +
	"bytes32 inputToken," +
	"bytes32 outputToken," +
	"uint256 amountIn," +
	"uint256 amountOut," +
	"uint256 senderNonce," +
	"uint32 originDomain," +
	"uint32 destinationDomain," +
	"bytes32 destinationSettler," +
	"uint32 fillDeadline," +
	"bytes data)"

// OrderData is the bridge intent opened on the escrow of the origin chain.
// Field order and widths follow the escrow's abi encoding.
type OrderData struct {
	Sender             [32]byte `json:"sender"`
	Recipient          [32]byte `json:"recipient"`
	InputToken         [32]byte `json:"inputToken"`
	OutputToken        [32]byte `json:"outputToken"`
	AmountIn           *big.Int `json:"amountIn"`
	AmountOut          *big.Int `json:"amountOut"`
	SenderNonce        uint32   `json:"senderNonce"`
	OriginDomain       uint32   `json:"originDomain"`
	DestinationDomain  uint32   `json:"destinationDomain"`
	DestinationSettler [32]byte `json:"destinationSettler"`
	FillDeadline       uint32   `json:"fillDeadline"`
	Data               []byte   `json:"data"`
}

// OnchainCrossChainOrder is the argument of the escrow open call.
type OnchainCrossChainOrder struct {
	FillDeadline  uint32   `abi:"fillDeadline" json:"fillDeadline"`
	OrderDataType [32]byte `abi:"orderDataType" json:"orderDataType"`
	OrderData     []byte   `abi:"orderData" json:"orderData"`
}

type orderDataJSON struct {
	Sender             ethcommon.Hash `json:"sender"`
	Recipient          ethcommon.Hash `json:"recipient"`
	InputToken         ethcommon.Hash `json:"inputToken"`
	OutputToken        ethcommon.Hash `json:"outputToken"`
	AmountIn           string         `json:"amountIn"`
	AmountOut          string         `json:"amountOut"`
	SenderNonce        uint32         `json:"senderNonce"`
	OriginDomain       uint32         `json:"originDomain"`
	DestinationDomain  uint32         `json:"destinationDomain"`
	DestinationSettler ethcommon.Hash `json:"destinationSettler"`
	FillDeadline       uint32         `json:"fillDeadline"`
	Data               hexutil.Bytes  `json:"data"`
}

// MarshalJSON renders bytes32 fields as 0x hex and amounts as decimal strings.
func (o OrderData) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderDataJSON{
		Sender:             o.Sender,
		Recipient:          o.Recipient,
		InputToken:         o.InputToken,
		OutputToken:        o.OutputToken,
		AmountIn:           bigString(o.AmountIn),
		AmountOut:          bigString(o.AmountOut),
		SenderNonce:        o.SenderNonce,
		OriginDomain:       o.OriginDomain,
		DestinationDomain:  o.DestinationDomain,
		DestinationSettler: o.DestinationSettler,
		FillDeadline:       o.FillDeadline,
		Data:               nonNilBytes(o.Data),
	})
}

func (o OnchainCrossChainOrder) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FillDeadline  uint32         `json:"fillDeadline"`
		OrderDataType ethcommon.Hash `json:"orderDataType"`
		OrderData     hexutil.Bytes  `json:"orderData"`
	}{o.FillDeadline, o.OrderDataType, o.OrderData})
}

func bigString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}

var orderDataComponents = []abi.ArgumentMarshaling{
	{Name: "sender", Type: "bytes32"},
	{Name: "recipient", Type: "bytes32"},
	{Name: "inputToken", Type: "bytes32"},
	{Name: "outputToken", Type: "bytes32"},
	{Name: "amountIn", Type: "uint256"},
	{Name: "amountOut", Type: "uint256"},
	{Name: "senderNonce", Type: "uint32"},
	{Name: "originDomain", Type: "uint32"},
	{Name: "destinationDomain", Type: "uint32"},
	{Name: "destinationSettler", Type: "bytes32"},
	{Name: "fillDeadline", Type: "uint32"},
	{Name: "data", Type: "bytes"},
}

var (
	bytes32Type = mustType("bytes32", nil)
	uint256Type = mustType("uint256", nil)
	uint32Type  = mustType("uint32", nil)
	bytesType   = mustType("bytes", nil)
	tupleType   = mustType("tuple", orderDataComponents)

	// orderTupleArgs encodes the order as one tuple, as stored in orderData.
	orderTupleArgs = abi.Arguments{{Type: tupleType}}

	// orderFieldArgs encodes the fields back to back for the identifier.
	orderFieldArgs = abi.Arguments{
		{Type: bytes32Type},
		{Type: bytes32Type},
		{Type: bytes32Type},
		{Type: bytes32Type},
		{Type: uint256Type},
		{Type: uint256Type},
		{Type: uint32Type},
		{Type: uint32Type},
		{Type: uint32Type},
		{Type: bytes32Type},
		{Type: uint32Type},
		{Type: bytesType},
	}

	fillerDataArgs = abi.Arguments{{Type: bytes32Type}}
)

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}
