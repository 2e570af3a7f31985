package hash

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NonceModulus bounds the random sender nonce.
const NonceModulus = 10000

var ErrInvalidOrder = errors.New("invalid order")

var ErrInvalidOriginData = errors.New("invalid origin data format. The hex data must have an even number of characters")

// OrderDataTypeHash is keccak256(OrderDataType).
var OrderDataTypeHash = crypto.Keccak256Hash([]byte(OrderDataType))

// Encode abi-encodes the order as a single tuple, the form the escrow expects
// in OnchainCrossChainOrder.orderData and the solver passes as originData.
func Encode(order OrderData) ([]byte, error) {
	if err := validate(order); err != nil {
		return nil, err
	}
	encoded, err := orderTupleArgs.Pack(order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}
	return encoded, nil
}

// Decode is the inverse of Encode.
func Decode(encoded []byte) (OrderData, error) {
	values, err := orderTupleArgs.Unpack(encoded)
	if err != nil {
		return OrderData{}, fmt.Errorf("failed to decode order: %w", err)
	}
	if len(values) != 1 {
		return OrderData{}, fmt.Errorf("failed to decode order: expected 1 value, got %d", len(values))
	}

	order := *abi.ConvertType(values[0], new(OrderData)).(*OrderData)
	return order, nil
}

// ID computes keccak256(OrderDataTypeHash ‖ abi.encode(fields...)), the
// identifier used to address the order in fill and settle calls.
func ID(order OrderData) (ethcommon.Hash, error) {
	if err := validate(order); err != nil {
		return ethcommon.Hash{}, err
	}
	encoded, err := orderFieldArgs.Pack(
		order.Sender,
		order.Recipient,
		order.InputToken,
		order.OutputToken,
		order.AmountIn,
		order.AmountOut,
		order.SenderNonce,
		order.OriginDomain,
		order.DestinationDomain,
		order.DestinationSettler,
		order.FillDeadline,
		nonNilBytes(order.Data),
	)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to encode order fields: %w", err)
	}

	return crypto.Keccak256Hash(OrderDataTypeHash.Bytes(), encoded), nil
}

// NewOnchainOrder wraps an encoded order for the escrow open call.
func NewOnchainOrder(order OrderData) (OnchainCrossChainOrder, error) {
	encoded, err := Encode(order)
	if err != nil {
		return OnchainCrossChainOrder{}, err
	}
	return OnchainCrossChainOrder{
		FillDeadline:  order.FillDeadline,
		OrderDataType: OrderDataTypeHash,
		OrderData:     encoded,
	}, nil
}

// FillerData is abi.encode(bytes32(filler)), the filler payload of fill.
func FillerData(filler ethcommon.Address) ([]byte, error) {
	return fillerDataArgs.Pack(AddressToBytes32(filler))
}

// AddressToBytes32 left-pads an address to 32 bytes.
func AddressToBytes32(addr ethcommon.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}

// Bytes32ToAddress takes the low 20 bytes.
func Bytes32ToAddress(b [32]byte) ethcommon.Address {
	return ethcommon.BytesToAddress(b[12:])
}

// ParseOriginData validates and decodes the 0x-prefixed hex origin data a
// solver receives for a won auction.
func ParseOriginData(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") || len(s)%2 != 0 {
		return nil, ErrInvalidOriginData
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOriginData, err)
	}
	return b, nil
}

func HexToBytes32Strict(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		return out, fmt.Errorf("hex must have even length")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// RandomNonce derives a sender nonce in [0, NonceModulus) from the first four
// bytes of keccak256 of four random bytes.
func RandomNonce() (uint32, error) {
	seed := make([]byte, 4)
	if _, err := rand.Read(seed); err != nil {
		return 0, fmt.Errorf("failed to read random seed: %w", err)
	}
	digest := crypto.Keccak256(seed)
	return binary.BigEndian.Uint32(digest[:4]) % NonceModulus, nil
}

func validate(order OrderData) error {
	if order.AmountIn == nil || order.AmountOut == nil {
		return fmt.Errorf("%w: amounts must be set", ErrInvalidOrder)
	}
	if order.AmountIn.Sign() < 0 || order.AmountOut.Sign() < 0 {
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidOrder)
	}
	if order.AmountIn.BitLen() > 256 || order.AmountOut.BitLen() > 256 {
		return fmt.Errorf("%w: amounts overflow uint256", ErrInvalidOrder)
	}
	return nil
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
