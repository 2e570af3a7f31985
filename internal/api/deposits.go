package api

import (
	"encoding/json"
	"math/big"
	"net/http"

	"bridge/internal/deposit"
	"bridge/internal/hash"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

type balanceQuery struct {
	Network string `schema:"network,required"`
	Token   string `schema:"token,required"`
}

func (s *APIServer) GetBalance(c *gin.Context) {
	var q balanceQuery
	if !bindQuery(c, &q) {
		return
	}
	b, err := s.deposits.Balance(c.Request.Context(), q.Network, q.Token)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func decodeDeposit(c *gin.Context) (deposit.Request, bool) {
	var req deposit.Request
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid deposit request"})
		return req, false
	}
	return req, true
}

// PlanDeposit validates a deposit and returns the order it would open.
func (s *APIServer) PlanDeposit(c *gin.Context) {
	req, ok := decodeDeposit(c)
	if !ok {
		return
	}
	plan, err := s.deposits.Prepare(req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *APIServer) SubmitDeposit(c *gin.Context) {
	req, ok := decodeDeposit(c)
	if !ok {
		return
	}
	result, err := s.deposits.Deposit(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// orderRequest is OrderData as submitted over HTTP: addresses in hex,
// amounts as decimal strings of raw units.
type orderRequest struct {
	Sender             ethcommon.Address `json:"sender"`
	Recipient          ethcommon.Address `json:"recipient"`
	InputToken         ethcommon.Address `json:"inputToken"`
	OutputToken        ethcommon.Address `json:"outputToken"`
	AmountIn           string            `json:"amountIn"`
	AmountOut          string            `json:"amountOut"`
	SenderNonce        uint32            `json:"senderNonce"`
	OriginDomain       uint32            `json:"originDomain"`
	DestinationDomain  uint32            `json:"destinationDomain"`
	DestinationSettler ethcommon.Address `json:"destinationSettler"`
	FillDeadline       uint32            `json:"fillDeadline"`
	Data               hexutil.Bytes     `json:"data"`
}

func (r orderRequest) orderData() (hash.OrderData, bool) {
	amountIn, ok := new(big.Int).SetString(r.AmountIn, 10)
	if !ok || amountIn.Sign() < 0 {
		return hash.OrderData{}, false
	}
	amountOut, ok := new(big.Int).SetString(r.AmountOut, 10)
	if !ok || amountOut.Sign() < 0 {
		return hash.OrderData{}, false
	}
	return hash.OrderData{
		Sender:             hash.AddressToBytes32(r.Sender),
		Recipient:          hash.AddressToBytes32(r.Recipient),
		InputToken:         hash.AddressToBytes32(r.InputToken),
		OutputToken:        hash.AddressToBytes32(r.OutputToken),
		AmountIn:           amountIn,
		AmountOut:          amountOut,
		SenderNonce:        r.SenderNonce,
		OriginDomain:       r.OriginDomain,
		DestinationDomain:  r.DestinationDomain,
		DestinationSettler: hash.AddressToBytes32(r.DestinationSettler),
		FillDeadline:       r.FillDeadline,
		Data:               r.Data,
	}, true
}

// EncodeOrder returns the ABI encoding and order id of an order.
func (s *APIServer) EncodeOrder(c *gin.Context) {
	var req orderRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order data"})
		return
	}
	order, ok := req.orderData()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amounts must be non-negative integers"})
		return
	}

	encoded, err := hash.Encode(order)
	if err != nil {
		s.writeError(c, err)
		return
	}
	id, err := hash.ID(order)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId":       id,
		"orderDataType": hash.OrderDataTypeHash,
		"orderData":     hexutil.Bytes(encoded),
		"order":         order,
	})
}

type decodeRequest struct {
	OrderData hexutil.Bytes `json:"orderData"`
}

func (s *APIServer) DecodeOrder(c *gin.Context) {
	var req decodeRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order data"})
		return
	}
	order, err := hash.Decode(req.OrderData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := hash.ID(order)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": id, "order": order})
}
