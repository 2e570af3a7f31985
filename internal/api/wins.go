package api

import (
	"context"
	"encoding/json"
	"net/http"

	"bridge/internal/win"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// closeConfirmation is returned when a session is closed mid-flow without
// confirm=true.
const closeConfirmation = "Are you sure you want to close? The process is not complete."

type sessionView struct {
	win.Session
	NeedsConfirmation bool `json:"needsConfirmation"`
}

func viewSession(sess *win.Session) sessionView {
	return sessionView{Session: *sess, NeedsConfirmation: sess.NeedsConfirmation()}
}

type startWinRequest struct {
	Network    string `json:"network"`
	AuctionID  uint64 `json:"auctionId"`
	OrderID    string `json:"orderId"`
	OriginData string `json:"originData"`
}

func (s *APIServer) StartWin(c *gin.Context) {
	var req startWinRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid win request"})
		return
	}
	sess, err := s.wins.Start(c.Request.Context(), req.Network, req.AuctionID, req.OrderID, req.OriginData)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewSession(sess))
}

func (s *APIServer) ListWins(c *gin.Context) {
	sessions := s.wins.Sessions()
	out := make([]sessionView, 0, len(sessions))
	for i := range sessions {
		out = append(out, viewSession(&sessions[i]))
	}
	c.JSON(http.StatusOK, out)
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *APIServer) GetWin(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess, err := s.wins.Get(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewSession(sess))
}

type closeQuery struct {
	Confirm bool `schema:"confirm"`
}

func (s *APIServer) CloseWin(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var q closeQuery
	if !bindQuery(c, &q) {
		return
	}

	needs, err := s.wins.ConfirmClose(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if needs && !q.Confirm {
		c.JSON(http.StatusConflict, gin.H{"error": closeConfirmation, "needsConfirmation": true})
		return
	}
	if err := s.wins.Close(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sessionAction func(ctx context.Context, id uuid.UUID) (*win.Session, error)

func (s *APIServer) runSession(c *gin.Context, action sessionAction) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess, err := action(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewSession(sess))
}

func (s *APIServer) ContinueWin(c *gin.Context) { s.runSession(c, s.wins.Continue) }

func (s *APIServer) BackWin(c *gin.Context) { s.runSession(c, s.wins.Back) }

func (s *APIServer) FillWin(c *gin.Context) { s.runSession(c, s.wins.Fill) }

func (s *APIServer) SettleWin(c *gin.Context) { s.runSession(c, s.wins.Settle) }

func (s *APIServer) JournalDeposits(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Journal is disabled"})
		return
	}
	records, err := s.history.Deposits(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

type bidsQuery struct {
	Network string `schema:"network"`
}

func (s *APIServer) JournalBids(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Journal is disabled"})
		return
	}
	var q bidsQuery
	if !bindQuery(c, &q) {
		return
	}
	bids, err := s.history.Bids(c.Request.Context(), q.Network)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bids)
}
