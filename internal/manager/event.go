package manager

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"bridge/internal/auction"
)

const (
	// Manager -> subscribers

	// Auction upsert: UPDATE <AUCTION_JSON>
	UPDATE_EVENT = "UPDATE"
	// Contract prices after a price refresh: PRICES {"<network>/<id>":"<wei>"}
	PRICES_EVENT = "PRICES"
	// Full refresh summary: REFRSH <REFRESH_RESULT_JSON>
	REFRESH_EVENT = "REFRSH"
	// Entry dropped by the ttl: EXPIRE <network>/<id>
	EXPIRE_EVENT = "EXPIRE"

	// Subscriber -> manager

	// Refresh request: REFRSH [network]
	REFRESH_REQUEST = "REFRSH"
)

func encodeEvent(op string, payload []byte) []byte {
	msg := make([]byte, 0, len(op)+1+len(payload))
	msg = append(msg, op...)
	msg = append(msg, ' ')
	return append(msg, payload...)
}

func (m *Manager) broadcastJSON(op string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		m.logger.Error().Err(err).Str("event", op).Msg("failed to encode event")
		return
	}
	m.Broadcast(encodeEvent(op, payload))
}

func (m *Manager) broadcastAuction(a *auction.Auction) {
	m.broadcastJSON(UPDATE_EVENT, a)
}

func (m *Manager) broadcastPrices(prices map[string]*big.Int) {
	out := make(map[string]string, len(prices))
	for k, p := range prices {
		out[k] = p.String()
	}
	m.broadcastJSON(PRICES_EVENT, out)
}

func (m *Manager) broadcastRefresh(result RefreshResult) {
	m.broadcastJSON(REFRESH_EVENT, result)
}

func (m *Manager) broadcastExpired(key string) {
	m.Broadcast(encodeEvent(EXPIRE_EVENT, []byte(key)))
}

// HandleReceiveEvent handles a message sent by a subscriber.
func (m *Manager) HandleReceiveEvent(event []byte) error {
	msg := strings.TrimSpace(string(event))
	m.logger.Debug().Str("event", msg).Msg("received event")

	parts := strings.Fields(msg)
	if len(parts) == 0 {
		return fmt.Errorf("empty event")
	}

	switch parts[0] {
	case REFRESH_REQUEST:
		if len(parts) > 1 {
			if _, err := m.chain(parts[1]); err != nil {
				return err
			}
		}
		m.RequestRefresh()
	default:
		return fmt.Errorf("unknown event type: %s", parts[0])
	}

	return nil
}
