package auction

import (
	"fmt"
	"time"
)

// Status is the display label of an auction.
type Status string

const (
	StatusActive    Status = "Active"
	StatusUpcoming  Status = "Upcoming"
	StatusEnded     Status = "Ended"
	StatusBidPlaced Status = "Bid Placed"
	StatusSettled   Status = "Settled"
)

// Status derives the label at now. Settlement wins over a recorded winner,
// which wins over the time window.
func (a *Auction) Status(now time.Time) Status {
	t := now.Unix()
	switch {
	case a.Settled:
		return StatusSettled
	case a.HasWinner():
		return StatusBidPlaced
	case t < a.StartTime:
		return StatusUpcoming
	case t > a.EndTime:
		return StatusEnded
	default:
		return StatusActive
	}
}

func (a *Auction) CanBid(now time.Time) bool {
	return a.Status(now) == StatusActive
}

// TimeRemaining renders the time left until EndTime as "1h 2m 3s", or
// "Ended" once it has passed.
func (a *Auction) TimeRemaining(now time.Time) string {
	return FormatRemaining(a.EndTime - now.Unix())
}

func FormatRemaining(remaining int64) string {
	if remaining <= 0 {
		return "Ended"
	}
	hours := remaining / 3600
	minutes := (remaining % 3600) / 60
	seconds := remaining % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
