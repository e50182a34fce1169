package service

import (
	"time"

	"github.com/forgo/exitlane/api/internal/model"
)

// defaultDropInterval applies when stored settings carry no interval
const defaultDropInterval = time.Hour

// dropInterval returns the time between price drops
func dropInterval(a *model.AuctionSettings) time.Duration {
	if a.DropIntervalMins <= 0 {
		return defaultDropInterval
	}
	return time.Duration(a.DropIntervalMins) * time.Minute
}

// dropSteps returns how many drops fit between start and end, at least one
func dropSteps(a *model.AuctionSettings) int64 {
	steps := int64(a.EndsAt.Sub(a.StartsAt) / dropInterval(a))
	if steps < 1 {
		return 1
	}
	return steps
}

// AuctionDropAmount returns the per-interval price drop. Without an explicit
// amount the drop is interpolated so the price reaches the reserve at the end.
func AuctionDropAmount(a *model.AuctionSettings) int64 {
	if a.DropAmount > 0 {
		return a.DropAmount
	}
	spread := a.StartPrice - a.ReservePrice
	if spread <= 0 {
		return 0
	}
	drop := spread / dropSteps(a)
	if drop < 1 {
		drop = 1
	}
	return drop
}

// elapsedDrops counts completed drop intervals at now, capped at the end of
// the auction.
func elapsedDrops(a *model.AuctionSettings, now time.Time) int64 {
	if !now.After(a.StartsAt) {
		return 0
	}
	if now.After(a.EndsAt) {
		now = a.EndsAt
	}
	return int64(now.Sub(a.StartsAt) / dropInterval(a))
}

// CurrentPrice is max(reserve, start - floor(elapsed/interval) * drop).
// Before the auction starts it is the start price.
func CurrentPrice(a *model.AuctionSettings, now time.Time) int64 {
	return clampToReserve(a, a.StartPrice-elapsedDrops(a, now)*AuctionDropAmount(a))
}

func clampToReserve(a *model.AuctionSettings, price int64) int64 {
	floor := a.ReservePrice
	if floor < 0 {
		floor = 0
	}
	if price < floor {
		return floor
	}
	return price
}

// AuctionPhaseAt reports where the auction schedule is at now
func AuctionPhaseAt(a *model.AuctionSettings, now time.Time) model.AuctionPhase {
	switch {
	case now.Before(a.StartsAt):
		return model.AuctionUpcoming
	case !now.Before(a.EndsAt):
		return model.AuctionEnded
	default:
		return model.AuctionLive
	}
}

// AuctionTimer computes the countdown display for a Dutch auction at now.
// The next price never goes below the reserve.
func AuctionTimer(a *model.AuctionSettings, now time.Time) *model.AuctionState {
	interval := dropInterval(a)
	drop := AuctionDropAmount(a)
	current := CurrentPrice(a, now)

	state := &model.AuctionState{
		Phase:           AuctionPhaseAt(a, now),
		CurrentPrice:    current,
		NextPrice:       current,
		ReservePrice:    a.ReservePrice,
		AtReserve:       current <= clampToReserve(a, 0),
		DropAmount:      drop,
		DropIntervalSec: int64(interval / time.Second),
	}

	if left := a.EndsAt.Sub(now); left > 0 {
		state.SecondsLeft = int64(left / time.Second)
	}
	if total := a.EndsAt.Sub(a.StartsAt); total > 0 {
		elapsed := now.Sub(a.StartsAt)
		switch {
		case elapsed <= 0:
			state.PercentElapsed = 0
		case elapsed >= total:
			state.PercentElapsed = 100
		default:
			state.PercentElapsed = float64(elapsed) / float64(total) * 100
		}
	}

	if state.Phase == model.AuctionEnded || state.AtReserve || drop == 0 {
		return state
	}

	next := a.StartsAt.Add(time.Duration(elapsedDrops(a, now)+1) * interval)
	if next.After(a.EndsAt) {
		return state
	}
	state.NextPrice = clampToReserve(a, current-drop)
	state.NextDropAt = &next
	state.SecondsToDrop = int64(next.Sub(now) / time.Second)
	return state
}
