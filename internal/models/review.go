package models

import "github.com/arunsworth/cardbox/internal/daycount"

// Review is one scheduling interaction with a card.
type Review struct {
	Date    daycount.Date `json:"date"`
	Grade   int           `json:"grade"`
	Seconds int           `json:"seconds"`
}

// History is the full review record of a card in append order, plus its
// create date. It is the sole input to the scheduling function. The order is
// the event store's physical append order; review timestamps are not
// re-sorted even when clock skew makes them non-monotonic.
type History struct {
	CardID     int64         `json:"card_id"`
	CreateDate daycount.Date `json:"create_date"`
	Reviews    []Review      `json:"reviews"`
}
