// Package scheduler defines the boundary to the spaced-repetition
// algorithm. The data core treats scheduling as a black box: a function from
// a card's review history to its next due date. SM2 is the default; callers
// may plug in any other Func.
package scheduler

import (
	"github.com/arunsworth/cardbox/internal/daycount"
	"github.com/arunsworth/cardbox/internal/models"
)

// Func maps a review history to the card's next due date.
type Func func(models.History) daycount.Date

// Grades accepted by SM2.
const (
	GradeAgain = 0
	GradeHard  = 1
	GradeGood  = 2
	GradeEasy  = 3
)

const minEase = 1.3

// SM2 replays the full history through an SM-2 variant. A card with no
// reviews is due on its create date; each review updates the ease factor
// and interval, and the due date is the last review plus the interval.
func SM2(h models.History) daycount.Date {
	if len(h.Reviews) == 0 {
		return h.CreateDate
	}

	ease := 2.5
	intervalDays := 0
	for _, r := range h.Reviews {
		q := r.Grade
		if q < GradeAgain {
			q = GradeAgain
		}
		if q > GradeEasy {
			q = GradeEasy
		}

		ease = ease + 0.1 - float64(3-q)*(0.08+float64(3-q)*0.02)
		if ease < minEase {
			ease = minEase
		}

		switch {
		case q < GradeGood:
			intervalDays = 1
		case intervalDays == 0:
			intervalDays = 1
		case intervalDays == 1:
			intervalDays = 6
		default:
			intervalDays = int(float64(intervalDays) * ease)
		}
	}

	last := h.Reviews[len(h.Reviews)-1]
	return last.Date.Add(float64(intervalDays))
}
