package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arunsworth/cardbox/internal/daycount"
	"github.com/arunsworth/cardbox/internal/models"
	"github.com/arunsworth/cardbox/internal/scheduler"
)

func history(createDate daycount.Date, reviews ...models.Review) models.History {
	return models.History{CardID: 1, CreateDate: createDate, Reviews: reviews}
}

func TestSM2_NoReviews(t *testing.T) {
	due := scheduler.SM2(history(daycount.Date(100)))
	assert.Equal(t, daycount.Date(100), due, "an unreviewed card is due on its create date")
}

func TestSM2_FirstGoodReview(t *testing.T) {
	due := scheduler.SM2(history(100, models.Review{Date: 100, Grade: scheduler.GradeGood}))
	assert.Equal(t, daycount.Date(101), due, "first success schedules one day out")
}

func TestSM2_IntervalProgression(t *testing.T) {
	h := history(100,
		models.Review{Date: 100, Grade: scheduler.GradeGood},
		models.Review{Date: 101, Grade: scheduler.GradeGood},
	)
	assert.Equal(t, daycount.Date(107), scheduler.SM2(h), "second success schedules six days out")

	h.Reviews = append(h.Reviews, models.Review{Date: 107, Grade: scheduler.GradeGood})
	due := scheduler.SM2(h)
	assert.Greater(t, float64(due), float64(107+6), "third success grows the interval by the ease factor")
}

func TestSM2_FailureResetsInterval(t *testing.T) {
	h := history(100,
		models.Review{Date: 100, Grade: scheduler.GradeGood},
		models.Review{Date: 101, Grade: scheduler.GradeGood},
		models.Review{Date: 107, Grade: scheduler.GradeAgain},
	)
	assert.Equal(t, daycount.Date(108), scheduler.SM2(h), "a failed review schedules the next day")
}

func TestSM2_EasierGradesScheduleFurther(t *testing.T) {
	base := history(100,
		models.Review{Date: 100, Grade: scheduler.GradeGood},
		models.Review{Date: 101, Grade: scheduler.GradeGood},
	)

	var dues []daycount.Date
	for grade := scheduler.GradeAgain; grade <= scheduler.GradeEasy; grade++ {
		h := base
		h.Reviews = append(append([]models.Review(nil), base.Reviews...),
			models.Review{Date: 107, Grade: grade})
		dues = append(dues, scheduler.SM2(h))
	}

	for i := 1; i < len(dues); i++ {
		assert.GreaterOrEqual(t, float64(dues[i]), float64(dues[i-1]),
			"grade %d should never schedule earlier than grade %d", i, i-1)
	}
	assert.Greater(t, float64(dues[scheduler.GradeEasy]), float64(dues[scheduler.GradeAgain]))
}

func TestSM2_EaseNeverDropsBelowFloor(t *testing.T) {
	h := history(100)
	for i := 0; i < 20; i++ {
		h.Reviews = append(h.Reviews, models.Review{Date: daycount.Date(100 + i), Grade: scheduler.GradeAgain})
	}
	due := scheduler.SM2(h)
	assert.Equal(t, daycount.Date(120), due, "repeated failures keep the one-day interval")
}
