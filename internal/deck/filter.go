package deck

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/arunsworth/cardbox/internal/daycount"
	apperrors "github.com/arunsworth/cardbox/internal/errors"
	"github.com/arunsworth/cardbox/internal/models"
)

// Params carries one Filter call's predicates. Zero values mean "not
// supplied": empty strings and nil slices are skipped, and the boolean
// predicates are tri-state pointers so false can select the complement
// (deleted=false means "not deleted", not "don't care").
//
// Date fields accept an ISO date or a signed day offset relative to today.
type Params struct {
	Search string `json:"search,omitempty"`

	Tag      string   `json:"tag,omitempty"`
	TagsAny  []string `json:"tags_any,omitempty"`
	TagsNone []string `json:"tags_none,omitempty"`

	CreatedAfter  string `json:"created_after,omitempty"`
	CreatedBefore string `json:"created_before,omitempty"`
	DueAfter      string `json:"due_after,omitempty"`
	DueBefore     string `json:"due_before,omitempty"`

	Due     *bool `json:"due,omitempty"`
	New     *bool `json:"new,omitempty"`
	Deleted *bool `json:"deleted,omitempty"`
	Images  *bool `json:"images,omitempty"`
	Audio   *bool `json:"audio,omitempty"`

	CardType string `json:"card_type,omitempty"`

	// Invert negates the whole predicate set.
	Invert bool `json:"invert,omitempty"`
}

const filterGuidance = `Supply at least one filter predicate. Examples:

  due=true                  cards due for review now
  due_before=-7             cards overdue by more than a week
  created_after=2026-01-01  cards created since new year
  tag=spanish               cards carrying the tag
  tags_none=[a,b]           cards carrying neither tag
  search=ocean              cards whose text contains "ocean"
  images=true               cards with an image on either side
  deleted=true              cards in the trash
  invert=true               negates every predicate above`

// not wraps a Sqlizer in NOT (...).
type not struct {
	cond squirrel.Sqlizer
}

func (n not) ToSql() (string, []interface{}, error) {
	sqlStr, args, err := n.cond.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sqlStr + ")", args, nil
}

type predicate struct {
	cond squirrel.Sqlizer
	// negated marks a boolean predicate supplied as false, which selects
	// the complement set.
	negated bool
}

// Filter narrows the view by every predicate supplied in p, combined with
// AND. The receiver is untouched; the narrowed view is returned. When p
// supplies no predicates at all, Filter returns guidance instead of a view,
// because an unfiltered "filter" is always a caller mistake.
func (v *View) Filter(p Params) (*View, *Guidance, error) {
	now := v.eng.now()
	today := now.Floor()

	var preds []predicate
	add := func(negated bool, cond squirrel.Sqlizer) {
		preds = append(preds, predicate{cond: cond, negated: negated})
	}
	addBool := func(val *bool, cond squirrel.Sqlizer) {
		if val != nil {
			add(!*val, cond)
		}
	}
	addDate := func(field, raw, column string, after bool) error {
		if raw == "" {
			return nil
		}
		d, err := daycount.Parse(raw, today)
		if err != nil {
			return apperrors.NewValidationError(field, err.Error())
		}
		if after {
			add(false, squirrel.GtOrEq{column: float64(d)})
		} else {
			add(false, squirrel.Lt{column: float64(d)})
		}
		return nil
	}

	if p.Search != "" {
		pat := "%" + p.Search + "%"
		add(false, squirrel.Or{
			squirrel.Like{"front_text": pat},
			squirrel.Like{"back_text": pat},
		})
	}

	if p.Tag != "" {
		add(false, tagExists(p.Tag))
	}
	if len(p.TagsAny) > 0 {
		add(false, tagsIn(p.TagsAny, true))
	}
	if len(p.TagsNone) > 0 {
		// Matches untagged cards too: carrying none of the tags includes
		// carrying no tags at all.
		add(false, tagsIn(p.TagsNone, false))
	}

	if err := addDate("created_after", p.CreatedAfter, "create_date", true); err != nil {
		return nil, nil, err
	}
	if err := addDate("created_before", p.CreatedBefore, "create_date", false); err != nil {
		return nil, nil, err
	}
	if err := addDate("due_after", p.DueAfter, "due_date", true); err != nil {
		return nil, nil, err
	}
	if err := addDate("due_before", p.DueBefore, "due_date", false); err != nil {
		return nil, nil, err
	}

	addBool(p.Due, squirrel.LtOrEq{"due_date": float64(now)})
	addBool(p.New, squirrel.Expr("due_date = create_date"))
	addBool(p.Deleted, squirrel.Eq{"visibility": models.VisibilityDeleted})
	addBool(p.Images, squirrel.Or{
		squirrel.NotEq{"front_image_id": nil},
		squirrel.NotEq{"back_image_id": nil},
	})
	addBool(p.Audio, squirrel.Or{
		squirrel.NotEq{"front_audio_id": nil},
		squirrel.NotEq{"back_audio_id": nil},
	})

	if p.CardType != "" {
		add(false, squirrel.Eq{"card_type": p.CardType})
	}

	if len(preds) == 0 {
		return nil, &Guidance{Text: filterGuidance}, nil
	}

	nv := v.copy()
	for _, pr := range preds {
		cond := pr.cond
		// A false boolean already selects the complement; inverting the
		// whole call flips it back. Negate on exactly one of the two.
		if p.Invert != pr.negated {
			cond = not{cond: cond}
		}
		nv.conds = append(nv.conds, cond)
	}
	nv.spec.Filters = append(nv.spec.Filters, p)
	return nv, nil, nil
}

func tagExists(tag string) squirrel.Sqlizer {
	return squirrel.Expr(
		"EXISTS (SELECT 1 FROM tags WHERE tags.card_id = cards.id AND tags.tag = ?)", tag)
}

func tagsIn(tags []string, want bool) squirrel.Sqlizer {
	args := make([]interface{}, len(tags))
	for i, t := range tags {
		args[i] = t
	}
	prefix := "NOT "
	if want {
		prefix = ""
	}
	return squirrel.Expr(fmt.Sprintf(
		"%sEXISTS (SELECT 1 FROM tags WHERE tags.card_id = cards.id AND tags.tag IN (%s))",
		prefix, squirrel.Placeholders(len(tags))), args...)
}
