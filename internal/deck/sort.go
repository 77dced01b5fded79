package deck

import (
	"sort"
	"strings"
)

type sortRule struct {
	expr string
	// desc marks criteria whose natural reading is largest-first.
	desc bool
}

var sortRules = map[string]sortRule{
	"overdue":    {expr: "due_date"},
	"old":        {expr: "create_date"},
	"random":     {expr: "RANDOM()"},
	"time":       {expr: "(edit_seconds + review_seconds)", desc: true},
	"total time": {expr: "(edit_seconds + review_seconds)", desc: true},
	"recent":     {expr: recencyExpr, desc: true},
}

// SortCriteria lists the accepted sort criteria, sorted for stable output.
func SortCriteria() []string {
	names := make([]string, 0, len(sortRules))
	for name := range sortRules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sort returns a view ordered by the named criterion. Each criterion has a
// natural direction (oldest-first for "old", most-spent-first for "time");
// reverse flips it. An unknown criterion returns guidance listing the
// accepted names instead of a view.
func (v *View) Sort(criterion string, reverse bool) (*View, *Guidance) {
	rule, ok := sortRules[criterion]
	if !ok {
		return nil, &Guidance{
			Text: "supply a sort criterion: " + strings.Join(SortCriteria(), " | "),
		}
	}
	nv := v.copy()
	nv.order = orderBy{expr: rule.expr, desc: rule.desc != reverse}
	nv.spec.Sort = criterion
	nv.spec.Reverse = reverse
	return nv, nil
}
