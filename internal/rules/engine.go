package rules

import (
	"cmp"
	"reflect"
	"regexp"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/cast"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/template"
)

// Engine evaluates conditions and applies rule actions. It holds no per-call
// state and is safe for concurrent use.
type Engine struct {
	caseSensitive bool
	patterns      *lru.Cache[string, *regexp.Regexp] // nil value when rejected
}

// PatternCacheSize bounds the compiled regex cache of one engine.
const PatternCacheSize = 256

type Option func(*Engine)

// WithCaseSensitive makes string operators compare exactly.
func WithCaseSensitive(on bool) Option {
	return func(e *Engine) { e.caseSensitive = on }
}

func NewEngine(opts ...Option) *Engine {
	patterns, _ := lru.New[string, *regexp.Regexp](PatternCacheSize)
	e := &Engine{patterns: patterns}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RowResult is the outcome of running a rule set over one row.
type RowResult struct {
	Index        int       `json:"index"`
	ModifiedRow  model.Row `json:"modified_row"`
	MatchedRules []Rule    `json:"matched_rules"`
	Groups       []string  `json:"groups"`
	Tags         []string  `json:"tags"`
	ShouldSkip   bool      `json:"should_skip"`
}

// RowTestResult previews a single rule on one sample row.
type RowTestResult struct {
	Index       int       `json:"index"`
	Matched     bool      `json:"matched"`
	ModifiedRow model.Row `json:"modified_row,omitempty"`
	Groups      []string  `json:"groups,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	ShouldSkip  bool      `json:"should_skip,omitempty"`
}

type TestResult struct {
	TotalRows   int             `json:"total_rows"`
	MatchedRows int             `json:"matched_rows"`
	Results     []RowTestResult `json:"results"`
}

// EvaluateCondition never fails: unusable input evaluates to false.
func (e *Engine) EvaluateCondition(c Condition, row model.Row) bool {
	field := row[c.Field]

	switch c.Operator {
	case OpEquals:
		return e.equals(field, c.Value)
	case OpNotEquals:
		return !e.equals(field, c.Value)
	case OpContains:
		return e.contains(field, c.Value)
	case OpNotContains:
		return !e.contains(field, c.Value)
	case OpStartsWith:
		if field == nil {
			return false
		}
		return strings.HasPrefix(e.fold(model.Stringify(field)), e.fold(model.Stringify(c.Value)))
	case OpEndsWith:
		if field == nil {
			return false
		}
		return strings.HasSuffix(e.fold(model.Stringify(field)), e.fold(model.Stringify(c.Value)))
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		return compareNumbers(c.Operator, field, c.Value)
	case OpRegex:
		if field == nil {
			return false
		}
		re := e.compile(model.Stringify(c.Value))
		return re != nil && re.MatchString(model.Stringify(field))
	case OpIn:
		return e.in(field, c.Value)
	case OpNotIn:
		return !e.in(field, c.Value)
	case OpIsEmpty:
		return isEmpty(field)
	case OpIsNotEmpty:
		return !isEmpty(field)
	}
	return false
}

// EvaluateConditionGroup short-circuits recursively through nested groups.
func (e *Engine) EvaluateConditionGroup(g ConditionGroup, row model.Row) bool {
	if len(g.Conditions) == 0 {
		return true
	}
	or := strings.EqualFold(string(g.Logic), string(LogicOr))
	for _, n := range g.Conditions {
		var ok bool
		switch v := n.(type) {
		case Condition:
			ok = e.EvaluateCondition(v, row)
		case ConditionGroup:
			ok = e.EvaluateConditionGroup(v, row)
		case *ConditionGroup:
			ok = v != nil && e.EvaluateConditionGroup(*v, row)
		case *Condition:
			ok = v != nil && e.EvaluateCondition(*v, row)
		}
		if or && ok {
			return true
		}
		if !or && !ok {
			return false
		}
	}
	return !or
}

// EvaluateRules returns enabled rules matching row, ordered by ascending priority.
func (e *Engine) EvaluateRules(rules []Rule, row model.Row) []Rule {
	var matched []Rule
	for _, r := range rules {
		if r.Enabled && e.EvaluateConditionGroup(r.ConditionGroup, row) {
			matched = append(matched, r)
		}
	}
	slices.SortStableFunc(matched, func(a, b Rule) int { return cmp.Compare(a.Priority, b.Priority) })
	return matched
}

// ProcessDataset applies matched rules to a copy of every row.
func (e *Engine) ProcessDataset(rules []Rule, rows []model.Row) []RowResult {
	out := make([]RowResult, 0, len(rows))
	for i, row := range rows {
		matched := e.EvaluateRules(rules, row)
		res := RowResult{Index: i, ModifiedRow: row.Clone(), MatchedRules: matched}
		for _, r := range matched {
			applyActions(r.Actions, &res.ModifiedRow, &res.Groups, &res.Tags, &res.ShouldSkip)
		}
		out = append(out, res)
	}
	return out
}

// TestRule is a dry run of one rule over sample rows. The enabled flag is ignored.
func (e *Engine) TestRule(rule Rule, rows []model.Row) TestResult {
	res := TestResult{TotalRows: len(rows), Results: make([]RowTestResult, 0, len(rows))}
	for i, row := range rows {
		rr := RowTestResult{Index: i}
		if e.EvaluateConditionGroup(rule.ConditionGroup, row) {
			rr.Matched = true
			rr.ModifiedRow = row.Clone()
			applyActions(rule.Actions, &rr.ModifiedRow, &rr.Groups, &rr.Tags, &rr.ShouldSkip)
			res.MatchedRows++
		}
		res.Results = append(res.Results, rr)
	}
	return res
}

func (e *Engine) CountMatches(g ConditionGroup, rows []model.Row) int {
	n := 0
	for _, row := range rows {
		if e.EvaluateConditionGroup(g, row) {
			n++
		}
	}
	return n
}

func applyActions(actions []Action, row *model.Row, groups, tags *[]string, skip *bool) {
	for _, a := range actions {
		switch a.Type {
		case ActionAddToGroup:
			if !slices.Contains(*groups, a.Group) {
				*groups = append(*groups, a.Group)
			}
		case ActionSetField:
			(*row)[a.Field] = template.Render(a.Value, *row)
		case ActionAddTag:
			if !slices.Contains(*tags, a.Tag) {
				*tags = append(*tags, a.Tag)
			}
		case ActionSkip:
			*skip = true
		}
	}
}

func (e *Engine) fold(s string) string {
	if e.caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

// equals keeps the long-standing rule that a missing or nil field matches
// only an empty comparison value.
func (e *Engine) equals(field, want any) bool {
	if field == nil {
		return isEmpty(want)
	}
	if b, ok := field.(bool); ok {
		return b == truthy(want)
	}
	if b, ok := want.(bool); ok {
		return truthy(field) == b
	}
	if isNumber(field) {
		a, okA := toNumber(field)
		b, okB := toNumber(want)
		if okA && okB {
			return a == b
		}
	}
	return e.fold(model.Stringify(field)) == e.fold(model.Stringify(want))
}

func (e *Engine) contains(field, want any) bool {
	if field == nil {
		return false
	}
	if items, ok := asList(field); ok {
		for _, it := range items {
			if e.equals(it, want) {
				return true
			}
		}
		return false
	}
	return strings.Contains(e.fold(model.Stringify(field)), e.fold(model.Stringify(want)))
}

func (e *Engine) in(field, list any) bool {
	if field == nil {
		return false
	}
	items, ok := asList(list)
	if !ok {
		items = nil
		for _, s := range strings.Split(model.Stringify(list), ",") {
			items = append(items, strings.TrimSpace(s))
		}
	}
	got := e.fold(model.Stringify(field))
	for _, it := range items {
		if got == e.fold(model.Stringify(it)) {
			return true
		}
	}
	return false
}

func (e *Engine) compile(pattern string) *regexp.Regexp {
	if re, ok := e.patterns.Get(pattern); ok {
		return re
	}
	var re *regexp.Regexp
	if IsSafePattern(pattern) {
		re, _ = regexp.Compile("(?i)" + pattern)
	}
	e.patterns.Add(pattern, re)
	return re
}

func compareNumbers(op Operator, field, want any) bool {
	a, okA := toNumber(field)
	b, okB := toNumber(want)
	if !okA || !okB {
		return false
	}
	switch op {
	case OpGreaterThan:
		return a > b
	case OpLessThan:
		return a < b
	case OpGreaterThanOrEqual:
		return a >= b
	case OpLessThanOrEqual:
		return a <= b
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0, false
		}
		v = t
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	}
	s := strings.ToLower(strings.TrimSpace(model.Stringify(v)))
	return s == "true" || s == "1"
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

func asList(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
