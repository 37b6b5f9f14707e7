// Package template substitutes {field} and {field|filter} placeholders from a data row.
package template

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
)

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Result is the rendered text plus any variables that could not be resolved.
type Result struct {
	Text           string
	Missing        []string
	UnknownFilters []string
}

// Interpolate renders tpl against row. Unresolved and nil variables render as
// an empty string and are listed in Missing unless a default filter covers them.
func Interpolate(tpl string, row model.Row) Result {
	var res Result
	if !strings.Contains(tpl, "{") {
		res.Text = tpl
		return res
	}
	res.Text = placeholder.ReplaceAllStringFunc(tpl, func(m string) string {
		parts := strings.Split(m[1:len(m)-1], "|")
		name := strings.TrimSpace(parts[0])
		filters := parts[1:]

		raw, found := lookup(row, name)
		value := model.Stringify(raw)
		if (!found || raw == nil) && !hasDefault(filters) {
			res.Missing = append(res.Missing, name)
		}
		for _, f := range filters {
			var ok bool
			value, ok = applyFilter(value, f)
			if !ok {
				res.UnknownFilters = append(res.UnknownFilters, strings.TrimSpace(f))
			}
		}
		return value
	})
	return res
}

// Render is Interpolate without diagnostics.
func Render(tpl string, row model.Row) string {
	return Interpolate(tpl, row).Text
}

// Variables lists the variable names referenced by tpl, in order of appearance.
func Variables(tpl string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholder.FindAllStringSubmatch(tpl, -1) {
		name := strings.TrimSpace(strings.SplitN(m[1], "|", 2)[0])
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// lookup prefers an exact key and falls back to a case-insensitive one.
func lookup(row model.Row, name string) (any, bool) {
	if v, ok := row[name]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func hasDefault(filters []string) bool {
	for _, f := range filters {
		if n, _, _ := strings.Cut(strings.TrimSpace(f), ":"); n == "default" {
			return true
		}
	}
	return false
}

func applyFilter(value, filter string) (string, bool) {
	name, arg, _ := strings.Cut(strings.TrimSpace(filter), ":")
	switch strings.ToLower(name) {
	case "upper", "uppercase":
		return strings.ToUpper(value), true
	case "lower", "lowercase":
		return strings.ToLower(value), true
	case "capitalize":
		r, size := utf8.DecodeRuneInString(value)
		if size == 0 {
			return value, true
		}
		return string(unicode.ToUpper(r)) + value[size:], true
	case "title", "titlecase":
		return cases.Title(language.Und).String(value), true
	case "trim":
		return strings.TrimSpace(value), true
	case "slug":
		return slugify(value), true
	case "truncate":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || n < 0 {
			return value, false
		}
		if utf8.RuneCountInString(value) <= n {
			return value, true
		}
		return string([]rune(value)[:n]), true
	case "default":
		if strings.TrimSpace(value) == "" {
			return arg, true
		}
		return value, true
	}
	return value, false
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
