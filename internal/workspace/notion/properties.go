package notion

import (
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Notion columns are loosely typed: a ticker may be a title or a relation, a
// flag a checkbox or a select. The readers below accept every kind that can
// sensibly carry the value.

func plain(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, t := range rt {
		b.WriteString(t.PlainText)
	}
	return strings.TrimSpace(b.String())
}

func text(p notionapi.Property) (string, bool) {
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		return plain(v.Title), true
	case *notionapi.RichTextProperty:
		return plain(v.RichText), true
	case *notionapi.SelectProperty:
		return v.Select.Name, true
	case *notionapi.MultiSelectProperty:
		names := make([]string, 0, len(v.MultiSelect))
		for _, o := range v.MultiSelect {
			names = append(names, o.Name)
		}
		return strings.Join(names, ","), true
	case *notionapi.NumberProperty:
		return decimal.NewFromFloat(v.Number).String(), true
	case *notionapi.CheckboxProperty:
		return strconv.FormatBool(v.Checkbox), true
	case *notionapi.FormulaProperty:
		switch string(v.Formula.Type) {
		case "string":
			return strings.TrimSpace(v.Formula.String), true
		case "number":
			return decimal.NewFromFloat(v.Formula.Number).String(), true
		case "boolean":
			return strconv.FormatBool(v.Formula.Boolean), true
		}
	case *notionapi.RollupProperty:
		switch string(v.Rollup.Type) {
		case "number":
			return decimal.NewFromFloat(v.Rollup.Number).String(), true
		case "array":
			for _, item := range v.Rollup.Array {
				if s, ok := text(item); ok && s != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}

func number(p notionapi.Property) (decimal.Decimal, bool) {
	switch v := p.(type) {
	case *notionapi.NumberProperty:
		return decimal.NewFromFloat(v.Number), true
	case *notionapi.FormulaProperty:
		if string(v.Formula.Type) == "number" {
			return decimal.NewFromFloat(v.Formula.Number), true
		}
	}
	s, ok := text(p)
	if !ok || s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func boolean(p notionapi.Property) bool {
	switch v := p.(type) {
	case *notionapi.CheckboxProperty:
		return v.Checkbox
	case *notionapi.FormulaProperty:
		if string(v.Formula.Type) == "boolean" {
			return v.Formula.Boolean
		}
	}
	s, _ := text(p)
	switch strings.ToLower(s) {
	case "yes", "true", "1", "x", "y", "etf":
		return true
	}
	return false
}

func relations(p notionapi.Property) ([]string, bool) {
	v, ok := p.(*notionapi.RelationProperty)
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(v.Relation))
	for _, r := range v.Relation {
		ids = append(ids, normalizeID(string(r.ID)))
	}
	return ids, true
}

func normalizeID(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}
