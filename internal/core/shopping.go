// Package core provides the shopping list model.
//
// A shopping list is derived on every request from the recipes in a user's
// cart; nothing here is persisted.
package core

import (
	"sort"
	"strconv"
	"strings"
)

const (
	ShoppingListFilename    = "shopping_list.txt"
	ShoppingListContentType = "text/plain"
)

// IngredientTotal is one aggregated shopping list line: the summed amount of
// an ingredient across every recipe in the cart, keyed by name and unit.
type IngredientTotal struct {
	Name  string
	Unit  string
	Total int64
}

// Line renders the total as "{name} - {total} {unit}".
func (t IngredientTotal) Line() string {
	return t.Name + " - " + strconv.FormatInt(t.Total, 10) + " " + t.Unit
}

type ShoppingList struct {
	Lines []IngredientTotal
}

// NewShoppingList orders the totals by ingredient name. The sort is stable,
// so equal names keep the order the store returned them in.
func NewShoppingList(totals []IngredientTotal) ShoppingList {
	lines := make([]IngredientTotal, len(totals))
	copy(lines, totals)
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Name < lines[j].Name
	})
	return ShoppingList{Lines: lines}
}

// Render joins the lines with "\n". An empty list renders as "".
func (l ShoppingList) Render() string {
	if len(l.Lines) == 0 {
		return ""
	}
	var b strings.Builder
	for i, line := range l.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line.Line())
	}
	return b.String()
}

// IsEmpty reports whether the list has no lines.
func (l ShoppingList) IsEmpty() bool {
	return len(l.Lines) == 0
}
