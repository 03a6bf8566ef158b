package expenses

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"homepay/internal/sheets"
)

// Pair is a (type, description) suggestion.
type Pair struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Types lists the distinct expense types used in the first months of the
// year, sorted.
func (e *Engine) Types(ctx context.Context) ([]string, error) {
	pairs, err := e.scan(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, p := range pairs {
		if p.Type == "" {
			continue
		}
		if _, ok := seen[p.Type]; ok {
			continue
		}
		seen[p.Type] = struct{}{}
		out = append(out, p.Type)
	}
	sort.Strings(out)
	return out, nil
}

// Pairs lists the distinct (type, description) combinations, sorted by type
// then description.
func (e *Engine) Pairs(ctx context.Context) ([]Pair, error) {
	pairs, err := e.scan(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[Pair]struct{}{}
	var out []Pair
	for _, p := range pairs {
		if p.Type == "" || p.Description == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Description < out[j].Description
	})
	return out, nil
}

func (e *Engine) scan(ctx context.Context) ([]Pair, error) {
	m := e.layout.Month
	height := m.LastRow - m.CarryOverRow + 1
	var out []Pair
	for month := 1; month <= e.layout.DiscoveryMonths; month++ {
		vals, err := e.grid.GetRange(ctx, sheets.Month(month), m.CarryOverRow, m.TypeCol, height, m.DescriptionCol-m.TypeCol+1)
		if err != nil {
			return nil, fmt.Errorf("scan month %d: %w", month, err)
		}
		for _, v := range vals {
			out = append(out, Pair{Type: strings.TrimSpace(v[0]), Description: strings.TrimSpace(v[len(v)-1])})
		}
	}
	return out, nil
}
