package layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
)

// Epsilon absorbs rounding error in budget comparisons.
const Epsilon = 1e-6

// DefaultSafetyMargin is the share of the budget left unused when packing
// sentences, to cover estimation error.
const DefaultSafetyMargin = 0.10

// Layout is an ordered list of pages, each an ordered list of item indices.
type Layout [][]int

var (
	ErrInvalidBudget  = errors.New("budget must be a positive number")
	ErrInvalidMargin  = errors.New("safety margin must be in [0, 1)")
	ErrNegativeHeight = errors.New("heights must not be negative")
)

func checkInputs(heights []float64, budget float64) error {
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget <= 0 {
		return ErrInvalidBudget
	}
	for i, h := range heights {
		if math.IsNaN(h) || h < 0 {
			return fmt.Errorf("height %d: %w", i, ErrNegativeHeight)
		}
	}
	return nil
}

// pageHeight sums the heights of the items on one page.
func pageHeight(page []int, heights []float64) float64 {
	return lo.SumBy(page, func(i int) float64 { return heights[i] })
}

// packGreedy fills pages in order, opening a new page whenever the next item
// would push the current one past limit. An item that alone exceeds limit
// still gets a page of its own.
func packGreedy(heights []float64, limit float64) Layout {
	pages := Layout{}
	var current []int
	total := 0.0

	for i, h := range heights {
		if len(current) > 0 && total+h > limit+Epsilon {
			pages = append(pages, current)
			current = nil
			total = 0
		}
		current = append(current, i)
		total += h
	}
	if len(current) > 0 {
		pages = append(pages, current)
	}
	return pages
}

// PartitionFixedSections groups a small, fixed set of named sections into
// pages. Every page takes the longest run of remaining sections that fits
// the budget, so all sections share one page when they can, and a single
// oversized section ends up alone. Section order is never changed and no
// section is split.
func PartitionFixedSections(heights []float64, budget float64) (Layout, error) {
	if err := checkInputs(heights, budget); err != nil {
		return nil, err
	}
	return packGreedy(heights, budget), nil
}

// PartitionSequentialItems packs a homogeneous sequence (one entry per
// sentence) against budget × (1 − safetyMargin), then merges a sparse
// trailing page into its predecessor when the two fit together.
func PartitionSequentialItems(heights []float64, budget, safetyMargin float64) (Layout, error) {
	if err := checkInputs(heights, budget); err != nil {
		return nil, err
	}
	if math.IsNaN(safetyMargin) || safetyMargin < 0 || safetyMargin >= 1 {
		return nil, ErrInvalidMargin
	}

	limit := budget * (1 - safetyMargin)
	return MergeTrailingPage(packGreedy(heights, limit), heights, limit), nil
}

// MergeTrailingPage folds the last page into the one before it when the last
// page holds at most two items and both pages together stay within limit.
// The check runs once. The input layout is not modified.
func MergeTrailingPage(pages Layout, heights []float64, limit float64) Layout {
	n := len(pages)
	if n < 2 || len(pages[n-1]) > 2 {
		return pages
	}

	last, prev := pages[n-1], pages[n-2]
	if pageHeight(prev, heights)+pageHeight(last, heights) > limit+Epsilon {
		return pages
	}

	merged := make(Layout, n-1)
	copy(merged, pages[:n-2])
	joined := make([]int, 0, len(prev)+len(last))
	joined = append(joined, prev...)
	merged[n-2] = append(joined, last...)
	return merged
}

// PartitionItems estimates every sentence entry's height and packs them with
// PartitionSequentialItems.
func (m *Model) PartitionItems(items []Item, showTranslation bool, budget, safetyMargin float64) (Layout, error) {
	heights := lo.Map(items, func(it Item, _ int) float64 {
		return m.ItemHeight(it, showTranslation)
	})
	return PartitionSequentialItems(heights, budget, safetyMargin)
}

// PageHeights returns the summed height of every page.
func PageHeights(pages Layout, heights []float64) []float64 {
	return lo.Map(pages, func(page []int, _ int) float64 {
		return pageHeight(page, heights)
	})
}
