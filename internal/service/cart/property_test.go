package cart

import (
	"context"
	"fmt"
	"testing"

	"chocolate-storefront/internal/kvcache"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var prices = map[string]int64{"p0": 1500, "p1": 30000, "p2": 995, "p3": 12000}

// applyOps decodes each int into an add, remove or update against a small catalog.
func applyOps(s *Store, ops []int) {
	ctx := context.Background()
	for _, op := range ops {
		id := fmt.Sprintf("p%d", (op/3)%4)
		qty := (op/12)%7 - 2
		switch op % 3 {
		case 0:
			s.AddItem(ctx, product(id, prices[id]), qty)
		case 1:
			s.RemoveItem(ctx, id)
		case 2:
			s.UpdateQuantity(ctx, id, qty)
		}
	}
}

func TestCartDerivedValuesNeverDrift(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("count and total match the lines", prop.ForAll(
		func(ops []int) bool {
			s := Load(context.Background(), kvcache.NewMemory(), nil, &stubTracker{}, Options{})
			applyOps(s, ops)

			lines := s.Lines()
			seen := make(map[string]bool)
			count, total := 0, int64(0)
			for _, l := range lines {
				if l.Quantity < 1 || seen[l.ProductID] {
					return false
				}
				seen[l.ProductID] = true
				count += l.Quantity
				total += l.UnitPriceCents * int64(l.Quantity)
			}
			return s.Count() == count && s.Total() == total
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}

func TestToggleFavoriteInvolution(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("toggling twice restores the set", prop.ForAll(
		func(existing []string, id string) bool {
			ctx := context.Background()
			s := Load(ctx, kvcache.NewMemory(), nil, &stubTracker{}, Options{})
			for _, e := range existing {
				if !s.IsFavorite(e) {
					s.ToggleFavorite(ctx, e)
				}
			}
			before := s.Favorites()
			s.ToggleFavorite(ctx, id)
			s.ToggleFavorite(ctx, id)
			after := s.Favorites()
			if len(before) != len(after) {
				return false
			}
			for i := range before {
				if before[i] != after[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
