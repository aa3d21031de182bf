package core

import (
	"errors"
	"testing"
)

func TestLookupCategory(t *testing.T) {
	want := map[Category][2]string{
		CategoryFood:         {"Food", "#FF6B6B"},
		CategoryDrinks:       {"Drinks", "#4ECDC4"},
		CategoryShopping:     {"Shopping", "#95E1D3"},
		CategoryExperience:   {"Experience", "#FFD93D"},
		CategoryCounter:      {"Counter", "#6C5CE7"},
		CategoryTravel:       {"Travel", "#A29BFE"},
		CategoryLocalCommute: {"Local Commute", "#FD79A8"},
	}
	for id, lc := range want {
		info, err := LookupCategory(id)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", id, err)
		}
		if info.Label != lc[0] || info.Color != lc[1] {
			t.Fatalf("%s: got (%q, %q), want (%q, %q)", id, info.Label, info.Color, lc[0], lc[1])
		}
	}

	if _, err := LookupCategory("fuel"); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestCategoriesOrderAndCopy(t *testing.T) {
	cats := Categories()
	if len(cats) != 7 {
		t.Fatalf("expected 7 categories, got %d", len(cats))
	}
	if cats[0].ID != CategoryFood || cats[6].ID != CategoryLocalCommute {
		t.Fatalf("unexpected order: %v", cats)
	}
	cats[0].Label = "changed"
	if Categories()[0].Label != "Food" {
		t.Fatal("Categories must return a copy")
	}
}

func TestParseCategory(t *testing.T) {
	got, err := ParseCategory("  Local_Commute ")
	if err != nil || got != CategoryLocalCommute {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := ParseCategory(""); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}
