package core

import (
	"fmt"
	"strings"
)

// Category is one of the fixed expense categories.
type Category string

const (
	CategoryFood         Category = "food"
	CategoryDrinks       Category = "drinks"
	CategoryShopping     Category = "shopping"
	CategoryExperience   Category = "experience"
	CategoryCounter      Category = "counter"
	CategoryTravel       Category = "travel"
	CategoryLocalCommute Category = "local_commute"
)

// CategoryInfo is the display metadata of a category.
type CategoryInfo struct {
	ID    Category
	Label string
	Color string // hex, e.g. "#FF6B6B"
}

// registry order is the order categories are offered to users.
var registry = []CategoryInfo{
	{ID: CategoryFood, Label: "Food", Color: "#FF6B6B"},
	{ID: CategoryDrinks, Label: "Drinks", Color: "#4ECDC4"},
	{ID: CategoryShopping, Label: "Shopping", Color: "#95E1D3"},
	{ID: CategoryExperience, Label: "Experience", Color: "#FFD93D"},
	{ID: CategoryCounter, Label: "Counter", Color: "#6C5CE7"},
	{ID: CategoryTravel, Label: "Travel", Color: "#A29BFE"},
	{ID: CategoryLocalCommute, Label: "Local Commute", Color: "#FD79A8"},
}

var registryByID = func() map[Category]CategoryInfo {
	m := make(map[Category]CategoryInfo, len(registry))
	for _, c := range registry {
		m[c.ID] = c
	}
	return m
}()

// Categories returns a copy of the registry in display order.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(registry))
	copy(out, registry)
	return out
}

// LookupCategory returns label and color for id.
func LookupCategory(id Category) (CategoryInfo, error) {
	info, ok := registryByID[id]
	if !ok {
		return CategoryInfo{}, fmt.Errorf("%w: %q", ErrInvalidCategory, string(id))
	}
	return info, nil
}

// ParseCategory normalizes user input and checks it against the registry.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, err := LookupCategory(c); err != nil {
		return "", err
	}
	return c, nil
}

// Validate reports ErrInvalidCategory for identifiers outside the registry.
func (c Category) Validate() error {
	_, err := LookupCategory(c)
	return err
}

// Label returns the display label, or the raw identifier when unknown.
func (c Category) Label() string {
	if info, ok := registryByID[c]; ok {
		return info.Label
	}
	return string(c)
}
