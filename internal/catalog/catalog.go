// Package catalog holds the priced offerings of the marketplace: listing
// packages, buyer subscription plans and the escrow fee schedule.
package catalog

import (
	_ "embed"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// FeeSchedule is the buyer-side escrow fee
type FeeSchedule struct {
	Percent float64 `yaml:"percent"`
	Minimum int64   `yaml:"minimum"`
	Maximum int64   `yaml:"maximum"`
}

// Package is a listing package a seller can buy
type Package struct {
	Type         string   `yaml:"type" json:"type"`
	Name         string   `yaml:"name" json:"name"`
	Price        int64    `yaml:"price" json:"price"`
	FeaturedDays int      `yaml:"featured_days" json:"featured_days"`
	Perks        []string `yaml:"perks" json:"perks"`
}

// IsFree reports whether the package needs no checkout
func (p Package) IsFree() bool {
	return p.Price == 0
}

// Plan is a buyer subscription plan
type Plan struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Price    int64  `yaml:"price" json:"price"`
	Interval string `yaml:"interval" json:"interval"`
	// PriceID is the processor price, set from configuration
	PriceID string `yaml:"-" json:"-"`
}

// Catalog is the full set of offerings
type Catalog struct {
	Currency  string      `yaml:"currency" json:"currency"`
	EscrowFee FeeSchedule `yaml:"escrow_fee" json:"-"`
	Packages  []Package   `yaml:"packages" json:"packages"`
	Plans     []Plan      `yaml:"plans" json:"plans"`
}

// Default parses the built-in catalog
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes and checks a catalog document
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if c.Currency == "" {
		return fmt.Errorf("catalog: currency is required")
	}
	if c.EscrowFee.Percent < 0 || c.EscrowFee.Percent > 100 {
		return fmt.Errorf("catalog: escrow fee percent must be within 0-100")
	}
	if c.EscrowFee.Maximum > 0 && c.EscrowFee.Maximum < c.EscrowFee.Minimum {
		return fmt.Errorf("catalog: escrow fee maximum is below minimum")
	}
	seen := map[string]bool{}
	for _, p := range c.Packages {
		if p.Type == "" || seen[p.Type] {
			return fmt.Errorf("catalog: package type %q is empty or duplicated", p.Type)
		}
		if p.Price < 0 || p.FeaturedDays < 0 {
			return fmt.Errorf("catalog: package %q has negative price or featured days", p.Type)
		}
		seen[p.Type] = true
	}
	for _, p := range c.Plans {
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("catalog: plan id %q is empty or duplicated", p.ID)
		}
		if p.Interval != "month" && p.Interval != "year" {
			return fmt.Errorf("catalog: plan %q interval must be month or year", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Package looks up a listing package by type
func (c *Catalog) Package(packageType string) (Package, bool) {
	for _, p := range c.Packages {
		if p.Type == packageType {
			return p, true
		}
	}
	return Package{}, false
}

// Plan looks up a subscription plan by id
func (c *Catalog) Plan(id string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// SetPlanPriceIDs attaches processor price ids to plans
func (c *Catalog) SetPlanPriceIDs(ids map[string]string) {
	for i := range c.Plans {
		if id, ok := ids[c.Plans[i].ID]; ok {
			c.Plans[i].PriceID = id
		}
	}
}

// BuyerFee returns the escrow fee charged on top of amount.
// The percentage is rounded half up to the cent, then clamped to the schedule.
func (f FeeSchedule) BuyerFee(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	fee := int64(math.Round(float64(amount) * f.Percent / 100))
	if fee < f.Minimum {
		fee = f.Minimum
	}
	if f.Maximum > 0 && fee > f.Maximum {
		fee = f.Maximum
	}
	return fee
}
