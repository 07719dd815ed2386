package billing

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BillingInterval represents the billing cadence of a paid plan.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, EUR 9.99 is Amount: 999, Currency: "EUR".
type Money struct {
	Amount   int64
	Currency string // ISO 4217 code
}

// Format renders the amount with its currency symbol for the given locale.
func (m Money) Format(tag language.Tag) string {
	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		return fmt.Sprintf("%s %.2f", m.Currency, float64(m.Amount)/100)
	}
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol(unit.Amount(float64(m.Amount) / 100)))
}

// Plan describes one of the two paid plans. PriceID is Stripe's price
// identifier and is the key webhook payloads and renewal scans match on.
type Plan struct {
	PriceID  string
	Name     string
	Interval BillingInterval
	Price    Money
}

// Catalog holds the two configured paid plans. Plan cadence for a stored
// subscription is resolved by comparing its price id against these.
type Catalog struct {
	Monthly Plan
	Yearly  Plan
}

// CatalogConfig carries the processor-side price identifiers and display
// amounts for the two paid plans.
type CatalogConfig struct {
	MonthlyPriceID string `env:"PLAN_MONTHLY_PRICE_ID,required"`
	MonthlyAmount  int64  `env:"PLAN_MONTHLY_AMOUNT" envDefault:"999"`
	YearlyPriceID  string `env:"PLAN_YEARLY_PRICE_ID,required"`
	YearlyAmount   int64  `env:"PLAN_YEARLY_AMOUNT" envDefault:"9900"`
	Currency       string `env:"PLAN_CURRENCY" envDefault:"EUR"`
}

// NewCatalog builds the plan catalog from configuration.
func NewCatalog(cfg CatalogConfig) Catalog {
	return Catalog{
		Monthly: Plan{
			PriceID:  cfg.MonthlyPriceID,
			Name:     "Monthly",
			Interval: IntervalMonthly,
			Price:    Money{Amount: cfg.MonthlyAmount, Currency: cfg.Currency},
		},
		Yearly: Plan{
			PriceID:  cfg.YearlyPriceID,
			Name:     "Yearly",
			Interval: IntervalYearly,
			Price:    Money{Amount: cfg.YearlyAmount, Currency: cfg.Currency},
		},
	}
}

// ByPriceID resolves a plan by its Stripe price id.
func (c Catalog) ByPriceID(id string) (Plan, bool) {
	switch id {
	case c.Monthly.PriceID:
		return c.Monthly, true
	case c.Yearly.PriceID:
		return c.Yearly, true
	default:
		return Plan{}, false
	}
}
