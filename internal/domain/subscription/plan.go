package subscription

import (
	"fmt"
	"time"

	"subsync/internal/shared/id"
)

// Plan is the pricing/catalog entity. The reconciler only ever reads plans:
// a plan hint on an inbound event resolves to a plan reference, nothing
// more.
type Plan struct {
	id                uint
	sid               string
	name              string
	slug              string
	externalProductID string
	priceCents        int64
	currency          string
	interval          string
	durationDays      int
	features          []string
	active            bool
	createdAt         time.Time
	updatedAt         time.Time
}

// NewPlan creates a plan.
func NewPlan(name, slug, externalProductID string, priceCents int64, currency, interval string, durationDays int) (*Plan, error) {
	if name == "" {
		return nil, fmt.Errorf("plan name is required")
	}
	if slug == "" {
		return nil, fmt.Errorf("plan slug is required")
	}
	if len(currency) != 3 {
		return nil, fmt.Errorf("currency must be a 3-letter code, got %q", currency)
	}
	if durationDays <= 0 {
		return nil, fmt.Errorf("duration days must be positive")
	}

	sid, err := id.GenerateWithPrefix(id.PrefixPlan, id.DefaultLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan SID: %w", err)
	}

	now := time.Now().UTC()
	return &Plan{
		sid:               sid,
		name:              name,
		slug:              slug,
		externalProductID: externalProductID,
		priceCents:        priceCents,
		currency:          currency,
		interval:          interval,
		durationDays:      durationDays,
		active:            true,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// PlanReconstructParams carries the persisted state of a plan.
type PlanReconstructParams struct {
	ID                uint
	SID               string
	Name              string
	Slug              string
	ExternalProductID string
	PriceCents        int64
	Currency          string
	Interval          string
	DurationDays      int
	Features          []string
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReconstructPlan rebuilds a plan from persistence.
func ReconstructPlan(p PlanReconstructParams) (*Plan, error) {
	if p.ID == 0 {
		return nil, fmt.Errorf("plan ID cannot be zero")
	}
	return &Plan{
		id:                p.ID,
		sid:               p.SID,
		name:              p.Name,
		slug:              p.Slug,
		externalProductID: p.ExternalProductID,
		priceCents:        p.PriceCents,
		currency:          p.Currency,
		interval:          p.Interval,
		durationDays:      p.DurationDays,
		features:          p.Features,
		active:            p.Active,
		createdAt:         p.CreatedAt,
		updatedAt:         p.UpdatedAt,
	}, nil
}

func (p *Plan) ID() uint                  { return p.id }
func (p *Plan) SID() string               { return p.sid }
func (p *Plan) Name() string              { return p.name }
func (p *Plan) Slug() string              { return p.slug }
func (p *Plan) ExternalProductID() string { return p.externalProductID }
func (p *Plan) PriceCents() int64         { return p.priceCents }
func (p *Plan) Currency() string          { return p.currency }
func (p *Plan) Interval() string          { return p.interval }
func (p *Plan) DurationDays() int         { return p.durationDays }
func (p *Plan) Features() []string        { return p.features }
func (p *Plan) IsActive() bool            { return p.active }
func (p *Plan) CreatedAt() time.Time      { return p.createdAt }
func (p *Plan) UpdatedAt() time.Time      { return p.updatedAt }

// SetID sets the plan ID (only for persistence layer use)
func (p *Plan) SetID(planID uint) error {
	if p.id != 0 {
		return fmt.Errorf("plan ID is already set")
	}
	if planID == 0 {
		return fmt.Errorf("plan ID cannot be zero")
	}
	p.id = planID
	return nil
}
