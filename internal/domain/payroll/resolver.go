package payroll

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DeductionCategory is one of the three singleton containers. Data holds the
// category's rules as a JSON list; the typed accessors decode it.
type DeductionCategory struct {
	ID          string          `json:"id"`
	Type        Category        `json:"type"`
	Description string          `json:"description"`
	IsActive    bool            `json:"isActive"`
	Data        json.RawMessage `json:"data"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (c DeductionCategory) TaxRules() (*RuleSet[TaxRule], error) {
	return decodeRules[TaxRule](c.Data)
}

func (c DeductionCategory) PensionRules() (*RuleSet[PensionRule], error) {
	return decodeRules[PensionRule](c.Data)
}

func (c DeductionCategory) OtherRules() (*RuleSet[OtherRule], error) {
	return decodeRules[OtherRule](c.Data)
}

// SetData replaces the container's rules with the JSON list form of set.
func SetData[T Identified](c *DeductionCategory, set *RuleSet[T]) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	c.Data = data
	return nil
}

func decodeRules[T Identified](data json.RawMessage) (*RuleSet[T], error) {
	set := NewRuleSet[T]()
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return set, nil
	}
	if err := json.Unmarshal(trimmed, set); err != nil {
		return nil, fmt.Errorf("decode deduction rules: %w", err)
	}
	return set, nil
}

// CategoryReader fetches a deduction container by category. It returns
// ErrCategoryNotFound when the container does not exist.
type CategoryReader interface {
	FetchCategory(ctx context.Context, category Category) (DeductionCategory, error)
}

// Resolution is the outcome of resolving one category. Only the field matching
// the requested category is populated.
type Resolution struct {
	Tax     []TaxRule
	Pension []PensionRule
	OtherResolution
}

// OtherResolution lists the selected Other rules in catalog order. Dropped
// holds requested ids absent from the catalog; Inactive holds ids whose rule
// is switched off.
type OtherResolution struct {
	Other    []OtherRule
	Dropped  []string
	Inactive []string
}

type Resolver struct {
	store CategoryReader
}

func NewResolver(store CategoryReader) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the rules of a category. Tax and Pension ignore ids and
// return the whole list; Other is filtered to ids.
func (r *Resolver) Resolve(ctx context.Context, category Category, ids []string) (Resolution, error) {
	switch category {
	case CategoryTax:
		rules, err := r.tax(ctx)
		return Resolution{Tax: rules}, err
	case CategoryPension:
		rules, err := r.pension(ctx)
		return Resolution{Pension: rules}, err
	case CategoryOther:
		set, err := r.other(ctx)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{OtherResolution: SelectOther(set, ids)}, nil
	default:
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
}

// Snapshot reads each container exactly once so a whole payroll run works
// against one consistent view of the catalog.
func (r *Resolver) Snapshot(ctx context.Context) (Snapshot, error) {
	tax, err := r.tax(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	pension, err := r.pension(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	other, err := r.other(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Tax: tax, Pension: pension, Other: other}, nil
}

func (r *Resolver) tax(ctx context.Context) ([]TaxRule, error) {
	container, err := r.mandatory(ctx, CategoryTax)
	if err != nil {
		return nil, err
	}
	set, err := container.TaxRules()
	if err != nil {
		return nil, err
	}
	return set.All(), nil
}

func (r *Resolver) pension(ctx context.Context) ([]PensionRule, error) {
	container, err := r.mandatory(ctx, CategoryPension)
	if err != nil {
		return nil, err
	}
	set, err := container.PensionRules()
	if err != nil {
		return nil, err
	}
	return set.All(), nil
}

// other treats a missing Other container as an empty catalog: every
// referenced id is then reported as dropped.
func (r *Resolver) other(ctx context.Context) (*RuleSet[OtherRule], error) {
	container, err := r.store.FetchCategory(ctx, CategoryOther)
	if errors.Is(err, ErrCategoryNotFound) {
		return NewRuleSet[OtherRule](), nil
	}
	if err != nil {
		return nil, err
	}
	if !container.IsActive {
		return NewRuleSet[OtherRule](), nil
	}
	return container.OtherRules()
}

func (r *Resolver) mandatory(ctx context.Context, category Category) (DeductionCategory, error) {
	container, err := r.store.FetchCategory(ctx, category)
	if errors.Is(err, ErrCategoryNotFound) {
		return DeductionCategory{}, fmt.Errorf("%w: %s category is not seeded", ErrConfigurationMissing, category)
	}
	if err != nil {
		return DeductionCategory{}, fmt.Errorf("fetch %s category: %w", category, err)
	}
	if !container.IsActive {
		return DeductionCategory{}, fmt.Errorf("%w: %s category is inactive", ErrConfigurationMissing, category)
	}
	return container, nil
}

// Snapshot is an immutable read of the deduction catalog.
type Snapshot struct {
	Tax     []TaxRule
	Pension []PensionRule
	Other   *RuleSet[OtherRule]
}

func (s Snapshot) ResolveOther(ids []string) OtherResolution {
	return SelectOther(s.Other, ids)
}

// SelectOther picks the referenced Other rules in catalog order.
func SelectOther(set *RuleSet[OtherRule], ids []string) OtherResolution {
	selected, dropped := set.Select(ids)
	out := OtherResolution{Other: make([]OtherRule, 0, len(selected)), Dropped: dropped}
	for _, rule := range selected {
		if !rule.IsActive {
			out.Inactive = append(out.Inactive, rule.ID)
			continue
		}
		out.Other = append(out.Other, rule)
	}
	return out
}
