package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"hrpayroll/internal/domain/payroll"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) ListAllowances(ctx context.Context) ([]Allowance, error) {
	return s.store.ListAllowances(ctx, false)
}

func (s *Service) ListActiveAllowances(ctx context.Context) ([]Allowance, error) {
	return s.store.ListAllowances(ctx, true)
}

func (s *Service) GetAllowance(ctx context.Context, id string) (Allowance, error) {
	return s.store.GetAllowance(ctx, id)
}

func (s *Service) CreateAllowance(ctx context.Context, input AllowanceInput) (Allowance, error) {
	allowance, err := s.validateAllowance(ctx, "", input)
	if err != nil {
		return Allowance{}, err
	}
	return s.store.InsertAllowance(ctx, allowance)
}

func (s *Service) UpdateAllowance(ctx context.Context, id string, input AllowanceInput) (Allowance, error) {
	if _, err := s.store.GetAllowance(ctx, id); err != nil {
		return Allowance{}, err
	}
	allowance, err := s.validateAllowance(ctx, id, input)
	if err != nil {
		return Allowance{}, err
	}
	allowance.ID = id
	return s.store.UpdateAllowance(ctx, allowance)
}

func (s *Service) DeleteAllowance(ctx context.Context, id string) error {
	return s.store.SoftDeleteAllowance(ctx, id)
}

func (s *Service) validateAllowance(ctx context.Context, id string, input AllowanceInput) (Allowance, error) {
	var list issues
	name := strings.TrimSpace(input.Name)
	if name == "" {
		list.add("name", "is required")
	}
	kind := payroll.Kind(strings.ToLower(strings.TrimSpace(input.Kind)))
	validateKind(&list, "", kind, input.Percentage, input.Amount)
	if err := list.err(); err != nil {
		return Allowance{}, err
	}

	taken, err := s.store.AllowanceNameTaken(ctx, name, id)
	if err != nil {
		return Allowance{}, err
	}
	if taken {
		return Allowance{}, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	return Allowance{
		Name:        name,
		Kind:        kind,
		Percentage:  input.Percentage,
		Amount:      input.Amount,
		Description: strings.TrimSpace(input.Description),
		IsActive:    active,
	}, nil
}

// ListAllowancesByIDs returns the active, non-deleted allowances among ids.
func (s *Service) ListAllowancesByIDs(ctx context.Context, ids []string) ([]payroll.AllowanceRule, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.store.ListAllowancesByIDs(ctx, ids)
}

// KnownAllowanceIDs keeps the ids of non-deleted allowances, in input order.
func (s *Service) KnownAllowanceIDs(ctx context.Context, ids []string) ([]string, error) {
	existing, err := s.store.ExistingAllowanceIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return keepOrder(ids, existing), nil
}

// KnownDeductionIDs keeps the ids present in the Other deduction container.
func (s *Service) KnownDeductionIDs(ctx context.Context, ids []string) ([]string, error) {
	container, err := s.store.FetchCategory(ctx, payroll.CategoryOther)
	if errors.Is(err, payroll.ErrCategoryNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	set, err := container.OtherRules()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := set.Get(id); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func keepOrder(ids, existing []string) []string {
	found := make(map[string]bool, len(existing))
	for _, id := range existing {
		found[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if found[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *Service) FetchCategory(ctx context.Context, category payroll.Category) (payroll.DeductionCategory, error) {
	return s.store.FetchCategory(ctx, category)
}

func (s *Service) ListCategories(ctx context.Context) ([]payroll.DeductionCategory, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, raw string) (payroll.DeductionCategory, error) {
	category, err := payroll.ParseCategory(raw)
	if err != nil {
		return payroll.DeductionCategory{}, err
	}
	return s.store.FetchCategory(ctx, category)
}

// AppendRules validates every item of data against the category's rule shape
// and adds them to the container. Items without an id get a fresh one; an
// item whose id already exists replaces that entry in place.
func (s *Service) AppendRules(ctx context.Context, raw string, data json.RawMessage) (payroll.DeductionCategory, error) {
	category, err := payroll.ParseCategory(raw)
	if err != nil {
		return payroll.DeductionCategory{}, err
	}
	items, err := splitItems(data)
	if err != nil {
		return payroll.DeductionCategory{}, &ValidationError{Issues: []Issue{{Field: "data", Reason: err.Error()}}}
	}
	if len(items) == 0 {
		return payroll.DeductionCategory{}, &ValidationError{Issues: []Issue{{Field: "data", Reason: "must contain at least one rule"}}}
	}

	var apply func(*payroll.DeductionCategory) error
	var list issues
	switch category {
	case payroll.CategoryTax:
		rules := make([]payroll.TaxRule, 0, len(items))
		for i, item := range items {
			if rule, ok := decodeTaxRule(item, itemField(i), &list); ok {
				rule.ID = ensureID(rule.ID)
				rules = append(rules, rule)
			}
		}
		apply = func(c *payroll.DeductionCategory) error { return putRules(c, c.TaxRules, rules) }
	case payroll.CategoryPension:
		rules := make([]payroll.PensionRule, 0, len(items))
		for i, item := range items {
			if rule, ok := decodePensionRule(item, itemField(i), &list); ok {
				rule.ID = ensureID(rule.ID)
				rules = append(rules, rule)
			}
		}
		apply = func(c *payroll.DeductionCategory) error { return putRules(c, c.PensionRules, rules) }
	case payroll.CategoryOther:
		rules := make([]payroll.OtherRule, 0, len(items))
		for i, item := range items {
			if rule, ok := decodeOtherRule(item, itemField(i), &list); ok {
				rule.ID = ensureID(rule.ID)
				rules = append(rules, rule)
			}
		}
		apply = func(c *payroll.DeductionCategory) error { return putRules(c, c.OtherRules, rules) }
	}
	if err := list.err(); err != nil {
		return payroll.DeductionCategory{}, err
	}

	updated, err := s.store.UpdateCategory(ctx, category, apply)
	if err != nil {
		return payroll.DeductionCategory{}, err
	}
	zerolog.Ctx(ctx).Info().Str("category", string(category)).Int("rules", len(items)).Msg("deduction rules appended")
	return updated, nil
}

// UpdateRule merges patch onto the rule with ruleID and revalidates the
// merged entry. The rule keeps its id and position.
func (s *Service) UpdateRule(ctx context.Context, raw, ruleID string, patch json.RawMessage) (payroll.DeductionCategory, error) {
	category, err := payroll.ParseCategory(raw)
	if err != nil {
		return payroll.DeductionCategory{}, err
	}
	return s.store.UpdateCategory(ctx, category, func(c *payroll.DeductionCategory) error {
		var list issues
		switch category {
		case payroll.CategoryTax:
			return mergeInto(c, c.TaxRules, ruleID, patch, &list, decodeTaxRule)
		case payroll.CategoryPension:
			return mergeInto(c, c.PensionRules, ruleID, patch, &list, decodePensionRule)
		default:
			return mergeInto(c, c.OtherRules, ruleID, patch, &list, decodeOtherRule)
		}
	})
}

func (s *Service) DeleteRule(ctx context.Context, raw, ruleID string) (payroll.DeductionCategory, error) {
	category, err := payroll.ParseCategory(raw)
	if err != nil {
		return payroll.DeductionCategory{}, err
	}
	return s.store.UpdateCategory(ctx, category, func(c *payroll.DeductionCategory) error {
		switch category {
		case payroll.CategoryTax:
			return deleteRule(c, c.TaxRules, ruleID)
		case payroll.CategoryPension:
			return deleteRule(c, c.PensionRules, ruleID)
		default:
			return deleteRule(c, c.OtherRules, ruleID)
		}
	})
}

func itemField(index int) string {
	return fmt.Sprintf("data[%d]", index)
}

func putRules[T payroll.Identified](c *payroll.DeductionCategory, load func() (*payroll.RuleSet[T], error), rules []T) error {
	set, err := load()
	if err != nil {
		return err
	}
	for _, rule := range rules {
		set.Put(rule)
	}
	return payroll.SetData(c, set)
}

func mergeInto[T payroll.Identified](
	c *payroll.DeductionCategory,
	load func() (*payroll.RuleSet[T], error),
	ruleID string,
	patch json.RawMessage,
	list *issues,
	decode func(json.RawMessage, string, *issues) (T, bool),
) error {
	set, err := load()
	if err != nil {
		return err
	}
	existing, ok := set.Get(ruleID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}
	merged, err := mergeRule(existing, patch)
	if err != nil {
		return &ValidationError{Issues: []Issue{{Field: "data", Reason: err.Error()}}}
	}
	rule, ok := decode(merged, "data", list)
	if !ok {
		return list.err()
	}
	if rule.RuleID() != ruleID {
		return &ValidationError{Issues: []Issue{{Field: "data.id", Reason: "cannot be changed"}}}
	}
	set.Put(rule)
	return payroll.SetData(c, set)
}

func deleteRule[T payroll.Identified](c *payroll.DeductionCategory, load func() (*payroll.RuleSet[T], error), ruleID string) error {
	set, err := load()
	if err != nil {
		return err
	}
	if !set.Delete(ruleID) {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}
	return payroll.SetData(c, set)
}

// AsValidation unwraps the field issues carried by err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
