package payroll

import (
	"encoding/json"
	"strconv"
)

// Identified is implemented by every catalog rule.
type Identified interface {
	RuleID() string
}

// RuleSet is an ordered collection of rules keyed by id. Lookups, in-place
// updates and deletes are O(1); iteration follows catalog order. It is
// persisted as a plain JSON list.
type RuleSet[T Identified] struct {
	order []string
	byKey map[string]T
	anon  int
}

func NewRuleSet[T Identified](rules ...T) *RuleSet[T] {
	set := &RuleSet[T]{byKey: make(map[string]T, len(rules))}
	for _, rule := range rules {
		set.Put(rule)
	}
	return set
}

func (s *RuleSet[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *RuleSet[T]) Get(id string) (T, bool) {
	var zero T
	if s == nil || id == "" {
		return zero, false
	}
	rule, ok := s.byKey[id]
	return rule, ok
}

// Put appends a new rule or replaces an existing one in place. Rules without an
// id are kept in order but cannot be addressed.
func (s *RuleSet[T]) Put(rule T) {
	if s.byKey == nil {
		s.byKey = map[string]T{}
	}
	key := rule.RuleID()
	if key == "" {
		s.anon++
		key = "\x00" + strconv.Itoa(s.anon)
	}
	if _, exists := s.byKey[key]; !exists {
		s.order = append(s.order, key)
	}
	s.byKey[key] = rule
}

func (s *RuleSet[T]) Delete(id string) bool {
	if s == nil || id == "" {
		return false
	}
	if _, ok := s.byKey[id]; !ok {
		return false
	}
	delete(s.byKey, id)
	for i, key := range s.order {
		if key == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *RuleSet[T]) First() (T, bool) {
	var zero T
	if s.Len() == 0 {
		return zero, false
	}
	return s.byKey[s.order[0]], true
}

// All returns the rules in catalog order.
func (s *RuleSet[T]) All() []T {
	out := make([]T, 0, s.Len())
	if s == nil {
		return out
	}
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out
}

// Select returns the rules whose id is in ids, in catalog order, plus the
// requested ids that matched nothing (deduplicated, in request order).
func (s *RuleSet[T]) Select(ids []string) ([]T, []string) {
	wanted := make(map[string]struct{}, len(ids))
	var missing []string
	for _, id := range ids {
		if _, seen := wanted[id]; seen {
			continue
		}
		wanted[id] = struct{}{}
		if _, ok := s.Get(id); !ok {
			missing = append(missing, id)
		}
	}

	selected := make([]T, 0, len(wanted))
	if s == nil {
		return selected, missing
	}
	for _, key := range s.order {
		if _, ok := wanted[key]; ok {
			selected = append(selected, s.byKey[key])
		}
	}
	return selected, missing
}

func (s *RuleSet[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.All())
}

func (s *RuleSet[T]) UnmarshalJSON(data []byte) error {
	var rules []T
	if err := json.Unmarshal(data, &rules); err != nil {
		return err
	}
	*s = RuleSet[T]{byKey: make(map[string]T, len(rules))}
	for _, rule := range rules {
		s.Put(rule)
	}
	return nil
}
