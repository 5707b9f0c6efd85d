package payroll

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleIDs(rules []OtherRule) []string {
	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		ids = append(ids, rule.ID)
	}
	return ids
}

func TestRuleSetPutReplacesInPlace(t *testing.T) {
	set := NewRuleSet(fixedRule("a", "1"), fixedRule("b", "2"), fixedRule("c", "3"))
	set.Put(fixedRule("b", "20"))

	assert.Equal(t, []string{"a", "b", "c"}, ruleIDs(set.All()))
	rule, ok := set.Get("b")
	require.True(t, ok)
	assert.True(t, dec("20").Equal(rule.Amount))
}

func TestRuleSetDelete(t *testing.T) {
	set := NewRuleSet(fixedRule("a", "1"), fixedRule("b", "2"), fixedRule("c", "3"))
	assert.True(t, set.Delete("b"))
	assert.False(t, set.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, ruleIDs(set.All()))

	set.Put(fixedRule("b", "4"))
	assert.Equal(t, []string{"a", "c", "b"}, ruleIDs(set.All()))
}

func TestRuleSetSelectReportsMissing(t *testing.T) {
	set := NewRuleSet(fixedRule("a", "1"), fixedRule("b", "2"))
	selected, missing := set.Select([]string{"z", "b", "z", "a"})
	assert.Equal(t, []string{"a", "b"}, ruleIDs(selected))
	assert.Equal(t, []string{"z"}, missing)
}

func TestRuleSetNilIsEmpty(t *testing.T) {
	var set *RuleSet[OtherRule]
	assert.Equal(t, 0, set.Len())
	_, ok := set.First()
	assert.False(t, ok)
	selected, missing := set.Select([]string{"a"})
	assert.Empty(t, selected)
	assert.Equal(t, []string{"a"}, missing)
}

func TestRuleSetJSONKeepsCatalogOrder(t *testing.T) {
	raw := []byte(`[{"id":"p2","percentage":"3"},{"id":"p1","percentage":5},{"percentage":1}]`)
	var set RuleSet[PensionRule]
	require.NoError(t, json.Unmarshal(raw, &set))
	require.Equal(t, 3, set.Len())

	first, ok := set.First()
	require.True(t, ok)
	assert.Equal(t, "p2", first.ID)

	encoded, err := json.Marshal(&set)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "p1", decoded[1]["id"])
	assert.Equal(t, "", decoded[2]["id"])
}

func TestBoundJSON(t *testing.T) {
	var rule TaxRule
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t","minSalary":600,"maxSalary":"Unlimited","rate":10,"deduction":60}`), &rule))
	assert.Equal(t, Bound("600"), rule.MinSalary)
	assert.True(t, rule.MaxSalary.Unlimited())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"t","minSalary":"1650.5","maxSalary":null}`), &rule))
	minSalary, err := rule.MinSalary.Decimal()
	require.NoError(t, err)
	assert.True(t, dec("1650.5").Equal(minSalary))
	assert.True(t, rule.MaxSalary.Unlimited())

	encoded, err := json.Marshal(TaxRule{ID: "x", MinSalary: "0", MaxSalary: "", Rate: dec("10"), Deduction: dec("0")})
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"minSalary":0`)
	assert.Contains(t, string(encoded), `"maxSalary":null`)
}
