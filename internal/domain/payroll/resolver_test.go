package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCategories struct {
	containers map[Category]DeductionCategory
	fetches    map[Category]int
	err        error
}

func newFakeCategories() *fakeCategories {
	return &fakeCategories{containers: map[Category]DeductionCategory{}, fetches: map[Category]int{}}
}

func (f *fakeCategories) FetchCategory(_ context.Context, category Category) (DeductionCategory, error) {
	f.fetches[category]++
	if f.err != nil {
		return DeductionCategory{}, f.err
	}
	container, ok := f.containers[category]
	if !ok {
		return DeductionCategory{}, ErrCategoryNotFound
	}
	return container, nil
}

func (f *fakeCategories) put(t *testing.T, category Category, active bool, rules any) {
	t.Helper()
	data, err := json.Marshal(rules)
	require.NoError(t, err)
	f.containers[category] = DeductionCategory{ID: string(category) + "-id", Type: category, IsActive: active, Data: data}
}

func seededCatalog(t *testing.T) *fakeCategories {
	store := newFakeCategories()
	store.put(t, CategoryTax, true, standardBrackets())
	store.put(t, CategoryPension, true, []PensionRule{{ID: "p1", Percentage: dec("5")}, {ID: "p2", Percentage: dec("99")}})
	store.put(t, CategoryOther, true, []OtherRule{fixedRule("A", "50"), percentageRule("B", "5")})
	return store
}

func TestResolveTaxReturnsWholeList(t *testing.T) {
	resolver := NewResolver(seededCatalog(t))
	res, err := resolver.Resolve(context.Background(), CategoryTax, []string{"ignored"})
	require.NoError(t, err)
	require.Len(t, res.Tax, 2)
	assert.Equal(t, "low", res.Tax[0].ID)
	assert.Equal(t, "high", res.Tax[1].ID)
}

func TestResolveMissingMandatoryCategoryIsConfigurationError(t *testing.T) {
	store := seededCatalog(t)
	delete(store.containers, CategoryPension)
	resolver := NewResolver(store)

	_, err := resolver.Resolve(context.Background(), CategoryPension, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigurationMissing))

	_, err = resolver.Snapshot(context.Background())
	assert.True(t, errors.Is(err, ErrConfigurationMissing))
}

func TestResolveStoreFailureIsNotConfigurationError(t *testing.T) {
	store := seededCatalog(t)
	store.err = errors.New("connection reset")
	_, err := NewResolver(store).Resolve(context.Background(), CategoryTax, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigurationMissing))
}

func TestResolveOtherDropsUnknownIDsInCatalogOrder(t *testing.T) {
	resolver := NewResolver(seededCatalog(t))
	res, err := resolver.Resolve(context.Background(), CategoryOther, []string{"B", "C", "A"})
	require.NoError(t, err)
	require.Len(t, res.Other, 2)
	assert.Equal(t, "A", res.Other[0].ID)
	assert.Equal(t, "B", res.Other[1].ID)
	assert.Equal(t, []string{"C"}, res.Dropped)

	out := Compute(Input{BasicSalary: dec("1000"), Other: res.Other})
	assert.True(t, dec("100").Equal(out.Deduction.Sum))
}

func TestResolveOtherOrderDoesNotChangeTotal(t *testing.T) {
	snapshot, err := NewResolver(seededCatalog(t)).Snapshot(context.Background())
	require.NoError(t, err)

	forward := snapshot.ResolveOther([]string{"A", "B"})
	backward := snapshot.ResolveOther([]string{"B", "A", "B"})
	assert.Equal(t, forward.Other, backward.Other)

	a := Compute(Input{BasicSalary: dec("777"), Other: forward.Other})
	b := Compute(Input{BasicSalary: dec("777"), Other: backward.Other})
	assert.True(t, a.Deduction.Sum.Equal(b.Deduction.Sum))
}

func TestResolveOtherSkipsInactiveRules(t *testing.T) {
	store := seededCatalog(t)
	off := fixedRule("OFF", "10")
	off.IsActive = false
	store.put(t, CategoryOther, true, []OtherRule{fixedRule("A", "50"), off})

	res, err := NewResolver(store).Resolve(context.Background(), CategoryOther, []string{"A", "OFF"})
	require.NoError(t, err)
	require.Len(t, res.Other, 1)
	assert.Equal(t, []string{"OFF"}, res.Inactive)
	assert.Empty(t, res.Dropped)
}

func TestResolveOtherWithoutContainerDropsEverything(t *testing.T) {
	store := seededCatalog(t)
	delete(store.containers, CategoryOther)
	res, err := NewResolver(store).Resolve(context.Background(), CategoryOther, []string{"A"})
	require.NoError(t, err)
	assert.Empty(t, res.Other)
	assert.Equal(t, []string{"A"}, res.Dropped)
}

func TestResolveInactiveMandatoryCategoryIsConfigurationError(t *testing.T) {
	for _, category := range []Category{CategoryTax, CategoryPension} {
		store := seededCatalog(t)
		container := store.containers[category]
		container.IsActive = false
		store.containers[category] = container
		resolver := NewResolver(store)

		_, err := resolver.Resolve(context.Background(), category, nil)
		assert.True(t, errors.Is(err, ErrConfigurationMissing), "category %s", category)

		_, err = resolver.Snapshot(context.Background())
		assert.True(t, errors.Is(err, ErrConfigurationMissing), "category %s", category)
	}
}

func TestResolveInactiveOtherContainerReportsDropped(t *testing.T) {
	store := seededCatalog(t)
	store.put(t, CategoryOther, false, []OtherRule{fixedRule("A", "50")})
	res, err := NewResolver(store).Resolve(context.Background(), CategoryOther, []string{"A"})
	require.NoError(t, err)
	assert.Empty(t, res.Other)
	assert.Equal(t, []string{"A"}, res.Dropped)
}

func TestSnapshotReadsEachContainerOnce(t *testing.T) {
	store := seededCatalog(t)
	snapshot, err := NewResolver(store).Snapshot(context.Background())
	require.NoError(t, err)
	for _, category := range Categories {
		assert.Equal(t, 1, store.fetches[category], "category %s", category)
	}
	assert.Len(t, snapshot.Pension, 2)
	assert.Equal(t, 2, snapshot.Other.Len())
}

func TestResolveUnknownCategory(t *testing.T) {
	_, err := NewResolver(seededCatalog(t)).Resolve(context.Background(), Category("Bonus"), nil)
	assert.True(t, errors.Is(err, ErrUnknownCategory))
}

func TestParseCategoryIsCaseInsensitive(t *testing.T) {
	category, err := ParseCategory("pension")
	require.NoError(t, err)
	assert.Equal(t, CategoryPension, category)

	_, err = ParseCategory("bonus")
	assert.True(t, errors.Is(err, ErrUnknownCategory))
}
