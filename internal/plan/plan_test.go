// AngelaMos | 2026
// plan_test.go

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auramanager/aura-api/internal/core"
)

func TestPrice(t *testing.T) {
	cents, err := Price(TierCreator, CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, int64(999), cents)

	cents, err = Price(TierPro, CycleYearly)
	require.NoError(t, err)
	assert.Equal(t, int64(19900), cents)

	_, err = Price("platinum", CycleMonthly)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = Price(TierPro, "weekly")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestPlatformLimit(t *testing.T) {
	assert.Equal(t, 1, PlatformLimit(TierFree))
	assert.Equal(t, 3, PlatformLimit(TierCreator))
	assert.Equal(t, Unlimited, PlatformLimit(TierPro))
	assert.Equal(t, 1, PlatformLimit("unknown"))
}

func TestAllowsConnections(t *testing.T) {
	assert.True(t, AllowsConnections(TierFree, 1))
	assert.False(t, AllowsConnections(TierFree, 2))
	assert.True(t, AllowsConnections(TierCreator, 3))
	assert.False(t, AllowsConnections(TierCreator, 4))
	assert.True(t, AllowsConnections(TierPro, 50))
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	p, ok := Lookup(" Creator ")
	require.True(t, ok)
	assert.Equal(t, TierCreator, p.Tier)
}

func TestAllReturnsCopy(t *testing.T) {
	plans := All()
	plans[0].Name = "changed"

	p, _ := Lookup(TierFree)
	assert.Equal(t, "Free", p.Name)
}

func TestRank(t *testing.T) {
	assert.Less(t, Rank(TierFree), Rank(TierCreator))
	assert.Less(t, Rank(TierCreator), Rank(TierPro))
}
