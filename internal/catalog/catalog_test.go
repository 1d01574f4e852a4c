package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/kioskinstall/internal/domain"
)

func TestDefault(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	assert.Len(t, d.List(), 5)
	assert.Equal(t, []string{"North District", "South District", "East District", "West District"}, d.Districts())

	s, err := d.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Grand Central Kiosk", s.StoreName)
	assert.Equal(t, "101", s.StoreNumber)
}

func TestGetUnknown(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	_, err = d.Get("999")
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestByDistrict(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	north := d.ByDistrict("North District")
	require.Len(t, north, 2)
	assert.Equal(t, "Grand Central Kiosk", north[0].StoreName)
	assert.Equal(t, "Uptown Mall Kiosk", north[1].StoreName)
	assert.Empty(t, d.ByDistrict("Nowhere"))
}

func TestListReturnsCopy(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	list := d.List()
	list[0].StoreName = "mutated"

	s, err := d.Get(list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Grand Central Kiosk", s.StoreName)
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	_, err := Load(strings.NewReader(`
[[stores]]
id = "1"
store_name = "A"
[[stores]]
id = "1"
store_name = "B"
`))
	assert.Error(t, err)
}

func TestNewRejectsMissingID(t *testing.T) {
	_, err := New([]domain.Store{{StoreName: "nameless"}})
	assert.Error(t, err)
}
