package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validListing() *Listing {
	return &Listing{
		Title:       "Desk lamp",
		Description: "Warm white lamp, works perfectly, pickup only",
		Price:       0,
		Category:    CategoryFurniture,
		Condition:   ConditionGood,
		Images:      []string{"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"},
	}
}

func TestParseListingStatusIsCaseInsensitive(t *testing.T) {
	for _, in := range []string{"available", "AVAILABLE", " Available "} {
		st, ok := ParseListingStatus(in)
		require.True(t, ok, in)
		assert.Equal(t, ListingAvailable, st)
	}
	_, ok := ParseListingStatus("requested")
	assert.False(t, ok, "requested is derived, never a stored status")
}

func TestParseEnums(t *testing.T) {
	c, ok := ParseCategory("Electronics_Gadgets")
	require.True(t, ok)
	assert.Equal(t, CategoryElectronics, c)

	_, ok = ParseCategory("cars")
	assert.False(t, ok)

	cond, ok := ParseCondition("BRAND_NEW")
	require.True(t, ok)
	assert.Equal(t, ConditionBrandNew, cond)

	rs, ok := ParseReservationStatus("Confirmed")
	require.True(t, ok)
	assert.Equal(t, ReservationConfirmed, rs)
}

func TestDeriveState(t *testing.T) {
	assert.Equal(t, StateAvailable, DeriveState(ListingAvailable, 0))
	assert.Equal(t, StateRequested, DeriveState(ListingAvailable, 2))
	assert.Equal(t, StateReserved, DeriveState(ListingReserved, 3))
	assert.Equal(t, StateSold, DeriveState(ListingSold, 0))
}

func TestValidateListingAcceptsValid(t *testing.T) {
	assert.Empty(t, ValidateListing(validListing()))
}

func TestValidateListingReportsEachField(t *testing.T) {
	l := validListing()
	l.Title = strings.Repeat("x", TitleMaxChars+1)
	l.Description = "too short"
	l.Price = -1
	l.Category = "cars"
	l.Condition = "mint"
	l.Images = []string{"https://img.example.com/only.jpg"}

	problems := ValidateListing(l)
	for _, field := range []string{"title", "description", "price", "category", "condition", "images"} {
		assert.Contains(t, problems, field)
	}
}

func TestValidateListingImageBounds(t *testing.T) {
	l := validListing()
	l.Images = make([]string, MaxImages+1)
	for i := range l.Images {
		l.Images[i] = "https://img.example.com/x.jpg"
	}
	assert.Contains(t, ValidateListing(l), "images")

	l.Images = []string{"https://img.example.com/1.jpg", "ftp://img.example.com/2.jpg"}
	assert.Contains(t, ValidateListing(l), "images")
}

func TestValidateListingDescriptionWordLimit(t *testing.T) {
	l := validListing()
	l.Description = strings.TrimSpace(strings.Repeat("word ", DescriptionMaxWords))
	assert.NotContains(t, ValidateListing(l), "description")

	l.Description += " extra"
	assert.Contains(t, ValidateListing(l), "description")
}

func TestValidateListingByteLimits(t *testing.T) {
	l := validListing()
	long := strings.Repeat("x", 100)
	l.Description = strings.TrimSpace(strings.Repeat(long+" ", 100))
	require.Greater(t, len(l.Description), DescriptionMaxBytes)
	assert.Contains(t, ValidateListing(l), "description")

	l = validListing()
	l.Images[1] = "https://img.example.com/" + strings.Repeat("a", MaxImageURLChars)
	assert.Contains(t, ValidateListing(l), "images")

	l.Images[1] = "https://img.example.com/" + strings.Repeat("a", MaxImageURLChars-len("https://img.example.com/"))
	assert.NotContains(t, ValidateListing(l), "images")
}

func TestNormalizeListing(t *testing.T) {
	l := validListing()
	l.Title = "  Lamp  "
	l.Category = "FURNITURE"
	l.Tags = []string{"Desk", "desk", " Light "}

	NormalizeListing(l)

	assert.Equal(t, "Lamp", l.Title)
	assert.Equal(t, CategoryFurniture, l.Category)
	assert.Equal(t, []string{"desk", "light"}, l.Tags)
}

func TestCloneKeepsEmptyTags(t *testing.T) {
	l := validListing()
	l.Tags = []string{}
	c := l.Clone()
	assert.NotNil(t, c.Tags)
	c.Images[0] = "changed"
	assert.NotEqual(t, "changed", l.Images[0])
}
