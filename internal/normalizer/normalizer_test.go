package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flexFloat(v float64) *FlexFloat {
	f := FlexFloat(v)
	return &f
}

func TestNormalize_Minimal(t *testing.T) {
	n := New("RUB")

	p, err := n.Normalize(&RawProduct{
		Source: "ozon",
		ID:     "oz-1",
		Title:  "Беспроводные наушники",
		Price:  flexFloat(1999),
	})
	require.NoError(t, err)

	assert.Equal(t, "ozon", p.Source)
	assert.Equal(t, 1999.0, p.Price)
	assert.Equal(t, "RUB", p.Currency, "default currency filled in")
	assert.True(t, p.Availability, "availability defaults to true")
	assert.Equal(t, "besprovodnye-naushniki", p.Slug, "slug generated from the title")
	assert.False(t, p.ScrapedAt.IsZero(), "scraped_at defaults to now")
}

func TestNormalize_MissingRequiredFields(t *testing.T) {
	n := New("RUB")

	_, err := n.Normalize(&RawProduct{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source is required")
	assert.Contains(t, err.Error(), "id is required")
	assert.Contains(t, err.Error(), "title is required")
	assert.Contains(t, err.Error(), "price is required")
}

func TestNormalize_ExplicitValuesKept(t *testing.T) {
	n := New("RUB")

	avail := false
	p, err := n.Normalize(&RawProduct{
		Source:       "wildberries",
		ID:           "wb-1",
		Title:        "Thing",
		Slug:         "custom-slug",
		Price:        flexFloat(100),
		Currency:     "USD",
		Availability: &avail,
	})
	require.NoError(t, err)

	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "custom-slug", p.Slug)
	assert.False(t, p.Availability)
}

func TestNormalize_FutureScrapedAtClamped(t *testing.T) {
	n := New("RUB")

	future := FlexTime(time.Now().UTC().Add(48 * time.Hour))
	p, err := n.Normalize(&RawProduct{
		Source:    "ozon",
		ID:        "oz-1",
		Title:     "Thing",
		Price:     flexFloat(100),
		ScrapedAt: &future,
	})
	require.NoError(t, err)

	assert.False(t, p.ScrapedAt.After(time.Now().UTC()))
}

func TestNormalize_OptionalNumericFields(t *testing.T) {
	n := New("RUB")

	orig := FlexFloat(2499)
	rating := FlexFloat(4.5)
	reviews := FlexInt(120)
	p, err := n.Normalize(&RawProduct{
		Source:        "ozon",
		ID:            "oz-1",
		Title:         "Thing",
		Price:         flexFloat(1999),
		OriginalPrice: &orig,
		Rating:        &rating,
		ReviewsCount:  &reviews,
	})
	require.NoError(t, err)

	require.NotNil(t, p.OriginalPrice)
	assert.Equal(t, 2499.0, *p.OriginalPrice)
	require.NotNil(t, p.Rating)
	assert.Equal(t, 4.5, *p.Rating)
	require.NotNil(t, p.ReviewsCount)
	assert.Equal(t, 120, *p.ReviewsCount)
}

func TestRawProduct_DecodesMessyPayloads(t *testing.T) {
	// Prices as strings with RU formatting, rating as a string, epoch
	// seconds for scraped_at.
	payload := `{
		"source": "wildberries",
		"id": "wb-42",
		"title": "Чайник",
		"price": "1 299,00",
		"rating": "4,7",
		"reviews_count": "120",
		"scraped_at": 1756000000
	}`

	var raw RawProduct
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	assert.Equal(t, FlexFloat(1299), *raw.Price)
	assert.Equal(t, FlexFloat(4.7), *raw.Rating)
	assert.Equal(t, FlexInt(120), *raw.ReviewsCount)
	assert.Equal(t, 2025, time.Time(*raw.ScrapedAt).Year())
}

func TestFlexFloat_Variants(t *testing.T) {
	cases := map[string]float64{
		`123`:        123,
		`123.45`:     123.45,
		`"123.45"`:   123.45,
		`"123,45"`:   123.45,
		`"1 234,50"`: 1234.50,
	}
	for in, want := range cases {
		var f FlexFloat
		require.NoError(t, json.Unmarshal([]byte(in), &f), in)
		assert.Equal(t, FlexFloat(want), f, in)
	}

	var f FlexFloat
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &f))
	assert.Error(t, json.Unmarshal([]byte(`true`), &f))

	// strconv parses these, but a non-finite price is garbage and +Inf in a
	// stored product breaks response encoding later.
	for _, in := range []string{`"NaN"`, `"Inf"`, `"-Inf"`, `"Infinity"`} {
		assert.Error(t, json.Unmarshal([]byte(in), &f), in)
	}
}

func TestFlexInt_Variants(t *testing.T) {
	var n FlexInt
	require.NoError(t, json.Unmarshal([]byte(`42`), &n))
	assert.Equal(t, FlexInt(42), n)

	require.NoError(t, json.Unmarshal([]byte(`" 42 "`), &n))
	assert.Equal(t, FlexInt(42), n)

	assert.Error(t, json.Unmarshal([]byte(`"4.2"`), &n))
}

func TestFlexTime_Variants(t *testing.T) {
	var ts FlexTime

	require.NoError(t, json.Unmarshal([]byte(`"2026-08-30T12:00:00Z"`), &ts))
	assert.Equal(t, 2026, time.Time(ts).Year())

	// Epoch seconds.
	require.NoError(t, json.Unmarshal([]byte(`1756000000`), &ts))
	assert.Equal(t, 2025, time.Time(ts).Year())

	// Epoch millis.
	require.NoError(t, json.Unmarshal([]byte(`1756000000000`), &ts))
	assert.Equal(t, 2025, time.Time(ts).Year())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
