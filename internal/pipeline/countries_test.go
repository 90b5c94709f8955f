package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wine-trade-pipeline/internal/model"
)

func TestCanonicalCountryNamesIsACopy(t *testing.T) {
	t.Parallel()
	names := CanonicalCountryNames()
	require.NotEmpty(t, names)
	names["Russia"] = "changed"
	assert.Equal(t, "Rússia", CanonicalCountryNames()["Russia"])
}

func TestCanonicalizationIsTotal(t *testing.T) {
	t.Parallel()
	names := CanonicalCountryNames()
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	keys = append(keys, "Brasil", "Atlantida")

	tbl := model.NewTable(IndexLabel, make([]string, len(keys)))
	require.NoError(t, tbl.AddText(CountryLabel, keys))
	require.NoError(t, tbl.AddText("original", keys))

	out, err := ReplaceCountryNames(tbl, names)
	require.NoError(t, err)
	require.Equal(t, len(keys), out.Len())

	original, ok := out.Column("original")
	require.True(t, ok)
	for row, in := range original.Text {
		want, mapped := names[in]
		if !mapped {
			want = in
		}
		assert.Equal(t, want, out.Index[row], "row %d came from %q", row, in)
	}
	assert.Contains(t, out.Index, "Brasil")
	assert.Contains(t, out.Index, "Atlantida")
}

func TestReplaceCountryNamesRussia(t *testing.T) {
	t.Parallel()
	tbl := rawTable(t, []string{CountryLabel, "1990_quantity", "1990_dolars"},
		[]any{"Russia", 10.0, 100.0},
		[]any{"Brasil", 1.0, 2.0},
		[]any{"Republica Federativa da Russia", 5.0, 50.0},
	)

	out, err := ReplaceCountryNames(tbl, CanonicalCountryNames())
	require.NoError(t, err)

	// rows sharing a canonical name stay separate
	assert.Equal(t, CountryLabel, out.IndexName)
	assert.Equal(t, []string{"Brasil", "Rússia", "Rússia"}, out.Index)
	q, _ := out.Column("1990_quantity")
	assert.Equal(t, []float64{1, 10, 5}, q.Values)

	summed, err := SumCountries(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brasil", "Rússia"}, summed.Index)
}

func TestReplaceCountryNamesIndexedAndMissing(t *testing.T) {
	t.Parallel()
	indexed := model.NewTable(CountryLabel, []string{"Italia", "Chile"})
	require.NoError(t, indexed.AddNumeric("1990_quantity", []float64{1, 2}))
	out, err := ReplaceCountryNames(indexed, CanonicalCountryNames())
	require.NoError(t, err)
	assert.Equal(t, []string{"Chile", "Itália"}, out.Index)

	_, err = ReplaceCountryNames(yearPairs(t, "1990").Clone(), nil)
	require.NoError(t, err, "country index is accepted")

	noCountry := model.NewTable(IndexLabel, []string{"0"})
	require.NoError(t, noCountry.AddNumeric("1990_quantity", []float64{1}))
	_, err = ReplaceCountryNames(noCountry, CanonicalCountryNames())
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoadCountryNames(t *testing.T) {
	t.Parallel()
	extra, err := LoadCountryNames(strings.NewReader("name,canonical\n# local fixes\nHolanda ,Países Baixos\n\"Coreia, Norte\",Coreia do Norte\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Holanda": "Países Baixos", "Coreia, Norte": "Coreia do Norte"}, extra)

	merged := MergeCountryNames(CanonicalCountryNames(), extra)
	assert.Equal(t, "Países Baixos", CanonicalCountry(merged, "Holanda"))
	assert.Equal(t, "Rússia", CanonicalCountry(merged, " Russia "))
	assert.Equal(t, "Narnia", CanonicalCountry(merged, "Narnia"))

	_, err = LoadCountryNames(strings.NewReader("a,b,c\n"))
	require.Error(t, err)
}
