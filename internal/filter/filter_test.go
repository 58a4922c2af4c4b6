package filter

import (
	"testing"

	"github.com/runixer/ipsi/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var compiler = Compiler{InstitutionField: "학교명", TrackField: "전형"}

func testTracks() catalog.TrackVariantMap {
	m := make(catalog.TrackVariantMap)
	m.Add("학생부종합")
	m.Add("학생부 종합")
	m.Add("논술")
	return m
}

func TestCompile_AnyAny(t *testing.T) {
	f, err := compiler.Compile(Selection{Institution: Any, Track: Any}, testTracks())
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
	assert.Nil(t, f.Where())
	assert.Equal(t, "none", f.String())

	f, err = compiler.Compile(Selection{}, testTracks())
	require.NoError(t, err)
	assert.True(t, f.IsEmpty(), "empty selection means any")
}

func TestCompile_InstitutionOnly(t *testing.T) {
	f, err := compiler.Compile(Selection{Institution: "서울대", Track: Any}, testTracks())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"학교명": "서울대"}, f.Where())
	assert.Equal(t, `{"학교명":"서울대"}`, f.String())
}

func TestCompile_TrackSingleVariant(t *testing.T) {
	f, err := compiler.Compile(Selection{Institution: Any, Track: "논술"}, testTracks())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"전형": "논술"}, f.Where())
}

func TestCompile_TrackManyVariants(t *testing.T) {
	f, err := compiler.Compile(Selection{Institution: Any, Track: "학생부종합"}, testTracks())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"전형": map[string]any{"$in": []string{"학생부종합", "학생부 종합"}},
	}, f.Where())
}

func TestCompile_BothConstraintsConjoined(t *testing.T) {
	f, err := compiler.Compile(Selection{Institution: "서울대", Track: "학생부종합"}, testTracks())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"$and": []any{
			map[string]any{"학교명": "서울대"},
			map[string]any{"전형": map[string]any{"$in": []string{"학생부종합", "학생부 종합"}}},
		},
	}, f.Where())
}

func TestCompile_NeverSingleTermConjunction(t *testing.T) {
	for _, sel := range []Selection{
		{Institution: "서울대", Track: Any},
		{Institution: Any, Track: "논술"},
		{Institution: Any, Track: "학생부종합"},
	} {
		f, err := compiler.Compile(sel, testTracks())
		require.NoError(t, err)
		_, hasAnd := f.Where()["$and"]
		assert.False(t, hasAnd, sel.Describe())
	}
}

func TestCompile_UnknownTrack(t *testing.T) {
	_, err := compiler.Compile(Selection{Institution: "서울대", Track: "정시"}, testTracks())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTrack)
	assert.Contains(t, err.Error(), "정시")
}

func TestCompile_DoesNotAliasVariantMap(t *testing.T) {
	tracks := testTracks()
	f, err := compiler.Compile(Selection{Track: "학생부종합"}, tracks)
	require.NoError(t, err)

	f.Terms[0].Values[0] = "mutated"
	assert.Equal(t, "학생부종합", tracks["학생부종합"][0])
}

func TestFilter_Match(t *testing.T) {
	f, err := compiler.Compile(Selection{Institution: "서울대", Track: "학생부종합"}, testTracks())
	require.NoError(t, err)

	tests := []struct {
		name string
		meta map[string]any
		want bool
	}{
		{"exact variant", map[string]any{"학교명": "서울대", "전형": "학생부종합"}, true},
		{"spaced variant", map[string]any{"학교명": "서울대", "전형": "학생부 종합"}, true},
		{"other school", map[string]any{"학교명": "연세대", "전형": "학생부종합"}, false},
		{"other track", map[string]any{"학교명": "서울대", "전형": "논술"}, false},
		{"missing field", map[string]any{"학교명": "서울대"}, false},
		{"non-string value", map[string]any{"학교명": "서울대", "전형": 7}, false},
		{"nil metadata", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Match(tt.meta))
		})
	}

	assert.True(t, Filter{}.Match(nil), "empty filter matches everything")
}

func TestSelection_Describe(t *testing.T) {
	assert.Equal(t, "institution=any track=any", Selection{}.Describe())
	assert.Equal(t, "institution=서울대 track=논술", Selection{Institution: "서울대", Track: "논술"}.Describe())
}
