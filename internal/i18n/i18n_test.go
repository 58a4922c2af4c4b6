package i18n

import (
	"embed"
	"io/fs"
	"sort"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var testLocalesEmbed embed.FS

// testLocales is the sub-filesystem rooted at locales/
var testLocales, _ = fs.Sub(testLocalesEmbed, "locales")

func TestLocaleKeysSynchronized(t *testing.T) {
	// Load en.yaml
	enData, err := fs.ReadFile(testLocalesEmbed, "locales/en.yaml")
	require.NoError(t, err, "failed to read en.yaml")

	var enMap map[string]interface{}
	err = yaml.Unmarshal(enData, &enMap)
	require.NoError(t, err, "failed to parse en.yaml")

	// Load ko.yaml
	koData, err := fs.ReadFile(testLocalesEmbed, "locales/ko.yaml")
	require.NoError(t, err, "failed to read ko.yaml")

	var koMap map[string]interface{}
	err = yaml.Unmarshal(koData, &koMap)
	require.NoError(t, err, "failed to parse ko.yaml")

	// Extract all keys recursively
	enKeys := extractKeys(enMap, "")
	koKeys := extractKeys(koMap, "")

	sort.Strings(enKeys)
	sort.Strings(koKeys)

	// Find missing keys
	enSet := make(map[string]bool)
	for _, k := range enKeys {
		enSet[k] = true
	}

	koSet := make(map[string]bool)
	for _, k := range koKeys {
		koSet[k] = true
	}

	var missingInKo []string
	for _, k := range enKeys {
		if !koSet[k] {
			missingInKo = append(missingInKo, k)
		}
	}

	var missingInEn []string
	for _, k := range koKeys {
		if !enSet[k] {
			missingInEn = append(missingInEn, k)
		}
	}

	if len(missingInKo) > 0 {
		t.Errorf("Keys in en.yaml but missing in ko.yaml:\n%v", missingInKo)
	}

	if len(missingInEn) > 0 {
		t.Errorf("Keys in ko.yaml but missing in en.yaml:\n%v", missingInEn)
	}

	assert.Equal(t, enKeys, koKeys, "Locale files should have identical key structure")
}

func TestGet(t *testing.T) {
	tr, err := NewTranslatorFromFS(testLocales, "ko")
	require.NoError(t, err)

	tests := []struct {
		name     string
		lang     string
		key      string
		args     []interface{}
		expected string
	}{
		{
			name:     "existing key in ko",
			lang:     "ko",
			key:      "advisor.greeting",
			expected: "안녕하세요! 어떤 대학/학과를 목표로 하시나요?",
		},
		{
			name:     "existing key in en",
			lang:     "en",
			key:      "advisor.outcome.reach_with_merit",
			expected: "reach-with-merit",
		},
		{
			name:     "fallback to default lang",
			lang:     "fr", // non-existent language
			key:      "advisor.fallback_context",
			expected: "조건에 맞는 데이터가 없습니다. 일반적인 입시 조언을 제공합니다.",
		},
		{
			name:     "missing key returns key",
			lang:     "ko",
			key:      "nonexistent.key",
			expected: "nonexistent.key",
		},
		{
			name:     "empty lang uses default",
			lang:     "",
			key:      "advisor.quality.top",
			expected: "최상 (특목고)",
		},
		{
			name:     "format args",
			lang:     "ko",
			key:      "advisor.error_answer",
			args:     []interface{}{"timeout"},
			expected: "오류 발생: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tr.Get(tt.lang, tt.key, tt.args...)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHas(t *testing.T) {
	tr, err := NewTranslatorFromFS(testLocales, "ko")
	require.NoError(t, err)

	assert.True(t, tr.Has("en", "advisor.greeting"))
	assert.True(t, tr.Has("fr", "advisor.greeting"))
	assert.False(t, tr.Has("ko", "advisor.nope"))
}

func TestGetTemplate(t *testing.T) {
	dir := fstest.MapFS{
		"en.yaml": {Data: []byte("greet: \"Hi {{.Name}}\"\nbroken: \"{{.Name\"\n")},
	}
	tr, err := NewTranslatorFromFS(dir, "en")
	require.NoError(t, err)

	out, err := tr.GetTemplate("en", "greet", struct{ Name string }{"Minji"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Minji", out)

	// Cached template is reused with new data
	out, err = tr.GetTemplate("en", "greet", struct{ Name string }{"Jisoo"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Jisoo", out)

	_, err = tr.GetTemplate("en", "missing", nil)
	assert.ErrorContains(t, err, "not found")

	_, err = tr.GetTemplate("en", "broken", nil)
	assert.ErrorContains(t, err, "parse template")

	_, err = tr.GetTemplate("en", "greet", struct{ Other string }{"x"})
	assert.ErrorContains(t, err, "render template")
}

func TestNewTranslator_Embedded(t *testing.T) {
	tr, err := NewTranslator("ko")
	require.NoError(t, err)
	assert.Equal(t, "전체", tr.Get("ko", "advisor.any_label"))
	assert.Equal(t, "Any", tr.Get("en", "advisor.any_label"))
}

// extractKeys recursively extracts all keys from a nested map, using dot notation.
func extractKeys(m map[string]interface{}, prefix string) []string {
	var keys []string
	for k, v := range m {
		fullKey := k
		if prefix != "" {
			fullKey = prefix + "." + k
		}

		switch val := v.(type) {
		case map[string]interface{}:
			// Recurse into nested maps
			keys = append(keys, extractKeys(val, fullKey)...)
		default:
			// Leaf node - add the key
			keys = append(keys, fullKey)
		}
	}
	return keys
}
