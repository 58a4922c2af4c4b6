package i18n

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var defaultLocalesFS embed.FS

type Translator struct {
	translations map[string]map[string]string // lang -> key -> value
	templates    map[string]*template.Template // lang + "/" + key -> parsed template
	defaultLang  string
	mu           sync.RWMutex
}

// NewTranslator creates a new Translator using the embedded locales.
func NewTranslator(defaultLang string) (*Translator, error) {
	subFS, err := fs.Sub(defaultLocalesFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to access embedded locales: %w", err)
	}
	return NewTranslatorFromFS(subFS, defaultLang)
}

// NewTranslatorFromFS creates a new Translator from a given filesystem.
// This is useful for testing or loading locales from a custom location.
func NewTranslatorFromFS(localesFS fs.FS, defaultLang string) (*Translator, error) {
	t := &Translator{
		translations: make(map[string]map[string]string),
		templates:    make(map[string]*template.Template),
		defaultLang:  defaultLang,
	}

	entries, err := fs.ReadDir(localesFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read locales directory: %w", err)
	}

	for _, f := range entries {
		if f.IsDir() {
			continue
		}
		ext := filepath.Ext(f.Name())
		if ext == ".yaml" || ext == ".yml" {
			lang := f.Name()[:len(f.Name())-len(ext)]
			content, err := fs.ReadFile(localesFS, f.Name())
			if err != nil {
				return nil, fmt.Errorf("failed to read locale file %s: %w", f.Name(), err)
			}

			// Nested YAML is flattened into dot-separated keys
			var data map[string]interface{}
			if err := yaml.Unmarshal(content, &data); err != nil {
				return nil, fmt.Errorf("failed to parse locale file %s: %w", f.Name(), err)
			}

			flatData := make(map[string]string)
			flatten("", data, flatData)
			t.translations[lang] = flatData
		}
	}

	return t, nil
}

func flatten(prefix string, src map[string]interface{}, dest map[string]string) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch child := v.(type) {
		case map[string]interface{}:
			flatten(key, child, dest)
		case string:
			dest[key] = child
		default:
			dest[key] = fmt.Sprintf("%v", v)
		}
	}
}

// lookup returns the raw value for key, falling back to the default language.
func (t *Translator) lookup(lang, key string) (string, string, bool) {
	if lang == "" {
		lang = t.defaultLang
	}
	if tr, ok := t.translations[lang]; ok {
		if v, ok := tr[key]; ok {
			return v, lang, true
		}
	}
	if lang != t.defaultLang {
		if tr, ok := t.translations[t.defaultLang]; ok {
			if v, ok := tr[key]; ok {
				return v, t.defaultLang, true
			}
		}
	}
	return key, lang, false
}

// Get returns the translation for key, formatted with args when given.
// A missing key is returned as is.
func (t *Translator) Get(lang, key string, args ...interface{}) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	val, _, _ := t.lookup(lang, key)
	if len(args) > 0 {
		return fmt.Sprintf(val, args...)
	}
	return val
}

// Has reports whether key exists in lang or the default language.
func (t *Translator) Has(lang, key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, _, ok := t.lookup(lang, key)
	return ok
}

// GetTemplate renders the translation for key as a text/template with data.
// Parsed templates are cached per language.
func (t *Translator) GetTemplate(lang, key string, data any) (string, error) {
	t.mu.RLock()
	val, resolvedLang, ok := t.lookup(lang, key)
	tmpl := t.templates[resolvedLang+"/"+key]
	t.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("translation key %q not found", key)
	}

	if tmpl == nil {
		parsed, err := template.New(key).Option("missingkey=error").Parse(val)
		if err != nil {
			return "", fmt.Errorf("parse template %q: %w", key, err)
		}
		t.mu.Lock()
		t.templates[resolvedLang+"/"+key] = parsed
		t.mu.Unlock()
		tmpl = parsed
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", key, err)
	}
	return buf.String(), nil
}
