// Package tutorial contains the static, localized content of the app:
// Block Kit messages, Home tab pages, modals, select menu options,
// and the HTML pages of the OAuth installation flow.
package tutorial

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embeddedLocalesFS embed.FS

// DefaultLanguage is the fallback for unsupported or unspecified languages.
var DefaultLanguage = language.Japanese

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog stores all the messages of a single locale.
type Catalog struct {
	tag       language.Tag
	messages  map[string]string
	templates map[string]*template.Template
}

// Bundle contains all the locale catalogs, and matches languages to them.
type Bundle struct {
	catalogs []*Catalog // The default language is always first.
	matcher  language.Matcher
}

// LoadEmbedded loads the catalog files that are embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedLocalesFS)
}

// LoadFromFS loads "locales/*.yaml" catalog files from the given filesystem.
// All the catalogs must define exactly the same set of message keys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, errors.New("no catalog files found")
	}
	slices.Sort(paths)

	var catalogs []*Catalog
	for _, path := range paths {
		c, err := loadCatalog(fsys, path)
		if err != nil {
			return nil, err
		}
		if c.tag == DefaultLanguage {
			catalogs = slices.Insert(catalogs, 0, c)
		} else {
			catalogs = append(catalogs, c)
		}
	}

	if catalogs[0].tag != DefaultLanguage {
		return nil, fmt.Errorf("default locale %q is not defined in catalogs", DefaultLanguage)
	}

	want := slices.Sorted(maps.Keys(catalogs[0].messages))
	tags := make([]language.Tag, 0, len(catalogs))
	for _, c := range catalogs {
		if got := slices.Sorted(maps.Keys(c.messages)); !slices.Equal(got, want) {
			return nil, fmt.Errorf("catalog %q keys differ from default locale %q", c.tag, DefaultLanguage)
		}
		tags = append(tags, c.tag)
	}

	return &Bundle{catalogs: catalogs, matcher: language.NewMatcher(tags)}, nil
}

func loadCatalog(fsys fs.FS, path string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	f := new(catalogFile)
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if f.Locale == "" {
		return nil, fmt.Errorf("catalog %s: locale is required", path)
	}
	if len(f.Messages) == 0 {
		return nil, fmt.Errorf("catalog %s: messages map is required", path)
	}

	tag, err := language.Parse(f.Locale)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: invalid locale %q: %w", path, f.Locale, err)
	}

	c := &Catalog{tag: tag, messages: f.Messages, templates: map[string]*template.Template{}}
	for k, v := range f.Messages {
		if !strings.Contains(v, "{{") {
			continue
		}
		t, err := template.New(k).Option("missingkey=error").Parse(v)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: invalid message %q: %w", path, k, err)
		}
		c.templates[k] = t
	}

	return c, nil
}

// Tags returns the supported languages, starting with the default one.
func (b *Bundle) Tags() []language.Tag {
	tags := make([]language.Tag, 0, len(b.catalogs))
	for _, c := range b.catalogs {
		tags = append(tags, c.tag)
	}
	return tags
}

// Match returns the catalog that best matches the given language
// preferences, or the default language's catalog if none of them match.
func (b *Bundle) Match(tags ...language.Tag) *Catalog {
	_, i, conf := b.matcher.Match(tags...)
	if conf == language.No {
		return b.catalogs[0]
	}
	return b.catalogs[i]
}

// Lookup parses the given BCP 47 language string and returns its best match.
// Empty and malformed strings fall back to the default language.
func (b *Bundle) Lookup(lang string) *Catalog {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return b.catalogs[0]
	}
	return b.Match(tag)
}

// Tag returns the catalog's language.
func (c *Catalog) Tag() language.Tag {
	return c.tag
}

// Text returns a message as-is. Unknown keys are returned as their own text.
func (c *Catalog) Text(key string) string {
	if s, ok := c.messages[key]; ok {
		return s
	}
	log.Warn().Str("locale", c.tag.String()).Str("key", key).Msg("missing message in catalog")
	return key
}

// Format executes a message template with the given data. If the message isn't
// a template, or if its execution fails, this function returns the raw message.
func (c *Catalog) Format(key string, data any) string {
	t, ok := c.templates[key]
	if !ok {
		return c.Text(key)
	}

	sb := new(strings.Builder)
	if err := t.Execute(sb, data); err != nil {
		log.Warn().Err(err).Str("locale", c.tag.String()).Str("key", key).Msg("failed to format message")
		return c.messages[key]
	}
	return sb.String()
}
