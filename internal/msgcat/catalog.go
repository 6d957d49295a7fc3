package msgcat

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

const defaultFile = "messages.fr.yaml"

//go:embed messages.fr.yaml
var defaultFiles embed.FS

var funcs = template.FuncMap{
	// seconds renders milliseconds with a French decimal comma: 1500 -> "1,5".
	"seconds": func(ms int64) string {
		return frenchDecimal(float64(ms) / 1000)
	},
	"percent": func(ratio float64) string {
		return frenchDecimal(ratio*100) + " %"
	},
}

func frenchDecimal(v float64) string {
	return strings.Replace(fmt.Sprintf("%.1f", v), ".", ",", 1)
}

// Catalog holds the bot's message templates keyed by dotted path (trivia.result.right).
// Templates are compiled at load and executed with missingkey=error. A Catalog is read-only after New.
type Catalog struct {
	tpl map[string]*template.Template
}

// New compiles the embedded French messages, then overrides them with every *.yaml/*.yml file in dir.
// A key defined by two override files is an error.
func New(overrideDir string) (*Catalog, error) {
	raw, err := defaultFiles.ReadFile(defaultFile)
	if err != nil {
		return nil, fmt.Errorf("read embedded messages: %w", err)
	}
	texts, err := flatten(raw)
	if err != nil {
		return nil, fmt.Errorf("parse embedded messages: %w", err)
	}
	if dir := strings.TrimSpace(overrideDir); dir != "" {
		overrides, err := loadDir(dir)
		if err != nil {
			return nil, err
		}
		for k, v := range overrides {
			texts[k] = v
		}
	}

	c := &Catalog{tpl: make(map[string]*template.Template, len(texts))}
	for key, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		t, err := template.New(key).Option("missingkey=error").Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", key, err)
		}
		c.tpl[key] = t
	}
	return c, nil
}

func loadDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read message dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			if !e.IsDir() {
				files = append(files, e.Name())
			}
		}
	}
	slices.Sort(files)

	out := make(map[string]string)
	origin := make(map[string]string)
	for _, name := range files {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		flat, err := flatten(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		for k, v := range flat {
			if prev, dup := origin[k]; dup {
				return nil, fmt.Errorf("duplicate override key %q in %s and %s", k, prev, name)
			}
			origin[k] = name
			out[k] = v
		}
	}
	return out, nil
}

// flatten decodes a YAML document into dotted keys. Only string leaves are accepted.
func flatten(raw []byte) (map[string]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if len(root.Content) == 0 {
		return out, nil
	}
	return out, walk(root.Content[0], "", out)
}

func walk(n *yaml.Node, prefix string, out map[string]string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := walk(n.Content[i+1], key, out); err != nil {
				return err
			}
		}
		return nil
	case yaml.ScalarNode:
		if prefix == "" {
			return fmt.Errorf("line %d: value without key", n.Line)
		}
		if n.Tag == "!!null" {
			return nil
		}
		if n.Tag != "!!str" {
			return fmt.Errorf("line %d: %s must be a string, got %s", n.Line, prefix, n.Tag)
		}
		out[prefix] = n.Value
		return nil
	default:
		return fmt.Errorf("line %d: unsupported value at %s", n.Line, prefix)
	}
}

// Render executes the template for key.
func (c *Catalog) Render(key string, data any) (string, error) {
	t, ok := c.tpl[strings.TrimSpace(key)]
	if !ok {
		return "", fmt.Errorf("template not found: %s", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text renders key and returns fallback when the template is missing or fails.
func (c *Catalog) Text(key string, data any, fallback string) string {
	if c == nil {
		return fallback
	}
	out, err := c.Render(key, data)
	if err != nil {
		return fallback
	}
	return out
}

func (c *Catalog) Has(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.tpl[strings.TrimSpace(key)]
	return ok
}
