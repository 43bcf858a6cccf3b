package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed templates
var templateFS embed.FS

// TemplateSet holds all parsed page templates
// Each page is stored as a completely separate template.Template
// to avoid {{define "content"}} block collisions
type TemplateSet struct {
	pages map[string]*template.Template
	mu    sync.RWMutex
}

// Execute renders the specified page template
// pageName should be the filename like "login.html"
// This method always executes the "base" layout, which will use the
// {{define "content"}}, {{define "title"}}, etc. blocks from the specific page
func (ts *TemplateSet) Execute(w io.Writer, pageName string, data interface{}) error {
	ts.mu.RLock()
	tmpl, ok := ts.pages[pageName]
	ts.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template %q not found", pageName)
	}

	// Each page's template set has its own isolated "content", "title", etc.
	// definitions that were parsed together with base+components, so there's
	// no collision between pages
	return tmpl.ExecuteTemplate(w, "base", data)
}

// Has checks if a template exists
func (ts *TemplateSet) Has(pageName string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	_, ok := ts.pages[pageName]
	return ok
}

// Names returns all available template names
func (ts *TemplateSet) Names() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	names := make([]string, 0, len(ts.pages))
	for name := range ts.pages {
		names = append(names, name)
	}
	return names
}

// LoadTemplates parses the embedded HTML templates with custom functions
// Returns a TemplateSet where each page is completely isolated
func LoadTemplates() (*TemplateSet, error) {
	funcMap := template.FuncMap{
		"renderMarkdown": Markdown,
		"initials": func(name string) string {
			if name == "" {
				return "?"
			}

			// Split on spaces and take first letter of each word
			words := strings.Fields(name)
			if len(words) == 0 {
				return "?"
			}

			var result strings.Builder
			for i, word := range words {
				if i >= 2 { // Maximum of 2 initials
					break
				}
				if len(word) > 0 {
					result.WriteString(strings.ToUpper(string(word[0])))
				}
			}

			if result.Len() == 0 {
				return "?"
			}

			return result.String()
		},
		"title": func(s string) string {
			if s == "" {
				return ""
			}
			// Simple title case: capitalize first letter and lowercase the rest
			return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
		},
	}

	baseFile := "templates/layouts/base.html"
	componentFiles, err := fs.Glob(templateFS, "templates/components/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list component templates: %w", err)
	}

	pageFiles, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list page templates: %w", err)
	}

	if len(pageFiles) == 0 {
		return nil, fmt.Errorf("no page templates embedded")
	}

	ts := &TemplateSet{
		pages: make(map[string]*template.Template),
	}

	// Parse each page into its OWN completely isolated template
	for _, pageFile := range pageFiles {
		pageName := path.Base(pageFile)

		// Build list of files: base + components + this page ONLY
		filesToParse := []string{baseFile}
		filesToParse = append(filesToParse, componentFiles...)
		filesToParse = append(filesToParse, pageFile)

		pageTemplate, err := template.New("base").Funcs(funcMap).ParseFS(templateFS, filesToParse...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", pageName, err)
		}

		ts.pages[pageName] = pageTemplate
	}

	return ts, nil
}
