package render

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoadTemplates(t *testing.T) {
	ts, err := LoadTemplates()
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	if ts == nil {
		t.Fatal("Expected templates to be loaded, got nil")
	}

	names := ts.Names()
	if len(names) == 0 {
		t.Fatal("Expected at least one template to be loaded")
	}

	// Check for required page templates
	requiredTemplates := []string{
		"home.html",
		"login.html",
	}

	for _, required := range requiredTemplates {
		if !ts.Has(required) {
			t.Errorf("Expected template %q to be loaded, but it wasn't found", required)
		}
	}
}

func TestTemplateNamesNonEmpty(t *testing.T) {
	ts, err := LoadTemplates()
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	for _, name := range ts.Names() {
		if name == "" {
			t.Errorf("Found empty template name")
		}
	}
}

func TestExecuteUnknownTemplate(t *testing.T) {
	ts, err := LoadTemplates()
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	var buf bytes.Buffer
	if err := ts.Execute(&buf, "missing.html", nil); err == nil {
		t.Error("Expected error executing unknown template, got nil")
	}
}

func TestLoginPageRenders(t *testing.T) {
	ts, err := LoadTemplates()
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	var buf bytes.Buffer
	data := map[string]interface{}{
		"Account":     nil,
		"CurrentPage": "login",
		"Providers":   []string{"github", "google"},
		"Error":       "Sign-in failed. Please try again.",
		"Notice":      "Accounts are **invite only**.",
	}

	if err := ts.Execute(&buf, "login.html", data); err != nil {
		t.Fatalf("Failed to execute login.html template: %v", err)
	}

	rendered := buf.String()

	// Provider buttons link to the start-login endpoints
	expected := []string{
		"Sign in - Gatekeeper",
		`href="/login/github"`,
		`href="/login/google"`,
		"Continue with Github",
		"Continue with Google",
		"Sign-in failed. Please try again.",
		"<strong>invite only</strong>", // notice passed through markdown
	}
	for _, want := range expected {
		if !strings.Contains(rendered, want) {
			t.Errorf("Expected login.html output to contain %q", want)
		}
	}
}

func TestLoginPagePreservesNext(t *testing.T) {
	ts, err := LoadTemplates()
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	var buf bytes.Buffer
	data := map[string]interface{}{
		"Account":     nil,
		"CurrentPage": "login",
		"Providers":   []string{"github"},
		"Next":        "/settings",
	}

	if err := ts.Execute(&buf, "login.html", data); err != nil {
		t.Fatalf("Failed to execute login.html template: %v", err)
	}

	if !strings.Contains(buf.String(), "/login/github?next=%2Fsettings") {
		t.Errorf("Expected provider link to carry the next target, got:\n%s", buf.String())
	}
}

func TestHomePageSignedOut(t *testing.T) {
	ts, err := LoadTemplates()
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	var buf bytes.Buffer
	data := map[string]interface{}{
		"Account":     nil,
		"CurrentPage": "home",
	}

	if err := ts.Execute(&buf, "home.html", data); err != nil {
		t.Fatalf("Failed to execute home.html template: %v", err)
	}

	rendered := buf.String()
	if !strings.Contains(rendered, `href="/login"`) {
		t.Error("Expected signed-out home page to link to /login")
	}
	// Content must come from home.html, not another page's blocks
	if strings.Contains(rendered, "Sign in - Gatekeeper") {
		t.Error("home.html rendered with login.html blocks; page isolation is broken")
	}
}

func TestHomePageSignedIn(t *testing.T) {
	ts, err := LoadTemplates()
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	email := "amal@example.com"
	account := map[string]interface{}{
		"Username":    "amal",
		"DisplayName": "Amal Haddad",
		"Email":       &email,
		"Role":        "user",
	}
	identities := []map[string]interface{}{
		{"Provider": "github", "DisplayName": "Amal Haddad"},
	}

	var buf bytes.Buffer
	data := map[string]interface{}{
		"Account":     account,
		"CurrentPage": "home",
		"Identities":  identities,
	}

	if err := ts.Execute(&buf, "home.html", data); err != nil {
		t.Fatalf("Failed to execute home.html template: %v", err)
	}

	rendered := buf.String()
	expected := []string{
		"Welcome, Amal Haddad",
		"amal@example.com",
		"Linked accounts",
		"Github as Amal Haddad",
		">AH<", // initials in the nav avatar
		`href="/logout"`,
	}
	for _, want := range expected {
		if !strings.Contains(rendered, want) {
			t.Errorf("Expected home.html output to contain %q", want)
		}
	}
}
