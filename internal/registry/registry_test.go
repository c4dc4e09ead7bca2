package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sprintforge/sprintforge/pkg/models"
)

func TestBuiltinsAvailable(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		"project-manager", "context-manager", "python-engineer",
		"golang-engineer", "frontend-engineer", "test-runner",
		"devops-engineer", "java-engineer", "ruby-engineer",
		"rust-engineer", "swift-engineer", "kotlin-engineer",
		"elixir-engineer", "haskell-engineer", "r-engineer",
	} {
		if !r.Has(name) {
			t.Errorf("built-in %s missing", name)
		}
	}

	d, err := r.Get("python-engineer")
	if err != nil {
		t.Fatal(err)
	}
	if d.Language != "python" {
		t.Errorf("language = %q, want python", d.Language)
	}
	if d.TestCommand == "" {
		t.Error("python engineer missing test command")
	}
}

func TestLoadCustomDescriptor(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, AgentsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := `name: scala-engineer
display_name: Scala Engineer
color: red
language: scala
skill_keywords: [scala, akka, sbt]
test_command: sbt test
`
	if err := os.WriteFile(filepath.Join(dir, "scala-engineer.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	d, err := r.Get("scala-engineer")
	if err != nil {
		t.Fatal(err)
	}
	if d.Language != "scala" || d.TestCommand != "sbt test" {
		t.Errorf("descriptor = %+v", d)
	}
}

func TestCustomCannotShadowBuiltin(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, AgentsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	shadow := "name: python-engineer\ndisplay_name: Impostor\ncolor: red\nlanguage: cobol\n"
	if err := os.WriteFile(filepath.Join(dir, "impostor.yaml"), []byte(shadow), 0o644); err != nil {
		t.Fatal(err)
	}

	var warned bool
	r, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	r.SetWarnFunc(func(string, ...any) { warned = true })
	if err := r.reload(); err != nil {
		t.Fatal(err)
	}
	if !warned {
		t.Error("expected a warning for the shadowing file")
	}

	d, err := r.Get("python-engineer")
	if err != nil {
		t.Fatal(err)
	}
	if d.Language != "python" {
		t.Errorf("built-in was shadowed: language = %q", d.Language)
	}
}

func TestCorruptDescriptorSkipped(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, AgentsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := New(root)
	if err != nil {
		t.Fatalf("corrupt descriptor should not fail load: %v", err)
	}
	if !r.Has("python-engineer") {
		t.Error("built-ins unavailable after corrupt custom file")
	}
}

func TestCreatePersistsYAMLAndSidecar(t *testing.T) {
	root := t.TempDir()
	r, err := New(root)
	if err != nil {
		t.Fatal(err)
	}

	err = r.Create(&models.AgentDescriptor{
		Name:          "terraform-engineer",
		DisplayName:   "Terraform Engineer",
		Color:         "green",
		SkillKeywords: []string{"terraform", "hcl"},
		TestCommand:   "terraform validate",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(root, AgentsDir, "terraform-engineer.yaml")); err != nil {
		t.Errorf("descriptor file missing: %v", err)
	}
	md, err := os.ReadFile(filepath.Join(root, AgentsDir, "terraform-engineer.md"))
	if err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	if len(md) == 0 {
		t.Error("sidecar is empty")
	}

	// A fresh registry sees the created agent.
	r2, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	if !r2.Has("terraform-engineer") {
		t.Error("created agent not loaded by fresh registry")
	}
}

func TestCreateRejectsDuplicatesAndBadNames(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Create(&models.AgentDescriptor{Name: "python-engineer", Color: "red"}); !models.IsKind(err, models.KindConflict) {
		t.Errorf("built-in name: err = %v, want conflict", err)
	}
	if err := r.Create(&models.AgentDescriptor{Name: "Bad Name!", Color: "red"}); !models.IsKind(err, models.KindValidation) {
		t.Errorf("bad name: err = %v, want validation", err)
	}

	ok := &models.AgentDescriptor{Name: "scala-engineer", Color: "red"}
	if err := r.Create(ok); err != nil {
		t.Fatal(err)
	}
	if err := r.Create(ok); !models.IsKind(err, models.KindConflict) {
		t.Errorf("duplicate: err = %v, want conflict", err)
	}
}

func TestListOrdersBuiltinsFirst(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Create(&models.AgentDescriptor{Name: "zig-engineer", Color: "white"}); err != nil {
		t.Fatal(err)
	}

	list := r.List()
	if len(list) != 16 {
		t.Fatalf("list length = %d, want 16", len(list))
	}
	if list[len(list)-1].Name != "zig-engineer" {
		t.Errorf("last entry = %s, want custom zig-engineer", list[len(list)-1].Name)
	}
}
