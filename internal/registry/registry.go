// Package registry manages agent descriptors: the built-in catalog plus
// user-defined agents persisted as YAML under the project state root.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sprintforge/sprintforge/pkg/models"
)

// AgentsDir is the directory under the state root holding user-defined
// agent descriptor files.
const AgentsDir = "agents"

// Registry resolves agent names to descriptors. Built-ins are always
// available; user-defined descriptors are loaded from disk and may not
// shadow a built-in or each other.
type Registry struct {
	mu   sync.RWMutex
	dir  string
	warn func(format string, args ...any)

	builtins map[string]*models.AgentDescriptor
	custom   map[string]*models.AgentDescriptor
}

// New loads the registry for a state root. The agents directory is created
// when missing. Descriptor files that fail to parse or redefine an existing
// name are skipped with a warning.
func New(stateRoot string) (*Registry, error) {
	r := &Registry{
		dir:      filepath.Join(stateRoot, AgentsDir),
		warn:     func(string, ...any) {},
		builtins: make(map[string]*models.AgentDescriptor),
		custom:   make(map[string]*models.AgentDescriptor),
	}
	for _, d := range builtinAgents() {
		r.builtins[d.Name] = d
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, models.WrapError(models.KindIO, err, "create agents directory")
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetWarnFunc installs a sink for descriptor load warnings.
func (r *Registry) SetWarnFunc(fn func(format string, args ...any)) {
	if fn != nil {
		r.mu.Lock()
		r.warn = fn
		r.mu.Unlock()
	}
}

// Dir returns the directory user-defined descriptors load from.
func (r *Registry) Dir() string { return r.dir }

// reload re-reads every descriptor file, replacing the custom set.
func (r *Registry) reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return models.WrapError(models.KindIO, err, "read agents directory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	custom := make(map[string]*models.AgentDescriptor)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		d, err := readDescriptor(path)
		if err != nil {
			r.warn("skipping agent file %s: %v", entry.Name(), err)
			continue
		}
		if _, ok := r.builtins[d.Name]; ok {
			r.warn("agent file %s redefines built-in %q, skipping", entry.Name(), d.Name)
			continue
		}
		if _, ok := custom[d.Name]; ok {
			r.warn("agent file %s duplicates %q, skipping", entry.Name(), d.Name)
			continue
		}
		custom[d.Name] = d
	}
	r.custom = custom
	return nil
}

func readDescriptor(path string) (*models.AgentDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d models.AgentDescriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validateDescriptor(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

func validateDescriptor(d *models.AgentDescriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("agent name is required")
	}
	for _, r := range d.Name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return fmt.Errorf("agent name %q must be lowercase alphanumeric with dashes", d.Name)
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	return nil
}

// Get returns the descriptor for a name, or a NotFound error.
func (r *Registry) Get(name string) (*models.AgentDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.custom[name]; ok {
		cp := *d
		return &cp, nil
	}
	if d, ok := r.builtins[name]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, models.NewError(models.KindNotFound, "agent %s not found", name)
}

// Has reports whether an agent name resolves.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, inCustom := r.custom[name]
	_, inBuiltin := r.builtins[name]
	return inCustom || inBuiltin
}

// List returns all descriptors, built-ins first, each group sorted by name.
func (r *Registry) List() []*models.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.AgentDescriptor, 0, len(r.builtins)+len(r.custom))
	for _, d := range sortedValues(r.builtins) {
		cp := *d
		out = append(out, &cp)
	}
	for _, d := range sortedValues(r.custom) {
		cp := *d
		out = append(out, &cp)
	}
	return out
}

func sortedValues(m map[string]*models.AgentDescriptor) []*models.AgentDescriptor {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*models.AgentDescriptor, 0, len(names))
	for _, n := range names {
		out = append(out, m[n])
	}
	return out
}

// Create validates a descriptor, persists it as YAML with a markdown
// sidecar describing the agent, and registers it. Names must be unique
// across built-ins and existing custom agents.
func (r *Registry) Create(d *models.AgentDescriptor) error {
	cp := *d
	if err := validateDescriptor(&cp); err != nil {
		return models.WrapError(models.KindValidation, err, "invalid agent descriptor")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.builtins[cp.Name]; ok {
		return models.NewError(models.KindConflict, "agent %s is built in", cp.Name)
	}
	if _, ok := r.custom[cp.Name]; ok {
		return models.NewError(models.KindConflict, "agent %s already exists", cp.Name)
	}

	data, err := yaml.Marshal(&cp)
	if err != nil {
		return models.WrapError(models.KindIO, err, "marshal agent descriptor")
	}
	path := filepath.Join(r.dir, cp.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return models.WrapError(models.KindIO, err, "write agent descriptor")
	}
	if err := os.WriteFile(filepath.Join(r.dir, cp.Name+".md"), sidecarMarkdown(&cp), 0o644); err != nil {
		return models.WrapError(models.KindIO, err, "write agent sidecar")
	}

	r.custom[cp.Name] = &cp
	return nil
}

// sidecarMarkdown renders the human-readable companion file written next
// to each custom descriptor.
func sidecarMarkdown(d *models.AgentDescriptor) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.DisplayName)
	if d.Language != "" {
		fmt.Fprintf(&b, "Specializes in %s.\n\n", d.Language)
	}
	if len(d.Frameworks) > 0 {
		fmt.Fprintf(&b, "Frameworks: %s\n\n", strings.Join(d.Frameworks, ", "))
	}
	if len(d.SkillKeywords) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n\n", strings.Join(d.SkillKeywords, ", "))
	}
	if d.TestCommand != "" {
		fmt.Fprintf(&b, "Test command: `%s`\n", d.TestCommand)
	}
	return []byte(b.String())
}
