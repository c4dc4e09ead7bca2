// Package matcher scores tasks against the agent registry and picks the
// agent best suited to execute each task.
package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sprintforge/sprintforge/internal/registry"
	"github.com/sprintforge/sprintforge/pkg/models"
)

// GenericAgent is the fallback assignee when no specialist fits and
// on-demand creation is unavailable.
const GenericAgent = "generic-engineer"

// Match is the result of scoring one task.
type Match struct {
	// Agent is the selected agent name.
	Agent string
	// Reason explains the selection for the handoff log.
	Reason string
	// Confidence is the normalized match strength in [0,1].
	Confidence float64
	// CreatedNew is true when the match created a new descriptor.
	CreatedNew bool
}

// techEntry maps one technology keyword to its agent. Order matters: the
// earliest title occurrence wins ties, so scanning is position-aware.
type techEntry struct {
	tech  string
	agent string
}

var techMap = []techEntry{
	{"python", "python-engineer"},
	{"django", "python-engineer"},
	{"flask", "python-engineer"},
	{"fastapi", "python-engineer"},
	{"pytest", "test-runner"},
	{"go", "golang-engineer"},
	{"golang", "golang-engineer"},
	{"gin", "golang-engineer"},
	{"react", "frontend-engineer"},
	{"vue", "frontend-engineer"},
	{"angular", "frontend-engineer"},
	{"typescript", "frontend-engineer"},
	{"javascript", "frontend-engineer"},
	{"nextjs", "frontend-engineer"},
	{"css", "frontend-engineer"},
	{"docker", "devops-engineer"},
	{"kubernetes", "devops-engineer"},
	{"k8s", "devops-engineer"},
	{"terraform", "devops-engineer"},
	{"postgres", "database-engineer"},
	{"mongo", "database-engineer"},
	{"mysql", "database-engineer"},
	{"sql", "database-engineer"},
	{"jest", "test-runner"},
	{"unittest", "test-runner"},
	{"coverage", "test-runner"},
	{"rails", "ruby-engineer"},
	{"ruby", "ruby-engineer"},
	{"rspec", "ruby-engineer"},
	{"spring", "java-engineer"},
	{"java", "java-engineer"},
	{"maven", "java-engineer"},
	{"rust", "rust-engineer"},
	{"cargo", "rust-engineer"},
	{"swift", "swift-engineer"},
	{"ios", "swift-engineer"},
	{"kotlin", "kotlin-engineer"},
	{"android", "kotlin-engineer"},
	{"elixir", "elixir-engineer"},
	{"phoenix", "elixir-engineer"},
	{"haskell", "haskell-engineer"},
	{"cabal", "haskell-engineer"},
	{"r", "r-engineer"},
	{"ggplot", "r-engineer"},
}

// taskTypeMap is the lower-weight fallback keyed on verbs rather than
// technologies.
var taskTypeMap = []techEntry{
	{"test", "test-runner"},
	{"testing", "test-runner"},
	{"verify", "test-runner"},
	{"deploy", "devops-engineer"},
	{"pipeline", "devops-engineer"},
	{"release", "devops-engineer"},
	{"refactor", "project-manager"},
	{"review", "project-manager"},
	{"plan", "project-manager"},
	{"document", "context-manager"},
	{"docs", "context-manager"},
}

// Matcher scores tasks against the registry.
type Matcher struct {
	reg         *registry.Registry
	workload    func() map[string]int
	allowCreate bool
}

// New builds a matcher. workload supplies the per-agent count of pending
// and in-progress tasks; allowCreate enables on-demand descriptor creation.
func New(reg *registry.Registry, workload func() map[string]int, allowCreate bool) *Matcher {
	if workload == nil {
		workload = func() map[string]int { return nil }
	}
	return &Matcher{reg: reg, workload: workload, allowCreate: allowCreate}
}

type candidate struct {
	agent    string
	tech     string
	score    int
	titlePos int // first occurrence index in title, -1 when absent
}

// Match selects an agent for the task. A pre-assigned agent is honored
// with full confidence; otherwise the technology map, then the task-type
// map, then the generic fallback decide.
func (m *Matcher) Match(task *models.Task) (*Match, error) {
	if task == nil {
		return nil, models.NewError(models.KindValidation, "task is required")
	}
	if task.AssignedAgent != "" {
		if err := m.ensureAgent(task.AssignedAgent, ""); err != nil {
			return nil, err
		}
		return &Match{Agent: task.AssignedAgent, Reason: "manual", Confidence: 1.0}, nil
	}

	title := strings.ToLower(task.Title)
	details := strings.ToLower(task.TechnicalDetails)
	desc := strings.ToLower(task.Description)

	candidates := scoreTech(title, details, desc)
	if len(candidates) > 0 {
		best := m.balance(candidates)
		conf := confidence(best)
		match := &Match{
			Agent:      best.agent,
			Reason:     fmt.Sprintf("detected %q in task", best.tech),
			Confidence: conf,
		}
		created, err := m.provision(match, best.tech)
		if err != nil {
			return nil, err
		}
		match.CreatedNew = created
		return match, nil
	}

	full := title + " " + details + " " + desc
	for _, e := range taskTypeMap {
		if containsWord(full, e.tech) {
			match := &Match{
				Agent:      e.agent,
				Reason:     fmt.Sprintf("task involves %s work", e.tech),
				Confidence: 0.5,
			}
			created, err := m.provision(match, "")
			if err != nil {
				return nil, err
			}
			match.CreatedNew = created
			return match, nil
		}
	}

	if err := m.ensureGeneric(); err != nil {
		return nil, err
	}
	return &Match{
		Agent:      GenericAgent,
		Reason:     "no specific technology detected",
		Confidence: 0.25,
	}, nil
}

// scoreTech accumulates per-agent scores: +3 title, +2 technical details,
// +1 description. titlePos records the earliest title keyword position.
func scoreTech(title, details, desc string) []candidate {
	byAgent := make(map[string]*candidate)
	for _, e := range techMap {
		score := 0
		titlePos := wordIndex(title, e.tech)
		if titlePos >= 0 {
			score += 3
		}
		if containsWord(details, e.tech) {
			score += 2
		}
		if containsWord(desc, e.tech) {
			score++
		}
		if score == 0 {
			continue
		}
		c, ok := byAgent[e.agent]
		if !ok {
			byAgent[e.agent] = &candidate{agent: e.agent, tech: e.tech, score: score, titlePos: titlePos}
			continue
		}
		c.score += score
		if titlePos >= 0 && (c.titlePos < 0 || titlePos < c.titlePos) {
			c.titlePos = titlePos
			c.tech = e.tech
		}
	}

	out := make([]candidate, 0, len(byAgent))
	for _, c := range byAgent {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		// Earliest title hit wins ties; absent title hits sort last.
		pi, pj := out[i].titlePos, out[j].titlePos
		if pi < 0 {
			pi = int(^uint(0) >> 1)
		}
		if pj < 0 {
			pj = int(^uint(0) >> 1)
		}
		if pi != pj {
			return pi < pj
		}
		return out[i].agent < out[j].agent
	})
	return out
}

// balance picks among candidates within 10% of the top score the one with
// the lightest current workload.
func (m *Matcher) balance(candidates []candidate) candidate {
	best := candidates[0]
	threshold := float64(best.score) * 0.9
	var near []candidate
	for _, c := range candidates {
		if float64(c.score) >= threshold {
			near = append(near, c)
		}
	}
	if len(near) < 2 {
		return best
	}

	wl := m.workload()
	pick := near[0]
	for _, c := range near[1:] {
		if wl[c.agent] < wl[pick.agent] {
			pick = c
		}
	}
	return pick
}

func confidence(c candidate) float64 {
	if c.titlePos >= 0 {
		return min(1.0, float64(c.score)/3.0)
	}
	return min(0.75, float64(c.score)/4.0)
}

// provision makes sure the chosen agent resolves, creating it from the
// technology template when allowed. On failure the match degrades to the
// generic engineer at 0.25 confidence.
func (m *Matcher) provision(match *Match, tech string) (bool, error) {
	if m.reg.Has(match.Agent) {
		return false, nil
	}
	if m.allowCreate {
		if err := m.reg.Create(templateFor(match.Agent, tech)); err == nil {
			return true, nil
		}
	}
	if err := m.ensureGeneric(); err != nil {
		return false, err
	}
	match.Agent = GenericAgent
	match.Reason = "specialist unavailable, using generic engineer"
	match.Confidence = 0.25
	return false, nil
}

func (m *Matcher) ensureAgent(name, tech string) error {
	if m.reg.Has(name) {
		return nil
	}
	if !m.allowCreate {
		return models.NewError(models.KindNotFound, "agent %s not found", name)
	}
	return m.reg.Create(templateFor(name, tech))
}

func (m *Matcher) ensureGeneric() error {
	if m.reg.Has(GenericAgent) {
		return nil
	}
	return m.reg.Create(&models.AgentDescriptor{
		Name:          GenericAgent,
		DisplayName:   "Generic Engineer",
		Color:         "white",
		ShortLabel:    "GEN",
		SkillKeywords: []string{"general"},
		AllowedTools:  []string{"read", "write", "bash", "test"},
	})
}

// templateFor builds a descriptor for an agent discovered by name, keyed
// on the matched technology.
func templateFor(name, tech string) *models.AgentDescriptor {
	if tech == "" {
		tech = strings.SplitN(name, "-", 2)[0]
	}
	display := titleCase(strings.ReplaceAll(name, "-", " "))
	return &models.AgentDescriptor{
		Name:          name,
		DisplayName:   display,
		Color:         "white",
		Language:      tech,
		SkillKeywords: []string{tech},
		AllowedTools:  []string{"read", "write", "bash", "test"},
	}
}

// wordIndex returns the byte offset of the first whole-word occurrence of
// term in text, or -1.
func wordIndex(text, term string) int {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return -1
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return start
		}
		idx = start + 1
	}
}

func containsWord(text, term string) bool { return wordIndex(text, term) >= 0 }

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '#' || b == '+'
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
