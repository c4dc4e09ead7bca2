package scrum

import (
	"strings"

	"github.com/sprintforge/sprintforge/internal/store"
	"github.com/sprintforge/sprintforge/pkg/models"
)

// technicalTerms maps weighted complexity indicators scanned in the story
// title, description and acceptance criteria.
var technicalTerms = map[string]int{
	"auth":           8,
	"login":          8,
	"signup":         6,
	"authentication": 8,
	"authorization":  8,
	"oauth":          8,
	"security":       8,
	"encryption":     8,
	"payment":        10,
	"billing":        10,
	"migration":      9,
	"database":       6,
	"sql":            5,
	"cache":          6,
	"caching":        6,
	"api":            4,
	"integration":    7,
	"webhook":        6,
	"async":          7,
	"queue":          6,
	"concurrency":    9,
	"websocket":      7,
	"realtime":       7,
	"search":         5,
	"upload":         4,
	"export":         4,
	"report":         4,
	"dashboard":      5,
	"ui":             3,
	"frontend":       3,
	"responsive":     3,
	"email":          3,
	"notification":   4,
}

// nonFunctionalTerms are explicit scale/compliance indicators that add a
// fixed weight each.
var nonFunctionalTerms = []string{
	"performance", "scalability", "scale", "compliance", "gdpr",
	"audit", "availability", "load", "throughput", "latency",
}

// crudVerbs detect operation breadth in the story text.
var crudVerbs = []string{"create", "read", "update", "delete", "list", "view", "edit", "remove"}

// fibBand maps a complexity score to a Fibonacci point value using the
// fixed bands S<5→1, <10→2, <15→3, <25→5, <40→8, <60→13, ≥60→21.
func fibBand(score int) int {
	switch {
	case score < 5:
		return 1
	case score < 10:
		return 2
	case score < 15:
		return 3
	case score < 25:
		return 5
	case score < 40:
		return 8
	case score < 60:
		return 13
	default:
		return 21
	}
}

// complexityScore computes the deterministic auto-estimation score for a
// story from its text, criteria count, CRUD breadth and non-functional
// indicators.
func complexityScore(s *models.Story) int {
	text := strings.ToLower(s.Title + " " + s.Description)
	criteriaText := strings.ToLower(strings.Join(s.AcceptanceCriteria, " "))
	full := text + " " + criteriaText

	score := 0
	for term, weight := range technicalTerms {
		if containsWord(full, term) {
			score += weight
		}
	}

	// Many acceptance criteria indicate breadth.
	if n := len(s.AcceptanceCriteria); n >= 6 {
		score += n
	} else {
		score += n / 2
	}

	// CRUD breadth: each distinct verb family present adds weight.
	crud := 0
	for _, verb := range crudVerbs {
		if containsWord(full, verb) {
			crud++
		}
	}
	score += crud * 2

	for _, term := range nonFunctionalTerms {
		if containsWord(full, term) {
			score += 6
		}
	}

	return score
}

// containsWord reports whether text contains term as a whole word.
func containsWord(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

// EstimateStory sets a story's points. Points of 0 requests deterministic
// auto-estimation from the complexity score; otherwise points must be on
// the Fibonacci scale. Estimated backlog stories become plannable.
func (m *Manager) EstimateStory(storyID string, points int) (*models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stories[storyID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "story %s not found", storyID)
	}
	if points == 0 {
		points = fibBand(complexityScore(s))
	} else if !models.ValidPoints(points) {
		return nil, models.NewError(models.KindValidation,
			"points %d not on the Fibonacci scale %v", points, models.StoryPointScale)
	}

	s.StoryPoints = points
	s.UpdatedAt = m.clock()
	if err := m.persist(store.KindStories, storyID); err != nil {
		return nil, err
	}

	if s.EpicID != "" {
		m.rollupEpicLocked(s.EpicID)
		if err := m.persist(store.KindEpics, s.EpicID); err != nil {
			return nil, err
		}
	}

	cp := *s
	return &cp, nil
}

// EstimateAll auto-estimates every unestimated backlog story and returns
// the stories touched.
func (m *Manager) EstimateAll() ([]*models.Story, error) {
	m.mu.Lock()
	var pending []string
	for id, s := range m.stories {
		if !s.Estimated() && s.Status == models.StoryStatusBacklog {
			pending = append(pending, id)
		}
	}
	m.mu.Unlock()

	var estimated []*models.Story
	for _, id := range pending {
		s, err := m.EstimateStory(id, 0)
		if err != nil {
			return estimated, err
		}
		estimated = append(estimated, s)
	}
	return estimated, nil
}

// rollupEpicLocked recomputes an epic's point totals. Caller holds the lock.
func (m *Manager) rollupEpicLocked(epicID string) {
	e, ok := m.epics[epicID]
	if !ok {
		return
	}
	total, done := 0, 0
	for _, sid := range e.StoryIDs {
		s, ok := m.stories[sid]
		if !ok {
			continue
		}
		total += s.StoryPoints
		if s.Status == models.StoryStatusDone {
			done += s.StoryPoints
		}
	}
	e.TotalPoints = total
	e.CompletedPoints = done
}
