package registry

import "github.com/sprintforge/sprintforge/pkg/models"

// builtinAgents returns the always-available agent catalog. Language agents
// own their language exclusively; the matcher refuses to hand a python task
// to the golang engineer.
func builtinAgents() []*models.AgentDescriptor {
	return []*models.AgentDescriptor{
		{
			Name:          "project-manager",
			DisplayName:   "Project Manager",
			Color:         "magenta",
			Emoji:         "📊",
			ShortLabel:    "PM",
			SkillKeywords: []string{"planning", "estimation", "backlog", "roadmap", "sprint"},
			AllowedTools:  []string{"read", "report"},
		},
		{
			Name:          "context-manager",
			DisplayName:   "Context Manager",
			Color:         "blue",
			Emoji:         "🔍",
			ShortLabel:    "CTX",
			SkillKeywords: []string{"analysis", "architecture", "documentation", "research"},
			AllowedTools:  []string{"read", "search"},
		},
		{
			Name:            "python-engineer",
			DisplayName:     "Python Engineer",
			Color:           "green",
			Emoji:           "🐍",
			ShortLabel:      "PY",
			Language:        "python",
			Frameworks:      []string{"django", "flask", "fastapi", "pytest", "sqlalchemy", "celery"},
			FilePatterns:    []string{`\.py$`, `requirements\.txt$`, `pyproject\.toml$`},
			SkillKeywords:   []string{"python", "django", "flask", "fastapi", "pandas", "asyncio"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "pytest",
			CoverageCommand: "pytest --cov --cov-report=term",
		},
		{
			Name:            "golang-engineer",
			DisplayName:     "Go Engineer",
			Color:           "cyan",
			Emoji:           "🔷",
			ShortLabel:      "GO",
			Language:        "go",
			Frameworks:      []string{"gin", "echo", "cobra", "grpc"},
			FilePatterns:    []string{`\.go$`, `go\.mod$`, `go\.sum$`},
			SkillKeywords:   []string{"go", "golang", "goroutine", "grpc", "gin"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "go test ./...",
			CoverageCommand: "go test -cover ./...",
		},
		{
			Name:            "frontend-engineer",
			DisplayName:     "Frontend Engineer",
			Color:           "yellow",
			Emoji:           "🎨",
			ShortLabel:      "FE",
			Language:        "javascript",
			Frameworks:      []string{"react", "vue", "angular", "svelte", "nextjs"},
			FilePatterns:    []string{`\.jsx?$`, `\.tsx?$`, `\.vue$`, `\.css$`, `\.html$`},
			SkillKeywords:   []string{"react", "vue", "angular", "typescript", "css", "ui", "frontend", "component"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "npm test",
			CoverageCommand: "npm test -- --coverage",
		},
		{
			Name:          "test-runner",
			DisplayName:   "Test Runner",
			Color:         "red",
			Emoji:         "🧪",
			ShortLabel:    "TEST",
			SkillKeywords: []string{"test", "testing", "coverage", "unittest", "regression"},
			AllowedTools:  []string{"read", "bash", "test"},
		},
		{
			Name:          "devops-engineer",
			DisplayName:   "DevOps Engineer",
			Color:         "white",
			Emoji:         "⚙️",
			ShortLabel:    "OPS",
			Frameworks:    []string{"docker", "kubernetes", "terraform", "ansible"},
			FilePatterns:  []string{`Dockerfile$`, `\.ya?ml$`, `\.tf$`, `\.sh$`},
			SkillKeywords: []string{"docker", "kubernetes", "terraform", "ci", "deploy", "pipeline", "infrastructure"},
			AllowedTools:  []string{"read", "write", "bash"},
		},
		{
			Name:            "java-engineer",
			DisplayName:     "Java Engineer",
			Color:           "red",
			Emoji:           "☕",
			ShortLabel:      "JV",
			Language:        "java",
			Frameworks:      []string{"spring", "hibernate", "junit", "maven", "gradle"},
			FilePatterns:    []string{`\.java$`, `pom\.xml$`, `build\.gradle$`},
			SkillKeywords:   []string{"java", "spring", "hibernate", "jvm", "maven"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "mvn test",
			CoverageCommand: "mvn verify",
		},
		{
			Name:            "ruby-engineer",
			DisplayName:     "Ruby Engineer",
			Color:           "red",
			Emoji:           "💎",
			ShortLabel:      "RB",
			Language:        "ruby",
			Frameworks:      []string{"rails", "rspec", "sinatra", "sidekiq"},
			FilePatterns:    []string{`\.rb$`, `Gemfile$`, `\.gemspec$`},
			SkillKeywords:   []string{"ruby", "rails", "rspec", "sinatra", "gem"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "bundle exec rspec",
			CoverageCommand: "COVERAGE=true bundle exec rspec",
		},
		{
			Name:            "rust-engineer",
			DisplayName:     "Rust Engineer",
			Color:           "yellow",
			Emoji:           "🦀",
			ShortLabel:      "RS",
			Language:        "rust",
			Frameworks:      []string{"tokio", "actix", "serde", "axum"},
			FilePatterns:    []string{`\.rs$`, `Cargo\.toml$`},
			SkillKeywords:   []string{"rust", "cargo", "tokio", "actix", "wasm"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "cargo test",
			CoverageCommand: "cargo tarpaulin",
		},
		{
			Name:            "swift-engineer",
			DisplayName:     "Swift Engineer",
			Color:           "yellow",
			Emoji:           "🕊️",
			ShortLabel:      "SW",
			Language:        "swift",
			Frameworks:      []string{"swiftui", "uikit", "combine", "vapor"},
			FilePatterns:    []string{`\.swift$`, `Package\.swift$`},
			SkillKeywords:   []string{"swift", "ios", "swiftui", "uikit", "xcode"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "swift test",
			CoverageCommand: "swift test --enable-code-coverage",
		},
		{
			Name:            "kotlin-engineer",
			DisplayName:     "Kotlin Engineer",
			Color:           "magenta",
			Emoji:           "🟣",
			ShortLabel:      "KT",
			Language:        "kotlin",
			Frameworks:      []string{"ktor", "spring", "compose", "coroutines"},
			FilePatterns:    []string{`\.kt$`, `\.kts$`},
			SkillKeywords:   []string{"kotlin", "android", "ktor", "coroutines", "compose"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "gradle test",
			CoverageCommand: "gradle koverReport",
		},
		{
			Name:            "elixir-engineer",
			DisplayName:     "Elixir Engineer",
			Color:           "magenta",
			Emoji:           "💧",
			ShortLabel:      "EX",
			Language:        "elixir",
			Frameworks:      []string{"phoenix", "ecto", "otp", "liveview"},
			FilePatterns:    []string{`\.exs?$`, `mix\.exs$`},
			SkillKeywords:   []string{"elixir", "phoenix", "otp", "ecto", "erlang"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "mix test",
			CoverageCommand: "mix test --cover",
		},
		{
			Name:            "haskell-engineer",
			DisplayName:     "Haskell Engineer",
			Color:           "magenta",
			Emoji:           "λ",
			ShortLabel:      "HS",
			Language:        "haskell",
			Frameworks:      []string{"servant", "yesod", "cabal", "stack"},
			FilePatterns:    []string{`\.hs$`, `\.cabal$`, `stack\.yaml$`},
			SkillKeywords:   []string{"haskell", "monad", "servant", "ghc", "cabal"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "stack test",
			CoverageCommand: "stack test --coverage",
		},
		{
			Name:            "r-engineer",
			DisplayName:     "R Engineer",
			Color:           "blue",
			Emoji:           "📈",
			ShortLabel:      "R",
			Language:        "r",
			Frameworks:      []string{"shiny", "tidyverse", "ggplot2", "testthat"},
			FilePatterns:    []string{`\.[rR]$`, `DESCRIPTION$`, `\.Rmd$`},
			SkillKeywords:   []string{"statistics", "shiny", "tidyverse", "ggplot", "dataframe"},
			AllowedTools:    []string{"read", "write", "bash", "test"},
			TestCommand:     "Rscript -e 'testthat::test_dir(\"tests\")'",
			CoverageCommand: "Rscript -e 'covr::package_coverage()'",
		},
	}
}
