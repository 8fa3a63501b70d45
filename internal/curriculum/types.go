package curriculum

// NumPhases is the number of curriculum phases.
const NumPhases = 4

// QuestionType identifies how a quiz question is answered and graded.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	FillInBlank    QuestionType = "fill_in_blank"
	Listening      QuestionType = "listening"
	Speaking       QuestionType = "speaking"
	Matching       QuestionType = "matching"
	Translation    QuestionType = "translation"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, FillInBlank, Listening, Speaking, Matching, Translation:
		return true
	}
	return false
}

// PhaseName returns the display name of a phase, or "" for an unknown phase.
func PhaseName(phase int) string {
	switch phase {
	case 1:
		return "Foundation"
	case 2:
		return "Daily Life"
	case 3:
		return "Communication"
	case 4:
		return "Fluency"
	}
	return ""
}

// Lesson is one unit of the curriculum loaded from YAML.
type Lesson struct {
	ID               int                   `yaml:"id" json:"id"`
	Phase            int                   `yaml:"phase" json:"phase"`
	Title            string                `yaml:"title" json:"title"`
	Description      string                `yaml:"description" json:"description"`
	Objectives       []string              `yaml:"objectives" json:"objectives"`
	Topics           []string              `yaml:"topics" json:"topics"`
	Prerequisites    []int                 `yaml:"prerequisites" json:"prerequisiteLessons"`
	EstimatedMinutes int                   `yaml:"estimated_minutes" json:"estimatedMinutes"`
	Vocabulary       []string              `yaml:"vocabulary" json:"vocabulary,omitempty"`
	Grammar          []string              `yaml:"grammar" json:"grammar,omitempty"`
	CulturalTopics   []string              `yaml:"cultural_topics" json:"culturalTopics,omitempty"`
	Exercises        []Exercise            `yaml:"exercises" json:"exercises,omitempty"`
	Roleplay         *Roleplay             `yaml:"roleplay" json:"roleplay,omitempty"`
	Assessment       []string              `yaml:"assessment" json:"assessment,omitempty"`
	LanguageSpecific map[string]Adaptation `yaml:"language_specific" json:"-"`
	Unlocks          string                `yaml:"unlocks" json:"unlocks"`
}

// Exercise is a practice activity attached to a lesson.
type Exercise struct {
	Type  string `yaml:"type" json:"type"`
	Focus string `yaml:"focus" json:"focus"`
}

// Roleplay describes the AI conversation partner scenario for a lesson.
type Roleplay struct {
	Scenario string   `yaml:"scenario" json:"scenario"`
	Prompts  []string `yaml:"prompts" json:"prompts"`
	Topics   []string `yaml:"topics" json:"topics,omitempty"`
}

// Adaptation holds lesson material specific to one target language.
type Adaptation struct {
	Focus   []string          `yaml:"focus" json:"focus,omitempty"`
	Phrases []string          `yaml:"phrases" json:"phrases,omitempty"`
	Notes   map[string]string `yaml:"notes" json:"notes,omitempty"`
}

// Quiz is the graded assessment attached to a lesson.
type Quiz struct {
	LessonID     int        `yaml:"-" json:"lessonId"`
	PassingScore int        `yaml:"passing_score" json:"passingScore"`
	Questions    []Question `yaml:"questions" json:"questions"`
}

// TotalPoints is the sum of all question points.
func (q Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// Question is a single quiz item. IDs are unique across the whole catalog.
type Question struct {
	ID              string       `yaml:"id" json:"id"`
	Type            QuestionType `yaml:"type" json:"type"`
	Instruction     string       `yaml:"instruction" json:"instruction"`
	Points          int          `yaml:"points" json:"points"`
	Focus           string       `yaml:"focus" json:"focus,omitempty"`
	DurationSeconds int          `yaml:"duration_seconds" json:"durationSeconds,omitempty"`
}

// Language is a supported target language.
type Language struct {
	Slug                  string            `yaml:"slug" json:"slug"`
	Name                  string            `yaml:"name" json:"name"`
	NativeName            string            `yaml:"-" json:"nativeName"`
	Tag                   string            `yaml:"tag" json:"tag"`
	FormalInformal        bool              `yaml:"formal_informal" json:"formalInformal"`
	GenderedNouns         bool              `yaml:"gendered_nouns" json:"genderedNouns"`
	ConjugationComplexity string            `yaml:"conjugation_complexity" json:"conjugationComplexity,omitempty"`
	PhoneticChallenges    []string          `yaml:"phonetic_challenges" json:"phoneticChallenges,omitempty"`
	SpecialCharacters     []string          `yaml:"special_characters" json:"specialCharacters,omitempty"`
	WritingSystems        []string          `yaml:"writing_systems" json:"writingSystems,omitempty"`
	Notes                 map[string]string `yaml:"notes" json:"notes,omitempty"`
}

// LessonContent is a lesson combined with the material for one target language.
type LessonContent struct {
	Lesson
	Language   *Language  `json:"language,omitempty"`
	Adaptation Adaptation `json:"languageSpecificContent"`
}
