package curriculum

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

const (
	lessonsFile   = "lessons.yaml"
	quizzesFile   = "quizzes.yaml"
	languagesFile = "languages.yaml"
)

// ErrLessonNotFound is returned when a lesson ID is not part of the catalog.
var ErrLessonNotFound = errors.New("lesson not found")

// Catalog holds the immutable lesson, quiz and language data.
// It is safe for concurrent use.
type Catalog struct {
	lessons   map[int]Lesson
	order     []int
	quizzes   map[int]Quiz
	questions map[string]Question
	languages *languageIndex
}

// Default returns the catalog compiled into the binary.
var Default = sync.OnceValues(func() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return Load(sub)
})

// NewLoader loads a catalog from a directory holding lessons.yaml,
// quizzes.yaml and languages.yaml.
func NewLoader(rootDir string) (*Catalog, error) {
	return Load(os.DirFS(rootDir))
}

// Load reads and validates a catalog from fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	var lessons []Lesson
	if err := readYAML(fsys, lessonsFile, &lessons); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}
	var quizzes map[int]Quiz
	if err := readYAML(fsys, quizzesFile, &quizzes); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}
	var languages []Language
	if err := readYAML(fsys, languagesFile, &languages); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	c := &Catalog{
		lessons:   make(map[int]Lesson, len(lessons)),
		quizzes:   make(map[int]Quiz, len(quizzes)),
		questions: make(map[string]Question),
	}
	for _, l := range lessons {
		if _, dup := c.lessons[l.ID]; dup {
			return nil, fmt.Errorf("loading curriculum: duplicate lesson %d", l.ID)
		}
		c.lessons[l.ID] = l
		c.order = append(c.order, l.ID)
	}
	slices.Sort(c.order)
	for id, q := range quizzes {
		q.LessonID = id
		c.quizzes[id] = q
		for _, question := range q.Questions {
			if _, dup := c.questions[question.ID]; dup {
				return nil, fmt.Errorf("loading curriculum: duplicate question %q", question.ID)
			}
			c.questions[question.ID] = question
		}
	}

	idx, err := newLanguageIndex(languages)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}
	c.languages = idx

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("validating curriculum: %w", err)
	}

	slog.Info("curriculum loaded",
		"lessons", len(c.lessons),
		"quizzes", len(c.quizzes),
		"languages", len(languages),
	)
	return c, nil
}

func readYAML(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

func (c *Catalog) validate() error {
	if len(c.order) == 0 {
		return errors.New("no lessons")
	}
	for i, id := range c.order {
		if id != i+1 {
			return fmt.Errorf("lesson ids must run 1..%d, found %d at position %d", len(c.order), id, i+1)
		}
		l := c.lessons[id]
		if l.Phase < 1 || l.Phase > NumPhases {
			return fmt.Errorf("lesson %d: phase %d out of range", id, l.Phase)
		}
		for _, pre := range l.Prerequisites {
			if pre < 1 || pre >= id {
				return fmt.Errorf("lesson %d: prerequisite %d must precede it", id, pre)
			}
		}
		q, ok := c.quizzes[id]
		if !ok {
			return fmt.Errorf("lesson %d: no quiz", id)
		}
		if err := validateQuiz(q); err != nil {
			return fmt.Errorf("lesson %d: %w", id, err)
		}
	}
	for id := range c.quizzes {
		if _, ok := c.lessons[id]; !ok {
			return fmt.Errorf("quiz for unknown lesson %d", id)
		}
	}
	return nil
}

func validateQuiz(q Quiz) error {
	if q.PassingScore < 0 || q.PassingScore > 100 {
		return fmt.Errorf("passing score %d out of range", q.PassingScore)
	}
	if len(q.Questions) == 0 {
		return errors.New("quiz has no questions")
	}
	for _, question := range q.Questions {
		if question.Points <= 0 {
			return fmt.Errorf("question %q: points must be positive", question.ID)
		}
		if !question.Type.Valid() {
			return fmt.Errorf("question %q: unknown type %q", question.ID, question.Type)
		}
	}
	return nil
}

// Lesson returns a lesson by ID.
func (c *Catalog) Lesson(id int) (Lesson, bool) {
	l, ok := c.lessons[id]
	return l, ok
}

// Lessons returns every lesson ordered by ID.
func (c *Catalog) Lessons() []Lesson {
	out := make([]Lesson, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.lessons[id])
	}
	return out
}

// LessonsByPhase returns the lessons of one phase ordered by ID.
func (c *Catalog) LessonsByPhase(phase int) []Lesson {
	var out []Lesson
	for _, id := range c.order {
		if l := c.lessons[id]; l.Phase == phase {
			out = append(out, l)
		}
	}
	return out
}

// Prerequisites returns the lessons that must be passed before id unlocks.
func (c *Catalog) Prerequisites(id int) []int {
	return slices.Clone(c.lessons[id].Prerequisites)
}

// TotalLessons is the number of lessons in the catalog.
func (c *Catalog) TotalLessons() int {
	return len(c.order)
}

// Quiz returns the quiz attached to a lesson.
func (c *Catalog) Quiz(lessonID int) (Quiz, bool) {
	q, ok := c.quizzes[lessonID]
	return q, ok
}

// Question looks a question up by its catalog-wide ID.
func (c *Catalog) Question(id string) (Question, bool) {
	q, ok := c.questions[id]
	return q, ok
}

// LessonContent returns a lesson together with the material for the target
// language. Unknown languages fall back to the material shared by all
// languages.
func (c *Catalog) LessonContent(id int, targetLanguage string) (LessonContent, bool) {
	l, ok := c.lessons[id]
	if !ok {
		return LessonContent{}, false
	}
	content := LessonContent{Lesson: l}
	slug := ""
	if lang, ok := c.Language(targetLanguage); ok {
		content.Language = &lang
		slug = lang.Slug
	}
	if a, ok := l.LanguageSpecific[slug]; ok && slug != "" {
		content.Adaptation = a
	} else {
		content.Adaptation = l.LanguageSpecific["all"]
	}
	return content, true
}
