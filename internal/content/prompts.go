package content

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").
	Funcs(template.FuncMap{
		"inc":  func(i int) int { return i + 1 },
		"join": strings.Join,
	}).
	ParseFS(promptFS, "prompts/*.tmpl"))

type lessonPrompt struct {
	Title      string
	Language   string
	Level      string
	Objectives []string
	Topics     []string
	Vocabulary []string
}

type roleplayPrompt struct {
	Scenario string
	Language string
	Level    string
	Prompts  []string
}

type turnPrompt struct {
	SystemPrompt string
	Language     string
	History      []Turn
	Message      string
}

type quizPrompt struct {
	Title     string
	Language  string
	Level     string
	Topics    []string
	Questions []quizPromptQuestion
}

type quizPromptQuestion struct {
	Type        string
	Instruction string
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
