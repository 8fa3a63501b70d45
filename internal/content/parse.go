package content

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
)

// Section names, in the order they are presented.
const (
	SectionIntroduction = "introduction"
	SectionExamples     = "examples"
	SectionDialogue     = "dialogue"
	SectionExercises    = "exercises"
)

var sectionNames = []string{SectionIntroduction, SectionExamples, SectionDialogue, SectionExercises}

// Labels accepted in free text for each section.
var sectionLabels = map[string][]string{
	SectionIntroduction: {"introduction", "intro"},
	SectionExamples:     {"examples", "example sentences"},
	SectionDialogue:     {"dialogue", "dialog", "short dialogue"},
	SectionExercises:    {"exercises", "practice exercises", "practical exercises"},
}

var (
	fenceRE    = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n(.*?)```")
	numberedRE = regexp.MustCompile(`^\s*\d+[.)]\s`)
	labelREs   = compileLabels()
)

func compileLabels() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(sectionLabels))
	for name, labels := range sectionLabels {
		quoted := make([]string, len(labels))
		for i, l := range labels {
			quoted[i] = regexp.QuoteMeta(l)
		}
		// "Introduction: text", "**Dialogue:**", "## Exercises", "2. Examples:"
		out[name] = regexp.MustCompile(`(?i)^[\s#>*_-]*(?:\d+[.)]\s*)?[*_]*(?:` +
			strings.Join(quoted, "|") + `)[*_]*\s*(?::[*_\s]*(.*)|[*_#\s]*$)`)
	}
	return out
}

// parsed is the recoverable part of a model response.
type parsed struct {
	sections map[string]string
	source   Source
}

func (p parsed) empty() bool {
	for _, name := range sectionNames {
		if p.sections[name] != "" {
			return false
		}
	}
	return true
}

// parseLessonContent reads a model response as a JSON object when it contains
// one, otherwise it recovers sections from labelled free text.
func parseLessonContent(raw string) parsed {
	text := stripFences(raw)

	if doc, ok := jsonObject(text); ok {
		var obj map[string]any
		if err := json.Unmarshal([]byte(doc), &obj); err == nil {
			p := parsed{sections: make(map[string]string, len(sectionNames)), source: SourceGenerated}
			if err := validate(lessonSchema, []byte(doc)); err != nil {
				slog.Debug("generated content failed schema validation, salvaging fields", "error", err)
				p.source = SourceExtracted
			}
			lowered := make(map[string]any, len(obj))
			for k, v := range obj {
				lowered[strings.ToLower(strings.TrimSpace(k))] = v
			}
			for _, name := range sectionNames {
				p.sections[name] = flattenValue(lowered[name])
			}
			return p
		}
	}

	return parsed{sections: extractSections(text), source: SourceExtracted}
}

// stripFences returns the body of the first markdown code block, or the
// trimmed input when there is none.
func stripFences(s string) string {
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// jsonObject finds a JSON object in s, tolerating prose around it.
func jsonObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	doc := s[start : end+1]
	if !json.Valid([]byte(doc)) {
		return "", false
	}
	return doc, true
}

// extractSections scans for a "<section>:" line and captures the text after it
// up to the next blank line, the next section label, or a numbered list
// marker. A section whose body is itself a numbered list keeps the list.
func extractSections(text string) map[string]string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make(map[string]string, len(sectionNames))
	for _, name := range sectionNames {
		out[name] = extractSection(lines, name)
	}
	return out
}

func extractSection(lines []string, name string) string {
	re := labelREs[name]
	for i, line := range lines {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		var captured []string
		if first := strings.TrimSpace(m[1]); first != "" {
			captured = append(captured, first)
		}
		list := false
		for _, next := range lines[i+1:] {
			trimmed := strings.TrimSpace(next)
			if trimmed == "" {
				if len(captured) > 0 {
					break
				}
				continue
			}
			if isLabel(next) {
				break
			}
			if numberedRE.MatchString(next) {
				if len(captured) == 0 {
					list = true
				} else if !list {
					break
				}
			}
			captured = append(captured, trimmed)
		}
		return strings.Join(captured, "\n")
	}
	return ""
}

func isLabel(line string) bool {
	for _, re := range labelREs {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Keys checked, in order, when flattening structured values.
var (
	speakerKeys     = []string{"speaker", "role", "name", "character", "person"}
	lineKeys        = []string{"text", "line", "content", "message", "sentence", "phrase", "example", "question", "instruction", "task", "prompt"}
	translationKeys = []string{"translation", "english", "meaning"}
)

// flattenValue renders a JSON value as display text. Lists become one item
// per line and dialogue turns become "Speaker: line".
func flattenValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flattenValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		return flattenObject(t)
	default:
		return fmt.Sprint(t)
	}
}

func flattenObject(obj map[string]any) string {
	speaker := firstString(obj, speakerKeys)
	line := firstString(obj, lineKeys)
	translation := firstString(obj, translationKeys)

	if line != "" {
		if translation != "" {
			line += " (" + translation + ")"
		}
		if speaker != "" {
			return speaker + ": " + line
		}
		return line
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if s := flattenValue(obj[k]); s != "" {
			parts = append(parts, k+": "+s)
		}
	}
	return strings.Join(parts, "\n")
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		for name, v := range obj {
			if strings.EqualFold(name, k) {
				if s := flattenValue(v); s != "" {
					return s
				}
			}
		}
	}
	return ""
}
