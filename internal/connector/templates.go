package connector

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Templates renders identifier and field templates such as "ID-{{uuid}}" or
// "{{randomAlpha 5}}". It is safe for concurrent use.
type Templates struct {
	fileCache map[string][]string
	mu        sync.RWMutex
	funcMap   template.FuncMap
}

func NewTemplates() *Templates {
	e := &Templates{
		fileCache: make(map[string][]string),
	}

	e.funcMap = template.FuncMap{
		"randomInt":    e.randomInt,
		"randomUUID":   e.randomUUID,
		"randomChoice": e.randomChoice,
		"randomLine":   e.randomLine,
		"randomAlpha":  e.randomAlpha,
		"uuid":         e.randomUUID,
	}

	return e
}

// Parse creates a new template with the engine's functions
func (e *Templates) Parse(name, text string) (*Template, error) {
	t, err := template.New(name).Funcs(e.funcMap).Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing template %q", name)
	}
	return &Template{t: t}, nil
}

// MustParse is Parse for templates known at compile time.
func (e *Templates) MustParse(name, text string) *Template {
	t, err := e.Parse(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Template is a parsed template. Execute may be called concurrently.
type Template struct {
	t *template.Template
}

func (t *Template) Execute() (string, error) {
	var buf bytes.Buffer
	if err := t.t.Execute(&buf, nil); err != nil {
		return "", errors.Wrapf(err, "executing template %q", t.t.Name())
	}
	return buf.String(), nil
}

// --- Functions ---

func (e *Templates) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.IntN(max-min) + min
}

func (e *Templates) randomUUID() string {
	return uuid.New().String()
}

func (e *Templates) randomAlpha(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return sb.String()
}

func (e *Templates) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.IntN(len(choices))]
}

func (e *Templates) randomLine(filename string) (string, error) {
	e.mu.RLock()
	lines, ok := e.fileCache[filename]
	e.mu.RUnlock()

	if !ok {
		var err error
		if lines, err = e.loadLines(filename); err != nil {
			return "", err
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[rand.IntN(len(lines))], nil
}

func (e *Templates) loadLines(filename string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Double check
	if lines, ok := e.fileCache[filename]; ok {
		return lines, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %w", filename, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	var loaded []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			loaded = append(loaded, line)
		}
	}

	e.fileCache[filename] = loaded
	return loaded, nil
}
