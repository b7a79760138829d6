package runner

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"
)

// TemplateEngine renders per-request values into URLs, headers and bodies.
//
// Besides Go template syntax, the shorthands {{requestID}} and {{seq}} are
// accepted. Functions: uuid, randomInt, randomChoice, randomLine.
type TemplateEngine struct {
	mu        sync.RWMutex
	fileCache map[string][]string
	funcMap   template.FuncMap
}

// TemplateData is the per-request context templates are executed against.
type TemplateData struct {
	RequestID string
	Seq       int64
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		fileCache: make(map[string][]string),
	}
	e.funcMap = template.FuncMap{
		"uuid":         e.randomUUID,
		"randomUUID":   e.randomUUID,
		"randomInt":    e.randomInt,
		"randomChoice": e.randomChoice,
		"randomLine":   e.randomLine,
	}
	return e
}

func (e *TemplateEngine) preprocess(input string) string {
	s := strings.ReplaceAll(input, "{{requestID}}", "{{.RequestID}}")
	return strings.ReplaceAll(s, "{{seq}}", "{{.Seq}}")
}

func (e *TemplateEngine) Parse(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(e.funcMap).Option("missingkey=error").Parse(e.preprocess(text))
}

func (e *TemplateEngine) Execute(t *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *TemplateEngine) randomUUID() string {
	return uuid.NewString()
}

func (e *TemplateEngine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func (e *TemplateEngine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}

func (e *TemplateEngine) randomLine(filename string) (string, error) {
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
	return lines[rand.Intn(len(lines))], nil
}

func (e *TemplateEngine) loadLines(filename string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lines, ok := e.fileCache[filename]; ok {
		return lines, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %w", filename, err)
	}

	var loaded []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			loaded = append(loaded, line)
		}
	}

	e.fileCache[filename] = loaded
	return loaded, nil
}

// requestTemplate is the parsed form of a templated Config.
type requestTemplate struct {
	engine  *TemplateEngine
	method  string
	url     *template.Template
	body    *template.Template
	headers map[string]*template.Template
}

func newRequestTemplate(cfg Config) (*requestTemplate, error) {
	e := NewTemplateEngine()
	rt := &requestTemplate{
		engine:  e,
		method:  cfg.Method,
		headers: make(map[string]*template.Template, len(cfg.Headers)),
	}

	var err error
	if rt.url, err = e.Parse("url", cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: url template: %v", ErrInvalidConfig, err)
	}
	if cfg.Body != "" {
		if rt.body, err = e.Parse("body", cfg.Body); err != nil {
			return nil, fmt.Errorf("%w: body template: %v", ErrInvalidConfig, err)
		}
	}
	for k, v := range cfg.Headers {
		t, err := e.Parse("header "+k, v)
		if err != nil {
			return nil, fmt.Errorf("%w: header %q template: %v", ErrInvalidConfig, k, err)
		}
		rt.headers[k] = t
	}
	return rt, nil
}

func (rt *requestTemplate) render(data TemplateData) (*Request, error) {
	u, err := rt.engine.Execute(rt.url, data)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:  rt.method,
		URL:     u,
		Headers: make(map[string]string, len(rt.headers)),
	}
	for k, t := range rt.headers {
		v, err := rt.engine.Execute(t, data)
		if err != nil {
			return nil, err
		}
		req.Headers[k] = v
	}
	if rt.body != nil {
		b, err := rt.engine.Execute(rt.body, data)
		if err != nil {
			return nil, err
		}
		req.Body = []byte(b)
	}
	return req, nil
}
