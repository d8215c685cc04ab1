package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"mychat/internal/logger"
)

// DefaultWordWrap is the terminal wrap width used when none is configured.
const DefaultWordWrap = 80

// MarkdownService renders chat messages as markdown, to ANSI for the terminal
// with Glamour and to sanitized HTML for the web page with goldmark.
type MarkdownService struct {
	style    string
	wordWrap int

	mu          sync.Mutex
	initialized bool
	renderer    *glamour.TermRenderer
	html        goldmark.Markdown
	policy      *bluemonday.Policy
}

// NewMarkdownService creates a MarkdownService. style is a Glamour standard style
// ("dark", "light", "notty", "ascii") or "auto" / "" for terminal detection.
func NewMarkdownService(style string, wordWrap int) *MarkdownService {
	if wordWrap <= 0 {
		wordWrap = DefaultWordWrap
	}
	return &MarkdownService{style: style, wordWrap: wordWrap}
}

// Name returns the service name "markdown" for registration.
func (m *MarkdownService) Name() string {
	return "markdown"
}

// Initialize builds the terminal and HTML renderers.
func (m *MarkdownService) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	renderer, err := newTermRenderer(m.style, m.wordWrap)
	if err != nil {
		return err
	}

	m.renderer = renderer
	m.html = goldmark.New(goldmark.WithExtensions(extension.GFM))
	m.policy = bluemonday.UGCPolicy()
	m.initialized = true

	logger.Debug("MarkdownService initialized", "style", m.style, "word_wrap", m.wordWrap)
	return nil
}

func newTermRenderer(style string, wordWrap int) (*glamour.TermRenderer, error) {
	styleOption := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOption = glamour.WithStandardStyle(style)
	}
	renderer, err := glamour.NewTermRenderer(styleOption, glamour.WithWordWrap(wordWrap))
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return renderer, nil
}

// Render renders markdown content to ANSI terminal output.
func (m *MarkdownService) Render(markdown string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}

// SetWordWrap rebuilds the terminal renderer with a new wrap width.
func (m *MarkdownService) SetWordWrap(width int) error {
	if width <= 0 {
		return fmt.Errorf("word wrap width must be positive, got %d", width)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	renderer, err := newTermRenderer(m.style, width)
	if err != nil {
		return err
	}
	m.renderer = renderer
	m.wordWrap = width
	return nil
}

// RenderHTML converts markdown into sanitized HTML safe to embed in a page.
func (m *MarkdownService) RenderHTML(markdown string) (template.HTML, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}

	var buf bytes.Buffer
	if err := m.html.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	// #nosec G203 -- output has been through the bluemonday UGC policy.
	return template.HTML(m.policy.SanitizeBytes(buf.Bytes())), nil
}
