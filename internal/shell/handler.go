// Package shell provides the interactive terminal interface for mychat.
// It routes raw readline input lines to backslash commands or to the conversation session.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"

	"mychat/internal/logger"
	"mychat/internal/services"
	"mychat/internal/session"
	"mychat/pkg/chattypes"
)

// ModelResolver maps a UI tier and temperature to a provider model.
type ModelResolver interface {
	ModelFor(tier chattypes.Tier, temperature float64) (chattypes.ModelConfig, error)
	TierLabel(tier chattypes.Tier) string
}

// Renderer renders reply markdown for the terminal.
type Renderer interface {
	Render(markdown string) (string, error)
}

// TrafficLog exposes captured provider HTTP exchanges for \debug.
type TrafficLog interface {
	Exchanges() []services.HTTPExchange
}

// LineReader reads one line of input. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
}

// Options configure a Shell.
type Options struct {
	Session     *session.Session
	Completer   chattypes.Completer
	Models      ModelResolver
	Renderer    Renderer
	Out         io.Writer
	Tier        chattypes.Tier
	Temperature float64
	// Traffic is nil unless --debug-http is on.
	Traffic TrafficLog
}

// Shell is the terminal UI shell. It is not safe for concurrent use; Run
// handles one line at a time.
type Shell struct {
	opts        Options
	tier        chattypes.Tier
	temperature float64
	styles      styles
	exiting     bool
}

type styles struct {
	assistant lipgloss.Style
	errorText lipgloss.Style
	system    lipgloss.Style
	panel     lipgloss.Style
	total     lipgloss.Style
}

func newStyles() styles {
	return styles{
		assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		errorText: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		system:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
		panel:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1),
		total:     lipgloss.NewStyle().Bold(true),
	}
}

// New creates a Shell.
func New(opts Options) (*Shell, error) {
	if opts.Session == nil || opts.Completer == nil || opts.Models == nil || opts.Out == nil {
		return nil, errors.New("shell requires a session, a completer, a model resolver and an output")
	}
	tier := opts.Tier
	if tier == "" {
		tier = chattypes.TierFast
	}
	if err := chattypes.ValidateTemperature(opts.Temperature); err != nil {
		return nil, err
	}
	return &Shell{opts: opts, tier: tier, temperature: opts.Temperature, styles: newStyles()}, nil
}

// Tier returns the selected tier.
func (s *Shell) Tier() chattypes.Tier { return s.tier }

// Temperature returns the selected temperature.
func (s *Shell) Temperature() float64 { return s.temperature }

// Run reads lines from r and handles each one verbatim until \exit, end of
// input, or Ctrl-C on an empty line.
func (s *Shell) Run(ctx context.Context, r LineReader) error {
	for !s.exiting {
		if ctx.Err() != nil {
			return nil
		}
		line, err := r.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if strings.TrimSpace(line) == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("failed to read input: %w", err)
		}
		s.HandleLine(ctx, line)
	}
	return nil
}

// HandleLine executes a backslash command or sends the line as a user turn.
func (s *Shell) HandleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if !strings.HasPrefix(line, `\`) {
		s.sendMessage(ctx, line)
		return
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, `\`), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "reset":
		s.opts.Session.Reset()
		s.println("Conversation cleared.")
	case "model":
		s.setModel(arg)
	case "temperature":
		s.setTemperature(arg)
	case "cost":
		s.println(s.costPanel())
	case "history":
		s.printHistory()
	case "debug":
		s.printTraffic()
	case "help":
		s.println(helpText)
	case "exit":
		s.exiting = true
	default:
		s.printError(fmt.Sprintf("unknown command \\%s, type \\help for commands", name))
	}
}

const helpText = `Type a message to chat. Commands:
  \model [fast|advanced]   show or switch the model
  \temperature [0-2]       show or set the temperature
  \cost                    show the cost of this conversation
  \history                 show the conversation
  \reset                   clear the conversation
  \debug                   show recent provider HTTP requests (--debug-http)
  \help                    show this help
  \exit                    quit`

func (s *Shell) sendMessage(ctx context.Context, text string) {
	model, err := s.opts.Models.ModelFor(s.tier, s.temperature)
	if err != nil {
		s.printError(err.Error())
		return
	}
	if err := s.opts.Session.AppendUser(text); err != nil {
		s.printError(err.Error())
		return
	}

	reply, err := s.opts.Session.RequestReply(ctx, s.opts.Completer, model)
	if err != nil {
		logger.Debug("Completion failed in shell", "error", err)
		s.printError(err.Error())
		return
	}

	s.println(s.styles.assistant.Render("assistant") + fmt.Sprintf(" ($%.5f)", reply.Cost))
	s.println(s.render(reply.Text))
}

func (s *Shell) setModel(arg string) {
	if arg == "" {
		s.println(fmt.Sprintf("Model: %s (%s)", s.tier, s.opts.Models.TierLabel(s.tier)))
		return
	}
	tier, err := chattypes.ParseTier(arg)
	if err != nil {
		s.printError(err.Error())
		return
	}
	s.tier = tier
	s.println(fmt.Sprintf("Model set to %s (%s).", tier, s.opts.Models.TierLabel(tier)))
}

func (s *Shell) setTemperature(arg string) {
	if arg == "" {
		s.println(fmt.Sprintf("Temperature: %.1f", s.temperature))
		return
	}
	t, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		s.printError(fmt.Sprintf("%v: %q is not a number", chattypes.ErrTemperatureRange, arg))
		return
	}
	if err := chattypes.ValidateTemperature(t); err != nil {
		s.printError(err.Error())
		return
	}
	s.temperature = t
	s.println(fmt.Sprintf("Temperature set to %.1f.", t))
}

func (s *Shell) costPanel() string {
	var b strings.Builder
	b.WriteString(s.styles.total.Render(fmt.Sprintf("Total cost: $%.5f", s.opts.Session.TotalCost())))
	for _, c := range s.opts.Session.Costs() {
		b.WriteString(fmt.Sprintf("\n- $%.5f", c))
	}
	return s.styles.panel.Render(b.String())
}

func (s *Shell) printHistory() {
	for _, msg := range s.opts.Session.History() {
		switch msg.Role {
		case chattypes.RoleSystem:
			s.println(s.styles.system.Render("System message: " + msg.Content))
		case chattypes.RoleUser:
			s.println("you> " + msg.Content)
		case chattypes.RoleAssistant:
			s.println(s.styles.assistant.Render("assistant"))
			s.println(s.render(msg.Content))
		}
	}
}

func (s *Shell) printTraffic() {
	if s.opts.Traffic == nil {
		s.println("HTTP debugging is off; start with --debug-http.")
		return
	}
	exchanges := s.opts.Traffic.Exchanges()
	if len(exchanges) == 0 {
		s.println("No provider requests yet.")
		return
	}
	for _, ex := range exchanges {
		result := strconv.Itoa(ex.StatusCode)
		if ex.Error != "" {
			result = "failed: " + ex.Error
		}
		s.println(fmt.Sprintf("%s %s %s (%dms)", ex.Method, ex.URL, result, ex.DurationMS))
	}
}

func (s *Shell) render(markdown string) string {
	if s.opts.Renderer == nil {
		return markdown
	}
	out, err := s.opts.Renderer.Render(markdown)
	if err != nil {
		logger.Warn("Markdown rendering failed", "error", err)
		return markdown
	}
	return strings.TrimRight(out, "\n")
}

func (s *Shell) println(text string) {
	_, _ = fmt.Fprintln(s.opts.Out, text)
}

func (s *Shell) printError(text string) {
	s.println(s.styles.errorText.Render("error: ") + text)
}
