package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"mychat/pkg/chattypes"
)

// entryFor resolves the request's session entry, creating one if needed, and
// refreshes the cookie.
func (s *Server) entryFor(w http.ResponseWriter, r *http.Request) *Entry {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	entry, id := s.opts.Store.Get(id)
	setSessionCookie(w, id)
	return entry
}

// viewEntry resolves the request's stored entry without creating one. Browsers
// that have not chatted yet get an unstored blank entry and no cookie.
func (s *Server) viewEntry(w http.ResponseWriter, r *http.Request) *Entry {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if entry, ok := s.opts.Store.Lookup(c.Value); ok {
			setSessionCookie(w, c.Value)
			return entry
		}
	}
	return s.opts.Store.Blank()
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entry := s.viewEntry(w, r)
	entry.mu.Lock()
	data := s.pageData(entry, "")
	entry.mu.Unlock()
	s.renderPage(w, http.StatusOK, data)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	tier, temperature, err := parseSelection(r.PostForm.Get("model"), r.PostForm.Get("temperature"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	model, err := s.opts.Models.ModelFor(tier, temperature)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry := s.entryFor(w, r)
	if !entry.mu.TryLock() {
		http.Error(w, "a reply is already being generated for this session", http.StatusConflict)
		return
	}
	defer entry.mu.Unlock()

	entry.tier = tier
	entry.temperature = temperature

	message := r.PostForm.Get("message")
	if strings.TrimSpace(message) == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	// Only submissions that will reach the completion service spend a token.
	if !entry.limiter.Allow() {
		http.Error(w, "too many messages, slow down", http.StatusTooManyRequests)
		return
	}

	sess := entry.Session()
	if err := sess.AppendUser(message); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := sess.RequestReply(r.Context(), s.opts.Completer, model); err != nil {
		s.log.Warn("completion failed", "tier", tier, "model", model.Model, "error", err)
		s.renderPage(w, http.StatusBadGateway, s.pageData(entry, completionErrorMessage(err)))
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	entry := s.viewEntry(w, r)
	entry.mu.Lock()
	entry.Session().Reset()
	entry.mu.Unlock()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSessionAPI(w http.ResponseWriter, r *http.Request) {
	entry := s.viewEntry(w, r)
	entry.mu.Lock()
	snapshot := entry.Session().Snapshot()
	entry.mu.Unlock()
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"version":         s.opts.Version,
		"development":     s.opts.Development,
		"catalog_version": s.opts.CatalogVersion,
		"sessions":        s.opts.Store.Len(),
	})
}

func (s *Server) handleDebug(w http.ResponseWriter, _ *http.Request) {
	data, err := s.opts.Debug.CapturedJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(data))
}

// parseSelection validates the model and temperature form fields. An empty
// model selects the fast tier.
func parseSelection(modelField, temperatureField string) (chattypes.Tier, float64, error) {
	tier := chattypes.TierFast
	if strings.TrimSpace(modelField) != "" {
		parsed, err := chattypes.ParseTier(modelField)
		if err != nil {
			return "", 0, err
		}
		tier = parsed
	}

	temperature := 0.0
	if strings.TrimSpace(temperatureField) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(temperatureField), 64)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %q is not a number", chattypes.ErrTemperatureRange, temperatureField)
		}
		temperature = parsed
	}
	if err := chattypes.ValidateTemperature(temperature); err != nil {
		return "", 0, err
	}
	return tier, temperature, nil
}

func completionErrorMessage(err error) string {
	var cerr *chattypes.CompletionServiceError
	if !errors.As(err, &cerr) {
		return "The reply could not be generated: " + err.Error()
	}
	switch cerr.Kind {
	case chattypes.KindAuthentication:
		return "The completion service rejected the API key for " + cerr.Provider + "."
	case chattypes.KindRateLimited:
		return "The completion service is rate limiting requests. Try again shortly."
	case chattypes.KindNetwork:
		return "The completion service could not be reached."
	case chattypes.KindMalformed:
		return "The completion service returned a response that could not be used."
	default:
		return "The completion service returned an error: " + cerr.Error()
	}
}

// pageData builds the view model. Callers must hold the entry lock.
func (s *Server) pageData(entry *Entry, errMsg string) pageData {
	sess := entry.Session()
	data := pageData{
		Title:       PageTitle,
		Version:     s.opts.Version,
		Temperature: entry.temperature,
		TotalCost:   sess.TotalCost(),
		Costs:       sess.Costs(),
		Error:       errMsg,
	}

	for _, tier := range chattypes.Tiers() {
		data.Tiers = append(data.Tiers, tierOption{
			Value:   string(tier),
			Label:   s.opts.Models.TierLabel(tier),
			Checked: tier == entry.tier,
		})
	}

	for _, msg := range sess.History() {
		view := messageView{Role: msg.Role.String(), Content: msg.Content}
		if msg.Role != chattypes.RoleSystem {
			view.HTML = s.messageHTML(msg.Content)
		}
		data.Messages = append(data.Messages, view)
	}
	return data
}

func (s *Server) messageHTML(content string) template.HTML {
	if s.opts.Markdown != nil {
		html, err := s.opts.Markdown.RenderHTML(content)
		if err == nil {
			return html
		}
		s.log.Warn("markdown rendering failed", "error", err)
	}
	return template.HTML("<p>" + template.HTMLEscapeString(content) + "</p>")
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		s.log.Error("page rendering failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
