// Package web provides the embedded web UI for browsing sessions.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/exprcalc/pkg/store"
	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler serves the web UI pages.
type Handler struct {
	store   *store.Store
	funcMap template.FuncMap
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Data      interface{}
}

// New creates a new web UI handler.
func New(s *store.Store) *Handler {
	return &Handler{
		store: s,
		funcMap: template.FuncMap{
			"shortName":  shortName,
			"timeAgo":    timeAgo,
			"formatTime": formatTime,
			"duration":   duration,
			"stateClass": stateClass,
			"stateIcon":  stateIcon,
			"truncate":   truncate,
		},
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data interface{}) error {
	// Each page is parsed together with the layout so define blocks of
	// different pages never collide.
	tmpl, err := template.New("").Funcs(h.funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
	if err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	pd := pageData{
		NavActive: navActive,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pd); err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.dashboard)
	app.Get("/ui/sessions/:id", h.sessionDetail)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type dashboardContent struct {
	Sessions       []*sessionView
	RecentEvals    []*evaluationView
	SucceededCount int
	FailedCount    int
}

type sessionView struct {
	*store.Session
	VariableCount int
}

type evaluationView struct {
	*store.Evaluation
	SessionID string
	Session   string
}

type variableView struct {
	Name  string
	Type  string
	Value string
}

type sessionDetailContent struct {
	Session     *store.Session
	Variables   []variableView
	Evaluations []*store.Evaluation
}

type notFoundContent struct {
	Message string
}

// --- Page Handlers ---

func (h *Handler) dashboard(c *fiber.Ctx) error {
	sessions := h.store.ListSessions()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdateTime.After(sessions[j].UpdateTime)
	})

	var views []*sessionView
	var allEvals []*evaluationView
	var succeeded, failed int

	for _, sess := range sessions {
		views = append(views, &sessionView{
			Session:       sess,
			VariableCount: len(sess.Runtime().Variables()),
		})

		evals, err := h.store.ListEvaluations(sess.ID)
		if err != nil {
			// Deleted since it was listed.
			continue
		}
		for _, e := range evals {
			allEvals = append(allEvals, &evaluationView{
				Evaluation: e,
				SessionID:  sess.ID,
				Session:    sessionLabel(sess),
			})
			switch e.State {
			case store.EvaluationSucceeded:
				succeeded++
			case store.EvaluationFailed:
				failed++
			}
		}
	}

	sort.SliceStable(allEvals, func(i, j int) bool {
		return allEvals[i].StartTime.After(allEvals[j].StartTime)
	})

	recent := allEvals
	if len(recent) > 10 {
		recent = recent[:10]
	}

	return h.render(c, "dashboard.html", "dashboard", dashboardContent{
		Sessions:       views,
		RecentEvals:    recent,
		SucceededCount: succeeded,
		FailedCount:    failed,
	})
}

func (h *Handler) sessionDetail(c *fiber.Ctx) error {
	id := c.Params("id")

	sess, err := h.store.GetSession(id)
	if err != nil {
		return h.render(c, "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Session '%s' not found", id),
		})
	}

	evals, err := h.store.ListEvaluations(id)
	if err != nil {
		return h.render(c, "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Session '%s' not found", id),
		})
	}

	return h.render(c, "session_detail.html", "dashboard", sessionDetailContent{
		Session:     sess,
		Variables:   variableViews(sess.Runtime().Variables()),
		Evaluations: evals,
	})
}

// --- Template Helpers ---

func variableViews(vars map[string]types.Value) []variableView {
	out := make([]variableView, 0, len(vars))
	for name, v := range vars {
		out = append(out, variableView{Name: name, Type: v.Type().String(), Value: v.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sessionLabel(sess *store.Session) string {
	if sess.DisplayName != "" {
		return sess.DisplayName
	}
	return sess.ID
}

func shortName(fullName string) string {
	parts := strings.Split(fullName, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return fullName
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func duration(start, end time.Time) string {
	d := end.Sub(start)
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func stateClass(state store.EvaluationState) string {
	switch state {
	case store.EvaluationSucceeded:
		return "state-succeeded"
	case store.EvaluationFailed:
		return "state-failed"
	default:
		return ""
	}
}

func stateIcon(state store.EvaluationState) template.HTML {
	switch state {
	case store.EvaluationSucceeded:
		return "&#10003;"
	case store.EvaluationFailed:
		return "&#10007;"
	default:
		return "&#8226;"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
