package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/yuin/goldmark"

	"github.com/dcarowpilot/daily-report-ai/internal/compose"
	"github.com/dcarowpilot/daily-report-ai/internal/database"
	"github.com/dcarowpilot/daily-report-ai/internal/ingest"
	"github.com/dcarowpilot/daily-report-ai/internal/media"
	"github.com/dcarowpilot/daily-report-ai/internal/normalize"
	"github.com/dcarowpilot/daily-report-ai/internal/observe"
	"github.com/dcarowpilot/daily-report-ai/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const maxUploadBytes = 64 << 20

const (
	sessionCookie = "dailyreport_session"
	// sessionIdleTTL is how long an untouched draft is kept.
	sessionIdleTTL = 24 * time.Hour
)

// ReportStore is the read side of the report database.
type ReportStore interface {
	GetReport(ctx context.Context, id string) (*report.StructuredReport, error)
	ListReports(ctx context.Context, project string, limit int) ([]database.ReportSummary, error)
	GetStats(ctx context.Context) (*database.Stats, error)
}

// Options configures a Server.
type Options struct {
	Store ReportStore
	// Pipeline runs submissions. Each browser session gets its own draft.
	Pipeline *ingest.Pipeline
	Projects []string
	// MediaDir, when set, is served under /media/.
	MediaDir string
	Metrics  *observe.Metrics
	// Composer renders Markdown exports. Default: a composer without LLM.
	Composer *compose.Composer
}

// Server is the HTTP form and report browser.
type Server struct {
	store    ReportStore
	pipeline *ingest.Pipeline
	projects []string
	mediaDir string
	metrics  *observe.Metrics
	composer *compose.Composer
	pages    map[string]*template.Template
	mux      *http.ServeMux
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	session  *ingest.Session
	lastSeen time.Time
}

// New creates a new Server.
func New(opts Options) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"joinList": normalize.FormatList,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so {{define "content"}} does not collide.
	pageNames := []string{"form.html", "reports.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		store:    opts.Store,
		pipeline: opts.Pipeline,
		projects: opts.Projects,
		mediaDir: opts.MediaDir,
		metrics:  opts.Metrics,
		composer: opts.Composer,
		pages:    pages,
		mux:      http.NewServeMux(),
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
	if s.pipeline == nil {
		s.pipeline = ingest.New(ingest.Options{})
	}
	if s.composer == nil {
		s.composer = compose.NewComposer(nil)
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	if s.mediaDir != "" {
		s.mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(s.mediaDir))))
	}
	s.mux.Handle("GET /metrics", observe.Handler())

	s.handle("GET /{$}", s.handleForm)
	s.handle("POST /draft", s.handleSaveDraft)
	s.handle("POST /draft/prefill", s.handlePrefill)
	s.handle("POST /draft/reset", s.handleReset)
	s.handle("POST /submit", s.handleSubmit)
	s.handle("GET /reports", s.handleReports)
	s.handle("GET /reports/{id}", s.handleReport)
	s.handle("GET /reports/{id}/markdown", s.handleReportMarkdown)
	s.handle("GET /api/reports/{id}", s.handleReportJSON)
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	if s.metrics == nil {
		s.mux.HandleFunc(pattern, h)
		return
	}
	route := pattern[strings.IndexByte(pattern, ' ')+1:]
	s.mux.Handle(pattern, observe.Middleware(s.metrics, route)(h))
}

// sessionFor returns the session named by the request cookie, starting a new
// one (and setting the cookie) when the cookie is missing or unknown.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *ingest.Session {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, err := r.Cookie(sessionCookie); err == nil {
		if e, ok := s.sessions[c.Value]; ok {
			e.lastSeen = now
			return e.session
		}
	}

	s.pruneLocked(now)
	id := ulid.Make().String()
	e := &sessionEntry{session: ingest.NewSession(s.pipeline, s.projects), lastSeen: now}
	s.sessions[id] = e
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return e.session
}

// lookupSession returns the request's existing session without creating one.
func (s *Server) lookupSession(r *http.Request) *ingest.Session {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[c.Value]; ok {
		return e.session
	}
	return nil
}

// pruneLocked drops sessions idle for longer than sessionIdleTTL. Sessions
// with a submission in flight are kept.
func (s *Server) pruneLocked(now time.Time) {
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > sessionIdleTTL && !inFlight(e.session.State()) {
			delete(s.sessions, id)
		}
	}
}

func inFlight(st ingest.State) bool {
	return st != ingest.Idle && st != ingest.Recording && !st.Terminal()
}

type formPage struct {
	Draft    ingest.Draft
	State    ingest.State
	Projects []string
	Notices  []ingest.Notice
	Error    string
	Message  string
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	page := s.newFormPage(s.sessionFor(w, r))
	switch r.URL.Query().Get("msg") {
	case "prefilled":
		page.Message = "Fields filled from notes and voice note. Review before submitting."
	case "reset":
		page.Message = "Draft cleared."
	}
	s.render(w, http.StatusOK, "form.html", page)
}

func (s *Server) newFormPage(sess *ingest.Session) formPage {
	page := formPage{
		Draft:    sess.Draft(),
		State:    sess.State(),
		Projects: s.projects,
	}
	if last := sess.LastResult(); last != nil && last.DraftID == page.Draft.ID {
		page.Notices = last.Notices
	}
	return page
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	if err := s.applyForm(sess, r); err != nil {
		s.formError(w, sess, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePrefill(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	if err := s.applyForm(sess, r); err != nil {
		s.formError(w, sess, err)
		return
	}
	notices, err := sess.Prefill(r.Context())
	if err != nil {
		s.formError(w, sess, err)
		return
	}
	if len(notices) > 0 {
		page := s.newFormPage(sess)
		page.Notices = notices
		s.render(w, http.StatusOK, "form.html", page)
		return
	}
	http.Redirect(w, r, "/?msg=prefilled", http.StatusSeeOther)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	if err := sess.Reset(); err != nil {
		s.formError(w, sess, err)
		return
	}
	http.Redirect(w, r, "/?msg=reset", http.StatusSeeOther)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	if err := s.applyForm(sess, r); err != nil {
		s.formError(w, sess, err)
		return
	}
	res, err := sess.Submit(r.Context())
	if err != nil {
		s.formError(w, sess, err)
		return
	}
	http.Redirect(w, r, "/reports/"+res.Record.ID+"?saved=1", http.StatusSeeOther)
}

// formError re-renders the form with the draft intact.
func (s *Server) formError(w http.ResponseWriter, sess *ingest.Session, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ingest.ErrUnknownProject), errors.Is(err, ingest.ErrInvalidDate), errors.Is(err, errBadForm):
		status = http.StatusBadRequest
	case errors.Is(err, ingest.ErrBusy):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("Form action failed: %v", err)
	}

	page := s.newFormPage(sess)
	page.Error = err.Error()
	if last := sess.LastResult(); last != nil && last.Err != nil {
		page.Notices = last.Notices
	}
	s.render(w, status, "form.html", page)
}

var errBadForm = errors.New("invalid form")

// applyForm copies the posted form into the session draft. New photos are
// appended; a new voice note replaces the previous one.
func (s *Server) applyForm(sess *ingest.Session, r *http.Request) error {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return fmt.Errorf("%w: %v", errBadForm, err)
	}

	var photos []media.File
	var voice media.File
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["photos"] {
			f, err := readUpload(fh)
			if err != nil {
				return fmt.Errorf("%w: %v", errBadForm, err)
			}
			if !f.Empty() {
				photos = append(photos, f)
			}
		}
		if fhs := r.MultipartForm.File["audio"]; len(fhs) > 0 {
			f, err := readUpload(fhs[0])
			if err != nil {
				return fmt.Errorf("%w: %v", errBadForm, err)
			}
			voice = f
		}
	}

	err := sess.Update(func(d *ingest.Draft) {
		d.Date = r.FormValue("date")
		d.Project = r.FormValue("project")
		d.Author = r.FormValue("author")
		d.Weather = r.FormValue("weather")
		d.CrewText = r.FormValue("crew")
		d.EquipmentText = r.FormValue("equipment")
		d.ActivitiesText = r.FormValue("activities")
		d.QuantitiesText = r.FormValue("quantities")
		d.SubsText = r.FormValue("subs")
		d.Safety = r.FormValue("safety")
		d.IssuesDelays = r.FormValue("issues")
		d.Notes = r.FormValue("notes")
		d.Transcript = r.FormValue("transcript")
		d.AutoExtract = r.FormValue("auto_extract") != ""
		d.Photos = append(d.Photos, photos...)
	})
	if err != nil {
		return err
	}
	if !voice.Empty() {
		return sess.AttachAudio(voice)
	}
	return nil
}

func readUpload(fh *multipart.FileHeader) (media.File, error) {
	f, err := fh.Open()
	if err != nil {
		return media.File{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return media.File{}, err
	}
	return media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	reports, err := s.store.ListReports(r.Context(), project, limit)
	if err != nil {
		log.Printf("Listing reports: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		log.Printf("Loading stats: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, http.StatusOK, "reports.html", map[string]any{
		"Reports":  reports,
		"Stats":    stats,
		"Project":  project,
		"Projects": s.projects,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	var notices []ingest.Notice
	if sess := s.lookupSession(r); sess != nil {
		if last := sess.LastResult(); last != nil && last.DraftID == rep.ID {
			notices = last.Notices
		}
	}
	s.render(w, http.StatusOK, "report.html", map[string]any{
		"Report":  rep,
		"Saved":   r.URL.Query().Get("saved") != "",
		"Notices": notices,
	})
}

func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		log.Printf("Encoding report %s: %v", rep.ID, err)
	}
}

func (s *Server) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	doc := s.composer.Compose(r.Context(), rep)
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Date+"-"+rep.ID+".md"))
	io.WriteString(w, doc.Markdown())
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (*report.StructuredReport, bool) {
	id := r.PathValue("id")
	rep, err := s.store.GetReport(r.Context(), id)
	if err != nil {
		log.Printf("Loading report %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	if rep == nil {
		http.NotFound(w, r)
		return nil, false
	}
	return rep, true
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on host:port.
func Serve(opts Options, host string, port int) error {
	srv, err := New(opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
