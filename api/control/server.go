// Package control exposes session lifecycle, state and device overrides over
// HTTP.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/kilianp07/homesim/core/device"
	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/simulation"
	"github.com/kilianp07/homesim/infra/logger"
	"github.com/kilianp07/homesim/infra/trace"
)

// ErrSessionLimit is returned when MaxSessions is reached.
var ErrSessionLimit = errors.New("session limit reached")

// Options wires optional collaborators of the server.
type Options struct {
	// OnDelete is called after a session is removed.
	OnDelete func(id string)
	// Trace serves GET /api/sessions/{id}/trace when set.
	Trace *trace.Store
	// WebSocket and Metrics are mounted on /ws and /metrics when set.
	WebSocket   http.Handler
	Metrics     http.Handler
	MaxSessions int
	CORSOrigins []string
}

// Server is the HTTP control API.
type Server struct {
	mgr  *simulation.Manager
	opts Options
	log  logger.Logger
	// create serializes the session limit check.
	create sync.Mutex
}

// NewServer creates the API over mgr.
func NewServer(mgr *simulation.Manager, opts Options) *Server {
	return &Server{mgr: mgr, opts: opts, log: logger.New("control-api")}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", s.listSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.deleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/{action:start|stop|reset|step}", s.lifecycle).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/commands", s.command).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/plan", s.plan).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/totals", s.totals).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/devices", s.devices).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/devices/{device}", s.setOverride).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/devices/{device}", s.clearOverride).Methods(http.MethodDelete)
	if s.opts.Trace != nil {
		api.HandleFunc("/sessions/{id}/trace", s.trace).Methods(http.MethodGet)
	}
	if s.opts.WebSocket != nil {
		r.Handle("/ws", s.opts.WebSocket)
	}
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}
	return r
}

// Handler wraps the router with CORS.
func (s *Server) Handler() http.Handler {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.Router())
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	s.log.Infof("control API listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type sessionInfo struct {
	ID        string `json:"id"`
	Running   bool   `json:"running"`
	Step      int    `json:"step"`
	Day       int    `json:"day"`
	TimeOfDay string `json:"timeOfDay"`
}

func info(sess *simulation.Session) sessionInfo {
	snap := sess.Current()
	return sessionInfo{ID: sess.ID(), Running: sess.Running(), Step: snap.Step, Day: snap.Day, TimeOfDay: snap.TimeOfDay}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, simulation.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, device.ErrUnknownDevice):
		status = http.StatusNotFound
	case errors.Is(err, simulation.ErrInvalidCommand):
		status = http.StatusBadRequest
	case errors.Is(err, ErrSessionLimit):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*simulation.Session, bool) {
	sess, err := s.mgr.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": len(s.mgr.List())})
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	out := []sessionInfo{}
	for _, id := range s.mgr.List() {
		if sess, err := s.mgr.Get(id); err == nil {
			out = append(out, info(sess))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type createRequest struct {
	Seed *int64 `json:"seed"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
			return
		}
	}
	s.create.Lock()
	defer s.create.Unlock()
	if s.opts.MaxSessions > 0 && len(s.mgr.List()) >= s.opts.MaxSessions {
		writeError(w, ErrSessionLimit)
		return
	}
	sess, err := s.mgr.Create(req.Seed)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Infof("session %s created", sess.ID())
	writeJSON(w, http.StatusCreated, info(sess))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Current())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.mgr.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	if s.opts.OnDelete != nil {
		s.opts.OnDelete(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, simulation.Command{Action: mux.Vars(r)["action"]})
}

func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	var cmd simulation.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	s.apply(w, r, cmd)
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, cmd simulation.Command) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if cmd.Action == simulation.ActionStep {
		if err := cmd.Validate(); err != nil {
			writeError(w, err)
			return
		}
		snap, _ := s.mgr.Advance(sess)
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if err := sess.Apply(cmd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Current())
}

type planResponse struct {
	Day      int                  `json:"day"`
	Windows  map[string]windowOut `json:"windows"`
	Skipped  map[string]string    `json:"skipped,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
}

type windowOut struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Steps int    `json:"steps"`
}

func stepTime(step int) string {
	return model.Clock{Step: step}.TimeOfDay()
}

func (s *Server) plan(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	p, ok := sess.Plan()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no plan drawn yet"})
		return
	}
	out := planResponse{Day: p.Day, Windows: make(map[string]windowOut, len(p.Windows)), Warnings: p.Warnings}
	for id, win := range p.Windows {
		out.Windows[id] = windowOut{Start: stepTime(win.Start), End: stepTime(win.End), Steps: win.End - win.Start}
	}
	if len(p.Skipped) > 0 {
		out.Skipped = make(map[string]string, len(p.Skipped))
		for id, err := range p.Skipped {
			out.Skipped[id] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type totalsResponse struct {
	Totals  simulation.Totals      `json:"totals"`
	LastDay *simulation.DaySummary `json:"lastDay,omitempty"`
}

func (s *Server) totals(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	resp := totalsResponse{Totals: sess.Totals()}
	if d, ok := sess.LastDay(); ok {
		resp.LastDay = &d
	}
	writeJSON(w, http.StatusOK, resp)
}

type deviceOut struct {
	model.DeviceSnapshot
	Override *bool `json:"override,omitempty"`
}

func (s *Server) devices(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	overrides := sess.Overrides()
	snap := sess.Current()
	out := make([]deviceOut, 0, len(snap.Devices))
	for _, d := range snap.Devices {
		o := deviceOut{DeviceSnapshot: d}
		if v, ok := overrides[d.ID]; ok {
			o.Override = &v
		}
		out = append(out, o)
	}
	writeJSON(w, http.StatusOK, out)
}

type overrideRequest struct {
	Active *bool `json:"active"`
}

func (s *Server) setOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: `body must be {"active": bool}`})
		return
	}
	s.apply(w, r, simulation.Command{Action: simulation.ActionOverride, Device: mux.Vars(r)["device"], Active: *req.Active})
}

func (s *Server) clearOverride(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, simulation.Command{Action: simulation.ActionClear, Device: mux.Vars(r)["device"]})
}

func (s *Server) trace(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := trace.Query{SessionID: id, Kind: r.URL.Query().Get("kind")}
	if v := r.URL.Query().Get("day"); v != "" {
		day, err := strconv.Atoi(v)
		if err != nil || day < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "day must be a positive integer"})
			return
		}
		q.Day = day
	}
	recs, err := s.opts.Trace.Query(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []trace.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}
