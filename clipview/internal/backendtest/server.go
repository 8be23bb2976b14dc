// Package backendtest runs an in-memory clipboard backend for tests. It
// serves the same HTTP routes and push endpoint as the real backend and
// records how often each operation was called.
package backendtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Hewenz/pastee/clipview/internal/types"
)

// Operation names accepted by Calls and FailNext.
const (
	OpList    = "list"
	OpSearch  = "search"
	OpCount   = "count"
	OpDelete  = "delete"
	OpPin     = "pin"
	OpClear   = "clear"
	OpImage   = "image"
	OpContent = "content"
	OpEvents  = "events"
)

const searchLimit = 50

type clip struct {
	entry types.Entry
	image []byte
}

type subscriber struct {
	out    chan types.Envelope
	cancel context.CancelFunc
}

// Server is a fake backend bound to an httptest listener.
type Server struct {
	URL string

	srv *httptest.Server

	mu       sync.Mutex
	clips    map[int64]*clip
	nextID   int64
	calls    map[string]int
	failNext map[string]int
	subs     map[*subscriber]struct{}
}

// New starts a server and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		clips:    make(map[int64]*clip),
		calls:    make(map[string]int),
		failNext: make(map[string]int),
		subs:     make(map[*subscriber]struct{}),
	}
	s.srv = httptest.NewServer(s.router())
	s.URL = s.srv.URL
	t.Cleanup(s.Close)
	return s
}

// Close disconnects push subscribers and stops the listener.
func (s *Server) Close() {
	s.DropSubscribers()
	s.srv.Close()
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/clips", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/clips/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/clips/count", s.handleCount).Methods(http.MethodGet)
	api.HandleFunc("/clips/clear-unpinned", s.handleClear).Methods(http.MethodPost)
	api.HandleFunc("/clips/{id:[0-9]+}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/clips/{id:[0-9]+}/pin", s.handlePin).Methods(http.MethodPost)
	api.HandleFunc("/clips/{id:[0-9]+}/image", s.handleImage).Methods(http.MethodGet)
	api.HandleFunc("/clips/{id:[0-9]+}/content", s.handleContent).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	return r
}

// ------------------------------------------------------------------
// Seeding and inspection
// ------------------------------------------------------------------

// AddText stores a text entry and returns it.
func (s *Server) AddText(preview string) types.Entry {
	return s.add(types.ContentText, preview, nil)
}

// AddEntry stores an entry of the given type.
func (s *Server) AddEntry(ct types.ContentType, preview string) types.Entry {
	return s.add(ct, preview, nil)
}

// AddImage stores an image entry whose thumbnail endpoint serves thumb.
func (s *Server) AddImage(thumb []byte) types.Entry {
	return s.add(types.ContentImage, "Image", thumb)
}

func (s *Server) add(ct types.ContentType, preview string, image []byte) types.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e := types.Entry{
		ID:          s.nextID,
		ContentType: ct,
		Preview:     preview,
		CreatedAt:   time.Now().UnixMicro() + s.nextID,
		Tags:        []string{strings.ToLower(string(ct))},
	}
	s.clips[e.ID] = &clip{entry: e, image: image}
	return e
}

// Len reports how many entries are stored.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clips)
}

// Calls reports how many requests op has served, failures included.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// FailNext makes the next request for op answer with status.
func (s *Server) FailNext(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = status
}

// begin records a call and reports whether an injected failure was written.
func (s *Server) begin(w http.ResponseWriter, op string) bool {
	s.mu.Lock()
	s.calls[op]++
	status, fail := s.failNext[op]
	delete(s.failNext, op)
	s.mu.Unlock()
	if fail {
		writeError(w, status, "injected failure")
	}
	return fail
}

// ------------------------------------------------------------------
// Push notifications
// ------------------------------------------------------------------

// Publish sends one notification to every connected subscriber.
func (s *Server) Publish(ch types.Channel, payload any) error {
	env, err := types.NewEnvelope(ch, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.out <- env:
		default:
			log.Warn().Str("channel", string(ch)).Msg("backendtest: subscriber buffer full, dropping")
		}
	}
	return nil
}

// Subscribers reports how many push connections are open.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// WaitSubscribers blocks until at least n push connections are open.
func (s *Server) WaitSubscribers(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Subscribers() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s.Subscribers() >= n
}

// DropSubscribers closes every push connection, as a backend restart would.
func (s *Server) DropSubscribers() {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
		delete(s.subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.cancel()
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.begin(w, OpEvents) {
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	ctx = conn.CloseRead(ctx)

	sub := &subscriber{out: make(chan types.Envelope, 64), cancel: cancel}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		cancel()
		_ = conn.Close(websocket.StatusGoingAway, "server closing")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-sub.out:
			wctx, wcancel := context.WithTimeout(ctx, time.Second)
			err := wsjson.Write(wctx, conn, env)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}

// ------------------------------------------------------------------
// HTTP handlers
// ------------------------------------------------------------------

// handleList GET /api/clips?limit=&offset=
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.begin(w, OpList) {
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	all := s.sorted(nil)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	writeJSON(w, http.StatusOK, all[offset:end])
}

// handleSearch GET /api/clips/search?query=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.begin(w, OpSearch) {
		return
	}
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	out := s.sorted(func(e types.Entry) bool {
		return strings.Contains(strings.ToLower(e.Preview), q)
	})
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCount GET /api/clips/count
func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	if s.begin(w, OpCount) {
		return
	}
	writeJSON(w, http.StatusOK, types.CountResponse{Count: int64(s.Len())})
}

// handleDelete DELETE /api/clips/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if s.begin(w, OpDelete) {
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	s.mu.Lock()
	_, ok := s.clips[id]
	delete(s.clips, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "clip not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePin POST /api/clips/{id}/pin
func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	if s.begin(w, OpPin) {
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	s.mu.Lock()
	c, ok := s.clips[id]
	var pinned bool
	if ok {
		c.entry.IsPinned = !c.entry.IsPinned
		pinned = c.entry.IsPinned
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "clip not found")
		return
	}
	writeJSON(w, http.StatusOK, types.PinResponse{IsPinned: pinned})
}

// handleClear POST /api/clips/clear-unpinned
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.begin(w, OpClear) {
		return
	}
	s.mu.Lock()
	var deleted int64
	for id, c := range s.clips {
		if !c.entry.IsPinned {
			delete(s.clips, id)
			deleted++
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, types.ClearResponse{Deleted: deleted})
}

// handleImage GET /api/clips/{id}/image?thumbnail=true
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if s.begin(w, OpImage) {
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	s.mu.Lock()
	c, ok := s.clips[id]
	var img []byte
	if ok {
		img = c.image
	}
	s.mu.Unlock()
	if !ok || img == nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	w.Header().Set("Content-Type", types.DefaultImageMIME)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

// handleContent GET /api/clips/{id}/content
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if s.begin(w, OpContent) {
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	s.mu.Lock()
	c, ok := s.clips[id]
	var e types.Entry
	if ok {
		e = c.entry
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "clip not found")
		return
	}
	out := types.ClipContent{Type: strings.ToLower(string(e.ContentType))}
	switch e.ContentType {
	case types.ContentHTML:
		out.HTML = e.Preview
		out.Text = e.Preview
	case types.ContentFiles:
		out.Files = strings.Split(e.Preview, "\n")
	case types.ContentImage:
		out.Data = e.Preview
	default:
		out.Text = e.Preview
	}
	writeJSON(w, http.StatusOK, out)
}

// sorted returns the matching entries pinned first, newest first.
func (s *Server) sorted(keep func(types.Entry) bool) []types.Entry {
	s.mu.Lock()
	out := make([]types.Entry, 0, len(s.clips))
	for _, c := range s.clips {
		if keep == nil || keep(c.entry) {
			out = append(out, c.entry)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("backendtest: failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: http.StatusText(status), Code: status, Message: message})
}
