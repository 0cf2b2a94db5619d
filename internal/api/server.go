package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/pbaille/decktags/internal/deckpath"
	"github.com/pbaille/decktags/internal/decktree"
	"github.com/pbaille/decktags/internal/domain"
	"github.com/pbaille/decktags/internal/engine"
	"github.com/pbaille/decktags/internal/resolver"
	"github.com/pbaille/decktags/internal/store"
)

// Server exposes deck listing, planning and applying over HTTP
type Server struct {
	store  *store.Collection
	opts   engine.Options
	addr   string
	logger *zap.Logger

	// One conversion touches the collection at a time
	mu sync.Mutex
}

// New creates a new API server
func New(s *store.Collection, opts engine.Options, addr string, logger *zap.Logger) *Server {
	return &Server{store: s, opts: opts, addr: addr, logger: logger}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /decks", s.listDecks)
	mux.HandleFunc("GET /plan", s.plan)
	mux.HandleFunc("POST /apply", s.apply)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.logger.Info("Starting server", zap.String("addr", s.addr), zap.String("collection", s.store.Path()))
	return http.ListenAndServe(s.addr, s.Handler())
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeckNode is a deck with its subdecks and the tag it maps to
type DeckNode struct {
	ID       domain.DeckID `json:"id,omitempty"`
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Tag      string        `json:"tag"`
	Children []DeckNode    `json:"children,omitempty"`
}

func (s *Server) listDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.store.Decks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	index, err := decktree.Build(decks)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tagger, err := deckpath.NewTagger(s.opts.TagPrefix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var buildNode func(n *decktree.Node) DeckNode
	buildNode = func(n *decktree.Node) DeckNode {
		node := DeckNode{ID: n.DeckID, Name: n.Name, Path: n.Path.String(), Tag: tagger.Tag(n.Path)}
		for _, c := range n.Children {
			node.Children = append(node.Children, buildNode(c))
		}
		return node
	}

	tree := []DeckNode{}
	for _, root := range index.Tree() {
		tree = append(tree, buildNode(root))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"decks": tree,
		"count": index.Len(),
	})
}

// PlanResponse lists the mutations a conversion would apply
type PlanResponse struct {
	RunID     string               `json:"run_id"`
	Mutations []domain.TagMutation `json:"mutations"`
}

func (s *Server) plan(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, muts, ok := s.convert(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, PlanResponse{RunID: e.RunID(), Mutations: muts})
}

// ApplyFailure is the body returned when only part of a batch was written
type ApplyFailure struct {
	Error     string                   `json:"error"`
	Succeeded []domain.NoteID          `json:"succeeded"`
	Failed    []domain.NoteID          `json:"failed"`
	Reasons   map[domain.NoteID]string `json:"reasons,omitempty"`
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, muts, ok := s.convert(w, r)
	if !ok {
		return
	}

	report, err := e.Apply(r.Context(), muts, s.store)
	var aerr *engine.ApplyError
	if errors.As(err, &aerr) {
		writeJSON(w, http.StatusConflict, ApplyFailure{
			Error:     aerr.Error(),
			Succeeded: aerr.Succeeded,
			Failed:    aerr.Failed,
			Reasons:   aerr.Reasons,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// convert snapshots the collection and runs a conversion, writing the error
// response itself when it fails
func (s *Server) convert(w http.ResponseWriter, r *http.Request) (*engine.Engine, []domain.TagMutation, bool) {
	e, err := engine.New(s.opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil, false
	}

	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil, false
	}

	muts, err := e.Convert(r.Context(), snap)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return nil, nil, false
	}

	return e, muts, true
}

// statusFor maps data faults in the collection to 422
func statusFor(err error) int {
	var (
		mpe *deckpath.MalformedPathError
		ude *decktree.UnknownDeckError
		tce *resolver.TagCollisionError
	)
	if errors.As(err, &mpe) || errors.As(err, &ude) || errors.As(err, &tce) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
