package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/abhisek/conjugar/internal/generation"
	"github.com/abhisek/conjugar/internal/questionset"
	"github.com/abhisek/conjugar/internal/tense"
)

// generateResponse is a QuestionSet plus how the attempt went. A failed
// attempt still has the set shape, with no id and no questions.
type generateResponse struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	OwnerUsername string                 `json:"owner_username,omitempty"`
	Questions     []questionset.Question `json:"questions"`
	Outcome       generation.Outcome     `json:"outcome"`
	Error         string                 `json:"error,omitempty"`
	Dropped       int                    `json:"dropped,omitempty"`
}

type listResponse struct {
	Sets []questionset.IndexEntry `json:"sets"`
}

type deleteResponse struct {
	Deleted string `json:"deleted"`
}

// handleGetQuestion dispatches on the query: generate, list, one set by id,
// or the built-in questions.
func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case truthy(q.Get("generate")):
		s.handleGenerate(w, r)
	case truthy(q.Get("list")):
		s.handleList(w, r)
	case q.Get("id") != "":
		s.handleGetSet(w, r)
	default:
		writeJSON(w, http.StatusOK, questionset.BaseQuestions())
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	username := strings.TrimSpace(q.Get("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "username_required", "username is required to generate questions")
		return
	}

	count := s.opts.DefaultCount
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > s.opts.MaxCount {
			writeError(w, http.StatusBadRequest, "invalid_count",
				"count must be an integer between 1 and "+strconv.Itoa(s.opts.MaxCount))
			return
		}
		count = n
	}

	tenses, err := tense.ParseList(q.Get("tenses"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tenses", err.Error())
		return
	}

	res, err := s.gen.Generate(r.Context(), generation.Request{
		Title:         q.Get("title"),
		Count:         count,
		Tenses:        tenses,
		OwnerUsername: username,
	})
	if errors.Is(err, generation.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err != nil {
		s.log.Error("generate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "generation failed")
		return
	}

	resp := generateResponse{
		ID:            res.Set.ID,
		Title:         res.Set.Title,
		OwnerUsername: res.Set.OwnerUsername,
		Questions:     res.Set.Questions,
		Outcome:       res.Outcome,
		Dropped:       len(res.Dropped),
	}
	if resp.Questions == nil {
		resp.Questions = []questionset.Question{}
	}
	if res.Failed() && res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	idx, err := s.sets.GetIndex(r.Context(), strings.TrimSpace(r.URL.Query().Get("username")))
	if err != nil {
		s.log.Error("list question sets failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "could not read the question set index")
		return
	}
	sets := idx.Entries
	if sets == nil {
		sets = []questionset.IndexEntry{}
	}
	writeJSON(w, http.StatusOK, listResponse{Sets: sets})
}

func (s *Server) handleGetSet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	set, err := s.sets.GetSet(r.Context(), q.Get("id"), strings.TrimSpace(q.Get("username")))
	if errors.Is(err, questionset.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "question set not found")
		return
	}
	if err != nil {
		s.log.Error("get question set failed", "id", q.Get("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "could not read the question set")
		return
	}
	questions := set.Questions
	if questions == nil {
		questions = []questionset.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	username := strings.TrimSpace(q.Get("username"))
	if id == "" || username == "" {
		writeError(w, http.StatusBadRequest, "missing_parameters", "id and username are required")
		return
	}

	err := s.sets.DeleteSet(r.Context(), id, username)
	if errors.Is(err, questionset.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "question set not found")
		return
	}
	if err != nil {
		s.log.Error("delete question set failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "could not delete the question set")
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: id})
}

// truthy follows query-string conventions: present and not an explicit no.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}
