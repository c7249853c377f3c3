package questionset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/conjugar/internal/blob"
	"github.com/abhisek/conjugar/internal/logger"
)

const (
	DefaultPrefix     = "question-sets"
	DefaultMaxRetries = 3

	contentTypeJSON = "application/json"
	maxIDAttempts   = 3
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Options configures a Repository.
type Options struct {
	// Prefix is the store path under which the index and sets live.
	Prefix string

	// CAS makes index writes conditional on the generation that was read.
	// Without it the last writer wins.
	CAS bool

	// MaxRetries bounds how often a conflicting index write is re-applied.
	MaxRetries int

	Logger *logger.Logger

	// NewID and Now are overridable for tests.
	NewID func() string
	Now   func() time.Time
}

// Repository stores question sets as one blob per set plus a shared index.
type Repository struct {
	store      blob.Store
	prefix     string
	cas        bool
	maxRetries int
	log        *logger.Logger
	newID      func() string
	now        func() time.Time
}

// NewRepository creates a Repository over store.
func NewRepository(store blob.Store, opts Options) *Repository {
	r := &Repository{
		store:      store,
		prefix:     opts.Prefix,
		cas:        opts.CAS,
		maxRetries: opts.MaxRetries,
		log:        opts.Logger,
		newID:      opts.NewID,
		now:        opts.Now,
	}
	if r.prefix == "" {
		r.prefix = DefaultPrefix
	}
	if r.maxRetries <= 0 {
		r.maxRetries = DefaultMaxRetries
	}
	if r.log == nil {
		r.log = logger.Nop()
	}
	r.log = r.log.With("component", "questionset")
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// IndexPath is the store path of the index document.
func (r *Repository) IndexPath() string {
	return path.Join(r.prefix, "index.json")
}

func (r *Repository) setsPrefix() string {
	return path.Join(r.prefix, "sets") + "/"
}

func (r *Repository) setPath(id string) string {
	return r.setsPrefix() + id + ".json"
}

// GetIndex returns the index. A non-empty filterUsername restricts it to
// that user's sets and hides legacy entries. A missing index is empty.
func (r *Repository) GetIndex(ctx context.Context, filterUsername string) (Index, error) {
	idx, _, err := r.readIndex(ctx)
	if err != nil {
		return Index{}, err
	}
	if filterUsername != "" {
		return idx.Filter(filterUsername), nil
	}
	return idx, nil
}

// GetSet loads a set. When requestingUsername is set and the set has a
// different owner the result is ErrNotFound. Legacy sets are visible to all.
func (r *Repository) GetSet(ctx context.Context, id, requestingUsername string) (QuestionSet, error) {
	if !validID.MatchString(id) {
		return QuestionSet{}, ErrInvalidID
	}

	obj, err := r.store.Head(ctx, r.setPath(id))
	if err != nil {
		return QuestionSet{}, fmt.Errorf("head set %s: %w", id, err)
	}
	if !obj.Exists {
		return QuestionSet{}, ErrNotFound
	}
	data, err := r.store.Get(ctx, obj.URL)
	if errors.Is(err, blob.ErrNotFound) {
		return QuestionSet{}, ErrNotFound
	}
	if err != nil {
		return QuestionSet{}, fmt.Errorf("get set %s: %w", id, err)
	}

	var doc setDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return QuestionSet{}, fmt.Errorf("decode set %s: %w", id, err)
	}
	if requestingUsername != "" && doc.OwnerUsername != "" && doc.OwnerUsername != requestingUsername {
		return QuestionSet{}, ErrNotFound
	}
	if doc.Questions == nil {
		doc.Questions = []Question{}
	}
	return QuestionSet{
		ID:            id,
		Title:         doc.Title,
		OwnerUsername: doc.OwnerUsername,
		Questions:     doc.Questions,
	}, nil
}

// CreateSet persists a new set under a fresh id and then records it in the
// index. The set blob is always written first so a failure in between leaves
// an orphan rather than a dangling index entry.
func (r *Repository) CreateSet(ctx context.Context, title string, questions []Question, ownerUsername string) (QuestionSet, error) {
	if ownerUsername == "" {
		return QuestionSet{}, ErrOwnerRequired
	}
	if questions == nil {
		questions = []Question{}
	}

	data, err := json.Marshal(setDocument{Title: title, Questions: questions, OwnerUsername: ownerUsername})
	if err != nil {
		return QuestionSet{}, fmt.Errorf("encode set: %w", err)
	}

	var id string
	for attempt := 0; ; attempt++ {
		id = r.newID()
		_, err = r.store.Put(ctx, r.setPath(id), data, blob.PutOptions{
			ContentType:  contentTypeJSON,
			IfGeneration: blob.IfGeneration(0),
		})
		if err == nil {
			break
		}
		if !errors.Is(err, blob.ErrPreconditionFailed) || attempt+1 >= maxIDAttempts {
			return QuestionSet{}, fmt.Errorf("write set %s: %w", id, err)
		}
		r.log.Warn("question set id collision, retrying", "id", id)
	}

	entry := IndexEntry{ID: id, Title: title, OwnerUsername: ownerUsername}
	err = r.updateIndex(ctx, func(idx *Index) bool {
		if idx.Contains(id) {
			return false
		}
		idx.Entries = append(idx.Entries, entry)
		return true
	})
	if err != nil {
		r.log.Error("set written but index update failed", "id", id, "error", err)
		return QuestionSet{}, err
	}

	r.log.Info("question set created", "id", id, "owner", ownerUsername, "questions", len(questions))
	return QuestionSet{ID: id, Title: title, OwnerUsername: ownerUsername, Questions: questions}, nil
}

// DeleteSet removes a set owned by requestingUsername. Unknown ids and sets
// owned by someone else both yield ErrNotFound. A set blob that is already
// gone does not stop the index entry from being removed.
func (r *Repository) DeleteSet(ctx context.Context, id, requestingUsername string) error {
	if !validID.MatchString(id) {
		return ErrInvalidID
	}
	if requestingUsername == "" {
		return ErrNotFound
	}

	idx, _, err := r.readIndex(ctx)
	if err != nil {
		return err
	}
	owned := func(e IndexEntry) bool {
		return e.ID == id && e.OwnerUsername == requestingUsername
	}
	if !slices.ContainsFunc(idx.Entries, owned) {
		return ErrNotFound
	}

	if err := r.store.Delete(ctx, r.setPath(id)); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("delete set %s: %w", id, err)
	}

	err = r.updateIndex(ctx, func(idx *Index) bool {
		n := len(idx.Entries)
		idx.Entries = slices.DeleteFunc(idx.Entries, owned)
		return len(idx.Entries) != n
	})
	if err != nil {
		r.log.Error("set deleted but index update failed", "id", id, "error", err)
		return err
	}

	r.log.Info("question set deleted", "id", id, "owner", requestingUsername)
	return nil
}

// readIndex loads the index along with the generation it was read at.
// Generation 0 means no index exists yet.
func (r *Repository) readIndex(ctx context.Context) (Index, int64, error) {
	empty := Index{Entries: []IndexEntry{}}

	obj, err := r.store.Head(ctx, r.IndexPath())
	if err != nil {
		return Index{}, 0, fmt.Errorf("head index: %w", err)
	}
	if !obj.Exists {
		return empty, 0, nil
	}
	data, err := r.store.Get(ctx, obj.URL)
	if errors.Is(err, blob.ErrNotFound) {
		return empty, 0, nil
	}
	if err != nil {
		return Index{}, 0, fmt.Errorf("get index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, 0, fmt.Errorf("decode index: %w", err)
	}
	if idx.Entries == nil {
		idx.Entries = []IndexEntry{}
	}
	return idx, obj.Generation, nil
}

// updateIndex applies mutate to a fresh copy of the index and writes it back.
// mutate returns false when there is nothing to write. With CAS enabled a
// lost race re-reads the index and re-applies mutate.
func (r *Repository) updateIndex(ctx context.Context, mutate func(*Index) bool) error {
	attempts := 1
	if r.cas {
		attempts += r.maxRetries
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		idx, gen, err := r.readIndex(ctx)
		if err != nil {
			return err
		}
		if !mutate(&idx) {
			return nil
		}

		data, err := json.Marshal(idx)
		if err != nil {
			return fmt.Errorf("encode index: %w", err)
		}
		opts := blob.PutOptions{ContentType: contentTypeJSON}
		if r.cas {
			opts.IfGeneration = blob.IfGeneration(gen)
		}

		_, err = r.store.Put(ctx, r.IndexPath(), data, opts)
		if err == nil {
			return nil
		}
		if !errors.Is(err, blob.ErrPreconditionFailed) {
			return fmt.Errorf("write index: %w", err)
		}
		r.log.Debug("index changed underneath, retrying", "attempt", attempt, "generation", gen)
	}
	return ErrIndexConflict
}
