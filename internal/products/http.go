package products

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ProductsAPI/pkg/kit"
)

type Server struct {
	Store Store
	Log   *zap.Logger

	// MaxBodyBytes caps request bodies; zero means kit.DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// WriteLimiter, when set, wraps POST, PUT and DELETE.
	WriteLimiter func(http.Handler) http.Handler

	validate  *validator.Validate
	mutations mutationCounter
}

type deleteResp struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

func (s *Server) Routes() http.Handler {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.validate == nil {
		s.validate = newValidator()
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Store.Ping(ctx); err != nil {
			s.Log.Warn("readyz failed", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/products", func(pr chi.Router) {
		pr.Get("/", s.list)
		pr.Get("/{id}", s.get)

		pr.Group(func(wr chi.Router) {
			if s.WriteLimiter != nil {
				wr.Use(s.WriteLimiter)
			}
			wr.Post("/", s.create)
			wr.Put("/{id}", s.update)
			wr.Delete("/{id}", s.remove)
		})
	})

	return r
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	products, err := s.Store.List(r.Context())
	if err != nil {
		s.Log.Error("list products failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if products == nil {
		products = []Product{}
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	p, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, "get product failed", id, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var in NewProduct
	if err := kit.DecodeJSON(w, r, s.MaxBodyBytes, &in); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if !s.validBody(w, r, in) {
		return
	}

	p, err := s.Store.Create(r.Context(), in)
	if err != nil {
		s.Log.Error("create product failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	s.mutations.inc("create")
	s.Log.Debug("product created", zap.Int64("id", p.ID))
	kit.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var patch Patch
	if err := kit.DecodeJSON(w, r, s.MaxBodyBytes, &patch); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if !s.validBody(w, r, patch) {
		return
	}

	p, err := s.Store.Update(r.Context(), id, patch)
	if err != nil {
		s.writeStoreError(w, r, "update product failed", id, err)
		return
	}

	s.mutations.inc("update")
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := s.Store.Remove(r.Context(), id); err != nil {
		s.writeStoreError(w, r, "remove product failed", id, err)
		return
	}

	s.mutations.inc("remove")
	kit.WriteJSON(w, http.StatusOK, deleteResp{ID: id, Deleted: true})
}

// productID parses the {id} segment. Anything that is not a positive
// integer cannot name a product, so it is reported as not found.
func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}

func (s *Server) validBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := s.validate.Struct(v)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid body", nil)
		return false
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = "failed on rule: " + fe.Tag()
	}
	kit.WriteError(w, r, http.StatusBadRequest, ErrInvalidInput.Error(), fields)
	return false
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, msg string, id int64, err error) {
	if errors.Is(err, ErrNotFound) {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	s.Log.Error(msg, zap.Error(err), zap.Int64("id", id))
	kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
}
