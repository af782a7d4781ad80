package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hakobune/bunko/internal/models"
)

type createProjectRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("create project request", zap.String("id", req.ID))
	proj, err := s.rag.CreateProject(r.Context(), req.ID, req.Name, req.Description)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, proj.Meta())
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.rag.Projects(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	proj, err := s.rag.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, proj.Meta())
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete project request", zap.String("id", id))
	if err := s.rag.RemoveProject(id); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type addDocumentRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	proj, err := s.rag.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	s.logger.Debug("add document request",
		zap.String("project", proj.Meta().ID), zap.String("name", req.Name))
	doc, err := proj.AddDocumentText(r.Context(), req.Name, req.Content)
	if err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	proj, err := s.rag.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	docs, err := proj.Documents(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	proj, err := s.rag.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	docID, err := strconv.ParseInt(chi.URLParam(r, "docID"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := proj.Document(r.Context(), docID)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	proj, err := s.rag.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	docID, err := strconv.ParseInt(chi.URLParam(r, "docID"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	s.logger.Debug("delete document request",
		zap.String("project", proj.Meta().ID), zap.Int64("document_id", docID))
	if err := proj.RemoveDocument(r.Context(), docID); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type searchRequest struct {
	Query string   `json:"query"`
	Mode  string   `json:"mode"`
	K     int      `json:"k"`
	Alpha *float64 `json:"alpha,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	proj, err := s.rag.Project(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	alpha := -1.0
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	s.logger.Debug("search request",
		zap.String("project", proj.Meta().ID),
		zap.String("mode", req.Mode), zap.Int("k", req.K))
	response, err := proj.Search(r.Context(), req.Query, req.Mode, req.K, alpha)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondFailure maps the error taxonomy onto HTTP status codes.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	s.respondError(w, statusForErr(err), err.Error())
}

func statusForErr(err error) int {
	switch {
	case errors.Is(err, models.ErrDuplicateProject):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidArgument), errors.Is(err, models.ErrSplit):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrEmbeddingService), errors.Is(err, models.ErrExtractionService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
