package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/glinthq/onboardrag/internal/errors"
	"github.com/glinthq/onboardrag/internal/model"
)

type uploadResponse struct {
	DocumentID    string                 `json:"documentId"`
	Title         string                 `json:"title"`
	PageCount     int                    `json:"pageCount"`
	WordCount     int                    `json:"wordCount"`
	ChunkCount    int                    `json:"chunkCount"`
	EmbeddedCount int                    `json:"embeddedCount"`
	Metadata      model.DocumentMetadata `json:"metadata"`
	Seconds       float64                `json:"processingTimeSeconds"`
	Warning       string                 `json:"warning,omitempty"`
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.respondError(w, r, errors.Validation("upload exceeds the size limit or is not valid multipart form data"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errors.Validation("a PDF file is required in the \"file\" field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, errors.Validation("failed to read uploaded file"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	tagID := strings.TrimSpace(r.FormValue("tagId"))

	res, err := s.ingestor.ProcessDocument(r.Context(), data, title, tagID, header.Filename)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, uploadResponse{
		DocumentID:    res.DocumentID,
		Title:         res.Title,
		PageCount:     res.PageCount,
		WordCount:     res.WordCount,
		ChunkCount:    res.ChunkCount,
		EmbeddedCount: res.EmbeddedCount,
		Metadata:      res.Metadata,
		Seconds:       res.Elapsed.Seconds(),
		Warning:       res.Warning,
	})
}

type documentListing struct {
	DocumentID string    `json:"documentId"`
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	TagName    string    `json:"tagName,omitempty"`
	PageCount  int       `json:"pageCount"`
	WordCount  int       `json:"wordCount"`
	ChunkCount int       `json:"chunkCount"`
	Type       string    `json:"documentType,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocumentsWithStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]documentListing, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentListing{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Author:     doc.Author,
			TagName:    doc.TagName,
			PageCount:  doc.PageCount,
			WordCount:  doc.WordCount,
			ChunkCount: doc.ChunkCount,
			Type:       doc.Metadata.DocumentType,
			UploadedAt: doc.UploadedAt,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	if err := s.ingestor.DeleteDocument(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleReprocessDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	res, err := s.ingestor.ReprocessDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, uploadResponse{
		DocumentID:    res.DocumentID,
		Title:         res.Title,
		PageCount:     res.PageCount,
		WordCount:     res.WordCount,
		ChunkCount:    res.ChunkCount,
		EmbeddedCount: res.EmbeddedCount,
		Metadata:      res.Metadata,
		Seconds:       res.Elapsed.Seconds(),
		Warning:       res.Warning,
	})
}

func (s *Server) handleReprocessAll(w http.ResponseWriter, r *http.Request) {
	report, err := s.ingestor.ReprocessAll(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

type queryRequest struct {
	Question string `json:"question"`
	UserID   string `json:"userId"`
}

type querySource struct {
	ChunkID        string         `json:"chunkId"`
	DocumentID     string         `json:"documentId"`
	DocumentTitle  string         `json:"documentTitle"`
	ChunkIndex     int            `json:"chunkIndex"`
	RelevanceScore float64        `json:"relevanceScore"`
	Excerpt        string         `json:"excerpt"`
	Metadata       sourceMetadata `json:"metadata"`
}

type sourceMetadata struct {
	Author       string `json:"author,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
}

type queryMetadata struct {
	SourceCount       int     `json:"sourceCount"`
	AvgRelevanceScore float64 `json:"avgRelevanceScore"`
	TopRelevanceScore float64 `json:"topRelevanceScore"`
}

type queryResponse struct {
	Answer     string        `json:"answer"`
	Confidence float64       `json:"confidence"`
	Seconds    float64       `json:"responseTimeSeconds"`
	Sources    []querySource `json:"sources"`
	Metadata   queryMetadata `json:"metadata"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, errors.Validation("request body must be JSON with a \"question\" field"))
		return
	}

	ans, err := s.answerer.Answer(r.Context(), req.Question, req.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sources := make([]querySource, 0, len(ans.Sources))
	var sum, top float64
	for _, src := range ans.Sources {
		sum += src.RelevanceScore
		if src.RelevanceScore > top {
			top = src.RelevanceScore
		}
		sources = append(sources, querySource{
			ChunkID:        src.ChunkID,
			DocumentID:     src.DocumentID,
			DocumentTitle:  src.DocumentTitle,
			ChunkIndex:     src.ChunkIndex,
			RelevanceScore: src.RelevanceScore,
			Excerpt:        src.Excerpt(),
			Metadata: sourceMetadata{
				Author:       src.Metadata.Author,
				DocumentType: src.Metadata.DocumentType,
			},
		})
	}

	meta := queryMetadata{SourceCount: len(sources), TopRelevanceScore: top}
	if len(sources) > 0 {
		meta.AvgRelevanceScore = sum / float64(len(sources))
	}

	s.respondJSON(w, http.StatusOK, queryResponse{
		Answer:     ans.Text,
		Confidence: ans.Confidence,
		Seconds:    ans.ResponseTime.Seconds(),
		Sources:    sources,
		Metadata:   meta,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.stats.Snapshot(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

type tagRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, errors.Validation("request body must be JSON with a \"name\" field"))
		return
	}

	tag, err := s.store.CreateTag(r.Context(), req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"tagId": tag.ID, "name": tag.Name})
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.ListTags(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]map[string]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, map[string]string{"tagId": tag.ID, "name": tag.Name})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"tags": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, err := s.stats.Snapshot(r.Context())
	if err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ready":  snap.IsReady,
	})
}
