package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"veriscan/internal/bootstrap/logging"
	domainscan "veriscan/internal/domain/scan"
	"veriscan/internal/errs"
	"veriscan/internal/infrastructure/objectstore"
	"veriscan/internal/ports"
	scanusecase "veriscan/internal/usecase/scan"
)

const (
	ownerHeader  = "X-Owner-ID"
	maxImageSize = 10 << 20
)

// Server is the HTTP surface over the pipeline: submit, history, search,
// signed image retrieval and a websocket change-event stream.
type Server struct {
	svc      *scanusecase.Service
	bus      ports.EventBus
	store    ports.ObjectStore
	signTTL  time.Duration
	upgrader websocket.Upgrader
}

func New(svc *scanusecase.Service, bus ports.EventBus, store ports.ObjectStore, signTTL time.Duration) *Server {
	if signTTL <= 0 {
		signTTL = 15 * time.Minute
	}
	return &Server{
		svc:     svc,
		bus:     bus,
		store:   store,
		signTTL: signTTL,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/scans", s.handleSubmit)
		r.Get("/scans", s.handleList)
		r.Get("/scans/search", s.handleSearch)
		r.Get("/scans/{id}", s.handleGet)
		r.Delete("/scans/{id}", s.handleDelete)
		r.Get("/scans/{id}/image", s.handleImage)
		r.Get("/events", s.handleEvents)
	})

	// Signed retrieval only exists for the fs backend; gcs hands out
	// provider-signed URLs directly.
	if fsStore, ok := s.store.(*objectstore.FSStore); ok {
		r.Get("/objects/{owner}/{file}", s.handleObject(fsStore))
	}

	return r
}

type recordJSON struct {
	ID            string  `json:"id"`
	OwnerID       string  `json:"owner_id"`
	Filename      string  `json:"filename"`
	ExtractedText string  `json:"extracted_text"`
	Status        string  `json:"status"`
	Credibility   *int    `json:"credibility"`
	Explanation   *string `json:"explanation"`
	CreatedAt     string  `json:"created_at"`
}

func toJSON(record domainscan.ScanRecord) recordJSON {
	return recordJSON{
		ID:            record.ID,
		OwnerID:       record.OwnerID,
		Filename:      record.Filename,
		ExtractedText: record.ExtractedText,
		Status:        string(record.Status),
		Credibility:   record.Credibility,
		Explanation:   record.Explanation,
		CreatedAt:     record.CreatedAt,
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header")
		return
	}

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer func() { _ = file.Close() }()

	image, err := io.ReadAll(io.LimitReader(file, maxImageSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	source := domainscan.Source(r.FormValue("source"))
	if source == "" {
		source = domainscan.SourceCamera
	}

	result, err := s.svc.Submit(r.Context(), scanusecase.SubmitInput{
		OwnerID: ownerID,
		Image:   image,
		Source:  source,
	})
	if err != nil {
		s.writeSubmitError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toJSON(result.Record))
}

// writeSubmitError maps a stage failure to a status that names the general
// cause without leaking adapter internals.
func (s *Server) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var stageErr *domainscan.StageError
	if !errors.As(err, &stageErr) {
		if errors.Is(err, domainscan.ErrInvalidSource) || errors.Is(err, domainscan.ErrImageRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	logging.Warn(r.Context(), "scan submission failed",
		slog.String("stage", string(stageErr.Stage)),
		slog.Any("err", errs.Loggable(err)),
	)

	switch stageErr.Stage {
	case domainscan.StageUpload:
		writeError(w, http.StatusBadGateway, "image upload failed")
	case domainscan.StageExtract:
		writeError(w, http.StatusUnprocessableEntity, "text extraction failed")
	default:
		msg := "saving the scan failed"
		if stageErr.RecordID != "" {
			msg = "analysis failed; scan " + stageErr.RecordID + " is still processing"
		}
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header")
		return
	}

	records, err := s.svc.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing scans failed")
		return
	}

	writeJSON(w, http.StatusOK, recordsToJSON(records))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	records, err := s.svc.Search(r.Context(), ownerID, query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, recordsToJSON(records))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header")
		return
	}

	record, err := s.svc.Get(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "fetching scan failed")
		return
	}

	writeJSON(w, http.StatusOK, toJSON(record))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header")
		return
	}

	if err := s.svc.Delete(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "deleting scan failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header")
		return
	}

	url, err := s.svc.ImageURL(r.Context(), ownerID, chi.URLParam(r, "id"), s.signTTL)
	if err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) || errors.Is(err, ports.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "resolving image url failed")
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (s *Server) handleObject(fsStore *objectstore.FSStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")
		file := chi.URLParam(r, "file")
		key := owner + "/" + file

		expires, err := strconv.ParseInt(r.URL.Query().Get("exp"), 10, 64)
		if err != nil {
			writeError(w, http.StatusForbidden, "invalid signature")
			return
		}
		if err := fsStore.Verify(key, expires, r.URL.Query().Get("sig")); err != nil {
			writeError(w, http.StatusForbidden, "invalid signature")
			return
		}

		payload, err := fsStore.ReadObject(r.Context(), owner, file)
		if err != nil {
			if errors.Is(err, ports.ErrObjectNotFound) {
				writeError(w, http.StatusNotFound, "object not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "reading object failed")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(payload)
	}
}

func recordsToJSON(records []domainscan.ScanRecord) []recordJSON {
	items := make([]recordJSON, 0, len(records))
	for _, record := range records {
		items = append(items, toJSON(record))
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		logging.Info(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.Status()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
	})
}
