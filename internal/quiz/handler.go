package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/passage-quiz/backend/internal/logger"
	"github.com/passage-quiz/backend/internal/middleware"
	"github.com/passage-quiz/backend/internal/models"
)

// maxBodyBytes bounds JSON bodies; base64 images are a third larger than
// the raw limit.
const maxBodyBytes = MaxImageBytes*4/3 + 1<<16

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log.With("component", "quiz_handler")}
}

// RegisterRoutes mounts every quiz route on an authenticated router.
func (h *Handler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/quizzes/fill-blank", h.generateHandler(h.service.GenerateFillBlank)).Methods("POST")
	protected.HandleFunc("/quizzes/multiple-choice", h.generateHandler(h.service.GenerateMultipleChoice)).Methods("POST")
	protected.HandleFunc("/quizzes/vocabulary", h.generateHandler(h.service.GenerateVocabulary)).Methods("POST")
	protected.HandleFunc("/quizzes/translation", h.generateHandler(h.service.GenerateTranslation)).Methods("POST")
	protected.HandleFunc("/quizzes", h.ListQuizzes).Methods("GET")
	protected.HandleFunc("/quizzes/{id:[0-9]+}", h.GetQuiz).Methods("GET")
	protected.HandleFunc("/quizzes/{id:[0-9]+}/layout", h.GetLayout).Methods("GET")
	protected.HandleFunc("/quizzes/{id:[0-9]+}/pdf", h.ExportPDF).Methods("GET")
	protected.HandleFunc("/ocr", h.ExtractText).Methods("POST")
	protected.HandleFunc("/blanks/preview", h.PreviewBlank).Methods("POST")
}

type generateFunc func(ctx context.Context, userID int64, passage string) (*models.QuizResponse, error)

func (h *Handler) generateHandler(generate generateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
			return
		}

		var req models.QuizRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
			return
		}

		resp, err := generate(r.Context(), userID, req.Passage)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (h *Handler) ExtractText(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.OCRRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.MediaType == "" && len(req.Image) > 0 {
		req.MediaType = http.DetectContentType(req.Image)
	}

	resp, err := h.service.ExtractText(r.Context(), userID, req.Image, req.MediaType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) PreviewBlank(w http.ResponseWriter, r *http.Request) {
	var req models.BlankPreviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.PreviewBlank(req.Passage, req.Word)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	q := r.URL.Query()
	limit := intQueryParam(q, "limit", 20)
	if limit == 0 || limit > 100 {
		limit = 20
	}
	offset := intQueryParam(q, "offset", 0)

	resp, err := h.service.List(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	userID, quizID, ok := h.quizRef(w, r)
	if !ok {
		return
	}

	q, err := h.service.Get(r.Context(), userID, quizID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) GetLayout(w http.ResponseWriter, r *http.Request) {
	userID, quizID, ok := h.quizRef(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Layout(r.Context(), userID, quizID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	userID, quizID, ok := h.quizRef(w, r)
	if !ok {
		return
	}

	// Rendered into a buffer so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.service.ExportPDF(r.Context(), userID, quizID, &buf); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz-%d.pdf"`, quizID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ── Helpers ─────────────────────────────────────────────

func (h *Handler) quizRef(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return 0, 0, false
	}
	quizID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid quiz ID"})
		return 0, 0, false
	}
	return userID, quizID, true
}

// writeError maps service errors to status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInsufficientPoints):
		writeJSON(w, http.StatusPaymentRequired, models.ErrorResponse{Error: "Not enough points for this request"})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Quiz not found"})
	case errors.Is(err, ErrGeneration) && errors.Is(err, ErrRefundFailed):
		h.log.Error("Generation failed without refund", "request_id", middleware.RequestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: "Quiz generation failed and the points could not be returned. Please contact support."})
	case errors.Is(err, ErrGeneration):
		h.log.Warn("Generation failed", "request_id", middleware.RequestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: "Quiz generation failed, no points were spent. Please try again."})
	default:
		h.log.Error("Request failed", "request_id", middleware.RequestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQueryParam(query url.Values, key string, defaultVal int) int {
	s := query.Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
