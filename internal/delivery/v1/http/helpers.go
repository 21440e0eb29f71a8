package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/psms-tech/go-backend/pkg/e"
)

// maxErrorMessage: предел длины диагностического сообщения в ответах 5xx.
const maxErrorMessage = 200

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// clientErrors: ошибки, текст которых можно показывать клиенту как есть.
var clientErrors = []error{
	e.ErrExpectedMultipart,
	e.ErrMissingFields,
	e.ErrNoImage,
	e.ErrUnsupportedMediaType,
	e.ErrImageTooLarge,
	e.ErrCorruptImage,
	e.ErrFileTooLarge,
	e.ErrInvalidModelFilename,
	e.ErrInvalidURL,
	e.ErrInvalidItemID,
	e.ErrEmptyQuery,
	e.ErrInvalidLimit,
	e.ErrInvalidJSON,
	e.ErrItemNotFound,
	e.ErrModelNotFound,
	e.ErrNoEnrollments,
	e.ErrActiveModelDelete,
	e.ErrNoTextEncoder,
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrValidation):
		return http.StatusBadRequest, publicMessage(err, e.ErrValidation)
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound, publicMessage(err, e.ErrNotFound)
	case errors.Is(err, e.ErrInvalidOperation):
		return http.StatusConflict, publicMessage(err, e.ErrInvalidOperation)
	case errors.Is(err, e.ErrUnsupportedOperation):
		return http.StatusUnprocessableEntity, publicMessage(err, e.ErrUnsupportedOperation)
	case errors.Is(err, e.ErrModelUnavailable):
		return http.StatusServiceUnavailable, truncate(err.Error(), maxErrorMessage)
	case errors.Is(err, e.ErrExtractionFailed):
		return http.StatusInternalServerError, truncate(err.Error(), maxErrorMessage)
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

// publicMessage возвращает текст самой конкретной известной ошибки из цепочки.
func publicMessage(err, class error) string {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return class.Error()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return bodyError(err)
	}
	return nil
}

// bodyError превращает превышение MaxBytesReader в ErrFileTooLarge.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		return e.ErrFileTooLarge
	}
	return e.Wrap(err.Error(), e.ErrValidation)
}

// formFile читает файл из поля multipart-формы. Отсутствие поля не ошибка: возвращается nil.
func formFile(r *http.Request, field string, maxSize int64) ([]byte, *multipart.FileHeader, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil, nil
	}

	fh := r.MultipartForm.File[field][0]
	if maxSize > 0 && fh.Size > maxSize {
		return nil, nil, e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, fh, nil
}

// parseLimit читает необязательный лимит выдачи. Пустое значение означает лимит по умолчанию.
func parseLimit(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(s)
	if err != nil {
		return 0, e.Wrap(s, e.ErrInvalidLimit)
	}
	return limit, nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func itemIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "item_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, e.Wrap(raw, e.ErrInvalidItemID)
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return e.ErrFileTooLarge
		}
		return e.Wrap(err.Error(), e.ErrInvalidJSON)
	}
	return nil
}
