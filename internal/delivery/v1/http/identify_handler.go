package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
)

const (
	multipartMemory = 32 << 20
	// formOverhead: запас на поля формы сверх размера файла
	formOverhead = 1 << 20
)

type LensHandler struct {
	lensUsecase    usecase.LensUC
	logger         logger.Logger
	maxUploadBytes int64
}

func NewLensHandler(lensUsecase usecase.LensUC, logger logger.Logger, maxUploadBytes int64) *LensHandler {
	return &LensHandler{lensUsecase: lensUsecase, logger: logger, maxUploadBytes: maxUploadBytes}
}

// status
//
//	@Summary		Состояние распознавания
//	@Description	Готовность модели и статистика эталонов. Запускает фоновую загрузку модели, если она не готова
//	@Tags			identify
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/identify/status [get]
func (h *LensHandler) status(w http.ResponseWriter, r *http.Request) {
	res, err := h.lensUsecase.Status(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toStatusResponse(res))
}

// identify
//
//	@Summary		Распознавание предмета
//	@Description	Ищет предметы по фото (multipart, поле file) или по текстовому описанию (поле query или JSON)
//	@Tags			identify
//	@Accept			multipart/form-data,json
//	@Produce		json
//	@Param			file	formData	file				false	"Фото предмета"
//	@Param			query	formData	string				false	"Текстовое описание"
//	@Param			limit	formData	int					false	"Число результатов (1-20, по умолчанию 5)"
//	@Success		200		{object}	IdentifyResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		413		{object}	ErrorResponse	"Файл слишком большой"
//	@Failure		422		{object}	ErrorResponse	"Бэкенд не умеет кодировать текст"
//	@Failure		503		{object}	ErrorResponse	"Модель недоступна"
//	@Router			/identify [post]
func (h *LensHandler) identify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req IdentifyTextRequest
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.identifyText(w, r, req.Query, req.Limit)
		return
	}

	if err := ensureMultipartForm(r, multipartMemory); err != nil {
		h.writeError(w, r, err)
		return
	}

	limit, err := parseLimit(r.FormValue("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data, _, err := formFile(r, "file", h.maxUploadBytes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if data == nil {
		if query := r.FormValue("query"); query != "" {
			h.identifyText(w, r, query, limit)
			return
		}
		h.writeError(w, r, e.ErrNoImage)
		return
	}

	res, err := h.lensUsecase.IdentifyImage(r.Context(), &usecase.IdentifyImageReq{Data: data, Limit: limit})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toIdentifyResponse(res))
}

func (h *LensHandler) identifyText(w http.ResponseWriter, r *http.Request, query string, limit int) {
	res, err := h.lensUsecase.IdentifyText(r.Context(), &usecase.IdentifyTextReq{Query: query, Limit: limit})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toIdentifyResponse(res))
}

// enroll
//
//	@Summary		Добавление эталонного фото
//	@Description	Сохраняет фото предмета и его эмбеддинг. При auto_tag=true теги дополняются ответом LLM
//	@Tags			identify
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			item_id		path		string	true	"ID предмета"
//	@Param			file		formData	file	true	"Фото предмета"
//	@Param			auto_tag	formData	bool	false	"Автотегирование"
//	@Success		201			{object}	EnrollResponse
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		404			{object}	ErrorResponse	"Предмет не найден"
//	@Failure		413			{object}	ErrorResponse	"Файл слишком большой"
//	@Failure		500			{object}	ErrorResponse	"Ошибка извлечения признаков"
//	@Router			/identify/enroll/{item_id} [post]
func (h *LensHandler) enroll(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	if err := ensureMultipartForm(r, multipartMemory); err != nil {
		h.writeError(w, r, err)
		return
	}

	data, fh, err := formFile(r, "file", h.maxUploadBytes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if data == nil {
		h.writeError(w, r, e.ErrNoImage)
		return
	}

	res, err := h.lensUsecase.Enroll(r.Context(), &usecase.EnrollReq{
		ItemID:   itemID,
		Data:     data,
		Filename: fh.Filename,
		AutoTag:  parseBool(r.FormValue("auto_tag")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Infof("item %s enrolled: enrollment_id=%s backend=%s", itemID, res.EnrollmentID, res.Backend)
	WriteSuccess(w, http.StatusCreated, EnrollResponse{
		Message:      "Item enrolled successfully",
		EnrollmentID: res.EnrollmentID,
		ImageURL:     res.ImageURL,
		Backend:      res.Backend,
		Tags:         res.Tags,
		Attributes:   res.Attributes,
	})
}

// unenroll
//
//	@Summary		Удаление эталонов предмета
//	@Tags			identify
//	@Produce		json
//	@Param			item_id	path		string	true	"ID предмета"
//	@Success		200		{object}	UnenrollResponse
//	@Failure		404		{object}	ErrorResponse	"У предмета нет эталонов"
//	@Router			/identify/enroll/{item_id} [delete]
func (h *LensHandler) unenroll(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.lensUsecase.Unenroll(r.Context(), itemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, UnenrollResponse{
		Message: fmt.Sprintf("Removed %d enrollments for item", res.Removed),
		Removed: res.Removed,
	})
}

// reindex
//
//	@Summary		Переиндексация эталонов
//	@Description	Пересчитывает эмбеддинги, построенные другой моделью, активным бэкендом
//	@Tags			identify
//	@Produce		json
//	@Success		200	{object}	ReindexResponse
//	@Failure		503	{object}	ErrorResponse	"Модель недоступна"
//	@Router			/identify/reindex [post]
func (h *LensHandler) reindex(w http.ResponseWriter, r *http.Request) {
	res, err := h.lensUsecase.Reindex(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, ReindexResponse{Reindexed: res.Reindexed, Failed: res.Failed})
}

func (h *LensHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, _ := ToHTTPResponse(err)
	if code >= http.StatusInternalServerError {
		h.logger.Errorf(err, "%s %s failed", r.Method, r.URL.Path)
	} else {
		h.logger.Warnf("%d %s %s: %v", code, r.Method, r.URL.Path, err)
	}
	WriteError(w, err)
}
