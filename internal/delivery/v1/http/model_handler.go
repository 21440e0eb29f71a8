package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/psms-tech/go-backend/pkg/logger"
)

const (
	maxModelUploadBytes = 1 << 30
	maxJSONBodyBytes    = 64 << 10
)

type ModelHandler struct {
	modelUsecase usecase.ModelUC
	logger       logger.Logger
}

func NewModelHandler(modelUsecase usecase.ModelUC, logger logger.Logger) *ModelHandler {
	return &ModelHandler{modelUsecase: modelUsecase, logger: logger}
}

// list
//
//	@Summary	Установленные модели
//	@Tags		models
//	@Produce	json
//	@Success	200	{array}		ModelResponse
//	@Failure	500	{object}	ErrorResponse
//	@Router		/identify/models [get]
func (h *ModelHandler) list(w http.ResponseWriter, r *http.Request) {
	models, err := h.modelUsecase.ListModels(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toModelResponses(models))
}

// catalog
//
//	@Summary	Каталог рекомендованных моделей
//	@Tags		models
//	@Produce	json
//	@Success	200	{array}	CatalogEntryResponse
//	@Router		/identify/models/catalog [get]
func (h *ModelHandler) catalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.modelUsecase.Catalog(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toCatalogResponses(entries))
}

// download
//
//	@Summary		Скачивание модели
//	@Description	Скачивает модель по URL. Уже установленный файл повторно не скачивается
//	@Tags			models
//	@Accept			json
//	@Produce		json
//	@Param			request	body		DownloadModelRequest	true	"URL и имя файла"
//	@Success		201		{object}	ModelResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		503		{object}	ErrorResponse	"Источник недоступен"
//	@Router			/identify/models/download [post]
func (h *ModelHandler) download(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var req DownloadModelRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	model, err := h.modelUsecase.DownloadModel(r.Context(), &usecase.DownloadModelReq{URL: req.URL, Filename: req.Filename})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, toModelResponse(*model))
}

// upload
//
//	@Summary	Загрузка файла модели
//	@Tags		models
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file	formData	file	true	"Файл .onnx"
//	@Success	201		{object}	ModelResponse
//	@Failure	400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router		/identify/models/upload [post]
func (h *ModelHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxModelUploadBytes+formOverhead)
	if err := ensureMultipartForm(r, multipartMemory); err != nil {
		h.writeError(w, r, err)
		return
	}

	data, fh, err := formFile(r, "file", maxModelUploadBytes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if data == nil {
		h.writeError(w, r, e.ErrMissingFields)
		return
	}

	model, err := h.modelUsecase.UploadModel(r.Context(), &usecase.UploadModelReq{Filename: fh.Filename, Data: data})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, toModelResponse(*model))
}

// activate
//
//	@Summary	Активация модели
//	@Tags		models
//	@Produce	json
//	@Param		filename	path		string	true	"Имя файла модели"
//	@Success	200			{object}	MessageResponse
//	@Failure	404			{object}	ErrorResponse	"Модель не найдена"
//	@Failure	503			{object}	ErrorResponse	"Модель не загружается"
//	@Router		/identify/models/{filename}/activate [post]
func (h *ModelHandler) activate(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if err := h.modelUsecase.ActivateModel(r.Context(), filename); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Infof("model %s activated", filename)
	WriteSuccess(w, http.StatusOK, MessageResponse{Message: "Model " + filename + " activated"})
}

// delete
//
//	@Summary	Удаление модели
//	@Tags		models
//	@Produce	json
//	@Param		filename	path		string	true	"Имя файла модели"
//	@Success	200			{object}	MessageResponse
//	@Failure	404			{object}	ErrorResponse	"Модель не найдена"
//	@Failure	409			{object}	ErrorResponse	"Нельзя удалить активную модель"
//	@Router		/identify/models/{filename} [delete]
func (h *ModelHandler) delete(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if err := h.modelUsecase.DeleteModel(r.Context(), filename); err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, MessageResponse{Message: "Model " + filename + " deleted"})
}

func (h *ModelHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, _ := ToHTTPResponse(err)
	if code >= http.StatusInternalServerError {
		h.logger.Errorf(err, "%s %s failed", r.Method, r.URL.Path)
	} else {
		h.logger.Warnf("%d %s %s: %v", code, r.Method, r.URL.Path, err)
	}
	WriteError(w, err)
}
