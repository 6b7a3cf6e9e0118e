package handler

import (
	"audio-service/apperror"
	"audio-service/auth"
	"audio-service/dto"
	"audio-service/service"
	"audio-service/validator"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	playvalidator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// multipartOverhead is the slack allowed on top of the max audio size for
// form fields and part headers.
const multipartOverhead = 1 << 20

type AudioHandler struct {
	service   service.AudioService
	validator *validator.AudioValidator
}

func NewAudioHandler(audioService service.AudioService, audioValidator *validator.AudioValidator) *AudioHandler {
	return &AudioHandler{
		service:   audioService,
		validator: audioValidator,
	}
}

func (h *AudioHandler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.Upload)
	rg.POST("/", h.Upload)
	rg.GET("", h.List)
	rg.GET("/", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/content", h.Content)
	rg.DELETE("/:id", h.Delete)
}

func (h *AudioHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.validator.MaxSize()+multipartOverhead)

	var req dto.AudioUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.fail(c, h.bindError(err))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.fail(c, h.bindError(err))
		return
	}

	upload := validator.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
	}
	if err := h.validator.Validate(upload); err != nil {
		h.fail(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, apperror.Storage("Could not read uploaded file", err))
		return
	}
	defer file.Close()

	contentType := upload.ContentType
	if contentType == "" {
		contentType = h.validator.ResolveContentType(sniffContentType(file), upload.Filename)
	}

	audio, err := h.service.StoreAudio(c.Request.Context(), service.UploadAudio{
		Reader:      file,
		Filename:    upload.Filename,
		ContentType: contentType,
		Size:        upload.Size,
		Title:       req.Title,
		Description: req.Description,
		Language:    req.Language,
	}, auth.Username(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.AudioUploadResponse{
		Id:      audio.ID,
		Title:   audio.Title,
		Status:  audio.Status.String(),
		Message: "Audio uploaded successfully",
	})
}

func (h *AudioHandler) Get(c *gin.Context) {
	id, ok := h.audioID(c)
	if !ok {
		return
	}
	audio, err := h.service.GetAudioFileById(c.Request.Context(), id, auth.Username(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAudioDetails(audio))
}

func (h *AudioHandler) Content(c *gin.Context) {
	id, ok := h.audioID(c)
	if !ok {
		return
	}
	audio, content, err := h.service.OpenAudioContent(c.Request.Context(), id, auth.Username(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer content.Close()

	c.DataFromReader(http.StatusOK, audio.FileSize, audio.ContentType, content, map[string]string{
		"Content-Disposition": contentDisposition(audio.OriginalFilename),
	})
}

func (h *AudioHandler) List(c *gin.Context) {
	files, err := h.service.ListUserAudioFiles(c.Request.Context(), auth.Username(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *AudioHandler) Delete(c *gin.Context) {
	id, ok := h.audioID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteAudio(c.Request.Context(), id, auth.Username(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AudioHandler) audioID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, apperror.InvalidRequest("Invalid audio id"))
		return 0, false
	}
	return id, true
}

func (h *AudioHandler) fail(c *gin.Context, err error) {
	status := StatusOf(err)
	event := zerolog.Ctx(c.Request.Context()).Info()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(c.Request.Context()).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")

	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Message: apperror.MessageOf(err, "Internal server error"),
	})
}

func (h *AudioHandler) bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.InvalidRequest(fmt.Sprintf("Audio file size must not exceed %s", humanize.IBytes(uint64(h.validator.MaxSize()))))
	}
	if errors.Is(err, http.ErrMissingFile) {
		return apperror.InvalidRequest("Audio file is required")
	}

	var fieldErrs playvalidator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return apperror.InvalidRequest(fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			return apperror.InvalidRequest(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		}
		return apperror.InvalidRequest(fmt.Sprintf("%s is invalid", fe.Field()))
	}
	return apperror.InvalidRequest("Invalid upload request")
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperror.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// sniffContentType detects the type of file from its leading bytes and
// rewinds it. It returns nil when detection fails.
func sniffContentType(file multipart.File) *mimetype.MIME {
	mtype, err := mimetype.DetectReader(file)
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil || err != nil {
		return nil
	}
	return mtype
}

var dispositionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"`, dispositionEscaper.Replace(filename))
}
