package handlers

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/claim-console/internal/auth"
	"github.com/example/claim-console/internal/claim"
	"github.com/example/claim-console/internal/config"
	"github.com/example/claim-console/internal/render"
	"github.com/example/claim-console/internal/session"
)

// DefaultMaxUploadSize bounds the accepted image size when none is configured.
const DefaultMaxUploadSize = 10 << 20

// multipartOverhead leaves room for boundaries and headers around the image.
const multipartOverhead = 64 << 10

const uploadField = "image"

//go:embed templates/*.html
var templatesFS embed.FS

type Handler struct {
	manager       *session.Manager
	maxUploadSize int64
	logger        *zap.Logger
}

func NewHandler(manager *session.Manager, maxUploadSize int64, logger *zap.Logger) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &Handler{manager: manager, maxUploadSize: maxUploadSize, logger: logger.Named("handlers")}
}

// RegisterRoutes wires the UI pages and the JSON API to the Gin router.
func RegisterRoutes(router *gin.Engine, h *Handler, sessionMiddleware gin.HandlerFunc) {
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ui := router.Group("/", sessionMiddleware)
	{
		ui.GET("/", h.index)
		ui.POST("/settings", h.updateSettings)
		ui.POST("/health-check", h.checkHealth)
		ui.POST("/submit", h.submit)
		ui.POST("/cancel", h.cancel)
	}

	api := router.Group("/api", sessionMiddleware)
	{
		api.GET("/session", h.apiSession)
		api.PUT("/settings", h.apiUpdateSettings)
		api.GET("/health", h.apiHealth)
		api.POST("/claims", h.apiSubmit)
		api.POST("/claims/cancel", h.apiCancel)
	}
}

// pageView is everything index.html renders.
type pageView struct {
	Session       session.Snapshot
	SettingsError string
	SettingsSaved bool
	Health        *render.HealthView
	UploadError   string
	Notice        string
	Display       *render.DisplayModel
	MaxUploadMB   int64
}

func (h *Handler) session(c *gin.Context) *session.Session {
	id, _ := auth.GetSessionID(c.Request.Context())
	return h.manager.Session(c.Request.Context(), id)
}

func (h *Handler) page(c *gin.Context, status int, s *session.Session, view pageView) {
	view.Session = s.Snapshot()
	view.MaxUploadMB = h.maxUploadSize >> 20
	c.HTML(status, "index.html", view)
}

func (h *Handler) index(c *gin.Context) {
	h.page(c, http.StatusOK, h.session(c), pageView{})
}

func (h *Handler) updateSettings(c *gin.Context) {
	s := h.session(c)
	raw := strings.TrimSpace(c.PostForm("api_url"))
	if err := config.ValidateBaseURL(raw); err != nil {
		h.page(c, http.StatusBadRequest, s, pageView{SettingsError: "Invalid API URL: " + err.Error()})
		return
	}
	h.manager.UpdateBaseURL(c.Request.Context(), s, raw)
	h.page(c, http.StatusOK, s, pageView{SettingsSaved: true})
}

func (h *Handler) checkHealth(c *gin.Context) {
	s := h.session(c)
	view := render.RenderHealth(h.manager.CheckHealth(c.Request.Context(), s))
	h.page(c, http.StatusOK, s, pageView{Health: &view})
}

func (h *Handler) submit(c *gin.Context) {
	s := h.session(c)

	image, err := h.readUpload(c)
	if err != nil {
		h.page(c, uploadErrorStatus(err), s, pageView{UploadError: userMessage(err)})
		return
	}

	result, err := h.manager.Submit(c.Request.Context(), s, image)
	if errors.Is(err, session.ErrDuplicateSubmission) || errors.Is(err, session.ErrSuperseded) {
		h.page(c, http.StatusConflict, s, pageView{Notice: err.Error()})
		return
	}

	model := render.Render(result, err)
	h.page(c, http.StatusOK, s, pageView{Display: &model})
}

func (h *Handler) cancel(c *gin.Context) {
	s := h.session(c)
	notice := "No submission was in progress."
	if h.manager.Cancel(s) {
		notice = "The submission was canceled."
	}
	h.page(c, http.StatusOK, s, pageView{Notice: notice})
}

type settingsRequest struct {
	APIURL string `json:"api_url"`
}

func (h *Handler) apiSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.session(c).Snapshot())
}

func (h *Handler) apiUpdateSettings(c *gin.Context) {
	s := h.session(c)
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	raw := strings.TrimSpace(req.APIURL)
	if err := config.ValidateBaseURL(raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid API URL: " + err.Error()})
		return
	}
	h.manager.UpdateBaseURL(c.Request.Context(), s, raw)
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) apiHealth(c *gin.Context) {
	s := h.session(c)
	c.JSON(http.StatusOK, render.RenderHealth(h.manager.CheckHealth(c.Request.Context(), s)))
}

func (h *Handler) apiSubmit(c *gin.Context) {
	s := h.session(c)

	image, err := h.readUpload(c)
	if err != nil {
		c.JSON(uploadErrorStatus(err), render.Render(nil, err))
		return
	}

	result, err := h.manager.Submit(c.Request.Context(), s, image)
	if errors.Is(err, session.ErrDuplicateSubmission) || errors.Is(err, session.ErrSuperseded) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(outcomeStatus(err), render.Render(result, err))
}

func (h *Handler) apiCancel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"canceled": h.manager.Cancel(h.session(c))})
}

var errTooLarge = errors.New("upload too large")

// readUpload extracts and validates the image of a multipart request. Errors are
// *claim.ClaimError of category invalid-input.
func (h *Handler) readUpload(c *gin.Context) (claim.UploadedImage, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)

	file, err := c.FormFile(uploadField)
	if err != nil {
		if isTooLarge(err) {
			return claim.UploadedImage{}, h.tooLarge()
		}
		return claim.UploadedImage{}, claim.NewInvalidInput("Please select a file to upload.")
	}
	if file.Size > h.maxUploadSize {
		return claim.UploadedImage{}, h.tooLarge()
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Warn("unable to open uploaded file", zap.Error(err))
		return claim.UploadedImage{}, claim.NewInvalidInput("The selected file could not be read.")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		h.logger.Warn("unable to read uploaded file", zap.Error(err))
		return claim.UploadedImage{}, claim.NewInvalidInput("The selected file could not be read.")
	}

	image, err := claim.NewUploadedImage(file.Filename, data)
	if err != nil {
		h.logger.Info("upload rejected",
			zap.String("filename", file.Filename),
			zap.String("declared_type", file.Header.Get("Content-Type")),
			zap.Error(err),
		)
		return claim.UploadedImage{}, err
	}
	return image, nil
}

func (h *Handler) tooLarge() error {
	return &claim.ClaimError{
		Category: claim.CategoryInvalidInput,
		Message:  "The selected file is larger than the upload limit.",
		Err:      errTooLarge,
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func uploadErrorStatus(err error) int {
	if errors.Is(err, errTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// outcomeStatus maps a submission outcome to the JSON API status code.
func outcomeStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var claimErr *claim.ClaimError
	if !errors.As(err, &claimErr) {
		return http.StatusInternalServerError
	}
	switch claimErr.Category {
	case claim.CategoryTimeout:
		return http.StatusGatewayTimeout
	case claim.CategoryInvalidInput:
		return http.StatusBadRequest
	case claim.CategoryCanceled:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func userMessage(err error) string {
	var claimErr *claim.ClaimError
	if errors.As(err, &claimErr) && claimErr.Message != "" {
		return claimErr.Message
	}
	return err.Error()
}
