package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"kyc_link_gateway/internal/apperrors"
	"kyc_link_gateway/internal/callback"
	"kyc_link_gateway/internal/metrics"
	"kyc_link_gateway/internal/provider"
	"kyc_link_gateway/internal/service"
	"kyc_link_gateway/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type CallbackReconciler interface {
	Reconcile(ctx context.Context, params callback.Params) callback.Event
}

type WebhookIngestor interface {
	Ingest(ctx context.Context, body []byte) webhook.Acknowledgement
}

type Handler struct {
	verificationService service.VerificationService
	reconciler          CallbackReconciler
	ingestor            WebhookIngestor
	logger              *zap.Logger
}

func NewHandler(verificationService service.VerificationService, reconciler CallbackReconciler, ingestor WebhookIngestor, logger *zap.Logger) *Handler {
	return &Handler{
		verificationService: verificationService,
		reconciler:          reconciler,
		ingestor:            ingestor,
		logger:              logger,
	}
}

// NewRouter собирает gin-движок со всеми маршрутами шлюза.
func NewRouter(h *Handler, callbackPath string, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(logger), m.Middleware())

	router.GET("/", h.Index)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	router.POST("/create-registration-link", h.CreateRegistrationLink)
	router.POST("/create-multi-use-link", h.CreateMultiUseLink)
	router.GET(callbackPath, h.Callback)
	router.POST("/webhook", h.Webhook)

	return router
}

type createLinkRequest struct {
	RedirectURL string `json:"redirect_url" form:"redirect_url"`
}

func (h *Handler) Index(c *gin.Context) {
	c.String(http.StatusOK, "KYC link gateway is running")
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *Handler) CreateRegistrationLink(c *gin.Context) {
	var req createLinkRequest
	if c.Request.ContentLength != 0 {
		// Тело необязательно: при ошибке разбора используется адрес возврата по умолчанию
		if err := c.ShouldBind(&req); err != nil {
			h.logger.Debug("failed to bind create link request", zap.Error(err))
		}
	}

	result, err := h.verificationService.CreateRegistrationLink(c.Request.Context(), req.RedirectURL)
	h.respondWithLink(c, result, err)
}

func (h *Handler) CreateMultiUseLink(c *gin.Context) {
	result, err := h.verificationService.CreateMultiUseLink(c.Request.Context())
	h.respondWithLink(c, result, err)
}

func (h *Handler) respondWithLink(c *gin.Context, result *provider.LinkCreationResult, err error) {
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorDetail(err)})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Raw)
}

// errorDetail отдает тело ответа провайдера как есть. Если это не JSON, оно уходит строкой.
func errorDetail(err error) any {
	var providerErr *apperrors.ProviderError
	if errors.As(err, &providerErr) && len(providerErr.Body) > 0 {
		if json.Valid(providerErr.Body) {
			return json.RawMessage(providerErr.Body)
		}
		return string(providerErr.Body)
	}

	var transportErr *apperrors.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Error()
	}

	return err.Error()
}

func (h *Handler) Callback(c *gin.Context) {
	event := h.reconciler.Reconcile(c.Request.Context(), callback.Params{
		Status:           c.Query("status"),
		UserID:           c.Query("user_id"),
		ClaimedTimestamp: c.Query("timestamp"),
	})

	status, page := callback.Render(event)
	c.Data(status, "text/html; charset=utf-8", page)
}

func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.Error(err))
	}

	ack := h.ingestor.Ingest(c.Request.Context(), body)
	c.String(ack.Status, ack.Body)
}
