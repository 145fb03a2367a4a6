// Package transport предоставляет HTTP API сервиса ваучеров.
package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/akriventsev/vouchers/internal/application"
	"github.com/akriventsev/vouchers/internal/core"
	"github.com/akriventsev/vouchers/internal/readmodel"
)

// IssueVoucherRequest запрос выпуска ваучера
type IssueVoucherRequest struct {
	EstateID           uuid.UUID `json:"estateId" binding:"required"`
	TransactionID      uuid.UUID `json:"transactionId" binding:"required"`
	OperatorIdentifier string    `json:"operatorIdentifier"`
	Value              float64   `json:"value" binding:"required"`
	RecipientEmail     string    `json:"recipientEmail"`
	RecipientMobile    string    `json:"recipientMobile"`
	IssuedDateTime     time.Time `json:"issuedDateTime"`
}

// IssueVoucherResponse ответ на выпуск ваучера
type IssueVoucherResponse struct {
	VoucherID      uuid.UUID `json:"voucherId"`
	VoucherCode    string    `json:"voucherCode"`
	ExpiryDateTime time.Time `json:"expiryDateTime"`
}

// RedeemVoucherRequest запрос погашения ваучера
type RedeemVoucherRequest struct {
	EstateID         uuid.UUID `json:"estateId" binding:"required"`
	VoucherCode      string    `json:"voucherCode" binding:"required"`
	RedeemedDateTime time.Time `json:"redeemedDateTime"`
}

// RedeemVoucherResponse ответ на погашение ваучера
type RedeemVoucherResponse struct {
	VoucherID        uuid.UUID `json:"voucherId"`
	VoucherCode      string    `json:"voucherCode"`
	Value            float64   `json:"value"`
	ExpiryDateTime   time.Time `json:"expiryDateTime"`
	RedeemedDateTime time.Time `json:"redeemedDateTime"`
}

// VoucherResponse спроецированный ваучер
type VoucherResponse struct {
	VoucherID        uuid.UUID  `json:"voucherId"`
	EstateID         uuid.UUID  `json:"estateId"`
	TransactionID    uuid.UUID  `json:"transactionId"`
	VoucherCode      string     `json:"voucherCode"`
	Value            float64    `json:"value"`
	IssuedDateTime   time.Time  `json:"issuedDateTime"`
	ExpiryDateTime   time.Time  `json:"expiryDateTime"`
	RedeemedDateTime *time.Time `json:"redeemedDateTime,omitempty"`
	IsRedeemed       bool       `json:"isRedeemed"`
}

// Server HTTP-сервер сервиса ваучеров
type Server struct {
	service *application.VoucherService
	queries *readmodel.QueryManager
	logger  *zap.Logger
}

// NewServer создает новый HTTP-сервер
func NewServer(service *application.VoucherService, queries *readmodel.QueryManager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{service: service, queries: queries, logger: logger}
}

// Router собирает gin-роутер со всеми маршрутами сервиса
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/vouchers", s.issueVoucher)
		api.PUT("/vouchers", s.redeemVoucher)
		api.GET("/vouchers", s.getVoucherByCode)
	}

	return router
}

// issueVoucher обрабатывает POST /api/vouchers
func (s *Server) issueVoucher(c *gin.Context) {
	var req IssueVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Нулевое время трактуется как "сейчас"
	issuedAt := req.IssuedDateTime
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}

	result, err := s.service.IssueVoucher(c.Request.Context(), application.IssueVoucherCommand{
		OperatorIdentifier: req.OperatorIdentifier,
		EstateID:           req.EstateID,
		TransactionID:      req.TransactionID,
		Value:              req.Value,
		RecipientEmail:     req.RecipientEmail,
		RecipientMobile:    req.RecipientMobile,
		IssuedDateTime:     issuedAt,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, IssueVoucherResponse{
		VoucherID:      result.VoucherID,
		VoucherCode:    result.VoucherCode,
		ExpiryDateTime: result.ExpiryDateTime,
	})
}

// redeemVoucher обрабатывает PUT /api/vouchers
func (s *Server) redeemVoucher(c *gin.Context) {
	var req RedeemVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	redeemedAt := req.RedeemedDateTime
	if redeemedAt.IsZero() {
		redeemedAt = time.Now().UTC()
	}

	result, err := s.service.RedeemVoucher(c.Request.Context(), application.RedeemVoucherCommand{
		EstateID:         req.EstateID,
		VoucherCode:      req.VoucherCode,
		RedeemedDateTime: redeemedAt,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, RedeemVoucherResponse{
		VoucherID:        result.VoucherID,
		VoucherCode:      result.VoucherCode,
		Value:            result.Value,
		ExpiryDateTime:   result.ExpiryDateTime,
		RedeemedDateTime: result.RedeemedDateTime,
	})
}

// getVoucherByCode обрабатывает GET /api/vouchers?estateId=...&voucherCode=...
func (s *Server) getVoucherByCode(c *gin.Context) {
	estateID, err := uuid.Parse(c.Query("estateId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "estateId must be a valid UUID"})
		return
	}
	voucherCode := c.Query("voucherCode")
	if voucherCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voucherCode is required"})
		return
	}

	record, err := s.queries.GetVoucherByCode(c.Request.Context(), estateID, voucherCode)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, VoucherResponse{
		VoucherID:        record.VoucherID,
		EstateID:         record.EstateID,
		TransactionID:    record.TransactionID,
		VoucherCode:      record.VoucherCode,
		Value:            record.Value,
		IssuedDateTime:   record.IssuedDateTime,
		ExpiryDateTime:   record.ExpiryDateTime,
		RedeemedDateTime: record.RedeemedDateTime,
		IsRedeemed:       record.IsRedeemed,
	})
}

// writeError транслирует доменную ошибку в HTTP-статус
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case core.IsInvalidState(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case core.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case core.IsConcurrencyConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
