package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cosmarket/points/config"
	"github.com/cosmarket/points/services"
	"github.com/cosmarket/points/utils"
)

// ExchangeController is the server-to-server endpoint the partner forum calls
// to convert coins into points. It speaks the partner's envelope
// ({success, error, message, data}), not the internal one, and verifies the
// HMAC signature against the raw body before any JSON decoding.
type ExchangeController struct {
	exchange *services.ExchangeService
}

// NewExchangeController creates a new controller instance.
func NewExchangeController(exchange *services.ExchangeService) *ExchangeController {
	return &ExchangeController{exchange: exchange}
}

func partnerError(ctx *gin.Context, status int, code, message string) {
	ctx.JSON(status, gin.H{"success": false, "error": code, "message": message})
}

// Process handles POST /exchange.
func (e *ExchangeController) Process(ctx *gin.Context) {
	if ctx.Request.Method != http.MethodPost {
		partnerError(ctx, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is accepted")
		return
	}

	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, 1<<20))
	if err != nil {
		partnerError(ctx, http.StatusBadRequest, services.CodeMissingParameters, "unreadable request body")
		return
	}

	signature := ctx.GetHeader("X-Signature")
	if !utils.VerifySignature(body, signature, config.Get().ExchangeSecret) {
		if utils.Sugar != nil {
			utils.Sugar.Warnw("exchange signature verification failed", "ip", ctx.ClientIP())
		}
		partnerError(ctx, http.StatusUnauthorized, services.CodeSignatureFailed, "signature verification failed")
		return
	}

	var req services.ExchangeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		partnerError(ctx, http.StatusBadRequest, services.CodeMissingParameters, "malformed JSON body")
		return
	}

	result, exErr := e.exchange.Process(req, signature, ctx.ClientIP())
	if exErr != nil {
		partnerError(ctx, exErr.Status, exErr.Code, exErr.Message)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "exchange completed",
		"data":    result,
	})
}
