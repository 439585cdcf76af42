package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ordersite/internal/mail"
)

type Mailer interface {
	Dispatch(ctx context.Context, req mail.Request) error
	SendContact(ctx context.Context, contact mail.ContactView) error
}

type ContactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Type    string `json:"type"`
	Message string `json:"message" binding:"required"`
}

func mailErrorStatus(err error) int {
	switch {
	case errors.Is(err, mail.ErrInvalidType),
		errors.Is(err, mail.ErrInvalidRecipient),
		errors.Is(err, mail.ErrInvalidData):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

/*
POST /api/contact
- mails the inquiry to the site contact address
- sends the auto reply when the setting is on
*/
func SubmitContact(mailer Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/contact"
		defer handlePanic(c, route)

		var req ContactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		err := mailer.SendContact(ctx, mail.ContactView{
			Name:    strings.TrimSpace(req.Name),
			Email:   strings.TrimSpace(req.Email),
			Company: strings.TrimSpace(req.Company),
			Phone:   strings.TrimSpace(req.Phone),
			Type:    strings.TrimSpace(req.Type),
			Message: strings.TrimSpace(req.Message),
		})
		if err != nil {
			respondWithError(c, mailErrorStatus(err), route, err.Error())
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "お問い合わせを送信しました"})
	}
}

/*
POST /api/send-email
- admin token required; order and contact mail is otherwise sent by the server itself
- body {type, to, data}
- every attempt is written to the notification log by the mailer
*/
func SendEmail(mailer Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/send-email"
		defer handlePanic(c, route)

		var req mail.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}
		if req.Type == "" || strings.TrimSpace(req.To) == "" {
			respondWithError(c, http.StatusBadRequest, route, "type and to are required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		if err := mailer.Dispatch(ctx, req); err != nil {
			respondWithError(c, mailErrorStatus(err), route, err.Error())
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "メールを送信しました"})
	}
}
