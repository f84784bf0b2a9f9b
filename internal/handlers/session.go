package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"linkup/internal/authapi"
	"linkup/internal/models"
	"linkup/internal/observability"
	"linkup/internal/repositories"
	"linkup/internal/telemetry"
	"linkup/internal/validation"
)

// genericFailure is shown for every failed remote auth call.
const genericFailure = "something went wrong, please try again"

// AuthAPI is the remote authentication API used by the session flows.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (models.LoginResponse, error)
	Register(ctx context.Context, token string, req models.RegisterRequest) (models.StatusResponse, error)
	ValidateToken(ctx context.Context, token string) (string, error)
}

// SessionHandler runs the login, register and session status flows.
type SessionHandler struct {
	auth     AuthAPI
	sessions repositories.SessionRepository
	audit    Auditor
}

// NewSessionHandler builds a SessionHandler. audit may be nil.
func NewSessionHandler(auth AuthAPI, sessions repositories.SessionRepository, audit Auditor) *SessionHandler {
	return &SessionHandler{auth: auth, sessions: sessions, audit: audit}
}

func (h *SessionHandler) emit(c *gin.Context, action telemetry.SessionAction, level, text, userID string) {
	if h.audit == nil {
		return
	}
	h.audit.Record(c.Request.Context(), telemetry.AuditRecord{
		Action:    action,
		Level:     level,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userID,
	})
}

// Login validates the form, exchanges credentials and stores the session.
func (h *SessionHandler) Login(c *gin.Context) {
	var form validation.LoginForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := form.Validate(); err != nil {
		writeValidationError(c, err)
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), form.Email, form.Password)
	observability.ObserveAuthCall("login", err)
	if err != nil {
		log.Warn().Err(err).Msg("login failed")
		h.emit(c, telemetry.ActionLoginFailed, "WARN", "login failed", "")
		c.JSON(http.StatusBadGateway, gin.H{"error": genericFailure})
		return
	}

	if err := h.sessions.Save(c.Request.Context(), models.Session{Token: resp.Token, Roles: resp.Roles}); err != nil {
		log.Error().Err(err).Msg("store session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	subject, _ := authapi.Subject(resp.Token)
	h.emit(c, telemetry.ActionLogin, "INFO", "user logged in", subject)
	c.JSON(http.StatusOK, gin.H{"roles": resp.Roles})
}

// Register validates the form and creates an account with the stored token.
func (h *SessionHandler) Register(c *gin.Context) {
	var form validation.RegisterForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := form.Validate(); err != nil {
		writeValidationError(c, err)
		return
	}

	session, err := h.sessions.Load(c.Request.Context())
	if err != nil && !errors.Is(err, repositories.ErrNoSession) {
		log.Error().Err(err).Msg("load session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	_, err = h.auth.Register(c.Request.Context(), session.Token, models.RegisterRequest{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	observability.ObserveAuthCall("register", err)
	if err != nil {
		log.Warn().Err(err).Msg("register failed")
		h.emit(c, telemetry.ActionRegisterFailed, "WARN", "register failed", "")
		c.JSON(http.StatusBadGateway, gin.H{"error": genericFailure})
		return
	}

	h.emit(c, telemetry.ActionRegister, "INFO", "user registered: "+form.Username, "")
	c.JSON(http.StatusCreated, gin.H{"message": "registration successful"})
}

// Status reports whether the stored token is still accepted. A rejected
// token is removed together with its roles.
func (h *SessionHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := h.sessions.Load(ctx)
	if errors.Is(err, repositories.ErrNoSession) {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("load session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	subject, err := h.auth.ValidateToken(ctx, session.Token)
	observability.ObserveAuthCall("validate-token", err)
	if err != nil {
		log.Info().Err(err).Msg("stored token rejected, clearing session")
		if err := h.sessions.Clear(ctx); err != nil {
			log.Error().Err(err).Msg("clear session")
		}
		h.emit(c, telemetry.ActionStaleToken, "INFO", "stored token rejected", "")
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user_id": subject, "roles": session.Roles})
}

// Logout removes the stored token and roles.
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.sessions.Clear(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("clear session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear session"})
		return
	}
	h.emit(c, telemetry.ActionLogout, "INFO", "user logged out", "")
	c.Status(http.StatusNoContent)
}

func writeValidationError(c *gin.Context, err error) {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, validationBody(verr))
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
