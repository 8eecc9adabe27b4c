package cron

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/placementalarm/placement-api/internal/handler"
	"github.com/placementalarm/placement-api/internal/service/mailsync"
	"github.com/placementalarm/placement-api/internal/service/reminder"
	"github.com/placementalarm/placement-api/pkg/errors"
)

// Handler exposes manual triggers for the background sweeps. The routes
// are guarded by a shared secret header rather than user auth, so an
// external scheduler can hit them.
type Handler struct {
	reminders reminder.Service
	mail      mailsync.Service
	secret    string
}

func NewHandler(reminders reminder.Service, mail mailsync.Service, secret string) *Handler {
	return &Handler{reminders: reminders, mail: mail, secret: secret}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cron := r.Group("/cron")
	cron.Use(h.requireSecret())
	{
		cron.POST("/reminders/deadlines", h.SweepDeadlines)
		cron.POST("/reminders/followups", h.SweepFollowUps)
		cron.POST("/mailsync", h.RunMailSync)
	}
}

func (h *Handler) requireSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Cron-Secret")
		if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			handler.RespondError(c, errors.Unauthorized("invalid cron secret"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *Handler) SweepDeadlines(c *gin.Context) {
	if err := h.reminders.SweepDeadlines(c.Request.Context()); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) SweepFollowUps(c *gin.Context) {
	if err := h.reminders.SweepFollowUps(c.Request.Context()); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) RunMailSync(c *gin.Context) {
	if err := h.mail.Run(c.Request.Context()); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
