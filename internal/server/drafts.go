package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/wizard"
)

type resolveRequest struct {
	Action string `json:"action" binding:"required,oneof=restore discard dismiss"`
}

func (s *Server) handleGetDraft(c *gin.Context) {
	rec, ok := draftsFrom(c).Load(c.Request.Context())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no draft"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// handlePutDraft is the write-through used by a front-end that keeps the
// wizard state itself.
func (s *Server) handlePutDraft(c *gin.Context) {
	var rec draft.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		s.badRequest(c, err)
		return
	}
	if !rec.Step.Valid() {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "step is required"})
		return
	}

	rec.UpdatedAt = s.deps.Now()
	draftsFrom(c).Save(c.Request.Context(), rec)

	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteDraft(c *gin.Context) {
	draftsFrom(c).Clear(c.Request.Context())

	c.Status(http.StatusNoContent)
}

// handlePrompt tells the front-end whether to show the restore dialog on
// mount.
func (s *Server) handlePrompt(c *gin.Context) {
	ctx := c.Request.Context()
	drafts := draftsFrom(c)

	if !wizard.NewGate(drafts).ShouldPrompt(ctx) {
		c.JSON(http.StatusOK, gin.H{"prompt": false})
		return
	}

	rec, _ := drafts.Load(ctx)
	s.metrics.prompts.WithLabelValues("shown").Inc()

	c.JSON(http.StatusOK, gin.H{"prompt": true, "draft": rec})
}

func (s *Server) handleResolvePrompt(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	gate := wizard.NewGate(draftsFrom(c))
	s.metrics.prompts.WithLabelValues(req.Action).Inc()

	if req.Action == "dismiss" {
		gate.Dismiss(ctx)
		c.Status(http.StatusNoContent)
		return
	}

	s.runWizard(c, "", func(w *wizard.Wizard) error {
		if req.Action == "restore" {
			return gate.Restore(ctx, w)
		}
		return gate.Discard(ctx, w)
	})
}
