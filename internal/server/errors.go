package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medannot/medannot/internal/annotate"
	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/store"
	"github.com/medannot/medannot/internal/transcribe"
	"github.com/medannot/medannot/internal/wizard"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{wizard.ErrNoPatientSelected, http.StatusUnprocessableEntity},
	{wizard.ErrEmptyTranscription, http.StatusUnprocessableEntity},
	{wizard.ErrEmptyAnnotation, http.StatusUnprocessableEntity},
	{wizard.ErrInvalidVisit, http.StatusUnprocessableEntity},
	{wizard.ErrTransitionNotAllowed, http.StatusConflict},
	{wizard.ErrBusy, http.StatusConflict},
	{store.ErrNotFound, http.StatusNotFound},
	{store.ErrInvalid, http.StatusUnprocessableEntity},
	{audio.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
	{audio.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{audio.ErrEmptyFile, http.StatusBadRequest},
	{transcribe.ErrMissingAPIKey, http.StatusServiceUnavailable},
	{annotate.ErrMissingAPIKey, http.StatusServiceUnavailable},
}

// statusFor maps known errors to a status, or returns fallback.
func statusFor(err error, fallback int) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}

	return fallback
}

// fail writes {"error": ...}. Server-side failures are logged; client
// mistakes are not.
func (s *Server) fail(c *gin.Context, err error, fallback int) {
	status := statusFor(err, fallback)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", c.FullPath(),
			"status", status,
			"error", err,
		)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
