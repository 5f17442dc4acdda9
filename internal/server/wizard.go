package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/medannot/medannot/internal/annotate"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/store"
	"github.com/medannot/medannot/internal/wizard"
)

type wizardView struct {
	Step    draft.Step   `json:"step"`
	Draft   draft.Record `json:"draft"`
	CanNext bool         `json:"canNext"`
	CanBack bool         `json:"canBack"`
}

func viewOf(w *wizard.Wizard) wizardView {
	rec := w.Record()

	return wizardView{
		Step:    rec.Step,
		Draft:   rec,
		CanNext: wizard.CanNext(rec.Step, rec),
		CanBack: wizard.CanBack(rec.Step),
	}
}

type selectPatientRequest struct {
	PatientID string `json:"patientId" binding:"required"`
}

type visitRequest struct {
	Date     string `json:"visitDate" binding:"required,datetime=2006-01-02"`
	Time     string `json:"visitTime" binding:"required,datetime=15:04"`
	Duration *int   `json:"visitDuration" binding:"omitempty,min=1,max=1440"`
}

type textRequest struct {
	Text *string `json:"text" binding:"required"`
}

// wizardFor rebuilds the profile's wizard from its stored draft.
func (s *Server) wizardFor(c *gin.Context) *wizard.Wizard {
	ctx := c.Request.Context()
	drafts := draftsFrom(c)

	w := wizard.New(wizard.Deps{
		Drafts:      drafts,
		Transcriber: s.deps.Transcriber,
		Generator:   s.deps.Generator,
		Backend:     s.deps.DB,
		Examples:    s.config.ExampleCount,
		Now:         s.deps.Now,
	})

	if rec, ok := drafts.Load(ctx); ok {
		if err := w.Load(rec); err != nil {
			s.logger.Debug("ignoring stored draft", "error", err)
		}
	}

	return w
}

// runWizard runs op on the profile's wizard while holding the profile lock
// and responds with the resulting state. A non-empty name is counted in the
// wizard metrics.
func (s *Server) runWizard(c *gin.Context, name string, op func(w *wizard.Wizard) error) {
	unlock, ok := s.locks.tryLock(profileFrom(c))
	if !ok {
		s.fail(c, wizard.ErrBusy, http.StatusConflict)
		return
	}
	defer unlock()

	w := s.wizardFor(c)
	defer w.Close()

	err := op(w)
	if name != "" {
		s.metrics.wizardOp(name, err)
	}
	if err != nil {
		s.fail(c, err, http.StatusBadGateway)
		return
	}

	c.JSON(http.StatusOK, viewOf(w))
}

func (s *Server) handleWizard(c *gin.Context) {
	c.JSON(http.StatusOK, viewOf(s.wizardFor(c)))
}

func (s *Server) handleStart(c *gin.Context) {
	s.runWizard(c, "start", func(w *wizard.Wizard) error {
		return w.Start(c.Request.Context())
	})
}

func (s *Server) handleNext(c *gin.Context) {
	s.runWizard(c, "next", func(w *wizard.Wizard) error {
		return w.Next(c.Request.Context())
	})
}

func (s *Server) handleBack(c *gin.Context) {
	s.runWizard(c, "back", func(w *wizard.Wizard) error {
		return w.Back(c.Request.Context())
	})
}

func (s *Server) handleSelectPatient(c *gin.Context) {
	var req selectPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	p, err := s.deps.DB.GetPatient(ctx, req.PatientID)
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError)
		return
	}

	if p.ArchivedAt != nil {
		s.fail(c, fmt.Errorf("patient %s is archived: %w", p.ID, store.ErrNotFound), http.StatusInternalServerError)
		return
	}

	s.runWizard(c, "", func(w *wizard.Wizard) error {
		return w.SelectPatient(ctx, req.PatientID)
	})
}

func (s *Server) handleSetVisit(c *gin.Context) {
	var req visitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	s.runWizard(c, "", func(w *wizard.Wizard) error {
		return w.SetVisit(c.Request.Context(), req.Date, req.Time, req.Duration)
	})
}

func (s *Server) handleSetTranscription(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	s.runWizard(c, "", func(w *wizard.Wizard) error {
		return w.SetTranscription(c.Request.Context(), *req.Text)
	})
}

func (s *Server) handleSetAnnotation(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	s.runWizard(c, "", func(w *wizard.Wizard) error {
		return w.SetAnnotation(c.Request.Context(), *req.Text)
	})
}

// handleAudio accepts a multipart "file", validates and stages it, then
// transcribes it. The staged copy is removed afterwards: only the transcript
// is kept.
func (s *Server) handleAudio(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.deps.Importer.MaxBytes()+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			s.metrics.imports.WithLabelValues("rejected").Inc()
			s.fail(c, fmt.Errorf("upload exceeds %d MB", s.deps.Importer.MaxBytes()>>20), http.StatusRequestEntityTooLarge)
			return
		}
		s.badRequest(c, fmt.Errorf("multipart field \"file\" is required: %w", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError)
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	s.runWizard(c, "transcribe", func(w *wizard.Wizard) error {
		if step := w.Step(); step != draft.StepRecord {
			return fmt.Errorf("%w: at %s, expected %s", wizard.ErrTransitionNotAllowed, step, draft.StepRecord)
		}

		clip, err := s.deps.Importer.ImportReader(fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
		if err != nil {
			s.metrics.imports.WithLabelValues("rejected").Inc()
			return err
		}
		s.metrics.imports.WithLabelValues("accepted").Inc()
		defer os.Remove(clip.Path)

		return w.Transcribe(ctx, clip)
	})
}

// handleGenerate generates from the transcription step, or regenerates on
// the result step.
func (s *Server) handleGenerate(c *gin.Context) {
	ctx := c.Request.Context()

	s.runWizard(c, "generate", func(w *wizard.Wizard) error {
		if w.Step() == draft.StepResult {
			return w.Regenerate(ctx)
		}
		return w.Generate(ctx)
	})
}

func (s *Server) handleSave(c *gin.Context) {
	unlock, ok := s.locks.tryLock(profileFrom(c))
	if !ok {
		s.fail(c, wizard.ErrBusy, http.StatusConflict)
		return
	}
	defer unlock()

	w := s.wizardFor(c)
	defer w.Close()

	saved, err := w.Save(c.Request.Context())
	s.metrics.wizardOp("save", err)
	if err != nil {
		s.fail(c, err, http.StatusBadGateway)
		return
	}

	c.JSON(http.StatusCreated, saved)
}

type listAnnotationsQuery struct {
	PatientID string `form:"patientId" binding:"required"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

func (s *Server) handleListAnnotations(c *gin.Context) {
	var q listAnnotationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.badRequest(c, err)
		return
	}

	list, err := s.deps.DB.ListAnnotations(c.Request.Context(), q.PatientID, q.Limit)
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"annotations": list})
}

type templateRequest struct {
	Template string `json:"template" binding:"max=4000"`
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	tmpl, err := s.deps.DB.StructureTemplate(c.Request.Context())
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, templateResponse(tmpl))
}

func (s *Server) handlePutTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.deps.DB.SetStructureTemplate(c.Request.Context(), req.Template); err != nil {
		s.fail(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, templateResponse(req.Template))
}

func templateResponse(tmpl string) gin.H {
	if tmpl == "" {
		return gin.H{"template": annotate.DefaultTemplate, "isDefault": true}
	}
	return gin.H{"template": tmpl, "isDefault": false}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// compile-time check that the store satisfies the wizard backend.
var _ wizard.Backend = (*store.DB)(nil)
