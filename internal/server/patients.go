package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medannot/medannot/internal/store"
)

type createPatientRequest struct {
	FirstName   string   `json:"firstName" binding:"max=100"`
	LastName    string   `json:"lastName" binding:"required,max=100"`
	BirthDate   string   `json:"birthDate" binding:"omitempty,datetime=2006-01-02"`
	Pathologies []string `json:"pathologies" binding:"omitempty,dive,required,max=200"`
	Notes       string   `json:"notes" binding:"max=2000"`
}

func (s *Server) handleListPatients(c *gin.Context) {
	patients, err := s.deps.DB.ListPatients(c.Request.Context())
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"patients": patients})
}

func (s *Server) handleCreatePatient(c *gin.Context) {
	var req createPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	p, err := s.deps.DB.CreatePatient(c.Request.Context(), store.Patient{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		BirthDate:   req.BirthDate,
		Pathologies: req.Pathologies,
		Notes:       req.Notes,
	})
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleGetPatient(c *gin.Context) {
	p, err := s.deps.DB.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (s *Server) handleArchivePatient(c *gin.Context) {
	if err := s.deps.DB.ArchivePatient(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err, http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}
