package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"telematics/pkg/models"
	"telematics/pkg/recommend"
	"telematics/service"
)

type registerRequest struct {
	LicensePlate    string `json:"license_plate" binding:"required"`
	LicenseNumber   string `json:"license_number" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password"`
}

type loginRequest struct {
	LicenseNumber string `json:"license_number" binding:"required"`
	Password      string `json:"password" binding:"required"`
}

type planRequest struct {
	Plan string `json:"plan" binding:"required"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Driver    *models.Driver `json:"driver"`
}

func (s *Server) apiRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		writeError(c, http.StatusBadRequest, "password_mismatch", "passwords do not match")
		return
	}
	driverID, err := s.services.Account().Register(c.Request.Context(), req.LicensePlate, req.LicenseNumber, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"driver_id": driverID})
}

func (s *Server) apiLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	d, err := s.services.Account().Authenticate(c.Request.Context(), req.LicenseNumber, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	token, expires, err := s.issueToken(d.DriverID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.setSession(c, token)
	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expires, Driver: d})
}

func (s *Server) apiMe(c *gin.Context) {
	details, err := s.services.Account().Details(c.Request.Context(), currentDriver(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (s *Server) apiRecommendation(c *gin.Context) {
	details, err := s.services.Account().Details(c.Request.Context(), currentDriver(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if details.Record == nil {
		s.fail(c, service.ErrRecordNotFound)
		return
	}
	c.JSON(http.StatusOK, recommend.Build(*details, s.now()))
}

func (s *Server) apiPremium(c *gin.Context) {
	id, err := strconv.ParseInt(currentDriver(c), 10, 64)
	if err != nil {
		s.fail(c, service.ErrRecordNotFound)
		return
	}
	q, err := s.services.Premium().Quote(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": q, "savings": q.Savings()})
}

func (s *Server) apiSelectPlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	d, err := s.services.Account().SelectPlan(c.Request.Context(), currentDriver(c), req.Plan, s.opts.LockMonths)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver": d, "note": recommend.EnrollmentNote(*d.SelectedPlan)})
}

func (s *Server) apiPremiumSummary(c *gin.Context) {
	summary, err := s.services.Premium().Summary(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
