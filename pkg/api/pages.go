package api

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"telematics/pkg/models"
	"telematics/pkg/recommend"
	"telematics/service"
)

var templateFuncs = template.FuncMap{
	"f1":  func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"f2":  func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct": func(v float64) string { return fmt.Sprintf("%.0f", v*100) },
	"optInt": func(v *int) string {
		if v == nil {
			return "N/A"
		}
		return fmt.Sprint(*v)
	},
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"planName": func(p models.Plan) string { return p.DisplayName() },
	"dict": func(kv ...any) (map[string]any, error) {
		if len(kv)%2 != 0 {
			return nil, errors.New("dict needs key/value pairs")
		}
		m := make(map[string]any, len(kv)/2)
		for i := 0; i < len(kv); i += 2 {
			k, ok := kv[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict key %v is not a string", kv[i])
			}
			m[k] = kv[i+1]
		}
		return m, nil
	},
}

func (s *Server) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["Authenticated"]; !ok {
		data["Authenticated"] = currentDriver(c) != ""
	}
	c.HTML(status, name, data)
}

func (s *Server) loginPage(c *gin.Context) {
	if _, err := s.sessionDriver(c); err == nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	s.render(c, http.StatusOK, "login.html", gin.H{"Registered": c.Query("registered")})
}

func (s *Server) loginSubmit(c *gin.Context) {
	number := strings.TrimSpace(c.PostForm("license_number"))
	password := c.PostForm("password")
	if number == "" || password == "" {
		s.render(c, http.StatusBadRequest, "login.html", gin.H{"Warning": "Please fill in all fields.", "LicenseNumber": number})
		return
	}
	d, err := s.services.Account().Authenticate(c.Request.Context(), number, password)
	if err != nil {
		status, _ := classify(err)
		msg := "Invalid credentials. Please try again."
		if !errors.Is(err, service.ErrInvalidCredentials) {
			msg = userMessage(status, err)
		}
		s.render(c, status, "login.html", gin.H{"Error": msg, "LicenseNumber": number})
		return
	}
	token, _, err := s.issueToken(d.DriverID)
	if err != nil {
		s.render(c, http.StatusInternalServerError, "login.html", gin.H{"Error": "internal server error"})
		return
	}
	s.setSession(c, token)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (s *Server) registerPage(c *gin.Context) {
	s.render(c, http.StatusOK, "register.html", nil)
}

func (s *Server) registerSubmit(c *gin.Context) {
	plate := strings.TrimSpace(c.PostForm("license_plate"))
	number := strings.TrimSpace(c.PostForm("license_number"))
	password := c.PostForm("password")
	confirm := c.PostForm("confirm_password")
	form := gin.H{"LicensePlate": plate, "LicenseNumber": number}

	if plate == "" || number == "" || password == "" || confirm == "" {
		form["Warning"] = "Please fill in all fields."
		s.render(c, http.StatusBadRequest, "register.html", form)
		return
	}
	if password != confirm {
		form["Error"] = "Passwords do not match!"
		s.render(c, http.StatusBadRequest, "register.html", form)
		return
	}
	driverID, err := s.services.Account().Register(c.Request.Context(), plate, number, password)
	if err != nil {
		status, _ := classify(err)
		form["Error"] = "Registration failed: " + userMessage(status, err)
		s.render(c, status, "register.html", form)
		return
	}
	c.Redirect(http.StatusSeeOther, "/login?registered="+url.QueryEscape(driverID))
}

func (s *Server) logout(c *gin.Context) {
	s.clearSession(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (s *Server) driverView(c *gin.Context) (recommend.View, bool) {
	details, err := s.services.Account().Details(c.Request.Context(), currentDriver(c))
	if errors.Is(err, service.ErrDriverNotFound) {
		s.clearSession(c)
		c.Redirect(http.StatusFound, "/login")
		return recommend.View{}, false
	}
	if err != nil {
		status, _ := classify(err)
		s.render(c, status, "error.html", gin.H{"Error": "Error loading driver details"})
		return recommend.View{}, false
	}
	return recommend.Build(*details, s.now()), true
}

func (s *Server) dashboardPage(c *gin.Context) {
	view, ok := s.driverView(c)
	if !ok {
		return
	}
	s.render(c, http.StatusOK, "dashboard.html", gin.H{"View": view})
}

func (s *Server) recommendationsPage(c *gin.Context) {
	view, ok := s.driverView(c)
	if !ok {
		return
	}
	data := gin.H{"View": view, "Plans": models.Plans}
	if p, err := models.ParsePlan(c.Query("selected")); err == nil {
		data["Selected"] = p.DisplayName()
		data["Note"] = recommend.EnrollmentNote(p)
	}
	s.render(c, http.StatusOK, "recommendations.html", data)
}

func (s *Server) selectPlanSubmit(c *gin.Context) {
	d, err := s.services.Account().SelectPlan(c.Request.Context(), currentDriver(c), c.PostForm("plan"), s.opts.LockMonths)
	if err != nil {
		view, ok := s.driverView(c)
		if !ok {
			return
		}
		status, _ := classify(err)
		s.render(c, status, "recommendations.html", gin.H{
			"View":  view,
			"Plans": models.Plans,
			"Error": userMessage(status, err),
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/recommendations?selected="+url.QueryEscape(string(*d.SelectedPlan)))
}
