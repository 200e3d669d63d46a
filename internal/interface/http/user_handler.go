package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/lms-backend/internal/application"
	"github.com/oksasatya/lms-backend/internal/domain/entity"
	"github.com/oksasatya/lms-backend/pkg/response"
)

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type avatarRequest struct {
	PublicID string `json:"public_id" binding:"required"`
	URL      string `json:"url" binding:"required,url"`
}

func (a *avatarRequest) toEntity() *entity.Avatar {
	if a == nil {
		return nil
	}
	return &entity.Avatar{PublicID: a.PublicID, URL: a.URL}
}

type registerRequest struct {
	Name     string         `json:"name" binding:"required"`
	Email    string         `json:"email" binding:"required,emailpattern"`
	Password string         `json:"password" binding:"required,pwd"`
	Avatar   *avatarRequest `json:"avatar"`
}

type updateProfileRequest struct {
	Name            *string        `json:"name" binding:"omitempty,min=1"`
	Avatar          *avatarRequest `json:"avatar"`
	Password        *string        `json:"password" binding:"omitempty,pwd"`
	CurrentPassword string         `json:"current_password" binding:"required_with=Password"`
}

type enrollRequest struct {
	CourseID string `json:"courseId" binding:"required"`
}

// Register POST /api/v1/users
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	u, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Avatar:   req.Avatar.toEntity(),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusCreated, userapp.ProfileOf(u), "user registered", nil)
}

// GetProfile GET /api/v1/users/:id
func (h *UserHandler) GetProfile(c *gin.Context) {
	p, err := h.Svc.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, p, "profile", nil)
}

// UpdateProfile PATCH /api/v1/users/:id
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), c.Param("id"), userapp.UpdateProfileInput{
		Name:            req.Name,
		Avatar:          req.Avatar.toEntity(),
		Password:        req.Password,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, userapp.ProfileOf(u), "profile updated", nil)
}

// Enroll POST /api/v1/users/:id/enrollments
func (h *UserHandler) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	u, err := h.Svc.AddEnrollment(c.Request.Context(), c.Param("id"), req.CourseID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"user_id": u.ID, "course_id": req.CourseID}).Debug("enrollment recorded")
	}
	response.Success(c, http.StatusOK, userapp.ProfileOf(u), "enrolled", nil)
}
