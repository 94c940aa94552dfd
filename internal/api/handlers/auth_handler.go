// server/internal/api/handlers/auth_handler.go
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"vital-route-api-server/internal/api/middleware"
	"vital-route-api-server/internal/auth"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/s3"
	"vital-route-api-server/internal/store"
)

const maxPhotoBytes = 5 << 20

// PhotoUploader stores a profile photo and returns its URL.
type PhotoUploader interface {
	UploadFile(ctx context.Context, file io.Reader, objectKey, contentType string) (string, error)
}

type AuthHandler struct {
	Users    store.UserStore
	Tokens   *auth.Manager
	Uploader PhotoUploader // nil when S3 is not configured
}

type SignUpForm struct {
	Email       string `form:"email" binding:"required,email"`
	Password    string `form:"password" binding:"required,min=6"`
	Name        string `form:"name" binding:"required"`
	Mobile      string `form:"mobile" binding:"required"`
	NumberPlate string `form:"numberPlate"`
	Area        string `form:"area" binding:"required"`
	Role        string `form:"role" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	Route string      `json:"route"`
	User  models.User `json:"user"`
}

// SignUp creates a profile from a multipart form with an optional "photo" file.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var form SignUpForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, err := models.ParseRole(form.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if role.IsDriver() && strings.TrimSpace(form.NumberPlate) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vehicle number plate is required for drivers"})
		return
	}

	user := models.User{
		Email:       strings.ToLower(strings.TrimSpace(form.Email)),
		Name:        strings.TrimSpace(form.Name),
		Role:        role,
		Mobile:      form.Mobile,
		NumberPlate: strings.ToUpper(strings.TrimSpace(form.NumberPlate)),
		Area:        form.Area,
	}

	photoURL, err := h.uploadPhoto(c)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Image upload failed"})
		return
	}
	user.PhotoURL = photoURL

	user.Password, err = auth.HashPassword(form.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Users.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
			return
		}
		respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *AuthHandler) uploadPhoto(c *gin.Context) (string, error) {
	fh, err := c.FormFile("photo")
	if err != nil {
		// no photo attached
		return "", nil
	}
	if h.Uploader == nil {
		log.Warn("signup photo skipped: uploader not configured")
		return "", nil
	}
	if fh.Size > maxPhotoBytes {
		return "", errors.New("photo too large")
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	url, err := h.Uploader.UploadFile(c.Request.Context(), f, s3.ProfilePhotoKey(fh.Filename), fh.Header.Get("Content-Type"))
	if err != nil {
		log.WithError(err).Error("profile photo upload failed")
		return "", err
	}
	return url, nil
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Users.GetUserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		respondError(c, err)
		return
	}
	if !auth.CheckPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, code int, user models.User) {
	route, err := user.Role.HomeRoute()
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unknown role. Please contact support."})
		return
	}
	token, err := h.Tokens.GenerateJWT(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(code, authResponse{Token: token, Route: route, User: user})
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.Users.GetUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
