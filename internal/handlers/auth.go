package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/rosterd/internal/auth"
	"github.com/charlesng35/rosterd/internal/models"
	"github.com/charlesng35/rosterd/pkg/errors"
	"github.com/charlesng35/rosterd/pkg/response"
)

// AuthHandler manages registration and authentication flows (register/login/logout/me).
type AuthHandler struct {
	credentials *iauth.CredentialStore
}

func NewAuthHandler(credentials *iauth.CredentialStore) *AuthHandler {
	return &AuthHandler{credentials: credentials}
}

// credentialsRequest accepts JSON or form-encoded username/password pairs.
type credentialsRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	ExpiresIn   int          `json:"expires_in"`
	User        userResponse `json:"user"`
}

func toUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, errors.NewBadRequest("invalid request payload"))
		return
	}

	user, err := h.credentials.Register(requestContext(c), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, toUserResponse(user))
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, errors.NewBadRequest("invalid request payload"))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		response.Error(c, errors.NewValidation("username and password are required"))
		return
	}

	user, token, err := h.credentials.Login(requestContext(c), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	expiresIn := int(time.Until(token.ExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	response.Success(c, http.StatusOK, loginResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   token.ExpiresAt,
		ExpiresIn:   expiresIn,
		User:        toUserResponse(user),
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.credentials.Lookup(requestContext(c), currentUsername(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(user))
}

// POST /api/auth/logout
//
// Tokens are stateless; clients discard them and they lapse at expiry.
func (h *AuthHandler) Logout(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"message": "logged out"})
}
