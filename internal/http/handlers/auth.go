package handlers

import (
	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/email"
	"shirly.shop/app/pkg/view"
)

type AuthHandler struct {
	Auth  *auth.Service
	Email *email.Service // optional
}

func NewAuthHandler(a *auth.Service, mail *email.Service) *AuthHandler {
	return &AuthHandler{Auth: a, Email: mail}
}

func authResult(r auth.LoginResult) view.AuthResult {
	return view.AuthResult{Token: r.Token, ExpiresAt: r.ExpiresAt, User: auth.ToView(r.User)}
}

// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req view.SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	u, err := h.Auth.Signup(ctx, auth.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.Auth.Login(ctx, u.Email, req.Password, c.Request.UserAgent())
	if err != nil {
		fail(c, err)
		return
	}
	if h.Email != nil {
		h.Email.Welcome(ctx, email.Recipient{Email: u.Email, Name: u.FirstName})
	}
	created(c, authResult(res))
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req view.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password, c.Request.UserAgent())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, authResult(res))
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Auth.Logout(c.Request.Context(), middleware.MustUser(c).SessionID); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	ok(c, auth.ToView(middleware.MustUser(c).User))
}

// PATCH /api/auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req view.ProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.Auth.UpdateProfile(c.Request.Context(), middleware.MustUser(c).User.ID, auth.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, auth.ToView(u))
}

// POST /api/auth/password revokes every other session of the user.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req view.PasswordChangeRequest
	if !bindJSON(c, &req) {
		return
	}
	id := middleware.MustUser(c)
	if err := h.Auth.ChangePassword(c.Request.Context(), id.User.ID, id.SessionID, req.CurrentPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}
