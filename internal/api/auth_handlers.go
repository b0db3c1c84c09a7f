package api

import (
	"time"

	"github.com/Santi4567/Akima-sub001/internal/apperr"
	"github.com/Santi4567/Akima-sub001/internal/auth"
	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/gin-gonic/gin"
)

var errBadCredentials = apperr.Unauthorized("CREDENCIALES_INVALIDAS", "Correo o contraseña incorrectos")

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	user, err := store.GetUserByEmail(c.Request.Context(), s.db, req.Email)
	if err == database.ErrUserNotFound {
		s.fail(c, errBadCredentials)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	match, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !match {
		s.fail(c, errBadCredentials)
		return
	}
	if !user.Active {
		s.fail(c, errInactiveUser)
		return
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, loginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (s *Server) me(c *gin.Context) {
	user := currentUser(c)

	permissions := s.perms.Snapshot()[user.Role]
	if permissions == nil {
		permissions = []string{}
	}

	ok(c, gin.H{"user": user, "permissions": permissions})
}
