package api

import (
	"errors"
	"net/http"

	"github.com/Santi4567/Akima-sub001/internal/apperr"
	"github.com/Santi4567/Akima-sub001/internal/auth"
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/gin-gonic/gin"
)

var (
	errSelfDeactivation = apperr.Conflict("OPERACION_NO_PERMITIDA", "No puede desactivar su propio usuario")
	errUnknownRole      = apperr.NotFound("ROL_NO_ENCONTRADO", "Rol no encontrado")
	errLastPermAdmin    = apperr.Conflict("OPERACION_NO_PERMITIDA", "Al menos un rol debe conservar la administración de permisos")
	errReloadFailed     = apperr.New(http.StatusInternalServerError, "PERMISOS_NO_RECARGADOS", "No se pudo recargar el archivo de permisos")
)

type createUserRequest struct {
	Name     string `json:"name" binding:"required,max=150"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=admin vendedor almacen"`
}

type updateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=150"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin vendedor almacen"`
	Active   *bool   `json:"active"`
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}

	user, err := store.CreateUser(c.Request.Context(), s.db, store.UserInput{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	created(c, "Usuario creado", user)
}

func (s *Server) listUsers(c *gin.Context) {
	page, err := store.ListUsers(c.Request.Context(), s.db, pageQuery(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, page)
}

func (s *Server) getUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	user, err := store.GetUser(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, user)
}

func (s *Server) updateUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if req.Active != nil && !*req.Active && id == currentUser(c).ID {
		s.fail(c, errSelfDeactivation)
		return
	}

	upd := store.UserUpdate{
		Name:   req.Name,
		Email:  req.Email,
		Role:   req.Role,
		Active: req.Active,
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.fail(c, err)
			return
		}
		upd.PasswordHash = &hash
	}

	user, err := store.UpdateUser(c.Request.Context(), s.db, id, upd)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, user)
}

// deactivateUser backs DELETE /users/:id. Users are never removed because
// orders and payments keep pointing at them.
func (s *Server) deactivateUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	if id == currentUser(c).ID {
		s.fail(c, errSelfDeactivation)
		return
	}

	if err := store.DeactivateUser(c.Request.Context(), s.db, id); err != nil {
		s.fail(c, err)
		return
	}

	message(c, "Usuario desactivado")
}

type rolePermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

func (s *Server) listPermissions(c *gin.Context) {
	ok(c, s.perms.Snapshot())
}

func (s *Server) setRolePermissions(c *gin.Context) {
	var req rolePermissionsRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	role := c.Param("role")
	err := s.perms.SetRole(role, req.Permissions)
	switch {
	case errors.Is(err, auth.ErrUnknownRole):
		s.fail(c, errUnknownRole.With("role", role))
		return
	case errors.Is(err, auth.ErrNoPermissionAdmin):
		s.fail(c, errLastPermAdmin.With("permission", auth.PermPermissionsAdmin))
		return
	case errors.Is(err, auth.ErrUnknownPermission):
		s.fail(c, errInvalidValue.With("fields", []string{"permissions"}).With("reason", err.Error()))
		return
	case err != nil:
		s.fail(c, err)
		return
	}

	ok(c, gin.H{"role": role, "permissions": s.perms.Snapshot()[role]})
}

func (s *Server) reloadPermissions(c *gin.Context) {
	if err := s.perms.Reload(); err != nil {
		s.log.WithError(err).WithField("request_id", requestID(c)).Error("reload permissions")
		s.fail(c, errReloadFailed)
		return
	}

	ok(c, s.perms.Snapshot())
}
