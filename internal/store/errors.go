package store

import "github.com/Santi4567/Akima-sub001/internal/apperr"

var (
	ErrDuplicate      = apperr.Conflict("REGISTRO_DUPLICADO", "Ya existe un registro con ese valor")
	ErrCategoryInUse  = apperr.Conflict("CATEGORIA_CON_DEPENDENCIAS", "La categoría tiene productos asociados")
	ErrProductInUse   = apperr.Conflict("PRODUCTO_CON_DEPENDENCIAS", "El producto está referenciado por pedidos")
	ErrClientInUse    = apperr.Conflict("CLIENTE_CON_DEPENDENCIAS", "El cliente tiene pedidos o visitas registradas")
	ErrNothingToApply = apperr.BadRequest("SIN_CAMBIOS", "No se enviaron campos para actualizar")
)

type rowScanner interface {
	Scan(dest ...any) error
}
