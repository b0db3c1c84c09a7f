package ledger

import "github.com/Santi4567/Akima-sub001/internal/apperr"

var (
	ErrInvalidStatus      = apperr.BadRequest("ESTADO_INVALIDO", "Estado no válido para esta operación")
	ErrImmutableStatus    = apperr.Conflict("ESTADO_INMUTABLE", "El pedido está completado y su estado ya no puede cambiar")
	ErrOrderCancelled     = apperr.Conflict("PEDIDO_CANCELADO", "El pedido está cancelado")
	ErrBackwardTransition = apperr.Conflict("RETROCESO_NO_PERMITIDO", "No se permite regresar a un estado anterior")
	ErrCancelNotAllowed   = apperr.Conflict("CANCELACION_NO_PERMITIDA", "Solo se pueden cancelar pedidos pendientes o en proceso; use una devolución")
	ErrSameStatus         = apperr.Conflict("ESTADO_SIN_CAMBIO", "El registro ya se encuentra en ese estado")
	ErrOrderNotEditable   = apperr.Conflict("PEDIDO_NO_EDITABLE", "Solo se pueden modificar los productos de pedidos pendientes")
	ErrOrderWithoutItems  = apperr.Conflict("PEDIDO_SIN_ITEMS", "Un pedido debe conservar al menos un producto")
	ErrItemHasReturns     = apperr.Conflict("ITEM_CON_DEVOLUCIONES", "El producto tiene devoluciones registradas")

	ErrInvalidAmount   = apperr.BadRequest("MONTO_INVALIDO", "El monto debe ser mayor a cero")
	ErrInvalidMethod   = apperr.BadRequest("VALOR_INVALIDO", "Método de pago no válido")
	ErrInvalidQuantity = apperr.BadRequest("CANTIDAD_INVALIDA", "La cantidad debe ser mayor a cero")
	ErrOverpayment     = apperr.Conflict("SOBREPAGO", "El monto excede el saldo pendiente del pedido")

	ErrReturnMode       = apperr.BadRequest("MODO_DEVOLUCION_INVALIDO", "Indique productos a devolver o un monto de reembolso, no ambos")
	ErrReturnCancelled  = apperr.Conflict("DEVOLUCION_YA_CANCELADA", "La devolución está cancelada")
	ErrReturnCompleted  = apperr.Conflict("DEVOLUCION_YA_COMPLETADA", "Una devolución completada solo puede cancelarse")
	ErrItemNotInOrder   = apperr.Conflict("ITEM_NO_PERTENECE", "El producto no pertenece al pedido")
	ErrQuantityExceeded = apperr.Conflict("CANTIDAD_EXCEDIDA", "La cantidad a devolver excede la cantidad disponible")
)
