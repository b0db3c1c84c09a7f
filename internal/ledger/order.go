package ledger

import "github.com/Santi4567/Akima-sub001/internal/models"

// orderRank orders the forward lifecycle. cancelled sits outside it.
var orderRank = map[string]int{
	models.OrderStatusPending:    0,
	models.OrderStatusProcessing: 1,
	models.OrderStatusShipped:    2,
	models.OrderStatusCompleted:  3,
}

// CheckOrderTransition validates a status change requested through the
// status endpoint. Cancellation has its own rules, see CheckCancel.
func CheckOrderTransition(current, target string) error {
	targetRank, ok := orderRank[target]
	if !ok {
		return ErrInvalidStatus.With("status", target)
	}

	switch current {
	case models.OrderStatusCompleted:
		return ErrImmutableStatus
	case models.OrderStatusCancelled:
		return ErrOrderCancelled
	}

	currentRank, ok := orderRank[current]
	if !ok {
		return ErrInvalidStatus.With("status", current)
	}
	if target == current {
		return ErrSameStatus.With("status", current)
	}
	if targetRank < currentRank {
		return ErrBackwardTransition.With("from", current).With("to", target)
	}

	return nil
}

// RecordsProcessor reports whether the transition assigns the acting user as
// the order's warehouse handler.
func RecordsProcessor(current, target string) bool {
	return current == models.OrderStatusPending && target == models.OrderStatusProcessing
}

func CheckCancel(current string) error {
	switch current {
	case models.OrderStatusPending, models.OrderStatusProcessing:
		return nil
	case models.OrderStatusCancelled:
		return ErrOrderCancelled
	default:
		return ErrCancelNotAllowed.With("status", current)
	}
}

func CheckItemsEditable(status string) error {
	if status != models.OrderStatusPending {
		return ErrOrderNotEditable.With("status", status)
	}
	return nil
}
