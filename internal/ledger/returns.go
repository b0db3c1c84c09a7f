package ledger

import "github.com/Santi4567/Akima-sub001/internal/models"

var returnRank = map[string]int{
	models.ReturnStatusPending:   0,
	models.ReturnStatusApproved:  1,
	models.ReturnStatusCompleted: 2,
}

func ValidInitialReturnStatus(status string) bool {
	_, ok := returnRank[status]
	return ok
}

func CheckReturnTransition(current, target string) error {
	if _, ok := returnRank[target]; !ok && target != models.ReturnStatusCancelled {
		return ErrInvalidStatus.With("status", target)
	}

	if current == models.ReturnStatusCancelled {
		return ErrReturnCancelled
	}
	if target == current {
		return ErrSameStatus.With("status", current)
	}
	if current == models.ReturnStatusCompleted {
		if target != models.ReturnStatusCancelled {
			return ErrReturnCompleted
		}
		return nil
	}
	if target == models.ReturnStatusCancelled {
		return nil
	}
	if returnRank[target] < returnRank[current] {
		return ErrBackwardTransition.With("from", current).With("to", target)
	}

	return nil
}

// CheckReturnQuantity enforces that non-cancelled returns never take back
// more units than the line originally carried.
func CheckReturnQuantity(orderItemID int64, ordered, alreadyReturned, requested int) error {
	if requested <= 0 {
		return ErrInvalidQuantity.With("order_item_id", orderItemID)
	}

	remaining := ordered - alreadyReturned
	if remaining < 0 {
		remaining = 0
	}
	if requested > remaining {
		return ErrQuantityExceeded.
			With("order_item_id", orderItemID).
			With("ordered", ordered).
			With("already_returned", alreadyReturned).
			With("requested", requested).
			With("remaining", remaining)
	}

	return nil
}

// StockDirection tells how a return status change moves inventory for
// item-based returns: +1 puts units back on the shelf, -1 takes them out
// again, 0 leaves stock alone.
func StockDirection(from, to string) int {
	switch {
	case to == models.ReturnStatusCompleted && from != models.ReturnStatusCompleted:
		return 1
	case from == models.ReturnStatusCompleted && to == models.ReturnStatusCancelled:
		return -1
	}
	return 0
}
