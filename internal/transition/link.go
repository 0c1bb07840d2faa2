// Package transition holds the status state machines for links, orders and
// complaints as pure functions. Handlers apply the returned effects together
// with the status write inside one database transaction.
package transition

import (
	"fmt"

	"supplylink/internal/apperror"
	"supplylink/internal/model"
)

// LinkActor describes who is attempting a link transition
type LinkActor struct {
	// IsOwnerOrManager is true when the actor is OWNER or MANAGER of the
	// link's supplier.
	IsOwnerOrManager bool
	// IsLinkConsumer is true when the actor owns the link's consumer profile.
	IsLinkConsumer bool
}

// Link validates a link status transition for the given actor.
// Role failures map to Forbidden, bad source states to InvalidTransition,
// unknown targets to InvalidRequest.
func Link(current, target model.LinkStatus, actor LinkActor) error {
	switch target {
	case model.LinkStatusAccepted:
		if !actor.IsOwnerOrManager {
			return apperror.New(apperror.Forbidden, "only supplier Owner or Manager can accept a link")
		}
		if current != model.LinkStatusPending {
			return apperror.New(apperror.InvalidTransition,
				fmt.Sprintf("cannot accept link. Current status: %s", current))
		}

	case model.LinkStatusBlocked:
		if !actor.IsOwnerOrManager {
			return apperror.New(apperror.Forbidden, "only supplier Owner or Manager can block a link")
		}
		if current != model.LinkStatusPending {
			return apperror.New(apperror.InvalidTransition,
				fmt.Sprintf("cannot block link. Current status: %s", current))
		}

	case model.LinkStatusRemoved:
		// Supplier staff can remove from any state. The consumer can only
		// remove an accepted link.
		if actor.IsOwnerOrManager {
			return nil
		}
		if actor.IsLinkConsumer {
			if current != model.LinkStatusAccepted {
				return apperror.New(apperror.InvalidTransition,
					fmt.Sprintf("cannot remove link. Current status: %s", current))
			}
			return nil
		}
		return apperror.New(apperror.Forbidden,
			"you can only remove a link as supplier staff, or as the consumer of an accepted link")

	default:
		return apperror.New(apperror.InvalidRequest, fmt.Sprintf("invalid status: %s", target))
	}

	return nil
}
