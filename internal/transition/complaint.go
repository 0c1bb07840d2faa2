package transition

import (
	"fmt"

	"supplylink/internal/apperror"
	"supplylink/internal/model"
)

// Complaint validates a complaint status transition for a staff role and
// returns the incident status mirrored onto the linked incident.
//
// SALES works a complaint: open -> in_progress -> resolved or escalated.
// MANAGER/OWNER may only resolve, from any non-resolved state. Escalation
// keeps the incident in_progress; there is no distinct escalated incident
// state.
func Complaint(current, target model.ComplaintStatus, role model.SupplierRole) (model.IncidentStatus, error) {
	switch role {
	case model.SupplierRoleSales:
		if err := salesComplaintTransition(current, target); err != nil {
			return "", err
		}
	case model.SupplierRoleManager, model.SupplierRoleOwner:
		if target != model.ComplaintStatusResolved {
			return "", apperror.New(apperror.InvalidTransition,
				"Manager/Owner can only change complaints to RESOLVED")
		}
		if current == model.ComplaintStatusResolved {
			return "", apperror.New(apperror.InvalidTransition, "complaint is already resolved")
		}
	default:
		return "", apperror.New(apperror.Forbidden, "you must be supplier staff to update complaint status")
	}

	return MirroredIncidentStatus(target), nil
}

func salesComplaintTransition(current, target model.ComplaintStatus) error {
	switch current {
	case model.ComplaintStatusOpen:
		if target != model.ComplaintStatusInProgress {
			return apperror.New(apperror.InvalidTransition,
				"Sales can only change OPEN complaints to IN_PROGRESS")
		}
	case model.ComplaintStatusInProgress:
		if target != model.ComplaintStatusResolved && target != model.ComplaintStatusEscalated {
			return apperror.New(apperror.InvalidTransition,
				"Sales can only change IN_PROGRESS complaints to RESOLVED or ESCALATED")
		}
	default:
		return apperror.New(apperror.InvalidTransition,
			fmt.Sprintf("Sales cannot change status from %s to %s", current, target))
	}
	return nil
}

// MirroredIncidentStatus maps a complaint status onto the linked incident's
// status
func MirroredIncidentStatus(status model.ComplaintStatus) model.IncidentStatus {
	switch status {
	case model.ComplaintStatusResolved:
		return model.IncidentStatusResolved
	case model.ComplaintStatusInProgress, model.ComplaintStatusEscalated:
		return model.IncidentStatusInProgress
	default:
		return model.IncidentStatusOpen
	}
}
