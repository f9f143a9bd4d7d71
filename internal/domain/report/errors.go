package report

import "errors"

var (
	ErrObservationNotFound  = errors.New("observation not found")
	ErrActionPlanNotFound   = errors.New("action plan not found")
	ErrReferenceNotFound    = errors.New("reference record not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrValidation           = errors.New("validation failed")
	ErrConfirmationRequired = errors.New("explicit confirmation required")
	ErrEditInProgress       = errors.New("another action plan is being edited")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidSort          = errors.New("invalid sort column")
	ErrInvalidFilter        = errors.New("invalid filter")

	ErrInvalidConsequence = errors.New("invalid consequence level")
	ErrInvalidLikelihood  = errors.New("invalid likelihood level")
	ErrInvalidSubject     = errors.New("invalid subject")
	ErrInvalidStatus      = errors.New("invalid status")
)
