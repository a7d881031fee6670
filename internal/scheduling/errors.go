package scheduling

import "errors"

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrBookingContended is returned when another request holds the booking
	// lock for the same practitioner and time slot.
	ErrBookingContended = errors.New("time slot is currently being booked, please retry")
)

// ValidationError is a business-rule rejection. The reason is surfaced
// verbatim to the caller; it is a client error, never a system fault.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// InvalidRequestError marks a structurally malformed request, rejected
// before any repository access.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return e.Reason
}
