package wire

// Status represents a reply status code from the device.
type Status uint8

const (
	// StatusOK indicates the command completed successfully.
	StatusOK Status = 0

	// StatusMalformed indicates the device could not parse the command.
	StatusMalformed Status = 1

	// StatusNotAuthorized indicates the session is not authenticated or
	// the credentials were rejected.
	StatusNotAuthorized Status = 2

	// StatusNotFound indicates no record matched the command target.
	StatusNotFound Status = 3

	// StatusDuplicate indicates a create was rejected because a record
	// with the same name already exists.
	StatusDuplicate Status = 4

	// StatusBusy indicates the device is temporarily unable to process
	// the command.
	StatusBusy Status = 5

	// StatusInternal indicates a device-side failure.
	StatusInternal Status = 6
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusMalformed:
		return "MALFORMED"
	case StatusNotAuthorized:
		return "NOT_AUTHORIZED"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusDuplicate:
		return "DUPLICATE"
	case StatusBusy:
		return "BUSY"
	case StatusInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusOK
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusOK
}
