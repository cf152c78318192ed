package wire

// Operation identifies what a command does to the records at its path.
type Operation uint8

const (
	// OpAdd creates a new record.
	OpAdd Operation = 1

	// OpUpdate modifies an existing record.
	OpUpdate Operation = 2

	// OpEnable clears a record's disabled flag.
	OpEnable Operation = 3

	// OpDisable sets a record's disabled flag.
	OpDisable Operation = 4

	// OpQuery reads records matching the command attributes.
	OpQuery Operation = 5
)

// IsValid returns true for a known operation code.
func (o Operation) IsValid() bool {
	return o >= OpAdd && o <= OpQuery
}

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpEnable:
		return "enable"
	case OpDisable:
		return "disable"
	case OpQuery:
		return "query"
	default:
		return "unknown"
	}
}
