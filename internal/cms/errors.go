package cms

import "errors"

// Data-shape errors.
var (
	ErrUnrecognizedVariant = errors.New("unrecognized object variant")
	ErrInvalidSystemName   = errors.New("invalid system name")
	ErrDuplicatePathKey    = errors.New("duplicate path key")
)

// Policy violations.
var (
	ErrIncompatibleTypeChange = errors.New("cannot change object type with update")
	ErrInvalidLayoutArgument  = errors.New("specified layout for new pages is not a layout")
	ErrNoResolvableAncestor   = errors.New("no parent section with a known id")
	ErrUnknownPath            = errors.New("path does not match any local object")
)

// Builtin guards. ErrCannotDeleteBuiltin is also what remote implementations
// unwrap to when the service rejects deletion of a built-in object.
var (
	ErrCannotDeleteBuiltin = errors.New("built-in resources can't be deleted")
	ErrCannotCreateBuiltin = errors.New("built-in resources can't be created")
)
