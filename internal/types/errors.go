package types

import "errors"

// Sentinel errors for opbuilder operations.
var (
	// ErrPayloadTooLarge indicates the event payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

	// ErrMalformedEvent indicates the event tree is not a JSON-shaped document.
	// Fatal: it is never turned into a failed Result.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrPathTooDeep indicates a field path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrFieldNotFound indicates a field path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrLookup indicates a definitions provider has no value for a name.
	ErrLookup = errors.New("definition lookup failed")

	// ErrUnknownHelper indicates the helper name is not registered.
	ErrUnknownHelper = errors.New("unknown helper")

	// ErrInvalidTargetPath indicates the target field path is empty or malformed.
	ErrInvalidTargetPath = errors.New("invalid target field path")

	// ErrArity indicates the argument count is outside the helper's bounds.
	ErrArity = errors.New("wrong number of arguments")

	// ErrInvalidReference indicates a $reference argument cannot be parsed.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrUndefinedDefinition indicates a referenced definition cannot be resolved.
	ErrUndefinedDefinition = errors.New("undefined definition")

	// ErrTypeMismatch indicates an argument cannot be coerced to the helper's type.
	ErrTypeMismatch = errors.New("argument type mismatch")

	// ErrInvalidArgument indicates an argument is well-typed but unusable
	// (bad pattern, bad CIDR, unknown keyword, reference where a literal is required).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidAsset indicates an asset document fails schema or syntax validation.
	ErrInvalidAsset = errors.New("invalid asset")

	// ErrBatchTooLarge indicates an evaluation request exceeds the configured batch size.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")

	// ErrDefinitionSetNotFound indicates a named definition set is not stored.
	ErrDefinitionSetNotFound = errors.New("definition set not found")
)
