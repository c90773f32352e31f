// Package errs provides the standardized validation error types of the order
// tracking application. Domain constructors and adapters return these errors
// for malformed input so callers can classify them with errors.Is / errors.As.
//
// The package includes:
//   - ValueIsRequiredError: a mandatory value is missing
//   - ValueIsInvalidError: a value failed a domain check
//   - ValueIsOutOfRangeError: a value lies outside its allowed range
//   - ObjectNotFoundError: a lookup by identifier produced nothing
//   - VersionIsInvalidError: a record version does not follow its predecessor
//
// Each error type follows the same pattern:
//   - A sentinel error variable (e.g., ErrValueIsRequired)
//   - A struct type with fields for error details
//   - Constructor functions with and without cause
//   - Error() for formatting and Unwrap() returning the sentinel
package errs
