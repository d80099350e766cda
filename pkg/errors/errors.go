// Package errors defines the error taxonomy shared by every partition
// management component. It has no internal dependencies so that any
// package in this module can import it without risking an import cycle.
package errors

import "fmt"

// ErrorCode classifies the outcome of a partition-management operation.
type ErrorCode int

const (
	// CodeUnknown is the zero value and should never be constructed directly.
	CodeUnknown ErrorCode = iota
	// CodeTransient indicates the caller should retry with back-off.
	CodeTransient
	// CodeLeaseLost indicates another host now owns the lease; stop immediately.
	CodeLeaseLost
	// CodeObserverFailed indicates the user observer callback failed.
	CodeObserverFailed
	// CodeSplit indicates the partition has been replaced by child partitions.
	CodeSplit
	// CodeFatal indicates the host must abort.
	CodeFatal
	// CodeNotFound indicates a read-by-id miss.
	CodeNotFound
	// CodeAlreadyExists indicates a conditional-create conflict.
	CodeAlreadyExists
	// CodeInvalidConfiguration indicates configuration construction failed validation.
	CodeInvalidConfiguration
	// CodeCancelled indicates the caller's context was cancelled.
	CodeCancelled
)

func (c ErrorCode) String() string {
	switch c {
	case CodeTransient:
		return "Transient"
	case CodeLeaseLost:
		return "LeaseLost"
	case CodeObserverFailed:
		return "ObserverFailed"
	case CodeSplit:
		return "Split"
	case CodeFatal:
		return "Fatal"
	case CodeNotFound:
		return "NotFound"
	case CodeAlreadyExists:
		return "AlreadyExists"
	case CodeInvalidConfiguration:
		return "InvalidConfiguration"
	case CodeCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ProcessorError is the carrier type for every taxonomy member. PartitionID
// is optional: host-level errors (e.g. InvalidConfiguration) leave it empty.
type ProcessorError struct {
	Code        ErrorCode
	Message     string
	PartitionID string
	cause       error
}

func (e *ProcessorError) Error() string {
	if e.PartitionID != "" {
		return fmt.Sprintf("%s: partition %s: %s", e.Code, e.PartitionID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessorError) Unwrap() error {
	return e.cause
}

// Is allows errors.Is(err, ErrLeaseLost) style comparisons against the
// sentinel values below by comparing codes rather than identity.
func (e *ProcessorError) Is(target error) bool {
	sentinel, ok := target.(*ProcessorError)
	if !ok {
		return false
	}
	return e.Code == sentinel.Code
}

// Sentinel values for errors.Is comparisons. Construct partition/message
// specific errors with the New* helpers; compare against these with
// errors.Is(err, errors.ErrLeaseLost).
var (
	ErrTransient            = &ProcessorError{Code: CodeTransient}
	ErrLeaseLost            = &ProcessorError{Code: CodeLeaseLost}
	ErrObserverFailed       = &ProcessorError{Code: CodeObserverFailed}
	ErrSplit                = &ProcessorError{Code: CodeSplit}
	ErrFatal                = &ProcessorError{Code: CodeFatal}
	ErrNotFound             = &ProcessorError{Code: CodeNotFound}
	ErrAlreadyExists        = &ProcessorError{Code: CodeAlreadyExists}
	ErrInvalidConfiguration = &ProcessorError{Code: CodeInvalidConfiguration}
	ErrCancelled            = &ProcessorError{Code: CodeCancelled}
)

// New constructs a ProcessorError of the given code wrapping cause, scoped
// to partitionID (pass "" for host-level errors).
func New(code ErrorCode, partitionID, message string, cause error) *ProcessorError {
	return &ProcessorError{Code: code, Message: message, PartitionID: partitionID, cause: cause}
}

// NewTransientError wraps a transient failure for the given partition.
func NewTransientError(partitionID, message string, cause error) *ProcessorError {
	return New(CodeTransient, partitionID, message, cause)
}

// NewLeaseLostError reports that ownership of partitionID moved elsewhere.
func NewLeaseLostError(partitionID, message string) *ProcessorError {
	return New(CodeLeaseLost, partitionID, message, nil)
}

// NewObserverFailedError wraps an observer callback failure.
func NewObserverFailedError(partitionID string, cause error) *ProcessorError {
	return New(CodeObserverFailed, partitionID, "observer callback failed", cause)
}

// NewSplitError reports that partitionID was replaced by children.
func NewSplitError(partitionID string) *ProcessorError {
	return New(CodeSplit, partitionID, "partition split", nil)
}

// NewFatalError wraps an unrecoverable host-level failure.
func NewFatalError(partitionID, message string, cause error) *ProcessorError {
	return New(CodeFatal, partitionID, message, cause)
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(partitionID, message string) *ProcessorError {
	return New(CodeNotFound, partitionID, message, nil)
}

// NewAlreadyExistsError reports a conditional-create conflict.
func NewAlreadyExistsError(partitionID string) *ProcessorError {
	return New(CodeAlreadyExists, partitionID, "already exists", nil)
}

// NewInvalidConfigurationError lists every failing field up front rather
// than failing on the first nullable-field misuse.
func NewInvalidConfigurationError(message string) *ProcessorError {
	return New(CodeInvalidConfiguration, "", message, nil)
}

// NewCancelledError reports that the caller's context was cancelled.
func NewCancelledError(partitionID string) *ProcessorError {
	return New(CodeCancelled, partitionID, "cancelled", nil)
}

// Code returns the ErrorCode carried by err, or CodeUnknown if err is not
// (or does not wrap) a *ProcessorError.
func Code(err error) ErrorCode {
	var pe *ProcessorError
	if ok := asProcessorError(err, &pe); ok {
		return pe.Code
	}
	return CodeUnknown
}

func asProcessorError(err error, target **ProcessorError) bool {
	for err != nil {
		if pe, ok := err.(*ProcessorError); ok {
			*target = pe
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
