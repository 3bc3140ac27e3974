package payments

import "errors"

var (
	// ErrMaintenanceMode means the provider is administratively disabled;
	// clients render a banner instead of a generic failure.
	ErrMaintenanceMode = errors.New("payment gateway under maintenance")
	// ErrGatewayTimeout covers provider timeouts and an open circuit breaker.
	ErrGatewayTimeout = errors.New("payment gateway timed out")
	// ErrCourseNotPurchasable means the course is unpublished or free.
	ErrCourseNotPurchasable = errors.New("course is not purchasable")
	// ErrAlreadyEnrolled means the user already owns the course.
	ErrAlreadyEnrolled = errors.New("course already purchased")
	// ErrNotFound means no transaction matches the given id.
	ErrNotFound = errors.New("transaction not found")
	// ErrInvalidTransition means the requested status change would move the
	// lifecycle backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrBadSignature means callback/webhook signature verification failed.
	ErrBadSignature = errors.New("invalid signature")
	// ErrReceiptUnavailable means the transaction is not in success state.
	ErrReceiptUnavailable = errors.New("receipt available only for successful payments")
	// ErrNotRefundable means the transaction is not in success state.
	ErrNotRefundable = errors.New("only successful payments can be refunded")
)
