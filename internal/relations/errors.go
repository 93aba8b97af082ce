package relations

import "errors"

var (
	// ErrDuplicateInterest is returned when the same relation id is registered twice in pass 1
	ErrDuplicateInterest = errors.New("relation registered more than once")
	// ErrProtocol is returned when operations are called out of pass order
	ErrProtocol = errors.New("resolver used out of order")
)
