// Package authorization maps directory roles onto object/action permissions.
// Role truth lives in the user directory; this package only answers whether a
// role may perform an action.
package authorization

import (
	"context"
	"errors"
)

const (
	ObjectUsageAggregate = "usage_aggregate"
	ObjectAPIKeys        = "api_keys"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// ErrPermissionDenied is returned when the role holds no matching policy.
var ErrPermissionDenied = errors.New("permission_denied")

type Service interface {
	Authorize(ctx context.Context, role, object, action string) error
}
