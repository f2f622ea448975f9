package domain

import (
	"context"
)

type Service interface {
	// CheckPlanLimits reports current-month usage against the user's plan
	// caps. The check is advisory: nothing is reserved or locked between the
	// verdict and whatever action a caller gates on it.
	CheckPlanLimits(ctx context.Context, userID string) (CheckResult, error)
}
