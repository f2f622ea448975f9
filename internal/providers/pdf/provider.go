package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// Provider renders usage documents. Rendering is pure: the caller assembles
// every value, numbers and timestamps already formatted.
type Provider interface {
	GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error)
}

var Module = fx.Module("pdf.provider",
	fx.Provide(New),
)
