package merchant

import "context"

// Progress stages reported while a search runs.
const (
	StageFetching  = "fetching"
	StageRendering = "rendering"
	StageCached    = "cached"
	StageDone      = "done"
	StageFailed    = "failed"
)

// Progress is one step of one merchant's part of a search.
type Progress struct {
	Merchant string
	Stage    string
}

// ProgressFunc receives progress events. It may be called from several
// goroutines at once.
type ProgressFunc func(Progress)

type progressKey struct{}

func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ReportProgress sends an event to the callback in ctx, if there is one.
func ReportProgress(ctx context.Context, merchant, stage string) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(Progress{Merchant: merchant, Stage: stage})
	}
}
