package analyzer

import (
	"context"
	"io"

	"golang.org/x/time/rate"

	"docrecon/pkg/models"
)

type rateLimited struct {
	next    Analyzer
	limiter *rate.Limiter
}

// RateLimited wraps an Analyzer so that at most perSecond calls (with the
// given burst) reach the remote collaborator. Waiting respects ctx.
func RateLimited(next Analyzer, perSecond float64, burst int) Analyzer {
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (r *rateLimited) Analyze(ctx context.Context, pdf io.Reader) (*models.AnalyzeResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, WrapAnalysisError("RateLimitWait", err, "")
	}
	return r.next.Analyze(ctx, pdf)
}
