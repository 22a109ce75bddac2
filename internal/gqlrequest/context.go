package gqlrequest

import "context"

type analysisContextKey struct{}

// WithAnalysis stores the request analysis in ctx.
func WithAnalysis(ctx context.Context, a *Analysis) context.Context {
	return context.WithValue(ctx, analysisContextKey{}, a)
}

// AnalysisFromContext returns the request analysis, or nil.
func AnalysisFromContext(ctx context.Context) *Analysis {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(analysisContextKey{}).(*Analysis)
	return a
}
