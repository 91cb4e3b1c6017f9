package core

import "context"

type contextKey string

const ctxKeyImportID contextKey = "import_id"

// ContextWithImportID tags ctx with the ID of the running import so the
// commit boundary can stamp stored records with it.
func ContextWithImportID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyImportID, id)
}

// ImportIDFromContext returns the import ID set by ContextWithImportID.
func ImportIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyImportID).(string); ok {
		return v
	}
	return ""
}
