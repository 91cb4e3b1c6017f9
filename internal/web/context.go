package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/CRM/internal/core"
)

// ImportIDHeader lets a client choose the import ID so a retried request
// stamps the same ID on its records.
const ImportIDHeader = "X-Import-ID"

// importContext tags the request context with the client's import ID.
// Without the header the service generates one.
func importContext(r *http.Request) context.Context {
	ctx := r.Context()
	if id := strings.TrimSpace(r.Header.Get(ImportIDHeader)); id != "" {
		ctx = core.ContextWithImportID(ctx, id)
	}
	return ctx
}
