package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mssola/useragent"

	"libris/internal/activity"
	dErrors "libris/pkg/domainerrors"
	"libris/pkg/httputil"
	"libris/pkg/requestcontext"
)

const defaultActivityLimit = 50

type ActivityHandler struct {
	reader activity.Reader
	logger *slog.Logger
}

type clientSummary struct {
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browserVersion,omitempty"`
	OS             string `json:"os"`
	Mobile         bool   `json:"mobile"`
	Bot            bool   `json:"bot"`
}

// handleList serves GET /me/activity: the caller's own activity trail, newest
// first, with a parsed summary of the requesting client.
func (h *ActivityHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reader == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "activity history not available"))
		return
	}

	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be 1-500"))
			return
		}
		limit = n
	}

	userID := requestcontext.UserID(ctx)
	entries, err := h.reader.List(ctx, activity.UserDestination(userID), limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list activity failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"client":  summarizeClient(requestcontext.UserAgent(ctx)),
	})
}

func summarizeClient(rawUA string) clientSummary {
	if rawUA == "" {
		return clientSummary{Browser: activity.UnknownValue, OS: activity.UnknownValue}
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		name = activity.UnknownValue
	}
	os := ua.OS()
	if os == "" {
		os = activity.UnknownValue
	}
	return clientSummary{
		Browser:        name,
		BrowserVersion: version,
		OS:             os,
		Mobile:         ua.Mobile(),
		Bot:            ua.Bot(),
	}
}
