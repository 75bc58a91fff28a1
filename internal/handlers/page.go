package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"churn-dashboard/internal/observability"
	"churn-dashboard/internal/services"
	"churn-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

type PageHandlers struct {
	churn  *services.Churn
	logger *slog.Logger
}

func NewPageHandlers(churn *services.Churn, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		churn:  churn,
		logger: logger,
	}
}

// HandleDashboard renders the full page with the cards already filled in;
// charts are populated by the SSE endpoints once the page loads.
func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	page := templates.Dashboard(templates.DashboardData{
		Cards:   h.churn.Summary().Cards,
		Options: h.churn.Options(),
	})

	html, err := renderComponent(ctx, page)
	if err != nil {
		observability.LoggerFrom(r.Context(), h.logger).Error("render dashboard", "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(html))
}
