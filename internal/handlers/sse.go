package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"churn-dashboard/internal/models"
	"churn-dashboard/internal/observability"
	"churn-dashboard/internal/services"
	"churn-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	churn  *services.Churn
	logger *slog.Logger
}

func NewSSEHandlers(churn *services.Churn, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		churn:  churn,
		logger: logger,
	}
}

func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	var buf strings.Builder
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HandleSummary patches the cards and both bar charts.
func (h *SSEHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)
	sse := datastar.NewSSE(w, r)

	summary := h.churn.Summary()
	html, err := renderComponent(r.Context(), templates.Cards(summary.Cards))
	if err != nil {
		logger.Error("render cards", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		logger.Error("patch cards", "error", err)
		return
	}

	signals, err := json.Marshal(map[string]any{
		"genderData":   summary.GenderExits,
		"activityData": summary.ActivityExits,
	})
	if err != nil {
		logger.Error("marshal exit shares", "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		logger.Error("patch exit shares", "error", err)
		return
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleGeography re-filters the dataset with the dropdown signals and
// patches the pie chart data. A bad selection only replaces the caption
// with an error; the previous chart stays on screen.
func (h *SSEHandlers) HandleGeography(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)

	var sel models.Selection
	readErr := datastar.ReadSignals(r, &sel)

	sse := datastar.NewSSE(w, r)
	defer func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}()

	if readErr != nil {
		logger.Warn("read filter signals", "error", readErr)
		h.patchCaption(r.Context(), sse, templates.GeographyError("Could not read filter selection"), logger)
		return
	}

	rates, filter, err := h.churn.GeographyRates(r.Context(), sel)
	if err != nil {
		logger.Warn("geography rates", "error", err, "gender", sel.Gender, "activity", sel.Activity, "age", sel.Age)
		h.patchCaption(r.Context(), sse, templates.GeographyError(appError(err).Message+": "+err.Error()), logger)
		return
	}

	signals, err := json.Marshal(map[string]any{"geographyData": rates})
	if err != nil {
		logger.Error("marshal geography rates", "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		logger.Error("patch geography rates", "error", err)
		return
	}

	caption := filter.Describe()
	if len(rates) == 0 {
		caption += " (no matching customers)"
	}
	h.patchCaption(r.Context(), sse, templates.GeographyCaption(caption), logger)
}

func (h *SSEHandlers) patchCaption(ctx context.Context, sse *datastar.ServerSentEventGenerator, c templ.Component, logger *slog.Logger) {
	html, err := renderComponent(ctx, c)
	if err != nil {
		logger.Error("render caption", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		logger.Error("patch caption", "error", err)
	}
}
