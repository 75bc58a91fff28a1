package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"churn-dashboard/internal/errors"
	"churn-dashboard/internal/models"
	"churn-dashboard/internal/observability"
	"churn-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=300"

type APIHandlers struct {
	churn  *services.Churn
	logger *slog.Logger
}

func NewAPIHandlers(churn *services.Churn, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		churn:  churn,
		logger: logger,
	}
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.churn.Summary(), map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleGenderExits(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.churn.GenderExits(), map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleActivityExits(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.churn.ActivityExits(), map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.churn.Options(), map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

type geographyResponse struct {
	Filter string                 `json:"filter"`
	Rates  []models.GeographyRate `json:"rates"`
}

// HandleGeography serves the pie chart table for ?gender=&activity=&age=.
func (h *APIHandlers) HandleGeography(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sel := models.Selection{
		Gender:   query.Get("gender"),
		Activity: query.Get("activity"),
		Age:      query.Get("age"),
	}

	rates, filter, err := h.churn.GeographyRates(r.Context(), sel)
	if err != nil {
		errors.WriteError(w, h.logger, appError(err), observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, geographyResponse{
		Filter: filter.Describe(),
		Rates:  rates,
	}, map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.churn.Stats())
}

// appError maps service errors onto the HTTP error taxonomy.
func appError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, services.ErrInvalidAgeRange), stderrors.Is(err, services.ErrInvalidActivity):
		return errors.ValidationWrap(err, "invalid filter selection")
	case stderrors.Is(err, services.ErrNotLoaded):
		return errors.ServiceUnavailableWrap(err, "dataset not loaded")
	default:
		return errors.InternalWrap(err, "failed to compute aggregate")
	}
}
