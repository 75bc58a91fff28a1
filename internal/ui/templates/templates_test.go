package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churn-dashboard/internal/models"
)

func TestDashboard(t *testing.T) {
	var buf strings.Builder
	data := DashboardData{
		Cards: []models.Card{
			{Title: "Total exited", Value: "2037", Color: models.RGB{255, 49, 49}},
		},
		Options: models.FilterOptions{
			Genders:   []string{"Male", "Female", "All"},
			Activity:  []string{"Active", "Inactive", "All"},
			AgeGroups: []string{"18-25", "60+", "All"},
		},
	}

	require.NoError(t, Dashboard(data).Render(context.Background(), &buf))
	body := buf.String()

	for _, want := range []string{
		"<title>Bank Members Exited Dashboard</title>",
		`id="cards"`,
		"Total exited",
		"2037",
		"rgba(255, 49, 49, 0.6)",
		`id="dd_gender"`,
		`id="dd_activity"`,
		`id="dd_age"`,
		`<option value="60&#43;">60&#43;</option>`,
		`id="chart_geography"`,
		`id="geography-caption"`,
		"/sse/geography",
		"/sse/summary",
	} {
		assert.Contains(t, body, want)
	}
}

func TestCards_EscapesValues(t *testing.T) {
	var buf strings.Builder
	cards := []models.Card{{Title: "<b>x</b>", Value: "50%", Color: models.RGB{1, 2, 3}}}

	require.NoError(t, Cards(cards).Render(context.Background(), &buf))

	assert.True(t, strings.HasPrefix(buf.String(), `<div id="cards"`))
	assert.Contains(t, buf.String(), "&lt;b&gt;x&lt;/b&gt;")
	assert.Contains(t, buf.String(), "50%")
}

func TestGeographyCaption(t *testing.T) {
	var ok, failed strings.Builder
	require.NoError(t, GeographyCaption("Female, aged 60+").Render(context.Background(), &ok))
	require.NoError(t, GeographyError("invalid age range").Render(context.Background(), &failed))

	assert.Contains(t, ok.String(), "Female, aged 60&#43;")
	assert.NotContains(t, ok.String(), "caption-error")
	assert.Contains(t, failed.String(), "caption-error")
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf strings.Builder
	assert.ErrorIs(t, Cards(nil).Render(ctx, &buf), context.Canceled)
}
