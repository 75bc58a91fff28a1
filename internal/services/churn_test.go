package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churn-dashboard/internal/models"
)

const testCSV = `RowNumber,CustomerId,Surname,CreditScore,Geography,Gender,Age,Tenure,Balance,NumOfProducts,HasCrCard,IsActiveMember,EstimatedSalary,Exited
1,15634602,Hargrave,619,France,Female,25,2,0,1,1,1,101348.88,1
2,15647311,Hill,608,France,Male,30,1,83807.86,1,0,0,112542.58,0
3,15619304,Onio,502,Germany,Female,45,8,159660.8,3,1,0,113931.57,1
4,15701354,Boni,699,Germany,Male,60,1,0,2,0,1,93826.63,0
5,15737888,Mitchell,850,Spain,Female,62,2,125510.82,1,1,0,79084.1,1
6,15574012,Chu,645,Spain,Male,18,8,113755.78,2,1,1,149756.71,0
7,15592531,Bartlett,822,France,Male,45,7,0,2,1,1,10062.8,0
8,15656148,Obinna,376,Germany,Female,24,4,115046.74,4,1,1,119346.88,0
`

func testCustomers() []models.Customer {
	return []models.Customer{
		{CustomerID: 1, Geography: "France", Gender: "Female", Age: 25, IsActiveMember: true, Exited: true},
		{CustomerID: 2, Geography: "France", Gender: "Male", Age: 30, IsActiveMember: false, Exited: false},
		{CustomerID: 3, Geography: "Germany", Gender: "Female", Age: 45, IsActiveMember: false, Exited: true},
		{CustomerID: 4, Geography: "Germany", Gender: "Male", Age: 60, IsActiveMember: true, Exited: false},
		{CustomerID: 5, Geography: "Spain", Gender: "Female", Age: 62, IsActiveMember: false, Exited: true},
		{CustomerID: 6, Geography: "Spain", Gender: "Male", Age: 18, IsActiveMember: true, Exited: false},
		{CustomerID: 7, Geography: "France", Gender: "Male", Age: 45, IsActiveMember: true, Exited: false},
		{CustomerID: 8, Geography: "Germany", Gender: "Female", Age: 24, IsActiveMember: true, Exited: false},
	}
}

func newTestChurn(t *testing.T, opts ...Option) *Churn {
	t.Helper()
	c := NewChurn(opts...)
	require.NoError(t, c.SetData(testCustomers()))
	return c
}

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "churn.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestNewChurn(t *testing.T) {
	c := NewChurn()
	require.NotNil(t, c)
	assert.NotNil(t, c.summary)
	assert.NotNil(t, c.logger)
	assert.Equal(t, DefaultSampleSeed, c.seed)

	_, _, err := c.GeographyRates(context.Background(), models.Selection{})
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestChurn_Summary(t *testing.T) {
	c := newTestChurn(t)
	summary := c.Summary()

	assert.Equal(t, 3, summary.TotalExited)
	assert.EqualValues(t, 8, summary.Records)
	assert.Equal(t, 6, summary.SampleSize)
	assert.GreaterOrEqual(t, summary.FemaleExitRate, 0.75)
	assert.LessOrEqual(t, summary.FemaleExitRate, 1.0)
	assert.GreaterOrEqual(t, summary.InactiveExitRate, 2.0/3.0)
	assert.LessOrEqual(t, summary.InactiveExitRate, 1.0)

	require.Len(t, summary.Cards, 3)
	assert.Equal(t, models.Card{Title: "Total exited", Value: "3", Color: models.RGB{255, 49, 49}}, summary.Cards[0])
	assert.Equal(t, "Females who exited", summary.Cards[1].Title)
	assert.Equal(t, "Inactive members who exited", summary.Cards[2].Title)
	assert.Contains(t, summary.Cards[1].Value, "%")
}

func TestChurn_SummaryDeterministic(t *testing.T) {
	a := newTestChurn(t, WithSampleSeed(7))
	b := newTestChurn(t, WithSampleSeed(7))

	if diff := cmp.Diff(a.Summary(), b.Summary(), cmpopts.IgnoreFields(models.Summary{}, "LoadedAt")); diff != "" {
		t.Errorf("summaries differ for the same seed (-a +b):\n%s", diff)
	}
}

func TestChurn_ExitShares(t *testing.T) {
	c := newTestChurn(t)

	wantGender := []models.ExitShare{
		{Group: "Female", Exited: false, Share: 0.25, Count: 1},
		{Group: "Female", Exited: true, Share: 0.75, Count: 3},
		{Group: "Male", Exited: false, Share: 1, Count: 4},
	}
	if diff := cmp.Diff(wantGender, c.GenderExits(), approx); diff != "" {
		t.Errorf("gender exits mismatch (-want +got):\n%s", diff)
	}

	wantActivity := []models.ExitShare{
		{Group: "Inactive", Exited: false, Share: 1.0 / 3.0, Count: 1},
		{Group: "Inactive", Exited: true, Share: 2.0 / 3.0, Count: 2},
		{Group: "Active", Exited: false, Share: 0.8, Count: 4},
		{Group: "Active", Exited: true, Share: 0.2, Count: 1},
	}
	if diff := cmp.Diff(wantActivity, c.ActivityExits(), approx); diff != "" {
		t.Errorf("activity exits mismatch (-want +got):\n%s", diff)
	}
}

func TestChurn_GeographyRates(t *testing.T) {
	c := newTestChurn(t)

	tests := []struct {
		name string
		sel  models.Selection
		want []models.GeographyRate
	}{
		{
			name: "unfiltered",
			sel:  models.Selection{},
			want: []models.GeographyRate{
				{Geography: "France", Rate: 1.0 / 3.0, Customers: 3},
				{Geography: "Germany", Rate: 1.0 / 3.0, Customers: 3},
				{Geography: "Spain", Rate: 0.5, Customers: 2},
			},
		},
		{
			name: "all options behave like no filter",
			sel:  models.Selection{Gender: "All", Activity: "All", Age: "All"},
			want: []models.GeographyRate{
				{Geography: "France", Rate: 1.0 / 3.0, Customers: 3},
				{Geography: "Germany", Rate: 1.0 / 3.0, Customers: 3},
				{Geography: "Spain", Rate: 0.5, Customers: 2},
			},
		},
		{
			name: "female only",
			sel:  models.Selection{Gender: "Female"},
			want: []models.GeographyRate{
				{Geography: "France", Rate: 1, Customers: 1},
				{Geography: "Germany", Rate: 0.5, Customers: 2},
				{Geography: "Spain", Rate: 1, Customers: 1},
			},
		},
		{
			name: "inactive only",
			sel:  models.Selection{Activity: "Inactive"},
			want: []models.GeographyRate{
				{Geography: "France", Rate: 0, Customers: 1},
				{Geography: "Germany", Rate: 1, Customers: 1},
				{Geography: "Spain", Rate: 1, Customers: 1},
			},
		},
		{
			name: "closed age range includes both bounds",
			sel:  models.Selection{Age: "25-45"},
			want: []models.GeographyRate{
				{Geography: "France", Rate: 1.0 / 3.0, Customers: 3},
				{Geography: "Germany", Rate: 1, Customers: 1},
			},
		},
		{
			name: "open age range includes lower bound",
			sel:  models.Selection{Age: "60+"},
			want: []models.GeographyRate{
				{Geography: "Germany", Rate: 0, Customers: 1},
				{Geography: "Spain", Rate: 1, Customers: 1},
			},
		},
		{
			name: "all three filters",
			sel:  models.Selection{Gender: "Female", Activity: "Inactive", Age: "25-45"},
			want: []models.GeographyRate{
				{Geography: "Germany", Rate: 1, Customers: 1},
			},
		},
		{
			name: "unknown gender yields empty table",
			sel:  models.Selection{Gender: "Other"},
			want: []models.GeographyRate{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := c.GeographyRates(context.Background(), tt.sel)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, approx, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("GeographyRates(%+v) mismatch (-want +got):\n%s", tt.sel, diff)
			}
		})
	}
}

func TestChurn_GeographyRatesInvalidSelection(t *testing.T) {
	c := newTestChurn(t)

	_, _, err := c.GeographyRates(context.Background(), models.Selection{Age: "twenty-thirty"})
	assert.ErrorIs(t, err, ErrInvalidAgeRange)

	_, _, err = c.GeographyRates(context.Background(), models.Selection{Activity: "Sometimes"})
	assert.ErrorIs(t, err, ErrInvalidActivity)
}

func TestChurn_LoadFromCSV(t *testing.T) {
	path := createTempCSV(t, testCSV)
	c := NewChurn()

	require.NoError(t, c.LoadFromCSV(context.Background(), path))

	summary := c.Summary()
	assert.Equal(t, 3, summary.TotalExited)
	assert.EqualValues(t, 8, summary.Records)

	fromCSV, _, err := c.GeographyRates(context.Background(), models.Selection{})
	require.NoError(t, err)

	inMemory, _, err := newTestChurn(t).GeographyRates(context.Background(), models.Selection{})
	require.NoError(t, err)

	if diff := cmp.Diff(inMemory, fromCSV, approx); diff != "" {
		t.Errorf("csv and in-memory aggregates differ (-mem +csv):\n%s", diff)
	}
}

func TestChurn_LoadFromCSVErrors(t *testing.T) {
	c := NewChurn()

	err := c.LoadFromCSV(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	noExited := createTempCSV(t, "Geography,Gender,Age,IsActiveMember\nFrance,Female,30,1\n")
	err = c.LoadFromCSV(context.Background(), noExited)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Exited")
}

func TestChurn_Cache(t *testing.T) {
	path := createTempCSV(t, testCSV)
	cacheDir := t.TempDir()

	first := NewChurn(WithCache(cacheDir))
	require.NoError(t, first.LoadFromCSV(context.Background(), path))

	matches, err := filepath.Glob(filepath.Join(cacheDir, "*.gob.sz"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	second := NewChurn(WithCache(cacheDir))
	require.NoError(t, second.LoadFromCSV(context.Background(), path))

	assert.True(t, first.Summary().LoadedAt.Equal(second.Summary().LoadedAt), "second load should come from cache")
	if diff := cmp.Diff(first.Summary(), second.Summary(), cmpopts.IgnoreFields(models.Summary{}, "LoadedAt")); diff != "" {
		t.Errorf("cached summary differs (-first +second):\n%s", diff)
	}
}

func TestChurn_Reload(t *testing.T) {
	c := NewChurn()
	assert.ErrorIs(t, c.Reload(context.Background()), ErrNotLoaded)

	path := createTempCSV(t, testCSV)
	require.NoError(t, c.LoadFromCSV(context.Background(), path))

	extra := "9,15600000,Extra,700,Spain,Male,50,3,0,1,1,0,50000,1\n"
	require.NoError(t, os.WriteFile(path, []byte(testCSV+extra), 0644))
	require.NoError(t, c.Reload(context.Background()))

	assert.Equal(t, 4, c.Summary().TotalExited)
	assert.EqualValues(t, 1, c.Stats()["reloads"])
}

func TestChurn_Options(t *testing.T) {
	opts := NewChurn().Options()
	assert.Equal(t, []string{"Male", "Female", "All"}, opts.Genders)
	assert.Equal(t, []string{"Active", "Inactive", "All"}, opts.Activity)
	assert.Equal(t, []string{"18-25", "25-45", "45-60", "60+", "All"}, opts.AgeGroups)
}

func TestChurn_Stats(t *testing.T) {
	stats := newTestChurn(t).Stats()

	for _, key := range []string{"record_count", "loaded_at", "sample_size", "total_exited", "reloads"} {
		assert.Contains(t, stats, key)
	}
	assert.EqualValues(t, 8, stats["record_count"])
}
