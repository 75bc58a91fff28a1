package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	ColCustomerID = "CustomerId"
	ColSurname    = "Surname"
	ColGeography  = "Geography"
	ColGender     = "Gender"
	ColAge        = "Age"
	ColActive     = "IsActiveMember"
	ColExited     = "Exited"
)

// RequiredColumns must be present in every dataset.
var RequiredColumns = []string{ColGeography, ColGender, ColAge, ColActive, ColExited}

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrNoRecords     = errors.New("no valid records found")
)

var columnTypes = map[string]series.Type{
	ColCustomerID: series.Int,
	ColSurname:    series.String,
	ColGeography:  series.String,
	ColGender:     series.String,
	ColAge:        series.Float,
	ColActive:     series.Int,
	ColExited:     series.Int,
}

// LoadStats describes what happened while reading a CSV file.
type LoadStats struct {
	Rows    int
	Dropped int
}

func Load(ctx context.Context, path string) (*Frame, LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	if err := ctx.Err(); err != nil {
		return nil, LoadStats{}, err
	}

	df := dataframe.ReadCSV(file, dataframe.WithTypes(columnTypes))
	if df.Err != nil {
		return nil, LoadStats{}, fmt.Errorf("read csv: %w", df.Err)
	}

	if err := ctx.Err(); err != nil {
		return nil, LoadStats{}, err
	}

	return fromDataFrame(df)
}

func fromDataFrame(df dataframe.DataFrame) (*Frame, LoadStats, error) {
	names := df.Names()
	for _, col := range RequiredColumns {
		if !slices.Contains(names, col) {
			return nil, LoadStats{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	keep := validRows(df)
	stats := LoadStats{Rows: len(keep), Dropped: df.Nrow() - len(keep)}
	if len(keep) == 0 {
		return nil, stats, ErrNoRecords
	}

	if stats.Dropped > 0 {
		df = df.Subset(keep)
		if df.Err != nil {
			return nil, stats, fmt.Errorf("drop invalid rows: %w", df.Err)
		}
	}

	return &Frame{df: df}, stats, nil
}

// validRows returns the indexes of rows with every required column set
// and boolean columns holding 0 or 1.
func validRows(df dataframe.DataFrame) []int {
	n := df.Nrow()
	geography, gender := df.Col(ColGeography), df.Col(ColGender)
	geographyVals, genderVals := geography.Records(), gender.Records()
	geographyNaN, genderNaN := geography.IsNaN(), gender.IsNaN()
	ageNaN := df.Col(ColAge).IsNaN()
	active := df.Col(ColActive)
	exited := df.Col(ColExited)
	activeNaN, exitedNaN := active.IsNaN(), exited.IsNaN()
	activeVals, exitedVals := active.Float(), exited.Float()

	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		switch {
		case strings.TrimSpace(geographyVals[i]) == "", strings.TrimSpace(genderVals[i]) == "":
			continue
		case geographyNaN[i], genderNaN[i], ageNaN[i], activeNaN[i], exitedNaN[i]:
			continue
		case !isFlag(activeVals[i]), !isFlag(exitedVals[i]):
			continue
		}
		keep = append(keep, i)
	}
	return keep
}

func isFlag(v float64) bool {
	return v == 0 || v == 1
}
