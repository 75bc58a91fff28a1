package dataset

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"churn-dashboard/internal/models"
)

// Frame is an immutable view over the customer table. Every Where* call
// returns a new Frame, so masks can be chained without touching the parent.
type Frame struct {
	df dataframe.DataFrame
}

// GroupMean is the mean of a value column within one group.
type GroupMean struct {
	Key   string
	Mean  float64
	Count int
}

func FromCustomers(customers []models.Customer) *Frame {
	n := len(customers)
	ids := make([]int, n)
	surnames := make([]string, n)
	geographies := make([]string, n)
	genders := make([]string, n)
	ages := make([]float64, n)
	active := make([]int, n)
	exited := make([]int, n)

	for i, c := range customers {
		ids[i] = int(c.CustomerID)
		surnames[i] = c.Surname
		geographies[i] = c.Geography
		genders[i] = c.Gender
		ages[i] = c.Age
		active[i] = boolToInt(c.IsActiveMember)
		exited[i] = boolToInt(c.Exited)
	}

	return &Frame{df: dataframe.New(
		series.New(ids, series.Int, ColCustomerID),
		series.New(surnames, series.String, ColSurname),
		series.New(geographies, series.String, ColGeography),
		series.New(genders, series.String, ColGender),
		series.New(ages, series.Float, ColAge),
		series.New(active, series.Int, ColActive),
		series.New(exited, series.Int, ColExited),
	)}
}

func (f *Frame) Len() int {
	return f.df.Nrow()
}

// Err reports the first error raised by a chained operation.
func (f *Frame) Err() error {
	return f.df.Err
}

func (f *Frame) WhereEq(col string, value any) *Frame {
	return f.where(dataframe.F{Colname: col, Comparator: series.Eq, Comparando: value})
}

func (f *Frame) WhereAtLeast(col string, lo float64) *Frame {
	return f.where(dataframe.F{Colname: col, Comparator: series.GreaterEq, Comparando: lo})
}

// WhereRange keeps rows with lo <= col <= hi.
func (f *Frame) WhereRange(col string, lo, hi float64) *Frame {
	return f.WhereAtLeast(col, lo).where(dataframe.F{Colname: col, Comparator: series.LessEq, Comparando: hi})
}

func (f *Frame) where(filter dataframe.F) *Frame {
	if f.df.Err != nil || f.Len() == 0 {
		return f
	}
	return &Frame{df: f.df.Filter(filter)}
}

func (f *Frame) Subset(indexes []int) *Frame {
	return &Frame{df: f.df.Subset(indexes)}
}

func (f *Frame) Values(col string) []float64 {
	return f.df.Col(col).Float()
}

func (f *Frame) Sum(col string) float64 {
	var total float64
	for _, v := range f.Values(col) {
		total += v
	}
	return total
}

// Mean returns 0 for an empty frame.
func (f *Frame) Mean(col string) float64 {
	if f.Len() == 0 {
		return 0
	}
	return f.Sum(col) / float64(f.Len())
}

// MeanBy groups rows by groupCol and averages valueCol in each group.
// Groups are returned ordered by key.
func (f *Frame) MeanBy(groupCol, valueCol string) ([]GroupMean, error) {
	if f.Len() == 0 {
		return []GroupMean{}, nil
	}

	groups := f.df.GroupBy(groupCol)
	if groups.Err != nil {
		return nil, fmt.Errorf("group by %s: %w", groupCol, groups.Err)
	}

	aggregated := groups.Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_MEAN, dataframe.Aggregation_COUNT},
		[]string{valueCol, valueCol},
	)
	if aggregated.Err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", valueCol, aggregated.Err)
	}

	keys := aggregated.Col(groupCol).Records()
	means := aggregated.Col(aggregateName(valueCol, dataframe.Aggregation_MEAN)).Float()
	counts := aggregated.Col(aggregateName(valueCol, dataframe.Aggregation_COUNT)).Float()

	result := make([]GroupMean, len(keys))
	for i, key := range keys {
		result[i] = GroupMean{Key: key, Mean: means[i], Count: int(counts[i])}
	}
	slices.SortFunc(result, func(a, b GroupMean) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return result, nil
}

// BalancedSample keeps every exited row and an equal number of non-exited
// rows drawn without replacement. When fewer non-exited rows exist, all of
// them are used.
func (f *Frame) BalancedSample(rng *rand.Rand) *Frame {
	var exited, stayed []int
	for i, v := range f.Values(ColExited) {
		if v == 1 {
			exited = append(exited, i)
		} else {
			stayed = append(stayed, i)
		}
	}

	n := min(len(exited), len(stayed))
	indexes := make([]int, 0, n+len(exited))
	for _, p := range rng.Perm(len(stayed))[:n] {
		indexes = append(indexes, stayed[p])
	}
	indexes = append(indexes, exited...)
	return f.Subset(indexes)
}

func (f *Frame) Customers() []models.Customer {
	n := f.Len()
	if n == 0 {
		return []models.Customer{}
	}

	var ids []float64
	var surnames []string
	names := f.df.Names()
	if slices.Contains(names, ColCustomerID) {
		ids = f.Values(ColCustomerID)
	}
	if slices.Contains(names, ColSurname) {
		surnames = f.df.Col(ColSurname).Records()
	}
	geographies := f.df.Col(ColGeography).Records()
	genders := f.df.Col(ColGender).Records()
	ages := f.Values(ColAge)
	active := f.Values(ColActive)
	exited := f.Values(ColExited)

	customers := make([]models.Customer, n)
	for i := range customers {
		customers[i] = models.Customer{
			Geography:      geographies[i],
			Gender:         genders[i],
			Age:            ages[i],
			IsActiveMember: active[i] == 1,
			Exited:         exited[i] == 1,
		}
		if ids != nil {
			customers[i].CustomerID = int64(ids[i])
		}
		if surnames != nil {
			customers[i].Surname = surnames[i]
		}
	}
	return customers
}

func aggregateName(col string, typ dataframe.AggregationType) string {
	return fmt.Sprintf("%s_%s", col, typ)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
