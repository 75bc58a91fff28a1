package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"churn-dashboard/internal/dataset"
	"churn-dashboard/internal/models"
)

const (
	OptionAll      = "All"
	OptionActive   = "Active"
	OptionInactive = "Inactive"
)

var (
	ErrInvalidAgeRange = errors.New("invalid age range")
	ErrInvalidActivity = errors.New("invalid activity")
)

var (
	genderOptions   = []string{"Male", "Female", OptionAll}
	activityOptions = []string{OptionActive, OptionInactive, OptionAll}
	ageGroupOptions = []string{"18-25", "25-45", "45-60", "60+", OptionAll}
)

// AgeRange is an inclusive age bucket. Open ranges have no upper bound.
type AgeRange struct {
	Min  float64
	Max  float64
	Open bool
}

func (r AgeRange) String() string {
	if r.Open {
		return fmt.Sprintf("%g+", r.Min)
	}
	return fmt.Sprintf("%g-%g", r.Min, r.Max)
}

// Filter is a validated Selection. Nil fields place no restriction.
type Filter struct {
	Gender string
	Active *bool
	Age    *AgeRange
}

func (f Filter) IsEmpty() bool {
	return f.Gender == "" && f.Active == nil && f.Age == nil
}

// Apply narrows the frame by successive masks: gender, then activity, then age.
func (f Filter) Apply(frame *dataset.Frame) *dataset.Frame {
	if f.Gender != "" {
		frame = frame.WhereEq(dataset.ColGender, f.Gender)
	}
	if f.Active != nil {
		frame = frame.WhereEq(dataset.ColActive, boolToInt(*f.Active))
	}
	if f.Age != nil {
		if f.Age.Open {
			frame = frame.WhereAtLeast(dataset.ColAge, f.Age.Min)
		} else {
			frame = frame.WhereRange(dataset.ColAge, f.Age.Min, f.Age.Max)
		}
	}
	return frame
}

// Describe renders the filter as a chart caption.
func (f Filter) Describe() string {
	if f.IsEmpty() {
		return "All customers"
	}

	parts := make([]string, 0, 3)
	if f.Gender != "" {
		parts = append(parts, f.Gender)
	}
	if f.Active != nil {
		if *f.Active {
			parts = append(parts, "active members")
		} else {
			parts = append(parts, "inactive members")
		}
	}
	if f.Age != nil {
		parts = append(parts, "aged "+f.Age.String())
	}
	return strings.Join(parts, ", ")
}

// ResolveFilter validates a raw selection. Empty values and "All" mean no
// filter on that dimension and never produce an error.
func ResolveFilter(sel models.Selection) (Filter, error) {
	var f Filter

	if gender := strings.TrimSpace(sel.Gender); !isAbsent(gender) {
		f.Gender = gender
	}

	switch activity := strings.TrimSpace(sel.Activity); {
	case isAbsent(activity):
	case strings.EqualFold(activity, OptionActive):
		active := true
		f.Active = &active
	case strings.EqualFold(activity, OptionInactive):
		active := false
		f.Active = &active
	default:
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidActivity, activity)
	}

	if age := strings.TrimSpace(sel.Age); !isAbsent(age) {
		r, err := ParseAgeRange(age)
		if err != nil {
			return Filter{}, err
		}
		f.Age = &r
	}

	return f, nil
}

// ParseAgeRange accepts "A-B" (inclusive on both ends) or "A+" (A and older).
func ParseAgeRange(s string) (AgeRange, error) {
	s = strings.TrimSpace(s)

	switch {
	case strings.Contains(s, "-"):
		lo, hi, _ := strings.Cut(s, "-")
		minAge, err := parseAge(lo)
		if err != nil {
			return AgeRange{}, fmt.Errorf("%w: %q: %v", ErrInvalidAgeRange, s, err)
		}
		maxAge, err := parseAge(hi)
		if err != nil {
			return AgeRange{}, fmt.Errorf("%w: %q: %v", ErrInvalidAgeRange, s, err)
		}
		if minAge > maxAge {
			return AgeRange{}, fmt.Errorf("%w: %q: lower bound above upper bound", ErrInvalidAgeRange, s)
		}
		return AgeRange{Min: float64(minAge), Max: float64(maxAge)}, nil

	case strings.Contains(s, "+"):
		minAge, err := parseAge(strings.Trim(s, "+"))
		if err != nil {
			return AgeRange{}, fmt.Errorf("%w: %q: %v", ErrInvalidAgeRange, s, err)
		}
		return AgeRange{Min: float64(minAge), Open: true}, nil
	}

	return AgeRange{}, fmt.Errorf("%w: %q: expected A-B or A+", ErrInvalidAgeRange, s)
}

func parseAge(s string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if age < 0 {
		return 0, fmt.Errorf("negative age %d", age)
	}
	return age, nil
}

func isAbsent(v string) bool {
	return v == "" || strings.EqualFold(v, OptionAll)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
