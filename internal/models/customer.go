package models

import "time"

type Customer struct {
	CustomerID     int64
	Surname        string
	Geography      string
	Gender         string
	Age            float64
	IsActiveMember bool
	Exited         bool
}

type GeographyRate struct {
	Geography string  `json:"geography"`
	Rate      float64 `json:"rate"`
	Customers int     `json:"customers"`
}

// ExitShare is one row of a normalized value count of Exited within a group.
type ExitShare struct {
	Group  string  `json:"group"`
	Exited bool    `json:"exited"`
	Share  float64 `json:"share"`
	Count  int     `json:"count"`
}

type RGB [3]uint8

type Card struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Color RGB    `json:"color"`
}

type Summary struct {
	TotalExited      int         `json:"total_exited"`
	FemaleExitRate   float64     `json:"female_exit_rate"`
	InactiveExitRate float64     `json:"inactive_exit_rate"`
	Cards            []Card      `json:"cards"`
	GenderExits      []ExitShare `json:"gender_exits"`
	ActivityExits    []ExitShare `json:"activity_exits"`
	Records          int64       `json:"records"`
	SampleSize       int         `json:"sample_size"`
	LoadedAt         time.Time   `json:"loaded_at"`
}

// Selection holds the raw dropdown values; empty or "All" means no filter.
type Selection struct {
	Gender   string `json:"gender"`
	Activity string `json:"activity"`
	Age      string `json:"age"`
}

type FilterOptions struct {
	Genders   []string `json:"genders"`
	Activity  []string `json:"activity"`
	AgeGroups []string `json:"age_groups"`
}
