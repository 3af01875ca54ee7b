package models

import "time"

type Table struct {
	Number    int64     `yaml:"number" json:"number"`
	Seats     int       `yaml:"seats" json:"seats"`
	IsActive  bool      `yaml:"is_active" json:"is_active"`
	CreatedAt time.Time `yaml:"-" json:"created_at"`
	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
}

// TableSlot is one cell of the availability grid: a 30-minute bucket
// for a single table. Free is mutated only through the conditional
// acquire / unconditional release pair on the store.
type TableSlot struct {
	TableNumber int64     `json:"table_number"`
	SlotTime    time.Time `json:"slot_time"`
	Free        bool      `json:"free"`
}

// OpeningHours holds the open and close times for one weekday as
// "HH:MM" strings. A zero value means closed.
type OpeningHours struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

func (h OpeningHours) Closed() bool {
	return h.Open == "" || h.Close == ""
}
