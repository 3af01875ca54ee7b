package service

import (
	"context"
	"iter"
	"sort"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
)

// Finder selects tables for a party. Policy: best fit — the smallest seat
// count that still holds the party, then the lowest table number.
type Finder struct {
	store  domain.Store
	hours  *HoursService
	logger *zerolog.Logger
}

func NewFinder(store domain.Store, hours *HoursService, logger *zerolog.Logger) *Finder {
	return &Finder{store: store, hours: hours, logger: logger}
}

// candidates returns active tables that hold guests, in best-fit order.
func (f *Finder) candidates(guests int) []models.Table {
	var fits []models.Table
	for _, t := range f.store.GetTables() {
		if t.Seats >= guests {
			fits = append(fits, t)
		}
	}
	sort.Slice(fits, func(i, j int) bool {
		if fits[i].Seats != fits[j].Seats {
			return fits[i].Seats < fits[j].Seats
		}
		return fits[i].Number < fits[j].Number
	})
	return fits
}

// FindTableAt returns one table with capacity for guests and the single
// slot free, or ErrNoTable.
func (f *Finder) FindTableAt(ctx context.Context, guests int, slot time.Time) (*models.Table, error) {
	for _, t := range f.candidates(guests) {
		free, err := f.store.SlotFree(ctx, t.Number, slot)
		if err != nil {
			continue // unseeded cell, try the next table
		}
		if free {
			table := t
			return &table, nil
		}
	}
	return nil, database.ErrNoTable
}

// FindTableForWindow requires the same table free across the whole
// reservation window.
func (f *Finder) FindTableForWindow(ctx context.Context, guests int, start time.Time) (*models.Table, error) {
	freeNumbers, err := f.store.FreeTablesForWindow(ctx, start, models.ReservationSlots)
	if err != nil {
		return nil, err
	}

	free := make(map[int64]bool, len(freeNumbers))
	for _, n := range freeNumbers {
		free[n] = true
	}

	for _, t := range f.candidates(guests) {
		if free[t.Number] {
			table := t
			return &table, nil
		}
	}
	return nil, database.ErrNoTable
}

// StartTimes yields candidate start times on day, at or after notBefore,
// for which some table is free for the full window. The sequence is lazy
// and restartable: each range re-reads the grid.
func (f *Finder) StartTimes(ctx context.Context, day time.Time, guests int, notBefore time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		open, _, ok := f.hours.OpenCloseFor(day)
		if !ok {
			return
		}
		last, _ := f.hours.LastWindowStart(day)

		start := models.NextSlotStart(notBefore)
		if start.Before(open) {
			start = open
		}

		for t := start; !t.After(last); t = t.Add(models.SlotDuration) {
			if _, err := f.FindTableForWindow(ctx, guests, t); err != nil {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// AvailableStartTimes collects StartTimes for day from now onward.
func (f *Finder) AvailableStartTimes(ctx context.Context, guests int, day time.Time) ([]time.Time, error) {
	if guests <= 0 {
		return nil, ErrInvalidGuests
	}
	var times []time.Time
	for t := range f.StartTimes(ctx, day, guests, time.Now()) {
		times = append(times, t)
	}
	return times, nil
}
