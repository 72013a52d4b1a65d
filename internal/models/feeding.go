package models

import (
	"errors"
	"fmt"
	"sort"
)

// Slot bounds accepted by the feeder firmware.
const (
	MaxHour    = 23
	MaxMinute  = 59
	MaxPortion = 10

	DefaultSlotCount = 3
)

var ErrInvalidSlot = errors.New("invalid feeding slot")

// WireSlot is one schedule entry as the feeder sends and receives it. Hour and
// minute are UTC.
type WireSlot struct {
	Hour    int `json:"hour"`
	Minute  int `json:"minute"`
	Portion int `json:"portion"`
}

// FeedingSlot is a schedule entry in local wall-clock time. ID is assigned by the
// hub when the slot is created and never travels on the bus.
type FeedingSlot struct {
	ID      uint64 `json:"id"`
	Hour    int    `json:"hour"`
	Minute  int    `json:"minute"`
	Portion int    `json:"portion"`
}

// FeedingSchedule is an ordered list of slots.
type FeedingSchedule []FeedingSlot

// Validate checks every slot against the firmware bounds.
func (s FeedingSlot) Validate() error {
	switch {
	case s.Hour < 0 || s.Hour > MaxHour:
		return fmt.Errorf("%w: hour %d out of range [0,%d]", ErrInvalidSlot, s.Hour, MaxHour)
	case s.Minute < 0 || s.Minute > MaxMinute:
		return fmt.Errorf("%w: minute %d out of range [0,%d]", ErrInvalidSlot, s.Minute, MaxMinute)
	case s.Portion < 0 || s.Portion > MaxPortion:
		return fmt.Errorf("%w: portion %d out of range [0,%d]", ErrInvalidSlot, s.Portion, MaxPortion)
	}
	return nil
}

// Validate reports the first invalid slot, annotated with its position.
func (fs FeedingSchedule) Validate() error {
	for i, s := range fs {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}
	return nil
}

// Sorted returns a copy ordered by (hour, minute), earliest first. The sort is
// stable so slots sharing a time keep their relative order.
func (fs FeedingSchedule) Sorted() FeedingSchedule {
	out := fs.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Hour == out[j].Hour {
			return out[i].Minute < out[j].Minute
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

// Clone returns an independent copy; nil stays nil.
func (fs FeedingSchedule) Clone() FeedingSchedule {
	if fs == nil {
		return nil
	}
	out := make(FeedingSchedule, len(fs))
	copy(out, fs)
	return out
}
