package models

import (
	"errors"
	"testing"
)

func TestFeedingSchedule_Sorted(t *testing.T) {
	in := FeedingSchedule{
		{ID: 1, Hour: 18, Minute: 0},
		{ID: 2, Hour: 8, Minute: 30},
		{ID: 3, Hour: 8, Minute: 5},
		{ID: 4, Hour: 12, Minute: 0},
	}
	got := in.Sorted()

	wantIDs := []uint64{3, 2, 4, 1}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("position %d: got id %d, want %d (%+v)", i, got[i].ID, id, got)
		}
	}
	if in[0].ID != 1 {
		t.Fatalf("Sorted must not reorder the receiver, got %+v", in)
	}
}

func TestFeedingSchedule_Validate(t *testing.T) {
	cases := []struct {
		name    string
		in      FeedingSchedule
		wantErr bool
	}{
		{"empty", nil, false},
		{"bounds_ok", FeedingSchedule{{Hour: 0, Minute: 0, Portion: 0}, {Hour: 23, Minute: 59, Portion: 10}}, false},
		{"hour_high", FeedingSchedule{{Hour: 24}}, true},
		{"minute_negative", FeedingSchedule{{Minute: -1}}, true},
		{"portion_high", FeedingSchedule{{Portion: 11}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr != (err != nil) {
				t.Fatalf("Validate() err=%v, wantErr=%v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSlot) {
				t.Fatalf("expected ErrInvalidSlot, got %v", err)
			}
		})
	}
}

func TestLogStore_CloneIsDeep(t *testing.T) {
	s := LogStore{"loki": {{Time: 1, Message: "a"}}}
	c := s.Clone()
	c["loki"][0].Message = "changed"
	c["gatito"] = nil

	if s["loki"][0].Message != "a" {
		t.Fatalf("clone shares entries with original")
	}
	if _, ok := s["gatito"]; ok {
		t.Fatalf("clone shares map with original")
	}
}
