package assignment_test

import (
	"testing"
	"time"

	"dairysense/internal/domain/assignment"
)

func d(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type idOnly int

func (i idOnly) CandidateID() int { return int(i) }

// TestHasConflict covers the overlap rule for bounded and open-ended intervals.
func TestHasConflict(t *testing.T) {
	existing := []assignment.Assignment{
		{ID: 1, AnimalID: 10, DeviceID: 100, StartDate: d("2024-01-01"), EndDate: d("2024-01-10")},
		{ID: 2, AnimalID: 20, DeviceID: 200, StartDate: d("2024-02-01")},
	}

	tests := []struct {
		name     string
		proposed assignment.ProposedInterval
		want     bool
	}{
		{
			name:     "no start date never conflicts",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal},
			want:     false,
		},
		{
			name:     "bounded overlap",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal, StartDate: d("2024-01-05"), EndDate: d("2024-01-15")},
			want:     true,
		},
		{
			name:     "touching end boundary conflicts",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal, StartDate: d("2024-01-10"), EndDate: d("2024-01-20")},
			want:     true,
		},
		{
			name:     "touching start boundary conflicts",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal, StartDate: d("2023-12-20"), EndDate: d("2024-01-01")},
			want:     true,
		},
		{
			name:     "day after end is free",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal, StartDate: d("2024-01-11"), EndDate: d("2024-01-20")},
			want:     false,
		},
		{
			name:     "entirely before is free",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal, StartDate: d("2023-12-01"), EndDate: d("2023-12-31")},
			want:     false,
		},
		{
			name:     "open-ended proposal starting before existing end",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal, StartDate: d("2023-12-01")},
			want:     true,
		},
		{
			name:     "open-ended proposal starting after existing end",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal, StartDate: d("2024-01-11")},
			want:     false,
		},
		{
			name:     "two open-ended intervals always overlap",
			proposed: assignment.ProposedInterval{ResourceID: 20, Kind: assignment.KindAnimal, StartDate: d("2030-01-01")},
			want:     true,
		},
		{
			name:     "proposal ending on open-ended start conflicts",
			proposed: assignment.ProposedInterval{ResourceID: 20, Kind: assignment.KindAnimal, StartDate: d("2024-01-01"), EndDate: d("2024-02-01")},
			want:     true,
		},
		{
			name:     "proposal ending before open-ended start is free",
			proposed: assignment.ProposedInterval{ResourceID: 20, Kind: assignment.KindAnimal, StartDate: d("2024-01-01"), EndDate: d("2024-01-31")},
			want:     false,
		},
		{
			name:     "device side uses device ids",
			proposed: assignment.ProposedInterval{ResourceID: 100, Kind: assignment.KindDevice, StartDate: d("2024-01-03"), EndDate: d("2024-01-04")},
			want:     true,
		},
		{
			name:     "animal id is not a device id",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindDevice, StartDate: d("2024-01-03"), EndDate: d("2024-01-04")},
			want:     false,
		},
		{
			name:     "editing an assignment never conflicts with itself",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal, StartDate: d("2024-01-02"), EndDate: d("2024-01-09"), ExcludeAssignmentID: 1},
			want:     false,
		},
		{
			name:     "excluding another id keeps the conflict",
			proposed: assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal, StartDate: d("2024-01-02"), EndDate: d("2024-01-09"), ExcludeAssignmentID: 2},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := assignment.HasConflict(tt.proposed, existing); got != tt.want {
				t.Errorf("HasConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestHasConflict_IgnoresTimeOfDay verifies comparisons happen at day granularity.
func TestHasConflict_IgnoresTimeOfDay(t *testing.T) {
	existing := []assignment.Assignment{
		{ID: 1, AnimalID: 10, StartDate: d("2024-01-01"), EndDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
	}
	p := assignment.ProposedInterval{
		ResourceID: 10,
		Kind:       assignment.KindAnimal,
		StartDate:  time.Date(2024, 1, 10, 18, 45, 0, 0, time.UTC),
		EndDate:    d("2024-01-12"),
	}
	if !assignment.HasConflict(p, existing) {
		t.Error("expected same-day handoff to conflict regardless of time of day")
	}
}

// TestHasConflict_Deterministic verifies repeated calls agree and do not mutate input.
func TestHasConflict_Deterministic(t *testing.T) {
	existing := []assignment.Assignment{
		{ID: 1, AnimalID: 10, StartDate: d("2024-01-01"), EndDate: d("2024-01-10")},
	}
	snapshot := append([]assignment.Assignment(nil), existing...)
	p := assignment.ProposedInterval{ResourceID: 10, Kind: assignment.KindAnimal, StartDate: d("2024-01-05")}

	first := assignment.HasConflict(p, existing)
	for i := 0; i < 10; i++ {
		if assignment.HasConflict(p, existing) != first {
			t.Fatal("HasConflict is not deterministic")
		}
	}
	if existing[0] != snapshot[0] {
		t.Error("existing assignments were mutated")
	}
}

// TestFilterAvailable verifies filtering is the complement of HasConflict.
func TestFilterAvailable(t *testing.T) {
	existing := []assignment.Assignment{
		{ID: 1, AnimalID: 1, DeviceID: 100, StartDate: d("2024-03-01"), EndDate: d("2024-03-31")},
		{ID: 2, AnimalID: 3, DeviceID: 101, StartDate: d("2024-01-01")},
	}
	animals := []idOnly{1, 2, 3, 4}

	t.Run("no start date returns everything", func(t *testing.T) {
		got := assignment.FilterAvailable(animals, assignment.KindAnimal, assignment.ProposedInterval{}, existing)
		if len(got) != len(animals) {
			t.Errorf("got %d candidates, want %d", len(got), len(animals))
		}
	})

	t.Run("excludes busy animals and preserves order", func(t *testing.T) {
		p := assignment.ProposedInterval{StartDate: d("2024-03-15"), EndDate: d("2024-03-20")}
		got := assignment.FilterAvailable(animals, assignment.KindAnimal, p, existing)
		want := []idOnly{2, 4}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("complement of HasConflict", func(t *testing.T) {
		p := assignment.ProposedInterval{StartDate: d("2024-03-31")}
		got := assignment.FilterAvailable(animals, assignment.KindAnimal, p, existing)
		kept := map[idOnly]bool{}
		for _, c := range got {
			kept[c] = true
		}
		for _, c := range animals {
			q := p
			q.ResourceID = int(c)
			q.Kind = assignment.KindAnimal
			if assignment.HasConflict(q, existing) == kept[c] {
				t.Errorf("candidate %d: kept=%v but HasConflict=%v", c, kept[c], !kept[c])
			}
		}
	})

	t.Run("editing keeps the current device available", func(t *testing.T) {
		devices := []idOnly{100, 101, 102}
		p := assignment.ProposedInterval{StartDate: d("2024-03-10"), EndDate: d("2024-03-12"), ExcludeAssignmentID: 1}
		got := assignment.FilterAvailable(devices, assignment.KindDevice, p, existing)
		want := []idOnly{100, 102}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

// TestConflicts returns the offending assignments.
func TestConflicts(t *testing.T) {
	existing := []assignment.Assignment{
		{ID: 1, AnimalID: 1, StartDate: d("2024-01-01"), EndDate: d("2024-01-05")},
		{ID: 2, AnimalID: 1, StartDate: d("2024-01-10")},
		{ID: 3, AnimalID: 2, StartDate: d("2024-01-01")},
	}
	p := assignment.ProposedInterval{ResourceID: 1, Kind: assignment.KindAnimal, StartDate: d("2024-01-04")}
	got := assignment.Conflicts(p, existing)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("Conflicts() = %+v, want ids 1 and 2", got)
	}
	if assignment.Conflicts(assignment.ProposedInterval{ResourceID: 1}, existing) != nil {
		t.Error("Conflicts() without start date should be nil")
	}
}

// TestInput_Validate tests form validation.
func TestInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      assignment.Input
		wantErr error
	}{
		{"valid open-ended", assignment.Input{AnimalID: 1, DeviceID: 2, StartDate: d("2024-01-01")}, nil},
		{"valid same day", assignment.Input{AnimalID: 1, DeviceID: 2, StartDate: d("2024-01-01"), EndDate: d("2024-01-01")}, nil},
		{"missing animal", assignment.Input{DeviceID: 2, StartDate: d("2024-01-01")}, assignment.ErrAnimalRequired},
		{"missing device", assignment.Input{AnimalID: 1, StartDate: d("2024-01-01")}, assignment.ErrDeviceRequired},
		{"missing start", assignment.Input{AnimalID: 1, DeviceID: 2}, assignment.ErrStartRequired},
		{"end before start", assignment.Input{AnimalID: 1, DeviceID: 2, StartDate: d("2024-01-02"), EndDate: d("2024-01-01")}, assignment.ErrEndBeforeStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.in.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestAssignment_ActiveOn tests date coverage.
func TestAssignment_ActiveOn(t *testing.T) {
	bounded := assignment.Assignment{StartDate: d("2024-01-01"), EndDate: d("2024-01-03")}
	open := assignment.Assignment{StartDate: d("2024-01-01")}

	if !bounded.ActiveOn(d("2024-01-03")) {
		t.Error("bounded should be active on its end date")
	}
	if bounded.ActiveOn(d("2024-01-04")) {
		t.Error("bounded should not be active after its end date")
	}
	if open.ActiveOn(d("2023-12-31")) {
		t.Error("open should not be active before its start date")
	}
	if !open.ActiveOn(d("2099-01-01")) {
		t.Error("open should be active indefinitely")
	}
}

func TestFindOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		existing []assignment.Assignment
		want     []assignment.ResourceKind
	}{
		{
			name: "clean history",
			existing: []assignment.Assignment{
				{ID: 1, AnimalID: 10, DeviceID: 100, StartDate: d("2024-01-01"), EndDate: d("2024-01-10")},
				{ID: 2, AnimalID: 10, DeviceID: 100, StartDate: d("2024-01-11")},
			},
		},
		{
			name: "same animal twice",
			existing: []assignment.Assignment{
				{ID: 1, AnimalID: 10, DeviceID: 100, StartDate: d("2024-01-01")},
				{ID: 2, AnimalID: 10, DeviceID: 200, StartDate: d("2024-03-01"), EndDate: d("2024-03-05")},
			},
			want: []assignment.ResourceKind{assignment.KindAnimal},
		},
		{
			name: "same pair on a shared day",
			existing: []assignment.Assignment{
				{ID: 1, AnimalID: 10, DeviceID: 100, StartDate: d("2024-01-01"), EndDate: d("2024-01-10")},
				{ID: 2, AnimalID: 10, DeviceID: 100, StartDate: d("2024-01-10")},
			},
			want: []assignment.ResourceKind{assignment.KindAnimal, assignment.KindDevice},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assignment.FindOverlaps(tt.existing)
			if len(got) != len(tt.want) {
				t.Fatalf("overlaps = %+v, want kinds %v", got, tt.want)
			}
			for i, o := range got {
				if o.Kind != tt.want[i] || o.First.ID != 1 || o.Second.ID != 2 {
					t.Errorf("overlap %d = %+v", i, o)
				}
			}
		})
	}
}
