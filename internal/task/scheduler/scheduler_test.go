package scheduler

import (
	"reflect"
	"sort"
	"testing"
	"time"

	"taskclock/internal/task"
)

func mk(id string, due int64) task.Task {
	return task.Task{ID: task.ID(id), Title: id, Description: id, DueDate: due, Priority: task.PriorityMedium}
}

func ids(tasks []task.Task) []task.ID {
	out := make([]task.ID, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestInsertRescheduleExample(t *testing.T) {
	t.Parallel()
	s := New(0)
	list, resA := s.Insert(nil, mk("A", 1_000_000))
	if resA.Rescheduled() {
		t.Fatal("first task rescheduled")
	}
	list, resB := s.Insert(list, mk("B", 1_001_000))
	if !resB.Rescheduled() {
		t.Fatal("B not rescheduled")
	}
	if resB.Task.DueDate != 4_600_000 {
		t.Fatalf("B.DueDate = %d, want 4600000", resB.Task.DueDate)
	}
	if resB.Conflict.With.ID != "A" || resB.Conflict.Original != 1_001_000 || resB.Conflict.Rescheduled != 4_600_000 {
		t.Fatalf("Conflict = %+v", resB.Conflict)
	}
	if got, want := ids(list), []task.ID{"A", "B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if list[1].DueDate != 4_600_000 {
		t.Fatalf("stored B.DueDate = %d, want 4600000", list[1].DueDate)
	}
}

func TestWindowBoundaries(t *testing.T) {
	t.Parallel()
	s := New(time.Hour)
	existing := []task.Task{mk("e", 10_000_000)}
	tests := []struct {
		name string
		due  int64
		want int64
	}{
		{name: "exactly at existing", due: 10_000_000, want: 13_600_000},
		{name: "last ms inside window", due: 13_599_999, want: 13_600_000},
		{name: "window end is free", due: 13_600_000, want: 13_600_000},
		{name: "before existing is free", due: 9_999_999, want: 9_999_999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, res := s.Insert(existing, mk("n", tt.due))
			if res.Task.DueDate != tt.want {
				t.Fatalf("DueDate = %d, want %d", res.Task.DueDate, tt.want)
			}
		})
	}
}

func TestNonConflictingInsertsStaySortedAndGrow(t *testing.T) {
	t.Parallel()
	s := New(0)
	hour := time.Hour.Milliseconds()
	var list []task.Task
	for i, due := range []int64{5 * hour, 1 * hour, 9 * hour, 3 * hour, 7 * hour} {
		prev := len(list)
		var res Result
		list, res = s.Insert(list, mk(string(rune('a'+i)), due))
		if res.Rescheduled() {
			t.Fatalf("unexpected reschedule of %d", due)
		}
		if len(list) != prev+1 {
			t.Fatalf("len = %d, want %d", len(list), prev+1)
		}
		if !sort.SliceIsSorted(list, func(i, j int) bool { return list[i].DueDate < list[j].DueDate }) {
			t.Fatalf("not sorted: %+v", list)
		}
	}
}

func TestFirstMatchInListOrderWins(t *testing.T) {
	t.Parallel()
	s := New(time.Hour)
	// Store order is not sorted here; the earlier entry (a at 0) matches first
	// even though b (at 30m) is nearer to the new due date.
	existing := []task.Task{mk("a", 0), mk("b", 30*60*1000)}
	_, res := s.Insert(existing, mk("n", 40*60*1000))
	if res.Conflict == nil || res.Conflict.With.ID != "a" {
		t.Fatalf("Conflict = %+v, want with a", res.Conflict)
	}
	if res.Task.DueDate != 60*60*1000 {
		t.Fatalf("DueDate = %d, want %d", res.Task.DueDate, 60*60*1000)
	}
}

func TestSinglePassLeavesSecondaryConflict(t *testing.T) {
	t.Parallel()
	s := New(time.Hour)
	hour := time.Hour.Milliseconds()
	existing := []task.Task{mk("a", 0), mk("b", hour)}
	_, res := s.Insert(existing, mk("n", 10))
	// Moved to a+1h, which collides with b; not re-checked.
	if res.Task.DueDate != hour {
		t.Fatalf("DueDate = %d, want %d", res.Task.DueDate, hour)
	}
	if _, again := s.FindConflict(existing, res.Task.DueDate); !again {
		t.Fatal("expected the rescheduled date to still collide with b")
	}
}

func TestInsertDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	s := New(0)
	existing := []task.Task{mk("b", 20), mk("a", 10)}
	snapshot := task.CloneAll(existing)
	out, _ := s.Insert(existing, mk("c", 5*time.Hour.Milliseconds()))
	if !reflect.DeepEqual(existing, snapshot) {
		t.Fatalf("input mutated: %+v", existing)
	}
	out[0].Title = "changed"
	if existing[0].Title == "changed" || existing[1].Title == "changed" {
		t.Fatal("output aliases input")
	}
}
