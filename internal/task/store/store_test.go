package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"taskclock/internal/storage"
	"taskclock/internal/task"
	logx "taskclock/pkg/logx"
)

func mk(id string, due int64) task.Task {
	return task.Task{ID: task.ID(id), Title: "t-" + id, Description: "d-" + id, DueDate: due, Priority: task.PriorityMedium}
}

func seed(s *Store, tasks []task.Task) error {
	return s.Mutate(func([]task.Task) ([]task.Task, error) { return tasks, nil })
}

func ids(tasks []task.Task) []task.ID {
	out := make([]task.ID, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	s := New(backend, logx.Nop())

	start := int64(5_000)
	running := mk("b", 2_000)
	running.TimerRunning = true
	running.ElapsedTime = 1_500
	running.StartTime = &start
	done := mk("c", 3_000)
	done.Completed = true
	done.Priority = task.PriorityHigh

	want := []task.Task{mk("a", 1_000), running, done}
	if err := seed(s, want); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := New(backend, logx.Nop()).Load(ctx)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Load = %+v\nwant %+v", got, want)
	}
}

func TestLoadFailsSoft(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "garbage", raw: "{not json"},
		{name: "wrong shape", raw: `{"title":"x"}`},
		{name: "null", raw: "null"},
		{name: "blank", raw: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemory()
			_ = backend.Put(ctx, Key, []byte(tt.raw))
			got := New(backend, logx.Nop()).Load(ctx)
			if len(got) != 0 {
				t.Fatalf("Load = %+v, want empty", got)
			}
		})
	}

	// Absent key.
	if got := New(storage.NewMemory(), logx.Nop()).Load(ctx); len(got) != 0 {
		t.Fatalf("Load(absent) = %+v, want empty", got)
	}
}

func TestLoadAssignsMissingAndDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	raw := `[{"title":"a","description":"x","dueDate":1,"priority":"low","completed":false,"timerRunning":false,"elapsedTime":0},
	{"id":"dup","title":"b","description":"x","dueDate":2,"priority":"low"},
	{"id":"dup","title":"c","description":"x","dueDate":3,"priority":"low"}]`
	_ = backend.Put(ctx, Key, []byte(raw))

	got := New(backend, logx.Nop()).Load(ctx)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	seen := map[task.ID]bool{}
	for _, tk := range got {
		if tk.ID == "" || seen[tk.ID] {
			t.Fatalf("bad id %q in %+v", tk.ID, got)
		}
		seen[tk.ID] = true
	}
}

func appendSorted(tk task.Task) func([]task.Task) ([]task.Task, error) {
	return func(cur []task.Task) ([]task.Task, error) {
		i := 0
		for i < len(cur) && cur[i].DueDate <= tk.DueDate {
			i++
		}
		return append(cur[:i], append([]task.Task{tk}, cur[i:]...)...), nil
	}
}

func TestMutateAndRemove(t *testing.T) {
	s := New(nil, logx.Nop())
	for _, tk := range []task.Task{mk("c", 30), mk("a", 10), mk("b", 20), mk("b2", 20)} {
		if err := s.Mutate(appendSorted(tk)); err != nil {
			t.Fatalf("Mutate(%s): %v", tk.ID, err)
		}
	}
	if got, want := ids(s.List()), []task.ID{"a", "b", "b2", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if err := s.Mutate(appendSorted(mk("a", 5))); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate insert err = %v, want ErrDuplicate", err)
	}
	if got := s.Len(); got != 4 {
		t.Fatalf("Len after rejected Mutate = %d, want 4", got)
	}
	boom := errors.New("boom")
	if err := s.Mutate(func([]task.Task) ([]task.Task, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("Mutate err = %v, want boom", err)
	}

	removed, err := s.Remove("b")
	if err != nil || removed.ID != "b" {
		t.Fatalf("Remove = %+v, %v", removed, err)
	}
	// Index must follow the shift.
	if pos, ok := s.Position("c"); !ok || pos != 2 {
		t.Fatalf("Position(c) = %d,%v, want 2,true", pos, ok)
	}
	if _, err := s.Remove("b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Remove err = %v, want ErrNotFound", err)
	}
}

func TestToggleCompletedByID(t *testing.T) {
	s := New(nil, logx.Nop())
	_ = seed(s, []task.Task{mk("a", 1), mk("b", 2)})

	got, err := s.ToggleCompleted("b")
	if err != nil || !got.Completed {
		t.Fatalf("ToggleCompleted = %+v, %v", got, err)
	}
	got, _ = s.ToggleCompleted("b")
	if got.Completed {
		t.Fatal("second toggle did not clear Completed")
	}
	if _, err := s.ToggleCompleted("zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestUpdateKeepsIDAndRollsBackOnError(t *testing.T) {
	s := New(nil, logx.Nop())
	_ = seed(s, []task.Task{mk("a", 1)})

	boom := errors.New("boom")
	_, err := s.Update("a", func(t *task.Task) error {
		t.Title = "changed"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update err = %v", err)
	}
	if got, _ := s.Get("a"); got.Title != "t-a" {
		t.Fatalf("Title = %q after failed update", got.Title)
	}

	got, err := s.Update("a", func(t *task.Task) error {
		t.ID = "hijack"
		t.Title = "changed"
		return nil
	})
	if err != nil || got.ID != "a" || got.Title != "changed" {
		t.Fatalf("Update = %+v, %v", got, err)
	}
}

func TestListReturnsCopies(t *testing.T) {
	s := New(nil, logx.Nop())
	start := int64(1)
	tk := mk("a", 1)
	tk.StartTime = &start
	_ = seed(s, []task.Task{tk})

	list := s.List()
	list[0].Title = "mutated"
	*list[0].StartTime = 99

	got, _ := s.Get("a")
	if got.Title != "t-a" || *got.StartTime != 1 {
		t.Fatalf("store mutated through List(): %+v", got)
	}
}

func TestSearch(t *testing.T) {
	s := New(nil, logx.Nop())
	a := mk("a", 1)
	a.Title = "Buy Milk"
	b := mk("b", 2)
	b.Description = "call the MILKMAN"
	c := mk("c", 3)
	_ = seed(s, []task.Task{a, b, c})

	if got, want := ids(s.Search("milk")), []task.ID{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Search(milk) = %v, want %v", got, want)
	}
	if got := s.Search(""); len(got) != 3 {
		t.Fatalf("Search(\"\") len = %d, want 3", len(got))
	}
	if got := s.Search("nothing"); len(got) != 0 {
		t.Fatalf("Search(nothing) = %v, want empty", ids(got))
	}
}

func TestMutateKeepsConcurrentUpdates(t *testing.T) {
	s := New(nil, logx.Nop())
	_ = seed(s, []task.Task{mk("run", 0)})

	const ticks, inserts = 200, 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < ticks; i++ {
			_, _ = s.Update("run", func(t *task.Task) error {
				t.ElapsedTime++
				return nil
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < inserts; i++ {
			_ = s.Mutate(appendSorted(mk(fmt.Sprintf("n%d", i), int64(i+1))))
		}
	}()
	wg.Wait()

	got, err := s.Get("run")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ElapsedTime != ticks {
		t.Fatalf("ElapsedTime = %d, want %d", got.ElapsedTime, ticks)
	}
	if s.Len() != inserts+1 {
		t.Fatalf("Len = %d, want %d", s.Len(), inserts+1)
	}
}
