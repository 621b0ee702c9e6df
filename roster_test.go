package team

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/everydev1618/goteam/llm"
)

func testEntry(t *testing.T, r *Roster, role string, client llm.Client) *RosterEntry {
	t.Helper()
	entry, err := r.Add(role, NewInstance(validTemplate(), client, nil), "testing")
	if err != nil {
		t.Fatal(err)
	}
	return entry
}

func TestRosterAddGetRemove(t *testing.T) {
	r := NewRoster()
	client := replyWith("ok")

	testEntry(t, r, "analyst", client)

	entry, err := r.Get("analyst")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Role != "analyst" || len(entry.Specialties) != 1 {
		t.Errorf("entry = %+v", entry)
	}

	if _, err := r.Get("nobody"); !errors.Is(err, ErrRoleNotFound) {
		t.Errorf("err = %v", err)
	}

	if err := r.Remove("analyst"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.Get("analyst"); !errors.Is(err, ErrRoleNotFound) {
		t.Error("entry still present after Remove")
	}
	if err := r.Remove("analyst"); !errors.Is(err, ErrRoleNotFound) {
		t.Errorf("double remove err = %v", err)
	}
}

func TestRosterUniqueRoles(t *testing.T) {
	r := NewRoster()
	client := replyWith("ok")

	testEntry(t, r, "analyst", client)

	_, err := r.Add("analyst", NewInstance(validTemplate(), client, nil))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatchIncrementsOnSuccessOnly(t *testing.T) {
	r := NewRoster()

	fail := true
	client := newMockClient(func(req *llm.Request) (*llm.Response, error) {
		if fail {
			return nil, errors.New("backend down")
		}
		return &llm.Response{Content: "done"}, nil
	})
	entry := testEntry(t, r, "analyst", client)

	if _, err := r.Dispatch(context.Background(), "analyst", "task"); err == nil {
		t.Fatal("expected dispatch failure")
	}
	if entry.TasksCompleted() != 0 {
		t.Errorf("counter after failure = %d", entry.TasksCompleted())
	}
	if !entry.Available() {
		t.Error("entry must be available after failed dispatch")
	}

	fail = false
	reply, err := r.Dispatch(context.Background(), "analyst", "task")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "done" {
		t.Errorf("reply = %q", reply)
	}
	if entry.TasksCompleted() != 1 {
		t.Errorf("counter after success = %d", entry.TasksCompleted())
	}
}

func TestDispatchCancelledWhileQueued(t *testing.T) {
	r := NewRoster()

	release := make(chan struct{})
	client := newMockClient(func(req *llm.Request) (*llm.Response, error) {
		<-release
		return &llm.Response{Content: "slow"}, nil
	})
	entry := testEntry(t, r, "analyst", client)

	// Occupy the member.
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		r.Dispatch(context.Background(), "analyst", "first")
	}()

	// Wait until it is actually busy.
	deadline := time.After(2 * time.Second)
	for entry.Available() {
		select {
		case <-deadline:
			t.Fatal("member never became busy")
		case <-time.After(time.Millisecond):
		}
	}

	// A queued request with a cancelled context gives up cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Dispatch(ctx, "analyst", "second")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}

	close(release)
	<-firstDone

	if entry.TasksCompleted() != 1 {
		t.Errorf("counter = %d, want only the first dispatch counted", entry.TasksCompleted())
	}
}

func TestDispatchSerializesPerRole(t *testing.T) {
	r := NewRoster()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	client := newMockClient(func(req *llm.Request) (*llm.Response, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &llm.Response{Content: "done"}, nil
	})
	entry := testEntry(t, r, "analyst", client)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Dispatch(context.Background(), "analyst", "task"); err != nil {
				t.Errorf("Dispatch: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Errorf("max in-flight completions = %d, want 1", maxInFlight)
	}
	if entry.TasksCompleted() != 5 {
		t.Errorf("counter = %d", entry.TasksCompleted())
	}
}

func TestStatusConservation(t *testing.T) {
	r := NewRoster()

	release := make(chan struct{})
	client := newMockClient(func(req *llm.Request) (*llm.Response, error) {
		<-release
		return &llm.Response{Content: "ok"}, nil
	})

	for _, role := range []string{"a", "b", "c"} {
		testEntry(t, r, role, client)
	}

	// Make one member busy.
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Dispatch(context.Background(), "b", "long task")
	}()

	deadline := time.After(2 * time.Second)
	for {
		status := r.Status()
		if status.AvailableMembers+status.ActiveTasks != status.TotalMembers {
			t.Fatalf("conservation violated: %+v", status)
		}
		if status.ActiveTasks == 1 {
			if status.AvailableMembers != 2 || status.TotalMembers != 3 {
				t.Fatalf("status = %+v", status)
			}
			member := status.Members["b"]
			if member.Available || member.CurrentTask == "" {
				t.Fatalf("busy member = %+v", member)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("member never became busy")
		case <-time.After(time.Millisecond):
		}
	}

	close(release)
	<-done

	status := r.Status()
	if status.AvailableMembers != 3 || status.ActiveTasks != 0 {
		t.Errorf("final status = %+v", status)
	}
	if status.Members["b"].TasksCompleted != 1 {
		t.Errorf("b completed = %d", status.Members["b"].TasksCompleted)
	}
}
