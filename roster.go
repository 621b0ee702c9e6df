package team

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Roster maps role names to team members. Role names are unique; at most
// one dispatch runs per member, with waiting requests queued in arrival
// order.
type Roster struct {
	entries map[string]*RosterEntry
	mu      sync.RWMutex
}

// RosterEntry is one team member: an instance plus team-level bookkeeping.
type RosterEntry struct {
	Role        string
	Instance    *Instance
	Specialties []string

	// gate serializes dispatches to this member. Buffered with capacity 1
	// so acquisition can be abandoned on context cancellation.
	gate chan struct{}

	tasksCompleted int
	busy           bool
	currentTask    string
	mu             sync.RWMutex
}

// TasksCompleted returns how many dispatches this member has finished
// successfully.
func (e *RosterEntry) TasksCompleted() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tasksCompleted
}

// Available reports whether the member can take a dispatch right now.
func (e *RosterEntry) Available() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.busy
}

// MemberStatus is a point-in-time view of one team member.
type MemberStatus struct {
	Available      bool     `json:"available"`
	Specialties    []string `json:"specialties"`
	TasksCompleted int      `json:"tasks_completed"`
	CurrentTask    string   `json:"current_task,omitempty"`
}

// TeamStatus is a point-in-time view of the whole roster. The counts are
// taken under one lock, so available+active always equals total.
type TeamStatus struct {
	TotalMembers     int                     `json:"total_members"`
	AvailableMembers int                     `json:"available_members"`
	ActiveTasks      int                     `json:"active_tasks"`
	Members          map[string]MemberStatus `json:"team_members"`
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{
		entries: make(map[string]*RosterEntry),
	}
}

// Add registers a team member under a unique role name.
func (r *Roster) Add(role string, inst *Instance, specialties ...string) (*RosterEntry, error) {
	if role == "" {
		return nil, &ValidationError{Field: "role", Reason: "must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[role]; exists {
		return nil, &ValidationError{Field: "role", Reason: fmt.Sprintf("%q is already on the roster", role)}
	}

	entry := &RosterEntry{
		Role:        role,
		Instance:    inst,
		Specialties: append([]string(nil), specialties...),
		gate:        make(chan struct{}, 1),
	}
	r.entries[role] = entry
	return entry, nil
}

// Get returns the member with the given role.
func (r *Roster) Get(role string) (*RosterEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[role]
	if !ok {
		return nil, fmt.Errorf("role %q: %w", role, ErrRoleNotFound)
	}
	return entry, nil
}

// Remove drops a member from the roster. In-flight dispatches finish
// normally; the member just stops being routable.
func (r *Roster) Remove(role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[role]; !ok {
		return fmt.Errorf("role %q: %w", role, ErrRoleNotFound)
	}
	delete(r.entries, role)
	return nil
}

// Roles returns the roster's role names, sorted.
func (r *Roster) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]string, 0, len(r.entries))
	for role := range r.entries {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Size returns the number of team members.
func (r *Roster) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Status snapshots the team. Busy members count as active tasks;
// available + active == total.
func (r *Roster) Status() TeamStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := TeamStatus{
		TotalMembers: len(r.entries),
		Members:      make(map[string]MemberStatus, len(r.entries)),
	}

	for role, entry := range r.entries {
		entry.mu.RLock()
		m := MemberStatus{
			Available:      !entry.busy,
			Specialties:    append([]string(nil), entry.Specialties...),
			TasksCompleted: entry.tasksCompleted,
			CurrentTask:    entry.currentTask,
		}
		entry.mu.RUnlock()

		if m.Available {
			status.AvailableMembers++
		} else {
			status.ActiveTasks++
		}
		status.Members[role] = m
	}

	return status
}

// Dispatch sends a message to one member, queuing behind any in-flight
// dispatch to the same role. The completed-task counter increments exactly
// once per successful dispatch; failures and cancellations leave it
// untouched and restore availability.
func (r *Roster) Dispatch(ctx context.Context, role, message string) (string, error) {
	entry, err := r.Get(role)
	if err != nil {
		return "", err
	}
	return entry.dispatch(ctx, message)
}

func (e *RosterEntry) dispatch(ctx context.Context, message string) (string, error) {
	select {
	case e.gate <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-e.gate }()

	e.mu.Lock()
	e.busy = true
	e.currentTask = summarizeTask(message)
	e.mu.Unlock()

	reply, err := e.Instance.Respond(ctx, message)

	e.mu.Lock()
	e.busy = false
	e.currentTask = ""
	if err == nil {
		e.tasksCompleted++
	}
	e.mu.Unlock()

	if err != nil {
		return "", err
	}
	return reply, nil
}

// summarizeTask trims a message to a short status label.
func summarizeTask(message string) string {
	const max = 60
	if len(message) <= max {
		return message
	}
	return message[:max] + "..."
}
