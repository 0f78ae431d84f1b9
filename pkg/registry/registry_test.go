package registry

import (
	"fmt"
	"testing"
)

// presenceEntry is a minimal stand-in for *Registration, exercising
// BaseRegistry independently of AgentRegistry's heartbeat/presence logic.
type presenceEntry struct {
	AgentID string
	Kind    string
}

func TestBaseRegistry_Register(t *testing.T) {
	reg := NewBaseRegistry[presenceEntry]()

	tests := []struct {
		name    string
		item    presenceEntry
		wantErr bool
	}{
		{
			name:    "register valid agent",
			item:    presenceEntry{AgentID: "agent-1", Kind: "worker"},
			wantErr: false,
		},
		{
			name:    "register agent with empty id",
			item:    presenceEntry{AgentID: "", Kind: "worker"},
			wantErr: true,
		},
		{
			name:    "register duplicate agent",
			item:    presenceEntry{AgentID: "agent-1", Kind: "planner"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.item.AgentID, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_Get(t *testing.T) {
	reg := NewBaseRegistry[presenceEntry]()

	entry := presenceEntry{AgentID: "agent-1", Kind: "worker"}
	if err := reg.Register("agent-1", entry); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name     string
		agentID  string
		wantItem presenceEntry
		wantOk   bool
	}{
		{name: "get existing agent", agentID: "agent-1", wantItem: entry, wantOk: true},
		{name: "get unregistered agent", agentID: "agent-2", wantItem: presenceEntry{}, wantOk: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, ok := reg.Get(tt.agentID)
			if ok != tt.wantOk {
				t.Errorf("Get() ok = %v, want %v", ok, tt.wantOk)
			}
			if item != tt.wantItem {
				t.Errorf("Get() item = %+v, want %+v", item, tt.wantItem)
			}
		})
	}
}

func TestBaseRegistry_List(t *testing.T) {
	reg := NewBaseRegistry[presenceEntry]()

	if items := reg.List(); len(items) != 0 {
		t.Errorf("List() on empty registry = %v, want empty", items)
	}

	entries := []presenceEntry{
		{AgentID: "agent-1", Kind: "worker"},
		{AgentID: "agent-2", Kind: "planner"},
		{AgentID: "agent-3", Kind: "orchestrator"},
	}
	for _, e := range entries {
		if err := reg.Register(e.AgentID, e); err != nil {
			t.Fatalf("Register(%s): %v", e.AgentID, err)
		}
	}

	items := reg.List()
	if len(items) != len(entries) {
		t.Fatalf("List() length = %d, want %d", len(items), len(entries))
	}

	byID := make(map[string]presenceEntry, len(items))
	for _, item := range items {
		byID[item.AgentID] = item
	}
	for _, want := range entries {
		got, ok := byID[want.AgentID]
		if !ok {
			t.Errorf("List() missing agent %s", want.AgentID)
			continue
		}
		if got.Kind != want.Kind {
			t.Errorf("List() agent %s kind = %s, want %s", want.AgentID, got.Kind, want.Kind)
		}
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	reg := NewBaseRegistry[presenceEntry]()
	if err := reg.Register("agent-1", presenceEntry{AgentID: "agent-1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := reg.Remove("agent-1"); err != nil {
		t.Errorf("Remove() of registered agent: %v", err)
	}
	if _, ok := reg.Get("agent-1"); ok {
		t.Error("agent-1 still present after Remove")
	}
	if err := reg.Remove("agent-1"); err == nil {
		t.Error("Remove() of already-removed agent, want error")
	}
}

func TestBaseRegistry_Count(t *testing.T) {
	reg := NewBaseRegistry[presenceEntry]()
	if count := reg.Count(); count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}

	for i, id := range []string{"agent-1", "agent-2"} {
		if err := reg.Register(id, presenceEntry{AgentID: id}); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
		if count := reg.Count(); count != i+1 {
			t.Errorf("Count() = %d, want %d", count, i+1)
		}
	}
}

func TestBaseRegistry_Clear(t *testing.T) {
	reg := NewBaseRegistry[presenceEntry]()
	for _, id := range []string{"agent-1", "agent-2"} {
		if err := reg.Register(id, presenceEntry{AgentID: id}); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	reg.Clear()

	if count := reg.Count(); count != 0 {
		t.Errorf("Count() after Clear = %d, want 0", count)
	}
	if items := reg.List(); len(items) != 0 {
		t.Errorf("List() after Clear = %v, want empty", items)
	}
}

func TestBaseRegistry_Concurrency(t *testing.T) {
	reg := NewBaseRegistry[presenceEntry]()
	done := make(chan bool, 2)

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			id := fmt.Sprintf("agent-%d", i)
			_ = reg.Register(id, presenceEntry{AgentID: id, Kind: "worker"})
		}
	}()

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			id := fmt.Sprintf("agent-%d", i)
			reg.Get(id)
			reg.Count()
			reg.List()
		}
	}()

	<-done
	<-done

	if count := reg.Count(); count != 100 {
		t.Errorf("Count() after concurrent registration = %d, want 100", count)
	}
}
