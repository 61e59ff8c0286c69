package definition

import (
	"context"
	"testing"
)

func TestParseSerializedLocation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Range
		ok    bool
	}{
		{
			name:  "line only",
			input: "/app/models/user.rb:12",
			want:  Range{StartLine: 11, EndLine: 11},
			ok:    true,
		},
		{
			name:  "line and column",
			input: "/app/models/user.rb:12:5",
			want:  Range{StartLine: 11, StartColumn: 4, EndLine: 11, EndColumn: 4},
			ok:    true,
		},
		{
			name:  "full range",
			input: "/app/models/user.rb:12:5-14:8",
			want:  Range{StartLine: 11, StartColumn: 4, EndLine: 13, EndColumn: 7},
			ok:    true,
		},
		{
			name:  "path with colon in directory",
			input: "/weird:dir/user.rb:3",
			want:  Range{StartLine: 2, EndLine: 2},
			ok:    true,
		},
		{name: "missing line", input: "/app/models/user.rb", ok: false},
		{name: "zero line", input: "/app/models/user.rb:0", ok: false},
		{name: "zero column", input: "/app/models/user.rb:3:0", ok: false},
		{name: "empty", input: "", ok: false},
		{name: "garbage", input: "not a location", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, ok := ParseSerializedLocation(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && loc.Range != tt.want {
				t.Errorf("range = %+v, want %+v", loc.Range, tt.want)
			}
		})
	}
}

func TestCollectMethodWithoutIndexIsNoop(t *testing.T) {
	sink := &SliceSink{}
	collector := NewCollector(nil, nil, sink)
	collector.CollectMethod(context.Background(), "normalize", "User")
	if len(sink.Locations) != 0 {
		t.Errorf("unexpected locations: %v", sink.Locations)
	}
}

func TestCollectAssociationSkipsEmptyInputs(t *testing.T) {
	runtime := &fakeRuntime{}
	sink := &SliceSink{}
	collector := NewCollector(nil, runtime, sink)

	collector.CollectAssociation(context.Background(), "", "user")
	collector.CollectAssociation(context.Background(), "Order", "")

	if len(runtime.associationCalls) != 0 {
		t.Errorf("runtime was called for empty inputs: %v", runtime.associationCalls)
	}
}

func TestCollectControllerActionDropsMalformedEntriesIndividually(t *testing.T) {
	runtime := &fakeRuntime{actions: map[string][]string{
		"health#check": {
			"/app/controllers/health_controller.rb:5",
			"bogus",
			"/app/controllers/concerns/pingable.rb:9:3",
		},
	}}
	sink := &SliceSink{}
	collector := NewCollector(nil, runtime, sink)

	collector.CollectControllerAction(context.Background(), "health", "check")

	if len(sink.Locations) != 2 {
		t.Fatalf("got %d locations, want 2", len(sink.Locations))
	}
	// Discovery order is preserved.
	if sink.Locations[0].URI != "file:///app/controllers/health_controller.rb" ||
		sink.Locations[1].URI != "file:///app/controllers/concerns/pingable.rb" {
		t.Errorf("locations out of order: %v", sink.Locations)
	}
}
