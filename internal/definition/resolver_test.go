package definition

import (
	"context"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sucicfilip/ruby-lsp-rails/internal/ruby"
)

type indexCall struct {
	name  string
	scope string
}

type fakeIndex struct {
	entries map[string][]MethodEntry
	calls   []indexCall
}

func (f *fakeIndex) ResolveMethod(_ context.Context, name, scope string) ([]MethodEntry, error) {
	f.calls = append(f.calls, indexCall{name: name, scope: scope})
	return f.entries[scope+"#"+name], nil
}

type fakeRuntime struct {
	associations map[string]string
	helpers      map[string]string
	actions      map[string][]string

	associationCalls []string
	helperCalls      []string
	actionCalls      []string
}

func (f *fakeRuntime) ResolveAssociation(_ context.Context, modelScope, association string) (string, error) {
	key := modelScope + "#" + association
	f.associationCalls = append(f.associationCalls, key)
	return f.associations[key], nil
}

func (f *fakeRuntime) ResolveRouteHelper(_ context.Context, helper string) (string, error) {
	f.helperCalls = append(f.helperCalls, helper)
	return f.helpers[helper], nil
}

func (f *fakeRuntime) ResolveControllerAction(_ context.Context, controllerPath, action string) ([]string, error) {
	key := controllerPath + "#" + action
	f.actionCalls = append(f.actionCalls, key)
	return f.actions[key], nil
}

var defaultRoutePatterns = []string{"**/config/routes.rb", "**/config/routes/**/*.rb"}

func newTestResolver(t *testing.T, index MethodIndex, runtime RuntimeClient) *Resolver {
	t.Helper()
	resolver, err := NewResolver(NewVocabulary(Extensions{}), index, runtime, defaultRoutePatterns)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return resolver
}

// findLiteral locates the first symbol or string literal whose value
// matches, the first call with the given message when kind is "call",
// or the first plain identifier with the given text when kind is
// "identifier".
func findLiteral(t *testing.T, doc *ruby.Document, kind, value string) *sitter.Node {
	t.Helper()
	var found *sitter.Node
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil || found != nil {
			return
		}
		switch kind {
		case "call":
			if ruby.IsCall(node) && doc.CallMessage(node) == value {
				found = node
				return
			}
		case "identifier":
			if ruby.IsIdentifier(node) && doc.Text(node) == value {
				found = node
				return
			}
		case "symbol":
			if ruby.IsSymbolLiteral(node) {
				if v, ok := doc.SymbolValue(node); ok && v == value {
					found = node
					return
				}
			}
		case "string":
			if ruby.IsStringLiteral(node) {
				if v, ok := doc.StringValue(node); ok && v == value {
					found = node
					return
				}
			}
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}
	walk(doc.Root())
	if found == nil {
		t.Fatalf("no %s node with value %q in source", kind, value)
	}
	return found
}

func resolveAt(t *testing.T, resolver *Resolver, path, source, kind, value string) *SliceSink {
	t.Helper()
	doc, err := ruby.Parse("file://"+path, path, []byte(source))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	t.Cleanup(doc.Close)

	target := findLiteral(t, doc, kind, value)
	sink := &SliceSink{}
	resolver.OnNode(context.Background(), ruby.NewNodeContext(doc, target), sink)
	return sink
}

func TestAssociationResolution(t *testing.T) {
	runtime := &fakeRuntime{associations: map[string]string{
		"Order#user": "/app/models/user.rb:3:5",
	}}
	resolver := newTestResolver(t, &fakeIndex{}, runtime)

	source := "class Order\n  belongs_to :user\nend\n"
	sink := resolveAt(t, resolver, "/app/models/order.rb", source, "symbol", "user")

	if len(runtime.associationCalls) != 1 || runtime.associationCalls[0] != "Order#user" {
		t.Fatalf("association calls = %v, want [Order#user]", runtime.associationCalls)
	}
	if len(sink.Locations) != 1 {
		t.Fatalf("got %d locations, want 1", len(sink.Locations))
	}
	loc := sink.Locations[0]
	if loc.URI != "file:///app/models/user.rb" {
		t.Errorf("URI = %q", loc.URI)
	}
	if loc.Range.StartLine != 2 || loc.Range.StartColumn != 4 {
		t.Errorf("range = %+v, want line 2 col 4", loc.Range)
	}
}

func TestAssociationRequiresFirstArgument(t *testing.T) {
	runtime := &fakeRuntime{}
	resolver := newTestResolver(t, &fakeIndex{}, runtime)

	source := "class Order\n  belongs_to :user, :counter\nend\n"
	sink := resolveAt(t, resolver, "/app/models/order.rb", source, "symbol", "counter")

	if len(runtime.associationCalls) != 0 {
		t.Errorf("unexpected association calls: %v", runtime.associationCalls)
	}
	if len(sink.Locations) != 0 {
		t.Errorf("unexpected locations: %v", sink.Locations)
	}
}

func TestExplicitReceiverIsNeverResolved(t *testing.T) {
	index := &fakeIndex{}
	runtime := &fakeRuntime{}
	resolver := newTestResolver(t, index, runtime)

	tests := []struct {
		name   string
		source string
		kind   string
		value  string
	}{
		{"association", "record.belongs_to :user\n", "symbol", "user"},
		{"callback", "record.before_save :normalize\n", "symbol", "normalize"},
		{"route helper", "helpers.users_path\n", "call", "users_path"},
		{"route helper identifier", "helpers.users_path\n", "identifier", "users_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := resolveAt(t, resolver, "/app/models/order.rb", tt.source, tt.kind, tt.value)
			if len(sink.Locations) != 0 {
				t.Errorf("unexpected locations: %v", sink.Locations)
			}
		})
	}
	if len(index.calls) != 0 || len(runtime.associationCalls) != 0 || len(runtime.helperCalls) != 0 {
		t.Errorf("collaborators were called: index=%v runtime=%v/%v",
			index.calls, runtime.associationCalls, runtime.helperCalls)
	}
}

func TestSelfReceiverStillResolves(t *testing.T) {
	index := &fakeIndex{}
	resolver := newTestResolver(t, index, &fakeRuntime{})

	source := "class User\n  self.before_save :normalize\nend\n"
	resolveAt(t, resolver, "/app/models/user.rb", source, "symbol", "normalize")

	if len(index.calls) != 1 || index.calls[0] != (indexCall{name: "normalize", scope: "User"}) {
		t.Errorf("index calls = %v", index.calls)
	}
}

func TestCallbackSymbolResolvesThroughIndex(t *testing.T) {
	index := &fakeIndex{entries: map[string][]MethodEntry{
		"User#normalize": {
			{
				Name: "normalize", Owner: "User", URI: "file:///app/models/user.rb",
				Range:     Range{StartLine: 10, EndLine: 12},
				NameRange: Range{StartLine: 10, StartColumn: 6, EndLine: 10, EndColumn: 15},
			},
			{
				Name: "normalize", Owner: "User", URI: "file:///app/models/concerns/naming.rb",
				Range:     Range{StartLine: 4, EndLine: 6},
				NameRange: Range{StartLine: 4, StartColumn: 6, EndLine: 4, EndColumn: 15},
			},
		},
	}}
	resolver := newTestResolver(t, index, &fakeRuntime{})

	source := "class User\n  before_save :normalize\nend\n"
	sink := resolveAt(t, resolver, "/app/models/user.rb", source, "symbol", "normalize")

	if len(sink.Locations) != 2 {
		t.Fatalf("got %d locations, want 2", len(sink.Locations))
	}
	// Locations point at the method name, not the whole definition.
	if sink.Locations[0].Range != (Range{StartLine: 10, StartColumn: 6, EndLine: 10, EndColumn: 15}) {
		t.Errorf("first location range = %+v", sink.Locations[0].Range)
	}
}

func TestValidationAttributeSymbolLooksUpIndex(t *testing.T) {
	index := &fakeIndex{}
	resolver := newTestResolver(t, index, &fakeRuntime{})

	source := "class User\n  validates :name, presence: true\nend\n"
	resolveAt(t, resolver, "/app/models/user.rb", source, "symbol", "name")

	if len(index.calls) != 1 || index.calls[0] != (indexCall{name: "name", scope: "User"}) {
		t.Errorf("index calls = %v", index.calls)
	}
}

func TestConditionalOptionResolves(t *testing.T) {
	tests := []struct {
		name   string
		source string
		value  string
	}{
		{"if on validates", "class User\n  validates :name, if: :active?\nend\n", "active?"},
		{"unless on callback", "class User\n  before_save :normalize, unless: :skip?\nend\n", "skip?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := &fakeIndex{}
			resolver := newTestResolver(t, index, &fakeRuntime{})
			resolveAt(t, resolver, "/app/models/user.rb", tt.source, "symbol", tt.value)

			if len(index.calls) != 1 || index.calls[0] != (indexCall{name: tt.value, scope: "User"}) {
				t.Errorf("index calls = %v, want lookup of %q in User", index.calls, tt.value)
			}
		})
	}
}

func TestDirectArgumentAndConditionalValueResolveAlike(t *testing.T) {
	source := "class User\n  before_save :touch_cache, if: :touch_cache\nend\n"

	doc, err := ruby.Parse("file:///app/models/user.rb", "/app/models/user.rb", []byte(source))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	defer doc.Close()

	var calls [][]indexCall
	var syms []*sitter.Node
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if ruby.IsSymbolLiteral(node) {
			syms = append(syms, node)
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}
	walk(doc.Root())
	if len(syms) != 2 {
		t.Fatalf("want 2 symbol literals, got %d", len(syms))
	}

	for _, sym := range syms {
		index := &fakeIndex{}
		resolver := newTestResolver(t, index, &fakeRuntime{})
		sink := &SliceSink{}
		resolver.OnNode(context.Background(), ruby.NewNodeContext(doc, sym), sink)
		calls = append(calls, index.calls)
	}

	if len(calls[0]) != 1 || len(calls[1]) != 1 || calls[0][0] != calls[1][0] {
		t.Errorf("positional and conditional uses resolved differently: %v vs %v", calls[0], calls[1])
	}
}

func TestValidationStringArgumentIsNotResolved(t *testing.T) {
	index := &fakeIndex{}
	resolver := newTestResolver(t, index, &fakeRuntime{})

	source := "class User\n  validates \"name\"\nend\n"
	sink := resolveAt(t, resolver, "/app/models/user.rb", source, "string", "name")

	if len(index.calls) != 0 {
		t.Errorf("string arguments must not hit the index: %v", index.calls)
	}
	if len(sink.Locations) != 0 {
		t.Errorf("unexpected locations: %v", sink.Locations)
	}
}

func TestValidatesWithConstantIsNotResolved(t *testing.T) {
	index := &fakeIndex{}
	runtime := &fakeRuntime{}
	resolver := newTestResolver(t, index, runtime)

	source := "class User\n  validates_with EmailValidator, if: :active?\nend\n"
	// Focus the conditional symbol; the constant argument has no
	// resolvable shape at all.
	resolveAt(t, resolver, "/app/models/user.rb", source, "symbol", "active?")

	if len(index.calls) != 1 || index.calls[0].name != "active?" {
		t.Errorf("index calls = %v, want only the conditional lookup", index.calls)
	}
}

func TestRouteHelperResolution(t *testing.T) {
	// A bare helper reference parses as an identifier; only the
	// parenthesized form parses as a call. Both shapes must resolve.
	cases := []struct {
		name   string
		helper string
		source string
		kind   string
	}{
		{"bare path", "users_path", "users_path\n", "identifier"},
		{"bare url", "users_url", "users_url\n", "identifier"},
		{"as argument", "users_path", "redirect_to users_path\n", "identifier"},
		{"with arguments", "user_path", "user_path(1)\n", "call"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runtime := &fakeRuntime{helpers: map[string]string{
				tc.helper: "/workspace/config/routes.rb:12",
			}}
			resolver := newTestResolver(t, &fakeIndex{}, runtime)

			sink := resolveAt(t, resolver, "/app/views/users.rb", tc.source, tc.kind, tc.helper)

			if len(runtime.helperCalls) != 1 || runtime.helperCalls[0] != tc.helper {
				t.Fatalf("helper calls = %v", runtime.helperCalls)
			}
			if len(sink.Locations) != 1 {
				t.Fatalf("got %d locations, want 1", len(sink.Locations))
			}
			if sink.Locations[0].Range.StartLine != 11 {
				t.Errorf("line = %d, want 11", sink.Locations[0].Range.StartLine)
			}
		})
	}
}

func TestRouteHelperBindingSitesAreNotResolved(t *testing.T) {
	cases := []struct {
		name   string
		source string
	}{
		{"assignment target", "users_path = compute\n"},
		{"method parameter", "def show(users_path)\nend\n"},
		{"block parameter", "each do |users_path|\nend\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runtime := &fakeRuntime{helpers: map[string]string{
				"users_path": "/workspace/config/routes.rb:12",
			}}
			resolver := newTestResolver(t, &fakeIndex{}, runtime)

			sink := resolveAt(t, resolver, "/app/views/users.rb", tc.source, "identifier", "users_path")

			if len(runtime.helperCalls) != 0 {
				t.Errorf("helper calls = %v, want none", runtime.helperCalls)
			}
			if len(sink.Locations) != 0 {
				t.Errorf("unexpected locations: %v", sink.Locations)
			}
		})
	}
}

func TestRouteHelperEmptyResultEmitsNothing(t *testing.T) {
	runtime := &fakeRuntime{}
	resolver := newTestResolver(t, &fakeIndex{}, runtime)

	sink := resolveAt(t, resolver, "/app/views/users.rb", "missing_path\n", "identifier", "missing_path")

	if len(runtime.helperCalls) != 1 {
		t.Fatalf("helper calls = %v", runtime.helperCalls)
	}
	if len(sink.Locations) != 0 {
		t.Errorf("unexpected locations: %v", sink.Locations)
	}
}

func TestControllerRouteInNamespace(t *testing.T) {
	runtime := &fakeRuntime{actions: map[string][]string{
		"admin/health#check": {"/app/controllers/admin/health_controller.rb:5:3"},
	}}
	resolver := newTestResolver(t, &fakeIndex{}, runtime)

	source := `Rails.application.routes.draw do
  namespace :admin do
    get "/ping", to: "health#check"
  end
end
`
	sink := resolveAt(t, resolver, "/workspace/config/routes.rb", source, "string", "health#check")

	if len(runtime.actionCalls) != 1 || runtime.actionCalls[0] != "admin/health#check" {
		t.Fatalf("action calls = %v, want [admin/health#check]", runtime.actionCalls)
	}
	if len(sink.Locations) != 1 {
		t.Fatalf("got %d locations, want 1", len(sink.Locations))
	}
}

func TestControllerRouteScopeModule(t *testing.T) {
	runtime := &fakeRuntime{}
	resolver := newTestResolver(t, &fakeIndex{}, runtime)

	source := `Rails.application.routes.draw do
  scope module: "api" do
    get "/widgets", to: "widgets#index"
  end
end
`
	resolveAt(t, resolver, "/workspace/config/routes.rb", source, "string", "widgets#index")

	if len(runtime.actionCalls) != 1 || runtime.actionCalls[0] != "api/widgets#index" {
		t.Errorf("action calls = %v, want [api/widgets#index]", runtime.actionCalls)
	}
}

func TestControllerRouteNestedNamespaces(t *testing.T) {
	runtime := &fakeRuntime{}
	resolver := newTestResolver(t, &fakeIndex{}, runtime)

	source := `Rails.application.routes.draw do
  namespace :admin do
    namespace "v1" do
      get "/ping", to: "health#check"
    end
  end
end
`
	resolveAt(t, resolver, "/workspace/config/routes.rb", source, "string", "health#check")

	if len(runtime.actionCalls) != 1 || runtime.actionCalls[0] != "admin/v1/health#check" {
		t.Errorf("action calls = %v, want [admin/v1/health#check]", runtime.actionCalls)
	}
}

func TestControllerRouteIgnoresSiblingScopes(t *testing.T) {
	runtime := &fakeRuntime{}
	resolver := newTestResolver(t, &fakeIndex{}, runtime)

	source := `Rails.application.routes.draw do
  namespace :internal do
    get "/x", to: "x#show"
  end
  get "/ping", to: "health#check"
end
`
	resolveAt(t, resolver, "/workspace/config/routes.rb", source, "string", "health#check")

	if len(runtime.actionCalls) != 1 || runtime.actionCalls[0] != "health#check" {
		t.Errorf("action calls = %v, want [health#check]", runtime.actionCalls)
	}
}

func TestControllerRoutePositionalString(t *testing.T) {
	runtime := &fakeRuntime{}
	resolver := newTestResolver(t, &fakeIndex{}, runtime)

	source := "Rails.application.routes.draw do\n  root \"home#index\"\nend\n"
	resolveAt(t, resolver, "/workspace/config/routes.rb", source, "string", "home#index")

	if len(runtime.actionCalls) != 1 || runtime.actionCalls[0] != "home#index" {
		t.Errorf("action calls = %v, want [home#index]", runtime.actionCalls)
	}
}

func TestControllerRouteMalformedStrings(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"no separator", "healthcheck"},
		{"empty controller", "#check"},
		{"empty action", "health#"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime := &fakeRuntime{}
			resolver := newTestResolver(t, &fakeIndex{}, runtime)

			source := "Rails.application.routes.draw do\n  get \"/ping\", to: \"" + tt.value + "\"\nend\n"
			sink := resolveAt(t, resolver, "/workspace/config/routes.rb", source, "string", tt.value)

			if len(runtime.actionCalls) != 0 {
				t.Errorf("malformed %q reached the runtime: %v", tt.value, runtime.actionCalls)
			}
			if len(sink.Locations) != 0 {
				t.Errorf("unexpected locations: %v", sink.Locations)
			}
		})
	}
}

func TestControllerRouteOutsideRouteFile(t *testing.T) {
	runtime := &fakeRuntime{}
	resolver := newTestResolver(t, &fakeIndex{}, runtime)

	source := "get \"/ping\", to: \"health#check\"\n"
	resolveAt(t, resolver, "/workspace/app/models/user.rb", source, "string", "health#check")

	if len(runtime.actionCalls) != 0 {
		t.Errorf("non-route file reached the runtime: %v", runtime.actionCalls)
	}
}

func TestControllerRouteMalformedRunnerEntryIsDropped(t *testing.T) {
	runtime := &fakeRuntime{actions: map[string][]string{
		"health#check": {
			"not a location",
			"/app/controllers/health_controller.rb:5",
		},
	}}
	resolver := newTestResolver(t, &fakeIndex{}, runtime)

	source := "Rails.application.routes.draw do\n  get \"/ping\", to: \"health#check\"\nend\n"
	sink := resolveAt(t, resolver, "/workspace/config/routes.rb", source, "string", "health#check")

	if len(sink.Locations) != 1 {
		t.Fatalf("got %d locations, want the single well-formed entry", len(sink.Locations))
	}
	if sink.Locations[0].URI != "file:///app/controllers/health_controller.rb" {
		t.Errorf("URI = %q", sink.Locations[0].URI)
	}
}

func TestUnclassifiedCallIsIgnored(t *testing.T) {
	index := &fakeIndex{}
	runtime := &fakeRuntime{}
	resolver := newTestResolver(t, index, runtime)

	sink := resolveAt(t, resolver, "/app/models/user.rb", "puts :debug\n", "symbol", "debug")

	if len(index.calls) != 0 || len(sink.Locations) != 0 {
		t.Errorf("unclassified call resolved: calls=%v locations=%v", index.calls, sink.Locations)
	}
}
