package lsp

import (
	"testing"

	"github.com/sucicfilip/ruby-lsp-rails/internal/ruby"
)

func TestDocumentStoreLifecycle(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///app/models/user.rb"

	if err := store.Open(uri, "class User\nend\n"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if store.Get(uri) == nil {
		t.Fatal("document missing after open")
	}

	if err := store.Update(uri, "class User\n  before_save :x\nend\n"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	doc := store.Get(uri)
	if doc == nil || doc.Root() == nil {
		t.Fatal("document missing after update")
	}

	store.Close(uri)
	if store.Get(uri) != nil {
		t.Error("document still present after close")
	}
}

func TestFocusedNode(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///app/models/user.rb"
	source := "class User\n  before_save :normalize\nend\n"
	if err := store.Open(uri, source); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.CloseAll()
	doc := store.Get(uri)

	// Cursor inside the symbol yields the symbol literal.
	node := focusedNode(doc, 1, 17)
	if node == nil || !ruby.IsSymbolLiteral(node) {
		t.Fatalf("focusedNode at symbol = %v, want a symbol literal", node)
	}

	// Cursor on the call name yields the call.
	node = focusedNode(doc, 1, 4)
	if node == nil || !ruby.IsCall(node) {
		t.Fatalf("focusedNode at method name = %v, want a call", node)
	}

	// Cursor on a keyword yields nothing resolvable.
	if node := focusedNode(doc, 0, 1); node != nil {
		t.Errorf("focusedNode on class keyword = %v, want nil", node)
	}
}

func TestFocusedNodeKeepsBareHelperIdentifier(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///app/controllers/users_controller.rb"
	source := "redirect_to users_path\n"
	if err := store.Open(uri, source); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.CloseAll()
	doc := store.Get(uri)

	// Cursor inside the bare helper reference yields the identifier
	// itself, not the enclosing redirect_to call.
	node := focusedNode(doc, 0, 14)
	if node == nil || !ruby.IsIdentifier(node) {
		t.Fatalf("focusedNode = %v, want an identifier", node)
	}
	if got := doc.Text(node); got != "users_path" {
		t.Errorf("focused identifier = %q, want users_path", got)
	}

	// Cursor on the redirect_to name still climbs to the call.
	node = focusedNode(doc, 0, 2)
	if node == nil || !ruby.IsCall(node) {
		t.Fatalf("focusedNode at method name = %v, want a call", node)
	}
}
