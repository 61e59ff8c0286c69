package definition

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	vocab := NewVocabulary(Extensions{})

	tests := []struct {
		message string
		want    Kind
	}{
		{"belongs_to", KindAssociation},
		{"has_many", KindAssociation},
		{"has_one", KindAssociation},
		{"has_and_belongs_to_many", KindAssociation},
		{"before_save", KindCallback},
		{"after_commit", KindCallback},
		{"before_action", KindCallback},
		{"around_perform", KindCallback},
		{"validates", KindValidation},
		{"validate", KindValidation},
		{"validates_with", KindValidation},
		{"get", KindControllerRoute},
		{"post", KindControllerRoute},
		{"root", KindControllerRoute},
		{"mount", KindControllerRoute},
		{"users_path", KindRouteHelper},
		{"edit_user_url", KindRouteHelper},
		{"puts", KindNone},
		{"", KindNone},
	}
	for _, tt := range tests {
		if got := vocab.Classify(tt.message); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestVocabularyKindsAreDisjoint(t *testing.T) {
	groups := map[Kind][]string{
		KindAssociation:     associationMethods,
		KindCallback:        callbackMethods,
		KindValidation:      validationMethods,
		KindControllerRoute: routeDeclarerMethods,
	}
	seen := make(map[string]Kind)
	for kind, names := range groups {
		for _, name := range names {
			if prev, ok := seen[name]; ok {
				t.Errorf("%q appears in both %v and %v", name, prev, kind)
			}
			seen[name] = kind
		}
	}
}

func TestVocabularyHasNoRouteHelperShapedMembers(t *testing.T) {
	all := [][]string{associationMethods, callbackMethods, validationMethods, routeDeclarerMethods}
	for _, names := range all {
		for _, name := range names {
			if strings.HasSuffix(name, "_path") || strings.HasSuffix(name, "_url") {
				t.Errorf("%q collides with the route helper suffix rule", name)
			}
		}
	}
}

func TestVocabularyExtensions(t *testing.T) {
	vocab := NewVocabulary(Extensions{
		Callbacks:   []string{"before_custom"},
		Validations: []string{"validates_acme"},
	})
	if got := vocab.Classify("before_custom"); got != KindCallback {
		t.Errorf("Classify(before_custom) = %v", got)
	}
	if got := vocab.Classify("validates_acme"); got != KindValidation {
		t.Errorf("Classify(validates_acme) = %v", got)
	}
}

func TestExtensionsCannotOverrideBuiltins(t *testing.T) {
	vocab := NewVocabulary(Extensions{Callbacks: []string{"belongs_to"}})
	if got := vocab.Classify("belongs_to"); got != KindAssociation {
		t.Errorf("built-in classification was overridden: %v", got)
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		KindNone:            "none",
		KindAssociation:     "association",
		KindCallback:        "callback",
		KindValidation:      "validation",
		KindRouteHelper:     "route_helper",
		KindControllerRoute: "controller_route",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
