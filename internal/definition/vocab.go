package definition

import "strings"

// Kind is the DSL category a call classifies into. A call classifies
// into exactly one kind; the vocabulary sets below are pairwise
// disjoint and none of their members carries a route-helper suffix.
type Kind int

const (
	KindNone Kind = iota
	KindAssociation
	KindCallback
	KindValidation
	KindRouteHelper
	KindControllerRoute
)

func (k Kind) String() string {
	switch k {
	case KindAssociation:
		return "association"
	case KindCallback:
		return "callback"
	case KindValidation:
		return "validation"
	case KindRouteHelper:
		return "route_helper"
	case KindControllerRoute:
		return "controller_route"
	}
	return "none"
}

var associationMethods = []string{
	"belongs_to",
	"has_one",
	"has_many",
	"has_and_belongs_to_many",
}

var callbackMethods = []string{
	// Model lifecycle
	"after_commit",
	"after_create",
	"after_create_commit",
	"after_destroy",
	"after_destroy_commit",
	"after_find",
	"after_initialize",
	"after_rollback",
	"after_save",
	"after_save_commit",
	"after_touch",
	"after_update",
	"after_update_commit",
	"after_validation",
	"around_create",
	"around_destroy",
	"around_save",
	"around_update",
	"before_create",
	"before_destroy",
	"before_save",
	"before_update",
	"before_validation",
	// Controller filters
	"after_action",
	"append_after_action",
	"append_around_action",
	"append_before_action",
	"around_action",
	"before_action",
	"prepend_after_action",
	"prepend_around_action",
	"prepend_before_action",
	"skip_after_action",
	"skip_around_action",
	"skip_before_action",
	// Job lifecycle
	"after_enqueue",
	"after_perform",
	"around_enqueue",
	"around_perform",
	"before_enqueue",
	"before_perform",
}

var validationMethods = []string{
	"validate",
	"validates",
	"validates_each",
	"validates_with",
}

var routeDeclarerMethods = []string{
	"get",
	"post",
	"put",
	"patch",
	"delete",
	"match",
	"root",
	"resource",
	"resources",
	"mount",
}

const (
	routePathSuffix = "_path"
	routeURLSuffix  = "_url"
)

// Vocabulary classifies call names into DSL kinds. The built-in sets
// are fixed configuration data; applications can extend them through
// config, never shrink them.
type Vocabulary struct {
	kinds map[string]Kind
}

// Extensions carries additive vocabulary entries from config.
type Extensions struct {
	Associations   []string
	Callbacks      []string
	Validations    []string
	RouteDeclarers []string
}

func NewVocabulary(ext Extensions) *Vocabulary {
	v := &Vocabulary{kinds: make(map[string]Kind)}
	v.add(KindAssociation, associationMethods)
	v.add(KindCallback, callbackMethods)
	v.add(KindValidation, validationMethods)
	v.add(KindControllerRoute, routeDeclarerMethods)
	v.add(KindAssociation, ext.Associations)
	v.add(KindCallback, ext.Callbacks)
	v.add(KindValidation, ext.Validations)
	v.add(KindControllerRoute, ext.RouteDeclarers)
	return v
}

func (v *Vocabulary) add(kind Kind, names []string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		// First registration wins; extensions cannot reassign a
		// built-in name to another kind.
		if _, exists := v.kinds[name]; exists {
			continue
		}
		v.kinds[name] = kind
	}
}

// Classify maps a self-receiver call's method name to its DSL kind.
// Callers enforce the explicit-receiver precondition; Classify itself
// is pure.
func (v *Vocabulary) Classify(message string) Kind {
	if message == "" {
		return KindNone
	}
	if kind, ok := v.kinds[message]; ok {
		return kind
	}
	if strings.HasSuffix(message, routePathSuffix) || strings.HasSuffix(message, routeURLSuffix) {
		return KindRouteHelper
	}
	return KindNone
}
