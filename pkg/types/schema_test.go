package types

import (
	"reflect"
	"testing"
)

func personRegistry(t *testing.T, policy UnknownAttrPolicy) *SchemaRegistry {
	t.Helper()
	reg := NewSchemaRegistry(policy)
	if err := reg.Register(EntityTypeDef{
		Name:       "Person",
		Attributes: []string{"occupation", "birth_year"},
	}); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	return reg
}

func TestSchemaRegistryQuarantine(t *testing.T) {
	reg := personRegistry(t, QuarantineUnknown)

	got := reg.Apply("Person", map[string]any{
		"occupation": "engineer",
		"shoe_size":  42,
	})
	want := map[string]any{
		"occupation":  "engineer",
		QuarantineKey: map[string]any{"shoe_size": 42},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestSchemaRegistryReject(t *testing.T) {
	reg := personRegistry(t, RejectUnknown)

	got := reg.Apply("Person", map[string]any{
		"occupation": "engineer",
		"shoe_size":  42,
	})
	if _, ok := got["shoe_size"]; ok {
		t.Errorf("Apply() kept undeclared attribute under RejectUnknown")
	}
	if got["occupation"] != "engineer" {
		t.Errorf("Apply() dropped declared attribute")
	}
}

func TestSchemaRegistryUnknownType(t *testing.T) {
	reg := personRegistry(t, QuarantineUnknown)

	attrs := map[string]any{"ticker": "ACME"}
	got := reg.Apply("Company", attrs)
	want := map[string]any{QuarantineKey: attrs}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want whole map quarantined for unknown type", got)
	}

	if reg.Known("Company") {
		t.Errorf("Known(Company) = true, want false")
	}
	if !reg.Known("Person") {
		t.Errorf("Known(Person) = false, want true")
	}
}

func TestSchemaRegistryEmptyAcceptsAll(t *testing.T) {
	reg := NewSchemaRegistry(RejectUnknown)
	attrs := map[string]any{"anything": true}
	if got := reg.Apply("Whatever", attrs); !reflect.DeepEqual(got, attrs) {
		t.Errorf("empty registry Apply() = %v, want passthrough", got)
	}
	if !reg.Known("Whatever") {
		t.Errorf("empty registry Known() = false, want true")
	}
}

func TestNodeMergeAttributes(t *testing.T) {
	node := &Node{
		UUID:       "n1",
		Name:       "Alice",
		GroupID:    "g1",
		Kind:       EntityNodeKind,
		Attributes: map[string]any{"occupation": "engineer"},
	}
	dropped := node.MergeAttributes(map[string]any{
		"occupation": "doctor",
		"birth_year": 1990,
	})
	if node.Attributes["occupation"] != "engineer" {
		t.Errorf("existing attribute overwritten on merge")
	}
	if node.Attributes["birth_year"] != 1990 {
		t.Errorf("new attribute not merged")
	}
	if len(dropped) != 1 || dropped[0] != "occupation" {
		t.Errorf("dropped = %v, want [occupation]", dropped)
	}
}

func TestNodeMergeAttributesReplacesNilValues(t *testing.T) {
	node := &Node{
		UUID:       "n1",
		Name:       "Alice",
		GroupID:    "g1",
		Kind:       EntityNodeKind,
		Attributes: map[string]any{"employer": nil},
	}
	dropped := node.MergeAttributes(map[string]any{"employer": "Acme"})
	if node.Attributes["employer"] != "Acme" {
		t.Errorf("nil attribute not replaced: %v", node.Attributes)
	}
	if len(dropped) != 0 {
		t.Errorf("dropped = %v, want none when existing value is nil", dropped)
	}
}
