package php

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hierarchyIndex() *MemoryIndex {
	index := NewMemoryIndex()

	index.AddClass(PHPClass{
		Name: "App\\Base",
		Kind: ClassKindClass,
		Methods: map[string]PHPMethod{
			"getid":  {Name: "getId", ReturnTypes: []string{"int"}, DeclaringClass: "App\\Base"},
			"secret": {Name: "secret", Visibility: Private, ReturnTypes: []string{"string"}},
			"name":   {Name: "name", ReturnTypes: []string{"string"}},
		},
		Properties: map[string]PHPProperty{
			"id":     {Name: "id", Types: []string{"int"}},
			"hidden": {Name: "hidden", Visibility: Private, Types: []string{"bool"}},
		},
		Interfaces: []string{"App\\Named"},
	})
	index.AddClass(PHPClass{
		Name: "App\\Named",
		Kind: ClassKindInterface,
		Methods: map[string]PHPMethod{
			"name":   {Name: "name", ReturnTypes: []string{"mixed"}},
			"labels": {Name: "labels", ReturnTypes: []string{"string[]"}},
		},
		Interfaces: []string{"Stringable"},
	})
	index.AddClass(PHPClass{
		Name: "App\\Loggable",
		Kind: ClassKindTrait,
		Methods: map[string]PHPMethod{
			"log":   {Name: "log", Visibility: Private, ReturnTypes: []string{"void"}},
			"getid": {Name: "getId", ReturnTypes: []string{"string"}},
		},
	})
	index.AddClass(PHPClass{
		Name:    "App\\Child",
		Kind:    ClassKindClass,
		Parents: []string{"App\\Base"},
		Traits:  []string{"App\\Loggable"},
		Methods: map[string]PHPMethod{
			"name": {Name: "name", ReturnTypes: []string{"App\\Child"}},
		},
		Constants: map[string]PHPClassConstant{
			"TYPE": {Name: "TYPE", Types: []string{"string"}},
		},
	})

	return index
}

func TestClassBuilder_MergesMembers(t *testing.T) {
	builder := NewClassBuilder(hierarchyIndex())

	child, err := builder.Build("\\app\\child")
	require.NoError(t, err)
	assert.Equal(t, "App\\Child", child.Name)

	name, ok := child.GetMethod("name")
	require.True(t, ok)
	assert.Equal(t, []string{"App\\Child"}, name.ReturnTypes, "own members win")

	getID, ok := child.GetMethod("getId")
	require.True(t, ok)
	assert.Equal(t, []string{"string"}, getID.ReturnTypes, "trait members win over parent members")

	_, ok = child.GetMethod("log")
	assert.True(t, ok, "private trait members are copied in")

	_, ok = child.GetMethod("secret")
	assert.False(t, ok, "private parent members are not inherited")
	_, ok = child.GetProperty("hidden")
	assert.False(t, ok)

	_, ok = child.GetProperty("id")
	assert.True(t, ok)

	labels, ok := child.GetMethod("labels")
	require.True(t, ok, "interface members of the parent are visible")
	assert.Equal(t, []string{"string[]"}, labels.ReturnTypes)

	assert.Contains(t, child.Interfaces, "App\\Named")
	assert.Contains(t, child.Interfaces, "Stringable")
}

func TestClassBuilder_DoesNotMutateSource(t *testing.T) {
	index := hierarchyIndex()
	_, err := NewClassBuilder(index).Build("App\\Child")
	require.NoError(t, err)

	declared, ok := index.GetClass("App\\Child")
	require.True(t, ok)
	assert.Len(t, declared.Methods, 1)
	assert.Equal(t, []string{"App\\Base"}, declared.Parents)
}

func TestClassBuilder_NotFound(t *testing.T) {
	_, err := NewClassBuilder(hierarchyIndex()).Build("App\\Missing")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestClassBuilder_Cycle(t *testing.T) {
	index := NewMemoryIndex()
	index.AddClass(PHPClass{Name: "A", Parents: []string{"B"}, Methods: map[string]PHPMethod{"a": {Name: "a"}}})
	index.AddClass(PHPClass{Name: "B", Parents: []string{"A"}, Methods: map[string]PHPMethod{"b": {Name: "b"}}})

	a, err := NewClassBuilder(index).Build("A")
	require.NoError(t, err)
	_, ok := a.GetMethod("b")
	assert.True(t, ok)
}

func TestCatalog_FirstSourceWins(t *testing.T) {
	overlay := NewMemoryIndex()
	overlay.AddClass(PHPClass{Name: "App\\Base", Methods: map[string]PHPMethod{
		"fresh": {Name: "fresh", ReturnTypes: []string{"bool"}},
	}})
	overlay.AddFunction(PHPFunction{Name: "App\\helper", ReturnTypes: []string{"int"}})

	stored := hierarchyIndex()
	stored.AddFunction(PHPFunction{Name: "App\\helper", ReturnTypes: []string{"string"}})
	stored.AddConstant(PHPConstant{Name: "App\\LIMIT", Types: []string{"int"}})

	catalog := NewCatalog(overlay, stored)

	fn, ok := catalog.GetFunction("app\\HELPER")
	require.True(t, ok)
	assert.Equal(t, []string{"int"}, fn.ReturnTypes)

	constant, ok := catalog.GetConstant("APP\\LIMIT")
	require.True(t, ok)
	assert.Equal(t, []string{"int"}, constant.Types)
	_, ok = catalog.GetConstant("App\\limit")
	assert.False(t, ok, "constant names are case sensitive")

	child, err := catalog.Build("App\\Child")
	require.NoError(t, err)
	_, ok = child.GetMethod("fresh")
	assert.True(t, ok, "parents come from the overlay")
	_, ok = child.GetMethod("getId")
	assert.True(t, ok, "trait still comes from the stored index")
}
