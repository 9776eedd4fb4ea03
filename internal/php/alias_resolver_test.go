package php

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAliasResolver_ResolveType(t *testing.T) {
	uses := []UseStatement{
		{Alias: "Request", Name: "Symfony\\Component\\HttpFoundation\\Request"},
		{Alias: "SymfonyResponse", Name: "\\Symfony\\Component\\HttpFoundation\\Response"},
		{Alias: "DBAL", Name: "Doctrine\\DBAL"},
	}

	tests := []struct {
		name      string
		namespace string
		typeName  string
		expected  string
	}{
		{name: "primitive", namespace: "App", typeName: "string", expected: "string"},
		{name: "special", namespace: "App", typeName: "self", expected: "self"},
		{name: "imported", namespace: "App", typeName: "Request", expected: "Symfony\\Component\\HttpFoundation\\Request"},
		{name: "imported case insensitive", namespace: "App", typeName: "request", expected: "Symfony\\Component\\HttpFoundation\\Request"},
		{name: "alias", namespace: "App", typeName: "SymfonyResponse", expected: "Symfony\\Component\\HttpFoundation\\Response"},
		{name: "imported namespace prefix", namespace: "App", typeName: "DBAL\\Connection", expected: "Doctrine\\DBAL\\Connection"},
		{name: "current namespace", namespace: "App\\Product", typeName: "ProductEntity", expected: "App\\Product\\ProductEntity"},
		{name: "qualified relative", namespace: "App", typeName: "Entity\\Product", expected: "App\\Entity\\Product"},
		{name: "fully qualified", namespace: "App", typeName: "\\Shopware\\Core\\Category", expected: "Shopware\\Core\\Category"},
		{name: "namespace keyword", namespace: "App", typeName: "namespace\\Foo", expected: "App\\Foo"},
		{name: "global code", namespace: "", typeName: "ProductEntity", expected: "ProductEntity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewAliasResolver(tt.namespace, uses)
			assert.Equal(t, tt.expected, resolver.ResolveType(tt.typeName))
		})
	}
}

func TestAliasResolver_FunctionsAndConstants(t *testing.T) {
	resolver := NewAliasResolver("App", []UseStatement{
		{Alias: "helper", Name: "Lib\\Util\\helper", Kind: SymbolFunction},
		{Alias: "VERSION", Name: "Lib\\Config\\VERSION", Kind: SymbolConstant},
		{Alias: "Util", Name: "Lib\\Util"},
	})

	assert.Equal(t, "App", resolver.Namespace())

	assert.Equal(t, "Lib\\Util\\helper", resolver.ResolveFunction("helper"))
	assert.Equal(t, "Lib\\Util\\helper", resolver.ResolveFunction("HELPER"))
	assert.Equal(t, "App\\strlen", resolver.ResolveFunction("strlen"))
	assert.Equal(t, "strlen", resolver.ResolveFunction("\\strlen"))
	assert.Equal(t, "Lib\\Util\\format", resolver.ResolveFunction("Util\\format"))

	assert.Equal(t, "Lib\\Config\\VERSION", resolver.ResolveConstant("VERSION"))
	assert.Equal(t, "App\\version", resolver.ResolveConstant("version"))

	// class imports do not leak into functions
	assert.Equal(t, "App\\Util", resolver.ResolveFunction("Util"))
}

func TestIsPrimitiveType(t *testing.T) {
	for _, typeName := range []string{"string", "INT", "integer", "float", "bool", "array", "mixed", "null", "list", "class-string"} {
		assert.True(t, IsPrimitiveType(typeName), typeName)
	}
	for _, typeName := range []string{"Request", "App\\Entity\\Product", "self", "static", "$this"} {
		assert.False(t, IsPrimitiveType(typeName), typeName)
	}
}

func TestIsSpecialType(t *testing.T) {
	for _, typeName := range []string{"self", "Static", "parent", "$this"} {
		assert.True(t, IsSpecialType(typeName), typeName)
	}
	for _, typeName := range []string{"string", "Request", "this"} {
		assert.False(t, IsSpecialType(typeName), typeName)
	}
}
