package php

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClassNotFound is returned by Build for unknown class-likes.
var ErrClassNotFound = errors.New("class-like not found")

// SymbolSource is a read-only lookup of declared symbols by fully qualified
// name. Lookups are case insensitive for classes and functions.
type SymbolSource interface {
	GetClass(fqcn string) (*PHPClass, bool)
	GetFunction(fqn string) (*PHPFunction, bool)
	GetConstant(fqn string) (*PHPConstant, bool)
}

// ClassProvider builds a class-like with all inherited members merged in.
type ClassProvider interface {
	Build(fqcn string) (*PHPClass, error)
}

type FunctionProvider interface {
	GetFunction(fqn string) (*PHPFunction, bool)
}

type ConstantProvider interface {
	GetConstant(fqn string) (*PHPConstant, bool)
}

// Catalog chains symbol sources; the first source knowing a name wins. It is
// the ClassProvider, FunctionProvider and ConstantProvider handed to the
// type deducer.
type Catalog struct {
	sources []SymbolSource
}

func NewCatalog(sources ...SymbolSource) *Catalog {
	return &Catalog{sources: sources}
}

func (c *Catalog) GetClass(fqcn string) (*PHPClass, bool) {
	for _, source := range c.sources {
		if class, ok := source.GetClass(fqcn); ok {
			return class, true
		}
	}
	return nil, false
}

func (c *Catalog) GetFunction(fqn string) (*PHPFunction, bool) {
	for _, source := range c.sources {
		if fn, ok := source.GetFunction(fqn); ok {
			return fn, true
		}
	}
	return nil, false
}

func (c *Catalog) GetConstant(fqn string) (*PHPConstant, bool) {
	for _, source := range c.sources {
		if constant, ok := source.GetConstant(fqn); ok {
			return constant, true
		}
	}
	return nil, false
}

func (c *Catalog) Build(fqcn string) (*PHPClass, error) {
	return NewClassBuilder(c).Build(fqcn)
}

// ClassBuilder merges inherited members into a class-like. Own members win
// over trait members, which win over parent members, which win over
// interface members. Private parent members are not inherited.
type ClassBuilder struct {
	source SymbolSource
	cache  map[string]*PHPClass
}

func NewClassBuilder(source SymbolSource) *ClassBuilder {
	return &ClassBuilder{
		source: source,
		cache:  make(map[string]*PHPClass),
	}
}

func (b *ClassBuilder) Build(fqcn string) (*PHPClass, error) {
	return b.build(fqcn, make(map[string]bool))
}

func (b *ClassBuilder) build(fqcn string, visiting map[string]bool) (*PHPClass, error) {
	key := ClassKey(fqcn)
	if cached, ok := b.cache[key]; ok {
		return cached, nil
	}
	if visiting[key] {
		return nil, fmt.Errorf("inheritance cycle at %s: %w", fqcn, ErrClassNotFound)
	}
	visiting[key] = true
	defer delete(visiting, key)

	declared, ok := b.source.GetClass(fqcn)
	if !ok {
		return nil, fmt.Errorf("%s: %w", fqcn, ErrClassNotFound)
	}

	merged := copyClass(declared)

	for _, trait := range declared.Traits {
		if built, err := b.build(trait, visiting); err == nil {
			mergeMembers(&merged, built, true)
		}
	}

	for _, parent := range declared.Parents {
		built, err := b.build(parent, visiting)
		if err != nil {
			continue
		}
		mergeMembers(&merged, built, false)
		merged.Interfaces = appendUnique(merged.Interfaces, built.Interfaces...)
		if declared.Kind != ClassKindInterface {
			merged.Parents = appendUnique(merged.Parents, built.Parents...)
		}
	}

	for _, iface := range declared.Interfaces {
		built, err := b.build(iface, visiting)
		if err != nil {
			continue
		}
		mergeMembers(&merged, built, false)
		merged.Interfaces = appendUnique(merged.Interfaces, built.Interfaces...)
		if built.Kind == ClassKindInterface {
			merged.Interfaces = appendUnique(merged.Interfaces, built.Parents...)
		}
	}

	b.cache[key] = &merged
	return &merged, nil
}

func copyClass(c *PHPClass) PHPClass {
	out := *c
	out.Parents = append([]string(nil), c.Parents...)
	out.Interfaces = append([]string(nil), c.Interfaces...)
	out.Traits = append([]string(nil), c.Traits...)
	out.Methods = make(map[string]PHPMethod, len(c.Methods))
	for k, v := range c.Methods {
		out.Methods[k] = v
	}
	out.Properties = make(map[string]PHPProperty, len(c.Properties))
	for k, v := range c.Properties {
		out.Properties[k] = v
	}
	out.Constants = make(map[string]PHPClassConstant, len(c.Constants))
	for k, v := range c.Constants {
		out.Constants[k] = v
	}
	return out
}

func mergeMembers(into *PHPClass, from *PHPClass, includePrivate bool) {
	for k, m := range from.Methods {
		if _, exists := into.Methods[k]; exists {
			continue
		}
		if m.Visibility == Private && !includePrivate {
			continue
		}
		into.Methods[k] = m
	}
	for k, p := range from.Properties {
		if _, exists := into.Properties[k]; exists {
			continue
		}
		if p.Visibility == Private && !includePrivate {
			continue
		}
		into.Properties[k] = p
	}
	for k, c := range from.Constants {
		if _, exists := into.Constants[k]; !exists {
			into.Constants[k] = c
		}
	}
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if strings.EqualFold(existing, item) {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
