// Package ast holds the arena representation of a parsed PHP file.
//
// Nodes live in a single slice owned by a Tree and reference each other by
// index. Parent links are indices too, so the tree has no ownership cycles and
// can be shared read-only between concurrent queries.
package ast

// NodeID addresses a node inside its Tree.
type NodeID int

// None marks an absent node reference.
const None NodeID = -1

// Base carries the data every node has.
type Base struct {
	ID       NodeID
	Start    uint
	End      uint
	Line     int
	Parent   NodeID
	Children []NodeID

	// Namespace is the enclosing namespace name, empty for the global namespace.
	Namespace string

	// Doc is the leading /** */ comment attached to this node, if any.
	Doc     string
	DocLine int
}

// Meta returns the shared node data.
func (b *Base) Meta() *Base { return b }

func (b *Base) sealed() {}

// Contains reports whether offset falls inside the node span.
func (b *Base) Contains(offset uint) bool {
	return b.Start <= offset && offset < b.End
}

// Node is the closed set of syntactic variants. Code switching over nodes
// handles *Other for anything it does not know.
type Node interface {
	Meta() *Base
	sealed()
}

type File struct{ Base }

type Namespace struct {
	Base
	Name string
}

type ClassLikeKind int

const (
	KindClass ClassLikeKind = iota
	KindInterface
	KindTrait
	KindEnum
)

func (k ClassLikeKind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindTrait:
		return "trait"
	case KindEnum:
		return "enum"
	default:
		return "class"
	}
}

// ClassLike is a class, interface, trait or enum declaration. Anonymous
// classes have an empty Name.
type ClassLike struct {
	Base
	Name       string
	Kind       ClassLikeKind
	Extends    []string
	Implements []string
}

type FunctionKind int

const (
	KindFunction FunctionKind = iota
	KindMethod
	KindClosure
	KindArrowFunction
)

// FunctionLike is a function, method, closure or arrow function.
type FunctionLike struct {
	Base
	Name       string
	Kind       FunctionKind
	Params     []NodeID
	Captures   []string
	ReturnType string
	Static     bool
}

// Parameter is a formal parameter. Name has no leading "$".
type Parameter struct {
	Base
	Name     string
	Type     string
	Variadic bool
	Promoted bool
}

type If struct {
	Base
	Cond NodeID
}

type ElseIf struct {
	Base
	Cond NodeID
}

type Else struct{ Base }

// Ternary is `cond ? then : else`. Then is None for the short form `?:`.
type Ternary struct {
	Base
	Cond NodeID
	Then NodeID
	Else NodeID
}

type Foreach struct {
	Base
	Source      NodeID
	Key         NodeID
	Value       NodeID
	ValueIsList bool
}

// Catch is a catch clause. Var is empty for catches without a variable.
type Catch struct {
	Base
	Types []string
	Var   string
}

// Assign covers plain, by-reference and compound assignments. Op is "=" for
// the plain and by-reference forms.
type Assign struct {
	Base
	Target NodeID
	Value  NodeID
	Op     string
	ByRef  bool
}

type Binary struct {
	Base
	Op    string
	Left  NodeID
	Right NodeID
}

type Unary struct {
	Base
	Op      string
	Operand NodeID
}

type Instanceof struct {
	Base
	Expr  NodeID
	Class NodeID
}

type Cast struct {
	Base
	Type  string
	Value NodeID
}

// Variable is `$name`. Name is empty for variable variables.
type Variable struct {
	Base
	Name string
}

type LiteralKind int

const (
	LiteralInt LiteralKind = iota
	LiteralFloat
	LiteralString
	LiteralBool
	LiteralNull
)

type Literal struct {
	Base
	Kind  LiteralKind
	Value string
}

// ConstFetch is a bare name used as a value.
type ConstFetch struct {
	Base
	Name string
}

// Name is a name in class or function position, including self, static and parent.
type Name struct {
	Base
	Name string
}

type New struct {
	Base
	Class NodeID
	Args  []NodeID
}

type Clone struct {
	Base
	Expr NodeID
}

type Array struct{ Base }

// Call is a function call. Callee is a *Name for literal callees.
type Call struct {
	Base
	Callee NodeID
	Args   []NodeID
}

// MethodCall is an instance, nullsafe or static method call. Member is empty
// when the method name is dynamic.
type MethodCall struct {
	Base
	Receiver NodeID
	Member   string
	Static   bool
	NullSafe bool
	Args     []NodeID
}

// PropertyFetch is an instance, nullsafe or static property access. Member has
// no leading "$" and is empty when the property name is dynamic.
type PropertyFetch struct {
	Base
	Receiver NodeID
	Member   string
	Static   bool
	NullSafe bool
}

type ClassConstFetch struct {
	Base
	Class  NodeID
	Member string
}

// Other is any construct without a dedicated variant. Kind is the grammar kind.
type Other struct {
	Base
	Kind string
}
