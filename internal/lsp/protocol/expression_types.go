package protocol

// ExpressionTypesParams are the parameters of the php/expressionTypes request
type ExpressionTypesParams struct {
	TextDocumentPositionParams

	// IncludeVariables adds the types of every tracked variable in scope
	IncludeVariables bool `json:"includeVariables,omitempty"`
}

// ExpressionTypesResult lists the candidate types of the expression at a
// position. Expression and Range are empty when the position is not inside
// an expression.
type ExpressionTypesResult struct {
	Expression string              `json:"expression"`
	Kind       string              `json:"kind,omitempty"`
	Range      *Range              `json:"range,omitempty"`
	Types      []string            `json:"types"`
	Variables  map[string][]string `json:"variables,omitempty"`
}
