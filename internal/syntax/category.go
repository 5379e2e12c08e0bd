package syntax

import "strings"

// kindOverrides pins node kinds whose names would otherwise be classified
// by suffix into the wrong category.
var kindOverrides = map[string]Category{
	"func_literal":       CategoryExpression,
	"composite_literal":  CategoryExpression,
	"function_literal":   CategoryExpression,
	"object_literal":     CategoryExpression,
	"block":              CategoryStatement,
	"statement_block":    CategoryStatement,
	"compound_statement": CategoryStatement,
	"identifier":         CategoryExpression,
	"field_identifier":   CategoryExpression,
	"call":               CategoryExpression,
	"subscript":          CategoryExpression,
	"attribute":          CategoryExpression,
	"assignment":         CategoryExpression,
	"arrow_function":     CategoryExpression,
	"lambda":             CategoryExpression,
	"method":             CategoryDeclaration,
	"singleton_method":   CategoryDeclaration,
	"class":              CategoryDeclaration,
	"module":             CategoryDeclaration,
}

// bareLiterals are literal kinds used by grammars that do not suffix them.
var bareLiterals = map[string]bool{
	"string":          true,
	"template_string": true,
	"number":          true,
	"integer":         true,
	"float":           true,
	"true":            true,
	"false":           true,
	"nil":             true,
	"null":            true,
	"none":            true,
	"boolean":         true,
	"char":            true,
}

// Classify maps a concrete node kind to exactly one Category. It works on
// naming conventions shared by tree-sitter grammars, so every language the
// parser supports is covered without per-language tables.
func Classify(kind string) Category {
	if c, ok := kindOverrides[kind]; ok {
		return c
	}
	switch {
	case strings.Contains(kind, "comment"):
		return CategoryComment
	case strings.HasSuffix(kind, "_literal") || bareLiterals[kind]:
		return CategoryLiteral
	case strings.HasSuffix(kind, "_declaration"),
		strings.HasSuffix(kind, "_definition"),
		strings.HasSuffix(kind, "_item"):
		return CategoryDeclaration
	case strings.HasSuffix(kind, "_statement"):
		return CategoryStatement
	case strings.HasSuffix(kind, "_expression"):
		return CategoryExpression
	}
	return CategoryOther
}
