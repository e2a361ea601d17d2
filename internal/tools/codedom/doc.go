// Package codedom provides the code tools: generation, segment and
// structured edits, suggestion parsing, and tree-sitter backed analysis.
//
// Tools:
//   - generate_code: Write generated code to a file
//   - modify_code: Replace a code segment, falling back to a fuzzy match
//   - parse_diff_suggestions: Extract structured changes from prose
//   - apply_changes: Apply structured changes bottom-up
//   - analyze_code: Outline and lint Python, Go and JavaScript sources
package codedom
