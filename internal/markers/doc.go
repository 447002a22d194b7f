// Package markers tokenizes the two marker grammars used by cpt.
//
// Blueprint markers live in Markdown and delimit regions of structured
// payload:
//
//	`@cpt:heading`
//	```toml
//	id = "scope"
//	level = 2
//	```
//	`@/cpt:heading`
//
// Code markers live in source comments, one per physical line:
//
//	// @cpt-flow:cpt-app-flow-login:p1
//	// @cpt-begin:cpt-app-flow-login:p1:inst-validate
//	// @cpt-end:cpt-app-flow-login:p1:inst-validate
//
// The tokenizer only classifies lines. Pairing, payload decoding and all
// structural validation belong to the blueprint and codebase packages.
package markers
