// Package lang compiles htmlpp templates: HTML-like markup extended with
// custom tags that define, invoke, and compose reusable fragments.
//
// # Markup
//
// Custom tags carry a marker prefix, "@" by default. Every other character of
// the input, including ordinary HTML, is literal text.
//
//	<@def name="box">
//	  <div class="box"><@yield/></div>
//	</@def>
//
//	<@box class:add="wide">hello</@box>
//
// renders as
//
//	<div class="box wide">hello</div>
//
// The reserved tags are:
//
//   - def: defines a procedure named by its name attribute. The remaining
//     attributes are defaults merged onto the first start tag of its content.
//   - yield: renders the block named by its name attribute, "body" by default.
//   - import: binds the module named by its module attribute to an alias,
//     the module name unless an alias attribute is given.
//   - block: supplies a named block to the enclosing command.
//
// Any other tag is a command invoking a definition. A command name of the form
// "alias:name" invokes the top-level definition name of an imported module.
// Content inside a command that is not a block becomes its "body" block. A
// child tag named "<command>.<block>", or an attribute ":<block>" on the
// command, supplies the named block.
//
// # Attributes
//
// Attributes passed by a command replace those of the same key on the
// definition's first start tag. A key ending in ":add" appends to the
// existing value, and a key ending in ":del" removes a substring from it.
//
// # Pipeline
//
// [ParseString] lexes the input with a [Lexer] and builds a [Node] tree.
// [Compile] generates a [Unit]: a table of [Procedure] values, each a
// sequence of steps closed over their literal text and names. [Unit.Render]
// executes the entry procedure with a [Context] that resolves imports through
// a [Resolver] and a [Frame] chain that binds block names to renderers.
package lang
