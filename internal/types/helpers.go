// internal/types/helpers.go
package types

/*
 * Declarative helper invocations.
 *
 * A HelperCall is the unit handed to the builder: target field, helper name,
 * raw argument strings. An Asset groups calls into a check stage (all must
 * pass) and a normalize stage (applied in order). These types carry no
 * behaviour; compilation happens in internal/rules and internal/asset.
 */

// HelperCall is one `<target>: +<helper>/<arg>/<arg>` entry.
type HelperCall struct {
	Target string   // "/a/b" form
	Helper string   // registered helper name
	Args   []string // raw argument text, classified at build time
}

// Asset is a named pipeline definition (decoder, rule or filter).
type Asset struct {
	Name      string
	Check     []HelperCall
	Normalize []HelperCall
}
