// Package generic specializes WinRT generic interface and delegate templates.
//
// An Instantiator turns a template definition and a list of closed type
// arguments into an Instance: the template's members with every generic
// parameter substituted, a canonical key and the interface identifier
// derived from the WinRT type signature:
//
//	pinterface({faa585ea-6214-4217-afda-7f46de5869b3};string)
//
// hashed as a version 5 UUID in the 11f47ad5-7b73-42c0-abae-878b1e16adee
// namespace. Identical requests converge on one Instance.
package generic
