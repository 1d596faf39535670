// Package metadata reads Windows Runtime metadata (.winmd, ECMA-335).
//
// A Source is produced by Load or LoadFile and is immutable afterwards. Load
// accepts either a PE image carrying a CLI header or a bare metadata root,
// decodes the heaps and all 45 tables, and validates every heap index, table
// index and coded index before any definition is built. A Source that loads
// successfully never yields a dangling reference.
//
// Definitions are exposed as TypeDef values with their kind, members,
// generic parameters, implemented interfaces and the WinRT attributes that
// drive projection (Guid, Default, ExclusiveTo, Activatable, Static,
// Composable, Overload, Flags). Signatures decode into TypeSig trees that
// bottom out in primitives, named references, generic parameters or generic
// instances.
//
//	src, err := metadata.LoadFile("Windows.Foundation.winmd")
//	if err != nil {
//		return err
//	}
//	uri, ok := src.LookupType("Windows.Foundation", "Uri")
package metadata
