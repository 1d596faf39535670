// Package layout computes the native memory layout of WinRT structs.
//
// Struct fields are first lowered to WIT value types, then measured with
// C-style rules: every field is aligned to its natural alignment and the
// total size is rounded up to the largest field alignment.
//
// # Lowering
//
//   - Boolean, UInt8, Int8: u8 / s8
//   - Char16, Int16, UInt16: u16 / s16
//   - Int32, UInt32, Single, enums: s32 / u32 / f32
//   - Int64, UInt64, Double: s64 / u64 / f64
//   - String, Object, interfaces, IReference<T>: u64 handle
//   - System.Guid: record { u32, u16, u16, tuple<u8 x 8> }
//   - nested structs: records
//
// Handles are pointer sized; layouts assume a 64-bit target.
//
// This package is internal to the synthesizer.
package layout
