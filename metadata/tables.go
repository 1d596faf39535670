package metadata

import "fmt"

// TableID identifies one of the ECMA-335 metadata tables
type TableID uint8

const (
	TableModule                 TableID = 0x00
	TableTypeRef                TableID = 0x01
	TableTypeDef                TableID = 0x02
	TableFieldPtr               TableID = 0x03
	TableField                  TableID = 0x04
	TableMethodPtr              TableID = 0x05
	TableMethodDef              TableID = 0x06
	TableParamPtr               TableID = 0x07
	TableParam                  TableID = 0x08
	TableInterfaceImpl          TableID = 0x09
	TableMemberRef              TableID = 0x0A
	TableConstant               TableID = 0x0B
	TableCustomAttribute        TableID = 0x0C
	TableFieldMarshal           TableID = 0x0D
	TableDeclSecurity           TableID = 0x0E
	TableClassLayout            TableID = 0x0F
	TableFieldLayout            TableID = 0x10
	TableStandAloneSig          TableID = 0x11
	TableEventMap               TableID = 0x12
	TableEventPtr               TableID = 0x13
	TableEvent                  TableID = 0x14
	TablePropertyMap            TableID = 0x15
	TablePropertyPtr            TableID = 0x16
	TableProperty               TableID = 0x17
	TableMethodSemantics        TableID = 0x18
	TableMethodImpl             TableID = 0x19
	TableModuleRef              TableID = 0x1A
	TableTypeSpec               TableID = 0x1B
	TableImplMap                TableID = 0x1C
	TableFieldRVA               TableID = 0x1D
	TableEncLog                 TableID = 0x1E
	TableEncMap                 TableID = 0x1F
	TableAssembly               TableID = 0x20
	TableAssemblyProcessor      TableID = 0x21
	TableAssemblyOS             TableID = 0x22
	TableAssemblyRef            TableID = 0x23
	TableAssemblyRefProcessor   TableID = 0x24
	TableAssemblyRefOS          TableID = 0x25
	TableFile                   TableID = 0x26
	TableExportedType           TableID = 0x27
	TableManifestResource       TableID = 0x28
	TableNestedClass            TableID = 0x29
	TableGenericParam           TableID = 0x2A
	TableMethodSpec             TableID = 0x2B
	TableGenericParamConstraint TableID = 0x2C

	// NumTables is the number of defined tables
	NumTables = 0x2D

	noTable TableID = 0xFF
)

// MaxRows caps the row count of any single table
const MaxRows = 1 << 24

var tableNames = [NumTables]string{
	"Module", "TypeRef", "TypeDef", "FieldPtr", "Field", "MethodPtr", "MethodDef", "ParamPtr",
	"Param", "InterfaceImpl", "MemberRef", "Constant", "CustomAttribute", "FieldMarshal",
	"DeclSecurity", "ClassLayout", "FieldLayout", "StandAloneSig", "EventMap", "EventPtr",
	"Event", "PropertyMap", "PropertyPtr", "Property", "MethodSemantics", "MethodImpl",
	"ModuleRef", "TypeSpec", "ImplMap", "FieldRVA", "EncLog", "EncMap", "Assembly",
	"AssemblyProcessor", "AssemblyOS", "AssemblyRef", "AssemblyRefProcessor", "AssemblyRefOS",
	"File", "ExportedType", "ManifestResource", "NestedClass", "GenericParam", "MethodSpec",
	"GenericParamConstraint",
}

func (t TableID) String() string {
	if int(t) < NumTables {
		return tableNames[t]
	}
	return fmt.Sprintf("Table(0x%02x)", uint8(t))
}

// CodedIndex identifies a coded index family (ECMA-335 II.24.2.6)
type CodedIndex uint8

const (
	CodedTypeDefOrRef CodedIndex = iota
	CodedHasConstant
	CodedHasCustomAttribute
	CodedHasFieldMarshal
	CodedHasDeclSecurity
	CodedMemberRefParent
	CodedHasSemantics
	CodedMethodDefOrRef
	CodedMemberForwarded
	CodedImplementation
	CodedCustomAttributeType
	CodedResolutionScope
	CodedTypeOrMethodDef
)

type codedInfo struct {
	name   string
	tables []TableID
	bits   uint
}

var codedIndexes = [...]codedInfo{
	CodedTypeDefOrRef: {"TypeDefOrRef", []TableID{TableTypeDef, TableTypeRef, TableTypeSpec}, 2},
	CodedHasConstant:  {"HasConstant", []TableID{TableField, TableParam, TableProperty}, 2},
	CodedHasCustomAttribute: {"HasCustomAttribute", []TableID{
		TableMethodDef, TableField, TableTypeRef, TableTypeDef, TableParam, TableInterfaceImpl,
		TableMemberRef, TableModule, TableDeclSecurity, TableProperty, TableEvent, TableStandAloneSig,
		TableModuleRef, TableTypeSpec, TableAssembly, TableAssemblyRef, TableFile, TableExportedType,
		TableManifestResource, TableGenericParam, TableGenericParamConstraint, TableMethodSpec,
	}, 5},
	CodedHasFieldMarshal:     {"HasFieldMarshal", []TableID{TableField, TableParam}, 1},
	CodedHasDeclSecurity:     {"HasDeclSecurity", []TableID{TableTypeDef, TableMethodDef, TableAssembly}, 2},
	CodedMemberRefParent:     {"MemberRefParent", []TableID{TableTypeDef, TableTypeRef, TableModuleRef, TableMethodDef, TableTypeSpec}, 3},
	CodedHasSemantics:        {"HasSemantics", []TableID{TableEvent, TableProperty}, 1},
	CodedMethodDefOrRef:      {"MethodDefOrRef", []TableID{TableMethodDef, TableMemberRef}, 1},
	CodedMemberForwarded:     {"MemberForwarded", []TableID{TableField, TableMethodDef}, 1},
	CodedImplementation:      {"Implementation", []TableID{TableFile, TableAssemblyRef, TableExportedType}, 2},
	CodedCustomAttributeType: {"CustomAttributeType", []TableID{noTable, noTable, TableMethodDef, TableMemberRef, noTable}, 3},
	CodedResolutionScope:     {"ResolutionScope", []TableID{TableModule, TableModuleRef, TableAssemblyRef, TableTypeRef}, 2},
	CodedTypeOrMethodDef:     {"TypeOrMethodDef", []TableID{TableTypeDef, TableMethodDef}, 1},
}

func (c CodedIndex) String() string {
	if int(c) < len(codedIndexes) {
		return codedIndexes[c].name
	}
	return fmt.Sprintf("CodedIndex(%d)", uint8(c))
}

// Decode splits a raw coded index value into its target table and 1-based row.
func (c CodedIndex) Decode(v uint32) (TableID, uint32, bool) {
	info := codedIndexes[c]
	tag := v & (1<<info.bits - 1)
	if int(tag) >= len(info.tables) || info.tables[tag] == noTable {
		return noTable, 0, false
	}
	return info.tables[tag], v >> info.bits, true
}

// Encode packs a table and 1-based row into a coded index value.
func (c CodedIndex) Encode(t TableID, row uint32) (uint32, bool) {
	info := codedIndexes[c]
	for tag, target := range info.tables {
		if target == t {
			return row<<info.bits | uint32(tag), true
		}
	}
	return 0, false
}

// ColumnKind describes how a column is stored
type ColumnKind uint8

const (
	ColU16 ColumnKind = iota
	ColU32
	ColString
	ColGUID
	ColBlob
	ColTable
	ColList
	ColCoded
)

// Column is one column of a table schema
type Column struct {
	Name     string
	Kind     ColumnKind
	Table    TableID    // ColTable, ColList
	Coded    CodedIndex // ColCoded
	Nullable bool       // ColTable, ColCoded: 0 permitted
}

func u16(name string) Column    { return Column{Name: name, Kind: ColU16} }
func u32(name string) Column    { return Column{Name: name, Kind: ColU32} }
func str(name string) Column    { return Column{Name: name, Kind: ColString} }
func guid(name string) Column   { return Column{Name: name, Kind: ColGUID} }
func blob(name string) Column   { return Column{Name: name, Kind: ColBlob} }
func idx(name string, t TableID) Column {
	return Column{Name: name, Kind: ColTable, Table: t}
}
func list(name string, t TableID) Column {
	return Column{Name: name, Kind: ColList, Table: t}
}
func coded(name string, c CodedIndex) Column {
	return Column{Name: name, Kind: ColCoded, Coded: c}
}
func nullable(c Column) Column {
	c.Nullable = true
	return c
}

var schemas = [NumTables][]Column{
	TableModule:        {u16("Generation"), str("Name"), guid("Mvid"), guid("EncId"), guid("EncBaseId")},
	TableTypeRef:       {nullable(coded("ResolutionScope", CodedResolutionScope)), str("TypeName"), str("TypeNamespace")},
	TableTypeDef:       {u32("Flags"), str("TypeName"), str("TypeNamespace"), nullable(coded("Extends", CodedTypeDefOrRef)), list("FieldList", TableField), list("MethodList", TableMethodDef)},
	TableFieldPtr:      {idx("Field", TableField)},
	TableField:         {u16("Flags"), str("Name"), blob("Signature")},
	TableMethodPtr:     {idx("Method", TableMethodDef)},
	TableMethodDef:     {u32("RVA"), u16("ImplFlags"), u16("Flags"), str("Name"), blob("Signature"), list("ParamList", TableParam)},
	TableParamPtr:      {idx("Param", TableParam)},
	TableParam:         {u16("Flags"), u16("Sequence"), str("Name")},
	TableInterfaceImpl: {idx("Class", TableTypeDef), coded("Interface", CodedTypeDefOrRef)},
	TableMemberRef:     {coded("Class", CodedMemberRefParent), str("Name"), blob("Signature")},
	TableConstant:      {u16("Type"), coded("Parent", CodedHasConstant), blob("Value")},
	TableCustomAttribute: {
		coded("Parent", CodedHasCustomAttribute), coded("Type", CodedCustomAttributeType), blob("Value"),
	},
	TableFieldMarshal:     {coded("Parent", CodedHasFieldMarshal), blob("NativeType")},
	TableDeclSecurity:     {u16("Action"), coded("Parent", CodedHasDeclSecurity), blob("PermissionSet")},
	TableClassLayout:      {u16("PackingSize"), u32("ClassSize"), idx("Parent", TableTypeDef)},
	TableFieldLayout:      {u32("Offset"), idx("Field", TableField)},
	TableStandAloneSig:    {blob("Signature")},
	TableEventMap:         {idx("Parent", TableTypeDef), list("EventList", TableEvent)},
	TableEventPtr:         {idx("Event", TableEvent)},
	TableEvent:            {u16("EventFlags"), str("Name"), coded("EventType", CodedTypeDefOrRef)},
	TablePropertyMap:      {idx("Parent", TableTypeDef), list("PropertyList", TableProperty)},
	TablePropertyPtr:      {idx("Property", TableProperty)},
	TableProperty:         {u16("Flags"), str("Name"), blob("Type")},
	TableMethodSemantics:  {u16("Semantics"), idx("Method", TableMethodDef), coded("Association", CodedHasSemantics)},
	TableMethodImpl:       {idx("Class", TableTypeDef), coded("MethodBody", CodedMethodDefOrRef), coded("MethodDeclaration", CodedMethodDefOrRef)},
	TableModuleRef:        {str("Name")},
	TableTypeSpec:         {blob("Signature")},
	TableImplMap:          {u16("MappingFlags"), coded("MemberForwarded", CodedMemberForwarded), str("ImportName"), idx("ImportScope", TableModuleRef)},
	TableFieldRVA:         {u32("RVA"), idx("Field", TableField)},
	TableEncLog:           {u32("Token"), u32("FuncCode")},
	TableEncMap:           {u32("Token")},
	TableAssembly:         {u32("HashAlgId"), u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"), u16("RevisionNumber"), u32("Flags"), blob("PublicKey"), str("Name"), str("Culture")},
	TableAssemblyProcessor: {u32("Processor")},
	TableAssemblyOS:       {u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion")},
	TableAssemblyRef:      {u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"), u16("RevisionNumber"), u32("Flags"), blob("PublicKeyOrToken"), str("Name"), str("Culture"), blob("HashValue")},
	TableAssemblyRefProcessor: {u32("Processor"), idx("AssemblyRef", TableAssemblyRef)},
	TableAssemblyRefOS:    {u32("OSPlatformId"), u32("OSMajorVersion"), u32("OSMinorVersion"), idx("AssemblyRef", TableAssemblyRef)},
	TableFile:             {u32("Flags"), str("Name"), blob("HashValue")},
	TableExportedType:     {u32("Flags"), u32("TypeDefId"), str("TypeName"), str("TypeNamespace"), coded("Implementation", CodedImplementation)},
	TableManifestResource: {u32("Offset"), u32("Flags"), str("Name"), nullable(coded("Implementation", CodedImplementation))},
	TableNestedClass:      {idx("NestedClass", TableTypeDef), idx("EnclosingClass", TableTypeDef)},
	TableGenericParam:     {u16("Number"), u16("Flags"), coded("Owner", CodedTypeOrMethodDef), str("Name")},
	TableMethodSpec:       {coded("Method", CodedMethodDefOrRef), blob("Instantiation")},
	TableGenericParamConstraint: {idx("Owner", TableGenericParam), coded("Constraint", CodedTypeDefOrRef)},
}

// Columns returns the schema of table t
func (t TableID) Columns() []Column {
	if int(t) >= NumTables {
		return nil
	}
	return schemas[t]
}

// Heap size flags of the #~ stream header
const (
	HeapStringWide = 0x01
	HeapGUIDWide   = 0x02
	HeapBlobWide   = 0x04
)

// Layout carries everything needed to compute column widths
type Layout struct {
	Rows      [NumTables]uint32
	HeapSizes uint8
}

// ColumnWidth returns the stored width in bytes of column c
func (l *Layout) ColumnWidth(c Column) int {
	switch c.Kind {
	case ColU16:
		return 2
	case ColU32:
		return 4
	case ColString:
		return l.heapWidth(HeapStringWide)
	case ColGUID:
		return l.heapWidth(HeapGUIDWide)
	case ColBlob:
		return l.heapWidth(HeapBlobWide)
	case ColTable, ColList:
		if l.Rows[c.Table] < 1<<16 {
			return 2
		}
		return 4
	case ColCoded:
		return l.codedWidth(c.Coded)
	}
	return 0
}

func (l *Layout) heapWidth(flag uint8) int {
	if l.HeapSizes&flag != 0 {
		return 4
	}
	return 2
}

func (l *Layout) codedWidth(c CodedIndex) int {
	info := codedIndexes[c]
	var maxRows uint32
	for _, t := range info.tables {
		if t != noTable && l.Rows[t] > maxRows {
			maxRows = l.Rows[t]
		}
	}
	if maxRows < 1<<(16-info.bits) {
		return 2
	}
	return 4
}

// RowWidth returns the width in bytes of one row of table t
func (l *Layout) RowWidth(t TableID) int {
	width := 0
	for _, c := range t.Columns() {
		width += l.ColumnWidth(c)
	}
	return width
}
