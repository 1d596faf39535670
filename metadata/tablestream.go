package metadata

import (
	"fmt"

	"fortio.org/safecast"

	mdbinary "github.com/wippyai/winrt-bindgen/metadata/internal/binary"
)

// table is the decoded row data of one metadata table.
// Cells are stored row-major; rows are 1-based at the API boundary.
type table struct {
	cells []uint32
	rows  uint32
	cols  int
}

// get returns column col of 1-based row.
func (t *table) get(row uint32, col int) uint32 {
	return t.cells[int(row-1)*t.cols+col]
}

// tableSet is the decoded #~ stream
type tableSet struct {
	layout Layout
	tables [NumTables]table
}

func (ts *tableSet) rows(id TableID) uint32 {
	return ts.tables[id].rows
}

// decodeTables parses the #~ stream and validates every cell against the heaps
// and the row counts of the referenced tables.
func decodeTables(data []byte, h *heaps) (*tableSet, error) {
	br := getReader(data)
	defer putReader(br)
	r := mdbinary.NewReader(br)

	if err := r.Skip(4); err != nil { // reserved
		return nil, r.WrapError("#~", err)
	}
	major, err := r.ReadByte()
	if err != nil {
		return nil, r.WrapError("#~", err)
	}
	if major != 2 && major != 1 {
		return nil, r.WrapError("#~", fmt.Errorf("unsupported table schema version %d", major))
	}
	if err := r.Skip(1); err != nil { // minor
		return nil, r.WrapError("#~", err)
	}
	heapSizes, err := r.ReadByte()
	if err != nil {
		return nil, r.WrapError("#~", err)
	}
	if err := r.Skip(1); err != nil { // reserved
		return nil, r.WrapError("#~", err)
	}
	valid, err := r.ReadU64LE()
	if err != nil {
		return nil, r.WrapError("#~", err)
	}
	if _, err := r.ReadU64LE(); err != nil { // sorted
		return nil, r.WrapError("#~", err)
	}
	if valid>>NumTables != 0 {
		return nil, r.WrapError("#~", fmt.Errorf("valid mask 0x%x names undefined tables", valid))
	}

	ts := &tableSet{layout: Layout{HeapSizes: heapSizes}}
	for id := 0; id < NumTables; id++ {
		if valid&(1<<uint(id)) == 0 {
			continue
		}
		n, err := r.ReadU32LE()
		if err != nil {
			return nil, r.WrapError("#~ row counts", err)
		}
		if n > MaxRows {
			return nil, r.WrapError("#~ row counts", fmt.Errorf("table %s has %d rows, limit is %d", TableID(id), n, MaxRows))
		}
		ts.layout.Rows[id] = n
	}

	need := 0
	for id := 0; id < NumTables; id++ {
		need += int(ts.layout.Rows[id]) * ts.layout.RowWidth(TableID(id))
	}
	if remaining := r.Len(); need > remaining {
		return nil, r.WrapError("#~", fmt.Errorf("row data needs %d bytes, stream has %d", need, remaining))
	}

	for id := 0; id < NumTables; id++ {
		tid := TableID(id)
		cols := tid.Columns()
		rows := ts.layout.Rows[id]
		t := table{rows: rows, cols: len(cols), cells: make([]uint32, int(rows)*len(cols))}
		for row := 0; row < int(rows); row++ {
			for c, col := range cols {
				v, err := readCell(r, &ts.layout, col)
				if err != nil {
					return nil, r.WrapError(tid.String(), err)
				}
				t.cells[row*len(cols)+c] = v
			}
		}
		ts.tables[id] = t
	}

	if err := ts.validate(h); err != nil {
		return nil, err
	}
	return ts, nil
}

func readCell(r *mdbinary.Reader, l *Layout, col Column) (uint32, error) {
	switch l.ColumnWidth(col) {
	case 2:
		v, err := r.ReadU16LE()
		return uint32(v), err
	default:
		return r.ReadU32LE()
	}
}

// validate checks every heap index, simple index and coded index.
// A table set that passes never produces dangling references.
func (ts *tableSet) validate(h *heaps) error {
	for id := 0; id < NumTables; id++ {
		tid := TableID(id)
		t := &ts.tables[id]
		for row := uint32(1); row <= t.rows; row++ {
			for c, col := range tid.Columns() {
				v := t.get(row, c)
				if err := ts.checkCell(h, col, v); err != nil {
					return fmt.Errorf("%s row %d column %s: %w", tid, row, col.Name, err)
				}
				if col.Kind == ColList && row > 1 && v < t.get(row-1, c) {
					return fmt.Errorf("%s row %d column %s: list start %d precedes previous row", tid, row, col.Name, v)
				}
			}
		}
	}
	return nil
}

func (ts *tableSet) checkCell(h *heaps, col Column, v uint32) error {
	switch col.Kind {
	case ColString:
		return h.checkString(v)
	case ColBlob:
		return h.checkBlob(v)
	case ColGUID:
		return h.checkGUID(v)
	case ColList:
		if v == 0 || v > ts.rows(col.Table)+1 {
			return fmt.Errorf("list index %d outside [1, %d]", v, ts.rows(col.Table)+1)
		}
	case ColTable:
		if v == 0 && col.Nullable {
			return nil
		}
		if v == 0 || v > ts.rows(col.Table) {
			return fmt.Errorf("%s index %d outside [1, %d]", col.Table, v, ts.rows(col.Table))
		}
	case ColCoded:
		if v == 0 && col.Nullable {
			return nil
		}
		target, row, ok := col.Coded.Decode(v)
		if !ok {
			return fmt.Errorf("invalid %s tag in 0x%x", col.Coded, v)
		}
		if row == 0 || row > ts.rows(target) {
			return fmt.Errorf("%s points at %s row %d of %d", col.Coded, target, row, ts.rows(target))
		}
	}
	return nil
}

// listRange returns the half-open 1-based row range [start, end) that row of
// table owner owns in the list column col.
func (ts *tableSet) listRange(owner TableID, row uint32, col int, target TableID) (uint32, uint32) {
	t := &ts.tables[owner]
	start := t.get(row, col)
	end := ts.rows(target) + 1
	if row < t.rows {
		end = t.get(row+1, col)
	}
	if end < start {
		end = start
	}
	return start, end
}

// rowCount reports the number of rows as an int for iteration.
func (ts *tableSet) rowCount(id TableID) int {
	n, err := safecast.Conv[int](ts.tables[id].rows)
	if err != nil {
		return 0
	}
	return n
}
