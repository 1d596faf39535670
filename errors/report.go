package errors

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Rejection pairs a requested root with one reason it cannot be generated
type Rejection struct {
	Err  *Error
	Root string
	Type string
}

// RejectionReport collects every generation-time failure of a run.
// Failures are never short-circuited: a caller sees every broken root.
// Safe for concurrent Add.
type RejectionReport struct {
	rejections   []Rejection
	dependencies []Rejection
	mu           sync.Mutex
}

// NewRejectionReport creates an empty report
func NewRejectionReport() *RejectionReport {
	return &RejectionReport{}
}

// Add records err against root. Duplicate (root, type, kind) entries are dropped.
func (r *RejectionReport) Add(root string, err *Error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections = appendUnique(r.rejections, Rejection{Root: root, Type: err.Type, Err: err})
}

// AddDependency records a failure found while eagerly validating a
// dependency source. Such failures do not reject any root.
func (r *RejectionReport) AddDependency(err *Error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dependencies = appendUnique(r.dependencies, Rejection{Type: err.Type, Err: err})
}

func appendUnique(list []Rejection, rej Rejection) []Rejection {
	for _, existing := range list {
		if existing.Root == rej.Root && existing.Type == rej.Type && existing.Err.Kind == rej.Err.Kind {
			return list
		}
	}
	return append(list, rej)
}

// Empty reports whether no root was rejected
func (r *RejectionReport) Empty() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rejections) == 0
}

// Rejections returns all root rejections sorted by root then type
func (r *RejectionReport) Rejections() []Rejection {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := make([]Rejection, len(r.rejections))
	copy(out, r.rejections)
	r.mu.Unlock()
	sortRejections(out)
	return out
}

// Dependencies returns failures found in dependency sources
func (r *RejectionReport) Dependencies() []Rejection {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := make([]Rejection, len(r.dependencies))
	copy(out, r.dependencies)
	r.mu.Unlock()
	sortRejections(out)
	return out
}

// Roots returns the sorted set of rejected roots
func (r *RejectionReport) Roots() []string {
	seen := make(map[string]bool)
	var roots []string
	for _, rej := range r.Rejections() {
		if !seen[rej.Root] {
			seen[rej.Root] = true
			roots = append(roots, rej.Root)
		}
	}
	return roots
}

// ForRoot returns the rejections recorded against root
func (r *RejectionReport) ForRoot(root string) []Rejection {
	var out []Rejection
	for _, rej := range r.Rejections() {
		if rej.Root == root {
			out = append(out, rej)
		}
	}
	return out
}

// Rejected reports whether root has at least one rejection
func (r *RejectionReport) Rejected(root string) bool {
	return len(r.ForRoot(root)) > 0
}

// Err returns the report as an error, or nil when no root was rejected
func (r *RejectionReport) Err() error {
	if r.Empty() {
		return nil
	}
	return r
}

func sortRejections(list []Rejection) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Root != list[j].Root {
			return list[i].Root < list[j].Root
		}
		if list[i].Type != list[j].Type {
			return list[i].Type < list[j].Type
		}
		return list[i].Err.Kind < list[j].Err.Kind
	})
}

// Error groups rejections by root
func (r *RejectionReport) Error() string {
	rejections := r.Rejections()
	if len(rejections) == 0 {
		return "[resolve] no roots rejected"
	}

	roots := r.Roots()
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d root(s) rejected:\n", len(roots)))

	for _, root := range roots {
		b.WriteString("\n  ")
		b.WriteString(root)
		b.WriteString(":\n")
		for _, rej := range rejections {
			if rej.Root != root {
				continue
			}
			b.WriteString("    - ")
			b.WriteString(rej.Err.Error())
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target is a rejection report
func (r *RejectionReport) Is(target error) bool {
	_, ok := target.(*RejectionReport)
	return ok
}
