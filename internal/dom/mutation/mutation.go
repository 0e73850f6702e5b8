// Package mutation defines the records a document hands to its observers
package mutation

// Op is the kind of change a record describes
type Op string

const (
	OpInsert  Op = "insert"
	OpRemove  Op = "remove"
	OpText    Op = "text"
	OpAttr    Op = "attr"
	OpAttrDel Op = "attr_del"
)

// Record is one change to a document
type Record struct {
	Op       Op
	XPath    string
	NodeType int // 1 element, 3 text, 8 comment
	Tag      string
	Name     string // attribute name
	Value    string
	OldValue string
}

// mergeable reports whether next overwrites the same attribute or text as r
func (r Record) mergeable(next Record) bool {
	switch r.Op {
	case OpAttr:
		return next.Op == OpAttr && next.XPath == r.XPath && next.Name == r.Name
	case OpText:
		return next.Op == OpText && next.XPath == r.XPath
	}
	return false
}

// Compress folds runs of attribute or text records on the same target into
// one record holding the last value and the first old value. Inserts and
// removals are kept as they are.
func Compress(records []Record) []Record {
	if len(records) <= 1 {
		return records
	}

	out := make([]Record, 0, len(records))
	for i := 0; i < len(records); {
		rec := records[i]
		j := i + 1
		for j < len(records) && rec.mergeable(records[j]) {
			rec.Value = records[j].Value
			j++
		}
		out = append(out, rec)
		i = j
	}
	return out
}

// Structural reports whether any record changed the shape of the tree
func Structural(records []Record) bool {
	for _, r := range records {
		if r.Op == OpInsert || r.Op == OpRemove {
			return true
		}
	}
	return false
}
