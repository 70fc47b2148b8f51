// Package models provides the record type produced by extraction drivers.
package models

// SourceField is the key every extracted record is tagged with.
const SourceField = "source"

// Record is one record mapping extracted from an upstream API.
type Record map[string]interface{}

// NewRecord copies data into a record tagged with the given source.
func NewRecord(source string, data map[string]interface{}) Record {
	r := make(Record, len(data)+1)
	for k, v := range data {
		r[k] = v
	}
	r[SourceField] = source
	return r
}

// Source returns the record's source tag.
func (r Record) Source() string {
	s, _ := r[SourceField].(string)
	return s
}

// Key returns the value of the primary key field and whether it is present.
func (r Record) Key(field string) (interface{}, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// RecordBatch collects records for bulk writes.
type RecordBatch struct {
	Records []Record
}

// NewRecordBatch creates a new record batch with the specified capacity.
func NewRecordBatch(capacity int) *RecordBatch {
	return &RecordBatch{Records: make([]Record, 0, capacity)}
}

// AddRecord appends a record to the batch.
func (rb *RecordBatch) AddRecord(r Record) {
	rb.Records = append(rb.Records, r)
}

// Reset clears the batch for reuse without deallocating memory.
func (rb *RecordBatch) Reset() {
	rb.Records = rb.Records[:0]
}

// Size returns the current number of records in the batch.
func (rb *RecordBatch) Size() int {
	return len(rb.Records)
}
