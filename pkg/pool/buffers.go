package pool

import (
	"bytes"

	"github.com/ajitpratap0/adagent/pkg/models"
)

// DefaultBatchCapacity is the capacity of pooled record batches.
const DefaultBatchCapacity = 500

// maxPooledBuffer keeps oversized buffers out of the pool.
const maxPooledBuffer = 1 << 20

var (
	batchPool = New(
		func() *models.RecordBatch { return models.NewRecordBatch(DefaultBatchCapacity) },
		func(b *models.RecordBatch) {
			clear(b.Records)
			b.Reset()
		},
	)

	bufferPool = New(
		func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
		func(b *bytes.Buffer) { b.Reset() },
	)
)

// GetRecordBatch returns an empty batch with DefaultBatchCapacity.
func GetRecordBatch() *models.RecordBatch {
	return batchPool.Get()
}

// PutRecordBatch returns a batch to the pool. The batch must not be used
// afterwards.
func PutRecordBatch(b *models.RecordBatch) {
	if b == nil {
		return
	}
	batchPool.Put(b)
}

// GetBuffer returns an empty byte buffer.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get()
}

// PutBuffer returns buf to the pool unless it has grown past 1MB.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}
