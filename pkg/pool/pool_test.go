package pool

import (
	"testing"

	"github.com/ajitpratap0/adagent/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestPool_ResetsOnPut(t *testing.T) {
	type item struct{ n int }
	resets := 0
	p := New(func() *item { return &item{} }, func(i *item) {
		i.n = 0
		resets++
	})

	obj := p.Get()
	obj.n = 42
	_, inUse, _ := p.Stats()
	assert.Equal(t, int64(1), inUse)

	p.Put(obj)
	assert.Equal(t, 0, obj.n)
	assert.Equal(t, 1, resets)

	allocated, inUse, _ := p.Stats()
	assert.Equal(t, int64(1), allocated)
	assert.Equal(t, int64(0), inUse)
}

func TestRecordBatchPool(t *testing.T) {
	b := GetRecordBatch()
	assert.Equal(t, 0, b.Size())
	assert.GreaterOrEqual(t, cap(b.Records), DefaultBatchCapacity)

	b.AddRecord(models.NewRecord("meta", map[string]interface{}{"id": 1}))
	b.AddRecord(models.NewRecord("meta", map[string]interface{}{"id": 2}))
	assert.Equal(t, 2, b.Size())

	PutRecordBatch(b)
	assert.Equal(t, 0, b.Size())
	// the backing array no longer references released records
	assert.Nil(t, b.Records[:2][0])

	PutRecordBatch(nil)
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("resources:\n")
	PutBuffer(buf)
	assert.Equal(t, 0, buf.Len())

	big := GetBuffer()
	big.Grow(2 * maxPooledBuffer)
	PutBuffer(big)
	PutBuffer(nil)
}
