package idempotency

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_FieldOrderDoesNotMatter(t *testing.T) {
	k1 := Key("idem-1", "places.search", json.RawMessage(`{"q":"pizza","radius":5}`))
	k2 := Key("idem-1", "places.search", json.RawMessage(`{"radius":5,"q":"pizza"}`))
	assert.Equal(t, k1, k2)
}

func TestKey_DistinctArgsProduceDistinctKeys(t *testing.T) {
	k1 := Key("idem-1", "places.search", json.RawMessage(`{"q":"pizza"}`))
	k2 := Key("idem-1", "places.search", json.RawMessage(`{"q":"sushi"}`))
	assert.NotEqual(t, k1, k2)
}

func TestKey_DistinctNameSameArgsProduceDistinctKeys(t *testing.T) {
	k1 := Key("idem-1", "places.search", json.RawMessage(`{"q":"pizza"}`))
	k2 := Key("idem-1", "bookings.create", json.RawMessage(`{"q":"pizza"}`))
	assert.NotEqual(t, k1, k2)
}

func TestKey_EmptyIdempotencyKeyAllowed(t *testing.T) {
	k := Key("", "places.search", json.RawMessage(`{"q":"pizza"}`))
	assert.NotEmpty(t, k)
}

func TestCache_GetPutRoundTrip(t *testing.T) {
	c := New()
	key := Key("idem-1", "places.search", json.RawMessage(`{"q":"pizza"}`))

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, Entry{Result: json.RawMessage(`{"hits":3}`)})
	e, ok := c.Get(key)
	assert.True(t, ok)
	assert.JSONEq(t, `{"hits":3}`, string(e.Result))
}

func TestCache_ConcurrentAccessIsSafe(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			key := Key("k", "t", json.RawMessage(`{"i":1}`))
			c.Put(key, Entry{Result: json.RawMessage(`{}`)})
		}(i)
		go func(i int) {
			defer wg.Done()
			key := Key("k", "t", json.RawMessage(`{"i":1}`))
			c.Get(key)
		}(i)
	}
	wg.Wait()
}
