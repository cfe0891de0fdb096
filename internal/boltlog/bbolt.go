package boltlog

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
)

// panicSentinel wraps errors raised by the must helpers so that recoverErr
// can tell them apart from genuine panics.
type panicSentinel struct {
	cause error
}

// recoverErr recovers from a panic raised by one of the must helpers and
// assigns its cause to *err. It is intended to be deferred.
func recoverErr(err *error) {
	switch v := recover().(type) {
	case panicSentinel:
		*err = v.cause
	case nil:
		return
	default:
		panic(v)
	}
}

func must(err error) {
	if err != nil {
		panic(panicSentinel{err})
	}
}

// mustCreateBucket creates nested buckets with names given by the elements
// of path.
func mustCreateBucket(tx *bbolt.Tx, path ...[]byte) *bbolt.Bucket {
	b, err := tx.CreateBucketIfNotExists(path[0])
	must(err)
	for _, n := range path[1:] {
		b, err = b.CreateBucketIfNotExists(n)
		must(err)
	}
	return b
}

// bucket gets nested buckets, or nil if any of them does not exist.
func bucket(tx *bbolt.Tx, path ...[]byte) *bbolt.Bucket {
	b := tx.Bucket(path[0])
	for _, n := range path[1:] {
		if b == nil {
			return nil
		}
		b = b.Bucket(n)
	}
	return b
}

func mustPut(b *bbolt.Bucket, k, v []byte) {
	must(b.Put(k, v))
}

// marshalInt64 encodes n as 8 big-endian bytes so that byte order matches
// numeric order for non-negative values.
func marshalInt64(n int64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(n))
	return data
}

func unmarshalInt64(data []byte) int64 {
	switch len(data) {
	case 0:
		return 0
	case 8:
		return int64(binary.BigEndian.Uint64(data))
	default:
		panic(panicSentinel{fmt.Errorf("data is corrupt, expected 8 bytes, got %d", len(data))})
	}
}

// indexKey concatenates an 8-byte prefix and a position.
func indexKey(prefix, position int64) []byte {
	return append(marshalInt64(prefix), marshalInt64(position)...)
}
