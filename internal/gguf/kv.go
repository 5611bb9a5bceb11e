package gguf

import (
	"iter"
	"slices"
)

// KeyValue is one entry of a key-value table.
type KeyValue struct {
	Key   string
	Value Value
}

// KV is an ordered key-value table. Keys are unique and keep their
// insertion position; replacing a value does not move its key.
type KV struct {
	entries []KeyValue
	index   map[string]int
}

func NewKV() *KV {
	return &KV{index: make(map[string]int)}
}

// Len returns the number of entries.
func (kv *KV) Len() int {
	if kv == nil {
		return 0
	}
	return len(kv.entries)
}

// Get returns the value stored under key.
func (kv *KV) Get(key string) (Value, bool) {
	if kv == nil {
		return Value{}, false
	}
	i, ok := kv.index[key]
	if !ok {
		return Value{}, false
	}
	return kv.entries[i].Value, true
}

// Set stores v under key, appending the key if it is new.
func (kv *KV) Set(key string, v Value) {
	if i, ok := kv.index[key]; ok {
		kv.entries[i].Value = v
		return
	}
	kv.index[key] = len(kv.entries)
	kv.entries = append(kv.entries, KeyValue{Key: key, Value: v})
}

// Delete removes key and reports whether it was present.
func (kv *KV) Delete(key string) bool {
	i, ok := kv.index[key]
	if !ok {
		return false
	}
	kv.entries = slices.Delete(kv.entries, i, i+1)
	delete(kv.index, key)
	for j := i; j < len(kv.entries); j++ {
		kv.index[kv.entries[j].Key] = j
	}
	return true
}

// Keys returns the keys in table order.
func (kv *KV) Keys() []string {
	keys := make([]string, 0, kv.Len())
	for k := range kv.All() {
		keys = append(keys, k)
	}
	return keys
}

// All iterates entries in table order.
func (kv *KV) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if kv == nil {
			return
		}
		for _, e := range kv.entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Clone returns a copy of the table. Values are shared; array values are
// treated as immutable by this package.
func (kv *KV) Clone() *KV {
	out := &KV{
		entries: slices.Clone(kv.entries),
		index:   make(map[string]int, kv.Len()),
	}
	for k, v := range kv.index {
		out.index[k] = v
	}
	return out
}
