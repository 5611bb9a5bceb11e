package gguf

import "fmt"

func GetString(kv *KV, key string) (string, bool) {
	v, ok := kv.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}

func GetUint64(kv *KV, key string) (uint64, bool) {
	v, ok := kv.Get(key)
	if !ok {
		return 0, false
	}
	return asUint64(v.Value)
}

// FormatValue renders v for display.
func FormatValue(v Value) string {
	switch val := v.Value.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case ArrayValue:
		return fmt.Sprintf("array(%s) len=%d", val.ElemType.String(), len(val.Values))
	default:
		return fmt.Sprintf("%v", val)
	}
}
