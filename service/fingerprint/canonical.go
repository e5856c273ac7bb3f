package fingerprint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Canonical encodes value in a deterministic JSON-like form: map keys sorted,
// integral numbers printed as exact integers regardless of their Go type or magnitude, other
// numbers in shortest exponent form, times in UTC RFC3339Nano.
func Canonical(value interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encode(buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, value interface{}) error {
	switch actual := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(actual))
	case string:
		buf.WriteString(strconv.Quote(actual))
	case []byte:
		buf.WriteString(strconv.Quote(string(actual)))
	case int:
		buf.WriteString(strconv.FormatInt(int64(actual), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(actual), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(actual), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(actual), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(actual, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(actual), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(actual), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(actual), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(actual), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(actual, 10))
	case float32:
		return encodeFloat(buf, float64(actual))
	case float64:
		return encodeFloat(buf, actual)
	case json.Number:
		if i, ok := new(big.Int).SetString(string(actual), 10); ok {
			buf.WriteString(i.String())
			return nil
		}
		f, err := actual.Float64()
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", actual, err)
		}
		return encodeFloat(buf, f)
	case time.Time:
		buf.WriteString(strconv.Quote(actual.UTC().Format(time.RFC3339Nano)))
	case map[string]interface{}:
		return encodeMap(buf, actual)
	case map[string]string:
		aMap := make(map[string]interface{}, len(actual))
		for k, v := range actual {
			aMap[k] = v
		}
		return encodeMap(buf, aMap)
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range actual {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case []string:
		items := make([]interface{}, len(actual))
		for i := range actual {
			items[i] = actual[i]
		}
		return encode(buf, items)
	default:
		return encodeReflect(buf, value)
	}
	return nil
}

func encodeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number %v", f)
	}
	if f == math.Trunc(f) {
		integer, _ := big.NewFloat(f).Int(nil)
		buf.WriteString(integer.String())
		return nil
	}
	buf.WriteString(strconv.FormatFloat(f, 'e', -1, 64))
	return nil
}

func encodeMap(buf *bytes.Buffer, aMap map[string]interface{}) error {
	keys := make([]string, 0, len(aMap))
	for k := range aMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		if err := encode(buf, aMap[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeReflect normalises structs, typed maps and slices through their JSON form.
func encodeReflect(buf *bytes.Buffer, value interface{}) error {
	rValue := reflect.ValueOf(value)
	if rValue.Kind() == reflect.Ptr {
		if rValue.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encode(buf, rValue.Elem().Interface())
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("unsupported input type %T: %w", value, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var generic interface{}
	if err = decoder.Decode(&generic); err != nil {
		return fmt.Errorf("unsupported input type %T: %w", value, err)
	}
	return encode(buf, generic)
}
