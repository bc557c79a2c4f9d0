package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObject struct {
	Uid        string                 `json:"uid"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes"`
}

func sampleObjects(n int) []*testObject {
	out := make([]*testObject, n)
	for i := range out {
		out[i] = &testObject{
			Uid:  "uid-" + strings.Repeat("x", i+1),
			Name: "user<" + strings.Repeat("y", i+1) + ">",
			Attributes: map[string]interface{}{
				"mail":   "user@example.com",
				"groups": []string{"ops", "dev"},
				"index":  i,
			},
		}
	}
	return out
}

func TestMarshalCorrectness(t *testing.T) {
	obj := sampleObjects(1)[0]

	stdData, err := json.Marshal(obj)
	require.NoError(t, err)
	optData, err := Marshal(obj)
	require.NoError(t, err)

	var stdResult, optResult map[string]interface{}
	require.NoError(t, json.Unmarshal(stdData, &stdResult))
	require.NoError(t, Unmarshal(optData, &optResult))
	assert.Equal(t, stdResult, optResult)
}

func TestMarshalToWriterDoesNotEscapeHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalToWriter(&buf, map[string]string{"name": "a<b>"}))
	assert.Equal(t, "{\"name\":\"a<b>\"}\n", buf.String())
}

func TestMarshalToWriterWritesNothingOnError(t *testing.T) {
	var buf bytes.Buffer
	err := MarshalToWriter(&buf, map[string]interface{}{"bad": make(chan int)})
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestNewDecoderKeepsNumbers(t *testing.T) {
	var v map[string]interface{}
	require.NoError(t, NewDecoder(strings.NewReader(`{"token": 9007199254740993}`)).Decode(&v))
	n, ok := v["token"].(Number)
	require.True(t, ok)
	assert.Equal(t, "9007199254740993", n.String())
}

func TestStreamingEncoderArray(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, true)
	for _, obj := range sampleObjects(3) {
		require.NoError(t, enc.Encode(obj))
	}
	require.NoError(t, enc.Close())
	assert.Equal(t, 3, enc.Count())

	var decoded []testObject
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "uid-xx", decoded[1].Uid)
}

func TestStreamingEncoderEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, true)
	require.NoError(t, enc.Close())
	assert.Equal(t, "[]\n", buf.String())
}

func TestStreamingEncoderLines(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, false)
	require.NoError(t, enc.Encode(map[string]int{"a": 1}))
	require.NoError(t, enc.Encode(map[string]int{"b": 2}))
	require.NoError(t, enc.Close())
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestStreamingEncoderStickyError(t *testing.T) {
	enc := NewStreamingEncoder(failingWriter{}, true)
	err := enc.Encode(1)
	require.Error(t, err)
	assert.Equal(t, err, enc.Encode(2))
	assert.Equal(t, err, enc.Close())
	assert.Zero(t, enc.Count())
}

func BenchmarkStdMarshal(b *testing.B) {
	objs := sampleObjects(100)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := json.Marshal(objs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMarshal(b *testing.B) {
	objs := sampleObjects(100)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Marshal(objs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStreamingEncoder(b *testing.B) {
	objs := sampleObjects(100)
	var buf bytes.Buffer
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		enc := NewStreamingEncoder(&buf, true)
		for _, o := range objs {
			if err := enc.Encode(o); err != nil {
				b.Fatal(err)
			}
		}
		if err := enc.Close(); err != nil {
			b.Fatal(err)
		}
	}
}
