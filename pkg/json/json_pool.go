// Package json wraps goccy/go-json with pooled buffers and a streaming
// encoder for command output.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Number is a JSON number kept as text by decoders from NewDecoder.
type Number = gojson.Number

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// NewDecoder returns a decoder that keeps numbers as Number.
func NewDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// MarshalToWriter encodes v to w through a pooled buffer so a failed encode
// writes nothing.
func MarshalToWriter(w io.Writer, v interface{}) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// StreamingEncoder writes values one at a time, either as line-delimited
// JSON or as the elements of one array.
type StreamingEncoder struct {
	writer  io.Writer
	encoder *gojson.Encoder
	count   int
	isArray bool
	pretty  bool
	err     error
}

// NewStreamingEncoder creates a streaming encoder. In array mode the opening
// bracket is written by the first Encode or by Close.
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &StreamingEncoder{writer: w, encoder: enc, isArray: isArray}
}

// SetPretty enables pretty printing
func (se *StreamingEncoder) SetPretty(pretty bool, indent string) {
	se.pretty = pretty
	if pretty {
		se.encoder.SetIndent("", indent)
	} else {
		se.encoder.SetIndent("", "")
	}
}

// Count returns the number of values encoded so far.
func (se *StreamingEncoder) Count() int { return se.count }

// Encode writes a single value. After the first failure every call returns
// the same error.
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.err != nil {
		return se.err
	}
	if se.isArray {
		sep := ","
		if se.count == 0 {
			sep = "["
		}
		if se.pretty && se.count > 0 {
			sep += "\n"
		}
		if se.err = se.write(sep); se.err != nil {
			return se.err
		}
	}
	if se.err = se.encoder.Encode(v); se.err != nil {
		return se.err
	}
	se.count++
	return nil
}

// Close finalizes the encoding
func (se *StreamingEncoder) Close() error {
	if se.err != nil || !se.isArray {
		return se.err
	}
	if se.count == 0 {
		return se.write("[]\n")
	}
	return se.write("]\n")
}

func (se *StreamingEncoder) write(s string) error {
	_, err := io.WriteString(se.writer, s)
	return err
}
