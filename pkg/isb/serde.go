/*
Copyright 2022 The Mantis Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package isb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// The buffers hold the header and the body of a message as flat byte slices.
// Both use a small binary form: fixed-width fields first, every
// variable-length piece prefixed with its size.

func appendChunk(buf *bytes.Buffer, chunk []byte) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(chunk))); err != nil {
		return err
	}
	_, err := buf.Write(chunk)
	return err
}

func readChunk(r *bytes.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	chunk := make([]byte, size)
	if _, err := io.ReadFull(r, chunk); err != nil {
		return nil, fmt.Errorf("chunk of %d bytes truncated, %w", size, err)
	}
	return chunk, nil
}

// MarshalBinary encodes MessageInfo to the binary format
func (p MessageInfo) MarshalBinary() (data []byte, err error) {
	var buf = new(bytes.Buffer)
	if err = binary.Write(buf, binary.LittleEndian, p.EventTime.UnixMilli()); err != nil {
		return nil, err
	}
	if err = binary.Write(buf, binary.LittleEndian, p.IsLate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes MessageInfo from the binary format
func (p *MessageInfo) UnmarshalBinary(data []byte) (err error) {
	var r = bytes.NewReader(data)
	var epoch int64
	if err = binary.Read(r, binary.LittleEndian, &epoch); err != nil {
		return err
	}
	if err = binary.Read(r, binary.LittleEndian, &p.IsLate); err != nil {
		return err
	}
	p.EventTime = time.UnixMilli(epoch).UTC()
	return nil
}

// MarshalBinary encodes Header to the binary format
func (h Header) MarshalBinary() (data []byte, err error) {
	var buf = new(bytes.Buffer)
	info, err := h.MessageInfo.MarshalBinary()
	if err != nil {
		return nil, err
	}
	for _, chunk := range [][]byte{info, []byte(h.ID), []byte(h.Key)} {
		if err = appendChunk(buf, chunk); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes Header from the binary format
func (h *Header) UnmarshalBinary(data []byte) (err error) {
	var r = bytes.NewReader(data)
	info, err := readChunk(r)
	if err != nil {
		return err
	}
	if err = h.MessageInfo.UnmarshalBinary(info); err != nil {
		return err
	}
	id, err := readChunk(r)
	if err != nil {
		return err
	}
	key, err := readChunk(r)
	if err != nil {
		return err
	}
	h.ID = string(id)
	h.Key = string(key)
	return nil
}

// MarshalBinary encodes Body to the binary format
func (b Body) MarshalBinary() (data []byte, err error) {
	var buf = new(bytes.Buffer)
	if err = appendChunk(buf, b.Payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes Body from the binary format
func (b *Body) UnmarshalBinary(data []byte) (err error) {
	payload, err := readChunk(bytes.NewReader(data))
	if err != nil {
		return err
	}
	b.Payload = payload
	return nil
}

// MarshalBinary encodes Message to the binary format
func (m Message) MarshalBinary() (data []byte, err error) {
	var buf = new(bytes.Buffer)
	header, err := m.Header.MarshalBinary()
	if err != nil {
		return nil, err
	}
	body, err := m.Body.MarshalBinary()
	if err != nil {
		return nil, err
	}
	for _, chunk := range [][]byte{header, body} {
		if err = appendChunk(buf, chunk); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes Message from the binary format
func (m *Message) UnmarshalBinary(data []byte) (err error) {
	var r = bytes.NewReader(data)
	header, err := readChunk(r)
	if err != nil {
		return err
	}
	if err = m.Header.UnmarshalBinary(header); err != nil {
		return err
	}
	body, err := readChunk(r)
	if err != nil {
		return err
	}
	return m.Body.UnmarshalBinary(body)
}
