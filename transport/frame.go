// Copyright 2026 Hexresearch
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hexresearch/ergvein-indexer/cbor"
	"github.com/hexresearch/ergvein-indexer/protocol"
)

const (
	// FrameHeaderLength is the size of the encoded FrameHeader
	FrameHeaderLength = 8

	// DefaultMaxPayloadLength bounds inbound frames. Wallet requests are tiny, so anything
	// larger than this is treated as a broken or hostile peer.
	DefaultMaxPayloadLength uint32 = 1 << 20
)

var (
	ErrFrameTooLarge     = errors.New("frame payload exceeds limit")
	ErrFrameTypeMismatch = errors.New("frame header type does not match payload")
)

type FrameHeader struct {
	MessageType   uint32
	PayloadLength uint32
}

type Frame struct {
	FrameHeader
	Payload []byte
}

// NewFrame encodes a message into a frame
func NewFrame(msg protocol.Message) (*Frame, error) {
	payload, err := cbor.Encode(msg)
	if err != nil {
		return nil, err
	}
	header := FrameHeader{
		MessageType:   uint32(msg.Type()),
		PayloadLength: uint32(len(payload)), // #nosec G115
	}
	frame := &Frame{
		FrameHeader: header,
		Payload:     payload,
	}
	return frame, nil
}

// Type returns the message type announced in the frame header
func (f *FrameHeader) Type() protocol.MessageType {
	return protocol.MessageType(f.MessageType)
}

// Message decodes the frame payload. The type carried in the payload must agree with the
// frame header.
func (f *Frame) Message() (protocol.Message, error) {
	id, err := cbor.MessageId(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrMessageDecode, err)
	}
	if id != uint64(f.MessageType) {
		return nil, fmt.Errorf(
			"%w: header %s, payload %s",
			ErrFrameTypeMismatch,
			f.Type(),
			protocol.MessageType(id), // #nosec G115
		)
	}
	return protocol.NewMsgFromCbor(f.Type(), f.Payload)
}

// ReadFrame reads a single frame. A stream that ends cleanly before the header returns
// io.EOF, a stream that ends anywhere else returns io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, maxPayloadLength uint32) (*Frame, error) {
	header := FrameHeader{}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, err
	}
	if maxPayloadLength > 0 && header.PayloadLength > maxPayloadLength {
		return nil, fmt.Errorf(
			"%w: %d > %d",
			ErrFrameTooLarge,
			header.PayloadLength,
			maxPayloadLength,
		)
	}
	frame := &Frame{
		FrameHeader: header,
		Payload:     make([]byte, header.PayloadLength),
	}
	// We use ReadFull because it guarantees to read the expected number of bytes or
	// return an error
	if _, err := io.ReadFull(r, frame.Payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes the header and payload with a single write call
func WriteFrame(w io.Writer, frame *Frame) error {
	buf := bytes.NewBuffer(make([]byte, 0, FrameHeaderLength+len(frame.Payload)))
	if err := binary.Write(buf, binary.BigEndian, frame.FrameHeader); err != nil {
		return err
	}
	buf.Write(frame.Payload)
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadMessage reads and decodes the next message from r
func ReadMessage(r io.Reader, maxPayloadLength uint32) (protocol.Message, error) {
	frame, err := ReadFrame(r, maxPayloadLength)
	if err != nil {
		return nil, err
	}
	return frame.Message()
}

// WriteMessage encodes msg and writes it to w as a single frame
func WriteMessage(w io.Writer, msg protocol.Message) error {
	frame, err := NewFrame(msg)
	if err != nil {
		return err
	}
	return WriteFrame(w, frame)
}
