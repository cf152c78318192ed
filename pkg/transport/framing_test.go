package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/provedorpro/subsync/pkg/log"
)

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{
			name:    "small message",
			payload: []byte("hello"),
		},
		{
			name:    "medium message",
			payload: bytes.Repeat([]byte("x"), 1000),
		},
		{
			name:    "max size message",
			payload: bytes.Repeat([]byte("y"), DefaultMaxMessageSize),
		},
		{
			name:    "single byte",
			payload: []byte{0x42},
		},
		{
			name:    "binary data",
			payload: []byte{0x00, 0xFF, 0x7F, 0x80},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			writer := NewFrameWriter(buf)
			if err := writer.WriteFrame(tt.payload); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}

			expectedSize := LengthPrefixSize + len(tt.payload)
			if buf.Len() != expectedSize {
				t.Errorf("frame size = %d, want %d", buf.Len(), expectedSize)
			}

			reader := NewFrameReader(buf)
			got, err := reader.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}

			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d bytes", len(got), len(tt.payload))
			}
		})
	}
}

func TestFrameWriterEmptyMessage(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)

	err := writer.WriteFrame([]byte{})
	if !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("expected ErrMessageEmpty, got %v", err)
	}

	err = writer.WriteFrame(nil)
	if !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("expected ErrMessageEmpty for nil, got %v", err)
	}
}

func TestFrameWriterMessageTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriterWithMaxSize(buf, 100)

	err := writer.WriteFrame(bytes.Repeat([]byte("x"), 101))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestFrameReaderMessageTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)

	// Write a frame with length > max
	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], 200)
	buf.Write(lengthBuf[:])
	buf.Write(bytes.Repeat([]byte("x"), 200))

	reader := NewFrameReaderWithMaxSize(buf, 100)
	_, err := reader.ReadFrame()
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestFrameReaderTruncated(t *testing.T) {
	buf := new(bytes.Buffer)

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], 100)
	buf.Write(lengthBuf[:])
	buf.Write([]byte("only a few bytes"))

	reader := NewFrameReader(buf)
	_, err := reader.ReadFrame()
	if !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("expected ErrFrameTruncated, got %v", err)
	}
}

func TestFrameWriterConcurrent(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)

	const writers = 10
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_ = writer.WriteFrame([]byte("concurrent payload"))
		}()
	}
	wg.Wait()

	// Every frame must be intact: same payload, no interleaving.
	reader := NewFrameReader(buf)
	for i := 0; i < writers; i++ {
		got, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if string(got) != "concurrent payload" {
			t.Fatalf("frame %d corrupted: %q", i, got)
		}
	}
}

// frameCounter counts frame events.
type frameCounter struct {
	mu sync.Mutex
	n  int
}

func (c *frameCounter) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.Frame != nil {
		c.n++
	}
}

func TestFramerLogsFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	framer := NewFramer(buf)
	counter := &frameCounter{}
	framer.SetLogger(counter, "conn-test")

	if err := framer.WriteFrame([]byte("ping")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if _, err := framer.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	counter.mu.Lock()
	defer counter.mu.Unlock()
	if counter.n != 2 {
		t.Errorf("expected 2 frame events, got %d", counter.n)
	}
}
