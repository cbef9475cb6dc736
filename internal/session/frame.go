package session

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// varint length prefix: 7-bit groups, least-significant group first, every
// byte's high bit clear except the final (most significant) group's, which
// carries the high-bit sentinel a reader scans for to know the header is
// complete.
func encodeLength(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	out[len(out)-1] |= 0x80
	return out
}

func decodeLength(r io.ByteReader) (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 != 0 {
			return v, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, fmt.Errorf("session: length header too long")
		}
	}
}

// compress DEFLATEs message whole, favoring speed over ratio.
func compress(message []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(message); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte, limit int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	limited := io.LimitReader(r, int64(limit)+1)
	decoded, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("session: decompress failed: %w", err)
	}
	if len(decoded) > limit {
		return nil, ErrMessageTooLarge
	}
	return decoded, nil
}

// encodeFrame produces the wire bytes for one message: a varint length
// header of the *compressed* payload, followed by the compressed payload.
func encodeFrame(message []byte) ([]byte, error) {
	compressed, err := compress(message)
	if err != nil {
		return nil, err
	}
	header := encodeLength(uint64(len(compressed)))
	frame := make([]byte, 0, len(header)+len(compressed))
	frame = append(frame, header...)
	frame = append(frame, compressed...)
	return frame, nil
}

// readFrame reads one frame's header and payload from r, blocking until a
// complete frame has arrived, then decompresses it. limit bounds the
// decoded message size.
func readFrame(r io.Reader, limit int) (message []byte, err error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}
	n, err := decodeLength(br)
	if err != nil {
		return nil, err
	}
	if n > uint64(limit)+maxFrameOverhead {
		return nil, ErrMessageTooLarge
	}

	compressed := make([]byte, n)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}
	return decompress(compressed, limit)
}

// maxFrameOverhead bounds how much larger a compressed frame may be than
// the decoded size limit before being rejected outright, without even
// attempting to decompress it — DEFLATE's worst-case expansion on
// incompressible input is small and bounded.
const maxFrameOverhead = 1024

// byteReader adapts an io.Reader without ReadByte (e.g. a raw net.Conn) to
// io.ByteReader for decodeLength, one byte per Read call during header
// parsing only — the rest of a frame is read in bulk via io.ReadFull.
type byteReader struct{ r io.Reader }

func (b *byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
