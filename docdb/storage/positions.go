package storage

import (
	"encoding/binary"
	"fmt"
)

// encodePositions stores sorted positions as uvarint deltas.
func encodePositions(positions []int) []byte {
	if len(positions) == 0 {
		return nil
	}
	buf := make([]byte, 0, len(positions)*2)
	prev := 0
	for _, p := range positions {
		buf = binary.AppendUvarint(buf, uint64(p-prev))
		prev = p
	}
	return buf
}

func decodePositions(buf []byte) ([]int, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	var out []int
	prev := 0
	for len(buf) > 0 {
		d, n := binary.Uvarint(buf)
		if n <= 0 {
			return nil, fmt.Errorf("corrupt position list")
		}
		prev += int(d)
		out = append(out, prev)
		buf = buf[n:]
	}
	return out, nil
}
