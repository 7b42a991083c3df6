package tensorwire

import "encoding/binary"

// SelectedRows is the sparse, row-indexed destination: a value tensor holding
// a subset of rows plus an explicit list of which row indices are present.
// The row-index buffer always lives in host memory, even when the value
// tensor is device-resident; device-side index materialization, if needed,
// is a later step outside the decoder.
type SelectedRows struct {
	rows  []byte // raw little-endian int64 row indices
	value Tensor
}

func (s *SelectedRows) Value() *Tensor {
	return &s.value
}

// MutableRows returns writable host storage for byteLen bytes of raw row
// indices, reallocating only when the size changed.
func (s *SelectedRows) MutableRows(byteLen int) []byte {
	if len(s.rows) != byteLen {
		s.rows = make([]byte, byteLen)
	}
	return s.rows
}

// Rows decodes the raw index buffer into row numbers.
func (s *SelectedRows) Rows() []int64 {
	rows := make([]int64, len(s.rows)/8)
	for i := range rows {
		rows[i] = int64(binary.LittleEndian.Uint64(s.rows[i*8:]))
	}
	return rows
}
