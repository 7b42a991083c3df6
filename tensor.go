package tensorwire

// Tensor is a dense destination buffer with a resizable shape, an element
// type, an optional hierarchical offset (LoD) annotation and a memory-space
// tag. Tensors are owned by the Scope that created their Variable; the
// decoder only mutates them through the handle it resolved by name.
type Tensor struct {
	dims  []int64
	dtype DataType
	lod   [][]uint64
	place Place
	data  []byte
}

func (t *Tensor) Resize(dims []int64) {
	t.dims = dims
}

func (t *Tensor) Dims() []int64 {
	return t.dims
}

// SetLoD attaches the hierarchical offset table as the tensor's
// sequence-structure annotation.
func (t *Tensor) SetLoD(lod [][]uint64) {
	t.lod = lod
}

func (t *Tensor) LoD() [][]uint64 {
	return t.lod
}

func (t *Tensor) DataType() DataType {
	return t.dtype
}

func (t *Tensor) Place() Place {
	return t.place
}

// Numel returns the number of elements implied by the current shape, or -1
// if the shape is invalid (negative dimension or product overflow).
func (t *Tensor) Numel() int64 {
	return numelOf(t.dims)
}

// MutableData returns writable storage for the current shape, reallocating
// only when the required byte size changed. Device-resident tensors are
// modeled with the same backing slice; what differs is the copy capability
// used to fill them (see deviceCopier).
func (t *Tensor) MutableData(place Place, dtype DataType) []byte {
	t.place = place
	t.dtype = dtype
	need := t.Numel() * int64(dtype.Size())
	if int64(len(t.data)) != need {
		t.data = make([]byte, need)
	}
	return t.data
}

// Data returns the backing storage. For device-resident tensors it is only
// safe to read after the decode that populated it reported success.
func (t *Tensor) Data() []byte {
	return t.data
}

func numelOf(dims []int64) int64 {
	n := int64(1)
	for _, d := range dims {
		if d < 0 {
			return -1
		}
		if d != 0 && n > int64(1)<<62/d {
			return -1
		}
		n *= d
	}
	return n
}
