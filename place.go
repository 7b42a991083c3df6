package tensorwire

// Place identifies the memory space backing a destination buffer. The
// payload copy path is selected at runtime from this tag; see copierFor.
type Place int8

const (
	CPUPlace Place = iota
	GPUPlace
)

func (p Place) IsGPU() bool {
	return p == GPUPlace
}

func (p Place) String() string {
	switch p {
	case CPUPlace:
		return "CPUPlace"
	case GPUPlace:
		return "GPUPlace"
	default:
		return "Place(unknown)"
	}
}
