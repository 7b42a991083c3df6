package tensorwire

// VariableMetadata accumulates the scalar and repeated fields describing an
// incoming payload. One instance is built per decoded message; it is
// transient and independent of the destination storage it describes.
//
// The wire format is order-dependent by contract: Varname and Type (and, for
// dense tensors, DataType and Dims) must be complete before the payload field
// arrives. Dims and each LoD level may arrive either as individually-tagged
// varints or as one packed length-delimited block; both encodings yield the
// same ordered sequence.
type VariableMetadata struct {
	Varname  string
	Type     VarType
	DataType DataType
	Dims     []int64
	LodLevel int64
	Lod      [][]uint64
}
