package tensorwire

import "fmt"

// Wire field numbers of the top-level variable message.
const (
	fieldVarname    = 1
	fieldType       = 2
	fieldDataType   = 3
	fieldDims       = 4
	fieldLodLevel   = 5
	fieldLod        = 6
	fieldSerialized = 7
	fieldRows       = 8

	// lodDataField is the only field recognized inside a LoD level sub-message.
	lodDataField = 1
)

type wireType uint32

const (
	wireVarint          wireType = 0
	wireLengthDelimited wireType = 2
)

func (wt wireType) String() string {
	switch wt {
	case wireVarint:
		return "varint"
	case wireLengthDelimited:
		return "length-delimited"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(wt))
	}
}

// VarType identifies the representation kind of an incoming variable.
type VarType int32

const (
	// VarTypeLoDTensor is a fully-populated dense tensor, optionally
	// annotated with a hierarchical offset (LoD) table.
	VarTypeLoDTensor VarType = 0
	// VarTypeSelectedRows stores only a subset of rows plus an explicit
	// list of which row indices are present.
	VarTypeSelectedRows VarType = 1
)

func (t VarType) String() string {
	switch t {
	case VarTypeLoDTensor:
		return "LoDTensor"
	case VarTypeSelectedRows:
		return "SelectedRows"
	default:
		return fmt.Sprintf("VarType(%d)", int32(t))
	}
}

// DataType identifies the scalar element representation of a tensor.
type DataType int32

const (
	DataTypeBool DataType = iota
	DataTypeInt16
	DataTypeInt32
	DataTypeInt64
	DataTypeFloat16
	DataTypeFloat32
	DataTypeFloat64
)

// Size returns the width of one element in bytes, or 0 for an unknown code.
func (d DataType) Size() int {
	switch d {
	case DataTypeBool:
		return 1
	case DataTypeInt16, DataTypeFloat16:
		return 2
	case DataTypeInt32, DataTypeFloat32:
		return 4
	case DataTypeInt64, DataTypeFloat64:
		return 8
	default:
		return 0
	}
}

func (d DataType) String() string {
	switch d {
	case DataTypeBool:
		return "bool"
	case DataTypeInt16:
		return "int16"
	case DataTypeInt32:
		return "int32"
	case DataTypeInt64:
		return "int64"
	case DataTypeFloat16:
		return "float16"
	case DataTypeFloat32:
		return "float32"
	case DataTypeFloat64:
		return "float64"
	default:
		return fmt.Sprintf("DataType(%d)", int32(d))
	}
}
