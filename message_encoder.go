package tensorwire

import "encoding/binary"

// VariableRequest is the sending-side counterpart of VariableResponse: it
// serializes metadata and payload bytes into the wire format the decoder
// understands. Producers are free to choose packed or unpacked encodings for
// the repeated fields; the decoder accepts both interchangeably.
type VariableRequest struct {
	Meta    VariableMetadata
	Payload []byte
	Rows    []byte // raw little-endian int64 row indices, sparse only

	// PackedDims and PackedLod select the packed repeated encoding (one
	// length-delimited block of concatenated varints) over one tag per value.
	PackedDims bool
	PackedLod  bool
}

// Encode produces the complete wire message. Fields are emitted in the order
// the decoder's field-order contract requires: metadata first, payload last.
func (r *VariableRequest) Encode() []byte {
	var pe wireEncoder

	if r.Meta.Varname != "" {
		pe.putTag(fieldVarname, wireLengthDelimited)
		pe.putLengthDelimited([]byte(r.Meta.Varname))
	}

	pe.putTag(fieldType, wireVarint)
	pe.putVarint(uint64(r.Meta.Type))

	pe.putTag(fieldDataType, wireVarint)
	pe.putVarint(uint64(r.Meta.DataType))

	if r.PackedDims {
		var packed wireEncoder
		for _, d := range r.Meta.Dims {
			packed.putVarint(uint64(d))
		}
		pe.putTag(fieldDims, wireLengthDelimited)
		pe.putLengthDelimited(packed.raw)
	} else {
		for _, d := range r.Meta.Dims {
			pe.putTag(fieldDims, wireVarint)
			pe.putVarint(uint64(d))
		}
	}

	if lodLevel := r.lodLevel(); lodLevel > 0 {
		pe.putTag(fieldLodLevel, wireVarint)
		pe.putVarint(uint64(lodLevel))
	}

	for _, level := range r.Meta.Lod {
		var sub wireEncoder
		if r.PackedLod {
			var packed wireEncoder
			for _, v := range level {
				packed.putVarint(v)
			}
			sub.putTag(lodDataField, wireLengthDelimited)
			sub.putLengthDelimited(packed.raw)
		} else {
			for _, v := range level {
				sub.putTag(lodDataField, wireVarint)
				sub.putVarint(v)
			}
		}
		pe.putTag(fieldLod, wireLengthDelimited)
		pe.putLengthDelimited(sub.raw)
	}

	if r.Payload != nil {
		pe.putTag(fieldSerialized, wireLengthDelimited)
		pe.putLengthDelimited(r.Payload)
	}

	if r.Rows != nil {
		pe.putTag(fieldRows, wireLengthDelimited)
		pe.putLengthDelimited(r.Rows)
	}

	return pe.raw
}

func (r *VariableRequest) lodLevel() int64 {
	if r.Meta.LodLevel > 0 {
		return r.Meta.LodLevel
	}
	return int64(len(r.Meta.Lod))
}

// wireEncoder builds tag/length-delimited wire bytes.
type wireEncoder struct {
	raw []byte
}

func (pe *wireEncoder) putVarint(v uint64) {
	pe.raw = binary.AppendUvarint(pe.raw, v)
}

func (pe *wireEncoder) putTag(field uint32, wt wireType) {
	pe.putVarint(uint64(field)<<3 | uint64(wt))
}

func (pe *wireEncoder) putLengthDelimited(b []byte) {
	pe.putVarint(uint64(len(b)))
	pe.raw = append(pe.raw, b...)
}
