package tensorwire

import (
	"errors"

	"github.com/rcrowley/go-metrics"
)

// VariableResponse decodes one incoming variable message, materializing the
// payload directly into the destination storage resolved by name from the
// Scope. One instance decodes one message; independent messages (distinct
// instances, distinct sources) may be decoded concurrently, with the Scope as
// the only shared state.
type VariableResponse struct {
	scope  *Scope
	devCtx *DeviceContext
	conf   *Config
	meta   VariableMetadata

	messageSize     metrics.Histogram
	messagesDecoded metrics.Meter
	decodeErrors    metrics.Meter
}

// NewVariableResponse constructs a decoder writing into scope. devCtx selects
// the destination memory space; nil means host memory. conf may be nil, in
// which case defaults are used.
func NewVariableResponse(scope *Scope, devCtx *DeviceContext, conf *Config) *VariableResponse {
	if conf == nil {
		conf = NewConfig()
	}
	return &VariableResponse{
		scope:           scope,
		devCtx:          devCtx,
		conf:            conf,
		messageSize:     getOrRegisterHistogram("message-size-in-bytes", conf.MetricRegistry),
		messagesDecoded: metrics.GetOrRegisterMeter("messages-decoded", conf.MetricRegistry),
		decodeErrors:    metrics.GetOrRegisterMeter("decode-errors", conf.MetricRegistry),
	}
}

// Metadata returns the metadata accumulated so far. After a successful Parse
// it describes the decoded message completely.
func (vr *VariableResponse) Metadata() *VariableMetadata {
	return &vr.meta
}

// Parse runs the message to a terminal outcome: nil on success, or exactly
// one of ErrUnknownField, a MalformedFieldError, ErrInsufficientData, or a
// VariableNotFoundError. A failed decode may leave the destination in an
// indeterminate partially-written state; callers must treat the whole message
// as failed and never present the destination as ready.
//
// A payload or row-index field arriving before varname and type panics with
// PreconditionViolation; a conforming producer cannot trigger that path.
func (vr *VariableResponse) Parse(source ChunkSource) error {
	cr := newCodedReader(source, vr.conf.Decoder.MaxRecursionDepth)
	err := vr.parse(cr)
	if err != nil {
		vr.decodeErrors.Mark(1)
		Logger.Printf("decode of variable %q failed after %d bytes: %v\n", vr.meta.Varname, cr.pos, err)
		return err
	}
	vr.messageSize.Update(cr.pos)
	vr.messagesDecoded.Mark(1)
	if vr.meta.Varname != "" {
		getOrRegisterVariableMeter("messages-decoded", vr.meta.Varname, vr.conf.MetricRegistry).Mark(1)
	}
	return nil
}

func (vr *VariableResponse) parse(cr *codedReader) error {
	typeKnown := false

	for {
		field, wt, ok, err := cr.readTagWithCutoff(vr.conf.Decoder.TagCutoff)
		if err != nil {
			return err
		}
		if !ok {
			if field != 0 {
				// garbled end-of-message marker
				return ErrUnknownField
			}
			return nil
		}

		switch field {
		case fieldVarname:
			if wt != wireLengthDelimited {
				return wrongWireType(fieldVarname, wt)
			}
			n, err := cr.readVarintSizeAsInt()
			if err != nil {
				return malformedField(fieldVarname, err)
			}
			s, err := cr.readString(n)
			if err != nil {
				return malformedField(fieldVarname, err)
			}
			vr.meta.Varname = s

		case fieldType:
			if wt != wireVarint {
				return wrongWireType(fieldType, wt)
			}
			v, err := cr.readVarint()
			if err != nil {
				return malformedField(fieldType, err)
			}
			if v > uint64(VarTypeSelectedRows) {
				return malformedField(fieldType, WireDecodingError{"unknown variable type code"})
			}
			vr.meta.Type = VarType(v)
			typeKnown = true

		case fieldDataType:
			if wt != wireVarint {
				return wrongWireType(fieldDataType, wt)
			}
			v, err := cr.readVarint()
			if err != nil {
				return malformedField(fieldDataType, err)
			}
			if DataType(v).Size() == 0 || v > uint64(DataTypeFloat64) {
				return malformedField(fieldDataType, WireDecodingError{"unknown element type code"})
			}
			vr.meta.DataType = DataType(v)

		case fieldDims:
			switch wt {
			case wireVarint:
				v, err := cr.readVarint()
				if err != nil {
					return malformedField(fieldDims, err)
				}
				vr.meta.Dims = append(vr.meta.Dims, int64(v))
			case wireLengthDelimited:
				n, err := cr.readVarintSizeAsInt()
				if err != nil {
					return malformedField(fieldDims, err)
				}
				if err := cr.pushLimit(n); err != nil {
					return malformedField(fieldDims, err)
				}
				for cr.bytesUntilLimit() > 0 {
					v, err := cr.readVarint()
					if err != nil {
						return malformedField(fieldDims, err)
					}
					vr.meta.Dims = append(vr.meta.Dims, int64(v))
				}
				if err := cr.popLimit(); err != nil {
					return malformedField(fieldDims, err)
				}
			default:
				return wrongWireType(fieldDims, wt)
			}

		case fieldLodLevel:
			if wt != wireVarint {
				return wrongWireType(fieldLodLevel, wt)
			}
			v, err := cr.readVarint()
			if err != nil {
				return malformedField(fieldLodLevel, err)
			}
			vr.meta.LodLevel = int64(v)

		case fieldLod:
			if wt != wireLengthDelimited {
				return wrongWireType(fieldLod, wt)
			}
			n, err := cr.readVarintSizeAsInt()
			if err != nil {
				return malformedField(fieldLod, err)
			}
			if err := cr.incrementDepthAndPushLimit(n); err != nil {
				return malformedField(fieldLod, err)
			}
			level, err := parseLodData(cr, vr.conf.Decoder.TagCutoff)
			if err != nil {
				return malformedField(fieldLod, err)
			}
			if err := cr.decrementDepthAndPopLimit(); err != nil {
				return malformedField(fieldLod, err)
			}
			if len(level) > 0 {
				vr.meta.Lod = append(vr.meta.Lod, level)
			}

		case fieldSerialized:
			vr.mustBeReadyForPayload(fieldSerialized, typeKnown)
			if wt != wireLengthDelimited {
				return wrongWireType(fieldSerialized, wt)
			}
			n, err := cr.readVarintSizeAsInt()
			if err != nil {
				return malformedField(fieldSerialized, err)
			}
			switch vr.meta.Type {
			case VarTypeLoDTensor:
				err = vr.copyTensorData(cr, n)
			case VarTypeSelectedRows:
				err = vr.copySelectedRowsTensorData(cr, n)
			}
			if err != nil {
				return err
			}

		case fieldRows:
			vr.mustBeReadyForPayload(fieldRows, typeKnown)
			if wt != wireLengthDelimited {
				return wrongWireType(fieldRows, wt)
			}
			n, err := cr.readVarintSizeAsInt()
			if err != nil {
				return malformedField(fieldRows, err)
			}
			if err := vr.copySelectedRowsIndexData(cr, n); err != nil {
				return err
			}

		default:
			return ErrUnknownField
		}
	}
}

func (vr *VariableResponse) mustBeReadyForPayload(field uint32, typeKnown bool) {
	if vr.meta.Varname == "" || !typeKnown {
		panic(PreconditionViolation{
			Field: field,
			Info:  "varname and type must precede payload data",
		})
	}
}

// parseLodData parses one offset-table level. The single recognized sub-field
// is accepted as an individually-tagged varint or as a packed block of
// concatenated varints; the caller bounds the level's byte length with a
// pushed limit, so this loop cannot read past the level's declared end.
func parseLodData(cr *codedReader, cutoff uint32) ([]uint64, error) {
	var level []uint64
	for {
		field, wt, ok, err := cr.readTagWithCutoff(cutoff)
		if err != nil {
			return nil, err
		}
		if !ok {
			if field != 0 {
				return nil, WireDecodingError{"garbled tag in offset-table level"}
			}
			return level, nil
		}
		if field != lodDataField {
			return nil, WireDecodingError{"unexpected field in offset-table level"}
		}

		switch wt {
		case wireVarint:
			v, err := cr.readVarint()
			if err != nil {
				return nil, err
			}
			level = append(level, v)
		case wireLengthDelimited:
			n, err := cr.readVarintSizeAsInt()
			if err != nil {
				return nil, err
			}
			if err := cr.pushLimit(n); err != nil {
				return nil, err
			}
			for cr.bytesUntilLimit() > 0 {
				v, err := cr.readVarint()
				if err != nil {
					return nil, err
				}
				level = append(level, v)
			}
			if err := cr.popLimit(); err != nil {
				return nil, err
			}
		default:
			return nil, WireDecodingError{"offset entry has invalid wire type"}
		}
	}
}

// copyTensorData materializes a dense payload: resolve the destination,
// reshape it, attach the offset table, then stream declaredLength bytes into
// its storage through the copier selected by the destination's memory space.
// For device destinations, success is not reported until every issued
// transfer has been confirmed complete.
func (vr *VariableResponse) copyTensorData(cr *codedReader, declaredLength int) error {
	v := vr.scope.FindVar(vr.meta.Varname)
	if v == nil {
		return VariableNotFoundError{Name: vr.meta.Varname}
	}
	tensor := v.GetTensor()
	if tensor == nil {
		return malformedField(fieldSerialized,
			WireDecodingError{"destination variable does not hold a dense tensor"})
	}

	if int64(len(vr.meta.Lod)) != vr.meta.LodLevel {
		return malformedField(fieldSerialized,
			WireDecodingError{"offset-table level count does not match lod_level"})
	}

	need := numelOf(vr.meta.Dims) * int64(vr.meta.DataType.Size())
	if need < 0 || need != int64(declaredLength) {
		return malformedField(fieldSerialized,
			WireDecodingError{"payload length does not match shape and element type"})
	}

	tensor.Resize(vr.meta.Dims)
	tensor.SetLoD(vr.meta.Lod)

	place := vr.place()
	data := tensor.MutableData(place, vr.meta.DataType)

	c := vr.copierFor(place)
	if err := cr.readRaw(c, data, declaredLength); err != nil {
		return err
	}
	return c.wait()
}

// copySelectedRowsTensorData materializes the value buffer of a sparse
// variable; identical copy discipline, no offset table.
func (vr *VariableResponse) copySelectedRowsTensorData(cr *codedReader, declaredLength int) error {
	v := vr.scope.FindVar(vr.meta.Varname)
	if v == nil {
		return VariableNotFoundError{Name: vr.meta.Varname}
	}
	slr := v.GetSelectedRows()
	if slr == nil {
		return malformedField(fieldSerialized,
			WireDecodingError{"destination variable does not hold selected rows"})
	}

	need := numelOf(vr.meta.Dims) * int64(vr.meta.DataType.Size())
	if need < 0 || need != int64(declaredLength) {
		return malformedField(fieldSerialized,
			WireDecodingError{"payload length does not match shape and element type"})
	}

	tensor := slr.Value()
	tensor.Resize(vr.meta.Dims)

	place := vr.place()
	data := tensor.MutableData(place, vr.meta.DataType)

	c := vr.copierFor(place)
	if err := cr.readRaw(c, data, declaredLength); err != nil {
		return err
	}
	return c.wait()
}

// copySelectedRowsIndexData streams the raw row-index bytes. Indices are
// populated on the host even when the value buffer is device-resident.
func (vr *VariableResponse) copySelectedRowsIndexData(cr *codedReader, declaredLength int) error {
	v := vr.scope.FindVar(vr.meta.Varname)
	if v == nil {
		return VariableNotFoundError{Name: vr.meta.Varname}
	}
	slr := v.GetSelectedRows()
	if slr == nil {
		return malformedField(fieldRows,
			WireDecodingError{"destination variable does not hold selected rows"})
	}
	if declaredLength%8 != 0 {
		return malformedField(fieldRows,
			WireDecodingError{"row index payload is not a multiple of 8 bytes"})
	}

	rows := slr.MutableRows(declaredLength)
	return cr.readRaw(hostCopier{}, rows, declaredLength)
}

func (vr *VariableResponse) place() Place {
	if vr.devCtx != nil {
		return vr.devCtx.Place()
	}
	return CPUPlace
}

func (vr *VariableResponse) copierFor(place Place) copier {
	if place.IsGPU() && vr.devCtx != nil {
		return deviceCopier{ctx: vr.devCtx}
	}
	return hostCopier{}
}

// malformedField classifies a handler failure: truncation propagates
// unchanged, everything else is pinned to the field that failed.
func malformedField(field uint32, err error) error {
	if errors.Is(err, ErrInsufficientData) {
		return err
	}
	return MalformedFieldError{Field: field, Err: err}
}

func wrongWireType(field uint32, wt wireType) error {
	return MalformedFieldError{
		Field: field,
		Err:   WireDecodingError{"unexpected wire type " + wt.String()},
	}
}
