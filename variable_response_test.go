package tensorwire

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	assert "github.com/stretchr/testify/require"
)

var denseFloat32Fixture = []byte{
	0x0a, 0x01, 'X', // varname "X"
	0x10, 0x00, // type: LoDTensor
	0x18, 0x05, // data_type: float32
	0x22, 0x02, 0x02, 0x03, // dims, packed [2, 3]
	0x3a, 0x18, // serialized, 24 bytes
	0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
	0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17,
}

func sequentialBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func decodeBytes(t *testing.T, scope *Scope, devCtx *DeviceContext, raw []byte, chunkSize int) (*VariableResponse, error) {
	t.Helper()
	src := NewByteSource(raw)
	if chunkSize > 0 {
		src.SetChunkSize(chunkSize)
	}
	resp := NewVariableResponse(scope, devCtx, nil)
	return resp, resp.Parse(src)
}

func TestParseDenseConcreteScenario(t *testing.T) {
	scope := NewScope()
	scope.Var("X")

	resp, err := decodeBytes(t, scope, nil, denseFloat32Fixture, 0)
	assert.NoError(t, err)

	assert.Equal(t, "X", resp.Metadata().Varname)
	assert.Equal(t, VarTypeLoDTensor, resp.Metadata().Type)
	assert.Equal(t, DataTypeFloat32, resp.Metadata().DataType)

	tensor := scope.FindVar("X").GetTensor()
	assert.Equal(t, []int64{2, 3}, tensor.Dims())
	assert.Equal(t, DataTypeFloat32, tensor.DataType())
	assert.Equal(t, sequentialBytes(24), tensor.Data())
}

func TestParseDenseRoundTrip(t *testing.T) {
	payload := sequentialBytes(80)
	for _, packed := range []bool{true, false} {
		for _, chunkSize := range []int{0, 1, 7} {
			req := &VariableRequest{
				Meta: VariableMetadata{
					Varname:  "embedding",
					Type:     VarTypeLoDTensor,
					DataType: DataTypeFloat32,
					Dims:     []int64{5, 4},
					LodLevel: 2,
					Lod:      [][]uint64{{0, 2, 5}, {0, 1, 3, 5}},
				},
				Payload:    payload,
				PackedDims: packed,
				PackedLod:  packed,
			}

			scope := NewScope()
			scope.Var("embedding")
			resp, err := decodeBytes(t, scope, nil, req.Encode(), chunkSize)
			assert.NoError(t, err)

			if !reflect.DeepEqual(req.Meta, *resp.Metadata()) {
				t.Fatal(spew.Sprintf("decoded metadata does not match the encoded one\nencoded: %+v\ndecoded: %+v", req.Meta, *resp.Metadata()))
			}

			tensor := scope.FindVar("embedding").GetTensor()
			assert.Equal(t, []int64{5, 4}, tensor.Dims())
			assert.Equal(t, [][]uint64{{0, 2, 5}, {0, 1, 3, 5}}, tensor.LoD())
			assert.Equal(t, payload, tensor.Data())
		}
	}
}

func TestParseSelectedRowsRoundTrip(t *testing.T) {
	payload := sequentialBytes(24)
	rows := make([]byte, 16)
	binary.LittleEndian.PutUint64(rows[0:], 5)
	binary.LittleEndian.PutUint64(rows[8:], 9)

	req := &VariableRequest{
		Meta: VariableMetadata{
			Varname:  "grad",
			Type:     VarTypeSelectedRows,
			DataType: DataTypeFloat32,
			Dims:     []int64{2, 3},
		},
		Payload: payload,
		Rows:    rows,
	}

	scope := NewScope()
	scope.Var("grad")
	_, err := decodeBytes(t, scope, nil, req.Encode(), 3)
	assert.NoError(t, err)

	slr := scope.FindVar("grad").GetSelectedRows()
	assert.Equal(t, []int64{5, 9}, slr.Rows())
	assert.Equal(t, []int64{2, 3}, slr.Value().Dims())
	assert.Equal(t, payload, slr.Value().Data())
}

func TestParseEmptyMessage(t *testing.T) {
	resp, err := decodeBytes(t, NewScope(), nil, nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, "", resp.Metadata().Varname)
}

func TestParseUnknownTopLevelField(t *testing.T) {
	// field 9 is not part of the message
	_, err := decodeBytes(t, NewScope(), nil, []byte{0x48, 0x01}, 0)
	assert.ErrorIs(t, err, ErrUnknownField)

	// tag 128 exceeds the cutoff: a garbled end-of-message marker
	_, err = decodeBytes(t, NewScope(), nil, []byte{0x80, 0x01}, 0)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestParseDimsWrongWireType(t *testing.T) {
	// field 4 with wire type 5
	_, err := decodeBytes(t, NewScope(), nil, []byte{0x25}, 0)

	var malformed MalformedFieldError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, uint32(fieldDims), malformed.Field)
}

func TestParseSerializedBeforeMetadataPanics(t *testing.T) {
	fixtures := [][]byte{
		{0x3a, 0x01, 0x00},                  // serialized with nothing before it
		{0x0a, 0x01, 'X', 0x3a, 0x01, 0x00}, // varname set but type missing
		{0x42, 0x08},                        // rows with nothing before it
	}
	for _, raw := range fixtures {
		raw := raw
		func() {
			defer func() {
				p := recover()
				assert.NotNil(t, p, "expected a precondition escalation")
				_, ok := p.(PreconditionViolation)
				assert.True(t, ok, "panic value should be a PreconditionViolation, got %v", p)
			}()
			_, _ = decodeBytes(t, NewScope(), nil, raw, 0)
		}()
	}
}

func TestParseTruncationAtEveryPrefix(t *testing.T) {
	payload := sequentialBytes(24)

	var pe wireEncoder
	boundaries := map[int]bool{0: true}
	mark := func() { boundaries[len(pe.raw)] = true }

	pe.putTag(fieldVarname, wireLengthDelimited)
	pe.putLengthDelimited([]byte("X"))
	mark()
	pe.putTag(fieldType, wireVarint)
	pe.putVarint(uint64(VarTypeLoDTensor))
	mark()
	pe.putTag(fieldDataType, wireVarint)
	pe.putVarint(uint64(DataTypeFloat32))
	mark()
	pe.putTag(fieldDims, wireLengthDelimited)
	pe.putLengthDelimited([]byte{0x02, 0x03})
	mark()
	pe.putTag(fieldSerialized, wireLengthDelimited)
	pe.putLengthDelimited(payload)

	msg := pe.raw
	for cut := 0; cut < len(msg); cut++ {
		scope := NewScope()
		scope.Var("X")
		_, err := decodeBytes(t, scope, nil, msg[:cut], 0)
		if boundaries[cut] {
			assert.NoError(t, err, "cut at field boundary %d", cut)
		} else {
			assert.ErrorIs(t, err, ErrInsufficientData, "cut at offset %d", cut)
		}
	}
}

func TestParseLodPackedBlockOverrunsLevel(t *testing.T) {
	raw := []byte{
		0x32, 0x03, // lod level, 3 bytes
		0x0a, 0x0a, 0x00, // packed block claiming 10 bytes inside them
	}
	_, err := decodeBytes(t, NewScope(), nil, raw, 0)

	var malformed MalformedFieldError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, uint32(fieldLod), malformed.Field)
}

func TestParseLodLevelOverrunsMessage(t *testing.T) {
	// the level claims 8 bytes but the stream ends after 2
	raw := []byte{
		0x32, 0x08,
		0x08, 0x01,
	}
	_, err := decodeBytes(t, NewScope(), nil, raw, 0)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestParseLodUnexpectedInnerField(t *testing.T) {
	raw := []byte{
		0x32, 0x02,
		0x10, 0x01, // field 2 inside a level
	}
	_, err := decodeBytes(t, NewScope(), nil, raw, 0)

	var malformed MalformedFieldError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, uint32(fieldLod), malformed.Field)
}

func TestParseLodDepthBound(t *testing.T) {
	conf := NewConfig()
	conf.Decoder.MaxRecursionDepth = 0

	src := NewByteSource([]byte{0x32, 0x02, 0x08, 0x01})
	err := NewVariableResponse(NewScope(), nil, conf).Parse(src)

	var malformed MalformedFieldError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, uint32(fieldLod), malformed.Field)
}

func TestParsePayloadLengthMismatch(t *testing.T) {
	req := &VariableRequest{
		Meta: VariableMetadata{
			Varname:  "X",
			Type:     VarTypeLoDTensor,
			DataType: DataTypeFloat32,
			Dims:     []int64{2, 3},
		},
		Payload: sequentialBytes(23), // one byte short of 2*3*4
	}

	scope := NewScope()
	scope.Var("X")
	_, err := decodeBytes(t, scope, nil, req.Encode(), 0)

	var malformed MalformedFieldError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, uint32(fieldSerialized), malformed.Field)
}

func TestParseRowsNotMultipleOfEight(t *testing.T) {
	req := &VariableRequest{
		Meta: VariableMetadata{
			Varname: "X",
			Type:    VarTypeSelectedRows,
		},
		Rows: sequentialBytes(7),
	}

	scope := NewScope()
	scope.Var("X")
	_, err := decodeBytes(t, scope, nil, req.Encode(), 0)

	var malformed MalformedFieldError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, uint32(fieldRows), malformed.Field)
}

func TestParseVariableNotFound(t *testing.T) {
	_, err := decodeBytes(t, NewScope(), nil, denseFloat32Fixture, 0)

	var notFound VariableNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, "X", notFound.Name)
}

func TestParseDestinationKindMismatch(t *testing.T) {
	scope := NewScope()
	scope.Var("X").GetSelectedRows() // already holds a sparse structure

	_, err := decodeBytes(t, scope, nil, denseFloat32Fixture, 0)

	var malformed MalformedFieldError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, uint32(fieldSerialized), malformed.Field)
}

func TestParseIntoDeviceMemory(t *testing.T) {
	devCtx := NewDeviceContext(GPUPlace)
	defer devCtx.Close()

	scope := NewScope()
	scope.Var("X")
	_, err := decodeBytes(t, scope, devCtx, denseFloat32Fixture, 5)
	assert.NoError(t, err)

	// Parse does not return success until the device stream has been
	// synchronized, so the destination is safe to read immediately.
	tensor := scope.FindVar("X").GetTensor()
	assert.Equal(t, GPUPlace, tensor.Place())
	assert.Equal(t, sequentialBytes(24), tensor.Data())
}

func TestParseRecordsPerVariableMetrics(t *testing.T) {
	conf := NewConfig()
	scope := NewScope()
	scope.Var("X")

	resp := NewVariableResponse(scope, nil, conf)
	assert.NoError(t, resp.Parse(NewByteSource(denseFloat32Fixture)))

	meter := conf.MetricRegistry.Get("messages-decoded-for-variable-X")
	assert.NotNil(t, meter)
}
