package box

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/mrjoshuak/go-jp2walk/internal/bio"
	"github.com/mrjoshuak/go-jp2walk/internal/codestream"
)

// codestreamBytes builds SOC SIZ SOT QCD SOD <data> EOC with an explicit Psot.
func codestreamBytes(dataLen int) []byte {
	var b bytes.Buffer
	marker := func(m codestream.Marker) {
		binary.Write(&b, binary.BigEndian, uint16(m))
	}
	segment := func(m codestream.Marker, payload []byte) {
		marker(m)
		binary.Write(&b, binary.BigEndian, uint16(len(payload)+2))
		b.Write(payload)
	}

	siz := make([]byte, 39)
	binary.BigEndian.PutUint32(siz[2:], 32)
	binary.BigEndian.PutUint32(siz[6:], 32)
	binary.BigEndian.PutUint32(siz[18:], 32)
	binary.BigEndian.PutUint32(siz[22:], 32)
	binary.BigEndian.PutUint16(siz[34:], 1)
	siz[36], siz[37], siz[38] = 7, 1, 1
	qcd := []byte{0x40, 0x48, 0x50, 0x50}

	sot := make([]byte, 8)
	binary.BigEndian.PutUint32(sot[2:], uint32(12+4+len(qcd)+2+dataLen))
	sot[7] = 1

	marker(codestream.SOC)
	segment(codestream.SIZ, siz)
	segment(codestream.SOT, sot)
	segment(codestream.QCD, qcd)
	marker(codestream.SOD)
	b.Write(make([]byte, dataLen))
	marker(codestream.EOC)
	return b.Bytes()
}

func boxBytes(typ Type, contents []byte) []byte {
	return append(header(uint32(8+len(contents)), typ), contents...)
}

func signatureBox() []byte {
	return boxBytes(TypeJP2Signature, Signature)
}

func fileTypeBox() []byte {
	return boxBytes(TypeFileType, []byte{'j', 'p', '2', ' ', 0, 0, 0, 0, 'j', 'p', '2', ' '})
}

func join(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

type visit struct {
	Type   Type
	Offset int64
	Length int64
	Depth  int
}

type trace struct {
	boxes   []visit
	markers []codestream.Segment
	descend bool
}

func (tr *trace) onBox(h Header, w *Walker) (codestream.Outcome, error) {
	tr.boxes = append(tr.boxes, visit{h.Type, h.Offset, h.Length, w.Depth()})
	if tr.descend && h.Type.IsSuperBox() {
		if err := w.Descend(h); err != nil {
			return codestream.SkipPayload, err
		}
		return codestream.AlreadyConsumed, nil
	}
	return codestream.SkipPayload, nil
}

func (tr *trace) onMarker(seg codestream.Segment, r *bio.Reader) (codestream.Outcome, error) {
	tr.markers = append(tr.markers, seg)
	return codestream.SkipPayload, nil
}

func (tr *trace) markerCodes() []codestream.Marker {
	var ms []codestream.Marker
	for _, s := range tr.markers {
		ms = append(ms, s.Marker)
	}
	return ms
}

func walkBytes(data []byte, tr *trace, maxDepth int) (*bio.Reader, error) {
	r, err := bio.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return r, Walk(r, int64(len(data)), tr.onBox, tr.onMarker, maxDepth)
}

func TestWalk_MinimalJP2(t *testing.T) {
	cs := codestreamBytes(100)
	data := join(signatureBox(), fileTypeBox(), boxBytes(TypeContCodestream, cs))

	var tr trace
	r, err := walkBytes(data, &tr, 0)
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	want := []visit{
		{TypeJP2Signature, 0, 12, 0},
		{TypeFileType, 12, 20, 0},
		{TypeContCodestream, 32, int64(8 + len(cs)), 0},
	}
	if !reflect.DeepEqual(tr.boxes, want) {
		t.Errorf("boxes = %+v, want %+v", tr.boxes, want)
	}

	wantMarkers := []codestream.Marker{
		codestream.SOC, codestream.SIZ, codestream.SOT, codestream.QCD, codestream.SOD, codestream.EOC,
	}
	if got := tr.markerCodes(); !reflect.DeepEqual(got, wantMarkers) {
		t.Fatalf("markers = %v, want %v", got, wantMarkers)
	}
	if soc := tr.markers[0]; soc.Offset != 40 {
		t.Errorf("SOC offset = %d, want 40", soc.Offset)
	}
	if sod := tr.markers[4]; sod.Length != 100 {
		t.Errorf("SOD length = %d, want 100", sod.Length)
	}
	if r.Offset() != int64(len(data)) {
		t.Errorf("Offset() = %d, want %d", r.Offset(), len(data))
	}
}

func TestWalk_NoMarkerCallback(t *testing.T) {
	data := join(signatureBox(), fileTypeBox(), boxBytes(TypeContCodestream, codestreamBytes(10)))
	r := newReader(t, data)

	var tr trace
	if err := Walk(r, int64(len(data)), tr.onBox, nil, 0); err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(tr.boxes) != 3 {
		t.Errorf("visited %d boxes, want 3", len(tr.boxes))
	}
	if r.Offset() != int64(len(data)) {
		t.Errorf("Offset() = %d, want %d", r.Offset(), len(data))
	}
}

func TestWalk_NilBoxCallback(t *testing.T) {
	data := join(signatureBox(), fileTypeBox(), boxBytes(TypeContCodestream, codestreamBytes(10)))
	r := newReader(t, data)

	var tr trace
	if err := Walk(r, int64(len(data)), nil, tr.onMarker, 0); err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(tr.markers) != 6 {
		t.Errorf("visited %d markers, want 6", len(tr.markers))
	}
}

func TestWalk_ExtendedLength(t *testing.T) {
	cs := codestreamBytes(20)
	jp2c := append(extendedHeader(uint64(16+len(cs)), TypeContCodestream), cs...)
	data := join(signatureBox(), fileTypeBox(), jp2c)

	var tr trace
	if _, err := walkBytes(data, &tr, 0); err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if got := tr.boxes[2]; got.Length != int64(16+len(cs)) {
		t.Errorf("jp2c length = %d, want %d", got.Length, 16+len(cs))
	}
	if soc := tr.markers[0]; soc.Offset != 32+16 {
		t.Errorf("SOC offset = %d, want %d", soc.Offset, 32+16)
	}
	if n := len(tr.markers); n != 6 {
		t.Errorf("visited %d markers, want 6", n)
	}
}

func TestWalk_ZeroLengthCodestreamBox(t *testing.T) {
	cs := codestreamBytes(33)
	data := join(signatureBox(), fileTypeBox(), header(0, TypeContCodestream), cs)

	var tr trace
	r, err := walkBytes(data, &tr, 0)
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if got := tr.boxes[2]; got.Length != int64(len(data))-32 {
		t.Errorf("jp2c length = %d, want %d", got.Length, int64(len(data))-32)
	}
	if got := tr.markers[len(tr.markers)-1].Marker; got != codestream.EOC {
		t.Errorf("last marker = %s, want EOC", got)
	}
	if r.Offset() != int64(len(data)) {
		t.Errorf("Offset() = %d, want %d", r.Offset(), len(data))
	}
}

func TestWalk_BoxesAfterCodestream(t *testing.T) {
	data := join(
		signatureBox(),
		fileTypeBox(),
		boxBytes(TypeContCodestream, codestreamBytes(5)),
		boxBytes(TypeXML, []byte("<x/>")),
	)

	var tr trace
	if _, err := walkBytes(data, &tr, 0); err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if n := len(tr.boxes); n != 4 || tr.boxes[3].Type != TypeXML {
		t.Errorf("boxes = %+v, want xml last", tr.boxes)
	}
}

func jp2Header(children ...[]byte) []byte {
	return boxBytes(TypeJP2Header, join(children...))
}

func TestWalker_Descend(t *testing.T) {
	ihdr := boxBytes(TypeImageHeader, make([]byte, 14))
	colr := boxBytes(TypeColorSpec, []byte{1, 0, 0, 0, 0, 0, 16})
	data := join(signatureBox(), fileTypeBox(), jp2Header(ihdr, colr), boxBytes(TypeContCodestream, codestreamBytes(8)))

	tr := trace{descend: true}
	if _, err := walkBytes(data, &tr, 0); err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	want := []visit{
		{TypeJP2Signature, 0, 12, 0},
		{TypeFileType, 12, 20, 0},
		{TypeJP2Header, 32, 8 + 22 + 15, 0},
		{TypeImageHeader, 40, 22, 1},
		{TypeColorSpec, 62, 15, 1},
		{TypeContCodestream, 77, int64(8 + len(codestreamBytes(8))), 0},
	}
	if !reflect.DeepEqual(tr.boxes, want) {
		t.Errorf("boxes = %+v, want %+v", tr.boxes, want)
	}
}

func TestWalker_DescendTooDeep(t *testing.T) {
	inner := boxBytes(TypeImageHeader, make([]byte, 14))
	data := join(signatureBox(), jp2Header(jp2Header(jp2Header(inner))))

	tr := trace{descend: true}
	if _, err := walkBytes(data, &tr, 2); !errors.Is(err, ErrTooDeep) {
		t.Fatalf("Walk() error = %v, want ErrTooDeep", err)
	}

	tr = trace{descend: true}
	if _, err := walkBytes(data, &tr, 3); err != nil {
		t.Fatalf("Walk() with depth 3 error: %v", err)
	}
	if last := tr.boxes[len(tr.boxes)-1]; last.Type != TypeImageHeader || last.Depth != 3 {
		t.Errorf("innermost box = %+v, want ihdr at depth 3", last)
	}
}

func TestWalker_AlreadyConsumed(t *testing.T) {
	data := join(signatureBox(), fileTypeBox())
	r := newReader(t, data)

	var brand Type
	onBox := func(h Header, w *Walker) (codestream.Outcome, error) {
		if h.Type != TypeFileType {
			return codestream.SkipPayload, nil
		}
		contents, err := w.Reader().Bytes(h.PayloadLength())
		if err != nil {
			return codestream.SkipPayload, err
		}
		f, err := ParseFileType(contents)
		if err != nil {
			return codestream.SkipPayload, err
		}
		brand = f.Brand
		return codestream.AlreadyConsumed, nil
	}
	if err := Walk(r, int64(len(data)), onBox, nil, 0); err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if brand != BrandJP2 {
		t.Errorf("brand = %q, want %q", brand, BrandJP2)
	}
}

func TestWalker_AlreadyConsumedOutOfRange(t *testing.T) {
	data := join(signatureBox(), fileTypeBox())
	r := newReader(t, data)

	onBox := func(h Header, w *Walker) (codestream.Outcome, error) {
		if err := w.Reader().SeekTo(h.Offset); err != nil {
			return codestream.SkipPayload, err
		}
		return codestream.AlreadyConsumed, nil
	}
	if err := Walk(r, int64(len(data)), onBox, nil, 0); !errors.Is(err, codestream.ErrOverrun) {
		t.Fatalf("Walk() error = %v, want ErrOverrun", err)
	}
}

func TestWalk_Errors(t *testing.T) {
	cs := codestreamBytes(10)
	badCS := append([]byte{}, cs...)
	// SIZ length field of 1
	badCS[5] = 1

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"box too long", join(signatureBox(), header(500, TypeFileType)), ErrBoxLength},
		{"box too short", join(signatureBox(), pad(header(3, TypeFileType), 8)), ErrBoxLength},
		{"trailing fragment", join(signatureBox(), []byte{0, 0, 0}), bio.ErrTruncated},
		{"bad codestream", join(signatureBox(), boxBytes(TypeContCodestream, badCS)), codestream.ErrSegmentLength},
		{"codestream past box", join(signatureBox(), boxBytes(TypeContCodestream, cs[:len(cs)-20])), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr trace
			_, err := walkBytes(tt.data, &tr, 0)
			if err == nil {
				t.Fatal("Walk() succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Walk() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWalk_BudgetPastStream(t *testing.T) {
	data := signatureBox()
	r := newReader(t, data)
	if err := Walk(r, int64(len(data))+1, nil, nil, 0); !errors.Is(err, bio.ErrTruncated) {
		t.Fatalf("Walk() error = %v, want ErrTruncated", err)
	}
}

func TestWalk_CallbackError(t *testing.T) {
	data := join(signatureBox(), fileTypeBox())
	r := newReader(t, data)
	stop := errors.New("stop")

	calls := 0
	onBox := func(h Header, w *Walker) (codestream.Outcome, error) {
		calls++
		return codestream.SkipPayload, stop
	}
	if err := Walk(r, int64(len(data)), onBox, nil, 0); !errors.Is(err, stop) {
		t.Fatalf("Walk() error = %v, want %v", err, stop)
	}
	if calls != 1 {
		t.Errorf("callback called %d times, want 1", calls)
	}
}

func TestWalk_Idempotent(t *testing.T) {
	data := join(signatureBox(), fileTypeBox(), jp2Header(boxBytes(TypeImageHeader, make([]byte, 14))),
		boxBytes(TypeContCodestream, codestreamBytes(64)))

	first := trace{descend: true}
	second := trace{descend: true}
	if _, err := walkBytes(data, &first, 0); err != nil {
		t.Fatalf("first Walk() error: %v", err)
	}
	if _, err := walkBytes(data, &second, 0); err != nil {
		t.Fatalf("second Walk() error: %v", err)
	}
	if !reflect.DeepEqual(first.boxes, second.boxes) || !reflect.DeepEqual(first.markers, second.markers) {
		t.Error("walks over the same bytes differ")
	}
}
