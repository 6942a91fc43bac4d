package ingest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floatchat/internal/observability"
	"floatchat/internal/types"
)

// --- fakes ---

type fakeWriter struct {
	profiles []types.FloatProfile
	err      error
}

func (f *fakeWriter) Upsert(ctx context.Context, p *types.FloatProfile) error {
	if f.err != nil {
		return f.err
	}
	f.profiles = append(f.profiles, *p)
	return nil
}

type fakeRegistrar struct {
	seen []string
}

func (f *fakeRegistrar) EnsureExists(ctx context.Context, platformNumber string) error {
	f.seen = append(f.seen, platformNumber)
	return nil
}

// buildProfileFile serializes a two-row, two-level CDF-1 profile file. Row 0
// is valid (equatorial Indian Ocean); row 1 carries an out-of-range
// latitude and must be skipped.
func buildProfileFile() []byte {
	var w bytes.Buffer
	be32 := func(v uint32) { _ = binary.Write(&w, binary.BigEndian, v) }
	name := func(s string) {
		be32(uint32(len(s)))
		w.WriteString(s)
		for i := len(s); i%4 != 0; i++ {
			w.WriteByte(0)
		}
	}
	noAttrs := func() { be32(0); be32(0) }

	type varSpec struct {
		name   string
		dims   []uint32
		typ    uint32
		data   func()
		fill   bool
		fill64 bool
	}
	f64 := func(vals ...float64) func() {
		return func() {
			for _, v := range vals {
				_ = binary.Write(&w, binary.BigEndian, v)
			}
		}
	}
	f32 := func(vals ...float32) func() {
		return func() {
			for _, v := range vals {
				_ = binary.Write(&w, binary.BigEndian, v)
			}
		}
	}
	vars := []varSpec{
		{name: "PLATFORM_NUMBER", dims: []uint32{0, 2}, typ: 2,
			data: func() { w.WriteString("2902746 5904321 ") }},
		{name: "CYCLE_NUMBER", dims: []uint32{0}, typ: 4,
			data: func() { _ = binary.Write(&w, binary.BigEndian, []int32{7, 8}) }},
		{name: "JULD", dims: []uint32{0}, typ: 6, fill: true, fill64: true,
			data: f64(27000.0, 27001.0)},
		{name: "LATITUDE", dims: []uint32{0}, typ: 6, fill: true, fill64: true,
			data: f64(-2.0, 95.0)},
		{name: "LONGITUDE", dims: []uint32{0}, typ: 6, fill: true, fill64: true,
			data: f64(65.0, 66.0)},
		{name: "PRES", dims: []uint32{0, 1}, typ: 5, fill: true,
			data: f32(10.0, 200.0, 10.0, 200.0)},
	}
	dataSizes := []uint32{16, 8, 16, 16, 16, 16}

	writeHeader := func(begins []uint32) {
		w.Reset()
		w.WriteString("CDF\x01")
		be32(0) // numrecs
		be32(0x0A)
		be32(3)
		name("N_PROF")
		be32(2)
		name("N_LEVELS")
		be32(2)
		name("STRING8")
		be32(8)
		noAttrs()
		be32(0x0B)
		be32(uint32(len(vars)))
		for i, v := range vars {
			name(v.name)
			be32(uint32(len(v.dims)))
			for _, d := range v.dims {
				be32(d)
			}
			if v.fill {
				be32(0x0C)
				be32(1)
				name("_FillValue")
				be32(v.typ)
				be32(1)
				if v.fill64 {
					_ = binary.Write(&w, binary.BigEndian, 999999.0)
				} else {
					_ = binary.Write(&w, binary.BigEndian, float32(99999.0))
				}
			} else {
				noAttrs()
			}
			be32(v.typ)
			be32(dataSizes[i])
			be32(begins[i])
		}
	}

	begins := make([]uint32, len(vars))
	writeHeader(begins)
	off := uint32(w.Len())
	for i := range vars {
		begins[i] = off
		off += dataSizes[i]
	}
	writeHeader(begins)
	for _, v := range vars {
		v.data()
	}
	return w.Bytes()
}

func TestIngestFile_StoresValidRowsTagsRegion(t *testing.T) {
	writer := &fakeWriter{}
	registrar := &fakeRegistrar{}
	svc := NewService(writer, registrar, 2, nil, observability.NewMetricsForTesting())

	report, err := svc.IngestFile(context.Background(), "R2902746_007.nc", buildProfileFile())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "latitude")

	require.Len(t, writer.profiles, 1)
	p := writer.profiles[0]
	assert.Equal(t, "2902746", p.FloatID)
	assert.Equal(t, 7, p.CycleNumber)
	assert.Equal(t, "indian", p.OceanRegion)
	assert.Equal(t, []string{"2902746"}, registrar.seen)
}

func TestIngestFile_BadFormat(t *testing.T) {
	svc := NewService(&fakeWriter{}, &fakeRegistrar{}, 1, nil, nil)

	_, err := svc.IngestFile(context.Background(), "junk.nc", []byte("not netcdf"))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeIngestFormat, appErr.Code)
}

func TestIngestFile_StorageErrorAborts(t *testing.T) {
	writer := &fakeWriter{err: types.NewAppError(types.ErrCodeInternalDB, "upsert profile", errors.New("down"))}
	svc := NewService(writer, &fakeRegistrar{}, 1, nil, nil)

	_, err := svc.IngestFile(context.Background(), "R2902746_007.nc", buildProfileFile())
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestIngestBatch_MergesReportsAndRecordsFileErrors(t *testing.T) {
	writer := &fakeWriter{}
	svc := NewService(writer, &fakeRegistrar{}, 4, nil, nil)

	report, err := svc.IngestBatch(context.Background(), []NamedFile{
		{Name: "good1.nc", Data: buildProfileFile()},
		{Name: "bad.nc", Data: []byte("not netcdf")},
		{Name: "good2.nc", Data: buildProfileFile()},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 2, report.Skipped)
	// Two skipped-row messages plus one file-level message, file errors last.
	require.Len(t, report.Errors, 3)
	assert.Contains(t, report.Errors[2], "bad.nc")
}

func TestOceanRegion(t *testing.T) {
	assert.Equal(t, "indian", oceanRegion(-2, 65))
	assert.Equal(t, "atlantic", oceanRegion(30, -30))
	assert.Equal(t, "pacific", oceanRegion(10, 170))
	assert.Equal(t, "pacific", oceanRegion(10, -120))
	assert.Equal(t, "southern", oceanRegion(-70, 65))
}
