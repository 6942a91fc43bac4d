// Package netcdf decodes ARGO float-profile files in the NetCDF classic
// format (CDF-1 and CDF-2) into typed FloatProfile records.
//
// The package is split in two layers: this file implements the generic
// classic-format container (dimensions, attributes, variables, big-endian
// data slabs), and parser.go maps the ARGO profile schema onto it with
// per-row validation. Decoding is pure: no persistence side effects.
package netcdf

import (
	"encoding/binary"
	"fmt"
	"math"

	"floatchat/internal/types"
)

// Header tags from the classic format specification.
const (
	tagDimension = 0x0A // NC_DIMENSION
	tagVariable  = 0x0B // NC_VARIABLE
	tagAttribute = 0x0C // NC_ATTRIBUTE
	tagAbsent    = 0x00 // zero tag + zero nelems for an empty list
)

// External data types from the classic format specification.
const (
	ncByte   = 1
	ncChar   = 2
	ncShort  = 3
	ncInt    = 4
	ncFloat  = 5
	ncDouble = 6
)

// typeSize returns the external size in bytes of a classic data type.
func typeSize(t int) int {
	switch t {
	case ncByte, ncChar:
		return 1
	case ncShort:
		return 2
	case ncInt, ncFloat:
		return 4
	case ncDouble:
		return 8
	}
	return 0
}

// Dim is a named dimension. Length 0 marks the record dimension.
type Dim struct {
	Name   string
	Length int
}

// Attr is a decoded attribute. Numeric values are widened to float64;
// character data is kept as a string.
type Attr struct {
	Name    string
	Type    int
	Str     string
	Numbers []float64
}

// Float reports the first numeric value and whether one exists.
func (a *Attr) Float() (float64, bool) {
	if len(a.Numbers) == 0 {
		return 0, false
	}
	return a.Numbers[0], true
}

// Var is a variable header entry: name, shape, attributes, and the byte
// offset of its data slab.
type Var struct {
	Name   string
	DimIDs []int
	Attrs  []Attr
	Type   int
	VSize  int
	Begin  int64
}

// Attr returns the named attribute, or nil.
func (v *Var) Attr(name string) *Attr {
	for i := range v.Attrs {
		if v.Attrs[i].Name == name {
			return &v.Attrs[i]
		}
	}
	return nil
}

// FillValue returns the variable's _FillValue attribute as a float64,
// or ok=false when the variable declares none.
func (v *Var) FillValue() (float64, bool) {
	a := v.Attr("_FillValue")
	if a == nil {
		return 0, false
	}
	return a.Float()
}

// File is a fully parsed classic-format file. Data slabs are decoded lazily
// from the retained byte buffer.
type File struct {
	Version int // 1 = CDF-1 (32-bit offsets), 2 = CDF-2 (64-bit offsets)
	NumRecs int
	Dims    []Dim
	Attrs   []Attr
	Vars    []Var

	buf     []byte
	recSize int // total bytes of one record across all record variables
}

// Var returns the named variable, or nil.
func (f *File) Var(name string) *Var {
	for i := range f.Vars {
		if f.Vars[i].Name == name {
			return &f.Vars[i]
		}
	}
	return nil
}

// DimLen returns the effective length of a dimension: record dimensions
// report the record count.
func (f *File) DimLen(id int) int {
	if id < 0 || id >= len(f.Dims) {
		return 0
	}
	if f.Dims[id].Length == 0 {
		return f.NumRecs
	}
	return f.Dims[id].Length
}

// Shape returns the effective lengths of a variable's dimensions.
func (f *File) Shape(v *Var) []int {
	shape := make([]int, len(v.DimIDs))
	for i, id := range v.DimIDs {
		shape[i] = f.DimLen(id)
	}
	return shape
}

// isRecord reports whether the variable varies along the record dimension.
func (f *File) isRecord(v *Var) bool {
	return len(v.DimIDs) > 0 && f.Dims[v.DimIDs[0]].Length == 0
}

// formatErr wraps a malformed-file condition in the ingestion taxonomy.
func formatErr(msg string, args ...any) *types.AppError {
	return types.NewAppError(types.ErrCodeIngestFormat, fmt.Sprintf(msg, args...), nil)
}

// cursor walks the header bytes with bounds checking. Every read failure
// surfaces as a FormatError rather than a panic.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remain() int { return len(c.buf) - c.pos }

func (c *cursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.remain() < n {
		return nil, formatErr("truncated header at offset %d (need %d bytes)", c.pos, n)
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) uint32() (uint32, error) {
	b, err := c.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *cursor) int32() (int, error) {
	v, err := c.uint32()
	return int(int32(v)), err
}

func (c *cursor) uint64() (uint64, error) {
	b, err := c.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// name reads a length-prefixed name padded to a 4-byte boundary.
func (c *cursor) name() (string, error) {
	n, err := c.int32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", formatErr("negative name length at offset %d", c.pos)
	}
	b, err := c.bytes(pad4(n))
	if err != nil {
		return "", err
	}
	return string(b[:n]), nil
}

// pad4 rounds n up to the next multiple of 4.
func pad4(n int) int {
	return (n + 3) &^ 3
}

// Decode parses a classic-format NetCDF byte stream. It fails with a
// FormatError when the magic, header structure, or offsets are malformed.
func Decode(data []byte) (*File, error) {
	if len(data) < 4 || data[0] != 'C' || data[1] != 'D' || data[2] != 'F' {
		return nil, formatErr("not a NetCDF classic file (bad magic)")
	}
	version := int(data[3])
	if version != 1 && version != 2 {
		// Version 5 (CDF-5) and HDF5-based NetCDF-4 are out of scope;
		// ARGO profile files are distributed as classic format.
		return nil, formatErr("unsupported NetCDF version byte %d", version)
	}

	f := &File{Version: version, buf: data}
	c := &cursor{buf: data, pos: 4}

	numRecs, err := c.uint32()
	if err != nil {
		return nil, err
	}
	// 0xFFFFFFFF means "streaming"; treat as zero records since profile
	// files always carry a concrete count.
	if numRecs == 0xFFFFFFFF {
		numRecs = 0
	}
	f.NumRecs = int(numRecs)

	if f.Dims, err = readDimList(c); err != nil {
		return nil, err
	}
	if f.Attrs, err = readAttrList(c); err != nil {
		return nil, err
	}
	if f.Vars, err = readVarList(c, version, len(f.Dims)); err != nil {
		return nil, err
	}

	// Compute the record stride: the sum of the per-record sizes of every
	// record variable. The classic format special-cases a single record
	// variable, whose records are packed without padding.
	var recVars []*Var
	for i := range f.Vars {
		if f.isRecord(&f.Vars[i]) {
			recVars = append(recVars, &f.Vars[i])
		}
	}
	for _, v := range recVars {
		per, ok := f.dataSize(typeSize(v.Type), v.DimIDs[1:])
		if !ok {
			return nil, formatErr("variable %q record size exceeds file size", v.Name)
		}
		if len(recVars) == 1 {
			f.recSize = int(per)
		} else {
			f.recSize += pad4(int(per))
		}
	}

	return f, nil
}

// dataSize multiplies element size by dimension lengths, capping each step
// at the file size so hostile lengths cannot overflow into a negative or
// wrapped slice bound.
func (f *File) dataSize(elemSize int, dimIDs []int) (int64, bool) {
	total := int64(elemSize)
	for _, id := range dimIDs {
		total *= int64(f.DimLen(id))
		if total < 0 || total > int64(len(f.buf)) {
			return 0, false
		}
	}
	return total, true
}

func readDimList(c *cursor) ([]Dim, error) {
	tag, err := c.int32()
	if err != nil {
		return nil, err
	}
	count, err := c.int32()
	if err != nil {
		return nil, err
	}
	if tag == tagAbsent && count == 0 {
		return nil, nil
	}
	if tag != tagDimension {
		return nil, formatErr("expected dimension list tag, got 0x%02X", tag)
	}
	dims := make([]Dim, 0, count)
	for i := 0; i < count; i++ {
		name, err := c.name()
		if err != nil {
			return nil, err
		}
		length, err := c.int32()
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, formatErr("dimension %q has negative length", name)
		}
		dims = append(dims, Dim{Name: name, Length: length})
	}
	return dims, nil
}

func readAttrList(c *cursor) ([]Attr, error) {
	tag, err := c.int32()
	if err != nil {
		return nil, err
	}
	count, err := c.int32()
	if err != nil {
		return nil, err
	}
	if tag == tagAbsent && count == 0 {
		return nil, nil
	}
	if tag != tagAttribute {
		return nil, formatErr("expected attribute list tag, got 0x%02X", tag)
	}
	attrs := make([]Attr, 0, count)
	for i := 0; i < count; i++ {
		a, err := readAttr(c)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func readAttr(c *cursor) (Attr, error) {
	name, err := c.name()
	if err != nil {
		return Attr{}, err
	}
	typ, err := c.int32()
	if err != nil {
		return Attr{}, err
	}
	nelems, err := c.int32()
	if err != nil {
		return Attr{}, err
	}
	sz := typeSize(typ)
	if sz == 0 || nelems < 0 {
		return Attr{}, formatErr("attribute %q has invalid type %d", name, typ)
	}
	raw, err := c.bytes(pad4(nelems * sz))
	if err != nil {
		return Attr{}, err
	}
	raw = raw[:nelems*sz]

	a := Attr{Name: name, Type: typ}
	if typ == ncChar {
		a.Str = string(raw)
		return a, nil
	}
	a.Numbers = decodeNumbers(raw, typ, nelems)
	return a, nil
}

func readVarList(c *cursor, version, numDims int) ([]Var, error) {
	tag, err := c.int32()
	if err != nil {
		return nil, err
	}
	count, err := c.int32()
	if err != nil {
		return nil, err
	}
	if tag == tagAbsent && count == 0 {
		return nil, nil
	}
	if tag != tagVariable {
		return nil, formatErr("expected variable list tag, got 0x%02X", tag)
	}
	vars := make([]Var, 0, count)
	for i := 0; i < count; i++ {
		name, err := c.name()
		if err != nil {
			return nil, err
		}
		ndims, err := c.int32()
		if err != nil {
			return nil, err
		}
		if ndims < 0 || ndims > 8 {
			return nil, formatErr("variable %q has implausible rank %d", name, ndims)
		}
		dimIDs := make([]int, ndims)
		for j := range dimIDs {
			if dimIDs[j], err = c.int32(); err != nil {
				return nil, err
			}
			if dimIDs[j] < 0 || dimIDs[j] >= numDims {
				return nil, formatErr("variable %q references dimension %d of %d", name, dimIDs[j], numDims)
			}
		}
		attrs, err := readAttrList(c)
		if err != nil {
			return nil, err
		}
		typ, err := c.int32()
		if err != nil {
			return nil, err
		}
		if typeSize(typ) == 0 {
			return nil, formatErr("variable %q has invalid type %d", name, typ)
		}
		vsize, err := c.int32()
		if err != nil {
			return nil, err
		}
		var begin int64
		if version == 1 {
			b, err := c.uint32()
			if err != nil {
				return nil, err
			}
			begin = int64(b)
		} else {
			b, err := c.uint64()
			if err != nil {
				return nil, err
			}
			begin = int64(b)
		}
		vars = append(vars, Var{
			Name:   name,
			DimIDs: dimIDs,
			Attrs:  attrs,
			Type:   typ,
			VSize:  vsize,
			Begin:  begin,
		})
	}
	return vars, nil
}

// decodeNumbers converts a big-endian raw slab into widened float64 values.
func decodeNumbers(raw []byte, typ, n int) []float64 {
	out := make([]float64, n)
	switch typ {
	case ncByte:
		for i := 0; i < n; i++ {
			out[i] = float64(int8(raw[i]))
		}
	case ncShort:
		for i := 0; i < n; i++ {
			out[i] = float64(int16(binary.BigEndian.Uint16(raw[i*2:])))
		}
	case ncInt:
		for i := 0; i < n; i++ {
			out[i] = float64(int32(binary.BigEndian.Uint32(raw[i*4:])))
		}
	case ncFloat:
		for i := 0; i < n; i++ {
			out[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(raw[i*4:])))
		}
	case ncDouble:
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(raw[i*8:]))
		}
	}
	return out
}

// rawData returns the full data slab of a variable, stitching record slabs
// into one contiguous slice for record variables.
func (f *File) rawData(v *Var) ([]byte, error) {
	elemSize := typeSize(v.Type)
	if !f.isRecord(v) {
		total, ok := f.dataSize(elemSize, v.DimIDs)
		if !ok {
			return nil, formatErr("variable %q data size exceeds file size %d", v.Name, len(f.buf))
		}
		end := v.Begin + total
		if v.Begin < 0 || end > int64(len(f.buf)) {
			return nil, formatErr("variable %q data [%d, %d) exceeds file size %d", v.Name, v.Begin, end, len(f.buf))
		}
		return f.buf[v.Begin:end], nil
	}

	per, ok := f.dataSize(elemSize, v.DimIDs[1:])
	if !ok {
		return nil, formatErr("variable %q record size exceeds file size %d", v.Name, len(f.buf))
	}
	if f.NumRecs > 0 && per > int64(len(f.buf))/int64(f.NumRecs) {
		return nil, formatErr("variable %q record data exceeds file size %d", v.Name, len(f.buf))
	}
	out := make([]byte, 0, per*int64(f.NumRecs))
	for r := 0; r < f.NumRecs; r++ {
		off := v.Begin + int64(r)*int64(f.recSize)
		end := off + per
		if off < 0 || end > int64(len(f.buf)) {
			return nil, formatErr("variable %q record %d exceeds file size", v.Name, r)
		}
		out = append(out, f.buf[off:end]...)
	}
	return out, nil
}

// Float64s reads a variable's full data slab widened to float64, in
// row-major order.
func (f *File) Float64s(v *Var) ([]float64, error) {
	raw, err := f.rawData(v)
	if err != nil {
		return nil, err
	}
	n := len(raw) / typeSize(v.Type)
	return decodeNumbers(raw, v.Type, n), nil
}

// Chars reads a character variable's data slab as raw bytes.
func (f *File) Chars(v *Var) ([]byte, error) {
	if v.Type != ncChar {
		return nil, types.NewAppError(types.ErrCodeIngestSchema,
			fmt.Sprintf("variable %q is not character data", v.Name), nil)
	}
	return f.rawData(v)
}
