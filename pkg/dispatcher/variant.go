package dispatcher

// VariantTag is the tagged-union discriminant (spec.md §6 "Variant
// type"): unsigned/signed integers of widths 8/16/32/64, two float
// widths, and an opaque pointer.
type VariantTag int

const (
	VariantU8 VariantTag = iota
	VariantU16
	VariantU32
	VariantU64
	VariantI8
	VariantI16
	VariantI32
	VariantI64
	VariantF32
	VariantF64
	VariantPtr
)

// Variant carries one typed config-property value, with a 2-field
// version per spec.md §6.
type Variant struct {
	VersionMajor uint8
	VersionMinor uint8
	Tag          VariantTag

	i   int64
	u   uint64
	f   float64
	ptr uintptr
}

func VariantFromU32(v uint32) Variant { return Variant{Tag: VariantU32, u: uint64(v)} }
func VariantFromU64(v uint64) Variant { return Variant{Tag: VariantU64, u: v} }
func VariantFromI32(v int32) Variant  { return Variant{Tag: VariantI32, i: int64(v)} }
func VariantFromI64(v int64) Variant  { return Variant{Tag: VariantI64, i: v} }
func VariantFromF32(v float32) Variant { return Variant{Tag: VariantF32, f: float64(v)} }
func VariantFromF64(v float64) Variant { return Variant{Tag: VariantF64, f: v} }
func VariantFromPtr(v uintptr) Variant { return Variant{Tag: VariantPtr, ptr: v} }

// AsInt64 reinterprets the stored value as a signed integer.
func (v Variant) AsInt64() int64 {
	if v.Tag >= VariantU8 && v.Tag <= VariantU64 {
		return int64(v.u)
	}
	return v.i
}

// AsUint64 reinterprets the stored value as an unsigned integer.
func (v Variant) AsUint64() uint64 {
	if v.Tag >= VariantI8 && v.Tag <= VariantI64 {
		return uint64(v.i)
	}
	return v.u
}

// AsFloat64 returns the stored float value.
func (v Variant) AsFloat64() float64 { return v.f }

// AsPtr returns the stored pointer value.
func (v Variant) AsPtr() uintptr { return v.ptr }

func (t VariantTag) isInteger() bool {
	return t >= VariantU8 && t <= VariantI64
}
