package dispatcher

import "reflect"

// CImplDescription is the fixed-layout capability descriptor every
// discoverable runtime must return from its exported
// query_impl_description symbol. Field order and width are the
// on-disk/ABI contract spec.md §1 says govpl only specifies at the
// symbol-table level — this struct is that contract's Go mirror,
// filled in directly for in-process candidates (pkg/implsoftware) or
// reconstructed via unsafe.Pointer from a dlopen'd candidate's
// returned handle (see tryAddCandidate in dispatcher.go).
//
// Each field tagged `prop:"..."` is reachable by EnumImplementations'
// capability filtering under that dot-separated path (SPEC_FULL.md's
// resolution of spec.md §9's open question on property-path grammar).
type CImplDescription struct {
	ApiVersionMajor uint16 `prop:"impl.api_version.major"`
	ApiVersionMinor uint16 `prop:"impl.api_version.minor"`
	ImplType        uint32 `prop:"impl.impl_type"`

	DecoderCodecID  uint32 `prop:"impl.decoder.codec_id"`
	DecoderMaxWidth uint32 `prop:"impl.decoder.max_width"`
	DecoderMaxHeight uint32 `prop:"impl.decoder.max_height"`

	EncoderCodecID  uint32 `prop:"impl.encoder.codec_id"`
	EncoderMaxWidth uint32 `prop:"impl.encoder.max_width"`
	EncoderMaxHeight uint32 `prop:"impl.encoder.max_height"`

	VPPMaxWidth  uint32 `prop:"impl.vpp.max_width"`
	VPPMaxHeight uint32 `prop:"impl.vpp.max_height"`
}

// validProperties is the published property-name grammar:
// SetConfigFilterProperty rejects any other name at set time (spec.md
// §4.6 step 4, "Unsupported property names are rejected at set time").
var validProperties = buildValidProperties()

func buildValidProperties() map[string]bool {
	valid := make(map[string]bool)
	t := reflect.TypeOf(CImplDescription{})
	for i := 0; i < t.NumField(); i++ {
		if tag, ok := t.Field(i).Tag.Lookup("prop"); ok {
			valid[tag] = true
		}
	}
	return valid
}

// buildPropertyIndex maps every tagged field of desc to its reflect.Value,
// used by candidateMatches to resolve a config's property path against
// one candidate's descriptor.
func buildPropertyIndex(desc *CImplDescription) map[string]reflect.Value {
	idx := make(map[string]reflect.Value)
	v := reflect.ValueOf(desc).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tag, ok := t.Field(i).Tag.Lookup("prop"); ok {
			idx[tag] = v.Field(i)
		}
	}
	return idx
}

// matchesVariant reports whether fv (a CImplDescription field) equals
// val's value, comparing by kind. Type mismatches (e.g. comparing a
// float Variant against an integer field) are not matches — per
// spec.md §9's open question on the property grammar, this dispatcher
// resolves "type mismatch" conservatively as exclusion rather than an
// error, since filtering must never panic on an unexpected candidate.
func matchesVariant(fv reflect.Value, val Variant) bool {
	switch fv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return val.Tag.isInteger() && fv.Uint() == val.AsUint64()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return val.Tag.isInteger() && fv.Int() == val.AsInt64()
	case reflect.Float32, reflect.Float64:
		return (val.Tag == VariantF32 || val.Tag == VariantF64) && fv.Float() == val.AsFloat64()
	default:
		return false
	}
}

// candidateMatches reports whether desc satisfies every property in
// cfg (spec.md §4.6 step 4: configs are a conjunction).
func candidateMatches(desc *CImplDescription, cfgs []*Config) bool {
	idx := buildPropertyIndex(desc)
	for _, cfg := range cfgs {
		for name, val := range cfg.properties {
			fv, ok := idx[name]
			if !ok || !matchesVariant(fv, val) {
				return false
			}
		}
	}
	return true
}
