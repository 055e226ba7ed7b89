// Package implsoftware is govpl's in-process "software" runtime: the
// one implementation this core actually provides, exposed to
// pkg/dispatcher as a built-in candidate rather than a dlopen'd
// library. It plays the same role original_source/src/cpu plays for
// the oneVPL-cpu dispatcher — the sole reference implementation behind
// the generic discovery/filtering layer.
package implsoftware

import (
	"github.com/vplsoft/govpl/internal/codec/avcodec"
	"github.com/vplsoft/govpl/pkg/dispatcher"
	"github.com/vplsoft/govpl/pkg/session"
	"github.com/vplsoft/govpl/pkg/status"
)

// Description is this implementation's capability descriptor, filled
// in directly rather than reconstructed from a dlopen'd symbol, since
// the runtime is linked into the same binary.
func Description() dispatcher.CImplDescription {
	return dispatcher.CImplDescription{
		ApiVersionMajor: uint16(session.RuntimeVersion.Major),
		ApiVersionMinor: uint16(session.RuntimeVersion.Minor),
		ImplType:        uint32(session.ImplSoftware),

		DecoderCodecID:   uint32(avcodec.CodecIDHEVC),
		DecoderMaxWidth:  7680,
		DecoderMaxHeight: 4320,

		EncoderCodecID:   uint32(avcodec.CodecIDHEVC),
		EncoderMaxWidth:  7680,
		EncoderMaxHeight: 4320,

		VPPMaxWidth:  7680,
		VPPMaxHeight: 4320,
	}
}

// CreateSession constructs and initializes a new session bound to this
// implementation, the createSession hook pkg/dispatcher.RegisterBuiltin
// wires in.
func CreateSession(params session.InitParams) (*session.Session, status.Code) {
	s := session.New()
	if code := s.InitEx(params); code != status.OK {
		return nil, code
	}
	return s, status.OK
}

// Register adds the software implementation to loader as a built-in
// candidate, so it is discoverable even when no on-disk runtime is
// found (the common case for a self-contained deployment of this core).
func Register(loader *dispatcher.Dispatcher) {
	loader.RegisterBuiltin(Description(), CreateSession)
}
