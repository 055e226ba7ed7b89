// Package session implements the session object (C9): the owner of at
// most one decoder, one encoder, and one transform pipeline, plus the
// device-handle map and child pools backing each pipeline's
// internal-memory mode.
//
// Grounded on spec.md §4.7 and on the dispatcher's session-creation
// contract in
// original_source/src/dispatcher/common/mfx_dispatcher_util.cpp
// (LoaderCtxOneVPL::CreateSession calling MFXInitEx2 with a stored
// ApiVersion/Impl pair) — Init/InitEx here play that same
// version-compatibility gate.
package session

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vplsoft/govpl/internal/codec/avutil"
	"github.com/vplsoft/govpl/pkg/bitstream"
	"github.com/vplsoft/govpl/pkg/decoder"
	"github.com/vplsoft/govpl/pkg/encoder"
	"github.com/vplsoft/govpl/pkg/pool"
	"github.com/vplsoft/govpl/pkg/status"
	"github.com/vplsoft/govpl/pkg/surface"
	"github.com/vplsoft/govpl/pkg/vpp"
)

// Implementation identifies the backend a session is bound to. This
// core only ever binds "software" (spec.md §4.7).
type Implementation int

const (
	ImplSoftware Implementation = iota
	ImplHardware                // rejected: out of scope, see spec.md Non-goals
)

func (i Implementation) String() string {
	if i == ImplSoftware {
		return "software"
	}
	return "unknown"
}

// Version is the {major, minor} pair carried by Init/InitEx.
type Version struct {
	Major, Minor int
}

// RuntimeVersion is the version this core implements. A requested major
// must equal it or be LegacyMajor; minor may be greater than what a caller requests
// (spec.md §4.7, §8).
var RuntimeVersion = Version{Major: 2, Minor: 9}

// LegacyMajor is the 1.x API family's major version. Its minor numbers
// (up to the mid-30s) are on an unrelated scale from the 2.x family's
// (RuntimeVersion.Minor), so a 1.x request is accepted outright rather
// than compared against RuntimeVersion.Minor (spec.md §8 scenario 1:
// {major:1, minor:35} against this 2.9 runtime must still return OK —
// see DESIGN.md's resolved-ambiguities note on this version gate).
const LegacyMajor = 1

// HandleType keys the session's device-handle map.
type HandleType int

const (
	HandleVA HandleType = iota
	HandleD3D9
	HandleD3D11
)

// Session owns one instance of each pipeline plus shared resources.
type Session struct {
	id      uuid.UUID
	impl    Implementation
	version Version

	decoder *decoder.Decoder
	encoder *encoder.Encoder
	vpp     *vpp.VPP

	decoderPool *pool.Pool
	encoderPool *pool.Pool
	vppPool     *pool.Pool

	handles map[HandleType]uintptr
	closed  bool

	log zerolog.Logger
}

// New constructs a session with no pipelines initialized. Each session
// gets a random ID, used only for logging/diagnostics correlation (this
// core has no session-table lookup by ID). Logging is a no-op until
// SetLogger is called.
func New() *Session {
	return &Session{id: uuid.New(), handles: make(map[HandleType]uintptr), log: zerolog.Nop()}
}

// SetLogger installs the logger this session, and every pipeline it
// subsequently initializes, report state transitions and back-pressure
// on — the "passed down through the dispatcher and session" logger of
// SPEC_FULL.md §2, rather than a package-level global.
func (s *Session) SetLogger(l zerolog.Logger) {
	s.log = l
}

// ID returns this session's diagnostic identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Init validates impl/version compatibility and binds the session.
// Only "software" is accepted in this core; any other implementation
// is rejected as Unsupported (spec.md §4.7's "reject implementations
// other than software").
func (s *Session) Init(impl Implementation, version Version) status.Code {
	if impl != ImplSoftware {
		return status.Unsupported
	}
	switch {
	case version.Major == RuntimeVersion.Major:
		if version.Minor > RuntimeVersion.Minor {
			return status.Unsupported
		}
	case version.Major == LegacyMajor:
		// 1.x minor numbers aren't comparable to RuntimeVersion.Minor;
		// any 1.x request is accepted (spec.md §8 scenario 1).
	default:
		return status.Unsupported
	}
	s.impl = impl
	s.version = version
	s.log.Debug().Int("major", version.Major).Int("minor", version.Minor).Msg("session initialized")
	return status.OK
}

// InitParams mirrors init_ex's extended parameter set — presently only
// the impl/version pair, reserved for future extension-buffer fields.
type InitParams struct {
	Impl    Implementation
	Version Version
}

// InitEx is the extended entry point; it applies the same
// version-compatibility gate as Init.
func (s *Session) InitEx(params InitParams) status.Code {
	return s.Init(params.Impl, params.Version)
}

// QueryImpl returns the bound implementation tag.
func (s *Session) QueryImpl() (Implementation, status.Code) {
	if s.closed {
		return 0, status.NotInitialized
	}
	return s.impl, status.OK
}

// QueryVersion returns the runtime's version (not the caller's
// requested version — spec.md §8 scenario 1).
func (s *Session) QueryVersion() (Version, status.Code) {
	if s.closed {
		return Version{}, status.NotInitialized
	}
	return RuntimeVersion, status.OK
}

// SetHandle stores a device handle under handleType with "set-once"
// semantics: a second set for the same key is UndefinedBehavior
// (spec.md §4.7, §8 boundary behaviors).
func (s *Session) SetHandle(handleType HandleType, handle uintptr) status.Code {
	if s.closed {
		return status.NotInitialized
	}
	if _, exists := s.handles[handleType]; exists {
		return status.UndefinedBehavior
	}
	s.handles[handleType] = handle
	return status.OK
}

// GetHandle retrieves a previously set device handle.
func (s *Session) GetHandle(handleType HandleType) (uintptr, status.Code) {
	h, ok := s.handles[handleType]
	if !ok {
		return 0, status.NotFound
	}
	return h, status.OK
}

// InitDecoder creates and initializes the session's decoder pipeline,
// allocating its internal-memory backing pool.
func (s *Session) InitDecoder(param decoder.VideoParam, poolSize int) status.Code {
	if s.closed {
		return status.NotInitialized
	}
	p, code := pool.NewShapeAware(pool.Shape{Format: param.Format, Width: param.Width, Height: param.Height}, poolSize)
	if code != status.OK {
		return code
	}
	d := decoder.New()
	d.SetLogger(s.log)
	if code := d.Init(param, p); code != status.OK {
		return code
	}
	s.decoder = d
	s.decoderPool = p
	return status.OK
}

// InitEncoder creates and initializes the session's encoder pipeline.
func (s *Session) InitEncoder(param encoder.VideoParam) status.Code {
	if s.closed {
		return status.NotInitialized
	}
	e := encoder.New()
	e.SetLogger(s.log)
	if code := e.Init(param); code != status.OK {
		return code
	}
	s.encoder = e
	return status.OK
}

// InitVPP creates and initializes the session's transform pipeline,
// allocating its output-side internal-memory backing pool.
func (s *Session) InitVPP(par vpp.Params, poolSize int) status.Code {
	if s.closed {
		return status.NotInitialized
	}
	v := vpp.New()
	v.SetLogger(s.log)
	if code := v.Init(par); code != status.OK {
		return code
	}
	p, code := pool.NewShapeAware(pool.Shape{Format: par.Out.Format, Width: par.Out.Width, Height: par.Out.Height}, poolSize)
	if code != status.OK {
		return code
	}
	s.vpp = v
	s.vppPool = p
	return status.OK
}

// Decoder returns the session's decoder pipeline, or nil if uninitialized.
func (s *Session) Decoder() *decoder.Decoder { return s.decoder }

// Encoder returns the session's encoder pipeline, or nil if uninitialized.
func (s *Session) Encoder() *encoder.Encoder { return s.encoder }

// VPP returns the session's transform pipeline, or nil if uninitialized.
func (s *Session) VPP() *vpp.VPP { return s.vpp }

// GetSurfaceForDecode returns a surface from the decoder's pool with
// ref_count already set to 1 (spec.md §4.7 memory helpers).
func (s *Session) GetSurfaceForDecode() (*surface.Surface, status.Code) {
	if s.decoderPool == nil {
		return nil, status.NotInitialized
	}
	return s.decoderPool.GetFreeSurface()
}

// GetSurfaceForEncode returns a surface from the encoder's pool. The
// encoder pipeline in this core does not own an internal pool (it only
// consumes caller-supplied surfaces, spec.md §4.4), so this always
// reports NotInitialized; the method is retained to satisfy the
// session's published memory-helper surface (spec.md §6).
func (s *Session) GetSurfaceForEncode() (*surface.Surface, status.Code) {
	return nil, status.NotInitialized
}

// GetSurfaceForVPP returns a surface from the VPP output pool.
func (s *Session) GetSurfaceForVPP() (*surface.Surface, status.Code) {
	if s.vppPool == nil {
		return nil, status.NotInitialized
	}
	return s.vppPool.GetFreeSurface()
}

// Bitstream allocates a caller-owned bitstream buffer tagged with
// codec, for feeding the decoder or receiving encoder output.
func Bitstream(codec bitstream.CodecID, maxLength int) *bitstream.Bitstream {
	bs := bitstream.New(maxLength)
	bs.CodecID = codec
	return bs
}

// Close invalidates the session; subsequent calls return NotInitialized.
func (s *Session) Close() status.Code {
	if s.decoder != nil {
		s.decoder.Close()
	}
	if s.encoder != nil {
		s.encoder.Close()
	}
	s.closed = true
	s.log.Debug().Str("session", s.id.String()).Msg("session closed")
	return status.OK
}

// avutil is imported for VideoParam.FrameRate's Rational type used by
// callers constructing decoder.VideoParam/encoder.VideoParam alongside
// a session; re-exported here so cmd/vpl-info need not import
// internal/codec directly.
type Rational = avutil.Rational
