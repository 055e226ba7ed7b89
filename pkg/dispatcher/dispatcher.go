// Package dispatcher implements the implementation dispatcher (C10):
// candidate discovery, symbol validation, capability-based filtering,
// and session creation.
//
// Grounded throughout on
// original_source/src/dispatcher/common/mfx_dispatcher_util.cpp's
// LoaderCtxOneVPL (BuildListOfCandidateLibs, CheckValidLibraries,
// QueryImpl, CreateSession, AddConfigFilter, ReleaseImpl,
// UnloadAllLibraries) and
// original_source/src/dispatcher/common/mfx_dispatcher_onevpl.cpp's
// top-level MFXLoad/MFXCreateConfig/MFXEnumImplementations/
// MFXCreateSession API shape. Dynamic-library access goes through
// github.com/ebitengine/purego (see loader.go) rather than cgo.
package dispatcher

import (
	"sort"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vplsoft/govpl/pkg/dispatcher/libsearch"
	"github.com/vplsoft/govpl/pkg/session"
	"github.com/vplsoft/govpl/pkg/status"
)

// Candidate is one discovered (or built-in) runtime, after surviving
// symbol validation.
type Candidate struct {
	ID       uuid.UUID
	Path     string
	Priority libsearch.Priority
	libIdx   int

	handle  uintptr // 0 for a built-in candidate
	builtin bool

	desc CImplDescription

	releaseFn     func()
	createSession func(session.InitParams) (*session.Session, status.Code)
}

// Config is a set of property filters attached to a loader; multiple
// configs on one loader act as a conjunction (spec.md §4.6 step 4).
type Config struct {
	properties map[string]Variant
}

// Dispatcher is the loader object applications build against (spec.md
// §4.6, §6 "Dispatcher loader API").
type Dispatcher struct {
	lib        Loader
	packageDir string

	candidates []*Candidate
	configs    []*Config
	nextLibIdx int

	log zerolog.Logger
}

// New constructs a Dispatcher. lib is typically PuregoLoader{} in
// production and a fake in tests; packageDir is the package-local
// directory searched at priority PriorityPackageLocal (spec.md §4.6
// step 1). Logging is a no-op until SetLogger is called.
func New(lib Loader, packageDir string) *Dispatcher {
	return &Dispatcher{lib: lib, packageDir: packageDir, log: zerolog.Nop()}
}

// SetLogger installs the logger this dispatcher, and every session it
// subsequently creates, report state transitions and back-pressure on —
// the process-wide logger of SPEC_FULL.md §2, passed down rather than a
// package-level global.
func (d *Dispatcher) SetLogger(l zerolog.Logger) {
	d.log = l
}

// Discover runs candidate discovery (libsearch.BuildListOfCandidateLibs)
// and validation (resolving RequiredSymbols, dropping any candidate
// missing one) — spec.md §4.6 steps 1-2.
func (d *Dispatcher) Discover() status.Code {
	libs := libsearch.BuildListOfCandidateLibs(d.packageDir)
	d.log.Debug().Int("candidates_found", len(libs)).Msg("dispatcher discovery")
	for _, li := range libs {
		d.tryAddCandidate(li)
	}
	return status.OK
}

// DiscoverExtra scans dir at priority PriorityUserDefined and adds any
// surviving candidates, the same way a hit on ONEVPL_SEARCH_PATH would.
// Used by cmd/vpl-info to fold in directories named by an optional
// extra-search-paths YAML file, layered on top of the environment
// variable rather than replacing it.
func (d *Dispatcher) DiscoverExtra(dir string) status.Code {
	for _, li := range libsearch.SearchDirForLibs(dir, libsearch.PriorityUserDefined) {
		d.tryAddCandidate(li)
	}
	return status.OK
}

func (d *Dispatcher) tryAddCandidate(li libsearch.LibInfo) {
	handle, err := d.lib.Open(li.Path)
	if err != nil {
		d.log.Warn().Str("path", li.Path).Err(err).Msg("candidate failed to open")
		return
	}

	symbols := make(map[SymbolName]uintptr, len(RequiredSymbols))
	for _, sym := range RequiredSymbols {
		addr, err := d.lib.Symbol(handle, string(sym))
		if err != nil || addr == 0 {
			d.log.Warn().Str("path", li.Path).Str("symbol", string(sym)).Msg("candidate missing required symbol, dropping")
			d.lib.Close(handle)
			return
		}
		symbols[sym] = addr
	}

	var queryImplDescription func() uintptr
	purego.RegisterFunc(&queryImplDescription, symbols[SymQueryImplDescription])
	descPtr := queryImplDescription()
	if descPtr == 0 {
		d.lib.Close(handle)
		return
	}
	desc := *(*CImplDescription)(unsafe.Pointer(descPtr))

	var releaseImplDescription func(uintptr)
	purego.RegisterFunc(&releaseImplDescription, symbols[SymReleaseImplDescription])

	cand := &Candidate{
		ID:       uuid.New(),
		Path:     li.Path,
		Priority: li.Priority,
		libIdx:   d.nextLibIdx,
		handle:   handle,
		desc:     desc,
		releaseFn: func() {
			releaseImplDescription(descPtr)
		},
	}
	d.nextLibIdx++
	d.candidates = append(d.candidates, cand)
}

// RegisterBuiltin adds an in-process candidate that bypasses dlopen
// entirely — used to wire pkg/implsoftware in as the always-available
// fallback runtime when no on-disk candidates are found, and by tests
// that want a deterministic candidate list without touching libsearch.
func (d *Dispatcher) RegisterBuiltin(desc CImplDescription, createSession func(session.InitParams) (*session.Session, status.Code)) {
	cand := &Candidate{
		ID:            uuid.New(),
		Path:          "<builtin:software>",
		Priority:      libsearch.PriorityPackageLocal,
		libIdx:        d.nextLibIdx,
		builtin:       true,
		desc:          desc,
		createSession: createSession,
	}
	d.nextLibIdx++
	d.candidates = append(d.candidates, cand)
}

// CreateConfig attaches a new, empty filter config to this loader.
func (d *Dispatcher) CreateConfig() *Config {
	cfg := &Config{properties: make(map[string]Variant)}
	d.configs = append(d.configs, cfg)
	return cfg
}

// SetConfigFilterProperty sets one property filter on cfg. Unsupported
// property names are rejected immediately (spec.md §4.6 step 4); type
// mismatches are only detected later, when the filter is applied
// against each candidate's descriptor.
func (d *Dispatcher) SetConfigFilterProperty(cfg *Config, name string, value Variant) status.Code {
	if cfg == nil {
		return status.InvalidHandle
	}
	if !validProperties[name] {
		return status.Unsupported
	}
	cfg.properties[name] = value
	return status.OK
}

// visibleCandidates returns candidates passing every attached config
// (a conjunction), ordered per spec.md §4.6 "Ordering": higher-priority
// origin first, discovery order preserved within a priority tier. This
// satisfies §8's monotonicity property — adding a config can only
// remove candidates from this list, never add one.
func (d *Dispatcher) visibleCandidates() []*Candidate {
	var visible []*Candidate
	for _, c := range d.candidates {
		if candidateMatches(&c.desc, d.configs) {
			visible = append(visible, c)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Priority > visible[j].Priority
	})
	return visible
}

// EnumImplementations returns the capability descriptor for the
// index-th visible candidate (spec.md §4.6 step 3).
func (d *Dispatcher) EnumImplementations(index int) (*CImplDescription, status.Code) {
	visible := d.visibleCandidates()
	if index < 0 || index >= len(visible) {
		return nil, status.NotFound
	}
	return &visible[index].desc, status.OK
}

// NumVisibleImplementations reports how many candidates currently pass
// filtering — a convenience for callers enumerating with EnumImplementations.
func (d *Dispatcher) NumVisibleImplementations() int {
	return len(d.visibleCandidates())
}

// CandidateInfo is what EnumImplementations' callers typically want
// alongside the descriptor itself: the candidate's diagnostic ID and
// origin path.
type CandidateInfo struct {
	ID       uuid.UUID
	Path     string
	Priority libsearch.Priority
}

// EnumCandidateInfo returns the index-th visible candidate's ID/path/
// priority, for CLI and logging use (cmd/vpl-info).
func (d *Dispatcher) EnumCandidateInfo(index int) (CandidateInfo, status.Code) {
	visible := d.visibleCandidates()
	if index < 0 || index >= len(visible) {
		return CandidateInfo{}, status.NotFound
	}
	c := visible[index]
	return CandidateInfo{ID: c.ID, Path: c.Path, Priority: c.Priority}, status.OK
}

// CreateSession binds a new session to the index-th visible candidate
// (spec.md §4.6 step 5). For a built-in candidate this calls its
// createSession hook directly (pkg/implsoftware); for a discovered
// on-disk candidate it initializes a session at the candidate's
// declared API version, mirroring CreateSession's MFXInitEx2 call in
// the reference dispatcher.
func (d *Dispatcher) CreateSession(index int) (*session.Session, status.Code) {
	visible := d.visibleCandidates()
	if index < 0 || index >= len(visible) {
		return nil, status.NotFound
	}
	cand := visible[index]

	params := session.InitParams{
		Impl:    session.ImplSoftware,
		Version: session.Version{Major: int(cand.desc.ApiVersionMajor), Minor: int(cand.desc.ApiVersionMinor)},
	}

	if cand.builtin {
		s, code := cand.createSession(params)
		if code == status.OK && s != nil {
			s.SetLogger(d.log)
		}
		return s, code
	}

	s := session.New()
	s.SetLogger(d.log)
	if code := s.InitEx(params); code != status.OK {
		return nil, code
	}
	return s, status.OK
}

// ReleaseImplDescription locates the candidate owning desc by identity
// and dispatches to its release entry (spec.md §4.6 step 6).
func (d *Dispatcher) ReleaseImplDescription(desc *CImplDescription) status.Code {
	for _, c := range d.candidates {
		if &c.desc == desc {
			if c.releaseFn != nil {
				c.releaseFn()
			}
			return status.OK
		}
	}
	return status.InvalidHandle
}

// Unload unloads every discovered library and frees all configs
// (spec.md §4.6 step 6).
func (d *Dispatcher) Unload() status.Code {
	for _, c := range d.candidates {
		if !c.builtin && c.handle != 0 {
			d.lib.Close(c.handle)
		}
	}
	d.candidates = nil
	d.configs = nil
	return status.OK
}
