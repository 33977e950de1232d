// Package config loads scheduler tunables from CUE.
//
// A tunables file is unified with the embedded #Config schema, so every
// field is optional and unknown fields are rejected:
//
//	tick: "10ms"
//	expire: { sync_read: "500ms", async_write: "5s" }
//	fifo_batch: 4
//	writes_starved: 2
//
// Expire intervals are given as durations and converted into ticks of the
// configured resolution. The engine itself only ever sees ticks.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fifosched/internal/canon"
	"github.com/roach88/fifosched/internal/sched"
)

//go:embed schema.cue
var schemaSource string

// Error codes for config failures.
const (
	ErrCodeRead     = "C001" // File could not be read
	ErrCodeSyntax   = "C002" // CUE did not compile
	ErrCodeSchema   = "C003" // Value does not satisfy #Config
	ErrCodeDuration = "C004" // Bad duration or tick resolution
)

// LoadError describes a tunables file that could not be used.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// File is a resolved tunables file.
type File struct {
	// Tick is the wall-clock duration of one engine tick.
	Tick time.Duration

	// Scheduler holds the tick-denominated engine tunables.
	Scheduler sched.Config
}

// Default returns the tunables used when no file is given.
func Default() File {
	return File{Tick: time.Second, Scheduler: sched.DefaultConfig()}
}

// Load reads and parses the tunables file at path.
func Load(path string) (File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return File{}, &LoadError{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(path, src)
}

// Parse compiles src, unifies it with the schema and resolves ticks.
// filename is used for error positions only.
func Parse(filename string, src []byte) (File, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return File{}, fmt.Errorf("compiling embedded schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return File{}, loadError(ErrCodeSyntax, err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return File{}, loadError(ErrCodeSchema, err)
	}

	return resolve(unified, v)
}

// resolve reads the unified value. Positions come from src, the file as
// written, so errors point at the user's text rather than the schema.
func resolve(v, src cue.Value) (File, error) {
	tick, err := durationAt(v, src, "tick")
	if err != nil {
		return File{}, err
	}
	if tick <= 0 {
		return File{}, &LoadError{
			Code:    ErrCodeDuration,
			Message: fmt.Sprintf("tick must be positive, got %s", tick),
			Pos:     src.LookupPath(cue.ParsePath("tick")).Pos(),
		}
	}

	ticks := func(path string) (sched.Tick, error) {
		d, err := durationAt(v, src, path)
		if err != nil {
			return 0, err
		}
		return sched.Tick(d / tick), nil
	}

	var cfg sched.Config
	if cfg.SyncReadExpire, err = ticks("expire.sync_read"); err != nil {
		return File{}, err
	}
	if cfg.SyncWriteExpire, err = ticks("expire.sync_write"); err != nil {
		return File{}, err
	}
	if cfg.AsyncReadExpire, err = ticks("expire.async_read"); err != nil {
		return File{}, err
	}
	if cfg.AsyncWriteExpire, err = ticks("expire.async_write"); err != nil {
		return File{}, err
	}
	if cfg.FIFOBatch, err = intAt(v, "fifo_batch"); err != nil {
		return File{}, err
	}
	if cfg.WritesStarved, err = intAt(v, "writes_starved"); err != nil {
		return File{}, err
	}

	if err := cfg.Validate(); err != nil {
		return File{}, &LoadError{Code: ErrCodeSchema, Message: err.Error()}
	}
	return File{Tick: tick, Scheduler: cfg}, nil
}

func durationAt(v, src cue.Value, path string) (time.Duration, error) {
	field := defaulted(v.LookupPath(cue.ParsePath(path)))
	pos := src.LookupPath(cue.ParsePath(path)).Pos()
	s, err := field.String()
	if err != nil {
		return 0, loadError(ErrCodeSchema, err)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &LoadError{Code: ErrCodeDuration, Message: fmt.Sprintf("%s: %v", path, err), Pos: pos}
	}
	if d < 0 {
		return 0, &LoadError{Code: ErrCodeDuration, Message: fmt.Sprintf("%s: must not be negative, got %s", path, s), Pos: pos}
	}
	return d, nil
}

func intAt(v cue.Value, path string) (int, error) {
	field := defaulted(v.LookupPath(cue.ParsePath(path)))
	n, err := field.Int64()
	if err != nil {
		return 0, loadError(ErrCodeSchema, err)
	}
	return int(n), nil
}

func defaulted(v cue.Value) cue.Value {
	if d, ok := v.Default(); ok {
		return d
	}
	return v
}

// loadError keeps the first CUE error and its source position.
func loadError(code string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// IsLoadError reports whether err is a *LoadError with the given code.
func IsLoadError(err error, code string) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == code
}

// Fields renders f as a flat map, the form used for recorded runs and for
// the config digest.
func (f File) Fields() map[string]any {
	c := f.Scheduler
	return map[string]any{
		"tick":               f.Tick.String(),
		"sync_read_expire":   int64(c.SyncReadExpire),
		"sync_write_expire":  int64(c.SyncWriteExpire),
		"async_read_expire":  int64(c.AsyncReadExpire),
		"async_write_expire": int64(c.AsyncWriteExpire),
		"fifo_batch":         c.FIFOBatch,
		"writes_starved":     c.WritesStarved,
	}
}

// Digest identifies the resolved tunables. Two files that resolve to the
// same ticks and resolution share a digest.
func (f File) Digest() string {
	d, err := canon.DigestValue(canon.DomainConfig, f.Fields())
	if err != nil {
		// Fields only produces strings and integers.
		panic(err)
	}
	return d
}
