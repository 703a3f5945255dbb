// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/azbin/azbin/internal/archive"
	"github.com/azbin/azbin/internal/cache"
	"github.com/azbin/azbin/internal/fingerprint"
	"github.com/azbin/azbin/internal/forward"
	"github.com/azbin/azbin/internal/issue"
	"github.com/azbin/azbin/internal/logging"
	"github.com/azbin/azbin/internal/payload"
)

// maxAttempts is the first extraction plus one retry.
const maxAttempts = 2

type (
	// Options wires a Launcher. Fingerprint, Cache and OpenPayload are required.
	Options struct {
		Fingerprint fingerprint.Fingerprint
		Cache       *cache.Manager
		// OpenPayload is called once per extraction attempt.
		OpenPayload func() (payload.Source, error)
		// NewExtractor defaults to archive.Native for the native format and
		// archive.New with archive.DefaultLimits otherwise.
		NewExtractor func(archive.Format) (archive.Extractor, error)
		// Target defaults to forward.DefaultTarget.
		Target forward.Target
		// Forwarder defaults to forward.New(forward.DefaultMode(), Logger).
		Forwarder *forward.Forwarder
		// DeepVerify re-hashes a validated slot against its manifest before use.
		DeepVerify bool
		// Environ and the stream fields are passed to the forwarder.
		Environ []string
		Stdin   io.Reader
		Stdout  io.Writer
		Stderr  io.Writer
		Logger  *log.Logger
		// Now stamps the marker; time.Now when nil.
		Now func() time.Time
	}

	// Launcher prepares a slot for one fingerprint and forwards into it.
	Launcher struct {
		opts Options
		log  *log.Logger
	}

	// Prepared describes the slot Prepare settled on.
	Prepared struct {
		Slot cache.Slot
		// Extracted is true when this call populated the slot.
		Extracted bool
		// Attempts counts extraction attempts made by this call.
		Attempts int
	}
)

// New validates opts and fills in defaults.
func New(opts Options) (*Launcher, error) {
	if err := opts.Fingerprint.Validate(); err != nil {
		return nil, err
	}
	if opts.Cache == nil {
		return nil, errors.New("launch: cache manager is required")
	}
	if opts.OpenPayload == nil {
		return nil, errors.New("launch: payload opener is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.NewExtractor == nil {
		opts.NewExtractor = defaultExtractor
	}
	if len(opts.Target.Interpreters) == 0 {
		opts.Target = forward.DefaultTarget()
	}
	if opts.Forwarder == nil {
		opts.Forwarder = forward.New(forward.DefaultMode(), opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Launcher{opts: opts, log: opts.Logger}, nil
}

func defaultExtractor(f archive.Format) (archive.Extractor, error) {
	if f == archive.NativeFormat {
		return archive.Native(), nil
	}
	return archive.New(f, archive.DefaultLimits)
}

// Run prepares the slot and hands off to the interpreter with args. In exec
// mode a successful hand-off does not return.
func (l *Launcher) Run(ctx context.Context, args []string) (forward.Status, error) {
	p, err := l.Prepare(ctx)
	if err != nil {
		return forward.Status{}, err
	}
	return l.opts.Forwarder.Run(ctx, forward.Request{
		Root:    p.Slot.Dir,
		Target:  l.opts.Target,
		Args:    args,
		Environ: l.opts.Environ,
		Stdin:   l.opts.Stdin,
		Stdout:  l.opts.Stdout,
		Stderr:  l.opts.Stderr,
	})
}

// Prepare returns a validated slot for the fingerprint, extracting the
// payload when needed. The fast path takes no lock.
func (l *Launcher) Prepare(ctx context.Context) (Prepared, error) {
	fp := l.opts.Fingerprint
	slot := l.opts.Cache.SlotFor(fp)
	l.log.Debug("probing slot", "slot", slot.Dir, "build", fp.BuildID)

	distrust := false
	probe := cache.Probe(slot)
	if probe.State == cache.StateValidated {
		if !l.opts.DeepVerify {
			return Prepared{Slot: slot}, nil
		}
		err := cache.VerifyTree(ctx, slot, 0)
		if err == nil {
			return Prepared{Slot: slot}, nil
		}
		l.log.Warn("cached runtime differs from its manifest, re-extracting", "slot", slot.Dir, "err", err)
		distrust = true
	} else if probe.State == cache.StateInvalid {
		l.log.Debug("slot invalid", "slot", slot.Dir, "reason", probe.Reason)
	}

	if err := l.opts.Cache.Ensure(); err != nil {
		return Prepared{}, err
	}
	return l.materialize(ctx, slot, distrust)
}

// materialize runs the locked slow path.
func (l *Launcher) materialize(ctx context.Context, slot cache.Slot, distrust bool) (Prepared, error) {
	lk, err := l.opts.Cache.Lock(slot)
	if err != nil {
		return Prepared{}, issue.New(issue.CacheUnwritable, "lock slot", slot.LockPath(), err)
	}
	defer func() {
		if err := lk.Release(); err != nil {
			l.log.Debug("releasing slot lock", "lock", slot.LockPath(), "err", err)
		}
	}()

	// Another launcher may have published while this one waited.
	if cache.Probe(slot).State == cache.StateValidated {
		if !distrust || cache.VerifyTree(ctx, slot, 0) == nil {
			l.log.Debug("slot published by another process", "slot", slot.Dir)
			return Prepared{Slot: slot}, nil
		}
	}

	for attempt := 1; ; attempt++ {
		err := l.attempt(ctx, slot)
		if err == nil {
			return Prepared{Slot: slot, Extracted: true, Attempts: attempt}, nil
		}
		kind := issue.KindOf(err)
		l.log.Debug("attempt failed", "attempt", attempt, "kind", kind, "err", err)

		if discardErr := l.opts.Cache.Discard(slot); discardErr != nil {
			return Prepared{}, discardErr
		}
		if attempt >= maxAttempts || !kind.Retryable() {
			return Prepared{}, err
		}
		l.log.Warn("preparing runtime failed, retrying", "kind", kind, "err", err)
	}
}

// attempt performs one Verify -> Extract -> hook -> manifest -> marker pass
// into an emptied slot. The archive is hashed before a single byte of it is
// decoded.
func (l *Launcher) attempt(ctx context.Context, slot cache.Slot) error {
	if err := l.opts.Cache.Prepare(slot); err != nil {
		return err
	}

	src, err := l.opts.OpenPayload()
	if err != nil {
		return issue.New(issue.ExtractionFailed, "open runtime archive", "", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			l.log.Debug("closing payload", "err", err)
		}
	}()

	if err := l.opts.Fingerprint.VerifyReaderAt(src.Name(), src, src.Size()); err != nil {
		if errors.Is(err, fingerprint.ErrMismatch) {
			return issue.New(issue.IntegrityMismatch, "verify", src.Name(), err)
		}
		return issue.New(issue.ExtractionFailed, "read", src.Name(), err)
	}

	x, err := l.opts.NewExtractor(src.Format())
	if err != nil {
		return issue.New(issue.ExtractionFailed, "select extractor", src.Name(), err)
	}
	started := time.Now()
	res, err := x.Extract(ctx, src, src.Size(), slot.Dir)
	if err != nil {
		return issue.New(issue.ExtractionFailed, "extract", src.Name(), err)
	}
	l.log.Debug("extracted", "slot", slot.Dir, "files", res.Files, "bytes", res.Bytes, "took", time.Since(started))

	hooked, err := runHook(ctx, slot)
	if err != nil {
		return issue.New(issue.ExtractionFailed, "run post-extract hook", slot.Path(hookScript), err)
	}

	entry, err := l.opts.Target.EntryPoint(slot.Dir)
	if err != nil {
		return issue.New(issue.ExtractionFailed, "locate entry-point", slot.Dir, err)
	}

	manifest := cache.NewManifest(res)
	if hooked {
		if manifest, err = cache.ScanTree(slot, string(res.Format)); err != nil {
			return issue.New(issue.CacheUnwritable, "scan slot", slot.Dir, err)
		}
	}
	if err := cache.WriteManifest(slot, manifest); err != nil {
		return issue.New(issue.CacheUnwritable, "write manifest", slot.ManifestPath(), err)
	}

	mk := &cache.Marker{
		Tool:        l.opts.Cache.Tool(),
		BuildID:     l.opts.Fingerprint.BuildID,
		Digest:      l.opts.Fingerprint.Digest,
		ToolVersion: l.opts.Fingerprint.ToolVersion,
		Format:      string(res.Format),
		EntryPoint:  entry,
		ExtractedAt: l.opts.Now().UTC(),
		Manifest:    cache.ManifestFile,
		Files:       res.Files,
		Bytes:       res.Bytes,
	}
	if err := cache.WriteMarker(slot, mk); err != nil {
		return issue.New(issue.CacheUnwritable, "write marker", slot.MarkerPath(), err)
	}
	l.log.Info("runtime ready", "slot", slot.Dir, "release", l.opts.Fingerprint.ReleaseTag(), "entry", entry)
	return nil
}

// String describes the outcome for debug logs.
func (p Prepared) String() string {
	if !p.Extracted {
		return fmt.Sprintf("reused %s", p.Slot.Dir)
	}
	return fmt.Sprintf("extracted %s in %d attempt(s)", p.Slot.Dir, p.Attempts)
}
