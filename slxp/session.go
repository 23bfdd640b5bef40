package slxp

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/binzume/sceneexport/export"
	"github.com/binzume/sceneexport/scene"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NameReply delivers the resolved name of an object.
type NameReply func(id uuid.UUID, name string)

// Resolver requests object names from the host. Replies may arrive on any goroutine, in any order.
type Resolver interface {
	RequestName(ctx context.Context, id uuid.UUID, reply NameReply) error
}

type ResolverFunc func(ctx context.Context, id uuid.UUID, reply NameReply) error

func (f ResolverFunc) RequestName(ctx context.Context, id uuid.UUID, reply NameReply) error {
	return f(ctx, id, reply)
}

// StaticResolver answers from a fixed table. Unknown ids are never answered.
type StaticResolver map[uuid.UUID]string

func (r StaticResolver) RequestName(ctx context.Context, id uuid.UUID, reply NameReply) error {
	if name, ok := r[id]; ok {
		go reply(id, name)
	}
	return nil
}

// Session is one SLXP export. Names are resolved first, then the document is built and written.
// A Session is used once.
type Session struct {
	Options  *export.Options
	Notifier export.Notifier

	builder *Builder

	mu      sync.Mutex
	pending map[uuid.UUID]*scene.Object
	done    chan struct{}
	started bool
}

func NewSession(sel *scene.Selection, opts *export.Options, policy export.Policy, notifier export.Notifier) *Session {
	return &Session{
		Options:  opts,
		Notifier: notifier,
		builder:  NewBuilderFromSelection(sel, opts, policy),
		pending:  map[uuid.UUID]*scene.Object{},
		done:     make(chan struct{}),
	}
}

func (s *Session) Builder() *Builder {
	return s.builder
}

func (s *Session) notify(name string, args map[string]string) {
	if s.Notifier != nil {
		s.Notifier.Notify(name, args)
	}
}

func (s *Session) fail(reason string) {
	s.notify(export.NotifySLXPExportError, map[string]string{"REASON": reason})
}

// Begin sends one name request per selected object.
func (s *Session) Begin(ctx context.Context, r Resolver) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	for _, e := range s.builder.Entries() {
		s.pending[e.Object.ID] = e.Object
	}
	ids := s.pendingLocked()
	if len(ids) == 0 {
		close(s.done)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := r.RequestName(ctx, id, func(id uuid.UUID, name string) { s.Resolve(id, name) }); err != nil {
			return err
		}
	}
	return nil
}

// Resolve records the name of a pending object. It reports whether id was pending.
func (s *Session) Resolve(id uuid.UUID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)
	if name != "" {
		s.builder.Rename(obj, name)
	}
	if len(s.pending) == 0 {
		close(s.done)
	}
	return true
}

func (s *Session) pendingLocked() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	return ids
}

func (s *Session) Pending() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

// Wait blocks until every name is resolved or Options.NameTimeout elapses.
// Objects still pending after the timeout keep their display names.
func (s *Session) Wait(ctx context.Context) error {
	var timeout <-chan time.Time
	if s.Options.NameTimeout > 0 {
		t := time.NewTimer(s.Options.NameTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		s.mu.Lock()
		var names []string
		for _, obj := range s.pending {
			names = append(names, obj.Name)
		}
		s.mu.Unlock()
		s.builder.logger().Warn("object names not resolved", zap.Strings("objects", names), zap.Duration("timeout", s.Options.NameTimeout))
		return nil
	}
}

// Export builds the document and writes it to path.
func (s *Session) Export(path string) (*export.Report, error) {
	if path == "" {
		s.fail("no file name provided.")
		return nil, export.ErrNoFilename
	}
	if s.builder.Len() == 0 {
		s.fail("no objects selected for export.")
		return nil, export.ErrNothingSelected
	}

	s.mu.Lock()
	doc, report := s.builder.Build()
	s.mu.Unlock()

	if err := Save(doc, path, s.Options.SLXPFormat); err != nil {
		s.fail(err.Error())
		return report, err
	}
	s.builder.logger().Info("exported", zap.String("path", path), zap.Int("objects", report.Exported), zap.Int("joints", len(doc.Collection.Joints)))
	if report.Warnings() > 0 {
		s.notify(export.NotifySLXPExportWarning, map[string]string{"FILENAME": path, "FAILED": strings.Join(report.Failed, ", ")})
	} else {
		s.notify(export.NotifySLXPExportSuccess, map[string]string{"FILENAME": path})
	}
	return report, nil
}

// Run checks the preconditions, resolves names with r and exports to path.
func (s *Session) Run(ctx context.Context, r Resolver, path string) (*export.Report, error) {
	if path == "" {
		s.fail("no file name provided.")
		return nil, export.ErrNoFilename
	}
	if s.builder.Len() == 0 {
		s.fail("no objects selected for export.")
		return nil, export.ErrNothingSelected
	}
	if r != nil {
		if err := s.Begin(ctx, r); err != nil {
			return nil, err
		}
		if err := s.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return s.Export(path)
}
