package slxp

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/binzume/sceneexport/export"
	"github.com/binzume/sceneexport/scene"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notification struct {
	name string
	args map[string]string
}

type recorder struct {
	mu    sync.Mutex
	items []notification
}

func (r *recorder) Notify(name string, args map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, notification{name, args})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, n := range r.items {
		names = append(names, n.name)
	}
	return names
}

func selectionOf(objs ...*scene.Object) *scene.Selection {
	sel := &scene.Selection{Title: "test"}
	for _, o := range objs {
		sel.Entries = append(sel.Entries, scene.Entry{Object: o, Name: o.Name})
	}
	return sel
}

func readOutput(t *testing.T, path string) *Document {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	doc, err := ReadJSON(f)
	require.NoError(t, err)
	return doc
}

func TestSessionResolve(t *testing.T) {
	a, b := cube(), cube()
	rec := &recorder{}
	s := NewSession(selectionOf(a, b), testOptions(), nil, rec)
	path := filepath.Join(t.TempDir(), "out.slxp")

	names := StaticResolver{a.ID: "Resolved A", b.ID: "Resolved B"}
	report, err := s.Run(context.Background(), names, path)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Exported)
	assert.Empty(t, s.Pending())
	assert.Equal(t, []string{export.NotifySLXPExportSuccess}, rec.names())

	doc := readOutput(t, path)
	require.Len(t, doc.Collection.Objects, 2)
	assert.Equal(t, "Resolved A", doc.Collection.Objects[0].Name)
	assert.Equal(t, "Resolved B", doc.Collection.Objects[1].Name)
}

func TestSessionManualResolve(t *testing.T) {
	a := cube()
	s := NewSession(selectionOf(a), testOptions(), nil, nil)
	var requested []uuid.UUID
	require.NoError(t, s.Begin(context.Background(), ResolverFunc(func(ctx context.Context, id uuid.UUID, reply NameReply) error {
		requested = append(requested, id)
		return nil
	})))
	assert.Equal(t, []uuid.UUID{a.ID}, requested)
	assert.Equal(t, []uuid.UUID{a.ID}, s.Pending())

	assert.False(t, s.Resolve(uuid.New(), "other"))
	assert.True(t, s.Resolve(a.ID, "Named"))
	assert.False(t, s.Resolve(a.ID, "again"))
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, "Named", s.Builder().Entries()[0].Name)
}

func TestSessionTimeout(t *testing.T) {
	a, b := cube(), cube()
	opts := testOptions()
	opts.NameTimeout = 20 * time.Millisecond
	s := NewSession(selectionOf(a, b), opts, nil, nil)
	path := filepath.Join(t.TempDir(), "out.slxp")

	report, err := s.Run(context.Background(), StaticResolver{a.ID: "Resolved"}, path)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Exported)
	assert.Equal(t, []uuid.UUID{b.ID}, s.Pending())

	doc := readOutput(t, path)
	assert.Equal(t, "Resolved", doc.Collection.Objects[0].Name)
	assert.Equal(t, "Cube", doc.Collection.Objects[1].Name)
}

func TestSessionCancel(t *testing.T) {
	opts := testOptions()
	opts.NameTimeout = 0
	s := NewSession(selectionOf(cube()), opts, nil, nil)
	path := filepath.Join(t.TempDir(), "out.slxp")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := s.Run(ctx, StaticResolver{}, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

func TestSessionPreconditions(t *testing.T) {
	rec := &recorder{}
	s := NewSession(selectionOf(cube()), testOptions(), nil, rec)
	_, err := s.Run(context.Background(), nil, "")
	assert.ErrorIs(t, err, export.ErrNoFilename)

	s = NewSession(selectionOf(), testOptions(), nil, rec)
	path := filepath.Join(t.TempDir(), "out.slxp")
	_, err = s.Run(context.Background(), nil, path)
	assert.ErrorIs(t, err, export.ErrNothingSelected)
	assert.NoFileExists(t, path)

	require.Len(t, rec.items, 2)
	assert.Equal(t, export.NotifySLXPExportError, rec.items[0].name)
	assert.Equal(t, "no file name provided.", rec.items[0].args["REASON"])
	assert.Equal(t, "no objects selected for export.", rec.items[1].args["REASON"])
}

func TestSessionWarnings(t *testing.T) {
	bad := cube()
	bad.Name = "Broken"
	bad.Faces[0].Normals = nil
	rec := &recorder{}
	s := NewSession(selectionOf(bad, cube()), testOptions(), nil, rec)
	path := filepath.Join(t.TempDir(), "out.slxp")

	report, err := s.Run(context.Background(), nil, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Broken"}, report.Failed)
	require.Len(t, rec.items, 1)
	assert.Equal(t, export.NotifySLXPExportWarning, rec.items[0].name)
	assert.Equal(t, "Broken", rec.items[0].args["FAILED"])
	assert.Len(t, readOutput(t, path).Collection.Objects, 1)
}

func TestSessionBinary(t *testing.T) {
	opts := testOptions()
	opts.SLXPFormat = FormatBinary
	s := NewSession(selectionOf(cube()), opts, nil, nil)
	path := filepath.Join(t.TempDir(), "out.slxp")
	_, err := s.Run(context.Background(), nil, path)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	doc, err := ReadDocument(f)
	require.NoError(t, err)
	assert.Equal(t, "test", doc.Title)
	assert.Len(t, doc.Collection.Objects[0].Faces, 6)
}

type denyAll struct {
	export.AllowAll
}

func (denyAll) CanExportObject(*scene.Object) bool {
	return false
}

func TestSessionPolicy(t *testing.T) {
	rec := &recorder{}
	s := NewSession(selectionOf(cube()), testOptions(), denyAll{}, rec)
	_, err := s.Run(context.Background(), nil, filepath.Join(t.TempDir(), "out.slxp"))
	assert.ErrorIs(t, err, export.ErrNothingSelected)
	assert.Equal(t, []string{export.NotifySLXPExportError}, rec.names())
}
