package slxp

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/binzume/sceneexport/export"
	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/scene"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var white = geom.Vector4{X: 1, Y: 1, Z: 1, W: 1}

func quad(te *scene.TextureEntry) *scene.Face {
	return &scene.Face{
		Positions: []geom.Vector3{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Normals:   []geom.Vector3{{Z: 1}, {Z: 1}, {Z: 1}, {Z: 1}},
		TexCoords: []geom.Vector2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Indices:   []uint16{0, 1, 2, 0, 2, 3},
		TE:        te,
	}
}

func newObject(name string, localID uint32, faces ...*scene.Face) *scene.Object {
	return &scene.Object{ID: uuid.New(), LocalID: localID, Name: name, Local: scene.IdentityTransform(), World: scene.IdentityTransform(), Faces: faces}
}

func cube() *scene.Object {
	te := &scene.TextureEntry{TextureID: uuid.New(), Color: white, RepeatU: 1, RepeatV: 1}
	var faces []*scene.Face
	for i := 0; i < 6; i++ {
		faces = append(faces, quad(te))
	}
	return newObject("Cube", 7, faces...)
}

func riggedObject() *scene.Object {
	obj := newObject("Body", 9, quad(&scene.TextureEntry{Color: white}))
	obj.Faces[0].Weights = []geom.Vector4{{X: 0.5}, {X: 1.999}, {X: 0.25, Y: 1.75}, {X: 1.5}}
	obj.Skin = &scene.SkinInfo{
		BindShapeMatrix:     *geom.NewScaleMatrix4(2, 2, 2),
		JointNames:          []string{"mPelvis", "mTorso"},
		InverseBindMatrices: []geom.Matrix4{*geom.NewMatrix4(), *geom.NewTranslateMatrix4(0, 0, -1)},
	}
	return obj
}

func testAvatar() *scene.Avatar {
	root := &scene.Joint{Name: "mPelvis", Num: 0, Position: geom.Vector3{Z: 1}, Rotation: geom.IdentityQuaternion, Scale: geom.Vector3{X: 1, Y: 1, Z: 1}}
	torso := &scene.Joint{Name: "mTorso", Num: 1, Position: geom.Vector3{Z: 0.5}, Rotation: *geom.NewQuaternion(0, 0, math.Sqrt2/2, math.Sqrt2/2), Scale: geom.Vector3{X: 1, Y: 1, Z: 1}}
	chest := &scene.Joint{Name: "CHEST", Num: 2, Kind: scene.JointAttachment, Position: geom.Vector3{X: 1}, Rotation: geom.IdentityQuaternion, Scale: geom.Vector3{X: 1, Y: 1, Z: 1}}
	root.AddChild(torso)
	torso.AddChild(chest)
	return &scene.Avatar{ID: uuid.New(), Name: "Resident", World: scene.IdentityTransform(), Root: root}
}

func testOptions() *export.Options {
	opts := export.DefaultOptions()
	opts.SkipTransparent = false
	opts.ExportTextures = false
	return opts
}

func toJSON(t *testing.T, doc *Document) map[string]interface{} {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func objectsOf(t *testing.T, m map[string]interface{}) []interface{} {
	coll, ok := m["Collection"].(map[string]interface{})
	require.True(t, ok)
	objs, ok := coll["Objects"].([]interface{})
	require.True(t, ok)
	return objs
}

func countLeaves(v interface{}) int {
	if a, ok := v.([]interface{}); ok {
		n := 0
		for _, e := range a {
			n += countLeaves(e)
		}
		return n
	}
	if _, ok := v.(float64); ok {
		return 1
	}
	return 0
}

func TestCubeJSON(t *testing.T) {
	b := NewBuilder(testOptions(), nil)
	b.Title = "cube"
	b.Add(cube(), "Cube")
	doc, report := b.Build()
	assert.Equal(t, 0, report.Warnings())

	m := toJSON(t, doc)
	assert.Equal(t, "cube", m["Title"])
	objs := objectsOf(t, m)
	require.Len(t, objs, 1)
	obj := objs[0].(map[string]interface{})
	assert.Equal(t, "Cube", obj["Name"])
	assert.Equal(t, float64(7), obj["Id"])
	assert.Equal(t, float64(0), obj["LinkNumber"])
	assert.NotContains(t, obj, "BindShapeMatrix")
	assert.NotContains(t, obj, "InverseBindMatrices")
	assert.NotContains(t, obj, "JointNumbers")

	faces := obj["Faces"].([]interface{})
	require.Len(t, faces, 6)
	positions := 0
	for _, f := range faces {
		face := f.(map[string]interface{})
		assert.NotContains(t, face, "Weights")
		for _, p := range face["Positions"].([]interface{}) {
			assert.Len(t, p, 3)
			positions++
		}
		assert.Equal(t, 0, len(face["Indices"].([]interface{}))%3)
		assert.Equal(t, []interface{}{}, face["Tangents"])
	}
	assert.Equal(t, 24, positions)
}

func TestJSONKeyOrder(t *testing.T) {
	av := testAvatar()
	obj := cube()
	obj.Avatar = av
	obj.AttachmentPoint = av.FindJoint("CHEST")
	b := NewBuilder(testOptions(), nil)
	b.Add(obj, "Cube")
	doc, _ := b.Build()
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	s := buf.String()
	assert.True(t, strings.HasSuffix(s, "\n"))

	last := -1
	for _, key := range []string{`"Title"`, `"Collection"`, `"Objects"`, `"Name"`, `"Id"`, `"ParentId"`, `"LocalPosition"`, `"LocalRotation"`, `"LocalScale"`, `"AttachmentJointId"`, `"LinkNumber"`, `"Faces"`, `"Joints"`} {
		i := strings.Index(s, key)
		require.True(t, i > last, "%s out of order in %s", key, s)
		last = i
	}
}

func TestRiggedJSON(t *testing.T) {
	b := NewBuilder(testOptions(), nil)
	b.Avatar = testAvatar()
	b.Add(riggedObject(), "Body")
	doc, report := b.Build()
	require.Equal(t, 1, report.Exported)

	m := toJSON(t, doc)
	obj := objectsOf(t, m)[0].(map[string]interface{})
	require.Contains(t, obj, "BindShapeMatrix")
	assert.Len(t, obj["BindShapeMatrix"], 4)
	assert.Equal(t, 16, countLeaves(obj["BindShapeMatrix"]))
	assert.Equal(t, 32, countLeaves(obj["InverseBindMatrices"]))
	assert.Equal(t, []interface{}{float64(0), float64(1)}, obj["JointNumbers"])
	face := obj["Faces"].([]interface{})[0].(map[string]interface{})
	assert.Len(t, face["Weights"], 4)

	joints := m["Collection"].(map[string]interface{})["Joints"].([]interface{})
	require.Len(t, joints, 3)
	torso := joints[1].(map[string]interface{})
	assert.Equal(t, "mTorso", torso["Name"])
	assert.Equal(t, float64(1), torso["Id"])
	assert.Equal(t, float64(0), torso["ParentId"])
	root := joints[0].(map[string]interface{})
	assert.Equal(t, float64(0), root["Id"])
	assert.NotContains(t, root, "ParentId")
	assert.InDelta(t, math.Sqrt2/2, torso["LocalRotation"].([]interface{})[3], 1e-6)
}

func TestRiggedMeshDisabled(t *testing.T) {
	opts := testOptions()
	opts.ExportRiggedMesh = false
	b := NewBuilder(opts, nil)
	b.Add(riggedObject(), "Body")
	doc, _ := b.Build()

	obj := objectsOf(t, toJSON(t, doc))[0].(map[string]interface{})
	assert.NotContains(t, obj, "BindShapeMatrix")
	assert.NotContains(t, obj, "InverseBindMatrices")
	assert.NotContains(t, obj, "JointNumbers")
	for _, f := range obj["Faces"].([]interface{}) {
		assert.NotContains(t, f.(map[string]interface{}), "Weights")
	}
}

func TestJointNumbersFromSkin(t *testing.T) {
	obj := riggedObject()
	obj.Skin.JointNames = []string{"mTorso", "mMissing"}
	b := NewBuilder(testOptions(), nil)
	b.Avatar = testAvatar()
	b.Add(obj, "Body")
	doc, _ := b.Build()
	assert.Equal(t, []int32{1, -1}, doc.Collection.Objects[0].JointNumbers)

	obj.Skin.JointNumbers = []int{5, 6}
	doc, _ = b.Build()
	assert.Equal(t, []int32{5, 6}, doc.Collection.Objects[0].JointNumbers)
}

func TestBadSkin(t *testing.T) {
	obj := riggedObject()
	obj.Skin.InverseBindMatrices = nil
	b := NewBuilder(testOptions(), nil)
	b.Add(obj, "Body")
	b.Add(cube(), "Cube")
	doc, report := b.Build()
	assert.Equal(t, []string{"Body"}, report.Failed)
	require.Len(t, doc.Collection.Objects, 1)
	assert.Equal(t, "Cube", doc.Collection.Objects[0].Name)
}

func TestLinkSet(t *testing.T) {
	av := testAvatar()
	root := newObject("root", 10, quad(&scene.TextureEntry{Color: white}))
	a := newObject("a", 11, quad(&scene.TextureEntry{Color: white}))
	c := newObject("c", 12, quad(&scene.TextureEntry{Color: white}))
	for _, o := range []*scene.Object{a, c} {
		o.Parent = root
		root.Children = append(root.Children, o)
	}
	root.Avatar = av
	root.AttachmentPoint = av.FindJoint("CHEST")

	b := NewBuilder(testOptions(), nil)
	for _, o := range []*scene.Object{root, a, c} {
		b.Add(o, o.Name)
	}
	doc, _ := b.Build()
	objs := doc.Collection.Objects
	require.Len(t, objs, 3)
	assert.Equal(t, []uint32{1, 2, 3}, []uint32{objs[0].LinkNumber, objs[1].LinkNumber, objs[2].LinkNumber})
	assert.Equal(t, []uint32{0, 10, 10}, []uint32{objs[0].ParentId, objs[1].ParentId, objs[2].ParentId})
	for _, o := range objs {
		require.NotNil(t, o.AttachmentJointId)
		assert.Equal(t, uint32(2), *o.AttachmentJointId)
	}
}

func TestJointIdsFollowPreorder(t *testing.T) {
	av := testAvatar()
	av.Root.Num = 10
	av.FindJoint("mTorso").Num = 3
	av.FindJoint("CHEST").Num = 42
	hat := newObject("Hat", 20, quad(&scene.TextureEntry{Color: white}))
	hat.Avatar = av
	hat.AttachmentPoint = av.FindJoint("CHEST")

	b := NewBuilder(testOptions(), nil)
	b.Avatar = av
	b.Add(hat, "Hat")
	body := riggedObject()
	body.Skin.JointNames = []string{"CHEST", "mPelvis"}
	b.Add(body, "Body")
	doc, _ := b.Build()

	ids := map[string]uint32{}
	for _, j := range doc.Collection.Joints {
		ids[j.Name] = j.Id
	}
	assert.Equal(t, map[string]uint32{"mPelvis": 0, "mTorso": 1, "CHEST": 2}, ids)

	objs := doc.Collection.Objects
	require.Len(t, objs, 2)
	require.NotNil(t, objs[0].AttachmentJointId)
	assert.Equal(t, ids["CHEST"], *objs[0].AttachmentJointId)
	assert.Nil(t, objs[1].AttachmentJointId)
	assert.Equal(t, []int32{2, 0}, objs[1].JointNumbers)
}

func TestRootJointHasNoParent(t *testing.T) {
	b := NewBuilder(testOptions(), nil)
	b.Avatar = testAvatar()
	doc, _ := b.Build()
	joints := doc.Collection.Joints
	require.Len(t, joints, 3)
	assert.Nil(t, joints[0].ParentId)
	for _, j := range joints[1:] {
		require.NotNil(t, j.ParentId)
		assert.Equal(t, j.Id-1, *j.ParentId)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, doc))
	read, err := ReadDocument(&buf)
	require.NoError(t, err)
	assert.Nil(t, read.Collection.Joints[0].ParentId)
	assert.Equal(t, joints[2].ParentId, read.Collection.Joints[2].ParentId)
}

func TestSanitizedJSON(t *testing.T) {
	obj := cube()
	obj.Local.Position = geom.Vector3{X: float32(math.NaN()), Y: float32(math.Inf(1)), Z: float32(math.Inf(-1))}
	b := NewBuilder(testOptions(), nil)
	b.Add(obj, "Cube")
	doc, _ := b.Build()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	assert.NotContains(t, buf.String(), "NaN")
	pos := objectsOf(t, toJSON(t, doc))[0].(map[string]interface{})["LocalPosition"]
	assert.Equal(t, []interface{}{0.0, 1e30, -1e30}, pos)
}

func TestBinaryRoundTrip(t *testing.T) {
	b := NewBuilder(testOptions(), nil)
	b.Title = "round trip"
	b.Avatar = testAvatar()
	b.Add(riggedObject(), "Body")
	b.Add(cube(), "Cube")
	doc, _ := b.Build()

	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, doc))
	assert.Equal(t, []byte("SLXP\x00\x00\x01"), buf.Bytes()[:7])

	read, err := ReadDocument(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc, read)
}

func TestReadDocumentErrors(t *testing.T) {
	_, err := ReadDocument(strings.NewReader("XLXP\x00\x00\x01"))
	assert.True(t, errors.Is(err, ErrBadMagic))

	_, err = ReadDocument(strings.NewReader("SLXP\x00\x00\x02"))
	assert.True(t, errors.Is(err, ErrBadVersion))

	var buf bytes.Buffer
	b := NewBuilder(testOptions(), nil)
	b.Add(cube(), "Cube")
	doc, _ := b.Build()
	require.NoError(t, WriteBinary(&buf, doc))
	_, err = ReadDocument(bytes.NewReader(buf.Bytes()[:buf.Len()-3]))
	assert.Error(t, err)
}

func TestReadJSON(t *testing.T) {
	b := NewBuilder(testOptions(), nil)
	b.Add(riggedObject(), "Body")
	doc, _ := b.Build()
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))

	read, err := ReadJSON(&buf)
	require.NoError(t, err)
	require.Len(t, read.Collection.Objects, 1)
	o := read.Collection.Objects[0]
	assert.Equal(t, doc.Collection.Objects[0].BindShapeMatrix, o.BindShapeMatrix)
	assert.Equal(t, doc.Collection.Objects[0].Faces[0].Positions, o.Faces[0].Positions)
}
