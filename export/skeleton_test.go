package export

import (
	"math"
	"testing"

	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rotZ90 = *geom.NewQuaternion(0, 0, math.Sqrt2/2, math.Sqrt2/2)

func newJoint(name string, kind scene.JointKind, pos geom.Vector3) *scene.Joint {
	return &scene.Joint{Name: name, Kind: kind, Position: pos, Rotation: geom.IdentityQuaternion, Scale: geom.Vector3{X: 1, Y: 1, Z: 1}}
}

func testSkeleton() *scene.Joint {
	pelvis := newJoint("mPelvis", scene.JointAnimated, geom.Vector3{Z: 1})
	torso := newJoint("mTorso", scene.JointAnimated, geom.Vector3{Z: 0.5})
	torso.Rotation = rotZ90
	torso.Scale = geom.Vector3{X: 2, Y: 2, Z: 2}
	chest := newJoint("CHEST", scene.JointAttachment, geom.Vector3{X: 1})
	cv := newJoint("PELVIS", scene.JointCollisionVolume, geom.Vector3{})
	cv.Rotation = rotZ90
	pelvis.AddChild(torso)
	torso.AddChild(chest)
	pelvis.AddChild(cv)
	return pelvis
}

func TestWalkSkeleton(t *testing.T) {
	root := testSkeleton()

	recs := WalkSkeleton(root, RotationCollisionVolumesOnly)
	require.Len(t, recs, 4)
	var names []string
	var parents []int
	for i, r := range recs {
		assert.Equal(t, i, r.Ordinal)
		names = append(names, r.Name)
		parents = append(parents, r.ParentOrdinal)
	}
	assert.Equal(t, []string{"mPelvis", "mTorso", "CHEST", "PELVIS"}, names)
	assert.Equal(t, []int{-1, 0, 1, 0}, parents)
	assert.False(t, recs[0].HasParent())
	assert.Equal(t, geom.IdentityQuaternion, recs[1].Rotation)
	assert.Equal(t, rotZ90, recs[3].Rotation)

	assert.Equal(t, recs, WalkSkeleton(root, RotationCollisionVolumesOnly))

	always := WalkSkeleton(root, RotationAlways)
	assert.Equal(t, rotZ90, always[1].Rotation)
	never := WalkSkeleton(root, RotationNever)
	assert.Equal(t, geom.IdentityQuaternion, never[3].Rotation)

	assert.Empty(t, WalkSkeleton(nil, RotationAlways))
}

func TestWalkSkeletonOverrides(t *testing.T) {
	root := testSkeleton()
	torso := root.Find("mTorso")
	torso.PositionOverride = &geom.Vector3{Z: 0.7}
	torso.ScaleOverride = &geom.Vector3{X: 1, Y: 1, Z: 1.5}

	recs := WalkSkeleton(root, RotationAlways)
	assert.Equal(t, geom.Vector3{Z: 0.7}, recs[1].Position)
	assert.Equal(t, geom.Vector3{X: 1, Y: 1, Z: 1.5}, recs[1].Scale)
}

func TestAttachmentJointMatrix(t *testing.T) {
	root := testSkeleton()
	chest := root.Find("CHEST")

	// CHEST offset is scaled by mTorso, rotated by it and lifted; the root is excluded.
	p := AttachmentJointMatrix(chest).ApplyTo(&geom.Vector3{})
	assert.InDelta(t, 0, p.X, 1e-5)
	assert.InDelta(t, 2, p.Y, 1e-5)
	assert.InDelta(t, 0.5, p.Z, 1e-5)

	assert.Equal(t, geom.NewMatrix4(), AttachmentJointMatrix(root))
}

func TestRelativeMatrix(t *testing.T) {
	root := newObject("root")
	root.Local.Position = geom.Vector3{X: 1}
	root.Local.Rotation = rotZ90
	child := newObject("child")
	child.Local.Position = geom.Vector3{X: 1}
	child.Local.Scale = geom.Vector3{X: 3, Y: 3, Z: 3}
	child.Parent = root
	root.Children = append(root.Children, child)

	p := RelativeMatrix(nil, child).ApplyTo(&geom.Vector3{})
	assert.InDelta(t, 1, p.X, 1e-5)
	assert.InDelta(t, 1, p.Y, 1e-5)

	p = RelativeMatrix(root, child).ApplyTo(&geom.Vector3{X: 1})
	assert.InDelta(t, 4, p.X, 1e-5)
	assert.InDelta(t, 0, p.Y, 1e-5)
}
