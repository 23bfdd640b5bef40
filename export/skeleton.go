package export

import (
	"github.com/binzume/sceneexport/geom"
	"github.com/binzume/sceneexport/scene"
)

// RotationPolicy selects which joints keep their rotation in exported local transforms.
type RotationPolicy int

const (
	RotationCollisionVolumesOnly RotationPolicy = iota
	RotationAlways
	RotationNever
)

func (p RotationPolicy) Includes(kind scene.JointKind) bool {
	switch p {
	case RotationAlways:
		return true
	case RotationCollisionVolumesOnly:
		return kind == scene.JointCollisionVolume
	default:
		return false
	}
}

type JointRecord struct {
	Joint   *scene.Joint
	Name    string
	Ordinal int
	// ParentOrdinal is -1 for the root.
	ParentOrdinal int
	Position      geom.Vector3
	Rotation      geom.Quaternion
	Scale         geom.Vector3
}

func (r *JointRecord) HasParent() bool {
	return r.ParentOrdinal >= 0
}

func (r *JointRecord) Matrix() *geom.Matrix4 {
	return geom.NewTRSMatrix4(&r.Position, &r.Rotation, &r.Scale)
}

// CollectJoints lists the skeleton in preorder, children in sibling order.
func CollectJoints(root *scene.Joint) []*scene.Joint {
	var joints []*scene.Joint
	var walk func(j *scene.Joint)
	walk = func(j *scene.Joint) {
		joints = append(joints, j)
		for _, c := range j.Children {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return joints
}

// WalkSkeleton numbers joints by traversal position and resolves their local transforms.
func WalkSkeleton(root *scene.Joint, policy RotationPolicy) []JointRecord {
	joints := CollectJoints(root)
	ordinals := make(map[*scene.Joint]int, len(joints))
	records := make([]JointRecord, len(joints))
	for i, j := range joints {
		ordinals[j] = i
		rec := JointRecord{
			Joint:         j,
			Name:          j.Name,
			Ordinal:       i,
			ParentOrdinal: -1,
			Position:      j.LocalPosition(),
			Rotation:      geom.IdentityQuaternion,
			Scale:         j.LocalScale(),
		}
		if j.Parent != nil {
			if p, ok := ordinals[j.Parent]; ok {
				rec.ParentOrdinal = p
			}
		}
		if policy.Includes(j.Kind) {
			rec.Rotation = j.Rotation
		}
		records[i] = rec
	}
	return records
}

// AttachmentJointMatrix accumulates the chain from joint up to (not including) the skeleton root.
// Positions are scaled by the parent joint's scale.
func AttachmentJointMatrix(joint *scene.Joint) *geom.Matrix4 {
	m := geom.NewMatrix4()
	root := joint.Root()
	for j := joint; j != nil && j != root; j = j.Parent {
		pos := j.LocalPosition()
		m = geom.NewRotationMatrix4FromQuaternion(&j.Rotation).Mul(m)
		if j.Parent != nil {
			ps := j.Parent.LocalScale()
			pos = *pos.ScaledVec(&ps)
		}
		m = geom.NewTranslateMatrix4(pos.X, pos.Y, pos.Z).Mul(m)
	}
	return m
}

// RelativeMatrix maps obj's local space into root's space (the avatar when root is nil).
// Parent scale is not applied.
func RelativeMatrix(root, obj *scene.Object) *geom.Matrix4 {
	m := obj.Local.Matrix()
	for p := obj.Parent; p != nil && p != root; p = p.Parent {
		m = geom.NewRotationMatrix4FromQuaternion(&p.Local.Rotation).Mul(m)
		m = geom.NewTranslateMatrix4(p.Local.Position.X, p.Local.Position.Y, p.Local.Position.Z).Mul(m)
	}
	return m
}
