package scene

import "github.com/binzume/sceneexport/geom"

type JointKind int

const (
	JointAnimated JointKind = iota
	JointCollisionVolume
	JointAttachment
)

var jointKindNames = map[JointKind]string{
	JointAnimated:        "animated",
	JointCollisionVolume: "collision",
	JointAttachment:      "attachment",
}

func (k JointKind) String() string {
	return jointKindNames[k]
}

func ParseJointKind(s string) (JointKind, bool) {
	if s == "" {
		return JointAnimated, true
	}
	for k, n := range jointKindNames {
		if n == s {
			return k, true
		}
	}
	return JointAnimated, false
}

type Joint struct {
	Name     string
	Num      int
	Kind     JointKind
	Parent   *Joint
	Children []*Joint

	Position geom.Vector3
	Rotation geom.Quaternion
	Scale    geom.Vector3

	// Per-mesh attachment overrides. nil if not overridden.
	PositionOverride *geom.Vector3
	ScaleOverride    *geom.Vector3
}

func (j *Joint) AddChild(c *Joint) {
	c.Parent = j
	j.Children = append(j.Children, c)
}

func (j *Joint) LocalPosition() geom.Vector3 {
	if j.PositionOverride != nil {
		return *j.PositionOverride
	}
	return j.Position
}

func (j *Joint) LocalScale() geom.Vector3 {
	if j.ScaleOverride != nil {
		return *j.ScaleOverride
	}
	return j.Scale
}

func (j *Joint) Root() *Joint {
	for j.Parent != nil {
		j = j.Parent
	}
	return j
}

func (j *Joint) Find(name string) *Joint {
	if j.Name == name {
		return j
	}
	for _, c := range j.Children {
		if f := c.Find(name); f != nil {
			return f
		}
	}
	return nil
}
