package dae

import (
	"encoding/xml"
	"strconv"
	"strings"
)

const (
	Namespace = "http://www.collada.org/2005/11/COLLADASchema"
	Version   = "1.4.1"
)

// Collada is a COLLADA 1.4.1 document. Empty libraries are omitted.
type Collada struct {
	XMLName xml.Name `xml:"http://www.collada.org/2005/11/COLLADASchema COLLADA"`
	Version string   `xml:"version,attr"`

	Asset        Asset         `xml:"asset"`
	Images       []Image       `xml:"library_images>image"`
	Geometries   []Geometry    `xml:"library_geometries>geometry"`
	Effects      []Effect      `xml:"library_effects>effect"`
	Materials    []Material    `xml:"library_materials>material"`
	Controllers  []Controller  `xml:"library_controllers>controller"`
	VisualScenes []VisualScene `xml:"library_visual_scenes>visual_scene"`
	Scene        Scene         `xml:"scene"`
}

type Asset struct {
	Contributor Contributor `xml:"contributor"`
	Created     string      `xml:"created"`
	Modified    string      `xml:"modified"`
	Unit        Unit        `xml:"unit"`
	UpAxis      string      `xml:"up_axis"`
}

type Contributor struct {
	Author        string `xml:"author"`
	AuthoringTool string `xml:"authoring_tool"`
}

type Unit struct {
	Name  string  `xml:"name,attr"`
	Meter float32 `xml:"meter,attr"`
}

type Image struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	InitFrom string `xml:"init_from"`
}

type Geometry struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr,omitempty"`
	Mesh Mesh   `xml:"mesh"`
}

type Mesh struct {
	Sources   []Source   `xml:"source"`
	Vertices  Vertices   `xml:"vertices"`
	Polylists []Polylist `xml:"polylist"`
}

// Source holds either a float array or a name array.
type Source struct {
	ID         string      `xml:"id,attr"`
	FloatArray *FloatArray `xml:"float_array"`
	NameArray  *NameArray  `xml:"Name_array"`
	Accessor   Accessor    `xml:"technique_common>accessor"`
}

type FloatArray struct {
	ID     string    `xml:"id,attr"`
	Count  int       `xml:"count,attr"`
	Values FloatList `xml:",chardata"`
}

type NameArray struct {
	ID     string     `xml:"id,attr"`
	Count  int        `xml:"count,attr"`
	Values StringList `xml:",chardata"`
}

type Accessor struct {
	Source string  `xml:"source,attr"`
	Count  int     `xml:"count,attr"`
	Stride int     `xml:"stride,attr"`
	Params []Param `xml:"param"`
}

type Param struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type Vertices struct {
	ID     string       `xml:"id,attr"`
	Inputs []InputLocal `xml:"input"`
}

type InputLocal struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
}

type InputShared struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   int    `xml:"offset,attr"`
}

type Polylist struct {
	Material string        `xml:"material,attr"`
	Count    int           `xml:"count,attr"`
	Inputs   []InputShared `xml:"input"`
	VCount   IntList       `xml:"vcount"`
	P        IntList       `xml:"p"`
}

type Controller struct {
	ID   string `xml:"id,attr"`
	Skin Skin   `xml:"skin"`
}

type Skin struct {
	Source          string        `xml:"source,attr"`
	BindShapeMatrix FloatList     `xml:"bind_shape_matrix"`
	Sources         []Source      `xml:"source"`
	Joints          Joints        `xml:"joints"`
	VertexWeights   VertexWeights `xml:"vertex_weights"`
}

type Joints struct {
	Inputs []InputLocal `xml:"input"`
}

type VertexWeights struct {
	Count  int           `xml:"count,attr"`
	Inputs []InputShared `xml:"input"`
	VCount IntList       `xml:"vcount"`
	V      IntList       `xml:"v"`
}

type VisualScene struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Nodes []Node `xml:"node"`
}

type Node struct {
	ID   string `xml:"id,attr"`
	SID  string `xml:"sid,attr,omitempty"`
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`

	Matrix             *Matrix             `xml:"matrix"`
	InstanceController *InstanceController `xml:"instance_controller"`
	InstanceGeometry   *InstanceGeometry   `xml:"instance_geometry"`
	Nodes              []Node              `xml:"node"`
}

// Find returns the first node with the given id in depth-first order.
func (n *Node) Find(id string) *Node {
	if n.ID == id {
		return n
	}
	for i := range n.Nodes {
		if f := n.Nodes[i].Find(id); f != nil {
			return f
		}
	}
	return nil
}

type Matrix struct {
	SID    string    `xml:"sid,attr,omitempty"`
	Values FloatList `xml:",chardata"`
}

type InstanceGeometry struct {
	URL          string        `xml:"url,attr"`
	BindMaterial *BindMaterial `xml:"bind_material"`
}

type InstanceController struct {
	URL          string        `xml:"url,attr"`
	Skeletons    []string      `xml:"skeleton"`
	BindMaterial *BindMaterial `xml:"bind_material"`
}

type BindMaterial struct {
	Materials []InstanceMaterial `xml:"technique_common>instance_material"`
}

type InstanceMaterial struct {
	Symbol string `xml:"symbol,attr"`
	Target string `xml:"target,attr"`
}

type Effect struct {
	ID      string        `xml:"id,attr"`
	Profile ProfileCommon `xml:"profile_COMMON"`
}

type ProfileCommon struct {
	NewParams []NewParam `xml:"newparam"`
	Technique Technique  `xml:"technique"`
}

type NewParam struct {
	SID       string     `xml:"sid,attr"`
	Surface   *Surface   `xml:"surface"`
	Sampler2D *Sampler2D `xml:"sampler2D"`
}

type Surface struct {
	Type     string `xml:"type,attr"`
	InitFrom string `xml:"init_from"`
}

type Sampler2D struct {
	Source string `xml:"source"`
}

type Technique struct {
	SID   string `xml:"sid,attr"`
	Phong Phong  `xml:"phong"`
}

type Phong struct {
	Diffuse      ColorOrTexture `xml:"diffuse"`
	Transparency *FloatParam    `xml:"transparency"`
}

// ColorOrTexture holds exactly one of Color and Texture.
type ColorOrTexture struct {
	Color   *Color   `xml:"color"`
	Texture *Texture `xml:"texture"`
}

type Color struct {
	SID   string `xml:"sid,attr,omitempty"`
	Value string `xml:",chardata"`
}

type Texture struct {
	Texture  string `xml:"texture,attr"`
	Texcoord string `xml:"texcoord,attr"`
}

type FloatParam struct {
	Float string `xml:"float"`
}

type Material struct {
	ID             string      `xml:"id,attr"`
	InstanceEffect InstanceURL `xml:"instance_effect"`
}

type InstanceURL struct {
	URL string `xml:"url,attr"`
}

type Scene struct {
	InstanceVisualScene InstanceURL `xml:"instance_visual_scene"`
}

// FloatList is a whitespace separated list of floats.
type FloatList []float32

func (l FloatList) MarshalText() ([]byte, error) {
	var b []byte
	for i, v := range l {
		if i > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendFloat(b, float64(v), 'g', -1, 32)
	}
	return b, nil
}

func (l *FloatList) UnmarshalText(text []byte) error {
	*l = nil
	for _, f := range strings.Fields(string(text)) {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return err
		}
		*l = append(*l, float32(v))
	}
	return nil
}

type IntList []int

func (l IntList) MarshalText() ([]byte, error) {
	var b []byte
	for i, v := range l {
		if i > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendInt(b, int64(v), 10)
	}
	return b, nil
}

func (l *IntList) UnmarshalText(text []byte) error {
	*l = nil
	for _, f := range strings.Fields(string(text)) {
		v, err := strconv.Atoi(f)
		if err != nil {
			return err
		}
		*l = append(*l, v)
	}
	return nil
}

type StringList []string

func (l StringList) MarshalText() ([]byte, error) {
	return []byte(strings.Join(l, " ")), nil
}

func (l *StringList) UnmarshalText(text []byte) error {
	*l = strings.Fields(string(text))
	return nil
}
