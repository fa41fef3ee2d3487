// Package dae provides a minimal COLLADA 1.4.1 document model for export.
//
// Only the elements needed to describe static scenes are modeled: geometry
// libraries with shared-index polygon lists, lambert effects with one
// texture sampler, and a nested visual-scene node hierarchy.
package dae

import "encoding/xml"

const (
	Namespace = "http://www.collada.org/2005/11/COLLADASchema"
	Version   = "1.4.1"
)

type Document struct {
	XMLName xml.Name `xml:"COLLADA"`
	XMLNS   string   `xml:"xmlns,attr"`
	Version string   `xml:"version,attr"`

	Asset        Asset                `xml:"asset"`
	Images       *LibraryImages       `xml:"library_images"`
	Effects      *LibraryEffects      `xml:"library_effects"`
	Materials    *LibraryMaterials    `xml:"library_materials"`
	Geometries   *LibraryGeometries   `xml:"library_geometries"`
	VisualScenes *LibraryVisualScenes `xml:"library_visual_scenes"`
	Scene        *Scene               `xml:"scene"`
}

func NewDocument() *Document {
	return &Document{XMLNS: Namespace, Version: Version}
}

type Asset struct {
	Contributor Contributor `xml:"contributor"`
	Created     string      `xml:"created"`
	Modified    string      `xml:"modified"`
	UpAxis      string      `xml:"up_axis"`
}

type Contributor struct {
	AuthoringTool string `xml:"authoring_tool"`
}

type LibraryImages struct {
	Images []*Image `xml:"image"`
}

type Image struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr,omitempty"`
	InitFrom string `xml:"init_from"`
}

type LibraryMaterials struct {
	Materials []*Material `xml:"material"`
}

type Material struct {
	ID             string         `xml:"id,attr"`
	Name           string         `xml:"name,attr,omitempty"`
	InstanceEffect InstanceEffect `xml:"instance_effect"`
}

type InstanceEffect struct {
	URL string `xml:"url,attr"`
}

type LibraryEffects struct {
	Effects []*Effect `xml:"effect"`
}

type Effect struct {
	ID      string        `xml:"id,attr"`
	Profile ProfileCommon `xml:"profile_COMMON"`
}

type ProfileCommon struct {
	NewParams []*NewParam     `xml:"newparam"`
	Technique EffectTechnique `xml:"technique"`
}

type NewParam struct {
	SID       string     `xml:"sid,attr"`
	Surface   *Surface   `xml:"surface"`
	Sampler2D *Sampler2D `xml:"sampler2D"`
}

type Surface struct {
	Type     string `xml:"type,attr"`
	InitFrom string `xml:"init_from"`
	Format   string `xml:"format,omitempty"`
}

type Sampler2D struct {
	Source         string `xml:"source"`
	WrapS          string `xml:"wrap_s,omitempty"`
	WrapT          string `xml:"wrap_t,omitempty"`
	MipmapMaxLevel string `xml:"mipmap_maxlevel,omitempty"`
}

type EffectTechnique struct {
	SID     string  `xml:"sid,attr"`
	Lambert Lambert `xml:"lambert"`
}

type Lambert struct {
	Diffuse           ColorOrTexture  `xml:"diffuse"`
	Transparent       *ColorOrTexture `xml:"transparent"`
	Transparency      *FloatValue     `xml:"transparency>float"`
	IndexOfRefraction *FloatValue     `xml:"index_of_refraction>float"`
}

type ColorOrTexture struct {
	Color   *ColorValue `xml:"color"`
	Texture *TextureRef `xml:"texture"`
}

type ColorValue struct {
	SID   string `xml:"sid,attr,omitempty"`
	Value string `xml:",chardata"`
}

type TextureRef struct {
	Texture  string `xml:"texture,attr"`
	Texcoord string `xml:"texcoord,attr"`
}

type FloatValue struct {
	SID   string `xml:"sid,attr,omitempty"`
	Value string `xml:",chardata"`
}

type LibraryGeometries struct {
	Geometries []*Geometry `xml:"geometry"`
}

type Geometry struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr,omitempty"`
	Mesh Mesh   `xml:"mesh"`
}

type Mesh struct {
	Sources   []*Source   `xml:"source"`
	Vertices  Vertices    `xml:"vertices"`
	Polylists []*Polylist `xml:"polylist"`
	Triangles []*Polygons `xml:"triangles"`
}

type Source struct {
	ID         string          `xml:"id,attr"`
	FloatArray FloatArray      `xml:"float_array"`
	Technique  TechniqueCommon `xml:"technique_common"`
}

type FloatArray struct {
	ID    string `xml:"id,attr"`
	Count int    `xml:"count,attr"`
	Value string `xml:",chardata"`
}

type TechniqueCommon struct {
	Accessor Accessor `xml:"accessor"`
}

type Accessor struct {
	Source string   `xml:"source,attr"`
	Count  int      `xml:"count,attr"`
	Stride int      `xml:"stride,attr"`
	Params []*Param `xml:"param"`
}

type Param struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type Vertices struct {
	ID     string  `xml:"id,attr"`
	Inputs []Input `xml:"input"`
}

// Input is an unshared input without an offset, used under <vertices>.
type Input struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
}

// SharedInput carries the index offset used under <polylist> and <triangles>.
type SharedInput struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   int    `xml:"offset,attr"`
}

// Polylist holds polygons of per-polygon vertex counts.
type Polylist struct {
	Count    int           `xml:"count,attr"`
	Material string        `xml:"material,attr,omitempty"`
	Inputs   []SharedInput `xml:"input"`
	VCount   string        `xml:"vcount"`
	P        string        `xml:"p"`
}

// Polygons is the fixed-arity variant, serialized as <triangles>.
type Polygons struct {
	Count    int           `xml:"count,attr"`
	Material string        `xml:"material,attr,omitempty"`
	Inputs   []SharedInput `xml:"input"`
	P        string        `xml:"p"`
}

type LibraryVisualScenes struct {
	VisualScenes []*VisualScene `xml:"visual_scene"`
}

type VisualScene struct {
	ID    string  `xml:"id,attr"`
	Name  string  `xml:"name,attr,omitempty"`
	Nodes []*Node `xml:"node"`
}

type Node struct {
	ID       string            `xml:"id,attr"`
	Name     string            `xml:"name,attr,omitempty"`
	Type     string            `xml:"type,attr,omitempty"`
	Matrix   *Matrix           `xml:"matrix"`
	Instance *InstanceGeometry `xml:"instance_geometry"`
	Children []*Node           `xml:"node"`
}

type Matrix struct {
	SID   string `xml:"sid,attr,omitempty"`
	Value string `xml:",chardata"`
}

type InstanceGeometry struct {
	URL          string        `xml:"url,attr"`
	Name         string        `xml:"name,attr,omitempty"`
	BindMaterial *BindMaterial `xml:"bind_material"`
}

type BindMaterial struct {
	Technique BindTechnique `xml:"technique_common"`
}

type BindTechnique struct {
	Materials []*InstanceMaterial `xml:"instance_material"`
}

type InstanceMaterial struct {
	Symbol string `xml:"symbol,attr"`
	Target string `xml:"target,attr"`
}

type Scene struct {
	InstanceVisualScene InstanceVisualScene `xml:"instance_visual_scene"`
}

type InstanceVisualScene struct {
	URL string `xml:"url,attr"`
}
