// Package hsf implements a reader for HSF scene files (version HSFV037),
// the binary 3D scene container used by GameCube-era titles.
//
// An HSF file is a single buffer with a fixed directory of sections
// (materials, attribute banks, vertex data, primitives, nodes, textures,
// palettes, a string table, ...). Sections cross-reference each other by
// integer index, so parsing materializes flat collections first and resolves
// references afterwards.
package hsf

import (
	"image"

	"github.com/hsfkit/hsfconv/geom"
)

// NodeType identifies the role of a scene node.
type NodeType int32

const (
	NodeNull    NodeType = 0
	NodeReplica NodeType = 1
	NodeMesh    NodeType = 2
	NodeRoot    NodeType = 3
	NodeJoint   NodeType = 4
	NodeEffect  NodeType = 5
	NodeCamera  NodeType = 7
	NodeLight   NodeType = 8
	NodeMap     NodeType = 9
)

func (t NodeType) String() string {
	switch t {
	case NodeNull:
		return "Null"
	case NodeReplica:
		return "Replica"
	case NodeMesh:
		return "Mesh"
	case NodeRoot:
		return "Root"
	case NodeJoint:
		return "Joint"
	case NodeEffect:
		return "Effect"
	case NodeCamera:
		return "Camera"
	case NodeLight:
		return "Light"
	case NodeMap:
		return "Map"
	}
	return "Unknown"
}

// HasHierarchy reports whether nodes of this type take part in the scene
// tree. Cameras and lights are standalone records.
func (t NodeType) HasHierarchy() bool {
	return t != NodeCamera && t != NodeLight
}

// Transform is a node-local translation/rotation/scale triple.
// Rotations are Euler angles in degrees, applied extrinsically in Z-Y-X order.
type Transform struct {
	Position geom.Vector3
	Rotation geom.Vector3
	Scale    geom.Vector3
}

// Node is one entry of the scene hierarchy. Parent and Children are resolved
// from the file's parent indices; Mesh points into File.Meshes and is shared
// between all nodes that instance the same geometry.
type Node struct {
	Index       int
	Name        string
	Type        NodeType
	RenderFlags uint32

	ParentIndex int32
	ChildCount  int32
	SymbolIndex int32

	Base    Transform
	Current Transform

	CullBoxMin geom.Vector3
	CullBoxMax geom.Vector3

	// Attribute bank references (-1 = none).
	PrimitiveIndex int32
	PositionIndex  int32
	NormalIndex    int32
	ColorIndex     int32
	UVIndex        int32
	AttributeIndex int32

	Parent   *Node
	Children []*Node

	// Mesh is set for NodeMesh nodes. It is owned by File.Meshes and only
	// referenced here; several nodes may share one mesh.
	Mesh      *Mesh
	Attribute *Attribute

	// Replica is the node whose subtree this node re-instances
	// (NodeReplica only).
	Replica *Node
}

// VertexRef selects one entry per attribute array. Each index is independent;
// -1 marks an unused attribute.
type VertexRef struct {
	Position int16
	Normal   int16
	Color    int16
	UV       int16
}

// Face is a polygon with a per-face material. Triangles carry 3 refs, quads 4
// in the file's native corner order. Triangle strips are expanded to
// triangles during parsing.
type Face struct {
	Material int
	Refs     []VertexRef
}

// Mesh is one geometry record. ID equals the index of its primitive bank, so
// node bank references resolve directly. Attribute slices may be nil when the
// source mesh has no such data.
type Mesh struct {
	ID        int
	Name      string
	Positions []geom.Vector3
	Normals   []geom.Vector3
	Colors    [][4]uint8
	UVs       []geom.Vector2
	Faces     []Face
}

// HasNormals reports whether the mesh carries a normal stream.
func (m *Mesh) HasNormals() bool { return len(m.Normals) > 0 }

// HasColors reports whether the mesh carries a vertex color stream.
func (m *Mesh) HasColors() bool { return len(m.Colors) > 0 }

// HasUVs reports whether the mesh carries a texture coordinate stream.
func (m *Mesh) HasUVs() bool { return len(m.UVs) > 0 }

// Material is a shading record. Its AttributeIndex links to the Attribute
// carrying texture state; -1 means untextured.
type Material struct {
	Name                 string
	VertexMode           uint8
	AmbientColor         [3]uint8
	MaterialColor        [3]uint8
	ShadowColor          [3]uint8
	HiliteScale          float32
	TransparencyInverted float32
	ReflectionIntensity  float32
	Flags                uint32
	TextureCount         int32
	AttributeIndex       int32
}

// WrapMode is a texture coordinate wrapping mode.
type WrapMode int32

const (
	WrapClamp  WrapMode = 0
	WrapRepeat WrapMode = 1
	WrapMirror WrapMode = 2
)

func (w WrapMode) String() string {
	switch w {
	case WrapClamp:
		return "Clamp"
	case WrapRepeat:
		return "Repeat"
	case WrapMirror:
		return "Mirror"
	}
	return "Unknown"
}

// Attribute carries the texture binding state referenced by materials.
// TextureIndex is -1 when the attribute is untextured (including the
// degraded case of a dangling texture reference).
type Attribute struct {
	Name         string
	BlendFlag    uint8
	AlphaFlag    bool
	NBTEnable    bool
	WrapS        WrapMode
	WrapT        WrapMode
	MipmapMaxLOD int32
	TextureIndex int32
}

// Texture is a decoded texture image.
type Texture struct {
	Name   string
	Format TextureFormat
	Width  int
	Height int
	Image  *image.NRGBA
}

// File is a fully parsed HSF scene.
type File struct {
	// Roots are the parentless hierarchy nodes, in node order. A well
	// formed file has one, but multiple roots are accepted and exported
	// as siblings.
	Roots []*Node
	// Nodes is the flat node table in file order.
	Nodes []*Node
	// Meshes is indexed by primitive bank id. Entries stay nil for banks
	// no node references.
	Meshes     []*Mesh
	Materials  []*Material
	Attributes []*Attribute
	Textures   []*Texture

	// Warnings collects non-fatal problems found during parsing
	// (dangling texture references, skipped node kinds, ...).
	Warnings []string
}

// MeshNodes returns all nodes of type NodeMesh in file order.
func (f *File) MeshNodes() []*Node {
	var nodes []*Node
	for _, n := range f.Nodes {
		if n.Type == NodeMesh {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
