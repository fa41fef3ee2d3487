package converter

import (
	"github.com/hsfkit/hsfconv/geom"
	"github.com/hsfkit/hsfconv/hsf"
)

// NormalizedMesh is a mesh re-indexed for COLLADA's shared-index model.
// Source meshes index each vertex attribute independently; here every
// distinct (position, normal, color, uv) index combination collapses to one
// shared index, numbered in order of first occurrence. The attribute slices
// all have one entry per shared index. Optional attributes stay nil when the
// source mesh has no such stream.
type NormalizedMesh struct {
	Positions []geom.Vector3
	Normals   []geom.Vector3
	Colors    [][4]float32
	UVs       []geom.Vector2
	Groups    []*PolyGroup
}

// PolyGroup holds the polygons sharing one material. Indices are shared
// indices into the mesh attribute slices, VCounts the per-polygon arity.
type PolyGroup struct {
	Material int
	VCounts  []int
	Indices  []int
}

// VertexCount returns the number of shared vertices.
func (m *NormalizedMesh) VertexCount() int {
	return len(m.Positions)
}

// NormalizeMesh computes the shared-index form of src. Quads are reordered
// from the source corner order to perimeter order, and the V texture
// coordinate is flipped for COLLADA's top-left origin. Polygons are grouped
// by material, groups ordered by first use.
func NormalizeMesh(src *hsf.Mesh) *NormalizedMesh {
	m := &NormalizedMesh{}
	shared := map[hsf.VertexRef]int{}
	groups := map[int]*PolyGroup{}

	for _, face := range src.Faces {
		group := groups[face.Material]
		if group == nil {
			group = &PolyGroup{Material: face.Material}
			groups[face.Material] = group
			m.Groups = append(m.Groups, group)
		}

		refs := face.Refs
		if len(refs) == 4 {
			// Source quads store corners as 0 1 3 2.
			refs = []hsf.VertexRef{refs[0], refs[1], refs[3], refs[2]}
		}
		group.VCounts = append(group.VCounts, len(refs))
		for _, ref := range refs {
			idx, ok := shared[ref]
			if !ok {
				idx = len(m.Positions)
				shared[ref] = idx
				m.appendVertex(src, ref)
			}
			group.Indices = append(group.Indices, idx)
		}
	}
	return m
}

func (m *NormalizedMesh) appendVertex(src *hsf.Mesh, ref hsf.VertexRef) {
	m.Positions = append(m.Positions, pick3(src.Positions, ref.Position))
	if src.HasNormals() {
		m.Normals = append(m.Normals, pick3(src.Normals, ref.Normal))
	}
	if src.HasColors() {
		var c [4]float32
		if int(ref.Color) >= 0 && int(ref.Color) < len(src.Colors) {
			raw := src.Colors[ref.Color]
			for i := range c {
				c[i] = float32(raw[i]) / 255
			}
		}
		m.Colors = append(m.Colors, c)
	}
	if src.HasUVs() {
		var uv geom.Vector2
		if int(ref.UV) >= 0 && int(ref.UV) < len(src.UVs) {
			uv = src.UVs[ref.UV]
		}
		uv.Y = 1 - uv.Y
		m.UVs = append(m.UVs, uv)
	}
}

func pick3(vs []geom.Vector3, idx int16) geom.Vector3 {
	if int(idx) >= 0 && int(idx) < len(vs) {
		return vs[idx]
	}
	return geom.Vector3{}
}
