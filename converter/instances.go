package converter

import (
	"sort"

	"github.com/hsfkit/hsfconv/hsf"
)

// instanceTable records which scene nodes share each mesh. The geometry
// library is emitted from the mesh id list up front; instancing nodes then
// reference those entries instead of re-emitting geometry.
type instanceTable struct {
	// MeshIDs lists the referenced mesh ids in ascending order.
	MeshIDs []int
	// Users maps a mesh id to the nodes instancing it, in node order.
	Users map[int][]*hsf.Node
	// Materials maps a mesh id to the material indices its faces use,
	// ascending. -1 entries (unassigned faces) are excluded.
	Materials map[int][]int
}

func buildInstanceTable(f *hsf.File) *instanceTable {
	t := &instanceTable{
		Users:     map[int][]*hsf.Node{},
		Materials: map[int][]int{},
	}
	for _, node := range f.Nodes {
		if node.Type != hsf.NodeMesh || node.Mesh == nil {
			continue
		}
		id := node.Mesh.ID
		if _, seen := t.Users[id]; !seen {
			t.MeshIDs = append(t.MeshIDs, id)
			t.Materials[id] = meshMaterials(node.Mesh)
		}
		t.Users[id] = append(t.Users[id], node)
	}
	sort.Ints(t.MeshIDs)
	return t
}

// usedMaterials returns the union of material indices across all referenced
// meshes, ascending.
func (t *instanceTable) usedMaterials() []int {
	seen := map[int]bool{}
	var mats []int
	for _, id := range t.MeshIDs {
		for _, mat := range t.Materials[id] {
			if !seen[mat] {
				seen[mat] = true
				mats = append(mats, mat)
			}
		}
	}
	sort.Ints(mats)
	return mats
}

func meshMaterials(m *hsf.Mesh) []int {
	seen := map[int]bool{}
	var mats []int
	for _, face := range m.Faces {
		if face.Material >= 0 && !seen[face.Material] {
			seen[face.Material] = true
			mats = append(mats, face.Material)
		}
	}
	sort.Ints(mats)
	return mats
}
