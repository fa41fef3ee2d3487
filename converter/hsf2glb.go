package converter

import (
	"bytes"
	"image/png"
	"math"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/hsfkit/hsfconv/geom"
	"github.com/hsfkit/hsfconv/hsf"
)

// HSFToGLTFOption configures the glTF exporter.
type HSFToGLTFOption struct {
	// ForceUnlit marks every material with KHR_materials_unlit.
	ForceUnlit bool
}

type hsfToGltf struct {
	*gltf.Document
	options *HSFToGLTFOption

	src         *hsf.File
	table       *instanceTable
	meshIndex   map[int]uint32
	materialMap map[int]uint32
}

func NewHSFToGLTFConverter(options *HSFToGLTFOption) *hsfToGltf {
	if options == nil {
		options = &HSFToGLTFOption{}
	}
	return &hsfToGltf{
		Document: gltf.NewDocument(),
		options:  options,
	}
}

// Convert builds a glTF document from a parsed scene. Quads are
// fan-triangulated since glTF has no polygon primitive.
func (m *hsfToGltf) Convert(src *hsf.File) (*gltf.Document, error) {
	m.src = src
	m.table = buildInstanceTable(src)
	m.meshIndex = map[int]uint32{}
	m.materialMap = map[int]uint32{}

	if err := m.convertMaterials(); err != nil {
		return nil, err
	}
	for _, id := range m.table.MeshIDs {
		m.meshIndex[id] = m.addMesh(m.table.Users[id][0].Mesh)
	}
	for _, root := range src.Roots {
		if !root.Type.HasHierarchy() {
			continue
		}
		m.Scenes[0].Nodes = append(m.Scenes[0].Nodes, m.addNode(root))
	}
	if len(m.Document.Textures) > 0 {
		m.Document.Samplers = []*gltf.Sampler{{}}
	}
	if m.options.ForceUnlit {
		m.ExtensionsUsed = append(m.ExtensionsUsed, "KHR_materials_unlit")
	}
	return m.Document, nil
}

func (m *hsfToGltf) addTexture(index int) (uint32, error) {
	texture := m.src.Textures[index]
	var buf bytes.Buffer
	if err := png.Encode(&buf, texture.Image); err != nil {
		return 0, err
	}
	img, err := modeler.WriteImage(m.Document, texture.Name+".png", "image/png", &buf)
	if err != nil {
		return 0, err
	}
	m.Buffers[0].ByteLength = uint32(len(m.Buffers[0].Data)) // avoid AddImage bug
	m.Document.Textures = append(m.Document.Textures,
		&gltf.Texture{Sampler: gltf.Index(0), Source: gltf.Index(img)})
	return uint32(len(m.Document.Textures)) - 1, nil
}

func (m *hsfToGltf) convertMaterials() error {
	for _, index := range m.table.usedMaterials() {
		mat := m.src.Materials[index]
		mm := &gltf.Material{
			Name: mat.Name,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &[4]float32{
					float32(mat.MaterialColor[0]) / 255,
					float32(mat.MaterialColor[1]) / 255,
					float32(mat.MaterialColor[2]) / 255,
					1,
				},
			},
		}
		attr := materialAttr(m.src, index)
		if attr != nil && attr.TextureIndex >= 0 && int(attr.TextureIndex) < len(m.src.Textures) &&
			m.src.Textures[attr.TextureIndex].Image != nil {
			tex, err := m.addTexture(int(attr.TextureIndex))
			if err != nil {
				return err
			}
			mm.PBRMetallicRoughness.BaseColorFactor = &[4]float32{1, 1, 1, 1}
			mm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: tex}
			if attr.AlphaFlag {
				mm.AlphaMode = gltf.AlphaBlend
			}
		}
		if m.options.ForceUnlit {
			mm.Extensions = map[string]interface{}{"KHR_materials_unlit": map[string]string{}}
		}
		m.materialMap[index] = uint32(len(m.Document.Materials))
		m.Document.Materials = append(m.Document.Materials, mm)
	}
	return nil
}

func (m *hsfToGltf) addMesh(src *hsf.Mesh) uint32 {
	nm := NormalizeMesh(src)

	positions := make([][3]float32, nm.VertexCount())
	for i, v := range nm.Positions {
		positions[i] = [3]float32{v.X, v.Y, v.Z}
	}
	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(m.Document, positions),
	}
	if nm.Normals != nil {
		normals := make([][3]float32, len(nm.Normals))
		for i, v := range nm.Normals {
			normals[i] = [3]float32{v.X, v.Y, v.Z}
		}
		attributes["NORMAL"] = modeler.WriteNormal(m.Document, normals)
	}
	if nm.UVs != nil {
		uvs := make([][2]float32, len(nm.UVs))
		for i, v := range nm.UVs {
			uvs[i] = [2]float32{v.X, v.Y}
		}
		attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(m.Document, uvs)
	}
	if nm.Colors != nil {
		colors := make([][4]uint8, len(nm.Colors))
		for i, v := range nm.Colors {
			for j := range v {
				colors[i][j] = uint8(v[j] * 255)
			}
		}
		attributes["COLOR_0"] = modeler.WriteColor(m.Document, colors)
	}

	var primitives []*gltf.Primitive
	for _, group := range nm.Groups {
		prim := &gltf.Primitive{
			Attributes: attributes,
			Indices:    gltf.Index(modeler.WriteIndices(m.Document, triangulate(group))),
		}
		if mat, ok := m.materialMap[group.Material]; ok {
			prim.Material = gltf.Index(mat)
		}
		primitives = append(primitives, prim)
	}

	index := uint32(len(m.Document.Meshes))
	m.Document.Meshes = append(m.Document.Meshes, &gltf.Mesh{
		Name:       src.Name,
		Primitives: primitives,
	})
	return index
}

// triangulate flattens a polygon group to triangle indices, splitting quads
// into fans.
func triangulate(group *PolyGroup) []uint32 {
	var out []uint32
	pos := 0
	for _, vc := range group.VCounts {
		poly := group.Indices[pos : pos+vc]
		pos += vc
		for i := 2; i < vc; i++ {
			out = append(out, uint32(poly[0]), uint32(poly[i-1]), uint32(poly[i]))
		}
	}
	return out
}

func (m *hsfToGltf) addNode(src *hsf.Node) uint32 {
	index := uint32(len(m.Nodes))
	node := &gltf.Node{Name: src.Name}
	trs := src.Base
	rad := geom.NewVector3(
		trs.Rotation.X*math.Pi/180,
		trs.Rotation.Y*math.Pi/180,
		trs.Rotation.Z*math.Pi/180,
	)
	geom.NewTRSMatrix4(&trs.Position, rad, &trs.Scale).ToArray(node.Matrix[:])
	if src.Type == hsf.NodeMesh && src.Mesh != nil {
		node.Mesh = gltf.Index(m.meshIndex[src.Mesh.ID])
	}
	m.Nodes = append(m.Nodes, node)

	children := src.Children
	if src.Type == hsf.NodeReplica && src.Replica != nil {
		children = src.Replica.Children
		if src.Replica.Type == hsf.NodeMesh && src.Replica.Mesh != nil {
			node.Mesh = gltf.Index(m.meshIndex[src.Replica.Mesh.ID])
		}
	}
	for _, child := range children {
		if !child.Type.HasHierarchy() {
			continue
		}
		node.Children = append(node.Children, m.addNode(child))
	}
	return index
}

func materialAttr(f *hsf.File, index int) *hsf.Attribute {
	if index < 0 || index >= len(f.Materials) {
		return nil
	}
	ai := f.Materials[index].AttributeIndex
	if ai < 0 || int(ai) >= len(f.Attributes) {
		return nil
	}
	return f.Attributes[ai]
}
