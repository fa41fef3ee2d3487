package converter

import (
	"fmt"
	"math"
	"path"
	"time"

	"github.com/hsfkit/hsfconv/dae"
	"github.com/hsfkit/hsfconv/geom"
	"github.com/hsfkit/hsfconv/hsf"
)

// HSFToDAEOption configures the COLLADA exporter.
type HSFToDAEOption struct {
	// Created stamps the asset metadata. Zero means time.Now; tests pass
	// a fixed time for reproducible output.
	Created time.Time
	// ImageDir is the directory prefix written into image references.
	// Default: "images".
	ImageDir string
	// AuthoringTool overrides the asset contributor string.
	AuthoringTool string
}

type hsfToDae struct {
	options *HSFToDAEOption
	src     *hsf.File
	table   *instanceTable
}

func NewHSFToDAEConverter(options *HSFToDAEOption) *hsfToDae {
	if options == nil {
		options = &HSFToDAEOption{}
	}
	if options.ImageDir == "" {
		options.ImageDir = "images"
	}
	if options.AuthoringTool == "" {
		options.AuthoringTool = "hsfconv"
	}
	return &hsfToDae{options: options}
}

// Convert builds a COLLADA document from a parsed scene. Geometry shared by
// several nodes is emitted once and instanced from each node.
func (c *hsfToDae) Convert(src *hsf.File) (*dae.Document, error) {
	c.src = src
	c.table = buildInstanceTable(src)

	doc := dae.NewDocument()
	created := c.options.Created
	if created.IsZero() {
		created = time.Now()
	}
	stamp := created.Format("2006-01-02T15:04:05")
	doc.Asset = dae.Asset{
		Contributor: dae.Contributor{AuthoringTool: c.options.AuthoringTool},
		Created:     stamp,
		Modified:    stamp,
		UpAxis:      "Y_UP",
	}

	usedMaterials := c.table.usedMaterials()
	if images := c.convertImages(usedMaterials); len(images) > 0 {
		doc.Images = &dae.LibraryImages{Images: images}
	}
	if len(usedMaterials) > 0 {
		doc.Effects = &dae.LibraryEffects{}
		doc.Materials = &dae.LibraryMaterials{}
	}
	for _, mat := range usedMaterials {
		doc.Effects.Effects = append(doc.Effects.Effects, c.convertEffect(mat))
		doc.Materials.Materials = append(doc.Materials.Materials, &dae.Material{
			ID:             materialID(mat),
			Name:           c.src.Materials[mat].Name,
			InstanceEffect: dae.InstanceEffect{URL: "#" + effectID(mat)},
		})
	}

	if len(c.table.MeshIDs) > 0 {
		doc.Geometries = &dae.LibraryGeometries{}
	}
	for _, id := range c.table.MeshIDs {
		doc.Geometries.Geometries = append(doc.Geometries.Geometries,
			c.convertGeometry(c.table.Users[id][0].Mesh))
	}

	scene := &dae.VisualScene{ID: "Scene", Name: "Scene"}
	for _, root := range src.Roots {
		if n := c.convertSceneNode(root, ""); n != nil {
			scene.Nodes = append(scene.Nodes, n)
		}
	}
	doc.VisualScenes = &dae.LibraryVisualScenes{VisualScenes: []*dae.VisualScene{scene}}
	doc.Scene = &dae.Scene{InstanceVisualScene: dae.InstanceVisualScene{URL: "#Scene"}}
	return doc, nil
}

func materialID(index int) string { return fmt.Sprintf("material_%03d", index) }

func effectID(index int) string { return fmt.Sprintf("Effect_material_%03d", index) }

func textureID(index int) string { return fmt.Sprintf("texture_%03d", index) }

func meshUID(m *hsf.Mesh) string { return fmt.Sprintf("%s__%d", dae.SafeID(m.Name), m.ID) }

func nodeUID(n *hsf.Node) string { return fmt.Sprintf("%s__%d", dae.SafeID(n.Name), n.Index) }

func geometryID(m *hsf.Mesh) string { return meshUID(m) + "-mesh" }

func (c *hsfToDae) materialTexture(index int) int {
	attr := materialAttr(c.src, index)
	if attr == nil || attr.TextureIndex < 0 || int(attr.TextureIndex) >= len(c.src.Textures) {
		return -1
	}
	return int(attr.TextureIndex)
}

func (c *hsfToDae) convertImages(usedMaterials []int) []*dae.Image {
	seen := map[int]bool{}
	var images []*dae.Image
	for _, mat := range usedMaterials {
		tex := c.materialTexture(mat)
		if tex < 0 || seen[tex] {
			continue
		}
		seen[tex] = true
		texture := c.src.Textures[tex]
		images = append(images, &dae.Image{
			ID:       textureID(tex),
			Name:     texture.Name,
			InitFrom: path.Join(c.options.ImageDir, texture.Name+".png"),
		})
	}
	return images
}

var colladaWrapModes = map[hsf.WrapMode]string{
	hsf.WrapRepeat: "WRAP",
	hsf.WrapMirror: "MIRROR",
	hsf.WrapClamp:  "CLAMP",
}

func (c *hsfToDae) convertEffect(index int) *dae.Effect {
	effect := &dae.Effect{ID: effectID(index)}
	effect.Profile.Technique.SID = "common"
	lambert := &effect.Profile.Technique.Lambert

	tex := c.materialTexture(index)
	if tex < 0 {
		mat := c.src.Materials[index]
		lambert.Diffuse.Color = &dae.ColorValue{
			SID: "diffuse",
			Value: dae.FormatFloats([]float32{
				float32(mat.MaterialColor[0]) / 255,
				float32(mat.MaterialColor[1]) / 255,
				float32(mat.MaterialColor[2]) / 255,
				1,
			}),
		}
	} else {
		attr := materialAttr(c.src, index)
		surfaceSID := fmt.Sprintf("surface_material_%03d", index)
		samplerSID := fmt.Sprintf("sampler_material_%03d", index)
		effect.Profile.NewParams = []*dae.NewParam{
			{
				SID: surfaceSID,
				Surface: &dae.Surface{
					Type:     "2D",
					InitFrom: textureID(tex),
					Format:   "A8R8G8B8",
				},
			},
			{
				SID: samplerSID,
				Sampler2D: &dae.Sampler2D{
					Source:         surfaceSID,
					WrapS:          colladaWrapModes[attr.WrapS],
					WrapT:          colladaWrapModes[attr.WrapT],
					MipmapMaxLevel: fmt.Sprint(attr.MipmapMaxLOD),
				},
			},
		}
		lambert.Diffuse.Texture = &dae.TextureRef{Texture: samplerSID}
		if attr.AlphaFlag {
			lambert.Transparent = &dae.ColorOrTexture{
				Texture: &dae.TextureRef{Texture: samplerSID},
			}
		}
	}
	lambert.IndexOfRefraction = &dae.FloatValue{SID: "ior", Value: "1.45"}
	return effect
}

func (c *hsfToDae) convertGeometry(src *hsf.Mesh) *dae.Geometry {
	uid := meshUID(src)
	nm := NormalizeMesh(src)

	mesh := dae.Mesh{}
	mesh.Sources = append(mesh.Sources, floatSource(uid+"-position",
		flatten3(nm.Positions), 3, "X", "Y", "Z"))
	if nm.Normals != nil {
		mesh.Sources = append(mesh.Sources, floatSource(uid+"-normals",
			flatten3(nm.Normals), 3, "X", "Y", "Z"))
	}
	if nm.UVs != nil {
		mesh.Sources = append(mesh.Sources, floatSource(uid+"-texcoord",
			flatten2(nm.UVs), 2, "S", "T"))
	}
	if nm.Colors != nil {
		mesh.Sources = append(mesh.Sources, floatSource(uid+"-colors",
			flatten4(nm.Colors), 4, "R", "G", "B", "A"))
	}
	mesh.Vertices = dae.Vertices{
		ID:     uid + "-vertex",
		Inputs: []dae.Input{{Semantic: "POSITION", Source: "#" + uid + "-position"}},
	}

	inputs := []dae.SharedInput{{Semantic: "VERTEX", Source: "#" + uid + "-vertex"}}
	if nm.Normals != nil {
		inputs = append(inputs, dae.SharedInput{Semantic: "NORMAL", Source: "#" + uid + "-normals"})
	}
	if nm.UVs != nil {
		inputs = append(inputs, dae.SharedInput{Semantic: "TEXCOORD", Source: "#" + uid + "-texcoord"})
	}
	if nm.Colors != nil {
		inputs = append(inputs, dae.SharedInput{Semantic: "COLOR", Source: "#" + uid + "-colors"})
	}

	for _, group := range nm.Groups {
		material := ""
		if group.Material >= 0 {
			material = materialID(group.Material)
		}
		if allTriangles(group.VCounts) {
			mesh.Triangles = append(mesh.Triangles, &dae.Polygons{
				Count:    len(group.VCounts),
				Material: material,
				Inputs:   inputs,
				P:        dae.FormatInts(group.Indices),
			})
		} else {
			mesh.Polylists = append(mesh.Polylists, &dae.Polylist{
				Count:    len(group.VCounts),
				Material: material,
				Inputs:   inputs,
				VCount:   dae.FormatInts(group.VCounts),
				P:        dae.FormatInts(group.Indices),
			})
		}
	}
	return &dae.Geometry{ID: geometryID(src), Name: uid, Mesh: mesh}
}

func allTriangles(vcounts []int) bool {
	for _, v := range vcounts {
		if v != 3 {
			return false
		}
	}
	return true
}

func floatSource(id string, values []float32, stride int, params ...string) *dae.Source {
	src := &dae.Source{
		ID: id,
		FloatArray: dae.FloatArray{
			ID:    id + "-array",
			Count: len(values),
			Value: dae.FormatFloats(values),
		},
	}
	acc := &src.Technique.Accessor
	acc.Source = "#" + id + "-array"
	acc.Count = len(values) / stride
	acc.Stride = stride
	for _, p := range params {
		acc.Params = append(acc.Params, &dae.Param{Name: p, Type: "float"})
	}
	return src
}

func flatten2(vs []geom.Vector2) []float32 {
	out := make([]float32, 0, len(vs)*2)
	for _, v := range vs {
		out = append(out, v.X, v.Y)
	}
	return out
}

func flatten3(vs []geom.Vector3) []float32 {
	out := make([]float32, 0, len(vs)*3)
	for _, v := range vs {
		out = append(out, v.X, v.Y, v.Z)
	}
	return out
}

func flatten4(vs [][4]float32) []float32 {
	out := make([]float32, 0, len(vs)*4)
	for _, v := range vs {
		out = append(out, v[0], v[1], v[2], v[3])
	}
	return out
}

// localMatrix renders the node's local transform as a row-major COLLADA
// matrix string.
func localMatrix(t hsf.Transform) string {
	rad := geom.NewVector3(
		t.Rotation.X*math.Pi/180,
		t.Rotation.Y*math.Pi/180,
		t.Rotation.Z*math.Pi/180,
	)
	m := geom.NewTRSMatrix4(&t.Position, rad, &t.Scale).Transposed()
	var a [16]float32
	m.ToArray(a[:])
	return dae.FormatFloats(a[:])
}

// convertSceneNode emits a node and its subtree. suffix uniquifies ids when
// a subtree is re-emitted under a replica node.
func (c *hsfToDae) convertSceneNode(node *hsf.Node, suffix string) *dae.Node {
	if !node.Type.HasHierarchy() {
		return nil
	}
	out := &dae.Node{
		ID:     nodeUID(node) + suffix,
		Name:   nodeUID(node) + suffix,
		Type:   "NODE",
		Matrix: &dae.Matrix{SID: "transform", Value: localMatrix(node.Base)},
	}
	if node.Type == hsf.NodeMesh && node.Mesh != nil {
		out.Instance = c.instanceGeometry(node.Mesh, out.Name)
	}
	children := node.Children
	if node.Type == hsf.NodeReplica && node.Replica != nil {
		// A replica re-instances the replicated subtree under its own
		// transform. The target's own transform is not applied, but its
		// geometry is: a replica aimed straight at a mesh node still
		// renders that mesh.
		children = node.Replica.Children
		suffix = fmt.Sprintf("%s__r%d", suffix, node.Index)
		if node.Replica.Type == hsf.NodeMesh && node.Replica.Mesh != nil {
			out.Instance = c.instanceGeometry(node.Replica.Mesh, out.Name)
		}
	}
	for _, child := range children {
		if n := c.convertSceneNode(child, suffix); n != nil {
			out.Children = append(out.Children, n)
		}
	}
	return out
}

func (c *hsfToDae) instanceGeometry(mesh *hsf.Mesh, name string) *dae.InstanceGeometry {
	inst := &dae.InstanceGeometry{URL: "#" + geometryID(mesh), Name: name}
	mats := c.table.Materials[mesh.ID]
	if len(mats) > 0 {
		bind := &dae.BindMaterial{}
		for _, mat := range mats {
			bind.Technique.Materials = append(bind.Technique.Materials, &dae.InstanceMaterial{
				Symbol: materialID(mat),
				Target: "#" + materialID(mat),
			})
		}
		inst.BindMaterial = bind
	}
	return inst
}
