package hsf

import (
	"fmt"

	"github.com/hsfkit/hsfconv/geom"
)

// Primitive kinds found in primitive banks.
const (
	primTriangle = 2
	primQuad     = 3
	primStrip    = 4
)

// Fixed size of one primitive record. Triangle strips reuse the trailing
// bytes as (count, offset) into the shared strip vertex area that follows
// all primitive records.
const primRecordSize = 48

// nodeRecordSize is the fixed size of one node record.
const nodeRecordSize = 324

const (
	bankHeaderSize      = 12
	materialRecordSize  = 60
	attributeRecordSize = 132
)

type bankHeader struct {
	nameOfs int32
	count   int32
	dataOfs int32
}

type primitive struct {
	kind     uint16
	material int
	refs     [4]VertexRef
	strip    []VertexRef
}

type positionBank struct {
	name string
	data []geom.Vector3
}

type uvBank struct {
	name string
	data []geom.Vector2
}

type colorBank struct {
	name string
	data [][4]uint8
}

type primitiveBank struct {
	name string
	data []primitive
}

type parser struct {
	r *reader
	h *Header
	f *File

	stringBase int

	positions []positionBank
	normals   []positionBank
	colors    []colorBank
	uvs       []uvBank
	prims     []primitiveBank
	symbols   []int32
}

// Parse reads a complete HSF buffer into a File. The returned File owns all
// decoded data; nothing references the input buffer afterwards.
func Parse(data []byte) (*File, error) {
	r := newReader(data)
	h, err := parseHeader(r)
	if err != nil {
		return nil, err
	}
	p := &parser{r: r, h: h, f: &File{}}
	p.stringBase = int(h.Section(SectionStringTable).Offset)
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.f, nil
}

func (p *parser) warnf(format string, args ...interface{}) {
	p.f.Warnings = append(p.f.Warnings, fmt.Sprintf(format, args...))
}

func (p *parser) parse() error {
	if err := p.parseMaterials(); err != nil {
		return err
	}
	if err := p.parseAttributes(); err != nil {
		return err
	}
	if err := p.parseVectorBanks(SectionPosition, &p.positions); err != nil {
		return err
	}
	if err := p.parseVectorBanks(SectionNormal, &p.normals); err != nil {
		return err
	}
	if err := p.parseColorBanks(); err != nil {
		return err
	}
	if err := p.parseUVBanks(); err != nil {
		return err
	}
	if err := p.parsePrimitiveBanks(); err != nil {
		return err
	}
	if err := p.parseSymbols(); err != nil {
		return err
	}
	if err := p.parseNodes(); err != nil {
		return err
	}
	if err := p.linkNodes(); err != nil {
		return err
	}
	if err := p.parseTextures(); err != nil {
		return err
	}
	p.resolveTextureRefs()
	return nil
}

// name resolves a string table offset; -1 means unnamed.
func (p *parser) name(ofs int32) string {
	if ofs < 0 {
		return ""
	}
	return p.r.stringAt(p.stringBase + int(ofs))
}

// readBankHeaders positions the reader at a section and reads its bank
// directory. It returns the headers and the base offset the per-bank data
// offsets are relative to (the first byte after the directory).
func (p *parser) readBankHeaders(kind SectionKind) ([]bankHeader, int) {
	sec := p.h.Section(kind)
	p.r.enter(kind.String())
	p.r.seek(int(sec.Offset))
	headers := make([]bankHeader, p.r.recordCount(int(sec.Count), bankHeaderSize))
	for i := range headers {
		headers[i].nameOfs = p.r.readS32()
		headers[i].count = p.r.readS32()
		headers[i].dataOfs = p.r.readS32()
	}
	return headers, p.r.tell()
}

func (p *parser) parseVectorBanks(kind SectionKind, out *[]positionBank) error {
	headers, base := p.readBankHeaders(kind)
	for _, h := range headers {
		bank := positionBank{name: p.name(h.nameOfs)}
		p.r.seek(base + int(h.dataOfs))
		bank.data = make([]geom.Vector3, p.r.recordCount(int(h.count), 12))
		for i := range bank.data {
			bank.data[i] = geom.Vector3{X: p.r.readF32(), Y: p.r.readF32(), Z: p.r.readF32()}
		}
		*out = append(*out, bank)
	}
	return p.r.Err()
}

func (p *parser) parseColorBanks() error {
	headers, base := p.readBankHeaders(SectionColor)
	for _, h := range headers {
		bank := colorBank{name: p.name(h.nameOfs)}
		p.r.seek(base + int(h.dataOfs))
		bank.data = make([][4]uint8, p.r.recordCount(int(h.count), 4))
		for i := range bank.data {
			bank.data[i] = [4]uint8{p.r.readU8(), p.r.readU8(), p.r.readU8(), p.r.readU8()}
		}
		p.colors = append(p.colors, bank)
	}
	return p.r.Err()
}

func (p *parser) parseUVBanks() error {
	headers, base := p.readBankHeaders(SectionUV)
	for _, h := range headers {
		bank := uvBank{name: p.name(h.nameOfs)}
		p.r.seek(base + int(h.dataOfs))
		bank.data = make([]geom.Vector2, p.r.recordCount(int(h.count), 8))
		for i := range bank.data {
			bank.data[i] = geom.Vector2{X: p.r.readF32(), Y: p.r.readF32()}
		}
		p.uvs = append(p.uvs, bank)
	}
	return p.r.Err()
}

func (p *parser) readVertexRef() VertexRef {
	return VertexRef{
		Position: p.r.readS16(),
		Normal:   p.r.readS16(),
		Color:    p.r.readS16(),
		UV:       p.r.readS16(),
	}
}

func (p *parser) parsePrimitiveBanks() error {
	headers, base := p.readBankHeaders(SectionPrimitive)

	// Strip vertex lists live after the fixed-size records of all banks.
	stripBase := base
	for _, h := range headers {
		stripBase += primRecordSize * int(h.count)
	}

	for _, h := range headers {
		bank := primitiveBank{name: p.name(h.nameOfs)}
		p.r.seek(base + int(h.dataOfs))
		bank.data = make([]primitive, p.r.recordCount(int(h.count), primRecordSize))
		for i := range bank.data {
			prim := &bank.data[i]
			prim.kind = p.r.readU16()
			flags := p.r.readU16()
			prim.material = int(flags & 0xFFF)
			for v := 0; v < 4; v++ {
				prim.refs[v] = p.readVertexRef()
			}
			switch prim.kind {
			case primTriangle, primQuad:
				p.r.skip(12) // nbt vector
			case primStrip:
				count := int(p.r.readU32())
				ofs := int(p.r.readU32())
				p.r.skip(4)
				pos := p.r.tell()
				p.r.seek(stripBase + ofs*8)
				prim.strip = make([]VertexRef, p.r.recordCount(count, 8))
				for v := range prim.strip {
					prim.strip[v] = p.readVertexRef()
				}
				p.r.seek(pos)
			default:
				p.warnf("primitive bank %q: unknown primitive kind %d, skipped", bank.name, prim.kind)
				p.r.skip(12)
			}
		}
		p.prims = append(p.prims, bank)
	}
	return p.r.Err()
}

func (p *parser) parseMaterials() error {
	sec := p.h.Section(SectionMaterial)
	p.r.enter(SectionMaterial.String())
	p.r.seek(int(sec.Offset))
	count := p.r.recordCount(int(sec.Count), materialRecordSize)
	for i := 0; i < count; i++ {
		m := &Material{}
		m.Name = p.name(p.r.readS32())
		p.r.skip(4)
		p.r.skip(2) // alt flags
		m.VertexMode = p.r.readU8()
		for c := 0; c < 3; c++ {
			m.AmbientColor[c] = p.r.readU8()
		}
		for c := 0; c < 3; c++ {
			m.MaterialColor[c] = p.r.readU8()
		}
		for c := 0; c < 3; c++ {
			m.ShadowColor[c] = p.r.readU8()
		}
		m.HiliteScale = p.r.readF32()
		p.r.skip(4)
		m.TransparencyInverted = p.r.readF32()
		p.r.skip(8)
		m.ReflectionIntensity = p.r.readF32()
		p.r.skip(4)
		m.Flags = p.r.readU32()
		m.TextureCount = p.r.readS32()
		m.AttributeIndex = p.r.readS32()
		p.f.Materials = append(p.f.Materials, m)
	}
	return p.r.Err()
}

func (p *parser) parseAttributes() error {
	sec := p.h.Section(SectionAttribute)
	p.r.enter(SectionAttribute.String())
	p.r.seek(int(sec.Offset))
	count := p.r.recordCount(int(sec.Count), attributeRecordSize)
	for i := 0; i < count; i++ {
		a := &Attribute{}
		a.Name = p.name(p.r.readS32())
		p.r.skip(4) // texture animation pointer slot
		p.r.skip(2)
		a.BlendFlag = p.r.readU8()
		a.AlphaFlag = p.r.readU8() != 0
		p.r.skip(4) // blend texture alpha
		p.r.skip(4)
		a.NBTEnable = p.r.readF32() != 0
		p.r.skip(8)
		p.r.skip(4) // texture enable
		p.r.skip(4)
		p.r.skip(32) // texture animation start/end transforms
		p.r.skip(4)
		p.r.skip(12) // rotation
		p.r.skip(12)
		a.WrapS = WrapMode(p.r.readS32())
		a.WrapT = WrapMode(p.r.readS32())
		p.r.skip(12)
		a.MipmapMaxLOD = p.r.readS32()
		p.r.skip(4) // texture flags
		a.TextureIndex = p.r.readS32()
		p.f.Attributes = append(p.f.Attributes, a)
	}
	return p.r.Err()
}

func (p *parser) parseSymbols() error {
	sec := p.h.Section(SectionSymbol)
	p.r.enter(SectionSymbol.String())
	p.r.seek(int(sec.Offset))
	p.symbols = make([]int32, p.r.recordCount(int(sec.Count), 4))
	for i := range p.symbols {
		p.symbols[i] = p.r.readS32()
	}
	return p.r.Err()
}

func (p *parser) parseNodes() error {
	sec := p.h.Section(SectionNode)
	if !sec.Present() {
		return fmt.Errorf("%w: node section", ErrMissingChunk)
	}
	p.r.enter(SectionNode.String())
	p.r.seek(int(sec.Offset))
	count := p.r.recordCount(int(sec.Count), nodeRecordSize)
	for i := 0; i < count; i++ {
		n := &Node{Index: i}
		n.Name = p.name(p.r.readS32())
		n.Type = NodeType(p.r.readS32())
		p.r.skip(4) // constant data offset
		n.RenderFlags = p.r.readU32()
		n.ParentIndex = p.r.readS32()
		n.ChildCount = p.r.readS32()
		n.SymbolIndex = p.r.readS32()
		n.Base = p.readTransform()
		n.Current = p.readTransform()
		n.CullBoxMin = geom.Vector3{X: p.r.readF32(), Y: p.r.readF32(), Z: p.r.readF32()}
		n.CullBoxMax = geom.Vector3{X: p.r.readF32(), Y: p.r.readF32(), Z: p.r.readF32()}
		p.r.skip(4)        // base morph
		p.r.skip(0x20 * 4) // morph weights
		p.r.skip(4)
		n.PrimitiveIndex = p.r.readS32()
		n.PositionIndex = p.r.readS32()
		n.NormalIndex = p.r.readS32()
		n.ColorIndex = p.r.readS32()
		n.UVIndex = p.r.readS32()
		p.r.skip(4) // runtime material pointer slot
		n.AttributeIndex = p.r.readS32()
		p.r.skip(4) // shape type bytes
		p.r.skip(4 * 8)
		p.f.Nodes = append(p.f.Nodes, n)
	}
	return p.r.Err()
}

func (p *parser) readTransform() Transform {
	return Transform{
		Position: geom.Vector3{X: p.r.readF32(), Y: p.r.readF32(), Z: p.r.readF32()},
		Rotation: geom.Vector3{X: p.r.readF32(), Y: p.r.readF32(), Z: p.r.readF32()},
		Scale:    geom.Vector3{X: p.r.readF32(), Y: p.r.readF32(), Z: p.r.readF32()},
	}
}

// linkNodes resolves parent indices into tree links, detects cycles, and
// attaches shared meshes to mesh nodes.
func (p *parser) linkNodes() error {
	nodeBase := int(p.h.Section(SectionNode).Offset)
	p.f.Meshes = make([]*Mesh, len(p.prims))

	for _, n := range p.f.Nodes {
		if !n.Type.HasHierarchy() {
			// Cameras and lights are standalone; their records were
			// parsed past and are not exported.
			continue
		}
		if n.ParentIndex < 0 {
			p.f.Roots = append(p.f.Roots, n)
			continue
		}
		if int(n.ParentIndex) >= len(p.f.Nodes) {
			return fmt.Errorf("%w: node %q (index %d) parent index %d of %d (node section offset 0x%X)",
				ErrDanglingParent, n.Name, n.Index, n.ParentIndex, len(p.f.Nodes), nodeBase)
		}
		n.Parent = p.f.Nodes[n.ParentIndex]
		n.Parent.Children = append(n.Parent.Children, n)
	}

	// Parent indices are plain integers, so a loop has to be ruled out
	// explicitly: any chain longer than the node count repeats a node.
	for _, n := range p.f.Nodes {
		steps := 0
		for a := n.Parent; a != nil; a = a.Parent {
			steps++
			if steps > len(p.f.Nodes) {
				return fmt.Errorf("%w: node %q (index %d) is part of a parent cycle (node section offset 0x%X)",
					ErrDanglingParent, n.Name, n.Index, nodeBase)
			}
		}
	}

	for _, n := range p.f.Nodes {
		switch n.Type {
		case NodeMesh:
			mesh, err := p.assembleMesh(n)
			if err != nil {
				return err
			}
			n.Mesh = mesh
			if n.AttributeIndex >= 0 && int(n.AttributeIndex) < len(p.f.Attributes) {
				n.Attribute = p.f.Attributes[n.AttributeIndex]
			}
		case NodeReplica:
			p.resolveReplica(n)
		case NodeNull, NodeRoot, NodeJoint, NodeMap:
			// hierarchy-only nodes, nothing to resolve
		case NodeEffect, NodeCamera, NodeLight:
			// parsed past, never exported
		default:
			p.warnf("node %q (index %d): unknown node type %d, treated as grouping node", n.Name, n.Index, int(n.Type))
		}
	}
	return nil
}

// resolveReplica resolves the node a replica re-instances. The target node
// index sits in the replica's symbol slot. A broken target degrades to a
// plain grouping node; geometry of other nodes is unaffected.
func (p *parser) resolveReplica(n *Node) {
	if n.SymbolIndex < 0 || int(n.SymbolIndex) >= len(p.symbols) {
		p.warnf("replica node %q (index %d): symbol index %d out of range, replica ignored", n.Name, n.Index, n.SymbolIndex)
		return
	}
	target := p.symbols[n.SymbolIndex]
	if target < 0 || int(target) >= len(p.f.Nodes) || int(target) == n.Index {
		p.warnf("replica node %q (index %d): replicated node %d out of range, replica ignored", n.Name, n.Index, target)
		return
	}
	n.Replica = p.f.Nodes[target]
}

// assembleMesh builds (or reuses) the Mesh for a mesh node. The mesh id is
// the primitive bank index, so two nodes naming the same bank share one Mesh.
func (p *parser) assembleMesh(n *Node) (*Mesh, error) {
	if len(p.prims) == 0 && !p.h.Section(SectionPrimitive).Present() {
		return nil, fmt.Errorf("%w: primitive section (required by mesh node %q)", ErrMissingChunk, n.Name)
	}
	if n.PrimitiveIndex < 0 || int(n.PrimitiveIndex) >= len(p.prims) {
		return nil, fmt.Errorf("%w: node %q (index %d): primitive bank %d of %d",
			ErrDanglingGeometry, n.Name, n.Index, n.PrimitiveIndex, len(p.prims))
	}
	if m := p.f.Meshes[n.PrimitiveIndex]; m != nil {
		return m, nil
	}

	bank := p.prims[n.PrimitiveIndex]
	m := &Mesh{ID: int(n.PrimitiveIndex), Name: bank.name}

	if n.PositionIndex < 0 || int(n.PositionIndex) >= len(p.positions) {
		return nil, fmt.Errorf("%w: node %q (index %d): position bank %d of %d",
			ErrDanglingGeometry, n.Name, n.Index, n.PositionIndex, len(p.positions))
	}
	m.Positions = p.positions[n.PositionIndex].data

	var err error
	if m.Normals, err = selectVectorBank(p.normals, n.NormalIndex, n, "normal"); err != nil {
		return nil, err
	}
	if n.ColorIndex >= 0 {
		if int(n.ColorIndex) >= len(p.colors) {
			return nil, fmt.Errorf("%w: node %q (index %d): color bank %d of %d",
				ErrDanglingGeometry, n.Name, n.Index, n.ColorIndex, len(p.colors))
		}
		m.Colors = p.colors[n.ColorIndex].data
	}
	if n.UVIndex >= 0 {
		if int(n.UVIndex) >= len(p.uvs) {
			return nil, fmt.Errorf("%w: node %q (index %d): uv bank %d of %d",
				ErrDanglingGeometry, n.Name, n.Index, n.UVIndex, len(p.uvs))
		}
		m.UVs = p.uvs[n.UVIndex].data
	}

	for i := range bank.data {
		prim := &bank.data[i]
		switch prim.kind {
		case primTriangle:
			m.Faces = append(m.Faces, Face{Material: p.faceMaterial(m, prim), Refs: prim.refs[:3:3]})
		case primQuad:
			m.Faces = append(m.Faces, Face{Material: p.faceMaterial(m, prim), Refs: prim.refs[:4:4]})
		case primStrip:
			mat := p.faceMaterial(m, prim)
			for _, tri := range expandStrip(prim) {
				m.Faces = append(m.Faces, Face{Material: mat, Refs: tri})
			}
		}
	}

	if err := p.checkFaceBounds(m); err != nil {
		return nil, err
	}
	p.f.Meshes[m.ID] = m
	return m, nil
}

func selectVectorBank(banks []positionBank, index int32, n *Node, what string) ([]geom.Vector3, error) {
	if index < 0 {
		return nil, nil
	}
	if int(index) >= len(banks) {
		return nil, fmt.Errorf("%w: node %q (index %d): %s bank %d of %d",
			ErrDanglingGeometry, n.Name, n.Index, what, index, len(banks))
	}
	return banks[index].data, nil
}

func (p *parser) faceMaterial(m *Mesh, prim *primitive) int {
	if prim.material >= len(p.f.Materials) {
		p.warnf("mesh %q: primitive material %d of %d, face degrades to unshaded", m.Name, prim.material, len(p.f.Materials))
		return -1
	}
	return prim.material
}

// expandStrip converts a triangle strip into triangles. The strip sequence is
// the four inline refs with the fourth replaced by the second, followed by
// the shared strip vertex list. Position 1 restates vertex 1 and would yield
// a degenerate triangle, so it is skipped; every other triangle swaps its
// leading refs to keep the winding consistent.
func expandStrip(prim *primitive) [][]VertexRef {
	verts := make([]VertexRef, 0, 4+len(prim.strip))
	verts = append(verts, prim.refs[0], prim.refs[1], prim.refs[2], prim.refs[1])
	verts = append(verts, prim.strip...)

	var tris [][]VertexRef
	for i := 0; i+2 < len(verts); i++ {
		if i == 1 {
			continue
		}
		if i%2 == 0 {
			tris = append(tris, []VertexRef{verts[i], verts[i+1], verts[i+2]})
		} else {
			tris = append(tris, []VertexRef{verts[i+1], verts[i], verts[i+2]})
		}
	}
	return tris
}

// checkFaceBounds enforces the core mesh invariant: every index a face
// references must be inside its attribute array. Indices into absent streams
// are dropped with a warning; the original data carries them even when a
// mesh has no such stream.
func (p *parser) checkFaceBounds(m *Mesh) error {
	fail := func(what string, idx int16, max int) error {
		return fmt.Errorf("%w: mesh %q (id %d): %s index %d of %d",
			ErrDanglingGeometry, m.Name, m.ID, what, idx, max)
	}
	warnedNormals, warnedColors, warnedUVs := false, false, false
	for fi := range m.Faces {
		refs := m.Faces[fi].Refs
		for vi := range refs {
			ref := &refs[vi]
			if ref.Position < 0 || int(ref.Position) >= len(m.Positions) {
				return fail("position", ref.Position, len(m.Positions))
			}
			if ref.Normal >= 0 {
				if !m.HasNormals() {
					if !warnedNormals {
						p.warnf("mesh %q: faces carry normal indices but the mesh has no normal stream, ignored", m.Name)
						warnedNormals = true
					}
					ref.Normal = -1
				} else if int(ref.Normal) >= len(m.Normals) {
					return fail("normal", ref.Normal, len(m.Normals))
				}
			}
			if ref.Color >= 0 {
				if !m.HasColors() {
					if !warnedColors {
						p.warnf("mesh %q: faces carry color indices but the mesh has no color stream, ignored", m.Name)
						warnedColors = true
					}
					ref.Color = -1
				} else if int(ref.Color) >= len(m.Colors) {
					return fail("color", ref.Color, len(m.Colors))
				}
			}
			if ref.UV >= 0 {
				if !m.HasUVs() {
					if !warnedUVs {
						p.warnf("mesh %q: faces carry uv indices but the mesh has no uv stream, ignored", m.Name)
						warnedUVs = true
					}
					ref.UV = -1
				} else if int(ref.UV) >= len(m.UVs) {
					return fail("uv", ref.UV, len(m.UVs))
				}
			}
		}
	}
	return nil
}

// resolveTextureRefs checks every attribute's texture index against the
// decoded texture set. Broken references are recoverable: the attribute
// degrades to untextured and the affected material ids are reported.
func (p *parser) resolveTextureRefs() {
	for i, m := range p.f.Materials {
		if m.AttributeIndex < 0 {
			continue
		}
		if int(m.AttributeIndex) >= len(p.f.Attributes) {
			p.warnf("%v: material %d (%q): attribute %d of %d, degraded to untextured",
				ErrDanglingTexture, i, m.Name, m.AttributeIndex, len(p.f.Attributes))
			m.AttributeIndex = -1
			continue
		}
		a := p.f.Attributes[m.AttributeIndex]
		if a.TextureIndex >= 0 && int(a.TextureIndex) >= len(p.f.Textures) {
			p.warnf("%v: material %d (%q): texture %d of %d, degraded to untextured",
				ErrDanglingTexture, i, m.Name, a.TextureIndex, len(p.f.Textures))
			a.TextureIndex = -1
		}
	}
}
