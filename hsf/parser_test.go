package hsf

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

// fileBuilder assembles a synthetic HSF buffer: a header placeholder, then
// sections in call order, then the string table, with the directory patched
// in at the end.
type fileBuilder struct {
	data     []byte
	sections [sectionCount]Section
	strings  []byte
	strOfs   map[string]int32
}

func newFileBuilder() *fileBuilder {
	return &fileBuilder{
		data:   make([]byte, 8+8*int(sectionCount)),
		strOfs: map[string]int32{},
	}
}

func (b *fileBuilder) str(s string) int32 {
	if ofs, ok := b.strOfs[s]; ok {
		return ofs
	}
	ofs := int32(len(b.strings))
	b.strings = append(b.strings, s...)
	b.strings = append(b.strings, 0)
	b.strOfs[s] = ofs
	return ofs
}

func (b *fileBuilder) begin(kind SectionKind, count int) {
	b.sections[kind] = Section{Offset: uint32(len(b.data)), Count: uint32(count)}
}

func (b *fileBuilder) u8(v uint8)    { b.data = append(b.data, v) }
func (b *fileBuilder) u16(v uint16)  { b.data = binary.BigEndian.AppendUint16(b.data, v) }
func (b *fileBuilder) u32(v uint32)  { b.data = binary.BigEndian.AppendUint32(b.data, v) }
func (b *fileBuilder) s16(v int16)   { b.u16(uint16(v)) }
func (b *fileBuilder) s32(v int32)   { b.u32(uint32(v)) }
func (b *fileBuilder) f32(v float32) { b.u32(math.Float32bits(v)) }
func (b *fileBuilder) zero(n int)    { b.data = append(b.data, make([]byte, n)...) }

func (b *fileBuilder) finish() []byte {
	b.begin(SectionStringTable, len(b.strings))
	b.data = append(b.data, b.strings...)
	copy(b.data, magic)
	for kind := SectionKind(0); kind < sectionCount; kind++ {
		binary.BigEndian.PutUint32(b.data[8+int(kind)*8:], b.sections[kind].Offset)
		binary.BigEndian.PutUint32(b.data[8+int(kind)*8+4:], b.sections[kind].Count)
	}
	return b.data
}

func (b *fileBuilder) positionBank(name string, verts ...[3]float32) {
	b.begin(SectionPosition, 1)
	b.s32(b.str(name))
	b.s32(int32(len(verts)))
	b.s32(0)
	for _, v := range verts {
		b.f32(v[0])
		b.f32(v[1])
		b.f32(v[2])
	}
}

func ref(pos, nrm, col, uv int16) [4]int16 {
	return [4]int16{pos, nrm, col, uv}
}

func (b *fileBuilder) writeRefs(refs [][4]int16) {
	for i := 0; i < 4; i++ {
		var r [4]int16
		if i < len(refs) {
			r = refs[i]
		} else {
			r = [4]int16{0, -1, -1, -1}
		}
		for _, v := range r {
			b.s16(v)
		}
	}
}

func (b *fileBuilder) triangle(material uint16, refs ...[4]int16) {
	b.u16(primTriangle)
	b.u16(material)
	b.writeRefs(refs)
	b.zero(12)
}

func (b *fileBuilder) quad(material uint16, refs ...[4]int16) {
	b.u16(primQuad)
	b.u16(material)
	b.writeRefs(refs)
	b.zero(12)
}

func (b *fileBuilder) strip(material uint16, extCount, extOfs uint32, refs ...[4]int16) {
	b.u16(primStrip)
	b.u16(material)
	b.writeRefs(refs)
	b.u32(extCount)
	b.u32(extOfs)
	b.zero(4)
}

func (b *fileBuilder) node(name string, typ NodeType, parent, symbol, prim, pos, nrm, col, uv int32) {
	b.s32(b.str(name))
	b.s32(int32(typ))
	b.u32(0) // constant data
	b.u32(0) // render flags
	b.s32(parent)
	b.s32(0) // child count
	b.s32(symbol)
	for i := 0; i < 2; i++ { // base and current transform
		b.f32(0)
		b.f32(0)
		b.f32(0)
		b.f32(0)
		b.f32(0)
		b.f32(0)
		b.f32(1)
		b.f32(1)
		b.f32(1)
	}
	b.zero(6 * 4)  // cull box
	b.zero(4)      // base morph
	b.zero(32 * 4) // morph weights
	b.zero(4)
	b.s32(prim)
	b.s32(pos)
	b.s32(nrm)
	b.s32(col)
	b.s32(uv)
	b.zero(4)
	b.s32(-1) // attribute
	b.zero(4)
	b.zero(32)
}

func (b *fileBuilder) material(name string, attrIndex int32) {
	b.s32(b.str(name))
	b.zero(4)
	b.zero(2)
	b.u8(0)             // vertex mode
	b.zero(3)           // ambient
	b.u8(0xFF)          // material color
	b.u8(0x80)
	b.u8(0x40)
	b.zero(3)           // shadow
	b.f32(1)            // hilite scale
	b.zero(4)
	b.f32(0)            // inverted transparency
	b.zero(8)
	b.f32(0)            // reflection
	b.zero(4)
	b.u32(0)            // flags
	b.s32(1)            // texture count
	b.s32(attrIndex)
}

func (b *fileBuilder) attribute(name string, wrapS, wrapT WrapMode, texIndex int32) {
	b.s32(b.str(name))
	b.zero(4)
	b.zero(2)
	b.u8(0)      // blend flag
	b.u8(0)      // alpha flag
	b.zero(4)
	b.zero(4)
	b.f32(0)     // nbt enable
	b.zero(8)
	b.zero(4)
	b.zero(4)
	b.zero(32)
	b.zero(4)
	b.zero(12)
	b.zero(12)
	b.s32(int32(wrapS))
	b.s32(int32(wrapT))
	b.zero(12)
	b.s32(0) // mipmap max lod
	b.zero(4)
	b.s32(texIndex)
}

// basicScene builds a root node with one mesh child holding one triangle.
func basicScene() *fileBuilder {
	b := newFileBuilder()
	b.begin(SectionMaterial, 1)
	b.material("mat", -1)
	b.positionBank("verts", [3]float32{0, 0, 0}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0})
	b.begin(SectionPrimitive, 1)
	b.s32(b.str("tri"))
	b.s32(1)
	b.s32(0)
	b.triangle(0, ref(0, -1, -1, -1), ref(1, -1, -1, -1), ref(2, -1, -1, -1))
	b.begin(SectionNode, 2)
	b.node("root", NodeRoot, -1, -1, -1, -1, -1, -1, -1)
	b.node("mesh", NodeMesh, 0, -1, 0, 0, -1, -1, -1)
	return b
}

func TestParse_BadMagic(t *testing.T) {
	data := basicScene().finish()
	data[0] = 'X'
	if _, err := Parse(data); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestParse_TruncatedDirectory(t *testing.T) {
	data := basicScene().finish()
	if _, err := Parse(data[:100]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestParse_MissingNodeSection(t *testing.T) {
	b := newFileBuilder()
	if _, err := Parse(b.finish()); !errors.Is(err, ErrMissingChunk) {
		t.Fatalf("expected ErrMissingChunk, got %v", err)
	}
}

func TestParse_BasicScene(t *testing.T) {
	f, err := Parse(basicScene().finish())
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Roots) != 1 || f.Roots[0].Name != "root" {
		t.Fatalf("roots: %+v", f.Roots)
	}
	if len(f.Roots[0].Children) != 1 {
		t.Fatalf("root children: %d", len(f.Roots[0].Children))
	}
	mesh := f.Roots[0].Children[0].Mesh
	if mesh == nil {
		t.Fatal("mesh node has no mesh")
	}
	if mesh.Name != "tri" || len(mesh.Positions) != 3 || len(mesh.Faces) != 1 {
		t.Fatalf("mesh: %+v", mesh)
	}
	face := mesh.Faces[0]
	if face.Material != 0 || len(face.Refs) != 3 {
		t.Fatalf("face: %+v", face)
	}
	if mesh.HasNormals() || mesh.HasColors() || mesh.HasUVs() {
		t.Error("unexpected optional attribute streams")
	}
	if len(f.Warnings) != 0 {
		t.Errorf("warnings: %v", f.Warnings)
	}
}

func TestParse_Deterministic(t *testing.T) {
	data := basicScene().finish()
	f1, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	f2, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(f1.Nodes) != len(f2.Nodes) || len(f1.Meshes) != len(f2.Meshes) {
		t.Error("re-parsing the same bytes changed the result shape")
	}
}

func TestParse_SharedMesh(t *testing.T) {
	b := newFileBuilder()
	b.positionBank("verts", [3]float32{0, 0, 0}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0})
	b.begin(SectionPrimitive, 1)
	b.s32(b.str("shared"))
	b.s32(1)
	b.s32(0)
	b.triangle(0xFFF, ref(0, -1, -1, -1), ref(1, -1, -1, -1), ref(2, -1, -1, -1))
	b.begin(SectionNode, 3)
	b.node("root", NodeRoot, -1, -1, -1, -1, -1, -1, -1)
	b.node("a", NodeMesh, 0, -1, 0, 0, -1, -1, -1)
	b.node("b", NodeMesh, 0, -1, 0, 0, -1, -1, -1)

	f, err := Parse(b.finish())
	if err != nil {
		t.Fatal(err)
	}
	a, bn := f.Nodes[1], f.Nodes[2]
	if a.Mesh == nil || a.Mesh != bn.Mesh {
		t.Fatal("nodes referencing one primitive bank must share one Mesh")
	}
	if got := len(f.MeshNodes()); got != 2 {
		t.Errorf("MeshNodes: %d", got)
	}
	// material 0xFFF does not exist: face degrades with a warning
	if a.Mesh.Faces[0].Material != -1 {
		t.Errorf("face material: %d", a.Mesh.Faces[0].Material)
	}
	if len(f.Warnings) != 1 {
		t.Errorf("warnings: %v", f.Warnings)
	}
}

func TestParse_StripExpansion(t *testing.T) {
	b := newFileBuilder()
	b.positionBank("verts",
		[3]float32{0, 0, 0}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0},
		[3]float32{1, 1, 0}, [3]float32{2, 0, 0}, [3]float32{2, 1, 0})
	b.begin(SectionPrimitive, 1)
	b.s32(b.str("strip"))
	b.s32(1)
	b.s32(0)
	b.strip(0, 2, 0, ref(0, -1, -1, -1), ref(1, -1, -1, -1), ref(2, -1, -1, -1))
	// strip vertex area follows the records
	for _, p := range []int16{4, 5} {
		b.s16(p)
		b.s16(-1)
		b.s16(-1)
		b.s16(-1)
	}
	b.begin(SectionNode, 1)
	b.node("mesh", NodeMesh, -1, -1, 0, 0, -1, -1, -1)

	f, err := Parse(b.finish())
	if err != nil {
		t.Fatal(err)
	}
	mesh := f.Nodes[0].Mesh
	// strip sequence 0 1 2 1 4 5: position 1 is degenerate, leaving 3
	if len(mesh.Faces) != 3 {
		t.Fatalf("faces: %d", len(mesh.Faces))
	}
	want := [][3]int16{{0, 1, 2}, {2, 1, 4}, {4, 1, 5}}
	for i, face := range mesh.Faces {
		for v := range face.Refs {
			if face.Refs[v].Position != want[i][v] {
				t.Errorf("face %d vertex %d: got %d, want %d", i, v, face.Refs[v].Position, want[i][v])
			}
		}
	}
}

func TestParse_NegativeBankCount(t *testing.T) {
	b := newFileBuilder()
	b.begin(SectionPosition, 1)
	b.s32(b.str("verts"))
	b.s32(-1) // bank record count
	b.s32(0)
	b.begin(SectionNode, 1)
	b.node("n", NodeNull, -1, -1, -1, -1, -1, -1, -1)
	if _, err := Parse(b.finish()); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestParse_OversizedSectionCount(t *testing.T) {
	data := basicScene().finish()
	// node count far past what the buffer can hold
	binary.BigEndian.PutUint32(data[8+int(SectionNode)*8+4:], 0xFFFFFF)
	if _, err := Parse(data); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestParse_OversizedStripCount(t *testing.T) {
	b := newFileBuilder()
	b.positionBank("verts", [3]float32{0, 0, 0}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0})
	b.begin(SectionPrimitive, 1)
	b.s32(b.str("strip"))
	b.s32(1)
	b.s32(0)
	b.strip(0, 0xFFFFFF, 0, ref(0, -1, -1, -1), ref(1, -1, -1, -1), ref(2, -1, -1, -1))
	b.begin(SectionNode, 1)
	b.node("mesh", NodeMesh, -1, -1, 0, 0, -1, -1, -1)
	if _, err := Parse(b.finish()); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestParse_DanglingParent(t *testing.T) {
	b := newFileBuilder()
	b.begin(SectionNode, 1)
	b.node("n", NodeNull, 7, -1, -1, -1, -1, -1, -1)
	if _, err := Parse(b.finish()); !errors.Is(err, ErrDanglingParent) {
		t.Fatalf("expected ErrDanglingParent, got %v", err)
	}
}

func TestParse_ParentCycle(t *testing.T) {
	b := newFileBuilder()
	b.begin(SectionNode, 2)
	b.node("a", NodeNull, 1, -1, -1, -1, -1, -1, -1)
	b.node("b", NodeNull, 0, -1, -1, -1, -1, -1, -1)
	_, err := Parse(b.finish())
	if !errors.Is(err, ErrDanglingParent) {
		t.Fatalf("expected ErrDanglingParent, got %v", err)
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error should name the cycle: %v", err)
	}
}

func TestParse_DanglingGeometry(t *testing.T) {
	b := newFileBuilder()
	b.positionBank("verts", [3]float32{0, 0, 0})
	b.begin(SectionPrimitive, 1)
	b.s32(b.str("p"))
	b.s32(0)
	b.s32(0)
	b.begin(SectionNode, 1)
	b.node("mesh", NodeMesh, -1, -1, 5, 0, -1, -1, -1)
	if _, err := Parse(b.finish()); !errors.Is(err, ErrDanglingGeometry) {
		t.Fatalf("expected ErrDanglingGeometry, got %v", err)
	}
}

func TestParse_FaceIndexOutOfBounds(t *testing.T) {
	b := newFileBuilder()
	b.positionBank("verts", [3]float32{0, 0, 0})
	b.begin(SectionPrimitive, 1)
	b.s32(b.str("p"))
	b.s32(1)
	b.s32(0)
	b.triangle(0, ref(0, -1, -1, -1), ref(1, -1, -1, -1), ref(2, -1, -1, -1))
	b.begin(SectionNode, 1)
	b.node("mesh", NodeMesh, -1, -1, 0, 0, -1, -1, -1)
	if _, err := Parse(b.finish()); !errors.Is(err, ErrDanglingGeometry) {
		t.Fatalf("expected ErrDanglingGeometry, got %v", err)
	}
}

func TestParse_DanglingTextureWarning(t *testing.T) {
	b := basicScene()
	b.begin(SectionAttribute, 1)
	b.attribute("attr", WrapRepeat, WrapRepeat, 3)
	// rebuild the material section to point at the attribute
	b.begin(SectionMaterial, 1)
	b.material("mat", 0)

	f, err := Parse(b.finish())
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Warnings) != 1 {
		t.Fatalf("warnings: %v", f.Warnings)
	}
	if !strings.Contains(f.Warnings[0], "dangling texture") {
		t.Errorf("warning should name the dangling texture: %v", f.Warnings[0])
	}
	if f.Attributes[0].TextureIndex != -1 {
		t.Error("attribute should degrade to untextured")
	}
}

func TestParse_Replica(t *testing.T) {
	b := newFileBuilder()
	b.positionBank("verts", [3]float32{0, 0, 0}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0})
	b.begin(SectionPrimitive, 1)
	b.s32(b.str("geo"))
	b.s32(1)
	b.s32(0)
	b.triangle(0, ref(0, -1, -1, -1), ref(1, -1, -1, -1), ref(2, -1, -1, -1))
	b.begin(SectionSymbol, 1)
	b.s32(1) // replicated node index
	b.begin(SectionNode, 3)
	b.node("root", NodeRoot, -1, -1, -1, -1, -1, -1, -1)
	b.node("target", NodeNull, 0, -1, -1, -1, -1, -1, -1)
	b.node("copy", NodeReplica, 0, 0, -1, -1, -1, -1, -1)

	f, err := Parse(b.finish())
	if err != nil {
		t.Fatal(err)
	}
	if f.Nodes[2].Replica != f.Nodes[1] {
		t.Fatalf("replica target not resolved: %+v", f.Nodes[2].Replica)
	}
}

func TestParse_ReplicaBadSymbol(t *testing.T) {
	b := newFileBuilder()
	b.begin(SectionNode, 1)
	b.node("copy", NodeReplica, -1, 9, -1, -1, -1, -1, -1)
	f, err := Parse(b.finish())
	if err != nil {
		t.Fatal(err)
	}
	if f.Nodes[0].Replica != nil {
		t.Error("broken replica should stay unresolved")
	}
	if len(f.Warnings) != 1 {
		t.Errorf("warnings: %v", f.Warnings)
	}
}
