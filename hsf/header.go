package hsf

import "fmt"

const magic = "HSFV037\x00"

// SectionKind enumerates the entries of the file directory, in file order.
// Motion, rig, skeleton, part, cluster, shape and map-attribute sections are
// indexed but never interpreted; exporting them is out of scope.
type SectionKind int

const (
	SectionFog SectionKind = iota
	SectionColor
	SectionMaterial
	SectionAttribute
	SectionPosition
	SectionNormal
	SectionUV
	SectionPrimitive
	SectionNode
	SectionTexture
	SectionPalette
	SectionMotion
	SectionRig
	SectionSkeleton
	SectionPart
	SectionCluster
	SectionShape
	SectionMapAttribute
	SectionMatrix
	SectionSymbol
	SectionStringTable

	sectionCount
)

var sectionNames = [sectionCount]string{
	"fog", "color", "material", "attribute", "position", "normal", "uv",
	"primitive", "node", "texture", "palette", "motion", "rig", "skeleton",
	"part", "cluster", "shape", "map attribute", "matrix", "symbol",
	"string table",
}

func (k SectionKind) String() string {
	if k < 0 || k >= sectionCount {
		return fmt.Sprintf("unknown(%d)", int(k))
	}
	return sectionNames[k]
}

// Section locates one directory entry. Offset is absolute within the file
// buffer; Count is the number of records, not bytes. A zero Offset means the
// section is absent.
type Section struct {
	Offset uint32
	Count  uint32
}

// Present reports whether the section exists in the file.
func (s Section) Present() bool {
	return s.Offset != 0
}

// Header is the parsed file directory.
type Header struct {
	sections [sectionCount]Section
}

// Section returns the directory entry for kind.
func (h *Header) Section(kind SectionKind) Section {
	if kind < 0 || kind >= sectionCount {
		return Section{}
	}
	return h.sections[kind]
}

// parseHeader validates the magic signature and reads the directory.
// The directory is a fixed-order table of (offset, count) pairs.
func parseHeader(r *reader) (*Header, error) {
	r.enter("header")
	if r.readString(len(magic)) != magic {
		if r.err != nil {
			return nil, r.err
		}
		return nil, fmt.Errorf("%w (offset 0x0)", ErrBadMagic)
	}
	h := &Header{}
	for kind := SectionKind(0); kind < sectionCount; kind++ {
		h.sections[kind].Offset = r.readU32()
		h.sections[kind].Count = r.readU32()
	}
	if r.err != nil {
		return nil, r.err
	}
	return h, nil
}
