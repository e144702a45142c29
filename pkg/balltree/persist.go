package balltree

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/JPLMLIA/pdsc-go/pkg/geo"
	"github.com/JPLMLIA/pdsc-go/pkg/pdscerr"
)

// FormatVersion is bumped whenever the on-disk layout changes incompatibly.
const FormatVersion uint32 = 1

// Save writes t to path in the binary layout from spec.md §6: a fixed
// header followed by node records in pre-order.
func (t *Tree) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("balltree: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := t.writeTo(w); err != nil {
		return err
	}
	return w.Flush()
}

func (t *Tree) writeTo(w io.Writer) error {
	header := []any{FormatVersion, t.N, t.RMaxRad, t.BodyRadiusM, t.LeafCapacity}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("balltree: write header: %w", err)
		}
	}
	return writeNode(w, t.Root)
}

func writeNode(w io.Writer, n *Node) error {
	fields := []any{n.Center.X, n.Center.Y, n.Center.Z, n.RadiusRad}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("balltree: write node: %w", err)
		}
	}

	isLeaf := uint8(0)
	if n.IsLeaf {
		isLeaf = 1
	}
	if err := binary.Write(w, binary.LittleEndian, isLeaf); err != nil {
		return fmt.Errorf("balltree: write is_leaf: %w", err)
	}

	if n.IsLeaf {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(n.SegmentIDs))); err != nil {
			return fmt.Errorf("balltree: write n_children: %w", err)
		}
		for _, id := range n.SegmentIDs {
			if err := binary.Write(w, binary.LittleEndian, id); err != nil {
				return fmt.Errorf("balltree: write segment_id: %w", err)
			}
		}
		return nil
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(2)); err != nil {
		return fmt.Errorf("balltree: write n_children: %w", err)
	}
	if err := writeNode(w, n.Left); err != nil {
		return err
	}
	return writeNode(w, n.Right)
}

// Load reads a tree previously written by Save. instrument and file are
// used only to annotate a pdscerr.IndexCorrupt if the file's header or
// structure don't match this format version. The tree is read fully into
// memory ("slurped", per spec.md §4.6) rather than memory-mapped: with no
// teacher or pack example wiring an mmap library for a structure this
// shape, the stdlib-only reader is the documented fallback (see
// DESIGN.md).
func Load(path, instrument string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("balltree: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	t, err := readFrom(r)
	if err != nil {
		return nil, &pdscerr.IndexCorrupt{Instrument: instrument, File: path, Reason: err.Error()}
	}
	return t, nil
}

func readFrom(r io.Reader) (*Tree, error) {
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d (expected %d)", version, FormatVersion)
	}

	t := &Tree{}
	if err := binary.Read(r, binary.LittleEndian, &t.N); err != nil {
		return nil, fmt.Errorf("read n: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &t.RMaxRad); err != nil {
		return nil, fmt.Errorf("read r_max_rad: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &t.BodyRadiusM); err != nil {
		return nil, fmt.Errorf("read body_radius_m: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &t.LeafCapacity); err != nil {
		return nil, fmt.Errorf("read leaf_capacity: %w", err)
	}

	root, err := readNode(r)
	if err != nil {
		return nil, err
	}
	t.Root = root
	return t, nil
}

func readNode(r io.Reader) (*Node, error) {
	var x, y, z, radius float64
	for _, dst := range []*float64{&x, &y, &z, &radius} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("read node center/radius: %w", err)
		}
	}
	center := geo.Vec3{X: x, Y: y, Z: z}

	var isLeaf uint8
	if err := binary.Read(r, binary.LittleEndian, &isLeaf); err != nil {
		return nil, fmt.Errorf("read is_leaf: %w", err)
	}
	var nChildren uint32
	if err := binary.Read(r, binary.LittleEndian, &nChildren); err != nil {
		return nil, fmt.Errorf("read n_children: %w", err)
	}

	if isLeaf == 1 {
		ids := make([]int64, nChildren)
		for i := range ids {
			if err := binary.Read(r, binary.LittleEndian, &ids[i]); err != nil {
				return nil, fmt.Errorf("read segment_id: %w", err)
			}
		}
		return &Node{Center: center, RadiusRad: radius, IsLeaf: true, SegmentIDs: ids}, nil
	}

	if nChildren != 2 {
		return nil, fmt.Errorf("internal node has %d children, expected 2", nChildren)
	}
	left, err := readNode(r)
	if err != nil {
		return nil, err
	}
	right, err := readNode(r)
	if err != nil {
		return nil, err
	}
	return &Node{Center: center, RadiusRad: radius, IsLeaf: false, Left: left, Right: right}, nil
}
