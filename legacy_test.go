package fixedalloc

import (
	"testing"

	"github.com/fixedalloc/fixedalloc/page"
)

func TestPageLegacySurface(t *testing.T) {
	buf := page.NewAlignedBuffer(128 * 1024)
	if err := PageReinit(buf, false); err != nil {
		t.Fatalf("PageReinit: %v", err)
	}
	ptr, err := PageMalloc(page.Size, page.Transient)
	if err != nil {
		t.Fatalf("PageMalloc: %v", err)
	}
	PageFree(ptr)
}

func TestSlabLegacySurface(t *testing.T) {
	buf := page.NewAlignedBuffer(128 * 1024)
	if err := SlabReinit(buf, false); err != nil {
		t.Fatalf("SlabReinit: %v", err)
	}
	ptr, err := SlabMalloc(32)
	if err != nil {
		t.Fatalf("SlabMalloc: %v", err)
	}
	grown, err := SlabRealloc(ptr, 64)
	if err != nil {
		t.Fatalf("SlabRealloc: %v", err)
	}
	SlabFree(grown)
}

func TestLockedPageForwardsCalls(t *testing.T) {
	buf := page.NewAlignedBuffer(128 * 1024)
	a := page.New()
	l := NewLockedPage(a)
	if err := l.Reinit(buf, false); err != nil {
		t.Fatalf("Reinit: %v", err)
	}
	ptr, err := l.Malloc(page.Size, page.Transient)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	l.Free(ptr)
}
