package collective

import "github.com/luxfi/pgasc/transport"

// Image identifies one logical participant; multiple images may share a
// rank (e.g. threads), per the GLOSSARY.
type Image int

// Mapping is the image-to-rank table built once at init from a
// caller-supplied array of images-per-rank (spec §3/§4.7): offsets, total
// image count, and max-images-per-rank are precomputed so address-list
// (M-variant) collectives can resolve "my first image" in O(1).
type Mapping struct {
	ImagesPerRank []int
	Offset        []int // offset[r] = total images before rank r's first image
	Total         int
	Max           int
}

// NewMapping precomputes offsets from a per-rank image count.
func NewMapping(imagesPerRank []int) Mapping {
	m := Mapping{ImagesPerRank: imagesPerRank, Offset: make([]int, len(imagesPerRank))}
	total := 0
	max := 0
	for r, n := range imagesPerRank {
		m.Offset[r] = total
		total += n
		if n > max {
			max = n
		}
	}
	m.Total = total
	m.Max = max
	return m
}

// RankOf returns the rank hosting image img.
func (m Mapping) RankOf(img Image) transport.Rank {
	lo, hi := 0, len(m.Offset)
	for lo < hi {
		mid := (lo + hi) / 2
		if m.Offset[mid] <= int(img) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return transport.Rank(lo - 1)
}

// FirstImage returns the index, within a per-image list, of rank r's first
// image — GASNETE_COLL_1ST_IMAGE in original_source/extended-ref/
// gasnet_coll_eager.c.
func (m Mapping) FirstImage(r transport.Rank) int {
	return m.Offset[r]
}

// MyFirstImage resolves GASNETE_COLL_MY_1ST_IMAGE: under LOCAL addressing
// every thread addresses its own image list starting at index 0; under
// SINGLE addressing the whole per-image list is addressed starting at this
// rank's offset into the team-wide image list.
func (m Mapping) MyFirstImage(self transport.Rank, local bool) int {
	if local {
		return 0
	}
	return m.Offset[self]
}

// MyImages returns how many images rank r hosts locally.
func (m Mapping) MyImages(r transport.Rank) int {
	return m.ImagesPerRank[r]
}
