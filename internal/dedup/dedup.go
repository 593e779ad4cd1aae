// Package dedup finds exact duplicates by content hash and flags likely
// near-duplicates by perceptual hash distance.
package dedup

import (
	"fmt"
	"sort"

	"github.com/corona10/goimagehash"

	"eventphoto/internal/photo"
)

// Options configures a deduplication pass.
type Options struct {
	// NearThreshold is the minimum similarity in [0,1] for two canonical
	// records to be flagged as near-duplicates. 0 disables the check.
	NearThreshold float64

	// Organized maps checksum -> destination for content that earlier runs
	// already organized. Matching records become duplicates of that
	// destination. May be nil.
	Organized map[string]string
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.NearThreshold < 0 || o.NearThreshold > 1 {
		return fmt.Errorf("near-duplicate threshold must be within [0,1], got %g", o.NearThreshold)
	}
	return nil
}

// Result is the outcome of Deduplicate.
type Result struct {
	// Canonical holds one record per distinct content, in input order.
	Canonical []photo.PhotoRecord
	// Sets lists every checksum that had more than one record, or that was
	// organized before.
	Sets []photo.DuplicateSet
	// Near lists flagged perceptual near-duplicate pairs among Canonical.
	Near []photo.NearDuplicate
}

// DuplicateCount returns the number of records marked as duplicates.
func (r *Result) DuplicateCount() int {
	n := 0
	for _, s := range r.Sets {
		n += len(s.Duplicates)
	}
	return n
}

// Deduplicate groups records by checksum. Within a group the record created
// earliest is canonical; ties keep input order. The output is deterministic
// for a given input order, and running it again on Canonical yields no sets.
func Deduplicate(records []photo.PhotoRecord, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	res := &Result{}
	if len(records) == 0 {
		return res, nil
	}

	byChecksum := make(map[string][]int)
	var order []string
	for i, r := range records {
		if _, seen := byChecksum[r.Checksum]; !seen {
			order = append(order, r.Checksum)
		}
		byChecksum[r.Checksum] = append(byChecksum[r.Checksum], i)
	}

	canonicalIdx := make([]int, 0, len(order))
	for _, sum := range order {
		idx := byChecksum[sum]
		sort.SliceStable(idx, func(a, b int) bool {
			return records[idx[a]].CreatedAt().Before(records[idx[b]].CreatedAt())
		})

		if dest, ok := opts.Organized[sum]; ok {
			set := photo.DuplicateSet{Checksum: sum, PreviousDestination: dest}
			for _, i := range idx {
				set.Duplicates = append(set.Duplicates, records[i])
			}
			res.Sets = append(res.Sets, set)
			continue
		}

		canonicalIdx = append(canonicalIdx, idx[0])
		if len(idx) == 1 {
			continue
		}
		set := photo.DuplicateSet{Checksum: sum, Canonical: records[idx[0]]}
		for _, i := range idx[1:] {
			set.Duplicates = append(set.Duplicates, records[i])
		}
		res.Sets = append(res.Sets, set)
	}

	// Canonical records keep their original input order.
	sort.Ints(canonicalIdx)
	res.Canonical = make([]photo.PhotoRecord, 0, len(canonicalIdx))
	for _, i := range canonicalIdx {
		res.Canonical = append(res.Canonical, records[i])
	}

	if opts.NearThreshold > 0 {
		res.Near = nearDuplicates(res.Canonical, opts.NearThreshold)
	}
	return res, nil
}

// Similarity converts the Hamming distance of two 64-bit perceptual hashes
// to a score in [0,1], where 1 means identical hashes.
func Similarity(a, b uint64) float64 {
	// Both hashes have the same kind, so Distance cannot fail.
	d, _ := goimagehash.NewImageHash(a, goimagehash.PHash).Distance(goimagehash.NewImageHash(b, goimagehash.PHash))
	return 1 - float64(d)/64
}

// nearDuplicates compares every pair of hashed records. A is always the
// record created first.
func nearDuplicates(records []photo.PhotoRecord, threshold float64) []photo.NearDuplicate {
	var hashed []photo.PhotoRecord
	for _, r := range records {
		if r.HasPerceptualHash {
			hashed = append(hashed, r)
		}
	}

	var near []photo.NearDuplicate
	for i := 0; i < len(hashed); i++ {
		for j := i + 1; j < len(hashed); j++ {
			s := Similarity(hashed[i].PerceptualHash, hashed[j].PerceptualHash)
			if s < threshold {
				continue
			}
			a, b := hashed[i], hashed[j]
			if b.CreatedAt().Before(a.CreatedAt()) {
				a, b = b, a
			}
			near = append(near, photo.NearDuplicate{A: a.Path, B: b.Path, Similarity: s})
		}
	}
	return near
}
