// Package evidence finalizes a job's proof-of-work bundle. A sealed job is
// immutable: its hash covers the descriptive fields, the photo set and any
// photo bytes still held locally, so later tampering is detectable.
package evidence

import (
	"encoding/binary"
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/fieldsync/fieldsync/internal/agent/models"
)

// Hash computes the evidence digest for a job. Photos are folded in sorted
// by id so the digest does not depend on attachment order. Sync bookkeeping
// fields (status, timestamps, the hash itself) are excluded.
func Hash(job *models.Job, photoData ...[]byte) string {
	h, _ := blake2b.New256(nil)

	writeField := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	writeString := func(s string) { writeField([]byte(s)) }

	writeString(job.ID)
	writeString(job.WorkspaceID)
	writeString(job.Title)
	writeString(job.Status)
	writeString(job.Notes)
	writeString(job.Location)
	writeString(job.TechnicianID)
	writeString(job.SignatureID)
	writeField(job.SafetyChecklist)

	photos := make([]models.PhotoRef, len(job.Photos))
	copy(photos, job.Photos)
	sort.Slice(photos, func(i, j int) bool { return photos[i].ID < photos[j].ID })
	for _, p := range photos {
		writeString(p.ID)
		writeString(p.URL)
	}

	for _, data := range photoData {
		writeField(data)
	}

	return hex.EncodeToString(h.Sum(nil))
}
