// Package archive is the archive organiser: canonical key derivation,
// durable artefact placement, and a full-text plus structured index
// over approved pages (§4.3).
package archive

import (
	"fmt"
	"strconv"

	"archivecore.io/core/internal/domain"
)

// CanonicalKey returns the storage key for one artefact of pageID,
// slugifying owner/year/docType so that two approvals of the same
// page produce the same key (§4.3).
func CanonicalKey(owner string, year int, docType domain.DocType, batchID, pageID, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s",
		domain.Slugify(owner),
		strconv.Itoa(year),
		domain.Slugify(string(docType)),
		domain.Slugify(batchID),
		domain.Slugify(pageID),
		ext,
	)
}

// BatchPrefix returns the directory prefix shared by every page in a
// batch, used both for shard locking and for structured-index filters.
func BatchPrefix(key domain.BatchKey) string {
	return fmt.Sprintf("%s/%s/%s/%s/",
		domain.Slugify(key.Owner),
		strconv.Itoa(key.Year),
		domain.Slugify(string(key.DocType)),
		domain.Slugify(key.BatchID),
	)
}
