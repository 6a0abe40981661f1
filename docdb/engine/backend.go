package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
)

var (
	// ErrLocked is returned when the write lock could not be taken.
	ErrLocked = errors.New("engine: database is locked")
	// ErrDocNotFound is returned for a document id that holds nothing.
	ErrDocNotFound = errors.New("engine: document not found")
	// ErrClosed is returned by a closed backend or a finished writer.
	ErrClosed = errors.New("engine: closed")
)

// MetaLastDocID is the metadata key of the document id counter.
const MetaLastDocID = "lastdocid"

// Stats summarizes a database.
type Stats struct {
	DocCount    int
	LastDocID   uint32
	TotalLength int64
}

// AvgLength is the average document length.
func (s Stats) AvgLength() float64 {
	if s.DocCount == 0 {
		return 0
	}
	return float64(s.TotalLength) / float64(s.DocCount)
}

// Posting is one document of a term's posting list.
type Posting struct {
	Doc       uint32
	WDF       int
	DocLen    int
	Positions []int
}

// TermInfo is an entry of the term dictionary.
type TermInfo struct {
	Term     string
	TermFreq int
	CollFreq int
}

// Reader is the read side of a backend.
type Reader interface {
	Stats(ctx context.Context) (Stats, error)
	// Postings returns the posting list of term ordered by document id.
	Postings(ctx context.Context, term string) ([]Posting, error)
	TermFreq(ctx context.Context, term string) (int, error)
	// Terms returns up to limit dictionary entries from the first term
	// greater than or equal to from, in byte order.
	Terms(ctx context.Context, from string, limit int) ([]TermInfo, error)
	DocIDs(ctx context.Context) (*roaring.Bitmap, error)
	// Data returns the data blob of a document, or ErrDocNotFound.
	Data(ctx context.Context, doc uint32) ([]byte, error)
	DocTerms(ctx context.Context, doc uint32) ([]string, error)
	// SlotValues returns the non-empty values of one slot by document.
	SlotValues(ctx context.Context, slot int) (map[uint32][]byte, error)
	Value(ctx context.Context, doc uint32, slot int) ([]byte, error)
	// Metadata returns nil for an absent key.
	Metadata(ctx context.Context, key string) ([]byte, error)
	MetadataKeys(ctx context.Context, prefix string) ([]string, error)
	// Spellings returns the spelling dictionary words starting with prefix
	// and their frequencies.
	Spellings(ctx context.Context, prefix string) (map[string]int, error)
}

// Writer is an open write transaction. It reads its own writes.
type Writer interface {
	Reader
	ReplaceDocument(ctx context.Context, doc uint32, d *Document) error
	DeleteDocument(ctx context.Context, doc uint32) error
	// SetMetadata stores value under key; an empty value deletes the key.
	SetMetadata(ctx context.Context, key string, value []byte) error
	AddSpelling(ctx context.Context, word string, freq int) error
	RemoveSpelling(ctx context.Context, word string, freq int) error
	Commit() error
	Rollback() error
}

// Backend is a storage backend.
type Backend interface {
	Reader
	Begin(ctx context.Context) (Writer, error)
	Close() error
}

// AddDocument stores d under a fresh id. Ids come from a persisted counter,
// so the id of a deleted document is never handed out again.
func AddDocument(ctx context.Context, w Writer, d *Document) (uint32, error) {
	last, err := MetaUint(ctx, w, MetaLastDocID)
	if err != nil {
		return 0, err
	}
	id := uint32(last) + 1
	if err := w.SetMetadata(ctx, MetaLastDocID, []byte(strconv.FormatUint(uint64(id), 10))); err != nil {
		return 0, err
	}
	if err := w.ReplaceDocument(ctx, id, d); err != nil {
		return 0, err
	}
	return id, nil
}

// BumpLastDocID raises the id counter so that id is never allocated.
func BumpLastDocID(ctx context.Context, w Writer, id uint32) error {
	last, err := MetaUint(ctx, w, MetaLastDocID)
	if err != nil {
		return err
	}
	if uint64(id) <= last {
		return nil
	}
	return w.SetMetadata(ctx, MetaLastDocID, []byte(strconv.FormatUint(uint64(id), 10)))
}

// MetaUint reads an unsigned counter from metadata; absent keys read as 0.
func MetaUint(ctx context.Context, r Reader, key string) (uint64, error) {
	raw, err := r.Metadata(ctx, key)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata %s: %w", key, err)
	}
	return n, nil
}

// TermsWithPrefix walks the dictionary entries starting with prefix, in
// pages, until fn returns false or limit entries were visited (limit <= 0
// means no limit).
func TermsWithPrefix(ctx context.Context, r Reader, prefix string, limit int, fn func(TermInfo) bool) error {
	const page = 256
	from := prefix
	seen := 0
	skipFirst := false
	for {
		infos, err := r.Terms(ctx, from, page)
		if err != nil {
			return err
		}
		full := len(infos) == page
		if skipFirst && len(infos) > 0 && infos[0].Term == from {
			infos = infos[1:]
		}
		for _, info := range infos {
			if len(info.Term) < len(prefix) || info.Term[:len(prefix)] != prefix {
				return nil
			}
			if !fn(info) {
				return nil
			}
			seen++
			if limit > 0 && seen >= limit {
				return nil
			}
		}
		if !full || len(infos) == 0 {
			return nil
		}
		from = infos[len(infos)-1].Term
		skipFirst = true
	}
}
