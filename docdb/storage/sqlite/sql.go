package sqlite

import "github.com/ministore/docdb/docdb/storage"

const ddlBase = `
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS docs (
  id     INTEGER PRIMARY KEY,
  data   BLOB NOT NULL,
  length INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS postings (
  term      TEXT    NOT NULL,
  doc       INTEGER NOT NULL,
  wdf       INTEGER NOT NULL,
  doclen    INTEGER NOT NULL,
  positions BLOB,
  PRIMARY KEY (term, doc)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_postings_doc ON postings(doc, term);

CREATE TABLE IF NOT EXISTS terms (
  term     TEXT PRIMARY KEY,
  termfreq INTEGER NOT NULL,
  collfreq INTEGER NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS slots (
  slot  INTEGER NOT NULL,
  doc   INTEGER NOT NULL,
  value BLOB    NOT NULL,
  PRIMARY KEY (slot, doc)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_slots_doc ON slots(doc);

CREATE TABLE IF NOT EXISTS spelling (
  word TEXT PRIMARY KEY,
  freq INTEGER NOT NULL
) WITHOUT ROWID;
`

var SQLTemplates = storage.SQL{
	GetMeta:    "SELECT value FROM meta WHERE key = ?1",
	SetMeta:    "INSERT INTO meta(key,value) VALUES(?1,?2) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
	DeleteMeta: "DELETE FROM meta WHERE key = ?1",
	ListMeta:   "SELECT key FROM meta WHERE key >= ?1 ORDER BY key",

	Stats:     "SELECT COUNT(*), COALESCE(SUM(length), 0) FROM docs",
	DocIDs:    "SELECT id FROM docs ORDER BY id",
	GetDoc:    "SELECT data FROM docs WHERE id = ?1",
	InsertDoc: "INSERT INTO docs(id, data, length) VALUES(?1, ?2, ?3)",
	DeleteDoc: "DELETE FROM docs WHERE id = ?1",

	InsertPostings: "INSERT INTO postings(term, doc, wdf, doclen, positions) VALUES ",
	GetPostings:    "SELECT doc, wdf, doclen, positions FROM postings WHERE term = ?1 ORDER BY doc",
	DocPostings:    "SELECT term, wdf FROM postings WHERE doc = ?1 ORDER BY term",
	DeletePostings: "DELETE FROM postings WHERE doc = ?1",

	TermFreq:  "SELECT termfreq FROM terms WHERE term = ?1",
	ListTerms: "SELECT term, termfreq, collfreq FROM terms WHERE term >= ?1 ORDER BY term LIMIT ?2",
	AddTerm: `INSERT INTO terms(term, termfreq, collfreq) VALUES(?1, 1, ?2)
		ON CONFLICT(term) DO UPDATE SET termfreq = termfreq + 1, collfreq = collfreq + excluded.collfreq`,
	SubtractTerm:  "UPDATE terms SET termfreq = termfreq - 1, collfreq = collfreq - ?2 WHERE term = ?1",
	DropEmptyTerm: "DELETE FROM terms WHERE term = ?1 AND termfreq <= 0",

	InsertSlots: "INSERT INTO slots(doc, slot, value) VALUES ",
	SlotValues:  "SELECT doc, value FROM slots WHERE slot = ?1",
	GetValue:    "SELECT value FROM slots WHERE doc = ?1 AND slot = ?2",
	DeleteSlots: "DELETE FROM slots WHERE doc = ?1",

	ListSpelling: "SELECT word, freq FROM spelling WHERE word >= ?1 ORDER BY word",
	AddSpelling: `INSERT INTO spelling(word, freq) VALUES(?1, ?2)
		ON CONFLICT(word) DO UPDATE SET freq = freq + excluded.freq`,
	SubtractSpelling:  "UPDATE spelling SET freq = freq - ?2 WHERE word = ?1",
	DropEmptySpelling: "DELETE FROM spelling WHERE word = ?1 AND freq <= 0",

	// SQLITE_MAX_VARIABLE_NUMBER is 32766 since 3.32
	MaxArgs: 32000,
}
