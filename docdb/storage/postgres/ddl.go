package postgres

import "github.com/ministore/docdb/docdb/storage"

// Text keys use the C collation so that range scans follow byte order.
const ddlBase = `
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT COLLATE "C" PRIMARY KEY,
  value BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS docs (
  id     BIGINT PRIMARY KEY,
  data   BYTEA  NOT NULL,
  length BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS postings (
  term      TEXT COLLATE "C" NOT NULL,
  doc       BIGINT NOT NULL,
  wdf       INTEGER NOT NULL,
  doclen    INTEGER NOT NULL,
  positions BYTEA,
  PRIMARY KEY (term, doc)
);
CREATE INDEX IF NOT EXISTS idx_postings_doc ON postings(doc, term);

CREATE TABLE IF NOT EXISTS terms (
  term     TEXT COLLATE "C" PRIMARY KEY,
  termfreq BIGINT NOT NULL,
  collfreq BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS slots (
  slot  INTEGER NOT NULL,
  doc   BIGINT  NOT NULL,
  value BYTEA   NOT NULL,
  PRIMARY KEY (slot, doc)
);
CREATE INDEX IF NOT EXISTS idx_slots_doc ON slots(doc);

CREATE TABLE IF NOT EXISTS spelling (
  word TEXT COLLATE "C" PRIMARY KEY,
  freq BIGINT NOT NULL
);
`

var SQLTemplates = storage.SQL{
	GetMeta:    "SELECT value FROM meta WHERE key = $1",
	SetMeta:    "INSERT INTO meta(key,value) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value",
	DeleteMeta: "DELETE FROM meta WHERE key = $1",
	ListMeta:   "SELECT key FROM meta WHERE key >= $1 ORDER BY key",

	Stats:     "SELECT COUNT(*), COALESCE(SUM(length), 0)::BIGINT FROM docs",
	DocIDs:    "SELECT id FROM docs ORDER BY id",
	GetDoc:    "SELECT data FROM docs WHERE id = $1",
	InsertDoc: "INSERT INTO docs(id, data, length) VALUES($1, $2, $3)",
	DeleteDoc: "DELETE FROM docs WHERE id = $1",

	InsertPostings: "INSERT INTO postings(term, doc, wdf, doclen, positions) VALUES ",
	GetPostings:    "SELECT doc, wdf, doclen, positions FROM postings WHERE term = $1 ORDER BY doc",
	DocPostings:    "SELECT term, wdf FROM postings WHERE doc = $1 ORDER BY term",
	DeletePostings: "DELETE FROM postings WHERE doc = $1",

	TermFreq:  "SELECT termfreq FROM terms WHERE term = $1",
	ListTerms: "SELECT term, termfreq, collfreq FROM terms WHERE term >= $1 ORDER BY term LIMIT $2",
	AddTerm: `INSERT INTO terms(term, termfreq, collfreq) VALUES($1, 1, $2)
		ON CONFLICT(term) DO UPDATE SET termfreq = terms.termfreq + 1, collfreq = terms.collfreq + EXCLUDED.collfreq`,
	SubtractTerm:  "UPDATE terms SET termfreq = termfreq - 1, collfreq = collfreq - $2 WHERE term = $1",
	DropEmptyTerm: "DELETE FROM terms WHERE term = $1 AND termfreq <= 0",

	InsertSlots: "INSERT INTO slots(doc, slot, value) VALUES ",
	SlotValues:  "SELECT doc, value FROM slots WHERE slot = $1",
	GetValue:    "SELECT value FROM slots WHERE doc = $1 AND slot = $2",
	DeleteSlots: "DELETE FROM slots WHERE doc = $1",

	ListSpelling: "SELECT word, freq FROM spelling WHERE word >= $1 ORDER BY word",
	AddSpelling: `INSERT INTO spelling(word, freq) VALUES($1, $2)
		ON CONFLICT(word) DO UPDATE SET freq = spelling.freq + EXCLUDED.freq`,
	SubtractSpelling:  "UPDATE spelling SET freq = freq - $2 WHERE word = $1",
	DropEmptySpelling: "DELETE FROM spelling WHERE word = $1 AND freq <= 0",

	// the wire protocol caps bind parameters at 65535
	MaxArgs: 65000,
}
