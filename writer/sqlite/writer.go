// Package sqlite stores deconvolution runs in a SQLite database
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/deconvolution"
)

const createdAtFormat = time.RFC3339

// Writer appends runs to a SQLite database file
type Writer struct {
	db         *sql.DB
	outputPath string
}

// NewWriter opens (or creates) the database at outputPath
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{db: db, outputPath: outputPath}
	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS RunTable (
		RunId INTEGER PRIMARY KEY AUTOINCREMENT,
		Name TEXT,
		CreatedAt TEXT,
		Samples INTEGER,
		StartTime DOUBLE,
		EndTime DOUBLE,
		PeakCount INTEGER,
		Warnings TEXT
	);

	CREATE TABLE IF NOT EXISTS WindowTable (
		RunId INTEGER REFERENCES RunTable(RunId),
		WindowId INTEGER,
		Kind TEXT,
		StartIndex INTEGER,
		EndIndex INTEGER,
		StartTime DOUBLE,
		EndTime DOUBLE,
		NumPeaks INTEGER,
		SignalArea DOUBLE,
		PRIMARY KEY (RunId, WindowId)
	);

	CREATE TABLE IF NOT EXISTS PeakTable (
		RunId INTEGER REFERENCES RunTable(RunId),
		PeakId INTEGER,
		WindowId INTEGER,
		Label TEXT,
		RetentionTime DOUBLE,
		Location DOUBLE,
		Scale DOUBLE,
		Skew DOUBLE,
		Amplitude DOUBLE,
		Area DOUBLE,
		SignalMaximum DOUBLE,
		blobTime BLOB,
		blobIntensity BLOB,
		PRIMARY KEY (RunId, PeakId)
	);
	`
	if _, err := w.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// WriteRun stores one pipeline result in a single transaction and returns
// its run id. Unmixed traces are stored as little-endian float64 blobs
// over the time axis of s, which is the row axis of the unmixed matrix
// whatever the evaluation window of the run was.
func (w *Writer) WriteRun(name string, s chromatogram.Series, res *deconvolution.Result) (int64, error) {
	if res == nil {
		return 0, fmt.Errorf("no result to write")
	}

	if res.Unmixed != nil {
		if r, c := res.Unmixed.Dims(); r != s.Len() || c != len(res.Peaks) {
			return 0, fmt.Errorf("unmixed matrix is %dx%d, want %dx%d", r, c, s.Len(), len(res.Peaks))
		}
	}

	tx, err := w.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start, end := s.Span()
	runRes, err := tx.Exec(`INSERT INTO RunTable
		(Name, CreatedAt, Samples, StartTime, EndTime, PeakCount, Warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, time.Now().UTC().Format(createdAtFormat), s.Len(), start, end,
		len(res.Peaks), strings.Join(res.Warnings, "\n"))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := runRes.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	windowStmt, err := tx.Prepare(`INSERT INTO WindowTable
		(RunId, WindowId, Kind, StartIndex, EndIndex, StartTime, EndTime, NumPeaks, SignalArea)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare window statement: %w", err)
	}
	defer windowStmt.Close()

	for _, win := range res.Windows {
		if len(win.Time) == 0 {
			continue
		}
		if _, err := windowStmt.Exec(runID, win.ID, string(win.Kind), win.Start, win.End,
			win.Time[0], win.Time[len(win.Time)-1], win.NumPeaks, win.SignalArea); err != nil {
			return 0, fmt.Errorf("failed to insert window %d: %w", win.ID, err)
		}
	}

	peakStmt, err := tx.Prepare(`INSERT INTO PeakTable
		(RunId, PeakId, WindowId, Label, RetentionTime, Location, Scale, Skew,
		 Amplitude, Area, SignalMaximum, blobTime, blobIntensity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare peak statement: %w", err)
	}
	defer peakStmt.Close()

	timeBlob := encodeFloat64(s.Time)
	for j, p := range res.Peaks {
		if _, err := peakStmt.Exec(runID, p.PeakID, p.WindowID, p.Label, p.RetentionTime,
			p.Location, p.Scale, p.Skew, p.Amplitude, p.Area, p.SignalMaximum,
			timeBlob, encodeFloat64(column(res.Unmixed, j))); err != nil {
			return 0, fmt.Errorf("failed to insert peak %d: %w", p.PeakID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// Close closes the database
func (w *Writer) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

func column(m *mat.Dense, j int) []float64 {
	if m == nil {
		return nil
	}
	if _, c := m.Dims(); j >= c {
		return nil
	}
	return mat.Col(nil, j, m)
}

func encodeFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64 reverses the blob encoding used for traces
func DecodeFloat64(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(blob))
	}
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return out, nil
}
