package logparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/variable"
)

// ErrNoHeader is returned when the input has no header row and the parser
// was not given one.
var ErrNoHeader = errors.New("search log has no header row")

// Stats describes one parse run.
type Stats struct {
	Rows        int           `json:"rows"`
	MissingIDs  int           `json:"missing_ids"` // rows kept without a numeric id
	BadPayloads int           `json:"bad_payloads"`
	Duration    time.Duration `json:"-"`
}

// Parser turns search log CSV into normalized records.
type Parser struct {
	header  *CompiledHeader
	workers int
}

// NewParser creates a parser. A nil header means the first input row is the
// header; otherwise every input row is data laid out as header.
func NewParser(header []string) (*Parser, error) {
	workerCount := runtime.NumCPU()
	if workerCount > 8 {
		workerCount = 8
	}
	p := &Parser{workers: workerCount}
	if header != nil {
		compiled, err := CompileHeader(header)
		if err != nil {
			return nil, err
		}
		p.header = compiled
	}
	return p, nil
}

// ParseFile parses a search log file.
func (p *Parser) ParseFile(filename string) ([]*ingestor.Record, *Stats, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()
	return p.ParseReader(file)
}

// ParseString parses search log text handed over by a host.
func (p *Parser) ParseString(text string) ([]*ingestor.Record, *Stats, error) {
	return p.ParseReader(strings.NewReader(text))
}

// ParseReader parses CSV rows, appends the synthetic root and returns the
// records ordered by id.
func (p *Parser) ParseReader(r io.Reader) ([]*ingestor.Record, *Stats, error) {
	start := time.Now()
	reader := newCSVReader(r)

	header := p.header
	if header == nil {
		first, err := reader.Read()
		if err == io.EOF {
			return nil, nil, ErrNoHeader
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading header: %w", err)
		}
		if header, err = CompileHeader(first); err != nil {
			return nil, nil, err
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading search log: %w", err)
	}

	records, stats := p.coerceRows(header, rows)
	records = AppendSyntheticRoot(records)
	SortByID(records)

	stats.Duration = time.Since(start)
	return records, stats, nil
}

// ParseLine parses a single headerless row, as delivered by live ingestion.
// The returned record has its solution and variable resolved but is not
// sorted into any forest. A row without a numeric id is returned with
// ID == ingestor.Missing; only an unreadable row yields a nil record.
func (p *Parser) ParseLine(line string) (*ingestor.Record, error) {
	if p.header == nil {
		return nil, ErrNoHeader
	}
	fields, err := newCSVReader(strings.NewReader(line)).Read()
	if err != nil {
		return nil, fmt.Errorf("reading row: %w", err)
	}
	rec := p.header.Coerce(fields)
	ResolveVariable(rec)
	if err := ParseSolution(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// coerceRows converts rows with a pool of workers. Output order follows
// input order. Rows without a numeric id are kept as unindexed nodes.
func (p *Parser) coerceRows(header *CompiledHeader, rows [][]string) ([]*ingestor.Record, *Stats) {
	out := make([]*ingestor.Record, len(rows), len(rows)+1)
	badPayloads := make([]int, p.workers)

	chunk := (len(rows) + p.workers - 1) / p.workers
	var wg sync.WaitGroup
	for w := 0; w < p.workers && w*chunk < len(rows); w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(rows) {
			hi = len(rows)
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				rec := header.Coerce(rows[i])
				if err := ParseSolution(rec); err != nil {
					badPayloads[w]++
				}
				ResolveVariable(rec)
				out[i] = rec
			}
		}(w, lo, hi)
	}
	wg.Wait()

	stats := &Stats{Rows: len(rows)}
	for _, n := range badPayloads {
		stats.BadPayloads += n
	}
	for _, rec := range out {
		if rec.ID == ingestor.Missing {
			stats.MissingIDs++
		}
	}
	return out, stats
}

// ParseSolution decodes the node's solution payload in place. A malformed
// payload leaves Solution nil and is reported, never fatal.
func ParseSolution(rec *ingestor.Record) error {
	sol, err := ingestor.ParseSolution(rec.SolutionString)
	if err != nil {
		rec.Solution = nil
		return fmt.Errorf("node %d: %w", rec.ID, err)
	}
	rec.Solution = sol
	return nil
}

// ResolveVariable derives the decision variable from the node's label.
func ResolveVariable(rec *ingestor.Record) {
	rec.Var = variable.ParseLabel(rec.Label)
}

// AppendSyntheticRoot adds the virtual root that adopts every node whose
// parent id is -1.
func AppendSyntheticRoot(records []*ingestor.Record) []*ingestor.Record {
	return append(records, ingestor.NewSyntheticRoot(len(records)))
}

// SortByID orders records by ascending id, keeping input order for ties.
func SortByID(records []*ingestor.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false
	return reader
}
