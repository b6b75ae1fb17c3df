// =============================================================================
// Invoice Batch Import - Delimited Text Parser
// =============================================================================
//
// This module turns an uploaded byte stream of delimited text into header
// keyed records. It handles:
//   - Configurable delimiters (comma, semicolon, pipe, tab)
//   - UTF-8 (with or without BOM), ISO-8859-1 and Windows-1252 input
//   - Whitespace trimming of headers and values
//   - Skipping of empty and all-blank rows
//
// STRICTNESS:
//   By default every data row must carry exactly as many fields as the header
//   and quotes must balance. Anything else is a ParseError, which is fatal
//   for the batch. ImportSettings.Lenient relaxes both rules.
//
// =============================================================================

package csvparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads the whole stream and returns its data records.
//
// PARAMETERS:
//   - r: The delimited text, header row first.
//   - settings: Delimiter, encoding and strictness.
//
// RETURNS:
//   - The records in input order.
//   - *types.ParseError for malformed input.
//   - *types.EmptyInputError when there is no data row.
func Parse(r io.Reader, settings config.ImportSettings) ([]types.Record, error) {
	parser, err := NewStreamingParser(r, settings)
	if err != nil {
		return nil, err
	}

	var records []types.Record
	for parser.Next() {
		records = append(records, parser.Record())
	}
	if err := parser.Err(); err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &types.EmptyInputError{}
	}
	return records, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, comma rune, settings config.ImportSettings) {
	reader.Comma = comma

	// Strict mode pins the field count to the header's once it is read.
	if settings.Lenient {
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
	} else {
		reader.FieldsPerRecord = 0
		reader.LazyQuotes = false
	}

	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false
}

// decoderFor returns the text decoder for the configured encoding.
// The UTF-8 decoder also strips a leading byte order mark.
func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "UTF-8", "UTF8":
		return nil, nil
	case "ISO-8859-1", "LATIN1":
		return charmap.ISO8859_1, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// cleanHeaders trims header names and names blank ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// toParseError converts an encoding/csv error into the batch-fatal type.
func toParseError(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &types.ParseError{Line: csvErr.Line, Err: csvErr.Err}
	}
	return &types.ParseError{Err: err}
}

// =============================================================================
// STREAMING PARSER
// =============================================================================

// StreamingParser yields records one at a time.
//
// USAGE:
//   parser, err := NewStreamingParser(r, settings)
//   if err != nil {
//       return err
//   }
//   for parser.Next() {
//       record := parser.Record()
//   }
//   if err := parser.Err(); err != nil {
//       return err
//   }
type StreamingParser struct {
	reader  *csv.Reader
	headers []string
	current types.Record
	err     error
}

// NewStreamingParser reads the header row and prepares to stream data rows.
//
// RETURNS:
//   - *types.EmptyInputError when the stream holds no header at all.
//   - *types.ParseError when the header row itself is malformed.
func NewStreamingParser(r io.Reader, settings config.ImportSettings) (*StreamingParser, error) {
	comma, err := settings.Comma()
	if err != nil {
		return nil, err
	}

	enc, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	} else {
		r = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}

	reader := csv.NewReader(r)
	configureReader(reader, comma, settings)

	parser := &StreamingParser{reader: reader}
	if err := parser.readHeaders(); err != nil {
		return nil, err
	}
	return parser, nil
}

// readHeaders reads and cleans the header row.
func (p *StreamingParser) readHeaders() error {
	row, err := p.reader.Read()
	if err == io.EOF {
		return &types.EmptyInputError{}
	}
	if err != nil {
		return toParseError(err)
	}
	p.headers = cleanHeaders(row)
	return nil
}

// Next advances to the next non-blank row. It returns false at the end of
// input or on the first error, which Err then reports.
func (p *StreamingParser) Next() bool {
	if p.err != nil {
		return false
	}

	for {
		row, err := p.reader.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			p.err = toParseError(err)
			return false
		}
		if isRowEmpty(row) {
			continue
		}

		fields := make(map[string]string, len(p.headers))
		for i, header := range p.headers {
			if i < len(row) {
				fields[header] = strings.TrimSpace(row[i])
			} else {
				fields[header] = ""
			}
		}

		line, _ := p.reader.FieldPos(0)
		p.current = types.Record{Fields: fields, Line: line}
		return true
	}
}

// Record returns the current record.
func (p *StreamingParser) Record() types.Record {
	return p.current
}

// Err returns any error that occurred during parsing.
func (p *StreamingParser) Err() error {
	return p.err
}
