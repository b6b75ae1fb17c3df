// Package ingest picks the right parser for an uploaded or discovered file.
package ingest

import (
	"bufio"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/csvparser"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
	"github.com/ginjaninja78/invoice-batch-import/internal/xlsxparser"
)

// zipMagic prefixes every .xlsx workbook.
var zipMagic = []byte("PK\x03\x04")

// Kind names the format of an input file.
type Kind string

const (
	KindDelimited   Kind = "delimited"
	KindSpreadsheet Kind = "spreadsheet"
)

// ReadRecords parses the whole input before returning. Spreadsheets are
// recognized by an .xlsx name or by their ZIP header; everything else is
// read as delimited text.
func ReadRecords(name string, r io.Reader, settings config.ImportSettings) ([]types.Record, error) {
	br := bufio.NewReader(r)
	switch Detect(name, br) {
	case KindSpreadsheet:
		return xlsxparser.Parse(br)
	default:
		return csvparser.Parse(br, settings)
	}
}

// Detect reports the input kind without consuming anything from br.
func Detect(name string, br *bufio.Reader) Kind {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return KindSpreadsheet
	}
	head, _ := br.Peek(len(zipMagic))
	if bytes.Equal(head, zipMagic) {
		return KindSpreadsheet
	}
	return KindDelimited
}
