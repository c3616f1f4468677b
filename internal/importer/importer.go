// Package importer reads supplier rate sheets from CSV and Excel files.
// It supports automatic delimiter detection, flexible column mapping, and
// case-insensitive header recognition.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/rates"
)

// ImportResult holds the results of an import operation.
type ImportResult struct {
	Rows     []rates.RateRow
	Errors   []string
	Warnings []string
}

// OK reports whether the import produced rows and no errors.
func (r ImportResult) OK() bool {
	return len(r.Errors) == 0 && len(r.Rows) > 0
}

// ColumnMapping maps semantic column roles to their indices in the data.
type ColumnMapping struct {
	Kind     int
	Key      int
	Ink      int
	Grammage int
	Supplier int
	Price    int
	Minimum  int
}

// positionalMapping is used when the first row is not a recognizable header.
var positionalMapping = ColumnMapping{Kind: 0, Key: 1, Ink: 2, Grammage: 3, Supplier: 4, Price: 5, Minimum: 6}

// headerAliases maps canonical column names to their accepted aliases (all lowercase).
var headerAliases = map[string][]string{
	"kind":     {"kind", "rate kind", "rate type", "section"},
	"key":      {"key", "name", "category", "paper type", "size", "item"},
	"ink":      {"ink", "ink category", "ink type"},
	"grammage": {"grammage", "gsm", "weight", "g/m2"},
	"supplier": {"supplier", "vendor", "mill"},
	"price":    {"price", "cost", "price per kg", "cost per sheet", "unit cost", "rate"},
	"minimum":  {"minimum", "min", "minimum cost", "min cost", "floor"},
}

// DetectCSVDelimiter reads the file content and determines the most likely CSV delimiter.
// It tries comma, semicolon, tab, and pipe. The delimiter that produces the most
// consistent (non-one) column count across lines wins.
func DetectCSVDelimiter(data []byte) rune {
	bestDelimiter := ','
	bestScore := 0

	for _, delim := range []rune{',', ';', '\t', '|'} {
		reader := newCSVReader(bytes.NewReader(data), delim)
		records, err := reader.ReadAll()
		if err != nil || len(records) < 1 {
			continue
		}

		firstCols := len(records[0])
		if firstCols < 2 {
			continue
		}

		score := 0
		for _, row := range records {
			if len(row) == firstCols {
				score++
			}
		}

		weighted := score*10 + firstCols
		if weighted > bestScore {
			bestScore = weighted
			bestDelimiter = delim
		}
	}

	return bestDelimiter
}

// DetectColumns examines a header row and returns a ColumnMapping.
// Returns the positional mapping and false if no header was found. A row whose
// first cell is a rate kind is data, even if other cells look like headers.
func DetectColumns(row []string) (ColumnMapping, bool) {
	if _, ok := rates.ParseRowKind(getCell(row, 0)); ok {
		return positionalMapping, false
	}

	mapping := ColumnMapping{Kind: -1, Key: -1, Ink: -1, Grammage: -1, Supplier: -1, Price: -1, Minimum: -1}
	slots := map[string]*int{
		"kind":     &mapping.Kind,
		"key":      &mapping.Key,
		"ink":      &mapping.Ink,
		"grammage": &mapping.Grammage,
		"supplier": &mapping.Supplier,
		"price":    &mapping.Price,
		"minimum":  &mapping.Minimum,
	}

	isHeader := false
	for i, cell := range row {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		for role, aliases := range headerAliases {
			for _, alias := range aliases {
				if normalized != alias {
					continue
				}
				isHeader = true
				if slot := slots[role]; *slot == -1 {
					*slot = i
				}
			}
		}
	}

	if !isHeader {
		return positionalMapping, false
	}
	return mapping, true
}

func parsePlateCategory(s string) (model.PlateCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small", "s":
		return model.PlateSmall, true
	case "large", "l":
		return model.PlateLarge, true
	default:
		return "", false
	}
}

func parseInkCategory(s string) (model.InkCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "process", "n":
		return model.InkNormal, true
	case "base", "flood", "underprint", "b":
		return model.InkBase, true
	default:
		return "", false
	}
}

// getCell safely retrieves a cell value from a row by column index.
// Returns empty string if the index is out of range or negative.
func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseAmount reads a non-negative number, tolerating thousands separators.
func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative")
	}
	return v, nil
}

// parseRow extracts a RateRow using the given column mapping.
// Returns the row, any error message, and any warning message.
func parseRow(row []string, mapping ColumnMapping, rowLabel string) (rates.RateRow, string, string) {
	kindStr := getCell(row, mapping.Kind)
	kind, ok := rates.ParseRowKind(kindStr)
	if !ok {
		return rates.RateRow{}, fmt.Sprintf("%s: Unknown rate kind '%s'", rowLabel, kindStr), ""
	}

	key := getCell(row, mapping.Key)
	if key == "" {
		return rates.RateRow{}, fmt.Sprintf("%s: Missing key value", rowLabel), ""
	}

	priceStr := getCell(row, mapping.Price)
	if priceStr == "" {
		return rates.RateRow{}, fmt.Sprintf("%s: Missing price value", rowLabel), ""
	}
	price, err := parseAmount(priceStr)
	if err != nil {
		return rates.RateRow{}, fmt.Sprintf("%s: Invalid price '%s'", rowLabel, priceStr), ""
	}

	var minimum float64
	if minStr := getCell(row, mapping.Minimum); minStr != "" {
		minimum, err = parseAmount(minStr)
		if err != nil {
			return rates.RateRow{}, fmt.Sprintf("%s: Invalid minimum '%s'", rowLabel, minStr), ""
		}
	}

	r := rates.RateRow{Kind: kind, Price: price, Minimum: minimum}
	var warning string

	switch kind {
	case rates.KindPaper:
		r.Key = key
		gsmStr := getCell(row, mapping.Grammage)
		gsm, err := strconv.ParseFloat(gsmStr, 64)
		if err != nil || gsm <= 0 {
			return rates.RateRow{}, fmt.Sprintf("%s: Invalid grammage '%s'", rowLabel, gsmStr), ""
		}
		r.GrammageGSM = gsm
		r.Supplier = getCell(row, mapping.Supplier)
		if r.Supplier == "" {
			return rates.RateRow{}, fmt.Sprintf("%s: Missing supplier for paper '%s'", rowLabel, key), ""
		}
		if minimum > 0 {
			warning = fmt.Sprintf("%s: Minimum ignored for paper", rowLabel)
			r.Minimum = 0
		}

	case rates.KindPlate, rates.KindInk:
		plate, ok := parsePlateCategory(key)
		if !ok {
			return rates.RateRow{}, fmt.Sprintf("%s: Unknown plate category '%s'", rowLabel, key), ""
		}
		r.Key = string(plate)
		if kind == rates.KindPlate {
			if minimum > 0 {
				warning = fmt.Sprintf("%s: Minimum ignored for plates", rowLabel)
				r.Minimum = 0
			}
			break
		}
		inkStr := getCell(row, mapping.Ink)
		ink, ok := parseInkCategory(inkStr)
		if !ok {
			return rates.RateRow{}, fmt.Sprintf("%s: Unknown ink category '%s'", rowLabel, inkStr), ""
		}
		r.Ink = ink

	case rates.KindCoating, rates.KindSpotUV:
		r.Key = strings.ToLower(key)
	}

	return r, "", warning
}

// rowIdentity is the key a later row overwrites.
func rowIdentity(r rates.RateRow) string {
	return fmt.Sprintf("%s|%s|%s|%g|%s", r.Kind, strings.ToLower(r.Key), r.Ink, r.GrammageGSM, strings.ToLower(r.Supplier))
}

// isEmptyRow returns true if the row has no meaningful content.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func newCSVReader(r io.Reader, delimiter rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	return reader
}

// Import dispatches on the file extension.
func Import(path string) ImportResult {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		return ImportExcel(path)
	default:
		return ImportCSV(path)
	}
}

// ImportCSV imports rates from a CSV file.
// It automatically detects the delimiter and maps columns by header names.
func ImportCSV(path string) ImportResult {
	result := ImportResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open file: %v", err))
		return result
	}

	if len(bytes.TrimSpace(data)) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	delimiter := DetectCSVDelimiter(data)
	var warnings []string
	if delimiter != ',' {
		delimName := map[rune]string{';': "semicolon", '\t': "tab", '|': "pipe"}[delimiter]
		warnings = append(warnings, fmt.Sprintf("Detected %s delimiter", delimName))
	}

	records, err := newCSVReader(bytes.NewReader(data), delimiter).ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}

	return importFromRows(records, "Line", warnings)
}

// ImportCSVFromReader imports rates from a CSV reader with a known delimiter.
func ImportCSVFromReader(reader io.Reader, delimiter rune) ImportResult {
	records, err := newCSVReader(reader, delimiter).ReadAll()
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot read CSV: %v", err)}}
	}
	return importFromRows(records, "Line", nil)
}

// ImportExcel imports rates from every sheet of an Excel workbook. Each sheet
// carries its own header row.
func ImportExcel(path string) ImportResult {
	result := ImportResult{}

	f, err := excelize.OpenFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open Excel file: %v", err))
		return result
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		result.Errors = append(result.Errors, "Excel file has no sheets")
		return result
	}

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Cannot read sheet '%s': %v", sheet, err))
			continue
		}
		if len(rows) == 0 {
			continue
		}
		part := importFromRows(rows, fmt.Sprintf("%s row", sheet), nil)
		result.Rows = append(result.Rows, part.Rows...)
		result.Errors = append(result.Errors, part.Errors...)
		result.Warnings = append(result.Warnings, part.Warnings...)
	}

	if len(result.Rows) == 0 && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, "No data rows found")
	}
	return dedupe(result)
}

// importFromRows is the shared import logic for both CSV and Excel data.
func importFromRows(rows [][]string, rowPrefix string, initialWarnings []string) ImportResult {
	result := ImportResult{Warnings: initialWarnings}

	if len(rows) == 0 {
		result.Errors = append(result.Errors, "No data rows found")
		return result
	}

	mapping, hasHeader := DetectColumns(rows[0])
	startRow := 0
	if hasHeader {
		startRow = 1
		var missing []string
		if mapping.Kind == -1 {
			missing = append(missing, "Kind")
		}
		if mapping.Key == -1 {
			missing = append(missing, "Key")
		}
		if mapping.Price == -1 {
			missing = append(missing, "Price")
		}
		if len(missing) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Required columns not found in header: %s", strings.Join(missing, ", ")))
			return result
		}
	} else if _, ok := rates.ParseRowKind(getCell(rows[0], positionalMapping.Kind)); !ok {
		startRow = 1
		result.Warnings = append(result.Warnings, "Unrecognized header row, using positional columns")
	}

	for i := startRow; i < len(rows); i++ {
		row := rows[i]
		if isEmptyRow(row) {
			continue
		}

		rowLabel := fmt.Sprintf("%s %d", rowPrefix, i+1)
		r, errMsg, warning := parseRow(row, mapping, rowLabel)
		if errMsg != "" {
			result.Errors = append(result.Errors, errMsg)
			continue
		}
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		result.Rows = append(result.Rows, r)
	}

	return dedupe(result)
}

// dedupe keeps the last row for each rate, in first-seen order.
func dedupe(result ImportResult) ImportResult {
	index := make(map[string]int, len(result.Rows))
	out := result.Rows[:0:0]
	for _, r := range result.Rows {
		id := rowIdentity(r)
		if at, seen := index[id]; seen {
			out[at] = r
			result.Warnings = append(result.Warnings, fmt.Sprintf("Duplicate %s rate '%s', last value wins", r.Kind, r.Key))
			continue
		}
		index[id] = len(out)
		out = append(out, r)
	}
	result.Rows = out
	return result
}
