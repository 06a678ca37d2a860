// Package tables holds the static mappings between numeric type codes and
// their names as used in the UEFI Platform Initialization specification, minus
// the "EFI_FV_FILETYPE_" and "EFI_SECTION_" prefixes.
//
// The tables are loaded once from embedded CSV files when the package is
// initialized and never change afterward.
package tables

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/dargueta/fvkit"
	"github.com/gocarina/gocsv"
)

// TypeEntry is one row of a type table.
type TypeEntry struct {
	Code        uint8  `csv:"-"`
	RawCode     string `csv:"code"`
	Name        string `csv:"name"`
	Description string `csv:"description"`
}

type typeTable struct {
	byCode map[uint8]TypeEntry
	byName map[string]TypeEntry
}

//go:embed file-types.csv
var fileTypesRawCSV string

//go:embed section-types.csv
var sectionTypesRawCSV string

var fileTypes typeTable
var sectionTypes typeTable

// LookupFileType returns the name of a firmware file type code. The boolean is
// false if the code has no entry; OEM and debug codes are reported as found,
// with the generic names "OEM" and "DEBUG".
func LookupFileType(code uint8) (string, bool) {
	if entry, ok := fileTypes.byCode[code]; ok {
		return entry.Name, true
	}
	switch {
	case code >= 0xc0 && code <= 0xdf:
		return "OEM", true
	case code >= 0xe0 && code <= 0xef:
		return "DEBUG", true
	}
	return "", false
}

// FileTypeName is like [LookupFileType] but returns a placeholder such as
// "UNKNOWN_0x42" for codes without an entry.
func FileTypeName(code uint8) string {
	if name, ok := LookupFileType(code); ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_0x%02x", code)
}

// LookupSectionType returns the name of a section type code.
func LookupSectionType(code uint8) (string, bool) {
	entry, ok := sectionTypes.byCode[code]
	return entry.Name, ok
}

// SectionTypeName is like [LookupSectionType] but returns a placeholder for
// codes without an entry.
func SectionTypeName(code uint8) string {
	if name, ok := LookupSectionType(code); ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_0x%02x", code)
}

// FileTypeCode is the reverse of [FileTypeName]. Matching is case-insensitive,
// the "EFI_FV_FILETYPE_" prefix is optional, and a plain number ("7", "0x07")
// is accepted as well.
func FileTypeCode(name string) (uint8, error) {
	return fileTypes.codeFor(name, "EFI_FV_FILETYPE_")
}

// SectionTypeCode is the reverse of [SectionTypeName], with the same rules as
// [FileTypeCode] and an optional "EFI_SECTION_" prefix.
func SectionTypeCode(name string) (uint8, error) {
	return sectionTypes.codeFor(name, "EFI_SECTION_")
}

// FileTypes returns every entry of the file type table, in no particular order.
func FileTypes() []TypeEntry {
	return fileTypes.entries()
}

// SectionTypes returns every entry of the section type table, in no particular
// order.
func SectionTypes() []TypeEntry {
	return sectionTypes.entries()
}

func (table typeTable) codeFor(name, prefix string) (uint8, error) {
	normalized := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), prefix)
	if entry, ok := table.byName[normalized]; ok {
		return entry.Code, nil
	}

	code, err := strconv.ParseUint(strings.TrimSpace(name), 0, 8)
	if err != nil {
		return 0, fvkit.Errorf(fvkit.ErrInvalidArgument, "unrecognized type %q", name)
	}
	return uint8(code), nil
}

func (table typeTable) entries() []TypeEntry {
	result := make([]TypeEntry, 0, len(table.byCode))
	for _, entry := range table.byCode {
		result = append(result, entry)
	}
	return result
}

func loadTable(tableName, rawCSV string) typeTable {
	csvReader := csv.NewReader(strings.NewReader(rawCSV))
	csvReader.Comma = '|'

	var rows []TypeEntry
	if err := gocsv.UnmarshalCSV(csvReader, &rows); err != nil {
		panic(fmt.Errorf("failed to decode %s table: %w", tableName, err))
	}

	table := typeTable{
		byCode: make(map[uint8]TypeEntry, len(rows)),
		byName: make(map[string]TypeEntry, len(rows)),
	}
	for i, row := range rows {
		code, err := strconv.ParseUint(row.RawCode, 0, 8)
		if err != nil {
			panic(fmt.Errorf("%s table row %d: bad code %q: %w", tableName, i+1, row.RawCode, err))
		}
		row.Code = uint8(code)

		if _, exists := table.byCode[row.Code]; exists {
			panic(fmt.Errorf(
				"duplicate definition for %s type 0x%02x found on row %d",
				tableName,
				row.Code,
				i+1))
		}
		table.byCode[row.Code] = row
		table.byName[row.Name] = row
	}
	return table
}

func init() {
	fileTypes = loadTable("file", fileTypesRawCSV)
	sectionTypes = loadTable("section", sectionTypesRawCSV)
}
