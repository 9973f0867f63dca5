package xlsx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"office-translator/internal/document"
)

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("build workbook: %v", err)
		}
	}

	must(f.SetCellStr("Sheet1", "A1", "Hello world"))
	must(f.SetCellFormula("Sheet1", "B1", "SUM(D1:D1)"))
	must(f.SetCellStr("Sheet1", "C1", "2024"))
	must(f.SetCellValue("Sheet1", "D1", 42))
	must(f.SetCellStr("Sheet1", "E1", "   "))
	must(f.SetCellStr("Sheet1", "A2", "Status"))

	dv := excelize.NewDataValidation(true)
	dv.Sqref = "B2:B5"
	must(dv.SetDropList([]string{"Yes", "No"}))
	must(f.AddDataValidation("Sheet1", dv))

	_, err := f.NewSheet("Notes")
	must(err)
	must(f.SetCellStr("Notes", "A1", "Second sheet text"))

	buf, err := f.WriteToBuffer()
	must(err)
	return buf.Bytes()
}

func unitByText(t *testing.T, units []document.Unit, text string) document.Unit {
	t.Helper()
	for _, u := range units {
		if u.SourceText == text {
			return u
		}
	}
	t.Fatalf("no unit with text %q in %+v", text, units)
	return document.Unit{}
}

func TestExtract(t *testing.T) {
	data := buildWorkbook(t)

	ex, err := NewExtractor().Extract(data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(ex.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", ex.Warnings)
	}

	want := []struct {
		text     string
		kind     document.Kind
		location string
	}{
		{"Hello world", document.KindCell, "Sheet1!A1"},
		{"Status", document.KindCell, "Sheet1!A2"},
		{"Yes", document.KindListItem, "Sheet1!B2:B5#0"},
		{"No", document.KindListItem, "Sheet1!B2:B5#1"},
		{"Second sheet text", document.KindCell, "Notes!A1"},
		{"Sheet1", document.KindSheetName, "sheet:0"},
		{"Notes", document.KindSheetName, "sheet:1"},
	}
	if len(ex.Units) != len(want) {
		t.Fatalf("got %d units, want %d: %+v", len(ex.Units), len(want), ex.Units)
	}
	for i, w := range want {
		u := ex.Units[i]
		if u.SourceText != w.text || u.Kind != w.kind || string(u.Location) != w.location {
			t.Errorf("unit %d = {%q %s %s}, want {%q %s %s}",
				i, u.SourceText, u.Kind, u.Location, w.text, w.kind, w.location)
		}
		if u.ID != document.UnitID(i) {
			t.Errorf("unit %d ID = %d", i, u.ID)
		}
	}

	wantSkips := []struct {
		location string
		reason   string
	}{
		{"Sheet1!B1", "formula"},
		{"Sheet1!C1", "numeric-only"},
	}
	if len(ex.Skipped) != len(wantSkips) {
		t.Fatalf("got %d skips, want %d: %+v", len(ex.Skipped), len(wantSkips), ex.Skipped)
	}
	for i, w := range wantSkips {
		s := ex.Skipped[i]
		if string(s.Location) != w.location || s.Reason != w.reason {
			t.Errorf("skip %d = {%s %s}, want {%s %s}", i, s.Location, s.Reason, w.location, w.reason)
		}
	}
}

func TestWriteTranslations(t *testing.T) {
	data := buildWorkbook(t)

	ex, err := NewExtractor().Extract(data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	outcomes := map[document.UnitID]document.Outcome{
		unitByText(t, ex.Units, "Hello world").ID:       {State: document.StateTranslated, Text: "Xin chào thế giới"},
		unitByText(t, ex.Units, "Status").ID:            {State: document.StateFailed, Reason: "exhausted-retries"},
		unitByText(t, ex.Units, "Yes").ID:               {State: document.StateTranslated, Text: "Có"},
		unitByText(t, ex.Units, "No").ID:                {State: document.StateTranslated, Text: "Không"},
		unitByText(t, ex.Units, "Second sheet text").ID: {State: document.StateTranslated, Text: "Văn bản trang hai"},
		unitByText(t, ex.Units, "Sheet1").ID:            {State: document.StateTranslated, Text: "Trang tính 1"},
		unitByText(t, ex.Units, "Notes").ID:             {State: document.StateTranslated, Text: "Ghi chú"},
	}

	out, warnings, err := NewWriter().Write(data, ex.Units, outcomes)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output workbook invalid: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != "Trang tính 1" || got[1] != "Ghi chú" {
		t.Errorf("sheet list = %v", got)
	}

	checks := []struct {
		sheet, cell, want string
	}{
		{"Trang tính 1", "A1", "Xin chào thế giới"},
		{"Trang tính 1", "A2", "Status"},
		{"Trang tính 1", "C1", "2024"},
		{"Trang tính 1", "D1", "42"},
		{"Ghi chú", "A1", "Văn bản trang hai"},
	}
	for _, c := range checks {
		got, err := f.GetCellValue(c.sheet, c.cell)
		if err != nil || got != c.want {
			t.Errorf("%s!%s = %q (%v), want %q", c.sheet, c.cell, got, err, c.want)
		}
	}

	if formula, _ := f.GetCellFormula("Trang tính 1", "B1"); formula != "SUM(D1:D1)" {
		t.Errorf("formula = %q, want untouched", formula)
	}

	dvs, err := f.GetDataValidations("Trang tính 1")
	if err != nil || len(dvs) != 1 {
		t.Fatalf("data validations = %+v (%v)", dvs, err)
	}
	if dvs[0].Sqref != "B2:B5" {
		t.Errorf("dropdown sqref = %q", dvs[0].Sqref)
	}
	if dvs[0].Formula1 != `"Có,Không"` {
		t.Errorf("dropdown formula = %q, want translated list", dvs[0].Formula1)
	}
}

func TestWritePartialDropdownKeepsOriginal(t *testing.T) {
	data := buildWorkbook(t)

	ex, err := NewExtractor().Extract(data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	outcomes := map[document.UnitID]document.Outcome{
		unitByText(t, ex.Units, "Yes").ID: {State: document.StateTranslated, Text: "Có"},
		unitByText(t, ex.Units, "No").ID:  {State: document.StateFailed, Reason: "exhausted-retries"},
	}

	out, warnings, err := NewWriter().Write(data, ex.Units, outcomes)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "仅部分翻译") {
		t.Fatalf("warnings = %v", warnings)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output workbook invalid: %v", err)
	}
	defer f.Close()

	dvs, err := f.GetDataValidations("Sheet1")
	if err != nil || len(dvs) != 1 {
		t.Fatalf("data validations = %+v (%v)", dvs, err)
	}
	if dvs[0].Formula1 != `"Yes,No"` {
		t.Errorf("dropdown formula = %q, want original list", dvs[0].Formula1)
	}
}

func TestWriteCellMismatchWarns(t *testing.T) {
	data := buildWorkbook(t)

	ex, err := NewExtractor().Extract(data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	units := make([]document.Unit, len(ex.Units))
	copy(units, ex.Units)
	units[0].SourceText = "tampered"

	outcomes := map[document.UnitID]document.Outcome{
		units[0].ID: {State: document.StateTranslated, Text: "should not appear"},
	}

	out, warnings, err := NewWriter().Write(data, units, outcomes)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "不一致") {
		t.Fatalf("warnings = %v", warnings)
	}

	f, _ := excelize.OpenReader(bytes.NewReader(out))
	defer f.Close()
	if got, _ := f.GetCellValue("Sheet1", "A1"); got != "Hello world" {
		t.Errorf("mismatched cell = %q, want original", got)
	}
}

func TestWriteSheetNameCollision(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Alpha"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := f.NewSheet("Beta"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	f.Close()
	data := buf.Bytes()

	ex, err := NewExtractor().Extract(data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	outcomes := make(map[document.UnitID]document.Outcome)
	for _, u := range ex.Units {
		outcomes[u.ID] = document.Outcome{State: document.StateTranslated, Text: "Trang"}
	}

	out, _, err := NewWriter().Write(data, ex.Units, outcomes)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	nf, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output workbook invalid: %v", err)
	}
	defer nf.Close()

	got := nf.GetSheetList()
	if len(got) != 2 || got[0] != "Trang" || got[1] != "Trang (2)" {
		t.Errorf("sheet list = %v, want collision suffix", got)
	}
}

func TestExtractEmptyWorkbook(t *testing.T) {
	f := excelize.NewFile()
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	f.Close()

	ex, err := NewExtractor().Extract(buf.Bytes())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(ex.Units) != 1 || ex.Units[0].Kind != document.KindSheetName {
		t.Errorf("units = %+v, want only the sheet name", ex.Units)
	}
}

func TestSanitizeSheetName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Revenue", "Revenue"},
		{"Quarterly / Revenue [draft]", "Quarterly   Revenue  draft"},
		{"a:b\\c?d", "a b c d"},
		{"'quoted'", "quoted"},
		{"???", ""},
		{strings.Repeat("长", 40), strings.Repeat("长", 31)},
	}
	for _, tt := range tests {
		if got := sanitizeSheetName(tt.in); got != tt.want {
			t.Errorf("sanitizeSheetName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUniqueSheetName(t *testing.T) {
	names := []string{"Trang", "Data"}
	if got := uniqueSheetName("Trang", 2, names); got != "Trang (2)" {
		t.Errorf("collision suffix = %q", got)
	}
	if got := uniqueSheetName("trang", 2, names); got != "trang (2)" {
		t.Errorf("case-insensitive collision = %q", got)
	}
	if got := uniqueSheetName("Fresh", 0, names); got != "Fresh" {
		t.Errorf("no collision = %q", got)
	}
	if got := uniqueSheetName("Trang", 0, names); got != "Trang" {
		t.Errorf("own name should not collide = %q", got)
	}
}

func TestLocationRoundTrip(t *testing.T) {
	sheet, cell, ok := parseCellLocation(cellLocation("My Sheet", "B12"))
	if !ok || sheet != "My Sheet" || cell != "B12" {
		t.Errorf("cell location roundtrip = %q %q %v", sheet, cell, ok)
	}

	sheet, sqref, item, ok := parseDropLocation(dropLocation("Data", "A1:A5 C1:C5", 3))
	if !ok || sheet != "Data" || sqref != "A1:A5 C1:C5" || item != 3 {
		t.Errorf("dropdown location roundtrip = %q %q %d %v", sheet, sqref, item, ok)
	}

	idx, ok := parseSheetLocation(sheetLocation(4))
	if !ok || idx != 4 {
		t.Errorf("sheet location roundtrip = %d %v", idx, ok)
	}

	if _, _, ok := parseCellLocation("bogus"); ok {
		t.Error("parseCellLocation should reject malformed input")
	}
	if _, _, _, ok := parseDropLocation("bogus"); ok {
		t.Error("parseDropLocation should reject malformed input")
	}
	if _, ok := parseSheetLocation("bogus"); ok {
		t.Error("parseSheetLocation should reject malformed input")
	}
}
