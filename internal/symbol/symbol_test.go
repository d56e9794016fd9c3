package symbol

import (
	"errors"
	"testing"
)

func TestParse_KnownInstrument(t *testing.T) {
	s, err := Parse("510300.SS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Code != "510300.SS" {
		t.Errorf("expected code=510300.SS, got %s", s.Code)
	}
	if s.Exchange != ExchangeShanghai {
		t.Errorf("expected exchange=SS, got %s", s.Exchange)
	}
	if s.Name != "沪深300ETF" {
		t.Errorf("expected directory name, got %q", s.Name)
	}
}

func TestParse_UnknownButWellFormed(t *testing.T) {
	s, err := Parse("123456.SZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "" {
		t.Errorf("expected empty name for unlisted code, got %q", s.Name)
	}
	if s.Exchange != ExchangeShenzhen {
		t.Errorf("expected exchange=SZ, got %s", s.Exchange)
	}
}

func TestParse_InvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"510300",
		"510300.",
		"510300.XX",
		"51030.SS",     // five digits
		"5103000.SS",   // seven digits
		"510300.ss",    // lowercase suffix
		"abcdef.SS",    // non-numeric
		"510300-SS",    // wrong separator
		" 510300.SS",   // leading space
		"510300.SS\n",  // trailing newline
		"510300.SS.SZ", // double suffix
	}
	for _, code := range tests {
		_, err := Parse(code)
		if !errors.Is(err, ErrInvalidCode) {
			t.Errorf("expected ErrInvalidCode for %q, got %v", code, err)
		}
	}
}

func TestLookup(t *testing.T) {
	s, ok := Lookup("600519.SS")
	if !ok {
		t.Fatal("expected 600519.SS in the directory")
	}
	if s.Name != "贵州茅台" {
		t.Errorf("expected 贵州茅台, got %q", s.Name)
	}

	if _, ok := Lookup("999999.SZ"); ok {
		t.Error("expected lookup miss for unlisted code")
	}
}

func TestSearch_ByName(t *testing.T) {
	matches := Search("茅台")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Code != "600519.SS" {
		t.Errorf("expected 600519.SS, got %s", matches[0].Code)
	}
}

func TestSearch_ByCodeFragment(t *testing.T) {
	matches := Search("300")
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches for %q, got %d", "300", len(matches))
	}
	for _, m := range matches {
		if m.Code != "510300.SS" && m.Code != "300750.SZ" && m.Code != "300059.SZ" {
			t.Errorf("unexpected match %s", m.Code)
		}
	}
}

func TestSearch_EmptyQueryReturnsAll(t *testing.T) {
	all := Search("")
	if len(all) != 10 {
		t.Fatalf("expected the full directory, got %d entries", len(all))
	}
	if all[0].Code != DefaultCode {
		t.Errorf("expected the default instrument first, got %s", all[0].Code)
	}

	// Mutating the returned slice must not touch the directory.
	all[0].Name = "mutated"
	if s, _ := Lookup(DefaultCode); s.Name == "mutated" {
		t.Error("Search must return a copy of the directory")
	}
}

func TestSearch_NoMatch(t *testing.T) {
	if matches := Search("no-such-instrument"); len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}
