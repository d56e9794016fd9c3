// Package symbol maintains the directory of supported A-share instruments
// and validates Yahoo-style instrument codes.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Exchange suffixes carried by instrument codes.
const (
	ExchangeShanghai = "SS"
	ExchangeShenzhen = "SZ"
)

// DefaultCode is the instrument used when no selection has been made.
const DefaultCode = "510300.SS"

// codeRegex matches: {6 digits}.{SS|SZ}
// Example: 510300.SS
var codeRegex = regexp.MustCompile(`^(\d{6})\.(SS|SZ)$`)

var ErrInvalidCode = errors.New("symbol: invalid instrument code")

// Symbol identifies a listed instrument by its Yahoo-style code.
type Symbol struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Exchange string `json:"exchange"`
}

// directory lists the instruments offered for quick selection. Codes carry
// Yahoo suffixes: .SS for Shanghai, .SZ for Shenzhen.
var directory = []Symbol{
	{Code: "510300.SS", Name: "沪深300ETF", Exchange: ExchangeShanghai},
	{Code: "600519.SS", Name: "贵州茅台", Exchange: ExchangeShanghai},
	{Code: "300750.SZ", Name: "宁德时代", Exchange: ExchangeShenzhen},
	{Code: "600036.SS", Name: "招商银行", Exchange: ExchangeShanghai},
	{Code: "601318.SS", Name: "中国平安", Exchange: ExchangeShanghai},
	{Code: "000858.SZ", Name: "五粮液", Exchange: ExchangeShenzhen},
	{Code: "688981.SS", Name: "中芯国际", Exchange: ExchangeShanghai},
	{Code: "002594.SZ", Name: "比亚迪", Exchange: ExchangeShenzhen},
	{Code: "300059.SZ", Name: "东方财富", Exchange: ExchangeShenzhen},
	{Code: "000001.SS", Name: "上证指数", Exchange: ExchangeShanghai},
}

// Parse validates an instrument code and resolves its directory name when
// the instrument is a known one.
// Format: {6 digits}.{SS|SZ}
func Parse(code string) (*Symbol, error) {
	matches := codeRegex.FindStringSubmatch(code)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected dddddd.SS or dddddd.SZ)",
			ErrInvalidCode, code)
	}

	s := &Symbol{Code: code, Exchange: matches[2]}
	if known, ok := Lookup(code); ok {
		s.Name = known.Name
	}
	return s, nil
}

// Lookup finds a directory entry by exact code.
func Lookup(code string) (Symbol, bool) {
	for _, s := range directory {
		if s.Code == code {
			return s, true
		}
	}
	return Symbol{}, false
}

// Search returns directory entries whose name or code contains the query.
// An empty query returns the whole directory.
func Search(query string) []Symbol {
	if query == "" {
		out := make([]Symbol, len(directory))
		copy(out, directory)
		return out
	}

	var out []Symbol
	for _, s := range directory {
		if strings.Contains(s.Name, query) || strings.Contains(s.Code, query) {
			out = append(out, s)
		}
	}
	return out
}
