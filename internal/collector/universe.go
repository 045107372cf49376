package collector

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// symbolColumns are the header names recognised in a universe CSV, in
// order of preference.
var symbolColumns = []string{"ticker_yfinance_format", "symbol", "ticker"}

// LoadUniverse reads a symbol list. A file whose first line names one of the
// symbol columns is read as CSV; anything else is one symbol per line.
// Shanghai codes are rewritten from .SH to Yahoo's .SS.
func LoadUniverse(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	first, _ := br.Peek(512)
	head := strings.ToLower(strings.SplitN(string(first), "\n", 2)[0])

	var raw []string
	if col := headerColumn(head); col != "" {
		raw, err = readSymbolColumn(br, col)
	} else {
		raw, err = readLines(br)
	}
	if err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

// NormalizeSymbol trims and upper-cases a symbol and maps .SH to .SS.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if strings.HasSuffix(s, ".SH") {
		s = strings.TrimSuffix(s, ".SH") + ".SS"
	}
	return s
}

func headerColumn(head string) string {
	for _, c := range symbolColumns {
		for _, h := range strings.Split(head, ",") {
			if strings.TrimSpace(h) == c {
				return c
			}
		}
	}
	return ""
}

func readSymbolColumn(br *bufio.Reader, col string) ([]string, error) {
	records, err := csv.NewReader(br).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	at := -1
	for i, h := range records[0] {
		if strings.ToLower(strings.TrimSpace(h)) == col {
			at = i
		}
	}
	var out []string
	for _, rec := range records[1:] {
		if at >= 0 && at < len(rec) {
			out = append(out, rec[at])
		}
	}
	return out, nil
}

func readLines(br *bufio.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(br)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
