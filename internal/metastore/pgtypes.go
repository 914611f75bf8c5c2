package metastore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/moraxdb/morax/internal/ackrange"
)

// pgInt8RangeArray binds the acknowledgements.acks column, a Postgres
// int8range[], to []ackrange.Range. It decodes the text format through Scan
// and encodes query parameters through fromRanges, rather than pulling in a
// generic range-type
// library, since the only range shape this core ever stores is a
// half-open integer interval.
type pgInt8RangeArray struct {
	ranges []ackrange.Range
}

func (a *pgInt8RangeArray) toRanges() []ackrange.Range {
	if a == nil {
		return nil
	}
	return a.ranges
}

// Scan implements database/sql.Scanner over the Postgres array-of-range
// text representation, e.g. `{"[0,1)","[2,5)"}`.
func (a *pgInt8RangeArray) Scan(src interface{}) error {
	if src == nil {
		a.ranges = nil
		return nil
	}
	var text string
	switch v := src.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return fmt.Errorf("metastore: cannot scan %T into int8range[]", src)
	}
	ranges, err := parsePgInt8RangeArray(text)
	if err != nil {
		return err
	}
	a.ranges = ranges
	return nil
}

func parsePgInt8RangeArray(text string) ([]ackrange.Range, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "{}" {
		return nil, nil
	}
	text = strings.TrimPrefix(text, "{")
	text = strings.TrimSuffix(text, "}")

	var out []ackrange.Range
	for _, part := range splitPgArrayElements(text) {
		part = strings.Trim(part, `"`)
		r, err := parsePgInt8Range(part)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// splitPgArrayElements splits a Postgres array body on top-level commas,
// respecting the double-quoted range literals each element is wrapped in.
func splitPgArrayElements(body string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range body {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ',' && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// parsePgInt8Range parses one int8range literal, e.g. "[0,5)", into its
// equivalent canonical half-open Range (Postgres int8range is always
// normalized to [start,end) form on output).
func parsePgInt8Range(text string) (ackrange.Range, error) {
	if len(text) < 2 {
		return ackrange.Range{}, fmt.Errorf("metastore: malformed range literal %q", text)
	}
	inner := text[1 : len(text)-1]
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return ackrange.Range{}, fmt.Errorf("metastore: malformed range literal %q", text)
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ackrange.Range{}, fmt.Errorf("metastore: malformed range start %q: %w", text, err)
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ackrange.Range{}, fmt.Errorf("metastore: malformed range end %q: %w", text, err)
	}
	return ackrange.Range{Start: start, End: end}, nil
}

// fromRanges renders []ackrange.Range back into the Postgres array-literal
// text form accepted as an int8range[] input parameter.
func fromRanges(ranges []ackrange.Range) string {
	if len(ranges) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, fmt.Sprintf(`"[%d,%d)"`, r.Start, r.End))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
